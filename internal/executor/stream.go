package executor

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nexora-labs/instgate/internal/pkg/logger"
	"github.com/nexora-labs/instgate/internal/repository"
	"github.com/shopspring/decimal"
)

// ExecutionReport is one fill event pushed by the trade executor.
type ExecutionReport struct {
	OrderID  string          `json:"order_id"`
	ClientID string          `json:"client_id"`
	Symbol   string          `json:"symbol"`
	Side     string          `json:"side"`
	Price    decimal.Decimal `json:"price"`
	Size     decimal.Decimal `json:"size"`
	FilledAt time.Time       `json:"filled_at"`
}

// ReportStream consumes the executor's websocket execution feed and folds
// filled notional into the trailing-volume store, which in turn drives tier
// reclassification and fee discounts.
type ReportStream struct {
	url      string
	volumes  repository.VolumeStore
	stop     chan struct{}
	stopOnce sync.Once
}

func NewReportStream(url string, volumes repository.VolumeStore) *ReportStream {
	return &ReportStream{
		url:     url,
		volumes: volumes,
		stop:    make(chan struct{}),
	}
}

func (s *ReportStream) Start() {
	go s.run()
}

func (s *ReportStream) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *ReportStream) run() {
	for {
		select {
		case <-s.stop:
			return
		default:
		}

		if err := s.connectAndRead(); err != nil {
			logger.Warn("execution stream disconnected", "error", err)
		}

		select {
		case <-s.stop:
			return
		case <-time.After(5 * time.Second):
			// reconnect backoff
		}
	}
}

func (s *ReportStream) connectAndRead() error {
	conn, _, err := websocket.DefaultDialer.Dial(s.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	sub := map[string]string{"type": "subscribe", "channel": "execution_reports"}
	if err := conn.WriteJSON(sub); err != nil {
		return err
	}

	for {
		select {
		case <-s.stop:
			return nil
		default:
		}

		_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		s.handleMessage(msg)
	}
}

func (s *ReportStream) handleMessage(raw []byte) {
	var report ExecutionReport
	if err := json.Unmarshal(raw, &report); err != nil {
		logger.Debug("skipping malformed execution report", "error", err)
		return
	}
	if report.ClientID == "" {
		return
	}

	notional := report.Price.Mul(report.Size)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.volumes.Add(ctx, report.ClientID, 1, notional); err != nil {
		logger.Warn("failed to record fill volume", "client_id", report.ClientID, "error", err)
	}
}
