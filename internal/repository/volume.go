package repository

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// VolumeStore accounts executed order flow per client per UTC day. The
// trailing 30-day aggregate drives tier reclassification and fee discounts.
type VolumeStore interface {
	Add(ctx context.Context, clientID string, orders int64, notional decimal.Decimal) error
	Trailing30d(ctx context.Context, clientID string) (orders int64, notional decimal.Decimal, err error)
}

const trailingDays = 30

// MemoryVolumeStore is the fallback when Redis is not configured.
type MemoryVolumeStore struct {
	mu     sync.RWMutex
	volume map[string]decimal.Decimal // Key: clientID:YYYY-MM-DD
	orders map[string]int64
	now    func() time.Time
}

func NewMemoryVolumeStore() *MemoryVolumeStore {
	return &MemoryVolumeStore{
		volume: make(map[string]decimal.Decimal),
		orders: make(map[string]int64),
		now:    time.Now,
	}
}

func (s *MemoryVolumeStore) Add(ctx context.Context, clientID string, orders int64, notional decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.makeKey(clientID, s.now().UTC())
	s.volume[key] = s.volume[key].Add(notional)
	s.orders[key] += orders
	return nil
}

func (s *MemoryVolumeStore) Trailing30d(ctx context.Context, clientID string) (int64, decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var orders int64
	notional := decimal.Zero
	day := s.now().UTC()
	for i := 0; i < trailingDays; i++ {
		key := s.makeKey(clientID, day.AddDate(0, 0, -i))
		notional = notional.Add(s.volume[key])
		orders += s.orders[key]
	}
	return orders, notional, nil
}

func (s *MemoryVolumeStore) makeKey(clientID string, day time.Time) string {
	return clientID + ":" + day.Format("2006-01-02")
}
