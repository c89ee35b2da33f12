package service

import (
	"context"
	"time"

	"github.com/nexora-labs/instgate/internal/model"
	"github.com/nexora-labs/instgate/internal/pkg/apperrors"
	"github.com/nexora-labs/instgate/internal/repository"
	"github.com/shopspring/decimal"
)

// AnalyticsProvider is the collaborator contract for portfolio figures the
// gateway does not compute itself. The real provider lives outside this
// service; NullAnalyticsProvider stands in when none is wired.
type AnalyticsProvider interface {
	AUM(ctx context.Context, clientID string) (decimal.Decimal, error)
	Performance30d(ctx context.Context, clientID string) (decimal.Decimal, error)
	RiskScore(ctx context.Context, clientID string) (decimal.Decimal, error)
}

type NullAnalyticsProvider struct{}

func (NullAnalyticsProvider) AUM(ctx context.Context, clientID string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (NullAnalyticsProvider) Performance30d(ctx context.Context, clientID string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (NullAnalyticsProvider) RiskScore(ctx context.Context, clientID string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

// AnalyticsService assembles the institutional analytics view: collaborator
// portfolio figures plus locally accounted trading stats and fee savings.
type AnalyticsService struct {
	clients  ClientRepo
	volumes  repository.VolumeStore
	fees     *FeeEngine
	provider AnalyticsProvider
}

func NewAnalyticsService(clients ClientRepo, volumes repository.VolumeStore, fees *FeeEngine, provider AnalyticsProvider) *AnalyticsService {
	if provider == nil {
		provider = NullAnalyticsProvider{}
	}
	return &AnalyticsService{
		clients:  clients,
		volumes:  volumes,
		fees:     fees,
		provider: provider,
	}
}

func (s *AnalyticsService) GetClientAnalytics(ctx context.Context, clientID string) (*model.ClientAnalytics, error) {
	client, err := s.clients.GetByID(ctx, clientID)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrNotFound, "client not found", err)
	}

	orders, notional, err := s.volumes.Trailing30d(ctx, clientID)
	if err != nil {
		return nil, err
	}

	aum, err := s.provider.AUM(ctx, clientID)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrUpstream, "analytics provider failed", err)
	}
	perf, err := s.provider.Performance30d(ctx, clientID)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrUpstream, "analytics provider failed", err)
	}
	risk, err := s.provider.RiskScore(ctx, clientID)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrUpstream, "analytics provider failed", err)
	}

	saved, err := s.fees.FeesSaved(ctx, client, notional)
	if err != nil {
		return nil, err
	}

	return &model.ClientAnalytics{
		ClientID:       client.ID,
		Tier:           client.Tier,
		AUM:            aum,
		Performance30D: perf,
		RiskScore:      risk,
		TrailingVolume: notional,
		OrderCount30D:  orders,
		FeesSaved:      saved,
		GeneratedAt:    time.Now().UTC(),
	}, nil
}
