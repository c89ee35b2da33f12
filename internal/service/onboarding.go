package service

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/nexora-labs/instgate/internal/credstore"
	"github.com/nexora-labs/instgate/internal/model"
	"github.com/nexora-labs/instgate/internal/pkg/apperrors"
	"github.com/nexora-labs/instgate/internal/pkg/logger"
	"github.com/nexora-labs/instgate/internal/pkg/metrics"
	"github.com/shopspring/decimal"
)

type ClientRepo interface {
	Create(ctx context.Context, c *model.InstitutionalClient) error
	GetByID(ctx context.Context, id string) (*model.InstitutionalClient, error)
	Update(ctx context.Context, c *model.InstitutionalClient) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, limit, offset int) ([]*model.InstitutionalClient, error)
}

type SupportChannelRepo interface {
	Upsert(ctx context.Context, ch *model.SupportChannel) error
	GetByClient(ctx context.Context, clientID string) (*model.SupportChannel, error)
	DeleteByClient(ctx context.Context, clientID string) error
}

// OnboardingStage identifies where in the linear provisioning flow an
// onboarding attempt currently is, or where it failed.
type OnboardingStage string

const (
	StageRequested          OnboardingStage = "requested"
	StageTierAssigned       OnboardingStage = "tier_assigned"
	StageCredentialIssued   OnboardingStage = "credential_issued"
	StageCustomFeeTier      OnboardingStage = "custom_fee_tier_created"
	StageSupportProvisioned OnboardingStage = "support_channel_provisioned"
	StageActive             OnboardingStage = "active"
)

// OnboardingError reports which stage failed so operators can resume or roll
// back the partially provisioned client.
type OnboardingError struct {
	Stage OnboardingStage
	Err   error
}

func (e *OnboardingError) Error() string {
	return fmt.Sprintf("onboarding failed at stage %s: %v", e.Stage, e.Err)
}

func (e *OnboardingError) Unwrap() error { return e.Err }

// Support agent rosters per support level. Placeholder allocation, same as
// the account-manager pools: correctness only requires agents appropriate
// for the level.
var supportAgents = map[model.SupportLevel][]string{
	model.SupportBasic:      {"agent-basic-1", "agent-basic-2"},
	model.SupportStandard:   {"agent-std-1", "agent-std-2", "agent-std-3"},
	model.SupportEnhanced:   {"agent-enh-1", "agent-enh-2", "agent-enh-3"},
	model.SupportPriority:   {"agent-pri-1", "agent-pri-2"},
	model.SupportWhiteGlove: {"agent-wg-1", "agent-wg-2"},
}

// OnboardingService walks a new institutional client through the linear
// provisioning flow: Requested -> TierAssigned -> CredentialIssued ->
// (CustomFeeTierCreated) -> SupportChannelProvisioned -> Active.
type OnboardingService struct {
	clients  ClientRepo
	channels SupportChannelRepo
	creds    *credstore.Store
	fees     *FeeEngine
}

func NewOnboardingService(clients ClientRepo, channels SupportChannelRepo, creds *credstore.Store, fees *FeeEngine) *OnboardingService {
	return &OnboardingService{
		clients:  clients,
		channels: channels,
		creds:    creds,
		fees:     fees,
	}
}

// OnboardResult carries the provisioned identifiers plus the one-time
// credential material.
type OnboardResult struct {
	ClientID       string
	AccountManager string
	Tier           model.Tier
	Credential     *credstore.Issued
}

func (s *OnboardingService) Onboard(ctx context.Context, req model.OnboardRequest) (*OnboardResult, error) {
	if req.CompanyName == "" {
		return nil, apperrors.NewInvalidRequest("company_name is required")
	}
	if req.DeclaredVolume.IsNegative() || req.MinDeposit.IsNegative() {
		return nil, apperrors.NewInvalidRequest("declared_volume and min_deposit must not be negative")
	}

	// Stage: TierAssigned
	tier := ClassifyTier(req.MinDeposit, req.DeclaredVolume)
	spec := tier.Spec()
	manager := pickFrom(spec.ManagerPool)

	client := &model.InstitutionalClient{
		ID:             uuid.NewString(),
		CompanyName:    req.CompanyName,
		Tier:           tier,
		TrailingVolume: req.DeclaredVolume,
		MinDeposit:     req.MinDeposit,
		AccountManager: manager,
		Status:         model.ClientIncomplete,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
	if err := s.clients.Create(ctx, client); err != nil {
		metrics.OnboardingsTotal.WithLabelValues("failed", tier.String()).Inc()
		return nil, &OnboardingError{Stage: StageTierAssigned, Err: err}
	}

	// Stage: CredentialIssued
	issued, err := s.creds.Issue(ctx, client.ID, []model.Permission{model.PermTrading}, spec.RequestsPerMinute, nil)
	if err != nil {
		s.markIncomplete(ctx, client, StageCredentialIssued)
		metrics.OnboardingsTotal.WithLabelValues("failed", tier.String()).Inc()
		return nil, &OnboardingError{Stage: StageCredentialIssued, Err: err}
	}

	// Stage: CustomFeeTierCreated, platinum and above only
	if tier.Rank() >= model.TierPlatinum.Rank() {
		ft, err := s.fees.ComputeCustomTier(ctx, client)
		if err != nil {
			s.markIncomplete(ctx, client, StageCustomFeeTier)
			metrics.OnboardingsTotal.WithLabelValues("failed", tier.String()).Inc()
			return nil, &OnboardingError{Stage: StageCustomFeeTier, Err: err}
		}
		client.CustomFeeTier = ft.ID
	}

	// Stage: SupportChannelProvisioned
	if err := s.provisionSupport(ctx, client); err != nil {
		s.markIncomplete(ctx, client, StageSupportProvisioned)
		metrics.OnboardingsTotal.WithLabelValues("failed", tier.String()).Inc()
		return nil, &OnboardingError{Stage: StageSupportProvisioned, Err: err}
	}

	// Stage: Active
	client.Status = model.ClientActive
	client.UpdatedAt = time.Now().UTC()
	if err := s.clients.Update(ctx, client); err != nil {
		s.markIncomplete(ctx, client, StageActive)
		metrics.OnboardingsTotal.WithLabelValues("failed", tier.String()).Inc()
		return nil, &OnboardingError{Stage: StageActive, Err: err}
	}

	metrics.OnboardingsTotal.WithLabelValues("success", tier.String()).Inc()
	logger.Info("institutional client onboarded",
		"client_id", client.ID, "tier", tier.String(), "account_manager", manager)

	return &OnboardResult{
		ClientID:       client.ID,
		AccountManager: manager,
		Tier:           tier,
		Credential:     issued,
	}, nil
}

// UpdateTrailingVolume is the entry point for the periodic trailing-volume
// job. It reclassifies the tier, refreshes the custom fee tier for eligible
// clients, and reshapes the support channel when the tier moves.
func (s *OnboardingService) UpdateTrailingVolume(ctx context.Context, clientID string, volume decimal.Decimal) (*model.InstitutionalClient, error) {
	client, err := s.clients.GetByID(ctx, clientID)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrNotFound, "client not found", err)
	}

	oldTier := client.Tier
	client.TrailingVolume = volume
	client.Tier = ClassifyTier(client.MinDeposit, volume)

	if client.Tier.Rank() >= model.TierPlatinum.Rank() {
		ft, err := s.fees.ComputeCustomTier(ctx, client)
		if err != nil {
			return nil, err
		}
		client.CustomFeeTier = ft.ID
	} else if client.CustomFeeTier != "" {
		// dropped below the custom-tier bracket; fall back to base rates
		client.CustomFeeTier = ""
		if err := s.fees.tiers.DeleteByClient(ctx, client.ID); err != nil {
			return nil, err
		}
	}

	if client.Tier != oldTier {
		if err := s.provisionSupport(ctx, client); err != nil {
			return nil, err
		}
		logger.Info("client tier changed",
			"client_id", client.ID, "from", oldTier.String(), "to", client.Tier.String())
	}

	client.UpdatedAt = time.Now().UTC()
	if err := s.clients.Update(ctx, client); err != nil {
		return nil, err
	}
	return client, nil
}

// Offboard revokes and purges the client's credentials and removes every
// record owned by the client. The only way a client is destroyed.
func (s *OnboardingService) Offboard(ctx context.Context, clientID string) error {
	if _, err := s.clients.GetByID(ctx, clientID); err != nil {
		return apperrors.New(apperrors.ErrNotFound, "client not found", err)
	}

	if err := s.creds.RevokeAllForClient(ctx, clientID); err != nil {
		return err
	}
	if err := s.creds.PurgeClient(ctx, clientID); err != nil {
		return err
	}
	if err := s.fees.tiers.DeleteByClient(ctx, clientID); err != nil {
		return err
	}
	if err := s.channels.DeleteByClient(ctx, clientID); err != nil {
		return err
	}
	return s.clients.Delete(ctx, clientID)
}

func (s *OnboardingService) GetClient(ctx context.Context, clientID string) (*model.InstitutionalClient, error) {
	client, err := s.clients.GetByID(ctx, clientID)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrNotFound, "client not found", err)
	}
	return client, nil
}

func (s *OnboardingService) GetSupportChannel(ctx context.Context, clientID string) (*model.SupportChannel, error) {
	return s.channels.GetByClient(ctx, clientID)
}

func (s *OnboardingService) provisionSupport(ctx context.Context, client *model.InstitutionalClient) error {
	spec := client.Tier.Spec()
	roster := supportAgents[spec.SupportLevel]
	agents := make([]string, len(roster))
	copy(agents, roster)

	return s.channels.Upsert(ctx, &model.SupportChannel{
		ClientID:  client.ID,
		Level:     spec.SupportLevel,
		SLAHours:  spec.SLAHours,
		Agents:    agents,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	})
}

// markIncomplete leaves the client record behind with an explicit incomplete
// status rather than pretending the stage never ran.
func (s *OnboardingService) markIncomplete(ctx context.Context, client *model.InstitutionalClient, stage OnboardingStage) {
	client.Status = model.ClientIncomplete
	client.UpdatedAt = time.Now().UTC()
	if err := s.clients.Update(ctx, client); err != nil {
		logger.Error("failed to mark client incomplete",
			"client_id", client.ID, "stage", string(stage), "error", err)
	}
}

func pickFrom(pool []string) string {
	if len(pool) == 0 {
		return ""
	}
	return pool[rand.Intn(len(pool))]
}
