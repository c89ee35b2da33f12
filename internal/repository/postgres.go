package repository

import (
	"context"
	"errors"

	"github.com/nexora-labs/instgate/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresClientRepo struct {
	db *gorm.DB
}

func NewPostgresClientRepo(db *gorm.DB) *PostgresClientRepo {
	return &PostgresClientRepo{db: db}
}

func (r *PostgresClientRepo) Create(ctx context.Context, c *model.InstitutionalClient) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *PostgresClientRepo) GetByID(ctx context.Context, id string) (*model.InstitutionalClient, error) {
	var c model.InstitutionalClient
	err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrClientNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *PostgresClientRepo) Update(ctx context.Context, c *model.InstitutionalClient) error {
	return r.db.WithContext(ctx).Save(c).Error
}

func (r *PostgresClientRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&model.InstitutionalClient{}, "id = ?", id).Error
}

func (r *PostgresClientRepo) List(ctx context.Context, limit, offset int) ([]*model.InstitutionalClient, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	var clients []*model.InstitutionalClient
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&clients).Error
	return clients, err
}

type PostgresCredentialRepo struct {
	db *gorm.DB
}

func NewPostgresCredentialRepo(db *gorm.DB) *PostgresCredentialRepo {
	return &PostgresCredentialRepo{db: db}
}

func (r *PostgresCredentialRepo) Create(ctx context.Context, cred *model.APICredential) error {
	return r.db.WithContext(ctx).Create(cred).Error
}

func (r *PostgresCredentialRepo) GetByPublicKey(ctx context.Context, publicKey string) (*model.APICredential, error) {
	var cred model.APICredential
	err := r.db.WithContext(ctx).First(&cred, "public_key = ?", publicKey).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCredentialNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

func (r *PostgresCredentialRepo) GetByID(ctx context.Context, id string) (*model.APICredential, error) {
	var cred model.APICredential
	err := r.db.WithContext(ctx).First(&cred, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCredentialNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

func (r *PostgresCredentialRepo) Update(ctx context.Context, cred *model.APICredential) error {
	return r.db.WithContext(ctx).Save(cred).Error
}

func (r *PostgresCredentialRepo) ListByClient(ctx context.Context, clientID string) ([]*model.APICredential, error) {
	var creds []*model.APICredential
	err := r.db.WithContext(ctx).Find(&creds, "client_id = ?", clientID).Error
	return creds, err
}

func (r *PostgresCredentialRepo) DeleteByClient(ctx context.Context, clientID string) error {
	return r.db.WithContext(ctx).Delete(&model.APICredential{}, "client_id = ?", clientID).Error
}

type PostgresFeeTierRepo struct {
	db *gorm.DB
}

func NewPostgresFeeTierRepo(db *gorm.DB) *PostgresFeeTierRepo {
	return &PostgresFeeTierRepo{db: db}
}

// Upsert writes the fee tier, replacing any existing record with the same ID.
// Custom tier IDs are deterministic per client, so recomputation overwrites
// in place instead of accumulating duplicates.
func (r *PostgresFeeTierRepo) Upsert(ctx context.Context, ft *model.FeeTier) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(ft).Error
}

func (r *PostgresFeeTierRepo) GetByID(ctx context.Context, id string) (*model.FeeTier, error) {
	var ft model.FeeTier
	err := r.db.WithContext(ctx).First(&ft, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrFeeTierNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ft, nil
}

func (r *PostgresFeeTierRepo) DeleteByClient(ctx context.Context, clientID string) error {
	return r.db.WithContext(ctx).Delete(&model.FeeTier{}, "client_id = ?", clientID).Error
}

type PostgresSupportChannelRepo struct {
	db *gorm.DB
}

func NewPostgresSupportChannelRepo(db *gorm.DB) *PostgresSupportChannelRepo {
	return &PostgresSupportChannelRepo{db: db}
}

func (r *PostgresSupportChannelRepo) Upsert(ctx context.Context, ch *model.SupportChannel) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "client_id"}},
		UpdateAll: true,
	}).Create(ch).Error
}

func (r *PostgresSupportChannelRepo) GetByClient(ctx context.Context, clientID string) (*model.SupportChannel, error) {
	var ch model.SupportChannel
	err := r.db.WithContext(ctx).First(&ch, "client_id = ?", clientID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

func (r *PostgresSupportChannelRepo) DeleteByClient(ctx context.Context, clientID string) error {
	return r.db.WithContext(ctx).Delete(&model.SupportChannel{}, "client_id = ?", clientID).Error
}
