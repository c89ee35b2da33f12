// Package credstore issues and verifies institutional API credentials.
package credstore

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nexora-labs/instgate/internal/model"
	"github.com/nexora-labs/instgate/internal/pkg/apperrors"
)

// PublicKeyPrefix marks gateway-issued keys so they are recognizable in
// support tickets and logs.
const PublicKeyPrefix = "NX_"

type CredentialRepo interface {
	Create(ctx context.Context, cred *model.APICredential) error
	GetByPublicKey(ctx context.Context, publicKey string) (*model.APICredential, error)
	GetByID(ctx context.Context, id string) (*model.APICredential, error)
	Update(ctx context.Context, cred *model.APICredential) error
	ListByClient(ctx context.Context, clientID string) ([]*model.APICredential, error)
	DeleteByClient(ctx context.Context, clientID string) error
}

type Store struct {
	repo CredentialRepo
}

func New(repo CredentialRepo) *Store {
	return &Store{repo: repo}
}

// Issued carries the one and only plaintext copy of the secret. It is
// returned to the caller and never stored.
type Issued struct {
	CredentialID string
	PublicKey    string
	Secret       string
}

// Issue generates a credential for the client. The secret is 32 random bytes;
// only its salted hash is persisted.
func (s *Store) Issue(ctx context.Context, clientID string, permissions []model.Permission, rateLimit int, ipAllowlist []string) (*Issued, error) {
	for _, p := range permissions {
		if !p.Valid() {
			return nil, apperrors.NewInvalidRequest(fmt.Sprintf("unknown permission %q", p))
		}
	}

	keyBytes := make([]byte, 16)
	if _, err := rand.Read(keyBytes); err != nil {
		return nil, fmt.Errorf("generate public key: %w", err)
	}
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	publicKey := PublicKeyPrefix + hex.EncodeToString(keyBytes)
	secret := base64.RawURLEncoding.EncodeToString(secretBytes)

	cred := &model.APICredential{
		ID:          uuid.NewString(),
		ClientID:    clientID,
		PublicKey:   publicKey,
		SecretHash:  hashSecret(salt, secret),
		SecretSalt:  salt,
		Permissions: permissions,
		RateLimit:   rateLimit,
		IPAllowlist: ipAllowlist,
		Status:      model.CredentialActive,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, cred); err != nil {
		return nil, err
	}

	return &Issued{
		CredentialID: cred.ID,
		PublicKey:    publicKey,
		Secret:       secret,
	}, nil
}

// Verify recomputes the hash of providedSecret and compares it against the
// stored hash in constant time.
func (s *Store) Verify(ctx context.Context, publicKey, providedSecret string) (*model.APICredential, error) {
	cred, err := s.repo.GetByPublicKey(ctx, publicKey)
	if err != nil || cred == nil {
		return nil, apperrors.New(apperrors.ErrInvalidCredential, "unknown public key", err)
	}
	if cred.Status != model.CredentialActive {
		return nil, apperrors.New(apperrors.ErrRevokedCredential, "credential has been revoked", nil)
	}
	candidate := hashSecret(cred.SecretSalt, providedSecret)
	if subtle.ConstantTimeCompare(candidate, cred.SecretHash) != 1 {
		return nil, apperrors.New(apperrors.ErrInvalidCredential, "secret mismatch", nil)
	}
	return cred, nil
}

func (s *Store) HasPermission(cred *model.APICredential, perm model.Permission) bool {
	return cred != nil && cred.Permissions.Contains(perm)
}

func (s *Store) Get(ctx context.Context, credentialID string) (*model.APICredential, error) {
	cred, err := s.repo.GetByID(ctx, credentialID)
	if err != nil || cred == nil {
		return nil, apperrors.New(apperrors.ErrNotFound, "credential not found", err)
	}
	return cred, nil
}

// Revoke marks the credential inactive. Verify rejects it from then on.
func (s *Store) Revoke(ctx context.Context, credentialID string) error {
	cred, err := s.repo.GetByID(ctx, credentialID)
	if err != nil || cred == nil {
		return apperrors.New(apperrors.ErrNotFound, "credential not found", err)
	}
	cred.Status = model.CredentialRevoked
	cred.UpdatedAt = time.Now().UTC()
	return s.repo.Update(ctx, cred)
}

// RevokeAllForClient revokes every credential owned by the client, used
// during offboarding.
func (s *Store) RevokeAllForClient(ctx context.Context, clientID string) error {
	creds, err := s.repo.ListByClient(ctx, clientID)
	if err != nil {
		return err
	}
	for _, cred := range creds {
		if cred.Status == model.CredentialActive {
			cred.Status = model.CredentialRevoked
			cred.UpdatedAt = time.Now().UTC()
			if err := s.repo.Update(ctx, cred); err != nil {
				return err
			}
		}
	}
	return nil
}

// PurgeClient removes every credential record for the client. Used by
// offboarding after revocation; not reachable from any request path.
func (s *Store) PurgeClient(ctx context.Context, clientID string) error {
	return s.repo.DeleteByClient(ctx, clientID)
}

func hashSecret(salt []byte, secret string) []byte {
	h := sha256.New()
	h.Write(salt)
	h.Write([]byte(secret))
	return h.Sum(nil)
}
