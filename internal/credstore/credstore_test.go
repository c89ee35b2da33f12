package credstore

import (
	"context"
	"strings"
	"testing"

	"github.com/nexora-labs/instgate/internal/model"
	"github.com/nexora-labs/instgate/internal/pkg/apperrors"
	"github.com/nexora-labs/instgate/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *Store {
	return New(repository.NewMemoryCredentialRepo())
}

func TestIssueAndVerify(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	issued, err := s.Issue(ctx, "client-1", []model.Permission{model.PermTrading}, 120, nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(issued.PublicKey, "NX_"))
	assert.Len(t, issued.PublicKey, len("NX_")+32)
	assert.NotEmpty(t, issued.Secret)

	cred, err := s.Verify(ctx, issued.PublicKey, issued.Secret)
	require.NoError(t, err)
	assert.Equal(t, "client-1", cred.ClientID)
	assert.Equal(t, 120, cred.RateLimit)
	assert.True(t, s.HasPermission(cred, model.PermTrading))
	assert.False(t, s.HasPermission(cred, model.PermBulkTrading))
}

func TestSecretNotStoredInPlaintext(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	issued, err := s.Issue(ctx, "client-1", []model.Permission{model.PermTrading}, 60, nil)
	require.NoError(t, err)

	cred, err := s.Get(ctx, issued.CredentialID)
	require.NoError(t, err)
	assert.NotContains(t, string(cred.SecretHash), issued.Secret)
	assert.NotEqual(t, []byte(issued.Secret), cred.SecretHash)
}

func TestVerifyRejectsMutatedSecret(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	issued, err := s.Issue(ctx, "client-1", []model.Permission{model.PermTrading}, 60, nil)
	require.NoError(t, err)

	// flip every position of the secret one at a time; each mutation must fail
	for i := 0; i < len(issued.Secret); i++ {
		mutated := []byte(issued.Secret)
		if mutated[i] == 'A' {
			mutated[i] = 'B'
		} else {
			mutated[i] = 'A'
		}
		_, err := s.Verify(ctx, issued.PublicKey, string(mutated))
		require.Error(t, err, "mutation at position %d should fail verification", i)
	}
}

func TestVerifyUnknownKey(t *testing.T) {
	s := newTestStore()

	_, err := s.Verify(context.Background(), "NX_deadbeef", "whatever")
	require.Error(t, err)
	appErr := apperrors.Wrap(err)
	assert.Equal(t, apperrors.ErrInvalidCredential, appErr.Type)
}

func TestVerifyRevokedCredential(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	issued, err := s.Issue(ctx, "client-1", []model.Permission{model.PermTrading}, 60, nil)
	require.NoError(t, err)
	require.NoError(t, s.Revoke(ctx, issued.CredentialID))

	_, err = s.Verify(ctx, issued.PublicKey, issued.Secret)
	require.Error(t, err)
	appErr := apperrors.Wrap(err)
	assert.Equal(t, apperrors.ErrRevokedCredential, appErr.Type)
}

func TestIssueRejectsUnknownPermission(t *testing.T) {
	s := newTestStore()

	_, err := s.Issue(context.Background(), "client-1", []model.Permission{"SUPERUSER"}, 60, nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrInvalidRequest, apperrors.Wrap(err).Type)
}

func TestRevokeAllForClient(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	a, err := s.Issue(ctx, "client-1", []model.Permission{model.PermTrading}, 60, nil)
	require.NoError(t, err)
	b, err := s.Issue(ctx, "client-1", []model.Permission{model.PermBulkTrading}, 60, nil)
	require.NoError(t, err)

	require.NoError(t, s.RevokeAllForClient(ctx, "client-1"))

	for _, issued := range []*Issued{a, b} {
		_, err := s.Verify(ctx, issued.PublicKey, issued.Secret)
		assert.Error(t, err)
	}
}

func TestPublicKeysAndSecretsAreUnique(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	seenKeys := map[string]bool{}
	seenSecrets := map[string]bool{}
	for i := 0; i < 20; i++ {
		issued, err := s.Issue(ctx, "client-1", []model.Permission{model.PermTrading}, 60, nil)
		require.NoError(t, err)
		assert.False(t, seenKeys[issued.PublicKey])
		assert.False(t, seenSecrets[issued.Secret])
		seenKeys[issued.PublicKey] = true
		seenSecrets[issued.Secret] = true
	}
}
