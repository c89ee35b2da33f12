package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/nexora-labs/instgate/internal/model"
)

// In-memory repositories back the gateway when no database DSN is configured
// and isolate unit tests from Postgres.

type MemoryClientRepo struct {
	mu      sync.RWMutex
	clients map[string]model.InstitutionalClient
}

func NewMemoryClientRepo() *MemoryClientRepo {
	return &MemoryClientRepo{clients: make(map[string]model.InstitutionalClient)}
}

func (r *MemoryClientRepo) Create(ctx context.Context, c *model.InstitutionalClient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.ID] = *c
	return nil
}

func (r *MemoryClientRepo) GetByID(ctx context.Context, id string) (*model.InstitutionalClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[id]
	if !ok {
		return nil, ErrClientNotFound
	}
	out := c
	return &out, nil
}

func (r *MemoryClientRepo) Update(ctx context.Context, c *model.InstitutionalClient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[c.ID]; !ok {
		return ErrClientNotFound
	}
	r.clients[c.ID] = *c
	return nil
}

func (r *MemoryClientRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, id)
	return nil
}

func (r *MemoryClientRepo) List(ctx context.Context, limit, offset int) ([]*model.InstitutionalClient, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]*model.InstitutionalClient, 0, len(r.clients))
	for _, c := range r.clients {
		out := c
		all = append(all, &out)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

type MemoryCredentialRepo struct {
	mu          sync.RWMutex
	byID        map[string]model.APICredential
	byPublicKey map[string]string // public key -> credential ID
}

func NewMemoryCredentialRepo() *MemoryCredentialRepo {
	return &MemoryCredentialRepo{
		byID:        make(map[string]model.APICredential),
		byPublicKey: make(map[string]string),
	}
}

func (r *MemoryCredentialRepo) Create(ctx context.Context, cred *model.APICredential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[cred.ID] = *cred
	r.byPublicKey[cred.PublicKey] = cred.ID
	return nil
}

func (r *MemoryCredentialRepo) GetByPublicKey(ctx context.Context, publicKey string) (*model.APICredential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byPublicKey[publicKey]
	if !ok {
		return nil, ErrCredentialNotFound
	}
	cred := r.byID[id]
	out := cred
	return &out, nil
}

func (r *MemoryCredentialRepo) GetByID(ctx context.Context, id string) (*model.APICredential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cred, ok := r.byID[id]
	if !ok {
		return nil, ErrCredentialNotFound
	}
	out := cred
	return &out, nil
}

func (r *MemoryCredentialRepo) Update(ctx context.Context, cred *model.APICredential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[cred.ID]; !ok {
		return ErrCredentialNotFound
	}
	r.byID[cred.ID] = *cred
	return nil
}

func (r *MemoryCredentialRepo) ListByClient(ctx context.Context, clientID string) ([]*model.APICredential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var creds []*model.APICredential
	for _, cred := range r.byID {
		if cred.ClientID == clientID {
			out := cred
			creds = append(creds, &out)
		}
	}
	return creds, nil
}

func (r *MemoryCredentialRepo) DeleteByClient(ctx context.Context, clientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, cred := range r.byID {
		if cred.ClientID == clientID {
			delete(r.byID, id)
			delete(r.byPublicKey, cred.PublicKey)
		}
	}
	return nil
}

type MemoryFeeTierRepo struct {
	mu    sync.RWMutex
	tiers map[string]model.FeeTier
}

func NewMemoryFeeTierRepo() *MemoryFeeTierRepo {
	return &MemoryFeeTierRepo{tiers: make(map[string]model.FeeTier)}
}

func (r *MemoryFeeTierRepo) Upsert(ctx context.Context, ft *model.FeeTier) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tiers[ft.ID] = *ft
	return nil
}

func (r *MemoryFeeTierRepo) GetByID(ctx context.Context, id string) (*model.FeeTier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ft, ok := r.tiers[id]
	if !ok {
		return nil, ErrFeeTierNotFound
	}
	out := ft
	return &out, nil
}

func (r *MemoryFeeTierRepo) DeleteByClient(ctx context.Context, clientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, ft := range r.tiers {
		if ft.ClientID == clientID {
			delete(r.tiers, id)
		}
	}
	return nil
}

type MemorySupportChannelRepo struct {
	mu       sync.RWMutex
	channels map[string]model.SupportChannel
}

func NewMemorySupportChannelRepo() *MemorySupportChannelRepo {
	return &MemorySupportChannelRepo{channels: make(map[string]model.SupportChannel)}
}

func (r *MemorySupportChannelRepo) Upsert(ctx context.Context, ch *model.SupportChannel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[ch.ClientID] = *ch
	return nil
}

func (r *MemorySupportChannelRepo) GetByClient(ctx context.Context, clientID string) (*model.SupportChannel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[clientID]
	if !ok {
		return nil, nil
	}
	out := ch
	return &out, nil
}

func (r *MemorySupportChannelRepo) DeleteByClient(ctx context.Context, clientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.channels, clientID)
	return nil
}
