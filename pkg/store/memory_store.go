package store

import (
	"errors"
	"sync"
	"time"

	"postdeck/pkg/domain"
)

// ErrAccountIDConflict is returned when an inserted account carries an
// ID that already belongs to another (owner, platform) row.
var ErrAccountIDConflict = errors.New("account id already in use")

// MemoryStore keeps all records in-process. It backs tests and local
// development when no database URL is configured.
type MemoryStore struct {
	mu        sync.RWMutex
	users     map[string]domain.User // key: user ID
	emails    map[string]string      // email -> user ID
	posts     map[string]domain.Post
	postOrder []string

	accounts     map[string]domain.SocialAccount // key: account ID
	accountKeys  map[string]string               // ownerID+"|"+platform -> account ID
	accountOrder []string
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[string]domain.User),
		emails:      make(map[string]string),
		posts:       make(map[string]domain.Post),
		accounts:    make(map[string]domain.SocialAccount),
		accountKeys: make(map[string]string),
	}
}

// SaveUser registers or replaces a user.
func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	m.emails[u.Email] = u.ID
	return nil
}

// HasUserEmail checks if email exists.
func (m *MemoryStore) HasUserEmail(email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.emails[email]
	return ok, nil
}

// GetUserByEmail looks up a user by email.
func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.emails[email]; ok {
		u, exists := m.users[id]
		return u, exists, nil
	}
	return domain.User{}, false, nil
}

// GetUserByID returns a user by ID.
func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// CreatePost stores a new post and tracks insertion order.
func (m *MemoryStore) CreatePost(p domain.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.posts[p.ID]; !exists {
		m.postOrder = append(m.postOrder, p.ID)
	}
	m.posts[p.ID] = p
	return nil
}

// GetPost retrieves a post scoped by id and owner.
func (m *MemoryStore) GetPost(id, ownerID string) (domain.Post, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.posts[id]
	if !ok || p.OwnerID != ownerID {
		return domain.Post{}, false, nil
	}
	return p, true, nil
}

// UpdatePost replaces a post when id and owner both match.
func (m *MemoryStore) UpdatePost(p domain.Post) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.posts[p.ID]
	if !ok || existing.OwnerID != p.OwnerID {
		return false, nil
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	m.posts[p.ID] = p
	return true, nil
}

// DeletePost removes a post when id and owner both match.
func (m *MemoryStore) DeletePost(id, ownerID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok || p.OwnerID != ownerID {
		return false, nil
	}
	delete(m.posts, id)
	m.postOrder = removeID(m.postOrder, id)
	return true, nil
}

// ListPostsByOwner returns the owner's posts in insertion order.
func (m *MemoryStore) ListPostsByOwner(ownerID string) ([]domain.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Post, 0, len(m.postOrder))
	for _, id := range m.postOrder {
		if p, ok := m.posts[id]; ok && p.OwnerID == ownerID {
			res = append(res, p)
		}
	}
	return res, nil
}

// UpsertAccount inserts or replaces the account for (owner, platform),
// keeping the original id and creation time on replacement.
func (m *MemoryStore) UpsertAccount(a domain.SocialAccount) (domain.SocialAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := a.OwnerID + "|" + string(a.Platform)
	if existingID, ok := m.accountKeys[key]; ok {
		existing := m.accounts[existingID]
		a.ID = existing.ID
		a.CreatedAt = existing.CreatedAt
		a.UpdatedAt = time.Now().UTC()
		m.accounts[existingID] = a
		return a, nil
	}
	if _, taken := m.accounts[a.ID]; taken {
		return domain.SocialAccount{}, ErrAccountIDConflict
	}
	m.accountKeys[key] = a.ID
	m.accounts[a.ID] = a
	m.accountOrder = append(m.accountOrder, a.ID)
	return a, nil
}

// DeleteAccount removes an account when id and owner both match.
func (m *MemoryStore) DeleteAccount(id, ownerID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok || a.OwnerID != ownerID {
		return false, nil
	}
	delete(m.accounts, id)
	delete(m.accountKeys, a.OwnerID+"|"+string(a.Platform))
	m.accountOrder = removeID(m.accountOrder, id)
	return true, nil
}

// ListAccountsByOwner returns the owner's accounts in insertion order.
func (m *MemoryStore) ListAccountsByOwner(ownerID string) ([]domain.SocialAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.SocialAccount, 0, len(m.accountOrder))
	for _, id := range m.accountOrder {
		if a, ok := m.accounts[id]; ok && a.OwnerID == ownerID {
			res = append(res, a)
		}
	}
	return res, nil
}

func removeID(ids []string, id string) []string {
	filtered := ids[:0]
	for _, item := range ids {
		if item != id {
			filtered = append(filtered, item)
		}
	}
	return filtered
}
