package subscription

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// RoleChecker answers whether a user holds a role for an owner.
type RoleChecker interface {
	HasRole(ctx context.Context, userID, ownerID uuid.UUID, role Role) (bool, error)
}

// RoleCheckerFunc adapts a function to RoleChecker.
type RoleCheckerFunc func(ctx context.Context, userID, ownerID uuid.UUID, role Role) (bool, error)

func (f RoleCheckerFunc) HasRole(ctx context.Context, userID, ownerID uuid.UUID, role Role) (bool, error) {
	return f(ctx, userID, ownerID, role)
}

// SelfOwnership grants RoleOwner when the user is the owner identity itself.
// It fits deployments where subscriptions belong to users, not organizations.
var SelfOwnership RoleChecker = RoleCheckerFunc(func(_ context.Context, userID, ownerID uuid.UUID, role Role) (bool, error) {
	return role == RoleOwner && userID != uuid.Nil && userID == ownerID, nil
})

type membership struct {
	userID  uuid.UUID
	ownerID uuid.UUID
}

// MemoryRoles is an in-memory RoleChecker.
type MemoryRoles struct {
	mu    sync.RWMutex
	roles map[membership]map[Role]struct{}
}

func NewMemoryRoles() *MemoryRoles {
	return &MemoryRoles{roles: make(map[membership]map[Role]struct{})}
}

// Grant gives userID the role for ownerID.
func (m *MemoryRoles) Grant(userID, ownerID uuid.UUID, role Role) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := membership{userID: userID, ownerID: ownerID}
	if m.roles[key] == nil {
		m.roles[key] = make(map[Role]struct{})
	}
	m.roles[key][role] = struct{}{}
}

// Revoke removes the role.
func (m *MemoryRoles) Revoke(userID, ownerID uuid.UUID, role Role) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.roles[membership{userID: userID, ownerID: ownerID}], role)
}

func (m *MemoryRoles) HasRole(_ context.Context, userID, ownerID uuid.UUID, role Role) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.roles[membership{userID: userID, ownerID: ownerID}][role]
	return ok, nil
}
