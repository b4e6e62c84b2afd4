// Package manager holds staff members: the people who run use cases and
// appear as the reporter in audit records.
package manager

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/polos-ead/academic-records/internal/domain/shared"
)

// Manager is a staff account. Role is never RoleStudent.
type Manager struct {
	ID        string
	Name      shared.Name
	Email     shared.Email
	Role      shared.Role
	CreatedAt time.Time
}

// NewManager builds a staff account.
func NewManager(name shared.Name, email shared.Email, role shared.Role) (*Manager, error) {
	if !shared.StaffOnly.Allows(shared.Actor{Role: role}) {
		return nil, shared.InvalidField("manager", "NewManager", "role")
	}
	if name == "" || email == "" {
		return nil, shared.InvalidField("manager", "NewManager", "name")
	}
	return &Manager{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Repository stores managers. Lookups return (nil, nil) when nothing matches.
type Repository interface {
	FindByID(ctx context.Context, id string) (*Manager, error)
	FindByEmail(ctx context.Context, email shared.Email) (*Manager, error)
	Create(ctx context.Context, m *Manager) error
}
