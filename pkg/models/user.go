package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	RoleParent = "parent"
	RoleChild  = "child"
)

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           int       `bun:",pk,nullzero" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	FamilyID     int       `json:"family_id"`
	Name         string    `bun:",nullzero" json:"name"`
	Email        string    `bun:",nullzero" json:"email"`
	PasswordHash string    `json:"-"` // Never expose password hash
	Role         string    `bun:",nullzero" json:"role"`
	IsActive     bool      `json:"is_active"`

	// Relations
	Family *Family `bun:"rel:belongs-to,join:family_id=id" json:"family,omitempty"`
}

// IsParent reports whether the user holds the parent role, which gates
// destructive operations outside the sync path.
func (u *User) IsParent() bool {
	return u.Role == RoleParent
}
