package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Family is the tenant boundary. Every syncable row carries a family ID and
// no data ever crosses families.
type Family struct {
	bun.BaseModel `bun:"table:families,alias:fam"`

	ID        int       `bun:",pk,nullzero" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Name      string    `bun:",nullzero" json:"name"`
}
