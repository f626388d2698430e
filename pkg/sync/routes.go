package sync

import (
	"github.com/hearthkeep/hearth/pkg/config"
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers sync routes on a pre-configured group.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB, cfg *config.Config) {
	h := &handler{
		syncService: NewService(db, cfg),
	}

	g.POST("", h.sync)
}
