package gamification

import (
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers gamification routes on a pre-configured
// group.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB) {
	h := &handler{
		gamificationService: NewService(db),
	}

	g.GET("/ledger", h.listLedger)
	g.GET("/streaks", h.listStreaks)
	g.GET("/badges", h.listBadges)
}
