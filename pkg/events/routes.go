package events

import (
	"github.com/hearthkeep/hearth/pkg/auth"
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers event routes on a pre-configured group.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB, authMiddleware *auth.Middleware) {
	h := &handler{
		eventService: NewService(db),
	}

	g.GET("", h.list)
	g.GET("/:id", h.retrieve)
	g.POST("", h.create)
	g.PATCH("/:id", h.update)
	g.DELETE("/:id", h.deleteEvent, authMiddleware.RequireParent)
}
