package tasks

import (
	"github.com/hearthkeep/hearth/pkg/auth"
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers task routes on a pre-configured group.
// Deletion is parent-only; children can create, edit, and complete.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB, authMiddleware *auth.Middleware) {
	h := &handler{
		taskService: NewService(db),
	}

	g.GET("", h.list)
	g.GET("/:id", h.retrieve)
	g.POST("", h.create)
	g.PATCH("/:id", h.update)
	g.POST("/:id/complete", h.complete)
	g.DELETE("/:id", h.deleteTask, authMiddleware.RequireParent)
}
