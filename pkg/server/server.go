package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/hearthkeep/hearth/pkg/auth"
	"github.com/hearthkeep/hearth/pkg/binder"
	"github.com/hearthkeep/hearth/pkg/config"
	"github.com/hearthkeep/hearth/pkg/devices"
	"github.com/hearthkeep/hearth/pkg/errcodes"
	"github.com/hearthkeep/hearth/pkg/events"
	"github.com/hearthkeep/hearth/pkg/gamification"
	"github.com/hearthkeep/hearth/pkg/sync"
	"github.com/hearthkeep/hearth/pkg/tasks"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/echo/v4/health"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/robinjoseph08/golib/echo/v4/middleware/recovery"
	"github.com/uptrace/bun"
)

func New(cfg *config.Config, db *bun.DB) (*http.Server, error) {
	e := echo.New()

	b, err := binder.New()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	e.Binder = b

	e.Use(logger.Middleware())
	e.Use(recovery.Middleware())
	e.Use(middleware.CORS())

	health.RegisterRoutes(e)

	// Register auth routes and get the auth service
	authService := auth.RegisterRoutes(e, db, cfg.JWTSecret)
	authMiddleware := auth.NewMiddleware(authService)

	registerProtectedRoutes(e, db, cfg, authMiddleware)

	echo.NotFoundHandler = notFoundHandler
	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
		Handler:           e,
		ReadHeaderTimeout: 3 * time.Second,
	}

	return srv, nil
}

// registerProtectedRoutes registers every route behind authentication. All of
// them are tenant-scoped through the family loaded by the middleware.
func registerProtectedRoutes(e *echo.Echo, db *bun.DB, cfg *config.Config, authMiddleware *auth.Middleware) {
	// The sync endpoint, the reason this server exists.
	syncGroup := e.Group("/sync")
	syncGroup.Use(authMiddleware.Authenticate)
	sync.RegisterRoutesWithGroup(syncGroup, db, cfg)

	tasksGroup := e.Group("/tasks")
	tasksGroup.Use(authMiddleware.Authenticate)
	tasks.RegisterRoutesWithGroup(tasksGroup, db, authMiddleware)

	eventsGroup := e.Group("/events")
	eventsGroup.Use(authMiddleware.Authenticate)
	events.RegisterRoutesWithGroup(eventsGroup, db, authMiddleware)

	gamificationGroup := e.Group("/gamification")
	gamificationGroup.Use(authMiddleware.Authenticate)
	gamification.RegisterRoutesWithGroup(gamificationGroup, db)

	devicesGroup := e.Group("/devices")
	devicesGroup.Use(authMiddleware.Authenticate)
	devices.RegisterRoutesWithGroup(devicesGroup, db)
}

func notFoundHandler(c echo.Context) error {
	c.SetPath("/:path")
	return errcodes.NotFound("Page")
}
