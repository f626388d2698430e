package auth

import (
	"github.com/hearthkeep/hearth/pkg/errcodes"
	"github.com/hearthkeep/hearth/pkg/models"
	"github.com/labstack/echo/v4"
)

// Context keys for storing user data.
const (
	ContextKeyUserID   = "user_id"
	ContextKeyFamilyID = "family_id"
	ContextKeyUser     = "user"
)

// Middleware provides authentication middleware.
type Middleware struct {
	authService *Service
}

// NewMiddleware creates a new auth middleware.
func NewMiddleware(authService *Service) *Middleware {
	return &Middleware{
		authService: authService,
	}
}

// Authenticate extracts and validates the JWT from the cookie. If valid, it
// verifies the user is still active and adds the user and its family (tenant)
// to the context. If not authenticated, it returns 401.
func (m *Middleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		cookie, err := c.Cookie(CookieName)
		if err != nil || cookie.Value == "" {
			return errcodes.Unauthorized("Authentication required")
		}

		claims, err := m.authService.ValidateToken(cookie.Value)
		if err != nil {
			return errcodes.Unauthorized("Invalid or expired token")
		}

		user, err := m.authService.GetUserByID(ctx, claims.UserID)
		if err != nil {
			return errcodes.Unauthorized("User not found or inactive")
		}

		c.Set(ContextKeyUserID, user.ID)
		c.Set(ContextKeyFamilyID, user.FamilyID)
		c.Set(ContextKeyUser, user)

		return next(c)
	}
}

// RequireParent returns middleware that rejects users without the parent role.
// Must be used after Authenticate middleware.
func (m *Middleware) RequireParent(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, ok := c.Get(ContextKeyUser).(*models.User)
		if !ok {
			return errcodes.Unauthorized("Authentication required")
		}

		if !user.IsParent() {
			return errcodes.Forbidden("This action")
		}

		return next(c)
	}
}

// UserFromContext returns the authenticated user placed in the echo context by
// Authenticate. The second return value is false when no user is present.
func UserFromContext(c echo.Context) (*models.User, bool) {
	user, ok := c.Get(ContextKeyUser).(*models.User)
	return user, ok
}
