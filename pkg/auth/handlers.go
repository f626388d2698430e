package auth

import (
	"net/http"
	"time"

	"github.com/hearthkeep/hearth/pkg/errcodes"
	"github.com/hearthkeep/hearth/pkg/models"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

const (
	// CookieName is the name of the session cookie.
	CookieName = "hearth_session"
	// CookieMaxAge matches the token expiry.
	CookieMaxAge = TokenExpiry
)

type handler struct {
	authService *Service
}

// MeResponse describes the authenticated user.
type MeResponse struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	FamilyID   int    `json:"family_id"`
	FamilyName string `json:"family_name,omitempty"`
}

func buildMeResponse(user *models.User) MeResponse {
	resp := MeResponse{
		ID:       user.ID,
		Name:     user.Name,
		Email:    user.Email,
		Role:     user.Role,
		FamilyID: user.FamilyID,
	}
	if user.Family != nil {
		resp.FamilyName = user.Family.Name
	}
	return resp
}

func sessionCookie(c echo.Context, token string, maxAge time.Duration) *http.Cookie {
	seconds := int(maxAge.Seconds())
	if token == "" {
		seconds = -1
	}
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   seconds,
		HttpOnly: true,
		Secure:   c.Request().TLS != nil || c.Request().Header.Get("X-Forwarded-Proto") == "https",
		SameSite: http.SameSiteLaxMode,
	}
}

// login handles user login.
func (h *handler) login(c echo.Context) error {
	ctx := c.Request().Context()

	params := LoginPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	user, err := h.authService.Authenticate(ctx, params.Email, params.Password)
	if err != nil {
		return err
	}

	token, err := h.authService.GenerateToken(user)
	if err != nil {
		return errors.WithStack(err)
	}

	c.SetCookie(sessionCookie(c, token, CookieMaxAge))

	return c.JSON(http.StatusOK, buildMeResponse(user))
}

// logout clears the session cookie.
func (h *handler) logout(c echo.Context) error {
	c.SetCookie(sessionCookie(c, "", 0))
	return c.JSON(http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// me returns the current authenticated user's info.
func (h *handler) me(c echo.Context) error {
	ctx := c.Request().Context()

	cookie, err := c.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return errcodes.Unauthorized("Not authenticated")
	}

	claims, err := h.authService.ValidateToken(cookie.Value)
	if err != nil {
		return errcodes.Unauthorized("Invalid or expired token")
	}

	user, err := h.authService.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return errcodes.Unauthorized("User not found or inactive")
	}

	return c.JSON(http.StatusOK, buildMeResponse(user))
}
