package gamification

import (
	"net/http"

	"github.com/hearthkeep/hearth/pkg/auth"
	"github.com/hearthkeep/hearth/pkg/errcodes"
	"github.com/hearthkeep/hearth/pkg/models"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	gamificationService *Service
}

func (h *handler) listLedger(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListLedgerQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	user, ok := auth.UserFromContext(c)
	if !ok {
		return errcodes.Unauthorized("Authentication required")
	}

	entries, err := h.gamificationService.ListLedger(ctx, ListLedgerOptions{
		FamilyID: user.FamilyID,
		UserID:   params.UserID,
		Limit:    &params.Limit,
		Offset:   &params.Offset,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, struct {
		Entries []*models.PointsEntry `json:"entries"`
	}{entries}))
}

func (h *handler) listStreaks(c echo.Context) error {
	ctx := c.Request().Context()

	user, ok := auth.UserFromContext(c)
	if !ok {
		return errcodes.Unauthorized("Authentication required")
	}

	streaks, err := h.gamificationService.ListStreaks(ctx, user.FamilyID)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, struct {
		Streaks []*models.UserStreak `json:"streaks"`
	}{streaks}))
}

func (h *handler) listBadges(c echo.Context) error {
	ctx := c.Request().Context()

	user, ok := auth.UserFromContext(c)
	if !ok {
		return errcodes.Unauthorized("Authentication required")
	}

	badges, err := h.gamificationService.ListBadges(ctx, user.FamilyID)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, struct {
		Badges []*models.Badge `json:"badges"`
	}{badges}))
}
