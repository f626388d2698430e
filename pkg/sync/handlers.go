package sync

import (
	"net/http"

	"github.com/hearthkeep/hearth/pkg/auth"
	"github.com/hearthkeep/hearth/pkg/errcodes"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	syncService *Service
}

func (h *handler) sync(c echo.Context) error {
	ctx := c.Request().Context()

	user, ok := auth.UserFromContext(c)
	if !ok {
		return errcodes.Unauthorized("Authentication required")
	}

	req := &SyncRequest{}
	if err := c.Bind(req); err != nil {
		return errors.WithStack(err)
	}

	resp, err := h.syncService.Sync(ctx, user.FamilyID, user.ID, req)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}
