package devices

import (
	"net/http"

	"github.com/hearthkeep/hearth/pkg/auth"
	"github.com/hearthkeep/hearth/pkg/errcodes"
	"github.com/hearthkeep/hearth/pkg/models"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	deviceService *Service
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	user, ok := auth.UserFromContext(c)
	if !ok {
		return errcodes.Unauthorized("Authentication required")
	}

	devices, err := h.deviceService.ListDevices(ctx, user.FamilyID)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, struct {
		Devices []*models.Device `json:"devices"`
	}{devices}))
}
