package events

import (
	"net/http"

	"github.com/hearthkeep/hearth/pkg/auth"
	"github.com/hearthkeep/hearth/pkg/errcodes"
	"github.com/hearthkeep/hearth/pkg/models"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	eventService *Service
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListEventsQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	user, ok := auth.UserFromContext(c)
	if !ok {
		return errcodes.Unauthorized("Authentication required")
	}

	events, err := h.eventService.ListEvents(ctx, ListEventsOptions{
		FamilyID: user.FamilyID,
		From:     params.From,
		To:       params.To,
		Limit:    &params.Limit,
		Offset:   &params.Offset,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, struct {
		Events []*models.Event `json:"events"`
	}{events}))
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()

	user, ok := auth.UserFromContext(c)
	if !ok {
		return errcodes.Unauthorized("Authentication required")
	}

	event, err := h.eventService.RetrieveEvent(ctx, user.FamilyID, c.Param("id"))
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, event))
}

func (h *handler) create(c echo.Context) error {
	ctx := c.Request().Context()

	payload := CreateEventPayload{}
	if err := c.Bind(&payload); err != nil {
		return errors.WithStack(err)
	}

	user, ok := auth.UserFromContext(c)
	if !ok {
		return errcodes.Unauthorized("Authentication required")
	}

	event, err := h.eventService.CreateEvent(ctx, CreateEventOptions{
		FamilyID: user.FamilyID,
		Title:    payload.Title,
		Location: payload.Location,
		StartsAt: payload.StartsAt,
		EndsAt:   payload.EndsAt,
		AllDay:   payload.AllDay,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusCreated, event))
}

func (h *handler) update(c echo.Context) error {
	ctx := c.Request().Context()

	payload := UpdateEventPayload{}
	if err := c.Bind(&payload); err != nil {
		return errors.WithStack(err)
	}

	user, ok := auth.UserFromContext(c)
	if !ok {
		return errcodes.Unauthorized("Authentication required")
	}

	event, err := h.eventService.UpdateEvent(ctx, UpdateEventOptions{
		FamilyID: user.FamilyID,
		ID:       c.Param("id"),
		Title:    payload.Title,
		Location: payload.Location,
		StartsAt: payload.StartsAt,
		EndsAt:   payload.EndsAt,
		AllDay:   payload.AllDay,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, event))
}

func (h *handler) deleteEvent(c echo.Context) error {
	ctx := c.Request().Context()

	user, ok := auth.UserFromContext(c)
	if !ok {
		return errcodes.Unauthorized("Authentication required")
	}

	if err := h.eventService.DeleteEvent(ctx, user.FamilyID, c.Param("id")); err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.NoContent(http.StatusNoContent))
}
