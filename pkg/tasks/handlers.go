package tasks

import (
	"net/http"

	"github.com/hearthkeep/hearth/pkg/auth"
	"github.com/hearthkeep/hearth/pkg/errcodes"
	"github.com/hearthkeep/hearth/pkg/models"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	taskService *Service
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListTasksQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	user, ok := auth.UserFromContext(c)
	if !ok {
		return errcodes.Unauthorized("Authentication required")
	}

	tasks, err := h.taskService.ListTasks(ctx, ListTasksOptions{
		FamilyID:   user.FamilyID,
		Status:     params.Status,
		AssignedTo: params.AssignedTo,
		Limit:      &params.Limit,
		Offset:     &params.Offset,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, struct {
		Tasks []*models.Task `json:"tasks"`
	}{tasks}))
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()

	user, ok := auth.UserFromContext(c)
	if !ok {
		return errcodes.Unauthorized("Authentication required")
	}

	task, err := h.taskService.RetrieveTask(ctx, user.FamilyID, c.Param("id"))
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, task))
}

func (h *handler) create(c echo.Context) error {
	ctx := c.Request().Context()

	payload := CreateTaskPayload{}
	if err := c.Bind(&payload); err != nil {
		return errors.WithStack(err)
	}

	user, ok := auth.UserFromContext(c)
	if !ok {
		return errcodes.Unauthorized("Authentication required")
	}

	task, err := h.taskService.CreateTask(ctx, CreateTaskOptions{
		FamilyID:   user.FamilyID,
		Title:      payload.Title,
		Notes:      payload.Notes,
		AssignedTo: payload.AssignedTo,
		DueDate:    payload.DueDate,
		Points:     payload.Points,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusCreated, task))
}

func (h *handler) update(c echo.Context) error {
	ctx := c.Request().Context()

	payload := UpdateTaskPayload{}
	if err := c.Bind(&payload); err != nil {
		return errors.WithStack(err)
	}

	user, ok := auth.UserFromContext(c)
	if !ok {
		return errcodes.Unauthorized("Authentication required")
	}

	task, err := h.taskService.UpdateTask(ctx, UpdateTaskOptions{
		FamilyID:   user.FamilyID,
		ID:         c.Param("id"),
		Version:    payload.Version,
		Title:      payload.Title,
		Notes:      payload.Notes,
		AssignedTo: payload.AssignedTo,
		DueDate:    payload.DueDate,
		Points:     payload.Points,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, task))
}

func (h *handler) complete(c echo.Context) error {
	ctx := c.Request().Context()

	user, ok := auth.UserFromContext(c)
	if !ok {
		return errcodes.Unauthorized("Authentication required")
	}

	task, err := h.taskService.CompleteTask(ctx, user.FamilyID, c.Param("id"))
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, task))
}

func (h *handler) deleteTask(c echo.Context) error {
	ctx := c.Request().Context()

	user, ok := auth.UserFromContext(c)
	if !ok {
		return errcodes.Unauthorized("Authentication required")
	}

	if err := h.taskService.DeleteTask(ctx, user.FamilyID, c.Param("id")); err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.NoContent(http.StatusNoContent))
}
