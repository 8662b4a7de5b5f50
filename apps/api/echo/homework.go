package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/agenda/core"
	"github.com/trezcool/agenda/core/homework"
)

var errUserIDRequired = core.NewValidationError(nil, core.FieldError{Field: "user_id", Error: "this field is required"})

type homeworkApi struct {
	svc  homework.Service
	conf *core.Config
}

func registerHomeworkAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc homework.Service, conf *core.Config) {
	api := homeworkApi{
		svc:  svc,
		conf: conf,
	}

	ag := g.Group("/assignments", jwt)
	ag.GET("", api.query)
	ag.POST("", api.create)
	ag.GET("/:id", api.retrieve)
	ag.PUT("/:id", api.update)
	ag.DELETE("/:id", api.destroy)

	tg := g.Group("/tasks", jwt)
	tg.GET("/:id", api.retrieveTask)
	tg.PUT("/:id/completion", api.toggleTask)
}

// requireCaller returns the caller id or a validation error when there is none.
func (api *homeworkApi) requireCaller(ctx echo.Context, bodyID string) (string, error) {
	if id := callerID(ctx, api.conf, bodyID); id != "" {
		return id, nil
	}
	return "", errUserIDRequired
}

// Handlers

func (api *homeworkApi) query(ctx echo.Context) error {
	userID, err := api.requireCaller(ctx, "")
	if err != nil {
		return err
	}

	assignments, err := api.svc.List(ctx.Request().Context(), bindQueryFilter(ctx), userID)
	if err != nil {
		return errors.Wrap(err, "listing assignments")
	}
	return ctx.JSON(http.StatusOK, assignments)
}

func (api *homeworkApi) create(ctx echo.Context) error {
	var data homework.NewAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}

	asgmt, err := api.svc.Create(ctx.Request().Context(), data, callerID(ctx, api.conf, ""))
	if err != nil {
		return errors.Wrap(err, "creating assignment")
	}
	return ctx.JSON(http.StatusCreated, asgmt)
}

func (api *homeworkApi) retrieve(ctx echo.Context) error {
	userID, err := api.requireCaller(ctx, "")
	if err != nil {
		return err
	}

	asgmt, err := api.svc.Get(ctx.Request().Context(), paramID(ctx, "id"), userID)
	if err != nil {
		return errors.Wrap(err, "retrieving assignment")
	}
	return ctx.JSON(http.StatusOK, asgmt)
}

func (api *homeworkApi) update(ctx echo.Context) error {
	id := paramID(ctx, "id")
	if id == 0 {
		return errHttpNotFound
	}
	var data homework.UpdateAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAssignment")
	}

	if _, err := api.svc.Update(ctx.Request().Context(), id, data); err != nil {
		return errors.Wrap(err, "updating assignment")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: msgAssignmentUpdated})
}

func (api *homeworkApi) destroy(ctx echo.Context) error {
	id := paramID(ctx, "id")
	if id == 0 {
		return errHttpNotFound
	}
	if err := api.svc.Delete(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *homeworkApi) retrieveTask(ctx echo.Context) error {
	userID, err := api.requireCaller(ctx, "")
	if err != nil {
		return err
	}

	task, err := api.svc.GetTask(ctx.Request().Context(), paramID(ctx, "id"), userID)
	if err != nil {
		return errors.Wrap(err, "retrieving task")
	}
	return ctx.JSON(http.StatusOK, task)
}

func (api *homeworkApi) toggleTask(ctx echo.Context) error {
	var data ToggleRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ToggleRequest")
	}
	userID, err := api.requireCaller(ctx, data.UserID)
	if err != nil {
		return err
	}

	mark, err := api.svc.Toggle(ctx.Request().Context(), homework.CompletionToggle{
		TaskID:      paramID(ctx, "id"),
		UserID:      userID,
		IsCompleted: data.IsCompleted,
	})
	if err != nil {
		return errors.Wrap(err, "toggling task")
	}
	return ctx.JSON(http.StatusOK, mark)
}

const (
	msgAssignmentUpdated = "assignment updated"
	msgAssignmentDeleted = "assignment deleted"
)

type ToggleRequest struct {
	UserID      string `json:"user_id"`
	IsCompleted bool   `json:"is_completed"`
}
