package echoapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/agenda/core"
	"github.com/trezcool/agenda/core/homework"
)

// Actions of the action-addressed endpoint.
const (
	ActionCreateAssignment = "create_assignment"
	ActionListAssignments  = "list_assignments"
	ActionUpdateAssignment = "update_assignment"
	ActionDeleteAssignment = "delete_assignment"
	ActionToggleTask       = "toggle_task"
)

const contextActionKey = "action"

type actionApi struct {
	homeworkApi
}

func registerActionAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc homework.Service, conf *core.Config) {
	api := actionApi{homeworkApi{svc: svc, conf: conf}}
	g.POST("/homework", api.dispatch, jwt)
}

type (
	// ActionRequest is the envelope shared by every action; the rest of the body depends on Action.
	ActionRequest struct {
		Action string `json:"action"`
		UserID string `json:"user_id"`
	}

	CreateAssignmentRequest struct {
		homework.NewAssignment
	}

	CreateAssignmentResponse struct {
		ID int64 `json:"id"`
	}

	ListAssignmentsRequest struct {
		homework.QueryFilter
	}

	ListAssignmentsResponse struct {
		Assignments []homework.Assignment `json:"assignments"`
		UserID      string                `json:"user_id"`
	}

	UpdateAssignmentRequest struct {
		ID int64 `json:"id"`
		homework.UpdateAssignment
	}

	DeleteAssignmentRequest struct {
		ID int64 `json:"id"`
	}

	ToggleTaskRequest struct {
		TaskID      int64 `json:"task_id"`
		IsCompleted bool  `json:"is_completed"`
	}
)

// dispatch reads the body once, then decodes it again into the request type of the action.
// The action is taken from the body, or from the `action` query param.
func (api *actionApi) dispatch(ctx echo.Context) error {
	body, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return errors.Wrap(err, "reading request body")
	}

	var env ActionRequest
	if err = decodeBody(body, &env); err != nil {
		return err
	}
	if env.Action == "" {
		env.Action = ctx.QueryParam("action")
	}

	action := core.CleanString(env.Action, true /* lower */)
	ctx.Set(contextActionKey, action)

	var handler func(echo.Context, []byte, string) error
	switch action {
	case ActionCreateAssignment:
		handler = api.createAssignment
	case ActionListAssignments:
		handler = api.listAssignments
	case ActionUpdateAssignment:
		handler = api.updateAssignment
	case ActionDeleteAssignment:
		handler = api.deleteAssignment
	case ActionToggleTask:
		handler = api.toggleTask
	default:
		return errUnknownAction
	}
	return handler(ctx, body, env.UserID)
}

func decodeBody(body []byte, dest interface{}) error {
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return errMalformedBody
	}
	return nil
}

func (api *actionApi) createAssignment(ctx echo.Context, body []byte, bodyUserID string) error {
	var data CreateAssignmentRequest
	if err := decodeBody(body, &data); err != nil {
		return err
	}

	asgmt, err := api.svc.Create(ctx.Request().Context(), data.NewAssignment, callerID(ctx, api.conf, bodyUserID))
	if err != nil {
		return errors.Wrap(err, "creating assignment")
	}
	return ctx.JSON(http.StatusCreated, CreateAssignmentResponse{ID: asgmt.ID})
}

func (api *actionApi) listAssignments(ctx echo.Context, body []byte, bodyUserID string) error {
	var data ListAssignmentsRequest
	if err := decodeBody(body, &data); err != nil {
		return err
	}
	userID, err := api.requireCaller(ctx, bodyUserID)
	if err != nil {
		return err
	}

	assignments, err := api.svc.List(ctx.Request().Context(), data.QueryFilter, userID)
	if err != nil {
		return errors.Wrap(err, "listing assignments")
	}
	return ctx.JSON(http.StatusOK, ListAssignmentsResponse{Assignments: assignments, UserID: userID})
}

func (api *actionApi) updateAssignment(ctx echo.Context, body []byte, _ string) error {
	var data UpdateAssignmentRequest
	if err := decodeBody(body, &data); err != nil {
		return err
	}

	if _, err := api.svc.Update(ctx.Request().Context(), data.ID, data.UpdateAssignment); err != nil {
		return errors.Wrap(err, "updating assignment")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: msgAssignmentUpdated})
}

func (api *actionApi) deleteAssignment(ctx echo.Context, body []byte, _ string) error {
	var data DeleteAssignmentRequest
	if err := decodeBody(body, &data); err != nil {
		return err
	}

	if err := api.svc.Delete(ctx.Request().Context(), data.ID); err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: msgAssignmentDeleted})
}

func (api *actionApi) toggleTask(ctx echo.Context, body []byte, bodyUserID string) error {
	var data ToggleTaskRequest
	if err := decodeBody(body, &data); err != nil {
		return err
	}
	userID, err := api.requireCaller(ctx, bodyUserID)
	if err != nil {
		return err
	}

	mark, err := api.svc.Toggle(ctx.Request().Context(), homework.CompletionToggle{
		TaskID:      data.TaskID,
		UserID:      userID,
		IsCompleted: data.IsCompleted,
	})
	if err != nil {
		return errors.Wrap(err, "toggling task")
	}
	return ctx.JSON(http.StatusOK, mark)
}
