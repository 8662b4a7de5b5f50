package tests

import (
	"context"
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/agenda/apps/api/echo"
	"github.com/trezcool/agenda/core/homework"
	"github.com/trezcool/agenda/testutil"
)

type m = map[string]interface{}

func actionTest(t *testing.T, body interface{}, userID string) httpTest {
	return httpTest{method: http.MethodPost, path: "/v1/homework", body: marshalObj(t, body), userID: userID}
}

func listFor(t *testing.T, app testApp, userID string, filter m) echoapi.ListAssignmentsResponse {
	body := m{"action": echoapi.ActionListAssignments, "user_id": userID}
	for k, v := range filter {
		body[k] = v
	}
	rec := app.serve(actionTest(t, body, ""))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp echoapi.ListAssignmentsResponse
	unmarshalBody(t, rec, &resp)
	return resp
}

// Test_actionApi_scenario walks through create, list, toggle & delete for two users.
func Test_actionApi_scenario(t *testing.T) {
	app := setup(t)
	march := m{"start_date": "2024-03-01", "end_date": "2024-03-31"}

	// create
	rec := app.serve(actionTest(t, m{
		"action":   echoapi.ActionCreateAssignment,
		"title":    "Essay",
		"subject":  "English",
		"due_date": "2024-03-10",
		"tasks":    []string{"Draft intro", "Write body"},
	}, "u1"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created echoapi.CreateAssignmentResponse
	unmarshalBody(t, rec, &created)
	require.NotZero(t, created.ID)

	resp := listFor(t, app, "u1", march)
	assert.Equal(t, "u1", resp.UserID)
	require.Len(t, resp.Assignments, 1)
	asgmt := resp.Assignments[0]
	assert.Equal(t, created.ID, asgmt.ID)
	assert.Equal(t, "2024-03-10", asgmt.DueDate.String())
	assert.Equal(t, "u1", asgmt.CreatedBy.String)
	require.Len(t, asgmt.Tasks, 2)
	task1, task2 := asgmt.Tasks[0], asgmt.Tasks[1]
	assert.Equal(t, "Draft intro", task1.Description)
	assert.False(t, task1.IsCompleted)
	assert.False(t, task2.IsCompleted)

	// toggle
	tt := actionTest(t, m{"action": echoapi.ActionToggleTask, "task_id": task1.ID, "is_completed": true}, "u1")
	tt.wantCode = http.StatusOK
	tt.wantData = marshalObj(t, m{"task_id": task1.ID, "is_completed": true})
	checkCodeAndData(t, tt, app.serve(tt))

	forU1 := listFor(t, app, "u1", march).Assignments[0].Tasks
	assert.True(t, forU1[0].IsCompleted)
	assert.False(t, forU1[1].IsCompleted)
	forU2 := listFor(t, app, "u2", march).Assignments[0].Tasks
	assert.False(t, forU2[0].IsCompleted)
	assert.False(t, forU2[1].IsCompleted)

	// delete
	tt = actionTest(t, m{"action": echoapi.ActionDeleteAssignment, "id": created.ID}, "")
	tt.wantCode = http.StatusOK
	tt.wantData = marshalObj(t, echoapi.SuccessResponse{Success: "assignment deleted"})
	checkCodeAndData(t, tt, app.serve(tt))

	assert.Empty(t, listFor(t, app, "u1", march).Assignments)
	assert.Empty(t, listFor(t, app, "u2", march).Assignments)

	tt = httpTest{method: http.MethodGet, path: "/v1/tasks/" + strconv.FormatInt(task1.ID, 10), userID: "u1", wantCode: http.StatusNotFound}
	tt.wantData = marshalObj(t, httpErr{Error: homework.ErrTaskNotFound.Error()})
	checkCodeAndData(t, tt, app.serve(tt))
}

func Test_actionApi_update(t *testing.T) {
	app := setup(t)
	a := testutil.CreateAssignment(t, app.hwRepo, "Lab", homework.NewDate(2024, 3, 1), "measure", "write up")
	_, err := app.hwRepo.UpsertCompletionMark(context.Background(), homework.CompletionMark{TaskID: a.Tasks[0].ID, UserID: "u1", IsCompleted: true})
	require.NoError(t, err)

	updated := marshalObj(t, echoapi.SuccessResponse{Success: "assignment updated"})
	tests := []httpTest{
		{
			name:     "update",
			body:     marshalObj(t, m{"action": "update_assignment", "id": a.ID, "title": "Lab 2", "subject": "Chemistry", "due_date": "2024-03-02", "tasks": []string{"measure", "graph"}}),
			wantCode: http.StatusOK,
			wantData: updated,
		},
		{
			name:     "missing id is a no-op",
			body:     marshalObj(t, m{"action": "update_assignment", "id": a.ID + 100, "title": "Ghost", "subject": "x", "due_date": "2024-03-02"}),
			wantCode: http.StatusOK,
			wantData: updated,
		},
		{
			name:     "id required",
			body:     marshalObj(t, m{"action": "update_assignment", "title": "Ghost", "subject": "x", "due_date": "2024-03-02"}),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, m{"id": "this field is required"}),
		},
		{
			name:     "validation",
			body:     marshalObj(t, m{"action": "update_assignment", "id": a.ID, "title": " ", "subject": "x", "due_date": "02/03/2024"}),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, m{"title": "this field is required", "due_date": "date must be in the YYYY-MM-DD format"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/homework"

		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, app.serve(tt))
		})
	}

	got := listFor(t, app, "u1", m{"month": "2024-03"}).Assignments
	require.Len(t, got, 1)
	assert.Equal(t, "Lab 2", got[0].Title)
	require.Len(t, got[0].Tasks, 2)
	assert.Equal(t, a.Tasks[0].ID, got[0].Tasks[0].ID)
	assert.True(t, got[0].Tasks[0].IsCompleted)
	assert.Equal(t, "graph", got[0].Tasks[1].Description)
}

func Test_actionApi_errors(t *testing.T) {
	app := setup(t)
	a := testutil.CreateAssignment(t, app.hwRepo, "Lab", homework.NewDate(2024, 3, 1), "measure")

	tests := []httpTest{
		{name: "unknown action", body: marshalObj(t, m{"action": "drop_tables"}), wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "unknown action"})},
		{name: "no action", body: marshalObj(t, m{"user_id": "u1"}), wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "unknown action"})},
		{name: "malformed body", body: []byte(`{"action": `), wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "malformed request body"})},
		{
			name:     "create: required fields",
			body:     marshalObj(t, m{"action": "create_assignment", "tasks": []string{"a"}}),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, m{"title": "this field is required", "subject": "this field is required", "due_date": "this field is required"}),
		},
		{
			name:     "list: user id required",
			body:     marshalObj(t, m{"action": "list_assignments"}),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, m{"user_id": "this field is required"}),
		},
		{
			name:     "list: lone start date",
			body:     marshalObj(t, m{"action": "list_assignments", "user_id": "u1", "start_date": "2024-03-01"}),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, m{"end_date": "this field is required"}),
		},
		{
			name:     "list: inverted range",
			body:     marshalObj(t, m{"action": "list_assignments", "user_id": "u1", "start_date": "2024-03-02", "end_date": "2024-03-01"}),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, m{"end_date": "end_date cannot be before start_date"}),
		},
		{
			name:     "toggle: user id required",
			body:     marshalObj(t, m{"action": "toggle_task", "task_id": a.Tasks[0].ID, "is_completed": true}),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, m{"user_id": "this field is required"}),
		},
		{
			name:     "toggle: unknown task",
			body:     marshalObj(t, m{"action": "toggle_task", "user_id": "u1", "task_id": a.Tasks[0].ID + 100, "is_completed": true}),
			wantCode: http.StatusNotFound,
			wantData: marshalObj(t, httpErr{Error: homework.ErrTaskNotFound.Error()}),
		},
		{
			name:     "delete: id required",
			body:     marshalObj(t, m{"action": "delete_assignment"}),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, m{"id": "this field is required"}),
		},
		{
			name:     "delete: missing id is a no-op",
			body:     marshalObj(t, m{"action": "delete_assignment", "id": a.ID + 100}),
			wantCode: http.StatusOK,
			wantData: marshalObj(t, echoapi.SuccessResponse{Success: "assignment deleted"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/homework"

		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, app.serve(tt))
		})
	}

	// nothing was written by the failed calls
	var cnt int
	require.NoError(t, app.db.Get(&cnt, "SELECT COUNT(*) FROM assignment"))
	assert.Equal(t, 1, cnt)
	require.NoError(t, app.db.Get(&cnt, "SELECT COUNT(*) FROM completion_mark"))
	assert.Equal(t, 0, cnt)
}

func Test_actionApi_identity(t *testing.T) {
	app := setup(t)
	a := testutil.CreateAssignment(t, app.hwRepo, "Lab", homework.NewDate(2024, 3, 1), "measure")
	toggle := func(userID string) []byte {
		return marshalObj(t, m{"action": "toggle_task", "user_id": userID, "task_id": a.Tasks[0].ID, "is_completed": true})
	}
	usr := testutil.CreateUser(t, app.usrRepo, "awe", "correct-horse", true)

	tests := []struct {
		httpTest
		wantUser string
	}{
		{httpTest: httpTest{name: "body", path: "/v1/homework", body: toggle("from-body"), userID: "from-header"}, wantUser: "from-body"},
		{httpTest: httpTest{name: "header", path: "/v1/homework", body: toggle(""), userID: "from-header"}, wantUser: "from-header"},
		{httpTest: httpTest{name: "query", path: "/v1/homework?user_id=from-query", body: toggle("")}, wantUser: "from-query"},
		{httpTest: httpTest{name: "jwt wins", path: "/v1/homework", body: toggle("from-body"), token: getToken(t, app.conf, usr)}, wantUser: usr.ID},
		{
			httpTest: httpTest{
				name: "action in query", path: "/v1/homework?action=toggle_task", userID: "from-action-query",
				body: marshalObj(t, m{"task_id": a.Tasks[0].ID, "is_completed": true}),
			},
			wantUser: "from-action-query",
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost

		t.Run(tt.name, func(t *testing.T) {
			rec := app.serve(tt.httpTest)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			task, err := app.hwRepo.GetTask(context.Background(), a.Tasks[0].ID, tt.wantUser)
			require.NoError(t, err)
			assert.True(t, task.IsCompleted)
		})
	}

	t.Run("invalid jwt", func(t *testing.T) {
		tt := httpTest{method: http.MethodPost, path: "/v1/homework", body: toggle("u1"), token: "lol", wantCode: http.StatusUnauthorized}
		checkCodeAndData(t, tt, app.serve(tt))
	})
}

func Test_actionApi_sessionMode(t *testing.T) {
	app := setup(t, sessionMode)
	usr := testutil.CreateUser(t, app.usrRepo, "awe", "correct-horse", true)

	tt := actionTest(t, m{"action": "list_assignments", "user_id": "u1"}, "u1")
	tt.wantCode = http.StatusUnauthorized
	tt.wantData = marshalObj(t, errMissingToken)
	checkCodeAndData(t, tt, app.serve(tt))

	tt = actionTest(t, m{"action": "list_assignments"}, "")
	tt.token = getToken(t, app.conf, usr)
	rec := app.serve(tt)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp echoapi.ListAssignmentsResponse
	unmarshalBody(t, rec, &resp)
	assert.Equal(t, usr.ID, resp.UserID)
	assert.Empty(t, resp.Assignments)
}

func Test_actionApi_storeError(t *testing.T) {
	app := setup(t)
	require.NoError(t, app.db.Close())

	tt := actionTest(t, m{"action": "list_assignments"}, "u1")
	tt.wantCode = http.StatusInternalServerError
	tt.wantData = marshalObj(t, httpErr{Error: "Internal Server Error"})
	rec := app.serve(tt)
	checkCodeAndData(t, tt, rec)

	reqID := rec.Header().Get("X-Request-Id")
	require.NotEmpty(t, reqID)
	logs := app.logs.String()
	assert.Contains(t, logs, "Internal Server Error [")
	for _, extra := range []string{"action=list_assignments", "caller_id=u1", "method=POST", "path=/v1/homework", "request_id=" + reqID} {
		assert.Contains(t, logs, extra)
	}
}
