package logsvc

import (
	"bytes"
	"errors"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/agenda/core"
	"github.com/trezcool/agenda/core/user"
)

func newTestLogger(buf *bytes.Buffer) *RollbarLogger {
	logger := NewRollbarLogger(log.New(buf, "", 0), &core.Config{Env: "TEST", Build: "test"})
	logger.Enable(false)
	return logger
}

func TestRollbarLogger_parse(t *testing.T) {
	logger := newTestLogger(new(bytes.Buffer)).With(map[string]interface{}{ExtraComponent: "api"})
	storeErr := errors.New("store down")

	tests := []struct {
		name       string
		args       []interface{}
		wantErr    error
		wantExtras map[string]interface{}
		wantOther  []interface{}
	}{
		{
			name:       "fields only",
			wantExtras: map[string]interface{}{ExtraComponent: "api"},
		},
		{
			name:       "registered user is not an extra",
			args:       []interface{}{storeErr, user.User{ID: "42", Username: "awe"}, user.User{ID: "43"}},
			wantErr:    storeErr,
			wantExtras: map[string]interface{}{ExtraComponent: "api"},
		},
		{
			name: "anonymous caller & merged extras",
			args: []interface{}{
				user.User{ID: "u1"},
				map[string]interface{}{"action": "toggle_task", "request_id": "r1"},
				map[string]interface{}{"path": "/v1/homework", ExtraComponent: "echo"},
			},
			wantExtras: map[string]interface{}{
				ExtraCallerID: "u1", "action": "toggle_task", "request_id": "r1", "path": "/v1/homework", ExtraComponent: "echo",
			},
		},
		{
			name:       "empty user is skipped",
			args:       []interface{}{user.User{}, storeErr, errors.New("second"), 7},
			wantErr:    storeErr,
			wantExtras: map[string]interface{}{ExtraComponent: "api"},
			wantOther:  []interface{}{errors.New("second"), 7},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := logger.parse("boom", tt.args)
			assert.Equal(t, "boom", e.msg)
			assert.Equal(t, tt.wantErr, e.err)
			assert.Equal(t, tt.wantExtras, e.extras)
			assert.Equal(t, tt.wantOther, e.other)
		})
	}
}

func TestRollbarLogger_print(t *testing.T) {
	var buf bytes.Buffer
	base := newTestLogger(&buf)
	logger := base.With(map[string]interface{}{ExtraComponent: "db"})

	logger.Error("boom", errors.New("store down"), user.User{ID: "u1"}, map[string]interface{}{"action": "list_assignments"})
	assert.Equal(t, "boom [action=list_assignments caller_id=u1 component=db]\nstore down\n", buf.String())

	// With does not alter the parent logger
	buf.Reset()
	base.Info("ready")
	assert.Equal(t, "ready\n", buf.String())
}
