package tests

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/jmoiron/sqlx"

	echoapi "github.com/trezcool/agenda/apps/api/echo"
	"github.com/trezcool/agenda/core"
	"github.com/trezcool/agenda/core/homework"
	"github.com/trezcool/agenda/core/user"
	logsvc "github.com/trezcool/agenda/services/logger"
	"github.com/trezcool/agenda/storage/database/sqlxrepos"
	"github.com/trezcool/agenda/testutil"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testApp struct {
	*echoapi.Server
	conf    *core.Config
	db      *sqlx.DB
	hwRepo  homework.Repository
	usrRepo user.Repository
	logs    *bytes.Buffer
}

// setup starts an app on a fresh database; opts may tweak the config first.
func setup(t *testing.T, opts ...func(conf *core.Config)) testApp {
	conf := testutil.NewConfig(t)
	for _, opt := range opts {
		opt(conf)
	}
	db := testutil.OpenDB(t, conf)

	logs := new(bytes.Buffer)
	logger := logsvc.NewRollbarLogger(log.New(logs, "API : ", 0), conf)
	logger.Enable(false)

	validate, translator := testutil.NewValidation()
	hwRepo := sqlxrepos.NewHomeworkRepository(db)
	usrRepo := sqlxrepos.NewUserRepository(db)

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:        conf,
		Logger:      logger,
		HomeworkSvc: homework.NewService(db, hwRepo, validate, conf),
		UserSvc:     user.NewService(db, usrRepo, validate),
		Validate:    validate,
		Translator:  translator,
	})
	return testApp{Server: server, conf: conf, db: db, hwRepo: hwRepo, usrRepo: usrRepo, logs: logs}
}

func sessionMode(conf *core.Config) { conf.Auth.AllowAnonymous = false }

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	userID   string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// serve runs tt against app, sending tt.userID in the X-User-ID header.
func (app testApp) serve(tt httpTest) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
	if tt.userID != "" {
		req.Header.Set(echoapi.UserIDHeader, tt.userID)
	}
	app.ServeHTTP(rec, req)
	return rec
}

func getToken(t *testing.T, conf *core.Config, usr user.User) string {
	token, err := echoapi.GenerateToken(echoapi.GetUserClaims(usr, conf), conf)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalObj(): %v", err)
	}
	return data
}

func unmarshalBody(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), dest); err != nil {
		t.Fatalf("json.Unmarshal(%s): %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
