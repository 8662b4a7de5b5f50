package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/agenda/core"
	"github.com/trezcool/agenda/core/homework"
	"github.com/trezcool/agenda/core/user"
	"github.com/trezcool/agenda/storage/database"
)

// NewConfig returns the configuration used by tests: a sqlite database file and fixed windows.
func NewConfig(t *testing.T) *core.Config {
	t.Helper()
	return &core.Config{
		AppName:   "Agenda",
		Env:       "TEST",
		Build:     "test",
		TestMode:  true,
		SecretKey: "test-secret",
		Location:  time.UTC,
		Server: core.ServerConfig{
			DisableRequestLogs: true,
			ShutdownTimeout:    time.Second,
		},
		Database: core.DatabaseConfig{
			Engine: core.EngineSqlite,
			Path:   filepath.Join(t.TempDir(), "agenda.db"),
		},
		Auth: core.AuthConfig{
			AllowAnonymous:            true,
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
		Homework: core.HomeworkConfig{
			UpcomingDays:  4,
			HistoryMonths: 6,
		},
	}
}

// OpenDB opens & migrates the database of conf. It is closed when the test ends.
func OpenDB(t *testing.T, conf *core.Config) *sqlx.DB {
	t.Helper()
	db, err := database.Open(conf.Database)
	if err != nil {
		t.Fatalf("database.Open(): %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db, conf.Database.Engine); err != nil {
		t.Fatalf("database.Migrate(): %v", err)
	}
	return db
}

// PrepareDB returns a fresh migrated database along with its config.
func PrepareDB(t *testing.T) (*sqlx.DB, *core.Config) {
	t.Helper()
	conf := NewConfig(t)
	return OpenDB(t, conf), conf
}

// NewValidation returns a validator with all the app validations registered, along with its translator.
func NewValidation() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate, translator
}

func NewValidator() *validator.Validate {
	validate, _ := NewValidation()
	return validate
}

func CreateUser(t *testing.T, repo user.Repository, uname, pwd string, isActive bool) user.User {
	t.Helper()
	now := time.Now().UTC()
	usr := user.User{
		Username:  uname,
		IsActive:  isActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	var err error
	if pwd != "" {
		err = usr.SetPassword(pwd)
	} else {
		err = usr.SetUnusablePassword()
	}
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	if usr, err = repo.CreateUser(context.Background(), usr); err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// CreateAssignment inserts an assignment due on dueDate with one task per description.
func CreateAssignment(t *testing.T, repo homework.Repository, title string, dueDate homework.Date, tasks ...string) homework.Assignment {
	t.Helper()
	ctx := context.Background()
	a, err := repo.CreateAssignment(ctx, homework.Assignment{
		Title:     title,
		Subject:   "Subject",
		DueDate:   dueDate,
		Color:     null.String{},
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateAssignment() failed: %v", err)
	}
	if a.Tasks, err = repo.CreateTasks(ctx, a.ID, tasks); err != nil {
		t.Fatalf("CreateAssignment() failed: %v", err)
	}
	return a
}
