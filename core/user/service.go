package user

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/agenda/core"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound             = errors.New("user not found")
	ErrUserExists           = errors.New("a user with this username already exists")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrAccountDeactivated   = errors.New("account deactivated")
	errUsernameExistsFields = core.FieldError{Field: "username", Error: ErrUserExists.Error()}
)

type (
	Repository interface {
		// CheckUsernameUniqueness returns ErrUserExists if username is taken by a user not in excludedIDs.
		CheckUsernameUniqueness(ctx context.Context, username string, excludedIDs []string, exec ...core.DBExecutor) error
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		UpdateOrCreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)
	}

	Service interface {
		Register(ctx context.Context, nu NewUser) (User, error)
		// Authenticate checks the credentials and records the login.
		Authenticate(ctx context.Context, username, pwd string) (User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByUsername(ctx context.Context, username string) (User, error)
		SetPassword(ctx context.Context, sp SetUserPassword) (User, error)
		// UpdateOrCreate sets the password of the user named sp.Username, creating it as needed.
		UpdateOrCreate(ctx context.Context, sp SetUserPassword) (User, error)
	}

	service struct {
		db       core.DB
		repo     Repository
		validate *validator.Validate
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(db core.DB, repo Repository, validate *validator.Validate) Service {
	return &service{
		db:       db,
		repo:     repo,
		validate: validate,
	}
}

func (svc *service) checkUniqueness(ctx context.Context, uname string, exec core.DBExecutor, excludedIDs ...string) error {
	if err := svc.repo.CheckUsernameUniqueness(ctx, uname, excludedIDs, exec); err != nil {
		if errors.Cause(err) == ErrUserExists {
			return core.NewValidationError(nil, errUsernameExistsFields)
		}
		return err
	}
	return nil
}

func (svc *service) Register(ctx context.Context, nu NewUser) (User, error) {
	if err := nu.Validate(svc.validate); err != nil {
		return User{}, err
	}

	now := NowFunc().UTC()
	usr := User{
		Username:  nu.Username,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}

	err := core.InTx(ctx, svc.db, func(tx core.DBTransactor) error {
		if err := svc.checkUniqueness(ctx, usr.Username, tx); err != nil {
			return err
		}
		var err error
		usr, err = svc.repo.CreateUser(ctx, usr, tx)
		return err
	})
	if err != nil {
		return User{}, errors.Wrap(err, "registering user")
	}
	return usr, nil
}

func (svc *service) Authenticate(ctx context.Context, username, pwd string) (User, error) {
	usr, err := svc.GetByUsername(ctx, username)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, ErrInvalidCredentials
	}
	if !usr.IsActive {
		return User{}, ErrAccountDeactivated
	}

	usr.LastLogin = null.TimeFrom(NowFunc().UTC())
	if usr, err = svc.repo.UpdateUser(ctx, usr); err != nil {
		return User{}, errors.Wrap(err, "setting last login")
	}
	return usr, nil
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByUsername(ctx context.Context, username string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Username: core.CleanString(username, true /* lower */)})
}

func (svc *service) SetPassword(ctx context.Context, sp SetUserPassword) (User, error) {
	if err := sp.Validate(svc.validate); err != nil {
		return User{}, err
	}
	usr, err := svc.repo.GetUser(ctx, GetFilter{Username: sp.Username})
	if err != nil {
		return User{}, err
	}
	if err = usr.SetPassword(sp.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) UpdateOrCreate(ctx context.Context, sp SetUserPassword) (User, error) {
	if err := sp.Validate(svc.validate); err != nil {
		return User{}, err
	}

	now := NowFunc().UTC()
	usr, err := svc.repo.GetUser(ctx, GetFilter{Username: sp.Username})
	if err != nil {
		if errors.Cause(err) != ErrNotFound {
			return User{}, err
		}
		usr = User{Username: sp.Username, CreatedAt: now}
	}
	usr.IsActive = true
	usr.UpdatedAt = now
	if err = usr.SetPassword(sp.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	return svc.repo.UpdateOrCreateUser(ctx, usr)
}
