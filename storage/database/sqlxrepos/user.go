package sqlxrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/agenda/core"
	"github.com/trezcool/agenda/core/user"
)

const userColumns = "id, username, password_hash, is_active, created_at, updated_at, last_login"

var errNoPasswordHash = errors.New("user has no password hash: set a password or an unusable one")

type userRepository struct {
	repository
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db core.DB) *userRepository {
	return &userRepository{repository{db: db}}
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username string, excludedIDs []string, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	q := `SELECT COUNT(*) FROM "user" WHERE username = ?`
	args := []interface{}{username}
	if len(excludedIDs) > 0 {
		q += " AND id NOT IN (?)"
		args = append(args, excludedIDs)
	}
	q, args, err := sqlx.In(q, args...)
	if err != nil {
		return errors.Wrap(err, "building uniqueness query")
	}

	var cnt int
	if err = exe.GetContext(ctx, &cnt, exe.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	if cnt > 0 {
		return user.ErrUserExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	if len(usr.PasswordHash) == 0 {
		return user.User{}, errNoPasswordHash
	}
	exe := repo.getExec(exec)
	usr.ID = uuid.New().String()
	q := exe.Rebind(`INSERT INTO "user" (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`)

	_, err := exe.ExecContext(ctx, q,
		usr.ID, usr.Username, usr.PasswordHash, usr.IsActive, usr.CreatedAt.UTC(), usr.UpdatedAt.UTC(), usr.LastLogin)
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	exe := repo.getExec(exec)
	q := `SELECT ` + userColumns + ` FROM "user" WHERE `
	var arg string

	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		q += "id = ?"
		arg = filter.ID
	case filter.Username != "":
		q += "username = ?"
		arg = filter.Username
	default:
		return user.User{}, user.ErrNotFound
	}

	var usr user.User
	if err := exe.GetContext(ctx, &usr, exe.Rebind(q), arg); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user")
	}
	return usr, nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	exe := repo.getExec(exec)
	q := exe.Rebind(`
UPDATE "user" SET username = ?, password_hash = ?, is_active = ?, updated_at = ?, last_login = ?
WHERE id = ?`)

	res, err := exe.ExecContext(ctx, q, usr.Username, usr.PasswordHash, usr.IsActive, usr.UpdatedAt.UTC(), usr.LastLogin, usr.ID)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	if usr.ID == "" {
		return repo.CreateUser(ctx, usr, exec...)
	}
	return repo.UpdateUser(ctx, usr, exec...)
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	exe := repo.getExec(exec)
	q, args, err := sqlx.In(`DELETE FROM "user" WHERE id IN (?)`, ids)
	if err != nil {
		return 0, errors.Wrap(err, "building delete query")
	}

	res, err := exe.ExecContext(ctx, exe.Rebind(q), args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "counting deleted users")
	}
	return int(cnt), nil
}
