package sqlxrepos

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/agenda/core/user"
	"github.com/trezcool/agenda/testutil"
)

func setupUsers(t *testing.T) *userRepository {
	db, _ := testutil.PrepareDB(t)
	return NewUserRepository(db)
}

func Test_userRepository(t *testing.T) {
	repo := setupUsers(t)
	ctx := context.Background()

	usr := testutil.CreateUser(t, repo, "awe", "s3cretPwd", true)
	other := testutil.CreateUser(t, repo, "king", "", false)

	t.Run("create without password hash", func(t *testing.T) {
		_, err := repo.CreateUser(ctx, user.User{Username: "nohash", IsActive: true})
		assert.Equal(t, errNoPasswordHash, err)
		_, err = repo.GetUser(ctx, user.GetFilter{Username: "nohash"})
		assert.Equal(t, user.ErrNotFound, err)
	})

	t.Run("uniqueness", func(t *testing.T) {
		assert.Equal(t, user.ErrUserExists, repo.CheckUsernameUniqueness(ctx, "awe", nil))
		assert.NoError(t, repo.CheckUsernameUniqueness(ctx, "awe", []string{usr.ID}))
		assert.NoError(t, repo.CheckUsernameUniqueness(ctx, "lol", nil))
	})

	t.Run("get", func(t *testing.T) {
		got, err := repo.GetUser(ctx, user.GetFilter{ID: usr.ID})
		require.NoError(t, err)
		assert.Equal(t, "awe", got.Username)
		assert.True(t, got.IsActive)
		assert.NoError(t, got.CheckPassword("s3cretPwd"))

		got, err = repo.GetUser(ctx, user.GetFilter{Username: "king"})
		require.NoError(t, err)
		assert.Equal(t, other.ID, got.ID)
		assert.False(t, got.IsActive)
		assert.NotEmpty(t, got.PasswordHash)
		assert.Error(t, got.CheckPassword(""))

		for _, f := range []user.GetFilter{{ID: "lol"}, {ID: "6ba7b810-9dad-11d1-80b4-00c04fd430c8"}, {Username: "lol"}, {}} {
			_, err = repo.GetUser(ctx, f)
			assert.Equal(t, user.ErrNotFound, err, "filter %+v", f)
		}
	})

	t.Run("update", func(t *testing.T) {
		usr.IsActive = false
		usr.LastLogin = null.TimeFrom(usr.UpdatedAt)
		_, err := repo.UpdateUser(ctx, usr)
		require.NoError(t, err)

		got, err := repo.GetUser(ctx, user.GetFilter{ID: usr.ID})
		require.NoError(t, err)
		assert.False(t, got.IsActive)
		assert.True(t, got.LastLogin.Valid)

		_, err = repo.UpdateUser(ctx, user.User{ID: "6ba7b810-9dad-11d1-80b4-00c04fd430c8", Username: "ghost"})
		assert.Equal(t, user.ErrNotFound, err)
	})

	t.Run("delete", func(t *testing.T) {
		cnt, err := repo.DeleteUsersByID(ctx, []string{other.ID})
		require.NoError(t, err)
		assert.Equal(t, 1, cnt)
		_, err = repo.GetUser(ctx, user.GetFilter{ID: other.ID})
		assert.Equal(t, user.ErrNotFound, err)
	})
}
