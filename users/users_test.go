package users_test

import (
	"testing"

	"github.com/envention-steve/union-ui-sub002/users"
	fakeuserrepo "github.com/envention-steve/union-ui-sub002/users/repofake"
	"github.com/stretchr/testify/require"
)

func TestUser_Validate(t *testing.T) {
	require.NoError(t, users.User{ID: "u1", Email: "a@example.com"}.Validate())
	require.Error(t, users.User{Email: "a@example.com"}.Validate())
	require.Error(t, users.User{ID: "u1", Email: "  "}.Validate())
}

func TestPasswordHash(t *testing.T) {
	hash, err := users.HashPassword("s3cret-Pass")
	require.NoError(t, err)

	account := users.Account{PasswordHash: hash}
	require.True(t, account.CheckPassword("s3cret-Pass"))
	require.False(t, account.CheckPassword("wrong"))
}

func TestFakeUserRepo(t *testing.T) {
	repo := fakeuserrepo.NewFakeUserRepo()
	require.NoError(t, repo.Upsert(&users.Account{User: users.User{Email: "Clerk@Example.com", Roles: []string{"clerk"}}}))

	account, err := repo.GetByEmail("clerk@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, account.User.ID)
	require.True(t, account.User.HasRole("clerk"))

	byID, err := repo.GetByID(account.User.ID)
	require.NoError(t, err)
	require.Equal(t, account.User.Email, byID.User.Email)

	require.NoError(t, repo.SetBlocked("CLERK@example.com", true))
	account, err = repo.GetByEmail("clerk@example.com")
	require.NoError(t, err)
	require.True(t, account.Blocked)

	require.NoError(t, repo.Delete("clerk@example.com"))
	_, err = repo.GetByEmail("clerk@example.com")
	require.ErrorIs(t, err, fakeuserrepo.ErrNotFound)
}
