package user_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anquinko/academia/core"
	"github.com/anquinko/academia/core/user"
	"github.com/anquinko/academia/storage/database/dummy"
	"github.com/anquinko/academia/tests"
)

func setup(t *testing.T) *user.Service {
	return user.NewService(dummydb.NewUserRepository(testutil.PrepareDB(t)))
}

func TestService_Create(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		nu        user.NewUser
		wantField string
	}{
		{name: "username exists", nu: user.NewUser{Name: "Tina 2", Username: " TINA ", Password: testutil.Password}, wantField: "username"},
		{name: "email exists", nu: user.NewUser{Name: "An 2", Email: "An@Test.vn", Password: testutil.Password}, wantField: "email"},
		{name: "created", nu: user.NewUser{Name: " Dung Pham ", Username: "Dung", Email: "dung@test.vn", Password: testutil.Password, Roles: []string{user.RoleStudent}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			usr, err := svc.Create(ctx, tt.nu)
			if tt.wantField != "" {
				verr, ok := err.(*core.ValidationError)
				require.True(t, ok, "want *core.ValidationError; got %v", err)
				assert.Equal(t, tt.wantField, verr.Fields[0].Field)
				return
			}
			require.NoError(t, err)
			assert.NotZero(t, usr.ID)
			assert.Equal(t, "Dung Pham", usr.Name)
			assert.Equal(t, "dung", usr.Username)
			assert.True(t, usr.IsActive)
			assert.NoError(t, usr.CheckPassword(testutil.Password))
		})
	}
}

func TestService_Authenticate(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	now := time.Date(2024, 10, 1, 8, 0, 0, 0, time.UTC)
	user.NowFunc = func() time.Time { return now }
	defer func() { user.NowFunc = time.Now }()

	tests := []struct {
		name    string
		uname   string
		pwd     string
		wantErr error
	}{
		{name: "unknown user", uname: "nobody", pwd: testutil.Password, wantErr: user.ErrInvalidCredentials},
		{name: "wrong password", uname: "tina", pwd: "nope", wantErr: user.ErrInvalidCredentials},
		{name: "username", uname: "tina", pwd: testutil.Password},
		{name: "email", uname: " TINA@test.vn", pwd: testutil.Password},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			usr, err := svc.Authenticate(ctx, tt.uname, tt.pwd)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, testutil.TeacherID, usr.ID)
			assert.Equal(t, now, usr.LastLogin)
		})
	}

	t.Run("inactive", func(t *testing.T) {
		usr, err := svc.Get(ctx, testutil.BinhID)
		require.NoError(t, err)
		usr.IsActive = false
		_, err = svc.Save(ctx, usr)
		require.NoError(t, err)

		_, err = svc.Authenticate(ctx, "binh", testutil.Password)
		assert.Equal(t, user.ErrInvalidCredentials, err)
	})
}

func TestService_SetPassword(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	usr, err := svc.Get(ctx, testutil.AnID)
	require.NoError(t, err)

	_, err = svc.SetPassword(ctx, usr, "weak")
	assert.True(t, core.IsValidationError(err))

	updated, err := svc.SetPassword(ctx, usr, "N3w-Secret!x")
	require.NoError(t, err)
	assert.NoError(t, updated.CheckPassword("N3w-Secret!x"))
	assert.Error(t, updated.CheckPassword(testutil.Password))
}

func TestService_Filter(t *testing.T) {
	svc := setup(t)
	active := true

	tests := []struct {
		name    string
		filter  user.QueryFilter
		wantIDs []int
	}{
		{name: "search", filter: user.QueryFilter{Search: " nguyen "}, wantIDs: []int{testutil.AnID}},
		{name: "roles", filter: user.QueryFilter{Roles: []string{user.RoleTeacher, user.RoleCashier}}, wantIDs: []int{testutil.TeacherID, testutil.CashierID}},
		{name: "active students", filter: user.QueryFilter{Roles: []string{user.RoleStudent}, IsActive: &active}, wantIDs: []int{testutil.AnID, testutil.BinhID, testutil.ChiID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users, err := svc.Filter(context.Background(), tt.filter)
			require.NoError(t, err)
			var ids []int
			for _, usr := range users {
				ids = append(ids, usr.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestUser_HasRole(t *testing.T) {
	admin := user.User{Roles: []string{user.RoleAdmin}}
	cashier := user.User{Roles: []string{user.RoleCashier}}

	assert.True(t, admin.HasRole(user.RoleTeacher))
	assert.True(t, cashier.IsCashier())
	assert.False(t, cashier.IsTeacher())
	assert.Equal(t, 30, user.MaxRolePriority([]string{user.RoleStudent, user.RoleAdmin}))
}
