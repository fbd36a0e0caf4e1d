package sqlxrepos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/anquinko/academia/core/user"
)

const userColumns = `id, name, username, email, phone, is_active, roles, password_hash, created_at, updated_at, last_login`

type userRow struct {
	ID           int            `db:"id"`
	Name         string         `db:"name"`
	Username     null.String    `db:"username"`
	Email        null.String    `db:"email"`
	Phone        null.String    `db:"phone"`
	IsActive     bool           `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash []byte         `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
}

func newUserRow(usr user.User) userRow {
	roles := usr.Roles
	if roles == nil {
		roles = []string{}
	}
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Username:     nullString(usr.Username),
		Email:        nullString(usr.Email),
		Phone:        nullString(usr.Phone),
		IsActive:     usr.IsActive,
		Roles:        roles,
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt,
		UpdatedAt:    usr.UpdatedAt,
		LastLogin:    null.NewTime(usr.LastLogin, !usr.LastLogin.IsZero()),
	}
}

func (r userRow) user() user.User {
	return user.User{
		ID:           r.ID,
		Name:         r.Name,
		Username:     r.Username.String,
		Email:        r.Email.String,
		Phone:        r.Phone.String,
		IsActive:     r.IsActive,
		Roles:        r.Roles,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		LastLogin:    r.LastLogin.Time.UTC(),
	}
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUniqueness(ctx context.Context, username, email string, excludedIDs ...int) error {
	var rows []userRow
	q := `SELECT ` + userColumns + ` FROM "user" WHERE (username = $1 OR email = $2) AND NOT (id = ANY($3))`
	err := repo.db.SelectContext(ctx, &rows, q, nullString(username), nullString(email), pq.Array(int64s(excludedIDs)))
	if err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	for _, row := range rows {
		if username != "" && row.Username.String == username {
			return user.ErrUsernameExists
		}
	}
	if len(rows) > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	row := newUserRow(usr)
	q := `INSERT INTO "user" (name, username, email, phone, is_active, roles, password_hash, created_at, updated_at, last_login)
		VALUES (:name, :username, :email, :phone, :is_active, :roles, :password_hash, :created_at, :updated_at, :last_login)
		RETURNING id`
	stmt, err := repo.db.PrepareNamedContext(ctx, q)
	if err != nil {
		return user.User{}, errors.Wrap(err, "preparing user insert")
	}
	defer func() { _ = stmt.Close() }()

	if err = stmt.GetContext(ctx, &usr.ID, row); err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var (
		row userRow
		err error
	)
	q := `SELECT ` + userColumns + ` FROM "user" `
	if filter.ID != 0 {
		err = repo.db.GetContext(ctx, &row, q+`WHERE id = $1`, filter.ID)
	} else {
		err = repo.db.GetContext(ctx, &row, q+`WHERE username = ANY($1) OR email = ANY($1) ORDER BY id LIMIT 1`, pq.Array(filter.UsernameOrEmail))
	}
	if err != nil {
		return user.User{}, notFound(err, user.ErrNotFound)
	}
	return row.user(), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	q := `UPDATE "user" SET name = :name, username = :username, email = :email, phone = :phone, is_active = :is_active,
		roles = :roles, password_hash = :password_hash, updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, newUserRow(usr))
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.GetUser(ctx, user.GetFilter{ID: usr.ID})
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter) ([]user.User, error) {
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		conds = append(conds, fmt.Sprintf("(name ILIKE %[1]s OR username ILIKE %[1]s OR email ILIKE %[1]s)", p))
	}
	if len(filter.Roles) > 0 {
		conds = append(conds, "roles && "+arg(pq.StringArray(filter.Roles)))
	}
	if filter.IsActive != nil {
		conds = append(conds, "is_active = "+arg(*filter.IsActive))
	}

	q := `SELECT ` + userColumns + ` FROM "user"`
	if conds != nil {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY id"

	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	var users []user.User
	for _, row := range rows {
		users = append(users, row.user())
	}
	return users, nil
}
