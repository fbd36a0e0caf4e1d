package database

import (
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	"github.com/anquinko/academia/core"
	appfs "github.com/anquinko/academia/fs"
)

// MigrationsDir is the directory of the embedded goose migrations.
const MigrationsDir = "migrations"

func init() {
	goose.SetBaseFS(appfs.FS)
}

// dsn builds the postgres connection URL for dbName, as the admin role when asked and configured.
func dsn(dbName string, admin bool, conf *core.Config) string {
	dbc := conf.Database
	user := url.UserPassword(dbc.User, dbc.Password)
	if admin && dbc.AdminUser != "" {
		user = url.UserPassword(dbc.AdminUser, dbc.AdminPassword)
	}

	q := url.Values{"timezone": {"utc"}, "sslmode": {"require"}}
	if dbc.DisableTLS {
		q.Set("sslmode", "disable")
	}
	u := url.URL{Scheme: dbc.Engine, User: user, Host: dbc.Address(), Path: dbName, RawQuery: q.Encode()}
	return u.String()
}

func connect(dbName string, admin bool, conf *core.Config) (*sqlx.DB, error) {
	db, err := sqlx.Open(conf.Database.Engine, dsn(dbName, admin, conf))
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", dbName)
	}
	if err = waitReady(db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Open connects to the application database and waits for it to be ready.
func Open(conf *core.Config) (*sqlx.DB, error) {
	return connect(conf.Database.Name, false, conf)
}

// waitReady pings db with a linear backoff until it answers.
func waitReady(db *sql.DB) error {
	const maxAttempts = 30
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = db.Ping(); err == nil {
			return nil
		}
		time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
	}
	return errors.Wrap(err, "database not ready")
}

func exists(db *sqlx.DB, query, name string) (bool, error) {
	var found bool
	err := db.Get(&found, query, name)
	return found, err
}

func ensureAppRole(db *sqlx.DB, conf *core.Config) error {
	role := conf.Database.User
	if role == "" {
		return nil
	}
	found, err := exists(db, "SELECT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = $1)", role)
	if err != nil || found {
		return errors.Wrap(err, "looking up app role")
	}
	stmt := fmt.Sprintf("CREATE ROLE %s LOGIN CREATEDB PASSWORD %s",
		pq.QuoteIdentifier(role), pq.QuoteLiteral(conf.Database.Password))
	_, err = db.Exec(stmt)
	return errors.Wrap(err, "creating app role")
}

func ensureDatabase(db *sqlx.DB, name string) error {
	found, err := exists(db, "SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", name)
	if err != nil || found {
		return errors.Wrap(err, "looking up database")
	}
	_, err = db.Exec("CREATE DATABASE " + pq.QuoteIdentifier(name))
	return errors.Wrap(err, "creating database")
}

// CreateIfNotExist creates the app role as admin, then the app database as that role.
func CreateIfNotExist(conf *core.Config) error {
	admin, err := connect("postgres", true, conf)
	if err != nil {
		return err
	}
	err = ensureAppRole(admin, conf)
	_ = admin.Close()
	if err != nil {
		return err
	}

	db, err := connect("postgres", false, conf)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	return ensureDatabase(db, conf.Database.Name)
}

// Migrate runs a goose command ("up", "down", "status"...) against the embedded migrations.
func Migrate(db *sql.DB, command string, args ...string) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, "setting goose dialect")
	}
	if err := goose.Run(command, db, MigrationsDir, args...); err != nil {
		return errors.Wrapf(err, "migrating database (%s)", command)
	}
	return nil
}
