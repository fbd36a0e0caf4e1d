// Package sqlxrepos implements the repositories on PostgreSQL with sqlx.
package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
)

// withTx runs fn in a transaction, committed when fn succeeds.
func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

// notFound replaces sql.ErrNoRows by the domain error.
func notFound(err, domainErr error) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return domainErr
	}
	return err
}

func nullString(s string) null.String { return null.NewString(s, s != "") }

func nullInt(i int) null.Int { return null.NewInt(i, i != 0) }

func int64s(ids []int) []int64 {
	res := make([]int64, 0, len(ids))
	for _, id := range ids {
		res = append(res, int64(id))
	}
	return res
}

// getClassTeacher returns the teacher of a class, or notFoundErr.
func getClassTeacher(ctx context.Context, db *sqlx.DB, classID int, notFoundErr error) (int, error) {
	var teacherID int
	if err := db.GetContext(ctx, &teacherID, `SELECT teacher_id FROM class_room WHERE id = $1`, classID); err != nil {
		return 0, notFound(err, notFoundErr)
	}
	return teacherID, nil
}
