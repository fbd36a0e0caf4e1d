package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/anquinko/academia/core/billing"
	"github.com/anquinko/academia/core/user"
	"github.com/anquinko/academia/storage/database"
)

// sequences are reset after a load so that later inserts don't collide with the explicit IDs.
var sequences = []string{"user", "course", "level", "class_room", "registration", "grade_category", "session"}

// LoadFixture inserts the rows of fx in a single transaction. Passwords are hashed.
func LoadFixture(ctx context.Context, db *sqlx.DB, fx database.Fixture) error {
	return withTx(ctx, db, func(tx *sqlx.Tx) error {
		now := time.Now().UTC()

		for _, fu := range fx.Users {
			usr := user.User{
				ID:        fu.ID,
				Name:      fu.Name,
				Username:  fu.Username,
				Email:     fu.Email,
				Phone:     fu.Phone,
				IsActive:  true,
				Roles:     fu.Roles,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := usr.SetPassword(fu.Password); err != nil {
				return errors.Wrap(err, "hashing password")
			}
			q := `INSERT INTO "user" (id, name, username, email, phone, is_active, roles, password_hash, created_at, updated_at, last_login)
				VALUES (:id, :name, :username, :email, :phone, :is_active, :roles, :password_hash, :created_at, :updated_at, :last_login)`
			if _, err := tx.NamedExecContext(ctx, q, newUserRow(usr)); err != nil {
				return errors.Wrapf(err, "inserting user %q", fu.Name)
			}
		}

		for _, fc := range fx.Courses {
			q := `INSERT INTO course (id, name, description) VALUES ($1, $2, $3)`
			if _, err := tx.ExecContext(ctx, q, fc.ID, fc.Name, nullString(fc.Description)); err != nil {
				return errors.Wrapf(err, "inserting course %q", fc.Name)
			}
		}
		for _, fl := range fx.Levels {
			if _, err := tx.ExecContext(ctx, `INSERT INTO level (id, name, tuition) VALUES ($1, $2, $3)`, fl.ID, fl.Name, fl.Tuition); err != nil {
				return errors.Wrapf(err, "inserting level %q", fl.Name)
			}
		}
		for _, fc := range fx.Classes {
			start := fc.StartTime
			if start.IsZero() {
				start = now
			}
			q := `INSERT INTO class_room (id, start_time, maximum_stu, teacher_id, course_id, level_id) VALUES ($1, $2, $3, $4, $5, $6)`
			if _, err := tx.ExecContext(ctx, q, fc.ID, start, fc.Capacity(), fc.TeacherID, fc.CourseID, fc.LevelID); err != nil {
				return errors.Wrapf(err, "inserting class %d", fc.ID)
			}
		}
		for _, fc := range fx.Categories {
			q := `INSERT INTO grade_category (id, name, weight) VALUES ($1, $2, $3)`
			if _, err := tx.ExecContext(ctx, q, fc.ID, fc.Name, fc.Weight); err != nil {
				return errors.Wrapf(err, "inserting grade category %q", fc.Name)
			}
		}

		for _, fr := range fx.Registrations {
			q := `INSERT INTO registration (id, student_id, class_id, actual_tuition, paid, status, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`
			status := billing.StatusFor(fr.Tuition, fr.Paid)
			if _, err := tx.ExecContext(ctx, q, fr.ID, fr.StudentID, fr.ClassID, fr.Tuition, fr.Paid, string(status), now); err != nil {
				return errors.Wrapf(err, "inserting registration %d", fr.ID)
			}
			for catID, val := range fr.Scores {
				q := `INSERT INTO score (regis_id, grade_cate_id, value) VALUES ($1, $2, $3)`
				if _, err := tx.ExecContext(ctx, q, fr.ID, catID, val); err != nil {
					return errors.Wrapf(err, "inserting score of registration %d", fr.ID)
				}
			}
		}

		for _, fs := range fx.Sessions {
			q := `INSERT INTO session (id, class_id, session_date, session_content) VALUES ($1, $2, $3, $4)`
			date := null.NewTime(fs.Date, !fs.Date.IsZero())
			if _, err := tx.ExecContext(ctx, q, fs.ID, fs.ClassID, date, fs.Content); err != nil {
				return errors.Wrapf(err, "inserting session %d", fs.ID)
			}
		}

		for _, table := range sequences {
			q := `SELECT setval(pg_get_serial_sequence($1, 'id'), COALESCE((SELECT MAX(id) FROM ` + pq.QuoteIdentifier(table) + `), 0) + 1, false)`
			if _, err := tx.ExecContext(ctx, q, pq.QuoteIdentifier(table)); err != nil {
				return errors.Wrapf(err, "resetting sequence of %s", table)
			}
		}
		return nil
	})
}
