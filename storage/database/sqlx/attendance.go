package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/anquinko/academia/core/attendance"
)

type attendanceRepository struct {
	db *sqlx.DB
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(db *sqlx.DB) attendance.Repository {
	return &attendanceRepository{db: db}
}

func (repo *attendanceRepository) GetSession(ctx context.Context, id int) (attendance.Session, error) {
	var row struct {
		ID      int       `db:"id"`
		ClassID int       `db:"class_id"`
		Date    null.Time `db:"session_date"`
		Content string    `db:"session_content"`
		Shift   int       `db:"shift"`
	}
	q := `SELECT id, class_id, session_date, session_content, shift FROM session WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return attendance.Session{}, notFound(err, attendance.ErrNotFound)
	}
	return attendance.Session{ID: row.ID, ClassID: row.ClassID, Date: row.Date.Time, Content: row.Content, Shift: row.Shift}, nil
}

func (repo *attendanceRepository) QueryEnrolled(ctx context.Context, classID int) ([]int, error) {
	var ids []int
	q := `SELECT student_id FROM registration WHERE class_id = $1 ORDER BY student_id`
	if err := repo.db.SelectContext(ctx, &ids, q, classID); err != nil {
		return nil, errors.Wrap(err, "querying enrolled learners")
	}
	return ids, nil
}

func (repo *attendanceRepository) SaveMarks(ctx context.Context, sessionID int, marks map[int]bool) error {
	return withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM present WHERE session_id = $1`, sessionID); err != nil {
			return errors.Wrap(err, "clearing rollcall")
		}
		for studentID, present := range marks {
			q := `INSERT INTO present (session_id, student_id, is_present) VALUES ($1, $2, $3)`
			if _, err := tx.ExecContext(ctx, q, sessionID, studentID, present); err != nil {
				return errors.Wrapf(err, "marking learner %d", studentID)
			}
		}
		return nil
	})
}

func (repo *attendanceRepository) GetMarks(ctx context.Context, sessionID int) (map[int]bool, error) {
	var rows []struct {
		StudentID int  `db:"student_id"`
		IsPresent bool `db:"is_present"`
	}
	q := `SELECT student_id, is_present FROM present WHERE session_id = $1`
	if err := repo.db.SelectContext(ctx, &rows, q, sessionID); err != nil {
		return nil, errors.Wrap(err, "querying rollcall")
	}
	marks := make(map[int]bool, len(rows))
	for _, row := range rows {
		marks[row.StudentID] = row.IsPresent
	}
	return marks, nil
}

func (repo *attendanceRepository) GetClassTeacher(ctx context.Context, classID int) (int, error) {
	return getClassTeacher(ctx, repo.db, classID, attendance.ErrClassNotFound)
}
