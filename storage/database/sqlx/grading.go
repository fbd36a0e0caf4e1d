package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/anquinko/academia/core/grading"
)

const recordQuery = `SELECT r.id AS regis_id, r.student_id, u.name AS student_name, COALESCE(u.email, '') AS student_email,
		r.class_id, c.course_id, co.name AS course_name
	FROM registration r
	JOIN "user" u ON u.id = r.student_id
	JOIN class_room c ON c.id = r.class_id
	JOIN course co ON co.id = c.course_id`

type (
	recordRow struct {
		RegistrationID int    `db:"regis_id"`
		StudentID      int    `db:"student_id"`
		StudentName    string `db:"student_name"`
		StudentEmail   string `db:"student_email"`
		ClassID        int    `db:"class_id"`
		CourseID       int    `db:"course_id"`
		CourseName     string `db:"course_name"`
	}

	scoreRow struct {
		RegistrationID int          `db:"regis_id"`
		CategoryID     int          `db:"grade_cate_id"`
		Value          null.Float64 `db:"value"`
	}

	draftRow struct {
		Payload []byte    `db:"payload"`
		SavedAt time.Time `db:"saved_at"`
	}
)

type gradingRepository struct {
	db *sqlx.DB
}

var (
	_ grading.Repository = (*gradingRepository)(nil)
	_ grading.DraftStore = (*gradingRepository)(nil)
)

func NewGradingRepository(db *sqlx.DB) *gradingRepository {
	return &gradingRepository{db: db}
}

func (repo *gradingRepository) QueryCategories(ctx context.Context) ([]grading.Category, error) {
	var cats []grading.Category
	if err := repo.db.SelectContext(ctx, &cats, `SELECT id, name, weight FROM grade_category ORDER BY id`); err != nil {
		return nil, errors.Wrap(err, "querying grade categories")
	}
	return cats, nil
}

// records loads the scores of rows.
func (repo *gradingRepository) records(ctx context.Context, rows []recordRow) ([]grading.Record, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	ids := make([]int, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.RegistrationID)
	}

	var scores []scoreRow
	q := `SELECT regis_id, grade_cate_id, value FROM score WHERE regis_id = ANY($1) AND value IS NOT NULL`
	if err := repo.db.SelectContext(ctx, &scores, q, pq.Array(int64s(ids))); err != nil {
		return nil, errors.Wrap(err, "querying scores")
	}
	byRegis := make(map[int]map[int]*float64, len(rows))
	for _, s := range scores {
		if byRegis[s.RegistrationID] == nil {
			byRegis[s.RegistrationID] = make(map[int]*float64)
		}
		byRegis[s.RegistrationID][s.CategoryID] = s.Value.Ptr()
	}

	recs := make([]grading.Record, 0, len(rows))
	for _, row := range rows {
		recs = append(recs, grading.Record{
			RegistrationID: row.RegistrationID,
			StudentID:      row.StudentID,
			StudentName:    row.StudentName,
			StudentEmail:   row.StudentEmail,
			ClassID:        row.ClassID,
			CourseID:       row.CourseID,
			CourseName:     row.CourseName,
			Scores:         byRegis[row.RegistrationID],
		})
	}
	return recs, nil
}

func (repo *gradingRepository) GetRecord(ctx context.Context, regisID int) (grading.Record, error) {
	var row recordRow
	if err := repo.db.GetContext(ctx, &row, recordQuery+` WHERE r.id = $1`, regisID); err != nil {
		return grading.Record{}, notFound(err, grading.ErrNotFound)
	}
	recs, err := repo.records(ctx, []recordRow{row})
	if err != nil {
		return grading.Record{}, err
	}
	return recs[0], nil
}

func (repo *gradingRepository) QueryClassRecords(ctx context.Context, classID int) ([]grading.Record, error) {
	var rows []recordRow
	if err := repo.db.SelectContext(ctx, &rows, recordQuery+` WHERE r.class_id = $1 ORDER BY r.id`, classID); err != nil {
		return nil, errors.Wrap(err, "querying class records")
	}
	return repo.records(ctx, rows)
}

func (repo *gradingRepository) SaveScores(ctx context.Context, regisID int, scores map[int]*float64) error {
	return withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		for catID, val := range scores {
			var err error
			if val == nil {
				_, err = tx.ExecContext(ctx, `DELETE FROM score WHERE regis_id = $1 AND grade_cate_id = $2`, regisID, catID)
			} else {
				_, err = tx.ExecContext(ctx, `INSERT INTO score (regis_id, grade_cate_id, value) VALUES ($1, $2, $3)
					ON CONFLICT (regis_id, grade_cate_id) DO UPDATE SET value = EXCLUDED.value`, regisID, catID, *val)
			}
			if err != nil {
				return errors.Wrapf(err, "saving score of category %d", catID)
			}
		}
		return nil
	})
}

func (repo *gradingRepository) SaveFinalResult(ctx context.Context, res grading.FinalResult) error {
	q := `INSERT INTO grade_result (regis_id, rounded_average, verdict_code, tier, finalized_at)
		VALUES (:regis_id, :rounded_average, :verdict_code, :tier, :finalized_at)
		ON CONFLICT (regis_id) DO UPDATE SET rounded_average = EXCLUDED.rounded_average,
			verdict_code = EXCLUDED.verdict_code, tier = EXCLUDED.tier, finalized_at = EXCLUDED.finalized_at`
	if _, err := repo.db.NamedExecContext(ctx, q, res); err != nil {
		return errors.Wrap(err, "saving final result")
	}
	return nil
}

func (repo *gradingRepository) QueryFinalResults(ctx context.Context) ([]grading.FinalResult, error) {
	var results []grading.FinalResult
	q := `SELECT gr.regis_id, c.course_id, co.name AS course_name, gr.rounded_average, gr.verdict_code, gr.tier, gr.finalized_at
		FROM grade_result gr
		JOIN registration r ON r.id = gr.regis_id
		JOIN class_room c ON c.id = r.class_id
		JOIN course co ON co.id = c.course_id
		ORDER BY gr.regis_id`
	if err := repo.db.SelectContext(ctx, &results, q); err != nil {
		return nil, errors.Wrap(err, "querying final results")
	}
	return results, nil
}

func (repo *gradingRepository) SaveDraft(ctx context.Context, draft grading.Draft) error {
	payload, err := json.Marshal(draft.Values)
	if err != nil {
		return errors.Wrap(err, "encoding draft")
	}
	q := `INSERT INTO grade_draft (teacher_id, class_id, payload, saved_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (teacher_id, class_id) DO UPDATE SET payload = EXCLUDED.payload, saved_at = EXCLUDED.saved_at`
	if _, err = repo.db.ExecContext(ctx, q, draft.Key.TeacherID, draft.Key.ClassID, payload, draft.SavedAt); err != nil {
		return errors.Wrap(err, "saving draft")
	}
	return nil
}

func (repo *gradingRepository) LoadDraft(ctx context.Context, key grading.DraftKey) (grading.Draft, error) {
	var row draftRow
	q := `SELECT payload, saved_at FROM grade_draft WHERE teacher_id = $1 AND class_id = $2`
	if err := repo.db.GetContext(ctx, &row, q, key.TeacherID, key.ClassID); err != nil {
		return grading.Draft{}, notFound(err, grading.ErrDraftNotFound)
	}

	draft := grading.Draft{Key: key, SavedAt: row.SavedAt.UTC()}
	if err := json.Unmarshal(row.Payload, &draft.Values); err != nil {
		return grading.Draft{}, errors.Wrap(err, "decoding draft")
	}
	return draft, nil
}

func (repo *gradingRepository) ClearDraft(ctx context.Context, key grading.DraftKey) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM grade_draft WHERE teacher_id = $1 AND class_id = $2`, key.TeacherID, key.ClassID)
	return errors.Wrap(err, "clearing draft")
}

func (repo *gradingRepository) GetClassTeacher(ctx context.Context, classID int) (int, error) {
	return getClassTeacher(ctx, repo.db, classID, grading.ErrClassNotFound)
}
