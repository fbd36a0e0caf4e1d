package sqlxrepos

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/anquinko/academia/core/billing"
)

const registrationQuery = `SELECT r.id, r.student_id, u.name AS student_name, COALESCE(u.email, '') AS student_email,
		r.class_id, co.name AS course_name, r.actual_tuition, r.paid, r.status, r.created_at
	FROM registration r
	JOIN "user" u ON u.id = r.student_id
	JOIN class_room c ON c.id = r.class_id
	JOIN course co ON co.id = c.course_id`

type transactionRow struct {
	ID             uuid.UUID `db:"id"`
	RegistrationID int       `db:"regis_id"`
	Amount         float64   `db:"amount"`
	Method         string    `db:"method"`
	Content        string    `db:"content"`
	Status         string    `db:"status"`
	EmployeeID     null.Int  `db:"employee_id"`
	CreatedAt      time.Time `db:"created_at"`
}

func newTransactionRow(txn billing.Transaction) transactionRow {
	return transactionRow{
		ID:             txn.ID,
		RegistrationID: txn.RegistrationID,
		Amount:         txn.Amount,
		Method:         string(txn.Method),
		Content:        txn.Content,
		Status:         txn.Status,
		EmployeeID:     nullInt(txn.EmployeeID),
		CreatedAt:      txn.CreatedAt,
	}
}

func (r transactionRow) transaction() billing.Transaction {
	return billing.Transaction{
		ID:             r.ID,
		RegistrationID: r.RegistrationID,
		Amount:         r.Amount,
		Method:         billing.Method(r.Method),
		Content:        r.Content,
		Status:         r.Status,
		EmployeeID:     r.EmployeeID.Int,
		CreatedAt:      r.CreatedAt.UTC(),
	}
}

type billingRepository struct {
	db *sqlx.DB
}

var _ billing.Repository = (*billingRepository)(nil)

func NewBillingRepository(db *sqlx.DB) billing.Repository {
	return &billingRepository{db: db}
}

func (repo *billingRepository) QueryUnpaid(ctx context.Context, search string) ([]billing.Registration, error) {
	var regs []billing.Registration
	q := registrationQuery + ` WHERE r.status IN ('UNPAID', 'PARTIAL')
		AND ($1 = '' OR u.name ILIKE '%' || $1 || '%' OR co.name ILIKE '%' || $1 || '%')
		ORDER BY r.id`
	if err := repo.db.SelectContext(ctx, &regs, q, search); err != nil {
		return nil, errors.Wrap(err, "querying unpaid registrations")
	}
	return regs, nil
}

func (repo *billingRepository) GetRegistration(ctx context.Context, id int) (billing.Registration, error) {
	var reg billing.Registration
	if err := repo.db.GetContext(ctx, &reg, registrationQuery+` WHERE r.id = $1`, id); err != nil {
		return billing.Registration{}, notFound(err, billing.ErrNotFound)
	}
	return reg, nil
}

func updateRegistration(ctx context.Context, tx *sqlx.Tx, reg billing.Registration) error {
	res, err := tx.ExecContext(ctx, `UPDATE registration SET paid = $1, status = $2 WHERE id = $3`, reg.Paid, string(reg.Status), reg.ID)
	if err != nil {
		return errors.Wrap(err, "updating registration")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return billing.ErrNotFound
	}
	return nil
}

// lockRegistration reads a registration and holds its row until tx ends.
func lockRegistration(ctx context.Context, tx *sqlx.Tx, id int) (billing.Registration, error) {
	var reg billing.Registration
	if err := tx.GetContext(ctx, &reg, registrationQuery+` WHERE r.id = $1 FOR UPDATE OF r`, id); err != nil {
		return billing.Registration{}, notFound(err, billing.ErrNotFound)
	}
	return reg, nil
}

func insertTransaction(ctx context.Context, tx *sqlx.Tx, txn billing.Transaction) error {
	q := `INSERT INTO transaction (id, regis_id, amount, method, content, status, employee_id, created_at)
		VALUES (:id, :regis_id, :amount, :method, :content, :status, :employee_id, :created_at)`
	if _, err := tx.NamedExecContext(ctx, q, newTransactionRow(txn)); err != nil {
		return errors.Wrap(err, "inserting transaction")
	}
	return nil
}

func (repo *billingRepository) RecordPayment(ctx context.Context, regisID int, txn billing.Transaction, apply func(*billing.Registration) error) (billing.Registration, error) {
	var reg billing.Registration
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) (err error) {
		if reg, err = lockRegistration(ctx, tx, regisID); err != nil {
			return err
		}
		if err = apply(&reg); err != nil {
			return err
		}
		txn.RegistrationID = reg.ID
		if err = insertTransaction(ctx, tx, txn); err != nil {
			return err
		}
		return updateRegistration(ctx, tx, reg)
	})
	if err != nil {
		return billing.Registration{}, err
	}
	return reg, nil
}

func (repo *billingRepository) DeleteTransaction(ctx context.Context, id uuid.UUID, revert func(*billing.Registration, billing.Transaction)) (billing.Registration, error) {
	var reg billing.Registration
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		var row transactionRow
		q := `DELETE FROM transaction WHERE id = $1
			RETURNING id, regis_id, amount, method, content, status, employee_id, created_at`
		if err := tx.GetContext(ctx, &row, q, id); err != nil {
			return notFound(err, billing.ErrTransactionNotFound)
		}
		var err error
		if reg, err = lockRegistration(ctx, tx, row.RegistrationID); err != nil {
			return err
		}
		revert(&reg, row.transaction())
		return updateRegistration(ctx, tx, reg)
	})
	if err != nil {
		return billing.Registration{}, err
	}
	return reg, nil
}

func (repo *billingRepository) CreateRegistration(ctx context.Context, reg billing.Registration, txn billing.Transaction) (billing.Registration, error) {
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		// Concurrent registrations to the same class queue on its row.
		var capacity int
		if err := tx.GetContext(ctx, &capacity, `SELECT maximum_stu FROM class_room WHERE id = $1 FOR UPDATE`, reg.ClassID); err != nil {
			return notFound(err, billing.ErrClassNotFound)
		}
		var count struct {
			Total int  `db:"total"`
			Mine  bool `db:"mine"`
		}
		q := `SELECT COUNT(*) AS total, COALESCE(bool_or(student_id = $2), FALSE) AS mine
			FROM registration WHERE class_id = $1`
		if err := tx.GetContext(ctx, &count, q, reg.ClassID, reg.StudentID); err != nil {
			return errors.Wrap(err, "counting registrations")
		}
		if count.Mine {
			return billing.ErrAlreadyRegistered
		}
		if count.Total >= capacity {
			return billing.ErrClassFull
		}

		q = `INSERT INTO registration (student_id, class_id, actual_tuition, paid, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
		if err := tx.GetContext(ctx, &reg.ID, q, reg.StudentID, reg.ClassID, reg.ActualTuition, reg.Paid, string(reg.Status), reg.CreatedAt); err != nil {
			return errors.Wrap(err, "inserting registration")
		}
		txn.RegistrationID = reg.ID
		if err := insertTransaction(ctx, tx, txn); err != nil {
			return err
		}
		var err error
		reg, err = lockRegistration(ctx, tx, reg.ID)
		return err
	})
	if err != nil {
		return billing.Registration{}, err
	}
	return reg, nil
}

func (repo *billingRepository) QueryClasses(ctx context.Context, courseID, levelID int) ([]billing.Class, error) {
	classes := []billing.Class{}
	q := `SELECT c.id, c.course_id, co.name AS course_name, c.level_id, l.name AS level_name, c.start_time,
			c.maximum_stu, COUNT(r.id) AS current_count, l.tuition
		FROM class_room c
		JOIN course co ON co.id = c.course_id
		JOIN level l ON l.id = c.level_id
		LEFT JOIN registration r ON r.class_id = c.id
		WHERE c.course_id = $1 AND c.level_id = $2
		GROUP BY c.id, co.name, l.name, l.tuition
		ORDER BY c.start_time, c.id`
	if err := repo.db.SelectContext(ctx, &classes, q, courseID, levelID); err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}
	return classes, nil
}

func (repo *billingRepository) QueryCourseStats(ctx context.Context) ([]billing.CourseStats, error) {
	var stats []billing.CourseStats
	q := `SELECT co.id AS course_id, co.name AS course_name, COUNT(r.id) AS students
		FROM course co
		LEFT JOIN class_room c ON c.course_id = co.id
		LEFT JOIN registration r ON r.class_id = c.id
		GROUP BY co.id, co.name
		ORDER BY co.id`
	if err := repo.db.SelectContext(ctx, &stats, q); err != nil {
		return nil, errors.Wrap(err, "querying course stats")
	}
	return stats, nil
}

func (repo *billingRepository) QueryLevels(ctx context.Context) ([]billing.Level, error) {
	var levels []billing.Level
	if err := repo.db.SelectContext(ctx, &levels, `SELECT id, name, tuition FROM level ORDER BY id`); err != nil {
		return nil, errors.Wrap(err, "querying levels")
	}
	return levels, nil
}

func (repo *billingRepository) UpdateTuitions(ctx context.Context, tuitions map[int]float64) error {
	return withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		for id, tuition := range tuitions {
			if _, err := tx.ExecContext(ctx, `UPDATE level SET tuition = $1 WHERE id = $2`, tuition, id); err != nil {
				return errors.Wrapf(err, "updating tuition of level %d", id)
			}
		}
		return nil
	})
}

func (repo *billingRepository) GetClassTuition(ctx context.Context, classID int) (billing.ClassTuition, error) {
	var ct billing.ClassTuition
	q := `SELECT c.id AS class_id, co.name AS course_name, l.name AS level_name, l.tuition
		FROM class_room c
		JOIN course co ON co.id = c.course_id
		JOIN level l ON l.id = c.level_id
		WHERE c.id = $1`
	if err := repo.db.GetContext(ctx, &ct, q, classID); err != nil {
		return billing.ClassTuition{}, notFound(err, billing.ErrClassNotFound)
	}
	return ct, nil
}

type transactionViewRow struct {
	transactionRow
	StudentName  string `db:"student_name"`
	StudentPhone string `db:"student_phone"`
	CourseName   string `db:"course_name"`
}

func (repo *billingRepository) QueryTransactions(ctx context.Context, f billing.TransactionFilter) ([]billing.TransactionView, error) {
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if f.Search != "" {
		p := arg("%" + f.Search + "%")
		conds = append(conds, fmt.Sprintf("(t.id::text ILIKE %[1]s OR t.content ILIKE %[1]s OR u.name ILIKE %[1]s OR COALESCE(u.phone, '') ILIKE %[1]s)", p))
	}
	if f.Status != "" {
		conds = append(conds, "t.status = "+arg(f.Status))
	}
	if f.Method != "" {
		conds = append(conds, "t.method = "+arg(string(f.Method)))
	}
	if !f.From.IsZero() {
		conds = append(conds, "t.created_at >= "+arg(f.From))
	}
	if !f.To.IsZero() {
		conds = append(conds, "t.created_at < "+arg(f.To))
	}

	q := `SELECT t.id, t.regis_id, t.amount, t.method, t.content, t.status, t.employee_id, t.created_at,
			u.name AS student_name, COALESCE(u.phone, '') AS student_phone, co.name AS course_name
		FROM transaction t
		JOIN registration r ON r.id = t.regis_id
		JOIN "user" u ON u.id = r.student_id
		JOIN class_room c ON c.id = r.class_id
		JOIN course co ON co.id = c.course_id`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY t.created_at DESC, t.id"

	var rows []transactionViewRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying transactions")
	}
	txns := make([]billing.TransactionView, 0, len(rows))
	for _, row := range rows {
		txns = append(txns, billing.TransactionView{
			Transaction:  row.transaction(),
			StudentName:  row.StudentName,
			StudentPhone: row.StudentPhone,
			CourseName:   row.CourseName,
		})
	}
	return txns, nil
}
