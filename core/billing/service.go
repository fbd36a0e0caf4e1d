package billing

import (
	"context"
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/anquinko/academia/core"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound            = errors.New("registration not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrClassNotFound       = errors.New("class not found")
	ErrClassFull           = core.NewConflictError("this class is full")
	ErrAlreadyRegistered   = core.NewConflictError("already registered to this class")

	errNoTuition = errors.New("class has no tuition")
)

// DefaultTopCourses is the number of courses TopCourses returns when asked for none.
const DefaultTopCourses = 3

type (
	Repository interface {
		// QueryUnpaid returns the UNPAID and PARTIAL registrations whose student or course name contains search.
		QueryUnpaid(ctx context.Context, search string) ([]Registration, error)
		GetRegistration(ctx context.Context, id int) (Registration, error)
		// RecordPayment locks the registration, runs apply on it and stores the result along with txn,
		// in a single DB transaction. Nothing is stored when apply fails.
		RecordPayment(ctx context.Context, regisID int, txn Transaction, apply func(reg *Registration) error) (Registration, error)
		// DeleteTransaction removes a transaction, locks its registration and stores it once revert has run,
		// in a single DB transaction.
		DeleteTransaction(ctx context.Context, id uuid.UUID, revert func(reg *Registration, txn Transaction)) (Registration, error)
		// CreateRegistration stores reg and its first payment txn in a single DB transaction.
		// It fails with ErrClassFull or ErrAlreadyRegistered.
		CreateRegistration(ctx context.Context, reg Registration, txn Transaction) (Registration, error)
		QueryClasses(ctx context.Context, courseID, levelID int) ([]Class, error)
		QueryLevels(ctx context.Context) ([]Level, error)
		UpdateTuitions(ctx context.Context, tuitions map[int]float64) error
		GetClassTuition(ctx context.Context, classID int) (ClassTuition, error)
		// QueryTransactions returns the matching transactions, latest first.
		QueryTransactions(ctx context.Context, filter TransactionFilter) ([]TransactionView, error)
		// QueryCourseStats counts the registrations of every course.
		QueryCourseStats(ctx context.Context) ([]CourseStats, error)
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
	}
)

func NewService(repo Repository, mailSvc core.EmailService) *Service {
	return &Service{repo: repo, mailSvc: mailSvc}
}

// Unpaid lists the registrations a cashier still has to collect money for.
func (svc *Service) Unpaid(ctx context.Context, search string) ([]Registration, error) {
	regs, err := svc.repo.QueryUnpaid(ctx, core.CleanString(search))
	if err != nil {
		return nil, errors.Wrap(err, "querying unpaid registrations")
	}
	return regs, nil
}

func (svc *Service) PaymentOptions(ctx context.Context, regisID int) (PaymentOptions, error) {
	reg, err := svc.repo.GetRegistration(ctx, regisID)
	if err != nil {
		return PaymentOptions{}, errors.Wrap(err, "getting registration")
	}
	return DerivePaymentOptions(reg.Debt(), reg.ActualTuition), nil
}

// RecordPayment collects np on a registration on behalf of employeeID and mails a receipt.
// The debt is checked against the locked registration row.
func (svc *Service) RecordPayment(ctx context.Context, regisID int, np NewPayment, employeeID int) (PaymentReceipt, error) {
	method := np.Method
	if method == "" {
		method = MethodCash
	}
	txn := Transaction{
		ID:             uuid.New(),
		RegistrationID: regisID,
		Amount:         np.Amount,
		Method:         method,
		Content:        core.CleanString(np.Content),
		Status:         TransactionSuccess,
		EmployeeID:     employeeID,
		CreatedAt:      NowFunc().UTC(),
	}
	reg, err := svc.repo.RecordPayment(ctx, regisID, txn, func(reg *Registration) error {
		return ApplyPayment(reg, np.Amount)
	})
	if err != nil {
		return PaymentReceipt{}, errors.Wrap(err, "recording payment")
	}

	svc.sendReceipt(reg, txn)
	return PaymentReceipt{Transaction: txn, Registration: reg}, nil
}

func (svc *Service) sendReceipt(reg Registration, txn Transaction) {
	if reg.StudentEmail == "" || svc.mailSvc == nil {
		return
	}
	debt := reg.Debt()
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: reg.StudentName, Address: reg.StudentEmail}},
		Subject:      "Payment receipt",
		TemplateName: "payment_receipt",
		TemplateData: map[string]interface{}{
			"StudentName":   reg.StudentName,
			"CourseName":    reg.CourseName,
			"Amount":        FormatAmount(txn.Amount),
			"TransactionID": txn.ID.String(),
			"Settled":       reg.Status == StatusPaid,
			"Remaining":     FormatAmount(debt),
		},
	})
}

// DeleteTransaction cancels a transaction and takes its amount back from the registration.
func (svc *Service) DeleteTransaction(ctx context.Context, id uuid.UUID) (Registration, error) {
	reg, err := svc.repo.DeleteTransaction(ctx, id, func(reg *Registration, txn Transaction) {
		RevertPayment(reg, txn.Amount)
	})
	if err != nil {
		return Registration{}, errors.Wrap(err, "deleting transaction")
	}
	return reg, nil
}

// Classes lists the classes of a course at a level. Both are required: nothing is listed otherwise.
func (svc *Service) Classes(ctx context.Context, courseID, levelID int) ([]Class, error) {
	if courseID <= 0 || levelID <= 0 {
		return []Class{}, nil
	}
	classes, err := svc.repo.QueryClasses(ctx, courseID, levelID)
	if err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}
	return classes, nil
}

// Register enrols studentID in a class and records the upfront payment of nr.Percent
// of the tuition. A confirmation is mailed to the learner.
func (svc *Service) Register(ctx context.Context, nr NewRegistration, studentID int) (PaymentReceipt, error) {
	ct, err := svc.repo.GetClassTuition(ctx, nr.ClassID)
	if err != nil {
		return PaymentReceipt{}, errors.Wrap(err, "getting class tuition")
	}
	if ct.Tuition <= 0 {
		return PaymentReceipt{}, core.NewValidationError(errNoTuition, core.FieldError{Field: "class_id", Error: "no tuition is set for this class"})
	}
	amount, err := InitialCharge(ct.Tuition, nr.Percent)
	if err != nil {
		return PaymentReceipt{}, err
	}

	method := nr.Method
	if method == "" {
		method = MethodBanking
	}
	now := NowFunc().UTC()
	reg := Registration{
		StudentID:     studentID,
		ClassID:       ct.ClassID,
		CourseName:    ct.CourseName,
		ActualTuition: ct.Tuition,
		Paid:          amount,
		Status:        StatusFor(ct.Tuition, amount),
		CreatedAt:     now,
	}
	txn := Transaction{
		ID:        uuid.New(),
		Amount:    amount,
		Method:    method,
		Content:   fmt.Sprintf("Registration to class %d (%d%%)", ct.ClassID, nr.Percent),
		Status:    TransactionSuccess,
		CreatedAt: now,
	}
	if reg, err = svc.repo.CreateRegistration(ctx, reg, txn); err != nil {
		return PaymentReceipt{}, errors.Wrap(err, "creating registration")
	}
	txn.RegistrationID = reg.ID

	if reg.StudentEmail != "" && svc.mailSvc != nil {
		svc.mailSvc.SendMessages(&core.EmailMessage{
			To:           []mail.Address{{Name: reg.StudentName, Address: reg.StudentEmail}},
			Subject:      "Welcome to " + ct.CourseName,
			TemplateName: "register_success",
			TemplateData: map[string]interface{}{
				"StudentName": reg.StudentName,
				"CourseName":  ct.CourseName,
				"LevelName":   ct.LevelName,
				"ClassID":     ct.ClassID,
				"Amount":      FormatAmount(amount),
				"Settled":     reg.Status == StatusPaid,
				"Remaining":   FormatAmount(reg.Debt()),
			},
		})
	}
	return PaymentReceipt{Transaction: txn, Registration: reg}, nil
}

// Transactions lists the transactions matching f, latest first.
func (svc *Service) Transactions(ctx context.Context, f TransactionFilter) ([]TransactionView, error) {
	f.Search = core.CleanString(f.Search)
	f.Status = strings.ToUpper(core.CleanString(f.Status))
	f.Method = Method(strings.ToUpper(core.CleanString(string(f.Method))))
	if f.Method != "" && f.Method != MethodCash && f.Method != MethodBanking {
		return nil, core.NewValidationError(nil, core.FieldError{Field: "method", Error: "method must be one of CASH or BANKING"})
	}
	if !f.From.IsZero() && !f.To.IsZero() && !f.From.Before(f.To) {
		return nil, core.NewValidationError(nil, core.FieldError{Field: "to", Error: "to must be after from"})
	}

	txns, err := svc.repo.QueryTransactions(ctx, f)
	if err != nil {
		return nil, errors.Wrap(err, "querying transactions")
	}
	return txns, nil
}

// StudentsPerCourse counts the registrations of every course, by course ID.
func (svc *Service) StudentsPerCourse(ctx context.Context) ([]CourseStats, error) {
	stats, err := svc.repo.QueryCourseStats(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying course stats")
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].CourseID < stats[j].CourseID })
	return stats, nil
}

// TopCourses returns the n courses with the most registrations (DefaultTopCourses when n <= 0).
func (svc *Service) TopCourses(ctx context.Context, n int) ([]CourseStats, error) {
	if n <= 0 {
		n = DefaultTopCourses
	}
	stats, err := svc.StudentsPerCourse(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(stats, func(i, j int) bool {
		if stats[i].Students != stats[j].Students {
			return stats[i].Students > stats[j].Students
		}
		return stats[i].CourseName < stats[j].CourseName
	})
	if len(stats) > n {
		stats = stats[:n]
	}
	return stats, nil
}

func (svc *Service) Levels(ctx context.Context) ([]Level, error) {
	levels, err := svc.repo.QueryLevels(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying levels")
	}
	return levels, nil
}

// UpdateTuitions sets new tuitions ({levelID: tuition}) and returns the updated levels.
func (svc *Service) UpdateTuitions(ctx context.Context, tuitions map[int]float64) ([]Level, error) {
	levels, err := svc.Levels(ctx)
	if err != nil {
		return nil, err
	}
	if err = ValidateTuitionUpdate(levels, tuitions); err != nil {
		return nil, err
	}
	if err = svc.repo.UpdateTuitions(ctx, tuitions); err != nil {
		return nil, errors.Wrap(err, "updating tuitions")
	}
	return svc.Levels(ctx)
}

// Quote returns the amount charged when registering to a class, for a 50 or 100 percent payment.
func (svc *Service) Quote(ctx context.Context, classID, percent int) (Quote, error) {
	ct, err := svc.repo.GetClassTuition(ctx, classID)
	if err != nil {
		return Quote{}, errors.Wrap(err, "getting class tuition")
	}
	amount, err := InitialCharge(ct.Tuition, percent)
	if err != nil {
		return Quote{}, err
	}
	return Quote{
		ClassID:    classID,
		CourseName: ct.CourseName,
		LevelName:  ct.LevelName,
		Tuition:    ct.Tuition,
		Percent:    percent,
		Amount:     amount,
		Display:    FormatAmount(amount),
	}, nil
}

// MonthlyRevenue sums the successful transactions of every month of year.
func (svc *Service) MonthlyRevenue(ctx context.Context, year int) ([]MonthlyRevenue, error) {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	txns, err := svc.repo.QueryTransactions(ctx, TransactionFilter{Status: TransactionSuccess, From: from, To: from.AddDate(1, 0, 0)})
	if err != nil {
		return nil, errors.Wrap(err, "querying transactions")
	}

	revenue := make([]MonthlyRevenue, 12)
	for i := range revenue {
		revenue[i].Month = time.Month(i + 1)
	}
	for _, txn := range txns {
		revenue[txn.CreatedAt.UTC().Month()-1].Total += txn.Amount
	}
	for i := range revenue {
		revenue[i].Display = FormatAmount(revenue[i].Total)
	}
	return revenue, nil
}
