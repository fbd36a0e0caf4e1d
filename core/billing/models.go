package billing

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusUnpaid  Status = "UNPAID"
	StatusPaid    Status = "PAID"
	StatusPartial Status = "PARTIAL"
	StatusOverdue Status = "OVERDUE"
)

type Method string

const (
	MethodCash    Method = "CASH"
	MethodBanking Method = "BANKING"
)

const TransactionSuccess = "SUCCESS"

// Registration is the enrolment of a learner in a class, and the invoice attached to it.
type Registration struct {
	ID            int       `json:"id" db:"id"`
	StudentID     int       `json:"student_id" db:"student_id"`
	StudentName   string    `json:"student_name" db:"student_name"`
	StudentEmail  string    `json:"-" db:"student_email"`
	ClassID       int       `json:"class_id" db:"class_id"`
	CourseName    string    `json:"course_name" db:"course_name"`
	ActualTuition float64   `json:"actual_tuition" db:"actual_tuition"`
	Paid          float64   `json:"paid" db:"paid"`
	Status        Status    `json:"status" db:"status"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

func (r Registration) Debt() float64 { return r.ActualTuition - r.Paid }

type Transaction struct {
	ID             uuid.UUID `json:"id" db:"id"`
	RegistrationID int       `json:"registration_id" db:"regis_id"`
	Amount         float64   `json:"amount" db:"amount"`
	Method         Method    `json:"method" db:"method"`
	Content        string    `json:"content" db:"content"`
	Status         string    `json:"status" db:"status"`
	EmployeeID     int       `json:"employee_id" db:"employee_id"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"` // UTC
}

type Level struct {
	ID      int     `json:"id" db:"id"`
	Name    string  `json:"name" db:"name"`
	Tuition float64 `json:"tuition" db:"tuition"`
}

// ClassTuition is the tuition a class is charged at, through its level.
type ClassTuition struct {
	ClassID    int     `db:"class_id"`
	CourseName string  `db:"course_name"`
	LevelName  string  `db:"level_name"`
	Tuition    float64 `db:"tuition"`
}

// NewPayment contains the information needed to record a payment.
type NewPayment struct {
	Amount  float64 `json:"amount" validate:"required,gt=0"`
	Method  Method  `json:"method" validate:"omitempty,oneof=CASH BANKING"`
	Content string  `json:"content" validate:"max=500"`
}

type Quote struct {
	ClassID    int     `json:"class_id"`
	CourseName string  `json:"course_name"`
	LevelName  string  `json:"level_name"`
	Tuition    float64 `json:"tuition"`
	Percent    int     `json:"percent"`
	Amount     float64 `json:"amount"`
	Display    string  `json:"display"`
}

type MonthlyRevenue struct {
	Month   time.Month `json:"month"`
	Total   float64    `json:"total"`
	Display string     `json:"display"`
}

type PaymentReceipt struct {
	Transaction  Transaction  `json:"transaction"`
	Registration Registration `json:"registration"`
}

// Class is a class open for registration, with its tuition and fill rate.
type Class struct {
	ID           int       `json:"id" db:"id"`
	CourseID     int       `json:"course_id" db:"course_id"`
	CourseName   string    `json:"course_name" db:"course_name"`
	LevelID      int       `json:"level_id" db:"level_id"`
	LevelName    string    `json:"level_name" db:"level_name"`
	StartTime    time.Time `json:"start_time" db:"start_time"`
	MaxStudents  int       `json:"maximum_stu" db:"maximum_stu"`
	CurrentCount int       `json:"current_count" db:"current_count"`
	Tuition      float64   `json:"tuition" db:"tuition"`
}

func (c Class) Full() bool { return c.CurrentCount >= c.MaxStudents }

// NewRegistration is a learner's request to join a class, paying 50 or 100 percent upfront.
type NewRegistration struct {
	ClassID int    `json:"class_id" validate:"required"`
	Percent int    `json:"payment_percent" validate:"required,oneof=50 100"`
	Method  Method `json:"payment_method" validate:"omitempty,oneof=CASH BANKING"`
}

// TransactionView is a transaction with the learner and course it was collected for.
type TransactionView struct {
	Transaction
	StudentName  string `json:"student_name" db:"student_name"`
	StudentPhone string `json:"student_phone" db:"student_phone"`
	CourseName   string `json:"course_name" db:"course_name"`
}

// TransactionFilter narrows a transaction listing. Zero fields do not filter.
type TransactionFilter struct {
	Search string // transaction ID, content, learner name or phone
	Status string
	Method Method
	From   time.Time // inclusive
	To     time.Time // exclusive
}

// CourseStats counts the registrations of a course.
type CourseStats struct {
	CourseID   int    `json:"course_id" db:"course_id"`
	CourseName string `json:"course_name" db:"course_name"`
	Students   int    `json:"students" db:"students"`
}
