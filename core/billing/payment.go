package billing

import (
	"math"
	"sort"
	"strconv"

	"github.com/pkg/errors"

	"github.com/anquinko/academia/core"
)

var (
	ErrAlreadySettled = core.NewConflictError("this registration is already paid")
	ErrNoChange       = core.NewConflictError("no tuition was changed")

	errInvalidPayment = errors.New("invalid payment")
)

// StatusFor is the status of an invoice of the given tuition once paid has been collected.
func StatusFor(tuition, paid float64) Status {
	switch {
	case paid <= 0:
		return StatusUnpaid
	case tuition-paid <= 0:
		return StatusPaid
	default:
		return StatusPartial
	}
}

// ApplyPayment adds amount to what was paid on reg. The amount may exceed the debt
// by at most HalfPaymentTolerance, and a remaining debt under that tolerance settles the invoice.
func ApplyPayment(reg *Registration, amount float64) error {
	debt := reg.Debt()
	if debt <= 0 {
		return ErrAlreadySettled
	}

	var msg string
	switch {
	case math.IsNaN(amount) || amount <= 0:
		msg = "amount must be greater than 0"
	case amount > debt+HalfPaymentTolerance:
		msg = "amount cannot exceed the debt of " + FormatAmount(debt)
	}
	if msg != "" {
		return core.NewValidationError(errInvalidPayment, core.FieldError{Field: "amount", Error: msg})
	}

	reg.Paid += amount
	if debt-amount <= HalfPaymentTolerance {
		reg.Status = StatusPaid
	} else {
		reg.Status = StatusPartial
	}
	return nil
}

// RevertPayment takes amount back from what was paid on reg (deleted transaction).
func RevertPayment(reg *Registration, amount float64) {
	reg.Paid = math.Max(reg.Paid-amount, 0)
	reg.Status = StatusFor(reg.ActualTuition, reg.Paid)
}

// InitialCharge is the amount charged at registration: the full tuition or half of it.
func InitialCharge(tuition float64, percent int) (float64, error) {
	switch percent {
	case 100:
		return tuition, nil
	case 50:
		return math.Ceil(tuition / 2), nil
	}
	return 0, core.NewValidationError(nil, core.FieldError{Field: "percent", Error: "percent must be one of 50 or 100"})
}

// ValidateTuitionUpdate checks new tuitions ({levelID: tuition}) against the current levels.
func ValidateTuitionUpdate(levels []Level, tuitions map[int]float64) error {
	current := make(map[int]float64, len(levels))
	for _, lvl := range levels {
		current[lvl.ID] = lvl.Tuition
	}

	var (
		flds    []core.FieldError
		changed bool
	)
	for _, lvl := range levels {
		tuition, ok := tuitions[lvl.ID]
		if !ok {
			continue
		}
		if math.IsNaN(tuition) || tuition <= 0 {
			flds = append(flds, core.FieldError{Field: tuitionField(lvl.ID), Error: "tuition must be greater than 0"})
		} else if tuition != lvl.Tuition {
			changed = true
		}
	}
	for id := range tuitions {
		if _, ok := current[id]; !ok {
			flds = append(flds, core.FieldError{Field: tuitionField(id), Error: "unknown level"})
		}
	}

	if flds != nil {
		sort.Slice(flds, func(i, j int) bool { return flds[i].Field < flds[j].Field })
		return core.NewValidationError(nil, flds...)
	}
	if !changed {
		return ErrNoChange
	}
	return nil
}

func tuitionField(levelID int) string { return "tuitions." + strconv.Itoa(levelID) }
