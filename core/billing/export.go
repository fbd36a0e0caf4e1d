package billing

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// TransactionCSVHeader is the first row written by WriteTransactionsCSV.
var TransactionCSVHeader = []string{"id", "date", "student", "course", "amount", "method", "status", "content"}

// StudentLabel renders a learner as "Name (phone)", or just the name without a phone.
func (v TransactionView) StudentLabel() string {
	if v.StudentPhone == "" {
		return v.StudentName
	}
	return v.StudentName + " (" + v.StudentPhone + ")"
}

// WriteTransactionsCSV writes txns to w, one row per transaction after TransactionCSVHeader.
// Amounts are written as plain integers so spreadsheets can sum them.
func WriteTransactionsCSV(w io.Writer, txns []TransactionView) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(TransactionCSVHeader); err != nil {
		return errors.Wrap(err, "writing csv header")
	}
	for _, txn := range txns {
		record := []string{
			txn.ID.String(),
			txn.CreatedAt.UTC().Format(time.RFC3339),
			txn.StudentLabel(),
			txn.CourseName,
			strconv.FormatFloat(txn.Amount, 'f', 0, 64),
			string(txn.Method),
			txn.Status,
			txn.Content,
		}
		if err := cw.Write(record); err != nil {
			return errors.Wrapf(err, "writing transaction %s", txn.ID)
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flushing csv")
}
