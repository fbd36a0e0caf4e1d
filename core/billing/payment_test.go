package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anquinko/academia/core"
)

func TestDerivePaymentOptions(t *testing.T) {
	half := func(v float64) *float64 { return &v }

	tests := []struct {
		name    string
		debt    float64
		tuition float64
		want    PaymentOptions
	}{
		{name: "half offered", debt: 600000, tuition: 1000000, want: PaymentOptions{Full: 600000, Half: half(500000)}},
		{name: "within tolerance", debt: 500500, tuition: 1000000, want: PaymentOptions{Full: 500500}},
		{name: "exactly at tolerance", debt: 501000, tuition: 1000000, want: PaymentOptions{Full: 501000}},
		{name: "unpaid", debt: 1000000, tuition: 1000000, want: PaymentOptions{Full: 1000000, Half: half(500000)}},
		{name: "settled", debt: 0, tuition: 1000000, want: PaymentOptions{Full: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DerivePaymentOptions(tt.debt, tt.tuition))
		})
	}
}

func TestApplyPayment(t *testing.T) {
	tests := []struct {
		name       string
		paid       float64
		amount     float64
		wantErr    error
		wantField  string
		wantPaid   float64
		wantStatus Status
	}{
		{name: "settled", paid: 1000000, amount: 1000, wantErr: ErrAlreadySettled},
		{name: "zero amount", paid: 0, amount: 0, wantField: "amount"},
		{name: "negative amount", paid: 0, amount: -5, wantField: "amount"},
		{name: "over tolerance", paid: 500000, amount: 501001, wantField: "amount"},
		{name: "partial", paid: 0, amount: 500000, wantPaid: 500000, wantStatus: StatusPartial},
		{name: "full", paid: 500000, amount: 500000, wantPaid: 1000000, wantStatus: StatusPaid},
		{name: "remaining within tolerance", paid: 0, amount: 999500, wantPaid: 999500, wantStatus: StatusPaid},
		{name: "overpaid within tolerance", paid: 500000, amount: 501000, wantPaid: 1001000, wantStatus: StatusPaid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := Registration{ActualTuition: 1000000, Paid: tt.paid, Status: StatusFor(1000000, tt.paid)}
			err := ApplyPayment(&reg, tt.amount)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantField != "":
				require.Error(t, err)
				verr, ok := err.(*core.ValidationError)
				require.True(t, ok, "want *core.ValidationError; got %T", err)
				assert.Equal(t, tt.wantField, verr.Fields[0].Field)
				assert.Equal(t, tt.paid, reg.Paid)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.wantPaid, reg.Paid)
				assert.Equal(t, tt.wantStatus, reg.Status)
			}
		})
	}
}

func TestRevertPayment(t *testing.T) {
	tests := []struct {
		name       string
		paid       float64
		amount     float64
		wantPaid   float64
		wantStatus Status
	}{
		{name: "back to unpaid", paid: 500000, amount: 500000, wantPaid: 0, wantStatus: StatusUnpaid},
		{name: "floored at zero", paid: 200000, amount: 500000, wantPaid: 0, wantStatus: StatusUnpaid},
		{name: "partial", paid: 1000000, amount: 400000, wantPaid: 600000, wantStatus: StatusPartial},
		{name: "still paid", paid: 1300000, amount: 300000, wantPaid: 1000000, wantStatus: StatusPaid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := Registration{ActualTuition: 1000000, Paid: tt.paid}
			RevertPayment(&reg, tt.amount)
			assert.Equal(t, tt.wantPaid, reg.Paid)
			assert.Equal(t, tt.wantStatus, reg.Status)
		})
	}
}

func TestInitialCharge(t *testing.T) {
	tests := []struct {
		tuition float64
		percent int
		want    float64
		wantErr bool
	}{
		{tuition: 1500000, percent: 100, want: 1500000},
		{tuition: 1500000, percent: 50, want: 750000},
		{tuition: 1500001, percent: 50, want: 750001},
		{tuition: 1500000, percent: 30, wantErr: true},
	}
	for _, tt := range tests {
		got, err := InitialCharge(tt.tuition, tt.percent)
		if (err != nil) != tt.wantErr {
			t.Errorf("InitialCharge(%v, %v) error = %v; wantErr %v", tt.tuition, tt.percent, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("InitialCharge(%v, %v) = %v; want %v", tt.tuition, tt.percent, got, tt.want)
		}
	}
}

func TestValidateTuitionUpdate(t *testing.T) {
	levels := []Level{{ID: 1, Name: "A1", Tuition: 1000000}, {ID: 2, Name: "A2", Tuition: 1200000}}

	tests := []struct {
		name       string
		tuitions   map[int]float64
		wantErr    error
		wantFields []string
	}{
		{name: "changed", tuitions: map[int]float64{1: 1100000, 2: 1200000}},
		{name: "unchanged", tuitions: map[int]float64{1: 1000000}, wantErr: ErrNoChange},
		{name: "empty", tuitions: map[int]float64{}, wantErr: ErrNoChange},
		{name: "not positive", tuitions: map[int]float64{1: 0, 2: -1}, wantFields: []string{"tuitions.1", "tuitions.2"}},
		{name: "unknown level", tuitions: map[int]float64{1: 900000, 9: 10}, wantFields: []string{"tuitions.9"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTuitionUpdate(levels, tt.tuitions)
			if tt.wantFields == nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.IsType(t, &core.ValidationError{}, err)
			var fields []string
			for _, fe := range err.(*core.ValidationError).Fields {
				fields = append(fields, fe.Field)
			}
			assert.Equal(t, tt.wantFields, fields)
		})
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "1.500.000 đ", FormatAmount(1500000))
	assert.Equal(t, "750.001 đ", FormatAmount(750000.5))
	assert.Equal(t, "0 đ", FormatAmount(0))
}
