package echoapi_test

import (
	"encoding/csv"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anquinko/academia/core/billing"
	"github.com/anquinko/academia/core/user"
	"github.com/anquinko/academia/tests"
)

func regisPath(regisID int, suffix string) string {
	return "/v1/registrations/" + strconv.Itoa(regisID) + suffix
}

func Test_billingApi_paymentOptions(t *testing.T) {
	app := setup(t)
	token := getToken(t, app.conf, cashier)

	app.run(t, []httpTest{
		{
			name:     "teacher",
			method:   http.MethodGet,
			path:     regisPath(testutil.BinhEnglishRegID, "/payment-options"),
			token:    getToken(t, app.conf, teacher),
			wantCode: http.StatusForbidden,
			wantData: marshalObj(t, errForbidden),
		},
		{
			name:     "half offered",
			method:   http.MethodGet,
			path:     regisPath(testutil.BinhEnglishRegID, "/payment-options"),
			token:    token,
			wantCode: http.StatusOK,
			wantData: []byte(`{"full": 600000, "half": 500000, "full_display": "600.000 đ", "half_display": "500.000 đ"}`),
		},
		{
			name:     "full only",
			method:   http.MethodGet,
			path:     regisPath(testutil.ChiEnglishRegID, "/payment-options"),
			token:    getToken(t, app.conf, admin),
			wantCode: http.StatusOK,
			wantData: []byte(`{"full": 0, "half": null, "full_display": "0 đ", "half_display": null}`),
		},
		{
			name:     "not found",
			method:   http.MethodGet,
			path:     regisPath(999, "/payment-options"),
			token:    token,
			wantCode: http.StatusNotFound,
			wantData: marshalObj(t, httpErr{Error: billing.ErrNotFound.Error()}),
		},
	})
}

func Test_billingApi_payments(t *testing.T) {
	app := setup(t)
	token := getToken(t, app.conf, cashier)
	path := regisPath(testutil.BinhEnglishRegID, "/payments")

	app.run(t, []httpTest{
		{
			name:     "no amount",
			method:   http.MethodPost,
			path:     path,
			body:     []byte(`{"method": "CASH"}`),
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"amount": "this field is required"}),
		},
		{
			name:     "too much",
			method:   http.MethodPost,
			path:     path,
			body:     []byte(`{"amount": 2000000}`),
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"amount": "amount cannot exceed the debt of 600.000 đ"}),
		},
		{
			name:     "settled already",
			method:   http.MethodPost,
			path:     regisPath(testutil.ChiEnglishRegID, "/payments"),
			body:     []byte(`{"amount": 1000}`),
			token:    token,
			wantCode: http.StatusConflict,
			wantData: marshalObj(t, httpErr{Error: billing.ErrAlreadySettled.Error()}),
		},
	})

	var receipt billing.PaymentReceipt
	code := app.do(t, http.MethodPost, path, token, []byte(`{"amount": 600000, "method": "BANKING", "content": " Tuition "}`), &receipt)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, billing.StatusPaid, receipt.Registration.Status)
	assert.Equal(t, billing.MethodBanking, receipt.Transaction.Method)
	assert.Equal(t, "Tuition", receipt.Transaction.Content)
	assert.Equal(t, testutil.CashierID, receipt.Transaction.EmployeeID)
	assert.Len(t, app.mailSvc.SentMessages(), 1)

	var regs []billing.Registration
	code = app.do(t, http.MethodGet, "/v1/registrations?search=binh", token, nil, &regs)
	assert.Equal(t, http.StatusOK, code)
	assert.Empty(t, regs)

	var reg billing.Registration
	code = app.do(t, http.MethodDelete, "/v1/transactions/"+receipt.Transaction.ID.String(), token, nil, &reg)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, billing.StatusPartial, reg.Status)
	assert.Equal(t, 400000.0, reg.Paid)

	app.run(t, []httpTest{
		{
			name:     "deleted twice",
			method:   http.MethodDelete,
			path:     "/v1/transactions/" + receipt.Transaction.ID.String(),
			token:    token,
			wantCode: http.StatusNotFound,
			wantData: marshalObj(t, httpErr{Error: billing.ErrTransactionNotFound.Error()}),
		},
		{
			name:     "not a uuid",
			method:   http.MethodDelete,
			path:     "/v1/transactions/42",
			token:    token,
			wantCode: http.StatusNotFound,
			wantData: marshalObj(t, httpErr{Error: "not found"}),
		},
	})
}

func Test_billingApi_tuition(t *testing.T) {
	app := setup(t)
	token := getToken(t, app.conf, cashier)

	app.run(t, []httpTest{
		{
			name:     "half",
			method:   http.MethodGet,
			path:     "/v1/tuition?class_id=31&percent=50",
			token:    token,
			wantCode: http.StatusOK,
			wantData: []byte(`{"class_id": 31, "course_name": "French", "level_name": "B1", "tuition": 1500000, "percent": 50,
				"amount": 750000, "display": "750.000 đ"}`),
		},
		{
			name:     "bad percent",
			method:   http.MethodGet,
			path:     "/v1/tuition?class_id=31&percent=abc",
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"percent": "must be an integer"}),
		},
		{
			name:     "unknown class",
			method:   http.MethodGet,
			path:     "/v1/tuition?class_id=99",
			token:    token,
			wantCode: http.StatusNotFound,
			wantData: marshalObj(t, httpErr{Error: billing.ErrClassNotFound.Error()}),
		},
		{
			name:     "cashier cannot update tuitions",
			method:   http.MethodPut,
			path:     "/v1/levels/tuition",
			body:     []byte(`{"tuitions": {"20": 1200000}}`),
			token:    token,
			wantCode: http.StatusForbidden,
			wantData: marshalObj(t, errForbidden),
		},
	})

	var levels []billing.Level
	code := app.do(t, http.MethodPut, "/v1/levels/tuition", getToken(t, app.conf, admin), []byte(`{"tuitions": {"20": 1200000}}`), &levels)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, levels, 2)
	assert.Equal(t, 1200000.0, levels[0].Tuition)
}

func Test_statsApi_revenue(t *testing.T) {
	app := setup(t)

	app.run(t, []httpTest{
		{
			name:     "cashier",
			method:   http.MethodGet,
			path:     "/v1/stats/revenue?year=2024",
			token:    getToken(t, app.conf, cashier),
			wantCode: http.StatusForbidden,
			wantData: marshalObj(t, errForbidden),
		},
	})

	var revenue []billing.MonthlyRevenue
	code := app.do(t, http.MethodGet, "/v1/stats/revenue?year=2024", getToken(t, app.conf, admin), nil, &revenue)
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, revenue, 12)
}

func Test_billingApi_classes(t *testing.T) {
	app := setup(t)
	token := getToken(t, app.conf, student)

	app.run(t, []httpTest{
		{
			name:     "no token",
			method:   http.MethodGet,
			path:     "/v1/classes?course_id=11&level_id=21",
			wantCode: http.StatusUnauthorized,
			wantData: marshalObj(t, errMissingToken),
		},
		{
			name:     "french b1",
			method:   http.MethodGet,
			path:     "/v1/classes?course_id=11&level_id=21",
			token:    token,
			wantCode: http.StatusOK,
			wantData: []byte(`[{"id": 31, "course_id": 11, "course_name": "French", "level_id": 21, "level_name": "B1",
				"start_time": "2024-09-03T18:00:00Z", "maximum_stu": 2, "current_count": 1, "tuition": 1500000}]`),
		},
		{
			name:     "level missing",
			method:   http.MethodGet,
			path:     "/v1/classes?course_id=11",
			token:    token,
			wantCode: http.StatusOK,
			wantData: []byte(`[]`),
		},
		{
			name:     "bad course",
			method:   http.MethodGet,
			path:     "/v1/classes?course_id=x&level_id=21",
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"course_id": "must be an integer"}),
		},
	})
}

func Test_billingApi_register(t *testing.T) {
	app := setup(t)
	binh := user.User{ID: testutil.BinhID, Username: "binh", Roles: []string{user.RoleStudent}}
	chi := user.User{ID: testutil.ChiID, Username: "chi", Roles: []string{user.RoleStudent}}

	app.run(t, []httpTest{
		{
			name:     "cashier",
			method:   http.MethodPost,
			path:     "/v1/registrations",
			body:     []byte(`{"class_id": 31, "payment_percent": 100}`),
			token:    getToken(t, app.conf, cashier),
			wantCode: http.StatusForbidden,
			wantData: marshalObj(t, errForbidden),
		},
		{
			name:     "class missing",
			method:   http.MethodPost,
			path:     "/v1/registrations",
			body:     []byte(`{"payment_percent": 50}`),
			token:    getToken(t, app.conf, binh),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"class_id": "this field is required"}),
		},
		{
			name:     "already registered",
			method:   http.MethodPost,
			path:     "/v1/registrations",
			body:     []byte(`{"class_id": 30, "payment_percent": 100}`),
			token:    getToken(t, app.conf, student),
			wantCode: http.StatusConflict,
			wantData: marshalObj(t, httpErr{Error: billing.ErrAlreadyRegistered.Error()}),
		},
		{
			name:     "unknown class",
			method:   http.MethodPost,
			path:     "/v1/registrations",
			body:     []byte(`{"class_id": 999, "payment_percent": 100}`),
			token:    getToken(t, app.conf, binh),
			wantCode: http.StatusNotFound,
			wantData: marshalObj(t, httpErr{Error: billing.ErrClassNotFound.Error()}),
		},
	})

	var receipt billing.PaymentReceipt
	code := app.do(t, http.MethodPost, "/v1/registrations", getToken(t, app.conf, binh), []byte(`{"class_id": 31, "payment_percent": 50}`), &receipt)
	assert.Equal(t, http.StatusCreated, code)
	assert.Equal(t, testutil.BinhID, receipt.Registration.StudentID)
	assert.Equal(t, 750000.0, receipt.Registration.Paid)
	assert.Equal(t, billing.StatusPartial, receipt.Registration.Status)
	assert.Equal(t, billing.MethodBanking, receipt.Transaction.Method)
	require.Len(t, app.mailSvc.SentMessages(), 1)
	assert.Equal(t, "register_success", app.mailSvc.SentMessages()[0].TemplateName)

	app.run(t, []httpTest{
		{
			name:     "class full",
			method:   http.MethodPost,
			path:     "/v1/registrations",
			body:     []byte(`{"class_id": 31, "payment_percent": 100}`),
			token:    getToken(t, app.conf, chi),
			wantCode: http.StatusConflict,
			wantData: marshalObj(t, httpErr{Error: billing.ErrClassFull.Error()}),
		},
	})

	// the cashier sees the new registration among the unpaid ones
	var regs []billing.Registration
	code = app.do(t, http.MethodGet, "/v1/registrations?search=binh", getToken(t, app.conf, cashier), nil, &regs)
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, regs, 2)
}

func Test_billingApi_transactions(t *testing.T) {
	app := setup(t)
	token := getToken(t, app.conf, cashier)

	for _, p := range []struct {
		regisID int
		body    string
	}{
		{regisID: testutil.AnEnglishRegID, body: `{"amount": 300000, "content": "first"}`},
		{regisID: testutil.BinhEnglishRegID, body: `{"amount": 100000, "method": "BANKING"}`},
	} {
		code := app.do(t, http.MethodPost, regisPath(p.regisID, "/payments"), token, []byte(p.body), nil)
		require.Equal(t, http.StatusCreated, code)
	}

	app.run(t, []httpTest{
		{
			name:     "teacher",
			method:   http.MethodGet,
			path:     "/v1/transactions",
			token:    getToken(t, app.conf, teacher),
			wantCode: http.StatusForbidden,
			wantData: marshalObj(t, errForbidden),
		},
		{
			name:     "bad dates",
			method:   http.MethodGet,
			path:     "/v1/transactions?from=yesterday&to=2024-13-01",
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"from": "from must be a date (YYYY-MM-DD)", "to": "to must be a date (YYYY-MM-DD)"}),
		},
		{
			name:     "bad method",
			method:   http.MethodGet,
			path:     "/v1/transactions?method=cheque",
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"method": "method must be one of CASH or BANKING"}),
		},
		{
			name:     "out of range",
			method:   http.MethodGet,
			path:     "/v1/transactions?from=2000-01-01&to=2000-01-31",
			token:    token,
			wantCode: http.StatusOK,
			wantData: []byte(`[]`),
		},
	})

	var txns []billing.TransactionView
	code := app.do(t, http.MethodGet, "/v1/transactions?search=0901&method=banking", token, nil, &txns)
	assert.Equal(t, http.StatusOK, code)
	require.Len(t, txns, 1)
	assert.Equal(t, "Binh Tran", txns[0].StudentName)
	assert.Equal(t, 100000.0, txns[0].Amount)

	today := billing.NowFunc().UTC().Format("2006-01-02")
	txns = nil
	code = app.do(t, http.MethodGet, "/v1/transactions?from="+today+"&to="+today, token, nil, &txns)
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, txns, 2)

	req, rec := newAuthRequest(http.MethodGet, "/v1/transactions/export?search=first", token)
	app.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment; filename=\"transactions-")
	records, err := csv.NewReader(strings.NewReader(rec.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, billing.TransactionCSVHeader, records[0])
	assert.Equal(t, "An Nguyen", records[1][2])
	assert.Equal(t, "300000", records[1][4])
}

func Test_statsApi_courses(t *testing.T) {
	app := setup(t)
	token := getToken(t, app.conf, admin)

	app.run(t, []httpTest{
		{
			name:     "cashier",
			method:   http.MethodGet,
			path:     "/v1/stats/students",
			token:    getToken(t, app.conf, cashier),
			wantCode: http.StatusForbidden,
			wantData: marshalObj(t, errForbidden),
		},
		{
			name:     "students per course",
			method:   http.MethodGet,
			path:     "/v1/stats/students",
			token:    token,
			wantCode: http.StatusOK,
			wantData: []byte(`[{"course_id": 10, "course_name": "English", "students": 3}, {"course_id": 11, "course_name": "French", "students": 1}]`),
		},
		{
			name:     "top course",
			method:   http.MethodGet,
			path:     "/v1/stats/top-courses?n=1",
			token:    token,
			wantCode: http.StatusOK,
			wantData: []byte(`[{"course_id": 10, "course_name": "English", "students": 3}]`),
		},
		{
			name:     "bad n",
			method:   http.MethodGet,
			path:     "/v1/stats/top-courses?n=three",
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"n": "must be an integer"}),
		},
	})
}
