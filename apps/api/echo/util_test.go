package echoapi_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/anquinko/academia/apps/api/echo"
	"github.com/anquinko/academia/core"
	"github.com/anquinko/academia/core/attendance"
	"github.com/anquinko/academia/core/billing"
	"github.com/anquinko/academia/core/grading"
	"github.com/anquinko/academia/core/user"
	"github.com/anquinko/academia/services/email"
	"github.com/anquinko/academia/services/logger"
	"github.com/anquinko/academia/storage/database/dummy"
	"github.com/anquinko/academia/tests"
)

var (
	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "permission denied"}

	admin   = user.User{ID: testutil.AdminID, Username: "admin", Roles: []string{user.RoleAdmin}}
	teacher = user.User{ID: testutil.TeacherID, Username: "tina", Roles: []string{user.RoleTeacher}}
	cashier = user.User{ID: testutil.CashierID, Username: "carl", Roles: []string{user.RoleCashier}}
	student = user.User{ID: testutil.AnID, Username: "an", Roles: []string{user.RoleStudent}}

	// otherTeacher teaches none of the fixture classes.
	otherTeacher = user.User{ID: testutil.CashierID, Username: "carl", Roles: []string{user.RoleTeacher}}
)

type testApp struct {
	conf    *core.Config
	server  *echoapi.Server
	mailSvc *emailsvc.ConsoleServiceMock
}

func setup(t *testing.T) testApp {
	conf := core.NewTestConfig()

	// set up DB & repos
	db := testutil.PrepareDB(t)
	gradingRepo := dummydb.NewGradingRepository(db)

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	user.RegisterValidators(validate, translator)

	// set up server
	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:          conf,
		Logger:        logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf),
		UserSvc:       user.NewService(dummydb.NewUserRepository(db)),
		GradingSvc:    grading.NewService(gradingRepo, gradingRepo, mailSvc),
		BillingSvc:    billing.NewService(dummydb.NewBillingRepository(db), mailSvc),
		AttendanceSvc: attendance.NewService(dummydb.NewAttendanceRepository(db)),
		Validate:      validate,
		Translator:    translator,
	})
	return testApp{conf: conf, server: server, mailSvc: mailSvc}
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func (app testApp) run(t *testing.T, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func (app testApp) do(t *testing.T, method, path, token string, body []byte, out interface{}) int {
	t.Helper()
	req, rec := newAuthRequest(method, path, token, body)
	app.server.ServeHTTP(rec, req)
	if out != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("json.Unmarshal(%s) failed: %v", rec.Body.String(), err)
		}
	}
	return rec.Code
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func getToken(t *testing.T, conf *core.Config, usr user.User) string {
	token, err := echoapi.GenerateToken(conf, echoapi.NewClaims(conf, usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
