package echoapi_test

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anquinko/academia/apps/api/echo"
	"github.com/anquinko/academia/core/grading"
	"github.com/anquinko/academia/tests"
)

func scoresPath(regisID int, suffix ...string) string {
	p := "/v1/registrations/" + strconv.Itoa(regisID) + "/scores"
	for _, s := range suffix {
		p += s
	}
	return p
}

func Test_gradingApi_evaluate(t *testing.T) {
	app := setup(t)
	token := getToken(t, app.conf, student)

	app.run(t, []httpTest{
		{
			name:     "no token",
			method:   http.MethodPost,
			path:     "/v1/grades/evaluate",
			wantCode: http.StatusUnauthorized,
			wantData: marshalObj(t, errMissingToken),
		},
		{
			name:   "weighted",
			method: http.MethodPost,
			path:   "/v1/grades/evaluate",
			body: marshalObj(t, echoapi.EvaluateRequest{Entries: []grading.RawEntry{
				{Weight: 1, Value: "6"},
				{Weight: 3, Value: " 9 "},
				{Weight: 2, Value: ""},
			}}),
			token:    token,
			wantCode: http.StatusOK,
			wantData: []byte(`{"rounded_average": 8.25, "verdict_code": "PASSED", "tier": "Excellent", "weight_sum": 4, "graded": 2,
				"labels": {"average": "8.25", "verdict": "Passed", "tier": "Excellent"}}`),
		},
		{
			name:     "nothing entered",
			method:   http.MethodPost,
			path:     "/v1/grades/evaluate",
			body:     marshalObj(t, echoapi.EvaluateRequest{Entries: []grading.RawEntry{{Weight: 1, Value: "abc"}}}),
			token:    token,
			wantCode: http.StatusOK,
			wantData: []byte(`{"rounded_average": 0, "verdict_code": "FAILED", "tier": "Weak", "weight_sum": 0, "graded": 0,
				"labels": {"average": "0.00", "verdict": "Failed", "tier": "Weak"}}`),
		},
		{
			name:     "invalid weight",
			method:   http.MethodPost,
			path:     "/v1/grades/evaluate",
			body:     marshalObj(t, echoapi.EvaluateRequest{Entries: []grading.RawEntry{{Weight: 1, Value: "5"}, {Weight: -1, Value: "5"}}}),
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"entries[1].weight": "weight must be a positive number"}),
		},
	})
}

func Test_gradingApi_scores(t *testing.T) {
	app := setup(t)
	token := getToken(t, app.conf, teacher)

	app.run(t, []httpTest{
		{
			name:     "student",
			method:   http.MethodPut,
			path:     scoresPath(testutil.BinhEnglishRegID),
			body:     []byte(`{"scores": {"41": "7"}}`),
			token:    getToken(t, app.conf, student),
			wantCode: http.StatusForbidden,
			wantData: marshalObj(t, errForbidden),
		},
		{
			name:     "invalid value",
			method:   http.MethodPut,
			path:     scoresPath(testutil.BinhEnglishRegID),
			body:     []byte(`{"scores": {"41": "abc"}}`),
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"scores.41": `"abc" is not a number`}),
		},
		{
			name:     "unknown registration",
			method:   http.MethodPut,
			path:     scoresPath(999),
			body:     []byte(`{"scores": {"41": "7"}}`),
			token:    token,
			wantCode: http.StatusNotFound,
			wantData: marshalObj(t, httpErr{Error: grading.ErrNotFound.Error()}),
		},
		{
			name:     "saved",
			method:   http.MethodPut,
			path:     scoresPath(testutil.BinhEnglishRegID),
			body:     []byte(`{"scores": {"41": "7"}}`),
			token:    token,
			wantCode: http.StatusOK,
			wantData: []byte(`{"rounded_average": 6.1, "verdict_code": "PASSED", "tier": "Average", "weight_sum": 1, "graded": 2,
				"labels": {"average": "6.10", "verdict": "Passed", "tier": "Average"}}`),
		},
	})

	var resp echoapi.RecordResponse
	code := app.do(t, http.MethodGet, scoresPath(testutil.BinhEnglishRegID), token, nil, &resp)
	assert.Equal(t, http.StatusOK, code)
	require.NotNil(t, resp.Record.Scores[testutil.FinalID])
	assert.Equal(t, 7.0, *resp.Record.Scores[testutil.FinalID])
	assert.Equal(t, grading.Passed, resp.Result.Verdict)
}

func Test_gradingApi_finalize(t *testing.T) {
	app := setup(t)
	token := getToken(t, app.conf, teacher)

	app.run(t, []httpTest{
		{
			name:     "no score",
			method:   http.MethodPost,
			path:     scoresPath(testutil.ChiEnglishRegID, "/finalize"),
			token:    token,
			wantCode: http.StatusConflict,
			wantData: marshalObj(t, httpErr{Error: grading.ErrNoScores.Error()}),
		},
	})

	var fr grading.FinalResult
	code := app.do(t, http.MethodPost, scoresPath(testutil.AnEnglishRegID, "/finalize"), token, nil, &fr)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 8.1, fr.RoundedAverage)
	assert.Equal(t, grading.Passed, fr.VerdictCode)
	assert.Equal(t, grading.Excellent, fr.Tier)
	assert.Len(t, app.mailSvc.SentMessages(), 1)

	var rates []grading.PassRate
	code = app.do(t, http.MethodGet, "/v1/stats/pass-rates", getToken(t, app.conf, admin), nil, &rates)
	assert.Equal(t, http.StatusOK, code)
	require.Len(t, rates, 1)
	assert.Equal(t, testutil.EnglishID, rates[0].CourseID)
	assert.Equal(t, 100.0, rates[0].Rate)
}

func Test_gradingApi_classReport(t *testing.T) {
	app := setup(t)
	token := getToken(t, app.conf, teacher)

	tests := []struct {
		ordering string
		wantIDs  []int
	}{
		{ordering: "", wantIDs: []int{testutil.AnEnglishRegID, testutil.BinhEnglishRegID, testutil.ChiEnglishRegID}},
		{ordering: "-name", wantIDs: []int{testutil.ChiEnglishRegID, testutil.BinhEnglishRegID, testutil.AnEnglishRegID}},
		{ordering: "average", wantIDs: []int{testutil.ChiEnglishRegID, testutil.BinhEnglishRegID, testutil.AnEnglishRegID}},
		{ordering: "-average", wantIDs: []int{testutil.AnEnglishRegID, testutil.BinhEnglishRegID, testutil.ChiEnglishRegID}},
	}
	for _, tt := range tests {
		t.Run(tt.ordering, func(t *testing.T) {
			var rows []grading.ReportRow
			path := "/v1/classes/" + strconv.Itoa(testutil.EnglishClassID) + "/grades?ordering=" + tt.ordering
			code := app.do(t, http.MethodGet, path, token, nil, &rows)
			assert.Equal(t, http.StatusOK, code)
			var ids []int
			for _, row := range rows {
				ids = append(ids, row.Record.RegistrationID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func Test_gradingApi_draft(t *testing.T) {
	app := setup(t)
	token := getToken(t, app.conf, teacher)
	path := "/v1/classes/" + strconv.Itoa(testutil.EnglishClassID) + "/grade-draft"

	app.run(t, []httpTest{
		{
			name:     "no draft",
			method:   http.MethodGet,
			path:     path,
			token:    token,
			wantCode: http.StatusNotFound,
			wantData: marshalObj(t, httpErr{Error: grading.ErrDraftNotFound.Error()}),
		},
	})

	body := []byte(`{"values": {"51": {"40": "4", "41": "8.5"}}}`)
	var draft echoapi.DraftResponse
	code := app.do(t, http.MethodPut, path, token, body, &draft)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "8.5", draft.Values[testutil.BinhEnglishRegID][testutil.FinalID])
	assert.Equal(t, 7.15, draft.Preview[testutil.BinhEnglishRegID].Rounded)

	draft = echoapi.DraftResponse{}
	code = app.do(t, http.MethodGet, path, token, nil, &draft)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "4", draft.Values[testutil.BinhEnglishRegID][testutil.MidtermID])

	code = app.do(t, http.MethodDelete, path, token, nil, nil)
	assert.Equal(t, http.StatusNoContent, code)
	code = app.do(t, http.MethodGet, path, token, nil, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func Test_gradingApi_classOwnership(t *testing.T) {
	app := setup(t)
	other := getToken(t, app.conf, otherTeacher)
	classPath := "/v1/classes/" + strconv.Itoa(testutil.EnglishClassID)

	app.run(t, []httpTest{
		{
			name:     "finalize",
			method:   http.MethodPost,
			path:     scoresPath(testutil.BinhEnglishRegID, "/finalize"),
			token:    other,
			wantCode: http.StatusForbidden,
			wantData: marshalObj(t, errForbidden),
		},
		{
			name:     "read scores",
			method:   http.MethodGet,
			path:     scoresPath(testutil.AnEnglishRegID),
			token:    other,
			wantCode: http.StatusForbidden,
			wantData: marshalObj(t, errForbidden),
		},
		{
			name:     "save scores",
			method:   http.MethodPut,
			path:     scoresPath(testutil.BinhEnglishRegID),
			body:     []byte(`{"scores": {"41": "10"}}`),
			token:    other,
			wantCode: http.StatusForbidden,
			wantData: marshalObj(t, errForbidden),
		},
		{
			name:     "class report",
			method:   http.MethodGet,
			path:     classPath + "/grades",
			token:    other,
			wantCode: http.StatusForbidden,
			wantData: marshalObj(t, errForbidden),
		},
		{
			name:     "save draft",
			method:   http.MethodPut,
			path:     classPath + "/grade-draft",
			body:     []byte(`{"values": {"51": {"41": "10"}}}`),
			token:    other,
			wantCode: http.StatusForbidden,
			wantData: marshalObj(t, errForbidden),
		},
		{
			name:     "unknown class",
			method:   http.MethodGet,
			path:     "/v1/classes/999/grades",
			token:    getToken(t, app.conf, teacher),
			wantCode: http.StatusNotFound,
			wantData: marshalObj(t, httpErr{Error: grading.ErrClassNotFound.Error()}),
		},
	})

	// nothing was stored on behalf of the other teacher
	var rec echoapi.RecordResponse
	code := app.do(t, http.MethodGet, scoresPath(testutil.BinhEnglishRegID), getToken(t, app.conf, teacher), nil, &rec)
	assert.Equal(t, http.StatusOK, code)
	assert.Nil(t, rec.Record.Scores[testutil.FinalID])

	// admins manage every class
	var fr grading.FinalResult
	code = app.do(t, http.MethodPost, scoresPath(testutil.AnEnglishRegID, "/finalize"), getToken(t, app.conf, admin), nil, &fr)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 8.1, fr.RoundedAverage)
}
