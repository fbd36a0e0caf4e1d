package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anquinko/academia/core/attendance"
)

func Test_attendanceApi_rollcall(t *testing.T) {
	app := setup(t)
	token := getToken(t, app.conf, teacher)
	path := "/v1/sessions/60/rollcall"

	app.run(t, []httpTest{
		{
			name:     "cashier",
			method:   http.MethodPut,
			path:     path,
			body:     []byte(`{"marks": {"4": true}}`),
			token:    getToken(t, app.conf, cashier),
			wantCode: http.StatusForbidden,
			wantData: marshalObj(t, errForbidden),
		},
		{
			name:     "teacher of another class",
			method:   http.MethodPut,
			path:     path,
			body:     []byte(`{"marks": {"4": true, "5": false, "6": true}}`),
			token:    getToken(t, app.conf, otherTeacher),
			wantCode: http.StatusForbidden,
			wantData: marshalObj(t, errForbidden),
		},
		{
			name:     "teacher of another class reads",
			method:   http.MethodGet,
			path:     path,
			token:    getToken(t, app.conf, otherTeacher),
			wantCode: http.StatusForbidden,
			wantData: marshalObj(t, errForbidden),
		},
		{
			name:     "unknown session",
			method:   http.MethodGet,
			path:     "/v1/sessions/999/rollcall",
			token:    token,
			wantCode: http.StatusNotFound,
			wantData: marshalObj(t, httpErr{Error: attendance.ErrNotFound.Error()}),
		},
		{
			name:     "not registered",
			method:   http.MethodPut,
			path:     path,
			body:     []byte(`{"marks": {"4": true, "5": false, "6": true, "1": true}}`),
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"marks.1": "learner is not registered to this class"}),
		},
		{
			name:     "incomplete",
			method:   http.MethodPut,
			path:     path,
			body:     []byte(`{"marks": {"4": true, "5": null}}`),
			token:    token,
			wantCode: http.StatusConflict,
			wantData: marshalObj(t, httpErr{Error: attendance.ErrIncompleteRollcall.Error()}),
		},
		{
			name:     "saved",
			method:   http.MethodPut,
			path:     path,
			body:     []byte(`{"marks": {"4": true, "5": false, "6": true}}`),
			token:    token,
			wantCode: http.StatusOK,
			wantData: []byte(`{"session_id": 60, "marks": {"4": true, "5": false, "6": true}}`),
		},
	})

	var sheet attendance.Sheet
	code := app.do(t, http.MethodGet, path, token, nil, &sheet)
	assert.Equal(t, http.StatusOK, code)
	require.Len(t, sheet.Marks, 3)
	require.NotNil(t, sheet.Marks[5])
	assert.False(t, *sheet.Marks[5])

	// admins manage every class
	sheet = attendance.Sheet{}
	code = app.do(t, http.MethodGet, path, getToken(t, app.conf, admin), nil, &sheet)
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, sheet.Marks, 3)
}
