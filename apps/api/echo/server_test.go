package echoapi_test

import (
	"context"
	"io"
	"log"
	"net/http"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/anquinko/academia/apps/api/echo"
	"github.com/anquinko/academia/core"
	"github.com/anquinko/academia/core/grading"
	"github.com/anquinko/academia/services/logger"
)

type gradingRepoMock struct {
	mock.Mock
}

var (
	_ grading.Repository = (*gradingRepoMock)(nil)
	_ grading.DraftStore = (*gradingRepoMock)(nil)
)

func (m *gradingRepoMock) QueryCategories(ctx context.Context) ([]grading.Category, error) {
	args := m.Called(ctx)
	cats, _ := args.Get(0).([]grading.Category)
	return cats, args.Error(1)
}

func (m *gradingRepoMock) GetRecord(ctx context.Context, regisID int) (grading.Record, error) {
	args := m.Called(ctx, regisID)
	rec, _ := args.Get(0).(grading.Record)
	return rec, args.Error(1)
}

func (m *gradingRepoMock) QueryClassRecords(ctx context.Context, classID int) ([]grading.Record, error) {
	args := m.Called(ctx, classID)
	recs, _ := args.Get(0).([]grading.Record)
	return recs, args.Error(1)
}

func (m *gradingRepoMock) SaveScores(ctx context.Context, regisID int, scores map[int]*float64) error {
	return m.Called(ctx, regisID, scores).Error(0)
}

func (m *gradingRepoMock) SaveFinalResult(ctx context.Context, res grading.FinalResult) error {
	return m.Called(ctx, res).Error(0)
}

func (m *gradingRepoMock) QueryFinalResults(ctx context.Context) ([]grading.FinalResult, error) {
	args := m.Called(ctx)
	res, _ := args.Get(0).([]grading.FinalResult)
	return res, args.Error(1)
}

func (m *gradingRepoMock) GetClassTeacher(ctx context.Context, classID int) (int, error) {
	args := m.Called(ctx, classID)
	return args.Int(0), args.Error(1)
}

func (m *gradingRepoMock) SaveDraft(ctx context.Context, draft grading.Draft) error {
	return m.Called(ctx, draft).Error(0)
}

func (m *gradingRepoMock) LoadDraft(ctx context.Context, key grading.DraftKey) (grading.Draft, error) {
	args := m.Called(ctx, key)
	draft, _ := args.Get(0).(grading.Draft)
	return draft, args.Error(1)
}

func (m *gradingRepoMock) ClearDraft(ctx context.Context, key grading.DraftKey) error {
	return m.Called(ctx, key).Error(0)
}

func newMockedServer(repo *gradingRepoMock) (*core.Config, *echoapi.Server) {
	conf := core.NewTestConfig()
	translator := core.NewTranslator()
	return conf, echoapi.NewServer(echoapi.ServerDeps{
		Conf:       conf,
		Logger:     logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf),
		GradingSvc: grading.NewService(repo, repo, nil),
		Validate:   core.NewValidator(translator),
		Translator: translator,
	})
}

func Test_server_internalErrors(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantShutdown bool
	}{
		{name: "server error", err: errors.New("connection refused")},
		{name: "shutdown error", err: core.NewShutdownError("database integrity issue"), wantShutdown: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(gradingRepoMock)
			repo.On("QueryCategories", mock.Anything).Return(nil, tt.err).Once()
			conf, server := newMockedServer(repo)

			req, rec := newAuthRequest(http.MethodGet, "/v1/grades/categories", getToken(t, conf, teacher))
			server.ServeHTTP(rec, req)
			checkCodeAndData(t, httpTest{
				wantCode: http.StatusInternalServerError,
				wantData: marshalObj(t, httpErr{Error: http.StatusText(http.StatusInternalServerError)}),
			}, rec)
			repo.AssertExpectations(t)

			select {
			case <-server.ShutdownSignal():
				assert.True(t, tt.wantShutdown, "unexpected shutdown signal")
			case <-time.After(50 * time.Millisecond):
				assert.False(t, tt.wantShutdown, "shutdown not signaled")
			}
		})
	}
}

func Test_server_home(t *testing.T) {
	_, server := newMockedServer(new(gradingRepoMock))

	req, rec := newAuthRequest(http.MethodGet, "/", "")
	server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Academia API!", rec.Body.String())
}
