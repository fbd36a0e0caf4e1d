package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/anquinko/academia/core/grading"
	"github.com/anquinko/academia/core/user"
)

type gradingApi struct {
	svc *grading.Service
}

func registerGradingAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *grading.Service) {
	api := gradingApi{svc: svc}
	teacher := roleMiddleware(user.RoleTeacher)

	gg := g.Group("/grades", jwt)
	gg.POST("/evaluate", api.evaluate)
	gg.GET("/categories", api.categories)

	cg := g.Group("/classes/:id", jwt, teacher, ownerMiddleware(svc.AuthorizeClass))
	cg.GET("/grades", api.classReport)
	cg.GET("/grade-draft", api.loadDraft)
	cg.PUT("/grade-draft", api.saveDraft)
	cg.DELETE("/grade-draft", api.discardDraft)

	rg := g.Group("/registrations/:id/scores", jwt, teacher, ownerMiddleware(svc.AuthorizeRegistration))
	rg.GET("", api.record)
	rg.PUT("", api.saveScores)
	rg.POST("/finalize", api.finalize)
}

type (
	EvaluateRequest struct {
		Entries []grading.RawEntry `json:"entries"`
	}

	EvaluateResponse struct {
		grading.Result
		Labels map[string]string `json:"labels"`
	}

	ScoresRequest struct {
		Scores map[int]string `json:"scores"` // {categoryID: raw value}
	}

	RecordResponse struct {
		Record grading.Record   `json:"record"`
		Result EvaluateResponse `json:"result"`
	}

	DraftRequest struct {
		Values map[int]map[int]string `json:"values"` // {registrationID: {categoryID: raw value}}
	}

	DraftResponse struct {
		grading.Draft
		Preview map[int]grading.Result `json:"preview"`
	}
)

func newEvaluateResponse(res grading.Result) EvaluateResponse {
	return EvaluateResponse{Result: res, Labels: res.Labels()}
}

func (api *gradingApi) evaluate(ctx echo.Context) error {
	var data EvaluateRequest
	if err := bindAndValidate(ctx, &data, nil); err != nil {
		return err
	}
	res, err := grading.EvaluateRaw(data.Entries)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, newEvaluateResponse(res))
}

func (api *gradingApi) categories(ctx echo.Context) error {
	cats, err := api.svc.Categories(ctx.Request().Context())
	if err != nil {
		return err
	}
	if cats == nil {
		cats = []grading.Category{}
	}
	return ctx.JSON(http.StatusOK, cats)
}

func (api *gradingApi) classReport(ctx echo.Context) error {
	classID, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	rows, err := api.svc.ClassReport(ctx.Request().Context(), classID, bindOrdering(ctx, "name", "average"))
	if err != nil {
		return errors.Wrap(err, "building class report")
	}
	if rows == nil {
		rows = []grading.ReportRow{}
	}
	return ctx.JSON(http.StatusOK, rows)
}

func (api *gradingApi) record(ctx echo.Context) error {
	regisID, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	rec, res, err := api.svc.Evaluate(ctx.Request().Context(), regisID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, RecordResponse{Record: rec, Result: newEvaluateResponse(res)})
}

func (api *gradingApi) saveScores(ctx echo.Context) error {
	regisID, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	var data ScoresRequest
	if err = bindAndValidate(ctx, &data, nil); err != nil {
		return err
	}
	res, err := api.svc.SaveScores(ctx.Request().Context(), regisID, data.Scores)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, newEvaluateResponse(res))
}

func (api *gradingApi) finalize(ctx echo.Context) error {
	regisID, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	fr, err := api.svc.Finalize(ctx.Request().Context(), regisID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, fr)
}

func draftKey(ctx echo.Context) (grading.DraftKey, error) {
	classID, err := intParam(ctx, "id")
	if err != nil {
		return grading.DraftKey{}, err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return grading.DraftKey{}, err
	}
	return grading.DraftKey{TeacherID: claims.UserID, ClassID: classID}, nil
}

func (api *gradingApi) draftResponse(ctx echo.Context, draft grading.Draft) error {
	preview, err := api.svc.PreviewDraft(ctx.Request().Context(), draft)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, DraftResponse{Draft: draft, Preview: preview})
}

func (api *gradingApi) loadDraft(ctx echo.Context) error {
	key, err := draftKey(ctx)
	if err != nil {
		return err
	}
	draft, err := api.svc.LoadDraft(ctx.Request().Context(), key)
	if err != nil {
		return err
	}
	return api.draftResponse(ctx, draft)
}

func (api *gradingApi) saveDraft(ctx echo.Context) error {
	key, err := draftKey(ctx)
	if err != nil {
		return err
	}
	var data DraftRequest
	if err = bindAndValidate(ctx, &data, nil); err != nil {
		return err
	}
	draft, err := api.svc.SaveDraft(ctx.Request().Context(), key, data.Values)
	if err != nil {
		return err
	}
	return api.draftResponse(ctx, draft)
}

func (api *gradingApi) discardDraft(ctx echo.Context) error {
	key, err := draftKey(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DiscardDraft(ctx.Request().Context(), key); err != nil {
		return err
	}
	return noContent(ctx)
}
