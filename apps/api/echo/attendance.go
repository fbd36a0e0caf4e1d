package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anquinko/academia/core/attendance"
	"github.com/anquinko/academia/core/user"
)

type attendanceApi struct {
	svc *attendance.Service
}

func registerAttendanceAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *attendance.Service) {
	api := attendanceApi{svc: svc}
	teacher := roleMiddleware(user.RoleTeacher)
	owner := ownerMiddleware(svc.Authorize)

	g.GET("/sessions/:id/rollcall", api.get, jwt, teacher, owner)
	g.PUT("/sessions/:id/rollcall", api.save, jwt, teacher, owner)
}

type RollcallRequest struct {
	Marks map[int]*bool `json:"marks"` // {studentID: present}
}

func (api *attendanceApi) get(ctx echo.Context) error {
	sessionID, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	sheet, err := api.svc.Get(ctx.Request().Context(), sessionID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sheet)
}

func (api *attendanceApi) save(ctx echo.Context) error {
	sessionID, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	var data RollcallRequest
	if err = bindAndValidate(ctx, &data, nil); err != nil {
		return err
	}
	sheet := attendance.Sheet{SessionID: sessionID, Marks: data.Marks}
	if err = api.svc.Save(ctx.Request().Context(), sheet); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sheet)
}
