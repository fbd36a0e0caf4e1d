package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anquinko/academia/core/billing"
	"github.com/anquinko/academia/core/grading"
)

type statsApi struct {
	gradingSvc *grading.Service
	billingSvc *billing.Service
}

func registerStatsAPI(g *echo.Group, jwt echo.MiddlewareFunc, gradingSvc *grading.Service, billingSvc *billing.Service) {
	api := statsApi{gradingSvc: gradingSvc, billingSvc: billingSvc}

	g.GET("/stats/pass-rates", api.passRates, jwt, adminMiddleware())
	g.GET("/stats/revenue", api.revenue, jwt, adminMiddleware())
	g.GET("/stats/students", api.studentsPerCourse, jwt, adminMiddleware())
	g.GET("/stats/top-courses", api.topCourses, jwt, adminMiddleware())
}

func (api *statsApi) passRates(ctx echo.Context) error {
	rates, err := api.gradingSvc.PassRates(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rates)
}

func (api *statsApi) revenue(ctx echo.Context) error {
	year, err := intQueryParam(ctx, "year", billing.NowFunc().Year())
	if err != nil {
		return err
	}
	revenue, err := api.billingSvc.MonthlyRevenue(ctx.Request().Context(), year)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, revenue)
}

func (api *statsApi) studentsPerCourse(ctx echo.Context) error {
	stats, err := api.billingSvc.StudentsPerCourse(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *statsApi) topCourses(ctx echo.Context) error {
	n, err := intQueryParam(ctx, "n", billing.DefaultTopCourses)
	if err != nil {
		return err
	}
	top, err := api.billingSvc.TopCourses(ctx.Request().Context(), n)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, top)
}
