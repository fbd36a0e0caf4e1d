package echoapi

import (
	"bytes"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/anquinko/academia/core"
	"github.com/anquinko/academia/core/billing"
	"github.com/anquinko/academia/core/user"
)

type billingApi struct {
	svc      *billing.Service
	validate *validator.Validate
}

func registerBillingAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *billing.Service, validate *validator.Validate) {
	api := billingApi{svc: svc, validate: validate}
	cashier := roleMiddleware(user.RoleCashier)

	g.GET("/classes", api.classes, jwt)
	g.POST("/registrations", api.register, jwt, roleMiddleware(user.RoleStudent))
	g.GET("/registrations", api.unpaid, jwt, cashier)
	g.GET("/registrations/:id/payment-options", api.paymentOptions, jwt, cashier)
	g.POST("/registrations/:id/payments", api.recordPayment, jwt, cashier)
	g.GET("/transactions", api.transactions, jwt, cashier)
	g.GET("/transactions/export", api.exportTransactions, jwt, cashier)
	g.DELETE("/transactions/:id", api.deleteTransaction, jwt, cashier)
	g.GET("/tuition", api.quote, jwt, cashier)
	g.GET("/levels", api.levels, jwt, cashier)
	g.PUT("/levels/tuition", api.updateTuitions, jwt, adminMiddleware())
}

type (
	PaymentOptionsResponse struct {
		billing.PaymentOptions
		FullDisplay string  `json:"full_display"`
		HalfDisplay *string `json:"half_display"`
	}

	TuitionsRequest struct {
		Tuitions map[int]float64 `json:"tuitions"` // {levelID: tuition}
	}
)

func (api *billingApi) unpaid(ctx echo.Context) error {
	regs, err := api.svc.Unpaid(ctx.Request().Context(), ctx.QueryParam("search"))
	if err != nil {
		return errors.Wrap(err, "querying unpaid registrations")
	}
	if regs == nil {
		regs = []billing.Registration{}
	}
	return ctx.JSON(http.StatusOK, regs)
}

func (api *billingApi) paymentOptions(ctx echo.Context) error {
	regisID, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	opts, err := api.svc.PaymentOptions(ctx.Request().Context(), regisID)
	if err != nil {
		return err
	}

	resp := PaymentOptionsResponse{PaymentOptions: opts, FullDisplay: billing.FormatAmount(opts.Full)}
	if opts.Half != nil {
		half := billing.FormatAmount(*opts.Half)
		resp.HalfDisplay = &half
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *billingApi) recordPayment(ctx echo.Context) error {
	regisID, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	var data billing.NewPayment
	if err = bindAndValidate(ctx, &data, api.validate); err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	receipt, err := api.svc.RecordPayment(ctx.Request().Context(), regisID, data, claims.UserID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, receipt)
}

func (api *billingApi) deleteTransaction(ctx echo.Context) error {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}
	reg, err := api.svc.DeleteTransaction(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, reg)
}

func (api *billingApi) quote(ctx echo.Context) error {
	classID, err := intQueryParam(ctx, "class_id", 0)
	if err != nil {
		return err
	}
	percent, err := intQueryParam(ctx, "percent", 100)
	if err != nil {
		return err
	}
	q, err := api.svc.Quote(ctx.Request().Context(), classID, percent)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *billingApi) levels(ctx echo.Context) error {
	levels, err := api.svc.Levels(ctx.Request().Context())
	if err != nil {
		return err
	}
	if levels == nil {
		levels = []billing.Level{}
	}
	return ctx.JSON(http.StatusOK, levels)
}

func (api *billingApi) updateTuitions(ctx echo.Context) error {
	var data TuitionsRequest
	if err := bindAndValidate(ctx, &data, nil); err != nil {
		return err
	}
	levels, err := api.svc.UpdateTuitions(ctx.Request().Context(), data.Tuitions)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, levels)
}

func (api *billingApi) classes(ctx echo.Context) error {
	courseID, err := intQueryParam(ctx, "course_id", 0)
	if err != nil {
		return err
	}
	levelID, err := intQueryParam(ctx, "level_id", 0)
	if err != nil {
		return err
	}
	classes, err := api.svc.Classes(ctx.Request().Context(), courseID, levelID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *billingApi) register(ctx echo.Context) error {
	var data billing.NewRegistration
	if err := bindAndValidate(ctx, &data, api.validate); err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	receipt, err := api.svc.Register(ctx.Request().Context(), data, claims.UserID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, receipt)
}

// dateLayout is the layout of the from and to query params of the transaction listing.
const dateLayout = "2006-01-02"

// transactionFilter reads the filter of the transaction listing from the query string.
// Both dates are inclusive.
func transactionFilter(ctx echo.Context) (billing.TransactionFilter, error) {
	f := billing.TransactionFilter{
		Search: ctx.QueryParam("search"),
		Status: ctx.QueryParam("status"),
		Method: billing.Method(ctx.QueryParam("method")),
	}
	var flds []core.FieldError
	if v := ctx.QueryParam("from"); v != "" {
		from, err := time.Parse(dateLayout, v)
		if err != nil {
			flds = append(flds, core.FieldError{Field: "from", Error: "from must be a date (YYYY-MM-DD)"})
		}
		f.From = from
	}
	if v := ctx.QueryParam("to"); v != "" {
		to, err := time.Parse(dateLayout, v)
		if err != nil {
			flds = append(flds, core.FieldError{Field: "to", Error: "to must be a date (YYYY-MM-DD)"})
		} else {
			f.To = to.AddDate(0, 0, 1)
		}
	}
	if flds != nil {
		return billing.TransactionFilter{}, core.NewValidationError(nil, flds...)
	}
	return f, nil
}

func (api *billingApi) transactions(ctx echo.Context) error {
	f, err := transactionFilter(ctx)
	if err != nil {
		return err
	}
	txns, err := api.svc.Transactions(ctx.Request().Context(), f)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, txns)
}

func (api *billingApi) exportTransactions(ctx echo.Context) error {
	f, err := transactionFilter(ctx)
	if err != nil {
		return err
	}
	txns, err := api.svc.Transactions(ctx.Request().Context(), f)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err = billing.WriteTransactionsCSV(&buf, txns); err != nil {
		return errors.Wrap(err, "exporting transactions")
	}
	filename := "transactions-" + billing.NowFunc().UTC().Format(dateLayout) + ".csv"
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return ctx.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}
