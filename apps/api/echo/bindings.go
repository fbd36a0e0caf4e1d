package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/anquinko/academia/core"
)

const orderingParam = "ordering"

// bindOrdering reads the `ordering` query param, e.g. `?ordering=-average,name`.
func bindOrdering(ctx echo.Context, allowed ...string) []core.DBOrdering {
	return core.ParseOrdering(ctx.QueryParam(orderingParam), allowed...)
}

// bindAndValidate binds the request into the struct pointed by data then validates it when validate is set.
// Path params are bound too: request structs must not have fields named after them.
func bindAndValidate(ctx echo.Context, data interface{}, validate *validator.Validate) error {
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if validate == nil {
		return nil
	}
	return validate.Struct(data)
}

func intParam(ctx echo.Context, name string) (int, error) {
	id, err := strconv.Atoi(ctx.Param(name))
	if err != nil {
		return 0, errHttpNotFound
	}
	return id, nil
}

// intQueryParam returns def when the query param is absent.
func intQueryParam(ctx echo.Context, name string, def int) (int, error) {
	val := ctx.QueryParam(name)
	if val == "" {
		return def, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, core.NewValidationError(errors.Wrapf(err, "parsing %s", name), core.FieldError{Field: name, Error: "must be an integer"})
	}
	return i, nil
}

type SuccessResponse struct {
	Success string `json:"success"`
}

func noContent(ctx echo.Context) error {
	return ctx.NoContent(http.StatusNoContent)
}
