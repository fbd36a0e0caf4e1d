package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/anquinko/academia/core"
	"github.com/anquinko/academia/core/attendance"
	"github.com/anquinko/academia/core/billing"
	"github.com/anquinko/academia/core/grading"
	"github.com/anquinko/academia/core/user"
)

var (
	errUnauthorized       = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAccountDeactivated = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired     = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden      = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound       = echo.NewHTTPError(http.StatusNotFound, "not found")

	notFoundErrors = []error{
		user.ErrNotFound,
		grading.ErrNotFound,
		grading.ErrDraftNotFound,
		billing.ErrNotFound,
		billing.ErrTransactionNotFound,
		billing.ErrClassNotFound,
		grading.ErrClassNotFound,
		attendance.ErrNotFound,
		attendance.ErrClassNotFound,
	}
)

func isNotFound(err error) bool {
	for _, nf := range notFoundErrors {
		if err == nf {
			return true
		}
	}
	return false
}

func fieldMessages(err error, translator ut.Translator) (map[string]string, bool) {
	switch e := err.(type) {
	case validator.ValidationErrors:
		msgs := make(map[string]string, len(e))
		for _, fe := range e {
			msgs[fe.Field()] = fe.Translate(translator)
		}
		return msgs, true
	case *core.ValidationError:
		if e.Fields == nil {
			return nil, false
		}
		msgs := make(map[string]string, len(e.Fields))
		for _, fe := range e.Fields {
			msgs[fe.Field] = fe.Error
		}
		return msgs, true
	}
	return nil, false
}

// statusOf maps the cause of an error to its HTTP status. 0 means an unexpected error.
func statusOf(cause error) int {
	switch e := cause.(type) {
	case *echo.HTTPError:
		if e == middleware.ErrJWTMissing {
			return http.StatusUnauthorized
		}
		return e.Code
	case validator.ValidationErrors, *core.ValidationError:
		return http.StatusBadRequest
	case *core.ConflictError:
		return http.StatusConflict
	}
	switch {
	case cause == user.ErrInvalidCredentials:
		return http.StatusUnauthorized
	case cause == core.ErrForbidden:
		return http.StatusForbidden
	case isNotFound(cause):
		return http.StatusNotFound
	}
	return 0
}

// newAppHTTPErrorHandler renders errors as {"error": msg} or as a {field: msg} map.
// Unexpected errors are logged as 500s; a core shutdown error also triggers signalShutdown.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		cause := errors.Cause(err)
		if herr, ok := cause.(*echo.HTTPError); ok && herr != middleware.ErrJWTMissing {
			if inner, ok := herr.Internal.(*echo.HTTPError); ok {
				cause = inner
			}
		}

		var body interface{}
		code := statusOf(cause)
		switch {
		case code == 0:
			code = http.StatusInternalServerError
			msg := http.StatusText(code)
			var usr user.User
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				usr = claims.user()
			}
			logger.Error(msg, errors.Wrap(err, msg), usr)
			if core.IsShutdown(err) {
				signalShutdown()
			}
			if ctx.Echo().Debug {
				msg = err.Error()
			}
			body = echo.Map{"error": msg}
		default:
			if msgs, ok := fieldMessages(cause, translator); ok {
				body = msgs
			} else if herr, ok := cause.(*echo.HTTPError); ok {
				body = herr.Message
				if m, ok := herr.Message.(string); ok {
					body = echo.Map{"error": m}
				}
			} else {
				body = echo.Map{"error": cause.Error()}
			}
		}

		if ctx.Response().Committed {
			return
		}
		if ctx.Request().Method == http.MethodHead {
			err = ctx.NoContent(code)
		} else {
			err = ctx.JSON(code, body)
		}
		if err != nil {
			ctx.Echo().Logger.Error(err)
		}
	}
}
