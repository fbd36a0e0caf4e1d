package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/anquinko/academia/core"
	"github.com/anquinko/academia/core/user"
)

var errNoPermsToSetRoles = "not enough rights to set these roles"

type userApi struct {
	auth     authenticator
	svc      *user.Service
	validate *validator.Validate
}

func registerUserAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth authenticator, svc *user.Service, validate *validator.Validate) {
	api := userApi{auth: auth, svc: svc, validate: validate}

	ug := g.Group("/users")

	// un-authed endpoints
	ug.POST("/login", api.login)

	// authed endpoints
	ag := ug.Group("", jwt)
	ag.POST("/token-refresh", api.refreshToken)
	ag.GET("/me", api.me)
	ag.PUT("/:id/password", api.setPassword)
	ag.GET("/roles", api.queryRoles, adminMiddleware())
	ag.GET("", api.query, adminMiddleware())
	ag.POST("", api.create, adminMiddleware())
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}

	SetPasswordRequest struct {
		Password        string `json:"password" validate:"required"`
		PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	}
)

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := bindAndValidate(ctx, &data, api.validate); err != nil {
		return err
	}

	usr, err := api.svc.Authenticate(ctx.Request().Context(), data.Username, data.Password)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	token, err := GenerateToken(api.auth.conf, NewClaims(api.auth.conf, usr))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	token, err := api.auth.refreshToken(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *userApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) create(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	data.Clean()
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	// ctxUser cannot set a role > their own max role
	ctxUsr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}
	if user.MaxRolePriority(data.Roles) > user.MaxRolePriority(ctxUsr.Roles) {
		return core.NewValidationError(nil, core.FieldError{Field: "roles", Error: errNoPermsToSetRoles})
	}

	usr, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) query(ctx echo.Context) error {
	filter := user.QueryFilter{
		Search: ctx.QueryParam("search"),
		Roles:  ctx.QueryParams()["role"],
	}
	if val := ctx.QueryParam("is_active"); val != "" {
		active, err := strconv.ParseBool(val)
		if err != nil {
			return core.NewValidationError(err, core.FieldError{Field: "is_active", Error: "must be a boolean"})
		}
		filter.IsActive = &active
	}

	users, err := api.svc.Filter(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *userApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.Roles)
}

// setPassword lets users change their own password, and admins change anyone's.
func (api *userApi) setPassword(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}
	if id != ctxUsr.ID && !ctxUsr.IsAdmin() {
		return errHttpNotFound
	}

	var data SetPasswordRequest
	if err = bindAndValidate(ctx, &data, api.validate); err != nil {
		return err
	}

	usr, err := api.svc.Get(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding user")
	}
	if _, err = api.svc.SetPassword(ctx.Request().Context(), usr, data.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been changed."})
}
