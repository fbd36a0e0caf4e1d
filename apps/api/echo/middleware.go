package echoapi

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/anquinko/academia/core/user"
)

// roleMiddleware lets through users holding any of roles. Admins hold every role.
func roleMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			usr := claims.user()
			if usr.HasRole(roles...) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

func adminMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(user.RoleAdmin)
}

// ownerMiddleware lets through the users authorize accepts for the resource of the :id path param.
func ownerMiddleware(authorize func(ctx context.Context, usr user.User, id int) error) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			id, err := intParam(ctx, "id")
			if err != nil {
				return err
			}
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if err = authorize(ctx.Request().Context(), claims.user(), id); err != nil {
				return err
			}
			return next(ctx)
		}
	}
}
