package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mystudenthub/backend/core"
	"github.com/mystudenthub/backend/core/session"
	"github.com/mystudenthub/backend/core/user"
)

type sessionApi struct {
	deps   *Deps
	tokens *TokenIssuer
}

func registerSessionAPI(g *echo.Group, auth, limit echo.MiddlewareFunc, deps *Deps, tokens *TokenIssuer) {
	api := sessionApi{deps: deps, tokens: tokens}

	sg := g.Group("/session")

	// un-authed endpoints
	sg.POST("/login", api.login, limit)
	sg.POST("/password-reset", api.resetPassword, limit)
	sg.POST("/password-reset-confirm", api.confirmPasswordReset, limit)

	// authed endpoints
	sg.GET("", api.retrieve, auth)
	sg.POST("/refresh", api.refresh, auth)
	sg.POST("/logout", api.logout, auth)
}

func (api *sessionApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	usr, err := api.deps.UserSvc.Authenticate(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	token, err := api.tokens.Generate(api.tokens.UserClaims(usr))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, TokenResponse{Token: token})
}

func (api *sessionApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	if err := api.deps.UserSvc.RequestPasswordReset(ctx.Request().Context(), data.Email); err != nil {
		// do not return errors to attackers
		if !isUnknownAccount(err) {
			api.deps.Logger.Error("requesting password reset", errors.Wrap(err, "requesting password reset"))
		}
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func isUnknownAccount(err error) bool {
	return errors.Cause(err) == user.ErrNotFound || user.IsIdentityCode(err, core.IdentityAccountNotFound)
}

func (api *sessionApi) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	if err := api.deps.UserSvc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

func (api *sessionApi) retrieve(ctx echo.Context) error {
	state, err := getSessionState(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SessionResponse{
		Phase: state.Phase.String(),
		UID:   state.UID,
		Role:  state.Role,
		User:  state.User,
	})
}

func (api *sessionApi) refresh(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if api.tokens.RefreshExpired(claims) {
		return errRefreshExpired
	}

	token, err := api.tokens.Generate(api.tokens.UserClaims(usr, claims.OrigIssuedAt))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	if err = api.revoke(ctx, claims); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, TokenResponse{Token: token})
}

func (api *sessionApi) logout(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if err = api.revoke(ctx, claims); err != nil {
		return err
	}
	if sess, ok := session.FromContext(ctx.Request().Context()); ok {
		sess.SignOut()
	}
	return ctx.NoContent(http.StatusNoContent)
}

// revoke blocks the token until it expires on its own.
func (api *sessionApi) revoke(ctx echo.Context, claims *Claims) error {
	if claims.ExpiresAt == nil {
		return nil
	}
	err := api.deps.Revoker.Revoke(ctx.Request().Context(), claims.ID, claims.ExpiresAt.Time)
	return errors.Wrap(err, "revoking token")
}
