package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mystudenthub/backend/core"
	"github.com/mystudenthub/backend/core/circle"
	"github.com/mystudenthub/backend/core/material"
	"github.com/mystudenthub/backend/core/user"
)

var (
	errMissingToken       = echo.NewHTTPError(http.StatusUnauthorized, "missing or malformed jwt")
	errInvalidToken       = echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired jwt")
	errUnauthorized       = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAccountDisabled    = echo.NewHTTPError(http.StatusForbidden, "account disabled")
	errRefreshExpired     = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden      = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound       = echo.NewHTTPError(http.StatusNotFound, "not found")
	errTooManyRequests    = echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")
	errSessionNotResolved = echo.NewHTTPError(http.StatusServiceUnavailable, "session is loading")
)

// identityStatus maps identity provider rejection codes to HTTP statuses.
var identityStatus = map[string]int{
	core.IdentityEmailExists:        http.StatusConflict,
	core.IdentityInvalidCredentials: http.StatusUnauthorized,
	core.IdentityAccountDisabled:    http.StatusForbidden,
	core.IdentityAccountNotFound:    http.StatusNotFound,
	core.IdentityUnavailable:        http.StatusBadGateway,
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		case *core.IdentityProviderError:
			code = http.StatusBadRequest
			if c, ok := identityStatus[origErr.Code]; ok {
				code = c
			}
			message = echo.Map{"error": origErr.Error(), "code": origErr.Code}
			if code == http.StatusBadGateway {
				logger.Error(origErr.Error(), err, contextUser(ctx))
			}
		case *core.PermissionError:
			code = http.StatusForbidden
			message = echo.Map{"error": "permission denied", "path": origErr.Path, "operation": origErr.Operation}
		default:
			if isNotFound(origErr) {
				code = http.StatusNotFound
				message = origErr.Error()
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			logger.Error(msg, errors.Wrap(err, msg), contextUser(ctx))

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

func isNotFound(err error) bool {
	switch err {
	case user.ErrNotFound, user.ErrProfileNotFound, material.ErrNotFound, circle.ErrNotFound:
		return true
	}
	return false
}

// contextUser returns what is known of the requesting user, for error reports.
func contextUser(ctx echo.Context) user.User {
	var usr user.User
	if state, err := getSessionState(ctx); err == nil && state.User != nil {
		return *state.User
	}
	if claims, err := getContextClaims(ctx); err == nil {
		usr.UID = claims.Subject
		usr.Email = claims.Email
	}
	return usr
}
