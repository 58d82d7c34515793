package echoapi

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/mystudenthub/backend/core"
	"github.com/mystudenthub/backend/core/user"
)

var orderingParam = "ordering"

// bindOrdering reads the "ordering" query param, e.g. "-createdAt,title".
// Fields missing from allowed are ignored.
func bindOrdering(ctx echo.Context, allowed map[string]string) []core.DBOrdering {
	return core.ParseOrdering(ctx.QueryParam(orderingParam), allowed)
}

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	TokenResponse struct {
		Token string `json:"token"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}

	// SessionResponse describes the resolved session of the caller. Role is null when none was resolved.
	SessionResponse struct {
		Phase string     `json:"phase"`
		UID   string     `json:"uid"`
		Role  *user.Role `json:"role"`
		User  *user.User `json:"user"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}
