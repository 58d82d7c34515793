package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mystudenthub/backend/core/notification"
)

type notificationApi struct {
	deps *Deps
}

func registerNotificationAPI(g, admin *echo.Group, auth echo.MiddlewareFunc, deps *Deps) {
	api := notificationApi{deps: deps}

	g.POST("/notifications/tokens", api.registerToken, auth)
	admin.POST("/notifications", api.send)
}

func (api *notificationApi) registerToken(ctx echo.Context) error {
	var data notification.NewToken
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewToken")
	}

	if err := api.deps.NotifSvc.RegisterToken(ctx.Request().Context(), getSubject(ctx), data); err != nil {
		return errors.Wrap(err, "registering push token")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *notificationApi) send(ctx echo.Context) error {
	var data notification.NewNotification
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewNotification")
	}

	res, err := api.deps.NotifSvc.Send(ctx.Request().Context(), getSubject(ctx), data)
	if err != nil {
		return errors.Wrap(err, "sending notification")
	}
	return ctx.JSON(http.StatusOK, res)
}
