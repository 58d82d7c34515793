package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mystudenthub/backend/core/circle"
)

type circleApi struct {
	deps *Deps
}

func registerCircleAPI(g, admin *echo.Group, auth echo.MiddlewareFunc, deps *Deps) {
	api := circleApi{deps: deps}

	g.GET("/circles", api.selector, auth)
	admin.POST("/circles", api.create)
}

// CircleSelection is the circle selector view.
// Chooser is null for students; Circle is their own circle, or the selected one for everybody else.
type CircleSelection struct {
	Chooser *circle.Chooser `json:"chooser"`
	Circle  *circle.Circle  `json:"circle"`
}

func (api *circleApi) selector(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	reqCtx := ctx.Request().Context()

	if usr.IsStudent() {
		c, err := studentCircle(reqCtx, api.deps, usr)
		if err != nil {
			return err
		}
		return ctx.JSON(http.StatusOK, CircleSelection{Circle: c})
	}

	circles, err := api.deps.CircleSvc.List(reqCtx, getSubject(ctx))
	if err != nil {
		return errors.Wrap(err, "listing circles")
	}
	chooser := circle.NewChooser(circles, ctx.QueryParam("selected"), usr.Role, nil)
	return ctx.JSON(http.StatusOK, CircleSelection{Chooser: chooser, Circle: chooser.Selected})
}

func (api *circleApi) create(ctx echo.Context) error {
	var data circle.NewCircle
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCircle")
	}

	c, err := api.deps.CircleSvc.Create(ctx.Request().Context(), getSubject(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating circle")
	}
	return ctx.JSON(http.StatusCreated, c)
}
