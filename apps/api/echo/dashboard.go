package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mystudenthub/backend/core/circle"
	"github.com/mystudenthub/backend/core/material"
	"github.com/mystudenthub/backend/core/user"
)

type dashboardApi struct {
	deps *Deps
}

func registerDashboardAPI(g, admin *echo.Group, auth echo.MiddlewareFunc, deps *Deps) {
	api := dashboardApi{deps: deps}

	g.GET("/dashboard", api.dashboard, auth)
	admin.GET("/dashboard", api.adminDashboard)
}

// Dashboard is the role specific landing summary. Unused fields are omitted.
type Dashboard struct {
	Role       user.Role           `json:"role"`
	UserCounts map[user.Role]int   `json:"userCounts,omitempty"`
	Circle     *circle.Circle      `json:"circle,omitempty"`
	Materials  []material.Material `json:"materials,omitempty"`
}

func (api *dashboardApi) dashboard(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	reqCtx := ctx.Request().Context()
	sub := getSubject(ctx)
	dash := Dashboard{Role: usr.Role}

	switch usr.Role {
	case user.RoleAdmin:
		if dash.UserCounts, err = api.deps.UserSvc.CountByRole(reqCtx); err != nil {
			return errors.Wrap(err, "counting users")
		}
	case user.RoleTeacher:
		filter := material.QueryFilter{AuthorID: usr.UID}
		if dash.Materials, err = api.deps.MaterialSvc.Query(reqCtx, sub, filter, nil); err != nil {
			return errors.Wrap(err, "querying own materials")
		}
	case user.RoleStudent:
		if dash.Circle, err = studentCircle(reqCtx, api.deps, usr); err != nil {
			return err
		}
		if c := dash.Circle; c != nil {
			filter := material.QueryFilter{DegreeID: c.DegreeID, StreamID: c.StreamID, Semester: c.Semester}
			if dash.Materials, err = api.deps.MaterialSvc.Query(reqCtx, sub, filter, nil); err != nil {
				return errors.Wrap(err, "querying circle materials")
			}
		}
	}
	return ctx.JSON(http.StatusOK, dash)
}

func (api *dashboardApi) adminDashboard(ctx echo.Context) error {
	counts, err := api.deps.UserSvc.CountByRole(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "counting users")
	}
	return ctx.JSON(http.StatusOK, Dashboard{Role: user.RoleAdmin, UserCounts: counts})
}
