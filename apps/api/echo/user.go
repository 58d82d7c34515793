package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mystudenthub/backend/core"
	"github.com/mystudenthub/backend/core/access"
	"github.com/mystudenthub/backend/core/circle"
	"github.com/mystudenthub/backend/core/user"
)

type userApi struct {
	deps *Deps
}

func registerUserAPI(g, admin *echo.Group, auth echo.MiddlewareFunc, deps *Deps) {
	api := userApi{deps: deps}

	ag := admin.Group("/users")
	ag.POST("", api.provision)
	ag.GET("", api.query)
	ag.PATCH("/:uid/status", api.setStatus)

	g.GET("/users/:uid", api.retrieve, auth)
}

// UserDetail is a User Record with its Profile Record, if the role has one.
type UserDetail struct {
	user.User
	Profile *user.ProfileRecord `json:"profile"`
}

func (api *userApi) provision(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	res, err := api.deps.Provisioner.Provision(ctx.Request().Context(), data, ctxUsr.UID)
	if err != nil {
		return errors.Wrap(err, "provisioning user")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *userApi) query(ctx echo.Context) error {
	var filter user.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []user.User{})
	}
	filter.Clean()
	if (filter.Role != "" && !filter.Role.Valid()) || (filter.Status != "" && !filter.Status.Valid()) {
		return ctx.JSON(http.StatusOK, []user.User{})
	}

	users, err := api.deps.UserSvc.Query(ctx.Request().Context(), filter, bindOrdering(ctx, user.OrderingFields))
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *userApi) setStatus(ctx echo.Context) error {
	var data user.UpdateStatus
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStatus")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	// Say No to Suicide! ctxUser cannot disable themselves
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	uid := ctx.Param("uid")
	if uid == ctxUsr.UID {
		return errHttpForbidden
	}

	usr, err := api.deps.UserSvc.SetStatus(ctx.Request().Context(), uid, data.Status)
	if err != nil {
		return errors.Wrap(err, "setting user status")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) retrieve(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	uid := ctx.Param("uid")

	res := access.Resource{Collection: user.CollectionUsers, ID: uid, OwnerUID: uid}
	if err := api.deps.Enforcer.Check(reqCtx, getSubject(ctx), core.OpGet, res); err != nil {
		return err
	}

	usr, err := api.deps.UserSvc.GetUser(reqCtx, uid)
	if err != nil {
		return errors.Wrap(err, "finding user by uid")
	}
	detail := UserDetail{User: usr}
	if usr.Role.ProfileCollection() != "" {
		profile, err := api.deps.UserSvc.GetProfile(reqCtx, usr)
		switch {
		case err == nil:
			detail.Profile = &profile
		case errors.Cause(err) != user.ErrProfileNotFound:
			return errors.Wrap(err, "finding profile")
		}
	}
	return ctx.JSON(http.StatusOK, detail)
}

// studentCircle returns the circle on the student's profile, or nil if it has none.
func studentCircle(ctx context.Context, deps *Deps, usr user.User) (*circle.Circle, error) {
	profile, err := deps.UserSvc.GetProfile(ctx, usr)
	if err != nil {
		if errors.Cause(err) == user.ErrProfileNotFound {
			return nil, nil
		}
		return nil, errors.Wrap(err, "finding student profile")
	}
	circleID := profile.CircleID()
	if circleID == "" {
		return nil, nil
	}

	sub := access.Subject{UID: usr.UID, Role: usr.Role.Ptr()}
	c, err := deps.CircleSvc.Get(ctx, sub, circleID)
	if err != nil {
		if errors.Cause(err) == circle.ErrNotFound {
			return nil, nil
		}
		return nil, errors.Wrap(err, "finding student circle")
	}
	return &c, nil
}
