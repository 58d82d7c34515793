package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mystudenthub/backend/core/material"
)

type materialApi struct {
	deps *Deps
}

func registerMaterialAPI(g *echo.Group, auth echo.MiddlewareFunc, deps *Deps) {
	api := materialApi{deps: deps}

	mg := g.Group("/materials", auth)
	mg.GET("", api.query)
	mg.POST("", api.create)
	mg.GET("/:id", api.retrieve)
	mg.PATCH("/:id", api.update)
	mg.DELETE("/:id", api.destroy)
}

func (api *materialApi) query(ctx echo.Context) error {
	var filter material.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []material.Material{})
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	// students only see the materials of their own circle
	if usr.IsStudent() {
		c, err := studentCircle(ctx.Request().Context(), api.deps, usr)
		if err != nil {
			return err
		}
		if c == nil {
			return ctx.JSON(http.StatusOK, []material.Material{})
		}
		filter.DegreeID, filter.StreamID, filter.Semester = c.DegreeID, c.StreamID, c.Semester
	}

	materials, err := api.deps.MaterialSvc.Query(
		ctx.Request().Context(), getSubject(ctx), filter, bindOrdering(ctx, material.OrderingFields),
	)
	if err != nil {
		return errors.Wrap(err, "querying materials")
	}
	return ctx.JSON(http.StatusOK, materials)
}

func (api *materialApi) create(ctx echo.Context) error {
	var data material.NewMaterial
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMaterial")
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	m, err := api.deps.MaterialSvc.Create(
		ctx.Request().Context(), getSubject(ctx), material.Author{UID: usr.UID, Name: usr.Name}, data,
	)
	if err != nil {
		return errors.Wrap(err, "creating material")
	}
	return ctx.JSON(http.StatusCreated, m)
}

func (api *materialApi) retrieve(ctx echo.Context) error {
	m, err := api.deps.MaterialSvc.Get(ctx.Request().Context(), getSubject(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding material")
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *materialApi) update(ctx echo.Context) error {
	var data material.UpdateMaterial
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateMaterial")
	}

	m, err := api.deps.MaterialSvc.Update(ctx.Request().Context(), getSubject(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating material")
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *materialApi) destroy(ctx echo.Context) error {
	if err := api.deps.MaterialSvc.Delete(ctx.Request().Context(), getSubject(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting material")
	}
	return ctx.NoContent(http.StatusNoContent)
}
