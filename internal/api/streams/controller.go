package streams

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type (
	Resolver interface {
		Resolve(key string, name string) (string, string, error)
	}

	// Controller serves the files written by the transcode workers. Players
	// are typically hosted on another origin, so every response (including
	// errors) allows any origin.
	Controller struct {
		resolver Resolver
	}
)

func New(resolver Resolver) *Controller {
	return &Controller{resolver: resolver}
}

func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.Use(allowAnyOrigin)
	eg.GET("/:key/*", controller.serve)
	eg.HEAD("/:key/*", controller.serve)
}

func (controller *Controller) serve(ec echo.Context) error {
	path, contentType, err := controller.resolver.Resolve(ec.Param("key"), ec.Param("*"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Stream file not found")
	}

	ec.Response().Header().Set(echo.HeaderContentType, contentType)
	ec.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
	return ec.File(path)
}

func allowAnyOrigin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ec echo.Context) error {
		ec.Response().Header().Set(echo.HeaderAccessControlAllowOrigin, "*")
		return next(ec)
	}
}
