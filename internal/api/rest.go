package api

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/hbomb79/hlsgate/internal/api/convert"
	"github.com/hbomb79/hlsgate/internal/api/jobs"
	"github.com/hbomb79/hlsgate/internal/api/streams"
	"github.com/hbomb79/hlsgate/pkg/logger"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

var log = logger.Get("API")

type (
	RestConfig struct {
		HostAddr      string `yaml:"host_address" env:"API_HOST_ADDR" env-default:"0.0.0.0:8080"`
		PublicBaseURL string `yaml:"public_base_url" env:"API_PUBLIC_BASE_URL"`
	}

	controller interface {
		SetRoutes(*echo.Group)
	}

	// StreamService is the union of the service requirements of every controller.
	StreamService interface {
		convert.Service
		jobs.Service
	}

	// The RestGateway is a thin-wrapper around the Echo HTTP router. It's sole
	// responsibility is to create the routes the gateway exposes.
	RestGateway struct {
		config            *RestConfig
		ec                *echo.Echo
		convertController controller
		streamsController controller
		jobsController    controller
	}

	errorResponse struct {
		Error string `json:"error"`
	}
)

// NewRestGateway constructs the Echo router and populates it with all the
// routes defined by the various controllers.
func NewRestGateway(config *RestConfig, service StreamService, resolver streams.Resolver) *RestGateway {
	ec := echo.New()
	ec.OnAddRouteHandler = func(host string, route echo.Route, handler echo.HandlerFunc, middleware []echo.MiddlewareFunc) {
		log.Emit(logger.DEBUG, "Registered new route %s %s\n", route.Method, route.Path)
	}
	ec.HidePort = true
	ec.HideBanner = true
	ec.HTTPErrorHandler = jsonErrorHandler

	validate := validator.New()
	gateway := &RestGateway{
		config:            config,
		ec:                ec,
		convertController: convert.New(validate, service, config.PublicBaseURL),
		streamsController: streams.New(resolver),
		jobsController:    jobs.New(service, config.PublicBaseURL),
	}

	ec.Use(middleware.Logger())
	ec.Use(middleware.Recover())
	ec.Pre(middleware.RemoveTrailingSlash())

	ec.GET("/healthz", func(ec echo.Context) error {
		return ec.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	gateway.convertController.SetRoutes(ec.Group("/convert"))
	gateway.streamsController.SetRoutes(ec.Group("/streams"))
	gateway.jobsController.SetRoutes(ec.Group("/jobs"))

	return gateway
}

// ServeHTTP allows the gateway to be driven directly, without
// binding to the configured address.
func (gateway *RestGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	gateway.ec.ServeHTTP(w, r)
}

func (gateway *RestGateway) Run(parentCtx context.Context) error {
	ctx, ctxCancel := context.WithCancelCause(parentCtx)
	wg := &sync.WaitGroup{}

	// Start echo router
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Emit(logger.INFO, "Listening on %s\n", gateway.config.HostAddr)
		if err := gateway.ec.Start(gateway.config.HostAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			ctxCancel(err)
		}
	}()

	// Start thread to listen for context cancellation
	go func(ec *echo.Echo) {
		<-ctx.Done()
		ec.Close()
	}(gateway.ec)

	wg.Wait()

	// Return cancellation cause if any, otherwise nil as parent context
	// cancellation is not an error case we should report.
	if cause := context.Cause(ctx); cause != ctx.Err() {
		return cause
	}

	return nil
}

// jsonErrorHandler renders every error as a JSON object with a single
// 'error' field, preserving the status code of echo HTTP errors.
func jsonErrorHandler(err error, ec echo.Context) {
	if ec.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := http.StatusText(code)

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		code = httpErr.Code
		if msg, ok := httpErr.Message.(string); ok {
			message = msg
		} else {
			message = http.StatusText(code)
		}
	} else {
		log.Emit(logger.ERROR, "Unhandled error for %s %s: %v\n", ec.Request().Method, ec.Request().URL.Path, err)
	}

	if ec.Request().Method == http.MethodHead {
		err = ec.NoContent(code)
	} else {
		err = ec.JSON(code, errorResponse{Error: message})
	}

	if err != nil {
		log.Emit(logger.ERROR, "Failed to write error response: %v\n", err)
	}
}
