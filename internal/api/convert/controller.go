package convert

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/hbomb79/hlsgate/internal/api/util"
	"github.com/hbomb79/hlsgate/internal/ffmpeg"
	"github.com/hbomb79/hlsgate/internal/stream"
	"github.com/hbomb79/hlsgate/pkg/logger"
	"github.com/labstack/echo/v4"
)

var log = logger.Get("ConvertController")

type (
	ConvertRequest struct {
		URL string `json:"url" validate:"required,url"`
	}

	ConvertResponse struct {
		Status   string `json:"status"`
		HlsLink  string `json:"hls_link"`
		StreamID string `json:"stream_id"`
	}

	Service interface {
		Convert(ctx context.Context, sourceURL string) (*stream.Conversion, error)
	}

	Controller struct {
		service       Service
		validate      *validator.Validate
		publicBaseURL string
	}
)

func New(validate *validator.Validate, service Service, publicBaseURL string) *Controller {
	return &Controller{service: service, validate: validate, publicBaseURL: publicBaseURL}
}

func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.POST("", controller.convert)
}

func (controller *Controller) convert(ec echo.Context) error {
	var request ConvertRequest
	if err := ec.Bind(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid body: %s", err.Error()))
	}

	if err := controller.validate.Struct(request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid body: %s", err.Error()))
	}

	conversion, err := controller.service.Convert(ec.Request().Context(), request.URL)
	if err != nil {
		return conversionError(err)
	}

	key := conversion.Job.Key()
	return ec.JSON(http.StatusOK, ConvertResponse{
		Status:   string(conversion.Status),
		HlsLink:  util.StreamLink(controller.publicBaseURL, ec, key),
		StreamID: key,
	})
}

// conversionError maps a failed conversion on to the HTTP error returned
// to the client.
func conversionError(err error) error {
	switch {
	case errors.Is(err, stream.ErrInvalidRequest):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ffmpeg.ErrSourceUnreachable), errors.Is(err, ffmpeg.ErrSourceUnsupported):
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Failed to analyze source: %s", err.Error()))
	case errors.Is(err, ffmpeg.ErrLaunchFailure):
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Failed to start conversion: %s", err.Error()))
	case errors.Is(err, context.Canceled):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Request cancelled")
	default:
		log.Emit(logger.ERROR, "Unexpected conversion failure: %v\n", err)
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Conversion failed: %s", err.Error()))
	}
}
