package jobs

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hbomb79/hlsgate/internal/api/util"
	"github.com/hbomb79/hlsgate/internal/identity"
	"github.com/hbomb79/hlsgate/internal/stream"
	"github.com/labstack/echo/v4"
)

type (
	AudioTrackDto struct {
		Index    int    `json:"index"`
		Language string `json:"language,omitempty"`
		Label    string `json:"label"`
		Playlist string `json:"playlist"`
		Default  bool   `json:"default"`
	}

	JobDto struct {
		StreamID  string          `json:"stream_id"`
		Source    string          `json:"source"`
		State     string          `json:"state"`
		Error     string          `json:"error,omitempty"`
		HlsLink   string          `json:"hls_link"`
		Tracks    []AudioTrackDto `json:"tracks"`
		CreatedAt time.Time       `json:"created_at"`
	}

	Service interface {
		Job(key string) (*stream.Job, error)
		Jobs() []*stream.Job
		Evict(key string) error
	}

	// Controller exposes administrative access to the jobs known
	// to the gateway.
	Controller struct {
		service       Service
		publicBaseURL string
	}
)

func New(service Service, publicBaseURL string) *Controller {
	return &Controller{service: service, publicBaseURL: publicBaseURL}
}

func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.GET("", controller.list)
	eg.GET("/:key", controller.get)
	eg.DELETE("/:key", controller.delete)
}

func (controller *Controller) list(ec echo.Context) error {
	dtos := util.ApplyConversion(controller.service.Jobs(), func(job *stream.Job) JobDto {
		return controller.newDto(ec, job)
	})

	return ec.JSON(http.StatusOK, dtos)
}

func (controller *Controller) get(ec echo.Context) error {
	key := ec.Param("key")
	if !identity.IsKey(key) {
		return echo.NewHTTPError(http.StatusBadRequest, "Stream ID is not valid")
	}

	job, err := controller.service.Job(key)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("Job with stream ID %s does not exist", key))
	}

	return ec.JSON(http.StatusOK, controller.newDto(ec, job))
}

func (controller *Controller) delete(ec echo.Context) error {
	key := ec.Param("key")
	if !identity.IsKey(key) {
		return echo.NewHTTPError(http.StatusBadRequest, "Stream ID is not valid")
	}

	if err := controller.service.Evict(key); err != nil {
		if errors.Is(err, stream.ErrJobNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("Job with stream ID %s does not exist", key))
		}

		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Failed to evict job: %s", err.Error()))
	}

	return ec.NoContent(http.StatusNoContent)
}

func (controller *Controller) newDto(ec echo.Context, job *stream.Job) JobDto {
	dto := JobDto{
		StreamID:  job.Key(),
		Source:    job.Source(),
		State:     job.State().String(),
		HlsLink:   util.StreamLink(controller.publicBaseURL, ec, job.Key()),
		Tracks:    util.ApplyConversion(job.Tracks(), newAudioTrackDto),
		CreatedAt: job.CreatedAt(),
	}
	if failure := job.Failure(); failure != nil {
		dto.Error = failure.Error()
	}

	return dto
}

func newAudioTrackDto(track stream.AudioTrack) AudioTrackDto {
	return AudioTrackDto{
		Index:    track.Index,
		Language: track.Language,
		Label:    track.Label,
		Playlist: track.Playlist,
		Default:  track.Default,
	}
}
