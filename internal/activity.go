package internal

import (
	"github.com/hbomb79/hlsgate/internal/event"
	"github.com/hbomb79/hlsgate/internal/stream"
	"github.com/hbomb79/hlsgate/pkg/logger"
)

var activityLog = logger.Get("Activity")

type (
	jobLookup interface {
		Job(key string) (*stream.Job, error)
	}

	// activityLogger reports job lifecycle events as they are
	// dispatched on the event bus.
	activityLogger struct {
		jobs jobLookup
	}
)

func newActivityLogger(jobs jobLookup) *activityLogger {
	return &activityLogger{jobs: jobs}
}

func (activity *activityLogger) register(bus event.EventHandler) {
	bus.RegisterHandlerFunction(event.JOB_UPDATE, activity.handleEvent)
	bus.RegisterHandlerFunction(event.JOB_EVICTED, activity.handleEvent)
}

func (activity *activityLogger) handleEvent(ev event.Event, payload event.Payload) {
	key, ok := payload.(string)
	if !ok {
		return
	}

	if ev == event.JOB_EVICTED {
		activityLog.Emit(logger.REMOVE, "Job %s evicted\n", key)
		return
	}

	// The update may be dispatched before the job is visible in the registry
	job, err := activity.jobs.Job(key)
	if err != nil {
		activityLog.Emit(logger.INFO, "Job %s updated\n", key)
		return
	}

	switch job.State() {
	case stream.Failed:
		activityLog.Emit(logger.ERROR, "Job %s failed: %v\n", key, job.Failure())
	case stream.Ready:
		activityLog.Emit(logger.SUCCESS, "Job %s is ready (%d audio tracks)\n", key, len(job.Tracks()))
	default:
		activityLog.Emit(logger.INFO, "Job %s is %s\n", key, job.State())
	}
}
