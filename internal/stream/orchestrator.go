package stream

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/hbomb79/hlsgate/internal/ffmpeg"
	"github.com/hbomb79/hlsgate/internal/stream/hls"
	"github.com/hbomb79/hlsgate/pkg/logger"
	"github.com/rjeczalik/notify"
)

var orchestratorLog = logger.Get("Orchestrator")

const stopGracePeriod = 5 * time.Second

type (
	// Launcher starts a worker for an invocation, returning once the
	// worker is running.
	Launcher interface {
		Launch(ctx context.Context, invocation ffmpeg.Invocation) (ffmpeg.Process, error)
	}

	Clock interface {
		After(d time.Duration) <-chan time.Time
	}

	ReadyResult int

	systemClock struct{}

	// Orchestrator launches and supervises the ffmpeg workers of a job. It
	// derives readiness purely from the files the workers write.
	Orchestrator struct {
		launcher     Launcher
		clock        Clock
		encode       hls.EncodeConfig
		pollInterval time.Duration
	}
)

const (
	ResultReady ReadyResult = iota
	ResultTimeout
	ResultCancelled
)

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func (result ReadyResult) String() string {
	switch result {
	case ResultReady:
		return "READY"
	case ResultTimeout:
		return "TIMEOUT"
	case ResultCancelled:
		return "CANCELLED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(result))
	}
}

func NewOrchestrator(launcher Launcher, clock Clock, config Config) *Orchestrator {
	return &Orchestrator{
		launcher:     launcher,
		clock:        clock,
		encode:       config.encodeConfig(),
		pollInterval: config.PollInterval(),
	}
}

// Start launches one video worker, and one worker per audio track of the job.
// The workers run under the context provided, which should outlive any single
// request. If any worker fails to launch, those already started are stopped
// and the launch error is returned.
func (orchestrator *Orchestrator) Start(ctx context.Context, job *Job) error {
	invocations := make([]ffmpeg.Invocation, 0, len(job.tracks)+1)
	invocations = append(invocations, hls.VideoInvocation(job.source, job.dir, orchestrator.encode))
	for i, track := range job.tracks {
		invocations = append(invocations, hls.AudioInvocation(job.source, job.dir, track.Index, i+1, orchestrator.encode))
	}

	processes := make([]ffmpeg.Process, 0, len(invocations))
	for _, inv := range invocations {
		proc, err := orchestrator.launcher.Launch(ctx, inv)
		if err != nil {
			orchestratorLog.Emit(logger.ERROR, "Failed to launch %s worker for %s: %v\n", inv.Label, job.key, err)
			for _, started := range processes {
				started.Stop()
			}

			return err
		}

		processes = append(processes, proc)
	}

	job.attachProcesses(processes)
	orchestratorLog.Emit(logger.NEW, "Started %d workers for %s\n", len(processes), job)
	return nil
}

// IsReady reports whether the video sub-playlist of the job
// exists and is non-empty.
func (orchestrator *Orchestrator) IsReady(job *Job) bool {
	info, err := os.Stat(job.VideoPlaylist())
	if err != nil {
		return false
	}

	return info.Mode().IsRegular() && info.Size() > 0
}

// AwaitReady blocks until the job is ready, the timeout elapses, or the context
// is cancelled. Readiness is checked on every poll interval; changes inside the
// job directory trigger an early check but never extend the timeout.
func (orchestrator *Orchestrator) AwaitReady(ctx context.Context, job *Job, timeout time.Duration) ReadyResult {
	if orchestrator.IsReady(job) {
		return ResultReady
	}

	deadline := orchestrator.clock.After(timeout)
	changes := make(chan notify.EventInfo, 16)
	if err := notify.Watch(job.dir, changes, notify.Create, notify.Write, notify.Rename); err != nil {
		orchestratorLog.Emit(logger.WARNING, "Unable to watch %s, falling back to polling only: %v\n", job.dir, err)
	} else {
		defer notify.Stop(changes)
	}

	for {
		select {
		case <-ctx.Done():
			return ResultCancelled
		case <-deadline:
			if orchestrator.IsReady(job) {
				return ResultReady
			}

			orchestratorLog.Emit(logger.DEBUG, "%s not ready after %s\n", job, timeout)
			return ResultTimeout
		case <-orchestrator.clock.After(orchestrator.pollInterval):
		case <-changes:
		}

		if orchestrator.IsReady(job) {
			return ResultReady
		}
	}
}

// Stop stops every worker of the job, waiting a short time for them to exit.
func (orchestrator *Orchestrator) Stop(job *Job) {
	processes := job.detachProcesses()
	if len(processes) == 0 {
		return
	}

	for _, proc := range processes {
		proc.Stop()
	}

	grace := time.After(stopGracePeriod)
	for _, proc := range processes {
		select {
		case <-proc.Done():
		case <-grace:
			orchestratorLog.Emit(logger.WARNING, "Worker %s of %s did not exit within %s\n", proc.Id(), job.key, stopGracePeriod)
			return
		}
	}

	orchestratorLog.Emit(logger.STOP, "Stopped %d workers for %s\n", len(processes), job.key)
}
