package stream

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/hbomb79/hlsgate/internal/event"
	"github.com/hbomb79/hlsgate/internal/ffmpeg"
	"github.com/hbomb79/hlsgate/internal/identity"
	"github.com/hbomb79/hlsgate/internal/stream/hls"
	"github.com/hbomb79/hlsgate/pkg/logger"
)

var log = logger.Get("StreamService")

type (
	// Inspector enumerates the audio streams of a source before any
	// workers are started for it.
	Inspector interface {
		Probe(ctx context.Context, source string) ([]ffmpeg.AudioStream, error)
	}

	jobOrchestrator interface {
		Start(ctx context.Context, job *Job) error
		AwaitReady(ctx context.Context, job *Job, timeout time.Duration) ReadyResult
		Stop(job *Job)
	}

	ConversionStatus string

	// Conversion is the outcome of a conversion request: the job which
	// serves the source, and whether its stream can be played yet.
	Conversion struct {
		Status ConversionStatus
		Job    *Job
	}

	// Service converts sources in to HLS streams on demand. Each source is
	// inspected and transcoded at most once; repeated requests for the same
	// source share the job created by the first.
	Service struct {
		config       Config
		outputDir    string
		inspector    Inspector
		orchestrator jobOrchestrator
		registry     *Registry
		eventBus     event.EventDispatcher

		workerCtx     context.Context
		cancelWorkers context.CancelFunc
	}
)

const (
	StatusSuccess    ConversionStatus = "success"
	StatusProcessing ConversionStatus = "processing"
)

func New(config Config, inspector Inspector, orchestrator jobOrchestrator, eventBus event.EventDispatcher) (*Service, error) {
	outputDir, err := config.OutputDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outputDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create stream output directory %s: %w", outputDir, err)
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	return &Service{
		config:        config,
		outputDir:     outputDir,
		inspector:     inspector,
		orchestrator:  orchestrator,
		registry:      NewRegistry(),
		eventBus:      eventBus,
		workerCtx:     workerCtx,
		cancelWorkers: cancel,
	}, nil
}

// Run blocks until the context provided is cancelled, and then stops
// all running workers.
func (service *Service) Run(ctx context.Context) error {
	log.Emit(logger.INFO, "Serving streams from %s\n", service.outputDir)
	<-ctx.Done()

	log.Emit(logger.STOP, "Stopping workers for %d jobs\n", len(service.registry.All()))
	service.cancelWorkers()
	for _, job := range service.registry.All() {
		service.orchestrator.Stop(job)
	}

	return nil
}

func (service *Service) OutputDir() string { return service.outputDir }

// Convert returns the job for the source URL, creating and starting it if this
// is the first request for the source. It then waits (bounded by the configured
// ready timeout) for the stream to become playable.
//
// Errors wrap ErrInvalidRequest for unusable URLs, ffmpeg.ErrSourceUnreachable
// or ffmpeg.ErrSourceUnsupported when inspection fails, and ffmpeg.ErrLaunchFailure
// if the job could not be started.
func (service *Service) Convert(ctx context.Context, sourceURL string) (*Conversion, error) {
	source := identity.Normalize(sourceURL)
	if err := validateSource(source); err != nil {
		return nil, err
	}

	key := identity.KeyOf(source)
	job, created, err := service.registry.GetOrCreate(key, func() (*Job, error) {
		return service.createJob(ctx, key, source)
	})
	if err != nil {
		return nil, err
	}

	if job.State() == Failed {
		return nil, job.Failure()
	}
	if !created {
		log.Emit(logger.DEBUG, "Conversion request for existing %s\n", job)
	}
	if job.State() == Ready {
		return &Conversion{Status: StatusSuccess, Job: job}, nil
	}

	switch service.orchestrator.AwaitReady(ctx, job, service.config.ReadyTimeout()) {
	case ResultReady:
		service.transition(job, Ready)
		return &Conversion{Status: StatusSuccess, Job: job}, nil
	case ResultCancelled:
		return nil, ctx.Err()
	default:
		return &Conversion{Status: StatusProcessing, Job: job}, nil
	}
}

// Job returns the job for the key, if one is registered.
func (service *Service) Job(key string) (*Job, error) {
	if job, ok := service.registry.Get(key); ok {
		return job, nil
	}

	return nil, ErrJobNotFound
}

// Jobs returns all registered jobs, oldest first.
func (service *Service) Jobs() []*Job {
	jobs := service.registry.All()
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].createdAt.Before(jobs[j].createdAt) })
	return jobs
}

// Evict removes the job from the registry, stops its workers and deletes its
// output. Requests for the same source wait until the output is gone, and
// then create a fresh job.
func (service *Service) Evict(key string) error {
	job, err := service.registry.Evict(key, func(job *Job) error {
		service.orchestrator.Stop(job)
		if err := os.RemoveAll(job.dir); err != nil {
			return fmt.Errorf("failed to remove output of %s: %w", job.key, err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	log.Emit(logger.REMOVE, "Evicted %s\n", job)
	service.eventBus.Dispatch(event.JOB_EVICTED, key)
	return nil
}

// createJob runs inside the registry lock for the key. A nil job is returned
// if the source could not be inspected, in which case nothing is left on disk.
func (service *Service) createJob(ctx context.Context, key string, source string) (*Job, error) {
	dir := filepath.Join(service.outputDir, key)
	if job := restoreJob(key, source, dir); job != nil {
		log.Emit(logger.SUCCESS, "Restored completed output for %s\n", job)
		service.eventBus.Dispatch(event.JOB_UPDATE, key)
		return job, nil
	}

	streams, err := service.inspector.Probe(ctx, source)
	if err != nil {
		log.Emit(logger.WARNING, "Inspection of %s failed: %v\n", source, err)
		return nil, fmt.Errorf("failed to inspect source: %w", err)
	}

	job := NewJob(key, source, dir, NewAudioTracks(streams))
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("failed to clear stale output for %s: %w", key, err)
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create output directory for %s: %w", key, err)
	}
	if err := saveJobRecord(job); err != nil {
		log.Emit(logger.WARNING, "Unable to save record for %s: %v\n", job, err)
	}

	log.Emit(logger.NEW, "Created %s for %s\n", job, source)
	service.eventBus.Dispatch(event.JOB_UPDATE, key)

	if err := service.orchestrator.Start(service.workerCtx, job); err != nil {
		service.failJob(job, err)
		return job, err
	}
	service.transition(job, Generating)

	if _, err := hls.Assemble(dir, job.renditions(), service.config.variant()); err != nil {
		service.orchestrator.Stop(job)
		service.failJob(job, err)
		return job, err
	}

	return job, nil
}

func (service *Service) transition(job *Job, state JobState) {
	if job.transition(state) {
		log.Emit(logger.INFO, "%s transitioned to %s\n", job.key, state)
		service.eventBus.Dispatch(event.JOB_UPDATE, job.key)
	}
}

func (service *Service) failJob(job *Job, err error) {
	log.Emit(logger.ERROR, "%s failed: %v\n", job.key, err)
	job.fail(err)
	service.eventBus.Dispatch(event.JOB_UPDATE, job.key)
}

// validateSource ensures the source is an absolute URL which ffmpeg
// can be pointed at.
func validateSource(source string) error {
	if source == "" {
		return fmt.Errorf("%w: url must not be empty", ErrInvalidRequest)
	}

	parsed, err := url.Parse(source)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRequest, err.Error())
	}
	if parsed.Scheme == "" || (parsed.Host == "" && parsed.Path == "") {
		return fmt.Errorf("%w: url %q must be absolute", ErrInvalidRequest, source)
	}

	return nil
}
