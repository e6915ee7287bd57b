package internal

import (
	"context"
	"fmt"
	"sync"

	"github.com/hbomb79/hlsgate/internal/api"
	"github.com/hbomb79/hlsgate/internal/event"
	"github.com/hbomb79/hlsgate/internal/ffmpeg"
	"github.com/hbomb79/hlsgate/internal/stream"
	"github.com/hbomb79/hlsgate/pkg/logger"
)

var log = logger.Get("Core")

type (
	RunnableService interface {
		Run(context.Context) error
	}

	// gatewayImpl is the top-level object for the server, and is responsible
	// for constructing the services and running them until shutdown.
	gatewayImpl struct {
		config   Config
		eventBus event.EventCoordinator

		streamService *stream.Service
		restGateway   RunnableService
	}
)

func New(config Config) (*gatewayImpl, error) {
	log.Emit(logger.DEBUG, "Bootstrapping services using config: %#v\n", config)
	gateway := &gatewayImpl{
		config:   config,
		eventBus: event.New(),
	}

	orchestrator := stream.NewOrchestrator(ffmpeg.NewExecutor(config.FfmpegConfig), stream.SystemClock, config.StreamConfig)
	streamService, err := stream.New(config.StreamConfig, ffmpeg.NewProber(config.FfmpegConfig), orchestrator, gateway.eventBus)
	if err != nil {
		return nil, fmt.Errorf("failed to construct stream service: %w", err)
	}

	gateway.streamService = streamService
	gateway.restGateway = api.NewRestGateway(&config.RestConfig, streamService, stream.NewMediaServer(streamService.OutputDir()))
	newActivityLogger(streamService).register(gateway.eventBus)

	return gateway, nil
}

// Run starts all services. This function will not return until the provided
// context is cancelled, or a service crashes; a crash cancels the context
// for all other services.
func (gateway *gatewayImpl) Run(parent context.Context) error {
	ctx, cancel := context.WithCancelCause(parent)
	defer cancel(nil)

	crashHandler := func(label string, err error) {
		log.Emit(logger.FATAL, "Service crash (%s)! %s\n", label, err.Error())
		cancel(fmt.Errorf("%s crashed: %w", label, err))
	}

	wg := &sync.WaitGroup{}
	gateway.spawnAsyncService(ctx, wg, gateway.streamService, "stream-service", crashHandler)
	gateway.spawnAsyncService(ctx, wg, gateway.restGateway, "rest-gateway", crashHandler)
	log.Emit(logger.SUCCESS, "Services spawned!\n")

	wg.Wait()
	if cause := context.Cause(ctx); cause != nil && cause != ctx.Err() {
		return cause
	}

	log.Emit(logger.STOP, "Shutdown complete\n")
	return nil
}

// spawnAsyncService runs the service in its own goroutine, ensuring that the
// waitgroup is updated correctly and that panics are reported as crashes.
func (gateway *gatewayImpl) spawnAsyncService(ctx context.Context, wg *sync.WaitGroup, service RunnableService, serviceLabel string, crashHandler func(string, error)) {
	log.Emit(logger.NEW, "Spawning %s\n", serviceLabel)
	wg.Add(1)

	go func(wg *sync.WaitGroup, label string, crash func(string, error)) {
		defer wg.Done()
		defer func() {
			if r := recover(); r != nil {
				crash(label, fmt.Errorf("panic %v", r))
			}
		}()

		if err := service.Run(ctx); err != nil {
			crash(label, err)
		}
	}(wg, serviceLabel, crashHandler)
}
