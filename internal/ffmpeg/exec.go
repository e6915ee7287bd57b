package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/floostack/transcoder"
	"github.com/floostack/transcoder/ffmpeg"
	"github.com/google/uuid"
	"github.com/hbomb79/hlsgate/pkg/logger"
)

var log = logger.Get("FFmpeg")

type (
	// Options is the typed set of ffmpeg output arguments for a worker.
	Options = ffmpeg.Options

	// Invocation is a structured description of one ffmpeg worker: where it
	// reads from, the output arguments, and where the playlist is written.
	// It is built independently of execution so that command construction
	// can be inspected and tested.
	Invocation struct {
		Label      string
		Source     string
		OutputPath string
		Options    Options
	}

	// Process is a handle on a launched worker.
	Process interface {
		Id() uuid.UUID
		Done() <-chan struct{}
		Stop()
	}

	// Executor launches ffmpeg workers on the host machine.
	Executor struct {
		config Config
	}

	worker struct {
		id         uuid.UUID
		invocation Invocation
		cmd        *exec.Cmd
		cancel     context.CancelFunc
		done       chan struct{}
		stopOnce   sync.Once
	}
)

func NewExecutor(config Config) *Executor {
	return &Executor{config: config}
}

// Args returns the ordered argument list that the invocation passes to
// ffmpeg (excluding the binary itself).
func (inv Invocation) Args() []string {
	args := []string{"-i", inv.Source}
	args = append(args, inv.Options.GetStrArguments()...)
	return append(args, inv.OutputPath)
}

// Launch starts an ffmpeg worker for the invocation provided and returns as soon
// as the process has been spawned. The worker runs until the source is exhausted,
// it fails, or the context provided is cancelled.
//
// Errors are only returned if the process could not be started, in which
// case they wrap ErrLaunchFailure.
func (executor *Executor) Launch(ctx context.Context, inv Invocation) (Process, error) {
	if err := os.MkdirAll(filepath.Dir(inv.OutputPath), os.ModePerm); err != nil {
		return nil, fmt.Errorf("%w: cannot create output directory: %s", ErrLaunchFailure, err.Error())
	}

	workerCtx, cancel := context.WithCancel(ctx)
	instance := ffmpeg.
		New(&ffmpeg.Config{
			ProgressEnabled: true,
			FfmpegBinPath:   executor.config.FfmpegBinaryPath,
			FfprobeBinPath:  executor.config.FfprobeBinaryPath,
		}).
		Input(inv.Source).
		Output(inv.OutputPath).
		WithContext(&workerCtx)

	opts := inv.Options
	progress, err := instance.Start(&opts)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %s", ErrLaunchFailure, parseFfmpegError(err))
	}

	w := &worker{
		id:         uuid.New(),
		invocation: inv,
		cmd:        instance.GetRunningCmdInstance(),
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	log.Emit(logger.NEW, "Launched worker %s\n", w)
	go w.monitor(progress)

	return w, nil
}

// monitor drains the progress channel of the worker, which must be consumed
// for ffmpeg to keep making progress. The channel closes when ffmpeg exits.
func (w *worker) monitor(progress <-chan transcoder.Progress) {
	defer close(w.done)

	var last transcoder.Progress
	for prog := range progress {
		last = prog
		log.Emit(logger.VERBOSE, "Worker %s progress: time=%s speed=%s\n", w.id, prog.GetCurrentTime(), prog.GetSpeed())
	}

	if last != nil {
		log.Emit(logger.SUCCESS, "Worker %s exited (last reported time %s)\n", w, last.GetCurrentTime())
	} else {
		log.Emit(logger.WARNING, "Worker %s exited without reporting any progress\n", w)
	}
}

func (w *worker) Id() uuid.UUID         { return w.id }
func (w *worker) Done() <-chan struct{} { return w.done }

// Stop cancels the worker context and kills the underlying process if it
// is still running. Calling Stop more than once is harmless.
func (w *worker) Stop() {
	w.stopOnce.Do(func() {
		log.Emit(logger.STOP, "Stopping worker %s\n", w)
		w.cancel()
		if w.cmd != nil && w.cmd.Process != nil {
			_ = w.cmd.Process.Kill()
		}
	})
}

func (w *worker) String() string {
	pid := -1
	if w.cmd != nil && w.cmd.Process != nil {
		pid = w.cmd.Process.Pid
	}

	return fmt.Sprintf("{%s label=%s pid=%d out=%s}", w.id, w.invocation.Label, pid, w.invocation.OutputPath)
}
