package stream_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hbomb79/hlsgate/internal/ffmpeg"
	"github.com/hbomb79/hlsgate/pkg/logger"
	"github.com/stretchr/testify/mock"
)

func init() {
	logger.SetMinLoggingLevel(logger.VERBOSE.Level())
}

type (
	mockInspector struct {
		mock.Mock
	}

	fakeProcess struct {
		id       uuid.UUID
		done     chan struct{}
		stopOnce sync.Once
		stopped  bool
		mu       sync.Mutex
		stopGate chan struct{}
		stopping chan struct{}
	}

	// fakeLauncher records the invocations it is asked to launch. When
	// writePlaylists is set, launching writes a non-empty playlist to the
	// output path the way ffmpeg would once the first segment is done.
	fakeLauncher struct {
		mu             sync.Mutex
		invocations    []ffmpeg.Invocation
		processes      []*fakeProcess
		writePlaylists bool
		failLabel      string

		// When set, Stop on launched processes signals stopping and then
		// blocks until stopGate is closed.
		stopGate chan struct{}
		stopping chan struct{}
	}

	// fakeClock only advances when told to. Timers requested with After fire
	// once the clock has been advanced past their expiry.
	fakeClock struct {
		mu     sync.Mutex
		now    time.Duration
		timers []fakeTimer
	}

	fakeTimer struct {
		at time.Duration
		ch chan time.Time
	}

	// instantClock fires every timer immediately.
	instantClock struct{}
)

func (m *mockInspector) Probe(ctx context.Context, source string) ([]ffmpeg.AudioStream, error) {
	args := m.Called(ctx, source)
	streams, _ := args.Get(0).([]ffmpeg.AudioStream)
	return streams, args.Error(1)
}

func newFakeProcess() *fakeProcess {
	return &fakeProcess{id: uuid.New(), done: make(chan struct{})}
}

func (p *fakeProcess) Id() uuid.UUID         { return p.id }
func (p *fakeProcess) Done() <-chan struct{} { return p.done }
func (p *fakeProcess) Stop() {
	if p.stopping != nil {
		select {
		case p.stopping <- struct{}{}:
		default:
		}
	}
	if p.stopGate != nil {
		<-p.stopGate
	}

	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		p.mu.Unlock()
		close(p.done)
	})
}

func (p *fakeProcess) Stopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

func (l *fakeLauncher) Launch(_ context.Context, inv ffmpeg.Invocation) (ffmpeg.Process, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.invocations = append(l.invocations, inv)
	if inv.Label == l.failLabel {
		return nil, fmt.Errorf("%w: exec: \"ffmpeg\": executable file not found", ffmpeg.ErrLaunchFailure)
	}

	if l.writePlaylists {
		if err := os.WriteFile(inv.OutputPath, []byte("#EXTM3U\n#EXT-X-VERSION:3\n#EXTINF:10.0,\nsegment_00000.ts\n"), 0o644); err != nil {
			return nil, err
		}
	}

	proc := newFakeProcess()
	proc.stopGate = l.stopGate
	proc.stopping = l.stopping
	l.processes = append(l.processes, proc)
	return proc, nil
}

func (l *fakeLauncher) Invocations() []ffmpeg.Invocation {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ffmpeg.Invocation(nil), l.invocations...)
}

func (l *fakeLauncher) Processes() []*fakeProcess {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*fakeProcess(nil), l.processes...)
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	c.timers = append(c.timers, fakeTimer{at: c.now + d, ch: ch})
	return ch
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now += d
	pending := c.timers[:0]
	for _, timer := range c.timers {
		if timer.at <= c.now {
			timer.ch <- time.Unix(0, 0).Add(c.now)
		} else {
			pending = append(pending, timer)
		}
	}
	c.timers = pending
}

func (instantClock) After(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}
