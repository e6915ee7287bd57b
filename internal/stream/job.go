package stream

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hbomb79/hlsgate/internal/ffmpeg"
	"github.com/hbomb79/hlsgate/internal/stream/hls"
)

type (
	JobState int

	// AudioTrack is one audio stream of the source which is exposed as
	// an alternative rendition of the stream.
	AudioTrack struct {
		Index    int    `json:"index"`
		Language string `json:"language,omitempty"`
		Label    string `json:"label"`
		Playlist string `json:"playlist"`
		Default  bool   `json:"default"`
	}

	// Job is the conversion of a single source in to an HLS stream. A job
	// is identified by the content key of its source, and owns the directory
	// of the same name inside the configured output directory.
	Job struct {
		key       string
		source    string
		dir       string
		tracks    []AudioTrack
		createdAt time.Time

		mu        sync.Mutex
		state     JobState
		failure   error
		processes []ffmpeg.Process
	}
)

const (
	Pending JobState = iota
	Generating
	Ready
	Failed
)

func (state JobState) String() string {
	switch state {
	case Pending:
		return "PENDING"
	case Generating:
		return "GENERATING"
	case Ready:
		return "READY"
	case Failed:
		return "FAILED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(state))
	}
}

// NewAudioTracks converts the audio streams discovered in a source in to
// the tracks of a job. Position in the returned slice matches the order of
// the streams given, and only the first track is marked as the default.
func NewAudioTracks(streams []ffmpeg.AudioStream) []AudioTrack {
	tracks := make([]AudioTrack, len(streams))
	for i, s := range streams {
		position := i + 1
		label := fmt.Sprintf("Audio %d", position)
		if s.Language != "" {
			label = strings.ToUpper(s.Language)
		}

		tracks[i] = AudioTrack{
			Index:    s.Index,
			Language: s.Language,
			Label:    label,
			Playlist: hls.AudioPlaylistName(position),
			Default:  i == 0,
		}
	}

	return tracks
}

func NewJob(key string, source string, dir string, tracks []AudioTrack) *Job {
	return &Job{
		key:       key,
		source:    source,
		dir:       dir,
		tracks:    tracks,
		createdAt: time.Now(),
		state:     Pending,
	}
}

func (job *Job) Key() string            { return job.key }
func (job *Job) Source() string         { return job.source }
func (job *Job) Dir() string            { return job.dir }
func (job *Job) CreatedAt() time.Time   { return job.createdAt }
func (job *Job) Tracks() []AudioTrack   { return append([]AudioTrack(nil), job.tracks...) }
func (job *Job) VideoPlaylist() string  { return filepath.Join(job.dir, hls.VideoPlaylistName) }
func (job *Job) MasterPlaylist() string { return filepath.Join(job.dir, hls.MasterPlaylistName) }

func (job *Job) State() JobState {
	job.mu.Lock()
	defer job.mu.Unlock()

	return job.state
}

// Failure returns the error which caused the job to fail, or
// nil if the job has not failed.
func (job *Job) Failure() error {
	job.mu.Lock()
	defer job.mu.Unlock()

	return job.failure
}

// transition moves the job to the new state provided, returning false if the
// job was already in that state. Failed is terminal.
func (job *Job) transition(state JobState) bool {
	job.mu.Lock()
	defer job.mu.Unlock()

	if job.state == state || job.state == Failed {
		return false
	}

	job.state = state
	return true
}

func (job *Job) fail(err error) {
	job.mu.Lock()
	defer job.mu.Unlock()

	job.state = Failed
	job.failure = err
}

func (job *Job) attachProcesses(processes []ffmpeg.Process) {
	job.mu.Lock()
	defer job.mu.Unlock()

	job.processes = append(job.processes, processes...)
}

// detachProcesses removes and returns the worker processes attached to the job.
func (job *Job) detachProcesses() []ffmpeg.Process {
	job.mu.Lock()
	defer job.mu.Unlock()

	processes := job.processes
	job.processes = nil
	return processes
}

func (job *Job) renditions() []hls.Rendition {
	renditions := make([]hls.Rendition, len(job.tracks))
	for i, track := range job.tracks {
		renditions[i] = hls.Rendition{
			Language: track.Language,
			Name:     track.Label,
			URI:      track.Playlist,
			Default:  track.Default,
		}
	}

	return renditions
}

func (job *Job) String() string {
	return fmt.Sprintf("Job{key=%s state=%s tracks=%d}", job.key, job.State(), len(job.tracks))
}
