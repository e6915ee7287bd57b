package stream

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hbomb79/hlsgate/internal/stream/hls"
)

// JobRecordName is the file inside each job directory which records the
// source and tracks of the job, so that completed output can be served
// again after a restart without inspecting the source.
const JobRecordName = "job.json"

type jobRecord struct {
	Key       string       `json:"key"`
	Source    string       `json:"source"`
	Tracks    []AudioTrack `json:"tracks"`
	CreatedAt time.Time    `json:"created_at"`
}

func saveJobRecord(job *Job) error {
	record := jobRecord{
		Key:       job.key,
		Source:    job.source,
		Tracks:    job.tracks,
		CreatedAt: job.createdAt,
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal job record: %w", err)
	}

	return hls.WriteFileAtomic(filepath.Join(job.dir, JobRecordName), data)
}

func loadJobRecord(dir string) (*jobRecord, error) {
	data, err := os.ReadFile(filepath.Join(dir, JobRecordName))
	if err != nil {
		return nil, err
	}

	var record jobRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("malformed job record: %w", err)
	}

	return &record, nil
}

// restoreJob returns a Ready job for the directory provided if a previous run
// left behind complete output for the same key and source. Anything less
// than complete output is ignored, and will be replaced.
func restoreJob(key string, source string, dir string) *Job {
	record, err := loadJobRecord(dir)
	if err != nil || record.Key != key || record.Source != source {
		return nil
	}

	job := &Job{
		key:       key,
		source:    source,
		dir:       dir,
		tracks:    record.Tracks,
		createdAt: record.CreatedAt,
		state:     Ready,
	}

	if _, err := os.Stat(job.MasterPlaylist()); err != nil {
		return nil
	}
	if !hls.PlaylistComplete(job.VideoPlaylist()) {
		return nil
	}
	for _, track := range job.tracks {
		if !hls.PlaylistComplete(filepath.Join(dir, track.Playlist)) {
			return nil
		}
	}

	return job
}
