package stream

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/hbomb79/hlsgate/internal/stream/hls"
	"github.com/mitchellh/go-homedir"
)

// Config contains the user configuration for the conversion
// of sources in to HLS streams.
type Config struct {
	OutputPath             string `yaml:"output_dir" env:"STREAM_OUTPUT_DIR" env-default:"./static/streams"`
	SegmentDurationSeconds int    `yaml:"segment_duration_seconds" env:"STREAM_SEGMENT_DURATION" env-default:"10"`
	PollIntervalMillis     int    `yaml:"poll_interval_ms" env:"STREAM_POLL_INTERVAL_MS" env-default:"1000"`
	ReadyTimeoutSeconds    int    `yaml:"ready_timeout_seconds" env:"STREAM_READY_TIMEOUT" env-default:"15"`
	VideoCodec             string `yaml:"video_codec" env:"STREAM_VIDEO_CODEC" env-default:"copy"`
	AudioCodec             string `yaml:"audio_codec" env:"STREAM_AUDIO_CODEC" env-default:"aac"`
	AudioBitrate           string `yaml:"audio_bitrate" env:"STREAM_AUDIO_BITRATE" env-default:"128k"`
	Bandwidth              int    `yaml:"bandwidth" env:"STREAM_BANDWIDTH" env-default:"5000000"`
	Codecs                 string `yaml:"codecs" env:"STREAM_CODECS" env-default:"avc1.640028,mp4a.40.2"`
}

// OutputDir returns the absolute path of the directory which job
// directories are created inside of, with any leading '~' expanded.
func (config Config) OutputDir() (string, error) {
	expanded, err := homedir.Expand(config.OutputPath)
	if err != nil {
		return "", fmt.Errorf("failed to expand stream output directory %s: %w", config.OutputPath, err)
	}

	return filepath.Abs(expanded)
}

func (config Config) PollInterval() time.Duration {
	if config.PollIntervalMillis <= 0 {
		return time.Second
	}

	return time.Duration(config.PollIntervalMillis) * time.Millisecond
}

func (config Config) ReadyTimeout() time.Duration {
	if config.ReadyTimeoutSeconds <= 0 {
		return 15 * time.Second
	}

	return time.Duration(config.ReadyTimeoutSeconds) * time.Second
}

func (config Config) encodeConfig() hls.EncodeConfig {
	segmentDuration := config.SegmentDurationSeconds
	if segmentDuration <= 0 {
		segmentDuration = 10
	}

	return hls.EncodeConfig{
		SegmentDuration: segmentDuration,
		VideoCodec:      orDefault(config.VideoCodec, "copy"),
		AudioCodec:      orDefault(config.AudioCodec, "aac"),
		AudioBitrate:    config.AudioBitrate,
	}
}

func (config Config) variant() hls.Variant {
	bandwidth := config.Bandwidth
	if bandwidth <= 0 {
		bandwidth = 5000000
	}

	return hls.Variant{
		Bandwidth: bandwidth,
		Codecs:    orDefault(config.Codecs, "avc1.640028,mp4a.40.2"),
		URI:       hls.VideoPlaylistName,
	}
}

func orDefault(value string, dflt string) string {
	if value == "" {
		return dflt
	}

	return value
}
