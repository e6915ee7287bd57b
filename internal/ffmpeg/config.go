package ffmpeg

import "time"

// Config contains the paths to the external binaries used to inspect
// sources and to run transcoding workers.
type Config struct {
	FfmpegBinaryPath    string `yaml:"ffmpeg_binary_path" env:"FFMPEG_BINARY_PATH" env-default:"/usr/bin/ffmpeg"`
	FfprobeBinaryPath   string `yaml:"ffprobe_binary_path" env:"FFPROBE_BINARY_PATH" env-default:"/usr/bin/ffprobe"`
	ProbeTimeoutSeconds int    `yaml:"probe_timeout_seconds" env:"FFPROBE_TIMEOUT_SECONDS" env-default:"30"`
}

func (config *Config) ProbeTimeout() time.Duration {
	if config.ProbeTimeoutSeconds <= 0 {
		return 30 * time.Second
	}

	return time.Duration(config.ProbeTimeoutSeconds) * time.Second
}
