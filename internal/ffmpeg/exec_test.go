package ffmpeg_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hbomb79/hlsgate/internal/ffmpeg"
	"github.com/stretchr/testify/assert"
)

func Test_Invocation_Args(t *testing.T) {
	t.Parallel()

	format := "hls"
	inv := ffmpeg.Invocation{
		Label:      "video",
		Source:     "http://example.com/video.mp4",
		OutputPath: "/tmp/out/video.m3u8",
		Options:    ffmpeg.Options{OutputFormat: &format},
	}

	args := inv.Args()
	assert.Equal(t, []string{"-i", "http://example.com/video.mp4"}, args[:2])
	assert.Contains(t, args, "-f")
	assert.Contains(t, args, "hls")
	assert.Equal(t, "/tmp/out/video.m3u8", args[len(args)-1])
}

func Test_Executor_LaunchFailsWithoutBinaries(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	executor := ffmpeg.NewExecutor(ffmpeg.Config{
		FfmpegBinaryPath:  filepath.Join(dir, "missing-ffmpeg"),
		FfprobeBinaryPath: filepath.Join(dir, "missing-ffprobe"),
	})

	proc, err := executor.Launch(context.Background(), ffmpeg.Invocation{
		Label:      "video",
		Source:     "http://example.com/video.mp4",
		OutputPath: filepath.Join(dir, "job", "video.m3u8"),
	})

	assert.Nil(t, proc)
	assert.ErrorIs(t, err, ffmpeg.ErrLaunchFailure)
	assert.DirExists(t, filepath.Join(dir, "job"))
}
