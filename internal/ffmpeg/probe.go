package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/hbomb79/hlsgate/pkg/logger"
)

const undeterminedLanguage = "und"

type (
	// AudioStream describes one audio stream discovered in a source.
	AudioStream struct {
		Index    int
		Codec    string
		Language string
	}

	probeOutput struct {
		Streams []probeStream `json:"streams"`
	}

	probeStream struct {
		Index     int               `json:"index"`
		CodecType string            `json:"codec_type"`
		CodecName string            `json:"codec_name"`
		Tags      map[string]string `json:"tags"`
	}

	// Prober queries a source with ffprobe to enumerate its streams before
	// any transcoding begins.
	Prober struct {
		config Config
	}
)

func NewProber(config Config) *Prober {
	return &Prober{config: config}
}

// Probe runs ffprobe against the source and returns the audio streams it
// contains, in the order ffprobe enumerates them. The source must contain
// at least one video stream.
//
// Failures are wrapped in either ErrSourceUnreachable or ErrSourceUnsupported.
func (prober *Prober) Probe(ctx context.Context, source string) ([]AudioStream, error) {
	probeCtx, cancel := context.WithTimeout(ctx, prober.config.ProbeTimeout())
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(probeCtx, prober.config.FfprobeBinaryPath,
		"-v", "error",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		source,
	)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Emit(logger.DEBUG, "Probing source %s\n", source)
	if err := cmd.Run(); err != nil {
		if errors.Is(probeCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: probe timed out after %s", ErrSourceUnreachable, prober.config.ProbeTimeout())
		}

		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("ffprobe could not be executed: %w", err)
		}

		return nil, fmt.Errorf("%w: %s", classifyProbeFailure(stderr.String()), firstLine(stderr.String()))
	}

	return parseProbeOutput(stdout.Bytes())
}

func parseProbeOutput(raw []byte) ([]AudioStream, error) {
	var out probeOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: malformed probe output: %s", ErrSourceUnsupported, err.Error())
	}

	hasVideo := false
	audio := make([]AudioStream, 0)
	for _, stream := range out.Streams {
		switch stream.CodecType {
		case "video":
			hasVideo = true
		case "audio":
			audio = append(audio, AudioStream{
				Index:    stream.Index,
				Codec:    stream.CodecName,
				Language: languageTag(stream.Tags),
			})
		}
	}

	if !hasVideo {
		return nil, fmt.Errorf("%w: no video stream found", ErrSourceUnsupported)
	}

	return audio, nil
}

// languageTag extracts the language from the stream tags. Containers
// disagree on the casing of the key, and 'und' is treated as absent.
func languageTag(tags map[string]string) string {
	for k, v := range tags {
		if !strings.EqualFold(k, "language") {
			continue
		}

		lang := strings.TrimSpace(v)
		if strings.EqualFold(lang, undeterminedLanguage) {
			return ""
		}

		return lang
	}

	return ""
}
