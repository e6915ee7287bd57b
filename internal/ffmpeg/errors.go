package ffmpeg

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrSourceUnreachable indicates the source could not be read at all
	// (network failure, missing file, HTTP error, probe timeout).
	ErrSourceUnreachable = errors.New("source unreachable")

	// ErrSourceUnsupported indicates the source was read, but is not
	// usable media (unknown container, no video stream, garbage output).
	ErrSourceUnsupported = errors.New("source unsupported")

	// ErrLaunchFailure indicates a transcoding worker could not be started.
	ErrLaunchFailure = errors.New("failed to launch transcode worker")
)

// unreachableHints are fragments of ffprobe/ffmpeg stderr output that
// indicate the source itself could not be reached.
var unreachableHints = []string{
	"connection refused",
	"connection reset",
	"connection timed out",
	"timed out",
	"no such file or directory",
	"server returned",
	"http error",
	"failed to resolve",
	"could not resolve",
	"name or service not known",
	"temporary failure in name resolution",
	"network is unreachable",
	"no route to host",
	"i/o error",
}

var ffmpegMessageMatcher = regexp.MustCompile(`(?s)message: ({.*})`)

// classifyProbeFailure inspects the stderr of a failed probe and decides
// whether the source was unreachable, or simply not usable media.
func classifyProbeFailure(stderr string) error {
	lower := strings.ToLower(stderr)
	for _, hint := range unreachableHints {
		if strings.Contains(lower, hint) {
			return ErrSourceUnreachable
		}
	}

	return ErrSourceUnsupported
}

// firstLine returns the first non-empty line of the output provided, which
// is usually the only useful part of ffmpeg diagnostics.
func firstLine(output string) string {
	for _, line := range strings.Split(output, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}

	return "no diagnostic output"
}

// parseFfmpegError tries to pick the relevant information out of the HUGE
// error produced by the transcoder when ffmpeg/ffprobe fail. The useful part
// is the JSON encoded 'message' embedded inside; if that cannot be found the
// error is returned untouched.
func parseFfmpegError(err error) string {
	groups := ffmpegMessageMatcher.FindStringSubmatch(err.Error())
	if len(groups) < 2 {
		return err.Error()
	}

	var out map[string]any
	if jsonErr := json.Unmarshal([]byte(groups[1]), &out); jsonErr != nil {
		return groups[1]
	}

	if exception, ok := out["error"].(map[string]any); ok {
		if msg, ok := exception["string"].(string); ok {
			return msg
		}
	}

	return groups[1]
}
