package util

import (
	"fmt"
	"strings"

	"github.com/hbomb79/hlsgate/internal/stream/hls"
	"github.com/labstack/echo/v4"
)

// ApplyConversion applies a converter function to each of the models
// provided to this function. The returned value is a slice which
// has been converted to the new values based on the returned value
// from the converter.
func ApplyConversion[T any, K any](models []T, converter func(T) K) []K {
	dtos := make([]K, 0, len(models))
	for _, v := range models {
		dtos = append(dtos, converter(v))
	}

	return dtos
}

// StreamLink returns the absolute URL of the master playlist for the job key
// provided. If no public base URL is configured, the scheme and host
// of the request are used instead.
func StreamLink(publicBaseURL string, ec echo.Context, key string) string {
	base := strings.TrimRight(publicBaseURL, "/")
	if base == "" {
		base = fmt.Sprintf("%s://%s", ec.Scheme(), ec.Request().Host)
	}

	return fmt.Sprintf("%s/streams/%s/%s", base, key, hls.MasterPlaylistName)
}
