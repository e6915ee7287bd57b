package hls

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hbomb79/hlsgate/internal/ffmpeg"
)

const (
	MasterPlaylistName = "master.m3u8"
	VideoPlaylistName  = "video.m3u8"
	AudioGroupID       = "audio"

	ManifestContentType = "application/vnd.apple.mpegurl"
	SegmentContentType  = "video/mp2t"

	videoSegmentFormat  = "video_%05d.ts"
	audioPlaylistFormat = "audio_%d.m3u8"
	audioSegmentFormat  = "audio_%d_%%05d.ts"
	endListTag          = "#EXT-X-ENDLIST"
)

type (
	// Rendition is one alternative audio rendition declared in
	// the master manifest.
	Rendition struct {
		Language string
		Name     string
		URI      string
		Default  bool
	}

	// Variant is the single video variant stream declared in the
	// master manifest.
	Variant struct {
		Bandwidth int
		Codecs    string
		URI       string
	}

	// EncodeConfig holds the segmenting and codec parameters used when
	// building worker invocations.
	EncodeConfig struct {
		SegmentDuration int
		VideoCodec      string
		AudioCodec      string
		AudioBitrate    string
	}
)

// AudioPlaylistName returns the sub-playlist filename for the audio
// track at the (1-based) position provided.
func AudioPlaylistName(position int) string {
	return fmt.Sprintf(audioPlaylistFormat, position)
}

// MasterManifest renders the master playlist for the renditions and variant
// provided. Audio renditions are emitted in the order given, followed by the
// video variant. The output depends only on the arguments, so rendering the
// same input twice yields byte-identical text.
func MasterManifest(audio []Rendition, variant Variant) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:3\n")

	for _, r := range audio {
		b.WriteString("#EXT-X-MEDIA:TYPE=AUDIO")
		fmt.Fprintf(&b, ",GROUP-ID=\"%s\"", AudioGroupID)
		if r.Language != "" {
			fmt.Fprintf(&b, ",LANGUAGE=\"%s\"", sanitizeAttribute(r.Language))
		}
		fmt.Fprintf(&b, ",NAME=\"%s\"", sanitizeAttribute(r.Name))
		fmt.Fprintf(&b, ",DEFAULT=%s,AUTOSELECT=YES", yesNo(r.Default))
		fmt.Fprintf(&b, ",URI=\"%s\"\n", r.URI)
	}

	fmt.Fprintf(&b, "#EXT-X-STREAM-INF:BANDWIDTH=%d,CODECS=\"%s\"", variant.Bandwidth, variant.Codecs)
	if len(audio) > 0 {
		fmt.Fprintf(&b, ",AUDIO=\"%s\"", AudioGroupID)
	}
	b.WriteString("\n")
	b.WriteString(variant.URI + "\n")

	return b.String()
}

// Assemble renders the master manifest and writes it in to the directory
// provided. The write is atomic, so readers never observe a partial manifest.
func Assemble(dir string, audio []Rendition, variant Variant) (string, error) {
	path := filepath.Join(dir, MasterPlaylistName)
	if err := WriteFileAtomic(path, []byte(MasterManifest(audio, variant))); err != nil {
		return "", fmt.Errorf("failed to write master manifest: %w", err)
	}

	return path, nil
}

// WriteFileAtomic writes the data to a temporary file alongside the
// destination, and then renames it over the destination path.
func WriteFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}

	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return err
	}

	return nil
}

// VideoInvocation builds the worker invocation which demuxes the primary
// video stream of the source in to the video sub-playlist.
func VideoInvocation(source string, dir string, config EncodeConfig) ffmpeg.Invocation {
	skipAudio := true
	videoCodec := config.VideoCodec
	opts := baseOptions(filepath.Join(dir, videoSegmentFormat), config)
	opts.VideoCodec = &videoCodec
	opts.SkipAudio = &skipAudio
	opts.ExtraArgs["-map"] = "0:v:0"

	return ffmpeg.Invocation{
		Label:      "video",
		Source:     source,
		OutputPath: filepath.Join(dir, VideoPlaylistName),
		Options:    opts,
	}
}

// AudioInvocation builds the worker invocation which demuxes the single audio
// stream at streamIndex in to the sub-playlist for the track at position.
func AudioInvocation(source string, dir string, streamIndex int, position int, config EncodeConfig) ffmpeg.Invocation {
	skipVideo := true
	audioCodec := config.AudioCodec
	opts := baseOptions(filepath.Join(dir, fmt.Sprintf(audioSegmentFormat, position)), config)
	opts.AudioCodec = &audioCodec
	opts.SkipVideo = &skipVideo
	if config.AudioBitrate != "" && config.AudioCodec != "copy" {
		bitrate := config.AudioBitrate
		opts.AudioBitrate = &bitrate
	}
	opts.ExtraArgs["-map"] = fmt.Sprintf("0:%d", streamIndex)

	return ffmpeg.Invocation{
		Label:      fmt.Sprintf("audio-%d", position),
		Source:     source,
		OutputPath: filepath.Join(dir, AudioPlaylistName(position)),
		Options:    opts,
	}
}

func baseOptions(segmentPattern string, config EncodeConfig) ffmpeg.Options {
	outputFormat := "hls"
	playlistType := "event"
	segmentDuration := config.SegmentDuration
	listSize := 0
	hideBanner := true
	overwrite := true

	return ffmpeg.Options{
		OutputFormat:       &outputFormat,
		HlsPlaylistType:    &playlistType,
		HlsSegmentDuration: &segmentDuration,
		HlsListSize:        &listSize,
		HlsSegmentFilename: &segmentPattern,
		HideBanner:         &hideBanner,
		Overwrite:          &overwrite,
		ExtraArgs: map[string]interface{}{
			"-start_number": 0,
		},
	}
}

// PlaylistComplete reports whether the sub-playlist at the path given
// has been finalised by its worker (contains an ENDLIST tag).
func PlaylistComplete(path string) bool {
	content, err := os.ReadFile(path)
	if err != nil {
		return false
	}

	return bytes.Contains(content, []byte(endListTag))
}

// ContentTypeFor returns the media type to serve a stream file with,
// based on its extension.
func ContentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".m3u8":
		return ManifestContentType
	case ".ts":
		return SegmentContentType
	case ".aac":
		return "audio/aac"
	case ".m4s":
		return "video/iso.segment"
	case ".mp4":
		return "video/mp4"
	case ".vtt":
		return "text/vtt"
	default:
		return "application/octet-stream"
	}
}

func yesNo(b bool) string {
	if b {
		return "YES"
	}

	return "NO"
}

// sanitizeAttribute strips characters which cannot appear inside a
// quoted-string attribute of a playlist tag.
func sanitizeAttribute(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '"' || r == '\n' || r == '\r' {
			return -1
		}
		return r
	}, s)
}
