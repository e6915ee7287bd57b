package hls_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hbomb79/hlsgate/internal/stream/hls"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testVariant = hls.Variant{Bandwidth: 5000000, Codecs: "avc1.640028,mp4a.40.2", URI: hls.VideoPlaylistName}
	testEncode  = hls.EncodeConfig{SegmentDuration: 10, VideoCodec: "copy", AudioCodec: "aac", AudioBitrate: "128k"}
)

func twoRenditions() []hls.Rendition {
	return []hls.Rendition{
		{Language: "en", Name: "EN", URI: hls.AudioPlaylistName(1), Default: true},
		{Language: "fr", Name: "FR", URI: hls.AudioPlaylistName(2), Default: false},
	}
}

func Test_MasterManifest_ListsAudioThenVideo(t *testing.T) {
	t.Parallel()

	expected := "#EXTM3U\n" +
		"#EXT-X-VERSION:3\n" +
		`#EXT-X-MEDIA:TYPE=AUDIO,GROUP-ID="audio",LANGUAGE="en",NAME="EN",DEFAULT=YES,AUTOSELECT=YES,URI="audio_1.m3u8"` + "\n" +
		`#EXT-X-MEDIA:TYPE=AUDIO,GROUP-ID="audio",LANGUAGE="fr",NAME="FR",DEFAULT=NO,AUTOSELECT=YES,URI="audio_2.m3u8"` + "\n" +
		`#EXT-X-STREAM-INF:BANDWIDTH=5000000,CODECS="avc1.640028,mp4a.40.2",AUDIO="audio"` + "\n" +
		"video.m3u8\n"

	assert.Equal(t, expected, hls.MasterManifest(twoRenditions(), testVariant))
}

func Test_MasterManifest_IsIdempotent(t *testing.T) {
	t.Parallel()

	first := hls.MasterManifest(twoRenditions(), testVariant)
	second := hls.MasterManifest(twoRenditions(), testVariant)
	assert.Equal(t, first, second)
}

func Test_MasterManifest_RenditionCountAndSingleDefault(t *testing.T) {
	t.Parallel()

	renditions := []hls.Rendition{
		{Language: "en", Name: "EN", URI: hls.AudioPlaylistName(1), Default: true},
		{Name: "Audio 2", URI: hls.AudioPlaylistName(2)},
		{Language: "de", Name: "DE", URI: hls.AudioPlaylistName(3)},
	}
	manifest := hls.MasterManifest(renditions, testVariant)

	assert.Equal(t, len(renditions), strings.Count(manifest, "#EXT-X-MEDIA:"))
	assert.Equal(t, 1, strings.Count(manifest, "DEFAULT=YES"))
	assert.Equal(t, 1, strings.Count(manifest, "#EXT-X-STREAM-INF:"))
	assert.NotContains(t, manifest, `LANGUAGE="",`)
	assert.Contains(t, manifest, `NAME="Audio 2",DEFAULT=NO`)
}

func Test_MasterManifest_NoAudioOmitsGroup(t *testing.T) {
	t.Parallel()

	manifest := hls.MasterManifest(nil, testVariant)
	assert.NotContains(t, manifest, "#EXT-X-MEDIA")
	assert.NotContains(t, manifest, "AUDIO=")
	assert.True(t, strings.HasSuffix(manifest, "video.m3u8\n"))
}

func Test_Assemble_WritesManifestAtomically(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	path, err := hls.Assemble(dir, twoRenditions(), testVariant)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, hls.MasterPlaylistName), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, hls.MasterManifest(twoRenditions(), testVariant), string(content))

	// Re-assembling produces identical bytes and leaves no temp files behind
	_, err = hls.Assemble(dir, twoRenditions(), testVariant)
	require.NoError(t, err)
	again, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, again)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func Test_Assemble_FailsForMissingDirectory(t *testing.T) {
	t.Parallel()

	_, err := hls.Assemble(filepath.Join(t.TempDir(), "missing"), twoRenditions(), testVariant)
	assert.Error(t, err)
}

// argValue returns the argument following the flag provided.
func argValue(t *testing.T, args []string, flag string) string {
	for i, arg := range args {
		if arg == flag && i+1 < len(args) {
			return args[i+1]
		}
	}

	t.Fatalf("flag %s not found in %v", flag, args)
	return ""
}

func Test_VideoInvocation(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	inv := hls.VideoInvocation("http://example.com/video.mp4", dir, testEncode)
	args := inv.Args()

	assert.Equal(t, filepath.Join(dir, hls.VideoPlaylistName), inv.OutputPath)
	assert.Equal(t, []string{"-i", "http://example.com/video.mp4"}, args[:2])
	assert.Equal(t, inv.OutputPath, args[len(args)-1])
	assert.Equal(t, "0:v:0", argValue(t, args, "-map"))
	assert.Equal(t, "copy", argValue(t, args, "-c:v"))
	assert.Equal(t, "hls", argValue(t, args, "-f"))
	assert.Equal(t, "10", argValue(t, args, "-hls_time"))
	assert.Equal(t, "0", argValue(t, args, "-hls_list_size"))
	assert.Equal(t, filepath.Join(dir, "video_%05d.ts"), argValue(t, args, "-hls_segment_filename"))
	assert.Contains(t, args, "-an")
	assert.NotContains(t, args, "-vn")
}

func Test_AudioInvocation(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	inv := hls.AudioInvocation("http://example.com/video.mp4", dir, 3, 2, testEncode)
	args := inv.Args()

	assert.Equal(t, filepath.Join(dir, "audio_2.m3u8"), inv.OutputPath)
	assert.Equal(t, "0:3", argValue(t, args, "-map"))
	assert.Equal(t, "aac", argValue(t, args, "-c:a"))
	assert.Equal(t, "128k", argValue(t, args, "-ab"))
	assert.Equal(t, filepath.Join(dir, "audio_2_%05d.ts"), argValue(t, args, "-hls_segment_filename"))
	assert.Contains(t, args, "-vn")
	assert.NotContains(t, args, "-an")
}

func Test_PlaylistComplete(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	partial := filepath.Join(dir, "partial.m3u8")
	complete := filepath.Join(dir, "complete.m3u8")
	require.NoError(t, os.WriteFile(partial, []byte("#EXTM3U\n#EXTINF:10,\nvideo_00000.ts\n"), 0o644))
	require.NoError(t, os.WriteFile(complete, []byte("#EXTM3U\n#EXTINF:10,\nvideo_00000.ts\n#EXT-X-ENDLIST\n"), 0o644))

	assert.False(t, hls.PlaylistComplete(partial))
	assert.True(t, hls.PlaylistComplete(complete))
	assert.False(t, hls.PlaylistComplete(filepath.Join(dir, "missing.m3u8")))
}

func Test_ContentTypeFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "application/vnd.apple.mpegurl", hls.ContentTypeFor("master.m3u8"))
	assert.Equal(t, "application/vnd.apple.mpegurl", hls.ContentTypeFor("AUDIO_1.M3U8"))
	assert.Equal(t, "video/mp2t", hls.ContentTypeFor("video_00001.ts"))
	assert.Equal(t, "application/octet-stream", hls.ContentTypeFor("notes"))
}
