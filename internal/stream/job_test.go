package stream_test

import (
	"testing"

	"github.com/hbomb79/hlsgate/internal/ffmpeg"
	"github.com/hbomb79/hlsgate/internal/stream"
	"github.com/stretchr/testify/assert"
)

func Test_NewAudioTracks(t *testing.T) {
	t.Parallel()

	tracks := stream.NewAudioTracks([]ffmpeg.AudioStream{
		{Index: 1, Codec: "aac", Language: "en"},
		{Index: 2, Codec: "ac3"},
		{Index: 4, Codec: "aac", Language: "fr"},
	})

	assert.Equal(t, []stream.AudioTrack{
		{Index: 1, Language: "en", Label: "EN", Playlist: "audio_1.m3u8", Default: true},
		{Index: 2, Language: "", Label: "Audio 2", Playlist: "audio_2.m3u8", Default: false},
		{Index: 4, Language: "fr", Label: "FR", Playlist: "audio_3.m3u8", Default: false},
	}, tracks)
}

func Test_NewAudioTracks_Empty(t *testing.T) {
	t.Parallel()
	assert.Empty(t, stream.NewAudioTracks(nil))
}

func Test_JobState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "PENDING", stream.Pending.String())
	assert.Equal(t, "GENERATING", stream.Generating.String())
	assert.Equal(t, "READY", stream.Ready.String())
	assert.Equal(t, "FAILED", stream.Failed.String())
}
