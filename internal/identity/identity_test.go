package identity_test

import (
	"fmt"
	"testing"

	"github.com/hbomb79/hlsgate/internal/identity"
	"github.com/stretchr/testify/assert"
)

func Test_KeyOf_IsDeterministic(t *testing.T) {
	t.Parallel()

	url := "http://example.com/video.mp4"
	assert.Equal(t, identity.KeyOf(url), identity.KeyOf(url))
	assert.Len(t, identity.KeyOf(url), identity.KeyLength)
}

func Test_KeyOf_IgnoresSurroundingWhitespace(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		identity.KeyOf("http://example.com/video.mp4"),
		identity.KeyOf("  http://example.com/video.mp4\n"),
	)
}

func Test_KeyOf_DistinctURLsProduceDistinctKeys(t *testing.T) {
	t.Parallel()

	seen := make(map[string]string)
	for i := 0; i < 1000; i++ {
		url := fmt.Sprintf("http://example.com/video-%d.mp4", i)
		key := identity.KeyOf(url)
		if other, ok := seen[key]; ok {
			t.Fatalf("key collision between %q and %q", url, other)
		}
		seen[key] = url
	}
}

func Test_IsKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		summary string
		key     string
		valid   bool
	}{
		{"generated key", identity.KeyOf("http://example.com/a.mp4"), true},
		{"empty", "", false},
		{"too short", "abc123", false},
		{"uppercase hex", "ABCDEF0123456789ABCDEF0123456789ABCDEF0123456789ABCDEF0123456789", false},
		{"path traversal", "../../../../../../../../../../../../../../../../../../../../etc/pa", false},
	}

	for _, tt := range tests {
		t.Run(tt.summary, func(t *testing.T) {
			assert.Equal(t, tt.valid, identity.IsKey(tt.key))
		})
	}
}
