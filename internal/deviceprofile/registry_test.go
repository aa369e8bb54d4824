package deviceprofile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const override = `profiles:
  - name: native
    max_streaming_bitrate: 8000000
    subtitles:
      - {format: srt, method: External}
  - name: tv
    max_streaming_bitrate: 4000000
`

func TestBuiltinProfiles(t *testing.T) {
	r, err := NewRegistry("")
	require.NoError(t, err)

	assert.Equal(t, []string{Cast, Download, Native}, r.Names())

	native, err := r.Get(Native)
	require.NoError(t, err)
	assert.True(t, native.SupportsSubtitle("pgssub", "Encode"))
	assert.NotEmpty(t, native.TranscodingProfiles)

	_, err = r.Get("fridge")
	assert.ErrorIs(t, err, ErrUnknownProfile)
}

func TestOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(override), 0o644))

	r, err := NewRegistry(path)
	require.NoError(t, err)

	native, err := r.Get(Native)
	require.NoError(t, err)
	assert.EqualValues(t, 8_000_000, native.MaxStreamingBitrate)
	assert.False(t, native.SupportsSubtitle("pgssub", "Encode"))

	_, err = r.Get("tv")
	assert.NoError(t, err)
	_, err = r.Get(Cast)
	assert.NoError(t, err, "built-ins without an override stay available")
}

func TestReloadKeepsPreviousOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(override), 0o644))

	r, err := NewRegistry(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("profiles: [{max_streaming_bitrate: 1}]"), 0o644))
	assert.Error(t, r.Reload())

	_, err = r.Get("tv")
	assert.NoError(t, err)
}

func TestWatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(override), 0o644))

	r, err := NewRegistry(path)
	require.NoError(t, err)
	require.NoError(t, r.Watch(context.Background()))
	t.Cleanup(func() { _ = r.Close() })

	updated := `profiles:
  - name: car
    max_streaming_bitrate: 2000000
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	assert.Eventually(t, func() bool {
		_, err := r.Get("car")
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWithMaxBitrate(t *testing.T) {
	p := Profile{MaxStreamingBitrate: 10_000_000}

	assert.EqualValues(t, 4_000_000, p.WithMaxBitrate(4_000_000).MaxStreamingBitrate)
	assert.EqualValues(t, 10_000_000, p.WithMaxBitrate(40_000_000).MaxStreamingBitrate)
	assert.EqualValues(t, 10_000_000, p.WithMaxBitrate(0).MaxStreamingBitrate)
}
