package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/lanechime/internal/mixer"
)

func TestDuration_UnmarshalText(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"100ms", 100 * time.Millisecond, false},
		{"1s", time.Second, false},
		{"250", 250 * time.Millisecond, false},
		{"0", 0, false},
		{"soon", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var d Duration
			err := d.UnmarshalText([]byte(tt.in))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Duration())
		})
	}
}

func TestDefaultDaemonConfig(t *testing.T) {
	cfg := DefaultDaemonConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, BackendOto, cfg.Audio.Backend)
	assert.Equal(t, 80, cfg.Audio.DefaultVolume)
	assert.Equal(t, 128, cfg.Queue.Size)
	assert.Equal(t, mixer.DefaultTimeline(), cfg.Timeline())

	layout := cfg.MixerLayout()
	assert.Equal(t, mixer.DefaultLayout(), layout)
	assert.Nil(t, layout.Windows)
}

func TestLoadDaemonConfig_DefaultsWhenNoFile(t *testing.T) {
	cfg, err := LoadDaemonConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultDaemonConfig(), cfg)
}

func TestLoadDaemonConfig_ParsesTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lanechimed.toml")
	content := `
[audio]
backend = "headless"
sample_rate = 8000
slot_duration = "50ms"
buffer_duration = "400ms"
default_volume = 60
buffer_size = "20"
record_path = "/tmp/capture.wav"

[layout]
edge = 0
lane = 4
error = 7
windows = [0, 1, 2, 3, 4, 5, 6, 7]

[queue]
size = 16

[log]
level = "debug"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadDaemonConfig(path)
	require.NoError(t, err)

	tl := cfg.Timeline()
	assert.Equal(t, 400, tl.FramesPerSlot())
	assert.Equal(t, 8, tl.TotalSlots())
	assert.Equal(t, 20*time.Millisecond, cfg.Audio.BufferSize.Duration())

	layout := cfg.MixerLayout()
	assert.Equal(t, 0, layout.SlotFor(mixer.CategoryEdgePool))
	assert.Equal(t, 4, layout.SlotFor(mixer.CategoryLaneMiddle))
	assert.Equal(t, 7, layout.SlotFor(mixer.CategoryError))
	assert.Len(t, layout.Windows, 8)

	assert.Equal(t, BackendHeadless, cfg.Audio.Backend)
	assert.Equal(t, 60, cfg.Audio.DefaultVolume)
	assert.Equal(t, "/tmp/capture.wav", cfg.RecordFile())

	level, err := ParseLogLevel(cfg.Log.Level)
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestDaemonConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *DaemonConfig)
	}{
		{"unknown backend", func(c *DaemonConfig) { c.Audio.Backend = "alsa" }},
		{"zero sample rate", func(c *DaemonConfig) { c.Audio.SampleRate = 0 }},
		{"buffer not multiple of slot", func(c *DaemonConfig) { c.Audio.BufferDuration = Duration(450 * time.Millisecond) }},
		{"slot has no frames", func(c *DaemonConfig) { c.Audio.SampleRate = 5 }},
		{"volume too high", func(c *DaemonConfig) { c.Audio.DefaultVolume = 101 }},
		{"negative buffer size", func(c *DaemonConfig) { c.Audio.BufferSize = Duration(-1) }},
		{"record without headless", func(c *DaemonConfig) { c.Audio.RecordPath = "/tmp/x.wav" }},
		{"lane slot out of range", func(c *DaemonConfig) { c.Layout.Lane = 5 }},
		{"window map wrong length", func(c *DaemonConfig) { c.Layout.Windows = []int{0, 1} }},
		{"bad bus type", func(c *DaemonConfig) { c.Bus.Type = "tcp" }},
		{"empty queue", func(c *DaemonConfig) { c.Queue.Size = 0 }},
		{"bad log level", func(c *DaemonConfig) { c.Log.Level = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultDaemonConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveDaemonConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lanechime", "lanechimed.toml")

	cfg := DefaultDaemonConfig()
	cfg.Audio.Backend = BackendHeadless
	cfg.Layout.Windows = []int{1, 1, 2, 2, 3}
	require.NoError(t, SaveDaemonConfig(cfg, path))

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	loaded, err := LoadDaemonConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestDaemonConfig_RequiresRestart(t *testing.T) {
	base := DefaultDaemonConfig()

	next := DefaultDaemonConfig()
	next.Log.Level = "debug"
	next.Audio.DefaultVolume = 20
	assert.False(t, base.RequiresRestart(next))

	next = DefaultDaemonConfig()
	next.Audio.SlotDuration = Duration(50 * time.Millisecond)
	assert.True(t, base.RequiresRestart(next))

	next = DefaultDaemonConfig()
	next.Layout.Windows = []int{0, 1, 2, 3, 4}
	assert.True(t, base.RequiresRestart(next))
}

func TestParseLogLevel(t *testing.T) {
	for name, want := range map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	} {
		got, err := ParseLogLevel(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
}
