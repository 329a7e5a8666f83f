package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/jmylchreest/lanechime/internal/event"
	"github.com/jmylchreest/lanechime/internal/mixer"
)

// Audio backend names accepted by the audio section.
const (
	BackendOto      = "oto"
	BackendBeep     = "beep"
	BackendHeadless = "headless"
)

// AudioBackends lists every accepted backend name.
func AudioBackends() []string {
	return []string{BackendOto, BackendBeep, BackendHeadless}
}

// Duration is a time.Duration that can be unmarshaled from human-readable strings.
// Supports formats like "100ms", "500ms", "1s", or integer milliseconds.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML parsing.
func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)

	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: must be like '100ms', '1s' or milliseconds: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalText implements encoding.TextMarshaler for TOML output.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// DaemonConfig is the configuration for lanechimed.
// Loaded from ~/.config/lanechime/lanechimed.toml
type DaemonConfig struct {
	Audio  AudioConfig  `toml:"audio"`
	Layout LayoutConfig `toml:"layout"`
	Bus    BusConfig    `toml:"bus"`
	Queue  QueueConfig  `toml:"queue"`
	Log    LogConfig    `toml:"log"`
}

// AudioConfig contains the timeline and transport settings.
type AudioConfig struct {
	Backend        string   `toml:"backend"`         // "oto", "beep", "headless"
	SampleRate     int      `toml:"sample_rate"`     // Hz
	SlotDuration   Duration `toml:"slot_duration"`   // one time window
	BufferDuration Duration `toml:"buffer_duration"` // whole timeline, a multiple of slot_duration
	DefaultVolume  int      `toml:"default_volume"`  // 0-100, applied at startup
	BufferSize     Duration `toml:"buffer_size"`     // device buffer / headless pull period
	RecordPath     string   `toml:"record_path"`     // headless only, empty = no capture
}

// LayoutConfig maps sound categories and time windows onto slot keys.
type LayoutConfig struct {
	Edge    int   `toml:"edge"`
	Lane    int   `toml:"lane"` // shared by left, middle and right
	Error   int   `toml:"error"`
	Windows []int `toml:"windows"` // window -> slot, empty = identity
}

// QueueConfig sizes the bus-to-mixer event queue.
type QueueConfig struct {
	Size int `toml:"size"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `toml:"level"` // "debug", "info", "warn", "error"
}

// DefaultDaemonConfig returns a new DaemonConfig with default values.
func DefaultDaemonConfig() *DaemonConfig {
	return &DaemonConfig{
		Audio: AudioConfig{
			Backend:        BackendOto,
			SampleRate:     mixer.DefaultSampleRate,
			SlotDuration:   Duration(mixer.DefaultSlotDuration),
			BufferDuration: Duration(mixer.DefaultBufferDuration),
			DefaultVolume:  80,
			BufferSize:     Duration(100 * time.Millisecond),
		},
		Layout: LayoutConfig{
			Edge:  1,
			Lane:  2,
			Error: 3,
		},
		Bus: BusConfig{
			Type: DefaultBusType,
			Name: DefaultBusName,
		},
		Queue: QueueConfig{
			Size: event.DefaultQueueSize,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DaemonConfigPath returns the path to the daemon config file.
func DaemonConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "lanechime", "lanechimed.toml"), nil
}

// LoadDaemonConfig loads the daemon configuration from path, or from
// DaemonConfigPath when path is empty.
// If the file doesn't exist, returns the default configuration.
func LoadDaemonConfig(path string) (*DaemonConfig, error) {
	if path == "" {
		var err error
		path, err = DaemonConfigPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get config path: %w", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultDaemonConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults, then overlay with file contents
	config := DefaultDaemonConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// SaveDaemonConfig saves the daemon configuration to path, or to
// DaemonConfigPath when path is empty.
func SaveDaemonConfig(config *DaemonConfig, path string) error {
	if path == "" {
		var err error
		path, err = DaemonConfigPath()
		if err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write atomically via temp file
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return os.Rename(tmpPath, path)
}

// Validate checks if the configuration is valid.
func (c *DaemonConfig) Validate() error {
	if !slices.Contains(AudioBackends(), c.Audio.Backend) {
		return fmt.Errorf("invalid backend %q, must be one of: %v", c.Audio.Backend, AudioBackends())
	}

	timeline := c.Timeline()
	if err := timeline.Validate(); err != nil {
		return fmt.Errorf("invalid timeline: %w", err)
	}
	if err := c.MixerLayout().Validate(timeline.TotalSlots()); err != nil {
		return fmt.Errorf("invalid layout: %w", err)
	}

	if c.Audio.DefaultVolume < 0 || c.Audio.DefaultVolume > 100 {
		return fmt.Errorf("default_volume must be between 0 and 100, got %d", c.Audio.DefaultVolume)
	}
	if c.Audio.BufferSize < 0 {
		return fmt.Errorf("buffer_size cannot be negative, got %s", c.Audio.BufferSize.Duration())
	}
	if c.Audio.RecordPath != "" && c.Audio.Backend != BackendHeadless {
		return fmt.Errorf("record_path requires the %s backend", BackendHeadless)
	}

	if err := c.Bus.Validate(); err != nil {
		return err
	}

	if c.Queue.Size < 1 || c.Queue.Size > 65536 {
		return fmt.Errorf("queue size must be between 1 and 65536, got %d", c.Queue.Size)
	}

	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		return err
	}

	return nil
}

// Timeline returns the mixer timeline described by the audio section.
func (c *DaemonConfig) Timeline() mixer.Timeline {
	return mixer.Timeline{
		SampleRate:     c.Audio.SampleRate,
		SlotDuration:   c.Audio.SlotDuration.Duration(),
		BufferDuration: c.Audio.BufferDuration.Duration(),
	}
}

// MixerLayout returns the category and window mapping of the layout section.
func (c *DaemonConfig) MixerLayout() mixer.Layout {
	l := mixer.Layout{
		Slots: map[mixer.Category]int{
			mixer.CategoryEdgePool:   c.Layout.Edge,
			mixer.CategoryLaneLeft:   c.Layout.Lane,
			mixer.CategoryLaneMiddle: c.Layout.Lane,
			mixer.CategoryLaneRight:  c.Layout.Lane,
			mixer.CategoryError:      c.Layout.Error,
		},
	}
	if len(c.Layout.Windows) > 0 {
		l.Windows = slices.Clone(c.Layout.Windows)
	}
	return l
}

// RecordFile returns the capture path with ~ expanded, or "" when capture is
// off.
func (c *DaemonConfig) RecordFile() string {
	return expandPath(c.Audio.RecordPath)
}

// RequiresRestart reports whether moving from c to next changes settings that
// are only read at startup.
func (c *DaemonConfig) RequiresRestart(next *DaemonConfig) bool {
	return c.Audio.Backend != next.Audio.Backend ||
		c.Audio.SampleRate != next.Audio.SampleRate ||
		c.Audio.SlotDuration != next.Audio.SlotDuration ||
		c.Audio.BufferDuration != next.Audio.BufferDuration ||
		c.Audio.BufferSize != next.Audio.BufferSize ||
		c.Audio.RecordPath != next.Audio.RecordPath ||
		c.Layout.Edge != next.Layout.Edge ||
		c.Layout.Lane != next.Layout.Lane ||
		c.Layout.Error != next.Layout.Error ||
		!slices.Equal(c.Layout.Windows, next.Layout.Windows) ||
		c.Bus != next.Bus ||
		c.Queue != next.Queue
}

// ParseLogLevel converts a level name to a slog.Level.
func ParseLogLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q, must be one of: debug, info, warn, error", name)
	}
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
