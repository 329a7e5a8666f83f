package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// AlertLevel indicates the severity of an internal alert.
type AlertLevel int

const (
	// AlertLevelInfo is for informational messages.
	AlertLevelInfo AlertLevel = iota
	// AlertLevelWarning is for recoverable problems.
	AlertLevelWarning
	// AlertLevelError is for failures needing attention.
	AlertLevelError
)

// String returns the level name.
func (l AlertLevel) String() string {
	switch l {
	case AlertLevelInfo:
		return "info"
	case AlertLevelWarning:
		return "warning"
	case AlertLevelError:
		return "error"
	default:
		return "unknown"
	}
}

// Alert is one internal daemon event worth surfacing.
type Alert struct {
	Key     string
	Summary string
	Body    string
	Level   AlertLevel
}

// Alerter reports internal daemon events with per-key rate limiting, so a
// controller retrying every 500ms against a dropped sink produces one line,
// not hundreds.
type Alerter struct {
	mu     sync.Mutex
	logger *slog.Logger

	handler func(Alert)

	lastNotifyTime map[string]time.Time
	minInterval    time.Duration

	enabled bool
}

// NewAlerter creates an Alerter that logs alerts until SetHandler is called.
func NewAlerter(logger *slog.Logger) *Alerter {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Alerter{
		logger:         logger,
		lastNotifyTime: make(map[string]time.Time),
		minInterval:    5 * time.Second,
		enabled:        true,
	}
	a.handler = a.logAlert
	return a
}

// SetHandler replaces the alert handler.
func (a *Alerter) SetHandler(handler func(Alert)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handler = handler
}

// SetEnabled enables or disables alerts.
func (a *Alerter) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}

// SetMinInterval sets the minimum interval between alerts with the same key.
func (a *Alerter) SetMinInterval(interval time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.minInterval = interval
}

// Notify raises an alert unless one with the same key was raised within the
// minimum interval. It reports whether the alert was delivered.
func (a *Alerter) Notify(key, summary, body string, level AlertLevel) bool {
	a.mu.Lock()
	if !a.enabled || a.handler == nil {
		a.mu.Unlock()
		return false
	}
	if lastTime, ok := a.lastNotifyTime[key]; ok && time.Since(lastTime) < a.minInterval {
		a.mu.Unlock()
		a.logger.Debug("alert rate-limited", "key", key, "summary", summary)
		return false
	}
	a.lastNotifyTime[key] = time.Now()
	handler := a.handler
	a.mu.Unlock()

	handler(Alert{Key: key, Summary: summary, Body: body, Level: level})
	return true
}

func (a *Alerter) logAlert(alert Alert) {
	level := slog.LevelInfo
	switch alert.Level {
	case AlertLevelWarning:
		level = slog.LevelWarn
	case AlertLevelError:
		level = slog.LevelError
	}
	a.logger.Log(context.Background(), level, alert.Summary, "key", alert.Key, "detail", alert.Body)
}

// NotifyStartup reports that the daemon is running.
func (a *Alerter) NotifyStartup(version, backend string) {
	a.Notify("startup", "lanechimed started", "version "+version+", backend "+backend, AlertLevelInfo)
}

// NotifyConfigReloaded reports a successful config reload.
func (a *Alerter) NotifyConfigReloaded() {
	a.Notify("config-reload", "configuration reloaded", "", AlertLevelInfo)
}

// NotifyConfigError reports a config reload that failed validation.
func (a *Alerter) NotifyConfigError(err error) {
	a.Notify("config-error", "configuration reload failed", err.Error(), AlertLevelWarning)
}

// NotifyRestartRequired reports config changes that only apply at startup.
func (a *Alerter) NotifyRestartRequired() {
	a.Notify("config-restart", "configuration change requires restart",
		"audio timeline, layout, bus or queue settings changed", AlertLevelWarning)
}

// NotifyConnectionLost reports that the audio sink dropped.
func (a *Alerter) NotifyConnectionLost(backend string) {
	a.Notify("connection-lost", "audio sink disconnected", "backend "+backend, AlertLevelWarning)
}

// NotifyStaleEvent reports a queued play request that arrived after the sink
// disconnected.
func (a *Alerter) NotifyStaleEvent(id string) {
	a.Notify("stale-event", "ignoring play request for disconnected sink", "event "+id, AlertLevelInfo)
}

// NotifyApplyError reports a selection the mixer could not apply.
func (a *Alerter) NotifyApplyError(err error) {
	a.Notify("apply-error", "failed to apply sound selection", err.Error(), AlertLevelError)
}
