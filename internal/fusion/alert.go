package fusion

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/emofusion/internal/domain"
)

// AlertConfig tunes sustained-emotion detection.
type AlertConfig struct {
	Keep           time.Duration `yaml:"keep"`
	MinSpan        time.Duration `yaml:"minSpan"`
	AngryThreshold float64       `yaml:"angryThreshold"`
	SadThreshold   float64       `yaml:"sadThreshold"`
	Cooldown       time.Duration `yaml:"cooldown"`
}

func DefaultAlertConfig() AlertConfig {
	return AlertConfig{
		Keep:           5 * time.Second,
		MinSpan:        3 * time.Second,
		AngryThreshold: 0.8,
		SadThreshold:   0.7,
		Cooldown:       5 * time.Second,
	}
}

// Validate rejects horizons that can never fire.
func (c AlertConfig) Validate() error {
	if c.Keep <= 0 {
		return fmt.Errorf("alert keep duration must be positive, got %s", c.Keep)
	}
	if c.MinSpan < 0 || c.MinSpan > c.Keep {
		return fmt.Errorf("alert min span %s must be within [0, %s]", c.MinSpan, c.Keep)
	}
	if c.Cooldown < 0 {
		return fmt.Errorf("alert cooldown must not be negative, got %s", c.Cooldown)
	}
	return nil
}

// AlertMonitor watches fused readings for a sustained high angry or sad mean.
// Not safe for concurrent use.
type AlertMonitor struct {
	cfg     AlertConfig
	clock   clockwork.Clock
	history []domain.EmotionVector
	firedAt map[domain.AlertLevel]time.Time
}

func NewAlertMonitor(cfg AlertConfig, clock clockwork.Clock) *AlertMonitor {
	return &AlertMonitor{cfg: cfg, clock: clock, firedAt: make(map[domain.AlertLevel]time.Time)}
}

// Observe records v and forgets readings older than Keep relative to v.
func (m *AlertMonitor) Observe(v domain.EmotionVector) {
	cutoff := v.Timestamp.Add(-m.cfg.Keep)
	kept := m.history[:0]
	for _, h := range m.history {
		if !h.Timestamp.Before(cutoff) {
			kept = append(kept, h)
		}
	}
	m.history = append(kept, v)
}

// Len is the number of readings inside the horizon.
func (m *AlertMonitor) Len() int { return len(m.history) }

// Evaluate returns an alert when the retained readings span at least MinSpan and the mean
// angry (checked first) or sad score reaches its threshold. Each level is suppressed until
// Cooldown has passed since it last fired, whatever fired in between.
func (m *AlertMonitor) Evaluate() *domain.Alert {
	if len(m.history) == 0 {
		return nil
	}
	span := m.history[len(m.history)-1].Timestamp.Sub(m.history[0].Timestamp)
	if span < m.cfg.MinSpan {
		return nil
	}

	var total domain.Scores
	for _, h := range m.history {
		total = total.Add(h.Emotions)
	}
	mean := total.Scale(1 / float64(len(m.history)))

	var alert *domain.Alert
	switch {
	case mean[domain.Angry] >= m.cfg.AngryThreshold:
		alert = m.newAlert(domain.AlertWarning, domain.Angry, mean[domain.Angry], span)
	case mean[domain.Sad] >= m.cfg.SadThreshold:
		alert = m.newAlert(domain.AlertInfo, domain.Sad, mean[domain.Sad], span)
	default:
		return nil
	}

	if last, ok := m.firedAt[alert.Level]; ok && alert.At.Sub(last) < m.cfg.Cooldown {
		return nil
	}
	m.firedAt[alert.Level] = alert.At
	return alert
}

func (m *AlertMonitor) newAlert(level domain.AlertLevel, label domain.Label, mean float64, span time.Duration) *domain.Alert {
	return &domain.Alert{
		Type:    "alert",
		Level:   level,
		Label:   label,
		Mean:    mean,
		Message: fmt.Sprintf("%s has stayed high for %s (mean %.2f)", label, span.Round(time.Second), mean),
		At:      m.clock.Now(),
	}
}

// Reset forgets all readings and the cooldown state.
func (m *AlertMonitor) Reset() {
	m.history = nil
	clear(m.firedAt)
}
