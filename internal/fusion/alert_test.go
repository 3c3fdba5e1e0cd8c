package fusion

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/emofusion/internal/domain"
)

func feed(m *AlertMonitor, clock *clockwork.FakeClock, s domain.Scores, n int, every time.Duration) {
	for i := 0; i < n; i++ {
		m.Observe(vec(clock.Now(), s))
		clock.Advance(every)
	}
}

func TestAlertMonitor_NeedsMinimumSpan(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	m := NewAlertMonitor(DefaultAlertConfig(), clock)

	feed(m, clock, scores(0, 0, 1, 0, 0), 3, time.Second)

	assert.Nil(t, m.Evaluate(), "2s of history is below the 3s span")
}

func TestAlertMonitor_SustainedAngerWarns(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	m := NewAlertMonitor(DefaultAlertConfig(), clock)

	feed(m, clock, scores(0, 0.1, 0.9, 0, 0), 5, time.Second)

	alert := m.Evaluate()
	require.NotNil(t, alert)
	assert.Equal(t, "alert", alert.Type)
	assert.Equal(t, domain.AlertWarning, alert.Level)
	assert.Equal(t, domain.Angry, alert.Label)
	assert.InDelta(t, 0.9, alert.Mean, 1e-9)
	assert.Equal(t, clock.Now(), alert.At)
}

func TestAlertMonitor_AngerTakesPrecedenceOverSadness(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	cfg := DefaultAlertConfig()
	cfg.AngryThreshold, cfg.SadThreshold = 0.4, 0.4
	m := NewAlertMonitor(cfg, clock)

	feed(m, clock, scores(0, 0.5, 0.5, 0, 0), 5, time.Second)

	alert := m.Evaluate()
	require.NotNil(t, alert)
	assert.Equal(t, domain.AlertWarning, alert.Level)
}

func TestAlertMonitor_SustainedSadnessInforms(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	m := NewAlertMonitor(DefaultAlertConfig(), clock)

	feed(m, clock, scores(0, 0.8, 0.1, 0, 0.1), 4, time.Second)

	alert := m.Evaluate()
	require.NotNil(t, alert)
	assert.Equal(t, domain.AlertInfo, alert.Level)
	assert.Equal(t, domain.Sad, alert.Label)
}

func TestAlertMonitor_ForgetsReadingsOutsideHorizon(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	m := NewAlertMonitor(DefaultAlertConfig(), clock)

	feed(m, clock, scores(0, 0, 1, 0, 0), 5, time.Second)
	feed(m, clock, scores(0, 0, 0, 0, 1), 6, time.Second)

	assert.Equal(t, 6, m.Len())
	assert.Nil(t, m.Evaluate())
}

func TestAlertMonitor_CooldownSuppressesRepeats(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	m := NewAlertMonitor(DefaultAlertConfig(), clock)
	angry := scores(0, 0, 1, 0, 0)

	feed(m, clock, angry, 4, time.Second)
	require.NotNil(t, m.Evaluate())

	feed(m, clock, angry, 1, time.Second)
	assert.Nil(t, m.Evaluate(), "same level within cooldown")

	feed(m, clock, angry, 5, time.Second)
	assert.NotNil(t, m.Evaluate(), "cooldown elapsed")
}

func TestAlertMonitor_CooldownIsPerLevel(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	cfg := DefaultAlertConfig()
	cfg.Keep, cfg.MinSpan, cfg.Cooldown = 2*time.Second, time.Second, 30*time.Second
	m := NewAlertMonitor(cfg, clock)
	angry, sad := scores(0, 0, 1, 0, 0), scores(0, 1, 0, 0, 0)

	feed(m, clock, angry, 3, time.Second)
	first := m.Evaluate()
	require.NotNil(t, first)
	assert.Equal(t, domain.AlertWarning, first.Level)

	feed(m, clock, sad, 3, time.Second)
	between := m.Evaluate()
	require.NotNil(t, between, "a different level is not held back by the warning cooldown")
	assert.Equal(t, domain.AlertInfo, between.Level)

	feed(m, clock, angry, 3, time.Second)
	assert.Nil(t, m.Evaluate(), "warning is still cooling down after an info in between")

	m.Reset()
	feed(m, clock, angry, 3, time.Second)
	assert.NotNil(t, m.Evaluate(), "reset clears cooldowns")
}

func TestAlertConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultAlertConfig().Validate())

	cfg := DefaultAlertConfig()
	cfg.MinSpan = 10 * time.Second
	assert.Error(t, cfg.Validate())

	cfg = DefaultAlertConfig()
	cfg.Keep = 0
	assert.Error(t, cfg.Validate())
}
