package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/emofusion/internal/domain"
)

func writeProfile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 2*time.Second, cfg.TickInterval)
	assert.Equal(t, 50, cfg.WindowCapacity)
	assert.Equal(t, 100, cfg.MaxSessions)
	assert.Equal(t, 1000, cfg.MaxStreamConnections)
	assert.Equal(t, 10, cfg.MaxStreamConnectionsPerIP)
	assert.Empty(t, cfg.RedisURL)

	fs, err := cfg.Fusion()
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultWeights(), fs.Weights)
	assert.Equal(t, 5, fs.WindowSize)
	assert.Equal(t, []int{5, 10, 30}, fs.TrendWindows)
	assert.Equal(t, 0.05, fs.DeviationThreshold)
	assert.Equal(t, 1.2, fs.Coefficients.Smile)
	assert.Equal(t, 5*time.Second, fs.Alerts.Keep)
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("APP_ENV", "production")
	t.Setenv("TICK_INTERVAL", "500ms")
	t.Setenv("WEIGHT_FACE", "1")
	t.Setenv("WEIGHT_VOICE", "0")
	t.Setenv("WEIGHT_TEXT", "0")
	t.Setenv("TREND_WINDOWS", " 3, 6 ")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 500*time.Millisecond, cfg.TickInterval)

	fs, err := cfg.Fusion()
	require.NoError(t, err)
	assert.Equal(t, domain.WeightConfig{Face: 1}, fs.Weights)
	assert.Equal(t, []int{3, 6}, fs.TrendWindows)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"zero tick", "TICK_INTERVAL", "0s"},
		{"zero capacity", "WINDOW_CAPACITY", "0"},
		{"negative weight", "WEIGHT_VOICE", "-0.1"},
		{"window above capacity", "FUSION_WINDOW_SIZE", "51"},
		{"bad trend list", "TREND_WINDOWS", "5,x"},
		{"trend above capacity", "TREND_WINDOWS", "5,100"},
		{"negative threshold", "DEVIATION_THRESHOLD", "-1"},
		{"no sessions", "MAX_SESSIONS", "0"},
		{"no stream connections", "MAX_STREAM_CONNECTIONS", "0"},
		{"no stream connections per ip", "MAX_STREAM_CONNECTIONS_PER_IP", "0"},
		{"missing profile", "FUSION_PROFILE", "/does/not/exist.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_ZeroWeightSumIsFatal(t *testing.T) {
	t.Setenv("WEIGHT_FACE", "0")
	t.Setenv("WEIGHT_VOICE", "0")
	t.Setenv("WEIGHT_TEXT", "0")

	_, err := Load()
	assert.ErrorIs(t, err, domain.ErrInvalidWeights)
}

func TestFusion_ProfileOverridesEnvironment(t *testing.T) {
	t.Setenv("FUSION_PROFILE", writeProfile(t, `
weights:
  face: 0.5
  voice: 0.25
  text: 0.25
windowSize: 10
trendWindows: [2, 4]
deviationThreshold: 0.1
alerts:
  angryThreshold: 0.9
  keep: 8s
blendshape:
  smile: 1.5
`))

	cfg, err := Load()
	require.NoError(t, err)
	fs, err := cfg.Fusion()
	require.NoError(t, err)

	assert.Equal(t, domain.WeightConfig{Face: 0.5, Voice: 0.25, Text: 0.25}, fs.Weights)
	assert.Equal(t, 10, fs.WindowSize)
	assert.Equal(t, []int{2, 4}, fs.TrendWindows)
	assert.Equal(t, 0.1, fs.DeviationThreshold)
	assert.Equal(t, 0.9, fs.Alerts.AngryThreshold)
	assert.Equal(t, 8*time.Second, fs.Alerts.Keep)
	assert.Equal(t, 0.7, fs.Alerts.SadThreshold, "unset alert fields keep defaults")
	assert.Equal(t, 1.5, fs.Coefficients.Smile)
	assert.Equal(t, 1.1, fs.Coefficients.Frown, "unset coefficients keep defaults")
}

func TestFusion_ProfileWeightKeys(t *testing.T) {
	tests := []struct {
		name    string
		profile string
		wantErr string
	}{
		{"missing text", "weights:\n  face: 0.5\n  voice: 0.5\n", "missing text weight"},
		{"unknown key", "weights:\n  face: 0.5\n  voice: 0.3\n  text: 0.2\n  touch: 0.1\n", `unknown modality "touch"`},
		{"malformed yaml", "weights: [1, 2", "parse profile"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("FUSION_PROFILE", writeProfile(t, tt.profile))
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseWindows(t *testing.T) {
	got, err := ParseWindows("5,10,,30")
	require.NoError(t, err)
	assert.Equal(t, []int{5, 10, 30}, got)

	_, err = ParseWindows("")
	assert.Error(t, err)

	_, err = ParseWindows("0")
	assert.Error(t, err)
}
