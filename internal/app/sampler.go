package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/pscheid92/emofusion/internal/domain"
	"github.com/pscheid92/emofusion/internal/fusion"
	"github.com/pscheid92/emofusion/internal/platform/correlation"
)

const (
	defaultTickInterval = 2 * time.Second
	publishTimeout      = 2 * time.Second
)

// LoopConfig parameterizes one session's sampling loop.
type LoopConfig struct {
	TickInterval       time.Duration
	WindowCapacity     int
	WindowSize         int
	TrendWindows       []int
	Weights            domain.WeightConfig
	DeviationThreshold float64
	Alerts             fusion.AlertConfig
}

func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		TickInterval:       defaultTickInterval,
		WindowCapacity:     fusion.DefaultWindowCapacity,
		WindowSize:         5,
		TrendWindows:       fusion.DefaultTrendWindows,
		Weights:            domain.DefaultWeights(),
		DeviationThreshold: fusion.DefaultDeviationThreshold,
		Alerts:             fusion.DefaultAlertConfig(),
	}
}

// Drop reasons reported to the Recorder.
const (
	DropNoDetection = "no_detection"
	DropInvalid     = "invalid"
	DropError       = "error"
)

// Recorder receives sampling telemetry.
type Recorder interface {
	TickRecorded()
	TickDropped(reason string)
	ProducerFailed(m domain.Modality)
	DeviationObserved(l domain.Label, delta float64)
	AlertRaised(level domain.AlertLevel)
	SessionsActive(n int)
}

type nopRecorder struct{}

func (nopRecorder) TickRecorded()                           {}
func (nopRecorder) TickDropped(string)                      {}
func (nopRecorder) ProducerFailed(domain.Modality)          {}
func (nopRecorder) DeviationObserved(domain.Label, float64) {}
func (nopRecorder) AlertRaised(domain.AlertLevel)           {}
func (nopRecorder) SessionsActive(int)                      {}

// SamplingLoop gathers one ModalitySample per tick, fuses the window and publishes the result.
// The window, the alert monitor and the latest result are guarded by one mutex so readers always
// see a tail that matches the latest result.
type SamplingLoop struct {
	session   uuid.UUID
	producers domain.ModalityProducers
	cfg       LoopConfig
	publisher domain.Publisher
	clock     clockwork.Clock
	recorder  Recorder

	mu     sync.Mutex
	window *fusion.Window
	alerts *fusion.AlertMonitor
	latest *domain.FusionResult
	ticks  uint64
}

// NewSamplingLoop creates a loop. publisher and recorder may be nil.
func NewSamplingLoop(session uuid.UUID, producers domain.ModalityProducers, cfg LoopConfig, publisher domain.Publisher, clock clockwork.Clock, recorder Recorder) *SamplingLoop {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTickInterval
	}
	return &SamplingLoop{
		session:   session,
		producers: producers,
		cfg:       cfg,
		publisher: publisher,
		clock:     clock,
		recorder:  recorder,
		window:    fusion.NewWindow(cfg.WindowCapacity),
		alerts:    fusion.NewAlertMonitor(cfg.Alerts, clock),
	}
}

// Run ticks until ctx is cancelled.
func (l *SamplingLoop) Run(ctx context.Context) {
	ticker := l.clock.NewTicker(l.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			l.Tick(ctx)
		}
	}
}

// Tick runs one sampling cycle and reports whether a sample was recorded.
func (l *SamplingLoop) Tick(ctx context.Context) bool {
	tickCtx := correlation.WithID(ctx, correlation.NewID())

	sample, err := l.gather(tickCtx)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		l.drop(tickCtx, err)
		return false
	}

	update, alert := l.record(sample)
	l.recorder.TickRecorded()
	for _, d := range update.Significant {
		l.recorder.DeviationObserved(d.Label, d.Delta)
	}

	slog.DebugContext(tickCtx, "Sampler: tick recorded",
		"session", l.session.String(),
		"tick", update.Tick,
		"dominant", update.Result.Dominant.String(),
		"significant", len(update.Significant))

	l.publish(tickCtx, update, alert)
	return true
}

func (l *SamplingLoop) gather(ctx context.Context) (domain.ModalitySample, error) {
	var vectors [len(domain.Modalities)]domain.EmotionVector

	g, gctx := errgroup.WithContext(ctx)
	for i, m := range domain.Modalities {
		producer := l.producers.Of(m)
		g.Go(func() error {
			if producer == nil {
				return fmt.Errorf("%s: %w", m, domain.ErrNoDetection)
			}
			v, err := producer.Produce(gctx)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					l.recorder.ProducerFailed(m)
				}
				return fmt.Errorf("%s: %w", m, err)
			}
			if err := domain.ValidateVector(v); err != nil {
				l.recorder.ProducerFailed(m)
				return fmt.Errorf("%s: %w", m, err)
			}
			vectors[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.ModalitySample{}, err
	}

	return domain.ModalitySample{
		At:    l.clock.Now(),
		Face:  vectors[domain.Face],
		Voice: vectors[domain.Voice],
		Text:  vectors[domain.Text],
	}, nil
}

func (l *SamplingLoop) drop(ctx context.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNoDetection):
		l.recorder.TickDropped(DropNoDetection)
		slog.DebugContext(ctx, "Sampler: tick dropped", "session", l.session.String(), "reason", err)
	case errors.Is(err, domain.ErrInvalidVector):
		l.recorder.TickDropped(DropInvalid)
		slog.WarnContext(ctx, "Sampler: producer returned invalid vector", "session", l.session.String(), "error", err)
	default:
		l.recorder.TickDropped(DropError)
		slog.WarnContext(ctx, "Sampler: producer failed", "session", l.session.String(), "error", err)
	}
}

func (l *SamplingLoop) record(sample domain.ModalitySample) (domain.FusionUpdate, *domain.Alert) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.window.Append(sample)
	l.ticks++

	result, _ := fusion.Compute(l.window, l.cfg.WindowSize, l.cfg.Weights)
	l.latest = &result

	l.alerts.Observe(domain.EmotionVector{
		Timestamp:  sample.At,
		Confidence: fusedConfidence(sample, l.cfg.Weights),
		Emotions:   result.CombinedEmotions,
	})

	update := domain.FusionUpdate{
		Type:        "fusion",
		Session:     l.session,
		Tick:        l.ticks,
		At:          sample.At,
		Result:      result,
		Trend:       fusion.Analyze(l.window, l.cfg.TrendWindows, l.cfg.Weights),
		Significant: fusion.Significant(result.Deviations, l.cfg.DeviationThreshold),
	}
	return update, l.alerts.Evaluate()
}

func (l *SamplingLoop) publish(ctx context.Context, update domain.FusionUpdate, alert *domain.Alert) {
	if alert != nil {
		l.recorder.AlertRaised(alert.Level)
		slog.InfoContext(ctx, "Sampler: alert raised", "session", l.session.String(), "level", alert.Level, "label", alert.Label.String(), "mean", alert.Mean)
	}
	if l.publisher == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := l.publisher.PublishFusion(ctx, update); err != nil {
		slog.WarnContext(ctx, "Sampler: publish failed", "session", l.session.String(), "error", err)
	}
	if alert != nil {
		if err := l.publisher.PublishAlert(ctx, l.session, *alert); err != nil {
			slog.WarnContext(ctx, "Sampler: alert publish failed", "session", l.session.String(), "error", err)
		}
	}
}

// Latest returns the result of the most recent recorded tick.
func (l *SamplingLoop) Latest() (domain.FusionResult, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.latest == nil {
		return domain.FusionResult{}, false
	}
	return *l.latest, true
}

// Trend fuses the current window at each of sizes.
func (l *SamplingLoop) Trend(sizes []int) []domain.TrendPoint {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fusion.Analyze(l.window, sizes, l.cfg.Weights)
}

// History copies the newest n samples, oldest first.
func (l *SamplingLoop) History(n int) []domain.ModalitySample {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.window.Tail(n)
}

func fusedConfidence(s domain.ModalitySample, w domain.WeightConfig) float64 {
	w = w.Normalized()
	c := 0.0
	for _, m := range domain.Modalities {
		c += w.Of(m) * s.Of(m).Confidence
	}
	return min(max(c, 0), 1)
}
