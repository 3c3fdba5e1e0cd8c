package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/emofusion/internal/domain"
	"github.com/pscheid92/emofusion/internal/fusion"
)

const (
	defaultInputMaxAge = 5 * time.Second
	defaultTextMaxAge  = 30 * time.Second
	defaultMaxSessions = 100
	stopTimeout        = 10 * time.Second
)

// ServiceConfig bundles the per-session loop settings and the service-wide limits.
type ServiceConfig struct {
	Loop         LoopConfig
	Coefficients fusion.Coefficients
	InputMaxAge  time.Duration
	TextMaxAge   time.Duration
	MaxSessions  int
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Loop:         DefaultLoopConfig(),
		Coefficients: fusion.DefaultCoefficients(),
		InputMaxAge:  defaultInputMaxAge,
		TextMaxAge:   defaultTextMaxAge,
		MaxSessions:  defaultMaxSessions,
	}
}

type session struct {
	id    uuid.UUID
	loop  *SamplingLoop
	face  *LatestValue
	voice *LatestValue

	// Exactly one of textPush and textUtterance is set.
	textPush      *LatestValue
	textUtterance *TextProducer

	cancel context.CancelFunc
	done   chan struct{}
}

// Service is the application layer. It owns every live session and routes modality input to
// the session's producers.
type Service struct {
	cfg        ServiceConfig
	publisher  domain.Publisher
	classifier TextClassifier
	scorer     *fusion.BlendshapeScorer
	clock      clockwork.Clock
	recorder   Recorder

	mu       sync.Mutex
	sessions map[uuid.UUID]*session
	stopped  bool
}

// NewService creates the application layer service.
// classifier may be nil, in which case text arrives as pushed vectors like voice does.
// publisher and recorder may be nil.
func NewService(cfg ServiceConfig, publisher domain.Publisher, classifier TextClassifier, clock clockwork.Clock, recorder Recorder) *Service {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = defaultMaxSessions
	}
	return &Service{
		cfg:        cfg,
		publisher:  publisher,
		classifier: classifier,
		scorer:     fusion.NewBlendshapeScorer(cfg.Coefficients),
		clock:      clock,
		recorder:   recorder,
		sessions:   make(map[uuid.UUID]*session),
	}
}

// CreateSession starts a new sampling loop and returns its ID.
func (s *Service) CreateSession(ctx context.Context) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return uuid.Nil, fmt.Errorf("service stopped")
	}
	if len(s.sessions) >= s.cfg.MaxSessions {
		return uuid.Nil, fmt.Errorf("%w: limit is %d", domain.ErrTooManySessions, s.cfg.MaxSessions)
	}

	id := uuid.New()
	sess := &session{
		id:    id,
		face:  NewLatestValue(s.clock, s.cfg.InputMaxAge),
		voice: NewLatestValue(s.clock, s.cfg.InputMaxAge),
		done:  make(chan struct{}),
	}

	producers := domain.ModalityProducers{Face: sess.face, Voice: sess.voice}
	if s.classifier != nil {
		sess.textUtterance = NewTextProducer(s.classifier, s.clock, s.cfg.TextMaxAge)
		producers.Text = sess.textUtterance
	} else {
		sess.textPush = NewLatestValue(s.clock, s.cfg.TextMaxAge)
		producers.Text = sess.textPush
	}

	sess.loop = NewSamplingLoop(id, producers, s.cfg.Loop, s.publisher, s.clock, s.recorder)

	// The loop outlives the creating request.
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sess.cancel = cancel
	go func() {
		defer close(sess.done)
		sess.loop.Run(loopCtx)
	}()

	s.sessions[id] = sess
	s.recorder.SessionsActive(len(s.sessions))
	slog.InfoContext(ctx, "Session started", "session", id.String(), "active_sessions", len(s.sessions))
	return id, nil
}

// StopSession cancels the session's loop and waits for it to exit.
func (s *Service) StopSession(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
		s.recorder.SessionsActive(len(s.sessions))
	}
	s.mu.Unlock()

	if !ok {
		return domain.ErrSessionNotFound
	}

	sess.cancel()
	<-sess.done

	if closer, ok := s.publisher.(domain.SessionCloser); ok {
		if err := closer.SessionClosed(ctx, id); err != nil {
			slog.WarnContext(ctx, "Failed to release published session state", "session", id.String(), "error", err)
		}
	}
	slog.InfoContext(ctx, "Session stopped", "session", id.String())
	return nil
}

// HasSession reports whether id names a live session.
func (s *Service) HasSession(id uuid.UUID) bool {
	_, err := s.lookup(id)
	return err == nil
}

// SessionCount returns the number of live sessions.
func (s *Service) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Service) lookup(id uuid.UUID) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return sess, nil
}

// SubmitFace scores a blendshape frame and makes it the session's current face reading.
// A frame without categories clears the face input and returns ErrNoDetection.
func (s *Service) SubmitFace(id uuid.UUID, frame domain.BlendshapeFrame) error {
	sess, err := s.lookup(id)
	if err != nil {
		return err
	}

	if frame.Timestamp.IsZero() {
		frame.Timestamp = s.clock.Now()
	}

	v, err := s.scorer.Vector(frame)
	if err != nil {
		sess.face.Clear()
		return err
	}
	sess.face.Set(v)
	return nil
}

// SubmitVoice makes v the session's current voice reading.
func (s *Service) SubmitVoice(id uuid.UUID, v domain.EmotionVector) error {
	sess, err := s.lookup(id)
	if err != nil {
		return err
	}
	v, err = s.checkVector(v)
	if err != nil {
		return err
	}
	sess.voice.Set(v)
	return nil
}

// SubmitText records an utterance for the text classifier.
// It returns ErrUnsupported when the service has no classifier.
func (s *Service) SubmitText(id uuid.UUID, text string) error {
	sess, err := s.lookup(id)
	if err != nil {
		return err
	}
	if sess.textUtterance == nil {
		return fmt.Errorf("%w: no text classifier configured, submit text vectors instead", domain.ErrUnsupported)
	}
	sess.textUtterance.SetUtterance(strings.TrimSpace(text))
	return nil
}

// SubmitTextVector makes v the session's current text reading.
// It returns ErrUnsupported when text is classified by the service itself.
func (s *Service) SubmitTextVector(id uuid.UUID, v domain.EmotionVector) error {
	sess, err := s.lookup(id)
	if err != nil {
		return err
	}
	if sess.textPush == nil {
		return fmt.Errorf("%w: text is classified server-side, submit utterances instead", domain.ErrUnsupported)
	}
	v, err = s.checkVector(v)
	if err != nil {
		return err
	}
	sess.textPush.Set(v)
	return nil
}

func (s *Service) checkVector(v domain.EmotionVector) (domain.EmotionVector, error) {
	if err := domain.ValidateVector(v); err != nil {
		return domain.EmotionVector{}, err
	}
	if v.Timestamp.IsZero() {
		v.Timestamp = s.clock.Now()
	}
	return v, nil
}

// Latest returns the session's most recent fusion result; false means no tick completed yet.
func (s *Service) Latest(id uuid.UUID) (domain.FusionResult, bool, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return domain.FusionResult{}, false, err
	}
	result, ok := sess.loop.Latest()
	return result, ok, nil
}

// Trend fuses the session's window at each requested size. Empty sizes use the configured trend windows.
func (s *Service) Trend(id uuid.UUID, sizes []int) ([]domain.TrendPoint, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	if len(sizes) == 0 {
		sizes = s.cfg.Loop.TrendWindows
	}
	return sess.loop.Trend(sizes), nil
}

// History returns the newest n samples of the session's window.
func (s *Service) History(id uuid.UUID, n int) ([]domain.ModalitySample, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return sess.loop.History(n), nil
}

// Stop cancels every session and waits for the loops to exit, up to a bounded timeout.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	sessions := make([]*session, 0, len(s.sessions))
	for id, sess := range s.sessions {
		sessions = append(sessions, sess)
		delete(s.sessions, id)
	}
	s.recorder.SessionsActive(0)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.cancel()
	}

	timer := s.clock.NewTimer(stopTimeout)
	defer timer.Stop()
	for _, sess := range sessions {
		select {
		case <-sess.done:
		case <-timer.Chan():
			slog.Warn("Session loops did not stop in time", "timeout", stopTimeout)
			return
		}
	}
	slog.Info("All sessions stopped", "sessions", len(sessions))
}
