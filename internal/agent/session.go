package agent

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prepvoice/prepvoice/internal/feedback"
	"github.com/prepvoice/prepvoice/internal/models"
	"github.com/prepvoice/prepvoice/internal/voice"
	"github.com/prepvoice/prepvoice/pkg/logger"
	"github.com/prepvoice/prepvoice/pkg/metrics"
)

// Status of a call session.
type Status string

const (
	StatusInactive   Status = "INACTIVE"
	StatusConnecting Status = "CONNECTING"
	StatusActive     Status = "ACTIVE"
	StatusFinished   Status = "FINISHED"
)

// Mode selects what the voice gateway runs for a session.
type Mode string

const (
	ModeInterview Mode = "interview"
	ModeGenerate  Mode = "generate"
)

// Call is the slice of the voice client a session needs.
type Call interface {
	ID() string
	Events() <-chan voice.Event
	Stop() error
	Close() error
	Err() error
}

// CallStarter opens calls against the voice gateway.
type CallStarter interface {
	Start(ctx context.Context, cfg voice.CallConfig) (Call, error)
}

// FeedbackCreator scores a finished interview transcript.
type FeedbackCreator interface {
	CreateFromTranscript(ctx context.Context, req feedback.CreateRequest) (*models.Feedback, error)
}

// TranscriptArchiver stores the raw transcript of a finished call.
type TranscriptArchiver interface {
	ArchiveTranscript(ctx context.Context, callID string, transcript []models.TranscriptMessage) (string, error)
}

// Update is one lifecycle notification streamed to session watchers.
type Update struct {
	CallID   string                    `json:"callId"`
	Status   Status                    `json:"status"`
	Speaking bool                      `json:"speaking"`
	Message  *models.TranscriptMessage `json:"message,omitempty"`
	Error    string                    `json:"error,omitempty"`
}

// Snapshot is the observable state of a session at one point in time.
type Snapshot struct {
	CallID      string                     `json:"callId"`
	Mode        Mode                       `json:"mode"`
	InterviewID string                     `json:"interviewId,omitempty"`
	UserID      string                     `json:"userId"`
	Status      Status                     `json:"status"`
	Speaking    bool                       `json:"speaking"`
	Transcript  []models.TranscriptMessage `json:"transcript"`
	FeedbackID  string                     `json:"feedbackId,omitempty"`
	Error       string                     `json:"error,omitempty"`
}

// Session drives one voice call: it consumes gateway events, accumulates
// the final transcript lines and, for interview calls, forwards the
// transcript to feedback scoring when the call ends.
type Session struct {
	ID          string
	Mode        Mode
	InterviewID string
	UserID      string

	call      Call
	cancel    context.CancelFunc
	done      chan struct{}
	stopGrace time.Duration

	feedback FeedbackCreator
	archiver TranscriptArchiver

	mu         sync.RWMutex
	status     Status
	speaking   bool
	transcript []models.TranscriptMessage
	feedbackID string
	lastErr    error
	endedAt    time.Time

	notifyMu        sync.Mutex
	listeners       map[chan Update]struct{}
	listenersClosed bool
}

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Done is closed when the session's run loop has finished.
func (s *Session) Done() <-chan struct{} { return s.done }

// Snapshot returns a copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		CallID:      s.ID,
		Mode:        s.Mode,
		InterviewID: s.InterviewID,
		UserID:      s.UserID,
		Status:      s.status,
		Speaking:    s.speaking,
		Transcript:  append([]models.TranscriptMessage(nil), s.transcript...),
		FeedbackID:  s.feedbackID,
	}
	if s.lastErr != nil {
		snap.Error = s.lastErr.Error()
	}
	return snap
}

// Stop requests a graceful stop; the gateway answers with call-end. If the
// control frame cannot be sent the connection is torn down instead.
func (s *Session) Stop() error {
	if err := s.call.Stop(); err != nil {
		return s.call.Close()
	}
	return nil
}

// Subscribe registers a watcher for lifecycle updates. The returned func
// unsubscribes; the channel is closed when the session ends.
func (s *Session) Subscribe() (<-chan Update, func()) {
	ch := make(chan Update, 16)
	s.notifyMu.Lock()
	if s.listenersClosed {
		// session already over; hand back a closed channel
		s.notifyMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	if s.listeners == nil {
		s.listeners = make(map[chan Update]struct{})
	}
	s.listeners[ch] = struct{}{}
	s.notifyMu.Unlock()

	unsubscribe := func() {
		s.notifyMu.Lock()
		defer s.notifyMu.Unlock()
		if _, ok := s.listeners[ch]; ok {
			delete(s.listeners, ch)
			close(ch)
		}
	}
	return ch, unsubscribe
}

func (s *Session) broadcast(u Update) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	for ch := range s.listeners {
		select {
		case ch <- u:
		default:
			// slow watcher; drop rather than stall the session
		}
	}
}

func (s *Session) closeListeners() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.listenersClosed = true
	for ch := range s.listeners {
		delete(s.listeners, ch)
		close(ch)
	}
}

func (s *Session) update() Update {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u := Update{CallID: s.ID, Status: s.status, Speaking: s.speaking}
	if s.lastErr != nil {
		u.Error = s.lastErr.Error()
	}
	return u
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	defer s.cancel()
	defer s.closeListeners()
	defer metrics.ActiveCalls.Dec()
	defer func() {
		s.mu.Lock()
		s.endedAt = time.Now()
		s.mu.Unlock()
	}()

	events := s.call.Events()
	for {
		select {
		case <-ctx.Done():
			s.stopAndDrain(events)
			return
		case event, ok := <-events:
			if !ok {
				if err := s.call.Err(); err != nil {
					s.fail(err)
				} else {
					s.finish("connection-closed")
				}
				return
			}
			s.handle(event)
			if st := s.Status(); st == StatusFinished || st == StatusInactive {
				_ = s.call.Close()
				return
			}
		}
	}
}

// stopAndDrain handles the max-duration cutoff: request a graceful stop and
// keep consuming events for a short grace period so a call-end from the
// gateway still finishes the session normally.
func (s *Session) stopAndDrain(events <-chan voice.Event) {
	logger.Warnf("call %s reached max duration, stopping", s.ID)
	_ = s.call.Stop()

	grace := s.stopGrace
	if grace <= 0 {
		grace = 5 * time.Second
	}
	timer := time.NewTimer(grace)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			_ = s.call.Close()
			s.finish("max-duration")
			return
		case event, ok := <-events:
			if !ok {
				s.finish("max-duration")
				return
			}
			s.handle(event)
			if s.Status() == StatusFinished {
				_ = s.call.Close()
				return
			}
		}
	}
}

func (s *Session) handle(event voice.Event) {
	switch e := event.(type) {
	case voice.CallStartEvent:
		s.setStatus(StatusActive)
	case voice.SpeechStartEvent:
		s.setSpeaking(true)
	case voice.SpeechEndEvent:
		s.setSpeaking(false)
	case voice.MessageEvent:
		if e.Message.TranscriptFinal() {
			s.appendTranscript(models.TranscriptMessage{Role: e.Message.Role, Content: e.Message.Transcript})
		}
	case voice.ErrorEvent:
		logger.Errorf("call %s gateway error: %s", s.ID, e.Message)
		s.fail(errors.New(e.Message))
	case voice.CallEndEvent:
		s.finish(e.Reason)
	}
}

func (s *Session) setStatus(st Status) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
	s.broadcast(s.update())
}

func (s *Session) setSpeaking(v bool) {
	s.mu.Lock()
	s.speaking = v
	s.mu.Unlock()
	s.broadcast(s.update())
}

func (s *Session) appendTranscript(m models.TranscriptMessage) {
	s.mu.Lock()
	s.transcript = append(s.transcript, m)
	status, speaking := s.status, s.speaking
	s.mu.Unlock()
	s.broadcast(Update{CallID: s.ID, Status: status, Speaking: speaking, Message: &m})
}

// fail logs the error and resets the session to inactive, mirroring a
// client dropping back to its idle call screen.
func (s *Session) fail(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.status = StatusInactive
	s.speaking = false
	s.mu.Unlock()
	metrics.CallsFailed.Inc()
	s.broadcast(s.update())
}

func (s *Session) finish(reason string) {
	s.mu.Lock()
	if s.status == StatusFinished {
		s.mu.Unlock()
		return
	}
	s.status = StatusFinished
	s.speaking = false
	transcript := append([]models.TranscriptMessage(nil), s.transcript...)
	s.mu.Unlock()

	metrics.CallsFinished.WithLabelValues(normalizeEndReason(reason)).Inc()
	logger.Infof("call %s finished (%s), %d transcript lines", s.ID, reason, len(transcript))

	// the call context is gone by now; finishing work gets its own budget
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if s.archiver != nil && len(transcript) > 0 {
		if _, err := s.archiver.ArchiveTranscript(ctx, s.ID, transcript); err != nil {
			logger.Warnf("call %s transcript archive failed: %v", s.ID, err)
		}
	}

	if s.Mode == ModeInterview && s.feedback != nil && len(transcript) > 0 {
		fb, err := s.feedback.CreateFromTranscript(ctx, feedback.CreateRequest{
			InterviewID: s.InterviewID,
			UserID:      s.UserID,
			Transcript:  transcript,
		})
		if err != nil {
			logger.Errorf("call %s feedback creation failed: %v", s.ID, err)
			s.mu.Lock()
			s.lastErr = err
			s.mu.Unlock()
		} else {
			s.mu.Lock()
			s.feedbackID = fb.ID
			s.mu.Unlock()
		}
	}

	s.broadcast(s.update())
}

func normalizeEndReason(reason string) string {
	switch reason {
	case "hangup", "assistant-ended-call", "max-duration", "connection-closed":
		return reason
	default:
		return "other"
	}
}
