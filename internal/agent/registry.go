package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/prepvoice/prepvoice/internal/models"
	"github.com/prepvoice/prepvoice/internal/voice"
	"github.com/prepvoice/prepvoice/pkg/metrics"
)

const (
	defaultMaxCallDuration = 30 * time.Minute
	endedSessionRetention  = time.Hour
)

var ErrNotFound = errors.New("call not found")

// Options configures the sessions a registry creates.
type Options struct {
	// AssistantID runs interview calls, WorkflowID runs generation calls.
	AssistantID string
	WorkflowID  string

	// MaxCallDuration hard-stops calls that run too long.
	MaxCallDuration time.Duration

	// StopGrace bounds how long a stopped call may wait for the gateway's
	// call-end before the connection is torn down.
	StopGrace time.Duration
}

// Registry owns the live call sessions of this process.
type Registry struct {
	starter  CallStarter
	feedback FeedbackCreator
	archiver TranscriptArchiver
	opts     Options

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry(starter CallStarter, fc FeedbackCreator, ar TranscriptArchiver, opts Options) *Registry {
	if opts.MaxCallDuration <= 0 {
		opts.MaxCallDuration = defaultMaxCallDuration
	}
	return &Registry{
		starter:  starter,
		feedback: fc,
		archiver: ar,
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

// StartInterview opens an interview call for the given interview. The
// question list is injected into the assistant as a variable, one
// "- question" line per question.
func (r *Registry) StartInterview(ctx context.Context, iv *models.Interview, userID, userName string) (*Session, error) {
	if r.opts.AssistantID == "" {
		return nil, errors.New("no interview assistant configured")
	}
	cfg := voice.CallConfig{
		AssistantID: r.opts.AssistantID,
		Variables: map[string]string{
			"questions": formatQuestions(iv.Questions),
			"username":  userName,
			"userid":    userID,
		},
		Metadata: map[string]string{"interviewId": iv.ID},
	}
	return r.start(ctx, ModeInterview, iv.ID, userID, cfg)
}

// StartGenerate opens a generation-workflow call: the workflow collects the
// interview parameters by voice and triggers question generation.
func (r *Registry) StartGenerate(ctx context.Context, userID, userName string) (*Session, error) {
	if r.opts.WorkflowID == "" {
		return nil, errors.New("no generation workflow configured")
	}
	cfg := voice.CallConfig{
		WorkflowID: r.opts.WorkflowID,
		Variables: map[string]string{
			"username": userName,
			"userid":   userID,
		},
	}
	return r.start(ctx, ModeGenerate, "", userID, cfg)
}

func (r *Registry) start(ctx context.Context, mode Mode, interviewID, userID string, cfg voice.CallConfig) (*Session, error) {
	call, err := r.starter.Start(ctx, cfg)
	if err != nil {
		return nil, err
	}

	sessCtx, cancel := context.WithTimeout(context.Background(), r.opts.MaxCallDuration)
	s := &Session{
		ID:          call.ID(),
		Mode:        mode,
		InterviewID: interviewID,
		UserID:      userID,
		call:        call,
		cancel:      cancel,
		done:        make(chan struct{}),
		stopGrace:   r.opts.StopGrace,
		feedback:    r.feedback,
		archiver:    r.archiver,
		status:      StatusConnecting,
	}

	r.mu.Lock()
	r.pruneLocked()
	r.sessions[s.ID] = s
	r.mu.Unlock()

	metrics.CallsStarted.WithLabelValues(string(mode)).Inc()
	metrics.ActiveCalls.Inc()
	go s.run(sessCtx)
	return s, nil
}

// Get returns the session for the given call ID.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Stop gracefully stops the session for the given call ID. The session
// stays retrievable until it is pruned.
func (r *Registry) Stop(id string) error {
	s, ok := r.Get(id)
	if !ok {
		return ErrNotFound
	}
	return s.Stop()
}

// StopAll stops every live session; used during shutdown.
func (r *Registry) StopAll() {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	for _, s := range sessions {
		select {
		case <-s.Done():
		default:
			_ = s.Stop()
		}
	}
}

// pruneLocked drops sessions that ended a while ago. Ended sessions are kept
// for a retention window so clients can still read the final snapshot.
func (r *Registry) pruneLocked() {
	for id, s := range r.sessions {
		select {
		case <-s.Done():
			s.mu.RLock()
			endedAt := s.endedAt
			s.mu.RUnlock()
			if time.Since(endedAt) > endedSessionRetention {
				delete(r.sessions, id)
			}
		default:
		}
	}
}

func formatQuestions(questions []string) string {
	lines := make([]string, 0, len(questions))
	for _, q := range questions {
		lines = append(lines, "- "+q)
	}
	return strings.Join(lines, "\n")
}
