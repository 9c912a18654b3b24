package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/prepvoice/prepvoice/internal/agent"
	"github.com/prepvoice/prepvoice/internal/interviews"
	"github.com/prepvoice/prepvoice/pkg/logger"
)

// TranscriptURLSigner produces presigned download URLs for archived call
// transcripts. Nil means archiving is not configured.
type TranscriptURLSigner interface {
	TranscriptURL(ctx context.Context, callID string, expires time.Duration) (string, error)
}

// CallHandler exposes the live voice-call sessions over HTTP and WebSocket.
type CallHandler struct {
	registry   *agent.Registry
	interviews *interviews.Service
	archive    TranscriptURLSigner
}

func NewCallHandler(r *agent.Registry, i *interviews.Service, archive TranscriptURLSigner) *CallHandler {
	return &CallHandler{registry: r, interviews: i, archive: archive}
}

// Register routes under an already-authenticated group.
func (h *CallHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/interviews/:id/call", h.StartInterviewCall)
	calls := rg.Group("/calls")
	calls.POST("/generate", h.StartGenerateCall)
	calls.GET("/:id", h.Get)
	calls.DELETE("/:id", h.Stop)
	calls.GET("/:id/events", h.Events)
	calls.GET("/:id/transcript-url", h.TranscriptURL)
}

func currentUserName(c *gin.Context) string {
	claimsVal, ok := c.Get("claims")
	if !ok {
		return ""
	}
	claims, ok := claimsVal.(map[string]interface{})
	if !ok {
		return ""
	}
	name, _ := claims["name"].(string)
	return name
}

// StartInterviewCall opens a voice call that runs the given interview.
func (h *CallHandler) StartInterviewCall(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing subject"})
		return
	}
	iv, err := h.interviews.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		logger.Errorf("interview lookup failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load interview"})
		return
	}
	if iv == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "interview not found"})
		return
	}
	s, err := h.registry.StartInterview(c.Request.Context(), iv, userID, currentUserName(c))
	if err != nil {
		logger.Errorf("interview call start failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to start call"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"call": s.Snapshot()})
}

// StartGenerateCall opens a voice call that runs the interview-generation
// workflow: the assistant collects role, level and tech stack by voice.
func (h *CallHandler) StartGenerateCall(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing subject"})
		return
	}
	s, err := h.registry.StartGenerate(c.Request.Context(), userID, currentUserName(c))
	if err != nil {
		logger.Errorf("generate call start failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to start call"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"call": s.Snapshot()})
}

// session looks up a call session and enforces that it belongs to the
// caller. Foreign call IDs read as not found.
func (h *CallHandler) session(c *gin.Context) (*agent.Session, bool) {
	userID := currentUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing subject"})
		return nil, false
	}
	s, ok := h.registry.Get(c.Param("id"))
	if !ok || s.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "call not found"})
		return nil, false
	}
	return s, true
}

// Get returns the current snapshot of a call session.
func (h *CallHandler) Get(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"call": s.Snapshot()})
}

// Stop requests a graceful stop of a running call.
func (h *CallHandler) Stop(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.Stop(); err != nil {
		logger.Errorf("call %s stop failed: %v", s.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to stop call"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "stopping"})
}

var eventsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the SPA is served from its own origin during development
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Events streams session lifecycle updates to the browser over WebSocket:
// status changes, the speaking flag and final transcript lines as they
// arrive. The stream opens with a snapshot and closes when the call ends.
func (h *CallHandler) Events(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	updates, unsubscribe := s.Subscribe()
	defer unsubscribe()

	conn, err := eventsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		return
	}
	defer conn.Close()

	if err := conn.WriteJSON(gin.H{"type": "snapshot", "call": s.Snapshot()}); err != nil {
		return
	}

	// reader loop only to notice the client going away
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-clientGone:
			return
		case u, open := <-updates:
			if !open {
				// session over: final snapshot carries feedback id and end state
				_ = conn.WriteJSON(gin.H{"type": "snapshot", "call": s.Snapshot()})
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(time.Second))
				return
			}
			if err := conn.WriteJSON(gin.H{"type": "update", "update": u}); err != nil {
				return
			}
		}
	}
}

// TranscriptURL hands out a presigned link to the archived transcript of a
// finished call.
func (h *CallHandler) TranscriptURL(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if h.archive == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "transcript archive not configured"})
		return
	}
	select {
	case <-s.Done():
	default:
		c.JSON(http.StatusConflict, gin.H{"error": "call still running"})
		return
	}
	if len(s.Snapshot().Transcript) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no transcript archived"})
		return
	}
	url, err := h.archive.TranscriptURL(c.Request.Context(), s.ID, 15*time.Minute)
	if err != nil {
		logger.Errorf("transcript url for call %s failed: %v", s.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to sign transcript url"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url, "expiresIn": int((15 * time.Minute).Seconds())})
}
