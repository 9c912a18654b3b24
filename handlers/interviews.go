package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/prepvoice/prepvoice/internal/feedback"
	"github.com/prepvoice/prepvoice/internal/interviews"
	"github.com/prepvoice/prepvoice/internal/models"
	"github.com/prepvoice/prepvoice/pkg/logger"
)

// GenerateInterviewRequest is the POST /interviews/generate payload.
type GenerateInterviewRequest struct {
	Role      string   `json:"role" binding:"required"`
	Type      string   `json:"type"`
	Level     string   `json:"level"`
	Techstack []string `json:"techstack"`
	Amount    int      `json:"amount"`
}

// CreateFeedbackRequest is the POST /interviews/:id/feedback payload.
type CreateFeedbackRequest struct {
	Transcript []models.TranscriptMessage `json:"transcript" binding:"required"`
}

// InterviewHandler serves the interview catalogue and feedback endpoints.
type InterviewHandler struct {
	interviews *interviews.Service
	feedback   *feedback.Service
}

func NewInterviewHandler(i *interviews.Service, f *feedback.Service) *InterviewHandler {
	return &InterviewHandler{interviews: i, feedback: f}
}

// Register routes under an already-authenticated group.
func (h *InterviewHandler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/interviews")
	g.GET("", h.List)
	g.GET("/latest", h.Latest)
	g.POST("/generate", h.Generate)
	g.GET("/:id", h.Get)
	g.GET("/:id/feedback", h.GetFeedback)
	g.POST("/:id/feedback", h.CreateFeedback)
}

// currentUserID pulls the authenticated subject out of the gin context.
func currentUserID(c *gin.Context) string {
	claimsVal, ok := c.Get("claims")
	if !ok {
		return ""
	}
	claims, ok := claimsVal.(map[string]interface{})
	if !ok {
		return ""
	}
	sub, _ := claims["sub"].(string)
	return sub
}

// List returns the authenticated user's interviews, newest first.
func (h *InterviewHandler) List(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing subject"})
		return
	}
	list, err := h.interviews.ListByUser(c.Request.Context(), userID)
	if err != nil {
		logger.Errorf("interview list failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list interviews"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"interviews": list})
}

// Latest returns finalized interviews from other users for the shared feed.
func (h *InterviewHandler) Latest(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing subject"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	list, err := h.interviews.Latest(c.Request.Context(), userID, limit)
	if err != nil {
		logger.Errorf("latest interviews failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list interviews"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"interviews": list})
}

// Get returns one interview. Interviews are shared through the latest feed,
// so any authenticated user may read them.
func (h *InterviewHandler) Get(c *gin.Context) {
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
	c.JSON(http.StatusOK, gin.H{"interview": iv})
}

// Generate produces an interview with LLM-written questions and stores it.
func (h *InterviewHandler) Generate(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing subject"})
		return
	}
	var req GenerateInterviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	iv, err := h.interviews.Generate(c.Request.Context(), interviews.GenerateRequest{
		UserID:    userID,
		Role:      req.Role,
		Type:      req.Type,
		Level:     req.Level,
		Techstack: req.Techstack,
		Amount:    req.Amount,
	})
	if err != nil {
		if errors.Is(err, interviews.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logger.Errorf("interview generation failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate interview"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"interview": iv})
}

// GetFeedback returns the caller's feedback for one interview.
func (h *InterviewHandler) GetFeedback(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing subject"})
		return
	}
	fb, err := h.feedback.GetByInterview(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		logger.Errorf("feedback lookup failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load feedback"})
		return
	}
	if fb == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "feedback not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"feedback": fb})
}

// CreateFeedback scores a transcript for the interview and stores the result.
// The session agent uses the same service path when a call finishes; this
// endpoint lets clients submit a transcript directly.
func (h *InterviewHandler) CreateFeedback(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing subject"})
		return
	}
	var req CreateFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	fb, err := h.feedback.CreateFromTranscript(c.Request.Context(), feedback.CreateRequest{
		InterviewID: c.Param("id"),
		UserID:      userID,
		Transcript:  req.Transcript,
	})
	if err != nil {
		if errors.Is(err, feedback.ErrValidation) || errors.Is(err, feedback.ErrEmptyTranscript) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logger.Errorf("feedback creation failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create feedback"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"feedback": fb})
}
