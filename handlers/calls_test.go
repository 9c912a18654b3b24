package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prepvoice/prepvoice/internal/agent"
	"github.com/prepvoice/prepvoice/internal/feedback"
	"github.com/prepvoice/prepvoice/internal/interviews"
	"github.com/prepvoice/prepvoice/internal/voice"
)

// stubCall feeds scripted gateway events into the registry's session.
type stubCall struct {
	id     string
	events chan voice.Event

	mu      sync.Mutex
	stopped bool
	onStop  func()

	endOnce sync.Once
}

func newStubCall(id string) *stubCall {
	return &stubCall{id: id, events: make(chan voice.Event, 32)}
}

func (s *stubCall) ID() string { return s.id }

func (s *stubCall) Events() <-chan voice.Event { return s.events }

func (s *stubCall) Err() error { return nil }

func (s *stubCall) emit(e voice.Event) { s.events <- e }

func (s *stubCall) end() { s.endOnce.Do(func() { close(s.events) }) }

func (s *stubCall) Close() error { s.end(); return nil }

func (s *stubCall) Stop() error {
	s.mu.Lock()
	s.stopped = true
	cb := s.onStop
	s.mu.Unlock()
	if cb != nil {
		cb()
	}
	return nil
}

func (s *stubCall) wasStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

type stubStarter struct {
	call    *stubCall
	err     error
	lastCfg voice.CallConfig
}

func (s *stubStarter) Start(ctx context.Context, cfg voice.CallConfig) (agent.Call, error) {
	s.lastCfg = cfg
	if s.err != nil {
		return nil, s.err
	}
	return s.call, nil
}

type stubSigner struct {
	base string
	err  error
}

func (s *stubSigner) TranscriptURL(ctx context.Context, callID string, expires time.Duration) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.base + callID + ".json", nil
}

type callFixtures struct {
	repo    *fakeInterviewRepo
	stub    *stubCall
	starter *stubStarter
	ivSvc   *interviews.Service
	reg     *agent.Registry
}

func newCallFixtures() *callFixtures {
	fx := &callFixtures{repo: newFakeInterviewRepo()}
	fx.stub = newStubCall("call-1")
	fx.starter = &stubStarter{call: fx.stub}
	fbSvc := feedback.NewService(&fakeFeedbackRepo{}, &fakeScorer{result: scoreFixture()})
	fx.reg = agent.NewRegistry(fx.starter, fbSvc, nil, agent.Options{
		AssistantID: "asst_1",
		WorkflowID:  "wf_1",
	})
	fx.ivSvc = interviews.NewService(fx.repo, &fakeQuestionGen{})
	return fx
}

func (fx *callFixtures) router(userID string, signer TranscriptURLSigner) *gin.Engine {
	h := NewCallHandler(fx.reg, fx.ivSvc, signer)
	r := gin.New()
	api := r.Group("/api/v1", asUser(userID, "Ada"))
	h.Register(api)
	return r
}

func (fx *callFixtures) waitDone(t *testing.T, callID string) {
	t.Helper()
	s, ok := fx.reg.Get(callID)
	require.True(t, ok)
	select {
	case <-s.Done():
	case <-time.After(3 * time.Second):
		t.Fatalf("session %s did not finish in time", callID)
	}
}

func TestStartInterviewCall_CreatesSession(t *testing.T) {
	fx := newCallFixtures()
	r := fx.router("user-1", nil)
	seedInterview(fx.repo, "iv-1", "user-2", true, time.Hour)

	w := postJSON(r, "/api/v1/interviews/iv-1/call", "", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	got := decodeBody(t, w)
	call, ok := got["call"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "call-1", call["callId"])
	assert.Equal(t, "interview", call["mode"])
	assert.Equal(t, "CONNECTING", call["status"])
	assert.Equal(t, "iv-1", call["interviewId"])

	assert.Equal(t, "asst_1", fx.starter.lastCfg.AssistantID)
	assert.Equal(t, "- q1\n- q2", fx.starter.lastCfg.Variables["questions"])
	assert.Equal(t, "Ada", fx.starter.lastCfg.Variables["username"])

	fx.stub.end()
	fx.waitDone(t, "call-1")
}

func TestStartInterviewCall_UnknownInterview(t *testing.T) {
	fx := newCallFixtures()
	r := fx.router("user-1", nil)

	w := postJSON(r, "/api/v1/interviews/missing/call", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, fx.starter.lastCfg.AssistantID)
}

func TestStartGenerateCall_UsesWorkflow(t *testing.T) {
	fx := newCallFixtures()
	r := fx.router("user-1", nil)

	w := postJSON(r, "/api/v1/calls/generate", "", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	got := decodeBody(t, w)
	call, ok := got["call"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "generate", call["mode"])
	assert.Equal(t, "wf_1", fx.starter.lastCfg.WorkflowID)

	fx.stub.end()
	fx.waitDone(t, "call-1")
}

func TestStartCall_GatewayFailure(t *testing.T) {
	fx := newCallFixtures()
	fx.starter.err = context.DeadlineExceeded
	r := fx.router("user-1", nil)
	seedInterview(fx.repo, "iv-1", "user-2", true, time.Hour)

	w := postJSON(r, "/api/v1/interviews/iv-1/call", "", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestCallGet_OwnershipEnforced(t *testing.T) {
	fx := newCallFixtures()
	owner := fx.router("user-1", nil)
	other := fx.router("user-2", nil)
	seedInterview(fx.repo, "iv-1", "user-2", true, time.Hour)

	w := postJSON(owner, "/api/v1/interviews/iv-1/call", "", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	wOwner := getPath(owner, "/api/v1/calls/call-1")
	assert.Equal(t, http.StatusOK, wOwner.Code)

	// foreign sessions read as not found
	wOther := getPath(other, "/api/v1/calls/call-1")
	assert.Equal(t, http.StatusNotFound, wOther.Code)

	fx.stub.end()
	fx.waitDone(t, "call-1")
}

func TestCallStop_FinishesSessionAndScores(t *testing.T) {
	fx := newCallFixtures()
	fx.stub.onStop = func() { fx.stub.emit(voice.CallEndEvent{Reason: "hangup"}) }
	r := fx.router("user-1", nil)
	seedInterview(fx.repo, "iv-1", "user-2", true, time.Hour)

	w := postJSON(r, "/api/v1/interviews/iv-1/call", "", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	fx.stub.emit(voice.CallStartEvent{CallID: "call-1"})
	fx.stub.emit(voice.MessageEvent{Message: voice.Message{
		Type: "transcript", Role: "user", TranscriptType: "final", Transcript: "I build Go services",
	}})

	req := httptest.NewRequest("DELETE", "/api/v1/calls/call-1", nil)
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req)
	require.Equal(t, http.StatusOK, w2.Code)
	assert.True(t, fx.stub.wasStopped())

	fx.waitDone(t, "call-1")

	w3 := getPath(r, "/api/v1/calls/call-1")
	require.Equal(t, http.StatusOK, w3.Code)
	call, ok := decodeBody(t, w3)["call"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "FINISHED", call["status"])
	lines, _ := call["transcript"].([]interface{})
	require.Len(t, lines, 1)
	assert.NotEmpty(t, call["feedbackId"])
}

func TestCallEvents_StreamsOverWebSocket(t *testing.T) {
	fx := newCallFixtures()
	r := fx.router("user-1", nil)
	seedInterview(fx.repo, "iv-1", "user-2", true, time.Hour)

	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/interviews/iv-1/call", "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/calls/call-1/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))

	var first map[string]interface{}
	require.NoError(t, conn.ReadJSON(&first))
	require.Equal(t, "snapshot", first["type"])

	fx.stub.emit(voice.CallStartEvent{CallID: "call-1"})
	fx.stub.emit(voice.MessageEvent{Message: voice.Message{
		Type: "transcript", Role: "user", TranscriptType: "final", Transcript: "hello",
	}})
	fx.stub.emit(voice.CallEndEvent{Reason: "hangup"})

	var sawActive, sawLine bool
	var last map[string]interface{}
	for {
		var frame map[string]interface{}
		if err := conn.ReadJSON(&frame); err != nil {
			break
		}
		last = frame
		if frame["type"] != "update" {
			continue
		}
		u, _ := frame["update"].(map[string]interface{})
		if u["status"] == "ACTIVE" {
			sawActive = true
		}
		if m, ok := u["message"].(map[string]interface{}); ok && m["content"] == "hello" {
			sawLine = true
		}
	}
	require.True(t, sawActive, "no ACTIVE update seen")
	require.True(t, sawLine, "no transcript update seen")
	require.NotNil(t, last)
	require.Equal(t, "snapshot", last["type"], "stream should end with a final snapshot")
	call, _ := last["call"].(map[string]interface{})
	assert.Equal(t, "FINISHED", call["status"])
}

func TestTranscriptURL_OnlyAfterFinish(t *testing.T) {
	fx := newCallFixtures()
	signer := &stubSigner{base: "https://files.example/transcripts/"}
	r := fx.router("user-1", signer)
	seedInterview(fx.repo, "iv-1", "user-2", true, time.Hour)

	w := postJSON(r, "/api/v1/interviews/iv-1/call", "", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	// still running
	w2 := getPath(r, "/api/v1/calls/call-1/transcript-url")
	assert.Equal(t, http.StatusConflict, w2.Code)

	fx.stub.emit(voice.CallStartEvent{CallID: "call-1"})
	fx.stub.emit(voice.MessageEvent{Message: voice.Message{
		Type: "transcript", Role: "user", TranscriptType: "final", Transcript: "hello",
	}})
	fx.stub.emit(voice.CallEndEvent{Reason: "hangup"})
	fx.waitDone(t, "call-1")

	w3 := getPath(r, "/api/v1/calls/call-1/transcript-url")
	require.Equal(t, http.StatusOK, w3.Code)
	got := decodeBody(t, w3)
	assert.Equal(t, "https://files.example/transcripts/call-1.json", got["url"])
}
