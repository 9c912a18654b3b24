package voice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const defaultConnectTimeout = 15 * time.Second

// Config carries voice gateway connection settings.
type Config struct {
	GatewayURL string
	APIKey     string
}

// Client dials the voice gateway and starts calls.
type Client struct {
	gatewayURL string
	apiKey     string
	dialer     *websocket.Dialer
}

func NewClient(cfg Config) *Client {
	return &Client{
		gatewayURL: cfg.GatewayURL,
		apiKey:     cfg.APIKey,
		dialer:     websocket.DefaultDialer,
	}
}

// Start opens a call: dial the gateway, send the start frame and wait for
// the start-ack. The returned Call is live; consume Events() promptly.
func (c *Client) Start(ctx context.Context, cfg CallConfig) (*Call, error) {
	if cfg.AssistantID == "" && cfg.WorkflowID == "" {
		return nil, errors.New("either assistantId or workflowId is required")
	}

	wsURL, err := websocketURL(c.gatewayURL)
	if err != nil {
		return nil, err
	}

	headers := make(http.Header)
	if c.apiKey != "" {
		headers.Set("Authorization", "Bearer "+c.apiKey)
	}

	dialCtx := ctx
	var cancel context.CancelFunc
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		dialCtx, cancel = context.WithTimeout(ctx, defaultConnectTimeout)
		defer cancel()
	}

	conn, resp, err := c.dialer.DialContext(dialCtx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("gateway dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("gateway dial failed: %w", err)
	}

	if err := conn.WriteJSON(clientStart{Type: "start", Call: cfg}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send start frame: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(defaultConnectTimeout))
	messageType, payload, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("read start-ack: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})
	if messageType != websocket.TextMessage {
		_ = conn.Close()
		return nil, fmt.Errorf("unexpected first frame type %d", messageType)
	}

	var ack serverStartAck
	if err := json.Unmarshal(payload, &ack); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("decode start-ack: %w", err)
	}
	switch ack.Type {
	case "start-ack":
	case "error":
		var se serverError
		_ = json.Unmarshal(payload, &se)
		_ = conn.Close()
		return nil, fmt.Errorf("gateway rejected call: %s", se.Message)
	default:
		_ = conn.Close()
		return nil, fmt.Errorf("unexpected first frame %q", ack.Type)
	}

	callID := ack.CallID
	if callID == "" {
		callID = uuid.NewString()
	}

	call := &Call{
		id:     callID,
		conn:   conn,
		events: make(chan Event, 256),
		done:   make(chan struct{}),
	}
	go call.readLoop()
	return call, nil
}

func websocketURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid gateway URL: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
		// already a websocket scheme
	default:
		return "", fmt.Errorf("gateway URL must use http(s) or ws(s)")
	}
	return u.String(), nil
}
