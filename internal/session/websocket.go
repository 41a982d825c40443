package session

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WebSocketDialer connects to an evaluation server speaking JSON frames.
type WebSocketDialer struct {
	URL              string
	Header           http.Header
	HandshakeTimeout time.Duration
}

type evaluateRequest struct {
	ID      string `json:"id"`
	Command string `json:"command"`
}

type evaluateResponse struct {
	ID     string `json:"id"`
	Output string `json:"output"`
	Error  string `json:"error,omitempty"`
}

// Dial opens the websocket connection.
func (d WebSocketDialer) Dial(ctx context.Context) (Client, error) {
	if d.URL == "" {
		return nil, fmt.Errorf("websocket url not configured")
	}

	timeout := d.HandshakeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	dialer := websocket.Dialer{HandshakeTimeout: timeout}

	conn, resp, err := dialer.DialContext(ctx, d.URL, d.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", d.URL, err)
	}
	return &wsClient{conn: conn}, nil
}

type wsClient struct {
	conn *websocket.Conn
}

func (c *wsClient) Evaluate(ctx context.Context, command string) (string, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	_ = c.conn.SetWriteDeadline(deadline)
	_ = c.conn.SetReadDeadline(deadline)

	req := evaluateRequest{ID: uuid.NewString(), Command: command}
	if err := c.conn.WriteJSON(req); err != nil {
		return "", fmt.Errorf("%w: send: %v", ErrSessionUnavailable, err)
	}

	for {
		var resp evaluateResponse
		if err := c.conn.ReadJSON(&resp); err != nil {
			return "", fmt.Errorf("%w: receive: %v", ErrSessionUnavailable, err)
		}
		if resp.ID != "" && resp.ID != req.ID {
			continue
		}
		if resp.Error != "" {
			return resp.Output, fmt.Errorf("%w: %s", ErrEvaluationFailed, resp.Error)
		}
		return resp.Output, nil
	}
}

func (c *wsClient) Close() error {
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return c.conn.Close()
}
