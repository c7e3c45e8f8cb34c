package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	serrors "github.com/Aman-CERP/semsearch/internal/errors"
)

// Client talks to a running daemon. Each call uses its own connection.
// Failed operations return *errors.ServiceError with the kind reported by
// the daemon.
type Client struct {
	socketPath string
	timeout    time.Duration
	requestID  atomic.Uint64
}

// NewClient creates a new daemon client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{socketPath: cfg.SocketPath, timeout: timeout}
}

// Connect establishes a connection to the daemon.
func (c *Client) Connect() (net.Conn, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w", err)
	}
	return conn, nil
}

// IsRunning checks if the daemon is accepting connections.
func (c *Client) IsRunning() bool {
	conn, err := c.Connect()
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// call performs one round trip and decodes the result into out.
func (c *Client) call(ctx context.Context, method string, params, out any) error {
	conn, err := c.Connect()
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set deadline: %w", err)
	}

	req := Request{JSONRPC: "2.0", Method: method, ID: c.nextID()}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("failed to encode params: %w", err)
		}
		req.Params = raw
	}

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}

	var resp struct {
		Result json.RawMessage `json:"result"`
		Error  *Error          `json:"error"`
		ID     string          `json:"id"`
	}
	if err := json.NewDecoder(bufio.NewReader(conn)).Decode(&resp); err != nil {
		return fmt.Errorf("failed to receive response: %w", err)
	}
	if resp.Error != nil {
		return resp.Error.ServiceError()
	}
	if resp.ID != req.ID {
		return serrors.Newf(serrors.ErrCodeMalformedRequest, "response id %q does not match request %q", resp.ID, req.ID)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return nil
}

// Ping checks if the daemon is responsive.
func (c *Client) Ping(ctx context.Context) error {
	var res PingResult
	if err := c.call(ctx, MethodPing, nil, &res); err != nil {
		return err
	}
	if !res.Pong {
		return fmt.Errorf("ping failed: unexpected reply")
	}
	return nil
}

// CreateIndex creates an empty corpus.
func (c *Client) CreateIndex(ctx context.Context, name string) error {
	return c.call(ctx, MethodCreateIndex, IndexParams{Name: name}, nil)
}

// DeleteIndex removes a corpus.
func (c *Client) DeleteIndex(ctx context.Context, name string) error {
	return c.call(ctx, MethodDeleteIndex, IndexParams{Name: name}, nil)
}

// ListIndexes returns all corpus names.
func (c *Client) ListIndexes(ctx context.Context) ([]string, error) {
	var res IndexesResult
	if err := c.call(ctx, MethodListIndexes, nil, &res); err != nil {
		return nil, err
	}
	return res.Indexes, nil
}

// AddDocument adds or replaces a document.
func (c *Client) AddDocument(ctx context.Context, name, id, text string) error {
	return c.call(ctx, MethodAddDocument, DocumentParams{Name: name, DocID: id, Text: text}, nil)
}

// RemoveDocument removes a document.
func (c *Client) RemoveDocument(ctx context.Context, name, id string) error {
	return c.call(ctx, MethodRemoveDocument, DocumentParams{Name: name, DocID: id}, nil)
}

// ListDocuments returns the document ids of a corpus.
func (c *Client) ListDocuments(ctx context.Context, name string) ([]string, error) {
	var res DocumentsResult
	if err := c.call(ctx, MethodListDocuments, IndexParams{Name: name}, &res); err != nil {
		return nil, err
	}
	return res.DocIDs, nil
}

// Query ranks documents against text. topK <= 0 uses the daemon default.
func (c *Client) Query(ctx context.Context, name, text string, topK int) (*QueryResult, error) {
	var res QueryResult
	params := QueryParams{Name: name, QueryText: text, TopK: max(topK, 0)}
	if err := c.call(ctx, MethodQuery, params, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Status retrieves daemon status.
func (c *Client) Status(ctx context.Context) (*StatusResult, error) {
	var res StatusResult
	if err := c.call(ctx, MethodStatus, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// nextID generates a unique request ID.
func (c *Client) nextID() string {
	return fmt.Sprintf("req-%d", c.requestID.Add(1))
}
