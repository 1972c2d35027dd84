package socketrpc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/tinytelemetry/mcqpdf/internal/adbridge"
	"github.com/tinytelemetry/mcqpdf/internal/model"
)

const defaultCallTimeout = 10 * time.Second

// Client implements adbridge.Bridge over a Unix domain socket using JSON-RPC 2.0.
type Client struct {
	conn    net.Conn
	mu      sync.Mutex
	nextID  int
	scanner *bufio.Scanner
	encoder *json.Encoder
}

var _ adbridge.Bridge = (*Client)(nil)

// Dial connects to the ad host at the given path.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("socketrpc: dial: %w", err)
	}
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), scannerMaxTokenSize)
	return &Client{
		conn:    conn,
		scanner: scanner,
		encoder: json.NewEncoder(conn),
	}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// call performs a JSON-RPC call and unmarshals the result into dest.
func (c *Client) call(ctx context.Context, method string, params interface{}, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID

	req := Request{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
	}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("socketrpc: marshal params: %w", err)
		}
		req.Params = data
	}

	deadline := time.Now().Add(defaultCallTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetDeadline(deadline)
	defer c.conn.SetDeadline(time.Time{})

	if err := c.encoder.Encode(req); err != nil {
		return fmt.Errorf("socketrpc: send: %w", err)
	}

	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return fmt.Errorf("socketrpc: read: %w", err)
		}
		return fmt.Errorf("socketrpc: connection closed")
	}

	var resp Response
	if err := json.Unmarshal(c.scanner.Bytes(), &resp); err != nil {
		return fmt.Errorf("socketrpc: unmarshal response: %w", err)
	}
	if resp.ID != id {
		return fmt.Errorf("socketrpc: response id %d, want %d", resp.ID, id)
	}

	if resp.Error != nil {
		return resp.Error
	}

	if dest != nil {
		if err := json.Unmarshal(resp.Result, dest); err != nil {
			return fmt.Errorf("socketrpc: unmarshal result: %w", err)
		}
	}
	return nil
}

// Hosted is always true: a dialed socket means a host is present.
func (c *Client) Hosted() bool { return true }

func (c *Client) RequestFeature(ctx context.Context) error {
	return c.call(ctx, "RequestFeature", nil, nil)
}

func (c *Client) CheckUnlocked(ctx context.Context) (bool, error) {
	var result bool
	err := c.call(ctx, "CheckUnlocked", nil, &result)
	return result, err
}

func (c *Client) ConsumeUnlock(ctx context.Context) error {
	return c.call(ctx, "ConsumeUnlock", nil, nil)
}

func (c *Client) RequestGatedDownload(ctx context.Context, url, filename string) (bool, error) {
	var result bool
	err := c.call(ctx, "RequestGatedDownload", map[string]interface{}{
		"URL":      url,
		"Filename": filename,
	}, &result)
	return result, err
}

func (c *Client) Status(ctx context.Context) (model.AdStatus, error) {
	var result model.AdStatus
	err := c.call(ctx, "Status", nil, &result)
	return result, err
}

func (c *Client) Events(ctx context.Context) ([]adbridge.Event, error) {
	var result []adbridge.Event
	err := c.call(ctx, "Events", nil, &result)
	return result, err
}
