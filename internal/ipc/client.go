package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Submit queues a file for transcription.
func (c *Client) Submit(path, model string) (*SubmitResponse, error) {
	var resp SubmitResponse
	if err := c.client.Call("Scribe.Submit", SubmitRequest{Path: path, Model: model}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Scribe.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Queue retrieves the admission queue summary.
func (c *Client) Queue() (*QueueResponse, error) {
	var resp QueueResponse
	if err := c.client.Call("Scribe.Queue", QueueRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// List returns jobs, optionally filtered by status names.
func (c *Client) List(statuses []string) (*ListResponse, error) {
	var resp ListResponse
	if err := c.client.Call("Scribe.List", ListRequest{Statuses: statuses}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Show returns one job including its transcript.
func (c *Client) Show(id string) (*ShowResponse, error) {
	var resp ShowResponse
	if err := c.client.Call("Scribe.Show", ShowRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Transcript returns the text of a completed job.
func (c *Client) Transcript(id string) (*TranscriptResponse, error) {
	var resp TranscriptResponse
	if err := c.client.Call("Scribe.Transcript", TranscriptRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Delete removes a job and its files.
func (c *Client) Delete(id string) (*DeleteResponse, error) {
	var resp DeleteResponse
	if err := c.client.Call("Scribe.Delete", DeleteRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
