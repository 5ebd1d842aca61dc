package wire

import (
	"fmt"
	"io"
	"sync"

	"github.com/chazu/latebind/dispatch"
)

// Client is a dispatch.Collaborator backed by one connection to a Server.
// Requests are serialized on the connection; every call blocks until its
// response arrives. There is no timeout and no cancellation: a hung server
// hangs the caller, exactly as an in-process collaborator would.
type Client struct {
	mu   sync.Mutex
	conn io.ReadWriteCloser
}

// NewClient wraps an established connection.
func NewClient(conn io.ReadWriteCloser) *Client {
	return &Client{conn: conn}
}

// Close closes the underlying connection. Outstanding remote references are
// the server's to sweep; a well-behaved caller releases them first.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) roundTrip(req *request) (*response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := writeFrame(c.conn, req); err != nil {
		return nil, err
	}
	var resp response
	if err := readFrame(c.conn, &resp); err != nil {
		return nil, fmt.Errorf("wire: awaiting response: %w", err)
	}
	return &resp, nil
}

// ResolveName resolves a member name on the remote object.
func (c *Client) ResolveName(target dispatch.Handle, name string) (dispatch.MemberID, error) {
	resp, err := c.roundTrip(&request{Op: opResolve, Target: uint64(target), Name: name})
	if err != nil {
		return 0, err
	}
	if err := wireToErr(resp.Err, resp.Code, resp.Message); err != nil {
		return 0, err
	}
	return dispatch.MemberID(resp.Member), nil
}

// Invoke performs a remote member call. Object arguments cross as handles;
// object results arrive owning a server-side counted reference that Release
// hands back.
func (c *Client) Invoke(target dispatch.Handle, member dispatch.MemberID, kind dispatch.CallKind, packed []dispatch.Value) (dispatch.Value, error) {
	args, err := encodeArgs(packed)
	if err != nil {
		return dispatch.Value{}, err
	}
	resp, err := c.roundTrip(&request{
		Op:     opInvoke,
		Target: uint64(target),
		Member: int32(member),
		Kind:   uint8(kind),
		Args:   args,
	})
	if err != nil {
		return dispatch.Value{}, err
	}
	if err := wireToErr(resp.Err, resp.Code, resp.Message); err != nil {
		return dispatch.Value{}, err
	}
	return decodeValue(resp.Result)
}

// AddRef acquires a counted reference on the remote object. Transport
// failures here have no caller to report to; they are logged and the local
// side carries on.
func (c *Client) AddRef(target dispatch.Handle) {
	if _, err := c.roundTrip(&request{Op: opAddRef, Target: uint64(target)}); err != nil {
		log.Errorf("addref %d: %v", target, err)
	}
}

// Release hands a counted reference back to the remote object.
func (c *Client) Release(target dispatch.Handle) {
	if _, err := c.roundTrip(&request{Op: opRelease, Target: uint64(target)}); err != nil {
		log.Errorf("release %d: %v", target, err)
	}
}
