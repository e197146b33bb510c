package libvirt

import (
	"context"
	"fmt"
	"time"

	"github.com/digitalocean/go-libvirt"
	"github.com/digitalocean/go-libvirt/socket/dialers"
)

const (
	// DefaultSocketPath is the local libvirtd Unix socket.
	DefaultSocketPath = "/var/run/libvirt/libvirt-sock"

	// DefaultURI is the driver URI used when none is given.
	DefaultURI = "qemu:///system"

	// DefaultTimeout is the dial timeout used when none is given.
	DefaultTimeout = 5 * time.Second
)

// ConnectOptions selects the hypervisor endpoint and credentials.
//
// Resolution order: URI wins if set; otherwise RemoteHost selects the
// libvirtd TCP transport with the qemu system driver; otherwise the
// local Unix socket is used.
type ConnectOptions struct {
	// URI is an explicit libvirt driver URI (e.g. "qemu:///system").
	URI string

	// RemoteHost connects to libvirtd on another host over TCP.
	RemoteHost string

	// AuthUser and AuthPassword are credentials for authenticated
	// transports. The go-libvirt RPC client does not expose SASL
	// credential callbacks, so setting these yields a clear
	// "unsupported" error instead of silently connecting without them.
	AuthUser     string
	AuthPassword string

	// SocketPath overrides the local Unix socket path.
	SocketPath string

	// Timeout bounds the transport dial.
	Timeout time.Duration
}

// Client wraps a go-libvirt connection and owns its lifecycle. One
// client serves all operations of a single invocation; it must be
// closed via Close() on every exit path.
type Client struct {
	libvirt *libvirt.Libvirt
	uri     string
}

// Connect establishes a connection to a libvirt daemon per opts.
func Connect(opts ConnectOptions) (*Client, error) {
	if opts.AuthUser != "" || opts.AuthPassword != "" {
		return nil, fmt.Errorf("credential authentication is not supported over the RPC transport; configure libvirtd socket or TLS access instead")
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	uri := opts.URI
	var l *libvirt.Libvirt

	switch {
	case uri != "":
		socketPath := opts.SocketPath
		if socketPath == "" {
			socketPath = DefaultSocketPath
		}
		l = libvirt.NewWithDialer(dialers.NewLocal(
			dialers.WithSocket(socketPath),
			dialers.WithLocalTimeout(timeout),
		))
	case opts.RemoteHost != "":
		uri = DefaultURI
		l = libvirt.NewWithDialer(dialers.NewRemote(opts.RemoteHost))
	default:
		uri = DefaultURI
		socketPath := opts.SocketPath
		if socketPath == "" {
			socketPath = DefaultSocketPath
		}
		l = libvirt.NewWithDialer(dialers.NewLocal(
			dialers.WithSocket(socketPath),
			dialers.WithLocalTimeout(timeout),
		))
	}

	if err := l.ConnectToURI(libvirt.ConnectURI(uri)); err != nil {
		return nil, fmt.Errorf("failed to connect to libvirt at %s: %w", uri, err)
	}

	return &Client{libvirt: l, uri: uri}, nil
}

// ConnectWithContext establishes a connection with context support for
// cancellation of the dial.
func ConnectWithContext(ctx context.Context, opts ConnectOptions) (*Client, error) {
	type result struct {
		client *Client
		err    error
	}
	resultCh := make(chan result, 1)

	go func() {
		c, err := Connect(opts)
		resultCh <- result{client: c, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("connection cancelled: %w", ctx.Err())
	case res := <-resultCh:
		return res.client, res.err
	}
}

// Close closes the libvirt connection and releases resources.
// It is safe to call Close multiple times.
func (c *Client) Close() error {
	if c.libvirt == nil {
		return nil
	}

	if err := c.libvirt.Disconnect(); err != nil {
		return fmt.Errorf("failed to disconnect from libvirt: %w", err)
	}
	c.libvirt = nil

	return nil
}

// Libvirt returns the underlying go-libvirt client for direct API access.
func (c *Client) Libvirt() *libvirt.Libvirt {
	return c.libvirt
}

// URI reports the driver URI this client connected to.
func (c *Client) URI() string {
	return c.uri
}

// Ping verifies the connection is still alive by calling a simple libvirt API.
func (c *Client) Ping() error {
	if c.libvirt == nil {
		return fmt.Errorf("client not connected")
	}

	if _, err := c.libvirt.ConnectGetLibVersion(); err != nil {
		return fmt.Errorf("libvirt connection is dead: %w", err)
	}

	return nil
}
