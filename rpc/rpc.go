// Package rpc controls a running instrument remotely over net/rpc: reload
// the program, read its status, and take or restore a snapshot of its state.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/rpc"
	"time"

	"github.com/resynth/resynth/host"
	"github.com/resynth/resynth/report"
)

type (
	// Control is the service registered on the server.
	Control struct {
		host    *host.Host
		collect func(host.Status) report.Data
		timeout time.Duration
	}

	Server struct {
		listener net.Listener
		done     chan struct{}
	}

	Client struct {
		client *rpc.Client
	}

	ReloadArgs struct {
		// Path of the artifact; empty reloads the current one.
		Path string
	}
)

// DefaultPort is used when an address has no port.
const DefaultPort = "31337"

// DefaultTimeout bounds how long a remote swap may take.
const DefaultTimeout = 10 * time.Second

// NewControl returns the service for h. Collect turns the host status into
// report data.
func NewControl(h *host.Host, collect func(host.Status) report.Data) *Control {
	return &Control{host: h, collect: collect, timeout: DefaultTimeout}
}

func (c *Control) Reload(args ReloadArgs, reply *report.Swap) error {
	path := args.Path
	if path == "" {
		path = c.host.Status().Path
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	r, err := c.host.Swap(ctx, path)
	if err != nil {
		return err
	}
	*reply = report.Swap{Old: r.Old, New: r.New, StateBytes: r.StateBytes, Load: r.Load, Took: r.Took}
	if r.Migration != nil {
		reply.Migration = r.Migration.Error()
	}
	return nil
}

func (c *Control) Status(args int, reply *report.Data) error {
	*reply = c.collect(c.host.Status())
	return nil
}

func (c *Control) Snapshot(args int, reply *[]byte) error {
	*reply = c.host.Snapshot()
	if *reply == nil {
		return errors.New("no program is playing")
	}
	return nil
}

// Restore replaces the playing Instance from the state. A state that the
// program cannot read leaves it at defaults and is reported as an error.
func (c *Control) Restore(state []byte, reply *int) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	return c.host.Restore(ctx, state)
}

// Listen serves the control on addr until Close.
func Listen(addr string, ctl *Control) (*Server, error) {
	server := rpc.NewServer()
	if err := server.RegisterName("Control", ctl); err != nil {
		return nil, fmt.Errorf("rpc register failed: %w", err)
	}
	l, err := net.Listen("tcp", withPort(addr))
	if err != nil {
		return nil, fmt.Errorf("net.Listen failed: %w", err)
	}
	s := &Server{listener: l, done: make(chan struct{})}
	go func() {
		defer close(s.done)
		http.Serve(l, server)
	}()
	return s, nil
}

func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

func (s *Server) Close() error {
	err := s.listener.Close()
	<-s.done
	return err
}

func Dial(addr string) (*Client, error) {
	client, err := rpc.DialHTTP("tcp", withPort(addr))
	if err != nil {
		return nil, fmt.Errorf("rpc.DialHTTP failed: %w", err)
	}
	return &Client{client: client}, nil
}

func (c *Client) Reload(path string) (report.Swap, error) {
	var reply report.Swap
	err := c.client.Call("Control.Reload", ReloadArgs{Path: path}, &reply)
	return reply, err
}

func (c *Client) Status() (report.Data, error) {
	var reply report.Data
	err := c.client.Call("Control.Status", 0, &reply)
	return reply, err
}

func (c *Client) Snapshot() ([]byte, error) {
	var reply []byte
	err := c.client.Call("Control.Snapshot", 0, &reply)
	return reply, err
}

func (c *Client) Restore(state []byte) error {
	return c.client.Call("Control.Restore", state, new(int))
}

func (c *Client) Close() error {
	return c.client.Close()
}

func withPort(addr string) string {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return net.JoinHostPort(addr, DefaultPort)
	}
	return addr
}
