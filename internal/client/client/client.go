package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dmitrijs2005/msgbox/internal/common"
	"github.com/dmitrijs2005/msgbox/internal/protocol"
)

// Options configures a Client. Zero values fall back to three attempts one
// second apart with a ten second I/O timeout.
type Options struct {
	Address     string
	Retries     int
	RetryDelay  time.Duration
	Timeout     time.Duration
	MaxResponse int
}

type dialFunc func(ctx context.Context, network, address string) (net.Conn, error)

type Client struct {
	opts   Options
	codec  *protocol.Codec
	dial   dialFunc
	conn   net.Conn
	reader *bufio.Reader
}

func New(opts Options) *Client {
	if opts.Retries <= 0 {
		opts.Retries = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxResponse <= 0 {
		opts.MaxResponse = 1 << 20
	}
	d := &net.Dialer{Timeout: opts.Timeout}
	return &Client{
		opts:  opts,
		codec: protocol.NewCodec(0, 0),
		dial:  d.DialContext,
	}
}

// Connect dials the server, retrying up to Options.Retries times.
func (c *Client) Connect(ctx context.Context) error {
	backoff := retry.WithMaxRetries(uint64(c.opts.Retries-1), retry.NewConstant(c.opts.RetryDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		conn, err := c.dial(ctx, "tcp", c.opts.Address)
		if err != nil {
			return retry.RetryableError(err)
		}
		c.conn = conn
		c.reader = bufio.NewReaderSize(conn, 4096)
		return nil
	})
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	}
	return fmt.Errorf("%w: %s after %d attempts: %w", ErrUnavailable, c.opts.Address, c.opts.Retries, err)
}

// Do sends req and waits for its response.
func (c *Client) Do(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	if c.conn == nil {
		return protocol.Response{}, ErrNotConnected
	}

	frame, err := c.codec.EncodeRequest(req)
	if err != nil {
		return protocol.Response{}, err
	}

	deadline := time.Now().Add(c.opts.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return protocol.Response{}, common.Connection(err)
	}
	stop := context.AfterFunc(ctx, func() { _ = c.conn.SetDeadline(time.Now()) })
	defer stop()

	if _, err := c.conn.Write(append(frame, '\n')); err != nil {
		return protocol.Response{}, common.Connection(err)
	}

	line, err := c.readLine()
	if err != nil {
		if common.KindOf(err) == common.KindProtocol {
			return protocol.Response{}, err
		}
		if errors.Is(err, io.EOF) {
			return protocol.Response{}, common.Connection(ErrClosedByPeer)
		}
		return protocol.Response{}, common.Connection(err)
	}
	return protocol.DecodeResponse(line)
}

func (c *Client) readLine() ([]byte, error) {
	var line []byte
	for {
		chunk, isPrefix, err := c.reader.ReadLine()
		if err != nil {
			return nil, err
		}
		line = append(line, chunk...)
		if len(line) > c.opts.MaxResponse {
			return nil, common.Protocol("response exceeds %d bytes", c.opts.MaxResponse)
		}
		if !isPrefix {
			return line, nil
		}
	}
}

// Connected reports whether Connect succeeded and Close was not called.
func (c *Client) Connected() bool { return c.conn != nil }

func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
