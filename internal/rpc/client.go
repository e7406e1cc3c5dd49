// Package rpc speaks the Discord rich presence protocol over an ipc.Conn:
// the handshake, SET_ACTIVITY, ping/pong and close frames. It also
// reassembles frames from the raw byte reads the transport returns.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/presencelink/presencelink/internal/ipc"
	"github.com/presencelink/presencelink/internal/logging"
)

// Transport is the byte-level connection used by Client. *ipc.Conn
// implements it.
type Transport interface {
	Read(capacity int) ([]byte, error)
	Write(opcode int32, payload string) (int, error)
	Close() error
}

const (
	defaultHandshakeTimeout = 5 * time.Second
	defaultPollInterval     = 20 * time.Millisecond
	readChunk               = 4096
)

// Options configures a Client.
type Options struct {
	// ClientID is the Discord application id.
	ClientID string

	// HandshakeTimeout bounds the wait for READY. Zero means 5s.
	HandshakeTimeout time.Duration

	// PollInterval is the sleep between empty reads of the non-blocking
	// transport. Zero means 20ms.
	PollInterval time.Duration

	// Logger may be nil.
	Logger *logging.Logger
}

func (o Options) withDefaults() Options {
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = defaultHandshakeTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaultPollInterval
	}
	if o.Logger == nil {
		o.Logger = logging.Nop()
	}
	return o
}

// connectTransport is replaced in tests.
var connectTransport = func() (Transport, string, error) {
	conn, err := ipc.Connect()
	if err != nil {
		return nil, "", err
	}
	return conn, conn.Endpoint(), nil
}

// Client is a connected, handshaken rich presence session. It is not safe
// for concurrent use.
type Client struct {
	transport Transport
	opts      Options
	logger    *logging.Logger
	buf       frameBuffer
	pid       int

	endpoint string
	user     *User
}

// Dial connects to the Discord client and performs the handshake. The
// transport is closed again if the handshake fails.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	if opts.ClientID == "" {
		return nil, ErrMissingClientID
	}

	t, endpoint, err := connectTransport()
	if err != nil {
		return nil, err
	}

	c := NewClient(t, opts)
	c.endpoint = endpoint
	c.logger.Debug().Str("endpoint", endpoint).Msg("Connected to discord ipc")

	if err := c.Handshake(ctx); err != nil {
		t.Close()
		return nil, err
	}
	return c, nil
}

// NewClient wraps an already connected transport. Call Handshake before
// sending commands.
func NewClient(t Transport, opts Options) *Client {
	opts = opts.withDefaults()
	return &Client{
		transport: t,
		opts:      opts,
		logger:    opts.Logger.WithComponent("rpc"),
		pid:       os.Getpid(),
	}
}

// Endpoint returns the ipc endpoint used by Dial.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// User returns the user from the READY event, or nil before the handshake.
func (c *Client) User() *User {
	return c.user
}

// Handshake sends the opening frame and waits for READY.
func (c *Client) Handshake(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.HandshakeTimeout)
	defer cancel()

	hs := &Handshake{Version: ProtocolVersion, ClientID: c.opts.ClientID}
	data, err := hs.Encode()
	if err != nil {
		return fmt.Errorf("encode handshake: %w", err)
	}
	if err := c.send(OpHandshake, data); err != nil {
		return fmt.Errorf("send handshake: %w", err)
	}

	for {
		msg, err := c.nextMessage(ctx)
		if err != nil {
			return fmt.Errorf("handshake: %w", err)
		}
		if err := msg.Err(); err != nil {
			return err
		}
		if msg.Cmd == CmdDispatch && msg.Evt == EvtReady {
			ready, err := msg.ReadyData()
			if err != nil {
				return err
			}
			c.user = ready.User
			if c.user != nil {
				c.logger.Info().Str("user", c.user.Username).Msg("Discord client ready")
			}
			return nil
		}
		c.logger.Debug().Str("cmd", msg.Cmd).Str("evt", msg.Evt).Msg("Ignoring message before READY")
	}
}

// SetActivity replaces the presence. A nil activity clears it.
func (c *Client) SetActivity(ctx context.Context, activity *Activity) error {
	if activity != nil {
		if err := activity.Validate(); err != nil {
			return err
		}
	}

	cmd := NewCommand(CmdSetActivity, SetActivityArgs{PID: c.pid, Activity: activity})
	resp, err := c.call(ctx, cmd)
	if err != nil {
		return err
	}
	return resp.Err()
}

// ClearActivity removes the presence.
func (c *Client) ClearActivity(ctx context.Context) error {
	return c.SetActivity(ctx, nil)
}

// Wait keeps the session alive, answering pings, until the peer closes the
// connection or ctx is done. It always returns a non-nil error: ctx.Err()
// on cancellation, otherwise the reason the connection ended.
func (c *Client) Wait(ctx context.Context) error {
	for {
		msg, err := c.nextMessage(ctx)
		if err != nil {
			return err
		}
		c.logger.Debug().Str("cmd", msg.Cmd).Str("evt", msg.Evt).Msg("Received message while idle")
	}
}

// Close sends a CLOSE frame and releases the transport. The CLOSE frame is
// best effort; the transport is always closed.
func (c *Client) Close() error {
	if err := c.send(OpClose, []byte("{}")); err != nil {
		c.logger.Debug().Err(err).Msg("Failed to send close frame")
	}
	return c.transport.Close()
}

// call sends cmd and waits for the response carrying its nonce.
func (c *Client) call(ctx context.Context, cmd *Command) (*Message, error) {
	data, err := cmd.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", cmd.Cmd, err)
	}
	if err := c.send(OpFrame, data); err != nil {
		return nil, fmt.Errorf("send %s: %w", cmd.Cmd, err)
	}

	for {
		msg, err := c.nextMessage(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", cmd.Cmd, err)
		}
		if msg.Nonce == cmd.Nonce {
			return msg, nil
		}
		c.logger.Debug().Str("cmd", msg.Cmd).Str("evt", msg.Evt).Msg("Ignoring unrelated message")
	}
}

// send writes one frame and treats a short write as an error, since the
// remaining bytes can't be resent without corrupting the stream.
func (c *Client) send(op int32, payload []byte) error {
	n, err := c.transport.Write(op, string(payload))
	if err != nil {
		return err
	}
	if want := ipc.HeaderSize + len(payload); n != want {
		return fmt.Errorf("%w: wrote %d of %d bytes", io.ErrShortWrite, n, want)
	}
	c.logger.Debug().Str("op", OpName(op)).Int("bytes", n).Msg("Sent frame")
	return nil
}

// nextMessage returns the next OpFrame message, answering pings and turning
// CLOSE frames into errors along the way.
func (c *Client) nextMessage(ctx context.Context) (*Message, error) {
	for {
		f, err := c.readFrame(ctx)
		if err != nil {
			return nil, err
		}

		switch f.Opcode {
		case OpFrame:
			return DecodeMessage(f.Body)
		case OpClose:
			return nil, decodeClose(f.Body)
		case OpPing:
			if err := c.send(OpPong, f.Body); err != nil {
				return nil, fmt.Errorf("send pong: %w", err)
			}
		case OpPong:
		default:
			c.logger.Debug().Int32("op", f.Opcode).Msg("Ignoring frame with unknown opcode")
		}
	}
}

// readFrame reads until a whole frame is buffered. Empty reads from the
// non-blocking transport are retried every PollInterval. ctx is checked
// before every frame, so steady traffic can't hold off cancellation.
func (c *Client) readFrame(ctx context.Context) (Frame, error) {
	for {
		// A peer that never goes quiet must not outlive the deadline.
		if err := ctx.Err(); err != nil {
			return Frame{}, err
		}

		f, ok, err := c.buf.next()
		if err != nil {
			return Frame{}, err
		}
		if ok {
			return f, nil
		}

		data, err := c.transport.Read(readChunk)
		if len(data) > 0 {
			c.buf.write(data)
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) && c.buf.buffered() > 0 {
				return Frame{}, io.ErrUnexpectedEOF
			}
			return Frame{}, err
		}

		select {
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		case <-time.After(c.opts.PollInterval):
		}
	}
}

// MarshalActivity renders an activity as the JSON sent in SET_ACTIVITY.
func MarshalActivity(a *Activity) ([]byte, error) {
	return json.Marshal(a)
}
