package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/presencelink/presencelink/internal/ipc"
)

// fakeTransport is an in-memory Discord client. Responses produced by
// onWrite are queued and handed out at most chunk bytes per Read.
type fakeTransport struct {
	writes  []Frame
	inbox   []byte
	chunk   int
	onWrite func(f Frame) [][]byte

	readErr    error
	shortWrite bool
	closed     int
}

func (t *fakeTransport) Read(capacity int) ([]byte, error) {
	if len(t.inbox) == 0 {
		if t.readErr != nil {
			return nil, t.readErr
		}
		return []byte{}, nil
	}
	n := min(capacity, len(t.inbox))
	if t.chunk > 0 {
		n = min(n, t.chunk)
	}
	out := append([]byte(nil), t.inbox[:n]...)
	t.inbox = t.inbox[n:]
	return out, nil
}

func (t *fakeTransport) Write(opcode int32, payload string) (int, error) {
	f := Frame{Opcode: opcode, Body: []byte(payload)}
	t.writes = append(t.writes, f)
	if t.onWrite != nil {
		for _, r := range t.onWrite(f) {
			t.inbox = append(t.inbox, r...)
		}
	}
	n := ipc.HeaderSize + len(payload)
	if t.shortWrite {
		n--
	}
	return n, nil
}

func (t *fakeTransport) Close() error {
	t.closed++
	return nil
}

func (t *fakeTransport) queue(op int32, body string) {
	t.inbox = append(t.inbox, ipc.EncodeFrame(op, []byte(body))...)
}

const readyBody = `{"cmd":"DISPATCH","evt":"READY","data":{"v":1,"user":{"id":"42","username":"tester"}}}`

// discord answers the handshake with READY and echoes every command's nonce.
func discord(t *testing.T) func(f Frame) [][]byte {
	return func(f Frame) [][]byte {
		switch f.Opcode {
		case OpHandshake:
			return [][]byte{ipc.EncodeFrame(OpFrame, []byte(readyBody))}
		case OpFrame:
			var cmd struct {
				Cmd   string `json:"cmd"`
				Nonce string `json:"nonce"`
			}
			require.NoError(t, json.Unmarshal(f.Body, &cmd))
			resp, _ := json.Marshal(map[string]interface{}{
				"cmd":   cmd.Cmd,
				"nonce": cmd.Nonce,
				"data":  map[string]interface{}{},
			})
			return [][]byte{ipc.EncodeFrame(OpFrame, resp)}
		}
		return nil
	}
}

func testOptions() Options {
	return Options{
		ClientID:         "123",
		HandshakeTimeout: time.Second,
		PollInterval:     time.Millisecond,
	}
}

func handshaken(t *testing.T, tr *fakeTransport) *Client {
	t.Helper()
	c := NewClient(tr, testOptions())
	require.NoError(t, c.Handshake(context.Background()))
	return c
}

func TestHandshake(t *testing.T) {
	tr := &fakeTransport{chunk: 3, onWrite: discord(t)}
	c := NewClient(tr, testOptions())

	require.NoError(t, c.Handshake(context.Background()))

	require.Len(t, tr.writes, 1)
	require.Equal(t, OpHandshake, tr.writes[0].Opcode)
	require.JSONEq(t, `{"v":1,"client_id":"123"}`, string(tr.writes[0].Body))

	require.NotNil(t, c.User())
	require.Equal(t, "tester", c.User().Username)
}

func TestHandshakeErrorEvent(t *testing.T) {
	tr := &fakeTransport{}
	tr.queue(OpFrame, `{"cmd":"DISPATCH","evt":"ERROR","data":{"code":4000,"message":"Invalid Client ID"}}`)
	c := NewClient(tr, testOptions())

	err := c.Handshake(context.Background())
	var rpcErr *Error
	require.ErrorAs(t, err, &rpcErr)
	require.Equal(t, 4000, rpcErr.Code)
	require.Equal(t, "Invalid Client ID", rpcErr.Message)
	require.NotErrorIs(t, err, ErrClosedByPeer)
}

func TestHandshakeCloseFrame(t *testing.T) {
	tr := &fakeTransport{}
	tr.queue(OpClose, `{"code":4000,"message":"Invalid Client ID"}`)
	c := NewClient(tr, testOptions())

	err := c.Handshake(context.Background())
	require.ErrorIs(t, err, ErrClosedByPeer)

	var rpcErr *Error
	require.ErrorAs(t, err, &rpcErr)
	require.Equal(t, 4000, rpcErr.Code)
}

func TestHandshakeAnswersPing(t *testing.T) {
	tr := &fakeTransport{}
	tr.queue(OpPing, `{"t":1}`)
	tr.queue(OpFrame, readyBody)
	c := NewClient(tr, testOptions())

	require.NoError(t, c.Handshake(context.Background()))
	require.Len(t, tr.writes, 2)
	require.Equal(t, OpPong, tr.writes[1].Opcode)
	require.Equal(t, `{"t":1}`, string(tr.writes[1].Body))
}

func TestHandshakeTimeout(t *testing.T) {
	tr := &fakeTransport{}
	opts := testOptions()
	opts.HandshakeTimeout = 30 * time.Millisecond
	c := NewClient(tr, opts)

	err := c.Handshake(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHandshakeSkipsUnrelatedDispatch(t *testing.T) {
	tr := &fakeTransport{}
	tr.queue(OpFrame, `{"cmd":"DISPATCH","evt":"ACTIVITY_JOIN","data":{}}`)
	tr.queue(OpFrame, readyBody)
	c := NewClient(tr, testOptions())

	require.NoError(t, c.Handshake(context.Background()))
}

func TestSetActivity(t *testing.T) {
	tr := &fakeTransport{chunk: 5, onWrite: discord(t)}
	c := handshaken(t, tr)

	act := NewActivity(WithDetails("Editing main.go"), WithState("Workspace: presencelink"))
	require.NoError(t, c.SetActivity(context.Background(), act))

	require.Len(t, tr.writes, 2)
	sent := tr.writes[1]
	require.Equal(t, OpFrame, sent.Opcode)

	var cmd struct {
		Cmd  string `json:"cmd"`
		Args struct {
			PID      int             `json:"pid"`
			Activity json.RawMessage `json:"activity"`
		} `json:"args"`
		Nonce string `json:"nonce"`
	}
	require.NoError(t, json.Unmarshal(sent.Body, &cmd))
	require.Equal(t, CmdSetActivity, cmd.Cmd)
	require.NotEmpty(t, cmd.Nonce)
	require.Equal(t, c.pid, cmd.Args.PID)

	var got Activity
	require.NoError(t, json.Unmarshal(cmd.Args.Activity, &got))
	require.Equal(t, "Editing main.go", got.Details)
	require.Equal(t, "Workspace: presencelink", got.State)
}

func TestClearActivitySendsNull(t *testing.T) {
	tr := &fakeTransport{onWrite: discord(t)}
	c := handshaken(t, tr)

	require.NoError(t, c.ClearActivity(context.Background()))

	var cmd struct {
		Args map[string]json.RawMessage `json:"args"`
	}
	require.NoError(t, json.Unmarshal(tr.writes[1].Body, &cmd))
	require.Equal(t, "null", string(cmd.Args["activity"]))
}

func TestSetActivityWaitsForMatchingNonce(t *testing.T) {
	tr := &fakeTransport{onWrite: discord(t)}
	c := handshaken(t, tr)

	tr.onWrite = func(f Frame) [][]byte {
		var cmd struct {
			Nonce string `json:"nonce"`
		}
		require.NoError(t, json.Unmarshal(f.Body, &cmd))
		other := ipc.EncodeFrame(OpFrame, []byte(`{"cmd":"SET_ACTIVITY","nonce":"someone-else","evt":"ERROR","data":{"code":1,"message":"not ours"}}`))
		ours := ipc.EncodeFrame(OpFrame, []byte(`{"cmd":"SET_ACTIVITY","nonce":"`+cmd.Nonce+`","data":{}}`))
		return [][]byte{other, ours}
	}

	require.NoError(t, c.SetActivity(context.Background(), NewActivity(WithDetails("x"))))
}

func TestSetActivityErrorResponse(t *testing.T) {
	tr := &fakeTransport{onWrite: discord(t)}
	c := handshaken(t, tr)

	tr.onWrite = func(f Frame) [][]byte {
		var cmd struct {
			Nonce string `json:"nonce"`
		}
		require.NoError(t, json.Unmarshal(f.Body, &cmd))
		resp := `{"cmd":"SET_ACTIVITY","evt":"ERROR","nonce":"` + cmd.Nonce + `","data":{"code":4002,"message":"child \"activity\" fails"}}`
		return [][]byte{ipc.EncodeFrame(OpFrame, []byte(resp))}
	}

	err := c.SetActivity(context.Background(), NewActivity(WithDetails("x")))
	var rpcErr *Error
	require.ErrorAs(t, err, &rpcErr)
	require.Equal(t, 4002, rpcErr.Code)
}

func TestSetActivityRejectsInvalid(t *testing.T) {
	tr := &fakeTransport{onWrite: discord(t)}
	c := handshaken(t, tr)

	err := c.SetActivity(context.Background(), NewActivity(WithType(ActivityStreaming)))
	require.ErrorIs(t, err, ErrMissingStreamURL)
	require.Len(t, tr.writes, 1, "invalid activity must not be sent")
}

func TestShortWriteIsAnError(t *testing.T) {
	tr := &fakeTransport{shortWrite: true}
	c := NewClient(tr, testOptions())

	err := c.Handshake(context.Background())
	require.ErrorIs(t, err, io.ErrShortWrite)
}

func TestEOFMidFrame(t *testing.T) {
	tr := &fakeTransport{readErr: io.EOF}
	frame := ipc.EncodeFrame(OpFrame, []byte(readyBody))
	tr.inbox = frame[:len(frame)-4]
	c := NewClient(tr, testOptions())

	err := c.Handshake(context.Background())
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestEOFBetweenFrames(t *testing.T) {
	tr := &fakeTransport{readErr: io.EOF}
	c := NewClient(tr, testOptions())

	err := c.Handshake(context.Background())
	require.ErrorIs(t, err, io.EOF)
}

func TestCloseSendsCloseFrame(t *testing.T) {
	tr := &fakeTransport{onWrite: discord(t)}
	c := handshaken(t, tr)

	require.NoError(t, c.Close())
	require.Equal(t, OpClose, tr.writes[len(tr.writes)-1].Opcode)
	require.Equal(t, 1, tr.closed)
}

func TestWaitAnswersPingUntilClose(t *testing.T) {
	tr := &fakeTransport{onWrite: discord(t)}
	c := handshaken(t, tr)

	tr.queue(OpPing, `{"n":1}`)
	tr.queue(OpFrame, `{"cmd":"DISPATCH","evt":"ACTIVITY_JOIN","data":{}}`)
	tr.queue(OpClose, `{"code":1000,"message":"bye"}`)

	err := c.Wait(context.Background())
	require.ErrorIs(t, err, ErrClosedByPeer)

	last := tr.writes[len(tr.writes)-1]
	require.Equal(t, OpPong, last.Opcode)
	require.Equal(t, `{"n":1}`, string(last.Body))
}

func TestWaitReturnsOnCancel(t *testing.T) {
	tr := &fakeTransport{onWrite: discord(t)}
	c := handshaken(t, tr)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := c.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

// chattyTransport never returns an empty read: every Read yields another
// complete unrelated dispatch frame.
type chattyTransport struct {
	frame []byte
	reads int
}

func newChattyTransport() *chattyTransport {
	return &chattyTransport{frame: ipc.EncodeFrame(OpFrame, []byte(`{"cmd":"DISPATCH","evt":"OTHER"}`))}
}

func (t *chattyTransport) Read(int) ([]byte, error) {
	t.reads++
	return t.frame, nil
}

func (t *chattyTransport) Write(opcode int32, payload string) (int, error) {
	return ipc.HeaderSize + len(payload), nil
}

func (t *chattyTransport) Close() error { return nil }

func TestHandshakeTimesOutUnderContinuousTraffic(t *testing.T) {
	tr := newChattyTransport()
	opts := testOptions()
	opts.HandshakeTimeout = 50 * time.Millisecond
	c := NewClient(tr, opts)

	done := make(chan error, 1)
	go func() { done <- c.Handshake(context.Background()) }()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.DeadlineExceeded)
		require.Positive(t, tr.reads)
	case <-time.After(2 * time.Second):
		t.Fatal("Handshake did not return after its timeout")
	}
}

func TestWaitReturnsOnCancelUnderContinuousTraffic(t *testing.T) {
	c := NewClient(newChattyTransport(), testOptions())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- c.Wait(ctx) }()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after cancellation")
	}
}

func TestSetActivityHonorsContextUnderContinuousTraffic(t *testing.T) {
	c := NewClient(newChattyTransport(), testOptions())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.SetActivity(ctx, &Activity{Details: "busy"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestDialRequiresClientID(t *testing.T) {
	_, err := Dial(context.Background(), Options{})
	require.ErrorIs(t, err, ErrMissingClientID)
}

func TestDial(t *testing.T) {
	orig := connectTransport
	defer func() { connectTransport = orig }()

	tr := &fakeTransport{onWrite: discord(t)}
	connectTransport = func() (Transport, string, error) {
		return tr, "/run/user/1000/discord-ipc-0", nil
	}

	c, err := Dial(context.Background(), testOptions())
	require.NoError(t, err)
	require.Equal(t, "/run/user/1000/discord-ipc-0", c.Endpoint())
	require.Equal(t, 0, tr.closed)
}

func TestDialClosesTransportOnHandshakeFailure(t *testing.T) {
	orig := connectTransport
	defer func() { connectTransport = orig }()

	tr := &fakeTransport{}
	tr.queue(OpClose, `{"code":4000,"message":"Invalid Client ID"}`)
	connectTransport = func() (Transport, string, error) {
		return tr, "/run/user/1000/discord-ipc-0", nil
	}

	_, err := Dial(context.Background(), testOptions())
	require.ErrorIs(t, err, ErrClosedByPeer)
	require.Equal(t, 1, tr.closed)
}

func TestDialPropagatesConnectError(t *testing.T) {
	orig := connectTransport
	defer func() { connectTransport = orig }()

	connectTransport = func() (Transport, string, error) {
		return nil, "", ipc.ErrNoEndpointFound
	}

	_, err := Dial(context.Background(), testOptions())
	require.True(t, errors.Is(err, ipc.ErrNoEndpointFound))
}
