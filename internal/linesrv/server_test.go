package linesrv

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/devaloi/chatrelay/internal/domain"
	"github.com/devaloi/chatrelay/internal/history"
	"github.com/devaloi/chatrelay/internal/hub"
	"github.com/devaloi/chatrelay/internal/protocol"
	"github.com/devaloi/chatrelay/internal/registry"
	"github.com/devaloi/chatrelay/internal/router"
	"github.com/devaloi/chatrelay/internal/testutil"
)

type lineClient struct {
	conn   net.Conn
	reader *bufio.Reader
}

func dial(t *testing.T, addr string) *lineClient {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &lineClient{conn: conn, reader: bufio.NewReader(conn)}
}

func (c *lineClient) send(t *testing.T, req protocol.Request) {
	t.Helper()
	data, err := protocol.Encode(req)
	require.NoError(t, err)
	_, err = c.conn.Write(append(data, '\n'))
	require.NoError(t, err)
}

func (c *lineClient) until(t *testing.T, action string) protocol.Response {
	t.Helper()
	for {
		require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		line, err := c.reader.ReadBytes('\n')
		require.NoError(t, err)
		resp, err := protocol.DecodeResponse(line)
		require.NoError(t, err)
		if resp.Action == action {
			return resp
		}
	}
}

func startServer(t *testing.T) (*Server, string, context.CancelFunc) {
	t.Helper()
	hist := history.New()
	r := router.New(hist, registry.New(hist), hub.New(testutil.DiscardLogger()),
		testutil.NewMockStore(), testutil.DiscardLogger(), router.Options{RequireRegisteredSender: true})
	srv := New(r, testutil.DiscardLogger(), Options{SendBuffer: 8})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	return srv, ln.Addr().String(), cancel
}

func TestLineGroupChat(t *testing.T) {
	t.Parallel()
	_, addr, _ := startServer(t)

	alice := dial(t, addr)
	bob := dial(t, addr)
	alice.send(t, protocol.Request{Action: protocol.ActionRegister, Username: "alice"})
	alice.until(t, protocol.ReplyRegistered)
	bob.send(t, protocol.Request{Action: protocol.ActionRegister, Username: "bob"})
	bob.until(t, protocol.ReplyRegistered)

	alice.send(t, protocol.Request{Action: protocol.ActionCreateGroup, GroupName: "team"})
	alice.until(t, protocol.ReplyGroupCreated)
	alice.send(t, protocol.Request{Action: protocol.ActionSendMessage, To: "team", Message: "hello team", IsGroup: true})
	alice.until(t, protocol.ReplyMessageSent)

	for {
		evt := bob.until(t, protocol.ReplyEvent).Event
		if evt.Type == domain.EventGroupMessage {
			require.Equal(t, "team", evt.Group)
			require.Equal(t, "hello team", evt.Message.Body)
			break
		}
	}

	bob.send(t, protocol.Request{Action: protocol.ActionGetHistory, Target: "team", IsGroup: true})
	hist := bob.until(t, protocol.ReplyHistory)
	require.Len(t, hist.Messages, 1)
}

func TestLineErrorsAreReplies(t *testing.T) {
	t.Parallel()
	_, addr, _ := startServer(t)
	c := dial(t, addr)

	_, err := c.conn.Write([]byte("not json\n"))
	require.NoError(t, err)
	resp := c.until(t, protocol.ReplyError)
	require.Equal(t, protocol.CodeBadRequest, resp.Code)

	c.send(t, protocol.Request{Action: protocol.ActionRegister, Username: "   "})
	resp = c.until(t, protocol.ReplyError)
	require.Equal(t, "INVALID_NAME", resp.Code)
}

func TestShutdownClosesConnections(t *testing.T) {
	t.Parallel()
	srv, addr, cancel := startServer(t)
	c := dial(t, addr)
	c.send(t, protocol.Request{Action: protocol.ActionGetUsers})
	c.until(t, protocol.ReplyUserList)
	require.Equal(t, 1, srv.Connections())

	cancel()
	require.Eventually(t, func() bool { return srv.Connections() == 0 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err := c.reader.ReadBytes('\n')
	require.Error(t, err)
}
