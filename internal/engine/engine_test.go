package engine

import (
	"context"
	"errors"
	"net"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/draconet/zoneserver/internal/config"
	"github.com/draconet/zoneserver/internal/game/events"
	"github.com/draconet/zoneserver/internal/game/world"
	"github.com/draconet/zoneserver/internal/identity"
	"github.com/draconet/zoneserver/internal/protocol/extension"
	"github.com/draconet/zoneserver/internal/protocol/extmsgs"
	"github.com/draconet/zoneserver/internal/protocol/frame"
	"github.com/draconet/zoneserver/internal/protocol/packet"
	"github.com/draconet/zoneserver/internal/protocol/payload"
	"github.com/draconet/zoneserver/internal/protocol/sysmsgs"
	"github.com/draconet/zoneserver/internal/protocol/vars"
)

// disconnectSink records disconnect notifications.
type disconnectSink struct {
	events.NopSink
	mu      sync.Mutex
	entries []string
}

func (s *disconnectSink) PlayerDisconnected(playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, playerID)
}

func (s *disconnectSink) disconnects() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.entries))
	copy(out, s.entries)
	return out
}

func testConfig() config.Config {
	return config.Config{
		Server: config.ServerConfig{
			Host:         "127.0.0.1",
			Port:         9339,
			LoginTimeout: 5 * time.Second,
		},
		Room: config.RoomConfig{
			Zone:            "dragonwatch",
			DefaultCapacity: 8,
		},
		Logging: config.LoggingConfig{Level: "info", Format: "json"},
	}
}

func newTestEngine(t *testing.T, sink events.Sink) *Engine {
	t.Helper()
	if sink == nil {
		sink = events.NopSink{}
	}
	m := world.NewManager(8, map[string]int{"default/closet": 1}, events.NopSink{}, zap.NewNop())
	z, err := m.CreateZone("dragonwatch")
	require.NoError(t, err)
	_, err = m.CreateRoomGroup(z, "default")
	require.NoError(t, err)
	_, err = m.CreateRoom(z, "default", "lagoon")
	require.NoError(t, err)
	_, err = m.CreateRoom(z, "default", "closet")
	require.NoError(t, err)

	provider := identity.NewStaticProvider()
	provider.Add("tok-ara", identity.Identity{AccountID: "a1", SaveID: "ara", DisplayName: "Ara"})
	provider.Add("tok-bek", identity.Identity{AccountID: "a2", SaveID: "bek", DisplayName: "Bek"})

	e, err := New(testConfig(), m, z, provider, sink, zap.NewNop())
	require.NoError(t, err)
	return e
}

// testClient drives one live session from the client side of a pipe.
type testClient struct {
	t    *testing.T
	raw  net.Conn
	conn *frame.Conn
	done chan error
}

func connect(t *testing.T, e *Engine) *testClient {
	t.Helper()
	client, server := net.Pipe()
	c := &testClient{
		t:    t,
		raw:  client,
		conn: frame.NewConn(client, 0, 0),
		done: make(chan error, 1),
	}
	go func() {
		c.done <- e.HandleSession(context.Background(), server, "pipe")
	}()
	t.Cleanup(func() { _ = client.Close() })
	return c
}

func (c *testClient) send(channelID byte, pkt packet.Packet) {
	c.t.Helper()
	body, err := packet.Encode(channelID, pkt)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteFrame(body, false))
}

func (c *testClient) sendMsg(msg extension.Message, roomID int32) {
	c.t.Helper()
	params, err := msg.Build()
	require.NoError(c.t, err)
	c.send(extension.ChannelID, &extension.Packet{
		Ext:    extension.EngineExtension,
		Cmd:    msg.Command(),
		RoomID: roomID,
		Params: params,
	})
}

func (c *testClient) read() (byte, int16, *payload.Payload) {
	c.t.Helper()
	_ = c.raw.SetReadDeadline(time.Now().Add(2 * time.Second))
	body, err := c.conn.ReadFrame()
	require.NoError(c.t, err)
	env, err := payload.Decode(body)
	require.NoError(c.t, err)
	ch, err := env.GetByte(packet.KeyChannel)
	require.NoError(c.t, err)
	action, err := env.GetShort(packet.KeyAction)
	require.NoError(c.t, err)
	params, err := env.GetObject(packet.KeyParams)
	require.NoError(c.t, err)
	return ch, action, params
}

// readMsg reads one extension message off the wire.
func (c *testClient) readMsg() (string, int32, *payload.Payload) {
	c.t.Helper()
	ch, action, params := c.read()
	require.Equal(c.t, extension.ChannelID, ch)
	require.Equal(c.t, extension.PacketID, action)
	pkt := &extension.Packet{}
	require.NoError(c.t, pkt.Parse(params))
	return pkt.Cmd, pkt.RoomID, pkt.Params
}

func (c *testClient) handshake() string {
	c.t.Helper()
	c.send(sysmsgs.ChannelID, &sysmsgs.HandshakeRequest{APIVersion: "1.6", ClientType: "test"})
	ch, action, params := c.read()
	require.Equal(c.t, sysmsgs.ChannelID, ch)
	require.Equal(c.t, sysmsgs.IDHandshake, action)
	resp := &sysmsgs.HandshakeResponse{}
	require.NoError(c.t, resp.Parse(params))
	require.NotEmpty(c.t, resp.SessionToken)
	return resp.SessionToken
}

func (c *testClient) login(token string) *sysmsgs.LoginResponse {
	c.t.Helper()
	c.send(sysmsgs.ChannelID, &sysmsgs.LoginRequest{Token: token, ZoneName: "dragonwatch"})
	ch, action, params := c.read()
	require.Equal(c.t, sysmsgs.ChannelID, ch)
	require.Equal(c.t, sysmsgs.IDLogin, action)
	resp := &sysmsgs.LoginResponse{}
	require.NoError(c.t, resp.Parse(params))
	return resp
}

func (c *testClient) joinRoom(name string) {
	c.t.Helper()
	c.sendMsg(&extmsgs.JoinRoom{RoomName: name}, extension.NoRoom)
	ch, action, _ := c.read()
	require.Equal(c.t, sysmsgs.ChannelID, ch)
	require.Equal(c.t, sysmsgs.IDPlayerJoinRoom, action)
}

func TestHandshake(t *testing.T) {
	e := newTestEngine(t, nil)
	c := connect(t, e)

	c.send(sysmsgs.ChannelID, &sysmsgs.HandshakeRequest{APIVersion: "1.6", ClientType: "test"})
	ch, action, params := c.read()
	assert.Equal(t, sysmsgs.ChannelID, ch)
	assert.Equal(t, sysmsgs.IDHandshake, action)

	resp := &sysmsgs.HandshakeResponse{}
	require.NoError(t, resp.Parse(params))
	assert.NotEmpty(t, resp.SessionToken)
	assert.Equal(t, int32(frame.CompressThreshold), resp.CompressionThreshold)
}

func TestHandshakeRepeatKeepsToken(t *testing.T) {
	e := newTestEngine(t, nil)
	c := connect(t, e)

	first := c.handshake()
	second := c.handshake()
	assert.Equal(t, first, second)
}

func TestLoginSuccess(t *testing.T) {
	e := newTestEngine(t, nil)
	c := connect(t, e)
	c.handshake()

	resp := c.login("tok-ara")
	assert.True(t, resp.Success)
	assert.Equal(t, "ara", resp.PlayerID)
	assert.Equal(t, "Ara", resp.DisplayName)
	assert.Equal(t, 1, e.PlayerCount())
}

func TestLoginInvalidToken(t *testing.T) {
	e := newTestEngine(t, nil)
	c := connect(t, e)
	c.handshake()

	resp := c.login("tok-bogus")
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Reason)

	// The connection is closed after a failed login.
	_ = c.raw.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err := c.conn.ReadFrame()
	assert.Error(t, err)
	assert.Zero(t, e.PlayerCount())
}

func TestLoginUnknownZone(t *testing.T) {
	e := newTestEngine(t, nil)
	c := connect(t, e)
	c.handshake()

	c.send(sysmsgs.ChannelID, &sysmsgs.LoginRequest{Token: "tok-ara", ZoneName: "elsewhere"})
	_, action, params := c.read()
	require.Equal(t, sysmsgs.IDLogin, action)
	resp := &sysmsgs.LoginResponse{}
	require.NoError(t, resp.Parse(params))
	assert.False(t, resp.Success)
}

func TestLoginDuplicateIdentity(t *testing.T) {
	sink := &disconnectSink{}
	e := newTestEngine(t, sink)
	c1 := connect(t, e)
	c1.handshake()
	require.True(t, c1.login("tok-ara").Success)

	c2 := connect(t, e)
	c2.handshake()
	resp := c2.login("tok-ara")
	assert.False(t, resp.Success)
	assert.Equal(t, 1, e.PlayerCount())

	// The rejected session closes without a disconnect notification; the
	// established session never saw one either.
	select {
	case <-c2.done:
	case <-time.After(2 * time.Second):
		t.Fatal("rejected session did not close")
	}
	assert.Empty(t, sink.disconnects())
}

func TestPreAuthPacketsDropped(t *testing.T) {
	e := newTestEngine(t, nil)
	c := connect(t, e)

	// A room join before login is rejected by the gate without closing
	// the connection; a handshake and login still work afterwards.
	c.sendMsg(&extmsgs.JoinRoom{RoomName: "lagoon"}, extension.NoRoom)
	c.handshake()
	assert.True(t, c.login("tok-ara").Success)
}

func TestLoginDeadline(t *testing.T) {
	e := newTestEngine(t, nil)
	e.cfg.Server.LoginTimeout = 50 * time.Millisecond
	c := connect(t, e)

	// No login: the server closes the connection at the deadline.
	_ = c.raw.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err := c.conn.ReadFrame()
	assert.Error(t, err)

	select {
	case <-c.done:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end after login deadline")
	}
}

func TestJoinRoom(t *testing.T) {
	e := newTestEngine(t, nil)
	c := connect(t, e)
	c.handshake()
	require.True(t, c.login("tok-ara").Success)

	c.sendMsg(&extmsgs.JoinRoom{RoomName: "lagoon"}, extension.NoRoom)
	ch, action, params := c.read()
	assert.Equal(t, sysmsgs.ChannelID, ch)
	assert.Equal(t, sysmsgs.IDPlayerJoinRoom, action)

	join := &sysmsgs.PlayerJoinRoom{}
	require.NoError(t, join.Parse(params))
	assert.Equal(t, "ara", join.PlayerID)
	assert.False(t, join.Spectator)
}

func TestJoinRoomFull(t *testing.T) {
	e := newTestEngine(t, nil)
	c1 := connect(t, e)
	c1.handshake()
	require.True(t, c1.login("tok-ara").Success)
	c1.joinRoom("closet")

	c2 := connect(t, e)
	c2.handshake()
	require.True(t, c2.login("tok-bek").Success)

	c2.sendMsg(&extmsgs.JoinRoom{RoomName: "closet"}, extension.NoRoom)
	ch, action, params := c2.read()
	assert.Equal(t, sysmsgs.ChannelID, ch)
	assert.Equal(t, sysmsgs.IDGenericMessage, action)

	msg := &sysmsgs.GenericMessage{}
	require.NoError(t, msg.Parse(params))
	assert.Equal(t, sysmsgs.MsgTypeServerError, msg.MsgType)
	assert.Contains(t, msg.Text, "full")
}

func TestJoinUnknownRoom(t *testing.T) {
	e := newTestEngine(t, nil)
	c := connect(t, e)
	c.handshake()
	require.True(t, c.login("tok-ara").Success)

	c.sendMsg(&extmsgs.JoinRoom{RoomName: "atlantis"}, extension.NoRoom)
	_, action, params := c.read()
	assert.Equal(t, sysmsgs.IDGenericMessage, action)
	msg := &sysmsgs.GenericMessage{}
	require.NoError(t, msg.Parse(params))
	assert.Equal(t, sysmsgs.MsgTypeServerError, msg.MsgType)
}

func TestTimeSync(t *testing.T) {
	e := newTestEngine(t, nil)
	c := connect(t, e)
	c.handshake()
	require.True(t, c.login("tok-ara").Success)

	before := time.Now().UnixMilli()
	c.sendMsg(&extmsgs.TimeSync{}, extension.NoRoom)
	cmd, _, params := c.readMsg()
	require.Equal(t, extmsgs.CmdTimeSync, cmd)

	reply := &extmsgs.TimeSync{}
	require.NoError(t, reply.Parse(params))
	assert.GreaterOrEqual(t, reply.ServerTimeMillis, before)
}

func TestDateSync(t *testing.T) {
	e := newTestEngine(t, nil)
	c := connect(t, e)
	c.handshake()
	require.True(t, c.login("tok-ara").Success)

	c.sendMsg(&extmsgs.DateSync{}, extension.NoRoom)
	cmd, _, params := c.readMsg()
	require.Equal(t, extmsgs.CmdDateSync, cmd)

	reply := &extmsgs.DateSync{}
	require.NoError(t, reply.Parse(params))
	assert.NotEmpty(t, reply.Date)
}

// twoInRoom logs two clients in and puts both in the lagoon. The second
// joiner's broadcast to the first is drained.
func twoInRoom(t *testing.T, e *Engine) (*testClient, *testClient, int32) {
	t.Helper()
	c1 := connect(t, e)
	c1.handshake()
	require.True(t, c1.login("tok-ara").Success)
	c1.joinRoom("lagoon")

	c2 := connect(t, e)
	c2.handshake()
	require.True(t, c2.login("tok-bek").Success)
	c2.joinRoom("lagoon")

	// c1 sees c2 join.
	ch, action, _ := c1.read()
	require.Equal(t, sysmsgs.ChannelID, ch)
	require.Equal(t, sysmsgs.IDPlayerJoinRoom, action)

	r, ok := e.Zone().FindRoom("lagoon")
	require.True(t, ok)
	return c1, c2, r.ID()
}

func TestChatRelay(t *testing.T) {
	e := newTestEngine(t, nil)
	c1, c2, roomID := twoInRoom(t, e)

	c1.sendMsg(&extmsgs.ChatSend{Text: "hello lagoon"}, roomID)

	// The author gets the ack.
	cmd, _, params := c1.readMsg()
	require.Equal(t, extmsgs.CmdChatAck, cmd)
	ack := &extmsgs.ChatAck{}
	require.NoError(t, ack.Parse(params))
	assert.True(t, ack.Accepted)
	assert.Equal(t, "hello lagoon", ack.Text)

	// The other occupant gets the relayed line.
	cmd, gotRoom, params := c2.readMsg()
	require.Equal(t, extmsgs.CmdChatReceive, cmd)
	assert.Equal(t, roomID, gotRoom)
	recv := &extmsgs.ChatReceive{}
	require.NoError(t, recv.Parse(params))
	assert.Equal(t, "ara", recv.SenderID)
	assert.Equal(t, "Ara", recv.SenderName)
	assert.Equal(t, "hello lagoon", recv.Text)
}

type rejectingFilter struct{}

func (rejectingFilter) Filter(_ identity.Identity, _ string) (string, error) {
	return "", errors.New("language")
}

func TestChatBlocked(t *testing.T) {
	e := newTestEngine(t, nil)
	e.SetChatFilter(rejectingFilter{})
	c1, _, roomID := twoInRoom(t, e)

	c1.sendMsg(&extmsgs.ChatSend{Text: "something rude"}, roomID)

	cmd, _, params := c1.readMsg()
	require.Equal(t, extmsgs.CmdChatBlocked, cmd)
	blocked := &extmsgs.ChatBlocked{}
	require.NoError(t, blocked.Parse(params))
	assert.Equal(t, "language", blocked.Reason)
}

func TestSetUserVarsFansOut(t *testing.T) {
	e := newTestEngine(t, nil)
	c1, c2, roomID := twoInRoom(t, e)

	c1.sendMsg(&extmsgs.SetUserVars{
		Vars: []vars.Variable{vars.String("mood", "sunny")},
	}, roomID)

	cmd, gotRoom, params := c2.readMsg()
	require.Equal(t, extmsgs.CmdSetUserVars, cmd)
	assert.Equal(t, roomID, gotRoom)

	out := &extmsgs.SetUserVars{}
	require.NoError(t, out.Parse(params))
	assert.Equal(t, "ara", out.PlayerID)
	require.Len(t, out.Vars, 1)
	assert.Equal(t, "mood", out.Vars[0].Name)
	assert.Equal(t, "sunny", out.Vars[0].Value)
}

func TestSetPosVarsFansOut(t *testing.T) {
	e := newTestEngine(t, nil)
	c1, c2, roomID := twoInRoom(t, e)

	c1.sendMsg(&extmsgs.SetPosVars{X: 1.5, Y: -2, Z: 40, Rotation: 90}, roomID)

	cmd, _, params := c2.readMsg()
	require.Equal(t, extmsgs.CmdSetPosVars, cmd)

	out := &extmsgs.SetPosVars{}
	require.NoError(t, out.Parse(params))
	assert.Equal(t, "ara", out.PlayerID)
	assert.Equal(t, 1.5, out.X)
	assert.Equal(t, float64(90), out.Rotation)

	// Position landed in ara's object bag.
	r, ok := e.Zone().FindRoom("lagoon")
	require.True(t, ok)
	u, ok := r.UserFor("ara")
	require.True(t, ok)
	obj, ok := u.LoadObject(reflect.TypeOf(Position{}))
	require.True(t, ok)
	assert.Equal(t, Position{X: 1.5, Y: -2, Z: 40, Rotation: 90}, obj)
}

func TestSetRoomVariable(t *testing.T) {
	e := newTestEngine(t, nil)
	c1, c2, roomID := twoInRoom(t, e)

	c1.send(sysmsgs.ChannelID, &sysmsgs.SetRoomVariable{
		RoomID: roomID,
		Var:    vars.Int("round", 3),
	})

	ch, action, params := c2.read()
	require.Equal(t, sysmsgs.ChannelID, ch)
	require.Equal(t, sysmsgs.IDSetRoomVariable, action)

	out := &sysmsgs.SetRoomVariable{}
	require.NoError(t, out.Parse(params))
	assert.False(t, out.Removed)
	assert.Equal(t, "round", out.Var.Name)
	assert.Equal(t, int32(3), out.Var.Value)

	r, ok := e.Zone().FindRoom("lagoon")
	require.True(t, ok)
	v, ok := r.Variable("round")
	require.True(t, ok)
	assert.Equal(t, int32(3), v.Value)
}

func TestRemoveRoomVariable(t *testing.T) {
	e := newTestEngine(t, nil)
	c1, c2, roomID := twoInRoom(t, e)

	c1.send(sysmsgs.ChannelID, &sysmsgs.SetRoomVariable{
		RoomID: roomID,
		Var:    vars.Int("round", 3),
	})
	_, _, _ = c2.read() // change broadcast

	c1.send(sysmsgs.ChannelID, &sysmsgs.SetRoomVariable{
		RoomID:  roomID,
		Removed: true,
		Var:     vars.Variable{Name: "round"},
	})

	_, action, params := c2.read()
	require.Equal(t, sysmsgs.IDSetRoomVariable, action)
	out := &sysmsgs.SetRoomVariable{}
	require.NoError(t, out.Parse(params))
	assert.True(t, out.Removed)
	assert.Equal(t, "round", out.Var.Name)

	r, ok := e.Zone().FindRoom("lagoon")
	require.True(t, ok)
	_, ok = r.Variable("round")
	assert.False(t, ok)
}

func TestPublicChatGenericMessage(t *testing.T) {
	e := newTestEngine(t, nil)
	c1, c2, roomID := twoInRoom(t, e)

	c1.send(sysmsgs.ChannelID, &sysmsgs.GenericMessage{
		MsgType: sysmsgs.MsgTypePublicChat,
		RoomID:  roomID,
		Text:    "ahoy",
	})

	_, action, params := c2.read()
	require.Equal(t, sysmsgs.IDGenericMessage, action)
	out := &sysmsgs.GenericMessage{}
	require.NoError(t, out.Parse(params))
	assert.Equal(t, "ara", out.SenderID)
	assert.Equal(t, "ahoy", out.Text)
}

func TestLogout(t *testing.T) {
	e := newTestEngine(t, nil)
	c := connect(t, e)
	c.handshake()
	require.True(t, c.login("tok-ara").Success)

	c.send(sysmsgs.ChannelID, &sysmsgs.Logout{})

	select {
	case <-c.done:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end after logout")
	}
	assert.Zero(t, e.PlayerCount())
}

func TestJoinOwnerRoom(t *testing.T) {
	e := newTestEngine(t, nil)
	c1 := connect(t, e)
	c1.handshake()
	require.True(t, c1.login("tok-ara").Success)
	c1.joinRoom("lagoon")

	c2 := connect(t, e)
	c2.handshake()
	require.True(t, c2.login("tok-bek").Success)

	c2.sendMsg(&extmsgs.JoinOwnerRoom{OwnerName: "Ara"}, extension.NoRoom)
	ch, action, params := c2.read()
	assert.Equal(t, sysmsgs.ChannelID, ch)
	assert.Equal(t, sysmsgs.IDPlayerJoinRoom, action)

	join := &sysmsgs.PlayerJoinRoom{}
	require.NoError(t, join.Parse(params))
	assert.Equal(t, "bek", join.PlayerID)
}
