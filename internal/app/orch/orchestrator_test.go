package orch

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	full   bool
	closed bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrConnClosed
	}
	if c.full {
		return core.ErrBackpressure
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.frames))
	for _, f := range c.frames {
		var h core.Header
		_ = json.Unmarshal(f, &h)
		out = append(out, string(h.Type))
	}
	return out
}

// last decodes the most recent frame of the given type into v.
func (c *fakeConn) last(t *testing.T, typ core.EventType, v any) {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.frames) - 1; i >= 0; i-- {
		var h core.Header
		require.NoError(t, json.Unmarshal(c.frames[i], &h))
		if h.Type == typ {
			require.NoError(t, json.Unmarshal(c.frames[i], v))
			return
		}
	}
	t.Fatalf("no %s frame received", typ)
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

func newTestOrch() *Orchestrator {
	return New(app.NewRegistry(), app.NewDefaultDirectory(domain.DefaultHistoryLimit), app.SimplePolicy{})
}

func join(t *testing.T, o *Orchestrator, id domain.ParticipantID) *fakeConn {
	t.Helper()
	conn := &fakeConn{}
	_, err := o.Join(id, string(id), conn)
	require.NoError(t, err)
	return conn
}

func TestJoin_EventSequence(t *testing.T) {
	o := newTestOrch()

	alice := join(t, o, "alice")
	require.Equal(t, []string{"sessionAssigned", "roomDirectorySnapshot", "roomSync", "presenceSnapshot"}, alice.types())

	var dir core.RoomDirectorySnapshot
	alice.last(t, core.EventRoomDirectorySnapshot, &dir)
	require.Contains(t, dir.Rooms, domain.DefaultMessageRoom)
	require.Contains(t, dir.Rooms, domain.DefaultPresenceRoom)

	alice.reset()
	bob := join(t, o, "bob")
	require.Equal(t, []string{"sessionAssigned", "roomDirectorySnapshot", "roomSync", "presenceSnapshot"}, bob.types())
	require.Equal(t, []string{"participantJoined", "presenceSnapshot"}, alice.types())

	var snap core.PresenceSnapshot
	alice.last(t, core.EventPresenceSnapshot, &snap)
	require.Len(t, snap.Participants, 2)
	require.Equal(t, domain.ParticipantID("alice"), snap.Participants[0].ID)
	require.Equal(t, domain.DefaultMessageRoom, snap.Participants[1].RoomID)

	var rs core.RoomSync
	bob.last(t, core.EventRoomSync, &rs)
	require.Equal(t, domain.DefaultMessageRoom, rs.Room.ID)
	require.Len(t, rs.Participants, 2)
}

func TestJoin_Rejections(t *testing.T) {
	o := newTestOrch()
	join(t, o, "alice")

	_, err := o.Join("alice", "again", &fakeConn{})
	require.ErrorIs(t, err, domain.ErrAlreadyJoined)

	_, err = o.Join("bob", "", &fakeConn{})
	require.ErrorIs(t, err, domain.ErrUsernameEmpty)

	_, err = o.Join("carol", fmt.Sprintf("%037d", 0), &fakeConn{})
	require.ErrorIs(t, err, domain.ErrUsernameTooLong)

	require.Equal(t, 1, o.Registry.Len())
}

func TestSendMessage_EchoesAndPersists(t *testing.T) {
	o := newTestOrch()
	alice := join(t, o, "alice")
	bob := join(t, o, "bob")
	alice.reset()
	bob.reset()

	msg, err := o.SendMessage("alice", "hello")
	require.NoError(t, err)
	require.Equal(t, "alice", msg.Sender)

	for _, c := range []*fakeConn{alice, bob} {
		var posted core.MessagePosted
		c.last(t, core.EventMessagePosted, &posted)
		require.Equal(t, domain.DefaultMessageRoom, posted.RoomID)
		require.Equal(t, msg.ID, posted.Message.ID)
		require.Equal(t, "hello", posted.Message.Content)
	}

	_, err = o.SendMessage("alice", "   ")
	require.ErrorIs(t, err, domain.ErrEmptyMessage)
	_, err = o.SendMessage("ghost", "hi")
	require.ErrorIs(t, err, domain.ErrNotJoined)

	carol := join(t, o, "carol")
	var rs core.RoomSync
	carol.last(t, core.EventRoomSync, &rs)
	require.Len(t, rs.Room.Messages, 1)
	require.Equal(t, msg.ID, rs.Room.Messages[0].ID)
}

func TestSwitchRoom(t *testing.T) {
	o := newTestOrch()
	alice := join(t, o, "alice")
	bob := join(t, o, "bob")

	require.NoError(t, o.SwitchRoom("bob", domain.DefaultPresenceRoom))
	alice.reset()
	bob.reset()

	require.NoError(t, o.SwitchRoom("alice", domain.DefaultPresenceRoom))
	require.Equal(t, []string{"roomSync", "presenceSnapshot"}, alice.types())
	require.Equal(t, []string{"participantJoined", "presenceSnapshot"}, bob.types())

	var rs core.RoomSync
	alice.last(t, core.EventRoomSync, &rs)
	require.ElementsMatch(t, []domain.ParticipantID{"alice", "bob"}, rs.Room.Users)

	require.Empty(t, o.Registry.MembersOfRoom(domain.DefaultMessageRoom))
	require.Len(t, o.Registry.MembersOfRoom(domain.DefaultPresenceRoom), 2)

	alice.reset()
	require.NoError(t, o.SwitchRoom("alice", domain.DefaultPresenceRoom))
	require.Equal(t, []string{"roomSync"}, alice.types(), "same room only re-syncs")

	require.ErrorIs(t, o.SwitchRoom("alice", "nowhere"), domain.ErrRoomNotFound)
	require.ErrorIs(t, o.SwitchRoom("ghost", domain.DefaultMessageRoom), domain.ErrNotJoined)

	_, err := o.SendMessage("alice", "hi")
	require.ErrorIs(t, err, domain.ErrNotAMessageRoom)
}

func TestRelay(t *testing.T) {
	o := newTestOrch()
	alice := join(t, o, "alice")
	bob := join(t, o, "bob")
	alice.reset()
	bob.reset()

	payload := json.RawMessage(`{"description": {"type": "offer", "sdp": "v=0"}}`)
	require.NoError(t, o.Relay("alice", "bob", payload))
	require.Empty(t, alice.types())
	require.Equal(t, []string{"signal"}, bob.types())

	var sig struct {
		FromID  domain.ParticipantID `json:"fromId"`
		Payload json.RawMessage      `json:"payload"`
	}
	bob.last(t, core.EventSignal, &sig)
	require.Equal(t, domain.ParticipantID("alice"), sig.FromID)
	require.JSONEq(t, string(payload), string(sig.Payload))

	require.ErrorIs(t, o.Relay("alice", "ghost", payload), domain.ErrPeerUnavailable)
	require.ErrorIs(t, o.Relay("alice", "bob", nil), domain.ErrInvalidSignal)
	require.ErrorIs(t, o.Relay("alice", "bob", json.RawMessage("null")), domain.ErrInvalidSignal)
	require.ErrorIs(t, o.Relay("alice", "bob", json.RawMessage(`""`)), domain.ErrInvalidSignal)
	require.ErrorIs(t, o.Relay("alice", "bob", json.RawMessage(` "" `)), domain.ErrInvalidSignal)
	require.ErrorIs(t, o.Relay("ghost", "bob", payload), domain.ErrNotJoined)
	require.Equal(t, []string{"signal"}, bob.types())
}

func TestHandleDisconnect_Idempotent(t *testing.T) {
	o := newTestOrch()
	alice := join(t, o, "alice")
	join(t, o, "bob")
	require.NoError(t, o.SwitchRoom("bob", domain.DefaultPresenceRoom))
	alice.reset()

	o.HandleDisconnect("bob")
	require.Equal(t, []string{"participantLeft", "presenceSnapshot"}, alice.types())

	var left core.ParticipantLeft
	alice.last(t, core.EventParticipantLeft, &left)
	require.Equal(t, domain.ParticipantID("bob"), left.ID)

	alice.reset()
	o.HandleDisconnect("bob")
	o.HandleDisconnect("never-joined")
	require.Empty(t, alice.types())

	require.Empty(t, o.Registry.MembersOfRoom(domain.DefaultPresenceRoom))
	require.ErrorIs(t, o.Relay("alice", "bob", json.RawMessage(`{}`)), domain.ErrPeerUnavailable)
}

func TestCreateChannel(t *testing.T) {
	o := newTestOrch()
	alice := join(t, o, "alice")
	alice.reset()

	view, err := o.CreateChannel(domain.KindMessage, "Dev Talk")
	require.NoError(t, err)
	require.Equal(t, domain.RoomID("dev-talk"), view.ID)
	require.Equal(t, domain.RoomName("Dev Talk"), view.Name)

	var created core.RoomCreated
	alice.last(t, core.EventRoomCreated, &created)
	require.Equal(t, view.ID, created.Room.ID)

	_, err = o.CreateChannel(domain.KindMessage, "dev talk")
	require.ErrorIs(t, err, domain.ErrChannelAlreadyExists)
	_, err = o.CreateChannel(domain.KindPresence, "")
	require.ErrorIs(t, err, domain.ErrInvalidChannelName)
	require.Equal(t, []string{"roomCreated"}, alice.types())

	require.NoError(t, o.SwitchRoom("alice", "dev-talk"))
	infos := o.ListRooms()
	require.Len(t, infos, 3)
	require.Equal(t, domain.RoomID("dev-talk"), infos[2].ID)
	require.Equal(t, 1, infos[2].MemberCount)
	require.Zero(t, infos[0].MemberCount)
}

func TestVoiceStatus(t *testing.T) {
	o := newTestOrch()
	alice := join(t, o, "alice")
	bob := join(t, o, "bob")
	carol := join(t, o, "carol")
	require.NoError(t, o.SwitchRoom("alice", domain.DefaultPresenceRoom))
	require.NoError(t, o.SwitchRoom("bob", domain.DefaultPresenceRoom))
	alice.reset()
	bob.reset()
	carol.reset()

	require.NoError(t, o.VoiceStatus("alice", "muted", domain.DefaultPresenceRoom))
	require.Empty(t, alice.types())
	require.Empty(t, carol.types())

	var changed core.VoiceStatusChanged
	bob.last(t, core.EventVoiceStatusChanged, &changed)
	require.Equal(t, domain.ParticipantID("alice"), changed.ParticipantID)
	require.Equal(t, domain.VoiceMuted, changed.Status)

	p, err := o.Registry.Lookup("alice")
	require.NoError(t, err)
	require.Equal(t, domain.VoiceMuted, p.Voice)

	require.ErrorIs(t, o.VoiceStatus("alice", "loud", domain.DefaultPresenceRoom), domain.ErrInvalidVoiceStatus)
	require.ErrorIs(t, o.VoiceStatus("alice", "muted", "nowhere"), domain.ErrRoomNotFound)
}

func TestBackpressure_KicksSlowConsumer(t *testing.T) {
	o := newTestOrch()
	join(t, o, "alice")
	bob := join(t, o, "bob")
	bob.mu.Lock()
	bob.full = true
	bob.mu.Unlock()

	_, err := o.SendMessage("alice", "flood")
	require.NoError(t, err)
	require.True(t, bob.isClosed())
}

func TestBackpressure_LenientPolicyDropsFrame(t *testing.T) {
	o := New(app.NewRegistry(), app.NewDefaultDirectory(10), app.LenientPolicy{})
	join(t, o, "alice")
	bob := join(t, o, "bob")
	bob.mu.Lock()
	bob.full = true
	bob.mu.Unlock()

	_, err := o.SendMessage("alice", "flood")
	require.NoError(t, err)
	require.False(t, bob.isClosed())
}

func TestWhoAmI(t *testing.T) {
	o := newTestOrch()
	join(t, o, "alice")

	p, room, err := o.WhoAmI("alice")
	require.NoError(t, err)
	require.Equal(t, domain.ParticipantID("alice"), p.ID)
	require.Equal(t, domain.DefaultMessageRoom, room.ID)

	_, _, err = o.WhoAmI("ghost")
	require.ErrorIs(t, err, domain.ErrNotJoined)
}

func TestConcurrentMembershipStaysConsistent(t *testing.T) {
	o := newTestOrch()
	rooms := []domain.RoomID{domain.DefaultMessageRoom, domain.DefaultPresenceRoom}

	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := domain.ParticipantID(fmt.Sprintf("p%d", i))
			if _, err := o.Join(id, string(id), &fakeConn{}); err != nil {
				t.Errorf("join %s: %v", id, err)
				return
			}
			for j := range 10 {
				_ = o.SwitchRoom(id, rooms[(i+j)%2])
			}
			if i%2 == 0 {
				o.HandleDisconnect(id)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 16, o.Registry.Len())
	total := 0
	for _, r := range rooms {
		total += len(o.Registry.MembersOfRoom(r))
	}
	require.Equal(t, o.Registry.Len(), total, "every participant sits in exactly one room")
}

func TestMembers(t *testing.T) {
	o := newTestOrch()
	join(t, o, "alice")

	members, err := o.Members(domain.DefaultMessageRoom)
	require.NoError(t, err)
	require.Len(t, members, 1)

	_, err = o.Members("nowhere")
	require.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestEndToEndScenario(t *testing.T) {
	o := newTestOrch()
	a := join(t, o, "A")
	b := join(t, o, "B")

	_, err := o.SendMessage("A", "hi")
	require.NoError(t, err)
	for _, c := range []*fakeConn{a, b} {
		var posted core.MessagePosted
		c.last(t, core.EventMessagePosted, &posted)
		require.Equal(t, "hi", posted.Message.Content)
		require.Equal(t, domain.ParticipantID("A"), posted.Message.SenderID)
	}
	history, err := o.Rooms.History(domain.DefaultMessageRoom)
	require.NoError(t, err)
	require.Len(t, history, 1)

	require.NoError(t, o.SwitchRoom("B", domain.DefaultPresenceRoom))

	var snap core.PresenceSnapshot
	a.last(t, core.EventPresenceSnapshot, &snap)
	require.Len(t, snap.Participants, 2)
	require.Equal(t, domain.DefaultPresenceRoom, snap.Participants[1].RoomID)

	general, err := o.Members(domain.DefaultMessageRoom)
	require.NoError(t, err)
	require.Len(t, general, 1)
	require.Equal(t, domain.ParticipantID("A"), general[0].ID)

	var rs core.RoomSync
	b.last(t, core.EventRoomSync, &rs)
	require.Equal(t, domain.DefaultPresenceRoom, rs.Room.ID)
	require.Len(t, rs.Participants, 1)
	require.Equal(t, domain.ParticipantID("B"), rs.Participants[0].ID)
}

func TestSendMessage_HistoryKeepsMostRecent(t *testing.T) {
	o := newTestOrch()
	join(t, o, "alice")

	for i := range 60 {
		_, err := o.SendMessage("alice", fmt.Sprintf("m%d", i))
		require.NoError(t, err)
	}

	history, err := o.Rooms.History(domain.DefaultMessageRoom)
	require.NoError(t, err)
	require.Len(t, history, domain.DefaultHistoryLimit)
	for i, m := range history {
		require.Equal(t, fmt.Sprintf("m%d", i+10), m.Content)
	}

	carol := join(t, o, "carol")
	var rs core.RoomSync
	carol.last(t, core.EventRoomSync, &rs)
	require.Len(t, rs.Room.Messages, domain.DefaultHistoryLimit)
	require.Equal(t, "m10", rs.Room.Messages[0].Content)
	require.Equal(t, "m59", rs.Room.Messages[len(rs.Room.Messages)-1].Content)
}

func TestRoomView_EmitsEmptyCollections(t *testing.T) {
	o := newTestOrch()

	text, err := o.Room(domain.DefaultMessageRoom)
	require.NoError(t, err)
	b, err := json.Marshal(text)
	require.NoError(t, err)
	require.JSONEq(t, `{"id":"general","name":"General","kind":"text","messages":[]}`, string(b))

	voice, err := o.Room(domain.DefaultPresenceRoom)
	require.NoError(t, err)
	b, err = json.Marshal(voice)
	require.NoError(t, err)
	require.JSONEq(t, `{"id":"voice-general","name":"Voice General","kind":"voice","users":[]}`, string(b))
}
