package chat_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chatline/internal/domain/chat"
	"chatline/internal/domain/user"
)

func TestNewDirect_RejectsSelfAndEmptyPeer(t *testing.T) {
	req := require.New(t)

	_, err := chat.NewDirect(chat.DirectParams{ID: "c1", Requester: "alice", Peer: "alice"})
	req.ErrorIs(err, chat.ErrSelfChat)

	_, err = chat.NewDirect(chat.DirectParams{ID: "c1", Requester: "alice", Peer: ""})
	req.ErrorIs(err, chat.ErrPeerRequired)

	_, err = chat.NewDirect(chat.DirectParams{ID: "c1", Requester: "", Peer: "bob"})
	req.ErrorIs(err, chat.ErrPeerRequired)
}

func TestNewDirect_TwoParticipantsNoAdmin(t *testing.T) {
	req := require.New(t)

	c, err := chat.NewDirect(chat.DirectParams{ID: "c1", Requester: "alice", Peer: "bob"})
	req.NoError(err)
	req.False(c.IsGroup)
	req.Equal([]user.ID{"alice", "bob"}, c.Participants)
	req.Empty(c.Admin)
	req.Len(c.PendingEvents(), 1)
}

func TestNewGroup_DeduplicatesAndIncludesCreator(t *testing.T) {
	req := require.New(t)

	g, err := chat.NewGroup(chat.GroupParams{
		ID:           "g1",
		Name:         "Team",
		Participants: []user.ID{"bob", "carol", "bob", "", "alice"},
		Creator:      "alice",
	})
	req.NoError(err)
	req.True(g.IsGroup)
	req.Equal([]user.ID{"bob", "carol", "alice"}, g.Participants)
	req.Equal(user.ID("alice"), g.Admin)
	req.True(g.HasParticipant("alice"))
}

func TestNewGroup_RequiresNameAndCreator(t *testing.T) {
	req := require.New(t)

	_, err := chat.NewGroup(chat.GroupParams{ID: "g1", Name: "  ", Creator: "alice"})
	req.ErrorIs(err, chat.ErrNameRequired)

	_, err = chat.NewGroup(chat.GroupParams{ID: "g1", Name: "Team", Creator: ""})
	req.ErrorIs(err, chat.ErrCreatorRequired)
}

func TestAddMember_Idempotent(t *testing.T) {
	req := require.New(t)
	g := newGroup(t, "alice", "bob")

	req.NoError(g.AddMember("carol", time.Now()))
	req.NoError(g.AddMember("carol", time.Now()))
	req.Equal([]user.ID{"alice", "bob", "carol"}, g.Participants)
}

func TestRemoveMember_AbsentIsNoop(t *testing.T) {
	req := require.New(t)
	g := newGroup(t, "alice", "bob")

	req.NoError(g.RemoveMember("mallory", time.Now()))
	req.Equal([]user.ID{"alice", "bob"}, g.Participants)
}

func TestRemoveMember_AdminTriggersSuccession(t *testing.T) {
	req := require.New(t)
	g := newGroup(t, "alice", "bob", "carol")

	req.NoError(g.RemoveMember("alice", time.Now()))
	req.Equal(user.ID("bob"), g.Admin)
	req.False(g.HasParticipant("alice"))
	req.Len(g.Participants, 2)
}

func TestLeave_AdminSuccessionPicksFirstRemaining(t *testing.T) {
	req := require.New(t)
	g := newGroup(t, "alice", "bob", "carol")

	req.NoError(g.Leave("alice", time.Now()))
	req.Equal(user.ID("bob"), g.Admin)
	req.False(g.HasParticipant("alice"))
	req.Len(g.Participants, 2)
	req.True(g.HasParticipant(g.Admin))
}

func TestLeave_NonParticipantForbidden(t *testing.T) {
	req := require.New(t)
	g := newGroup(t, "alice", "bob")

	req.ErrorIs(g.Leave("mallory", time.Now()), chat.ErrNotParticipant)
}

func TestLeave_SoleAdminRejected(t *testing.T) {
	req := require.New(t)
	g := newGroup(t, "alice")

	err := g.Leave("alice", time.Now())
	req.ErrorIs(err, chat.ErrLastParticipant)
	req.Equal([]user.ID{"alice"}, g.Participants)
	req.Equal(user.ID("alice"), g.Admin)
}

func TestLeave_NonAdminKeepsAdmin(t *testing.T) {
	req := require.New(t)
	g := newGroup(t, "alice", "bob", "carol")

	req.NoError(g.Leave("carol", time.Now()))
	req.Equal(user.ID("alice"), g.Admin)
	req.Equal([]user.ID{"alice", "bob"}, g.Participants)
}

func TestRename(t *testing.T) {
	req := require.New(t)
	g := newGroup(t, "alice", "bob")

	req.NoError(g.Rename("New Name", time.Now()))
	req.Equal("New Name", g.Name)

	req.ErrorIs(g.Rename("  ", time.Now()), chat.ErrNameRequired)

	d, err := chat.NewDirect(chat.DirectParams{ID: "d1", Requester: "alice", Peer: "bob"})
	req.NoError(err)
	req.ErrorIs(d.Rename("x", time.Now()), chat.ErrNotGroup)
}

func TestPairKey_OrderIndependent(t *testing.T) {
	req := require.New(t)
	req.Equal(chat.PairKey("alice", "bob"), chat.PairKey("bob", "alice"))
	req.NotEqual(chat.PairKey("alice", "bob"), chat.PairKey("alice", "carol"))
}

func newGroup(t *testing.T, members ...user.ID) *chat.Chat {
	t.Helper()
	g, err := chat.NewGroup(chat.GroupParams{
		ID:           "g1",
		Name:         "Team",
		Participants: members[1:],
		Creator:      members[0],
	})
	require.NoError(t, err)
	g.ClearEvents()
	return g
}
