package registry

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quizparty/party-backend/internal/quiz"
	"github.com/quizparty/party-backend/internal/session"
)

type noopBroadcaster struct{}

func (noopBroadcaster) Broadcast(code, event string, payload any) {}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return New(ctx, quiz.Default(), noopBroadcaster{}, zap.NewNop(), session.Timing{
		Countdown:    10 * time.Millisecond,
		RoundTime:    time.Second,
		AdvanceDelay: 10 * time.Millisecond,
	})
}

func createParty(t *testing.T, r *Registry, connID, name string) string {
	t.Helper()
	reply := make(chan CreateResult, 1)
	r.Inbox() <- CreateParty{ConnID: connID, Name: name, Reply: reply}
	res := <-reply
	require.NoError(t, res.Err)
	return res.Code
}

func joinParty(t *testing.T, r *Registry, code, connID, name string) JoinResult {
	t.Helper()
	reply := make(chan JoinResult, 1)
	r.Inbox() <- JoinParty{Code: code, ConnID: connID, Name: name, Reply: reply}
	return <-reply
}

func disconnect(t *testing.T, r *Registry, connID string) Departure {
	t.Helper()
	reply := make(chan Departure, 1)
	r.Inbox() <- Disconnect{ConnID: connID, Reply: reply}
	return <-reply
}

func sessionFor(t *testing.T, r *Registry, connID string) *session.Session {
	t.Helper()
	reply := make(chan *session.Session, 1)
	r.Inbox() <- SessionFor{ConnID: connID, Reply: reply}
	return <-reply
}

func listParties(t *testing.T, r *Registry) []PartyInfo {
	t.Helper()
	reply := make(chan []PartyInfo, 1)
	r.Inbox() <- List{Reply: reply}
	return <-reply
}

func TestRegistry_CreateParty_CodeFormat(t *testing.T) {
	r := newTestRegistry(t)

	code := createParty(t, r, "c1", "alice")
	require.Regexp(t, regexp.MustCompile(`^[A-Z0-9]{8}$`), code)

	sess := sessionFor(t, r, "c1")
	require.NotNil(t, sess)
	require.Equal(t, code, sess.Code())
}

func TestRegistry_Join_CaseInsensitive(t *testing.T) {
	r := newTestRegistry(t)
	code := createParty(t, r, "c1", "alice")

	res := joinParty(t, r, strings.ToLower(code), "c2", "bob")
	require.NoError(t, res.Err)
	require.Equal(t, code, res.Code)
	require.Equal(t, 2, res.Players)

	require.Same(t, sessionFor(t, r, "c1"), sessionFor(t, r, "c2"))
}

func TestRegistry_Join_UnknownCode(t *testing.T) {
	r := newTestRegistry(t)

	res := joinParty(t, r, "NOPENOPE", "c1", "alice")
	require.ErrorIs(t, res.Err, ErrNotFound)
}

func TestRegistry_Join_FullParty(t *testing.T) {
	r := newTestRegistry(t)
	code := createParty(t, r, "c1", "alice")

	require.NoError(t, joinParty(t, r, code, "c2", "bob").Err)
	require.ErrorIs(t, joinParty(t, r, code, "c3", "carol").Err, session.ErrPartyFull)
}

func TestRegistry_Disconnect_ReportsDeparture(t *testing.T) {
	r := newTestRegistry(t)
	code := createParty(t, r, "c1", "alice")
	require.NoError(t, joinParty(t, r, code, "c2", "bob").Err)

	dep := disconnect(t, r, "c2")
	require.True(t, dep.Found)
	require.Equal(t, code, dep.Code)
	require.Equal(t, "bob", dep.Name)
	require.Equal(t, 1, dep.Remaining)

	require.Nil(t, sessionFor(t, r, "c2"))
	require.NotNil(t, sessionFor(t, r, "c1"))
}

func TestRegistry_Disconnect_Unknown(t *testing.T) {
	r := newTestRegistry(t)
	require.False(t, disconnect(t, r, "ghost").Found)
}

func TestRegistry_EmptyParty_IsDestroyed(t *testing.T) {
	r := newTestRegistry(t)
	code := createParty(t, r, "c1", "alice")
	require.NoError(t, joinParty(t, r, code, "c2", "bob").Err)

	disconnect(t, r, "c1")
	dep := disconnect(t, r, "c2")
	require.Zero(t, dep.Remaining)

	require.Nil(t, sessionFor(t, r, "c1"))
	require.Nil(t, sessionFor(t, r, "c2"))
	require.Empty(t, listParties(t, r))

	// The code no longer resolves for joins either.
	require.ErrorIs(t, joinParty(t, r, code, "c3", "carol").Err, ErrNotFound)
}

func TestRegistry_List_ReflectsLiveParties(t *testing.T) {
	r := newTestRegistry(t)
	code1 := createParty(t, r, "c1", "alice")
	code2 := createParty(t, r, "c2", "bob")
	require.NotEqual(t, code1, code2)

	require.NoError(t, joinParty(t, r, code1, "c3", "carol").Err)

	parties := listParties(t, r)
	require.Len(t, parties, 2)

	byCode := map[string]PartyInfo{}
	for _, p := range parties {
		byCode[p.Code] = p
	}
	require.Equal(t, 2, byCode[code1].Players)
	require.Equal(t, 1, byCode[code2].Players)
	require.Equal(t, session.StateWaiting, byCode[code1].State)
}
