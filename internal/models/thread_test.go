package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewTranscriptHasDefaultThread(t *testing.T) {
	tr := NewTranscript("alice")
	require.Equal(t, "alice", tr.Owner)
	th := tr.Thread(DefaultThreadName)
	require.NotNil(t, th)
	require.Empty(t, th.Messages)
}

func TestNewThreadDisambiguatesRepeatedNames(t *testing.T) {
	tr := NewTranscript("alice")
	now := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	first := tr.NewThread("Network Chat", now)
	second := tr.NewThread("Network Chat", now)

	require.NotEqual(t, first.Name, second.Name)
	require.Contains(t, first.Name, "Network Chat - 2025-03-14 09:26:53")
	require.Len(t, tr.Threads, 3) // default plus the two new ones
}

func TestEnsureDefaultRepairsPartialShapes(t *testing.T) {
	tr := &Transcript{Owner: "bob"}
	tr.EnsureDefault()
	require.NotNil(t, tr.Thread(DefaultThreadName))

	tr.Threads["odd"] = nil
	tr.Threads["unnamed"] = &Thread{}
	tr.EnsureDefault()
	require.NotNil(t, tr.Thread("odd"))
	require.Equal(t, "unnamed", tr.Thread("unnamed").Name)
}

func TestAppendTurnKeepsOrder(t *testing.T) {
	th := &Thread{Name: DefaultThreadName}
	th.AppendTurn(NewMessage(RoleUser, "hi"), NewMessage(RoleAssistant, "hello"))
	th.AppendTurn(NewMessage(RoleUser, "again"), NewMessage(RoleAssistant, "sure"))

	require.Len(t, th.Messages, 4)
	require.Equal(t, RoleUser, th.Messages[0].Role)
	require.Equal(t, RoleAssistant, th.Messages[1].Role)
	require.Equal(t, "again", th.Messages[2].Content)
}

func TestRoleLabel(t *testing.T) {
	require.Equal(t, "User", RoleUser.Label())
	require.Equal(t, "Assistant", RoleAssistant.Label())
}
