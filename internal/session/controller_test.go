package session

import (
	"bytes"
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"synbot/internal/models"
	"synbot/internal/store"
)

type stubGenerator struct {
	reply          string
	calls          int
	lastText       string
	lastAttachment []byte
}

func (g *stubGenerator) Generate(ctx context.Context, userText string, attachment []byte) string {
	g.calls++
	g.lastText = userText
	g.lastAttachment = attachment
	return g.reply
}

type fixture struct {
	controller  *Controller
	generator   *stubGenerator
	transcripts *store.JSONTranscriptStore
	historyPath string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	historyPath := filepath.Join(dir, "chat_history.json")
	credentials := store.NewJSONCredentialStore(filepath.Join(dir, "users.json"))
	transcripts := store.NewJSONTranscriptStore(historyPath)
	generator := &stubGenerator{reply: "hello there"}
	return &fixture{
		controller:  NewController(credentials, transcripts, generator),
		generator:   generator,
		transcripts: transcripts,
		historyPath: historyPath,
	}
}

func (f *fixture) activeSession(t *testing.T) *Session {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.controller.Register(ctx, "alice", "pw"))
	sess, err := f.controller.Login(ctx, "alice", "pw")
	require.NoError(t, err)
	require.Equal(t, StateAuthenticated, sess.State())
	require.NoError(t, f.controller.SetDisplayName(ctx, sess, "Ally"))
	require.Equal(t, StateActive, sess.State())
	return sess
}

func TestLoginLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.controller.Login(ctx, "alice", "pw")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	sess := f.activeSession(t)
	assert.Equal(t, "alice", sess.Username())
	assert.Equal(t, "Ally", sess.DisplayName())
	assert.Equal(t, models.DefaultThreadName, sess.ActiveThread())

	err = f.controller.Register(ctx, "alice", "other")
	require.ErrorIs(t, err, ErrUsernameTaken)
}

func TestResetPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.controller.ResetPassword(ctx, "ghost", "pw")
	require.ErrorIs(t, err, ErrUnknownUsername)

	require.NoError(t, f.controller.Register(ctx, "alice", "pw"))
	require.NoError(t, f.controller.ResetPassword(ctx, "alice", "pw2"))

	_, err = f.controller.Login(ctx, "alice", "pw")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.controller.Login(ctx, "alice", "pw2")
	require.NoError(t, err)
}

func TestSubmitTurnsPersistInOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.activeSession(t)

	reply, err := f.controller.SubmitTurn(ctx, sess, "first question", nil)
	require.NoError(t, err)
	assert.Equal(t, "hello there", reply)
	_, err = f.controller.SubmitTurn(ctx, sess, "second question", nil)
	require.NoError(t, err)

	// N turns leave 2N messages in the persisted thread, in order.
	tr, err := f.transcripts.Load(ctx, "alice")
	require.NoError(t, err)
	msgs := tr.Thread(models.DefaultThreadName).Messages
	require.Len(t, msgs, 4)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, "first question", msgs[0].Content)
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "hello there", msgs[1].Content)
	assert.Equal(t, "second question", msgs[2].Content)
	assert.Equal(t, models.RoleAssistant, msgs[3].Role)
}

func TestSubmitTurnValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.activeSession(t)

	_, err := f.controller.SubmitTurn(ctx, sess, "   ", nil)
	require.ErrorIs(t, err, ErrEmptyContent)

	f.controller.Logout(sess)
	_, err = f.controller.SubmitTurn(ctx, sess, "hi", nil)
	require.ErrorIs(t, err, ErrNotActive)
}

func TestAttachmentFeedsGenerationOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.activeSession(t)

	image := []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a}
	_, err := f.controller.SubmitTurn(ctx, sess, "what is in this picture", image)
	require.NoError(t, err)
	assert.Equal(t, image, f.generator.lastAttachment)

	// The image must not appear in the persisted history in any encoding.
	data, err := os.ReadFile(f.historyPath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), base64.StdEncoding.EncodeToString(image))

	tr, err := f.transcripts.Load(ctx, "alice")
	require.NoError(t, err)
	msgs := tr.Thread(models.DefaultThreadName).Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, "what is in this picture", msgs[0].Content)
}

func TestGenerationFailureBecomesReply(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.activeSession(t)
	f.generator.reply = "API Error: 500"

	reply, err := f.controller.SubmitTurn(ctx, sess, "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "API Error: 500", reply)

	tr, err := f.transcripts.Load(ctx, "alice")
	require.NoError(t, err)
	msgs := tr.Thread(models.DefaultThreadName).Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, "API Error: 500", msgs[1].Content)
}

func TestNewChatAndSwitch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.activeSession(t)

	first, err := f.controller.NewChat(ctx, sess, "Network Chat")
	require.NoError(t, err)
	second, err := f.controller.NewChat(ctx, sess, "Network Chat")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Equal(t, second, sess.ActiveThread())

	_, err = f.controller.SubmitTurn(ctx, sess, "hi", nil)
	require.NoError(t, err)
	require.Len(t, sess.Messages(), 2)

	// Switching discards nothing.
	require.NoError(t, f.controller.SwitchChat(sess, models.DefaultThreadName))
	assert.Empty(t, sess.Messages())
	require.NoError(t, f.controller.SwitchChat(sess, second))
	assert.Len(t, sess.Messages(), 2)

	err = f.controller.SwitchChat(sess, "no such chat")
	require.ErrorIs(t, err, ErrThreadNotFound)

	// New chats are persisted even before their first turn.
	tr, err := f.transcripts.Load(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, tr.Threads, 3)
}

func TestLogoutClearsSessionNotData(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.activeSession(t)

	_, err := f.controller.SubmitTurn(ctx, sess, "hi", nil)
	require.NoError(t, err)

	f.controller.Logout(sess)
	assert.Equal(t, StateAnonymous, sess.State())
	assert.Empty(t, sess.Username())
	assert.Nil(t, sess.ThreadNames())

	tr, err := f.transcripts.Load(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, tr.Thread(models.DefaultThreadName).Messages, 2)
}

func TestExportActiveThread(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.activeSession(t)

	_, err := f.controller.SubmitTurn(ctx, sess, "hi", nil)
	require.NoError(t, err)

	data, filename, err := f.controller.Export(sess)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
	assert.Equal(t, "default.pdf", filename)

	f.controller.Logout(sess)
	_, _, err = f.controller.Export(sess)
	require.ErrorIs(t, err, ErrNotActive)
}
