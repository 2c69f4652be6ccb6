package chat

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintastic-ai/research-chat/internal/answer"
	"github.com/fintastic-ai/research-chat/internal/conversation"
	"github.com/fintastic-ai/research-chat/internal/model"
	"github.com/fintastic-ai/research-chat/internal/store"
	"github.com/fintastic-ai/research-chat/pkg/logger"
)

// fakeClient scripts the answering collaborator.
type fakeClient struct {
	text    string
	err     error
	release chan struct{} // when non-nil, Ask blocks until closed
}

func (f *fakeClient) Name() string { return "fake" }

func (f *fakeClient) Ask(ctx context.Context, question string) (*answer.Response, error) {
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	return &answer.Response{Text: f.text}, nil
}

func newTestEngine(t *testing.T, client answer.Client) (*Engine, *conversation.Store, *store.Local) {
	t.Helper()
	log, err := logger.New("error")
	require.NoError(t, err)

	local, err := store.Open(filepath.Join(t.TempDir(), "store.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { local.Close() })

	convs := conversation.NewStore(local, log)
	convs.Load("alice@example.com")
	return NewEngine(convs, client, nil, log), convs, local
}

func TestStartConversationSeedsGreeting(t *testing.T) {
	e, convs, _ := newTestEngine(t, &fakeClient{text: "hi"})

	conv := e.StartConversation()
	assert.NotEmpty(t, conv.ID)
	assert.Equal(t, conversation.DefaultTitle, conv.Title)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, model.RoleAssistant, conv.Messages[0].Role)
	assert.Equal(t, Greeting, conv.Messages[0].Content)

	stored, err := convs.Get(conv.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Messages, 1)
}

func TestSubmitAppendsOneUserAndOneAssistantMessage(t *testing.T) {
	e, convs, _ := newTestEngine(t, &fakeClient{text: "Apple revenue grew 6%."})

	resp, err := e.Submit(context.Background(), "", "alice@example.com", "  What are Apple's recent financial highlights?  ")
	require.NoError(t, err)

	assert.Equal(t, model.RoleUser, resp.UserMessage.Role)
	assert.Equal(t, "What are Apple's recent financial highlights?", resp.UserMessage.Content)
	assert.Equal(t, model.RoleAssistant, resp.AssistantReply.Role)
	assert.Equal(t, "Apple revenue grew 6%.", resp.AssistantReply.Content)

	conv, err := convs.Get(resp.ConversationID)
	require.NoError(t, err)
	// greeting + user + assistant
	require.Len(t, conv.Messages, 3)
	assert.Equal(t, "What are Apple's recent financial highlights?...", conv.Title)
}

func TestSubmitIntoExistingConversation(t *testing.T) {
	e, convs, _ := newTestEngine(t, &fakeClient{text: "answer"})

	conv := e.StartConversation()
	resp, err := e.Submit(context.Background(), conv.ID, "alice@example.com", "Compare Tesla vs Ford")
	require.NoError(t, err)
	assert.Equal(t, conv.ID, resp.ConversationID)

	got, err := convs.Get(conv.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "Compare Tesla vs Ford...", got.Title)
}

func TestSubmitUnknownConversation(t *testing.T) {
	e, _, _ := newTestEngine(t, &fakeClient{text: "answer"})

	_, err := e.Submit(context.Background(), "missing", "alice@example.com", "hello")
	assert.ErrorIs(t, err, conversation.ErrNotFound)
}

func TestSubmitRejectsBlankQuestion(t *testing.T) {
	e, convs, _ := newTestEngine(t, &fakeClient{text: "answer"})
	conv := e.StartConversation()

	_, err := e.Submit(context.Background(), conv.ID, "alice@example.com", "   \n\t ")
	assert.ErrorIs(t, err, ErrEmptyQuestion)

	got, err := convs.Get(conv.ID)
	require.NoError(t, err)
	assert.Len(t, got.Messages, 1, "no message appended, no request issued")
}

func TestSubmitConnectivityFailureKeepsUserMessage(t *testing.T) {
	e, convs, local := newTestEngine(t, &fakeClient{err: errors.New("dial tcp: connection refused")})

	resp, err := e.Submit(context.Background(), "", "alice@example.com", "Compare Tesla vs Ford")
	require.NoError(t, err)
	assert.Equal(t, ConnectivityReply, resp.AssistantReply.Content)

	conv, err := convs.Get(resp.ConversationID)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 3)
	assert.Equal(t, "Compare Tesla vs Ford", conv.Messages[1].Content)
	assert.Equal(t, ConnectivityReply, conv.Messages[2].Content)

	// Both halves of the failed turn are persisted.
	persisted := local.LoadConversations("alice@example.com")
	require.Len(t, persisted, 1)
	assert.Len(t, persisted[0].Messages, 3)
}

func TestSubmitErrorStatusUsesFailureReply(t *testing.T) {
	e, _, _ := newTestEngine(t, &fakeClient{err: &answer.StatusError{Code: 500}})

	resp, err := e.Submit(context.Background(), "", "alice@example.com", "hello")
	require.NoError(t, err)
	assert.Equal(t, FailureReply, resp.AssistantReply.Content)
}

func TestSubmitEmptyAnswerUsesApology(t *testing.T) {
	e, _, _ := newTestEngine(t, &fakeClient{text: ""})

	resp, err := e.Submit(context.Background(), "", "alice@example.com", "hello")
	require.NoError(t, err)
	assert.Equal(t, MissingAnswerReply, resp.AssistantReply.Content)
}

func TestSubmitSingleFlightPerConversation(t *testing.T) {
	client := &fakeClient{text: "slow answer", release: make(chan struct{})}
	e, convs, _ := newTestEngine(t, client)
	conv := e.StartConversation()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := e.Submit(context.Background(), conv.ID, "alice@example.com", "first question")
		assert.NoError(t, err)
	}()

	require.Eventually(t, func() bool { return e.Busy(conv.ID) }, time.Second, time.Millisecond)

	// Re-submission while awaiting a response is a no-op.
	_, err := e.Submit(context.Background(), conv.ID, "alice@example.com", "second question")
	assert.ErrorIs(t, err, ErrConversationBusy)

	got, err := convs.Get(conv.ID)
	require.NoError(t, err)
	assert.Len(t, got.Messages, 2, "greeting + first user message only")

	close(client.release)
	<-done

	assert.False(t, e.Busy(conv.ID))
	got, err = convs.Get(conv.ID)
	require.NoError(t, err)
	assert.Len(t, got.Messages, 3, "outstanding turn resolved with one assistant message")

	// A new turn is accepted once the previous one settled.
	client.release = nil
	_, err = e.Submit(context.Background(), conv.ID, "alice@example.com", "third question")
	assert.NoError(t, err)
}
