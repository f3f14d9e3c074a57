package model

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seekchat/provider"
	"seekchat/provider/testutil"
	"seekchat/storage"
)

type recorder struct {
	mu     sync.Mutex
	events []TurnEvent
}

func (r *recorder) observe(ev TurnEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) states() []TurnState {
	r.mu.Lock()
	defer r.mu.Unlock()
	var states []TurnState
	for _, ev := range r.events {
		if n := len(states); n > 0 && states[n-1] == ev.State {
			continue
		}
		states = append(states, ev.State)
	}
	return states
}

func (r *recorder) partials() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.events {
		if ev.State == TurnStreaming && ev.Text != "" {
			out = append(out, ev.Text)
		}
	}
	return out
}

func newTestChat(t *testing.T, assembler Assembler) (*Chat, *Store, *recorder) {
	t.Helper()
	s := newTestStore(t)
	rec := &recorder{}
	return NewChat(s, assembler, WithObserver(rec.observe)), s, rec
}

func TestSubmitStreamsIntoPlaceholder(t *testing.T) {
	mock := testutil.NewMockAssembler("Hel", "lo ", "world")
	chat, s, rec := newTestChat(t, mock)
	key := s.Current()

	res, err := chat.Submit(context.Background(), key, "hi")
	require.NoError(t, err)

	assert.Equal(t, provider.OutcomeCompleted, res.Outcome)
	assert.Equal(t, "Hello world", res.Text)
	assert.Equal(t, []string{"Hel", "Hello ", "Hello world"}, rec.partials())
	assert.Equal(t, []string{"hi", "Hello world"}, messages(t, s, key))

	conv, err := s.Conversation(key)
	require.NoError(t, err)
	assert.Equal(t, storage.RoleUser, conv.Messages[0].Role)
	assert.Equal(t, storage.RoleAssistant, conv.Messages[1].Role)

	assert.Equal(t, []TurnState{
		TurnUserAppended,
		TurnPlaceholderAppended,
		TurnStreaming,
		TurnCompleted,
		TurnIdle,
	}, rec.states())
	assert.False(t, chat.Busy(key))
}

func TestSubmitNamesConversationOnFirstMessage(t *testing.T) {
	chat, s, _ := newTestChat(t, testutil.NewMockAssembler("ok"))
	key := s.Current()

	_, err := chat.Submit(context.Background(), key, "hi")
	require.NoError(t, err)
	conv, _ := s.Conversation(key)
	assert.Equal(t, "hi", conv.Name)

	_, err = chat.Submit(context.Background(), key, "a second message that is not used as the name")
	require.NoError(t, err)
	conv, _ = s.Conversation(key)
	assert.Equal(t, "hi", conv.Name)
}

func TestSubmitTruncatesLongName(t *testing.T) {
	chat, s, _ := newTestChat(t, testutil.NewMockAssembler("ok"))
	key := s.Current()

	text := strings.Repeat("abcdefghij", 5)
	_, err := chat.Submit(context.Background(), key, text)
	require.NoError(t, err)

	conv, _ := s.Conversation(key)
	assert.Equal(t, text[:30], conv.Name)
	assert.Equal(t, text, conv.Messages[0].Content)
}

func TestSubmitIgnoresBlankText(t *testing.T) {
	mock := testutil.NewMockAssembler("never")
	chat, s, rec := newTestChat(t, mock)
	key := s.Current()

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := chat.Submit(context.Background(), key, text)
		assert.ErrorIs(t, err, ErrEmptyMessage)
	}

	assert.Empty(t, messages(t, s, key))
	assert.Empty(t, mock.Requests())
	assert.Empty(t, rec.states())
}

func TestSubmitSendsPriorHistory(t *testing.T) {
	mock := testutil.NewMockAssembler("second answer")
	chat, s, _ := newTestChat(t, mock)
	key, err := s.CreateConversation("You are terse.")
	require.NoError(t, err)
	seed(t, s, key, "first", "first answer")

	_, err = chat.Submit(context.Background(), key, "second")
	require.NoError(t, err)

	req := mock.LastRequest()
	assert.Equal(t, "You are terse.", req.SystemRole)
	assert.Equal(t, "second", req.UserText)
	assert.Equal(t, []provider.Message{
		{Role: "user", Content: "first"},
		{Role: "assistant", Content: "first answer"},
	}, req.History)
	assert.Equal(t, storage.DefaultModel, req.Settings.Model)
}

func TestSubmitUnknownConversation(t *testing.T) {
	chat, _, _ := newTestChat(t, testutil.NewMockAssembler())

	_, err := chat.Submit(context.Background(), "missing", "hi")
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestSubmitFailureStoresErrorNotice(t *testing.T) {
	mock := testutil.NewMockAssembler("partial")
	mock.Fail = true
	chat, s, rec := newTestChat(t, mock)
	key := s.Current()

	res, err := chat.Submit(context.Background(), key, "hi")
	require.NoError(t, err)

	assert.Equal(t, provider.OutcomeFailed, res.Outcome)
	assert.Equal(t, []string{"hi", provider.ErrorNotice}, messages(t, s, key))
	assert.Contains(t, rec.states(), TurnFailed)
}

func TestCancelMidStream(t *testing.T) {
	mock := testutil.Blocking("Hel", "lo")
	chat, s, rec := newTestChat(t, mock)
	key := s.Current()

	type outcome struct {
		res provider.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := chat.Submit(context.Background(), key, "hi")
		done <- outcome{res, err}
	}()

	<-mock.Blocked
	assert.True(t, chat.Busy(key))

	_, err := chat.Submit(context.Background(), key, "again")
	assert.ErrorIs(t, err, ErrTurnInProgress)
	assert.ErrorIs(t, chat.Delete(key, 0), ErrTurnInProgress)

	assert.True(t, chat.Cancel(key))

	var got outcome
	select {
	case got = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("turn did not finish after cancel")
	}

	require.NoError(t, got.err)
	assert.Equal(t, provider.OutcomeCancelled, got.res.Outcome)
	assert.Equal(t, []string{"hi", provider.CancelledNotice}, messages(t, s, key))
	assert.Contains(t, rec.states(), TurnCancelled)
	assert.False(t, chat.Busy(key))
	assert.False(t, chat.Cancel(key))
}

func TestCancelFromParentContext(t *testing.T) {
	mock := testutil.Blocking("x")
	chat, s, _ := newTestChat(t, mock)
	key := s.Current()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-mock.Blocked
		cancel()
	}()

	res, err := chat.Submit(ctx, key, "hi")
	require.NoError(t, err)
	assert.Equal(t, provider.CancelledNotice, res.Text)
}

func TestRegenerate(t *testing.T) {
	mock := testutil.NewMockAssembler("fresh")
	chat, s, _ := newTestChat(t, mock)
	key := s.Current()
	seed(t, s, key, "q1", "a1", "q2", "a2", "q3", "a3")

	res, err := chat.Regenerate(context.Background(), key, 2)
	require.NoError(t, err)
	assert.Equal(t, "fresh", res.Text)

	assert.Equal(t, []string{"q1", "a1", "q2", "fresh"}, messages(t, s, key))

	req := mock.LastRequest()
	assert.Equal(t, "q2", req.UserText)
	assert.Equal(t, []provider.Message{
		{Role: "user", Content: "q1"},
		{Role: "assistant", Content: "a1"},
	}, req.History)
}

func TestRegenerateLastUserMessage(t *testing.T) {
	chat, s, _ := newTestChat(t, testutil.NewMockAssembler("again"))
	key := s.Current()
	seed(t, s, key, "q1", "a1")

	_, err := chat.Regenerate(context.Background(), key, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"q1", "again"}, messages(t, s, key))
}

func TestRegenerateRejectsInvalidTargets(t *testing.T) {
	mock := testutil.NewMockAssembler("x")
	chat, s, _ := newTestChat(t, mock)
	key := s.Current()
	seed(t, s, key, "q1", "a1")

	_, err := chat.Regenerate(context.Background(), key, 1)
	assert.ErrorIs(t, err, ErrNotUserMessage)

	_, err = chat.Regenerate(context.Background(), key, 7)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	assert.Equal(t, []string{"q1", "a1"}, messages(t, s, key))
	assert.Empty(t, mock.Requests())
	assert.False(t, chat.Busy(key))
}

func TestEditRegeneratesWithNewContent(t *testing.T) {
	mock := testutil.NewMockAssembler("edited answer")
	chat, s, _ := newTestChat(t, mock)
	key := s.Current()
	seed(t, s, key, "q1", "a1", "q2", "a2")

	_, err := chat.Edit(context.Background(), key, 0, "q1 revised")
	require.NoError(t, err)

	assert.Equal(t, []string{"q1 revised", "edited answer"}, messages(t, s, key))
	req := mock.LastRequest()
	assert.Equal(t, "q1 revised", req.UserText)
	assert.Empty(t, req.History)
}

func TestEditRejectsWithoutMutating(t *testing.T) {
	chat, s, _ := newTestChat(t, testutil.NewMockAssembler("x"))
	key := s.Current()
	seed(t, s, key, "q1", "a1")

	_, err := chat.Edit(context.Background(), key, 1, "rewrite the answer")
	assert.ErrorIs(t, err, ErrNotUserMessage)

	_, err = chat.Edit(context.Background(), key, 0, "  ")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	assert.Equal(t, []string{"q1", "a1"}, messages(t, s, key))
}

func TestDeleteRemovesExactlyOne(t *testing.T) {
	chat, s, _ := newTestChat(t, testutil.NewMockAssembler())
	key := s.Current()
	seed(t, s, key, "q1", "a1", "q2", "a2")

	require.NoError(t, chat.Delete(key, 0))
	assert.Equal(t, []string{"a1", "q2", "a2"}, messages(t, s, key))

	assert.ErrorIs(t, chat.Delete(key, 3), ErrIndexOutOfRange)
}

func TestRemoveConversationCancelsTurn(t *testing.T) {
	mock := testutil.Blocking("x")
	chat, s, _ := newTestChat(t, mock)
	key := s.Current()

	done := make(chan provider.Result, 1)
	go func() {
		res, _ := chat.Submit(context.Background(), key, "hi")
		done <- res
	}()
	<-mock.Blocked

	require.NoError(t, chat.RemoveConversation(key))

	select {
	case res := <-done:
		assert.Equal(t, provider.OutcomeCancelled, res.Outcome)
	case <-time.After(5 * time.Second):
		t.Fatal("turn did not stop")
	}

	assert.NotEqual(t, key, s.Current())
	assert.Len(t, s.List(), 1)
}

func TestTurnsInDifferentConversationsRunIndependently(t *testing.T) {
	blocking := testutil.Blocking("slow")
	chat, s, _ := newTestChat(t, blocking)
	first := s.Current()
	second, err := s.CreateConversation("")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		_, _ = chat.Submit(context.Background(), first, "one")
		close(done)
	}()
	<-blocking.Blocked

	assert.True(t, chat.Busy(first))
	assert.False(t, chat.Busy(second))

	chat.CancelAll()
	<-done
}

func TestTurnStateString(t *testing.T) {
	assert.Equal(t, "streaming", TurnStreaming.String())
	assert.Equal(t, "unknown", TurnState(99).String())
}
