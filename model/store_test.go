package model

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seekchat/storage"
)

var baseTime = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

// testClock returns a clock that advances one second per call.
func testClock() func() time.Time {
	tick := 0
	return func() time.Time {
		tick++
		return baseTime.Add(time.Duration(tick) * time.Second)
	}
}

func testKeys() func() (string, error) {
	n := 0
	return func() (string, error) {
		n++
		return fmt.Sprintf("chat-%03d", n), nil
	}
}

func newTestRecords(t *testing.T) (*storage.Records, string) {
	t.Helper()
	dir := t.TempDir()
	backend, err := storage.NewFileBackend(dir)
	require.NoError(t, err)
	return storage.NewRecords(backend), dir
}

func newTestStore(t *testing.T, opts ...StoreOption) *Store {
	t.Helper()
	records, _ := newTestRecords(t)
	opts = append([]StoreOption{WithClock(testClock()), WithKeyGenerator(testKeys())}, opts...)
	s, err := NewStore(records, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func messages(t *testing.T, s *Store, key string) []string {
	t.Helper()
	conv, err := s.Conversation(key)
	require.NoError(t, err)
	out := make([]string, len(conv.Messages))
	for i, m := range conv.Messages {
		out[i] = m.Content
	}
	return out
}

func seed(t *testing.T, s *Store, key string, contents ...string) {
	t.Helper()
	for i, c := range contents {
		role := storage.RoleUser
		if i%2 == 1 {
			role = storage.RoleAssistant
		}
		_, err := s.AppendMessage(key, storage.Message{Role: role, Content: c})
		require.NoError(t, err)
	}
}

type failingBackend struct{}

func (failingBackend) Read(string) ([]byte, error) { return nil, storage.ErrRecordNotFound }
func (failingBackend) Write(string, []byte) error  { return errors.New("disk full") }
func (failingBackend) Close() error                { return nil }

func TestNewStoreCreatesFirstConversation(t *testing.T) {
	s := newTestStore(t, WithDefaultSystemRole("Be brief."))

	list := s.List()
	require.Len(t, list, 1)
	assert.Equal(t, "chat-001", s.Current())

	conv, err := s.Conversation(s.Current())
	require.NoError(t, err)
	assert.Equal(t, storage.DefaultChatName, conv.Name)
	assert.Equal(t, "Be brief.", conv.SystemRole)
	assert.Empty(t, conv.Messages)
	assert.Equal(t, storage.DefaultSettings(), s.Settings())
}

func TestNewStoreSelectsNewest(t *testing.T) {
	records, _ := newTestRecords(t)
	require.NoError(t, records.SaveConversations(storage.ConversationSet{
		"old": {Messages: []storage.Message{}, CreatedAt: baseTime, Name: "old"},
		"new": {Messages: []storage.Message{}, CreatedAt: baseTime.Add(time.Hour), Name: "new"},
	}))

	s, err := NewStore(records)
	require.NoError(t, err)

	assert.Equal(t, "new", s.Current())
	assert.Len(t, s.List(), 2)
}

func TestStoreReloadsPersistedState(t *testing.T) {
	records, _ := newTestRecords(t)
	s, err := NewStore(records, WithClock(testClock()), WithKeyGenerator(testKeys()))
	require.NoError(t, err)

	key := s.Current()
	seed(t, s, key, "hi", "hello")
	require.NoError(t, s.RenameConversation(key, "greeting"))
	require.NoError(t, s.SaveSettings(storage.Settings{APIKey: "sk-1", APIBase: "http://x", Model: "m"}))

	reloaded, err := NewStore(records)
	require.NoError(t, err)

	assert.Equal(t, s.Snapshot(), reloaded.Snapshot())
	assert.Equal(t, s.Settings(), reloaded.Settings())
	assert.Equal(t, key, reloaded.Current())
}

func TestCreateAndSelectConversation(t *testing.T) {
	s := newTestStore(t)
	first := s.Current()

	second, err := s.CreateConversation("You are a pirate.")
	require.NoError(t, err)
	assert.Equal(t, second, s.Current())

	conv, err := s.Conversation(second)
	require.NoError(t, err)
	assert.Equal(t, "You are a pirate.", conv.SystemRole)

	require.NoError(t, s.SelectConversation(first))
	assert.Equal(t, first, s.Current())

	err = s.SelectConversation("missing")
	assert.ErrorIs(t, err, ErrConversationNotFound)
	assert.Equal(t, first, s.Current())
}

func TestRemoveCurrentConversationCreatesReplacement(t *testing.T) {
	s := newTestStore(t)
	only := s.Current()

	require.NoError(t, s.RemoveConversation(only))

	list := s.List()
	require.Len(t, list, 1)
	assert.NotEqual(t, only, s.Current())
	assert.Equal(t, list[0].Key, s.Current())

	_, err := s.Conversation(only)
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestRemoveOtherConversationKeepsSelection(t *testing.T) {
	s := newTestStore(t)
	first := s.Current()
	second, err := s.CreateConversation("")
	require.NoError(t, err)

	require.NoError(t, s.RemoveConversation(first))

	assert.Equal(t, second, s.Current())
	assert.Len(t, s.List(), 1)
	assert.ErrorIs(t, s.RemoveConversation("missing"), ErrConversationNotFound)
}

func TestAppendMessageFillsTimestamp(t *testing.T) {
	s := newTestStore(t)
	key := s.Current()

	idx, err := s.AppendMessage(key, storage.Message{Role: storage.RoleUser, Content: "a"})
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	explicit := baseTime.Add(-time.Hour)
	idx, err = s.AppendMessage(key, storage.Message{Role: storage.RoleAssistant, Content: "b", Timestamp: explicit})
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	conv, err := s.Conversation(key)
	require.NoError(t, err)
	assert.False(t, conv.Messages[0].Timestamp.IsZero())
	assert.Equal(t, explicit, conv.Messages[1].Timestamp)

	_, err = s.AppendMessage("missing", storage.Message{})
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestReplaceMessageAt(t *testing.T) {
	s := newTestStore(t)
	key := s.Current()
	seed(t, s, key, "q", "a")

	require.NoError(t, s.ReplaceMessageAt(key, 1, "better"))
	assert.Equal(t, []string{"q", "better"}, messages(t, s, key))

	conv, _ := s.Conversation(key)
	assert.Equal(t, storage.RoleAssistant, conv.Messages[1].Role)

	assert.ErrorIs(t, s.ReplaceMessageAt(key, 2, "x"), ErrIndexOutOfRange)
	assert.ErrorIs(t, s.ReplaceMessageAt(key, -1, "x"), ErrIndexOutOfRange)
}

func TestTruncateAfter(t *testing.T) {
	s := newTestStore(t)
	key := s.Current()
	seed(t, s, key, "q1", "a1", "q2", "a2")

	require.NoError(t, s.TruncateAfter(key, 2))
	assert.Equal(t, []string{"q1", "a1", "q2"}, messages(t, s, key))

	require.NoError(t, s.TruncateAfter(key, 2))
	assert.Equal(t, []string{"q1", "a1", "q2"}, messages(t, s, key))

	assert.ErrorIs(t, s.TruncateAfter(key, 3), ErrIndexOutOfRange)
}

func TestDeleteMessageAt(t *testing.T) {
	s := newTestStore(t)
	key := s.Current()
	seed(t, s, key, "q1", "a1", "q2", "a2")

	require.NoError(t, s.DeleteMessageAt(key, 1))
	assert.Equal(t, []string{"q1", "q2", "a2"}, messages(t, s, key))

	require.NoError(t, s.DeleteMessageAt(key, 2))
	assert.Equal(t, []string{"q1", "q2"}, messages(t, s, key))

	assert.ErrorIs(t, s.DeleteMessageAt(key, 5), ErrIndexOutOfRange)
}

func TestSnapshotIsNotAffectedByLaterMutations(t *testing.T) {
	s := newTestStore(t)
	key := s.Current()
	seed(t, s, key, "q", "a")

	before := s.Snapshot()
	require.NoError(t, s.ReplaceMessageAt(key, 0, "changed"))
	require.NoError(t, s.DeleteMessageAt(key, 1))
	_, err := s.CreateConversation("")
	require.NoError(t, err)

	assert.Len(t, before, 1)
	assert.Equal(t, "q", before[key].Messages[0].Content)
	assert.Len(t, before[key].Messages, 2)
}

func TestConversationReturnsCopy(t *testing.T) {
	s := newTestStore(t)
	key := s.Current()
	seed(t, s, key, "q")

	conv, err := s.Conversation(key)
	require.NoError(t, err)
	conv.Messages[0].Content = "mutated"

	assert.Equal(t, []string{"q"}, messages(t, s, key))
}

func TestListAndSearch(t *testing.T) {
	s := newTestStore(t)
	first := s.Current()
	require.NoError(t, s.RenameConversation(first, "Go generics"))
	second, err := s.CreateConversation("")
	require.NoError(t, err)
	require.NoError(t, s.RenameConversation(second, "Rust lifetimes"))

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, second, list[0].Key)

	matches := s.Search("gogen")
	require.Len(t, matches, 1)
	assert.Equal(t, first, matches[0].Key)

	assert.Len(t, s.Search(""), 2)
}

func TestEffectiveSettings(t *testing.T) {
	s := newTestStore(t, WithSettingsOverride(storage.Settings{APIKey: "sk-env"}))
	require.NoError(t, s.SaveSettings(storage.Settings{APIKey: "sk-saved", Model: "deepseek-reasoner"}))

	eff := s.EffectiveSettings()
	assert.Equal(t, "sk-env", eff.APIKey)
	assert.Equal(t, "deepseek-reasoner", eff.Model)
	assert.Equal(t, storage.DefaultAPIBase, eff.APIBase)

	assert.Equal(t, "sk-saved", s.Settings().APIKey)
}

func TestPersistFailureKeepsMemoryState(t *testing.T) {
	s, err := NewStore(storage.NewRecords(failingBackend{}), WithKeyGenerator(testKeys()))
	require.NoError(t, err)
	key := s.Current()

	_, err = s.AppendMessage(key, storage.Message{Role: storage.RoleUser, Content: "kept"})
	require.NoError(t, err)
	assert.Equal(t, []string{"kept"}, messages(t, s, key))

	assert.Error(t, s.SaveSettings(storage.Settings{APIKey: "x"}))
}

func TestSubscribeCoalescesNotifications(t *testing.T) {
	s := newTestStore(t)
	key := s.Current()

	changes, unsubscribe := s.Subscribe()
	seed(t, s, key, "a", "b", "c")

	select {
	case <-changes:
	default:
		t.Fatal("expected a pending notification")
	}
	select {
	case <-changes:
		t.Fatal("notifications should coalesce")
	default:
	}

	unsubscribe()
	unsubscribe()
	seed(t, s, key, "d")
	select {
	case <-changes:
		t.Fatal("no notification after unsubscribe")
	default:
	}
}

func TestStoreOnSQLiteBackend(t *testing.T) {
	backend, err := storage.NewSQLiteBackend(t.TempDir())
	require.NoError(t, err)
	records := storage.NewRecords(backend)

	s, err := NewStore(records, WithClock(testClock()), WithKeyGenerator(testKeys()))
	require.NoError(t, err)
	seed(t, s, s.Current(), "q", "a")

	reloaded, err := NewStore(records)
	require.NoError(t, err)
	assert.Equal(t, s.Snapshot(), reloaded.Snapshot())
	require.NoError(t, records.Close())
}
