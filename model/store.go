package model

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"seekchat/config"
	"seekchat/storage"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrIndexOutOfRange      = errors.New("message index out of range")
)

// Store owns the conversation set, the current selection and the settings.
//
// Every mutation replaces the set with a modified copy, so a ConversationSet
// returned by Snapshot is never changed afterwards and can be read without
// holding any lock. The full set is persisted after each mutation.
type Store struct {
	mu            sync.RWMutex
	records       *storage.Records
	conversations storage.ConversationSet
	current       string
	settings      storage.Settings

	// overrides are applied on top of settings for this process only
	overrides         storage.Settings
	defaultSystemRole string

	now    func() time.Time
	newKey func() (string, error)

	subMu       sync.Mutex
	subscribers map[int]chan struct{}
	nextSub     int
}

type StoreOption func(*Store)

// WithClock replaces time.Now for creation and message timestamps.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// WithKeyGenerator replaces the conversation key generator.
func WithKeyGenerator(gen func() (string, error)) StoreOption {
	return func(s *Store) {
		s.newKey = gen
	}
}

// WithSettingsOverride applies the non-empty fields of override on top of
// the persisted settings without saving them.
func WithSettingsOverride(override storage.Settings) StoreOption {
	return func(s *Store) {
		s.overrides = override
	}
}

// WithDefaultSystemRole sets the system role of conversations the store
// creates on its own (first run, replacement after removal).
func WithDefaultSystemRole(role string) StoreOption {
	return func(s *Store) {
		s.defaultSystemRole = role
	}
}

// NewStore loads both records. When no conversation exists one is created;
// the newest conversation becomes current.
func NewStore(records *storage.Records, opts ...StoreOption) (*Store, error) {
	s := &Store{
		records:     records,
		now:         time.Now,
		newKey:      storage.NewConversationKey,
		subscribers: make(map[int]chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	conversations, err := records.LoadConversations()
	if err != nil {
		return nil, fmt.Errorf("failed to load conversations: %w", err)
	}
	settings, err := records.LoadSettings()
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	s.conversations = conversations
	s.settings = settings

	if key, ok := conversations.Newest(); ok {
		s.current = key
		config.DebugLog.Debug("store loaded", "conversations", len(conversations), "current", key)
		return s, nil
	}

	if _, err := s.CreateConversation(s.defaultSystemRole); err != nil {
		return nil, err
	}
	return s, nil
}

// CreateConversation adds an empty conversation and makes it current.
func (s *Store) CreateConversation(systemRole string) (string, error) {
	key, err := s.newKey()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	next := s.conversations.Clone()
	next[key] = storage.Conversation{
		Messages:   []storage.Message{},
		CreatedAt:  s.now(),
		Name:       storage.DefaultChatName,
		SystemRole: systemRole,
	}
	s.commitLocked(next)
	s.current = key
	s.mu.Unlock()

	config.DebugLog.Info("conversation created", "key", key)
	s.broadcast()
	return key, nil
}

func (s *Store) SelectConversation(key string) error {
	s.mu.Lock()
	if _, ok := s.conversations[key]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrConversationNotFound, key)
	}
	s.current = key
	s.mu.Unlock()

	s.broadcast()
	return nil
}

// RemoveConversation deletes key. Removing the current conversation creates
// and selects a fresh one, so the set is never left empty.
func (s *Store) RemoveConversation(key string) error {
	s.mu.Lock()
	if _, ok := s.conversations[key]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrConversationNotFound, key)
	}
	next := s.conversations.Clone()
	delete(next, key)
	s.commitLocked(next)
	wasCurrent := s.current == key
	if wasCurrent {
		s.current = ""
	}
	s.mu.Unlock()

	config.DebugLog.Info("conversation removed", "key", key)

	if wasCurrent {
		_, err := s.CreateConversation(s.defaultSystemRole)
		return err
	}

	s.broadcast()
	return nil
}

// AppendMessage adds msg to the end of key and returns its index. A zero
// timestamp is filled in.
func (s *Store) AppendMessage(key string, msg storage.Message) (int, error) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}

	var index int
	err := s.update(key, func(conv *storage.Conversation) error {
		conv.Messages = append(conv.Messages, msg)
		index = len(conv.Messages) - 1
		return nil
	})
	return index, err
}

// ReplaceMessageAt overwrites the content of one message, keeping its role
// and timestamp.
func (s *Store) ReplaceMessageAt(key string, index int, content string) error {
	return s.update(key, func(conv *storage.Conversation) error {
		if err := checkIndex(conv, index); err != nil {
			return err
		}
		conv.Messages[index].Content = content
		return nil
	})
}

// TruncateAfter keeps messages [0..index] and drops the rest.
func (s *Store) TruncateAfter(key string, index int) error {
	return s.update(key, func(conv *storage.Conversation) error {
		if err := checkIndex(conv, index); err != nil {
			return err
		}
		conv.Messages = conv.Messages[:index+1]
		return nil
	})
}

// DeleteMessageAt removes exactly one message.
func (s *Store) DeleteMessageAt(key string, index int) error {
	return s.update(key, func(conv *storage.Conversation) error {
		if err := checkIndex(conv, index); err != nil {
			return err
		}
		conv.Messages = append(conv.Messages[:index], conv.Messages[index+1:]...)
		return nil
	})
}

func (s *Store) RenameConversation(key, name string) error {
	return s.update(key, func(conv *storage.Conversation) error {
		conv.Name = name
		return nil
	})
}

// Snapshot returns the current set. Callers must treat it as read-only.
func (s *Store) Snapshot() storage.ConversationSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conversations
}

// Current returns the key of the selected conversation.
func (s *Store) Current() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Conversation returns a copy of one conversation.
func (s *Store) Conversation(key string) (storage.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[key]
	if !ok {
		return storage.Conversation{}, fmt.Errorf("%w: %s", ErrConversationNotFound, key)
	}
	return conv.Clone(), nil
}

// List returns every conversation, newest first.
func (s *Store) List() []storage.ConversationMetadata {
	return s.Snapshot().List()
}

// Search fuzzy-matches conversation names.
func (s *Store) Search(query string) []storage.ConversationMatch {
	return storage.SearchConversations(s.Snapshot(), query)
}

// Settings returns the persisted settings.
func (s *Store) Settings() storage.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// EffectiveSettings returns the persisted settings with session overrides
// and defaults applied. This is what requests are sent with.
func (s *Store) EffectiveSettings() storage.Settings {
	s.mu.RLock()
	settings := s.settings
	override := s.overrides
	s.mu.RUnlock()

	if override.APIKey != "" {
		settings.APIKey = override.APIKey
	}
	if override.APIBase != "" {
		settings.APIBase = override.APIBase
	}
	if override.Model != "" {
		settings.Model = override.Model
	}
	return settings.WithDefaults()
}

// SaveSettings replaces and persists the settings. Unlike conversation
// writes, the error is returned since saving is an explicit user action.
func (s *Store) SaveSettings(settings storage.Settings) error {
	s.mu.Lock()
	s.settings = settings
	err := s.records.SaveSettings(settings)
	s.mu.Unlock()

	if err != nil {
		config.DebugLog.Error("failed to persist settings", "err", err)
		return fmt.Errorf("failed to save settings: %w", err)
	}

	s.broadcast()
	return nil
}

// DefaultSystemRole is the role given to conversations the store creates
// itself.
func (s *Store) DefaultSystemRole() string {
	return s.defaultSystemRole
}

// Subscribe returns a channel that receives a value after every change.
// Notifications coalesce: a slow reader sees one pending value, not one per
// change. The returned func unsubscribes.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subscribers, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Store) Close() error {
	return s.records.Close()
}

// update applies fn to a private copy of one conversation and commits it.
func (s *Store) update(key string, fn func(conv *storage.Conversation) error) error {
	s.mu.Lock()
	conv, ok := s.conversations[key]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrConversationNotFound, key)
	}

	conv = conv.Clone()
	if err := fn(&conv); err != nil {
		s.mu.Unlock()
		return err
	}

	next := s.conversations.Clone()
	next[key] = conv
	s.commitLocked(next)
	s.mu.Unlock()

	s.broadcast()
	return nil
}

// commitLocked installs next and writes it out. A failed write is logged and
// the in-memory state is kept.
func (s *Store) commitLocked(next storage.ConversationSet) {
	s.conversations = next
	if err := s.records.SaveConversations(next); err != nil {
		config.DebugLog.Error("failed to persist conversations", "err", err)
	}
}

func (s *Store) broadcast() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func checkIndex(conv *storage.Conversation, index int) error {
	if index < 0 || index >= len(conv.Messages) {
		return fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(conv.Messages))
	}
	return nil
}
