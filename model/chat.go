package model

import (
	"context"
	"errors"
	"strings"
	"sync"

	"seekchat/config"
	"seekchat/provider"
	"seekchat/storage"
)

var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrTurnInProgress = errors.New("a response is already being generated for this conversation")
	ErrNotUserMessage = errors.New("message is not a user message")

	errStreamClosed = errors.New("stream closed without a final event")
)

// Assembler produces the streamed answer for one request. provider.Client
// implements it.
type Assembler interface {
	Stream(ctx context.Context, req provider.Request) <-chan provider.Event
}

// TurnState is a step of one request/response turn.
type TurnState int

const (
	TurnIdle TurnState = iota
	TurnUserAppended
	TurnPlaceholderAppended
	TurnStreaming
	TurnCompleted
	TurnCancelled
	TurnFailed
)

func (s TurnState) String() string {
	switch s {
	case TurnIdle:
		return "idle"
	case TurnUserAppended:
		return "user-appended"
	case TurnPlaceholderAppended:
		return "placeholder-appended"
	case TurnStreaming:
		return "streaming"
	case TurnCompleted:
		return "completed"
	case TurnCancelled:
		return "cancelled"
	case TurnFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// TurnEvent reports a state transition. Index is the message the transition
// concerns (the user message or the placeholder); Text is its content.
type TurnEvent struct {
	Key   string
	State TurnState
	Index int
	Text  string
}

// TurnObserver is called synchronously from the goroutine running the turn.
type TurnObserver func(TurnEvent)

// Chat runs the message operations of a Store against an Assembler. At most
// one turn runs per conversation.
type Chat struct {
	store     *Store
	assembler Assembler
	observer  TurnObserver

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
}

type ChatOption func(*Chat)

func WithObserver(observer TurnObserver) ChatOption {
	return func(c *Chat) {
		c.observer = observer
	}
}

func NewChat(store *Store, assembler Assembler, opts ...ChatOption) *Chat {
	c := &Chat{
		store:     store,
		assembler: assembler,
		inflight:  make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit appends text as a user message, names the conversation after it
// when it is the first one, and streams the answer into a new assistant
// message. Blank text is rejected with ErrEmptyMessage and changes nothing.
func (c *Chat) Submit(ctx context.Context, key, text string) (provider.Result, error) {
	if strings.TrimSpace(text) == "" {
		return provider.Result{}, ErrEmptyMessage
	}

	turnCtx, done, err := c.begin(ctx, key)
	if err != nil {
		return provider.Result{}, err
	}
	defer done()

	conv, err := c.store.Conversation(key)
	if err != nil {
		return provider.Result{}, err
	}
	history := provider.ConvertMessages(conv.Messages)

	index, err := c.store.AppendMessage(key, storage.Message{Role: storage.RoleUser, Content: text})
	if err != nil {
		return provider.Result{}, err
	}
	if index == 0 {
		if err := c.store.RenameConversation(key, storage.GenerateChatName(text)); err != nil {
			return provider.Result{}, err
		}
	}
	c.emit(TurnEvent{Key: key, State: TurnUserAppended, Index: index, Text: text})

	return c.stream(turnCtx, key, conv.SystemRole, history, text)
}

// Regenerate discards everything after user message i and streams a fresh
// answer to it. The discarded messages are gone for good.
func (c *Chat) Regenerate(ctx context.Context, key string, i int) (provider.Result, error) {
	turnCtx, done, err := c.begin(ctx, key)
	if err != nil {
		return provider.Result{}, err
	}
	defer done()

	if _, err := c.userMessage(key, i); err != nil {
		return provider.Result{}, err
	}
	return c.regenerate(turnCtx, key, i)
}

// Edit replaces the content of user message i and regenerates from it.
func (c *Chat) Edit(ctx context.Context, key string, i int, content string) (provider.Result, error) {
	if strings.TrimSpace(content) == "" {
		return provider.Result{}, ErrEmptyMessage
	}

	turnCtx, done, err := c.begin(ctx, key)
	if err != nil {
		return provider.Result{}, err
	}
	defer done()

	if _, err := c.userMessage(key, i); err != nil {
		return provider.Result{}, err
	}
	if err := c.store.ReplaceMessageAt(key, i, content); err != nil {
		return provider.Result{}, err
	}
	return c.regenerate(turnCtx, key, i)
}

// Delete removes exactly message i. Later messages keep their order.
func (c *Chat) Delete(key string, i int) error {
	if c.Busy(key) {
		return ErrTurnInProgress
	}
	return c.store.DeleteMessageAt(key, i)
}

// RemoveConversation stops any turn running in key and removes it.
func (c *Chat) RemoveConversation(key string) error {
	c.Cancel(key)
	return c.store.RemoveConversation(key)
}

// Cancel stops the turn running in key. It reports whether there was one.
func (c *Chat) Cancel(key string) bool {
	c.mu.Lock()
	cancel, ok := c.inflight[key]
	c.mu.Unlock()

	if ok {
		config.DebugLog.Info("cancelling turn", "key", key)
		cancel()
	}
	return ok
}

// CancelAll stops every running turn.
func (c *Chat) CancelAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cancel := range c.inflight {
		cancel()
	}
}

// Busy reports whether a turn is running in key.
func (c *Chat) Busy(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inflight[key]
	return ok
}

// begin claims key for one turn. The returned func releases it.
func (c *Chat) begin(ctx context.Context, key string) (context.Context, func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, busy := c.inflight[key]; busy {
		return nil, nil, ErrTurnInProgress
	}
	if _, err := c.store.Conversation(key); err != nil {
		return nil, nil, err
	}

	turnCtx, cancel := context.WithCancel(ctx)
	c.inflight[key] = cancel

	return turnCtx, func() {
		c.mu.Lock()
		delete(c.inflight, key)
		c.mu.Unlock()
		cancel()
		c.emit(TurnEvent{Key: key, State: TurnIdle, Index: -1})
	}, nil
}

func (c *Chat) userMessage(key string, i int) (storage.Message, error) {
	conv, err := c.store.Conversation(key)
	if err != nil {
		return storage.Message{}, err
	}
	if err := checkIndex(&conv, i); err != nil {
		return storage.Message{}, err
	}
	if conv.Messages[i].Role != storage.RoleUser {
		return storage.Message{}, ErrNotUserMessage
	}
	return conv.Messages[i], nil
}

// regenerate sends messages[0..i) as history and messages[i] as the new
// turn, after cutting the list down to [0..i].
func (c *Chat) regenerate(ctx context.Context, key string, i int) (provider.Result, error) {
	conv, err := c.store.Conversation(key)
	if err != nil {
		return provider.Result{}, err
	}
	if err := c.store.TruncateAfter(key, i); err != nil {
		return provider.Result{}, err
	}

	text := conv.Messages[i].Content
	c.emit(TurnEvent{Key: key, State: TurnUserAppended, Index: i, Text: text})

	return c.stream(ctx, key, conv.SystemRole, provider.ConvertMessages(conv.Messages[:i]), text)
}

// stream appends the assistant placeholder and overwrites it with every
// partial and then with the final text.
func (c *Chat) stream(ctx context.Context, key, systemRole string, history []provider.Message, text string) (provider.Result, error) {
	placeholder, err := c.store.AppendMessage(key, storage.Message{Role: storage.RoleAssistant})
	if err != nil {
		return provider.Result{}, err
	}
	c.emit(TurnEvent{Key: key, State: TurnPlaceholderAppended, Index: placeholder})

	req := provider.Request{
		Settings:   c.store.EffectiveSettings(),
		SystemRole: systemRole,
		History:    history,
		UserText:   text,
	}

	c.emit(TurnEvent{Key: key, State: TurnStreaming, Index: placeholder})

	var final *provider.Result
	for ev := range c.assembler.Stream(ctx, req) {
		if ev.Final != nil {
			final = ev.Final
			continue
		}
		if err := c.store.ReplaceMessageAt(key, placeholder, ev.Partial); err != nil {
			config.DebugLog.Warn("dropping partial", "key", key, "err", err)
			continue
		}
		c.emit(TurnEvent{Key: key, State: TurnStreaming, Index: placeholder, Text: ev.Partial})
	}

	if final == nil {
		final = &provider.Result{Text: provider.ErrorNotice, Outcome: provider.OutcomeFailed, Err: errStreamClosed}
	}

	if err := c.store.ReplaceMessageAt(key, placeholder, final.Text); err != nil {
		config.DebugLog.Warn("dropping final text", "key", key, "err", err)
	}

	state := TurnCompleted
	switch final.Outcome {
	case provider.OutcomeCancelled:
		state = TurnCancelled
	case provider.OutcomeFailed:
		state = TurnFailed
		config.DebugLog.Error("turn failed", "key", key, "err", final.Err)
	}
	c.emit(TurnEvent{Key: key, State: state, Index: placeholder, Text: final.Text})

	return *final, nil
}

func (c *Chat) emit(ev TurnEvent) {
	if c.observer != nil {
		c.observer(ev)
	}
}
