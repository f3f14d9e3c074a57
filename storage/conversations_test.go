package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateChatName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"short", "hi", "hi"},
		{"exactly thirty", strings.Repeat("a", 30), strings.Repeat("a", 30)},
		{"truncated", "How do I write a table-driven test in Go?", "How do I write a table-driven "},
		{"multibyte", strings.Repeat("你", 40), strings.Repeat("你", 30)},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GenerateChatName(tt.input)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, len([]rune(got)), MaxChatNameLength)
		})
	}
}

func TestNewConversationKeyIsUniqueAndTimeOrdered(t *testing.T) {
	seen := map[string]bool{}
	prev := ""
	for i := 0; i < 100; i++ {
		key, err := NewConversationKey()
		require.NoError(t, err)
		assert.False(t, seen[key], "duplicate key %s", key)
		seen[key] = true
		if prev != "" {
			assert.Greater(t, key, prev)
		}
		prev = key
	}
}

func TestConversationCloneDoesNotAlias(t *testing.T) {
	c := Conversation{Messages: []Message{{Role: RoleUser, Content: "a"}}}
	clone := c.Clone()
	clone.Messages[0].Content = "b"

	assert.Equal(t, "a", c.Messages[0].Content)
}

func TestConversationSetListNewestFirst(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	set := ConversationSet{
		"a": {Name: "old", CreatedAt: t0},
		"b": {Name: "new", CreatedAt: t0.Add(time.Hour), Messages: []Message{{}, {}}},
		"c": {Name: "mid", CreatedAt: t0.Add(time.Minute)},
	}

	list := set.List()
	require.Len(t, list, 3)
	assert.Equal(t, []string{"b", "c", "a"}, []string{list[0].Key, list[1].Key, list[2].Key})
	assert.Equal(t, 2, list[0].MessageCount)

	newest, ok := set.Newest()
	assert.True(t, ok)
	assert.Equal(t, "b", newest)

	_, ok = ConversationSet{}.Newest()
	assert.False(t, ok)
}

func TestSettingsWithDefaults(t *testing.T) {
	s := Settings{APIKey: "sk"}.WithDefaults()
	assert.Equal(t, Settings{APIKey: "sk", APIBase: DefaultAPIBase, Model: DefaultModel}, s)

	custom := Settings{APIBase: "http://proxy", Model: "m"}.WithDefaults()
	assert.Equal(t, "http://proxy", custom.APIBase)
	assert.Equal(t, "m", custom.Model)
}

func TestSearchConversations(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	set := ConversationSet{
		"a": {Name: "Kubernetes networking", CreatedAt: t0},
		"b": {Name: "Go generics", CreatedAt: t0.Add(time.Hour)},
		"c": {Name: "Untitled Chat", CreatedAt: t0.Add(2 * time.Hour)},
	}

	all := SearchConversations(set, "")
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].Key)

	hits := SearchConversations(set, "gogen")
	require.Len(t, hits, 1)
	assert.Equal(t, "b", hits[0].Key)
	assert.NotEmpty(t, hits[0].MatchedIndexes)

	assert.Empty(t, SearchConversations(set, "zzz"))
}
