package storage

import (
	"github.com/sahilm/fuzzy"
)

// ConversationMatch is a search hit over conversation names.
type ConversationMatch struct {
	ConversationMetadata
	MatchedIndexes []int
	Score          int
}

type conversationNames []ConversationMetadata

func (n conversationNames) String(i int) string { return n[i].Name }
func (n conversationNames) Len() int            { return len(n) }

// SearchConversations fuzzy-matches query against conversation names, best
// match first. An empty query returns every conversation, newest first.
func SearchConversations(set ConversationSet, query string) []ConversationMatch {
	list := set.List()

	if query == "" {
		matches := make([]ConversationMatch, len(list))
		for i, meta := range list {
			matches[i] = ConversationMatch{ConversationMetadata: meta}
		}
		return matches
	}

	found := fuzzy.FindFrom(query, conversationNames(list))
	matches := make([]ConversationMatch, len(found))
	for i, m := range found {
		matches[i] = ConversationMatch{
			ConversationMetadata: list[m.Index],
			MatchedIndexes:       m.MatchedIndexes,
			Score:                m.Score,
		}
	}
	return matches
}
