package services

import (
	"hash/fnv"
	"sync"
)

// ConversationLocks serializes commit-then-dispatch per conversation, so every
// connection in a room sees that conversation's events in commit order.
// Conversations hash onto a fixed set of stripes; unrelated conversations
// may share a stripe, which only costs throughput.
type ConversationLocks struct {
	stripes []sync.Mutex
}

// NewConversationLocks, constructor. n < 1 is treated as 1.
func NewConversationLocks(n int) *ConversationLocks {
	if n < 1 {
		n = 1
	}
	return &ConversationLocks{stripes: make([]sync.Mutex, n)}
}

// Lock acquires the stripe for conversationID and returns its unlock func.
func (l *ConversationLocks) Lock(conversationID string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(conversationID))
	mu := &l.stripes[h.Sum32()%uint32(len(l.stripes))]
	mu.Lock()
	return mu.Unlock
}
