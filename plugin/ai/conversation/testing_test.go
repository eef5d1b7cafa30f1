package conversation

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/orioncx/plugin/ai/tokenizer"
)

// wordCounter counts whitespace separated words, giving tests exact control
// over token costs.
var wordCounter = tokenizer.Func(func(text string) int {
	return len(strings.Fields(text))
})

func words(n int, tag string) string {
	return strings.TrimSpace(strings.Repeat(tag+" ", n))
}

// tickingClock advances one second every call.
func tickingClock() func() time.Time {
	t := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func mustMessage(t *testing.T, role Role, content string) *Message {
	t.Helper()
	m, err := NewMessage(role, content)
	require.NoError(t, err)
	return m
}

func newTestConversation(t *testing.T, opts ...Option) *Conversation {
	t.Helper()
	opts = append([]Option{WithClock(tickingClock())}, opts...)
	c, err := New("user-1", opts...)
	require.NoError(t, err)
	return c
}
