package conversation

import (
	"github.com/hrygo/orioncx/plugin/ai/tokenizer"
)

// Composer renders the effective system prompt text from the stored template,
// the conversation language and the retrieved context. It must be pure.
type Composer interface {
	Compose(base, language, ragContext string) string
}

// ComposerFunc adapts a function to Composer.
type ComposerFunc func(base, language, ragContext string) string

// Compose implements Composer.
func (f ComposerFunc) Compose(base, language, ragContext string) string {
	return f(base, language, ragContext)
}

// Window is the bounded prompt produced for one model call.
type Window struct {
	Messages []LLMMessage
	// SystemTokens is the cost of the composed system prompt.
	SystemTokens int
	TotalTokens  int
	Available    int
	Included     int
	Dropped      int
	// Overflow is set when the system prompt alone exceeds the budget.
	Overflow bool
}

// Assembler selects the most recent history that fits the token budget.
type Assembler struct {
	counter  tokenizer.Tokenizer
	composer Composer
}

// NewAssembler creates an assembler.
func NewAssembler(counter tokenizer.Tokenizer, composer Composer) *Assembler {
	if counter == nil {
		counter = tokenizer.Estimator{}
	}
	if composer == nil {
		composer = ComposerFunc(func(base, _, _ string) string { return base })
	}
	return &Assembler{counter: counter, composer: composer}
}

// Assemble builds the window for c. The stored system prompt is never
// modified; composition happens on a copy of its text every call.
func (a *Assembler) Assemble(c *Conversation) *Window {
	w := &Window{Available: c.AvailableTokens()}

	var system *LLMMessage
	running := 0
	if sp := c.SystemPrompt(); sp != nil {
		composed := a.composer.Compose(sp.Content(), c.Language(), c.RAGContext())
		system = &LLMMessage{Role: string(RoleSystem), Content: composed}
		running = a.counter.Count(composed)
		w.SystemTokens = running
		w.Overflow = running > w.Available
	}

	var history []LLMMessage
	candidates := 0
	stopped := false
	for i := len(c.messages) - 1; i >= 0; i-- {
		m := c.messages[i]
		if m.IsSystem() {
			continue
		}
		candidates++
		if stopped {
			continue
		}
		cost := a.counter.Count(m.Content())
		if running+cost > w.Available {
			stopped = true
			continue
		}
		running += cost
		history = append(history, m.ToLLM())
	}

	// history was collected newest first.
	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}

	if system != nil {
		w.Messages = append(w.Messages, *system)
	}
	w.Messages = append(w.Messages, history...)
	w.TotalTokens = running
	w.Included = len(history)
	w.Dropped = candidates - len(history)
	return w
}

// Memory returns the windowed prompt for c.
func (c *Conversation) Memory(a *Assembler) []LLMMessage {
	return a.Assemble(c).Messages
}
