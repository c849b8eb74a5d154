package ai

import (
	"log/slog"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter counts and trims text by model tokens. When the BPE tables
// cannot be loaded it falls back to a four-characters-per-token estimate.
type TokenCounter struct {
	once sync.Once
	tkm  *tiktoken.Tiktoken
}

// DefaultTokenCounter is shared by services; tables load lazily on first use.
var DefaultTokenCounter = &TokenCounter{}

func (t *TokenCounter) encoder() *tiktoken.Tiktoken {
	t.once.Do(func() {
		tkm, err := tiktoken.EncodingForModel("gpt-4-0613")
		if err != nil {
			slog.Warn("tiktoken unavailable, using estimated token counts", "error", err)
			return
		}
		t.tkm = tkm
	})
	return t.tkm
}

// Count returns the number of tokens in text.
func (t *TokenCounter) Count(text string) int {
	if tkm := t.encoder(); tkm != nil {
		return len(tkm.Encode(text, nil, nil))
	}
	return (len([]rune(text)) + 3) / 4
}

// TrimFront keeps the trailing budget tokens of text. The most recent prose is
// what the next chapter continues from, so the start is what gets cut.
func (t *TokenCounter) TrimFront(text string, budget int) string {
	if budget <= 0 {
		return ""
	}
	// every token covers at least one byte
	if len(text) <= budget {
		return text
	}
	if tkm := t.encoder(); tkm != nil {
		tokens := tkm.Encode(text, nil, nil)
		if len(tokens) <= budget {
			return text
		}
		return tkm.Decode(tokens[len(tokens)-budget:])
	}
	runes := []rune(text)
	if len(runes) <= budget*4 {
		return text
	}
	return string(runes[len(runes)-budget*4:])
}
