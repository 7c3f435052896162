// Package tokens estimates prompt token counts for history trimming.
package tokens

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	mu       sync.Mutex
	encoders = make(map[string]*tiktoken.Tiktoken)
)

// Count returns the token count of text for the given model. When the BPE
// data for the model cannot be loaded (unknown model, no network for the
// vocabulary download) it falls back to a coarse bytes/4 estimate so trimming
// still behaves sanely.
func Count(model, text string) int {
	enc := encoderFor(model)
	if enc == nil {
		return len(text) / 4
	}
	return len(enc.Encode(text, nil, nil))
}

func encoderFor(model string) *tiktoken.Tiktoken {
	mu.Lock()
	defer mu.Unlock()
	if enc, ok := encoders[model]; ok {
		return enc
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			enc = nil
		}
	}
	// nil is cached too: one failed load should not retry on every message
	encoders[model] = enc
	return enc
}
