package tokens

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const defaultBytesPerToken = 4

// Counter counts tokens with a tiktoken encoding, or estimates them from the UTF-8 length
// when no encoding is configured or it cannot be loaded.
type Counter struct {
	mu       sync.Mutex
	encoding *tiktoken.Tiktoken
	estimate Estimator
}

// Estimator approximates tokens as ceil(bytes / bytesPerToken).
type Estimator struct {
	BytesPerToken int
}

func (e Estimator) Count(text string) int {
	bpt := e.BytesPerToken
	if bpt <= 0 {
		bpt = defaultBytesPerToken
	}
	n := len(text)
	if n == 0 {
		return 0
	}
	return (n + bpt - 1) / bpt
}

// NewCounter loads the named encoding (for example cl100k_base). An empty name selects the estimator.
func NewCounter(encodingName string) *Counter {
	counter := &Counter{estimate: Estimator{BytesPerToken: defaultBytesPerToken}}
	name := strings.TrimSpace(encodingName)
	if name == "" {
		return counter
	}

	encoding, err := tiktoken.GetEncoding(name)
	if err != nil {
		slog.Warn("token_encoding_unavailable", "encoding", name, "error", err)
		return counter
	}
	counter.encoding = encoding
	return counter
}

func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	if c.encoding == nil {
		return c.estimate.Count(text)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.encoding.Encode(text, nil, nil))
}

// Exact reports whether counts come from a real encoding.
func (c *Counter) Exact() bool {
	return c.encoding != nil
}
