package budget

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// Counter counts prompt tokens.
type Counter interface {
	Count(text string) int
}

// Estimator approximates tokens as ceil(chars/4).
type Estimator struct{}

func (Estimator) Count(text string) int {
	return (utf8.RuneCountInString(text) + 3) / 4
}

// BPECounter counts tokens with a tiktoken encoding.
type BPECounter struct {
	enc *tiktoken.Tiktoken
}

var loaderOnce sync.Once

// NewBPECounter resolves the encoding used by model. BPE ranks come from the
// embedded offline loader, so no network access is needed.
func NewBPECounter(model string) (*BPECounter, error) {
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return nil, err
	}
	return &BPECounter{enc: enc}, nil
}

func (c *BPECounter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(c.enc.Encode(text, nil, nil))
}

// NewCounter returns a BPE counter for model when its encoding is known and
// the estimator otherwise.
func NewCounter(model string) Counter {
	if model != "" {
		if c, err := NewBPECounter(model); err == nil {
			return c
		}
	}
	return Estimator{}
}
