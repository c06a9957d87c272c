// Package llmtest provides a scriptable llm.Client for tests.
package llmtest

import (
	"context"
	"strings"
	"sync"

	"github.com/BerylCAtieno/startup-discovery-agent/internal/llm"
)

// Rule answers requests whose system or user message contains Match.
type Rule struct {
	Match  string
	Reply  string
	Chunks []string
	Err    error
}

// Fake is an llm.Client answering from rules in order. The first rule whose
// Match is found in the request wins; unmatched requests get Default.
type Fake struct {
	mu      sync.Mutex
	rules   []Rule
	Default string
	calls   []llm.Request
	streams int
}

// New returns a Fake with the given rules.
func New(rules ...Rule) *Fake {
	return &Fake{rules: rules, Default: "Generic response with 42% growth in market revenue."}
}

// On appends a rule.
func (f *Fake) On(r Rule) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, r)
	return f
}

func (f *Fake) Model() string { return "fake-model" }

func (f *Fake) Complete(ctx context.Context, req llm.Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	r := f.record(req)
	if r.Err != nil {
		return "", r.Err
	}
	if r.Reply == "" && len(r.Chunks) > 0 {
		return strings.Join(r.Chunks, ""), nil
	}
	return r.Reply, nil
}

func (f *Fake) Stream(ctx context.Context, req llm.Request, handle llm.DeltaHandler) error {
	r := f.record(req)
	f.mu.Lock()
	f.streams++
	f.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	chunks := r.Chunks
	if len(chunks) == 0 {
		chunks = []string{r.Reply}
	}
	for _, c := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := handle(c); err != nil {
			return err
		}
	}
	return nil
}

func (f *Fake) record(req llm.Request) Rule {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	for _, r := range f.rules {
		if strings.Contains(req.System, r.Match) || strings.Contains(req.User, r.Match) {
			return r
		}
	}
	return Rule{Reply: f.Default}
}

// Calls returns a copy of every request received.
func (f *Fake) Calls() []llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llm.Request(nil), f.calls...)
}

// CallsMatching counts requests whose user message contains s.
func (f *Fake) CallsMatching(s string) int {
	n := 0
	for _, c := range f.Calls() {
		if strings.Contains(c.User, s) {
			n++
		}
	}
	return n
}

// Streams counts Stream invocations.
func (f *Fake) Streams() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streams
}
