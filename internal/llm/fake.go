package llm

import (
	"context"
	"errors"
)

// FakeClient is a scripted Client for tests: each call to Complete pops
// the next scripted response (or error) off its queue.
type FakeClient struct {
	Responses []string
	Errors    []error
	calls     int
}

// NewFakeClient returns a FakeClient that yields responses in order.
func NewFakeClient(responses ...string) *FakeClient {
	return &FakeClient{Responses: responses}
}

func (f *FakeClient) Complete(_ context.Context, _, _ string, _ ...CompleteOption) (string, error) {
	i := f.calls
	f.calls++
	if i < len(f.Errors) && f.Errors[i] != nil {
		return "", f.Errors[i]
	}
	if i >= len(f.Responses) {
		return "", errors.New("fake client: no scripted response for call")
	}
	return f.Responses[i], nil
}

// Calls reports how many times Complete has been invoked.
func (f *FakeClient) Calls() int { return f.calls }
