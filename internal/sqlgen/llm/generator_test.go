package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakeql/nlsearch/internal/domain"
	internalllm "github.com/lakeql/nlsearch/internal/llm"
)

// deadlineCapturingClient records the deadline on the context it's
// called with, so a test can assert the generator applies its own
// sub-deadline rather than inheriting whatever's left of the caller's.
type deadlineCapturingClient struct {
	internalllm.FakeClient
	capturedDeadline time.Time
	capturedOK       bool
}

func (c *deadlineCapturingClient) Complete(ctx context.Context, system, user string, opts ...internalllm.CompleteOption) (string, error) {
	c.capturedDeadline, c.capturedOK = ctx.Deadline()
	return c.FakeClient.Complete(ctx, system, user, opts...)
}

func TestGenerate_ParsesCleanJSON(t *testing.T) {
	fake := internalllm.NewFakeClient(`{"sql": "SELECT * FROM customers WHERE region = %(region)s LIMIT 100", ` +
		`"parameters": {"region": "서울"}, "explanation": "filter by region", "confidence": 0.9}`)
	g := New(fake, 0)

	got, err := g.Generate(context.Background(), domain.Intent{}, "customers in 서울")
	require.NoError(t, err)

	assert.Equal(t, domain.SourceLLM, got.Source)
	assert.InDelta(t, 0.9, got.Confidence, 0.001)
	assert.Equal(t, "서울", got.Parameters["region"])
}

func TestGenerate_RepairsFencedJSON(t *testing.T) {
	fake := internalllm.NewFakeClient("Here is the query:\n```json\n" +
		`{"sql": "SELECT * FROM customers LIMIT 100", "parameters": {}, "explanation": "all customers"}` +
		"\n```\nLet me know if you need anything else.")
	g := New(fake, 0)

	got, err := g.Generate(context.Background(), domain.Intent{}, "all customers")
	require.NoError(t, err)
	assert.InDelta(t, defaultConfidence, got.Confidence, 0.001)
}

func TestGenerate_MalformedJSONIsReported(t *testing.T) {
	fake := internalllm.NewFakeClient("not json at all")
	g := New(fake, 0)

	_, err := g.Generate(context.Background(), domain.Intent{}, "anything")
	require.Error(t, err)

	var genErr *domain.GenError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, domain.GenErrLLMMalformed, genErr.Kind)
	assert.True(t, genErr.Retriable())
}

func TestGenerate_AppliesOwnSubDeadlineShorterThanCallerBudget(t *testing.T) {
	fake := &deadlineCapturingClient{FakeClient: internalllm.FakeClient{Responses: []string{
		`{"sql": "SELECT * FROM customers LIMIT 100", "parameters": {}, "explanation": "all customers"}`,
	}}}
	g := New(fake, 2*time.Second)

	// Caller grants a much wider budget than the generator's own
	// configured timeout; the generator must still cut itself off at
	// its own timeout rather than inheriting the caller's deadline.
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	before := time.Now()
	_, err := g.Generate(ctx, domain.Intent{}, "all customers")
	require.NoError(t, err)

	require.True(t, fake.capturedOK, "client should have observed a deadline on its context")
	gotBudget := fake.capturedDeadline.Sub(before)
	assert.InDelta(t, 2.0, gotBudget.Seconds(), 0.25)
}

func TestGenerate_ClientErrorIsLLMUnavailable(t *testing.T) {
	fake := &internalllm.FakeClient{Errors: []error{errors.New("connection refused")}}
	g := New(fake, 0)

	_, err := g.Generate(context.Background(), domain.Intent{}, "anything")
	require.Error(t, err)

	var genErr *domain.GenError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, domain.GenErrLLMUnavailable, genErr.Kind)
	assert.False(t, genErr.Retriable())
}
