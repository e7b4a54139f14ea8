package qa

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexlanka/gavel/pkg/agent"
	"github.com/lexlanka/gavel/pkg/bm25"
	"github.com/lexlanka/gavel/pkg/faults"
	"github.com/lexlanka/gavel/pkg/indexstore"
	"github.com/lexlanka/gavel/pkg/llms"
	"github.com/lexlanka/gavel/pkg/retrievers"
	"github.com/lexlanka/gavel/pkg/sessions"
	"github.com/lexlanka/gavel/pkg/translators"
)

type fakeLLM struct {
	mu       sync.Mutex
	response string
	err      error
}

func (f *fakeLLM) Chat(ctx context.Context, messages []llms.Message, opts *llms.GenerateOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return llms.Fallback, f.err
	}
	return f.response, nil
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string, opts *llms.GenerateOptions) (string, error) {
	return f.Chat(ctx, nil, opts)
}

func (f *fakeLLM) ModelName() string { return "fake-model" }
func (f *fakeLLM) Close() error      { return nil }

type fakeEmbedder struct {
	available bool
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) { return nil, nil }
func (f *fakeEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, nil
}
func (f *fakeEmbedder) Dimension() int    { return 384 }
func (f *fakeEmbedder) ModelName() string { return "fake" }
func (f *fakeEmbedder) Available() bool   { return f.available }
func (f *fakeEmbedder) Close() error      { return nil }

func testService(t *testing.T, llm llms.Provider, embedderAvailable bool) *Service {
	t.Helper()
	dir := t.TempDir()

	contents := []string{
		"The budget deadline for Urban Councils is two weeks.",
		"Municipal composition amended by order.",
		"Fisheries licensing schedule revised annually.",
	}
	corpus := make([][]string, len(contents))
	for i, c := range contents {
		corpus[i] = bm25.Tokenize(c)
	}
	docs := []map[string]any{
		{"name": "01-2013_2024_E", "type": "bill", "content": contents[0]},
		{"name": "02-2014_2024_E", "type": "bill", "content": contents[1]},
		{"name": "03-2015_2024_E", "type": "bill", "content": contents[2]},
	}
	for name, v := range map[string]any{
		"bills_bm25.json": corpus,
		"bills_data.json": docs,
	} {
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), raw, 0o644))
	}

	store := indexstore.New(dir, nil)
	_, err := store.Initialize(context.Background(), false)
	require.NoError(t, err)

	retriever := retrievers.New(store, nil, 5)
	graph := agent.NewGraph(translators.Identity{}, retriever, llm)
	runner := agent.NewRunner(graph, sessions.NewMemoryStore())
	return New(runner, nil, &fakeEmbedder{available: embedderAvailable}, "")
}

func TestDeriveSessionID(t *testing.T) {
	a := DeriveSessionID("What is the budget deadline?")
	b := DeriveSessionID("What is the budget deadline?")
	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, "session_"))
	assert.Len(t, a, len("session_")+16)

	// Only the first 50 characters participate.
	long := strings.Repeat("x", 50)
	assert.Equal(t, DeriveSessionID(long), DeriveSessionID(long+"ignored tail"))
	assert.NotEqual(t, a, DeriveSessionID("different question"))
}

func TestAnswerSuccess(t *testing.T) {
	s := testService(t, &fakeLLM{response: "The deadline is two weeks. [01-2013_2024_E]"}, true)

	resp := s.Answer(context.Background(), Request{Query: "budget deadline", Language: "en"})
	assert.True(t, resp.Success)
	assert.Empty(t, resp.Error)
	assert.Equal(t, "The deadline is two weeks. [01-2013_2024_E]", resp.Response)
	assert.Contains(t, resp.Citations, "01-2013_2024_E")
	require.NotEmpty(t, resp.Files)
	assert.Equal(t, "https://documents.gov.lk/view/bills/01/2013/2024_E.pdf", resp.Files[0])
	assert.True(t, strings.HasPrefix(resp.SessionID, "session_"))
}

func TestAnswerUsesProvidedSessionID(t *testing.T) {
	s := testService(t, &fakeLLM{response: "ok"}, true)

	resp := s.Answer(context.Background(), Request{Query: "budget", SessionID: "s-explicit"})
	assert.Equal(t, "s-explicit", resp.SessionID)
}

func TestAnswerEmbedderUnavailable(t *testing.T) {
	s := testService(t, &fakeLLM{response: "never"}, false)

	resp := s.Answer(context.Background(), Request{Query: "budget deadline"})
	assert.False(t, resp.Success)
	assert.Equal(t, string(faults.ModelUnavailable), resp.Error)
	assert.NotEmpty(t, resp.Response)
	assert.NotEmpty(t, resp.SessionID)
}

func TestAnswerGenerationFailureNeverThrows(t *testing.T) {
	s := testService(t, &fakeLLM{err: assert.AnError}, true)

	resp := s.Answer(context.Background(), Request{Query: "budget deadline"})
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)
	// Raw provider text never leaks; the kind name does.
	assert.NotContains(t, resp.Error, assert.AnError.Error())
	assert.Equal(t, "I apologize, but I encountered an error generating a response. Please try again.", resp.Response)
}

func TestAnswerFilesDeduplicated(t *testing.T) {
	s := testService(t, &fakeLLM{response: "ok"}, true)

	resp := s.Answer(context.Background(), Request{Query: "budget deadline urban councils municipal"})
	seen := map[string]bool{}
	for _, f := range resp.Files {
		assert.False(t, seen[f], "duplicate file url %s", f)
		seen[f] = true
	}
}
