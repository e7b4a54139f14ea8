package agent

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

	"github.com/lexlanka/gavel/pkg/bm25"
	"github.com/lexlanka/gavel/pkg/indexstore"
	"github.com/lexlanka/gavel/pkg/llms"
	"github.com/lexlanka/gavel/pkg/retrievers"
	"github.com/lexlanka/gavel/pkg/sessions"
)

type fakeLLM struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     [][]llms.Message
}

func (f *fakeLLM) Chat(ctx context.Context, messages []llms.Message, opts *llms.GenerateOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	copied := make([]llms.Message, len(messages))
	copy(copied, messages)
	f.calls = append(f.calls, copied)

	if f.err != nil {
		return llms.Fallback, f.err
	}
	if len(f.responses) == 0 {
		return "ok", nil
	}
	out := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return out, nil
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string, opts *llms.GenerateOptions) (string, error) {
	return f.Chat(ctx, []llms.Message{{Role: llms.RoleUser, Content: prompt}}, opts)
}

func (f *fakeLLM) ModelName() string { return "fake-model" }
func (f *fakeLLM) Close() error      { return nil }

func (f *fakeLLM) lastCall() []llms.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return nil
	}
	return f.calls[len(f.calls)-1]
}

type fakeTranslator struct {
	output string
	called bool
}

func (f *fakeTranslator) Translate(_ context.Context, text, _, _ string) (string, error) {
	f.called = true
	if f.output == "" {
		return text, nil
	}
	return f.output, nil
}

func (f *fakeTranslator) Available() bool { return true }

// testRetriever builds a sparse-only retriever over one collection.
func testRetriever(t *testing.T, contents []string, docs []map[string]any) *retrievers.Retriever {
	t.Helper()
	dir := t.TempDir()

	corpus := make([][]string, len(contents))
	for i, c := range contents {
		corpus[i] = bm25.Tokenize(c)
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
	return retrievers.New(store, nil, 5)
}

func budgetRetriever(t *testing.T) *retrievers.Retriever {
	t.Helper()
	return testRetriever(t,
		[]string{
			"The budget deadline for Urban Councils is two weeks.",
			"Municipal composition amended by order.",
			"Fisheries licensing schedule revised annually.",
		},
		[]map[string]any{
			{"name": "01-2013_2024_E", "type": "bill", "content": "The budget deadline for Urban Councils is two weeks."},
			{"name": "02-2014_2024_E", "type": "bill", "content": "Municipal composition amended by order."},
			{"name": "03-2015_2024_E", "type": "bill", "content": "Fisheries licensing schedule revised annually."},
		})
}

func TestEntryNode(t *testing.T) {
	assert.Equal(t, nodeTranslate, entryNode(&Frame{Language: "si"}))
	assert.Equal(t, nodeTranslate, entryNode(&Frame{Language: "ta"}))
	assert.Equal(t, nodeRetrieve, entryNode(&Frame{Language: "en"}))
	assert.Equal(t, nodeRetrieve, entryNode(&Frame{}))
}

func TestGraphTranslatesBeforeRetrieval(t *testing.T) {
	translator := &fakeTranslator{output: "budget"}
	llm := &fakeLLM{responses: []string{"answer"}}
	g := NewGraph(translator, budgetRetriever(t), llm)

	frame := &Frame{Query: "බජට්ටුව", OriginalQuery: "බජට්ටුව", Language: "si"}
	require.NoError(t, g.Run(context.Background(), frame))

	assert.True(t, translator.called)
	assert.Equal(t, "budget", frame.Query)
	require.NotEmpty(t, frame.Docs)
	assert.Equal(t, "01-2013_2024_E", frame.Docs[0].Document.Name)

	// The generate prompt answers in the caller's language.
	system := llm.lastCall()[0]
	assert.Equal(t, llms.RoleSystem, system.Role)
	assert.Contains(t, system.Content, "Provide your answer in si.")
}

func TestGraphEnglishSkipsTranslation(t *testing.T) {
	translator := &fakeTranslator{output: "should-not-be-used"}
	llm := &fakeLLM{responses: []string{"answer"}}
	g := NewGraph(translator, budgetRetriever(t), llm)

	frame := &Frame{Query: "budget deadline", OriginalQuery: "budget deadline", Language: "en"}
	require.NoError(t, g.Run(context.Background(), frame))

	assert.False(t, translator.called)
	assert.Equal(t, "budget deadline", frame.Query)
	assert.Equal(t, "answer", frame.Response)
}

func TestGraphGenerationFailure(t *testing.T) {
	llm := &fakeLLM{err: assert.AnError}
	g := NewGraph(&fakeTranslator{}, budgetRetriever(t), llm)

	frame := &Frame{Query: "budget deadline", Language: "en"}
	require.NoError(t, g.Run(context.Background(), frame))

	assert.Equal(t, generateApology, frame.Response)
	assert.True(t, frame.generateFailed)
}

func TestPromptContract(t *testing.T) {
	frame := &Frame{
		Query:     "What is the budget deadline?",
		Language:  "si",
		Context:   "Budget deadlines are two weeks.",
		Citations: []string{"01-2013_2024_E", "02-2014_2024_E"},
	}

	messages := buildChatMessages(frame)
	require.Len(t, messages, 2)
	system := messages[0].Content

	for _, want := range []string{
		"You are a helpful assistant specialized in Sri Lankan law.",
		"1. Answer questions accurately using the provided context",
		"2. Cite sources using [filename] format after relevant sentences",
		"3. If context is insufficient, acknowledge limitations",
		"4. Recommend consulting legal professionals for legal advice",
		"5. If the corpus does not cover the question, refer the user to documents.gov.lk as the authoritative source",
		"6. Adapt your tone: professional for technical questions, accessible for general queries",
		"7. Always end with a friendly follow-up question to continue the conversation",
		"Context from legal documents:\nBudget deadlines are two weeks.",
		"Citations available: 01-2013_2024_E, 02-2014_2024_E",
		"Provide your answer in si.",
	} {
		assert.Contains(t, system, want)
	}

	assert.Equal(t, llms.RoleUser, messages[1].Role)
	assert.Equal(t, "What is the budget deadline?", messages[1].Content)
}

func TestPromptIncludesHistoryBetweenSystemAndQuery(t *testing.T) {
	frame := &Frame{Query: "Q2", Language: "en"}
	frame.Messages = append(frame.Messages,
		sessions.NewMessage(llms.RoleUser, "Q1"),
		sessions.NewMessage(llms.RoleAssistant, "A1"))

	messages := buildChatMessages(frame)
	require.Len(t, messages, 4)
	assert.Equal(t, llms.RoleSystem, messages[0].Role)
	assert.Equal(t, "Q1", messages[1].Content)
	assert.Equal(t, "A1", messages[2].Content)
	assert.Equal(t, "Q2", messages[3].Content)
}

func TestCitationNamesFirstSeenOrder(t *testing.T) {
	docs := []retrievers.Scored{
		{Document: indexstore.Document{Name: "b"}},
		{Document: indexstore.Document{Name: "a"}},
		{Document: indexstore.Document{Name: "b"}},
		{Document: indexstore.Document{Name: ""}},
	}
	assert.Equal(t, []string{"b", "a"}, citationNames(docs))
}

func TestClampContextKeepsChunkBoundaries(t *testing.T) {
	small := retrievers.Scored{Document: indexstore.Document{Content: "short chunk"}}
	big := retrievers.Scored{Document: indexstore.Document{Content: strings.Repeat("word ", 30000)}}

	out := clampContext([]retrievers.Scored{small, big})
	// The oversized trailing chunk is dropped at the boundary.
	assert.Equal(t, "short chunk", out)

	out = clampContext([]retrievers.Scored{big})
	assert.NotEmpty(t, out)
	assert.Less(t, len(out), len(big.Document.Content))
}
