package main

import (
	"context"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gamma-omg/rag-ingest/docstore"
)

type mockRetriever struct {
	mock.Mock
}

func (m *mockRetriever) Retrieve(ctx context.Context, query string) ([]docstore.SearchResult, error) {
	args := m.Called(ctx, query)
	res, _ := args.Get(0).([]docstore.SearchResult)
	return res, args.Error(1)
}

func callSearch(t *testing.T, retriever docRetriever, args map[string]any) *mcp.CallToolResult {
	t.Helper()

	req := mcp.CallToolRequest{}
	req.Params.Name = "search_documents"
	req.Params.Arguments = args

	res, err := searchHandler(retriever, nil)(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func Test_SearchHandler(t *testing.T) {
	r := new(mockRetriever)
	r.On("Retrieve", mock.Anything, "venus").Return([]docstore.SearchResult{
		{Text: "A day on Venus is longer than its year.", File: "facts.txt", Section: "Space", Score: 0.5},
		{Text: "Octopuses have three hearts.", File: "facts.txt", Score: 0.25},
	}, nil)

	res := callSearch(t, r, map[string]any{"query": "venus"})

	assert.False(t, res.IsError)
	assert.Equal(t,
		`{"score":0.5,"file":"facts.txt","section":"Space","text":"A day on Venus is longer than its year."}`+"\n"+
			`{"score":0.25,"file":"facts.txt","text":"Octopuses have three hearts."}`+"\n",
		resultText(t, res))
	r.AssertExpectations(t)
}

func Test_SearchHandler_MissingQuery(t *testing.T) {
	r := new(mockRetriever)

	res := callSearch(t, r, map[string]any{})

	assert.True(t, res.IsError)
	r.AssertNotCalled(t, "Retrieve", mock.Anything, mock.Anything)
}

func Test_SearchHandler_RetrieveError(t *testing.T) {
	r := new(mockRetriever)
	r.On("Retrieve", mock.Anything, "venus").Return(nil, errors.New("store unavailable"))

	res := callSearch(t, r, map[string]any{"query": "venus"})

	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "store unavailable")
}

func Test_NewRagServer(t *testing.T) {
	srv := NewRagServer(new(mockRetriever), nil)
	assert.NotNil(t, srv)
}
