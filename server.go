package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/gamma-omg/rag-ingest/docstore"
)

type docRetriever interface {
	Retrieve(ctx context.Context, query string) ([]docstore.SearchResult, error)
}

func NewRagServer(retriever docRetriever, log *slog.Logger) *server.MCPServer {
	tool := mcp.NewTool("search_documents",
		mcp.WithDescription("Search the ingested documents and return the most relevant chunks for RAG"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query"),
		))

	srv := server.NewMCPServer("rag-ingest", "0.1.0", server.WithToolCapabilities(false))
	srv.AddTool(tool, searchHandler(retriever, log))

	return srv
}

func searchHandler(retriever docRetriever, log *slog.Logger) server.ToolHandlerFunc {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		q, err := request.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		res, err := retriever.Retrieve(ctx, q)
		if err != nil {
			log.Error("retrieval failed", slog.String("query", q), slog.Any("error", err))
			return mcp.NewToolResultError(err.Error()), nil
		}

		log.Debug("query served", slog.String("query", q), slog.Int("results", len(res)))

		var response strings.Builder
		for _, r := range res {
			raw, err := json.Marshal(struct {
				Score   float32 `json:"score"`
				File    string  `json:"file"`
				Section string  `json:"section,omitempty"`
				Text    string  `json:"text"`
			}{
				Score:   r.Score,
				File:    r.File,
				Section: r.Section,
				Text:    r.Text,
			})
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}

			response.Write(raw)
			response.WriteByte('\n')
		}

		return mcp.NewToolResultText(response.String()), nil
	}
}
