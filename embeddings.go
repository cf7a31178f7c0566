package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/amikos-tech/chroma-go/pkg/embeddings"
	gemini "github.com/amikos-tech/chroma-go/pkg/embeddings/gemini"
	openai "github.com/amikos-tech/chroma-go/pkg/embeddings/openai"
	"github.com/philippgille/chromem-go"
)

var errNoEmbeddings = errors.New("invalid embeddings provider configuration")

func createEmbeddingFunction(cfg *Config) (embeddings.EmbeddingFunction, error) {
	if cfg.OpenAI.ApiKey != "" {
		ef, err := openai.NewOpenAIEmbeddingFunction(
			cfg.OpenAI.ApiKey,
			openai.WithModel(openai.EmbeddingModel(cfg.OpenAI.Model)))
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenAI embedding function: %w", err)
		}

		return ef, nil
	}

	if cfg.Gemini.ApiKey != "" {
		ef, err := gemini.NewGeminiEmbeddingFunction(
			gemini.WithAPIKey(cfg.Gemini.ApiKey),
			gemini.WithDefaultModel(embeddings.EmbeddingModel(cfg.Gemini.Model)))
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini embedding function: %w", err)
		}

		return ef, nil
	}

	return nil, errNoEmbeddings
}

// createChromemEmbeddingFunc prefers a local Ollama model and otherwise
// adapts the hosted providers to chromem's function type.
func createChromemEmbeddingFunc(cfg *Config) (chromem.EmbeddingFunc, error) {
	if cfg.Ollama.Model != "" {
		return chromem.NewEmbeddingFuncOllama(cfg.Ollama.Model, cfg.Ollama.URL), nil
	}

	if cfg.OpenAI.ApiKey != "" {
		model := chromem.EmbeddingModelOpenAI3Small
		if cfg.OpenAI.Model != "" {
			model = chromem.EmbeddingModelOpenAI(cfg.OpenAI.Model)
		}
		return chromem.NewEmbeddingFuncOpenAI(cfg.OpenAI.ApiKey, model), nil
	}

	ef, err := createEmbeddingFunction(cfg)
	if err != nil {
		return nil, err
	}

	return chromemAdapter(ef), nil
}

func chromemAdapter(ef embeddings.EmbeddingFunction) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		emb, err := ef.EmbedQuery(ctx, text)
		if err != nil {
			return nil, err
		}

		return emb.ContentAsFloat32(), nil
	}
}
