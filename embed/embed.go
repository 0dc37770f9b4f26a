// Package embed turns query text into vectors for the descriptor spaces.
package embed

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
)

// queryPrefix is prepended to query text before embedding. The bge family
// of models is trained with asymmetric query/passage prefixes.
const queryPrefix = "query: "

// Service is the vector embedding service interface.
type Service interface {
	// Embed generates a vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates vectors for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector dimension.
	Dimensions() int
}

// Config holds the connection settings for one embedding provider. Any
// OpenAI-compatible endpoint works (siliconflow, openai, ollama, ...).
type Config struct {
	Model      string
	APIKey     string
	BaseURL    string
	Dimensions int
}

type service struct {
	client     *openai.Client
	model      string
	dimensions int
}

// NewService creates a Service against an OpenAI-compatible endpoint.
func NewService(cfg *Config) (Service, error) {
	if cfg.Model == "" {
		return nil, errors.New("embedding model required")
	}
	if cfg.Dimensions <= 0 {
		return nil, errors.Errorf("invalid embedding dimensions: %d", cfg.Dimensions)
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	client := openai.NewClientWithConfig(clientConfig)

	return &service{
		client:     client,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}, nil
}

func (s *service) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, errors.New("empty embedding result")
	}
	return vectors[0], nil
}

func (s *service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, errors.New("no texts provided for embedding")
	}

	prefixed := make([]string, len(texts))
	for i, t := range texts {
		prefixed[i] = queryPrefix + t
	}

	req := openai.EmbeddingRequest{
		Input:      prefixed,
		Model:      openai.EmbeddingModel(s.model),
		Dimensions: s.dimensions,
	}

	resp, err := s.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create embeddings failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("empty embedding response")
	}

	vectors := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		if len(data.Embedding) != s.dimensions {
			return nil, errors.Errorf("provider returned %d dims, want %d", len(data.Embedding), s.dimensions)
		}
		vectors[i] = data.Embedding
	}
	return vectors, nil
}

func (s *service) Dimensions() int {
	return s.dimensions
}
