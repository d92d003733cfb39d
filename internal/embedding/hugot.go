package embedding

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/draven0x/wayfinder/api/schemas"
	"github.com/knights-analytics/hugot"
)

const defaultModelName = "sentence-transformers/all-MiniLM-L6-v2"

// HugotDim is the embedding width of the default sentence-transformer model.
const HugotDim = 384

// HugotEmbedder runs a local ONNX sentence-transformer through hugot's pure
// Go backend. No network calls after the one-time model download.
type HugotEmbedder struct {
	embed func(string) ([]float32, error)
	close func() error
}

var _ schemas.Embedder = (*HugotEmbedder)(nil)

// NewHugotEmbedder downloads the model into modelDir if missing and builds
// the feature-extraction pipeline.
func NewHugotEmbedder(modelDir string) (*HugotEmbedder, error) {
	modelPath, err := prepareModel(modelDir)
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "wayfinder-embedder",
	}
	pipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create embedding pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create embedding pipeline: %w", err)
	}

	embed := func(text string) ([]float32, error) {
		result, err := pipeline.RunPipeline([]string{text})
		if err != nil {
			return nil, fmt.Errorf("failed to generate embedding: %w", err)
		}
		if len(result.Embeddings) == 0 {
			return nil, fmt.Errorf("no embedding generated")
		}
		return result.Embeddings[0], nil
	}
	return &HugotEmbedder{embed: embed, close: session.Destroy}, nil
}

func prepareModel(modelDir string) (string, error) {
	modelPath := filepath.Join(modelDir, "sentence-transformers_all-MiniLM-L6-v2")
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		if err := os.MkdirAll(modelDir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create model directory: %w", err)
		}
		opts := hugot.NewDownloadOptions()
		opts.OnnxFilePath = "onnx/model.onnx"
		downloaded, err := hugot.DownloadModel(defaultModelName, modelDir, opts)
		if err != nil {
			return "", fmt.Errorf("failed to download embedding model: %w", err)
		}
		modelPath = downloaded
	}
	return modelPath, nil
}

// EmbedText produces a 384-dimensional embedding of s.
func (h *HugotEmbedder) EmbedText(ctx context.Context, s string) ([]float32, error) {
	return h.embed(s)
}

// EmbedStructure renders the observation's widget list to text and embeds
// that, so structural and textual evidence live in the same vector space.
func (h *HugotEmbedder) EmbedStructure(ctx context.Context, obs schemas.UIObservation) ([]float32, error) {
	return h.EmbedText(ctx, RenderObservation(obs))
}

// Close releases the ONNX session.
func (h *HugotEmbedder) Close() error {
	return h.close()
}
