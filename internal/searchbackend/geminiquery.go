package searchbackend

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/foundryml/forge/internal/common"
)

const defaultQueryExpansionModel = "gemini-3-flash-preview"

// QueryExpander asks Gemini for alternative phrasings of a query before it
// reaches the search backend, the same optional-helper role the original
// system's knowledge-gap tooling gave an LLM: additive recall, never
// required for a build to succeed. Selected by config; builds proceed with
// the original query text if no expander is configured.
type QueryExpander struct {
	client *genai.Client
	model  string
	logger *common.Logger
}

// NewQueryExpander constructs a QueryExpander backed by the Gemini API.
// model may be empty, in which case defaultQueryExpansionModel is used.
func NewQueryExpander(ctx context.Context, apiKey, model string, logger *common.Logger) (*QueryExpander, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if model == "" {
		model = defaultQueryExpansionModel
	}
	return &QueryExpander{client: client, model: model, logger: logger}, nil
}

// Expand returns queryText followed by up to n alternative phrasings, one
// per line of the model's response. On any error it logs a warning and
// returns the original query text alone, since query expansion is additive,
// not load-bearing.
func (q *QueryExpander) Expand(ctx context.Context, queryText string, n int) []string {
	prompt := fmt.Sprintf(
		"Rewrite the following search query in %d distinct ways that preserve its meaning. "+
			"Reply with exactly %d lines, one rewrite per line, no numbering.\n\nQuery: %s",
		n, n, queryText,
	)

	result, err := q.client.Models.GenerateContent(ctx, q.model, genai.Text(prompt), nil)
	if err != nil {
		q.logger.Warn().Err(err).Msg("query expansion failed, falling back to original query")
		return []string{queryText}
	}

	text, err := extractText(result)
	if err != nil {
		q.logger.Warn().Err(err).Msg("query expansion returned no content, falling back to original query")
		return []string{queryText}
	}

	variants := []string{queryText}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && len(variants) <= n {
			variants = append(variants, line)
		}
	}
	return variants
}

func extractText(result *genai.GenerateContentResponse) (string, error) {
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content generated")
	}
	var sb strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}
