package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/worklens/backend/pkg/ai"
	"github.com/worklens/backend/pkg/common"
	"github.com/worklens/backend/pkg/logger"
)

// maxExtractInputTokens bounds the document content passed to one extraction
// call. Longer contents are truncated at a token boundary.
const maxExtractInputTokens = 12000

// Extractor is the model-facing capability the graph needs. Implementations
// are expected to be safe for concurrent use.
type Extractor interface {
	// ExtractEntitiesAndRelations pulls entities and directed relationships
	// out of one document. Malformed entries in the model output are dropped,
	// a failed model call is returned as an error.
	ExtractEntitiesAndRelations(ctx context.Context, title, content, docType string) (*Extraction, error)

	// AnalyzeQuery classifies a user message for retrieval. It always
	// produces a usable analysis, falling back to defaults when the model
	// call fails.
	AnalyzeQuery(ctx context.Context, message string) (common.QueryAnalysis, error)

	// GenerateAnswer produces the final free-form answer from the assembled
	// evidence context.
	GenerateAnswer(ctx context.Context, question, evidence, intent string) (string, error)
}

// EntityProperties is the per-entity payload the model fills in.
type EntityProperties struct {
	Confidence  float64 `json:"confidence" jsonschema_description:"Extraction confidence between 0.0 and 1.0"`
	Category    string  `json:"category" jsonschema_description:"Free-form category of the entity"`
	Description string  `json:"description" jsonschema_description:"Short description of the entity"`
}

type ExtractedEntity struct {
	Name       string           `json:"name" jsonschema_description:"Specific, non-duplicated entity name"`
	Type       string           `json:"type" jsonschema_description:"Entity type from the given vocabulary"`
	Properties EntityProperties `json:"properties"`
}

type RelationshipProperties struct {
	Strength    float64 `json:"strength" jsonschema_description:"Relationship strength between 0.0 and 1.0"`
	Context     string  `json:"context" jsonschema_description:"Sentence fragment the relationship was derived from"`
	Description string  `json:"description" jsonschema_description:"Short description of the relationship"`
}

type ExtractedRelationship struct {
	From       string                 `json:"from" jsonschema_description:"Source entity name"`
	To         string                 `json:"to" jsonschema_description:"Target entity name"`
	Type       string                 `json:"type" jsonschema_description:"Relationship type from the given vocabulary"`
	Properties RelationshipProperties `json:"properties"`
}

// Extraction is the validated result of one extraction call.
type Extraction struct {
	Entities      []ExtractedEntity       `json:"entities"`
	Relationships []ExtractedRelationship `json:"relationships"`
}

type queryAnalysisResult struct {
	QueryType    string   `json:"query_type" jsonschema_description:"One of HOW_TO, ANALYSIS, COMPARISON, TROUBLESHOOTING, GENERAL"`
	Keywords     []string `json:"keywords" jsonschema_description:"Up to three search keywords"`
	Focus        string   `json:"focus" jsonschema_description:"One of PROCEDURE, REPORT, BOTH"`
	EntityTypes  []string `json:"entity_types" jsonschema_description:"Entity types relevant to the question"`
	SearchIntent string   `json:"search_intent" jsonschema_description:"What the user is looking for"`
	Priority     string   `json:"priority" jsonschema_description:"One of HIGH, MEDIUM, LOW"`
}

// AIExtractor implements Extractor on top of an ai.AIClient.
type AIExtractor struct {
	client ai.AIClient
}

func NewAIExtractor(client ai.AIClient) *AIExtractor {
	return &AIExtractor{client: client}
}

func (e *AIExtractor) ExtractEntitiesAndRelations(ctx context.Context, title, content, docType string) (*Extraction, error) {
	cfg := extractionConfigFor(docType)
	prompt := fmt.Sprintf(extractPrompt,
		cfg.context, cfg.focus, title, truncateTokens(content, maxExtractInputTokens),
		cfg.entityTypes, cfg.relationTypes)

	var raw Extraction
	err := e.client.GenerateCompletionWithFormat(ctx,
		"knowledge_extraction",
		"Entities and directed relationships extracted from one document",
		prompt, &raw)
	if err != nil {
		return nil, fmt.Errorf("extracting from %q: %w", title, err)
	}

	out := &Extraction{}
	for _, ent := range raw.Entities {
		if strings.TrimSpace(ent.Name) == "" || strings.TrimSpace(ent.Type) == "" {
			logger.Warn("dropping malformed entity", "title", title, "name", ent.Name, "type", ent.Type)
			continue
		}
		out.Entities = append(out.Entities, ent)
	}
	for _, rel := range raw.Relationships {
		if strings.TrimSpace(rel.From) == "" || strings.TrimSpace(rel.To) == "" || strings.TrimSpace(rel.Type) == "" {
			logger.Warn("dropping malformed relationship", "title", title, "from", rel.From, "to", rel.To, "type", rel.Type)
			continue
		}
		if rel.Properties.Strength <= 0 {
			rel.Properties.Strength = 0.5
		} else if rel.Properties.Strength > 1 {
			rel.Properties.Strength = 1
		}
		out.Relationships = append(out.Relationships, rel)
	}
	return out, nil
}

func (e *AIExtractor) AnalyzeQuery(ctx context.Context, message string) (common.QueryAnalysis, error) {
	prompt := fmt.Sprintf(analyzeQueryPrompt, message)

	var raw queryAnalysisResult
	err := e.client.GenerateCompletionWithFormat(ctx,
		"query_analysis",
		"Search intent analysis of one user message",
		prompt, &raw)
	if err != nil {
		logger.Warn("query analysis failed, using defaults", "error", err)
		return defaultAnalysis(message), nil
	}

	analysis := common.QueryAnalysis{
		QueryType:    raw.QueryType,
		Keywords:     raw.Keywords,
		Focus:        raw.Focus,
		EntityTypes:  raw.EntityTypes,
		SearchIntent: raw.SearchIntent,
		Priority:     raw.Priority,
	}
	if analysis.QueryType == "" {
		analysis.QueryType = "GENERAL"
	}
	if analysis.Focus == "" {
		analysis.Focus = common.FocusBoth
	}
	if len(analysis.Keywords) == 0 {
		analysis.Keywords = []string{truncateRunes(message, 50)}
	}
	if analysis.SearchIntent == "" {
		analysis.SearchIntent = message
	}
	if analysis.Priority == "" {
		analysis.Priority = "MEDIUM"
	}
	return analysis, nil
}

func (e *AIExtractor) GenerateAnswer(ctx context.Context, question, evidence, intent string) (string, error) {
	prompt := fmt.Sprintf(generateAnswerPrompt, evidence, question, intent)
	answer, err := e.client.GenerateCompletion(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generating answer: %w", err)
	}
	return strings.TrimSpace(answer), nil
}

func defaultAnalysis(message string) common.QueryAnalysis {
	return common.QueryAnalysis{
		QueryType:    "GENERAL",
		Keywords:     []string{truncateRunes(message, 50)},
		Focus:        common.FocusBoth,
		EntityTypes:  nil,
		SearchIntent: message,
		Priority:     "MEDIUM",
	}
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// truncateTokens cuts s to at most budget tokens of the o200k_base encoding.
// When the encoding is unavailable it falls back to a rune bound.
func truncateTokens(s string, budget int) string {
	enc, err := tiktoken.GetEncoding("o200k_base")
	if err != nil {
		logger.Warn("token encoding unavailable, truncating by runes", "error", err)
		return truncateRunes(s, budget*3)
	}
	tokens := enc.Encode(s, nil, nil)
	if len(tokens) <= budget {
		return s
	}
	return enc.Decode(tokens[:budget])
}
