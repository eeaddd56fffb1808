package common

import "time"

// Document types for the two source collections. The document type is an open
// string tag; these two are the values the rest of the application produces.
const (
	DocTypeReport    = "report"
	DocTypeProcedure = "procedure"
)

// Focus values a query analysis can carry. They restrict which source
// collections a search considers.
const (
	FocusReport    = "REPORT"
	FocusProcedure = "PROCEDURE"
	FocusBoth      = "BOTH"
)

// Mention records that an entity was observed in one source document.
// The map key on the entity side is the document reference
// ("<doc_type>_<doc_id>").
type Mention struct {
	Title     string    `json:"title"`
	DocType   string    `json:"doc_type"`
	Timestamp time.Time `json:"timestamp"`
}

// Entity is a canonical named concept in a tenant's knowledge graph.
// Exactly one record exists per canonicalized name; repeated extraction of
// the same name merges into the existing record. MentionedIn grows
// monotonically and is never trimmed.
type Entity struct {
	Name        string             `json:"name"`
	Type        string             `json:"type"`
	Properties  map[string]any     `json:"properties"`
	MentionedIn map[string]Mention `json:"mentioned_in"`
	CreatedAt   time.Time          `json:"created_at"`
	LastUpdated time.Time          `json:"last_updated"`
}

// Relationship is a directed, typed edge between two entity names. Strength
// accumulates as the edge is re-observed across documents, capped at 1.0.
// Contexts and SourceDocuments are sets, unioned on merge.
type Relationship struct {
	FromEntity      string         `json:"from_entity"`
	ToEntity        string         `json:"to_entity"`
	RelationType    string         `json:"relation_type"`
	Strength        float64        `json:"strength"`
	Contexts        []string       `json:"contexts"`
	SourceDocuments []string       `json:"source_documents"`
	Properties      map[string]any `json:"properties"`
	CreatedAt       time.Time      `json:"created_at"`
	LastUpdated     time.Time      `json:"last_updated"`
}

// KnowledgeNode is a denormalized cached copy of one source document. It is
// replaced wholesale when the document is re-processed, never merged
// field-by-field.
type KnowledgeNode struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Type        string    `json:"type"`
	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
}

// SourceDocument is a user report or procedure as it lives in the source
// collections.
type SourceDocument struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// QueryAnalysis is the structured intent of a user question. It is produced
// per query and consumed within a single search; it is never persisted.
type QueryAnalysis struct {
	QueryType    string   `json:"query_type"`
	Keywords     []string `json:"keywords"`
	Focus        string   `json:"focus"`
	EntityTypes  []string `json:"entity_types"`
	SearchIntent string   `json:"search_intent"`
	Priority     string   `json:"priority"`
}

// RebuildStats summarizes a full graph rebuild. Errors holds one entry per
// document that failed; a rebuild with errors is partial, not aborted.
type RebuildStats struct {
	ReportsProcessed    int      `json:"reports_processed"`
	ProceduresProcessed int      `json:"procedures_processed"`
	EntitiesCreated     int      `json:"entities_created"`
	RelationsCreated    int      `json:"relations_created"`
	Errors              []string `json:"errors"`
}
