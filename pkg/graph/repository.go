package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/worklens/backend/pkg/common"
	"github.com/worklens/backend/pkg/store"
)

// Collection names under one tenant.
const (
	collectionReports    = "reports"
	collectionProcedures = "procedures"
	collectionNodes      = "knowledge_nodes"
	collectionEntities   = "entities"
	collectionRelations  = "relations"
)

const (
	// maxDocIDLen caps every document identifier.
	maxDocIDLen = 1500
	// maxRelationPartLen caps each component of a relationship identifier
	// before concatenation.
	maxRelationPartLen = 500
	// keywordSearchLimit bounds one prefix lookup.
	keywordSearchLimit = 5
)

// docIDReplacer strips characters that are not safe in document identifiers.
var docIDReplacer = strings.NewReplacer("/", "_", "\\", "_", "#", "_", "?", "_", "&", "_")

// CanonicalName normalizes an entity name for identity comparison. Two names
// that canonicalize equally address the same entity.
func CanonicalName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// SanitizeDocID makes s usable as a document identifier.
func SanitizeDocID(s string) string {
	return truncateBytes(docIDReplacer.Replace(s), maxDocIDLen)
}

// EntityID derives the document identifier of an entity from its name.
func EntityID(name string) string {
	return SanitizeDocID(CanonicalName(name))
}

// RelationID derives the deterministic identifier of a directed relationship.
// The same (from, type, to) triple always yields the same identifier, no
// matter which document produced it.
func RelationID(from, relType, to string) string {
	parts := []string{from, relType, to}
	for i, p := range parts {
		parts[i] = truncateBytes(docIDReplacer.Replace(CanonicalName(p)), maxRelationPartLen)
	}
	return truncateBytes(strings.Join(parts, "_"), maxDocIDLen)
}

func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// Back off to a rune boundary.
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

// Repository is the typed persistence layer of the knowledge graph. All
// methods are tenant-scoped.
type Repository struct {
	store store.DocumentStore
}

func NewRepository(st store.DocumentStore) *Repository {
	return &Repository{store: st}
}

// SourceDocuments lists the raw documents of one type.
func (r *Repository) SourceDocuments(ctx context.Context, tenant, docType string) ([]common.SourceDocument, error) {
	docs, err := r.store.List(ctx, tenant, sourceCollection(docType))
	if err != nil {
		return nil, fmt.Errorf("listing %s documents: %w", docType, err)
	}
	out := make([]common.SourceDocument, 0, len(docs))
	for _, doc := range docs {
		var src common.SourceDocument
		if err := fromFields(doc.Data, &src); err != nil {
			return nil, fmt.Errorf("decoding %s %q: %w", docType, doc.ID, err)
		}
		src.ID = doc.ID
		out = append(out, src)
	}
	return out, nil
}

// SourceDocument fetches one raw document, nil when absent.
func (r *Repository) SourceDocument(ctx context.Context, tenant, docType, id string) (*common.SourceDocument, error) {
	fields, ok, err := r.store.Get(ctx, tenant, sourceCollection(docType), SanitizeDocID(id))
	if err != nil || !ok {
		return nil, err
	}
	var src common.SourceDocument
	if err := fromFields(fields, &src); err != nil {
		return nil, fmt.Errorf("decoding %s %q: %w", docType, id, err)
	}
	src.ID = id
	return &src, nil
}

// SaveSourceDocument stores one raw document, replacing any previous version.
func (r *Repository) SaveSourceDocument(ctx context.Context, tenant, docType string, doc common.SourceDocument) error {
	fields, err := toFields(doc)
	if err != nil {
		return err
	}
	delete(fields, "id")
	return r.store.Upsert(ctx, tenant, sourceCollection(docType), SanitizeDocID(doc.ID), fields, false)
}

// SaveKnowledgeNode replaces the condensed node for one source document.
func (r *Repository) SaveKnowledgeNode(ctx context.Context, tenant string, node common.KnowledgeNode) error {
	fields, err := toFields(node)
	if err != nil {
		return err
	}
	return r.store.Upsert(ctx, tenant, collectionNodes, SanitizeDocID(node.ID), fields, false)
}

// KnowledgeNode fetches one condensed node, nil when absent.
func (r *Repository) KnowledgeNode(ctx context.Context, tenant, ref string) (*common.KnowledgeNode, error) {
	fields, ok, err := r.store.Get(ctx, tenant, collectionNodes, SanitizeDocID(ref))
	if err != nil || !ok {
		return nil, err
	}
	var node common.KnowledgeNode
	if err := fromFields(fields, &node); err != nil {
		return nil, fmt.Errorf("decoding node %q: %w", ref, err)
	}
	return &node, nil
}

// Entity fetches one entity by name, nil when absent.
func (r *Repository) Entity(ctx context.Context, tenant, name string) (*common.Entity, error) {
	fields, ok, err := r.store.Get(ctx, tenant, collectionEntities, EntityID(name))
	if err != nil || !ok {
		return nil, err
	}
	var ent common.Entity
	if err := fromFields(fields, &ent); err != nil {
		return nil, fmt.Errorf("decoding entity %q: %w", name, err)
	}
	return &ent, nil
}

// SaveEntity merges the entity into its document.
func (r *Repository) SaveEntity(ctx context.Context, tenant string, ent common.Entity) error {
	fields, err := toFields(ent)
	if err != nil {
		return err
	}
	return r.store.Upsert(ctx, tenant, collectionEntities, EntityID(ent.Name), fields, true)
}

// SearchEntitiesByKeyword runs one case-insensitive prefix lookup on entity
// names.
func (r *Repository) SearchEntitiesByKeyword(ctx context.Context, tenant, keyword string) ([]common.Entity, error) {
	docs, err := r.store.Query(ctx, tenant, collectionEntities, "name", keyword, keywordSearchLimit)
	if err != nil {
		return nil, fmt.Errorf("searching entities for %q: %w", keyword, err)
	}
	out := make([]common.Entity, 0, len(docs))
	for _, doc := range docs {
		var ent common.Entity
		if err := fromFields(doc.Data, &ent); err != nil {
			return nil, fmt.Errorf("decoding entity %q: %w", doc.ID, err)
		}
		out = append(out, ent)
	}
	return out, nil
}

// Relation fetches one relationship by identifier, nil when absent.
func (r *Repository) Relation(ctx context.Context, tenant, id string) (*common.Relationship, error) {
	fields, ok, err := r.store.Get(ctx, tenant, collectionRelations, id)
	if err != nil || !ok {
		return nil, err
	}
	var rel common.Relationship
	if err := fromFields(fields, &rel); err != nil {
		return nil, fmt.Errorf("decoding relation %q: %w", id, err)
	}
	return &rel, nil
}

// SaveRelation merges the relationship into its document.
func (r *Repository) SaveRelation(ctx context.Context, tenant, id string, rel common.Relationship) error {
	fields, err := toFields(rel)
	if err != nil {
		return err
	}
	return r.store.Upsert(ctx, tenant, collectionRelations, id, fields, true)
}

// Relations lists every relationship of the tenant.
func (r *Repository) Relations(ctx context.Context, tenant string) ([]common.Relationship, error) {
	docs, err := r.store.List(ctx, tenant, collectionRelations)
	if err != nil {
		return nil, fmt.Errorf("listing relations: %w", err)
	}
	out := make([]common.Relationship, 0, len(docs))
	for _, doc := range docs {
		var rel common.Relationship
		if err := fromFields(doc.Data, &rel); err != nil {
			return nil, fmt.Errorf("decoding relation %q: %w", doc.ID, err)
		}
		out = append(out, rel)
	}
	return out, nil
}

// CountEntities and CountRelations report graph sizes after a rebuild.
func (r *Repository) CountEntities(ctx context.Context, tenant string) (int, error) {
	return r.store.Count(ctx, tenant, collectionEntities)
}

func (r *Repository) CountRelations(ctx context.Context, tenant string) (int, error) {
	return r.store.Count(ctx, tenant, collectionRelations)
}

// ClearGraph drops every derived collection of the tenant. Source documents
// are kept.
func (r *Repository) ClearGraph(ctx context.Context, tenant string) error {
	for _, collection := range []string{collectionNodes, collectionEntities, collectionRelations} {
		if _, err := r.store.DeleteAll(ctx, tenant, collection); err != nil {
			return fmt.Errorf("clearing %s: %w", collection, err)
		}
	}
	return nil
}

func sourceCollection(docType string) string {
	if docType == common.DocTypeProcedure {
		return collectionProcedures
	}
	return collectionReports
}

func toFields(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	return fields, nil
}

func fromFields(fields map[string]any, v any) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
