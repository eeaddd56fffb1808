package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/worklens/backend/pkg/common"
	"github.com/worklens/backend/pkg/logger"
	"github.com/worklens/backend/pkg/store"
)

// Manager builds and maintains the knowledge graph of one store. Derived
// state is fully determined by the source documents, so a rebuild from the
// same corpus always converges to the same graph.
type Manager struct {
	repo      *Repository
	extractor Extractor
}

func NewManager(st store.DocumentStore, extractor Extractor) *Manager {
	return &Manager{repo: NewRepository(st), extractor: extractor}
}

// Rebuild drops the derived collections and re-extracts every source
// document. Per-document extraction failures are collected into the stats
// and do not stop the pass; only store-level failures abort it.
func (m *Manager) Rebuild(ctx context.Context, tenant string) (common.RebuildStats, error) {
	stats := common.RebuildStats{}

	if err := m.repo.ClearGraph(ctx, tenant); err != nil {
		return stats, err
	}

	for _, docType := range []string{common.DocTypeReport, common.DocTypeProcedure} {
		docs, err := m.repo.SourceDocuments(ctx, tenant, docType)
		if err != nil {
			return stats, err
		}
		for _, doc := range docs {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			title := doc.Title
			if title == "" {
				title = doc.ID
			}
			if err := m.Update(ctx, tenant, doc.ID, title, doc.Content, docType); err != nil {
				logger.Error("document extraction failed", "tenant", tenant, "doc", doc.ID, "type", docType, "error", err)
				stats.Errors = append(stats.Errors, fmt.Sprintf("%s %s: %v", docType, doc.ID, err))
				continue
			}
			if docType == common.DocTypeReport {
				stats.ReportsProcessed++
			} else {
				stats.ProceduresProcessed++
			}
		}
	}

	var err error
	if stats.EntitiesCreated, err = m.repo.CountEntities(ctx, tenant); err != nil {
		return stats, err
	}
	if stats.RelationsCreated, err = m.repo.CountRelations(ctx, tenant); err != nil {
		return stats, err
	}
	logger.Info("graph rebuilt", "tenant", tenant,
		"reports", stats.ReportsProcessed, "procedures", stats.ProceduresProcessed,
		"entities", stats.EntitiesCreated, "relations", stats.RelationsCreated,
		"errors", len(stats.Errors))
	return stats, nil
}

// Update folds one document into the graph: it replaces the document's
// condensed node and merges the extracted entities and relationships into
// the shared collections. Running it twice for the same document converges.
func (m *Manager) Update(ctx context.Context, tenant, docID, title, content, docType string) error {
	extraction, err := m.extractor.ExtractEntitiesAndRelations(ctx, title, content, docType)
	if err != nil {
		return err
	}

	ref := docType + "_" + SanitizeDocID(docID)
	now := time.Now().UTC()

	node := common.KnowledgeNode{
		ID:          ref,
		Title:       title,
		Content:     content,
		Type:        docType,
		CreatedAt:   now,
		LastUpdated: now,
	}
	if err := m.repo.SaveKnowledgeNode(ctx, tenant, node); err != nil {
		return err
	}

	if err := m.mergeEntities(ctx, tenant, extraction.Entities, ref, title, docType, now); err != nil {
		return err
	}
	return m.mergeRelationships(ctx, tenant, extraction.Relationships, ref, docType, now)
}

func (m *Manager) mergeEntities(ctx context.Context, tenant string, entities []ExtractedEntity, ref, title, docType string, now time.Time) error {
	for _, ent := range entities {
		existing, err := m.repo.Entity(ctx, tenant, ent.Name)
		if err != nil {
			return err
		}

		mention := common.Mention{Title: title, DocType: docType, Timestamp: now}
		props := map[string]any{
			"confidence":  ent.Properties.Confidence,
			"category":    ent.Properties.Category,
			"description": ent.Properties.Description,
		}

		var merged common.Entity
		if existing != nil {
			merged = *existing
			merged.Properties = mergeProperties(existing.Properties, props)
			merged.LastUpdated = now
		} else {
			merged = common.Entity{
				Name:        ent.Name,
				Type:        ent.Type,
				Properties:  props,
				CreatedAt:   now,
				LastUpdated: now,
			}
		}
		if merged.MentionedIn == nil {
			merged.MentionedIn = map[string]common.Mention{}
		}
		merged.MentionedIn[ref] = mention

		if err := m.repo.SaveEntity(ctx, tenant, merged); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) mergeRelationships(ctx context.Context, tenant string, rels []ExtractedRelationship, ref, docType string, now time.Time) error {
	for _, rel := range rels {
		id := RelationID(rel.From, rel.Type, rel.To)
		existing, err := m.repo.Relation(ctx, tenant, id)
		if err != nil {
			return err
		}

		props := map[string]any{
			"context":     rel.Properties.Context,
			"description": rel.Properties.Description,
		}

		var merged common.Relationship
		if existing != nil {
			merged = *existing
			merged.Strength = capStrength(existing.Strength + rel.Properties.Strength)
			merged.Properties = mergeProperties(existing.Properties, props)
			merged.LastUpdated = now
		} else {
			merged = common.Relationship{
				FromEntity:   rel.From,
				ToEntity:     rel.To,
				RelationType: rel.Type,
				Strength:     capStrength(rel.Properties.Strength),
				Properties:   props,
				CreatedAt:    now,
				LastUpdated:  now,
			}
		}
		// Contexts tracks which document types produced the edge; the
		// free-text fragment stays in properties.
		merged.Contexts = appendUnique(merged.Contexts, docType)
		merged.SourceDocuments = appendUnique(merged.SourceDocuments, ref)

		if err := m.repo.SaveRelation(ctx, tenant, id, merged); err != nil {
			return err
		}
	}
	return nil
}

func capStrength(s float64) float64 {
	if s > 1.0 {
		return 1.0
	}
	return s
}

// mergeProperties overlays src onto dst, src winning on conflicts. Neither
// input is modified.
func mergeProperties(dst, src map[string]any) map[string]any {
	out := make(map[string]any, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range src {
		out[k] = v
	}
	return out
}

func appendUnique(list []string, v string) []string {
	if v == "" {
		return list
	}
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
