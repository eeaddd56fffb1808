package graph

import (
	"context"
	"sort"
	"strings"

	"github.com/worklens/backend/pkg/common"
	"github.com/worklens/backend/pkg/store"
)

const (
	maxSearchEntities      = 10
	maxRelevantDocuments   = 5
	maxRelevantRelations   = 10
	scoreKeywordMatch      = 0.5
	scoreTypeMatch         = 0.3
	scoreMultiDocumentSeen = 0.2
)

// ScoredEntity is an entity with its query relevance attached.
type ScoredEntity struct {
	common.Entity
	Score float64
}

// ScoredDocument is a knowledge node with the relevance of the entity that
// led to it.
type ScoredDocument struct {
	common.KnowledgeNode
	Score float64
}

// SearchEngine resolves a query analysis into graph evidence.
type SearchEngine struct {
	repo *Repository
}

func NewSearchEngine(st store.DocumentStore) *SearchEngine {
	return &SearchEngine{repo: NewRepository(st)}
}

// SearchEntities runs one prefix lookup per keyword, scores every candidate
// and returns the strongest matches, one per entity name.
func (s *SearchEngine) SearchEntities(ctx context.Context, tenant string, analysis common.QueryAnalysis) ([]ScoredEntity, error) {
	best := map[string]ScoredEntity{}
	for _, keyword := range analysis.Keywords {
		candidates, err := s.repo.SearchEntitiesByKeyword(ctx, tenant, keyword)
		if err != nil {
			return nil, err
		}
		for _, ent := range candidates {
			scored := ScoredEntity{Entity: ent, Score: relevance(ent, analysis)}
			key := CanonicalName(ent.Name)
			if prev, ok := best[key]; !ok || scored.Score > prev.Score {
				best[key] = scored
			}
		}
	}

	out := make([]ScoredEntity, 0, len(best))
	for _, ent := range best {
		out = append(out, ent)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > maxSearchEntities {
		out = out[:maxSearchEntities]
	}
	return out, nil
}

// relevance scores one entity against the analysis. Score is additive over
// independent signals, so an entity matching several keywords outranks one
// matching a single broader keyword.
func relevance(ent common.Entity, analysis common.QueryAnalysis) float64 {
	score := 0.0
	name := strings.ToLower(ent.Name)
	for _, keyword := range analysis.Keywords {
		if strings.Contains(name, strings.ToLower(keyword)) {
			score += scoreKeywordMatch
		}
	}
	for _, t := range analysis.EntityTypes {
		if strings.EqualFold(ent.Type, t) {
			score += scoreTypeMatch
			break
		}
	}
	if len(ent.MentionedIn) > 1 {
		score += scoreMultiDocumentSeen
	}
	return score
}

// RelevantDocuments resolves the mention references of the scored entities
// into knowledge nodes, honoring the focus of the analysis. Each document is
// returned once, carrying the score of the strongest entity that mentioned
// it.
func (s *SearchEngine) RelevantDocuments(ctx context.Context, tenant string, entities []ScoredEntity, analysis common.QueryAnalysis) ([]ScoredDocument, error) {
	focus := strings.ToLower(analysis.Focus)
	seen := map[string]float64{}
	for _, ent := range entities {
		for ref, mention := range ent.MentionedIn {
			if focus != "" && focus != strings.ToLower(common.FocusBoth) && mention.DocType != focus {
				continue
			}
			if prev, ok := seen[ref]; !ok || ent.Score > prev {
				seen[ref] = ent.Score
			}
		}
	}

	out := make([]ScoredDocument, 0, len(seen))
	for ref, score := range seen {
		node, err := s.repo.KnowledgeNode(ctx, tenant, ref)
		if err != nil {
			return nil, err
		}
		if node == nil {
			continue
		}
		out = append(out, ScoredDocument{KnowledgeNode: *node, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > maxRelevantDocuments {
		out = out[:maxRelevantDocuments]
	}
	return out, nil
}

// RelevantRelationships scans every stored relationship and keeps those that
// touch one of the given entities, strongest first.
func (s *SearchEngine) RelevantRelationships(ctx context.Context, tenant string, entities []ScoredEntity) ([]common.Relationship, error) {
	names := map[string]bool{}
	for _, ent := range entities {
		names[CanonicalName(ent.Name)] = true
	}

	all, err := s.repo.Relations(ctx, tenant)
	if err != nil {
		return nil, err
	}
	out := make([]common.Relationship, 0)
	for _, rel := range all {
		if names[CanonicalName(rel.FromEntity)] || names[CanonicalName(rel.ToEntity)] {
			out = append(out, rel)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Strength != out[j].Strength {
			return out[i].Strength > out[j].Strength
		}
		return RelationID(out[i].FromEntity, out[i].RelationType, out[i].ToEntity) <
			RelationID(out[j].FromEntity, out[j].RelationType, out[j].ToEntity)
	})
	if len(out) > maxRelevantRelations {
		out = out[:maxRelevantRelations]
	}
	return out, nil
}
