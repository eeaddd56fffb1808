package graph

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/worklens/backend/pkg/common"
	"github.com/worklens/backend/pkg/logger"
	"github.com/worklens/backend/pkg/store"
)

const (
	maxContextDocsPerType = 2
	maxContextRelations   = 5
	maxExcerptRunes       = 600
)

// Service is the retrieval-augmented answering facade over one store. It
// bundles the manager, the search engine and the extractor into the three
// operations the outside world calls.
type Service struct {
	manager   *Manager
	search    *SearchEngine
	extractor Extractor
}

func NewService(st store.DocumentStore, extractor Extractor) *Service {
	return &Service{
		manager:   NewManager(st, extractor),
		search:    NewSearchEngine(st),
		extractor: extractor,
	}
}

// Rebuild rebuilds the tenant graph from scratch.
func (s *Service) Rebuild(ctx context.Context, tenant string) (common.RebuildStats, error) {
	return s.manager.Rebuild(ctx, tenant)
}

// SaveDocument persists one raw source document. The graph is not touched;
// callers queue an update separately.
func (s *Service) SaveDocument(ctx context.Context, tenant, docType string, doc common.SourceDocument) error {
	return s.manager.repo.SaveSourceDocument(ctx, tenant, docType, doc)
}

// Update folds one document into the tenant graph.
func (s *Service) Update(ctx context.Context, tenant, docID, title, content, docType string) error {
	return s.manager.Update(ctx, tenant, docID, title, content, docType)
}

// UpdateStored folds an already persisted source document into the tenant
// graph. A document deleted in the meantime is skipped.
func (s *Service) UpdateStored(ctx context.Context, tenant, docID, docType string) error {
	doc, err := s.manager.repo.SourceDocument(ctx, tenant, docType, docID)
	if err != nil {
		return err
	}
	if doc == nil {
		logger.Warn("source document vanished before graph update", "tenant", tenant, "doc", docID, "type", docType)
		return nil
	}
	title := doc.Title
	if title == "" {
		title = doc.ID
	}
	return s.manager.Update(ctx, tenant, docID, title, doc.Content, docType)
}

// Answer runs the full retrieval pipeline for one user question. It always
// returns a user-facing string: when no evidence exists or the final model
// call fails, the string is a fixed fallback message. Only store failures
// are returned as errors.
func (s *Service) Answer(ctx context.Context, tenant, question string) (string, error) {
	analysis, err := s.extractor.AnalyzeQuery(ctx, question)
	if err != nil {
		return "", err
	}
	logger.Debug("query analyzed", "tenant", tenant,
		"type", analysis.QueryType, "focus", analysis.Focus, "keywords", analysis.Keywords)

	entities, err := s.search.SearchEntities(ctx, tenant, analysis)
	if err != nil {
		return "", err
	}

	var (
		docs []ScoredDocument
		rels []common.Relationship
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		docs, err = s.search.RelevantDocuments(groupCtx, tenant, entities, analysis)
		return err
	})
	group.Go(func() error {
		var err error
		rels, err = s.search.RelevantRelationships(groupCtx, tenant, entities)
		return err
	})
	if err := group.Wait(); err != nil {
		return "", err
	}

	if len(docs) == 0 && len(rels) == 0 {
		logger.Info("no evidence for question", "tenant", tenant)
		return noInfoMessage, nil
	}

	answer, err := s.extractor.GenerateAnswer(ctx, question, buildEvidence(docs, rels), analysis.SearchIntent)
	if err != nil {
		logger.Error("answer generation failed", "tenant", tenant, "error", err)
		return answerErrorMessage, nil
	}
	if answer = strings.TrimSpace(answer); answer == "" {
		return emptyAnswerMessage, nil
	}
	return answer, nil
}

// buildEvidence renders the retrieved documents and relationships into the
// prompt context.
func buildEvidence(docs []ScoredDocument, rels []common.Relationship) string {
	var b strings.Builder

	reports, procedures := 0, 0
	for _, doc := range docs {
		var header string
		switch {
		case doc.Type == common.DocTypeReport && reports < maxContextDocsPerType:
			header = "【分析レポート】"
			reports++
		case doc.Type == common.DocTypeProcedure && procedures < maxContextDocsPerType:
			header = "【作業手順】"
			procedures++
		default:
			continue
		}
		fmt.Fprintf(&b, "%s%s\n%s...\n\n", header, doc.Title, truncateRunes(doc.Content, maxExcerptRunes))
	}

	if len(rels) > 0 {
		b.WriteString("【関連性情報】\n")
		for i, rel := range rels {
			if i >= maxContextRelations {
				break
			}
			fmt.Fprintf(&b, "• %s は %s と「%s」の関係 (強度: %.2f)\n",
				rel.FromEntity, rel.ToEntity, rel.RelationType, rel.Strength)
		}
	}
	return b.String()
}
