package graph_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/worklens/backend/pkg/common"
	"github.com/worklens/backend/pkg/graph"
	"github.com/worklens/backend/pkg/store/memory"
)

func TestAnswerShortCircuitsWithoutEvidence(t *testing.T) {
	ext := &fakeExtractor{answer: "should never be used"}
	svc := graph.NewService(memory.NewStore(), ext)

	got, err := svc.Answer(context.Background(), "t1", "存在しないトピックについて教えて")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "関連する情報が見つかりませんでした") {
		t.Errorf("answer = %q, want the fixed no-information message", got)
	}
	if ext.answerCalls != 0 {
		t.Errorf("answer model called %d times, want 0 on empty evidence", ext.answerCalls)
	}
}

func TestAnswerDegradedResponses(t *testing.T) {
	tests := []struct {
		name      string
		answer    string
		answerErr error
		want      string
	}{
		{
			name:   "empty model output",
			answer: "   ",
			want:   "回答を生成できませんでした",
		},
		{
			name:      "model failure",
			answerErr: errors.New("upstream timeout"),
			want:      "回答生成中にエラーが発生しました",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := memory.NewStore()
			ext := &fakeExtractor{
				extractions: map[string]*graph.Extraction{
					"Doc": {Entities: []graph.ExtractedEntity{entity("pgloader", "TOOL", 0.9)}},
				},
				analysis: common.QueryAnalysis{
					Keywords: []string{"pgloader"}, Focus: common.FocusBoth,
					QueryType: "HOW_TO", SearchIntent: "usage", Priority: "HIGH",
				},
				answer:    tt.answer,
				answerErr: tt.answerErr,
			}
			svc := graph.NewService(st, ext)
			ctx := context.Background()
			if err := svc.Update(ctx, "t1", "d1", "Doc", "pgloader content", common.DocTypeReport); err != nil {
				t.Fatal(err)
			}

			got, err := svc.Answer(ctx, "t1", "pgloaderの使い方は？")
			if err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("answer = %q, want message containing %q", got, tt.want)
			}
			if ext.answerCalls != 1 {
				t.Errorf("answer model called %d times, want 1", ext.answerCalls)
			}
		})
	}
}

func TestAnswerEndToEnd(t *testing.T) {
	st := memory.NewStore()
	ext := &fakeExtractor{
		extractions: map[string]*graph.Extraction{
			"DB Migration Report": {
				Entities: []graph.ExtractedEntity{
					entity("pgloader", "TOOL", 0.9),
					entity("connection timeout", "ISSUE", 0.8),
				},
				Relationships: []graph.ExtractedRelationship{
					relation("connection timeout", "AFFECTS", "pgloader", 0.6),
				},
			},
			"pgloader導入手順": {
				Entities: []graph.ExtractedEntity{
					entity("pgloader", "TOOL", 0.95),
				},
				Relationships: []graph.ExtractedRelationship{
					relation("pgloader", "REQUIRES", "設定ファイル", 0.8),
				},
			},
		},
		analysis: common.QueryAnalysis{
			QueryType: "HOW_TO", Keywords: []string{"pgloader"},
			Focus: common.FocusBoth, EntityTypes: []string{"TOOL"},
			SearchIntent: "pgloaderの使用方法", Priority: "HIGH",
		},
		answer: "pgloaderは設定ファイルを用意してから実行します。【pgloader導入手順】を参照してください。",
	}

	repo := graph.NewRepository(st)
	ctx := context.Background()
	seed := func(docType string, doc common.SourceDocument) {
		if err := repo.SaveSourceDocument(ctx, "t1", docType, doc); err != nil {
			t.Fatal(err)
		}
	}
	seed(common.DocTypeReport, common.SourceDocument{
		ID: "mig-2026-01", Title: "DB Migration Report",
		Content: "pgloaderでの移行中にconnection timeoutが発生した。",
	})
	seed(common.DocTypeProcedure, common.SourceDocument{
		ID: "pgloader-guide", Title: "pgloader導入手順",
		Content: "pgloaderの設定ファイルを作成し、移行を実行する。",
	})

	svc := graph.NewService(st, ext)
	stats, err := svc.Rebuild(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if stats.ReportsProcessed != 1 || stats.ProceduresProcessed != 1 || len(stats.Errors) != 0 {
		t.Fatalf("rebuild stats = %+v", stats)
	}

	got, err := svc.Answer(ctx, "t1", "pgloaderの使い方は？")
	if err != nil {
		t.Fatal(err)
	}
	if got != ext.answer {
		t.Errorf("answer = %q, want the model answer passed through", got)
	}

	// The prompt context carries both document kinds and the relationships.
	for _, want := range []string{
		"【分析レポート】DB Migration Report",
		"【作業手順】pgloader導入手順",
		"【関連性情報】",
		"REQUIRES",
		"0.80",
	} {
		if !strings.Contains(ext.lastEvidence, want) {
			t.Errorf("evidence missing %q:\n%s", want, ext.lastEvidence)
		}
	}
}
