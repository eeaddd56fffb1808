package graph_test

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/worklens/backend/pkg/common"
	"github.com/worklens/backend/pkg/graph"
	"github.com/worklens/backend/pkg/store/memory"
)

// fakeExtractor returns canned extractions keyed by document title.
type fakeExtractor struct {
	extractions  map[string]*graph.Extraction
	failOn       map[string]bool
	analysis     common.QueryAnalysis
	answer       string
	answerErr    error
	answerCalls  int
	lastEvidence string
}

func (f *fakeExtractor) ExtractEntitiesAndRelations(_ context.Context, title, _, _ string) (*graph.Extraction, error) {
	if f.failOn[title] {
		return nil, errors.New("model unavailable")
	}
	if ex, ok := f.extractions[title]; ok {
		return ex, nil
	}
	return &graph.Extraction{}, nil
}

func (f *fakeExtractor) AnalyzeQuery(_ context.Context, message string) (common.QueryAnalysis, error) {
	if f.analysis.Keywords != nil {
		return f.analysis, nil
	}
	return common.QueryAnalysis{
		QueryType: "GENERAL", Keywords: []string{message},
		Focus: common.FocusBoth, SearchIntent: message, Priority: "MEDIUM",
	}, nil
}

func (f *fakeExtractor) GenerateAnswer(_ context.Context, _, evidence, _ string) (string, error) {
	f.answerCalls++
	f.lastEvidence = evidence
	return f.answer, f.answerErr
}

func entity(name, typ string, confidence float64) graph.ExtractedEntity {
	return graph.ExtractedEntity{
		Name: name, Type: typ,
		Properties: graph.EntityProperties{Confidence: confidence},
	}
}

func relation(from, typ, to string, strength float64) graph.ExtractedRelationship {
	return graph.ExtractedRelationship{
		From: from, To: to, Type: typ,
		Properties: graph.RelationshipProperties{Strength: strength, Context: from + " " + to},
	}
}

func TestRelationID(t *testing.T) {
	tests := []struct {
		name string
		a    [3]string
		b    [3]string
		same bool
	}{
		{
			name: "sanitized characters collapse",
			a:    [3]string{"Server/A", "USES", "Server#B"},
			b:    [3]string{"Server_A", "USES", "Server_B"},
			same: true,
		},
		{
			name: "case and padding are irrelevant",
			a:    [3]string{" Server A ", "uses", "Server B"},
			b:    [3]string{"server a", "USES", "server b"},
			same: true,
		},
		{
			name: "direction matters",
			a:    [3]string{"A", "USES", "B"},
			b:    [3]string{"B", "USES", "A"},
			same: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idA := graph.RelationID(tt.a[0], tt.a[1], tt.a[2])
			idB := graph.RelationID(tt.b[0], tt.b[1], tt.b[2])
			if (idA == idB) != tt.same {
				t.Errorf("RelationID(%v)=%q, RelationID(%v)=%q, want same=%v", tt.a, idA, tt.b, idB, tt.same)
			}
		})
	}
}

func TestRelationIDLongComponents(t *testing.T) {
	long := strings.Repeat("x", 900)
	id := graph.RelationID(long, "USES", long)
	if len(id) > 1500 {
		t.Errorf("relation id length = %d, want <= 1500", len(id))
	}
	if id != graph.RelationID(long, "USES", long) {
		t.Error("relation id is not deterministic for long components")
	}
}

func TestUpdateMergesEntitiesAcrossDocuments(t *testing.T) {
	st := memory.NewStore()
	ext := &fakeExtractor{extractions: map[string]*graph.Extraction{
		"Doc One": {Entities: []graph.ExtractedEntity{entity("PostgreSQL", "TOOL", 0.9)}},
		"Doc Two": {Entities: []graph.ExtractedEntity{entity("postgresql ", "TOOL", 0.7)}},
	}}
	mgr := graph.NewManager(st, ext)
	ctx := context.Background()

	if err := mgr.Update(ctx, "t1", "d1", "Doc One", "...", common.DocTypeReport); err != nil {
		t.Fatal(err)
	}
	if err := mgr.Update(ctx, "t1", "d2", "Doc Two", "...", common.DocTypeProcedure); err != nil {
		t.Fatal(err)
	}

	repo := graph.NewRepository(st)
	if n, _ := repo.CountEntities(ctx, "t1"); n != 1 {
		t.Fatalf("entity count = %d, want 1 merged entity", n)
	}
	ent, err := repo.Entity(ctx, "t1", "PostgreSQL")
	if err != nil || ent == nil {
		t.Fatalf("Entity() = %v, %v", ent, err)
	}
	if len(ent.MentionedIn) != 2 {
		t.Errorf("mentions = %d, want 2", len(ent.MentionedIn))
	}
	if ent.Name != "PostgreSQL" {
		t.Errorf("display name = %q, want first-seen form", ent.Name)
	}
}

func TestUpdateStrengthensRelationships(t *testing.T) {
	st := memory.NewStore()
	ext := &fakeExtractor{extractions: map[string]*graph.Extraction{
		"Doc": {Relationships: []graph.ExtractedRelationship{relation("A", "USES", "B", 0.4)}},
	}}
	mgr := graph.NewManager(st, ext)
	repo := graph.NewRepository(st)
	ctx := context.Background()
	id := graph.RelationID("A", "USES", "B")

	strengths := []float64{0.4, 0.8, 1.0, 1.0}
	for i, want := range strengths {
		if err := mgr.Update(ctx, "t1", "d1", "Doc", "...", common.DocTypeReport); err != nil {
			t.Fatal(err)
		}
		rel, err := repo.Relation(ctx, "t1", id)
		if err != nil || rel == nil {
			t.Fatalf("Relation() = %v, %v", rel, err)
		}
		if rel.Strength != want {
			t.Errorf("after update %d: strength = %v, want %v", i+1, rel.Strength, want)
		}
	}

	if n, _ := repo.CountRelations(ctx, "t1"); n != 1 {
		t.Errorf("relation count = %d, want 1", n)
	}
}

func TestUpdateSameDocumentKeepsSingleMention(t *testing.T) {
	st := memory.NewStore()
	ext := &fakeExtractor{extractions: map[string]*graph.Extraction{
		"Doc": {
			Entities:      []graph.ExtractedEntity{entity("pgloader", "TOOL", 0.9)},
			Relationships: []graph.ExtractedRelationship{relation("migration", "USES", "pgloader", 0.4)},
		},
	}}
	mgr := graph.NewManager(st, ext)
	repo := graph.NewRepository(st)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := mgr.Update(ctx, "t1", "d1", "Doc", "...", common.DocTypeReport); err != nil {
			t.Fatal(err)
		}
	}

	ent, err := repo.Entity(ctx, "t1", "pgloader")
	if err != nil || ent == nil {
		t.Fatalf("Entity() = %v, %v", ent, err)
	}
	if len(ent.MentionedIn) != 1 {
		t.Errorf("mentions = %d, want 1 entry after reprocessing the same document", len(ent.MentionedIn))
	}
	if _, ok := ent.MentionedIn["report_d1"]; !ok {
		t.Errorf("mentions = %v, want the report reference", ent.MentionedIn)
	}

	rel, err := repo.Relation(ctx, "t1", graph.RelationID("migration", "USES", "pgloader"))
	if err != nil || rel == nil {
		t.Fatalf("Relation() = %v, %v", rel, err)
	}
	if !reflect.DeepEqual(rel.SourceDocuments, []string{"report_d1"}) {
		t.Errorf("source documents = %v, want one entry", rel.SourceDocuments)
	}
}

func TestUpdateRelationshipContextsTrackDocTypes(t *testing.T) {
	st := memory.NewStore()
	ext := &fakeExtractor{extractions: map[string]*graph.Extraction{
		"Report Doc": {Relationships: []graph.ExtractedRelationship{relation("A", "USES", "B", 0.3)}},
		"Guide Doc":  {Relationships: []graph.ExtractedRelationship{relation("A", "USES", "B", 0.3)}},
	}}
	mgr := graph.NewManager(st, ext)
	repo := graph.NewRepository(st)
	ctx := context.Background()
	id := graph.RelationID("A", "USES", "B")

	if err := mgr.Update(ctx, "t1", "rd", "Report Doc", "...", common.DocTypeReport); err != nil {
		t.Fatal(err)
	}
	rel, err := repo.Relation(ctx, "t1", id)
	if err != nil || rel == nil {
		t.Fatalf("Relation() = %v, %v", rel, err)
	}
	if !reflect.DeepEqual(rel.Contexts, []string{common.DocTypeReport}) {
		t.Fatalf("contexts = %v, want [%s]", rel.Contexts, common.DocTypeReport)
	}

	if err := mgr.Update(ctx, "t1", "gd", "Guide Doc", "...", common.DocTypeProcedure); err != nil {
		t.Fatal(err)
	}
	rel, err = repo.Relation(ctx, "t1", id)
	if err != nil || rel == nil {
		t.Fatalf("Relation() = %v, %v", rel, err)
	}
	if !reflect.DeepEqual(rel.Contexts, []string{common.DocTypeReport, common.DocTypeProcedure}) {
		t.Errorf("contexts = %v, want the union of producing document types", rel.Contexts)
	}
	if len(rel.SourceDocuments) != 2 {
		t.Errorf("source documents = %v, want both references", rel.SourceDocuments)
	}
}

func TestRebuildIsIdempotent(t *testing.T) {
	st := memory.NewStore()
	ext := &fakeExtractor{extractions: map[string]*graph.Extraction{
		"Report A": {
			Entities:      []graph.ExtractedEntity{entity("pgloader", "TOOL", 0.9), entity("migration", "ACTION", 0.8)},
			Relationships: []graph.ExtractedRelationship{relation("migration", "USES", "pgloader", 0.7)},
		},
		"Guide B": {
			Entities:      []graph.ExtractedEntity{entity("pgloader", "TOOL", 0.95)},
			Relationships: []graph.ExtractedRelationship{relation("migration", "USES", "pgloader", 0.7)},
		},
	}}
	repo := graph.NewRepository(st)
	ctx := context.Background()

	seed := func(id, title, docType string) {
		err := repo.SaveSourceDocument(ctx, "t1", docType, common.SourceDocument{ID: id, Title: title, Content: "..."})
		if err != nil {
			t.Fatal(err)
		}
	}
	seed("ra", "Report A", common.DocTypeReport)
	seed("gb", "Guide B", common.DocTypeProcedure)

	mgr := graph.NewManager(st, ext)
	first, err := mgr.Rebuild(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	second, err := mgr.Rebuild(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}

	if first.EntitiesCreated != 2 || first.RelationsCreated != 1 {
		t.Errorf("first rebuild: %d entities, %d relations, want 2 and 1", first.EntitiesCreated, first.RelationsCreated)
	}
	if second.EntitiesCreated != first.EntitiesCreated || second.RelationsCreated != first.RelationsCreated {
		t.Errorf("second rebuild diverged: %+v vs %+v", second, first)
	}

	// Strength must not carry over from the previous pass.
	rel, err := repo.Relation(ctx, "t1", graph.RelationID("migration", "USES", "pgloader"))
	if err != nil || rel == nil {
		t.Fatalf("Relation() = %v, %v", rel, err)
	}
	if rel.Strength != 1.0 {
		t.Errorf("strength after rebuild = %v, want 1.0 (0.7 + 0.7 capped)", rel.Strength)
	}
}

func TestRebuildCollectsPerDocumentErrors(t *testing.T) {
	st := memory.NewStore()
	ext := &fakeExtractor{
		extractions: map[string]*graph.Extraction{
			"Good": {Entities: []graph.ExtractedEntity{entity("ok", "TOOL", 0.5)}},
		},
		failOn: map[string]bool{"Bad": true},
	}
	repo := graph.NewRepository(st)
	ctx := context.Background()
	for _, doc := range []common.SourceDocument{
		{ID: "good", Title: "Good", Content: "..."},
		{ID: "bad", Title: "Bad", Content: "..."},
	} {
		if err := repo.SaveSourceDocument(ctx, "t1", common.DocTypeReport, doc); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := graph.NewManager(st, ext).Rebuild(ctx, "t1")
	if err != nil {
		t.Fatalf("Rebuild() error = %v, per-document failures must not abort", err)
	}
	if stats.ReportsProcessed != 1 {
		t.Errorf("reports processed = %d, want 1", stats.ReportsProcessed)
	}
	if len(stats.Errors) != 1 || !strings.Contains(stats.Errors[0], "bad") {
		t.Errorf("errors = %v, want one entry naming the failed document", stats.Errors)
	}
	if stats.EntitiesCreated != 1 {
		t.Errorf("entities = %d, want 1 from the surviving document", stats.EntitiesCreated)
	}
}
