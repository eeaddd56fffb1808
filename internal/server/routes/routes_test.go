package routes_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"

	"github.com/worklens/backend/internal/queue"
	"github.com/worklens/backend/internal/server/middleware"
	"github.com/worklens/backend/internal/server/routes"
	"github.com/worklens/backend/pkg/common"
	"github.com/worklens/backend/pkg/graph"
	"github.com/worklens/backend/pkg/store/memory"
)

type testValidator struct {
	validator *validator.Validate
}

func (v *testValidator) Validate(i any) error {
	return v.validator.Struct(i)
}

// stubExtractor answers every model call with fixed values.
type stubExtractor struct{}

func (stubExtractor) ExtractEntitiesAndRelations(context.Context, string, string, string) (*graph.Extraction, error) {
	return &graph.Extraction{}, nil
}

func (stubExtractor) AnalyzeQuery(_ context.Context, message string) (common.QueryAnalysis, error) {
	return common.QueryAnalysis{
		QueryType: "GENERAL", Keywords: []string{message},
		Focus: common.FocusBoth, SearchIntent: message, Priority: "MEDIUM",
	}, nil
}

func (stubExtractor) GenerateAnswer(context.Context, string, string, string) (string, error) {
	return "ok", nil
}

type published struct {
	queue string
	body  []byte
}

func newTestApp() (*middleware.App, *memory.Store, *[]published) {
	st := memory.NewStore()
	sent := &[]published{}
	app := &middleware.App{
		Store: st,
		Graph: graph.NewService(st, stubExtractor{}),
		Publish: func(queueName string, data []byte) error {
			*sent = append(*sent, published{queue: queueName, body: data})
			return nil
		},
	}
	return app, st, sent
}

func invoke(t *testing.T, app *middleware.App, handler echo.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	e.Validator = &testValidator{validator: validator.New()}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := handler(&middleware.AppContext{Context: c, App: app}); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return rec
}

func TestRebuildGraphHandler(t *testing.T) {
	app, _, sent := newTestApp()

	rec := invoke(t, app, routes.RebuildGraphHandler, `{"tenant_id":"t1"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if len(*sent) != 1 || (*sent)[0].queue != queue.RebuildQueue {
		t.Fatalf("published = %+v, want one rebuild message", *sent)
	}
	var msg queue.RebuildMsg
	if err := json.Unmarshal((*sent)[0].body, &msg); err != nil || msg.TenantID != "t1" {
		t.Errorf("message = %s, want tenant t1", (*sent)[0].body)
	}
}

func TestRebuildGraphHandlerRejectsMissingTenant(t *testing.T) {
	app, _, sent := newTestApp()

	rec := invoke(t, app, routes.RebuildGraphHandler, `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if len(*sent) != 0 {
		t.Errorf("published = %+v, want none", *sent)
	}
}

func TestCreateDocumentHandler(t *testing.T) {
	app, st, sent := newTestApp()

	rec := invoke(t, app, routes.CreateDocumentHandler,
		`{"tenant_id":"t1","title":"Backup Guide","content":"...","doc_type":"procedure"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body)
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.ID == "" {
		t.Fatalf("response = %s, want a generated id", rec.Body)
	}

	if _, ok, _ := st.Get(context.Background(), "t1", "procedures", resp.ID); !ok {
		t.Error("document not stored")
	}

	if len(*sent) != 1 || (*sent)[0].queue != queue.UpdateQueue {
		t.Fatalf("published = %+v, want one update message", *sent)
	}
	var msg queue.UpdateMsg
	if err := json.Unmarshal((*sent)[0].body, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.TenantID != "t1" || msg.DocID != resp.ID || msg.DocType != "procedure" {
		t.Errorf("message = %+v", msg)
	}
}

func TestCreateDocumentHandlerRejectsUnknownType(t *testing.T) {
	app, _, _ := newTestApp()

	rec := invoke(t, app, routes.CreateDocumentHandler,
		`{"tenant_id":"t1","title":"x","content":"y","doc_type":"note"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestChatHandlerNoEvidence(t *testing.T) {
	app, _, _ := newTestApp()

	rec := invoke(t, app, routes.ChatHandler, `{"tenant_id":"t1","message":"バックアップの手順は？"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Answer string `json:"answer"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(resp.Answer, "関連する情報が見つかりませんでした") {
		t.Errorf("answer = %q, want the fixed no-information message", resp.Answer)
	}
}
