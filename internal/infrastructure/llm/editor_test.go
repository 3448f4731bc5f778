package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"newsroom/internal/config"
	"newsroom/internal/domain"
)

func completionWith(t *testing.T, content string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q, want bearer token", got)
		}
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
			ResponseFormat struct {
				Type string `json:"type"`
			} `json:"response_format"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.ResponseFormat.Type != "json_object" {
			t.Errorf("response_format = %q, want json_object", req.ResponseFormat.Type)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("messages = %+v, want system+user pair", req.Messages)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": content}},
			},
		})
	}
}

func testClient(url string) *EditorClient {
	return NewEditorClient(config.EditorialConfig{
		Endpoint: url,
		Model:    "gpt-4o-mini",
		APIKey:   "test-key",
	})
}

func TestEvaluateParsesDecision(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(completionWith(t,
		`{"decision":"revise","reasoning":"weak lede","issues":[{"location":"lede","description":"buries the news"}]}`))
	defer srv.Close()

	decision, err := testClient(srv.URL).Evaluate(context.Background(), domain.Article{ID: 1, Title: "t", Body: "b"})
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if decision.Decision != domain.DecisionRevise {
		t.Fatalf("decision = %q, want revise", decision.Decision)
	}
	if len(decision.Issues) != 1 || decision.Issues[0].Location != "lede" {
		t.Fatalf("issues = %+v, want the lede finding", decision.Issues)
	}
}

func TestReviseKeepsArticleIdentity(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(completionWith(t, `{"title":"Better title","body":"Better body"}`))
	defer srv.Close()

	original := domain.Article{ID: 7, Title: "Old", Body: "Old body", Language: "fi"}
	revised, err := testClient(srv.URL).Revise(context.Background(), original, nil)
	if err != nil {
		t.Fatalf("Revise returned error: %v", err)
	}
	if revised.ID != 7 || revised.Language != "fi" {
		t.Fatalf("revised = %+v, want identity fields preserved", revised)
	}
	if revised.Title != "Better title" || revised.Body != "Better body" {
		t.Fatalf("revised = %+v, want rewritten content", revised)
	}
}

func TestReviseRejectsEmptyBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(completionWith(t, `{"title":"Only title"}`))
	defer srv.Close()

	if _, err := testClient(srv.URL).Revise(context.Background(), domain.Article{ID: 7}, nil); err == nil {
		t.Fatal("Revise accepted an empty body")
	}
}

func TestPlanInterviewParsesScript(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(completionWith(t, `{
		"method": "phone",
		"phone_number": "+358401234567",
		"script": {
			"questions": [{"position": 1, "text": "Mitä tapahtui?"}],
			"voice": "coral",
			"language": "fi",
			"temperature": 0.8
		}
	}`))
	defer srv.Close()

	plan, err := testClient(srv.URL).PlanInterview(context.Background(), domain.Article{ID: 3})
	if err != nil {
		t.Fatalf("PlanInterview returned error: %v", err)
	}
	if plan.Method != domain.InterviewPhone {
		t.Fatalf("method = %q, want phone", plan.Method)
	}
	if len(plan.Script.Questions) != 1 || plan.Script.Questions[0].Text != "Mitä tapahtui?" {
		t.Fatalf("script = %+v, want one question", plan.Script)
	}
}

func TestCompleteErrorIncludesDetail(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Evaluate(context.Background(), domain.Article{ID: 1})
	if err == nil {
		t.Fatal("Evaluate returned nil on HTTP 429")
	}
}

func TestMisconfiguredClientFailsFast(t *testing.T) {
	t.Parallel()

	client := NewEditorClient(config.EditorialConfig{})
	if _, err := client.Evaluate(context.Background(), domain.Article{ID: 1}); err == nil {
		t.Fatal("Evaluate succeeded without configuration")
	}
}
