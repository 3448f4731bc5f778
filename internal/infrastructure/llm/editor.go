package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"newsroom/internal/config"
	"newsroom/internal/domain"
	"newsroom/internal/ports"
)

const (
	evaluatePrompt = "You are the editor-in-chief of an automated newsroom. " +
		"Review the article and answer with JSON: " +
		`{"decision":"publish|interview|revise|reject","reasoning":"...",` +
		`"issues":[{"location":"...","description":"..."}],"featured":false,"interview_needed":false}. ` +
		"The decision field alone routes the article."

	validatePrompt = "You are validating a revised article. Judge ONLY whether the listed " +
		"original issues were addressed by the revised content. Answer with the same JSON " +
		"shape as an editorial review; use decision \"revise\" if issues remain."

	revisePrompt = "You rewrite news articles to address editorial findings. " +
		"Answer with JSON: {\"title\":\"...\",\"body\":\"...\"}. Keep the language of the original."

	planPrompt = "You plan interviews that would strengthen a news article. Answer with JSON: " +
		`{"method":"email|phone","phone_number":"...","email":"...",` +
		`"script":{"instructions":"...","questions":[{"position":1,"text":"..."}],` +
		`"closing_question":"...","voice":"...","language":"fi","temperature":0.8}}.`
)

// EditorClient implements the editorial capabilities against an
// OpenAI-compatible chat-completions endpoint.
type EditorClient struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

var _ ports.Evaluator = (*EditorClient)(nil)
var _ ports.FixValidator = (*EditorClient)(nil)
var _ ports.Reviser = (*EditorClient)(nil)
var _ ports.InterviewPlanner = (*EditorClient)(nil)

// NewEditorClient builds a client from configuration.
func NewEditorClient(cfg config.EditorialConfig) *EditorClient {
	return &EditorClient{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Evaluate runs the first-pass editorial review.
func (c *EditorClient) Evaluate(ctx context.Context, article domain.Article) (domain.EditorialDecision, error) {
	var decision domain.EditorialDecision
	if err := c.complete(ctx, evaluatePrompt, articlePayload(article), &decision); err != nil {
		return domain.EditorialDecision{}, fmt.Errorf("evaluate article %d: %w", article.ID, err)
	}
	return decision, nil
}

// ValidateFix re-reviews a revised article against the original findings.
func (c *EditorClient) ValidateFix(ctx context.Context, revised domain.Article, issues []domain.Issue) (domain.EditorialDecision, error) {
	payload := struct {
		Article        articleBody    `json:"article"`
		OriginalIssues []domain.Issue `json:"original_issues"`
	}{articlePayload(revised), issues}

	var decision domain.EditorialDecision
	if err := c.complete(ctx, validatePrompt, payload, &decision); err != nil {
		return domain.EditorialDecision{}, fmt.Errorf("validate fixes for article %d: %w", revised.ID, err)
	}
	return decision, nil
}

// Revise rewrites the article to address the issues.
func (c *EditorClient) Revise(ctx context.Context, article domain.Article, issues []domain.Issue) (domain.Article, error) {
	payload := struct {
		Article articleBody    `json:"article"`
		Issues  []domain.Issue `json:"issues"`
	}{articlePayload(article), issues}

	var out struct {
		Title string `json:"title"`
		Body  string `json:"body"`
	}
	if err := c.complete(ctx, revisePrompt, payload, &out); err != nil {
		return domain.Article{}, fmt.Errorf("revise article %d: %w", article.ID, err)
	}
	if out.Body == "" {
		return domain.Article{}, fmt.Errorf("revise article %d: empty body returned", article.ID)
	}

	revised := article
	if out.Title != "" {
		revised.Title = out.Title
	}
	revised.Body = out.Body
	return revised, nil
}

// PlanInterview produces an interview plan for the article.
func (c *EditorClient) PlanInterview(ctx context.Context, article domain.Article) (domain.InterviewPlan, error) {
	var plan domain.InterviewPlan
	if err := c.complete(ctx, planPrompt, articlePayload(article), &plan); err != nil {
		return domain.InterviewPlan{}, fmt.Errorf("plan interview for article %d: %w", article.ID, err)
	}
	return plan, nil
}

type articleBody struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	Language string `json:"language,omitempty"`
}

func articlePayload(article domain.Article) articleBody {
	return articleBody{ID: article.ID, Title: article.Title, Body: article.Body, Language: article.Language}
}

// complete posts one chat completion and unmarshals the JSON answer into v.
func (c *EditorClient) complete(ctx context.Context, system string, payload any, v any) error {
	if c == nil {
		return fmt.Errorf("editor client is nil")
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return fmt.Errorf("editor client misconfigured")
	}

	user, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	body, err := json.Marshal(map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": string(user)},
		},
		"response_format": map[string]string{"type": "json_object"},
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send completion: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("completion error %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	var completion struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return fmt.Errorf("decode completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return fmt.Errorf("completion returned no choices")
	}

	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), v); err != nil {
		return fmt.Errorf("parse model answer: %w", err)
	}
	return nil
}
