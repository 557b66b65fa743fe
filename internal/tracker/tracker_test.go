package tracker

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"supportbot/internal/model"
)

func testRepo() model.Repository {
	return model.Repository{
		Name:     "widget",
		FullName: "acme/widget",
		Owner:    model.User{Login: "acme"},
	}
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New("test-token", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()), WithAttempts(3))
	return c, srv
}

func TestGetIssueSendsAuth(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		if r.URL.Path != "/repos/acme/widget/issues/7" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(model.Issue{Number: 7, Title: "boom"})
	}))
	issue, err := c.GetIssue(context.Background(), testRepo(), 7)
	if err != nil {
		t.Fatalf("get issue: %v", err)
	}
	if issue.Number != 7 || issue.Title != "boom" {
		t.Fatalf("issue = %+v", issue)
	}
}

func TestDoJSONRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(model.Issue{Number: 1})
	}))
	if _, err := c.GetIssue(context.Background(), testRepo(), 1); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
}

func TestDoJSONDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"Validation Failed"}`))
	}))
	_, err := c.GetIssue(context.Background(), testRepo(), 1)
	if err == nil {
		t.Fatalf("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("4xx must not retry, calls = %d", calls.Load())
	}
}

func TestPostCommentBody(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		var payload map[string]string
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if payload["body"] != "hello there" {
			t.Errorf("body = %q", payload["body"])
		}
		w.WriteHeader(http.StatusCreated)
	}))
	if err := c.PostComment(context.Background(), testRepo(), 7, "hello there"); err != nil {
		t.Fatalf("post comment: %v", err)
	}
}

func TestAddAssigneesFiltersPlaceholders(t *testing.T) {
	var called atomic.Bool
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called.Store(true)
		var payload map[string][]string
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if len(payload["assignees"]) != 1 || payload["assignees"][0] != "realuser" {
			t.Errorf("assignees = %v", payload["assignees"])
		}
		w.WriteHeader(http.StatusCreated)
	}))
	err := c.AddAssignees(context.Background(), testRepo(), 7, []string{"@maintainer-team", "realuser", " "})
	if err != nil {
		t.Fatalf("add assignees: %v", err)
	}
	if !called.Load() {
		t.Fatalf("expected a request")
	}
}

func TestAddAssigneesAllPlaceholdersNoRequest(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request to %s", r.URL.Path)
	}))
	if err := c.AddAssignees(context.Background(), testRepo(), 7, []string{"@team-a", "@team-b"}); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
}

func TestGetFileContentDecodesBase64(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"content":  base64.StdEncoding.EncodeToString([]byte("# Widget\n")),
			"encoding": "base64",
		})
	}))
	got, err := c.GetFileContent(context.Background(), testRepo(), "README.md")
	if err != nil {
		t.Fatalf("get file: %v", err)
	}
	if got != "# Widget\n" {
		t.Fatalf("content = %q", got)
	}
}

func TestGetFileContentMissingFileIsEmpty(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Not Found"}`))
	}))
	got, err := c.GetFileContent(context.Background(), testRepo(), "TROUBLESHOOTING.md")
	if err != nil {
		t.Fatalf("missing file must not error: %v", err)
	}
	if got != "" {
		t.Fatalf("content = %q, want empty", got)
	}
}

func TestSearchIssuesScopesQuery(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		if q != `repo:acme/widget is:issue "panic: nil pointer"` {
			t.Errorf("q = %q", q)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": []model.IssueRef{{Number: 12, Title: "panic on startup"}},
		})
	}))
	refs, err := c.SearchIssues(context.Background(), testRepo(), `"panic: nil pointer"`, 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(refs) != 1 || refs[0].Number != 12 {
		t.Fatalf("refs = %+v", refs)
	}
}
