package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/arturoeanton/commit-tracker/internal/domain"
	"github.com/arturoeanton/commit-tracker/internal/port"
	"github.com/arturoeanton/commit-tracker/internal/service"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory port.CommitStore for handler tests.
type memStore struct {
	mu      sync.Mutex
	commits map[string]*domain.Commit
	nextID  int
}

func newMemStore() *memStore {
	return &memStore{commits: map[string]*domain.Commit{}}
}

func (m *memStore) StoreCommitWithDiff(_ context.Context, commit *domain.Commit) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.commits {
		if c.RepositoryName == commit.RepositoryName && c.CommitHash == commit.CommitHash {
			return "", port.ErrDuplicateCommit
		}
	}
	m.nextID++
	stored := *commit
	stored.ID = fmt.Sprintf("id-%d", m.nextID)
	m.commits[stored.ID] = &stored
	return stored.ID, nil
}

func (m *memStore) GetCommitMetadata(_ context.Context, id string) (*domain.Commit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.commits[id]
	if !ok {
		return nil, port.ErrCommitNotFound
	}
	result := *c
	return &result, nil
}

func (m *memStore) GetCommitMetadataByHash(_ context.Context, hash string) (*domain.Commit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.commits {
		if c.CommitHash == hash {
			result := *c
			return &result, nil
		}
	}
	return nil, port.ErrCommitNotFound
}

func (m *memStore) GetCommitWithDiff(ctx context.Context, id string) (*domain.Commit, error) {
	return m.GetCommitMetadata(ctx, id)
}

func (m *memStore) GetCommitWithDiffByHash(ctx context.Context, hash string) (*domain.Commit, error) {
	return m.GetCommitMetadataByHash(ctx, hash)
}

func (m *memStore) ListCommits(_ context.Context, opts port.ListOptions) (*domain.CommitPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := []domain.CommitListItem{}
	for _, c := range m.commits {
		if opts.Author != "" && !strings.Contains(strings.ToLower(c.AuthorName), strings.ToLower(opts.Author)) {
			continue
		}
		items = append(items, domain.CommitListItem{
			ID:             c.ID,
			CommitHash:     c.CommitHash,
			RepositoryName: c.RepositoryName,
			AuthorName:     c.AuthorName,
			Status:         c.Status,
		})
	}
	return &domain.CommitPage{Commits: items, Page: opts.Page, Limit: opts.Limit, Total: len(items)}, nil
}

func (m *memStore) SearchCommits(_ context.Context, term string, _ int) ([]domain.SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	results := []domain.SearchResult{}
	for _, c := range m.commits {
		if strings.Contains(strings.ToLower(c.CommitMessage), strings.ToLower(term)) {
			results = append(results, domain.SearchResult{ID: c.ID, CommitHash: c.CommitHash, CommitMessage: c.CommitMessage})
		}
	}
	return results, nil
}

func (m *memStore) GetCommitFiles(_ context.Context, _ string) ([]domain.CommitFile, error) {
	return []domain.CommitFile{}, nil
}

func (m *memStore) GetFileAnalysis(_ context.Context, _ string) (*domain.FileAnalysis, error) {
	return nil, port.ErrFileNotFound
}

func (m *memStore) GetCommitSummary(ctx context.Context, commitID string) (*domain.CommitSummary, error) {
	c, err := m.GetCommitMetadata(ctx, commitID)
	if err != nil {
		return nil, err
	}
	return &domain.CommitSummary{ID: c.ID, CommitHash: c.CommitHash}, nil
}

func (m *memStore) GetDailyStatistics(_ context.Context, _ int) ([]domain.DailyStat, error) {
	return []domain.DailyStat{}, nil
}

func (m *memStore) RefreshStatistics(_ context.Context) error { return nil }

func (m *memStore) DeleteCommit(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.commits[id]; !ok {
		return port.ErrCommitNotFound
	}
	delete(m.commits, id)
	return nil
}

func (m *memStore) HealthCheck(_ context.Context) bool { return true }

// stubVCS is a canned port.VCSProvider for handler tests.
type stubVCS struct{}

func (stubVCS) CurrentBranch(_ context.Context) string  { return "main" }
func (stubVCS) RepositoryName(_ context.Context) string { return "acme/widget-api" }

func (stubVCS) RecentCommits(_ context.Context, _ int) ([]domain.CommitInfo, error) {
	return []domain.CommitInfo{{
		Hash:       "a1b2c3d4",
		AuthorName: "Alice",
		Message:    "fix parser",
		CommitDate: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC),
	}}, nil
}

func (stubVCS) CommitInfo(_ context.Context, hash string) (*domain.CommitInfo, error) {
	return &domain.CommitInfo{Hash: hash, AuthorName: "Alice", Message: "fix parser"}, nil
}

func (stubVCS) CommitStats(_ context.Context, _ string) (domain.CommitStats, error) {
	return domain.CommitStats{FilesChanged: []string{"app.py"}, LinesAdded: 3, LinesDeleted: 1}, nil
}

func (stubVCS) CommitDiff(_ context.Context, _ string) (domain.CommitDiff, error) {
	return domain.CommitDiff{}, nil
}

func (stubVCS) UncommittedChanges(_ context.Context) (domain.WorkingTreeStatus, error) {
	return domain.WorkingTreeStatus{
		HasChanges:    true,
		ModifiedFiles: []string{"app.py"},
		AddedFiles:    []string{},
		DeletedFiles:  []string{},
	}, nil
}

func newTestApp(store *memStore) *fiber.App {
	app := fiber.New()
	api := app.Group("/api")

	commits := service.NewCommitService(store)
	NewCommitHandler(commits, store).Register(api)
	NewGitHandler(stubVCS{}).Register(api)

	sync := service.NewSyncService(commits, store, stubVCS{}, "", time.Minute, 10)
	NewSyncHandler(sync).Register(api)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), "body: %s", raw)
	}
	return resp.StatusCode, decoded
}

const webhookBody = `{
	"event_type": "push",
	"ref": "refs/heads/main",
	"repository": {"full_name": "acme/widget-api"},
	"commits": [
		{
			"id": "a1b2c3d4e5f6a7b8c9d0a1b2c3d4e5f6a7b8c9d0",
			"message": "fix: handle nil pointer",
			"timestamp": "2024-03-10T12:00:00Z",
			"author": {"name": "Alice", "email": "alice@example.com"},
			"added": [], "modified": ["app.py"], "removed": [],
			"stats": {"additions": 3, "deletions": 1}
		},
		{
			"id": "test_feedbeef",
			"message": "wip",
			"timestamp": "2024-03-10T12:05:00Z",
			"author": {"name": "Alice", "email": "alice@example.com"},
			"stats": {"additions": 0, "deletions": 0}
		}
	]
}`

func TestTrackWebhook(t *testing.T) {
	store := newMemStore()
	app := newTestApp(store)

	code, body := doJSON(t, app, http.MethodPost, "/api/commits/webhook", webhookBody)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, float64(1), body["tracked"])
	assert.Equal(t, float64(1), body["skipped"]) // test-data commit filtered out

	stored, err := store.GetCommitMetadataByHash(context.Background(), "a1b2c3d4e5f6a7b8c9d0a1b2c3d4e5f6a7b8c9d0")
	require.NoError(t, err)
	assert.Equal(t, domain.SourceWebhook, stored.SourceType)
	assert.Equal(t, "acme/widget-api", stored.RepositoryName)
	require.NotNil(t, stored.BranchName)
	assert.Equal(t, "main", *stored.BranchName)
	assert.Equal(t, 3, stored.LinesAdded)
	assert.Equal(t, 1, stored.LinesDeleted)
}

func TestTrackWebhook_Idempotent(t *testing.T) {
	store := newMemStore()
	app := newTestApp(store)

	code, _ := doJSON(t, app, http.MethodPost, "/api/commits/webhook", webhookBody)
	require.Equal(t, http.StatusOK, code)
	code, _ = doJSON(t, app, http.MethodPost, "/api/commits/webhook", webhookBody)
	require.Equal(t, http.StatusOK, code)

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Len(t, store.commits, 1)
}

func TestTrackWebhook_BadPayload(t *testing.T) {
	app := newTestApp(newMemStore())
	code, body := doJSON(t, app, http.MethodPost, "/api/commits/webhook", `{"commits": "nope"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.NotEmpty(t, body["error"])
}

func TestTrackLocal(t *testing.T) {
	store := newMemStore()
	app := newTestApp(store)

	code, body := doJSON(t, app, http.MethodPost, "/api/commits/local", `{
		"commit_hash": "feedbeef00feedbeef00feedbeef00feedbeef00",
		"repository_name": "acme/widget-api",
		"author_name": "Bob",
		"author_email": "bob@example.com",
		"commit_message": "local work",
		"commit_date": "2024-03-10T12:00:00Z",
		"branch_name": "feature/x",
		"diff_content": "+hello"
	}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "success", body["status"])

	stored, err := store.GetCommitMetadataByHash(context.Background(), "feedbeef00feedbeef00feedbeef00feedbeef00")
	require.NoError(t, err)
	assert.Equal(t, domain.SourceLocal, stored.SourceType)
	assert.NotEmpty(t, stored.DiffHash)
}

func TestTrackLocal_MissingFields(t *testing.T) {
	app := newTestApp(newMemStore())
	code, body := doJSON(t, app, http.MethodPost, "/api/commits/local", `{"commit_message": "no hash"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.NotEmpty(t, body["error"])
}

func TestListCommits(t *testing.T) {
	store := newMemStore()
	app := newTestApp(store)

	_, _ = doJSON(t, app, http.MethodPost, "/api/commits/webhook", webhookBody)

	code, body := doJSON(t, app, http.MethodGet, "/api/commits/?page=1&limit=20", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["total"])
}

func TestGetCommit_NotFound(t *testing.T) {
	app := newTestApp(newMemStore())
	code, body := doJSON(t, app, http.MethodGet, "/api/commits/no-such-id", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "commit not found", body["error"])
}

func TestSearchCommits_MissingTerm(t *testing.T) {
	app := newTestApp(newMemStore())
	code, _ := doJSON(t, app, http.MethodGet, "/api/commits/search", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestDeleteCommit(t *testing.T) {
	store := newMemStore()
	app := newTestApp(store)

	_, _ = doJSON(t, app, http.MethodPost, "/api/commits/webhook", webhookBody)
	stored, err := store.GetCommitMetadataByHash(context.Background(), "a1b2c3d4e5f6a7b8c9d0a1b2c3d4e5f6a7b8c9d0")
	require.NoError(t, err)

	code, _ := doJSON(t, app, http.MethodDelete, "/api/commits/"+stored.ID, "")
	assert.Equal(t, http.StatusOK, code)

	code, _ = doJSON(t, app, http.MethodGet, "/api/commits/"+stored.ID, "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestGitStatus(t *testing.T) {
	app := newTestApp(newMemStore())
	code, body := doJSON(t, app, http.MethodGet, "/api/git/status", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["has_changes"])
}

func TestGitRepository(t *testing.T) {
	app := newTestApp(newMemStore())
	code, body := doJSON(t, app, http.MethodGet, "/api/git/repository", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "acme/widget-api", body["repository_name"])
	assert.Equal(t, "main", body["current_branch"])
}

func TestSyncManualAndStatus(t *testing.T) {
	store := newMemStore()
	app := newTestApp(store)

	code, body := doJSON(t, app, http.MethodPost, "/api/sync/manual", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["commits_synced"])

	code, body = doJSON(t, app, http.MethodGet, "/api/sync/status", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["running"])
	assert.Equal(t, float64(1), body["total_synced"])
}
