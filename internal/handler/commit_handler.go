package handler

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/arturoeanton/commit-tracker/internal/domain"
	"github.com/arturoeanton/commit-tracker/internal/port"
	"github.com/arturoeanton/commit-tracker/internal/service"
	"github.com/gofiber/fiber/v3"
)

// CommitHandler binds commit ingestion and read endpoints to the
// persistence seams.
type CommitHandler struct {
	commits *service.CommitService
	store   port.CommitStore
}

// NewCommitHandler creates a new commit handler.
func NewCommitHandler(commits *service.CommitService, store port.CommitStore) *CommitHandler {
	return &CommitHandler{commits: commits, store: store}
}

// Register sets up commit routes. Literal segments are registered before
// the parameterized ones.
func (h *CommitHandler) Register(api fiber.Router) {
	commits := api.Group("/commits")
	commits.Post("/webhook", h.TrackWebhook)
	commits.Post("/local", h.TrackLocal)
	commits.Get("/", h.List)
	commits.Get("/search", h.Search)
	commits.Get("/statistics", h.Statistics)
	commits.Post("/statistics/refresh", h.RefreshStatistics)
	commits.Get("/hash/:hash", h.GetByHash)
	commits.Get("/:id", h.Get)
	commits.Get("/:id/diff", h.GetDiff)
	commits.Get("/:id/files", h.GetFiles)
	commits.Get("/:id/summary", h.GetSummary)
	commits.Delete("/:id", h.Delete)

	api.Get("/files/:id", h.GetFileAnalysis)
}

// WebhookCommit is one commit entry of a push webhook payload.
type WebhookCommit struct {
	ID        string   `json:"id"`
	Message   string   `json:"message"`
	Timestamp string   `json:"timestamp"`
	Added     []string `json:"added"`
	Modified  []string `json:"modified"`
	Removed   []string `json:"removed"`
	Parents   []string `json:"parents"`
	Author    struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"author"`
	Stats struct {
		Additions int `json:"additions"`
		Deletions int `json:"deletions"`
	} `json:"stats"`
}

// WebhookPayload is a push event as delivered by the webhook service.
type WebhookPayload struct {
	EventType  string          `json:"event_type"`
	Repository map[string]any  `json:"repository"`
	Commits    []WebhookCommit `json:"commits"`
	Sender     map[string]any  `json:"sender"`
	Ref        string          `json:"ref"`
	Compare    string          `json:"compare"`
}

// TrackWebhook ingests all commits of a push webhook payload. Test-data
// commits are skipped under the webhook validation policy; one bad commit
// does not fail the batch.
func (h *CommitHandler) TrackWebhook(c fiber.Ctx) error {
	var payload WebhookPayload
	if err := c.Bind().JSON(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid webhook payload"})
	}

	repoName, _ := payload.Repository["full_name"].(string)
	if repoName == "" {
		repoName = "unknown"
	}
	branch := strings.TrimPrefix(payload.Ref, "refs/heads/")

	slog.Info("received webhook commit data",
		"event_type", payload.EventType,
		"repository", repoName,
		"commit_count", len(payload.Commits),
	)

	results := []service.IngestResult{}
	skipped := 0
	for _, wc := range payload.Commits {
		commit, err := webhookCommitToDomain(wc, repoName, branch, payload)
		if err != nil {
			slog.Warn("skipping malformed webhook commit", "commit_hash", wc.ID, "error", err)
			skipped++
			continue
		}

		res, err := h.commits.Ingest(c.Context(), commit, service.WebhookPolicy)
		if err != nil {
			if errors.Is(err, service.ErrTestDataRejected) || errors.Is(err, service.ErrInvalidCommit) {
				skipped++
				continue
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		results = append(results, res)
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"tracked": len(results),
		"skipped": skipped,
		"commits": results,
	})
}

func webhookCommitToDomain(wc WebhookCommit, repoName, branch string, payload WebhookPayload) (*domain.Commit, error) {
	commitDate, err := time.Parse(time.RFC3339, wc.Timestamp)
	if err != nil {
		return nil, err
	}

	filesChanged := append(append(append([]string{}, wc.Modified...), wc.Added...), wc.Removed...)
	commit := &domain.Commit{
		CommitHash:     wc.ID,
		RepositoryName: repoName,
		AuthorName:     wc.Author.Name,
		AuthorEmail:    wc.Author.Email,
		CommitMessage:  wc.Message,
		CommitDate:     commitDate,
		SourceType:     domain.SourceWebhook,
		FilesChanged:   filesChanged,
		LinesAdded:     wc.Stats.Additions,
		LinesDeleted:   wc.Stats.Deletions,
		ParentCommits:  wc.Parents,
		Metadata: map[string]any{
			"webhook_event_type": payload.EventType,
			"sender":             payload.Sender,
			"compare_url":        payload.Compare,
		},
	}
	if branch != "" {
		commit.BranchName = &branch
	}
	return commit, nil
}

// LocalCommitRequest is a commit pushed by the local CLI.
type LocalCommitRequest struct {
	CommitHash     string                     `json:"commit_hash"`
	RepositoryName string                     `json:"repository_name"`
	AuthorName     string                     `json:"author_name"`
	AuthorEmail    string                     `json:"author_email"`
	CommitMessage  string                     `json:"commit_message"`
	CommitDate     time.Time                  `json:"commit_date"`
	BranchName     string                     `json:"branch_name"`
	FilesChanged   []string                   `json:"files_changed"`
	LinesAdded     int                        `json:"lines_added"`
	LinesDeleted   int                        `json:"lines_deleted"`
	ParentCommits  []string                   `json:"parent_commits"`
	DiffContent    string                     `json:"diff_content"`
	FileDiffs      map[string]domain.FileDiff `json:"file_diffs"`
	Metadata       map[string]any             `json:"metadata"`
}

// TrackLocal ingests one commit from the local CLI path.
func (h *CommitHandler) TrackLocal(c fiber.Ctx) error {
	var body LocalCommitRequest
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid commit data format"})
	}

	commit := &domain.Commit{
		CommitHash:     body.CommitHash,
		RepositoryName: body.RepositoryName,
		AuthorName:     body.AuthorName,
		AuthorEmail:    body.AuthorEmail,
		CommitMessage:  body.CommitMessage,
		CommitDate:     body.CommitDate,
		SourceType:     domain.SourceLocal,
		FilesChanged:   body.FilesChanged,
		LinesAdded:     body.LinesAdded,
		LinesDeleted:   body.LinesDeleted,
		ParentCommits:  body.ParentCommits,
		DiffContent:    body.DiffContent,
		FileDiffs:      body.FileDiffs,
		Metadata:       body.Metadata,
	}
	if body.BranchName != "" {
		commit.BranchName = &body.BranchName
	}

	res, err := h.commits.Ingest(c.Context(), commit, service.DefaultPolicy)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCommit) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{
		"status": "success",
		"commit": res,
	})
}

// List returns a filtered, paginated commit list.
func (h *CommitHandler) List(c fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	opts := port.ListOptions{
		Page:       page,
		Limit:      limit,
		Repository: c.Query("repository"),
		Author:     c.Query("author"),
		Status:     c.Query("status"),
	}

	commitPage, err := h.store.ListCommits(c.Context(), opts)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(commitPage)
}

// Search runs full-text search across commit messages, authors, and
// repository names.
func (h *CommitHandler) Search(c fiber.Ctx) error {
	term := strings.TrimSpace(c.Query("q"))
	if term == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing search term"})
	}
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	results, err := h.store.SearchCommits(c.Context(), term, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"results": results, "count": len(results)})
}

// Statistics returns per-day commit statistics from the rollup.
func (h *CommitHandler) Statistics(c fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "30"))
	if limit < 1 || limit > 365 {
		limit = 30
	}

	stats, err := h.store.GetDailyStatistics(c.Context(), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"statistics": stats, "days": len(stats)})
}

// RefreshStatistics recomputes the statistics rollup.
func (h *CommitHandler) RefreshStatistics(c fiber.Ctx) error {
	if err := h.store.RefreshStatistics(c.Context()); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"status": "refreshed"})
}

// Get returns commit metadata (no diff payload) by id.
func (h *CommitHandler) Get(c fiber.Ctx) error {
	commit, err := h.store.GetCommitMetadata(c.Context(), c.Params("id"))
	if err != nil {
		return commitError(c, err)
	}
	return c.JSON(commit)
}

// GetByHash returns the full commit including diff content by its VCS hash.
func (h *CommitHandler) GetByHash(c fiber.Ctx) error {
	commit, err := h.store.GetCommitWithDiffByHash(c.Context(), c.Params("hash"))
	if err != nil {
		return commitError(c, err)
	}
	return c.JSON(commit)
}

// GetDiff returns the full commit including diff content by id.
func (h *CommitHandler) GetDiff(c fiber.Ctx) error {
	commit, err := h.store.GetCommitWithDiff(c.Context(), c.Params("id"))
	if err != nil {
		return commitError(c, err)
	}
	return c.JSON(commit)
}

// GetFiles returns the per-file change rows of a commit.
func (h *CommitHandler) GetFiles(c fiber.Ctx) error {
	files, err := h.store.GetCommitFiles(c.Context(), c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"files": files, "count": len(files)})
}

// GetSummary returns the aggregated rollup for one commit.
func (h *CommitHandler) GetSummary(c fiber.Ctx) error {
	summary, err := h.store.GetCommitSummary(c.Context(), c.Params("id"))
	if err != nil {
		return commitError(c, err)
	}
	return c.JSON(summary)
}

// Delete removes a commit and its file rows.
func (h *CommitHandler) Delete(c fiber.Ctx) error {
	if err := h.store.DeleteCommit(c.Context(), c.Params("id")); err != nil {
		return commitError(c, err)
	}
	return c.JSON(fiber.Map{"status": "deleted"})
}

// GetFileAnalysis returns one file change joined to its parent commit.
func (h *CommitHandler) GetFileAnalysis(c fiber.Ctx) error {
	analysis, err := h.store.GetFileAnalysis(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, port.ErrFileNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "file not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(analysis)
}

func commitError(c fiber.Ctx, err error) error {
	if errors.Is(err, port.ErrCommitNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "commit not found"})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}
