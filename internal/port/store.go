package port

import (
	"context"

	"github.com/arturoeanton/commit-tracker/internal/domain"
)

// ListOptions filters and paginates commit list queries. Zero values mean
// "no filter". The author filter is a case-insensitive substring match.
type ListOptions struct {
	Page       int
	Limit      int
	Repository string
	Author     string
	Status     string
}

// CommitStore is the single reader/writer of the relational store.
// It owns transactional semantics for commit ingestion.
type CommitStore interface {
	// StoreCommitWithDiff inserts a commit row plus one commit_files row
	// per file-diff entry inside a single transaction and returns the
	// generated commit id. A uniqueness conflict on
	// (repository_name, commit_hash) yields ErrDuplicateCommit; any other
	// failure rolls back the whole commit.
	StoreCommitWithDiff(ctx context.Context, commit *domain.Commit) (string, error)

	// GetCommitMetadata returns the light read shape (no diff text or JSON
	// diff blob) by record id, or ErrCommitNotFound.
	GetCommitMetadata(ctx context.Context, id string) (*domain.Commit, error)

	// GetCommitMetadataByHash is the idempotence check used by ingestion
	// callers. Returns ErrCommitNotFound when the hash is absent.
	GetCommitMetadataByHash(ctx context.Context, hash string) (*domain.Commit, error)

	// GetCommitWithDiff returns the full record including diff_content and
	// file_diffs.
	GetCommitWithDiff(ctx context.Context, id string) (*domain.Commit, error)

	// GetCommitWithDiffByHash is GetCommitWithDiff keyed by commit hash.
	GetCommitWithDiffByHash(ctx context.Context, hash string) (*domain.Commit, error)

	// ListCommits returns one page of commits, newest created first.
	ListCommits(ctx context.Context, opts ListOptions) (*domain.CommitPage, error)

	// SearchCommits runs a full-text search ranked by ts_rank then recency.
	SearchCommits(ctx context.Context, term string, limit int) ([]domain.SearchResult, error)

	// GetCommitFiles returns the per-file rows of a commit ordered by
	// filename.
	GetCommitFiles(ctx context.Context, commitID string) ([]domain.CommitFile, error)

	// GetFileAnalysis returns one file row joined to its parent commit.
	GetFileAnalysis(ctx context.Context, fileID string) (*domain.FileAnalysis, error)

	// GetCommitSummary reads the precomputed commit_summary rollup.
	GetCommitSummary(ctx context.Context, commitID string) (*domain.CommitSummary, error)

	// GetDailyStatistics reads the commit_statistics materialized view.
	GetDailyStatistics(ctx context.Context, limit int) ([]domain.DailyStat, error)

	// RefreshStatistics recomputes the commit_statistics materialized view.
	RefreshStatistics(ctx context.Context) error

	// DeleteCommit removes a commit and, via cascade, its file rows.
	DeleteCommit(ctx context.Context, id string) error

	// HealthCheck issues a trivial round-trip query. It never panics or
	// returns an error; failure is reported as false.
	HealthCheck(ctx context.Context) bool
}
