package port

import (
	"context"

	"github.com/arturoeanton/commit-tracker/internal/domain"
)

// VCSProvider abstracts version control operations against a local
// repository. Implementations own the exact tool invocation syntax; callers
// only see structured data.
type VCSProvider interface {
	// CurrentBranch returns the checked-out branch, or "unknown" when the
	// path is not a repository. It never fails for that case.
	CurrentBranch(ctx context.Context) string

	// RepositoryName derives the repository name from the remote origin
	// URL, falling back to the local directory name.
	RepositoryName(ctx context.Context) string

	// RecentCommits returns up to count non-merge commits, newest first.
	// Unparseable log lines are skipped, not fatal.
	RecentCommits(ctx context.Context, count int) ([]domain.CommitInfo, error)

	// CommitInfo returns one commit's metadata, or nil when the hash is
	// unknown.
	CommitInfo(ctx context.Context, hash string) (*domain.CommitInfo, error)

	// CommitStats returns changed files and aggregate line counts for a
	// commit. Missing stat output yields zero counts, not an error.
	CommitStats(ctx context.Context, hash string) (domain.CommitStats, error)

	// CommitDiff returns the full unified diff of a commit plus its
	// per-file structured breakdown.
	CommitDiff(ctx context.Context, hash string) (domain.CommitDiff, error)

	// UncommittedChanges reports the state of the working tree.
	UncommittedChanges(ctx context.Context) (domain.WorkingTreeStatus, error)
}
