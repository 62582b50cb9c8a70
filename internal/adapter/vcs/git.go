package vcs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/arturoeanton/commit-tracker/internal/domain"
	"github.com/arturoeanton/commit-tracker/internal/port"
)

// logFieldSep separates fields in --pretty=format output. The unit
// separator cannot appear in author names or commit subjects, unlike "|".
const logFieldSep = "\x1f"

var logFormat = strings.Join([]string{"%H", "%an", "%ae", "%aI", "%s", "%P"}, "%x1f")

// GitClient implements port.VCSProvider by shelling out to the git CLI.
// It is the only component that knows git's invocation syntax.
type GitClient struct {
	repoPath string
	isRepo   bool
}

// NewGitClient creates a client bound to repoPath. The path is validated
// once; operations against a non-repository fail with ErrNotARepository or
// degrade per their documented contract.
func NewGitClient(repoPath string) *GitClient {
	abs, err := filepath.Abs(repoPath)
	if err != nil {
		abs = repoPath
	}
	_, statErr := os.Stat(filepath.Join(abs, ".git"))
	if statErr != nil {
		slog.Warn("not a git repository", "path", abs)
	}
	return &GitClient{repoPath: abs, isRepo: statErr == nil}
}

// run executes one git command with an argument list (never a shell string)
// and returns trimmed stdout.
func (g *GitClient) run(ctx context.Context, args ...string) (string, error) {
	if !g.isRepo {
		return "", port.ErrNotARepository
	}

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.repoPath
	output, err := cmd.Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", port.ErrGitNotInstalled
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("git %s: %w", args[0], err)
	}
	return strings.TrimSpace(string(output)), nil
}

// fatal reports whether err is one of the two configuration errors that
// must propagate instead of degrading.
func fatal(err error) bool {
	return errors.Is(err, port.ErrNotARepository) || errors.Is(err, port.ErrGitNotInstalled)
}

// CurrentBranch returns the checked-out branch name, or "unknown" when the
// path is not a repository or the command fails.
func (g *GitClient) CurrentBranch(ctx context.Context) string {
	if !g.isRepo {
		return "unknown"
	}
	branch, err := g.run(ctx, "branch", "--show-current")
	if err != nil {
		slog.Warn("failed to read current branch", "error", err)
		return "unknown"
	}
	return branch
}

// RepositoryName derives the repository name from the remote origin URL
// (strip ".git", take the last path segment). It falls back to the local
// directory name when no remote is configured or the command fails.
func (g *GitClient) RepositoryName(ctx context.Context) string {
	if !g.isRepo {
		return filepath.Base(g.repoPath)
	}
	remoteURL, err := g.run(ctx, "config", "--get", "remote.origin.url")
	if err != nil || remoteURL == "" {
		return filepath.Base(g.repoPath)
	}
	return repoNameFromRemote(remoteURL)
}

func repoNameFromRemote(remoteURL string) string {
	remoteURL = strings.TrimSuffix(remoteURL, ".git")
	if idx := strings.LastIndex(remoteURL, "/"); idx >= 0 {
		remoteURL = remoteURL[idx+1:]
	}
	return remoteURL
}

// RecentCommits returns up to count non-merge commits, newest first. Log
// lines that fail to parse are skipped and logged; partial results beat
// total failure.
func (g *GitClient) RecentCommits(ctx context.Context, count int) ([]domain.CommitInfo, error) {
	output, err := g.run(ctx,
		"log", fmt.Sprintf("-%d", count),
		"--pretty=format:"+logFormat, "--no-merges",
	)
	if err != nil {
		if fatal(err) {
			return nil, err
		}
		// Empty repositories have no log; treat as no commits.
		slog.Warn("failed to read recent commits", "error", err)
		return nil, nil
	}

	var commits []domain.CommitInfo
	for _, line := range strings.Split(output, "\n") {
		ci, ok := parseLogLine(line)
		if !ok {
			if strings.TrimSpace(line) != "" {
				slog.Warn("skipping unparseable log line", "line", line)
			}
			continue
		}
		commits = append(commits, ci)
	}
	return commits, nil
}

// parseLogLine splits one formatted log line into a CommitInfo. The second
// return value is false for blank or malformed lines.
func parseLogLine(line string) (domain.CommitInfo, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return domain.CommitInfo{}, false
	}

	parts := strings.SplitN(line, logFieldSep, 6)
	if len(parts) < 5 {
		return domain.CommitInfo{}, false
	}

	ts, err := time.Parse(time.RFC3339, parts[3])
	if err != nil {
		return domain.CommitInfo{}, false
	}

	ci := domain.CommitInfo{
		Hash:        parts[0],
		AuthorName:  parts[1],
		AuthorEmail: parts[2],
		CommitDate:  ts,
		Message:     parts[4],
	}
	if len(parts) == 6 && parts[5] != "" {
		// Parent hashes arrive space-joined in a single field.
		ci.ParentHashes = strings.Fields(parts[5])
	}
	return ci, true
}

// CommitInfo returns the metadata of a single commit, or nil when the hash
// is unknown to the repository.
func (g *GitClient) CommitInfo(ctx context.Context, hash string) (*domain.CommitInfo, error) {
	output, err := g.run(ctx,
		"show", "--no-patch", "--pretty=format:"+logFormat, hash,
	)
	if err != nil {
		if fatal(err) {
			return nil, err
		}
		slog.Warn("failed to read commit info", "commit_hash", shortHash(hash), "error", err)
		return nil, nil
	}

	ci, ok := parseLogLine(output)
	if !ok {
		return nil, nil
	}
	return &ci, nil
}

// CommitStats returns the changed file list and aggregate line counts of a
// commit. A commit can legitimately touch files with no line changes (mode
// flips), so a missing insertions/deletions line means zero, not an error.
func (g *GitClient) CommitStats(ctx context.Context, hash string) (domain.CommitStats, error) {
	stats := domain.CommitStats{FilesChanged: []string{}}

	filesOutput, err := g.run(ctx, "show", "--name-only", "--pretty=format:", hash)
	if err != nil {
		if fatal(err) {
			return stats, err
		}
		slog.Warn("failed to read commit files", "commit_hash", shortHash(hash), "error", err)
		return stats, nil
	}
	for _, line := range strings.Split(filesOutput, "\n") {
		if f := strings.TrimSpace(line); f != "" {
			stats.FilesChanged = append(stats.FilesChanged, f)
		}
	}

	statOutput, err := g.run(ctx, "show", "--stat", "--pretty=format:", hash)
	if err != nil {
		if fatal(err) {
			return stats, err
		}
		slog.Warn("failed to read commit stat", "commit_hash", shortHash(hash), "error", err)
		return stats, nil
	}
	stats.LinesAdded, stats.LinesDeleted = parseStatSummary(statOutput)
	return stats, nil
}

// parseStatSummary extracts the insertion/deletion counts from a
// "--stat" summary line such as "3 files changed, 10 insertions(+), 2 deletions(-)".
func parseStatSummary(output string) (added, deleted int) {
	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, "changed") {
			continue
		}
		for _, part := range strings.Split(line, ",") {
			part = strings.TrimSpace(part)
			fields := strings.Fields(part)
			if len(fields) == 0 {
				continue
			}
			n, err := strconv.Atoi(fields[0])
			if err != nil {
				continue
			}
			switch {
			case strings.Contains(part, "insertion"):
				added = n
			case strings.Contains(part, "deletion"):
				deleted = n
			}
		}
		return added, deleted
	}
	return 0, 0
}

// UncommittedChanges parses porcelain status output into change buckets.
// The two-character status prefix decides membership by its first letter.
func (g *GitClient) UncommittedChanges(ctx context.Context) (domain.WorkingTreeStatus, error) {
	status := domain.WorkingTreeStatus{
		ModifiedFiles: []string{},
		AddedFiles:    []string{},
		DeletedFiles:  []string{},
	}

	output, err := g.run(ctx, "status", "--porcelain")
	if err != nil {
		if fatal(err) {
			return status, err
		}
		slog.Warn("failed to read working tree status", "error", err)
		return status, nil
	}
	if output == "" {
		return status, nil
	}

	for _, line := range strings.Split(output, "\n") {
		if len(line) < 4 {
			continue
		}
		code := line[:2]
		filename := line[3:]
		switch {
		case strings.HasPrefix(code, "M"):
			status.ModifiedFiles = append(status.ModifiedFiles, filename)
		case strings.HasPrefix(code, "A"):
			status.AddedFiles = append(status.AddedFiles, filename)
		case strings.HasPrefix(code, "D"):
			status.DeletedFiles = append(status.DeletedFiles, filename)
		}
	}
	status.HasChanges = true
	return status, nil
}

func shortHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
