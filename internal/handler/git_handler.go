package handler

import (
	"errors"
	"strconv"

	"github.com/arturoeanton/commit-tracker/internal/port"
	"github.com/gofiber/fiber/v3"
)

// GitHandler exposes read-only views of the local repository through the
// VCS gateway.
type GitHandler struct {
	vcs port.VCSProvider
}

// NewGitHandler creates a new git handler.
func NewGitHandler(vcs port.VCSProvider) *GitHandler {
	return &GitHandler{vcs: vcs}
}

// Register sets up git inspection routes.
func (h *GitHandler) Register(api fiber.Router) {
	git := api.Group("/git")
	git.Get("/status", h.Status)
	git.Get("/repository", h.Repository)
	git.Get("/commits/recent", h.RecentCommits)
	git.Get("/commits/:hash", h.Commit)
}

// Status reports uncommitted working tree changes.
func (h *GitHandler) Status(c fiber.Ctx) error {
	status, err := h.vcs.UncommittedChanges(c.Context())
	if err != nil {
		return gitError(c, err)
	}
	return c.JSON(status)
}

// Repository reports the resolved repository name and current branch.
func (h *GitHandler) Repository(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"repository_name": h.vcs.RepositoryName(c.Context()),
		"current_branch":  h.vcs.CurrentBranch(c.Context()),
	})
}

// RecentCommits lists the most recent commits on the current branch.
func (h *GitHandler) RecentCommits(c fiber.Ctx) error {
	count, _ := strconv.Atoi(c.Query("count", "10"))
	if count < 1 || count > 100 {
		count = 10
	}

	commits, err := h.vcs.RecentCommits(c.Context(), count)
	if err != nil {
		return gitError(c, err)
	}
	return c.JSON(fiber.Map{"commits": commits, "count": len(commits)})
}

// Commit returns metadata and change stats for a single commit hash.
func (h *GitHandler) Commit(c fiber.Ctx) error {
	hash := c.Params("hash")

	info, err := h.vcs.CommitInfo(c.Context(), hash)
	if err != nil {
		return gitError(c, err)
	}
	stats, err := h.vcs.CommitStats(c.Context(), hash)
	if err != nil {
		return gitError(c, err)
	}

	return c.JSON(fiber.Map{
		"commit": info,
		"stats":  stats,
	})
}

func gitError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, port.ErrNotARepository):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "path is not a git repository"})
	case errors.Is(err, port.ErrGitNotInstalled):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "git is not installed"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
}
