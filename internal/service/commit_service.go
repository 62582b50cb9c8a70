package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/arturoeanton/commit-tracker/internal/domain"
	"github.com/arturoeanton/commit-tracker/internal/port"
)

// ErrTestDataRejected signals that a commit matched the test-data
// heuristics under a rejecting validation policy.
var ErrTestDataRejected = errors.New("test commit data rejected")

// ErrInvalidCommit signals a commit record missing required fields.
var ErrInvalidCommit = errors.New("invalid commit data")

// ValidationPolicy parameterizes ingestion validation. Different ingestion
// paths want different duplicate/test-data policies; this is the single
// switch that expresses that difference.
type ValidationPolicy struct {
	// RejectTestData enables the test-data heuristics (used by the
	// webhook path).
	RejectTestData bool
}

// Policies used by the three ingestion paths.
var (
	WebhookPolicy = ValidationPolicy{RejectTestData: true}
	DefaultPolicy = ValidationPolicy{}
)

// IngestResult reports the outcome of one ingestion attempt.
type IngestResult struct {
	ID        string `json:"id"`
	Duplicate bool   `json:"duplicate"`
}

// CommitService owns idempotent commit ingestion. Every ingestion path
// (webhook, local, sync loop) funnels through Ingest so the duplicate
// handling lives in exactly one place.
type CommitService struct {
	store port.CommitStore
}

// NewCommitService creates a new commit service.
func NewCommitService(store port.CommitStore) *CommitService {
	return &CommitService{store: store}
}

// Ingest validates and stores one commit with its file diffs. Re-ingestion
// of an already-stored commit hash is a no-op reported via
// IngestResult.Duplicate. Storage failures surface to the caller; silent
// data loss is worse than a visible retry.
func (s *CommitService) Ingest(ctx context.Context, commit *domain.Commit, policy ValidationPolicy) (IngestResult, error) {
	if err := validateCommit(commit); err != nil {
		return IngestResult{}, err
	}
	if policy.RejectTestData && looksLikeTestData(commit) {
		slog.Warn("test data detected and rejected",
			"commit_hash", commit.CommitHash,
			"author", commit.AuthorName,
			"repository", commit.RepositoryName,
		)
		return IngestResult{}, ErrTestDataRejected
	}

	if commit.DiffHash == "" && commit.DiffContent != "" {
		commit.DiffHash = HashDiff(commit.DiffContent)
	}
	if commit.Status == "" {
		commit.Status = domain.StatusProcessed
		now := time.Now().UTC()
		commit.ProcessedAt = &now
	}

	// Cheap fast path; the unique constraint below is the real guard.
	existing, err := s.store.GetCommitMetadataByHash(ctx, commit.CommitHash)
	if err == nil {
		return IngestResult{ID: existing.ID, Duplicate: true}, nil
	}
	if !errors.Is(err, port.ErrCommitNotFound) {
		return IngestResult{}, fmt.Errorf("check existing commit: %w", err)
	}

	id, err := s.store.StoreCommitWithDiff(ctx, commit)
	if err != nil {
		if errors.Is(err, port.ErrDuplicateCommit) {
			// Lost a race with a concurrent ingestion path; the
			// constraint is the idempotence signal.
			if existing, lookupErr := s.store.GetCommitMetadataByHash(ctx, commit.CommitHash); lookupErr == nil {
				return IngestResult{ID: existing.ID, Duplicate: true}, nil
			}
			return IngestResult{Duplicate: true}, nil
		}
		return IngestResult{}, fmt.Errorf("store commit: %w", err)
	}

	slog.Info("commit ingested",
		"commit_id", id,
		"commit_hash", shortHash(commit.CommitHash),
		"source", commit.SourceType,
		"files", len(commit.FileDiffs),
	)
	return IngestResult{ID: id}, nil
}

// HashDiff computes the reproducible content hash stored in diff_hash.
func HashDiff(diffContent string) string {
	sum := sha256.Sum256([]byte(diffContent))
	return hex.EncodeToString(sum[:])
}

func validateCommit(commit *domain.Commit) error {
	switch {
	case commit.CommitHash == "":
		return fmt.Errorf("%w: missing commit_hash", ErrInvalidCommit)
	case commit.RepositoryName == "":
		return fmt.Errorf("%w: missing repository_name", ErrInvalidCommit)
	case commit.AuthorName == "":
		return fmt.Errorf("%w: missing author_name", ErrInvalidCommit)
	case commit.CommitDate.IsZero():
		return fmt.Errorf("%w: missing commit_date", ErrInvalidCommit)
	}
	return nil
}

// looksLikeTestData applies the webhook path's test-data heuristics.
func looksLikeTestData(commit *domain.Commit) bool {
	return strings.HasPrefix(commit.CommitHash, "test_") ||
		strings.HasPrefix(commit.AuthorName, "Test") ||
		strings.HasPrefix(commit.RepositoryName, "test_") ||
		commit.CommitHash == "abc1234567890abcdef1234567890abcdef1234" ||
		strings.Contains(strings.ToLower(commit.CommitMessage), "test")
}

func shortHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
