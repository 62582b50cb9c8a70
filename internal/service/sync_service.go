package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/arturoeanton/commit-tracker/internal/domain"
	"github.com/arturoeanton/commit-tracker/internal/port"
)

// errorBackoff is the fixed delay after a failed loop iteration.
const errorBackoff = 5 * time.Second

// SyncService drives unattended periodic ingestion of local repository
// commits. It polls the VCS gateway on an interval, skips commits already
// stored (by hash), and pushes new ones through the shared ingestion path.
type SyncService struct {
	commits  *CommitService
	store    port.CommitStore
	vcs      port.VCSProvider
	repoName string
	interval time.Duration
	batch    int

	mu          sync.Mutex
	running     bool
	stopping    bool
	stop        chan struct{}
	done        chan struct{}
	totalSynced int
	errorCount  int
	lastSyncAt  *time.Time
}

// NewSyncService creates a sync service. repoName may be empty, in which
// case it is resolved from the repository's remote on first use.
func NewSyncService(commits *CommitService, store port.CommitStore, vcs port.VCSProvider, repoName string, interval time.Duration, batch int) *SyncService {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if batch <= 0 {
		batch = 10
	}
	return &SyncService{
		commits:  commits,
		store:    store,
		vcs:      vcs,
		repoName: repoName,
		interval: interval,
		batch:    batch,
	}
}

// Start launches the background loop. Starting an already-running service
// is a no-op; no second loop is spawned.
func (s *SyncService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		slog.Warn("sync service is already running")
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(s.stop, s.done)
	slog.Info("sync service started", "interval", s.interval, "batch", s.batch)
}

// Stop signals the loop to exit and waits for it. Any in-flight sync pass
// finishes first; single-commit ingestion is never interrupted
// mid-transaction.
func (s *SyncService) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	done := s.done
	// Only the caller that flips the stopping flag closes the channel;
	// concurrent Stops just wait for the loop to exit.
	if s.stopping {
		s.mu.Unlock()
		<-done
		return
	}
	s.stopping = true
	stop := s.stop
	s.mu.Unlock()

	close(stop)
	<-done
	slog.Info("sync service stopped")
}

// loop runs sync passes separated by the configured interval. A failed
// pass bumps the error counter and backs off briefly instead of exiting;
// only Stop terminates the loop.
func (s *SyncService) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.stopping = false
		s.mu.Unlock()
		close(done)
	}()

	for {
		delay := s.interval
		if _, err := s.syncOnce(context.Background()); err != nil {
			s.mu.Lock()
			s.errorCount++
			s.mu.Unlock()
			slog.Error("sync pass failed", "error", err)
			delay = errorBackoff
		}

		select {
		case <-stop:
			return
		case <-time.After(delay):
		}
	}
}

// ManualSync runs exactly one sync pass outside the timer loop and reports
// a structured result. It does not alter the loop's running state.
func (s *SyncService) ManualSync(ctx context.Context) (domain.SyncResult, error) {
	result, err := s.syncOnce(ctx)
	if err != nil {
		s.mu.Lock()
		s.errorCount++
		s.mu.Unlock()
		return result, err
	}
	result.Message = "manual sync completed"
	return result, nil
}

// Status returns a snapshot of the sync loop state.
func (s *SyncService) Status() domain.SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.SyncStatus{
		Running:        s.running,
		RepositoryName: s.repoName,
		Interval:       s.interval.String(),
		TotalSynced:    s.totalSynced,
		ErrorCount:     s.errorCount,
		LastSyncAt:     s.lastSyncAt,
	}
}

// syncOnce fetches recent commits and ingests the ones not yet stored.
// A failure on one commit is logged and skipped; it does not stop the
// batch.
func (s *SyncService) syncOnce(ctx context.Context) (domain.SyncResult, error) {
	var result domain.SyncResult

	infos, err := s.vcs.RecentCommits(ctx, s.batch)
	if err != nil {
		return result, fmt.Errorf("fetch recent commits: %w", err)
	}
	if len(infos) == 0 {
		return result, nil
	}

	repoName := s.repositoryName(ctx)

	for _, info := range infos {
		_, err := s.store.GetCommitMetadataByHash(ctx, info.Hash)
		if err == nil {
			result.CommitsSkipped++
			continue
		}
		if !errors.Is(err, port.ErrCommitNotFound) {
			result.Failures++
			slog.Error("failed to check commit existence", "commit_hash", shortHash(info.Hash), "error", err)
			continue
		}

		commit, err := s.buildCommit(ctx, repoName, info)
		if err != nil {
			result.Failures++
			slog.Error("failed to build commit record", "commit_hash", shortHash(info.Hash), "error", err)
			continue
		}

		res, err := s.commits.Ingest(ctx, commit, DefaultPolicy)
		if err != nil {
			result.Failures++
			slog.Error("failed to sync commit", "commit_hash", shortHash(info.Hash), "error", err)
			continue
		}
		if res.Duplicate {
			result.CommitsSkipped++
			continue
		}
		result.CommitsSynced++
		slog.Info("synced commit", "commit_hash", shortHash(info.Hash), "commit_id", res.ID)
	}

	now := time.Now().UTC()
	s.mu.Lock()
	s.totalSynced += result.CommitsSynced
	s.lastSyncAt = &now
	s.mu.Unlock()
	return result, nil
}

// buildCommit assembles a full commit record from the gateway: metadata,
// aggregate stats, and the parsed per-file diff.
func (s *SyncService) buildCommit(ctx context.Context, repoName string, info domain.CommitInfo) (*domain.Commit, error) {
	stats, err := s.vcs.CommitStats(ctx, info.Hash)
	if err != nil {
		return nil, fmt.Errorf("commit stats: %w", err)
	}
	diff, err := s.vcs.CommitDiff(ctx, info.Hash)
	if err != nil {
		return nil, fmt.Errorf("commit diff: %w", err)
	}

	commit := &domain.Commit{
		CommitHash:     info.Hash,
		RepositoryName: repoName,
		AuthorName:     info.AuthorName,
		AuthorEmail:    info.AuthorEmail,
		CommitMessage:  info.Message,
		CommitDate:     info.CommitDate,
		SourceType:     domain.SourceSync,
		FilesChanged:   stats.FilesChanged,
		LinesAdded:     stats.LinesAdded,
		LinesDeleted:   stats.LinesDeleted,
		ParentCommits:  info.ParentHashes,
		DiffContent:    diff.DiffContent,
		FileDiffs:      diff.FileDiffs,
	}

	if branch := s.vcs.CurrentBranch(ctx); branch != "" && branch != "unknown" {
		commit.BranchName = &branch
	}

	// A commit that changed files but produced no diff means the gateway
	// degraded; mark it failed so it is visible for re-ingestion.
	if len(stats.FilesChanged) > 0 && diff.DiffContent == "" {
		commit.Status = domain.StatusFailed
	}
	return commit, nil
}

func (s *SyncService) repositoryName(ctx context.Context) string {
	s.mu.Lock()
	name := s.repoName
	s.mu.Unlock()
	if name != "" {
		return name
	}

	name = s.vcs.RepositoryName(ctx)
	s.mu.Lock()
	s.repoName = name
	s.mu.Unlock()
	return name
}
