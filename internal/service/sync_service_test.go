package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/arturoeanton/commit-tracker/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeVCS is an in-memory port.VCSProvider serving canned commits.
type fakeVCS struct {
	commits  []domain.CommitInfo // newest first
	branch   string
	repoName string

	logErr  error // injected RecentCommits failure
	statErr map[string]error
}

func (f *fakeVCS) CurrentBranch(_ context.Context) string {
	if f.branch == "" {
		return "unknown"
	}
	return f.branch
}

func (f *fakeVCS) RepositoryName(_ context.Context) string {
	if f.repoName == "" {
		return "local-repo"
	}
	return f.repoName
}

func (f *fakeVCS) RecentCommits(_ context.Context, count int) ([]domain.CommitInfo, error) {
	if f.logErr != nil {
		return nil, f.logErr
	}
	if count > len(f.commits) {
		count = len(f.commits)
	}
	return f.commits[:count], nil
}

func (f *fakeVCS) CommitInfo(_ context.Context, hash string) (*domain.CommitInfo, error) {
	for _, c := range f.commits {
		if c.Hash == hash {
			result := c
			return &result, nil
		}
	}
	return nil, nil
}

func (f *fakeVCS) CommitStats(_ context.Context, hash string) (domain.CommitStats, error) {
	if err := f.statErr[hash]; err != nil {
		return domain.CommitStats{}, err
	}
	return domain.CommitStats{FilesChanged: []string{"app.py"}, LinesAdded: 3, LinesDeleted: 1}, nil
}

func (f *fakeVCS) CommitDiff(_ context.Context, hash string) (domain.CommitDiff, error) {
	return domain.CommitDiff{
		DiffContent: "+added\n-removed",
		FileDiffs: map[string]domain.FileDiff{
			"app.py": {Status: "modified", DiffContent: "+added\n-removed", SecurityRisk: domain.RiskLow},
		},
	}, nil
}

func (f *fakeVCS) UncommittedChanges(_ context.Context) (domain.WorkingTreeStatus, error) {
	return domain.WorkingTreeStatus{}, nil
}

func fakeCommitInfo(n int) domain.CommitInfo {
	return domain.CommitInfo{
		Hash:        fmt.Sprintf("%040d", n),
		AuthorName:  "Alice",
		AuthorEmail: "alice@example.com",
		CommitDate:  time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC).Add(time.Duration(n) * time.Minute),
		Message:     fmt.Sprintf("change number %d", n),
	}
}

func newTestSync(vcs *fakeVCS, store *fakeStore) *SyncService {
	commits := NewCommitService(store)
	return NewSyncService(commits, store, vcs, "", time.Minute, 10)
}

func TestManualSync_IngestsNewCommits(t *testing.T) {
	vcs := &fakeVCS{
		commits: []domain.CommitInfo{fakeCommitInfo(2), fakeCommitInfo(1)},
		branch:  "main",
	}
	store := newFakeStore()
	sync := newTestSync(vcs, store)

	result, err := sync.ManualSync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.CommitsSynced)
	assert.Equal(t, 0, result.CommitsSkipped)
	assert.Equal(t, 0, result.Failures)
	assert.Equal(t, 2, store.count())

	stored, err := store.GetCommitMetadataByHash(context.Background(), fakeCommitInfo(1).Hash)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceSync, stored.SourceType)
	assert.Equal(t, "local-repo", stored.RepositoryName)
	require.NotNil(t, stored.BranchName)
	assert.Equal(t, "main", *stored.BranchName)
	assert.Equal(t, 3, stored.LinesAdded)
	assert.Equal(t, 1, stored.LinesDeleted)
}

func TestManualSync_SkipsStoredCommits(t *testing.T) {
	vcs := &fakeVCS{commits: []domain.CommitInfo{fakeCommitInfo(2), fakeCommitInfo(1)}}
	store := newFakeStore()
	sync := newTestSync(vcs, store)
	ctx := context.Background()

	first, err := sync.ManualSync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, first.CommitsSynced)

	second, err := sync.ManualSync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, second.CommitsSynced)
	assert.Equal(t, 2, second.CommitsSkipped)
	assert.Equal(t, 2, store.count())
}

func TestManualSync_IsolatesFailures(t *testing.T) {
	bad := fakeCommitInfo(2)
	vcs := &fakeVCS{
		commits: []domain.CommitInfo{bad, fakeCommitInfo(1)},
		statErr: map[string]error{bad.Hash: errors.New("stat blew up")},
	}
	store := newFakeStore()
	sync := newTestSync(vcs, store)

	result, err := sync.ManualSync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.CommitsSynced)
	assert.Equal(t, 1, result.Failures)
	assert.Equal(t, 1, store.count())
}

func TestManualSync_EmptyRepository(t *testing.T) {
	vcs := &fakeVCS{}
	store := newFakeStore()
	sync := newTestSync(vcs, store)

	result, err := sync.ManualSync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.CommitsSynced)
	assert.Equal(t, 0, store.count())
}

func TestManualSync_LogFailure(t *testing.T) {
	vcs := &fakeVCS{logErr: errors.New("git exploded")}
	store := newFakeStore()
	sync := newTestSync(vcs, store)

	_, err := sync.ManualSync(context.Background())
	require.Error(t, err)

	status := sync.Status()
	assert.Equal(t, 1, status.ErrorCount)
}

func TestSyncService_UnknownBranchOmitted(t *testing.T) {
	vcs := &fakeVCS{commits: []domain.CommitInfo{fakeCommitInfo(1)}} // branch "unknown"
	store := newFakeStore()
	sync := newTestSync(vcs, store)

	_, err := sync.ManualSync(context.Background())
	require.NoError(t, err)

	stored, err := store.GetCommitMetadataByHash(context.Background(), fakeCommitInfo(1).Hash)
	require.NoError(t, err)
	assert.Nil(t, stored.BranchName)
}

func TestSyncService_StartStop(t *testing.T) {
	vcs := &fakeVCS{commits: []domain.CommitInfo{fakeCommitInfo(1)}, branch: "main"}
	store := newFakeStore()
	sync := newTestSync(vcs, store)

	assert.False(t, sync.Status().Running)

	sync.Start()
	assert.True(t, sync.Status().Running)

	// Second Start must not spawn a second loop.
	sync.Start()
	assert.True(t, sync.Status().Running)

	sync.Stop()
	assert.False(t, sync.Status().Running)

	// Stopping an already stopped service is a no-op.
	sync.Stop()

	// The loop's initial pass had time to ingest the commit.
	assert.Equal(t, 1, store.count())
}

func TestSyncService_ConcurrentStops(t *testing.T) {
	vcs := &fakeVCS{commits: []domain.CommitInfo{fakeCommitInfo(1)}, branch: "main"}
	store := newFakeStore()
	svc := newTestSync(vcs, store)

	for i := 0; i < 100; i++ {
		svc.Start()

		const stoppers = 8
		var wg sync.WaitGroup
		barrier := make(chan struct{})
		wg.Add(stoppers)
		for j := 0; j < stoppers; j++ {
			go func() {
				defer wg.Done()
				<-barrier
				svc.Stop()
			}()
		}
		close(barrier)
		wg.Wait()

		assert.False(t, svc.Status().Running)
	}
}

func TestSyncService_StatusSnapshot(t *testing.T) {
	vcs := &fakeVCS{commits: []domain.CommitInfo{fakeCommitInfo(1)}, repoName: "acme/api"}
	store := newFakeStore()
	sync := newTestSync(vcs, store)

	status := sync.Status()
	assert.False(t, status.Running)
	assert.Equal(t, 0, status.TotalSynced)
	assert.Nil(t, status.LastSyncAt)

	_, err := sync.ManualSync(context.Background())
	require.NoError(t, err)

	status = sync.Status()
	assert.Equal(t, 1, status.TotalSynced)
	assert.NotNil(t, status.LastSyncAt)
	assert.Equal(t, "acme/api", status.RepositoryName)
}
