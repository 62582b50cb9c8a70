package port

import "errors"

// Sentinel errors used across ports.
var (
	// ErrNotARepository is raised when a VCS operation targets a path that
	// is not a git repository. This is a configuration error; callers
	// decide whether to degrade or fail.
	ErrNotARepository = errors.New("not a git repository")

	// ErrGitNotInstalled is raised when the git executable is missing from
	// PATH.
	ErrGitNotInstalled = errors.New("git is not installed on this system")

	// ErrDuplicateCommit signals that a commit with the same
	// (repository_name, commit_hash) already exists. Ingestion callers
	// treat it as a no-op success.
	ErrDuplicateCommit = errors.New("commit already exists")

	ErrCommitNotFound = errors.New("commit not found")
	ErrFileNotFound   = errors.New("commit file not found")
)
