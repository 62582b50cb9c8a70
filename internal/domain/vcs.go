package domain

import "time"

// CommitInfo is a lightweight representation of a git commit as read from
// the repository log, before any persistence.
type CommitInfo struct {
	Hash         string    `json:"hash"`
	AuthorName   string    `json:"author_name"`
	AuthorEmail  string    `json:"author_email"`
	CommitDate   time.Time `json:"commit_date"`
	Message      string    `json:"message"`
	ParentHashes []string  `json:"parent_hashes"`
}

// CommitStats holds the aggregate change counts for one commit.
type CommitStats struct {
	FilesChanged []string `json:"files_changed"`
	LinesAdded   int      `json:"lines_added"`
	LinesDeleted int      `json:"lines_deleted"`
}

// CommitDiff is the raw unified diff of a commit plus its per-file
// structured breakdown.
type CommitDiff struct {
	DiffContent string              `json:"diff_content"`
	FileDiffs   map[string]FileDiff `json:"file_diffs"`
}

// WorkingTreeStatus describes uncommitted changes in the working tree.
type WorkingTreeStatus struct {
	HasChanges    bool     `json:"has_changes"`
	ModifiedFiles []string `json:"modified_files"`
	AddedFiles    []string `json:"added_files"`
	DeletedFiles  []string `json:"deleted_files"`
}
