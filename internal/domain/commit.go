package domain

import "time"

// CommitSource identifies which ingestion path produced a commit record.
type CommitSource string

const (
	SourceWebhook CommitSource = "webhook"
	SourceLocal   CommitSource = "local"
	SourceSync    CommitSource = "sync"
)

// CommitStatus tracks the processing lifecycle of a commit record.
type CommitStatus string

const (
	StatusPending   CommitStatus = "pending"
	StatusProcessed CommitStatus = "processed"
	StatusFailed    CommitStatus = "failed"
)

// Risk levels assigned to changed files by the diff parser.
const (
	RiskLow  = "low"
	RiskHigh = "high"
)

// FileDiff is the structured per-file change model produced by the diff
// parser. Additions/Deletions hold the raw classified lines; Modifications
// holds the hunk headers.
type FileDiff struct {
	Status          string   `json:"status"`
	Additions       []string `json:"additions"`
	Deletions       []string `json:"deletions"`
	Modifications   []string `json:"modifications"`
	DiffContent     string   `json:"diff_content"`
	SizeBefore      *int     `json:"size_before"`
	SizeAfter       *int     `json:"size_after"`
	ComplexityScore int      `json:"complexity_score"`
	SecurityRisk    string   `json:"security_risk_level"`
}

// Commit is one tracked VCS commit with its diff payload.
type Commit struct {
	ID             string              `json:"id"              db:"id"`
	CommitHash     string              `json:"commit_hash"     db:"commit_hash"`
	RepositoryName string              `json:"repository_name" db:"repository_name"`
	AuthorName     string              `json:"author_name"     db:"author_name"`
	AuthorEmail    string              `json:"author_email"    db:"author_email"`
	CommitMessage  string              `json:"commit_message"  db:"commit_message"`
	CommitDate     time.Time           `json:"commit_date"     db:"commit_date"`
	SourceType     CommitSource        `json:"source_type"     db:"source_type"`
	BranchName     *string             `json:"branch_name"     db:"branch_name"`
	FilesChanged   []string            `json:"files_changed"   db:"files_changed"`
	LinesAdded     int                 `json:"lines_added"     db:"lines_added"`
	LinesDeleted   int                 `json:"lines_deleted"   db:"lines_deleted"`
	ParentCommits  []string            `json:"parent_commits"  db:"parent_commits"`
	Status         CommitStatus        `json:"status"          db:"status"`
	Metadata       map[string]any      `json:"metadata"        db:"commit_metadata"`
	DiffContent    string              `json:"diff_content,omitempty" db:"diff_content"`
	FileDiffs      map[string]FileDiff `json:"file_diffs,omitempty"   db:"file_diffs"`
	DiffHash       string              `json:"diff_hash"       db:"diff_hash"`
	CreatedAt      time.Time           `json:"created_at"      db:"created_at"`
	ProcessedAt    *time.Time          `json:"processed_at"    db:"processed_at"`
	UpdatedAt      time.Time           `json:"updated_at"      db:"updated_at"`
}

// CommitFile is one changed file within a commit. Rows are created in the
// same transaction as their parent commit and cascade-deleted with it.
type CommitFile struct {
	ID              string    `json:"id"                db:"id"`
	CommitID        string    `json:"commit_id"         db:"commit_id"`
	Filename        string    `json:"filename"          db:"filename"`
	FilePath        string    `json:"file_path"         db:"file_path"`
	FileExtension   string    `json:"file_extension"    db:"file_extension"`
	Status          string    `json:"status"            db:"status"`
	Additions       int       `json:"additions"         db:"additions"`
	Deletions       int       `json:"deletions"         db:"deletions"`
	DiffContent     string    `json:"diff_content,omitempty" db:"diff_content"`
	FileSizeBefore  *int      `json:"file_size_before"  db:"file_size_before"`
	FileSizeAfter   *int      `json:"file_size_after"   db:"file_size_after"`
	Language        string    `json:"language"          db:"language"`
	ComplexityScore int       `json:"complexity_score"  db:"complexity_score"`
	SecurityRisk    string    `json:"security_risk_level" db:"security_risk_level"`
	CreatedAt       time.Time `json:"created_at"        db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"        db:"updated_at"`
}

// FileAnalysis is a CommitFile joined back to its parent commit for context.
type FileAnalysis struct {
	CommitFile
	CommitHash    string `json:"commit_hash"`
	CommitMessage string `json:"commit_message"`
	AuthorName    string `json:"author_name"`
}

// CommitListItem is the light row shape used by list views; it deliberately
// excludes the diff text and JSON blob columns.
type CommitListItem struct {
	ID             string       `json:"id"`
	CommitHash     string       `json:"commit_hash"`
	RepositoryName string       `json:"repository_name"`
	AuthorName     string       `json:"author_name"`
	CommitMessage  string       `json:"commit_message"`
	CommitDate     time.Time    `json:"commit_date"`
	LinesAdded     int          `json:"lines_added"`
	LinesDeleted   int          `json:"lines_deleted"`
	Status         CommitStatus `json:"status"`
}

// CommitPage is one page of commit list results.
type CommitPage struct {
	Commits []CommitListItem `json:"commits"`
	Page    int              `json:"page"`
	Limit   int              `json:"limit"`
	Total   int              `json:"total"`
}

// SearchResult is a full-text search hit with its ts_rank score.
type SearchResult struct {
	ID            string    `json:"id"`
	CommitHash    string    `json:"commit_hash"`
	AuthorName    string    `json:"author_name"`
	CommitMessage string    `json:"commit_message"`
	LinesAdded    int       `json:"lines_added"`
	LinesDeleted  int       `json:"lines_deleted"`
	CreatedAt     time.Time `json:"created_at"`
	Rank          float64   `json:"rank"`
}

// CommitSummary is the aggregated per-commit rollup read from the
// commit_summary view.
type CommitSummary struct {
	ID                string       `json:"id"`
	CommitHash        string       `json:"commit_hash"`
	RepositoryName    string       `json:"repository_name"`
	AuthorName        string       `json:"author_name"`
	CommitMessage     string       `json:"commit_message"`
	CommitDate        time.Time    `json:"commit_date"`
	SourceType        CommitSource `json:"source_type"`
	BranchName        *string      `json:"branch_name"`
	Status            CommitStatus `json:"status"`
	TotalFilesChanged int          `json:"total_files_changed"`
	TotalAdditions    int          `json:"total_additions"`
	TotalDeletions    int          `json:"total_deletions"`
	FilesAdded        int          `json:"files_added"`
	FilesModified     int          `json:"files_modified"`
	FilesDeleted      int          `json:"files_deleted"`
	HighRiskFiles     int          `json:"high_risk_files"`
	CreatedAt         time.Time    `json:"created_at"`
}

// DailyStat is one row of the commit_statistics materialized view.
type DailyStat struct {
	Date              time.Time `json:"date"`
	TotalCommits      int       `json:"total_commits"`
	UniqueAuthors     int       `json:"unique_authors"`
	TotalLinesAdded   int       `json:"total_lines_added"`
	TotalLinesDeleted int       `json:"total_lines_deleted"`
	AvgCommitSize     float64   `json:"avg_commit_size"`
}
