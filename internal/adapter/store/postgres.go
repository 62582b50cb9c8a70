package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/arturoeanton/commit-tracker/internal/domain"
	"github.com/arturoeanton/commit-tracker/internal/port"
)

// PostgresStore handles all relational database operations. It is the only
// component that issues SQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection pool and returns a store instance.
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// metadataColumns is the light read shape: no diff text, no file-diff blob.
const metadataColumns = `id, commit_hash, repository_name, author_name, author_email,
	commit_message, commit_date, source_type, branch_name, files_changed,
	lines_added, lines_deleted, parent_commits, status, commit_metadata,
	diff_hash, created_at, processed_at, updated_at`

// detailColumns adds the large columns for detail views.
const detailColumns = metadataColumns + `, diff_content, file_diffs`

// StoreCommitWithDiff inserts one commit row and its per-file child rows in
// a single transaction. The commit row is inserted first to obtain the
// generated id for the foreign key; any file-row failure rolls back the
// whole commit. A conflict on (repository_name, commit_hash) returns
// port.ErrDuplicateCommit.
func (s *PostgresStore) StoreCommitWithDiff(ctx context.Context, commit *domain.Commit) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO commits (commit_hash, repository_name, author_name, author_email,
			commit_message, commit_date, source_type, branch_name, files_changed,
			lines_added, lines_deleted, parent_commits, status, commit_metadata,
			diff_content, file_diffs, diff_hash, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT ON CONSTRAINT uq_commits_repo_hash DO NOTHING
		RETURNING id`

	status := commit.Status
	if status == "" {
		status = domain.StatusPending
	}

	var commitID string
	err = tx.QueryRowContext(ctx, query,
		commit.CommitHash, commit.RepositoryName, commit.AuthorName, commit.AuthorEmail,
		commit.CommitMessage, commit.CommitDate, commit.SourceType, commit.BranchName,
		mustJSON(commit.FilesChanged), commit.LinesAdded, commit.LinesDeleted,
		mustJSON(commit.ParentCommits), status, mustJSON(commit.Metadata),
		commit.DiffContent, mustJSON(commit.FileDiffs), commit.DiffHash, commit.ProcessedAt,
	).Scan(&commitID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", port.ErrDuplicateCommit
		}
		return "", fmt.Errorf("insert commit: %w", err)
	}

	fileQuery := `
		INSERT INTO commit_files (commit_id, filename, file_path, file_extension,
			status, additions, deletions, diff_content, file_size_before,
			file_size_after, language, complexity_score, security_risk_level)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	for filename, fd := range commit.FileDiffs {
		extension := domain.FileExtension(filename)
		_, err := tx.ExecContext(ctx, fileQuery,
			commitID, filename, filename, extension,
			fd.Status, len(fd.Additions), len(fd.Deletions), fd.DiffContent,
			fd.SizeBefore, fd.SizeAfter, domain.DetectLanguage(extension),
			fd.ComplexityScore, fd.SecurityRisk,
		)
		if err != nil {
			return "", fmt.Errorf("insert commit file %s: %w", filename, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit transaction: %w", err)
	}
	return commitID, nil
}

// GetCommitMetadata returns a commit by id without its diff payload.
func (s *PostgresStore) GetCommitMetadata(ctx context.Context, id string) (*domain.Commit, error) {
	query := `SELECT ` + metadataColumns + ` FROM commits WHERE id = $1`
	return s.scanCommit(s.db.QueryRowContext(ctx, query, id), false)
}

// GetCommitMetadataByHash returns a commit by its VCS hash without the diff
// payload. This is the existence check ingestion callers use.
func (s *PostgresStore) GetCommitMetadataByHash(ctx context.Context, hash string) (*domain.Commit, error) {
	query := `SELECT ` + metadataColumns + ` FROM commits WHERE commit_hash = $1`
	return s.scanCommit(s.db.QueryRowContext(ctx, query, hash), false)
}

// GetCommitWithDiff returns the full commit record including diff content.
func (s *PostgresStore) GetCommitWithDiff(ctx context.Context, id string) (*domain.Commit, error) {
	query := `SELECT ` + detailColumns + ` FROM commits WHERE id = $1`
	return s.scanCommit(s.db.QueryRowContext(ctx, query, id), true)
}

// GetCommitWithDiffByHash is GetCommitWithDiff keyed by commit hash.
func (s *PostgresStore) GetCommitWithDiffByHash(ctx context.Context, hash string) (*domain.Commit, error) {
	query := `SELECT ` + detailColumns + ` FROM commits WHERE commit_hash = $1`
	return s.scanCommit(s.db.QueryRowContext(ctx, query, hash), true)
}

func (s *PostgresStore) scanCommit(row *sql.Row, withDiff bool) (*domain.Commit, error) {
	var (
		c             domain.Commit
		branchName    sql.NullString
		linesAdded    sql.NullInt64
		linesDeleted  sql.NullInt64
		diffHash      sql.NullString
		processedAt   sql.NullTime
		filesChanged  []byte
		parentCommits []byte
		metadata      []byte
		diffContent   sql.NullString
		fileDiffs     []byte
	)

	dest := []any{
		&c.ID, &c.CommitHash, &c.RepositoryName, &c.AuthorName, &c.AuthorEmail,
		&c.CommitMessage, &c.CommitDate, &c.SourceType, &branchName, &filesChanged,
		&linesAdded, &linesDeleted, &parentCommits, &c.Status, &metadata,
		&diffHash, &c.CreatedAt, &processedAt, &c.UpdatedAt,
	}
	if withDiff {
		dest = append(dest, &diffContent, &fileDiffs)
	}

	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, port.ErrCommitNotFound
		}
		return nil, fmt.Errorf("scan commit: %w", err)
	}

	if branchName.Valid {
		c.BranchName = &branchName.String
	}
	c.LinesAdded = int(linesAdded.Int64)
	c.LinesDeleted = int(linesDeleted.Int64)
	c.DiffHash = diffHash.String
	if processedAt.Valid {
		t := processedAt.Time
		c.ProcessedAt = &t
	}
	unmarshalJSON(filesChanged, &c.FilesChanged)
	unmarshalJSON(parentCommits, &c.ParentCommits)
	unmarshalJSON(metadata, &c.Metadata)
	if withDiff {
		c.DiffContent = diffContent.String
		unmarshalJSON(fileDiffs, &c.FileDiffs)
	}
	return &c, nil
}

// ListCommits returns one page of commits, newest created first, with
// optional repository/author/status filters. The author filter is a
// case-insensitive substring match.
func (s *PostgresStore) ListCommits(ctx context.Context, opts port.ListOptions) (*domain.CommitPage, error) {
	query, args := buildListQuery(opts)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list commits: %w", err)
	}
	defer rows.Close()

	commits := []domain.CommitListItem{}
	for rows.Next() {
		var (
			item         domain.CommitListItem
			linesAdded   sql.NullInt64
			linesDeleted sql.NullInt64
		)
		if err := rows.Scan(
			&item.ID, &item.CommitHash, &item.RepositoryName, &item.AuthorName,
			&item.CommitMessage, &item.CommitDate, &linesAdded, &linesDeleted, &item.Status,
		); err != nil {
			return nil, fmt.Errorf("scan commit row: %w", err)
		}
		item.LinesAdded = int(linesAdded.Int64)
		item.LinesDeleted = int(linesDeleted.Int64)
		commits = append(commits, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list commits: %w", err)
	}

	return &domain.CommitPage{
		Commits: commits,
		Page:    opts.Page,
		Limit:   opts.Limit,
		Total:   len(commits),
	}, nil
}

// buildListQuery assembles the filtered, paginated list query.
// offset = (page-1) * limit.
func buildListQuery(opts port.ListOptions) (string, []any) {
	query := `SELECT id, commit_hash, repository_name, author_name,
		commit_message, commit_date, lines_added, lines_deleted, status
		FROM commits WHERE 1=1`
	args := []any{}
	argIdx := 1

	if opts.Repository != "" {
		query += fmt.Sprintf(" AND repository_name = $%d", argIdx)
		args = append(args, opts.Repository)
		argIdx++
	}
	if opts.Author != "" {
		query += fmt.Sprintf(" AND author_name ILIKE $%d", argIdx)
		args = append(args, "%"+opts.Author+"%")
		argIdx++
	}
	if opts.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, opts.Status)
		argIdx++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, opts.Limit, (opts.Page-1)*opts.Limit)
	return query, args
}

// SearchCommits runs PostgreSQL full-text search over the precomputed
// search vector, ordered by rank then recency.
func (s *PostgresStore) SearchCommits(ctx context.Context, term string, limit int) ([]domain.SearchResult, error) {
	query := `
		SELECT id, commit_hash, author_name, commit_message,
		       COALESCE(lines_added, 0), COALESCE(lines_deleted, 0), created_at,
		       ts_rank(search_vector, plainto_tsquery('english', $1)) AS rank
		FROM commits
		WHERE search_vector @@ plainto_tsquery('english', $1)
		ORDER BY rank DESC, created_at DESC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, term, limit)
	if err != nil {
		return nil, fmt.Errorf("search commits: %w", err)
	}
	defer rows.Close()

	results := []domain.SearchResult{}
	for rows.Next() {
		var r domain.SearchResult
		if err := rows.Scan(
			&r.ID, &r.CommitHash, &r.AuthorName, &r.CommitMessage,
			&r.LinesAdded, &r.LinesDeleted, &r.CreatedAt, &r.Rank,
		); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// GetCommitFiles returns the per-file change rows of a commit ordered by
// filename.
func (s *PostgresStore) GetCommitFiles(ctx context.Context, commitID string) ([]domain.CommitFile, error) {
	query := `
		SELECT id, commit_id, filename, COALESCE(file_path, ''), COALESCE(file_extension, ''),
		       status, COALESCE(additions, 0), COALESCE(deletions, 0), COALESCE(diff_content, ''),
		       file_size_before, file_size_after, COALESCE(language, ''),
		       COALESCE(complexity_score, 0), COALESCE(security_risk_level, 'low'),
		       created_at, updated_at
		FROM commit_files WHERE commit_id = $1 ORDER BY filename`

	rows, err := s.db.QueryContext(ctx, query, commitID)
	if err != nil {
		return nil, fmt.Errorf("get commit files: %w", err)
	}
	defer rows.Close()

	files := []domain.CommitFile{}
	for rows.Next() {
		f, err := scanCommitFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, *f)
	}
	return files, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCommitFile(row rowScanner) (*domain.CommitFile, error) {
	var (
		f          domain.CommitFile
		sizeBefore sql.NullInt64
		sizeAfter  sql.NullInt64
	)
	if err := row.Scan(
		&f.ID, &f.CommitID, &f.Filename, &f.FilePath, &f.FileExtension,
		&f.Status, &f.Additions, &f.Deletions, &f.DiffContent,
		&sizeBefore, &sizeAfter, &f.Language,
		&f.ComplexityScore, &f.SecurityRisk, &f.CreatedAt, &f.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("scan commit file: %w", err)
	}
	if sizeBefore.Valid {
		n := int(sizeBefore.Int64)
		f.FileSizeBefore = &n
	}
	if sizeAfter.Valid {
		n := int(sizeAfter.Int64)
		f.FileSizeAfter = &n
	}
	return &f, nil
}

// GetFileAnalysis returns one file change joined back to its parent commit
// for context.
func (s *PostgresStore) GetFileAnalysis(ctx context.Context, fileID string) (*domain.FileAnalysis, error) {
	query := `
		SELECT cf.id, cf.commit_id, cf.filename, COALESCE(cf.file_path, ''),
		       COALESCE(cf.file_extension, ''), cf.status, COALESCE(cf.additions, 0),
		       COALESCE(cf.deletions, 0), COALESCE(cf.diff_content, ''),
		       cf.file_size_before, cf.file_size_after, COALESCE(cf.language, ''),
		       COALESCE(cf.complexity_score, 0), COALESCE(cf.security_risk_level, 'low'),
		       cf.created_at, cf.updated_at,
		       c.commit_hash, c.commit_message, c.author_name
		FROM commit_files cf
		JOIN commits c ON c.id = cf.commit_id
		WHERE cf.id = $1`

	var (
		fa         domain.FileAnalysis
		sizeBefore sql.NullInt64
		sizeAfter  sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, query, fileID).Scan(
		&fa.ID, &fa.CommitID, &fa.Filename, &fa.FilePath, &fa.FileExtension,
		&fa.Status, &fa.Additions, &fa.Deletions, &fa.DiffContent,
		&sizeBefore, &sizeAfter, &fa.Language,
		&fa.ComplexityScore, &fa.SecurityRisk, &fa.CreatedAt, &fa.UpdatedAt,
		&fa.CommitHash, &fa.CommitMessage, &fa.AuthorName,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, port.ErrFileNotFound
		}
		return nil, fmt.Errorf("get file analysis: %w", err)
	}
	if sizeBefore.Valid {
		n := int(sizeBefore.Int64)
		fa.FileSizeBefore = &n
	}
	if sizeAfter.Valid {
		n := int(sizeAfter.Int64)
		fa.FileSizeAfter = &n
	}
	return &fa, nil
}

// GetCommitSummary reads the aggregated rollup from the commit_summary view.
func (s *PostgresStore) GetCommitSummary(ctx context.Context, commitID string) (*domain.CommitSummary, error) {
	query := `
		SELECT id, commit_hash, repository_name, author_name, commit_message,
		       commit_date, source_type, branch_name, status,
		       total_files_changed, total_additions, total_deletions,
		       files_added, files_modified, files_deleted, high_risk_files,
		       created_at
		FROM commit_summary WHERE id = $1`

	var (
		cs         domain.CommitSummary
		branchName sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, commitID).Scan(
		&cs.ID, &cs.CommitHash, &cs.RepositoryName, &cs.AuthorName, &cs.CommitMessage,
		&cs.CommitDate, &cs.SourceType, &branchName, &cs.Status,
		&cs.TotalFilesChanged, &cs.TotalAdditions, &cs.TotalDeletions,
		&cs.FilesAdded, &cs.FilesModified, &cs.FilesDeleted, &cs.HighRiskFiles,
		&cs.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, port.ErrCommitNotFound
		}
		return nil, fmt.Errorf("get commit summary: %w", err)
	}
	if branchName.Valid {
		cs.BranchName = &branchName.String
	}
	return &cs, nil
}

// GetDailyStatistics reads the commit_statistics materialized view, newest
// day first.
func (s *PostgresStore) GetDailyStatistics(ctx context.Context, limit int) ([]domain.DailyStat, error) {
	query := `
		SELECT date, total_commits, unique_authors, total_lines_added,
		       total_lines_deleted, avg_commit_size
		FROM commit_statistics ORDER BY date DESC LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("get daily statistics: %w", err)
	}
	defer rows.Close()

	stats := []domain.DailyStat{}
	for rows.Next() {
		var st domain.DailyStat
		if err := rows.Scan(
			&st.Date, &st.TotalCommits, &st.UniqueAuthors,
			&st.TotalLinesAdded, &st.TotalLinesDeleted, &st.AvgCommitSize,
		); err != nil {
			return nil, fmt.Errorf("scan daily stat: %w", err)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// RefreshStatistics recomputes the commit_statistics materialized view.
func (s *PostgresStore) RefreshStatistics(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `REFRESH MATERIALIZED VIEW commit_statistics`); err != nil {
		return fmt.Errorf("refresh statistics: %w", err)
	}
	return nil
}

// DeleteCommit removes a commit row; commit_files rows go with it via
// cascade.
func (s *PostgresStore) DeleteCommit(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM commits WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete commit: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return port.ErrCommitNotFound
	}
	return nil
}

// HealthCheck issues a trivial round-trip query. It only ever reports
// true or false.
func (s *PostgresStore) HealthCheck(ctx context.Context) bool {
	var one int
	if err := s.db.QueryRowContext(ctx, `SELECT 1`).Scan(&one); err != nil {
		slog.Error("database health check failed", "error", err)
		return false
	}
	return true
}

// WriteAudit implements middleware.AuditWriter.
func (s *PostgresStore) WriteAudit(requestID, action, resource, details, ip, userAgent string) error {
	query := `INSERT INTO audit_logs (request_id, action, resource, details, ip, user_agent)
	          VALUES ($1, $2, $3, $4::jsonb, $5, $6)`
	_, err := s.db.ExecContext(context.Background(), query,
		requestID, action, resource, details, ip, userAgent,
	)
	return err
}

// ListAuditLogs returns recent audit logs with an optional action filter.
func (s *PostgresStore) ListAuditLogs(ctx context.Context, limit int, action string) ([]domain.AuditLog, error) {
	query := `SELECT id, request_id, action, resource, COALESCE(details::text, '{}'), ip, user_agent, created_at
	          FROM audit_logs`
	args := []any{}
	argIdx := 1

	if action != "" {
		query += fmt.Sprintf(" WHERE action = $%d", argIdx)
		args = append(args, action)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	logs := []domain.AuditLog{}
	for rows.Next() {
		var l domain.AuditLog
		if err := rows.Scan(
			&l.ID, &l.RequestID, &l.Action, &l.Resource,
			&l.Details, &l.IP, &l.UserAgent, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// mustJSON marshals v for a JSONB column; nil collections become SQL NULL.
func mustJSON(v any) any {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to marshal JSON column", "error", err)
		return nil
	}
	return data
}

func unmarshalJSON(data []byte, dest any) {
	if len(data) == 0 {
		return
	}
	if err := json.Unmarshal(data, dest); err != nil {
		slog.Warn("failed to unmarshal JSON column", "error", err)
	}
}
