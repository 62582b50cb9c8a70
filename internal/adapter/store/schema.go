package store

import (
	"context"
	"fmt"
	"log/slog"
)

// schemaStatements create the relational schema. Every statement is
// idempotent, so EnsureSchema is safe against an already-initialized
// database.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS commits (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		commit_hash VARCHAR(40) NOT NULL,
		repository_name VARCHAR(255) NOT NULL,
		author_name VARCHAR(255) NOT NULL,
		author_email VARCHAR(255) NOT NULL,
		commit_message TEXT NOT NULL,
		commit_date TIMESTAMPTZ NOT NULL,
		source_type VARCHAR(20) NOT NULL CHECK (source_type IN ('webhook', 'local', 'sync')),
		branch_name VARCHAR(255),
		files_changed JSONB,
		lines_added INTEGER,
		lines_deleted INTEGER,
		parent_commits JSONB,
		status VARCHAR(20) NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'processed', 'failed')),
		commit_metadata JSONB,
		diff_content TEXT,
		file_diffs JSONB,
		diff_hash VARCHAR(64),
		search_vector tsvector GENERATED ALWAYS AS (
			setweight(to_tsvector('english', coalesce(commit_message, '')), 'A') ||
			setweight(to_tsvector('english', coalesce(author_name, '')), 'B') ||
			setweight(to_tsvector('english', coalesce(repository_name, '')), 'C')
		) STORED,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		processed_at TIMESTAMPTZ,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT uq_commits_repo_hash UNIQUE (repository_name, commit_hash)
	)`,

	`CREATE INDEX IF NOT EXISTS ix_commits_commit_hash ON commits (commit_hash)`,
	`CREATE INDEX IF NOT EXISTS ix_commits_repository_name ON commits (repository_name)`,
	`CREATE INDEX IF NOT EXISTS ix_commits_author_name ON commits (author_name)`,
	`CREATE INDEX IF NOT EXISTS ix_commits_commit_date ON commits (commit_date)`,
	`CREATE INDEX IF NOT EXISTS ix_commits_source_type ON commits (source_type)`,
	`CREATE INDEX IF NOT EXISTS ix_commits_branch_name ON commits (branch_name)`,
	`CREATE INDEX IF NOT EXISTS ix_commits_status ON commits (status)`,
	`CREATE INDEX IF NOT EXISTS ix_commits_diff_hash ON commits (diff_hash)`,
	`CREATE INDEX IF NOT EXISTS ix_commits_created_at ON commits (created_at)`,
	`CREATE INDEX IF NOT EXISTS ix_commits_search_vector ON commits USING GIN (search_vector)`,

	`CREATE TABLE IF NOT EXISTS commit_files (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		commit_id UUID NOT NULL REFERENCES commits(id) ON DELETE CASCADE,
		filename VARCHAR(500) NOT NULL,
		file_path VARCHAR(1000),
		file_extension VARCHAR(20),
		status VARCHAR(20) NOT NULL,
		additions INTEGER DEFAULT 0,
		deletions INTEGER DEFAULT 0,
		diff_content TEXT,
		file_size_before INTEGER,
		file_size_after INTEGER,
		language VARCHAR(50),
		complexity_score INTEGER,
		security_risk_level VARCHAR(20) DEFAULT 'low',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS ix_commit_files_commit_id ON commit_files (commit_id)`,
	`CREATE INDEX IF NOT EXISTS ix_commit_files_filename ON commit_files (filename)`,
	`CREATE INDEX IF NOT EXISTS ix_commit_files_file_extension ON commit_files (file_extension)`,
	`CREATE INDEX IF NOT EXISTS ix_commit_files_status ON commit_files (status)`,
	`CREATE INDEX IF NOT EXISTS ix_commit_files_language ON commit_files (language)`,
	`CREATE INDEX IF NOT EXISTS ix_commit_files_security_risk_level ON commit_files (security_risk_level)`,

	`CREATE TABLE IF NOT EXISTS audit_logs (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		request_id VARCHAR(64) NOT NULL,
		action VARCHAR(100) NOT NULL,
		resource VARCHAR(255) NOT NULL,
		details JSONB,
		ip VARCHAR(64),
		user_agent VARCHAR(512),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS ix_audit_logs_created_at ON audit_logs (created_at)`,
	`CREATE INDEX IF NOT EXISTS ix_audit_logs_action ON audit_logs (action)`,

	// Per-commit rollup so summary reads avoid scanning child rows.
	`CREATE OR REPLACE VIEW commit_summary AS
		SELECT
			c.id,
			c.commit_hash,
			c.repository_name,
			c.author_name,
			c.commit_message,
			c.commit_date,
			c.source_type,
			c.branch_name,
			c.status,
			COUNT(cf.id) AS total_files_changed,
			COALESCE(SUM(cf.additions), 0) AS total_additions,
			COALESCE(SUM(cf.deletions), 0) AS total_deletions,
			COUNT(cf.id) FILTER (WHERE cf.status = 'added') AS files_added,
			COUNT(cf.id) FILTER (WHERE cf.status = 'modified') AS files_modified,
			COUNT(cf.id) FILTER (WHERE cf.status = 'deleted') AS files_deleted,
			COUNT(cf.id) FILTER (WHERE cf.security_risk_level = 'high') AS high_risk_files,
			c.created_at
		FROM commits c
		LEFT JOIN commit_files cf ON cf.commit_id = c.id
		GROUP BY c.id`,

	`CREATE MATERIALIZED VIEW IF NOT EXISTS commit_statistics AS
		SELECT
			DATE_TRUNC('day', commit_date) AS date,
			COUNT(*) AS total_commits,
			COUNT(DISTINCT author_name) AS unique_authors,
			COALESCE(SUM(lines_added), 0) AS total_lines_added,
			COALESCE(SUM(lines_deleted), 0) AS total_lines_deleted,
			COALESCE(AVG(lines_added + lines_deleted), 0) AS avg_commit_size
		FROM commits
		GROUP BY DATE_TRUNC('day', commit_date)
		ORDER BY date DESC`,

	`CREATE UNIQUE INDEX IF NOT EXISTS ix_commit_statistics_date ON commit_statistics (date)`,
}

// EnsureSchema creates tables, indexes, views, and the statistics
// materialized view. Safe to run on every startup.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	slog.Info("database schema ensured")
	return nil
}
