package vcs

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/arturoeanton/commit-tracker/internal/domain"
)

// complexityCap bounds the heuristic complexity score.
const complexityCap = 10

// Extensions whose changes are eligible for the "high" risk level.
var highRiskExtensions = map[string]bool{
	"py":   true,
	"js":   true,
	"php":  true,
	"java": true,
	"sql":  true,
}

// Patterns that flag security-sensitive content in a diff. A file is rated
// "high" only when its extension is in highRiskExtensions AND one of these
// matches.
var securityPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)password.*=`),
	regexp.MustCompile(`(?i)api_key.*=`),
	regexp.MustCompile(`(?i)secret.*=`),
	regexp.MustCompile(`(?i)SELECT.*WHERE.*\$\{`),
	regexp.MustCompile(`(?i)INSERT INTO.*\$\{`),
	regexp.MustCompile(`(?i)exec\(`),
	regexp.MustCompile(`(?i)eval\(`),
	regexp.MustCompile(`(?i)os\.system\(`),
}

// CommitDiff returns a commit's full unified diff plus its per-file
// structured breakdown. Diff retrieval failures degrade to an empty result.
func (g *GitClient) CommitDiff(ctx context.Context, hash string) (domain.CommitDiff, error) {
	diff := domain.CommitDiff{FileDiffs: map[string]domain.FileDiff{}}

	content, err := g.run(ctx, "show", "--unified=3", "--no-prefix", hash)
	if err != nil {
		if fatal(err) {
			return diff, err
		}
		slog.Warn("failed to read commit diff", "commit_hash", shortHash(hash), "error", err)
		return diff, nil
	}
	diff.DiffContent = content
	diff.FileDiffs = g.parseFileDiffs(ctx, hash)
	return diff, nil
}

// parseFileDiffs lists the changed files with their status letter, then
// re-invokes git once per file for its isolated diff. Per-file invocation
// sidesteps the file-boundary detection hazard of splitting one combined
// multi-file diff; the extra subprocess calls are an accepted trade-off.
func (g *GitClient) parseFileDiffs(ctx context.Context, hash string) map[string]domain.FileDiff {
	fileDiffs := map[string]domain.FileDiff{}

	output, err := g.run(ctx, "show", "--name-status", "--pretty=format:", hash)
	if err != nil {
		slog.Warn("failed to list changed files", "commit_hash", shortHash(hash), "error", err)
		return fileDiffs
	}

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 2 {
			continue
		}
		statusCode := parts[0]
		// Renames and copies list the destination path last.
		filename := parts[len(parts)-1]

		fd := g.fileDiff(ctx, hash, filename)
		fd.Status = mapStatusCode(statusCode)
		fd.ComplexityScore = complexityScore(fd.DiffContent)
		fd.SecurityRisk = assessSecurityRisk(filename, fd.DiffContent)
		fileDiffs[filename] = fd
	}
	return fileDiffs
}

// fileDiff fetches and classifies the isolated diff of one file. Any
// failure yields an empty record; it never aborts sibling files.
func (g *GitClient) fileDiff(ctx context.Context, hash, filename string) domain.FileDiff {
	fd := domain.FileDiff{
		Additions:     []string{},
		Deletions:     []string{},
		Modifications: []string{},
	}

	output, err := g.run(ctx, "show", "--unified=3", "--no-prefix", hash, "--", filename)
	if err != nil {
		slog.Warn("failed to read file diff", "commit_hash", shortHash(hash), "filename", filename, "error", err)
		return fd
	}

	fd.DiffContent = output
	fd.Additions, fd.Deletions, fd.Modifications = classifyDiffLines(output)
	return fd
}

// classifyDiffLines buckets unified diff lines by their sign and collects
// hunk headers as modifications. The "+++" and "---" file headers are never
// counted as content lines.
func classifyDiffLines(diffContent string) (additions, deletions, modifications []string) {
	additions = []string{}
	deletions = []string{}
	modifications = []string{}
	for _, line := range strings.Split(diffContent, "\n") {
		switch {
		case strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++"):
			additions = append(additions, line)
		case strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---"):
			deletions = append(deletions, line)
		case strings.HasPrefix(line, "@@"):
			modifications = append(modifications, line)
		}
	}
	return additions, deletions, modifications
}

// mapStatusCode canonicalizes a git name-status letter. Rename and copy
// codes carry a similarity score suffix (e.g. "R100"), so only the first
// letter counts. Unrecognized codes default to modified.
func mapStatusCode(code string) string {
	if code == "" {
		return "modified"
	}
	switch code[0] {
	case 'A':
		return "added"
	case 'M':
		return "modified"
	case 'D':
		return "deleted"
	case 'R':
		return "renamed"
	case 'C':
		return "copied"
	default:
		return "modified"
	}
}

// complexityScore scans changed lines for structural keywords, each adding
// a fixed weight, clamped to complexityCap.
func complexityScore(diffContent string) int {
	if diffContent == "" {
		return 0
	}

	score := 0
	for _, line := range strings.Split(diffContent, "\n") {
		if !strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "-") {
			continue
		}
		if strings.Contains(line, "for ") && strings.Contains(line, " in ") {
			score += 2
		}
		if strings.Contains(line, "if ") && strings.Contains(line, ":") {
			score += 1
		}
		if strings.Contains(line, "def ") {
			score += 1
		}
		if strings.Contains(line, "class ") {
			score += 2
		}
	}
	if score > complexityCap {
		return complexityCap
	}
	return score
}

// assessSecurityRisk is a coarse binary heuristic, not a scored model:
// "high" requires both a high-risk extension and a sensitive pattern match.
func assessSecurityRisk(filename, diffContent string) string {
	if diffContent == "" {
		return domain.RiskLow
	}
	if !highRiskExtensions[strings.ToLower(domain.FileExtension(filename))] {
		return domain.RiskLow
	}
	for _, pattern := range securityPatterns {
		if pattern.MatchString(diffContent) {
			return domain.RiskHigh
		}
	}
	return domain.RiskLow
}
