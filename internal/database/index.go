package database

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"swcat/internal/catalog"
)

// Search index operations. One row per (conversation_id, version_id);
// the conversation_fts mirror is maintained by triggers created in the
// schema migration, so it changes in the same transaction as every
// insert, update and delete here.

const indexColumns = `conversation_id, version_id, timestamp, title,
	raw_transcription, preprocessed_transcription, llm_transcription,
	audio_hash, duration, language, model_name, language_model_name,
	mode_name, created_at, is_latest, updated_at`

// Snippet bounds passed to FTS5 snippet(): max tokens of surrounding
// context per snippet, and how many snippets a hit may carry.
const (
	titleSnippetTokens = 32
	rawSnippetTokens   = 64
	maxSnippetsPerHit  = 3
)

// Upsert inserts or replaces the row keyed by (ConversationID, VersionID).
// A single statement, so the FTS triggers fire atomically with it.
func (x *SearchIndex) Upsert(row *catalog.IndexRow) error {
	_, err := x.s.db.ExecContext(context.Background(), `
		INSERT INTO conversation_index (
			conversation_id, version_id, timestamp, title,
			raw_transcription, preprocessed_transcription, llm_transcription,
			audio_hash, duration, language, model_name, language_model_name,
			mode_name, created_at, is_latest, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(conversation_id, version_id) DO UPDATE SET
			timestamp = excluded.timestamp,
			title = excluded.title,
			raw_transcription = excluded.raw_transcription,
			preprocessed_transcription = excluded.preprocessed_transcription,
			llm_transcription = excluded.llm_transcription,
			audio_hash = excluded.audio_hash,
			duration = excluded.duration,
			language = excluded.language,
			model_name = excluded.model_name,
			language_model_name = excluded.language_model_name,
			mode_name = excluded.mode_name,
			created_at = excluded.created_at,
			is_latest = excluded.is_latest,
			updated_at = excluded.updated_at`,
		row.ConversationID, row.VersionID, row.Timestamp, row.Title,
		row.RawTranscription, row.PreprocessedTranscription, row.LLMTranscription,
		row.AudioHash, row.Duration, row.Language, row.ModelName, row.LanguageModelName,
		row.ModeName, formatTime(row.CreatedAt), boolToInt(row.IsLatest), x.s.now())
	if err != nil {
		return fmt.Errorf("upserting index row: %w", err)
	}
	return nil
}

// UpdateLatestFlags recomputes is_latest for a conversation: exactly the
// row with the greatest timestamp carries it, ties broken toward the
// greatest version_id. Both updates run in one transaction so a reader
// never sees zero or two latest rows. Idempotent.
func (x *SearchIndex) UpdateLatestFlags(conversationID string) error {
	ctx := context.Background()

	tx, err := x.s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"UPDATE conversation_index SET is_latest = 0 WHERE conversation_id = ?",
		conversationID); err != nil {
		return fmt.Errorf("clearing latest flags: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE conversation_index SET is_latest = 1
		WHERE conversation_id = ? AND id = (
			SELECT id FROM conversation_index
			WHERE conversation_id = ?
			ORDER BY timestamp DESC, version_id DESC
			LIMIT 1
		)`,
		conversationID, conversationID); err != nil {
		return fmt.Errorf("setting latest flag: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetPaginated returns the latest version of each conversation, newest
// first, with LIMIT/OFFSET pagination. page is 1-indexed; a page past the
// end returns no rows and the true total.
func (x *SearchIndex) GetPaginated(page, pageSize int) ([]*catalog.IndexRow, int, error) {
	ctx := context.Background()

	var total int
	err := x.s.db.QueryRowContext(ctx,
		"SELECT COUNT(DISTINCT conversation_id) FROM conversation_index WHERE is_latest = 1").Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("counting conversations: %w", err)
	}

	offset := (page - 1) * pageSize
	rows, err := x.s.db.QueryContext(ctx,
		"SELECT "+indexColumns+` FROM conversation_index
		WHERE is_latest = 1
		ORDER BY timestamp DESC
		LIMIT ? OFFSET ?`,
		pageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	result, err := collectIndexRows(rows)
	if err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

// Search runs a ranked full-text query over titles and raw transcriptions.
// Multi-word input matches as a phrase; ranking is bm25 with timestamp as
// the tiebreaker. Each hit carries up to three highlighted snippets.
func (x *SearchIndex) Search(query string, page, pageSize int) ([]*catalog.SearchHit, int, error) {
	ctx := context.Background()
	ftsQuery := buildFTSQuery(query)

	var total int
	err := x.s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT ci.conversation_id)
		FROM conversation_index ci
		JOIN conversation_fts ON ci.id = conversation_fts.rowid
		WHERE conversation_fts MATCH ?`,
		ftsQuery).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("counting search matches: %w", err)
	}

	// Snippet column indices follow the FTS table declaration:
	// 0=conversation_id, 1=version_id, 2=title, 3=raw_transcription.
	offset := (page - 1) * pageSize
	rows, err := x.s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s,
			snippet(conversation_fts, 2, '<mark>', '</mark>', '...', %d) AS title_snippet,
			snippet(conversation_fts, 3, '<mark>', '</mark>', '...', %d) AS raw_snippet,
			bm25(conversation_fts) AS rank
		FROM conversation_index ci
		JOIN conversation_fts ON ci.id = conversation_fts.rowid
		WHERE conversation_fts MATCH ?
		ORDER BY rank, ci.timestamp DESC
		LIMIT ? OFFSET ?`,
		prefixColumns(indexColumns, "ci"), titleSnippetTokens, rawSnippetTokens),
		ftsQuery, pageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("searching index: %w", err)
	}
	defer rows.Close()

	var hits []*catalog.SearchHit
	for rows.Next() {
		hit := &catalog.SearchHit{}
		var createdAt, updatedAt, titleSnippet, rawSnippet string
		var isLatest int
		var rank float64
		err := rows.Scan(
			&hit.ConversationID, &hit.VersionID, &hit.Timestamp, &hit.Title,
			&hit.RawTranscription, &hit.PreprocessedTranscription, &hit.LLMTranscription,
			&hit.AudioHash, &hit.Duration, &hit.Language, &hit.ModelName,
			&hit.LanguageModelName, &hit.ModeName, &createdAt, &isLatest, &updatedAt,
			&titleSnippet, &rawSnippet, &rank)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning search hit: %w", err)
		}
		hit.CreatedAt = parseTime(createdAt)
		hit.UpdatedAt = parseTime(updatedAt)
		hit.IsLatest = isLatest != 0
		hit.Snippets = collectSnippets(titleSnippet, rawSnippet)
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating search hits: %w", err)
	}
	return hits, total, nil
}

func (x *SearchIndex) GetByConversationID(conversationID string) ([]*catalog.IndexRow, error) {
	rows, err := x.s.db.QueryContext(context.Background(),
		"SELECT "+indexColumns+` FROM conversation_index
		WHERE conversation_id = ?
		ORDER BY timestamp DESC`,
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("finding index rows by conversation: %w", err)
	}
	defer rows.Close()
	return collectIndexRows(rows)
}

func (x *SearchIndex) GetCount() (int, error) {
	var count int
	err := x.s.db.QueryRowContext(context.Background(),
		"SELECT COUNT(DISTINCT conversation_id) FROM conversation_index").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting indexed conversations: %w", err)
	}
	return count, nil
}

func (x *SearchIndex) DeleteByConversationID(conversationID string) error {
	_, err := x.s.db.ExecContext(context.Background(),
		"DELETE FROM conversation_index WHERE conversation_id = ?", conversationID)
	if err != nil {
		return fmt.Errorf("deleting conversation from index: %w", err)
	}
	return nil
}

func (x *SearchIndex) ClearAll() error {
	_, err := x.s.db.ExecContext(context.Background(), "DELETE FROM conversation_index")
	if err != nil {
		return fmt.Errorf("clearing index: %w", err)
	}
	return nil
}

// buildFTSQuery compiles untrusted user input into an FTS5 query scoped
// to the two searchable columns. Multi-word input becomes a phrase query.
// A single word passes through bare only when it is purely alphanumeric;
// anything else is quoted (with embedded quotes doubled) so FTS operator
// syntax in the input can never reach the query parser.
func buildFTSQuery(query string) string {
	term := query
	if strings.ContainsAny(query, " \t") || !isBareTerm(query) {
		term = `"` + strings.ReplaceAll(query, `"`, `""`) + `"`
	}
	return fmt.Sprintf("raw_transcription:%s OR title:%s", term, term)
}

func isBareTerm(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}
	return true
}

// collectSnippets keeps only snippets that actually highlight a match.
func collectSnippets(snippets ...string) []string {
	var out []string
	for _, sn := range snippets {
		if strings.TrimSpace(sn) == "" || !strings.Contains(sn, "<mark>") {
			continue
		}
		out = append(out, sn)
		if len(out) == maxSnippetsPerHit {
			break
		}
	}
	return out
}

// prefixColumns qualifies each column in a comma-separated list with a
// table alias, for queries that join the FTS table.
func prefixColumns(columns, alias string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func collectIndexRows(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]*catalog.IndexRow, error) {
	var result []*catalog.IndexRow
	for rows.Next() {
		row, err := scanIndexRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning index row: %w", err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating index rows: %w", err)
	}
	return result, nil
}

func scanIndexRow(sc scanner) (*catalog.IndexRow, error) {
	var row catalog.IndexRow
	var createdAt, updatedAt string
	var isLatest int
	err := sc.Scan(
		&row.ConversationID, &row.VersionID, &row.Timestamp, &row.Title,
		&row.RawTranscription, &row.PreprocessedTranscription, &row.LLMTranscription,
		&row.AudioHash, &row.Duration, &row.Language, &row.ModelName,
		&row.LanguageModelName, &row.ModeName, &createdAt, &isLatest, &updatedAt)
	if err != nil {
		return nil, err
	}
	row.CreatedAt = parseTime(createdAt)
	row.UpdatedAt = parseTime(updatedAt)
	row.IsLatest = isLatest != 0
	return &row, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
