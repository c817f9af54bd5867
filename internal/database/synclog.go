package database

import (
	"context"
	"fmt"

	"swcat/internal/catalog"
)

func (l *SyncLog) CreateSyncRun(run *catalog.SyncRun) (int64, error) {
	res, err := l.s.db.ExecContext(context.Background(),
		"INSERT INTO sync_runs (started_at, status) VALUES (?, ?)",
		formatTime(run.StartedAt), catalog.SyncStatusRunning)
	if err != nil {
		return 0, fmt.Errorf("inserting sync run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading sync run id: %w", err)
	}
	return id, nil
}

func (l *SyncLog) FinishSyncRun(run *catalog.SyncRun) error {
	_, err := l.s.db.ExecContext(context.Background(), `
		UPDATE sync_runs
		SET finished_at = ?, status = ?, recordings_seen = ?,
		    conversations_indexed = ?, error = ?
		WHERE id = ?`,
		formatTime(run.FinishedAt), run.Status, run.RecordingsSeen,
		run.ConversationsIndexed, run.Error, run.ID)
	if err != nil {
		return fmt.Errorf("finishing sync run %d: %w", run.ID, err)
	}
	return nil
}

func (l *SyncLog) ListSyncRuns(limit int) ([]*catalog.SyncRun, error) {
	rows, err := l.s.db.QueryContext(context.Background(), `
		SELECT id, started_at, finished_at, status, recordings_seen,
		       conversations_indexed, error
		FROM sync_runs
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sync runs: %w", err)
	}
	defer rows.Close()

	var runs []*catalog.SyncRun
	for rows.Next() {
		var run catalog.SyncRun
		var started, finished string
		if err := rows.Scan(&run.ID, &started, &finished, &run.Status,
			&run.RecordingsSeen, &run.ConversationsIndexed, &run.Error); err != nil {
			return nil, fmt.Errorf("scanning sync run: %w", err)
		}
		run.StartedAt = parseTime(started)
		run.FinishedAt = parseTime(finished)
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sync runs: %w", err)
	}
	return runs, nil
}
