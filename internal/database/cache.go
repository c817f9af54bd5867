package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"swcat/internal/catalog"
)

// Location cache operations. Entries map SuperWhisper recording IDs to
// directory timestamps, paths and audio hashes; see catalog.LocationCache.

const locationColumns = "recording_id, internal_id, directory_path, audio_hash, created_at, updated_at"

func (c *LocationCache) GetByRecordingID(recordingID string) (*catalog.LocationEntry, error) {
	row := c.s.db.QueryRowContext(context.Background(),
		"SELECT "+locationColumns+" FROM recording_locations WHERE recording_id = ?",
		recordingID)
	entry, err := scanLocationEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding location by recording id: %w", err)
	}
	return entry, nil
}

func (c *LocationCache) GetByInternalID(internalID string) (*catalog.LocationEntry, error) {
	row := c.s.db.QueryRowContext(context.Background(),
		"SELECT "+locationColumns+" FROM recording_locations WHERE internal_id = ? LIMIT 1",
		internalID)
	entry, err := scanLocationEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding location by internal id: %w", err)
	}
	return entry, nil
}

func (c *LocationCache) GetByAudioHash(audioHash string) ([]*catalog.LocationEntry, error) {
	if audioHash == "" {
		return nil, nil
	}
	rows, err := c.s.db.QueryContext(context.Background(),
		"SELECT "+locationColumns+" FROM recording_locations WHERE audio_hash = ? ORDER BY created_at DESC, rowid DESC",
		audioHash)
	if err != nil {
		return nil, fmt.Errorf("finding locations by audio hash: %w", err)
	}
	defer rows.Close()

	var entries []*catalog.LocationEntry
	for rows.Next() {
		entry, err := scanLocationEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning location entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating location entries: %w", err)
	}
	return entries, nil
}

// Upsert inserts or replaces the entry for entry.RecordingID.
// Last write wins; created_at survives updates.
func (c *LocationCache) Upsert(entry *catalog.LocationEntry) error {
	now := c.s.now()
	_, err := c.s.db.ExecContext(context.Background(), `
		INSERT INTO recording_locations (recording_id, internal_id, directory_path, audio_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(recording_id) DO UPDATE SET
			internal_id = excluded.internal_id,
			directory_path = excluded.directory_path,
			audio_hash = excluded.audio_hash,
			updated_at = excluded.updated_at`,
		entry.RecordingID, entry.InternalID, entry.DirectoryPath, entry.AudioHash, now, now)
	if err != nil {
		return fmt.Errorf("upserting location entry: %w", err)
	}
	return nil
}

func (c *LocationCache) GetAll() ([]*catalog.LocationEntry, error) {
	rows, err := c.s.db.QueryContext(context.Background(),
		"SELECT "+locationColumns+" FROM recording_locations ORDER BY created_at DESC, rowid DESC")
	if err != nil {
		return nil, fmt.Errorf("listing location entries: %w", err)
	}
	defer rows.Close()

	var entries []*catalog.LocationEntry
	for rows.Next() {
		entry, err := scanLocationEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning location entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating location entries: %w", err)
	}
	return entries, nil
}

func (c *LocationCache) Delete(recordingID string) error {
	_, err := c.s.db.ExecContext(context.Background(),
		"DELETE FROM recording_locations WHERE recording_id = ?", recordingID)
	if err != nil {
		return fmt.Errorf("deleting location entry: %w", err)
	}
	return nil
}

func (c *LocationCache) ClearAll() error {
	_, err := c.s.db.ExecContext(context.Background(), "DELETE FROM recording_locations")
	if err != nil {
		return fmt.Errorf("clearing location cache: %w", err)
	}
	return nil
}

func (c *LocationCache) Count() (int, error) {
	var count int
	err := c.s.db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM recording_locations").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting location entries: %w", err)
	}
	return count, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanLocationEntry(sc scanner) (*catalog.LocationEntry, error) {
	var entry catalog.LocationEntry
	var createdAt, updatedAt string
	err := sc.Scan(&entry.RecordingID, &entry.InternalID, &entry.DirectoryPath,
		&entry.AudioHash, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	entry.CreatedAt = parseTime(createdAt)
	entry.UpdatedAt = parseTime(updatedAt)
	return &entry, nil
}
