package catalog

// LocationCache is the persistent mapping from SuperWhisper recording IDs
// to directory locations and audio hashes. Upserts are idempotent and
// last-write-wins per recording ID.
type LocationCache interface {
	// GetByRecordingID returns the entry for a recording ID, or nil when
	// the ID is unknown.
	GetByRecordingID(recordingID string) (*LocationEntry, error)

	// GetByInternalID returns the entry whose internal ID (directory
	// timestamp) matches, or nil.
	GetByInternalID(internalID string) (*LocationEntry, error)

	// GetByAudioHash returns every entry sharing an audio hash, newest
	// created first.
	GetByAudioHash(audioHash string) ([]*LocationEntry, error)

	// Upsert inserts or replaces the entry for entry.RecordingID.
	Upsert(entry *LocationEntry) error

	// GetAll returns every entry, newest created first.
	GetAll() ([]*LocationEntry, error)

	// Delete removes the entry for a recording ID. Deleting an unknown
	// ID is not an error.
	Delete(recordingID string) error

	// ClearAll removes every entry.
	ClearAll() error

	// Count returns the number of cached entries.
	Count() (int, error)
}

// SearchIndex is the persistent conversation/version table plus its
// full-text mirror. Implementations must keep the mirror exactly in sync
// with the primary rows; a reader never observes one without the other.
type SearchIndex interface {
	// Upsert inserts or replaces the row keyed by
	// (ConversationID, VersionID).
	Upsert(row *IndexRow) error

	// UpdateLatestFlags recomputes is_latest for a conversation so that
	// exactly the version with the greatest timestamp carries it.
	// Ties break toward the greatest version ID. Idempotent.
	UpdateLatestFlags(conversationID string) error

	// GetPaginated returns the latest version of each conversation,
	// newest first. page is 1-indexed. The returned total counts all
	// conversations, not just the returned page.
	GetPaginated(page, pageSize int) ([]*IndexRow, int, error)

	// Search runs a ranked full-text query over titles and raw
	// transcriptions. Multi-word queries match as a phrase.
	Search(query string, page, pageSize int) ([]*SearchHit, int, error)

	// GetByConversationID returns every indexed version of a
	// conversation, newest first.
	GetByConversationID(conversationID string) ([]*IndexRow, error)

	// GetCount returns the number of distinct indexed conversations.
	GetCount() (int, error)

	// DeleteByConversationID removes every version of a conversation.
	DeleteByConversationID(conversationID string) error

	// ClearAll removes every row from the index.
	ClearAll() error
}

// SyncLog records reconciliation runs for status queries.
type SyncLog interface {
	// CreateSyncRun opens a run record in the "running" state and
	// returns its ID.
	CreateSyncRun(run *SyncRun) (int64, error)

	// FinishSyncRun closes a run with its terminal status and counters.
	FinishSyncRun(run *SyncRun) error

	// ListSyncRuns returns the most recent runs, newest first.
	ListSyncRuns(limit int) ([]*SyncRun, error)
}
