package catalog

import "io"

// RecordingStore reads recordings from wherever the transcription app put
// them. The only concrete implementation scans a SuperWhisper directory
// tree; the interface exists so services and the sync coordinator can be
// tested against constructed data.
type RecordingStore interface {
	// ScanAll loads every recording under the base directory, newest
	// timestamp first. A missing base directory yields an empty slice.
	ScanAll() ([]*Recording, error)

	// GetByTimestamp loads the recording stored in the directory named
	// by the given timestamp. Returns ErrNotFound when the directory
	// does not exist.
	GetByTimestamp(timestamp int64) (*Recording, error)

	// GetByRecordingID resolves a SuperWhisper recording ID, using the
	// location cache when one is attached and falling back to a full
	// scan. Returns ErrNotFound when no recording matches.
	GetByRecordingID(recordingID string) (*Recording, error)

	// OpenAudio opens the recording's audio payload for streaming.
	// Returns ErrNotFound when the recording has no audio file.
	OpenAudio(rec *Recording) (io.ReadCloser, error)

	// CountRecordingDirs counts the valid timestamp-named directories
	// on disk. Used by the sync coordinator's consistency check.
	CountRecordingDirs() (int, error)
}
