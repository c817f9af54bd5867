package catalog

import "time"

// Recording is one scanned timestamped directory from the SuperWhisper tree.
// Recordings are ephemeral: they are rebuilt from disk (or via the location
// cache) on every read, never persisted themselves.
type Recording struct {
	Timestamp    int64  // directory name, also the natural ordering key
	Directory    string // absolute path of the recording directory
	AudioFile    string // empty if no audio payload was found
	MetadataFile string // empty if no metadata document was found

	RecordingID string // SuperWhisper's own recording ID, empty if unknown

	// Transcription text at the three pipeline stages.
	RawTranscription          string // direct speech-to-text output
	PreprocessedTranscription string // after text cleanup
	LLMTranscription          string // after LLM refinement

	Segments []Segment

	Duration          float64 // milliseconds
	Language          string
	ModelName         string
	LanguageModelName string
	ModeName          string
	ProcessingTime    int64 // milliseconds

	// AudioHash is the SHA-256 of the audio payload, hex-encoded.
	// Empty when there is no audio file or it could not be read.
	AudioHash string

	CreatedAt time.Time
}

// Segment is one timed slice of a transcription.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// BestText returns the transcription text used for titles and list views:
// preprocessed, then raw, then LLM-refined. Empty string when the recording
// carries no text at all.
func (r *Recording) BestText() string {
	if r.PreprocessedTranscription != "" {
		return r.PreprocessedTranscription
	}
	if r.RawTranscription != "" {
		return r.RawTranscription
	}
	return r.LLMTranscription
}

// AudioVersion is one Recording as it appears within a Conversation.
type AudioVersion struct {
	VersionID string // the recording's timestamp in decimal
	Timestamp int64
	Recording *Recording
	IsLatest  bool
}

// Conversation groups recordings that share the same audio payload.
// Versions are ordered newest first; exactly one carries IsLatest.
type Conversation struct {
	ConversationID string // audio hash, or the timestamp when no hash exists
	Title          string
	Versions       []*AudioVersion
	LatestVersion  *AudioVersion // alias of Versions[0]
	CreatedAt      time.Time     // oldest version's CreatedAt
	UpdatedAt      time.Time     // newest version's CreatedAt
}

// LocationEntry maps a SuperWhisper recording ID to where the recording
// lives on disk. Entries are upserted on every successful directory load
// and never expire; a stale directory path triggers a full rescan instead.
type LocationEntry struct {
	RecordingID   string
	InternalID    string // the directory timestamp in decimal
	DirectoryPath string
	AudioHash     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IndexRow is one (conversation, version) pair in the search index, with
// the searchable text denormalized alongside the scalar metadata.
type IndexRow struct {
	ConversationID            string
	VersionID                 string
	Timestamp                 int64
	Title                     string
	RawTranscription          string
	PreprocessedTranscription string
	LLMTranscription          string
	AudioHash                 string
	Duration                  float64
	Language                  string
	ModelName                 string
	LanguageModelName         string
	ModeName                  string
	CreatedAt                 time.Time
	IsLatest                  bool
	UpdatedAt                 time.Time
}

// SearchHit is an IndexRow that matched a full-text query, with up to
// three highlighted snippets around the matched terms.
type SearchHit struct {
	IndexRow
	Snippets []string
}

// SyncRun records one reconciliation of the filesystem into the index.
type SyncRun struct {
	ID                   int64
	StartedAt            time.Time
	FinishedAt           time.Time // zero while the run is in flight
	Status               string    // "running", "success" or "error"
	RecordingsSeen       int64
	ConversationsIndexed int64
	Error                string
}

// Sync run statuses.
const (
	SyncStatusRunning = "running"
	SyncStatusSuccess = "success"
	SyncStatusError   = "error"
)
