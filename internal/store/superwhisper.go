package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"swcat/internal/catalog"
)

// Audio payload filenames, tried in order. SuperWhisper currently writes
// output.wav; the rest cover legacy naming and alternate codecs.
var audioFilenames = []string{
	"output.wav",
	"audio.wav",
	"output.mp3",
	"audio.mp3",
	"output.m4a",
	"audio.m4a",
}

// Metadata filenames, tried in order.
var metadataFilenames = []string{
	"meta.json",
	"metadata.json",
}

// hashChunkSize is the read size used when hashing audio payloads.
const hashChunkSize = 8192

// SuperWhisperStore reads recordings from a SuperWhisper directory tree:
// a base directory whose immediate subdirectories are named by Unix
// timestamp, each holding an audio payload and a meta.json.
type SuperWhisperStore struct {
	baseDir  string
	cache    catalog.LocationCache // nil when running uncached
	logger   catalog.Logger
	hasCache bool
}

// NewSuperWhisperStore creates a store over baseDir. cache may be nil;
// when present, every successful load with a recording ID upserts the
// recording's location into it.
func NewSuperWhisperStore(baseDir string, cache catalog.LocationCache, logger catalog.Logger) *SuperWhisperStore {
	return &SuperWhisperStore{
		baseDir:  baseDir,
		cache:    cache,
		logger:   logger,
		hasCache: cache != nil,
	}
}

// ScanAll loads every recording under the base directory, newest first.
// Subdirectories whose names are not nonnegative integers are skipped.
// A missing base directory yields an empty slice, not an error.
func (s *SuperWhisperStore) ScanAll() ([]*catalog.Recording, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading base directory: %w", err)
	}

	var recordings []*catalog.Recording
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		timestamp, err := strconv.ParseInt(entry.Name(), 10, 64)
		if err != nil || timestamp < 0 {
			continue
		}
		rec := s.loadRecording(filepath.Join(s.baseDir, entry.Name()), timestamp)
		recordings = append(recordings, rec)
	}

	sort.SliceStable(recordings, func(i, j int) bool {
		return recordings[i].Timestamp > recordings[j].Timestamp
	})
	return recordings, nil
}

// GetByTimestamp loads the recording in the directory named by timestamp.
func (s *SuperWhisperStore) GetByTimestamp(timestamp int64) (*catalog.Recording, error) {
	dir := filepath.Join(s.baseDir, strconv.FormatInt(timestamp, 10))
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("recording %d: %w", timestamp, catalog.ErrNotFound)
	}
	return s.loadRecording(dir, timestamp), nil
}

// GetByRecordingID resolves a SuperWhisper recording ID through the
// location cache, scanning the whole tree (which repopulates the cache)
// when the ID is unknown.
func (s *SuperWhisperStore) GetByRecordingID(recordingID string) (*catalog.Recording, error) {
	if s.hasCache {
		rec, err := s.cachedByRecordingID(recordingID)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			return rec, nil
		}
	}

	// Not cached: scan everything, which upserts the cache as a side
	// effect, then try once more before giving up.
	recordings, err := s.ScanAll()
	if err != nil {
		return nil, err
	}
	for _, rec := range recordings {
		if rec.RecordingID == recordingID {
			return rec, nil
		}
	}
	return nil, fmt.Errorf("recording id %s: %w", recordingID, catalog.ErrNotFound)
}

func (s *SuperWhisperStore) cachedByRecordingID(recordingID string) (*catalog.Recording, error) {
	entry, err := s.cache.GetByRecordingID(recordingID)
	if err != nil {
		return nil, fmt.Errorf("cache lookup: %w", err)
	}
	if entry == nil {
		return nil, nil
	}
	timestamp, err := strconv.ParseInt(entry.InternalID, 10, 64)
	if err != nil {
		return nil, nil
	}
	rec, err := s.GetByTimestamp(timestamp)
	if err != nil {
		// Stale entry; fall through to a full scan.
		return nil, nil
	}
	return rec, nil
}

// OpenAudio opens the recording's audio payload for streaming reads.
func (s *SuperWhisperStore) OpenAudio(rec *catalog.Recording) (io.ReadCloser, error) {
	if rec.AudioFile == "" {
		return nil, fmt.Errorf("audio for recording %d: %w", rec.Timestamp, catalog.ErrNotFound)
	}
	f, err := os.Open(rec.AudioFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("audio for recording %d: %w", rec.Timestamp, catalog.ErrNotFound)
		}
		return nil, fmt.Errorf("opening audio file: %w", err)
	}
	return f, nil
}

// CountRecordingDirs counts the timestamp-named subdirectories on disk.
func (s *SuperWhisperStore) CountRecordingDirs() (int, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading base directory: %w", err)
	}
	count := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if ts, err := strconv.ParseInt(entry.Name(), 10, 64); err == nil && ts >= 0 {
			count++
		}
	}
	return count, nil
}

// loadRecording assembles a Recording from one timestamp directory.
// Missing or malformed metadata and unreadable audio degrade individual
// fields; they never fail the load.
func (s *SuperWhisperStore) loadRecording(dir string, timestamp int64) *catalog.Recording {
	rec := &catalog.Recording{
		Timestamp: timestamp,
		Directory: dir,
	}

	for _, name := range audioFilenames {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			rec.AudioFile = candidate
			break
		}
	}

	for _, name := range metadataFilenames {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			rec.MetadataFile = candidate
			break
		}
	}

	if rec.MetadataFile != "" {
		if doc := readMetadata(rec.MetadataFile); doc != nil {
			rec.RecordingID = doc.recordingID()
			rec.RawTranscription = doc.RawResult
			rec.PreprocessedTranscription = doc.Result
			rec.LLMTranscription = doc.LLMResult
			rec.Duration = doc.Duration
			rec.Language = doc.LanguageSelected
			rec.ModelName = doc.ModelName
			rec.LanguageModelName = doc.LanguageModelName
			rec.ModeName = doc.ModeName
			rec.ProcessingTime = doc.ProcessingTime
			rec.CreatedAt = parseDatetime(doc.Datetime)
			for _, seg := range doc.Segments {
				rec.Segments = append(rec.Segments, catalog.Segment{
					Start: seg.Start,
					End:   seg.End,
					Text:  seg.Text,
				})
			}
		}
	}

	if rec.AudioFile != "" {
		rec.AudioHash = hashFile(rec.AudioFile)
	}

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Unix(timestamp, 0)
	}

	if s.hasCache && rec.RecordingID != "" {
		err := s.cache.Upsert(&catalog.LocationEntry{
			RecordingID:   rec.RecordingID,
			InternalID:    strconv.FormatInt(timestamp, 10),
			DirectoryPath: dir,
			AudioHash:     rec.AudioHash,
		})
		if err != nil {
			s.logger.Warn("caching recording location",
				"recording_id", rec.RecordingID, "error", err)
		}
	}

	return rec
}

// hashFile streams a file through SHA-256 in fixed-size chunks and
// returns the hex digest. Unreadable files yield an empty string: the
// recording simply has no content hash.
func hashFile(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, hashChunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return ""
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Compile-time check that SuperWhisperStore implements catalog.RecordingStore.
var _ catalog.RecordingStore = (*SuperWhisperStore)(nil)
