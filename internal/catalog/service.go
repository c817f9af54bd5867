package catalog

import (
	"fmt"
	"io"
	"os"
	"strconv"
)

// Service is the query façade over the recording store, the location cache
// and the search index. Callers (HTTP layer, CLI) go through it for every
// read; writes happen only through the sync coordinator.
type Service struct {
	store    RecordingStore
	cache    LocationCache // nil when the store runs without a cache
	index    SearchIndex
	logger   Logger
	hasCache bool
}

// NewService creates a Service. cache may be nil; the capability is
// resolved here once, not probed per call.
func NewService(store RecordingStore, cache LocationCache, index SearchIndex, logger Logger) *Service {
	return &Service{
		store:    store,
		cache:    cache,
		index:    index,
		logger:   logger,
		hasCache: cache != nil,
	}
}

// ListConversations groups a fresh scan of the recording store into
// conversations, most recently updated first. This is the non-indexed
// path; paginated listing goes through ListPage instead.
func (s *Service) ListConversations() ([]*Conversation, error) {
	recordings, err := s.store.ScanAll()
	if err != nil {
		return nil, fmt.Errorf("scanning recordings: %w", err)
	}
	return GroupRecordings(recordings), nil
}

// ListPage returns one page of latest conversation versions from the
// search index, plus the total conversation count. page is 1-indexed;
// bounds are validated by the caller.
func (s *Service) ListPage(page, pageSize int) ([]*IndexRow, int, error) {
	return s.index.GetPaginated(page, pageSize)
}

// Search runs a ranked full-text search through the index. The query must
// be non-empty; bounds are validated by the caller.
func (s *Service) Search(query string, page, pageSize int) ([]*SearchHit, int, error) {
	return s.index.Search(query, page, pageSize)
}

// GetConversation resolves a conversation ID to its full version list.
// It tries targeted lookups through the location cache (by audio hash,
// by recording ID, then by bare timestamp) and only falls back to a full
// scan when none of them lands. The cache is trusted only when its entry
// count matches the number of recording directories on disk; a partial
// cache would resolve a hash to a subset of a conversation's versions.
// A cache entry pointing at a directory that no longer exists also forces
// the full scan, so stale cache state can never surface partial data.
func (s *Service) GetConversation(conversationID string) (*Conversation, error) {
	if s.hasCache && s.cacheConsistent() {
		conv, ok, err := s.lookupViaCache(conversationID)
		if err != nil {
			return nil, err
		}
		if ok {
			return conv, nil
		}
	}
	return s.findByFullScan(conversationID)
}

// cacheConsistent reports whether the location cache covers every
// recording directory on disk. Recordings whose metadata carries no
// recording ID are never cached, so a count mismatch means hash lookups
// may miss versions. Errors during the check count as inconsistency.
func (s *Service) cacheConsistent() bool {
	dirs, err := s.store.CountRecordingDirs()
	if err != nil {
		s.logger.Warn("counting recording directories", "error", err)
		return false
	}
	cached, err := s.cache.Count()
	if err != nil {
		s.logger.Warn("counting cached locations", "error", err)
		return false
	}
	if dirs != cached {
		s.logger.Debug("location cache incomplete, using full scan",
			"directories", dirs, "cached", cached)
		return false
	}
	return true
}

// lookupViaCache attempts the targeted cache paths. ok=false means the
// caller should fall back to a full scan; it is not a definitive miss.
func (s *Service) lookupViaCache(conversationID string) (*Conversation, bool, error) {
	// By audio hash: every entry sharing the hash is a version.
	entries, err := s.cache.GetByAudioHash(conversationID)
	if err != nil {
		return nil, false, fmt.Errorf("cache lookup by hash: %w", err)
	}
	if len(entries) > 0 {
		return s.conversationFromEntries(conversationID, entries)
	}

	// By SuperWhisper recording ID. When the matched entry carries a
	// hash, re-resolve through the hash so sibling versions are found.
	entry, err := s.cache.GetByRecordingID(conversationID)
	if err != nil {
		return nil, false, fmt.Errorf("cache lookup by recording id: %w", err)
	}
	if entry == nil && isDecimal(conversationID) {
		entry, err = s.cache.GetByInternalID(conversationID)
		if err != nil {
			return nil, false, fmt.Errorf("cache lookup by internal id: %w", err)
		}
	}
	if entry == nil {
		return nil, false, nil
	}
	if entry.AudioHash != "" && entry.AudioHash != conversationID {
		siblings, err := s.cache.GetByAudioHash(entry.AudioHash)
		if err != nil {
			return nil, false, fmt.Errorf("cache lookup by hash: %w", err)
		}
		return s.conversationFromEntries(entry.AudioHash, siblings)
	}
	return s.conversationFromEntries(conversationID, []*LocationEntry{entry})
}

// conversationFromEntries loads each cached directory and regroups the
// recordings. Any stale directory aborts the cache path.
func (s *Service) conversationFromEntries(conversationID string, entries []*LocationEntry) (*Conversation, bool, error) {
	recordings := make([]*Recording, 0, len(entries))
	for _, entry := range entries {
		if _, err := os.Stat(entry.DirectoryPath); err != nil {
			s.logger.Warn("cached directory missing, falling back to full scan",
				"recording_id", entry.RecordingID, "path", entry.DirectoryPath)
			return nil, false, nil
		}
		ts, err := strconv.ParseInt(entry.InternalID, 10, 64)
		if err != nil {
			return nil, false, nil
		}
		rec, err := s.store.GetByTimestamp(ts)
		if err != nil {
			s.logger.Warn("cached recording failed to load, falling back to full scan",
				"internal_id", entry.InternalID, "error", err)
			return nil, false, nil
		}
		recordings = append(recordings, rec)
	}
	if len(recordings) == 0 {
		return nil, false, nil
	}

	for _, conv := range GroupRecordings(recordings) {
		if conv.ConversationID == conversationID {
			return conv, true, nil
		}
	}
	// The recordings on disk no longer hash to the cached value.
	return nil, false, nil
}

func (s *Service) findByFullScan(conversationID string) (*Conversation, error) {
	conversations, err := s.ListConversations()
	if err != nil {
		return nil, err
	}
	for _, conv := range conversations {
		if conv.ConversationID == conversationID {
			return conv, nil
		}
	}
	return nil, fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)
}

// GetVersion resolves a (conversation, version) pair.
func (s *Service) GetVersion(conversationID, versionID string) (*Conversation, *AudioVersion, error) {
	conv, err := s.GetConversation(conversationID)
	if err != nil {
		return nil, nil, err
	}
	for _, v := range conv.Versions {
		if v.VersionID == versionID {
			return conv, v, nil
		}
	}
	return nil, nil, fmt.Errorf("version %s in conversation %s: %w", versionID, conversationID, ErrNotFound)
}

// AudioPath returns the on-disk path of a version's audio payload.
func (s *Service) AudioPath(conversationID, versionID string) (string, error) {
	_, version, err := s.GetVersion(conversationID, versionID)
	if err != nil {
		return "", err
	}
	if version.Recording.AudioFile == "" {
		return "", fmt.Errorf("audio for version %s: %w", versionID, ErrNotFound)
	}
	return version.Recording.AudioFile, nil
}

// OpenAudio opens a version's audio payload for streaming.
func (s *Service) OpenAudio(conversationID, versionID string) (io.ReadCloser, error) {
	_, version, err := s.GetVersion(conversationID, versionID)
	if err != nil {
		return nil, err
	}
	return s.store.OpenAudio(version.Recording)
}

func isDecimal(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
