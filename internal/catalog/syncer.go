package catalog

import (
	"fmt"
	"sync"
	"time"
)

// Syncer reconciles the on-disk recording tree with the search index.
// At most one reconciliation runs at a time; re-invocations while one is
// in flight are no-ops. A timed-out wait never cancels the underlying run.
type Syncer struct {
	store   RecordingStore
	index   SearchIndex
	syncLog SyncLog
	logger  Logger
	clock   Clock

	mu       sync.Mutex
	syncing  bool
	done     chan struct{} // closed when the current run finishes
	complete bool          // at least one full sync has succeeded
	lastErr  error
}

// NewSyncer creates a Syncer with the provided dependencies.
func NewSyncer(store RecordingStore, index SearchIndex, syncLog SyncLog, logger Logger, clock Clock) *Syncer {
	return &Syncer{
		store:   store,
		index:   index,
		syncLog: syncLog,
		logger:  logger,
		clock:   clock,
	}
}

// StartBackgroundSync launches a reconciliation in the background.
// If one is already running this is a no-op.
func (s *Syncer) StartBackgroundSync() {
	done, ok := s.begin()
	if !ok {
		s.logger.Info("sync already running")
		return
	}

	go func() {
		err := s.syncAll()
		s.finish(done, err)
	}()
}

// WaitForSync blocks until the in-flight reconciliation finishes or the
// timeout elapses. Returns true if sync has completed (now or earlier),
// false on timeout or when no sync was ever started.
func (s *Syncer) WaitForSync(timeout time.Duration) bool {
	s.mu.Lock()
	done := s.done
	complete := s.complete
	s.mu.Unlock()

	if complete {
		return true
	}
	if done == nil {
		return false
	}

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		s.logger.Warn("sync did not complete in time", "timeout", timeout)
		return false
	}
}

// IsSyncing reports whether a reconciliation is currently in flight.
func (s *Syncer) IsSyncing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncing
}

// IsSyncComplete reports whether at least one full sync has succeeded.
func (s *Syncer) IsSyncComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.complete
}

// EnsureSync reconciles only when the index has drifted from the
// filesystem: when the count of timestamp directories on disk differs
// from the count of indexed conversations. force skips the check.
// Returns true if a reconciliation ran, false if it was skipped.
func (s *Syncer) EnsureSync(force bool) (bool, error) {
	if !force && !s.needsSync() {
		s.logger.Debug("index is up to date, skipping sync")
		return false, nil
	}

	done, ok := s.begin()
	if !ok {
		s.logger.Debug("sync already in progress, skipping")
		return false, nil
	}

	err := s.syncAll()
	s.finish(done, err)
	if err != nil {
		return true, err
	}
	return true, nil
}

// needsSync compares disk state against the index. Errors during the
// check count as drift: syncing is the safe answer.
func (s *Syncer) needsSync() bool {
	dirCount, err := s.store.CountRecordingDirs()
	if err != nil {
		s.logger.Error("counting recording directories", "error", err)
		return true
	}
	indexed, err := s.index.GetCount()
	if err != nil {
		s.logger.Error("counting indexed conversations", "error", err)
		return true
	}
	s.logger.Debug("sync check", "directories", dirCount, "indexed", indexed)
	return dirCount != indexed
}

// begin claims the single sync slot. ok=false means another run holds it.
func (s *Syncer) begin() (chan struct{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.syncing {
		return nil, false
	}
	s.syncing = true
	s.done = make(chan struct{})
	return s.done, true
}

// finish releases the sync slot on every exit path, success or failure.
func (s *Syncer) finish(done chan struct{}, err error) {
	s.mu.Lock()
	s.syncing = false
	s.lastErr = err
	if err == nil {
		s.complete = true
	}
	s.mu.Unlock()
	close(done)
}

// syncAll performs one full reconciliation: scan the recording tree,
// group into conversations, upsert every version, recompute latest flags.
// A failure on one conversation is logged and does not abort the rest;
// a scan failure fails the whole run.
func (s *Syncer) syncAll() error {
	run := &SyncRun{StartedAt: s.clock.Now(), Status: SyncStatusRunning}
	runID, logErr := s.syncLog.CreateSyncRun(run)
	if logErr != nil {
		s.logger.Error("recording sync run", "error", logErr)
	} else {
		run.ID = runID
	}

	err := s.reconcile(run)

	run.FinishedAt = s.clock.Now()
	if err != nil {
		run.Status = SyncStatusError
		run.Error = err.Error()
	} else {
		run.Status = SyncStatusSuccess
	}
	if run.ID != 0 {
		if logErr := s.syncLog.FinishSyncRun(run); logErr != nil {
			s.logger.Error("finishing sync run", "error", logErr)
		}
	}
	return err
}

func (s *Syncer) reconcile(run *SyncRun) error {
	s.logger.Info("starting sync")

	recordings, err := s.store.ScanAll()
	if err != nil {
		return fmt.Errorf("scanning recordings: %w", err)
	}
	run.RecordingsSeen = int64(len(recordings))
	s.logger.Info("found recordings to index", "count", len(recordings))

	conversations := GroupRecordings(recordings)
	s.logger.Info("grouped into conversations", "count", len(conversations))

	indexed := 0
	for _, conv := range conversations {
		if err := s.indexConversation(conv); err != nil {
			s.logger.Error("indexing conversation",
				"conversation_id", conv.ConversationID, "error", err)
			continue
		}
		indexed++
		if indexed%100 == 0 {
			s.logger.Info("indexing progress", "indexed", indexed, "total", len(conversations))
		}
	}
	run.ConversationsIndexed = int64(indexed)

	s.logger.Info("sync complete", "indexed", indexed)
	return nil
}

// indexConversation upserts every version of one conversation and then
// recomputes its latest flags.
func (s *Syncer) indexConversation(conv *Conversation) error {
	for _, version := range conv.Versions {
		rec := version.Recording
		row := &IndexRow{
			ConversationID:            conv.ConversationID,
			VersionID:                 version.VersionID,
			Timestamp:                 version.Timestamp,
			Title:                     GenerateTitle(rec),
			RawTranscription:          rec.RawTranscription,
			PreprocessedTranscription: rec.PreprocessedTranscription,
			LLMTranscription:          rec.LLMTranscription,
			AudioHash:                 rec.AudioHash,
			Duration:                  rec.Duration,
			Language:                  rec.Language,
			ModelName:                 rec.ModelName,
			LanguageModelName:         rec.LanguageModelName,
			ModeName:                  rec.ModeName,
			CreatedAt:                 rec.CreatedAt,
			IsLatest:                  version.IsLatest,
		}
		if err := s.index.Upsert(row); err != nil {
			return fmt.Errorf("upserting version %s: %w", version.VersionID, err)
		}
	}
	if err := s.index.UpdateLatestFlags(conv.ConversationID); err != nil {
		return fmt.Errorf("updating latest flags: %w", err)
	}
	return nil
}

// ListSyncRuns returns the most recent reconciliation records.
func (s *Syncer) ListSyncRuns(limit int) ([]*SyncRun, error) {
	return s.syncLog.ListSyncRuns(limit)
}
