package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"swcat/internal/catalog"
)

const (
	defaultPageSize = 30
	maxPageSize     = 100
)

type conversationListItem struct {
	ConversationID  string  `json:"conversation_id"`
	VersionID       string  `json:"version_id"`
	Title           string  `json:"title"`
	LatestTimestamp int64   `json:"latest_timestamp"`
	Duration        float64 `json:"duration"`
	Language        string  `json:"language"`
	ModelName       string  `json:"model_name"`
	ModeName        string  `json:"mode_name"`
	CreatedAt       string  `json:"created_at"`
}

type searchResultItem struct {
	conversationListItem
	MatchSnippets []string `json:"match_snippets"`
}

type pageResponse[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
}

type segmentJSON struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type recordingJSON struct {
	Timestamp                 int64         `json:"timestamp"`
	Directory                 string        `json:"directory"`
	AudioFile                 string        `json:"audio_file,omitempty"`
	RecordingID               string        `json:"recording_id,omitempty"`
	RawTranscription          string        `json:"raw_transcription"`
	PreprocessedTranscription string        `json:"preprocessed_transcription,omitempty"`
	LLMTranscription          string        `json:"llm_transcription,omitempty"`
	Segments                  []segmentJSON `json:"segments"`
	Duration                  float64       `json:"duration"`
	Language                  string        `json:"language,omitempty"`
	ModelName                 string        `json:"model_name,omitempty"`
	LanguageModelName         string        `json:"language_model_name,omitempty"`
	ModeName                  string        `json:"mode_name,omitempty"`
	ProcessingTime            int64         `json:"processing_time"`
	AudioHash                 string        `json:"audio_hash,omitempty"`
	CreatedAt                 string        `json:"created_at"`
}

type versionJSON struct {
	VersionID string        `json:"version_id"`
	Timestamp int64         `json:"timestamp"`
	Recording recordingJSON `json:"recording"`
	IsLatest  bool          `json:"is_latest"`
}

type conversationJSON struct {
	ConversationID string        `json:"conversation_id"`
	Title          string        `json:"title"`
	Versions       []versionJSON `json:"versions"`
	LatestVersion  *versionJSON  `json:"latest_version"`
	CreatedAt      string        `json:"created_at"`
	UpdatedAt      string        `json:"updated_at"`
}

type healthResponse struct {
	Status       string `json:"status"`
	Syncing      bool   `json:"syncing"`
	SyncComplete bool   `json:"sync_complete"`
}

type syncRunJSON struct {
	ID                   int64  `json:"id"`
	StartedAt            string `json:"started_at"`
	FinishedAt           string `json:"finished_at,omitempty"`
	Status               string `json:"status"`
	RecordingsSeen       int64  `json:"recordings_seen"`
	ConversationsIndexed int64  `json:"conversations_indexed"`
	Error                string `json:"error,omitempty"`
}

type syncTriggerResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	page, pageSize, ok := s.pagination(w, r)
	if !ok {
		return
	}

	s.ensureFreshIndex()

	rows, total, err := s.service.ListPage(page, pageSize)
	if err != nil {
		s.respondError(w, err)
		return
	}

	items := make([]conversationListItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, listItemFromRow(row))
	}

	s.respondJSON(w, http.StatusOK, pageResponse[conversationListItem]{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages(total, pageSize),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		s.respondBadRequest(w, "query parameter q is required")
		return
	}

	page, pageSize, ok := s.pagination(w, r)
	if !ok {
		return
	}

	s.ensureFreshIndex()

	hits, total, err := s.service.Search(query, page, pageSize)
	if err != nil {
		s.respondError(w, err)
		return
	}

	items := make([]searchResultItem, 0, len(hits))
	for _, hit := range hits {
		items = append(items, searchResultItem{
			conversationListItem: listItemFromRow(&hit.IndexRow),
			MatchSnippets:        hit.Snippets,
		})
	}

	s.respondJSON(w, http.StatusOK, pageResponse[searchResultItem]{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages(total, pageSize),
	})
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationID")

	conv, err := s.service.GetConversation(id)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, conversationToJSON(conv))
}

func (s *Server) handleGetAudio(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationID")
	versionID := chi.URLParam(r, "versionID")

	path, err := s.service.AudioPath(id, versionID)
	if err != nil {
		s.respondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", "audio_"+versionID+".wav"))
	// ServeFile handles range requests, so seeking works in browsers.
	http.ServeFile(w, r, path)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, healthResponse{
		Status:       "ok",
		Syncing:      s.syncer.IsSyncing(),
		SyncComplete: s.syncer.IsSyncComplete(),
	})
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	runs, err := s.syncer.ListSyncRuns(20)
	if err != nil {
		s.respondError(w, err)
		return
	}

	out := make([]syncRunJSON, 0, len(runs))
	for _, run := range runs {
		out = append(out, syncRunToJSON(run))
	}
	s.respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleTriggerSync(w http.ResponseWriter, r *http.Request) {
	if s.syncer.IsSyncing() {
		s.respondJSON(w, http.StatusAccepted, syncTriggerResponse{
			Started: false,
			Message: "sync already in progress",
		})
		return
	}

	s.syncer.StartBackgroundSync()
	s.respondJSON(w, http.StatusAccepted, syncTriggerResponse{
		Started: true,
		Message: "sync started",
	})
}

// pagination parses page and page_size, writing a 400 on invalid values.
func (s *Server) pagination(w http.ResponseWriter, r *http.Request) (page, pageSize int, ok bool) {
	page, pageSize = 1, defaultPageSize

	q := r.URL.Query()
	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.respondBadRequest(w, "page must be a positive integer")
			return 0, 0, false
		}
		page = n
	}
	if raw := q.Get("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxPageSize {
			s.respondBadRequest(w, fmt.Sprintf("page_size must be between 1 and %d", maxPageSize))
			return 0, 0, false
		}
		pageSize = n
	}
	return page, pageSize, true
}

// ensureFreshIndex reconciles before list and search requests serve from
// the index: wait out any in-flight startup sync (bounded), then run the
// drift check so recordings added or removed since startup are picked up.
// A failed reconciliation is logged and the request serves whatever is
// indexed.
func (s *Server) ensureFreshIndex() {
	s.waitForInitialSync()
	if _, err := s.syncer.EnsureSync(false); err != nil {
		s.logger.Error("syncing before read", "error", err)
	}
}

// waitForInitialSync blocks until the startup reconciliation finishes,
// bounded by the configured wait.
func (s *Server) waitForInitialSync() {
	if s.syncWait <= 0 || s.syncer.IsSyncComplete() {
		return
	}
	s.syncer.WaitForSync(s.syncWait)
}

func totalPages(total, pageSize int) int {
	if total == 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

func listItemFromRow(row *catalog.IndexRow) conversationListItem {
	return conversationListItem{
		ConversationID:  row.ConversationID,
		VersionID:       row.VersionID,
		Title:           row.Title,
		LatestTimestamp: row.Timestamp,
		Duration:        row.Duration,
		Language:        row.Language,
		ModelName:       row.ModelName,
		ModeName:        row.ModeName,
		CreatedAt:       formatTime(row.CreatedAt),
	}
}

func conversationToJSON(conv *catalog.Conversation) conversationJSON {
	versions := make([]versionJSON, 0, len(conv.Versions))
	for _, v := range conv.Versions {
		versions = append(versions, versionToJSON(v))
	}

	out := conversationJSON{
		ConversationID: conv.ConversationID,
		Title:          conv.Title,
		Versions:       versions,
		CreatedAt:      formatTime(conv.CreatedAt),
		UpdatedAt:      formatTime(conv.UpdatedAt),
	}
	if conv.LatestVersion != nil {
		latest := versionToJSON(conv.LatestVersion)
		out.LatestVersion = &latest
	}
	return out
}

func versionToJSON(v *catalog.AudioVersion) versionJSON {
	rec := v.Recording

	segments := make([]segmentJSON, 0, len(rec.Segments))
	for _, seg := range rec.Segments {
		segments = append(segments, segmentJSON{Start: seg.Start, End: seg.End, Text: seg.Text})
	}

	return versionJSON{
		VersionID: v.VersionID,
		Timestamp: v.Timestamp,
		IsLatest:  v.IsLatest,
		Recording: recordingJSON{
			Timestamp:                 rec.Timestamp,
			Directory:                 rec.Directory,
			AudioFile:                 rec.AudioFile,
			RecordingID:               rec.RecordingID,
			RawTranscription:          rec.RawTranscription,
			PreprocessedTranscription: rec.PreprocessedTranscription,
			LLMTranscription:          rec.LLMTranscription,
			Segments:                  segments,
			Duration:                  rec.Duration,
			Language:                  rec.Language,
			ModelName:                 rec.ModelName,
			LanguageModelName:         rec.LanguageModelName,
			ModeName:                  rec.ModeName,
			ProcessingTime:            rec.ProcessingTime,
			AudioHash:                 rec.AudioHash,
			CreatedAt:                 formatTime(rec.CreatedAt),
		},
	}
}

func syncRunToJSON(run *catalog.SyncRun) syncRunJSON {
	out := syncRunJSON{
		ID:                   run.ID,
		StartedAt:            formatTime(run.StartedAt),
		Status:               run.Status,
		RecordingsSeen:       run.RecordingsSeen,
		ConversationsIndexed: run.ConversationsIndexed,
		Error:                run.Error,
	}
	if !run.FinishedAt.IsZero() {
		out.FinishedAt = formatTime(run.FinishedAt)
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
