package store

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"swcat/internal/catalog"
	"swcat/internal/testutil"
)

func newStore(t *testing.T, fixtures ...testutil.RecordingFixture) *SuperWhisperStore {
	t.Helper()
	baseDir := testutil.WriteRecordings(t, fixtures...)
	return NewSuperWhisperStore(baseDir, nil, catalog.NopLogger{})
}

func TestSuperWhisperStore_ScanAll(t *testing.T) {
	t.Parallel()

	t.Run("loads recordings newest first", func(t *testing.T) {
		t.Parallel()

		s := newStore(t,
			testutil.RecordingFixture{Timestamp: 1714000100, RawResult: "first"},
			testutil.RecordingFixture{Timestamp: 1714000300, RawResult: "third"},
			testutil.RecordingFixture{Timestamp: 1714000200, RawResult: "second"},
		)

		recs, err := s.ScanAll()
		if err != nil {
			t.Fatalf("ScanAll() error = %v", err)
		}
		if len(recs) != 3 {
			t.Fatalf("len(recs) = %d, want 3", len(recs))
		}

		want := []int64{1714000300, 1714000200, 1714000100}
		for i, ts := range want {
			if recs[i].Timestamp != ts {
				t.Errorf("recs[%d].Timestamp = %d, want %d", i, recs[i].Timestamp, ts)
			}
		}
	})

	t.Run("skips non-numeric and negative directories", func(t *testing.T) {
		t.Parallel()

		baseDir := testutil.WriteRecordings(t,
			testutil.RecordingFixture{Timestamp: 1714000100, RawResult: "keep"},
		)
		for _, name := range []string{".DS_Store_dir", "notes", "-5"} {
			if err := os.MkdirAll(filepath.Join(baseDir, name), 0755); err != nil {
				t.Fatal(err)
			}
		}
		if err := os.WriteFile(filepath.Join(baseDir, "stray.txt"), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}

		s := NewSuperWhisperStore(baseDir, nil, catalog.NopLogger{})
		recs, err := s.ScanAll()
		if err != nil {
			t.Fatalf("ScanAll() error = %v", err)
		}
		if len(recs) != 1 {
			t.Fatalf("len(recs) = %d, want 1", len(recs))
		}
	})

	t.Run("missing base directory yields empty scan", func(t *testing.T) {
		t.Parallel()

		s := NewSuperWhisperStore("/nonexistent/recordings", nil, catalog.NopLogger{})
		recs, err := s.ScanAll()
		if err != nil {
			t.Fatalf("ScanAll() error = %v", err)
		}
		if len(recs) != 0 {
			t.Errorf("len(recs) = %d, want 0", len(recs))
		}
	})
}

func TestSuperWhisperStore_LoadRecording(t *testing.T) {
	t.Parallel()

	t.Run("populates metadata fields", func(t *testing.T) {
		t.Parallel()

		s := newStore(t, testutil.RecordingFixture{
			Timestamp:         1714000100,
			Audio:             []byte("wav payload"),
			RecordingID:       "rec-abc",
			RawResult:         "raw text",
			Result:            "clean text",
			LLMResult:         "refined text",
			Segments:          []map[string]any{{"start": 0.0, "end": 1.5, "text": "hello"}},
			Duration:          1500,
			Language:          "en",
			ModelName:         "whisper-large",
			LanguageModelName: "gpt-x",
			ModeName:          "dictation",
			ProcessingTime:    900,
			Datetime:          "2024-04-24T22:28:20",
		})

		recs, err := s.ScanAll()
		if err != nil {
			t.Fatalf("ScanAll() error = %v", err)
		}
		if len(recs) != 1 {
			t.Fatalf("len(recs) = %d, want 1", len(recs))
		}

		rec := recs[0]
		if rec.RecordingID != "rec-abc" {
			t.Errorf("RecordingID = %q, want %q", rec.RecordingID, "rec-abc")
		}
		if rec.RawTranscription != "raw text" {
			t.Errorf("RawTranscription = %q", rec.RawTranscription)
		}
		if rec.PreprocessedTranscription != "clean text" {
			t.Errorf("PreprocessedTranscription = %q", rec.PreprocessedTranscription)
		}
		if rec.LLMTranscription != "refined text" {
			t.Errorf("LLMTranscription = %q", rec.LLMTranscription)
		}
		if rec.Duration != 1500 {
			t.Errorf("Duration = %v, want 1500", rec.Duration)
		}
		if rec.Language != "en" {
			t.Errorf("Language = %q, want %q", rec.Language, "en")
		}
		if rec.ModelName != "whisper-large" {
			t.Errorf("ModelName = %q", rec.ModelName)
		}
		if rec.ModeName != "dictation" {
			t.Errorf("ModeName = %q", rec.ModeName)
		}
		if rec.ProcessingTime != 900 {
			t.Errorf("ProcessingTime = %d, want 900", rec.ProcessingTime)
		}
		if len(rec.Segments) != 1 || rec.Segments[0].Text != "hello" {
			t.Errorf("Segments = %+v", rec.Segments)
		}
		wantCreated := time.Date(2024, 4, 24, 22, 28, 20, 0, time.Local)
		if !rec.CreatedAt.Equal(wantCreated) {
			t.Errorf("CreatedAt = %v, want %v", rec.CreatedAt, wantCreated)
		}
		if rec.AudioHash != testutil.SHA256Hex([]byte("wav payload")) {
			t.Errorf("AudioHash = %q, want hash of payload", rec.AudioHash)
		}
	})

	t.Run("audio filename preference order", func(t *testing.T) {
		t.Parallel()

		baseDir := t.TempDir()
		dir := testutil.WriteRecording(t, baseDir, testutil.RecordingFixture{
			Timestamp: 1714000100,
			Audio:     []byte("mp3 payload"),
			AudioName: "audio.mp3",
		})
		// output.wav outranks audio.mp3.
		if err := os.WriteFile(filepath.Join(dir, "output.wav"), []byte("wav payload"), 0644); err != nil {
			t.Fatal(err)
		}

		s := NewSuperWhisperStore(baseDir, nil, catalog.NopLogger{})
		rec, err := s.GetByTimestamp(1714000100)
		if err != nil {
			t.Fatalf("GetByTimestamp() error = %v", err)
		}
		if filepath.Base(rec.AudioFile) != "output.wav" {
			t.Errorf("AudioFile = %q, want output.wav preferred", rec.AudioFile)
		}
	})

	t.Run("malformed metadata degrades to empty fields", func(t *testing.T) {
		t.Parallel()

		s := newStore(t, testutil.RecordingFixture{
			Timestamp:   1714000100,
			Audio:       []byte("payload"),
			RawMetadata: []byte("{not json"),
		})

		rec, err := s.GetByTimestamp(1714000100)
		if err != nil {
			t.Fatalf("GetByTimestamp() error = %v", err)
		}
		if rec.RawTranscription != "" {
			t.Errorf("RawTranscription = %q, want empty", rec.RawTranscription)
		}
		// Directory timestamp backfills the creation time.
		if !rec.CreatedAt.Equal(time.Unix(1714000100, 0)) {
			t.Errorf("CreatedAt = %v, want %v", rec.CreatedAt, time.Unix(1714000100, 0))
		}
		if rec.AudioHash == "" {
			t.Error("AudioHash empty, audio should still be hashed")
		}
	})

	t.Run("no audio yields empty hash", func(t *testing.T) {
		t.Parallel()

		s := newStore(t, testutil.RecordingFixture{Timestamp: 1714000100, RawResult: "text only"})

		rec, err := s.GetByTimestamp(1714000100)
		if err != nil {
			t.Fatalf("GetByTimestamp() error = %v", err)
		}
		if rec.AudioFile != "" {
			t.Errorf("AudioFile = %q, want empty", rec.AudioFile)
		}
		if rec.AudioHash != "" {
			t.Errorf("AudioHash = %q, want empty", rec.AudioHash)
		}
	})

	t.Run("falls back to id field and metadata.json", func(t *testing.T) {
		t.Parallel()

		baseDir := t.TempDir()
		dir := filepath.Join(baseDir, "1714000100")
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
		doc := []byte(`{"id": "legacy-id", "rawResult": "legacy text"}`)
		if err := os.WriteFile(filepath.Join(dir, "metadata.json"), doc, 0644); err != nil {
			t.Fatal(err)
		}

		s := NewSuperWhisperStore(baseDir, nil, catalog.NopLogger{})
		rec, err := s.GetByTimestamp(1714000100)
		if err != nil {
			t.Fatalf("GetByTimestamp() error = %v", err)
		}
		if rec.RecordingID != "legacy-id" {
			t.Errorf("RecordingID = %q, want %q", rec.RecordingID, "legacy-id")
		}
		if rec.RawTranscription != "legacy text" {
			t.Errorf("RawTranscription = %q", rec.RawTranscription)
		}
	})
}

func TestSuperWhisperStore_GetByTimestamp(t *testing.T) {
	t.Parallel()

	s := newStore(t, testutil.RecordingFixture{Timestamp: 1714000100, RawResult: "x"})

	if _, err := s.GetByTimestamp(1714000100); err != nil {
		t.Fatalf("GetByTimestamp() error = %v", err)
	}

	_, err := s.GetByTimestamp(999)
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("GetByTimestamp(999) error = %v, want ErrNotFound", err)
	}
}

func TestSuperWhisperStore_GetByRecordingID(t *testing.T) {
	t.Parallel()

	t.Run("found via full scan without cache", func(t *testing.T) {
		t.Parallel()

		s := newStore(t, testutil.RecordingFixture{
			Timestamp:   1714000100,
			RecordingID: "rec-1",
			RawResult:   "x",
		})

		rec, err := s.GetByRecordingID("rec-1")
		if err != nil {
			t.Fatalf("GetByRecordingID() error = %v", err)
		}
		if rec.Timestamp != 1714000100 {
			t.Errorf("Timestamp = %d, want 1714000100", rec.Timestamp)
		}
	})

	t.Run("unknown id returns ErrNotFound", func(t *testing.T) {
		t.Parallel()

		s := newStore(t, testutil.RecordingFixture{Timestamp: 1714000100, RecordingID: "rec-1"})

		_, err := s.GetByRecordingID("missing")
		if !errors.Is(err, catalog.ErrNotFound) {
			t.Fatalf("GetByRecordingID() error = %v, want ErrNotFound", err)
		}
	})
}

func TestSuperWhisperStore_OpenAudio(t *testing.T) {
	t.Parallel()

	s := newStore(t, testutil.RecordingFixture{
		Timestamp: 1714000100,
		Audio:     []byte("wav payload"),
	})

	rec, err := s.GetByTimestamp(1714000100)
	if err != nil {
		t.Fatalf("GetByTimestamp() error = %v", err)
	}

	r, err := s.OpenAudio(rec)
	if err != nil {
		t.Fatalf("OpenAudio() error = %v", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("reading audio: %v", err)
	}
	if string(data) != "wav payload" {
		t.Errorf("audio = %q, want %q", data, "wav payload")
	}

	_, err = s.OpenAudio(&catalog.Recording{Timestamp: 5})
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("OpenAudio(no audio) error = %v, want ErrNotFound", err)
	}
}

func TestSuperWhisperStore_CountRecordingDirs(t *testing.T) {
	t.Parallel()

	baseDir := testutil.WriteRecordings(t,
		testutil.RecordingFixture{Timestamp: 1714000100},
		testutil.RecordingFixture{Timestamp: 1714000200},
	)
	if err := os.MkdirAll(filepath.Join(baseDir, "not-a-recording"), 0755); err != nil {
		t.Fatal(err)
	}

	s := NewSuperWhisperStore(baseDir, nil, catalog.NopLogger{})
	count, err := s.CountRecordingDirs()
	if err != nil {
		t.Fatalf("CountRecordingDirs() error = %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

type recordingCache struct {
	catalog.LocationCache
	entries map[string]*catalog.LocationEntry
}

func (c *recordingCache) GetByRecordingID(id string) (*catalog.LocationEntry, error) {
	return c.entries[id], nil
}

func (c *recordingCache) Upsert(entry *catalog.LocationEntry) error {
	c.entries[entry.RecordingID] = entry
	return nil
}

func TestSuperWhisperStore_CachePopulation(t *testing.T) {
	t.Parallel()

	baseDir := testutil.WriteRecordings(t, testutil.RecordingFixture{
		Timestamp:   1714000100,
		Audio:       []byte("payload"),
		RecordingID: "rec-1",
		RawResult:   "x",
	})
	cache := &recordingCache{entries: map[string]*catalog.LocationEntry{}}
	s := NewSuperWhisperStore(baseDir, cache, catalog.NopLogger{})

	if _, err := s.ScanAll(); err != nil {
		t.Fatalf("ScanAll() error = %v", err)
	}

	entry := cache.entries["rec-1"]
	if entry == nil {
		t.Fatal("scan did not upsert the recording location")
	}
	if entry.InternalID != "1714000100" {
		t.Errorf("InternalID = %q, want %q", entry.InternalID, "1714000100")
	}
	if entry.AudioHash != testutil.SHA256Hex([]byte("payload")) {
		t.Errorf("AudioHash = %q, want payload hash", entry.AudioHash)
	}

	// The cached entry now serves targeted lookups without a rescan.
	rec, err := s.GetByRecordingID("rec-1")
	if err != nil {
		t.Fatalf("GetByRecordingID() error = %v", err)
	}
	if rec.Timestamp != 1714000100 {
		t.Errorf("Timestamp = %d, want 1714000100", rec.Timestamp)
	}
}

func TestParseDatetime(t *testing.T) {
	t.Parallel()

	t.Run("superwhisper layout", func(t *testing.T) {
		t.Parallel()
		got := parseDatetime("2024-04-24T22:28:20")
		want := time.Date(2024, 4, 24, 22, 28, 20, 0, time.Local)
		if !got.Equal(want) {
			t.Errorf("parseDatetime() = %v, want %v", got, want)
		}
	})

	t.Run("rfc3339", func(t *testing.T) {
		t.Parallel()
		got := parseDatetime("2024-04-24T22:28:20Z")
		if got.IsZero() {
			t.Error("parseDatetime(rfc3339) = zero time")
		}
	})

	t.Run("garbage yields zero time", func(t *testing.T) {
		t.Parallel()
		if got := parseDatetime("yesterday"); !got.IsZero() {
			t.Errorf("parseDatetime(garbage) = %v, want zero", got)
		}
	})
}
