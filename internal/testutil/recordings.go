package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

// RecordingFixture describes one timestamped recording directory to write
// under a test recordings tree. Zero-value fields are omitted from the
// metadata document.
type RecordingFixture struct {
	Timestamp int64

	// Audio is the payload of the audio file. Nil means no audio file.
	Audio []byte
	// AudioName overrides the default "output.wav" filename.
	AudioName string

	// NoMetadata skips writing the meta.json file entirely.
	NoMetadata bool
	// RawMetadata, when non-nil, is written verbatim instead of the
	// structured fields below. Useful for malformed documents.
	RawMetadata []byte

	RecordingID       string
	RawResult         string
	Result            string
	LLMResult         string
	Segments          []map[string]any
	Duration          float64
	Language          string
	ModelName         string
	LanguageModelName string
	ModeName          string
	ProcessingTime    int64
	Datetime          string
}

// WriteRecordings builds a SuperWhisper-style recordings tree in a temp
// directory and returns its path.
func WriteRecordings(t *testing.T, fixtures ...RecordingFixture) string {
	t.Helper()

	baseDir := t.TempDir()
	for _, f := range fixtures {
		WriteRecording(t, baseDir, f)
	}
	return baseDir
}

// WriteRecording writes a single recording directory under baseDir.
func WriteRecording(t *testing.T, baseDir string, f RecordingFixture) string {
	t.Helper()

	dir := filepath.Join(baseDir, strconv.FormatInt(f.Timestamp, 10))
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("creating recording dir: %v", err)
	}

	if f.Audio != nil {
		name := f.AudioName
		if name == "" {
			name = "output.wav"
		}
		if err := os.WriteFile(filepath.Join(dir, name), f.Audio, 0644); err != nil {
			t.Fatalf("writing audio file: %v", err)
		}
	}

	if f.NoMetadata {
		return dir
	}

	data := f.RawMetadata
	if data == nil {
		doc := map[string]any{}
		if f.RecordingID != "" {
			doc["recordingId"] = f.RecordingID
		}
		if f.RawResult != "" {
			doc["rawResult"] = f.RawResult
		}
		if f.Result != "" {
			doc["result"] = f.Result
		}
		if f.LLMResult != "" {
			doc["llmResult"] = f.LLMResult
		}
		if f.Segments != nil {
			doc["segments"] = f.Segments
		}
		if f.Duration != 0 {
			doc["duration"] = f.Duration
		}
		if f.Language != "" {
			doc["languageSelected"] = f.Language
		}
		if f.ModelName != "" {
			doc["modelName"] = f.ModelName
		}
		if f.LanguageModelName != "" {
			doc["languageModelName"] = f.LanguageModelName
		}
		if f.ModeName != "" {
			doc["modeName"] = f.ModeName
		}
		if f.ProcessingTime != 0 {
			doc["processingTime"] = f.ProcessingTime
		}
		if f.Datetime != "" {
			doc["datetime"] = f.Datetime
		}

		var err error
		data, err = json.Marshal(doc)
		if err != nil {
			t.Fatalf("marshaling metadata: %v", err)
		}
	}

	if err := os.WriteFile(filepath.Join(dir, "meta.json"), data, 0644); err != nil {
		t.Fatalf("writing metadata file: %v", err)
	}

	return dir
}
