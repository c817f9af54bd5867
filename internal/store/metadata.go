package store

import (
	"encoding/json"
	"os"
	"time"
)

// metaDocument mirrors the fields swcat reads from a SuperWhisper
// meta.json. Unknown fields are ignored.
type metaDocument struct {
	RecordingID       string        `json:"recordingId"`
	ID                string        `json:"id"` // legacy name for recordingId
	RawResult         string        `json:"rawResult"`
	Result            string        `json:"result"`
	LLMResult         string        `json:"llmResult"`
	Segments          []metaSegment `json:"segments"`
	Duration          float64       `json:"duration"`
	LanguageSelected  string        `json:"languageSelected"`
	ModelName         string        `json:"modelName"`
	LanguageModelName string        `json:"languageModelName"`
	ModeName          string        `json:"modeName"`
	ProcessingTime    int64         `json:"processingTime"`
	Datetime          string        `json:"datetime"`
}

type metaSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// recordingID returns the external ID, preferring the current field name.
func (m *metaDocument) recordingID() string {
	if m.RecordingID != "" {
		return m.RecordingID
	}
	return m.ID
}

// readMetadata parses a metadata file. Malformed JSON or an unreadable
// file yields nil: metadata is treated as absent, never as a scan error.
func readMetadata(path string) *metaDocument {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var doc metaDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil
	}
	return &doc
}

// Layouts SuperWhisper has been observed writing into the datetime field.
var datetimeLayouts = []string{
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
}

// parseDatetime parses the metadata creation datetime. Returns the zero
// time when the value is missing or unparseable.
func parseDatetime(value string) time.Time {
	for _, layout := range datetimeLayouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t
		}
	}
	return time.Time{}
}
