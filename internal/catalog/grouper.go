package catalog

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// titleMaxRunes bounds generated conversation titles.
const titleMaxRunes = 50

// GroupRecordings partitions recordings into conversations. Recordings
// sharing an audio hash are versions of the same conversation; recordings
// without a hash each form a singleton keyed by their timestamp. The result
// is ordered most-recently-updated first. Pure function, no I/O.
func GroupRecordings(recordings []*Recording) []*Conversation {
	groups := make(map[string][]*Recording)
	var order []string
	for _, rec := range recordings {
		id := ConversationID(rec)
		if _, ok := groups[id]; !ok {
			order = append(order, id)
		}
		groups[id] = append(groups[id], rec)
	}

	conversations := make([]*Conversation, 0, len(order))
	for _, id := range order {
		conversations = append(conversations, buildConversation(id, groups[id]))
	}

	// Most recently updated first; conversations with no usable
	// timestamp sort last.
	sort.SliceStable(conversations, func(i, j int) bool {
		return conversations[i].UpdatedAt.After(conversations[j].UpdatedAt)
	})

	return conversations
}

// ConversationID returns the identity key for a recording: its audio hash,
// or the decimal timestamp when no hash is available.
func ConversationID(rec *Recording) string {
	if rec.AudioHash != "" {
		return rec.AudioHash
	}
	return strconv.FormatInt(rec.Timestamp, 10)
}

func buildConversation(id string, recs []*Recording) *Conversation {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Timestamp > recs[j].Timestamp
	})

	versions := make([]*AudioVersion, len(recs))
	for i, rec := range recs {
		versions[i] = &AudioVersion{
			VersionID: strconv.FormatInt(rec.Timestamp, 10),
			Timestamp: rec.Timestamp,
			Recording: rec,
			IsLatest:  i == 0,
		}
	}

	return &Conversation{
		ConversationID: id,
		Title:          GenerateTitle(recs[0]),
		Versions:       versions,
		LatestVersion:  versions[0],
		CreatedAt:      recs[len(recs)-1].CreatedAt,
		UpdatedAt:      recs[0].CreatedAt,
	}
}

// GenerateTitle derives a conversation title from a recording's text,
// preferring preprocessed over raw over LLM-refined text. Titles longer
// than 50 runes are truncated with an ellipsis. Recordings without any
// text fall back to a timestamp-based title.
func GenerateTitle(rec *Recording) string {
	text := strings.TrimSpace(rec.BestText())
	if text != "" {
		runes := []rune(text)
		if len(runes) > titleMaxRunes {
			return string(runes[:titleMaxRunes]) + "..."
		}
		return text
	}

	if !rec.CreatedAt.IsZero() {
		return "Conversation on " + rec.CreatedAt.Format("2006-01-02 15:04:05")
	}
	return fmt.Sprintf("Conversation %d", rec.Timestamp)
}
