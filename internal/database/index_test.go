package database

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"swcat/internal/catalog"
)

func indexRow(convID, versionID string, ts int64, title, raw string) *catalog.IndexRow {
	return &catalog.IndexRow{
		ConversationID:   convID,
		VersionID:        versionID,
		Timestamp:        ts,
		Title:            title,
		RawTranscription: raw,
		CreatedAt:        time.Unix(ts, 0).UTC(),
		IsLatest:         true,
	}
}

func TestSearchIndex_Upsert(t *testing.T) {
	t.Parallel()

	index := newTestDB(t).Index()

	row := indexRow("c1", "100", 100, "first title", "some words")
	if err := index.Upsert(row); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	// Same key again with new text replaces instead of duplicating.
	row.Title = "revised title"
	if err := index.Upsert(row); err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}

	rows, err := index.GetByConversationID("c1")
	if err != nil {
		t.Fatalf("GetByConversationID() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1", len(rows))
	}
	if rows[0].Title != "revised title" {
		t.Errorf("Title = %q, want %q", rows[0].Title, "revised title")
	}
}

func TestSearchIndex_UpdateLatestFlags(t *testing.T) {
	t.Parallel()

	t.Run("exactly one latest", func(t *testing.T) {
		t.Parallel()

		index := newTestDB(t).Index()

		for _, ts := range []int64{100, 300, 200} {
			row := indexRow("c1", fmt.Sprint(ts), ts, "t", "r")
			row.IsLatest = false
			if err := index.Upsert(row); err != nil {
				t.Fatalf("Upsert() error = %v", err)
			}
		}

		if err := index.UpdateLatestFlags("c1"); err != nil {
			t.Fatalf("UpdateLatestFlags() error = %v", err)
		}

		rows, err := index.GetByConversationID("c1")
		if err != nil {
			t.Fatalf("GetByConversationID() error = %v", err)
		}

		var latest []string
		for _, row := range rows {
			if row.IsLatest {
				latest = append(latest, row.VersionID)
			}
		}
		if len(latest) != 1 || latest[0] != "300" {
			t.Errorf("latest versions = %v, want [300]", latest)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		t.Parallel()

		index := newTestDB(t).Index()
		for _, ts := range []int64{100, 200} {
			if err := index.Upsert(indexRow("c1", fmt.Sprint(ts), ts, "t", "r")); err != nil {
				t.Fatalf("Upsert() error = %v", err)
			}
		}

		for i := 0; i < 3; i++ {
			if err := index.UpdateLatestFlags("c1"); err != nil {
				t.Fatalf("UpdateLatestFlags() #%d error = %v", i, err)
			}
		}

		rows, _ := index.GetByConversationID("c1")
		count := 0
		for _, row := range rows {
			if row.IsLatest {
				count++
			}
		}
		if count != 1 {
			t.Errorf("latest count = %d, want 1", count)
		}
	})

	t.Run("does not touch other conversations", func(t *testing.T) {
		t.Parallel()

		index := newTestDB(t).Index()
		if err := index.Upsert(indexRow("c1", "100", 100, "t", "r")); err != nil {
			t.Fatal(err)
		}
		if err := index.Upsert(indexRow("c2", "200", 200, "t", "r")); err != nil {
			t.Fatal(err)
		}

		if err := index.UpdateLatestFlags("c1"); err != nil {
			t.Fatalf("UpdateLatestFlags() error = %v", err)
		}

		rows, _ := index.GetByConversationID("c2")
		if len(rows) != 1 || !rows[0].IsLatest {
			t.Error("c2 latest flag was disturbed")
		}
	})
}

func TestSearchIndex_GetPaginated(t *testing.T) {
	t.Parallel()

	index := newTestDB(t).Index()

	// Five conversations, each with a latest and an older version.
	for i := 1; i <= 5; i++ {
		conv := fmt.Sprintf("c%d", i)
		old := indexRow(conv, fmt.Sprint(i*100), int64(i*100), "old", "r")
		old.IsLatest = false
		if err := index.Upsert(old); err != nil {
			t.Fatal(err)
		}
		if err := index.Upsert(indexRow(conv, fmt.Sprint(i*100+1), int64(i*100+1), "new", "r")); err != nil {
			t.Fatal(err)
		}
	}

	t.Run("first page newest first", func(t *testing.T) {
		t.Parallel()

		rows, total, err := index.GetPaginated(1, 2)
		if err != nil {
			t.Fatalf("GetPaginated() error = %v", err)
		}
		if total != 5 {
			t.Errorf("total = %d, want 5", total)
		}
		if len(rows) != 2 {
			t.Fatalf("len(rows) = %d, want 2", len(rows))
		}
		if rows[0].ConversationID != "c5" || rows[1].ConversationID != "c4" {
			t.Errorf("page 1 = %s,%s want c5,c4", rows[0].ConversationID, rows[1].ConversationID)
		}
		for _, row := range rows {
			if !row.IsLatest {
				t.Errorf("row %s/%s not latest", row.ConversationID, row.VersionID)
			}
		}
	})

	t.Run("pages are disjoint", func(t *testing.T) {
		t.Parallel()

		seen := map[string]bool{}
		for page := 1; page <= 3; page++ {
			rows, _, err := index.GetPaginated(page, 2)
			if err != nil {
				t.Fatalf("GetPaginated(%d) error = %v", page, err)
			}
			for _, row := range rows {
				if seen[row.ConversationID] {
					t.Errorf("conversation %s appeared on two pages", row.ConversationID)
				}
				seen[row.ConversationID] = true
			}
		}
		if len(seen) != 5 {
			t.Errorf("saw %d conversations across pages, want 5", len(seen))
		}
	})

	t.Run("page past the end is empty with true total", func(t *testing.T) {
		t.Parallel()

		rows, total, err := index.GetPaginated(99, 2)
		if err != nil {
			t.Fatalf("GetPaginated() error = %v", err)
		}
		if len(rows) != 0 {
			t.Errorf("len(rows) = %d, want 0", len(rows))
		}
		if total != 5 {
			t.Errorf("total = %d, want 5", total)
		}
	})
}

func TestSearchIndex_Search(t *testing.T) {
	t.Parallel()

	seed := func(t *testing.T) *SearchIndex {
		t.Helper()
		index := newTestDB(t).Index()
		rows := []*catalog.IndexRow{
			indexRow("c1", "100", 100, "grocery list", "buy milk and apples at the market"),
			indexRow("c2", "200", 200, "meeting notes", "discuss the quarterly roadmap with milk tea"),
			indexRow("c3", "300", 300, "standup", "nothing to report today"),
		}
		for _, row := range rows {
			if err := index.Upsert(row); err != nil {
				t.Fatal(err)
			}
		}
		return index
	}

	t.Run("single word matches title and transcription", func(t *testing.T) {
		t.Parallel()

		index := seed(t)
		hits, total, err := index.Search("milk", 1, 30)
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if total != 2 {
			t.Errorf("total = %d, want 2", total)
		}
		if len(hits) != 2 {
			t.Fatalf("len(hits) = %d, want 2", len(hits))
		}
	})

	t.Run("snippets highlight matches", func(t *testing.T) {
		t.Parallel()

		index := seed(t)
		hits, _, err := index.Search("apples", 1, 30)
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if len(hits) != 1 {
			t.Fatalf("len(hits) = %d, want 1", len(hits))
		}
		if len(hits[0].Snippets) == 0 {
			t.Fatal("hit carries no snippets")
		}
		for _, sn := range hits[0].Snippets {
			if !strings.Contains(sn, "<mark>") {
				t.Errorf("snippet %q lacks highlight", sn)
			}
		}
	})

	t.Run("multi-word query matches as a phrase", func(t *testing.T) {
		t.Parallel()

		index := seed(t)
		// "milk tea" appears as a phrase only in c2; c1 has "milk" alone.
		hits, total, err := index.Search("milk tea", 1, 30)
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if total != 1 {
			t.Errorf("total = %d, want 1", total)
		}
		if len(hits) != 1 || hits[0].ConversationID != "c2" {
			t.Fatalf("hits = %+v, want only c2", hits)
		}
	})

	t.Run("no matches", func(t *testing.T) {
		t.Parallel()

		index := seed(t)
		hits, total, err := index.Search("zebra", 1, 30)
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if total != 0 || len(hits) != 0 {
			t.Errorf("got %d hits (total %d), want none", len(hits), total)
		}
	})

	t.Run("fts operators in input are neutralized", func(t *testing.T) {
		t.Parallel()

		index := seed(t)
		for _, q := range []string{`milk"`, "milk OR", "NEAR(milk)", "milk*", `a"b`} {
			if _, _, err := index.Search(q, 1, 30); err != nil {
				t.Errorf("Search(%q) error = %v, want query treated as literal text", q, err)
			}
		}
	})
}

func TestBuildFTSQuery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		query string
		want  string
	}{
		{"milk", "raw_transcription:milk OR title:milk"},
		{"milk tea", `raw_transcription:"milk tea" OR title:"milk tea"`},
		{`say "hi"`, `raw_transcription:"say ""hi""" OR title:"say ""hi"""`},
		{"c++", `raw_transcription:"c++" OR title:"c++"`},
	}
	for _, tt := range tests {
		if got := buildFTSQuery(tt.query); got != tt.want {
			t.Errorf("buildFTSQuery(%q) = %q, want %q", tt.query, got, tt.want)
		}
	}
}

func TestSearchIndex_Counts(t *testing.T) {
	t.Parallel()

	index := newTestDB(t).Index()

	if err := index.Upsert(indexRow("c1", "100", 100, "t", "r")); err != nil {
		t.Fatal(err)
	}
	if err := index.Upsert(indexRow("c1", "200", 200, "t", "r")); err != nil {
		t.Fatal(err)
	}
	if err := index.Upsert(indexRow("c2", "300", 300, "t", "r")); err != nil {
		t.Fatal(err)
	}

	// GetCount counts conversations, not rows.
	count, err := index.GetCount()
	if err != nil {
		t.Fatalf("GetCount() error = %v", err)
	}
	if count != 2 {
		t.Errorf("GetCount() = %d, want 2", count)
	}

	if err := index.DeleteByConversationID("c1"); err != nil {
		t.Fatalf("DeleteByConversationID() error = %v", err)
	}
	if count, _ = index.GetCount(); count != 1 {
		t.Errorf("GetCount() after delete = %d, want 1", count)
	}

	if err := index.ClearAll(); err != nil {
		t.Fatalf("ClearAll() error = %v", err)
	}
	if count, _ = index.GetCount(); count != 0 {
		t.Errorf("GetCount() after clear = %d, want 0", count)
	}
}
