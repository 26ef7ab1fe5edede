package storage

import (
	"errors"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMigrationsAreIdempotent(t *testing.T) {
	s := openTestStore(t)
	if err := s.migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}

	var n int
	if err := s.DB().QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&n); err != nil {
		t.Fatalf("counting schema_version: %v", err)
	}
	if n != 1 {
		t.Errorf("schema_version rows = %d, want 1", n)
	}
}

func TestCreateAndGetCard(t *testing.T) {
	s := openTestStore(t)

	created, err := s.CreateCard("Fix login bug", "Session expires too early", "todo")
	if err != nil {
		t.Fatalf("CreateCard: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("CreateCard returned zero ID")
	}

	got, err := s.GetCard(created.ID)
	if err != nil {
		t.Fatalf("GetCard: %v", err)
	}
	if got.Title != "Fix login bug" || got.Description != "Session expires too early" || got.Column != "todo" {
		t.Errorf("GetCard = %+v", got)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps not set")
	}
}

func TestGetCard_NotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetCard(999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListCards_OrderedByID(t *testing.T) {
	s := openTestStore(t)
	for _, title := range []string{"first", "second", "third"} {
		if _, err := s.CreateCard(title, "", "todo"); err != nil {
			t.Fatalf("CreateCard: %v", err)
		}
	}

	cards, err := s.ListCards()
	if err != nil {
		t.Fatalf("ListCards: %v", err)
	}
	if len(cards) != 3 {
		t.Fatalf("len = %d, want 3", len(cards))
	}
	if cards[0].Title != "first" || cards[2].Title != "third" {
		t.Errorf("cards out of order: %v, %v", cards[0].Title, cards[2].Title)
	}
}

func TestListCardsByColumn(t *testing.T) {
	s := openTestStore(t)
	s.CreateCard("a", "", "todo")
	s.CreateCard("b", "", "done")
	s.CreateCard("c", "", "done")

	done, err := s.ListCardsByColumn("done")
	if err != nil {
		t.Fatalf("ListCardsByColumn: %v", err)
	}
	if len(done) != 2 {
		t.Fatalf("len = %d, want 2", len(done))
	}
	for _, c := range done {
		if c.Column != "done" {
			t.Errorf("card %d in column %q", c.ID, c.Column)
		}
	}
}

func TestSearchCards_CaseInsensitive(t *testing.T) {
	s := openTestStore(t)
	s.CreateCard("Deploy API", "", "todo")
	s.CreateCard("Write docs", "covers the API surface", "in-progress")
	s.CreateCard("Grocery run", "", "done")

	hits, err := s.SearchCards("api")
	if err != nil {
		t.Fatalf("SearchCards: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("len = %d, want 2 (title and description matches)", len(hits))
	}
}

func TestUpdateCard_PartialFields(t *testing.T) {
	s := openTestStore(t)
	created, _ := s.CreateCard("original", "desc", "todo")

	col := "in-progress"
	updated, err := s.UpdateCard(created.ID, CardUpdate{Column: &col})
	if err != nil {
		t.Fatalf("UpdateCard: %v", err)
	}
	if updated.Column != "in-progress" {
		t.Errorf("Column = %q, want in-progress", updated.Column)
	}
	if updated.Title != "original" || updated.Description != "desc" {
		t.Errorf("untouched fields changed: %+v", updated)
	}

	got, _ := s.GetCard(created.ID)
	if got.Column != "in-progress" {
		t.Errorf("persisted Column = %q, want in-progress", got.Column)
	}
}

func TestUpdateCard_NotFound(t *testing.T) {
	s := openTestStore(t)
	title := "x"
	if _, err := s.UpdateCard(42, CardUpdate{Title: &title}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteCard_ReturnsDeleted(t *testing.T) {
	s := openTestStore(t)
	created, _ := s.CreateCard("doomed", "", "todo")

	deleted, err := s.DeleteCard(created.ID)
	if err != nil {
		t.Fatalf("DeleteCard: %v", err)
	}
	if deleted.Title != "doomed" {
		t.Errorf("deleted.Title = %q, want doomed", deleted.Title)
	}
	if _, err := s.GetCard(created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("card still present after delete: err = %v", err)
	}
}

func TestBoardStats(t *testing.T) {
	s := openTestStore(t)
	s.CreateCard("a", "", "todo")
	s.CreateCard("b", "", "todo")
	s.CreateCard("c", "", "done")

	stats, err := s.BoardStats()
	if err != nil {
		t.Fatalf("BoardStats: %v", err)
	}
	if stats["todo"] != 2 || stats["in-progress"] != 0 || stats["done"] != 1 {
		t.Errorf("stats = %v", stats)
	}
	if stats["total"] != 3 {
		t.Errorf("total = %d, want 3", stats["total"])
	}
}

func TestTranscriptRoundTrip(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	entries := []TranscriptEntry{
		{ID: "t-1", TopicID: 22, UserID: 865, Role: "user", Text: "move card 3", CreatedAt: base},
		{ID: "t-2", TopicID: 22, Role: "assistant", Text: "Done.", CreatedAt: base.Add(time.Second)},
		{ID: "t-3", TopicID: 99, Role: "user", Text: "other topic", CreatedAt: base},
	}
	for _, e := range entries {
		if err := s.AppendTranscript(e); err != nil {
			t.Fatalf("AppendTranscript(%s): %v", e.ID, err)
		}
	}

	got, err := s.ListTranscript(22, 50)
	if err != nil {
		t.Fatalf("ListTranscript: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2 (topic filter)", len(got))
	}
	if got[0].ID != "t-1" || got[1].ID != "t-2" {
		t.Errorf("order = %s, %s; want chronological t-1, t-2", got[0].ID, got[1].ID)
	}
	if got[0].Role != "user" || got[1].Role != "assistant" {
		t.Errorf("roles = %s, %s", got[0].Role, got[1].Role)
	}
}

func TestListTranscript_LimitKeepsNewest(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		e := TranscriptEntry{
			ID:        string(rune('a' + i)),
			TopicID:   1,
			Role:      "user",
			Text:      "msg",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := s.AppendTranscript(e); err != nil {
			t.Fatalf("AppendTranscript: %v", err)
		}
	}

	got, err := s.ListTranscript(1, 2)
	if err != nil {
		t.Fatalf("ListTranscript: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != "d" || got[1].ID != "e" {
		t.Errorf("kept %s, %s; want the two newest d, e", got[0].ID, got[1].ID)
	}
}

func TestPurgeTranscripts(t *testing.T) {
	s := openTestStore(t)
	s.AppendTranscript(TranscriptEntry{ID: "t-1", TopicID: 1, Role: "user", Text: "hi"})
	s.AppendTranscript(TranscriptEntry{ID: "t-2", TopicID: 2, Role: "assistant", Text: "yo"})

	n, err := s.PurgeTranscripts()
	if err != nil {
		t.Fatalf("PurgeTranscripts: %v", err)
	}
	if n != 2 {
		t.Errorf("purged %d, want 2", n)
	}

	left, _ := s.ListTranscript(1, 10)
	if len(left) != 0 {
		t.Errorf("entries remain after purge: %d", len(left))
	}
}
