package chat

import (
	"fmt"
	"sync"
	"testing"
)

func TestStore_AppendAndAll(t *testing.T) {
	s := NewStore()

	for i := 0; i < 5; i++ {
		s.Append(22, ReplyRecord{Text: fmt.Sprintf("reply %d", i), ReceivedAt: int64(i + 1)})
	}

	all := s.All(22)
	if len(all) != 5 {
		t.Fatalf("All returned %d records, want 5", len(all))
	}
	for i, rec := range all {
		want := fmt.Sprintf("reply %d", i)
		if rec.Text != want {
			t.Errorf("All[%d].Text = %q, want %q", i, rec.Text, want)
		}
	}
}

func TestStore_LatestMatchesTail(t *testing.T) {
	s := NewStore()

	if _, ok := s.Latest(7); ok {
		t.Fatal("Latest on unknown topic returned ok=true")
	}

	s.Append(7, ReplyRecord{Text: "first", ReceivedAt: 1})
	s.Append(7, ReplyRecord{Text: "second", ReceivedAt: 2})

	latest, ok := s.Latest(7)
	if !ok {
		t.Fatal("Latest returned ok=false after appends")
	}
	all := s.All(7)
	if latest != all[len(all)-1] {
		t.Errorf("Latest = %+v, want tail of All %+v", latest, all[len(all)-1])
	}
}

func TestStore_TopicsAreIsolated(t *testing.T) {
	s := NewStore()
	s.Append(1, ReplyRecord{Text: "topic one"})
	s.Append(2, ReplyRecord{Text: "topic two"})

	if got := len(s.All(1)); got != 1 {
		t.Errorf("topic 1 has %d records, want 1", got)
	}
	latest, _ := s.Latest(2)
	if latest.Text != "topic two" {
		t.Errorf("topic 2 latest = %q, want %q", latest.Text, "topic two")
	}
}

func TestStore_Clear(t *testing.T) {
	s := NewStore()
	s.Append(9, ReplyRecord{Text: "stale"})
	s.Clear(9)

	if _, ok := s.Latest(9); ok {
		t.Error("Latest returned ok=true after Clear")
	}
	if got := len(s.All(9)); got != 0 {
		t.Errorf("All returned %d records after Clear, want 0", got)
	}
}

func TestStore_AllReturnsCopy(t *testing.T) {
	s := NewStore()
	s.Append(3, ReplyRecord{Text: "original"})

	all := s.All(3)
	all[0].Text = "mutated"

	latest, _ := s.Latest(3)
	if latest.Text != "original" {
		t.Errorf("store record mutated through All copy: %q", latest.Text)
	}
}

func TestStore_ConcurrentAppendAndRead(t *testing.T) {
	s := NewStore()

	const writers = 8
	const perWriter = 50

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				s.Append(int64(w), ReplyRecord{Text: fmt.Sprintf("w%d-%d", w, i), ReceivedAt: int64(i)})
				s.Latest(int64(w))
				s.All(int64(w))
			}
		}(w)
	}
	wg.Wait()

	for w := 0; w < writers; w++ {
		if got := len(s.All(int64(w))); got != perWriter {
			t.Errorf("topic %d has %d records, want %d", w, got, perWriter)
		}
	}
}
