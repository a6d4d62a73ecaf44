package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
)

func newTestStore(t *testing.T) *DB {
	t.Helper()
	gdb, err := OpenSQLite(filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	s, err := NewDB(gdb)
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	return s
}

func TestConfigDefaultsWhenAbsent(t *testing.T) {
	s := newTestStore(t)
	cfg, err := s.Config(context.Background(), "!room:example.org")
	if err != nil {
		t.Fatalf("Config() error = %v", err)
	}
	if cfg.RoomID != "!room:example.org" {
		t.Fatalf("RoomID = %q", cfg.RoomID)
	}
	if cfg.SystemMessage != "" || cfg.ForceSystemMessage || cfg.HistoryFloor != 0 {
		t.Fatalf("Config() = %+v, want zero defaults", cfg)
	}
}

func TestSetConfigPartialUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	room := "!room:example.org"

	msg := "You are a pirate."
	if _, err := s.SetConfig(ctx, room, ConfigUpdate{SystemMessage: &msg}); err != nil {
		t.Fatalf("SetConfig() error = %v", err)
	}

	be := "openai"
	cfg, err := s.SetConfig(ctx, room, ConfigUpdate{Backend: &be})
	if err != nil {
		t.Fatalf("SetConfig() error = %v", err)
	}
	if cfg.SystemMessage != msg {
		t.Fatalf("SystemMessage = %q, want prior value preserved", cfg.SystemMessage)
	}
	if cfg.Backend != "openai" {
		t.Fatalf("Backend = %q", cfg.Backend)
	}
}

func TestAppendMessageSequenceIsStrictlyIncreasing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	room := "!room:example.org"

	var last int64
	for i := 0; i < 5; i++ {
		rec, err := s.AppendMessage(ctx, room, "@user:example.org", "user", fmt.Sprintf("msg %d", i))
		if err != nil {
			t.Fatalf("AppendMessage() error = %v", err)
		}
		if rec.Seq <= last {
			t.Fatalf("Seq = %d after %d, want strictly increasing", rec.Seq, last)
		}
		last = rec.Seq
	}
}

func TestAppendMessageOrderingUnderConcurrentRooms(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		room := fmt.Sprintf("!room%d:example.org", r)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				if _, err := s.AppendMessage(ctx, room, "@user:example.org", "user", "hello"); err != nil {
					t.Errorf("AppendMessage(%s) error = %v", room, err)
					return
				}
			}
		}()
	}
	wg.Wait()

	for r := 0; r < 4; r++ {
		room := fmt.Sprintf("!room%d:example.org", r)
		records, err := s.RecentMessages(ctx, room, 100)
		if err != nil {
			t.Fatalf("RecentMessages() error = %v", err)
		}
		if len(records) != 10 {
			t.Fatalf("len(records) = %d, want 10", len(records))
		}
		for i := 1; i < len(records); i++ {
			if records[i].Seq <= records[i-1].Seq {
				t.Fatalf("room %s: seq %d follows %d, want strictly increasing", room, records[i].Seq, records[i-1].Seq)
			}
		}
	}
}

func TestRecentMessagesLimitAndOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	room := "!room:example.org"

	for i := 0; i < 25; i++ {
		if _, err := s.AppendMessage(ctx, room, "@user:example.org", "user", fmt.Sprintf("msg %d", i)); err != nil {
			t.Fatalf("AppendMessage() error = %v", err)
		}
	}

	records, err := s.RecentMessages(ctx, room, 20)
	if err != nil {
		t.Fatalf("RecentMessages() error = %v", err)
	}
	if len(records) != 20 {
		t.Fatalf("len(records) = %d, want 20", len(records))
	}
	if records[0].Body != "msg 5" {
		t.Fatalf("oldest kept = %q, want %q", records[0].Body, "msg 5")
	}
	if records[19].Body != "msg 24" {
		t.Fatalf("newest = %q, want %q", records[19].Body, "msg 24")
	}
}

func TestRecentMessagesRespectsHistoryFloor(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	room := "!room:example.org"

	var floor int64
	for i := 0; i < 6; i++ {
		rec, err := s.AppendMessage(ctx, room, "@user:example.org", "user", fmt.Sprintf("msg %d", i))
		if err != nil {
			t.Fatalf("AppendMessage() error = %v", err)
		}
		if i == 2 {
			floor = rec.Seq
		}
	}
	if _, err := s.SetConfig(ctx, room, ConfigUpdate{HistoryFloor: &floor}); err != nil {
		t.Fatalf("SetConfig() error = %v", err)
	}

	records, err := s.RecentMessages(ctx, room, 100)
	if err != nil {
		t.Fatalf("RecentMessages() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("len(records) = %d, want 3 (above floor)", len(records))
	}
	if records[0].Body != "msg 3" {
		t.Fatalf("first = %q, want %q", records[0].Body, "msg 3")
	}
}

func TestUsageTotals(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	room := "!room:example.org"

	total, err := s.AddUsage(ctx, room, "openai", 100)
	if err != nil {
		t.Fatalf("AddUsage() error = %v", err)
	}
	if total != 100 {
		t.Fatalf("total = %d, want 100", total)
	}

	total, err = s.AddUsage(ctx, room, "openai", 150)
	if err != nil {
		t.Fatalf("AddUsage() error = %v", err)
	}
	if total != 250 {
		t.Fatalf("total = %d, want 250", total)
	}

	other, err := s.TotalUsage(ctx, "!other:example.org")
	if err != nil {
		t.Fatalf("TotalUsage() error = %v", err)
	}
	if other != 0 {
		t.Fatalf("other room total = %d, want 0", other)
	}
}
