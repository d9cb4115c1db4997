package raffle

import (
	"context"
	"fmt"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/raffleri/raffleri/internal/stream"
	"gorm.io/gorm"
)

func msgsFor(users ...string) []stream.Message {
	out := make([]stream.Message, 0, len(users))
	for i, u := range users {
		id := fmt.Sprintf("m%d", i)
		out = append(out, stream.Message{MessageID: &id, Username: u, CommentText: "x"})
	}
	return out
}

func TestBuildEntriesCapsPerUser(t *testing.T) {
	msgs := msgsFor("alice", "alice", "alice", "alice", "bob")
	entries := BuildEntries(msgs, 3)

	if len(entries) != 2 {
		t.Fatalf("expected 2 participants, got %d", len(entries))
	}
	if entries[0].Username != "alice" || entries[0].Entries != 3 {
		t.Fatalf("expected alice capped at 3, got %+v", entries[0])
	}
	if entries[1].Username != "bob" || entries[1].Entries != 1 {
		t.Fatalf("expected bob with 1, got %+v", entries[1])
	}
}

func TestPickWinnerEmptyPool(t *testing.T) {
	if _, err := PickWinner(nil); err != ErrNoEntries {
		t.Fatalf("expected ErrNoEntries, got %v", err)
	}
}

func TestPickWinnerReturnsMember(t *testing.T) {
	entries := []Entry{
		{Username: "alice", Entries: 5},
		{Username: "bob", Entries: 1},
	}
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		w, err := PickWinner(entries)
		if err != nil {
			t.Fatalf("pick: %v", err)
		}
		if w.Username != "alice" && w.Username != "bob" {
			t.Fatalf("winner %q not in pool", w.Username)
		}
		seen[w.Username] = true
	}
	// 200 draws at 5:1 odds; alice is all but guaranteed to show up.
	if !seen["alice"] {
		t.Fatalf("heavily weighted entry never won across 200 draws")
	}
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&stream.Session{}, &stream.Message{}, &Draw{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestDrawLifecycle(t *testing.T) {
	db := openTestDB(t)
	streams := stream.NewRepo(db)
	svc := NewService(NewRepo(db), streams, 5)
	ctx := context.Background()

	sess, err := streams.GetOrCreateSession(ctx, "chat-a", stream.SessionOpts{})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if err := streams.AppendMessages(ctx, sess.ID, []stream.IncomingMessage{
		{MessageID: "m1", Username: "alice", CommentText: "hi"},
		{MessageID: "m2", Username: "alice", CommentText: "again"},
		{MessageID: "m3", Username: "bob", CommentText: "yo"},
	}); err != nil {
		t.Fatalf("append: %v", err)
	}

	d, created, err := svc.CreateDraw(ctx, nil)
	if err != nil {
		t.Fatalf("create draw: %v", err)
	}
	if !created || d.Status != DrawQueued {
		t.Fatalf("expected a fresh queued draw, got created=%v status=%s", created, d.Status)
	}

	if err := svc.RunDraw(ctx, d.ID); err != nil {
		t.Fatalf("run draw: %v", err)
	}

	got, err := svc.GetDraw(ctx, d.ID)
	if err != nil {
		t.Fatalf("get draw: %v", err)
	}
	if got.Status != DrawSucceeded {
		t.Fatalf("expected succeeded, got %s (error=%v)", got.Status, got.Error)
	}
	if got.WinnerUsername == nil {
		t.Fatalf("expected a winner")
	}
	if got.TotalParticipants != 2 || got.TotalEntries != 3 || got.TotalComments != 3 {
		t.Fatalf("unexpected totals: %+v", got)
	}
}

func TestCreateDrawIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	streams := stream.NewRepo(db)
	svc := NewService(NewRepo(db), streams, 5)
	ctx := context.Background()

	if _, err := streams.GetOrCreateSession(ctx, "chat-a", stream.SessionOpts{}); err != nil {
		t.Fatalf("create session: %v", err)
	}

	key := "client-key-1"
	first, created, err := svc.CreateDraw(ctx, &key)
	if err != nil {
		t.Fatalf("create draw: %v", err)
	}
	if !created {
		t.Fatalf("expected first draw to be created")
	}

	second, created, err := svc.CreateDraw(ctx, &key)
	if err != nil {
		t.Fatalf("create draw again: %v", err)
	}
	if created {
		t.Fatalf("expected key reuse to return the existing draw")
	}
	if second.ID != first.ID {
		t.Fatalf("expected same draw id, got %s and %s", first.ID, second.ID)
	}
}

func TestRunDrawWithNoMessagesFails(t *testing.T) {
	db := openTestDB(t)
	streams := stream.NewRepo(db)
	svc := NewService(NewRepo(db), streams, 5)
	ctx := context.Background()

	if _, err := streams.GetOrCreateSession(ctx, "chat-a", stream.SessionOpts{}); err != nil {
		t.Fatalf("create session: %v", err)
	}

	d, _, err := svc.CreateDraw(ctx, nil)
	if err != nil {
		t.Fatalf("create draw: %v", err)
	}
	if err := svc.RunDraw(ctx, d.ID); err == nil {
		t.Fatalf("expected empty-pool draw to fail")
	}

	got, err := svc.GetDraw(ctx, d.ID)
	if err != nil {
		t.Fatalf("get draw: %v", err)
	}
	if got.Status != DrawFailed || got.Error == nil {
		t.Fatalf("expected failed draw with error, got %+v", got)
	}
}
