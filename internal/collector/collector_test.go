package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/raffleri/raffleri/internal/stream"
	"gorm.io/gorm"
)

func openTestRepo(t *testing.T) *stream.Repo {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&stream.Session{}, &stream.Message{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return stream.NewRepo(db)
}

type fetchCall struct {
	liveChatID string
	pageToken  string
}

type fetchResp struct {
	msgs   []stream.IncomingMessage
	next   string
	millis int
	err    error
}

// fakeFetcher replays a script of responses; the last entry repeats
// once the script is exhausted. Every call is also pushed onto callCh
// so tests can wait for ticks instead of sleeping blindly.
type fakeFetcher struct {
	mu     sync.Mutex
	calls  []fetchCall
	script []fetchResp
	callCh chan fetchCall
}

func newFakeFetcher(script ...fetchResp) *fakeFetcher {
	if len(script) == 0 {
		script = []fetchResp{{millis: 1000}}
	}
	return &fakeFetcher{script: script, callCh: make(chan fetchCall, 64)}
}

func (f *fakeFetcher) FetchLiveChatPage(ctx context.Context, liveChatID, pageToken string) ([]stream.IncomingMessage, string, int, error) {
	call := fetchCall{liveChatID: liveChatID, pageToken: pageToken}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	r := f.script[0]
	if len(f.script) > 1 {
		f.script = f.script[1:]
	}
	f.mu.Unlock()

	select {
	case f.callCh <- call:
	default:
	}
	return r.msgs, r.next, r.millis, r.err
}

func (f *fakeFetcher) callsFor(liveChatID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.liveChatID == liveChatID {
			n++
		}
	}
	return n
}

func waitCall(t *testing.T, f *fakeFetcher) fetchCall {
	t.Helper()
	select {
	case c := <-f.callCh:
		return c
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for a fetch call")
		return fetchCall{}
	}
}

func waitStatus(t *testing.T, c *Collector, pred func(Status) bool) Status {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		st := c.Status()
		if pred(st) {
			return st
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for status, last=%+v", c.Status())
	return Status{}
}

func TestStartSwitchStopsPreviousTask(t *testing.T) {
	repo := openTestRepo(t)
	f := newFakeFetcher()
	c := New(repo, f)
	defer c.Stop()

	c.Start("chat-a")
	waitCall(t, f)

	// Start for a different chat fully joins the old task first.
	c.Start("chat-b")
	callsForA := f.callsFor("chat-a")

	got := waitCall(t, f)
	for got.liveChatID != "chat-b" {
		got = waitCall(t, f)
	}

	time.Sleep(1500 * time.Millisecond)
	if n := f.callsFor("chat-a"); n != callsForA {
		t.Fatalf("old task still fetching: chat-a calls went %d -> %d", callsForA, n)
	}

	st := c.Status()
	if !st.Collecting || st.LiveChatID != "chat-b" {
		t.Fatalf("expected collecting chat-b, got %+v", st)
	}
}

func TestStartSameChatIsNoop(t *testing.T) {
	repo := openTestRepo(t)
	// A huge suggested interval (clamped to the 2s cap) keeps the first
	// task asleep, so any second fetch call can only come from a
	// wrongly spawned duplicate task.
	f := newFakeFetcher(fetchResp{millis: 10000})
	c := New(repo, f)
	defer c.Stop()

	c.Start("chat-a")
	waitCall(t, f)

	c.Start("chat-a")

	time.Sleep(1 * time.Second)
	if n := f.callsFor("chat-a"); n != 1 {
		t.Fatalf("expected 1 fetch call, got %d (duplicate task spawned)", n)
	}

	st := c.Status()
	if !st.Collecting || st.LiveChatID != "chat-a" {
		t.Fatalf("expected collecting chat-a, got %+v", st)
	}
}

func TestResumeFromStoredCursor(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	sess, err := repo.GetOrCreateSession(ctx, "chat-a", stream.SessionOpts{})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if err := repo.UpdateSessionProgress(ctx, sess, "T", 0); err != nil {
		t.Fatalf("store cursor: %v", err)
	}

	f := newFakeFetcher()
	c := New(repo, f)
	defer c.Stop()

	c.Start("chat-a")
	got := waitCall(t, f)
	if got.pageToken != "T" {
		t.Fatalf("expected first fetch to resume from cursor T, got %q", got.pageToken)
	}
}

func TestFetchErrorIsRecoverable(t *testing.T) {
	repo := openTestRepo(t)
	f := newFakeFetcher(
		fetchResp{err: errors.New("upstream 503")},
		fetchResp{millis: 1000},
	)
	c := New(repo, f)
	defer c.Stop()

	c.Start("chat-a")

	st := waitStatus(t, c, func(s Status) bool { return s.LastError != "" })
	if !st.Collecting {
		t.Fatalf("task died on a transient error: %+v", st)
	}
	if st.LastError != "upstream 503" {
		t.Fatalf("unexpected last_error: %q", st.LastError)
	}

	// Next tick succeeds and clears the sticky error.
	st = waitStatus(t, c, func(s Status) bool { return s.LastError == "" })
	if !st.Collecting || st.LiveChatID != "chat-a" {
		t.Fatalf("expected still collecting chat-a, got %+v", st)
	}
}

func TestClampPollInterval(t *testing.T) {
	cases := []struct {
		millis int
		want   time.Duration
	}{
		{50, 500 * time.Millisecond},
		{500, 500 * time.Millisecond},
		{1000, 1 * time.Second},
		{2000, 2 * time.Second},
		{10000, 2 * time.Second},
		{0, 500 * time.Millisecond},
	}
	for _, tc := range cases {
		if got := clampPollInterval(tc.millis); got != tc.want {
			t.Fatalf("clampPollInterval(%d) = %v, want %v", tc.millis, got, tc.want)
		}
	}
}

func TestTwoTickScenario(t *testing.T) {
	repo := openTestRepo(t)
	f := newFakeFetcher(
		fetchResp{
			msgs:   []stream.IncomingMessage{{MessageID: "m1", Username: "alice", CommentText: "hi"}},
			next:   "c1",
			millis: 1000,
		},
		// end-of-stream: empty page, same cursor
		fetchResp{next: "c1", millis: 1000},
	)
	c := New(repo, f)
	defer c.Stop()

	c.Start("chat-a")
	waitCall(t, f)
	second := waitCall(t, f)
	if second.pageToken != "c1" {
		t.Fatalf("expected second fetch with cursor c1, got %q", second.pageToken)
	}

	ctx := context.Background()
	sess := waitSession(t, repo, "chat-a")

	deadline := time.Now().Add(5 * time.Second)
	for {
		n, err := repo.CountMessages(ctx, sess.ID)
		if err != nil {
			t.Fatalf("count: %v", err)
		}
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected 1 stored message, got %d", n)
		}
		time.Sleep(25 * time.Millisecond)
	}

	got, err := repo.GetSessionByLiveChatID(ctx, "chat-a")
	if err != nil {
		t.Fatalf("reload session: %v", err)
	}
	if got.NextPageToken == nil || *got.NextPageToken != "c1" {
		t.Fatalf("expected cursor c1, got %v", got.NextPageToken)
	}

	st := c.Status()
	if !st.Collecting || st.LastError != "" {
		t.Fatalf("expected healthy collecting status, got %+v", st)
	}
}

func waitSession(t *testing.T, repo *stream.Repo, liveChatID string) *stream.Session {
	t.Helper()
	ctx := context.Background()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		s, err := repo.GetSessionByLiveChatID(ctx, liveChatID)
		if err == nil {
			return s
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatalf("session %q never created", liveChatID)
	return nil
}
