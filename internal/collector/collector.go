package collector

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/raffleri/raffleri/internal/stream"
)

// Fetcher returns one page of live chat messages, the next pagination
// token (may be empty) and the server-suggested polling interval in
// milliseconds. Safe to call repeatedly with the same token; dedup
// happens downstream in the store.
type Fetcher interface {
	FetchLiveChatPage(ctx context.Context, liveChatID, pageToken string) ([]stream.IncomingMessage, string, int, error)
}

// Status is a snapshot of the collector's control state. LastError is
// sticky: it holds the most recent failed tick's error and is cleared
// by the next successful tick.
type Status struct {
	Collecting bool   `json:"collecting"`
	LiveChatID string `json:"live_chat_id,omitempty"`
	LastError  string `json:"last_error,omitempty"`
}

const (
	minPollInterval = 500 * time.Millisecond
	maxPollInterval = 2 * time.Second

	// suggested interval used for a tick that failed, before clamping
	errorPollMillis   = 5000
	defaultPollMillis = 1000

	stopTimeout = 2 * time.Second
)

// Collector runs at most one background polling task per process,
// keeping the message store in sync with the upstream feed for exactly
// one live chat id at a time.
type Collector struct {
	repo    *stream.Repo
	fetcher Fetcher

	// ctrlMu serializes Start/Stop so two racing Start calls cannot
	// each spawn a task. It is never taken by the polling task itself,
	// so holding it across the bounded join cannot deadlock.
	ctrlMu sync.Mutex

	mu     sync.Mutex
	state  Status
	stopCh chan struct{}
	doneCh chan struct{}
}

func New(repo *stream.Repo, fetcher Fetcher) *Collector {
	return &Collector{repo: repo, fetcher: fetcher}
}

// Start begins collecting for liveChatID. Calling it again with the
// same id while already collecting is a no-op; with a different id it
// fully stops the previous task before spawning the new one, so at most
// one task is ever running.
func (c *Collector) Start(liveChatID string) {
	c.ctrlMu.Lock()
	defer c.ctrlMu.Unlock()

	// stop must not be called while holding mu (the task's shutdown path
	// takes mu too), so the same-id check releases that lock first.
	c.mu.Lock()
	alreadySame := c.state.Collecting && c.state.LiveChatID == liveChatID
	c.mu.Unlock()
	if alreadySame {
		return
	}

	c.stop()

	c.mu.Lock()
	stopCh := make(chan struct{})
	doneCh := make(chan struct{})
	c.stopCh = stopCh
	c.doneCh = doneCh
	c.state = Status{Collecting: true, LiveChatID: liveChatID}
	go c.run(liveChatID, stopCh, doneCh)
	c.mu.Unlock()

	log.Printf("collector started live_chat_id=%s", liveChatID)
}

// Stop signals the running task (if any) and waits up to stopTimeout
// for it to exit. State is marked idle regardless; a task that outlives
// the wait is orphaned and harmless since all its writes dedup on
// message_id. Idempotent.
func (c *Collector) Stop() {
	c.ctrlMu.Lock()
	defer c.ctrlMu.Unlock()
	c.stop()
}

func (c *Collector) stop() {
	c.mu.Lock()
	if c.stopCh != nil {
		close(c.stopCh)
		c.stopCh = nil
	}
	c.state.Collecting = false
	done := c.doneCh
	c.doneCh = nil
	c.mu.Unlock()

	// The join happens without the lock; the task may need it to record
	// its final state.
	if done != nil {
		select {
		case <-done:
		case <-time.After(stopTimeout):
			log.Printf("collector stop timed out, task left to drain")
		}
	}
}

func (c *Collector) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// noteTick records the outcome of one tick. The owner check keeps an
// orphaned task (replaced after a stop timeout) from clobbering the
// state of its successor.
func (c *Collector) noteTick(owner chan struct{}, errMsg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopCh != owner {
		return
	}
	c.state.LastError = errMsg
}

func (c *Collector) run(liveChatID string, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	ctx := context.Background()

	var sess *stream.Session
	pageToken := ""

	for {
		select {
		case <-stopCh:
			return
		default:
		}

		intervalMillis := defaultPollMillis
		var tickErr error

		// The session load is part of the retry loop: a storage error here
		// must not kill collection for the rest of the stream.
		if sess == nil {
			sess, tickErr = c.repo.GetOrCreateSession(ctx, liveChatID, stream.SessionOpts{})
			if tickErr == nil && sess.NextPageToken != nil {
				pageToken = *sess.NextPageToken
			}
		}

		if tickErr == nil {
			msgs, nextToken, suggestedMillis, err := c.fetcher.FetchLiveChatPage(ctx, liveChatID, pageToken)
			if err != nil {
				tickErr = err
			} else {
				if suggestedMillis > 0 {
					intervalMillis = suggestedMillis
				}
				// Messages are committed before the cursor moves: a crash
				// mid-tick re-fetches, never loses.
				if err := c.repo.AppendMessages(ctx, sess.ID, msgs); err != nil {
					tickErr = err
				} else {
					if nextToken != "" {
						pageToken = nextToken
					}
					total, err := c.repo.CountMessages(ctx, sess.ID)
					if err == nil {
						err = c.repo.UpdateSessionProgress(ctx, sess, pageToken, total)
					}
					if err != nil {
						tickErr = err
					}
				}
			}
		}

		if tickErr != nil {
			intervalMillis = errorPollMillis
			c.noteTick(stopCh, tickErr.Error())
			log.Printf("collector tick failed live_chat_id=%s err=%v", liveChatID, tickErr)
		} else {
			c.noteTick(stopCh, "")
		}

		select {
		case <-stopCh:
			return
		case <-time.After(clampPollInterval(intervalMillis)):
		}
	}
}

// clampPollInterval keeps the server-suggested interval inside a sane
// band: responsive enough to matter, slow enough to not get throttled.
func clampPollInterval(millis int) time.Duration {
	d := time.Duration(millis) * time.Millisecond
	if d < minPollInterval {
		return minPollInterval
	}
	if d > maxPollInterval {
		return maxPollInterval
	}
	return d
}
