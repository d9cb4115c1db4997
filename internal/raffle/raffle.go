package raffle

import (
	"errors"
	"math/rand"

	"github.com/raffleri/raffleri/internal/stream"
)

var ErrNoEntries = errors.New("raffle: no entries to draw from")

// Entry is one participant's stake in the pool: their message count,
// capped per user so chat spam cannot buy the raffle.
type Entry struct {
	Username string `json:"username"`
	Entries  int    `json:"entries"`
}

// BuildEntries counts messages per username (capped at maxPerUser) in
// first-seen order. Usernames are display names; the feed does not
// expose a stable user id, so collisions between distinct accounts are
// accepted.
func BuildEntries(msgs []stream.Message, maxPerUser int) []Entry {
	if maxPerUser <= 0 {
		maxPerUser = 5
	}

	index := make(map[string]int)
	entries := make([]Entry, 0)
	for _, m := range msgs {
		i, seen := index[m.Username]
		if !seen {
			index[m.Username] = len(entries)
			entries = append(entries, Entry{Username: m.Username, Entries: 1})
			continue
		}
		if entries[i].Entries < maxPerUser {
			entries[i].Entries++
		}
	}
	return entries
}

// PickWinner draws one entry with probability proportional to its
// entry count.
func PickWinner(entries []Entry) (Entry, error) {
	total := 0
	for _, e := range entries {
		total += e.Entries
	}
	if total == 0 {
		return Entry{}, ErrNoEntries
	}

	n := rand.Intn(total)
	for _, e := range entries {
		n -= e.Entries
		if n < 0 {
			return e, nil
		}
	}
	// unreachable
	return entries[len(entries)-1], nil
}
