// Package session keeps per-user conversation history. Every new session is
// seeded with the persona priming exchange; history is pruned so the seed
// survives while old turns age out.
package session

import (
	"context"
	"time"
)

const (
	// maxEntries caps the stored history per user.
	maxEntries = 42

	// keepRecent is how many trailing entries survive a prune, after the
	// seed exchange.
	keepRecent = 40
)

// Entry is one conversation turn.
type Entry struct {
	// Role is "user" or "model".
	Role string `json:"role"`

	// Text is the turn content. For model turns this is the raw response,
	// directives included, so the model sees its own prior output format.
	Text string `json:"text"`
}

// Info summarizes one user's session for the admin surface.
type Info struct {
	UserID    string    `json:"user_id"`
	Entries   int       `json:"entries"`
	UpdatedAt time.Time `json:"updated_at"`

	// LastText is the text of the most recent entry, for admin previews.
	LastText string `json:"last_text"`
}

// Store persists conversation history per user.
type Store interface {
	// History returns a user's conversation, creating and seeding the
	// session first if none exists. Returned slices are caller-owned.
	History(ctx context.Context, userID string) ([]Entry, error)

	// Append adds turns to a user's session, seeding it first if needed,
	// and prunes old turns past the cap.
	Append(ctx context.Context, userID string, entries ...Entry) error

	// Clear removes a user's session entirely. The next History call
	// reseeds it. Clearing an unknown user is not an error.
	Clear(ctx context.Context, userID string) error

	// Stats lists all live sessions.
	Stats(ctx context.Context) ([]Info, error)

	// Sweep removes sessions idle for longer than maxIdle and reports how
	// many were removed.
	Sweep(ctx context.Context, maxIdle time.Duration) (int, error)

	// Close releases backing resources.
	Close() error
}

// prune enforces the history cap: the first seedLen entries are pinned, the
// most recent keepRecent entries survive, everything in between goes.
func prune(entries []Entry, seedLen int) []Entry {
	if len(entries) <= maxEntries {
		return entries
	}
	if seedLen > len(entries) {
		seedLen = len(entries)
	}
	pruned := make([]Entry, 0, seedLen+keepRecent)
	pruned = append(pruned, entries[:seedLen]...)
	pruned = append(pruned, entries[len(entries)-keepRecent:]...)
	return pruned
}
