// Package ledger records which inbound messages have already been forwarded
// so a redelivery inside the retention window is not dispatched twice.
//
// Entries expire on their own: a key older than the retention window is
// treated as unseen whether or not it has been physically removed yet.
package ledger

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/tbourn/inbound-bridge/internal/domain"
)

// DefaultRetention is the window used when none is configured.
const DefaultRetention = 24 * time.Hour

// Key identifies one forwarded message.
type Key struct {
	UserID         string
	Platform       domain.Platform
	ConversationID string
	MessageID      string
}

// String renders k as a flat store key. Parts are escaped so separators in
// ids cannot collide.
func (k Key) String() string {
	return fmt.Sprintf("dedup:%s:%s:%s:%s",
		url.QueryEscape(string(k.Platform)),
		url.QueryEscape(k.UserID),
		url.QueryEscape(k.ConversationID),
		url.QueryEscape(k.MessageID))
}

// Ledger is safe for concurrent use by the pollers and manual runs.
type Ledger interface {
	// Seen reports whether k was recorded within the retention window.
	Seen(ctx context.Context, k Key) (bool, error)
	// Record stores k atomically. It returns false when a live entry
	// already existed, in which case nothing changes.
	Record(ctx context.Context, k Key) (bool, error)
	// Purge physically removes expired entries and returns how many were
	// deleted. Backends with native expiry return 0.
	Purge(ctx context.Context) (int64, error)
}
