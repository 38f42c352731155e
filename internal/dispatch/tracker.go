package dispatch

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/inbound-bridge/internal/domain"
)

// trackTimeout bounds one metric POST.
const trackTimeout = 3 * time.Second

// TrackEvent is the body of POST /analytics/track.
type TrackEvent struct {
	UserID   string          `json:"userId"`
	Platform domain.Platform `json:"platform"`
	Metric   string          `json:"metric"`
	Value    int             `json:"value"`
}

// Tracker emits usage metrics to the internal sink. Failures are logged at
// debug level and dropped.
type Tracker struct {
	client  *Client
	baseURL string
}

// NewTracker returns a Tracker posting to baseURL/analytics/track. An empty
// baseURL makes Track a no-op.
func NewTracker(client *Client, baseURL string) *Tracker {
	return &Tracker{client: client, baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/")}
}

// Track sends one metric event and returns once the attempt is over. Callers
// that must not wait run it in a goroutine.
func (t *Tracker) Track(ctx context.Context, userID string, platform domain.Platform, metric string, value int) {
	if t == nil || t.baseURL == "" || t.client == nil {
		return
	}
	ev := TrackEvent{UserID: userID, Platform: platform, Metric: metric, Value: value}
	if _, err := t.client.Post(ctx, t.baseURL+"/analytics/track", ev, trackTimeout); err != nil {
		log.Debug().Err(err).Str("user_id", userID).Str("metric", metric).Msg("analytics track failed")
	}
}
