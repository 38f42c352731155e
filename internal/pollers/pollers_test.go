package pollers

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/inbound-bridge/internal/dispatch"
	"github.com/tbourn/inbound-bridge/internal/domain"
	"github.com/tbourn/inbound-bridge/internal/repo"
	"github.com/tbourn/inbound-bridge/internal/vault"
)

var epoch = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:pollers_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, repo.AutoMigrate(db))
	return db
}

func newTestVault(t *testing.T) *vault.Vault {
	t.Helper()
	v, err := vault.New("pollers-test-key", vault.Options{})
	require.NoError(t, err)
	return v
}

func seedAutomation(t *testing.T, db *gorm.DB, userID string, kind domain.AutomationKind, status domain.AutomationStatus) {
	t.Helper()
	a := &domain.Automation{
		UserID:         userID,
		Kind:           kind,
		Status:         status,
		Tone:           "friendly",
		WelcomeMessage: "hello there",
		KnowledgeBase:  "opening hours 9-17",
	}
	require.NoError(t, repo.SaveAutomation(context.Background(), db, a))
}

func setAutomationStatus(t *testing.T, db *gorm.DB, userID string, kind domain.AutomationKind, status domain.AutomationStatus) {
	t.Helper()
	require.NoError(t, db.Model(&domain.Automation{}).
		Where("user_id = ? AND kind = ?", userID, kind).
		Update("status", status).Error)
}

// post is one recorded dispatch.
type post struct {
	url     string
	payload any
	timeout time.Duration
}

// fakeDispatcher records posts and answers with respond, keyed on the URL
// without its query string. Unlisted URLs succeed.
type fakeDispatcher struct {
	mu      sync.Mutex
	posts   []post
	respond map[string]error
}

func (d *fakeDispatcher) Post(_ context.Context, rawURL string, payload any, timeout time.Duration) (dispatch.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.posts = append(d.posts, post{url: rawURL, payload: payload, timeout: timeout})
	u, _ := url.Parse(rawURL)
	base := rawURL
	if u != nil {
		u.RawQuery = ""
		base = u.String()
	}
	if err := d.respond[base]; err != nil {
		return dispatch.Result{}, err
	}
	return dispatch.Result{StatusCode: 200}, nil
}

func (d *fakeDispatcher) Posts() []post {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]post(nil), d.posts...)
}

func statusErr(code int) error { return &dispatch.StatusError{StatusCode: code} }
