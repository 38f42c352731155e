package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/inbound-bridge/internal/domain"
)

func b64(s string) string { return base64.RawURLEncoding.EncodeToString([]byte(s)) }

func TestListUnread(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer at-1", r.Header.Get("Authorization"))
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "is:unread", r.URL.Query().Get("q"))
		assert.Equal(t, "5", r.URL.Query().Get("maxResults"))
		_, _ = w.Write([]byte(`{"messages":[{"id":"m1","threadId":"t1"},{"id":"m2","threadId":"t2"}]}`))
	}))
	defer srv.Close()

	refs, err := New(Options{BaseURL: srv.URL}).ListUnread(context.Background(), "at-1", 5)
	require.NoError(t, err)
	assert.Equal(t, []MessageRef{{ID: "m1", ThreadID: "t1"}, {ID: "m2", ThreadID: "t2"}}, refs)
}

func TestListUnread_EmptyMailbox(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"resultSizeEstimate":0}`))
	}))
	defer srv.Close()

	refs, err := New(Options{BaseURL: srv.URL}).ListUnread(context.Background(), "t", 5)
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestGetMessage_AndExtraction(t *testing.T) {
	msg := Message{
		ID: "m1", ThreadID: "t1", Snippet: "snippet text",
		Payload: Part{
			MimeType: "multipart/alternative",
			Headers: []Header{
				{Name: "Subject", Value: " Quote request "},
				{Name: "From", Value: `"Ada L." <Ada@Example.com>`},
			},
			Parts: []Part{
				{MimeType: "text/html", Body: Body{Data: b64("<p>html</p>")}},
				{MimeType: "text/plain; charset=UTF-8", Body: Body{Data: b64("Hello\r\nthere\r\n")}},
			},
		},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages/m1", r.URL.Path)
		assert.Equal(t, "full", r.URL.Query().Get("format"))
		_ = json.NewEncoder(w).Encode(msg)
	}))
	defer srv.Close()

	got, err := New(Options{BaseURL: srv.URL}).GetMessage(context.Background(), "t", "m1")
	require.NoError(t, err)
	assert.Equal(t, "Quote request", got.Subject())
	assert.Equal(t, "ada@example.com", got.SenderEmail())
	assert.Equal(t, "Hello\nthere", got.Content())
}

func TestContent_FallsBackToSnippet(t *testing.T) {
	m := &Message{Snippet: "  only a snippet ", Payload: Part{MimeType: "text/html", Body: Body{Data: b64("<b>x</b>")}}}
	assert.Equal(t, "", m.PlainText())
	assert.Equal(t, "only a snippet", m.Content())
}

func TestContent_PaddedBase64AndNFC(t *testing.T) {
	// "e" followed by a combining acute accent composes to a single rune.
	data := base64.URLEncoding.EncodeToString([]byte("cafe\u0301 "))
	m := &Message{Payload: Part{MimeType: "text/plain", Body: Body{Data: data}}}
	assert.Equal(t, "caf\u00e9", m.Content())
}

func TestSenderEmail_Unparseable(t *testing.T) {
	m := &Message{Payload: Part{Headers: []Header{{Name: "from", Value: "not an address"}}}}
	assert.Equal(t, "not an address", m.SenderEmail())
	assert.Equal(t, "", (&Message{}).SenderEmail())
}

func TestMarkRead(t *testing.T) {
	var body map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/messages/m1/modify", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{"id":"m1"}`))
	}))
	defer srv.Close()

	require.NoError(t, New(Options{BaseURL: srv.URL}).MarkRead(context.Background(), "t", "m1"))
	assert.Equal(t, []string{"UNREAD"}, body["removeLabelIds"])
}

func TestAPIError_Decoded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"Gmail API has not been used in project 1 before or it is disabled.","status":"PERMISSION_DENIED","errors":[{"reason":"accessNotConfigured"}]}}`))
	}))
	defer srv.Close()

	_, err := New(Options{BaseURL: srv.URL}).ListUnread(context.Background(), "t", 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransport)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "accessNotConfigured", apiErr.Reason)
	assert.Contains(t, err.Error(), "has not been used")
}
