package telegram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/inbound-bridge/internal/domain"
)

const testToken = "123456789:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsawq"

func TestGetUpdates_DecodesAndKeepsRaw(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bot"+testToken+"/getUpdates", r.URL.Path)
		assert.Equal(t, "100", r.URL.Query().Get("offset"))
		assert.Equal(t, "2", r.URL.Query().Get("timeout"))
		_, _ = w.Write([]byte(`{"ok":true,"result":[
			{"update_id":100,"message":{"message_id":5,"from":{"id":7,"is_bot":false},"chat":{"id":42,"type":"private"},"text":"hi"},"extra":"kept"},
			{"update_id":101,"channel_post":{"message_id":6,"chat":{"id":-1}}}
		]}`))
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL})
	ups, err := c.GetUpdates(context.Background(), testToken, 100, 2*time.Second)
	require.NoError(t, err)
	require.Len(t, ups, 2)

	assert.EqualValues(t, 100, ups[0].UpdateID)
	m := ups[0].Msg()
	require.NotNil(t, m)
	assert.EqualValues(t, 5, m.MessageID)
	assert.EqualValues(t, 42, m.Chat.ID)
	assert.Equal(t, "hi", m.Text)
	assert.False(t, ups[0].FromBot())
	assert.Contains(t, string(ups[0].Raw), `"extra":"kept"`)

	require.NotNil(t, ups[1].Msg())
	assert.EqualValues(t, -1, ups[1].Msg().Chat.ID)
}

func TestUpdate_FromBot(t *testing.T) {
	u := Update{Message: &Message{From: &User{ID: 1, IsBot: true}}}
	assert.True(t, u.FromBot())
	assert.False(t, Update{}.FromBot())
	assert.Nil(t, Update{}.Msg())
}

func TestGetUpdates_ConflictWrapsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":409,"description":"Conflict: can't use getUpdates method while webhook is active"}`))
	}))
	defer srv.Close()

	_, err := New(Options{BaseURL: srv.URL}).GetUpdates(context.Background(), testToken, 0, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflict)
	assert.ErrorIs(t, err, domain.ErrTransport)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 409, apiErr.ErrorCode)
}

func TestCall_TransportErrorIsRedacted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close() // connection refused from now on

	err := New(Options{BaseURL: base}).DeleteWebhook(context.Background(), testToken)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.NotContains(t, err.Error(), testToken)
	assert.NotContains(t, err.Error(), "AAHdqTcv")
}

func TestDeleteWebhook_KeepsPendingUpdates(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, strings.TrimPrefix(r.URL.Path, "/bot"+testToken)+"?"+r.URL.RawQuery)
		_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL + "/"})
	require.NoError(t, c.DeleteWebhook(context.Background(), testToken))

	require.Len(t, paths, 1)
	assert.Equal(t, "/deleteWebhook?drop_pending_updates=false", paths[0])
}

func TestCall_EmptyToken(t *testing.T) {
	err := New(Options{}).DeleteWebhook(context.Background(), " ")
	assert.ErrorIs(t, err, domain.ErrTransport)
}

func TestCall_NotOKWithout409(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":401,"description":"Unauthorized"}`))
	}))
	defer srv.Close()

	_, err := New(Options{BaseURL: srv.URL}).GetUpdates(context.Background(), testToken, 0, 0)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrConflict)
	assert.ErrorIs(t, err, domain.ErrTransport)
}
