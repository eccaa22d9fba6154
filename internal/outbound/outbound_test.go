package outbound

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessage(t *testing.T) {
	m := NewMessage("GRADER", "K1ABC", "Grade", "Score: 100")
	_, err := uuid.Parse(m.ID)
	assert.NoError(t, err)
	assert.False(t, m.Date.IsZero())
	assert.NotEqual(t, m.ID, NewMessage("GRADER", "K1ABC", "Grade", "x").ID)
}

func TestOutbox_WritesMailStyleFile(t *testing.T) {
	dir := t.TempDir()
	outbox := NewOutbox(dir + "/nested")

	m := NewMessage("GRADER", "k1abc@winlink.org", "ETO exercise grade", "Score: 85\nfix the date")
	require.NoError(t, outbox.Send(context.Background(), m))

	path := outbox.Path(m)
	assert.True(t, strings.HasSuffix(path, "k1abc_winlink.org-"+m.ID+".txt"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "Message-ID: "+m.ID+"\n")
	assert.Contains(t, text, "To: k1abc@winlink.org\n")
	assert.Contains(t, text, "Subject: ETO exercise grade\n")
	assert.True(t, strings.HasSuffix(text, "\n\nScore: 85\nfix the date\n"))
}

func TestOutbox_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewOutbox(t.TempDir()).Send(ctx, NewMessage("A", "B", "s", "b"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWebhook_PostsJSON(t *testing.T) {
	var got Message
	var key string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		key = r.Header.Get("Idempotency-Key")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	hook := NewWebhook(server.URL, WebhookOptions{Timeout: time.Second, RequestsPerSecond: 100})
	m := NewMessage("GRADER", "K1ABC", "Grade", "Score: 100")
	require.NoError(t, hook.Send(context.Background(), m))

	assert.Equal(t, m.ID, key)
	assert.Equal(t, "K1ABC", got.To)
	assert.Equal(t, "Score: 100", got.Body)
}

func TestWebhook_ErrorStatusIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	hook := NewWebhook(server.URL, WebhookOptions{Timeout: time.Second, RequestsPerSecond: 100})
	err := hook.Send(context.Background(), NewMessage("GRADER", "K1ABC", "Grade", "x"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Equal(t, int32(1), calls.Load())
}

type recordingSender struct {
	sent []Message
	err  error
}

func (r *recordingSender) Send(ctx context.Context, m Message) error {
	r.sent = append(r.sent, m)
	return r.err
}

func TestMulti_ContinuesPastFailures(t *testing.T) {
	failing := &recordingSender{err: errors.New("down")}
	ok := &recordingSender{}

	err := Multi{failing, ok}.Send(context.Background(), NewMessage("A", "B", "s", "b"))

	assert.EqualError(t, err, "down")
	assert.Len(t, failing.sent, 1)
	assert.Len(t, ok.sent, 1)
}
