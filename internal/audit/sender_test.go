package audit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testSender(t *testing.T, url string) *Sender {
	t.Helper()
	s := NewSender(Config{
		URL:        url,
		Secret:     "test-secret",
		Timeout:    2 * time.Second,
		RetryCount: 2,
		RetryDelay: 10 * time.Millisecond,
	}, zerolog.Nop())
	s.Start()
	t.Cleanup(s.Stop)
	return s
}

func TestSendDeliversSignedEvent(t *testing.T) {
	received := make(chan *http.Request, 1)
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		received <- r
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := testSender(t, srv.URL)
	s.Send(EventJobSent, Record{
		JobRef:       "ref-1",
		Payload:      "LOC01-BAG01-PKR03-20240115143022",
		Outcome:      "sent",
		AttemptCount: 1,
	})

	var req *http.Request
	select {
	case req = <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("audit event was not delivered")
	}

	if got := req.Header.Get("X-Audit-Event"); got != "job_sent" {
		t.Fatalf("event header = %q, want %q", got, "job_sent")
	}

	var env struct {
		Event     string `json:"event"`
		Data      Record `json:"data"`
		Signature string `json:"signature"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if env.Data.Payload != "LOC01-BAG01-PKR03-20240115143022" {
		t.Fatalf("payload = %q", env.Data.Payload)
	}

	dataBytes, _ := json.Marshal(env.Data)
	h := hmac.New(sha256.New, []byte("test-secret"))
	h.Write(dataBytes)
	want := hex.EncodeToString(h.Sum(nil))
	if env.Signature != want {
		t.Fatalf("signature = %q, want %q", env.Signature, want)
	}
}

func TestSendRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		close(done)
	}))
	defer srv.Close()

	s := testSender(t, srv.URL)
	s.Send(EventJobFailed, Record{JobRef: "ref-2", Outcome: "failed"})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("event was not retried after server error")
	}
	if n := calls.Load(); n != 2 {
		t.Fatalf("calls = %d, want 2", n)
	}
}

func TestSendDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	s := testSender(t, srv.URL)
	s.Send(EventJobExported, Record{JobRef: "ref-3", Outcome: "exported"})

	time.Sleep(200 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Fatalf("calls = %d, want 1", n)
	}
}

func TestDisabledSenderDropsEvents(t *testing.T) {
	s := NewSender(Config{}, zerolog.Nop())
	if s.Enabled() {
		t.Fatal("sender with no URL should be disabled")
	}
	s.Send(EventJobSent, Record{JobRef: "ref-4"})
}
