package telephony

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/udipth01/acefone/internal/config"
	"github.com/udipth01/acefone/internal/types"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

// acefoneFake simulates the login, records, and recording endpoints. The
// recording endpoint serves an undersized placeholder until readyAfter
// fetches have happened.
type acefoneFake struct {
	t          *testing.T
	record     types.CallRecord
	readyAfter int32
	fetches    atomic.Int32
	loginFail  bool
}

func (f *acefoneFake) server() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		if f.loginFail {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"message":"bad credentials"}`)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-123"})
	})
	mux.HandleFunc("/call/records", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-123" {
			f.t.Errorf("records request auth = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"results": []types.CallRecord{f.record},
		})
	})
	mux.HandleFunc("/recording", func(w http.ResponseWriter, r *http.Request) {
		n := f.fetches.Add(1)
		if n <= f.readyAfter {
			fmt.Fprint(w, "tiny")
			return
		}
		w.Write(make([]byte, 6000))
	})
	return httptest.NewServer(mux)
}

func newTestClient(baseURL string, attempts int) *Client {
	cfg := config.Config{
		AcefoneBaseURL:    baseURL,
		AcefoneEmail:      "ops@example.com",
		AcefonePassword:   "secret",
		RecordingAttempts: attempts,
		RecordingDelay:    time.Millisecond,
		MinRecordingBytes: 5000,
		RequestTimeout:    5 * time.Second,
	}
	return NewClient(cfg, nil, testLogger())
}

func TestLoginFailureIsAuthenticationError(t *testing.T) {
	fake := &acefoneFake{t: t, loginFail: true}
	srv := fake.server()
	defer srv.Close()

	c := newTestClient(srv.URL, 3)
	_, _, err := c.Acquire(context.Background(), "123")
	if !errors.Is(err, ErrAuthentication) {
		t.Fatalf("err = %v, want ErrAuthentication", err)
	}
	if fake.fetches.Load() != 0 {
		t.Error("recording was fetched despite login failure")
	}
}

func TestFindCallMissesReturnNotFound(t *testing.T) {
	fake := &acefoneFake{t: t, record: types.CallRecord{CallID: "other"}}
	srv := fake.server()
	defer srv.Close()

	c := newTestClient(srv.URL, 3)
	_, _, err := c.Acquire(context.Background(), "123")
	if !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("err = %v, want ErrRecordNotFound", err)
	}
}

func TestAcquireReadyOnFirstFetch(t *testing.T) {
	fake := &acefoneFake{t: t}
	srv := fake.server()
	defer srv.Close()
	fake.record = types.CallRecord{CallID: "123", RecordingURL: srv.URL + "/recording", AgentName: "Asha"}

	c := newTestClient(srv.URL, 3)
	rec, audio, err := c.Acquire(context.Background(), "123")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if rec.AgentName != "Asha" {
		t.Errorf("AgentName = %q", rec.AgentName)
	}
	if len(audio) != 6000 {
		t.Errorf("audio length = %d, want 6000", len(audio))
	}
	if got := fake.fetches.Load(); got != 1 {
		t.Errorf("fetches = %d, want 1", got)
	}
}

func TestAcquireRetriesUntilRecordingReady(t *testing.T) {
	fake := &acefoneFake{t: t, readyAfter: 2}
	srv := fake.server()
	defer srv.Close()
	fake.record = types.CallRecord{CallID: "123", RecordingURL: srv.URL + "/recording"}

	c := newTestClient(srv.URL, 3)
	_, audio, err := c.Acquire(context.Background(), "123")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if len(audio) != 6000 {
		t.Errorf("audio length = %d, want 6000", len(audio))
	}
	if got := fake.fetches.Load(); got != 3 {
		t.Errorf("fetches = %d, want 3 (two placeholders then the artifact)", got)
	}
}

func TestAcquireExhaustsRetryBudget(t *testing.T) {
	fake := &acefoneFake{t: t, readyAfter: 100}
	srv := fake.server()
	defer srv.Close()
	fake.record = types.CallRecord{CallID: "123", RecordingURL: srv.URL + "/recording", AgentName: "Asha"}

	c := newTestClient(srv.URL, 3)
	rec, audio, err := c.Acquire(context.Background(), "123")
	if !errors.Is(err, ErrRecordingUnavailable) {
		t.Fatalf("err = %v, want ErrRecordingUnavailable", err)
	}
	if audio != nil {
		t.Error("audio returned despite exhausted retries")
	}
	// metadata must survive so a degraded note can still be posted
	if rec.AgentName != "Asha" {
		t.Errorf("CallRecord lost on retry exhaustion: %+v", rec)
	}
	if got := fake.fetches.Load(); got != 3 {
		t.Errorf("fetches = %d, want exactly the attempt budget of 3", got)
	}
}

func TestAcquireMissingRecordingURL(t *testing.T) {
	fake := &acefoneFake{t: t}
	srv := fake.server()
	defer srv.Close()
	fake.record = types.CallRecord{CallID: "123", Duration: 42}

	c := newTestClient(srv.URL, 3)
	rec, _, err := c.Acquire(context.Background(), "123")
	if !errors.Is(err, ErrRecordingUnavailable) {
		t.Fatalf("err = %v, want ErrRecordingUnavailable", err)
	}
	if rec.Duration != 42 {
		t.Errorf("CallRecord not returned: %+v", rec)
	}
}

func TestDownloadRejectsUndersizedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "stub")
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 1)
	_, err := c.DownloadRecording(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("undersized payload accepted despite HTTP 200")
	}
	if !strings.Contains(err.Error(), "too small") {
		t.Errorf("err = %v, want size rejection", err)
	}
}
