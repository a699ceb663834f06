// Package telephony talks to the Acefone REST API: session login, call
// record lookup, and recording download with a bounded readiness poll.
package telephony

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/udipth01/acefone/internal/config"
	"github.com/udipth01/acefone/internal/types"
)

var (
	// ErrAuthentication means the login exchange was rejected. Fatal;
	// retrying with the same credentials will not help.
	ErrAuthentication = errors.New("acefone authentication failed")

	// ErrRecordNotFound means the provider has no record for the call id.
	ErrRecordNotFound = errors.New("call record not found")

	// ErrRecordingUnavailable means the recording artifact never became
	// downloadable within the retry budget. Recoverable: the pipeline can
	// still post a metadata-only note.
	ErrRecordingUnavailable = errors.New("recording unavailable")
)

// pageSize matches the provider's maximum listing page.
const pageSize = 100

// maxPages bounds the record scan; webhooks arrive moments after the call,
// so the record is expected near the head of the listing.
const maxPages = 5

type Client struct {
	baseURL  string
	email    string
	password string

	attempts int
	delay    time.Duration
	minBytes int

	http *http.Client
	log  *logrus.Entry
}

// NewClient builds an Acefone client sharing the given HTTP client across
// pipeline runs. The client holds no per-run state.
func NewClient(cfg config.Config, httpClient *http.Client, log *logrus.Entry) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}
	return &Client{
		baseURL:  cfg.AcefoneBaseURL,
		email:    cfg.AcefoneEmail,
		password: cfg.AcefonePassword,
		attempts: cfg.RecordingAttempts,
		delay:    cfg.RecordingDelay,
		minBytes: cfg.MinRecordingBytes,
		http:     httpClient,
		log:      log,
	}
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context) (string, error) {
	body, _ := json.Marshal(map[string]string{
		"email":    c.email,
		"password": c.password,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("%w: status %d: %s", ErrAuthentication, resp.StatusCode, string(b))
	}

	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode login response: %v", ErrAuthentication, err)
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrAuthentication)
	}
	return out.AccessToken, nil
}

// FindCall scans the call-records listing for the given call id. Acefone
// has no per-id endpoint; recent calls sit on the first pages.
func (c *Client) FindCall(ctx context.Context, token, callID string) (types.CallRecord, error) {
	for page := 1; page <= maxPages; page++ {
		records, err := c.listRecords(ctx, token, page)
		if err != nil {
			return types.CallRecord{}, err
		}
		for _, rec := range records {
			if rec.CallID == callID {
				return rec, nil
			}
		}
		if len(records) < pageSize {
			break
		}
	}
	return types.CallRecord{}, fmt.Errorf("%w: call_id=%s", ErrRecordNotFound, callID)
}

func (c *Client) listRecords(ctx context.Context, token string, page int) ([]types.CallRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/call/records", nil)
	if err != nil {
		return nil, fmt.Errorf("build records request: %w", err)
	}
	q := req.URL.Query()
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(pageSize))
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch call records: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("fetch call records: status %d: %s", resp.StatusCode, string(b))
	}

	var out struct {
		Results []types.CallRecord `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode call records: %w", err)
	}
	return out.Results, nil
}

// DownloadRecording fetches the recording bytes. Payloads below the
// configured minimum are rejected: the provider serves tiny placeholder
// bodies with HTTP 200 while the artifact is still being finalized.
func (c *Client) DownloadRecording(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build recording request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download recording: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download recording: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read recording body: %w", err)
	}
	if len(data) < c.minBytes {
		return nil, fmt.Errorf("recording too small (%d bytes), may still be processing", len(data))
	}
	return data, nil
}

// Acquire resolves a call id to its metadata and recording bytes. The
// download is retried on a fixed interval up to the configured attempt
// budget. On retry exhaustion the CallRecord is still returned alongside
// ErrRecordingUnavailable so the caller can fall back to a metadata-only
// note.
func (c *Client) Acquire(ctx context.Context, callID string) (types.CallRecord, []byte, error) {
	log := c.log.WithField("call_id", callID)

	token, err := c.Login(ctx)
	if err != nil {
		return types.CallRecord{}, nil, err
	}

	rec, err := c.FindCall(ctx, token, callID)
	if err != nil {
		return types.CallRecord{}, nil, err
	}
	if rec.RecordingURL == "" {
		log.Warn("call record has no recording url")
		return rec, nil, fmt.Errorf("%w: no recording url for call_id=%s", ErrRecordingUnavailable, callID)
	}

	var audio []byte
	attempt := 0
	op := func() error {
		attempt++
		data, err := c.DownloadRecording(ctx, rec.RecordingURL)
		if err != nil {
			log.WithField("attempt", attempt).WithField("error", err.Error()).Warn("recording fetch failed")
			return err
		}
		audio = data
		return nil
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.delay), uint64(c.attempts-1)),
		ctx,
	)
	if err := backoff.Retry(op, bo); err != nil {
		return rec, nil, fmt.Errorf("%w: %v", ErrRecordingUnavailable, err)
	}

	log.WithField("bytes", len(audio)).Info("recording acquired")
	return rec, audio, nil
}
