// Package crm resolves phone numbers to Bitrix24 leads or contacts and
// appends timeline comments, over a Bitrix inbound-webhook URL.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
)

type Client struct {
	webhookURL string
	http       *http.Client
	log        *logrus.Entry
}

// NewClient builds a Bitrix client. webhookURL is the inbound-webhook base,
// e.g. https://example.bitrix24.in/rest/24/abc123/.
func NewClient(webhookURL string, httpClient *http.Client, log *logrus.Entry) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		webhookURL: strings.TrimRight(webhookURL, "/") + "/",
		http:       httpClient,
		log:        log,
	}
}

// NormalizePhone strips whitespace and every plus sign, the only shape
// Bitrix phone matching accepts. Idempotent.
func NormalizePhone(p string) string {
	return strings.TrimSpace(strings.ReplaceAll(p, "+", ""))
}

// bitrixEnvelope is the common Bitrix REST reply shape. Errors arrive in
// the body, sometimes under HTTP 200.
type bitrixEnvelope struct {
	Result           json.RawMessage `json:"result"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
}

func (c *Client) call(ctx context.Context, method string, query url.Values, body any) (json.RawMessage, error) {
	endpoint := c.webhookURL + method + ".json"
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var req *http.Request
	var err error
	if body != nil {
		payload, merr := json.Marshal(body)
		if merr != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", method, merr)
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if req != nil {
			req.Header.Set("Content-Type", "application/json")
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", method, err)
	}

	var env bitrixEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%s: decode response (status %d): %w", method, resp.StatusCode, err)
	}
	if env.Error != "" {
		return nil, fmt.Errorf("%s: %s: %s", method, env.Error, env.ErrorDescription)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: status %d: %s", method, resp.StatusCode, string(raw))
	}
	return env.Result, nil
}

// FindByPhone runs the duplicate search for both entity kinds and returns
// the candidate lead and contact ids.
func (c *Client) FindByPhone(ctx context.Context, phone string) (leads, contacts []int64, err error) {
	leads, err = c.findDuplicates(ctx, "LEAD", phone)
	if err != nil {
		return nil, nil, err
	}
	contacts, err = c.findDuplicates(ctx, "CONTACT", phone)
	if err != nil {
		return nil, nil, err
	}
	return leads, contacts, nil
}

func (c *Client) findDuplicates(ctx context.Context, entityType, phone string) ([]int64, error) {
	q := url.Values{}
	q.Set("entity_type", entityType)
	q.Set("type", "PHONE")
	q.Add("values[]", phone)

	result, err := c.call(ctx, "crm.duplicate.findbyComm", q, nil)
	if err != nil {
		return nil, err
	}

	// result is {} when nothing matches, otherwise {"LEAD": [ids]} etc.
	var matches map[string][]int64
	if err := json.Unmarshal(result, &matches); err != nil {
		return nil, fmt.Errorf("decode duplicate result: %w", err)
	}
	return matches[entityType], nil
}

// CreateLead adds a fresh lead for an unknown caller and returns its id.
func (c *Client) CreateLead(ctx context.Context, phone string) (int64, error) {
	payload := map[string]any{
		"fields": map[string]any{
			"TITLE":     fmt.Sprintf("New Lead from Acefone (%s)", phone),
			"PHONE":     []map[string]string{{"VALUE": phone, "VALUE_TYPE": "WORK"}},
			"SOURCE_ID": "CALL",
		},
	}
	result, err := c.call(ctx, "crm.lead.add", nil, payload)
	if err != nil {
		return 0, err
	}

	var id int64
	if err := json.Unmarshal(result, &id); err != nil {
		return 0, fmt.Errorf("decode created lead id: %w", err)
	}
	c.log.WithFields(logrus.Fields{"lead_id": id, "phone": phone}).Info("created new lead")
	return id, nil
}
