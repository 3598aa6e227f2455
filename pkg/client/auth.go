package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Authenticator supplies the credential injected into every upstream request.
type Authenticator interface {
	// Param is the query parameter that carries the credential.
	Param() string
	// Credential returns the value to send with the next request.
	Credential(ctx context.Context) (string, error)
}

// APIKey authenticates with a static key sent as the apiKey parameter.
type APIKey string

// Param implements Authenticator.
func (k APIKey) Param() string { return "apiKey" }

// Credential implements Authenticator.
func (k APIKey) Credential(context.Context) (string, error) {
	if k == "" {
		return "", errors.New("api key is empty")
	}
	return string(k), nil
}

// Default endpoints of the CAS ticket handshake.
const (
	DefaultAuthURL       = "https://utslogin.nlm.nih.gov"
	DefaultTicketService = "http://umlsks.nlm.nih.gov"
	defaultTicketTTL     = 8 * time.Hour
)

var formActionRe = regexp.MustCompile(`(?i)action="([^"]+)"`)

// TicketGranter authenticates through the CAS handshake: the API key buys a
// ticket-granting ticket, which then issues one single-use service ticket per
// request. The granting ticket is reused until it expires or is rejected.
type TicketGranter struct {
	APIKey     string
	AuthURL    string
	Service    string
	HTTPClient Doer
	TTL        time.Duration

	mu       sync.Mutex
	tgt      string
	issuedAt time.Time
	now      func() time.Time
}

// NewTicketGranter returns a granter with the default endpoints.
func NewTicketGranter(apiKey string, httpClient Doer) *TicketGranter {
	return &TicketGranter{APIKey: apiKey, HTTPClient: httpClient}
}

// Param implements Authenticator.
func (t *TicketGranter) Param() string { return "ticket" }

// Credential implements Authenticator. It retries the handshake once with a
// fresh granting ticket when the cached one is rejected.
func (t *TicketGranter) Credential(ctx context.Context) (string, error) {
	tgt, err := t.grantingTicket(ctx)
	if err != nil {
		return "", err
	}
	st, err := t.serviceTicket(ctx, tgt)
	if err == nil {
		return st, nil
	}

	t.Invalidate()
	tgt, err = t.grantingTicket(ctx)
	if err != nil {
		return "", err
	}
	return t.serviceTicket(ctx, tgt)
}

// Invalidate forgets the cached granting ticket.
func (t *TicketGranter) Invalidate() {
	t.mu.Lock()
	t.tgt = ""
	t.mu.Unlock()
}

func (t *TicketGranter) clock() time.Time {
	if t.now != nil {
		return t.now()
	}
	return time.Now()
}

func (t *TicketGranter) doer() Doer {
	if t.HTTPClient != nil {
		return t.HTTPClient
	}
	return http.DefaultClient
}

func (t *TicketGranter) grantingTicket(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ttl := t.TTL
	if ttl == 0 {
		ttl = defaultTicketTTL
	}
	if t.tgt != "" && t.clock().Sub(t.issuedAt) < ttl {
		return t.tgt, nil
	}
	if t.APIKey == "" {
		return "", errors.New("ticket granter: api key is empty")
	}

	authURL := t.AuthURL
	if authURL == "" {
		authURL = DefaultAuthURL
	}
	resp, body, err := t.postForm(ctx, strings.TrimRight(authURL, "/")+"/cas/v1/api-key", url.Values{"apikey": {t.APIKey}})
	if err != nil {
		return "", fmt.Errorf("request granting ticket: %w", err)
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", &HTTPError{StatusCode: resp.StatusCode, URL: authURL, Body: truncate(body)}
	}

	tgt := resp.Header.Get("Location")
	if tgt == "" {
		m := formActionRe.FindStringSubmatch(body)
		if m == nil {
			return "", &ProtocolError{URL: authURL, Reason: "granting ticket location not found"}
		}
		tgt = m[1]
	}
	t.tgt = tgt
	t.issuedAt = t.clock()
	return tgt, nil
}

func (t *TicketGranter) serviceTicket(ctx context.Context, tgt string) (string, error) {
	service := t.Service
	if service == "" {
		service = DefaultTicketService
	}
	resp, body, err := t.postForm(ctx, tgt, url.Values{"service": {service}})
	if err != nil {
		return "", fmt.Errorf("request service ticket: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &HTTPError{StatusCode: resp.StatusCode, URL: tgt, Body: truncate(body)}
	}
	ticket := strings.TrimSpace(body)
	if ticket == "" {
		return "", &ProtocolError{URL: tgt, Reason: "empty service ticket"}
	}
	return ticket, nil
}

func (t *TicketGranter) postForm(ctx context.Context, target string, form url.Values) (*http.Response, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.doer().Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response body: %w", err)
	}
	return resp, string(body), nil
}
