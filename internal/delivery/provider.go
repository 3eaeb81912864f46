// Package delivery adapts the outbound SMS gateway. Webhook replies ride
// the TwiML response and never touch it; manual agent sends and follow-up
// nudges go through a Provider.
package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/gommon/log"
)

var ErrBreakerOpen = fmt.Errorf("provider circuit open")

// Provider sends one SMS and returns the gateway's message identifier.
type Provider interface {
	Name() string
	Send(ctx context.Context, to, body string) (sid string, err error)
}

// TwilioProvider posts to the Twilio Messages endpoint, guarded by a micro
// circuit breaker so a dead gateway fails fast instead of stalling workers.
type TwilioProvider struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	client     *http.Client
	br         *MicroBreaker
}

func NewTwilioProvider(accountSID, authToken, from, baseURL string, timeoutMs, failThreshold, openForMs int) *TwilioProvider {
	if baseURL == "" {
		baseURL = "https://api.twilio.com"
	}
	if timeoutMs <= 0 {
		timeoutMs = 5000
	}
	if failThreshold <= 0 {
		failThreshold = 3
	}
	if openForMs <= 0 {
		openForMs = 15000
	}

	return &TwilioProvider{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		baseURL:    strings.TrimRight(baseURL, "/"),
		client:     &http.Client{Timeout: time.Duration(timeoutMs) * time.Millisecond},
		br:         NewMicroBreaker(failThreshold, time.Duration(openForMs)*time.Millisecond),
	}
}

var _ Provider = (*TwilioProvider)(nil)

func (p *TwilioProvider) Name() string { return "twilio" }

func (p *TwilioProvider) Send(ctx context.Context, to, body string) (string, error) {
	if !p.br.TryAcquire() {
		return "", ErrBreakerOpen
	}

	sid, err := p.post(ctx, to, body)
	if err != nil {
		p.br.OnFailure()
		return "", err
	}

	p.br.OnSuccess()
	return sid, nil
}

func (p *TwilioProvider) post(ctx context.Context, to, body string) (string, error) {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", p.from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", p.baseURL, p.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(p.accountSID, p.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		return "", fmt.Errorf("provider=twilio status=%d", res.StatusCode)
	}

	var out struct {
		SID string `json:"sid"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode provider response: %w", err)
	}
	return out.SID, nil
}

// NoopProvider logs instead of sending; used in dev when messaging is
// disabled in config.
type NoopProvider struct{}

func (NoopProvider) Name() string { return "noop" }

func (NoopProvider) Send(_ context.Context, to, body string) (string, error) {
	log.Infof("delivery disabled, dropping message to=%s chars=%d", to, len(body))
	return "noop-" + fmt.Sprintf("%d", time.Now().UnixNano()), nil
}
