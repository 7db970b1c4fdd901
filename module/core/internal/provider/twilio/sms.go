package twilio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sinch-billava935/AlertMate-360/module/core/internal/provider"
)

var _ provider.MessageSender = (*Sender)(nil)

const defaultBaseURL = "https://api.twilio.com"

type Sender struct {
	httpClient *http.Client
	baseURL    string
	accountSID string
	authToken  string
}

func NewSender(accountSID, authToken string) *Sender {
	return &Sender{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    defaultBaseURL,
		accountSID: accountSID,
		authToken:  authToken,
	}
}

func (s *Sender) Channel() string { return "sms" }

func (s *Sender) Send(ctx context.Context, from, to, body string) error {
	form := url.Values{
		"From": {from},
		"To":   {to},
		"Body": {body},
	}
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, s.accountSID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("twilio send: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("twilio send: status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}
