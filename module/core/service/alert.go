package service

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/sinch-billava935/AlertMate-360/module/core/domain"
	"github.com/sinch-billava935/AlertMate-360/module/core/internal/provider"
	"github.com/sinch-billava935/AlertMate-360/module/core/internal/repository/database"
	"github.com/sinch-billava935/AlertMate-360/module/core/internal/repository/publisher"
	"github.com/sinch-billava935/AlertMate-360/module/core/metrics"
)

// E.164: plus sign followed by 7 to 15 digits.
var phonePattern = regexp.MustCompile(`^\+[0-9]{7,15}$`)

const (
	alertBanner        = "\U0001F6A8 SOS Alert!"
	defaultSendTimeout = 5 * time.Second
	alertTimeLayout    = "02 Jan 2006 15:04:05 MST"
)

type displayNameResolver interface {
	DisplayName(ctx context.Context, userID string) (string, error)
}

type AlertService struct {
	contacts     database.ContactRepository
	names        displayNameResolver
	senders      []provider.MessageSender
	publisher    publisher.EventPublisher
	limiter      *rate.Limiter
	from         string
	queryTimeout time.Duration
	sendTimeout  time.Duration
	now          func() time.Time
}

// NewAlertService wires the SOS fan-out pipeline. names may be nil, in
// which case the user ID stands in for the display name.
func NewAlertService(contacts database.ContactRepository, names displayNameResolver, senders []provider.MessageSender, pub publisher.EventPublisher, limiter *rate.Limiter, from string) *AlertService {
	return &AlertService{
		contacts:     contacts,
		names:        names,
		senders:      senders,
		publisher:    pub,
		limiter:      limiter,
		from:         from,
		queryTimeout: defaultQueryTimeout,
		sendTimeout:  defaultSendTimeout,
		now:          time.Now,
	}
}

// HandleSOS runs one raised SOS end to end: resolve recipients, compose,
// fan out, log the tally, publish the audit event. It never fails the
// trigger: dependency errors degrade to the empty-recipients path.
func (s *AlertService) HandleSOS(ctx context.Context, evt *domain.AlertEvent) error {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = s.now()
	}
	if evt.DisplayName == "" {
		evt.DisplayName = s.displayName(ctx, evt.UserID)
	}

	recipients := s.ResolveRecipients(ctx, evt.UserID)
	if len(recipients) == 0 {
		log.Printf("alert %s: no deliverable contacts for user %s, nothing to send", evt.ID, evt.UserID)
		return nil
	}

	body := ComposeAlertMessage(evt, evt.OccurredAt.Local().Format(alertTimeLayout))
	results := s.Fanout(ctx, body, recipients)

	succeeded, failed := 0, 0
	for _, res := range results {
		if res.Success {
			succeeded++
			metrics.Deliveries.WithLabelValues(res.Channel, "success").Inc()
		} else {
			failed++
			metrics.Deliveries.WithLabelValues(res.Channel, "failure").Inc()
			log.Printf("alert %s: delivery to %s via %s failed: %s", evt.ID, res.Recipient, res.Channel, res.ErrorDetail)
		}
	}
	log.Printf("alert %s: user %s attempted=%d succeeded=%d failed=%d", evt.ID, evt.UserID, len(results), succeeded, failed)

	if s.publisher != nil {
		audit := &domain.SOSAudit{
			AlertID:    evt.ID,
			UserID:     evt.UserID,
			Attempted:  len(results),
			Succeeded:  succeeded,
			Failed:     failed,
			OccurredAt: evt.OccurredAt,
		}
		if err := s.publisher.PublishSOS(ctx, audit); err != nil {
			log.Printf("alert %s: publish audit: %v", evt.ID, err)
		}
	}
	return nil
}

// ResolveRecipients loads the user's verified contacts and returns their
// numbers validated, trimmed and deduplicated in arrival order. A contact
// lookup failure degrades to an empty list.
func (s *AlertService) ResolveRecipients(ctx context.Context, userID string) []string {
	cctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	contacts, err := s.contacts.ListVerified(cctx, userID)
	if err != nil {
		log.Printf("alert: contact lookup for user %s: %v", userID, err)
		return nil
	}
	return validRecipients(contacts)
}

func validRecipients(contacts []domain.Contact) []string {
	seen := make(map[string]struct{}, len(contacts))
	var out []string
	for _, c := range contacts {
		num := strings.TrimSpace(c.PhoneNumber)
		if !phonePattern.MatchString(num) {
			log.Printf("alert: contact %s: invalid phone number, skipping", c.ID)
			continue
		}
		if _, dup := seen[num]; dup {
			continue
		}
		seen[num] = struct{}{}
		out = append(out, num)
	}
	return out
}

// ComposeAlertMessage renders the plain-text SOS body. localTime is already
// formatted for the user's locale. The location block appears only when
// both coordinates are present.
func ComposeAlertMessage(evt *domain.AlertEvent, localTime string) string {
	lines := []string{
		alertBanner,
		"User: " + evt.DisplayName,
		"Time: " + localTime,
	}
	if evt.Latitude != nil && evt.Longitude != nil {
		lat := strconv.FormatFloat(*evt.Latitude, 'f', 6, 64)
		lon := strconv.FormatFloat(*evt.Longitude, 'f', 6, 64)
		lines = append(lines,
			"Location: "+lat+", "+lon,
			"https://maps.google.com/?q="+lat+","+lon,
		)
	}

	var b strings.Builder
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

// Fanout sends body to every recipient on every configured channel. Sends
// run concurrently and independently; one provider rejection never blocks
// the others. The result slice is ordered channel-major, matching the
// recipient order within each channel.
func (s *AlertService) Fanout(ctx context.Context, body string, recipients []string) []domain.DeliveryResult {
	if len(recipients) == 0 {
		return nil
	}

	results := make([]domain.DeliveryResult, len(s.senders)*len(recipients))
	var wg sync.WaitGroup
	for si, snd := range s.senders {
		for ri, to := range recipients {
			wg.Add(1)
			go func(idx int, snd provider.MessageSender, to string) {
				defer wg.Done()
				results[idx] = s.sendOne(ctx, snd, to, body)
			}(si*len(recipients)+ri, snd, to)
		}
	}
	wg.Wait()
	return results
}

func (s *AlertService) sendOne(ctx context.Context, snd provider.MessageSender, to, body string) domain.DeliveryResult {
	res := domain.DeliveryResult{Recipient: to, Channel: snd.Channel()}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			res.ErrorDetail = fmt.Sprintf("rate limit wait: %v", err)
			return res
		}
	}

	sctx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()
	if err := snd.Send(sctx, s.from, to, body); err != nil {
		res.ErrorDetail = err.Error()
		return res
	}
	res.Success = true
	return res
}

func (s *AlertService) displayName(ctx context.Context, userID string) string {
	if s.names == nil {
		return userID
	}
	cctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	name, err := s.names.DisplayName(cctx, userID)
	if err != nil {
		log.Printf("alert: display name lookup for user %s: %v", userID, err)
		return userID
	}
	if name == "" {
		return userID
	}
	return name
}
