// Package dispatch sends push notifications to donors and carrier SMS to
// recipients in bounded concurrent batches.
//
// Every unit of a batch runs with its own timeout and a failed unit never
// aborts its siblings. Results are returned in input order.
package dispatch

import (
	"context"
	"errors"

	"github.com/xraph/smsrelay/attempt"
	"github.com/xraph/smsrelay/id"
	"github.com/xraph/smsrelay/org"
)

// ErrGatewayUnavailable is returned for units sent while no gateway is configured.
var ErrGatewayUnavailable = errors.New("dispatch: gateway unavailable")

// ErrNoPushToken is returned for donors without a registered push token.
var ErrNoPushToken = errors.New("dispatch: user has no push token")

// ErrNoPhoneNumber is returned for recipients without a phone number.
var ErrNoPhoneNumber = errors.New("dispatch: user has no phone number")

// Localisation keys rendered by the batcher.
const (
	KeyNewDonationTitle = "push.new_donation.title"
	KeyNewDonationBody  = "push.new_donation.body"
	KeySMSFooter        = "sms.footer"
)

// Notification is a push payload.
type Notification struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// PushGateway delivers a notification to one device.
type PushGateway interface {
	SendPush(ctx context.Context, token string, n Notification) error
}

// CarrierGateway sends one SMS through a telephony provider.
type CarrierGateway interface {
	SendSMS(ctx context.Context, phoneNumber, body string) error
}

// Localiser renders a message key in a locale.
type Localiser interface {
	Localise(locale, key string, args ...any) string
}

// UserLookup resolves the users a batch addresses.
type UserLookup interface {
	GetUser(ctx context.Context, userID id.ID) (*org.User, error)
}

// CarrierJob is one attempt escalated to the carrier gateway.
type CarrierJob struct {
	MessageID id.ID
	Attempt   *attempt.Attempt
	Content   string
}

// Result reports the outcome of one unit of a batch.
type Result struct {
	// Target is the donor (push) or recipient (carrier) user ID.
	Target id.ID

	// AttemptID is set for carrier results.
	AttemptID id.ID

	// MessageID is set for carrier results.
	MessageID id.ID

	Err error
}

// Failed returns the results that carry an error.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}
