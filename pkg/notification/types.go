// Package notification contains the domain models shared by the dispatcher,
// the user directory and the delivery providers.
package notification

import "encoding/json"

// AllRecipients is the recipient id that targets every user with a device token.
const AllRecipients = "all"

// NotificationRequest is the inbound "who to notify, with what" request.
type NotificationRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description" validate:"required"`
	RecipientID string `json:"recipientId,omitempty"`
}

// IsBroadcast reports whether the request targets every registered user.
func (r NotificationRequest) IsBroadcast() bool {
	return r.RecipientID == "" || r.RecipientID == AllRecipients
}

// UserRecord is a read-only view of one user directory document.
// DeviceToken is empty when the user has no registered device.
type UserRecord struct {
	ID          string `json:"id"`
	DeviceToken string `json:"deviceToken,omitempty"`
}

// DeliveryPayload is the single outbound request sent to the delivery provider.
type DeliveryPayload struct {
	AppID            string            `json:"app_id"`
	Contents         map[string]string `json:"contents"`
	Headings         map[string]string `json:"headings"`
	IncludePlayerIDs []string          `json:"include_player_ids"`

	// Locale is the key used in Contents and Headings.
	Locale string `json:"-"`
}

// Title returns the heading for the payload's locale.
func (p DeliveryPayload) Title() string {
	return p.Headings[p.Locale]
}

// Body returns the content for the payload's locale.
func (p DeliveryPayload) Body() string {
	return p.Contents[p.Locale]
}

// DeliveryResult is the provider's answer, relayed to the caller unmodified.
type DeliveryResult struct {
	StatusCode int
	Body       json.RawMessage
}
