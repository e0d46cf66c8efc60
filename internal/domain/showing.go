package domain

import "time"

type ShowingStatus string

const (
	ShowingPending   ShowingStatus = "pending"
	ShowingConfirmed ShowingStatus = "confirmed"
	ShowingCanceled  ShowingStatus = "canceled"
)

func (s ShowingStatus) Valid() bool {
	return s == ShowingPending || s == ShowingConfirmed || s == ShowingCanceled
}

type Showing struct {
	UID                       string     `json:"uid"`
	EventID                   string     `json:"event_id"`
	CreatedAt                 *time.Time `json:"created_at,omitempty"`
	Showtime                  *time.Time `json:"showtime,omitempty"`
	ShowingTimeZone           *string    `json:"showing_time_zone,omitempty"`
	ShowingTimeZoneUTCOffset  *int       `json:"showing_time_zone_utc_offset,omitempty"`
	Name                      *string    `json:"name,omitempty"`
	Phone                     *string    `json:"phone,omitempty"`
	Email                     *string    `json:"email,omitempty"`
	Notes                     *string    `json:"notes,omitempty"`
	ListingUID                *string    `json:"listing_uid,omitempty"`
	ListingFullAddress        *string    `json:"listing_full_address,omitempty"`
	IsSelfShow                *bool      `json:"is_self_show,omitempty"`
	ConfirmedAt               *time.Time `json:"confirmed_at,omitempty"`
	CanceledAt                *time.Time `json:"canceled_at,omitempty"`
	SelfShowCodeDistributedAt *time.Time `json:"self_show_code_distributed_at,omitempty"`
	UpdatedAt                 time.Time  `json:"updated_at"`
}

// Status is derived from timestamp presence; a cancellation wins over a
// confirmation.
func (s *Showing) Status() ShowingStatus {
	switch {
	case s.CanceledAt != nil:
		return ShowingCanceled
	case s.ConfirmedAt != nil:
		return ShowingConfirmed
	default:
		return ShowingPending
	}
}
