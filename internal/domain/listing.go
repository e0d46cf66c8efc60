package domain

import "time"

type Listing struct {
	UID           string    `json:"uid"`
	FullAddress   string    `json:"full_address"`
	FirstSeenAt   time.Time `json:"first_seen_at"`
	LastSeenAt    time.Time `json:"last_seen_at"`
	TotalShowings int       `json:"total_showings"`
}
