package domain

import "time"

type Prospect struct {
	Email          string    `json:"email"`
	Name           *string   `json:"name,omitempty"`
	Phone          *string   `json:"phone,omitempty"`
	FirstContactAt time.Time `json:"first_contact_at"`
	LastContactAt  time.Time `json:"last_contact_at"`
	TotalShowings  int       `json:"total_showings"`
}
