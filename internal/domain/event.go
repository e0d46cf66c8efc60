package domain

import (
	"encoding/json"
	"time"
)

type Event struct {
	EventID        string          `json:"event_id"`
	Action         string          `json:"action"`
	Actor          *string         `json:"actor,omitempty"`
	TeamMemberName *string         `json:"team_member_name,omitempty"`
	TeamMemberUID  *string         `json:"team_member_uid,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	ReceivedAt     time.Time       `json:"received_at"`
	RawPayload     json.RawMessage `json:"raw_payload,omitempty"`
}
