package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/Priya8975/showing-webhooks/internal/domain"
)

// Notification is a validated webhook body. Showing is nil when the event
// carried no showing sub-record.
type Notification struct {
	Event   domain.Event
	Showing *domain.Showing
}

// Timestamp accepts RFC 3339 strings, naive ISO date-times (taken as UTC) and
// Unix epochs in seconds or milliseconds (see UnixTimestamp). It never fails to decode; unparsable input is reported by
// validation so the offending field can be named.
type Timestamp struct {
	Time  time.Time
	Raw   string
	Valid bool
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = Timestamp{}
		return nil
	}
	t.Raw = string(data)
	t.Time, t.Valid = parseTimestampJSON(data)
	return nil
}

func (t *Timestamp) present() bool { return t != nil && t.Raw != "" }

func (t *Timestamp) ptr() *time.Time {
	if !t.present() || !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp parses the textual forms accepted in webhook bodies and query
// parameters. Values without a zone are UTC.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

func parseTimestampJSON(data []byte) (time.Time, bool) {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return time.Time{}, false
		}
		return ParseTimestamp(s)
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return time.Time{}, false
	}
	return UnixTimestamp(v)
}

const (
	// Epoch values larger than this in magnitude are milliseconds.
	msEpochThreshold = 2e10
	// 9999-12-31T23:59:59Z
	maxEpochSeconds = 253402300799
)

// UnixTimestamp converts a numeric epoch. Values above 2e10 in magnitude are
// read as milliseconds; anything outside years 1 to 9999 after that is
// rejected, as are NaN and infinities.
func UnixTimestamp(v float64) (time.Time, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return time.Time{}, false
	}
	if math.Abs(v) > msEpochThreshold {
		v /= 1000
	}
	if v > maxEpochSeconds || v < minEpochSeconds {
		return time.Time{}, false
	}
	whole, frac := math.Modf(v)
	return time.Unix(int64(whole), int64(frac*float64(time.Second))).UTC(), true
}

// 0001-01-01T00:00:00Z
var minEpochSeconds = float64(time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC).Unix())

type wirePayload struct {
	Event *wireEvent `json:"event" validate:"required"`
}

type wireEvent struct {
	ID             string       `json:"id" validate:"required,max=255,nonul"`
	Action         string       `json:"action" validate:"required,max=100,nonul"`
	Actor          *string      `json:"actor" validate:"omitempty,max=100,nonul"`
	TeamMemberName *string      `json:"team_member_name" validate:"omitempty,max=255,nonul"`
	TeamMemberUID  *string      `json:"team_member_uid" validate:"omitempty,max=100,nonul"`
	CreatedAt      *Timestamp   `json:"created_at" validate:"-"`
	Showing        *wireShowing `json:"showing"`
}

type wireShowing struct {
	UID                       string     `json:"uid" validate:"required,max=100,nonul"`
	CreatedAt                 *Timestamp `json:"created_at" validate:"-"`
	Showtime                  *Timestamp `json:"showtime" validate:"-"`
	ShowingTimeZone           *string    `json:"showing_time_zone" validate:"omitempty,max=100,nonul"`
	ShowingTimeZoneUTCOffset  *int       `json:"showing_time_zone_utc_offset" validate:"omitempty,min=-86400,max=86400"`
	Name                      *string    `json:"name" validate:"omitempty,max=255,nonul"`
	Phone                     *string    `json:"phone" validate:"omitempty,max=50,nonul"`
	Email                     *string    `json:"email" validate:"omitempty,max=255,nonul"`
	Notes                     *string    `json:"notes" validate:"omitempty,nonul"`
	ListingUID                *string    `json:"listing_uid" validate:"omitempty,max=100,nonul"`
	ListingFullAddress        *string    `json:"listing_full_address" validate:"omitempty,nonul"`
	IsSelfShow                *bool      `json:"is_self_show"`
	ConfirmedAt               *Timestamp `json:"confirmed_at" validate:"-"`
	CanceledAt                *Timestamp `json:"canceled_at" validate:"-"`
	SelfShowCodeDistributedAt *Timestamp `json:"self_show_code_distributed_at" validate:"-"`
}

var (
	payloadValidator     *validator.Validate
	payloadValidatorOnce sync.Once
)

func getValidator() *validator.Validate {
	payloadValidatorOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		// Postgres text columns reject NUL characters.
		_ = v.RegisterValidation("nonul", func(fl validator.FieldLevel) bool {
			return !strings.ContainsRune(fl.Field().String(), 0)
		})
		v.RegisterStructValidation(validateEventTimes, wireEvent{})
		v.RegisterStructValidation(validateShowingTimes, wireShowing{})
		payloadValidator = v
	})
	return payloadValidator
}

func validateEventTimes(sl validator.StructLevel) {
	ev := sl.Current().Interface().(wireEvent)
	if !ev.CreatedAt.present() {
		sl.ReportError(ev.CreatedAt, "created_at", "CreatedAt", "required", "")
		return
	}
	if !ev.CreatedAt.Valid {
		sl.ReportError(ev.CreatedAt.Raw, "created_at", "CreatedAt", "datetime", "")
	}
}

func validateShowingTimes(sl validator.StructLevel) {
	s := sl.Current().Interface().(wireShowing)
	optional := []struct {
		ts     *Timestamp
		name   string
		goName string
	}{
		{s.CreatedAt, "created_at", "CreatedAt"},
		{s.Showtime, "showtime", "Showtime"},
		{s.ConfirmedAt, "confirmed_at", "ConfirmedAt"},
		{s.CanceledAt, "canceled_at", "CanceledAt"},
		{s.SelfShowCodeDistributedAt, "self_show_code_distributed_at", "SelfShowCodeDistributedAt"},
	}
	for _, f := range optional {
		if f.ts.present() && !f.ts.Valid {
			sl.ReportError(f.ts.Raw, f.name, f.goName, "datetime", "")
			return
		}
	}
}

// Parse decodes and validates a raw webhook body. Every failure is a
// malformed_payload AppError naming the first offending field.
func Parse(raw []byte) (*Notification, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, domain.ErrMalformed("request body is empty")
	}
	if !utf8.Valid(raw) {
		return nil, domain.ErrMalformed("request body is not valid UTF-8")
	}

	var p wirePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, decodeError(err)
	}

	if err := getValidator().Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, fieldError(verrs[0])
		}
		return nil, domain.ErrMalformed(err.Error())
	}

	return p.toNotification(raw), nil
}

func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		return domain.ErrMalformedField(field, fmt.Sprintf("%s has wrong type: got %s, want %s", field, typeErr.Value, typeErr.Type))
	}
	return domain.ErrMalformed("request body is not valid JSON")
}

func fieldError(fe validator.FieldError) error {
	// Namespace is "wirePayload.event.showing.uid"; drop the root type name.
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return domain.ErrMalformedField(field, field+" is required")
	case "datetime":
		return domain.ErrMalformedField(field, fmt.Sprintf("%s is not a valid date-time: %v", field, fe.Value()))
	case "max":
		if fe.Kind() == reflect.String {
			return domain.ErrMalformedField(field, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		}
		return domain.ErrMalformedField(field, fmt.Sprintf("%s must be at most %s", field, fe.Param()))
	case "min":
		return domain.ErrMalformedField(field, fmt.Sprintf("%s must be at least %s", field, fe.Param()))
	case "nonul":
		return domain.ErrMalformedField(field, field+" must not contain NUL characters")
	default:
		return domain.ErrMalformedField(field, fmt.Sprintf("%s failed %s validation", field, fe.Tag()))
	}
}

func (p wirePayload) toNotification(raw []byte) *Notification {
	ev := p.Event
	n := &Notification{
		Event: domain.Event{
			EventID:        ev.ID,
			Action:         ev.Action,
			Actor:          ev.Actor,
			TeamMemberName: ev.TeamMemberName,
			TeamMemberUID:  ev.TeamMemberUID,
			CreatedAt:      ev.CreatedAt.Time,
			RawPayload:     append([]byte(nil), raw...),
		},
	}
	if s := ev.Showing; s != nil {
		n.Showing = &domain.Showing{
			UID:                       s.UID,
			CreatedAt:                 s.CreatedAt.ptr(),
			Showtime:                  s.Showtime.ptr(),
			ShowingTimeZone:           s.ShowingTimeZone,
			ShowingTimeZoneUTCOffset:  s.ShowingTimeZoneUTCOffset,
			Name:                      s.Name,
			Phone:                     s.Phone,
			Email:                     s.Email,
			Notes:                     s.Notes,
			ListingUID:                s.ListingUID,
			ListingFullAddress:        s.ListingFullAddress,
			IsSelfShow:                s.IsSelfShow,
			ConfirmedAt:               s.ConfirmedAt.ptr(),
			CanceledAt:                s.CanceledAt.ptr(),
			SelfShowCodeDistributedAt: s.SelfShowCodeDistributedAt.ptr(),
		}
	}
	return n
}
