// Command sendhook posts sample showing notifications to a running server and
// prints each response, which makes duplicate handling easy to observe.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Priya8975/showing-webhooks/internal/logger"
)

type options struct {
	url     string
	token   string
	eventID string
	action  string
	showing string
	email   string
	name    string
	listing string
	address string
	confirm bool
	cancel  bool
	repeat  int
	timeout time.Duration
}

func main() {
	log := logger.New("info", "console", os.Stderr)
	if err := run(context.Background(), os.Args[1:], http.DefaultClient, log); err != nil {
		log.Fatal().Err(err).Msg("sendhook failed")
	}
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("sendhook", flag.ContinueOnError)
	fs.StringVar(&o.url, "url", "http://localhost:8000/webhook", "webhook endpoint")
	fs.StringVar(&o.token, "token", os.Getenv("SHOWMOJO_BEARER_TOKEN"), "bearer token")
	fs.StringVar(&o.eventID, "event", "", "event id (random when empty)")
	fs.StringVar(&o.action, "action", "showing.created", "event action")
	fs.StringVar(&o.showing, "showing", "", "showing uid; no showing is sent when empty")
	fs.StringVar(&o.email, "email", "", "prospect email")
	fs.StringVar(&o.name, "name", "", "prospect name")
	fs.StringVar(&o.listing, "listing", "", "listing uid")
	fs.StringVar(&o.address, "address", "", "listing full address")
	fs.BoolVar(&o.confirm, "confirm", false, "mark the showing confirmed")
	fs.BoolVar(&o.cancel, "cancel", false, "mark the showing canceled")
	fs.IntVar(&o.repeat, "repeat", 1, "send the same body this many times")
	fs.DurationVar(&o.timeout, "timeout", 10*time.Second, "per-request timeout")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if o.repeat < 1 {
		return options{}, fmt.Errorf("-repeat must be at least 1")
	}
	if o.eventID == "" {
		o.eventID = "evt-" + uuid.NewString()
	}
	return o, nil
}

// buildPayload renders the notification body in the provider's shape.
func buildPayload(o options, now time.Time) ([]byte, error) {
	stamp := now.UTC().Format(time.RFC3339)
	event := map[string]any{
		"id":         o.eventID,
		"action":     o.action,
		"actor":      "sendhook",
		"created_at": stamp,
	}

	if o.showing != "" {
		showing := map[string]any{
			"uid":        o.showing,
			"created_at": stamp,
			"showtime":   now.Add(48 * time.Hour).UTC().Format(time.RFC3339),
		}
		optional := map[string]string{
			"email":                o.email,
			"name":                 o.name,
			"listing_uid":          o.listing,
			"listing_full_address": o.address,
		}
		for k, v := range optional {
			if v != "" {
				showing[k] = v
			}
		}
		if o.confirm {
			showing["confirmed_at"] = stamp
		}
		if o.cancel {
			showing["canceled_at"] = stamp
		}
		event["showing"] = showing
	}

	return json.Marshal(map[string]any{"event": event})
}

func run(ctx context.Context, args []string, client *http.Client, log zerolog.Logger) error {
	o, err := parseFlags(args)
	if err != nil {
		return err
	}
	body, err := buildPayload(o, time.Now())
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	for i := 1; i <= o.repeat; i++ {
		status, resp, err := send(ctx, client, o, body)
		if err != nil {
			return fmt.Errorf("attempt %d: %w", i, err)
		}
		log.Info().
			Int("attempt", i).
			Str("event_id", o.eventID).
			Int("status", status).
			RawJSON("response", compact(resp)).
			Msg("webhook sent")
	}
	return nil
}

func send(ctx context.Context, client *http.Client, o options, body []byte) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if o.token != "" {
		req.Header.Set("Authorization", "Bearer "+o.token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("reading response: %w", err)
	}
	return resp.StatusCode, data, nil
}

// compact returns valid JSON for logging, quoting bodies that are not JSON.
func compact(b []byte) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, b); err == nil && buf.Len() > 0 {
		return buf.Bytes()
	}
	quoted, _ := json.Marshal(string(b))
	return quoted
}
