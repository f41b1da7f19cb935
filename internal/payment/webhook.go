package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	SignatureHeader = "Payment-Signature"

	EventCheckoutCompleted = "checkout.session.completed"
)

var (
	ErrMissingSignature = errors.New("missing webhook signature")
	ErrInvalidSignature = errors.New("webhook signature does not match")
	ErrStaleSignature   = errors.New("webhook timestamp outside tolerance")
)

// Event is a webhook notification. Only checkout session events are decoded.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object Session `json:"object"`
	} `json:"data"`
}

func computeSignature(payload []byte, secret string, ts int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Sign builds the signature header value for payload at time ts.
func Sign(payload []byte, secret string, ts time.Time) string {
	unix := ts.Unix()
	return fmt.Sprintf("t=%d,v1=%s", unix, computeSignature(payload, secret, unix))
}

// VerifySignature checks a "t=<unix>,v1=<hex>" header against payload. Any of
// several v1 entries may match. A zero tolerance disables the age check.
func VerifySignature(payload []byte, header, secret string, tolerance time.Duration, now time.Time) error {
	if header == "" {
		return ErrMissingSignature
	}

	var (
		ts   int64
		sigs []string
	)
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("%w: bad timestamp", ErrInvalidSignature)
			}
			ts = n
		case "v1":
			sigs = append(sigs, value)
		}
	}
	if ts == 0 || len(sigs) == 0 {
		return ErrMissingSignature
	}

	if tolerance > 0 {
		age := now.Sub(time.Unix(ts, 0))
		if age > tolerance || age < -tolerance {
			return ErrStaleSignature
		}
	}

	expected := []byte(computeSignature(payload, secret, ts))
	for _, sig := range sigs {
		if hmac.Equal(expected, []byte(sig)) {
			return nil
		}
	}
	return ErrInvalidSignature
}

func ParseEvent(payload []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("decode webhook event: %w", err)
	}
	if ev.Type == "" {
		return nil, errors.New("decode webhook event: missing type")
	}
	return &ev, nil
}

// ConstructEvent verifies the signature and decodes the event.
func ConstructEvent(payload []byte, header, secret string, tolerance time.Duration) (*Event, error) {
	if err := VerifySignature(payload, header, secret, tolerance, time.Now()); err != nil {
		return nil, err
	}
	return ParseEvent(payload)
}

// NewCompletedEvent builds the payload the processor sends once a checkout
// session is paid.
func NewCompletedEvent(session Session) ([]byte, error) {
	var ev Event
	ev.ID = "evt_" + strings.TrimPrefix(session.ID, "cs_")
	ev.Type = EventCheckoutCompleted
	ev.Data.Object = session
	return json.Marshal(ev)
}
