package packet

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Packet represents one validated motion-sensor reading. It is immutable
// once constructed; the same shape is echoed verbatim to push-channel
// observers.
type Packet struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Label     string `json:"label"`
	TS        int64  `json:"ts"` // epoch microseconds, producer-supplied

	// Accelerometer axes
	AX float64 `json:"ax"`
	AY float64 `json:"ay"`
	AZ float64 `json:"az"`

	// Gyroscope axes
	GX float64 `json:"gx"`
	GY float64 `json:"gy"`
	GZ float64 `json:"gz"`

	// Device telemetry; nil means "not reported"
	Batt *int `json:"batt,omitempty"`
	RSSI *int `json:"rssi,omitempty"`
}

// ValidationError reports a missing or malformed field in an inbound packet.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid packet: field %q %s", e.Field, e.Reason)
}

// wirePacket mirrors Packet with pointer-typed required fields so that a
// missing field is distinguishable from a zero value after JSON decoding.
type wirePacket struct {
	UserID    *string  `json:"user_id"`
	SessionID *string  `json:"session_id"`
	Label     *string  `json:"label"`
	TS        *int64   `json:"ts"`
	AX        *float64 `json:"ax"`
	AY        *float64 `json:"ay"`
	AZ        *float64 `json:"az"`
	GX        *float64 `json:"gx"`
	GY        *float64 `json:"gy"`
	GZ        *float64 `json:"gz"`
	Batt      *int     `json:"batt"`
	RSSI      *int     `json:"rssi"`
}

// DecodeJSON reads one JSON-encoded packet and validates it. Malformed
// JSON, a wrong primitive type, or a missing/empty required field all
// surface as *ValidationError.
func DecodeJSON(r io.Reader) (Packet, error) {
	var wire wirePacket
	if err := json.NewDecoder(r).Decode(&wire); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return Packet{}, &ValidationError{Field: typeErr.Field, Reason: "has wrong type"}
		}
		return Packet{}, &ValidationError{Field: "body", Reason: "is not valid JSON"}
	}

	required := []struct {
		name string
		ok   bool
	}{
		{"user_id", wire.UserID != nil},
		{"session_id", wire.SessionID != nil},
		{"label", wire.Label != nil},
		{"ts", wire.TS != nil},
		{"ax", wire.AX != nil},
		{"ay", wire.AY != nil},
		{"az", wire.AZ != nil},
		{"gx", wire.GX != nil},
		{"gy", wire.GY != nil},
		{"gz", wire.GZ != nil},
	}
	for _, f := range required {
		if !f.ok {
			return Packet{}, &ValidationError{Field: f.name, Reason: "is required"}
		}
	}

	p := Packet{
		UserID:    *wire.UserID,
		SessionID: *wire.SessionID,
		Label:     *wire.Label,
		TS:        *wire.TS,
		AX:        *wire.AX,
		AY:        *wire.AY,
		AZ:        *wire.AZ,
		GX:        *wire.GX,
		GY:        *wire.GY,
		GZ:        *wire.GZ,
		Batt:      wire.Batt,
		RSSI:      wire.RSSI,
	}
	if err := p.Validate(); err != nil {
		return Packet{}, err
	}
	return p, nil
}

// Validate checks the identifier invariants on an already-decoded packet.
// Numeric presence is enforced at the wire boundary (DecodeJSON); callers
// constructing packets in-process get the same identifier checks here.
func (p Packet) Validate() error {
	switch {
	case p.UserID == "":
		return &ValidationError{Field: "user_id", Reason: "must not be empty"}
	case p.SessionID == "":
		return &ValidationError{Field: "session_id", Reason: "must not be empty"}
	case p.Label == "":
		return &ValidationError{Field: "label", Reason: "must not be empty"}
	}
	return nil
}
