package packet

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

const validBody = `{
	"user_id": "u001", "session_id": "s001", "label": "strong_jab",
	"ts": 1700000000000000,
	"ax": 1.1, "ay": -0.2, "az": 9.8,
	"gx": 0.01, "gy": 0.02, "gz": -0.01
}`

func TestDecodeJSONValid(t *testing.T) {
	p, err := DecodeJSON(strings.NewReader(validBody))
	if err != nil {
		t.Fatalf("DecodeJSON failed: %v", err)
	}

	if p.UserID != "u001" {
		t.Errorf("Expected user_id 'u001', got %q", p.UserID)
	}
	if p.SessionID != "s001" {
		t.Errorf("Expected session_id 's001', got %q", p.SessionID)
	}
	if p.Label != "strong_jab" {
		t.Errorf("Expected label 'strong_jab', got %q", p.Label)
	}
	if p.TS != 1700000000000000 {
		t.Errorf("Expected ts 1700000000000000, got %d", p.TS)
	}
	if p.AZ != 9.8 {
		t.Errorf("Expected az 9.8, got %f", p.AZ)
	}
	if p.Batt != nil || p.RSSI != nil {
		t.Errorf("Expected absent telemetry, got batt=%v rssi=%v", p.Batt, p.RSSI)
	}
}

func TestDecodeJSONTelemetry(t *testing.T) {
	body := `{
		"user_id": "u001", "session_id": "s001", "label": "hook",
		"ts": 1, "ax": 0, "ay": 0, "az": 0, "gx": 0, "gy": 0, "gz": 0,
		"batt": 87, "rssi": -52
	}`
	p, err := DecodeJSON(strings.NewReader(body))
	if err != nil {
		t.Fatalf("DecodeJSON failed: %v", err)
	}
	if p.Batt == nil || *p.Batt != 87 {
		t.Errorf("Expected batt 87, got %v", p.Batt)
	}
	if p.RSSI == nil || *p.RSSI != -52 {
		t.Errorf("Expected rssi -52, got %v", p.RSSI)
	}
}

func TestDecodeJSONInvalid(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{
			name:  "missing ts",
			body:  `{"user_id":"u1","session_id":"s1","label":"jab","ax":1,"ay":1,"az":1,"gx":1,"gy":1,"gz":1}`,
			field: "ts",
		},
		{
			name:  "missing gz",
			body:  `{"user_id":"u1","session_id":"s1","label":"jab","ts":1,"ax":1,"ay":1,"az":1,"gx":1,"gy":1}`,
			field: "gz",
		},
		{
			name:  "missing user_id",
			body:  `{"session_id":"s1","label":"jab","ts":1,"ax":1,"ay":1,"az":1,"gx":1,"gy":1,"gz":1}`,
			field: "user_id",
		},
		{
			name:  "empty label",
			body:  `{"user_id":"u1","session_id":"s1","label":"","ts":1,"ax":1,"ay":1,"az":1,"gx":1,"gy":1,"gz":1}`,
			field: "label",
		},
		{
			name:  "ax wrong type",
			body:  `{"user_id":"u1","session_id":"s1","label":"jab","ts":1,"ax":"fast","ay":1,"az":1,"gx":1,"gy":1,"gz":1}`,
			field: "ax",
		},
		{
			name:  "ts wrong type",
			body:  `{"user_id":"u1","session_id":"s1","label":"jab","ts":"now","ax":1,"ay":1,"az":1,"gx":1,"gy":1,"gz":1}`,
			field: "ts",
		},
		{
			name:  "not json",
			body:  `ax=1.1&ay=2.2`,
			field: "body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeJSON(strings.NewReader(tt.body))
			if err == nil {
				t.Fatal("Expected validation error, got nil")
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Expected *ValidationError, got %T: %v", err, err)
			}
			if verr.Field != tt.field {
				t.Errorf("Expected field %q, got %q", tt.field, verr.Field)
			}
		})
	}
}

func TestEncodeOmitsAbsentTelemetry(t *testing.T) {
	p, err := DecodeJSON(strings.NewReader(validBody))
	if err != nil {
		t.Fatalf("DecodeJSON failed: %v", err)
	}

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if strings.Contains(string(data), "batt") || strings.Contains(string(data), "rssi") {
		t.Errorf("Expected batt/rssi omitted, got %s", data)
	}
}

func TestValidate(t *testing.T) {
	p := Packet{UserID: "u1", SessionID: "s1", Label: "jab"}
	if err := p.Validate(); err != nil {
		t.Errorf("Expected valid packet, got %v", err)
	}

	p.SessionID = ""
	err := p.Validate()
	if err == nil {
		t.Fatal("Expected validation error for empty session_id")
	}
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "session_id" {
		t.Errorf("Expected session_id validation error, got %v", err)
	}
}
