package chargestream

import (
	"errors"
	"testing"
	"time"
)

func TestValidateConfigExportPropagatesErrors(t *testing.T) {
	if err := ValidateConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}

	conf := &Config{PubSubSystem: "kafka"}
	conf.ApplyDefaults()
	if err := ValidateConfig(conf); err == nil {
		t.Fatal("expected error for kafka without brokers")
	}
}

func TestCanonicalizerExport(t *testing.T) {
	canon := NewCanonicalizer()
	raw, err := canon.Canonicalize(map[string]int{"b": 2, "a": 1})
	if err != nil {
		t.Fatalf("unexpected canonicalization error: %v", err)
	}
	if string(raw) != `{"a":1,"b":2}` {
		t.Fatalf("expected sorted canonical object, got %s", raw)
	}
}

func TestEventLogExport(t *testing.T) {
	log := NewEventLog(10)
	rec := log.Append("OnHeartbeat", "corr-1", time.Now(), []byte(`{}`))
	if rec.Sequence != 1 {
		t.Fatalf("expected first sequence to be 1, got %d", rec.Sequence)
	}

	if _, err := log.ReadBacklog(0, 10); err != nil {
		t.Fatalf("unexpected backlog error: %v", err)
	}
}

func TestParseChargeBoxIDExport(t *testing.T) {
	if _, err := ParseChargeBoxID("CP-0001"); err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if _, err := ParseChargeBoxID("not valid!"); !errors.Is(err, ErrInvalidChargeBoxID) {
		t.Fatalf("expected invalid charge box id error, got %v", err)
	}
}

func TestEncodingExportAliases(t *testing.T) {
	payload := map[string]string{"hello": "world"}
	if _, err := Marshal(payload); err != nil {
		t.Fatalf("marshal alias failed: %v", err)
	}
	if _, err := MarshalIndent(payload, "", "  "); err != nil {
		t.Fatalf("marshal indent alias failed: %v", err)
	}
	if err := Unmarshal([]byte(`{"hello":"world"}`), &payload); err != nil {
		t.Fatalf("unmarshal alias failed: %v", err)
	}
}

func TestULIDExport(t *testing.T) {
	id := CreateULID()
	if len(id) != 26 {
		t.Fatalf("expected 26-char ULID, got %q", id)
	}
}

func TestOccurrenceClassConstants(t *testing.T) {
	if ClassRequest != "request" {
		t.Fatalf("expected ClassRequest to be 'request', got %q", ClassRequest)
	}
	if ConnectionOpened != "opened" {
		t.Fatalf("expected ConnectionOpened to be 'opened', got %q", ConnectionOpened)
	}
}

func TestGetCapabilitiesExport(t *testing.T) {
	caps := GetCapabilities("channel")
	if !caps.GuaranteedOrder {
		t.Fatal("expected channel transport to guarantee order")
	}
}
