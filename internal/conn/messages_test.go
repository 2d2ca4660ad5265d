package conn

import (
	"testing"
)

func TestDecodeFrame(t *testing.T) {
	raw := []byte(`{"type":"message","id":"srv-1","role":"assistant","content":"hello"}`)

	frame, err := DecodeFrame(raw)
	if err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}

	if frame.Kind != FrameKindMessage {
		t.Errorf("Expected kind %s, got %s", FrameKindMessage, frame.Kind)
	}

	if frame.ServerID != "srv-1" {
		t.Errorf("Expected server id srv-1, got %s", frame.ServerID)
	}

	if frame.Timestamp == "" {
		t.Error("Expected timestamp to be filled in when missing")
	}
}

func TestDecodeFrameRejectsUnknownKind(t *testing.T) {
	if _, err := DecodeFrame([]byte(`{"type":"telemetry"}`)); err == nil {
		t.Error("Expected error for unsupported frame type")
	}

	if _, err := DecodeFrame([]byte(`not json`)); err == nil {
		t.Error("Expected error for malformed JSON")
	}
}

func TestDedupKeyPreference(t *testing.T) {
	both := &InboundFrame{BaseFrame: BaseFrame{ServerID: "s1", CorrelationID: "c1"}}
	if got := both.DedupKey(); got != "sid:s1" {
		t.Errorf("Server id should win, got %s", got)
	}

	corrOnly := &InboundFrame{BaseFrame: BaseFrame{CorrelationID: "c1"}}
	if got := corrOnly.DedupKey(); got != "cid:c1" {
		t.Errorf("Correlation id should be the fallback, got %s", got)
	}

	neither := &InboundFrame{}
	if got := neither.DedupKey(); got != "" {
		t.Errorf("Frame without ids must be unconditionally new, got %s", got)
	}
}

func TestIsAuthRejection(t *testing.T) {
	authErr := &InboundFrame{BaseFrame: BaseFrame{Kind: FrameKindError}, Code: "invalid_token"}
	if !authErr.IsAuthRejection() {
		t.Error("invalid_token error frame should be an auth rejection")
	}

	transport := &InboundFrame{BaseFrame: BaseFrame{Kind: FrameKindError}, Code: "internal_error"}
	if transport.IsAuthRejection() {
		t.Error("Non-auth error frame should not be an auth rejection")
	}

	ack := &InboundFrame{BaseFrame: BaseFrame{Kind: FrameKindAck}, Code: "invalid_token"}
	if ack.IsAuthRejection() {
		t.Error("Non-error frame should never be an auth rejection")
	}
}
