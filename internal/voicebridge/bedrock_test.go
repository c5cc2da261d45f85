package voicebridge

import (
	"encoding/base64"
	"encoding/json"
	"testing"
)

func demuxFrame(t *testing.T, raw string) []Event {
	t.Helper()
	b := &BedrockBridge{}
	var events []Event
	b.handleFrame("sess-1", []byte(raw), func(ev Event) { events = append(events, ev) })
	return events
}

func TestHandleFrameOddAudioPadded(t *testing.T) {
	odd := make([]byte, 2049)
	payload, _ := json.Marshal(map[string]string{"audio": base64.StdEncoding.EncodeToString(odd)})

	events := demuxFrame(t, string(payload))
	if len(events) != 1 || events[0].Kind != EventAudio {
		t.Fatalf("events = %+v", events)
	}
	if len(events[0].Audio) != 2050 {
		t.Errorf("audio length = %d, want 2050 (padded)", len(events[0].Audio))
	}
}

func TestHandleFrameTranscript(t *testing.T) {
	events := demuxFrame(t, `{"transcript":{"role":"user","text":"I want my balance","final":true}}`)
	if len(events) != 1 || events[0].Kind != EventTranscript {
		t.Fatalf("events = %+v", events)
	}
	if events[0].Role != "user" || !events[0].Final {
		t.Errorf("transcript = %+v", events[0])
	}
}

func TestHandleFrameToolUse(t *testing.T) {
	events := demuxFrame(t, `{"toolUse":{"toolName":"perform_idv_check","toolUseId":"tu-9","input":{"account":"12345678"}}}`)
	if len(events) != 1 || events[0].Kind != EventToolUse {
		t.Fatalf("events = %+v", events)
	}
	if events[0].ToolName != "perform_idv_check" || events[0].ToolUseID != "tu-9" {
		t.Errorf("toolUse = %+v", events[0])
	}
	if events[0].Input["account"] != "12345678" {
		t.Errorf("input = %v", events[0].Input)
	}
}

func TestHandleFrameUsage(t *testing.T) {
	events := demuxFrame(t, `{"usageEvent":{"inputTokens":100,"outputTokens":40,"totalTokens":140}}`)
	if len(events) != 1 || events[0].Kind != EventUsage {
		t.Fatalf("events = %+v", events)
	}
	if events[0].TotalTokens != 140 {
		t.Errorf("usage = %+v", events[0])
	}
}

func TestHandleFrameLifecycle(t *testing.T) {
	events := demuxFrame(t, `{"lifecycle":"interactionTurnEnd"}`)
	if len(events) != 1 || events[0].Kind != EventInteractionTurnEnd {
		t.Fatalf("events = %+v", events)
	}
}

func TestHandleFrameMalformedDropped(t *testing.T) {
	events := demuxFrame(t, `{not json`)
	if len(events) != 0 {
		t.Errorf("malformed frame should be dropped, got %+v", events)
	}
}

func TestHandleFrameInterruption(t *testing.T) {
	events := demuxFrame(t, `{"interruption":{"cause":"barge-in"}}`)
	if len(events) != 1 || events[0].Kind != EventInterruption {
		t.Fatalf("events = %+v", events)
	}
}
