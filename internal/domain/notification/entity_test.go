package notification

import (
	"encoding/json"
	"testing"
)

func TestFamily(t *testing.T) {
	tests := []struct {
		typ  NotificationType
		want Family
	}{
		{TypeFollow, FamilySocial},
		{TypeReply, FamilySocial},
		{TypeWhisperMessage, FamilyWhisperMessage},
		{TypeSoulChatMessage, FamilySoulChatMessage},
		{TypeWhisperRequest, FamilyRequest},
		{TypeSoulChatRejected, FamilyRequest},
		{TypeSoulMatch, FamilyOther},
		{NotificationType("SOMETHING_NEW"), FamilyOther},
	}
	for _, tt := range tests {
		if got := tt.typ.Family(); got != tt.want {
			t.Errorf("%s.Family() = %q, want %q", tt.typ, got, tt.want)
		}
	}
}

func TestResolvedType(t *testing.T) {
	got, ok := ResolvedType("whisper", "accepted")
	if !ok || got != TypeWhisperAccepted {
		t.Errorf("ResolvedType(whisper, accepted) = %q, %v", got, ok)
	}
	got, ok = ResolvedType("soul_chat", "REJECTED")
	if !ok || got != TypeSoulChatRejected {
		t.Errorf("ResolvedType(soul_chat, REJECTED) = %q, %v", got, ok)
	}
	if _, ok := ResolvedType("", "ACCEPTED"); ok {
		t.Error("empty group should not resolve")
	}
}

func TestDedupKeyFromDecodedMetadata(t *testing.T) {
	var e Event
	body := `{"id":"n1","type":"WHISPER_REQUEST","metadata":{"requestId":42,"threadId":"t9"}}`
	if err := json.Unmarshal([]byte(body), &e); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if got := e.DedupKey(); got != "whisper:42" {
		t.Errorf("DedupKey() = %q, want %q", got, "whisper:42")
	}
	if got := e.ThreadID(); got != "t9" {
		t.Errorf("ThreadID() = %q", got)
	}
	if got := e.ActorID(); got != "" {
		t.Errorf("ActorID() = %q, want empty", got)
	}

	like := Event{ID: "n2", Type: TypeLike, Metadata: map[string]interface{}{"requestId": "x", "actorId": "u7"}}
	if like.DedupKey() != "" {
		t.Error("social events dedupe by id only")
	}
	if got := like.ActorID(); got != "u7" {
		t.Errorf("ActorID() = %q, want u7", got)
	}
}

func TestCountersNeverNegative(t *testing.T) {
	var c UnreadCounters
	c.Decrement(CounterSocial)
	c.Decrement(CounterSocial)
	if c.Social != 0 {
		t.Errorf("Social = %d, want 0", c.Social)
	}

	c.Increment(CounterWhisper)
	c.Add(CounterWhisper, -5)
	if c.WhisperThreads != 0 {
		t.Errorf("WhisperThreads = %d, want 0", c.WhisperThreads)
	}

	c.Set(CounterSoulChat, -3)
	if c.SoulChatThreads != 0 {
		t.Errorf("SoulChatThreads = %d, want 0", c.SoulChatThreads)
	}

	ops := []int{1, -1, -1, 3, -2, -2, -2, 1}
	for _, d := range ops {
		c.Add(CounterSocial, d)
		if c.Social < 0 {
			t.Fatalf("Social went negative: %d", c.Social)
		}
	}
}

func TestCountsUpdateApply(t *testing.T) {
	c := UnreadCounters{Social: 9, WhisperThreads: 2, SoulChatThreads: 1}
	var u CountsUpdate
	if err := json.Unmarshal([]byte(`{"follows":1,"likes":2,"comments":0,"soulChat":4}`), &u); err != nil {
		t.Fatal(err)
	}
	u.Apply(&c)
	want := UnreadCounters{Social: 3, WhisperThreads: 2, SoulChatThreads: 4}
	if c != want {
		t.Errorf("counters = %+v, want %+v", c, want)
	}
}
