package websocket

import "testing"

func TestParseMessageDecode(t *testing.T) {
	frame := []byte(`{"type":"notification","data":{"id":"n1","message":"hi"}}`)
	msg, err := ParseMessage(frame)
	if err != nil {
		t.Fatalf("ParseMessage() error: %v", err)
	}
	if msg.Type != EventTypeNotification {
		t.Errorf("Type = %q", msg.Type)
	}
	var out struct {
		ID      string `json:"id"`
		Message string `json:"message"`
	}
	if err := msg.Decode(&out); err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if out.ID != "n1" || out.Message != "hi" {
		t.Errorf("decoded = %+v", out)
	}
}

func TestParseMessageEventAlias(t *testing.T) {
	msg, err := ParseMessage([]byte(`{"event":"unread_counts_update","data":{"whisper":2}}`))
	if err != nil {
		t.Fatal(err)
	}
	if msg.Type != EventTypeUnreadCountsUpdate {
		t.Errorf("Type = %q", msg.Type)
	}
}

func TestNewMessageDecodeRoundTrip(t *testing.T) {
	msg := NewMessage(EventTypeToast, ToastData{Level: ToastError, Message: "nope"})
	if msg.ID == "" {
		t.Error("expected a message id")
	}
	var td ToastData
	if err := msg.Decode(&td); err != nil {
		t.Fatal(err)
	}
	if td.Level != ToastError {
		t.Errorf("Level = %q", td.Level)
	}
}
