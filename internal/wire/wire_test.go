package wire

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeRejectsUnknownKind(t *testing.T) {
	_, err := Decode([]byte(`{"kind":"mystery"}`))
	if !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte(`{not json`)); err == nil {
		t.Fatal("expected decode error for malformed frame")
	}
}

func TestDecodeBroadcast(t *testing.T) {
	frame := `{"kind":"broadcast","channel":"canvas-cursors","event":"cursor-move","payload":{"userId":"u1","x":10,"y":20}}`
	env, err := Decode([]byte(frame))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Kind != KindBroadcast || env.Channel != ChannelCursors || env.Event != EventCursorMove {
		t.Fatalf("unexpected envelope %+v", env)
	}
	var cm CursorMove
	if err := json.Unmarshal(env.Payload, &cm); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if err := cm.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cm.X != 10 || cm.Y != 20 {
		t.Fatalf("unexpected cursor %+v", cm)
	}
}

func TestPayloadValidation(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"cursor missing user", CursorMove{X: 1}.Validate()},
		{"drag missing shape", DragMove{UserID: "u1"}.Validate()},
		{"drag missing user", DragMove{ShapeID: "s1"}.Validate()},
		{"lock missing shape", Lock{UserID: "u1"}.Validate()},
		{"unlock missing user", Unlock{ShapeID: "s1"}.Validate()},
	}
	for _, c := range cases {
		if c.err == nil {
			t.Errorf("%s: expected validation error", c.name)
		}
	}
	if err := (DragMove{ShapeID: "s1", UserID: "u1"}).Validate(); err != nil {
		t.Errorf("valid drag-move rejected: %v", err)
	}
}
