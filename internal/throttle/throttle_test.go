package throttle

import (
	"testing"
	"time"
)

// fakeClock is advanced manually by tests.
type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) advance(d time.Duration) { f.now = f.now.Add(d) }

func newTestSender() (*Sender, *fakeClock, *[]any) {
	clk := &fakeClock{now: time.Unix(1000, 0)}
	var sent []any
	s := NewSender(50*time.Millisecond, clk, func(v any) {
		sent = append(sent, v)
	})
	return s, clk, &sent
}

func TestFirstSubmitSendsImmediately(t *testing.T) {
	s, _, sent := newTestSender()
	s.Submit("a")
	if len(*sent) != 1 || (*sent)[0] != "a" {
		t.Fatalf("expected immediate send of a, got %v", *sent)
	}
}

func TestBurstCoalescesToNewestValue(t *testing.T) {
	s, clk, sent := newTestSender()
	s.Submit("a") // sent, opens the window
	for i := 0; i < 100; i++ {
		clk.advance(100 * time.Microsecond)
		s.Submit(i)
	}
	if len(*sent) != 1 {
		t.Fatalf("burst inside window must not send, got %d sends", len(*sent))
	}
	clk.advance(50 * time.Millisecond)
	s.Flush()
	if len(*sent) != 2 {
		t.Fatalf("expected one flush send, got %d", len(*sent))
	}
	if (*sent)[1] != 99 {
		t.Fatalf("flush must carry the last submitted value, got %v", (*sent)[1])
	}
}

func TestFlushBeforeWindowIsNoop(t *testing.T) {
	s, clk, sent := newTestSender()
	s.Submit("a")
	clk.advance(10 * time.Millisecond)
	s.Submit("b")
	s.Flush()
	if len(*sent) != 1 {
		t.Fatalf("flush inside window must not send, got %v", *sent)
	}
}

func TestFlushWithoutPendingIsNoop(t *testing.T) {
	s, clk, sent := newTestSender()
	s.Submit("a")
	clk.advance(time.Second)
	s.Flush()
	if len(*sent) != 1 {
		t.Fatalf("flush with empty slot must not send, got %v", *sent)
	}
}

func TestSubmitAfterWindowSendsAgain(t *testing.T) {
	s, clk, sent := newTestSender()
	s.Submit("a")
	clk.advance(60 * time.Millisecond)
	s.Submit("b")
	if len(*sent) != 2 || (*sent)[1] != "b" {
		t.Fatalf("expected b sent after window, got %v", *sent)
	}
}
