package session

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestNextMsgIDStrictlyIncreasingAndAligned(t *testing.T) {
	s := New(Config{ID: 1})

	prev := s.NextMsgID(1000.0)
	if prev%4 != 0 {
		t.Fatalf("msg-id not 4-byte aligned: %d", prev)
	}

	for i := 0; i < 5; i++ {
		next := s.NextMsgID(1000.0) // server time not advancing
		if next <= prev {
			t.Fatalf("msg-id not strictly increasing: prev=%d next=%d", prev, next)
		}
		if next-prev != 4 {
			t.Errorf("msg-id step = %d, want 4 when server time stalls", next-prev)
		}
		prev = next
	}

	jumped := s.NextMsgID(1_000_000.0)
	if jumped <= prev {
		t.Fatalf("msg-id should jump forward with advancing server time")
	}
}

func TestNextSeqNoParity(t *testing.T) {
	s := New(Config{ID: 1})

	a := s.NextSeqNo(false)
	b := s.NextSeqNo(true)
	c := s.NextSeqNo(false)

	if a%2 != 0 {
		t.Errorf("non-content-related seq_no should be even, got %d", a)
	}
	if b%2 != 1 {
		t.Errorf("content-related seq_no should be odd, got %d", b)
	}
	if c <= b {
		t.Fatalf("seq_no should keep increasing: a=%d b=%d c=%d", a, b, c)
	}
}

func TestAckFlushBatchesAndClears(t *testing.T) {
	flushed := make(chan []int64, 1)
	s := New(Config{
		ID:       1,
		AckDelay: 20 * time.Millisecond,
		FlushAcks: func(ids []int64) {
			flushed <- ids
		},
	})

	s.OnMessageReceived(5) // low bit set: needs ack
	s.OnMessageReceived(8) // low bit clear: ignored for acking
	s.OnMessageReceived(7) // low bit set: batched with 5

	select {
	case ids := <-flushed:
		if len(ids) != 2 {
			t.Fatalf("flushed %d ids, want 2: %v", len(ids), ids)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("ack flush never fired")
	}

	if got := s.ReceivedCount(); got != 3 {
		t.Errorf("ReceivedCount() = %d, want 3", got)
	}
}

func TestCloseStopsPendingFlush(t *testing.T) {
	var flushedCount int32
	s := New(Config{
		ID:       1,
		AckDelay: 10 * time.Millisecond,
		FlushAcks: func(ids []int64) {
			atomic.AddInt32(&flushedCount, 1)
		},
	})

	s.OnMessageReceived(1)
	s.Close()

	time.Sleep(50 * time.Millisecond)
	if atomic.LoadInt32(&flushedCount) != 0 {
		t.Error("flush should not fire after Close")
	}
}

func TestTableCreateGetRemove(t *testing.T) {
	table := NewTable()

	s1 := table.Create(2, 100, nil)
	s2 := table.Create(2, 100, nil)
	if s1.ID() == s2.ID() {
		t.Fatal("Create() handed out duplicate handles")
	}
	if table.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", table.Count())
	}

	if got := table.Get(s1.ID()); got != s1 {
		t.Error("Get() did not return the session created with that handle")
	}

	table.Remove(s1.ID())
	if table.Count() != 1 {
		t.Fatalf("Count() after Remove = %d, want 1", table.Count())
	}
	if table.Get(s1.ID()) != nil {
		t.Error("Get() should return nil after Remove")
	}
}
