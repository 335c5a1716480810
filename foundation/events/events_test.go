package events_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ardanlabs/powchain/foundation/events"
)

func TestEvents(t *testing.T) {
	evts := events.New()

	ch1, err := evts.Acquire("one")
	if err != nil {
		t.Fatalf("Should be able to acquire a channel: %v", err)
	}

	ch2, err := evts.Acquire("two")
	if err != nil {
		t.Fatalf("Should be able to acquire a channel: %v", err)
	}

	again, _ := evts.Acquire("one")
	if again != ch1 {
		t.Fatalf("Should get back the same channel for the same id.")
	}

	if evts.Count() != 2 {
		t.Fatalf("Should have 2 subscribers, got %d", evts.Count())
	}

	evts.Send("chain: AppendBlock: blk[1]")

	for i, ch := range []chan string{ch1, ch2} {
		if msg := <-ch; msg != "chain: AppendBlock: blk[1]" {
			t.Fatalf("Should receive the message on channel %d, got %q", i, msg)
		}
	}

	if err := evts.Release("one"); err != nil {
		t.Fatalf("Should be able to release a channel: %v", err)
	}

	if _, open := <-ch1; open {
		t.Fatalf("Should close a released channel.")
	}

	if err := evts.Release("one"); err == nil {
		t.Fatalf("Should not be able to release a channel twice.")
	}

	evts.Shutdown()

	if _, open := <-ch2; open {
		t.Fatalf("Should close every channel on shutdown.")
	}

	if _, err := evts.Acquire("three"); !errors.Is(err, events.ErrShutdown) {
		t.Fatalf("Should not be able to acquire after shutdown, got %v", err)
	}
}

func TestSendDoesNotBlock(t *testing.T) {
	evts := events.New()
	defer evts.Shutdown()

	ch, err := evts.Acquire("slow")
	if err != nil {
		t.Fatalf("Should be able to acquire a channel: %v", err)
	}

	for i := 0; i < 1000; i++ {
		evts.Send(fmt.Sprintf("event %d", i))
	}

	if len(ch) != cap(ch) {
		t.Fatalf("Should fill the buffer and drop the rest, got %d of %d", len(ch), cap(ch))
	}
}
