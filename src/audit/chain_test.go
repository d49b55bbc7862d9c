package audit

import (
	"errors"
	"testing"
)

func TestAppendChainsHashes(t *testing.T) {
	listener := NewListenerSink()
	chain := New(listener)

	e1 := NewBuilder(OrderPlaced).User("trader1").Product("AAPL").Add("order_id", "1").Build()
	got1, err := chain.Append(e1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got1.PreviousHash != GenesisHash {
		t.Errorf("expected first event to chain from genesis hash, got %s", got1.PreviousHash)
	}
	if got1.Hash == "" {
		t.Error("expected a non-empty hash")
	}

	e2 := NewBuilder(OrderFilled).User("trader1").Product("AAPL").Add("order_id", "1").Build()
	got2, err := chain.Append(e2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got2.PreviousHash != got1.Hash {
		t.Errorf("expected second event's previous_hash to equal first event's hash")
	}
}

func TestAppendDeliversToEverySink(t *testing.T) {
	listenerA := NewListenerSink()
	listenerB := NewListenerSink()
	chain := New(listenerA, listenerB)

	e := NewBuilder(SystemStart).Build()
	if _, err := chain.Append(e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(listenerA.Events()) != 1 {
		t.Errorf("expected listenerA to receive 1 event, got %d", len(listenerA.Events()))
	}
	if len(listenerB.Events()) != 1 {
		t.Errorf("expected listenerB to receive 1 event, got %d", len(listenerB.Events()))
	}
}

type failingSink struct {
	primary bool
}

var errBoom = errors.New("boom")

func (f failingSink) Write(Event) error { return errBoom }
func (f failingSink) Primary() bool     { return f.primary }

func TestAppendPrimarySinkFailureIsFatal(t *testing.T) {
	chain := New(failingSink{primary: true})

	_, err := chain.Append(NewBuilder(SystemStart).Build())
	if err == nil {
		t.Fatal("expected an error from a failing primary sink")
	}
	if _, ok := err.(*PrimarySinkError); !ok {
		t.Errorf("expected *PrimarySinkError, got %T", err)
	}
}

func TestAppendAdvisorySinkFailureIsNotFatal(t *testing.T) {
	chain := New(failingSink{primary: false})

	_, err := chain.Append(NewBuilder(SystemStart).Build())
	if err == nil {
		t.Fatal("expected an advisory error to be returned")
	}
	if _, ok := err.(*PrimarySinkError); ok {
		t.Error("expected advisory failure to not be a *PrimarySinkError")
	}
}

func TestVerifyChainDetectsTamper(t *testing.T) {
	listener := NewListenerSink()
	chain := New(listener)

	for i := 0; i < 5; i++ {
		chain.Append(NewBuilder(OrderPlaced).User("trader1").Product("AAPL").Add("seq", i).Build())
	}

	events := listener.Events()
	report := VerifyChain(events)
	if !report.Valid {
		t.Fatalf("expected an untampered chain to verify, errors: %+v", report.Errors)
	}

	// Tamper with one event's data after the fact.
	tampered := make([]Event, len(events))
	copy(tampered, events)
	tampered[2].Data = map[string]any{"seq": 999}

	report = VerifyChain(tampered)
	if report.Valid {
		t.Fatal("expected tampered chain to fail verification")
	}
	if len(report.Errors) < 2 {
		t.Fatalf("expected errors at the tampered event and its successor, got %+v", report.Errors)
	}
	if report.Errors[0].Index != 2 {
		t.Errorf("expected first error at offset 2, got %d", report.Errors[0].Index)
	}
	if report.Errors[1].Index != 3 {
		t.Errorf("expected cascading previous_hash error at offset 3, got %d", report.Errors[1].Index)
	}
}

func TestVerifyChainDetectsPreviousHashBreak(t *testing.T) {
	listener := NewListenerSink()
	chain := New(listener)
	for i := 0; i < 3; i++ {
		chain.Append(NewBuilder(OrderPlaced).Add("seq", i).Build())
	}

	events := listener.Events()
	events[1].PreviousHash = "deadbeef"

	report := VerifyChain(events)
	if report.Valid {
		t.Fatal("expected broken previous_hash chain to fail verification")
	}
}

func TestListenerSinkSubscribeReceivesFutureEvents(t *testing.T) {
	listener := NewListenerSink()
	ch := listener.Subscribe(4)
	chain := New(listener)

	chain.Append(NewBuilder(SystemStart).Build())

	select {
	case <-ch:
	default:
		t.Fatal("expected subscriber to receive the appended event")
	}
}

func TestEventTypeDescription(t *testing.T) {
	if OrderPlaced.Description() == "" {
		t.Error("expected a non-empty description for ORDER_PLACED")
	}
	if EventType("UNKNOWN").Description() != "" {
		t.Error("expected an empty description for an unrecognized event type")
	}
}
