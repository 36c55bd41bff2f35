package wsexchange

import "testing"

func TestHttpExchangeStatusTransitions(t *testing.T) {
	e := NewHttpExchange(nil, nil, nil)
	if e.GetStatus() != StatusInit {
		t.Fatalf("expected Init, got %s", e.GetStatus())
	}

	if err := e.SetStatus(StatusExchanging); err != nil {
		t.Fatalf("SetStatus Exchanging: %v", err)
	}
	if e.GetStatus() != StatusExchanging {
		t.Fatalf("expected Exchanging, got %s", e.GetStatus())
	}

	if err := e.SetStatus(StatusCompleted); err != nil {
		t.Fatalf("SetStatus Completed: %v", err)
	}
}

func TestHttpExchangeRejectsTransitionAfterTerminal(t *testing.T) {
	e := NewHttpExchange(nil, nil, nil)
	if err := e.SetStatus(StatusError); err != nil {
		t.Fatalf("SetStatus Error: %v", err)
	}

	if err := e.SetStatus(StatusExchanging); err != ErrTerminal {
		t.Fatalf("expected ErrTerminal, got %v", err)
	}
}
