package event

import "testing"

func TestCompletionTimeInvariant(t *testing.T) {
	e := New(WRITE, 10, 5, 3)
	if got, want := e.CompletionTime(), 8.0; got != want {
		t.Errorf("CompletionTime() = %v, want %v", got, want)
	}
	if e.CompletionTime() < e.StartTime {
		t.Errorf("completion time %v before start time %v", e.CompletionTime(), e.StartTime)
	}
}

func TestAppendNextAndLast(t *testing.T) {
	parent := New(READ, 1, 0, 0)
	sub := New(NOOP, 1, 0, 0)
	parent.AppendNext(sub)

	if parent.Next != sub {
		t.Errorf("AppendNext did not chain onto parent.Next")
	}
	if parent.Last() != sub {
		t.Errorf("Last() = %v, want sub", parent.Last())
	}

	tail := New(NOOP, 1, 0, 0)
	sub.AppendNext(tail)
	if parent.Last() != tail {
		t.Errorf("Last() did not walk the full chain")
	}
}

func TestConsolidateFoldsTimeTakenAndClearsChain(t *testing.T) {
	parent := New(READ, 1, 0, 5)
	parent.AppendNext(New(NOOP, 1, 0, 2))
	parent.AppendNext(New(NOOP, 1, 0, 3))

	parent.Consolidate()

	if parent.Next != nil {
		t.Errorf("Consolidate left Next set: %+v", parent.Next)
	}
	if got, want := parent.TimeTaken, 10.0; got != want {
		t.Errorf("TimeTaken after Consolidate = %v, want %v", got, want)
	}
}

func TestCountsAsCompletedWrite(t *testing.T) {
	tests := []struct {
		name string
		e    *Event
		want bool
	}{
		{"plain experiment write", &Event{EventType: WRITE, IsExperimentIO: true}, true},
		{"noop", &Event{EventType: WRITE, IsExperimentIO: true, Noop: true}, false},
		{"non experiment", &Event{EventType: WRITE, IsExperimentIO: false}, false},
		{"trim", &Event{EventType: TRIM, IsExperimentIO: true}, false},
		{"read", &Event{EventType: READ, IsExperimentIO: true}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.e.CountsAsCompletedWrite(); got != tt.want {
				t.Errorf("CountsAsCompletedWrite() = %v, want %v", got, tt.want)
			}
		})
	}
}
