package policy

import "testing"

func TestQTableDefaultsToZero(t *testing.T) {
	table := NewQTable()
	if got := table.Get("s", "a"); got != 0 {
		t.Errorf("Get on empty table = %v, want 0", got)
	}
	if got := table.Max("s"); got != 0 {
		t.Errorf("Max on empty table = %v, want 0", got)
	}
	if table.States() != 0 {
		t.Error("reads must not materialize entries")
	}
}

func TestQTableSetGet(t *testing.T) {
	table := NewQTable()
	table.Set("s", "a", 0.5)
	table.Set("s", "b", -0.25)

	if got := table.Get("s", "a"); got != 0.5 {
		t.Errorf("Get = %v, want 0.5", got)
	}
	if got := table.Max("s"); got != 0.5 {
		t.Errorf("Max = %v, want 0.5", got)
	}
	if table.States() != 1 {
		t.Errorf("States = %d, want 1", table.States())
	}
}

func TestQTableMaxWithAllNegative(t *testing.T) {
	table := NewQTable()
	table.Set("s", "a", -2)
	table.Set("s", "b", -1)

	// Max must return the stored maximum, not the zero default.
	if got := table.Max("s"); got != -1 {
		t.Errorf("Max = %v, want -1", got)
	}
}

func TestBestActionTieBreak(t *testing.T) {
	table := NewQTable()

	tests := []struct {
		name       string
		setup      func()
		candidates []string
		want       string
	}{
		{"all unseen picks first", func() {}, []string{"x", "y", "z"}, "x"},
		{"highest wins", func() { table.Set("s", "y", 1) }, []string{"x", "y", "z"}, "y"},
		{"tie broken by candidate order", func() { table.Set("s", "z", 1) }, []string{"x", "z", "y"}, "z"},
		{"empty candidates", func() {}, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			if got := table.BestAction("s", tt.candidates); got != tt.want {
				t.Errorf("BestAction = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestActionStatsPrior(t *testing.T) {
	stats := NewActionStats()

	stat := stats.For("unseen")
	if stat.Successes != 1 || stat.Failures != 1 {
		t.Errorf("prior = %+v, want (1,1)", stat)
	}
	if stats.Actions() != 0 {
		t.Error("For must not materialize counters")
	}
}

func TestActionStatsRecordOutcome(t *testing.T) {
	stats := NewActionStats()

	stats.RecordOutcome("a", true)
	if got := stats.For("a"); got.Successes != 2 || got.Failures != 1 {
		t.Errorf("after one success = %+v, want (2,1)", got)
	}

	stats.RecordOutcome("a", false)
	stats.RecordOutcome("a", false)
	if got := stats.For("a"); got.Successes != 2 || got.Failures != 3 {
		t.Errorf("after two failures = %+v, want (2,3)", got)
	}
}

func TestActionStatsMonotonic(t *testing.T) {
	stats := NewActionStats()

	var prev ActionStat
	for i := 0; i < 50; i++ {
		stats.RecordOutcome("a", i%3 == 0)
		cur := stats.For("a")
		if cur.Successes < prev.Successes || cur.Failures < prev.Failures {
			t.Fatalf("counters decreased: %+v after %+v", cur, prev)
		}
		prev = cur
	}
}
