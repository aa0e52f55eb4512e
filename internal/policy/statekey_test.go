package policy

import "testing"

func TestStateKey(t *testing.T) {
	type coords struct {
		X int `json:"x"`
		Y int `json:"y"`
	}

	tests := []struct {
		name  string
		state any
		want  string
	}{
		{"nil state", nil, "null"},
		{"string passes through", "ctx:build-failed", "ctx:build-failed"},
		{"empty string passes through", "", ""},
		{"int", 42, "42"},
		{"bool", true, "true"},
		{"struct", coords{X: 1, Y: 2}, `{"x":1,"y":2}`},
		{"map keys sorted", map[string]int{"b": 2, "a": 1}, `{"a":1,"b":2}`},
		{"slice", []string{"a", "b"}, `["a","b"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StateKey(tt.state); got != tt.want {
				t.Errorf("StateKey(%v) = %q, want %q", tt.state, got, tt.want)
			}
		})
	}
}

func TestStateKeyEqualStatesEqualKeys(t *testing.T) {
	a := map[string]any{"task": "review", "retries": 2}
	b := map[string]any{"retries": 2, "task": "review"}
	if StateKey(a) != StateKey(b) {
		t.Errorf("equal states produced different keys: %q vs %q", StateKey(a), StateKey(b))
	}
}

func TestStateKeyUnmarshalableFallsBack(t *testing.T) {
	ch := make(chan int)
	if got := StateKey(ch); got == "" {
		t.Error("expected non-empty fallback key for unmarshalable value")
	}
}
