package harness

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// AssertionError describes a failed assertion with the full call trace.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []Call
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, c := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", c.Seq, describe(c))
		}
	}
	return buf.String()
}

func describe(c Call) string {
	s := c.Kind
	if c.FigureID != "" {
		s += " " + c.FigureID
	}
	if c.Iteration > 0 {
		s += fmt.Sprintf(" iter=%d", c.Iteration)
	}
	if c.Detail != "" {
		s += " (" + c.Detail + ")"
	}
	return s
}

func evaluate(r *Result, a Assertion) error {
	switch a.Type {
	case AssertCallContains:
		return assertCallContains(r.Trace, a)
	case AssertCallOrder:
		return assertCallOrder(r.Trace, a)
	case AssertCallCount:
		return assertCallCount(r.Trace, a)
	case AssertFigureState:
		return assertFigureState(r, a)
	case AssertFileExists, AssertFileAbsent:
		return assertFile(r, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func matches(c Call, kind string, a Assertion) bool {
	if c.Kind != kind {
		return false
	}
	if a.Figure != "" && c.FigureID != a.Figure {
		return false
	}
	return a.Iteration == 0 || c.Iteration == a.Iteration
}

func assertCallContains(trace []Call, a Assertion) error {
	for _, c := range trace {
		if matches(c, a.Call, a) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertCallContains,
		Expected: describe(Call{Kind: a.Call, FigureID: a.Figure, Iteration: a.Iteration}),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertCallOrder checks first occurrences appear in order. Intervening
// calls are allowed.
func assertCallOrder(trace []Call, a Assertion) error {
	positions := make(map[string]int)
	for i, c := range trace {
		for _, kind := range a.Calls {
			if positions[kind] == 0 && matches(c, kind, Assertion{Figure: a.Figure}) {
				positions[kind] = i + 1
			}
		}
	}

	for _, kind := range a.Calls {
		if positions[kind] == 0 {
			return &AssertionError{
				Type:     AssertCallOrder,
				Expected: fmt.Sprintf("all calls present: %v", a.Calls),
				Actual:   fmt.Sprintf("missing call: %s", kind),
				Trace:    trace,
			}
		}
	}
	for i := 1; i < len(a.Calls); i++ {
		prev, curr := a.Calls[i-1], a.Calls[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertCallOrder,
				Expected: fmt.Sprintf("calls in order: %v", a.Calls),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

func assertCallCount(trace []Call, a Assertion) error {
	count := 0
	for _, c := range trace {
		if matches(c, a.Call, a) {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertCallCount,
			Expected: fmt.Sprintf("%s called %d time(s)", describe(Call{Kind: a.Call, FigureID: a.Figure}), a.Count),
			Actual:   fmt.Sprintf("called %d time(s)", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFigureState compares expected fields against the figure's inspect
// summary by their JSON encodings, so YAML ints match float fields.
func assertFigureState(r *Result, a Assertion) error {
	fig, ok := r.Figure(a.Figure)
	if !ok {
		return &AssertionError{
			Type:     AssertFigureState,
			Expected: fmt.Sprintf("figure %s in inspect summary", a.Figure),
			Actual:   "not found",
		}
	}
	raw, err := json.Marshal(fig)
	if err != nil {
		return err
	}
	var actual map[string]json.RawMessage
	if err := json.Unmarshal(raw, &actual); err != nil {
		return err
	}

	keys := make([]string, 0, len(a.Expect))
	for k := range a.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var mismatches []string
	for _, k := range keys {
		got, ok := actual[k]
		if !ok {
			mismatches = append(mismatches, fmt.Sprintf("%s: no such field", k))
			continue
		}
		want, err := json.Marshal(a.Expect[k])
		if err != nil {
			return fmt.Errorf("expect.%s: %w", k, err)
		}
		if !jsonEqual(want, got) {
			mismatches = append(mismatches, fmt.Sprintf("%s: expected %s, got %s", k, want, got))
		}
	}
	if len(mismatches) > 0 {
		return &AssertionError{
			Type:     AssertFigureState,
			Expected: fmt.Sprintf("figure %s matches %v", a.Figure, a.Expect),
			Actual:   strings.Join(mismatches, "; "),
		}
	}
	return nil
}

func jsonEqual(a, b []byte) bool {
	var x, y any
	if json.Unmarshal(a, &x) != nil || json.Unmarshal(b, &y) != nil {
		return false
	}
	xs, _ := json.Marshal(x)
	ys, _ := json.Marshal(y)
	return string(xs) == string(ys)
}

func assertFile(r *Result, a Assertion) error {
	path := filepath.Join(r.RunDir, filepath.FromSlash(a.Path))
	_, err := os.Stat(path)
	exists := err == nil
	want := a.Type == AssertFileExists
	if exists != want {
		actual := "absent"
		if exists {
			actual = "present"
		}
		return &AssertionError{Type: a.Type, Expected: a.Path, Actual: actual}
	}
	return nil
}
