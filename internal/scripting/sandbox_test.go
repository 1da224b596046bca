package scripting

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const sumPositivesBuggy = `
function sumPositives(numbers) {
  var total = 0;
  for (var i = 0; i < numbers.length; i++) {
    total += numbers[i];
  }
  return total;
}`

func TestRunTestsPassAndFail(t *testing.T) {
	sb := NewSandbox(time.Second)

	report, err := sb.RunTests(sumPositivesBuggy, `
		test('all positive', function() { expect(sumPositives([1, 2, 3])).toBe(6); });
		test('ignores negatives', function() { expect(sumPositives([1, -2, 3])).toBe(4); });
	`)
	if err != nil {
		t.Fatalf("RunTests failed: %v", err)
	}
	if len(report.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(report.Results))
	}
	if !report.Results[0].Passed {
		t.Errorf("expected first test to pass: %+v", report.Results[0])
	}
	fail := report.Results[1]
	if fail.Passed || !fail.Assertion {
		t.Errorf("expected assertion failure, got %+v", fail)
	}
	if fail.Error != "Expected 4 but got 2" {
		t.Errorf("unexpected message %q", fail.Error)
	}
	if report.AllPassed() || report.HasRuntimeFailure() {
		t.Error("report flags wrong")
	}
}

func TestRunTestsMatchers(t *testing.T) {
	sb := NewSandbox(time.Second)

	report, err := sb.RunTests(`function id(x) { return x; }`, `
		test('toEqual', function() { expect(id([1, 2])).toEqual([1, 2]); });
		test('toBeTruthy', function() { expect(id(1)).toBeTruthy(); });
		test('toBeFalsy', function() { expect(id('')).toBeFalsy(); });
		test('toContain array', function() { expect(id([1, 2])).toContain(2); });
		test('toContain string', function() { expect(id('racecar')).toContain('ace'); });
		test('toHaveLength', function() { expect(id('abc')).toHaveLength(3); });
	`)
	if err != nil {
		t.Fatalf("RunTests failed: %v", err)
	}
	if !report.AllPassed() || report.Passed() != 6 {
		t.Errorf("expected all 6 to pass, got %+v", report.Results)
	}
}

func TestRuntimeErrorInsideTest(t *testing.T) {
	sb := NewSandbox(time.Second)

	report, err := sb.RunTests(`function broken() { return undefinedThing.length; }`, `
		test('crashes', function() { expect(broken()).toBe(1); });
	`)
	if err != nil {
		t.Fatalf("RunTests failed: %v", err)
	}
	res, ok := report.FirstFailure()
	if !ok || res.Assertion {
		t.Fatalf("expected runtime failure, got %+v", report.Results)
	}
	if !strings.HasPrefix(res.Error, "Runtime error:") {
		t.Errorf("expected runtime error prefix, got %q", res.Error)
	}
	if !report.HasRuntimeFailure() {
		t.Error("expected HasRuntimeFailure")
	}
}

func TestSyntaxError(t *testing.T) {
	sb := NewSandbox(time.Second)
	_, err := sb.RunTests(`function oops( {`, ``)
	if !errors.Is(err, ErrSyntax) {
		t.Fatalf("expected ErrSyntax, got %v", err)
	}
}

func TestTopLevelThrow(t *testing.T) {
	sb := NewSandbox(time.Second)
	_, err := sb.RunTests(`throw new Error('nope');`, ``)
	if !errors.Is(err, ErrRuntime) {
		t.Fatalf("expected ErrRuntime, got %v", err)
	}
}

func TestInfiniteLoopIsInterrupted(t *testing.T) {
	sb := NewSandbox(100 * time.Millisecond)

	start := time.Now()
	_, err := sb.RunTests(`function spin() { while (true) {} }`, `test('spins', function() { spin(); });`)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("interrupt took too long: %v", elapsed)
	}
}

func TestBlockedGlobals(t *testing.T) {
	sb := NewSandbox(time.Second)

	report, err := sb.RunTests(``, `
		test('no require', function() { expect(typeof require).toBe('undefined'); });
		test('no eval', function() { expect(typeof eval).toBe('undefined'); });
		test('no Function', function() { expect(typeof Function).toBe('undefined'); });
		test('no fetch', function() { expect(typeof fetch).toBe('undefined'); });
	`)
	if err != nil {
		t.Fatalf("RunTests failed: %v", err)
	}
	if !report.AllPassed() {
		t.Errorf("expected host globals to be removed, got %+v", report.Results)
	}
}

func TestConsoleLogCaptured(t *testing.T) {
	sb := NewSandbox(time.Second)

	report, err := sb.RunTests(`console.log('hello', 42);`, ``)
	if err != nil {
		t.Fatalf("RunTests failed: %v", err)
	}
	if len(report.Logs) != 1 || report.Logs[0].Message != "hello 42" {
		t.Errorf("unexpected logs %+v", report.Logs)
	}
	if len(report.Results) != 0 || report.AllPassed() {
		t.Error("no tests ran, AllPassed must be false")
	}
}

func TestRunsAreIsolated(t *testing.T) {
	sb := NewSandbox(time.Second)

	if _, err := sb.RunTests(`var leaked = 1;`, ``); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	report, err := sb.RunTests(``, `test('fresh', function() { expect(typeof leaked).toBe('undefined'); });`)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if !report.AllPassed() {
		t.Errorf("state leaked between runs: %+v", report.Results)
	}
}

func TestOverwrittenResults(t *testing.T) {
	sb := NewSandbox(time.Second)
	_, err := sb.RunTests(`__results = null;`, ``)
	if !errors.Is(err, ErrRuntime) {
		t.Fatalf("expected ErrRuntime, got %v", err)
	}
}
