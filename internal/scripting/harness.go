package scripting

import (
	"fmt"
	"log"
	"time"
)

// harnessSource defines the test() and expect() globals available to
// student code. Assertion failures are tagged so they can be told apart
// from runtime errors thrown by the code under test.
const harnessSource = `
var __results = [];

function __assertionError(message) {
  var err = new Error(message);
  err.__assertion = true;
  return err;
}

function __show(v) {
  var s = JSON.stringify(v);
  return s === undefined ? String(v) : s;
}

function expect(actual) {
  return {
    toBe: function (expected) {
      if (actual !== expected) {
        throw __assertionError('Expected ' + __show(expected) + ' but got ' + __show(actual));
      }
    },
    toEqual: function (expected) {
      if (JSON.stringify(actual) !== JSON.stringify(expected)) {
        throw __assertionError('Expected ' + __show(expected) + ' but got ' + __show(actual));
      }
    },
    toBeTruthy: function () {
      if (!actual) {
        throw __assertionError('Expected truthy but got ' + __show(actual));
      }
    },
    toBeFalsy: function () {
      if (actual) {
        throw __assertionError('Expected falsy but got ' + __show(actual));
      }
    },
    toContain: function (item) {
      var missing = (Array.isArray(actual) || typeof actual === 'string') && actual.indexOf(item) === -1;
      if (missing) {
        throw __assertionError('Expected ' + __show(actual) + ' to contain ' + __show(item));
      }
    },
    toHaveLength: function (len) {
      if (actual == null || actual.length !== len) {
        throw __assertionError('Expected length ' + len + ' but got ' + (actual == null ? actual : actual.length));
      }
    }
  };
}

function test(name, fn) {
  try {
    fn();
    __results.push({ name: String(name), passed: true, assertion: false, error: '' });
  } catch (e) {
    if (e && e.__assertion) {
      __results.push({ name: String(name), passed: false, assertion: true, error: e.message });
    } else {
      __results.push({ name: String(name), passed: false, assertion: false,
        error: 'Runtime error: ' + (e && e.message ? e.message : String(e)) });
    }
  }
}
`

// TestResult is the result of one test() call.
type TestResult struct {
	Name      string `json:"name"`
	Passed    bool   `json:"passed"`
	Assertion bool   `json:"assertion"`
	Error     string `json:"error,omitempty"`
}

// Report collects the results of one sandbox run.
type Report struct {
	Results  []TestResult  `json:"results"`
	Logs     []LogEntry    `json:"logs,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Passed is the number of passing tests.
func (r Report) Passed() int {
	n := 0
	for _, t := range r.Results {
		if t.Passed {
			n++
		}
	}
	return n
}

// AllPassed reports whether at least one test ran and none failed.
func (r Report) AllPassed() bool {
	return len(r.Results) > 0 && r.Passed() == len(r.Results)
}

// FirstFailure returns the first failing test, if any.
func (r Report) FirstFailure() (TestResult, bool) {
	for _, t := range r.Results {
		if !t.Passed {
			return t, true
		}
	}
	return TestResult{}, false
}

// HasRuntimeFailure reports whether any test failed with a non-assertion error.
func (r Report) HasRuntimeFailure() bool {
	for _, t := range r.Results {
		if !t.Passed && !t.Assertion {
			return true
		}
	}
	return false
}

// Executor runs student code against student or fixture tests.
type Executor interface {
	RunTests(functionCode, testCode string) (Report, error)
}

// Sandbox is the goja-backed Executor. Every run gets a fresh runtime so
// repeated runs of the same input produce the same report.
type Sandbox struct {
	timeout time.Duration
	logger  *log.Logger
}

// DefaultTimeout bounds a single sandbox run.
const DefaultTimeout = time.Second

// NewSandbox returns a sandbox with the given time bound.
func NewSandbox(timeout time.Duration) *Sandbox {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Sandbox{timeout: timeout}
}

// SetLogger enables logging of failed runs.
func (s *Sandbox) SetLogger(l *log.Logger) {
	s.logger = l
}

// RunTests loads the harness, the function code and the test code into one
// runtime and collects the recorded test results. A syntax error, an
// exception outside test() or a timeout is returned as an error.
func (s *Sandbox) RunTests(functionCode, testCode string) (Report, error) {
	start := time.Now()
	vm := NewVM()

	source := harnessSource + "\n" + functionCode + "\n" + testCode + "\n"
	err := vm.Run("submission.js", source, s.timeout)
	report := Report{Logs: vm.Logs(), Duration: time.Since(start)}
	if err != nil {
		if s.logger != nil {
			s.logger.Printf("sandbox_run_failed duration=%v error=%q", report.Duration, err)
		}
		return report, err
	}

	results, err := decodeResults(vm.Export("__results"))
	if err != nil {
		return report, err
	}
	report.Results = results
	return report, nil
}

func decodeResults(raw any) ([]TestResult, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: test results were overwritten", ErrRuntime)
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: test results have type %T", ErrRuntime, raw)
	}

	out := make([]TestResult, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: malformed test result %T", ErrRuntime, item)
		}
		res := TestResult{}
		res.Name, _ = m["name"].(string)
		res.Passed, _ = m["passed"].(bool)
		res.Assertion, _ = m["assertion"].(bool)
		res.Error, _ = m["error"].(string)
		out = append(out, res)
	}
	return out, nil
}
