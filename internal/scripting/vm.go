package scripting

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
)

var (
	ErrTimeout = errors.New("scripting: execution timed out")
	ErrSyntax  = errors.New("scripting: syntax error")
	ErrRuntime = errors.New("scripting: runtime error")
)

// LogEntry is one console.log line captured from student code.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// VM wraps a single-use goja runtime with host access removed.
type VM struct {
	runtime *goja.Runtime

	logs    []LogEntry
	logsMu  sync.Mutex
	maxLogs int
}

const (
	defaultMaxLogs = 200
	// interruptGrace bounds the wait for an interrupted script to unwind.
	interruptGrace = 200 * time.Millisecond
)

// NewVM creates a sandboxed runtime with console.log captured.
func NewVM() *VM {
	vm := &VM{
		runtime: goja.New(),
		maxLogs: defaultMaxLogs,
	}
	vm.injectGlobals()
	return vm
}

// blockedGlobals are shadowed with undefined before any student code runs.
var blockedGlobals = []string{"require", "fetch", "XMLHttpRequest", "eval", "Function"}

func (vm *VM) injectGlobals() {
	capture := func(call goja.FunctionCall) goja.Value {
		parts := make([]string, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			parts = append(parts, arg.String())
		}
		vm.appendLog(strings.Join(parts, " "))
		return goja.Undefined()
	}
	vm.runtime.Set("log", capture)

	console := vm.runtime.NewObject()
	_ = console.Set("log", capture)
	_ = console.Set("error", capture)
	vm.runtime.Set("console", console)

	for _, name := range blockedGlobals {
		vm.runtime.Set(name, goja.Undefined())
	}
}

func (vm *VM) appendLog(msg string) {
	vm.logsMu.Lock()
	defer vm.logsMu.Unlock()
	if len(vm.logs) >= vm.maxLogs {
		vm.logs = vm.logs[1:]
	}
	vm.logs = append(vm.logs, LogEntry{Time: time.Now(), Message: msg})
}

// Run executes source within timeout and returns the classified error.
func (vm *VM) Run(name, source string, timeout time.Duration) error {
	return vm.runWithTimeout(timeout, func() error {
		_, err := vm.runtime.RunScript(name, source)
		return classify(err)
	})
}

// Export reads a global variable as a Go value.
func (vm *VM) Export(name string) any {
	v := vm.runtime.Get(name)
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	return v.Export()
}

// Logs returns a copy of the captured console output.
func (vm *VM) Logs() []LogEntry {
	vm.logsMu.Lock()
	defer vm.logsMu.Unlock()
	return append([]LogEntry(nil), vm.logs...)
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	var syntaxErr *goja.CompilerSyntaxError
	if errors.As(err, &syntaxErr) {
		return fmt.Errorf("%w: %s", ErrSyntax, syntaxErr.Error())
	}
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return ErrTimeout
	}
	var exc *goja.Exception
	if errors.As(err, &exc) {
		msg := exc.Value().String()
		if strings.HasPrefix(msg, "SyntaxError") {
			return fmt.Errorf("%w: %s", ErrSyntax, msg)
		}
		return fmt.Errorf("%w: %s", ErrRuntime, msg)
	}
	return fmt.Errorf("%w: %v", ErrRuntime, err)
}

func (vm *VM) runWithTimeout(timeout time.Duration, fn func() error) error {
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("%w: interpreter panic: %v", ErrRuntime, r)
			}
		}()
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		vm.runtime.Interrupt(ErrTimeout)
		select {
		case <-done:
			return ErrTimeout
		case <-time.After(interruptGrace):
			return ErrTimeout
		}
	}
}
