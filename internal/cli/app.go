package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/MJE43/levelup/internal/engine"
	"github.com/MJE43/levelup/internal/progression"
)

const helpText = `Commands:
  start                 start a run from the menu
  begin                 start the level
  submit <text>         answer the round (fields set with 'field' are sent too)
  field <name>=<value>  set a named answer field, \n for newlines
  hint [n]              reveal the next hint, or hints up to n
  continue              next round after feedback
  retry                 replay a missed round
  advance               next level after the summary
  menu                  back to the menu
  state                 show the current screen again
  quit                  leave
`

// Run drives eng from line commands until quit, EOF or ctx is done.
// Output goes through r so it interleaves cleanly with timer ticks.
func Run(ctx context.Context, eng *progression.Engine, in io.Reader, r *TextRenderer) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go func() {
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		readErr <- scanner.Err()
	}()

	fields := map[string]string{}
	r.Render(eng.State())

	for {
		var line string
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			return err
		case line = <-lines:
		}

		name, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
		arg = strings.TrimSpace(arg)

		var err error
		switch strings.ToLower(name) {
		case "":
			continue
		case "quit", "exit":
			return nil
		case "help", "?":
			r.Printf("%s", helpText)
			continue
		case "state":
			r.Render(eng.State())
			continue
		case "field":
			key, value, ok := strings.Cut(arg, "=")
			if !ok || strings.TrimSpace(key) == "" {
				r.Printf("! usage: field <name>=<value>\n")
				continue
			}
			fields[strings.TrimSpace(key)] = strings.ReplaceAll(value, `\n`, "\n")
			continue
		case "start":
			err = eng.StartGame()
		case "begin":
			err = eng.Begin()
		case "submit":
			answer := &engine.Answer{Text: arg, Fields: fields}
			if answer.Empty() {
				r.Printf("! submit needs an answer or a field\n")
				continue
			}
			fields = map[string]string{}
			err = eng.SubmitAnswer(answer)
		case "hint":
			if arg == "" {
				err = eng.RevealNextHint()
				break
			}
			n, convErr := strconv.Atoi(arg)
			if convErr != nil {
				r.Printf("! hint takes a number\n")
				continue
			}
			err = eng.RevealHint(n - 1)
		case "continue", "next":
			err = eng.Continue()
		case "retry":
			err = eng.Retry()
		case "advance":
			err = eng.AdvanceLevel()
		case "menu":
			fields = map[string]string{}
			err = eng.ReturnToMenu()
		default:
			r.Printf("! unknown command %q, type 'help'\n", name)
			continue
		}
		if err != nil {
			r.Printf("! %s\n", describe(err))
		}
	}
}

func describe(err error) string {
	var te *progression.TransitionError
	if errors.As(err, &te) {
		msg := "can't " + te.Command + " on the " + strings.ReplaceAll(string(te.Screen), "_", " ") + " screen"
		if te.Reason != "" {
			msg += ": " + te.Reason
		}
		return msg
	}
	return err.Error()
}
