// Package console is the interactive text front end of notemate.
//
// The console reads one command per line, drives the [app.App] and prints
// results. Processing a meeting runs in the background so the prompt stays
// responsive; its outcome is printed when it completes. Every failure is
// printed as "error: <message>" and the loop continues.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/MrWong99/notemate/internal/app"
	"github.com/MrWong99/notemate/internal/outfile"
)

// SecretReader reads a secret without echoing it.
type SecretReader func() (string, error)

// Option configures a [Console].
type Option func(*Console)

// WithAudioDir sets the directory listed by "open" without an argument.
func WithAudioDir(dir *outfile.Dir) Option {
	return func(c *Console) { c.audioDir = dir }
}

// WithSecretReader sets how API keys are read. Without it the key is read
// as a regular input line.
func WithSecretReader(r SecretReader) Option {
	return func(c *Console) { c.secret = r }
}

// Console runs the command loop.
type Console struct {
	app      *app.App
	in       *bufio.Reader
	audioDir *outfile.Dir
	secret   SecretReader

	outMu sync.Mutex
	out   io.Writer

	wg sync.WaitGroup
}

// New returns a Console reading commands from in and writing to out.
func New(a *app.App, in io.Reader, out io.Writer, opts ...Option) *Console {
	c := &Console{
		app: a,
		in:  bufio.NewReader(in),
		out: out,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Run reads and executes commands until "quit", end of input or ctx is
// cancelled. On "quit" and end of input it waits for background processing
// to finish.
func (c *Console) Run(ctx context.Context) error {
	c.println("notemate ready. Type 'help' for commands.")
	defer c.wg.Wait()
	for {
		c.print("> ")
		line, err := c.readLine(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				c.println("")
				return nil
			}
			return fmt.Errorf("console: read input: %w", err)
		}
		cmd, arg, _ := strings.Cut(line, " ")
		if quit := c.dispatch(ctx, strings.ToLower(cmd), strings.TrimSpace(arg)); quit {
			return nil
		}
	}
}

// Wait blocks until background processing has finished.
func (c *Console) Wait() { c.wg.Wait() }

// readLine reads the next input line, trimmed. A final line without a
// newline is returned before io.EOF.
func (c *Console) readLine(ctx context.Context) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := c.in.ReadString('\n')
		if err != nil && line != "" && errors.Is(err, io.EOF) {
			err = nil
		}
		ch <- result{strings.TrimSpace(line), err}
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		return r.line, r.err
	}
}

// readSecret reads an API key, masked when a secret reader is configured.
func (c *Console) readSecret(ctx context.Context, prompt string) (string, error) {
	c.print(prompt)
	if c.secret == nil {
		return c.readLine(ctx)
	}
	key, err := c.secret()
	c.println("")
	return strings.TrimSpace(key), err
}

func (c *Console) print(s string) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	fmt.Fprint(c.out, s)
}

func (c *Console) println(s string) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	fmt.Fprintln(c.out, s)
}

func (c *Console) printf(format string, args ...any) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func (c *Console) printErr(err error) {
	c.printf("error: %s\n", app.UserMessage(err))
}
