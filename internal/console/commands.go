package console

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/MrWong99/notemate/internal/app"
	"github.com/MrWong99/notemate/internal/observe"
	"github.com/MrWong99/notemate/internal/summarize"
)

const helpText = `commands:
  record                 start recording the microphone
  stop                   stop recording, then transcribe and summarize
  open [path]            process a saved recording (lists recordings without a path)
  key                    set or change the API key of the remote provider
  provider [remote|local]
                         show or select the summarization provider
  instruction [text]     show or set the summary instruction ('default' resets it)
  status                 show the current state
  stats                  show stage timings, provider requests and token usage
  help                   show this help
  quit                   wait for running work and exit`

// dispatch runs one command. It reports whether the loop should end.
func (c *Console) dispatch(ctx context.Context, cmd, arg string) bool {
	switch cmd {
	case "":
	case "record", "start":
		c.record(ctx)
	case "stop":
		c.stop(ctx)
	case "open":
		c.open(ctx, arg)
	case "key":
		c.changeKey(ctx)
	case "provider":
		c.provider(arg)
	case "instruction":
		c.instruction(arg)
	case "status":
		c.status()
	case "stats":
		c.stats(ctx)
	case "help", "?":
		c.println(helpText)
	case "quit", "exit":
		if c.app.State() == app.StateProcessing {
			c.println("waiting for processing to finish...")
		}
		return true
	default:
		c.printf("error: unknown command %q, type 'help'\n", cmd)
	}
	return false
}

func (c *Console) record(ctx context.Context) {
	if err := c.app.StartRecording(ctx); err != nil {
		c.printErr(err)
		return
	}
	c.println("recording... type 'stop' to finish")
}

// stop saves the recording before asking for a missing key, so the prompt
// is not part of the audio.
func (c *Console) stop(ctx context.Context) {
	path, err := c.app.StopRecording(ctx)
	if err != nil {
		c.printErr(err)
		return
	}
	c.printf("recording saved: %s\n", path)
	c.ensureCredential(ctx)
	c.background(ctx, "processing...", func(ctx context.Context) (*app.Result, error) {
		return c.app.ProcessFile(ctx, path)
	})
}

func (c *Console) open(ctx context.Context, arg string) {
	path := arg
	if path == "" {
		var err error
		if path, err = c.pickRecording(ctx); err != nil {
			c.printErr(err)
			return
		}
		if path == "" {
			return
		}
	}
	if c.app.State() != app.StateIdle {
		c.printErr(app.ErrBusy)
		return
	}
	c.ensureCredential(ctx)
	c.background(ctx, "processing "+filepath.Base(path)+"...", func(ctx context.Context) (*app.Result, error) {
		return c.app.ProcessFile(ctx, path)
	})
}

// pickRecording lists the audio directory and asks for a number. An empty
// answer cancels.
func (c *Console) pickRecording(ctx context.Context) (string, error) {
	if c.audioDir == nil {
		return "", errors.New("usage: open <path>")
	}
	files, err := c.audioDir.List(".wav")
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		c.printf("no recordings in %s\n", c.audioDir.Path())
		return "", nil
	}
	for i, f := range files {
		c.printf("  %d) %s\n", i+1, filepath.Base(f))
	}
	c.print("recording number: ")
	answer, err := c.readLine(ctx)
	if err != nil || answer == "" {
		return "", nil
	}
	n, err := strconv.Atoi(answer)
	if err != nil || n < 1 || n > len(files) {
		return "", fmt.Errorf("invalid selection %q", answer)
	}
	return files[n-1], nil
}

// ensureCredential prompts for an API key when the selected provider needs
// one that is not stored yet. Processing continues either way; without a
// key summarization fails and the transcript is kept.
func (c *Console) ensureCredential(ctx context.Context) {
	if !c.app.CredentialRequired() {
		return
	}
	c.println("the remote provider needs an API key.")
	if err := c.promptKey(ctx); err != nil {
		c.printErr(err)
	}
}

func (c *Console) changeKey(ctx context.Context) {
	if err := c.promptKey(ctx); err != nil {
		c.printErr(err)
		return
	}
	c.println("API key saved.")
	if c.app.CredentialOverridden() {
		c.println("note: summarization.remote.api_key in the config file overrides the saved key.")
	}
}

func (c *Console) promptKey(ctx context.Context) error {
	key, err := c.readSecret(ctx, "API key: ")
	if err != nil {
		return err
	}
	return c.app.ChangeCredential(key)
}

func (c *Console) provider(arg string) {
	if arg == "" {
		c.printf("provider: %s (available: remote, local)\n", c.app.Provider())
		return
	}
	p, err := summarize.ParseProvider(arg)
	if err == nil {
		err = c.app.SetProvider(p)
	}
	if err != nil {
		c.printErr(err)
		return
	}
	c.printf("provider: %s\n", p)
}

func (c *Console) instruction(arg string) {
	switch {
	case arg == "":
		c.printf("instruction: %s\n", c.instructionText())
	case strings.EqualFold(arg, "default"):
		c.app.SetInstruction("")
		c.println("instruction: (default)")
	default:
		c.app.SetInstruction(arg)
		c.printf("instruction: %s\n", c.app.Instruction())
	}
}

func (c *Console) instructionText() string {
	if instr := c.app.Instruction(); instr != "" {
		return instr
	}
	return "(default)"
}

func (c *Console) status() {
	state := c.app.State()
	c.printf("state: %s", state)
	if state == app.StateRecording {
		c.printf(" (%s)", c.app.Elapsed().Round(time.Second))
	}
	c.println("")
	c.printf("provider: %s\n", c.app.Provider())
	c.printf("instruction: %s\n", c.instructionText())
	if c.app.CredentialRequired() {
		c.println("API key: missing")
	}
}

func (c *Console) stats(ctx context.Context) {
	st, err := c.app.Stats(ctx)
	if err != nil {
		c.printErr(err)
		return
	}
	for _, stage := range []string{observe.StageRecording, observe.StageTranscription, observe.StageSummarization} {
		s := st.Stages[stage]
		c.printf("%s: %d runs, %d failed, avg %s\n", stage, s.Runs, s.Errors, s.Mean().Round(time.Millisecond))
	}
	c.printf("audio processed: %s\n", st.Audio.Round(time.Second))
	for _, name := range slices.Sorted(maps.Keys(st.Requests)) {
		r := st.Requests[name]
		c.printf("requests %s: %d ok, %d failed\n", name, r.OK, r.Failed)
	}
	c.printf("tokens: %d prompt, %d completion\n", st.PromptTokens, st.CompletionTokens)
}

// background runs fn off the input loop and prints its outcome.
func (c *Console) background(ctx context.Context, msg string, fn func(context.Context) (*app.Result, error)) {
	c.println(msg)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		res, err := fn(ctx)
		c.report(res, err)
	}()
}

func (c *Console) report(res *app.Result, err error) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	if res != nil {
		if res.AudioPath != "" {
			fmt.Fprintf(c.out, "audio: %s\n", res.AudioPath)
		}
		if res.Transcript != nil {
			fmt.Fprintf(c.out, "transcript: %s\n", res.Transcript.Path)
		}
		if s := res.Summary; s != nil {
			fmt.Fprintf(c.out, "summary: %s\n", s.Path)
			if s.DocxPath != "" {
				fmt.Fprintf(c.out, "document: %s\n", s.DocxPath)
			}
			fmt.Fprintf(c.out, "\n%s\n\n", strings.TrimSpace(s.Text))
		}
	}
	if err != nil {
		fmt.Fprintf(c.out, "error: %s\n", app.UserMessage(err))
	}
}
