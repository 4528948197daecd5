package config_test

import (
	"slices"
	"testing"

	"github.com/MrWong99/notemate/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	if d := config.Diff(config.Default(), config.Default()); !d.Empty() {
		t.Errorf("expected empty diff, got %+v", d)
	}
}

func TestDiff_HotReloadable(t *testing.T) {
	t.Parallel()
	old := config.Default()
	new := config.Default()
	new.LogLevel = config.LogDebug
	new.Summarization.Local.Model = "mistral"
	new.Summarization.Instruction = "Bullet points."

	d := config.Diff(old, new)
	if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
		t.Errorf("log level change not detected: %+v", d)
	}
	if !d.EndpointsChanged {
		t.Error("endpoint change not detected")
	}
	if !d.InstructionChanged {
		t.Error("instruction change not detected")
	}
	if len(d.RestartRequired) != 0 {
		t.Errorf("nothing should require a restart, got %v", d.RestartRequired)
	}
}

func TestDiff_RestartRequired(t *testing.T) {
	t.Parallel()
	old := config.Default()
	new := config.Default()
	new.Paths.AudioDir = "elsewhere"
	new.Capture.SampleRate = 16000
	new.Transcription.Engine.Options = map[string]any{"threads": 8}
	new.Summarization.Docx = true

	d := config.Diff(old, new)
	for _, key := range []string{"paths", "capture", "transcription", "summarization"} {
		if !slices.Contains(d.RestartRequired, key) {
			t.Errorf("expected %q in RestartRequired, got %v", key, d.RestartRequired)
		}
	}
	if d.EndpointsChanged || d.LogLevelChanged {
		t.Errorf("unexpected hot-reload flags: %+v", d)
	}
}

func TestDiff_OptionValues(t *testing.T) {
	t.Parallel()
	old := config.Default()
	new := config.Default()
	old.Summarization.Local.Options = map[string]any{"keep_alive": "5m"}
	new.Summarization.Local.Options = map[string]any{"keep_alive": "5m"}
	if d := config.Diff(old, new); d.EndpointsChanged {
		t.Error("identical options should not count as a change")
	}
	new.Summarization.Local.Options = map[string]any{"keep_alive": "10m"}
	if d := config.Diff(old, new); !d.EndpointsChanged {
		t.Error("changed option value not detected")
	}
}
