package config

// ConfigDiff describes what changed between two configs.
// Only the log level and the summarization block can be applied while
// running; everything else is reported so the caller can ask for a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// EndpointsChanged is true if the remote or local entry changed.
	EndpointsChanged bool

	// InstructionChanged is true if the default instruction changed.
	InstructionChanged bool

	// RestartRequired lists settings that changed but only take effect
	// after a restart, by their YAML key.
	RestartRequired []string
}

// Empty reports whether nothing changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.EndpointsChanged && !d.InstructionChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.LogLevel != new.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.LogLevel
	}

	oldSum, newSum := old.Summarization, new.Summarization
	if !entryEqual(oldSum.Remote, newSum.Remote) || !entryEqual(oldSum.Local, newSum.Local) {
		d.EndpointsChanged = true
	}
	if oldSum.Instruction != newSum.Instruction {
		d.InstructionChanged = true
	}

	if old.Paths != new.Paths {
		d.RestartRequired = append(d.RestartRequired, "paths")
	}
	if old.Capture != new.Capture {
		d.RestartRequired = append(d.RestartRequired, "capture")
	}
	ot, nt := old.Transcription, new.Transcription
	if !entryEqual(ot.Engine, nt.Engine) || ot.Language != nt.Language {
		d.RestartRequired = append(d.RestartRequired, "transcription")
	}
	if oldSum.Temperature != newSum.Temperature || oldSum.Timeout != newSum.Timeout ||
		oldSum.Docx != newSum.Docx || oldSum.CredentialVariable != newSum.CredentialVariable {
		d.RestartRequired = append(d.RestartRequired, "summarization")
	}

	return d
}

// entryEqual compares the scalar fields of two entries and their options.
func entryEqual(a, b ProviderEntry) bool {
	if a.Name != b.Name || a.APIKey != b.APIKey || a.BaseURL != b.BaseURL || a.Model != b.Model {
		return false
	}
	if len(a.Options) != len(b.Options) {
		return false
	}
	for k, av := range a.Options {
		bv, ok := b.Options[k]
		if !ok || !scalarEqual(av, bv) {
			return false
		}
	}
	return true
}

// scalarEqual compares option values. Nested maps and lists are treated as
// changed.
func scalarEqual(a, b any) bool {
	switch a.(type) {
	case map[string]any, []any:
		return false
	}
	switch b.(type) {
	case map[string]any, []any:
		return false
	}
	return a == b
}
