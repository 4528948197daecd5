package summarize

import "strings"

// DefaultInstruction is used when the user gives no instruction.
const DefaultInstruction = "Extract key points, action items, and summary in structured format like MOM."

const promptPreamble = "The following is a meeting transcript."

// BuildPrompt embeds instruction and the verbatim transcript into a single
// user prompt. A blank instruction is replaced by defaultInstruction, and a
// blank defaultInstruction by [DefaultInstruction].
func BuildPrompt(transcript, instruction, defaultInstruction string) string {
	instr := strings.TrimSpace(instruction)
	if instr == "" {
		instr = strings.TrimSpace(defaultInstruction)
	}
	if instr == "" {
		instr = DefaultInstruction
	}
	var b strings.Builder
	b.Grow(len(promptPreamble) + len(instr) + len(transcript) + 3)
	b.WriteString(promptPreamble)
	b.WriteByte(' ')
	b.WriteString(instr)
	b.WriteString("\n\n")
	b.WriteString(transcript)
	return b.String()
}
