package gateway

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
)

// OutputField declares one named field the model must produce.
type OutputField struct {
	Name string
	Desc string
}

// PromptSpec is the named input/output contract for one kind of model call.
// Each agent owns one spec; the gateway fills the declared inputs (injecting
// the reserved ones itself) and parses the declared outputs from the model
// reply.
type PromptSpec struct {
	Name         string
	Instructions string
	Inputs       []string
	Outputs      []OutputField
	MaxTokens    int
	Temperature  float32
}

// HasInput reports whether the spec declares the named input field.
func (s PromptSpec) HasInput(name string) bool {
	for _, in := range s.Inputs {
		if in == name {
			return true
		}
	}
	return false
}

// BuildMessages renders the spec plus resolved inputs into chat messages.
// The system message carries the persona instructions and the output
// contract; the user message carries each declared input in a tagged block.
func (s PromptSpec) BuildMessages(inputs map[string]string) []*schema.Message {
	var contract strings.Builder
	contract.WriteString(s.Instructions)
	contract.WriteString("\n\nReply with a single JSON object and nothing else. Keys:\n")
	for _, out := range s.Outputs {
		contract.WriteString(fmt.Sprintf("- %q: %s\n", out.Name, out.Desc))
	}
	contract.WriteString("Omit a key entirely if you have nothing for it.")

	var body strings.Builder
	for _, name := range s.Inputs {
		value, ok := inputs[name]
		if !ok {
			continue
		}
		body.WriteString("<" + name + ">\n")
		body.WriteString(value)
		body.WriteString("\n</" + name + ">\n")
	}

	return []*schema.Message{
		schema.SystemMessage(contract.String()),
		schema.UserMessage(body.String()),
	}
}
