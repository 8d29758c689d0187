// Package prompt builds the message sequence the agent loop starts from: a
// single system preamble documenting the available tools and the directive
// syntax, followed by the caller's messages.
package prompt

import (
	"fmt"
	"strings"

	"github.com/hupe1980/toolrelay/core"
	"github.com/hupe1980/toolrelay/directive"
	"github.com/hupe1980/toolrelay/internal/util"
	"github.com/hupe1980/toolrelay/tool"
)

// DefaultTemplate is the system preamble. It is rendered once with
// AssistantName, Tools (the generated tool documentation), Start and End.
const DefaultTemplate = `You are {{.AssistantName}}, an advanced AI model. You will assist the user with tasks, using tools available to you.

You have the following tools available:
{{.Tools}}

When you want to use a tool, make a tool call (no explanations) using this exact format:

` + "```" + `
{{.Start}}
{
    "name": "tool_name",
    "input": {
        "param1": "value1",
        "param2": "value2"
    }
}
{{.End}}
` + "```" + `

Note that the triple backticks (` + "```" + `) are part of the format!

Example 1:
************************
User: What is your current working directory?
{{.AssistantName}}:
` + "```" + `
{{.Start}}
{
    "name": "get-cwd",
    "input": ""
}
{{.End}}
` + "```" + `
************************

Example 2:
************************
User: List the files in your current working directory.
{{.AssistantName}}:
` + "```" + `
{{.Start}}
{
    "name": "list-directory",
    "input": {
        "path": "."
    }
}
{{.End}}
` + "```" + `
************************

Immediately end your response after calling a tool and the final triple backticks.

After receiving the results of a tool call, do not parrot everything back to the user.
Instead, just briefly summarize the results in 1-2 sentences.
`

// Options configures a Builder.
type Options struct {
	AssistantName string
	Template      string
	StartMarker   string
	EndMarker     string
}

// Builder assembles the initial conversation. The preamble is rendered once
// at construction; Build is a pure transform and safe for concurrent use.
type Builder struct {
	preamble string
}

// NewBuilder renders the preamble for the tools in reg.
func NewBuilder(reg *tool.Registry, optFns ...func(o *Options)) (*Builder, error) {
	opts := Options{
		AssistantName: "Qwen-Max",
		Template:      DefaultTemplate,
		StartMarker:   directive.DefaultStartMarker,
		EndMarker:     directive.DefaultEndMarker,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	preamble, err := util.RenderTemplate(opts.Template, map[string]any{
		"AssistantName": opts.AssistantName,
		"Tools":         DescribeTools(reg.Tools()),
		"Start":         opts.StartMarker,
		"End":           opts.EndMarker,
	})
	if err != nil {
		return nil, fmt.Errorf("render system preamble: %w", err)
	}
	return &Builder{preamble: preamble}, nil
}

// SystemPrompt returns the rendered preamble.
func (b *Builder) SystemPrompt() string { return b.preamble }

// Build returns a new sequence beginning with exactly one system message
// followed by the caller's non-system messages in their original order.
// Caller supplied system messages are appended to the preamble, in order.
// msgs is not modified.
func (b *Builder) Build(msgs []core.Message) []core.Message {
	system := b.preamble
	if extra := callerSystemText(msgs); extra != "" {
		system += "\n" + extra
	}

	out := make([]core.Message, 0, len(msgs)+1)
	out = append(out, core.NewSystemMessage(system))
	for _, m := range msgs {
		if m.Role == core.RoleSystem {
			continue
		}
		out = append(out, m)
	}
	return out
}

func callerSystemText(msgs []core.Message) string {
	var parts []string
	for _, m := range msgs {
		if m.Role == core.RoleSystem && strings.TrimSpace(m.Content) != "" {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}

// DescribeTools documents every tool's name, parameters and result.
func DescribeTools(tools []tool.Tool) string {
	var b strings.Builder
	for _, t := range tools {
		fmt.Fprintf(&b, "\n-%s: %s\n", t.Name(), t.Description())
		params := t.Parameters()
		if len(params) == 0 {
			b.WriteString("    Parameters: None. This tool does not need a parameter.\n")
		} else {
			b.WriteString("    Parameters:\n")
			for _, p := range params {
				req := "optional"
				if p.Required {
					req = "required"
				}
				typ := p.Type
				if typ == "" {
					typ = "string"
				}
				fmt.Fprintf(&b, "    - %s (%s, %s): %s\n", p.Name, req, typ, p.Description)
			}
		}
		if r := t.Returns(); r != "" {
			fmt.Fprintf(&b, "    Returns: %s\n", r)
		}
	}
	return b.String()
}
