package core

import "encoding/json"

// Directive is a tool invocation request parsed from assistant text.
// Input is never nil for directives produced by NewDirective or the parser.
type Directive struct {
	Name  string            `json:"name"`
	Input map[string]string `json:"input"`
}

// NewDirective creates a directive, normalizing a nil input to an empty map.
func NewDirective(name string, input map[string]string) Directive {
	if input == nil {
		input = map[string]string{}
	}
	return Directive{Name: name, Input: input}
}

// Param returns the named input value.
func (d Directive) Param(key string) (string, bool) {
	v, ok := d.Input[key]
	return v, ok
}

// String returns the canonical JSON form (map keys sorted).
func (d Directive) String() string {
	nd := NewDirective(d.Name, d.Input)
	b, err := json.Marshal(nd)
	if err != nil {
		return d.Name
	}
	return string(b)
}
