package directive

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/toolrelay/core"
)

// Default sentinels understood by the system preamble.
const (
	DefaultStartMarker = "[[qwen-tool-start]]"
	DefaultEndMarker   = "[[qwen-tool-end]]"
)

// Status tags the outcome of Parse.
type Status int

const (
	// NotFound means at least one sentinel is absent.
	NotFound Status = iota
	// Found means a well formed directive was extracted.
	Found
	// Malformed means both sentinels were present but the enclosed body was not a valid directive.
	Malformed
)

// String returns the lower-case name of the status.
func (s Status) String() string {
	switch s {
	case NotFound:
		return "not_found"
	case Found:
		return "found"
	case Malformed:
		return "malformed"
	default:
		return "unknown"
	}
}

var (
	// ErrMissingStart is reported when the start sentinel is absent.
	ErrMissingStart = errors.New("directive start marker not found")
	// ErrMissingEnd is reported when no end sentinel follows the start sentinel.
	ErrMissingEnd = errors.New("directive end marker not found")
	// ErrInvalidJSON is reported when the enclosed body is not a JSON object.
	ErrInvalidJSON = errors.New("directive body is not a valid JSON object")
	// ErrMissingName is reported when the object lacks a non-empty string name.
	ErrMissingName = errors.New("directive must include a 'name' field")
	// ErrInvalidInput is reported when input is neither an object nor empty.
	ErrInvalidInput = errors.New("directive 'input' must be an object")
)

// Result is the tagged outcome of Parse. Directive is only meaningful when
// Status is Found; Err explains NotFound and Malformed outcomes.
type Result struct {
	Status    Status
	Directive core.Directive
	Err       error
}

// Found reports whether a directive was extracted.
func (r Result) Found() bool { return r.Status == Found }

// Options configures the sentinels recognized by a Parser.
type Options struct {
	StartMarker string
	EndMarker   string
}

// Parser extracts directives between a fixed pair of sentinels. A Parser is
// immutable and safe for concurrent use.
type Parser struct {
	opts Options
}

// NewParser creates a Parser using the default sentinels unless overridden.
func NewParser(optFns ...func(o *Options)) *Parser {
	opts := Options{
		StartMarker: DefaultStartMarker,
		EndMarker:   DefaultEndMarker,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Parser{opts: opts}
}

// StartMarker returns the start sentinel.
func (p *Parser) StartMarker() string { return p.opts.StartMarker }

// EndMarker returns the end sentinel.
func (p *Parser) EndMarker() string { return p.opts.EndMarker }

// Parse locates the first start sentinel and the first end sentinel after it
// and decodes the trimmed text between them. No recovery or partial parsing
// is attempted.
func (p *Parser) Parse(text string) Result {
	start := strings.Index(text, p.opts.StartMarker)
	if start == -1 {
		return Result{Status: NotFound, Err: ErrMissingStart}
	}
	rest := text[start+len(p.opts.StartMarker):]
	end := strings.Index(rest, p.opts.EndMarker)
	if end == -1 {
		return Result{Status: NotFound, Err: ErrMissingEnd}
	}
	d, err := decode(strings.TrimSpace(rest[:end]))
	if err != nil {
		return Result{Status: Malformed, Err: err}
	}
	return Result{Status: Found, Directive: d}
}

// Format renders d between the sentinels in the canonical form Parse accepts.
func (p *Parser) Format(d core.Directive) string {
	return p.opts.StartMarker + "\n" + d.String() + "\n" + p.opts.EndMarker
}

func decode(body string) (core.Directive, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &fields); err != nil || fields == nil {
		if err == nil {
			err = errors.New("null body")
		}
		return core.Directive{}, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	rawName, ok := fields["name"]
	if !ok {
		return core.Directive{}, ErrMissingName
	}
	var name string
	if err := json.Unmarshal(rawName, &name); err != nil || name == "" {
		return core.Directive{}, ErrMissingName
	}

	input, err := decodeInput(fields["input"])
	if err != nil {
		return core.Directive{}, err
	}
	return core.NewDirective(name, input), nil
}

// decodeInput accepts an object, an absent value, null or "" (the empty forms
// all yield an empty input). Object values that are not strings are passed
// through as their compact JSON text.
func decodeInput(raw json.RawMessage) (map[string]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, []byte(`""`)) {
		return map[string]string{}, nil
	}
	if raw[0] != '{' {
		return nil, ErrInvalidInput
	}

	var values map[string]json.RawMessage
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	input := make(map[string]string, len(values))
	for k, v := range values {
		input[k] = stringValue(v)
	}
	return input, nil
}

func stringValue(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	if bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, v); err != nil {
		return string(v)
	}
	return buf.String()
}

var defaultParser = NewParser()

// Parse extracts a directive using the default sentinels.
func Parse(text string) Result { return defaultParser.Parse(text) }

// Format renders d between the default sentinels.
func Format(d core.Directive) string { return defaultParser.Format(d) }
