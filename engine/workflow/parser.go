package workflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
)

// ParseOptions selects the fallback stages after strict JSON fails.
type ParseOptions struct {
	// Repair enables the repair pass (close braces, strip trailing commas,
	// quote bare keys, normalize quotes) before reparsing.
	Repair bool
	// AcceptJSObject enables parsing the input as a JavaScript object
	// literal expression.
	AcceptJSObject bool
}

// ParseError is a terminal parse failure with the original parser's
// position preserved.
type ParseError struct {
	Code    string
	Message string
	Line    int
	Col     int
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s at line %d, column %d: %s", e.Code, e.Line, e.Col, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Document pairs a parsed workflow with the raw source text so that issues
// can be located back to line/column.
type Document struct {
	Workflow *Workflow
	// Raw is the original text; empty when the workflow did not come from
	// source text.
	Raw []byte
	// Repaired is set when the repair pass produced the parsed document.
	Repaired bool
	// MissingNodes and MissingConnections record top-level keys absent in
	// the source before the document was defaulted.
	MissingNodes       bool
	MissingConnections bool
}

// Parse reads a workflow document from raw text. On success every node type
// is normalized to short form and the returned document retains the source
// bytes for the locator.
func Parse(raw []byte, opts ParseOptions) (*Document, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return nil, &ParseError{Code: "PARSE_ERROR", Message: "empty input"}
	}

	var w Workflow
	strictErr := decodeStrict(raw, &w)
	if strictErr == nil {
		doc := &Document{Workflow: &w, Raw: raw}
		doc.normalize()
		return doc, nil
	}

	if opts.Repair {
		if repaired, err := jsonrepair.RepairJSON(trimmed); err == nil {
			var rw Workflow
			if err := decodeStrict([]byte(repaired), &rw); err == nil {
				doc := &Document{Workflow: &rw, Raw: raw, Repaired: true}
				doc.normalize()
				return doc, nil
			}
		}
	}

	if opts.AcceptJSObject {
		if value, err := parseJSObjectLiteral(trimmed); err == nil {
			if rw, err := workflowFromValue(value); err == nil {
				doc := &Document{Workflow: rw, Raw: raw, Repaired: true}
				doc.normalize()
				return doc, nil
			}
		}
	}

	return nil, parseErrorFrom(raw, strictErr)
}

// FromMap builds a document from an already-decoded JSON value, e.g. a
// control-plane response body.
func FromMap(m map[string]any) (*Document, error) {
	w, err := workflowFromValue(m)
	if err != nil {
		return nil, err
	}
	doc := &Document{Workflow: w}
	doc.normalize()
	return doc, nil
}

func (d *Document) normalize() {
	for _, n := range d.Workflow.Nodes {
		n.Type = NormalizeNodeType(n.Type)
	}
	d.MissingNodes = d.Workflow.Nodes == nil
	if d.Workflow.Connections == nil {
		d.MissingConnections = true
		d.Workflow.Connections = make(map[string]ConnectionGroup)
	}
}

func decodeStrict(raw []byte, w *Workflow) error {
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	if err := dec.Decode(w); err != nil {
		return err
	}
	return nil
}

func workflowFromValue(v any) (*Workflow, error) {
	encoded, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("workflow: encode literal: %w", err)
	}
	var w Workflow
	if err := json.Unmarshal(encoded, &w); err != nil {
		return nil, fmt.Errorf("workflow: decode literal: %w", err)
	}
	return &w, nil
}

func parseErrorFrom(raw []byte, err error) *ParseError {
	pe := &ParseError{Code: "PARSE_ERROR", Message: err.Error()}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	var offset int64 = -1
	if errors.As(err, &syntaxErr) {
		offset = syntaxErr.Offset
	} else if errors.As(err, &typeErr) {
		offset = typeErr.Offset
	}
	if offset >= 0 {
		pe.Line, pe.Col = lineColAt(raw, int(offset))
	}
	return pe
}

// lineColAt converts a byte offset into 1-based line and column numbers.
func lineColAt(raw []byte, offset int) (int, int) {
	if offset > len(raw) {
		offset = len(raw)
	}
	line, col := 1, 1
	for i := 0; i < offset; i++ {
		if raw[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}

// Serialize renders the workflow as indented JSON. parse(Serialize(w))
// round-trips the document.
func Serialize(w *Workflow) ([]byte, error) {
	out, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("workflow: serialize: %w", err)
	}
	return out, nil
}
