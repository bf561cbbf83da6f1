package types

import (
	"fmt"
	"strings"
)

// Stage identifies the pipeline stage that produced an error.
type Stage string

// Stage labels as printed by the driver.
const (
	StageLexer       Stage = "Lexer-Error"
	StageParser      Stage = "Parser-Error"
	StageInterpreter Stage = "Interpreter-Error"
)

// Pos is a 1-based source position.
type Pos struct {
	Line   int
	Column int
}

// Error is a CFPL diagnostic. It records the stage, the offending position
// and fragment, and optionally the source line it occurred on.
type Error struct {
	Stage   Stage
	Message string
	Pos     Pos
	Kind    string // token kind; empty for lexer errors
	Lexeme  string
	// SourceLine is the text of line Pos.Line, attached by whoever owns the
	// source. When empty the diagnostic omits the caret lines.
	SourceLine string
}

// Error implements the error interface with the multi-line diagnostic.
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)
	sb.WriteByte('\n')
	if e.Kind != "" {
		fmt.Fprintf(&sb, "[line: %d, column: %d] on %s '%s'.", e.Pos.Line, e.Pos.Column, e.Kind, e.Lexeme)
	} else {
		fmt.Fprintf(&sb, "[line: %d, column: %d] on '%s'.", e.Pos.Line, e.Pos.Column, e.Lexeme)
	}
	if e.SourceLine != "" {
		sb.WriteByte('\n')
		sb.WriteString(e.SourceLine)
		sb.WriteByte('\n')
		sb.WriteString(caret(e.SourceLine, e.Pos.Column))
	}
	return sb.String()
}

// Label returns the stage prefix, e.g. "[Parser-Error]".
func (e *Error) Label() string {
	return "[" + string(e.Stage) + "]"
}

// WithSource attaches the offending line of src and returns e.
func (e *Error) WithSource(src string) *Error {
	if e.SourceLine == "" {
		e.SourceLine = SourceLine(src, e.Pos.Line)
	}
	return e
}

// caret builds the marker line. Tabs in the source line are kept so the
// caret lines up in a terminal.
func caret(line string, column int) string {
	var sb strings.Builder
	i := 1
	for _, r := range line {
		if i >= column {
			break
		}
		if r == '\t' {
			sb.WriteByte('\t')
		} else {
			sb.WriteByte(' ')
		}
		i++
	}
	for ; i < column; i++ {
		sb.WriteByte(' ')
	}
	sb.WriteByte('^')
	return sb.String()
}

// SourceLine returns the text of the 1-based line of src, without the
// line terminator. Out of range lines yield "".
func SourceLine(src string, line int) string {
	if line < 1 {
		return ""
	}
	for n := 1; ; n++ {
		idx := strings.IndexByte(src, '\n')
		if n == line {
			if idx < 0 {
				return strings.TrimSuffix(src, "\r")
			}
			return strings.TrimSuffix(src[:idx], "\r")
		}
		if idx < 0 {
			return ""
		}
		src = src[idx+1:]
	}
}

// Common error constructors.

// NewLexError creates a lexer error pointing at a raw source fragment.
func NewLexError(pos Pos, fragment, msg string) *Error {
	return &Error{Stage: StageLexer, Message: msg, Pos: pos, Lexeme: fragment}
}

// NewParseError creates a parser error pointing at a token.
func NewParseError(pos Pos, kind, lexeme, msg string) *Error {
	return &Error{Stage: StageParser, Message: msg, Pos: pos, Kind: kind, Lexeme: lexeme}
}

// NewRuntimeError creates an evaluator error pointing at a token.
func NewRuntimeError(pos Pos, kind, lexeme, msg string) *Error {
	return &Error{Stage: StageInterpreter, Message: msg, Pos: pos, Kind: kind, Lexeme: lexeme}
}
