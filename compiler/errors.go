package compiler

import (
	"fmt"
	"strings"

	"github.com/joomcode/errorx"
)

// Error taxonomy. Every compile failure is one of these types; the first one
// raised aborts the compilation unit.
var (
	Namespace = errorx.NewNamespace("slate")

	// SyntaxError is raised by the parser.
	SyntaxError = Namespace.NewType("syntax")

	// ResolutionError covers undefined names, duplicate definitions, writes
	// to immutable slots, arity limits and out-of-range literals.
	ResolutionError = Namespace.NewType("resolution")

	// ProgramShapeError covers whole-program problems with no single source
	// position: a missing main, an unknown built-in tag, exhausted id space.
	ProgramShapeError = Namespace.NewType("program_shape")

	// ConfigError reports an unusable target or project configuration.
	ConfigError = Namespace.NewType("config")

	// InternalError marks a broken compiler invariant.
	InternalError = Namespace.NewType("internal")

	// PositionProperty carries the Position an error refers to.
	PositionProperty = errorx.RegisterProperty("position")
)

// ErrorAt builds a positioned error of type t.
func ErrorAt(t *errorx.Type, pos Position, format string, args ...any) *errorx.Error {
	return t.New(format, args...).WithProperty(PositionProperty, pos)
}

// Internalf raises a compiler invariant violation.
func Internalf(format string, args ...any) *errorx.Error {
	return InternalError.New(format, args...)
}

// ErrorPosition extracts the source position attached to err.
func ErrorPosition(err error) (Position, bool) {
	p, ok := errorx.ExtractProperty(err, PositionProperty)
	if !ok {
		return Position{}, false
	}
	pos, ok := p.(Position)
	return pos, ok
}

// Describe renders err as a single diagnostic, with the offending source line
// and a caret under the column when a position is known.
func Describe(err error, tree *Tree) string {
	msg := err.Error()
	if e := errorx.Cast(err); e != nil {
		msg = e.Message()
	}
	pos, ok := ErrorPosition(err)
	if !ok {
		return msg
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s:%d:%d: %s", pos.File, pos.Line, pos.Column, msg)
	if tree != nil {
		if line := tree.SourceLine(pos.File, pos.Line); line != "" {
			col := pos.Column - 1
			if col < 0 {
				col = 0
			}
			if col > len(line) {
				col = len(line)
			}
			sb.WriteString("\n    ")
			sb.WriteString(line)
			sb.WriteString("\n    ")
			sb.WriteString(strings.Repeat(" ", col))
			sb.WriteString("^")
		}
	}
	return sb.String()
}
