// Package cfpl ties the CFPL front end and evaluator together. It is the
// entry point used by the command line driver, the hosting service and the
// conformance suite runner.
package cfpl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/lemonberrylabs/cfpl/pkg/runtime"
	"github.com/lemonberrylabs/cfpl/pkg/syntax"
	"github.com/lemonberrylabs/cfpl/pkg/types"
)

// Run lexes, parses and executes source, reading INPUT from stdin and
// writing OUTPUT to stdout.
func Run(ctx context.Context, source string, stdin io.Reader, stdout io.Writer) error {
	return Execute(ctx, source, runtime.Options{Stdin: stdin, Stdout: stdout})
}

// Execute is Run with full control over the engine options.
func Execute(ctx context.Context, source string, opts runtime.Options) error {
	program, err := Check(source)
	if err != nil {
		return err
	}
	engine := runtime.NewEngine(program, opts)
	return withSource(engine.Execute(ctx), source)
}

// Check lexes and parses source without running it.
func Check(source string) ([]syntax.Stmt, error) {
	program, err := syntax.Parse(source)
	if err != nil {
		return nil, withSource(err, source)
	}
	return program, nil
}

// Tokens returns the token stream of source.
func Tokens(source string) ([]syntax.Token, error) {
	tokens, err := syntax.NewLexer(source).Tokenize()
	if err != nil {
		return nil, withSource(err, source)
	}
	return tokens, nil
}

// DumpTokens renders a token stream one token per line.
func DumpTokens(tokens []syntax.Token) string {
	var sb strings.Builder
	for i, tok := range tokens {
		fmt.Fprintf(&sb, "[%d] - %s\n", i, tok)
	}
	return sb.String()
}

// Format renders err the way the driver prints it: the stage label followed
// by the diagnostic. Errors that are not CFPL diagnostics print as is.
func Format(err error) string {
	var cerr *types.Error
	if errors.As(err, &cerr) {
		return cerr.Label() + " " + cerr.Error()
	}
	return err.Error()
}

func withSource(err error, source string) error {
	var cerr *types.Error
	if errors.As(err, &cerr) {
		cerr.WithSource(source)
	}
	return err
}
