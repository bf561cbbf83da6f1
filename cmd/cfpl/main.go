// Package main is the cfpl command: it runs CFPL programs and hosts them as
// a service.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/lemonberrylabs/cfpl/pkg/cfpl"
	"github.com/lemonberrylabs/cfpl/pkg/types"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Exit codes.
const (
	exitOK      = 0
	exitUsage   = 64
	exitSyntax  = 65
	exitNoInput = 66
	exitRuntime = 70
	exitFailure = 1
)

// ErrUsage marks command line misuse.
var ErrUsage = errors.New("usage")

// exitError carries the process exit code for an error that has already been
// reported.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func main() {
	os.Exit(execute(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// execute runs the command tree and maps its error to an exit code.
func execute(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := newRootCmd(stdin, stdout, stderr)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	if err == nil {
		return exitOK
	}

	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	fmt.Fprintln(stderr, "Error:", err)
	return exitFailure
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "cfpl FILE",
		Short:         "CFPL interpreter",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				fmt.Fprintln(stderr, "Usage: cfpl FILE")
				return &exitError{code: exitUsage, err: ErrUsage}
			}
			source, err := readSource(args[0], stderr)
			if err != nil {
				return err
			}
			err = cfpl.Run(cmd.Context(), source, stdin, stdout)
			return report(err, stdout)
		},
	}
	root.Version = version + " (commit=" + commit + ", built=" + date + ")"
	root.SetVersionTemplate("cfpl version {{.Version}}\n")
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.AddCommand(
		newTokensCmd(stdout, stderr),
		newCheckCmd(stdout, stderr),
		newSuiteCmd(stdout, stderr),
		newServeCmd(),
	)
	return root
}

func newTokensCmd(stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "tokens FILE",
		Short: "Print the token stream of a program",
		Args:  exactFile(stderr, "Usage: cfpl tokens FILE"),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := readSource(args[0], stderr)
			if err != nil {
				return err
			}
			tokens, err := cfpl.Tokens(source)
			if err != nil {
				return report(err, stdout)
			}
			fmt.Fprint(stdout, cfpl.DumpTokens(tokens))
			return nil
		},
	}
}

func newCheckCmd(stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "check FILE",
		Short: "Lex and parse a program without running it",
		Args:  exactFile(stderr, "Usage: cfpl check FILE"),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := readSource(args[0], stderr)
			if err != nil {
				return err
			}
			if _, err := cfpl.Check(source); err != nil {
				return report(err, stdout)
			}
			fmt.Fprintf(stdout, "%s: ok\n", args[0])
			return nil
		},
	}
}

// exactFile requires a single FILE argument and reports misuse with exit 64.
func exactFile(stderr io.Writer, usage string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			fmt.Fprintln(stderr, usage)
			return &exitError{code: exitUsage, err: ErrUsage}
		}
		return nil
	}
}

func readSource(path string, stderr io.Writer) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stderr, "cannot read %s: %v\n", path, err)
		return "", &exitError{code: exitNoInput, err: err}
	}
	return string(data), nil
}

// report prints a CFPL diagnostic after whatever the program already wrote
// and picks the exit code from its stage.
func report(err error, stdout io.Writer) error {
	if err == nil {
		return nil
	}
	fmt.Fprintln(stdout, cfpl.Format(err))

	code := exitFailure
	var cerr *types.Error
	if errors.As(err, &cerr) {
		switch cerr.Stage {
		case types.StageLexer, types.StageParser:
			code = exitSyntax
		case types.StageInterpreter:
			code = exitRuntime
		}
	} else if errors.Is(err, context.Canceled) {
		code = exitRuntime
	}
	return &exitError{code: code, err: err}
}
