package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/lemonberrylabs/cfpl/pkg/suite"
)

func newSuiteCmd(stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "suite FILE...",
		Short: "Run YAML conformance suites",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				fmt.Fprintln(stderr, "Usage: cfpl suite FILE...")
				return &exitError{code: exitUsage, err: ErrUsage}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				s, err := suite.Load(path)
				if err != nil {
					fmt.Fprintln(stderr, err)
					return &exitError{code: exitNoInput, err: err}
				}

				report, err := suite.Run(cmd.Context(), s)
				if err != nil {
					return err
				}
				for _, res := range report.Results {
					if res.Passed {
						fmt.Fprintf(stdout, "PASS %s/%s\n", report.Suite, res.Name)
						continue
					}
					failed++
					fmt.Fprintf(stdout, "FAIL %s/%s: %s\n", report.Suite, res.Name, res.Reason)
				}
			}

			if failed > 0 {
				return &exitError{code: exitFailure, err: fmt.Errorf("%d case(s) failed", failed)}
			}
			return nil
		},
	}
}
