package main

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"

	fluxerr "github.com/fluxcd/deploy2ecs/pkg/errors"
	"github.com/fluxcd/deploy2ecs/pkg/taskrun"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	rootCmd := newRoot(stderr).Command()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	cmd, err := rootCmd.ExecuteC()
	if err == nil {
		return 0
	}

	switch err.(type) {
	case usageError:
		fmt.Fprintln(stderr, "Error: "+err.Error())
		fmt.Fprintln(stderr, "")
		fmt.Fprintln(stderr, cmd.UsageString())
		return 1
	}

	var failed *taskrun.FailedError
	if errors.As(err, &failed) {
		err = taskrun.Help(failed)
	}
	var ferr *fluxerr.Error
	if errors.As(err, &ferr) && ferr.Help != "" {
		fmt.Fprintln(stderr, ferr.Help)
	}
	fmt.Fprintln(stderr, "Error: "+err.Error())
	return 1
}
