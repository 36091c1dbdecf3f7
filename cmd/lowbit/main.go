// Package main provides the lowbit CLI.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/born-ml/lowbit/npu"
)

const version = "v0.1.0-dev"

type command struct {
	name  string
	usage string
	run   func(out io.Writer, args []string) error
}

var commands = []command{
	{"version", "Show version", runVersion},
	{"types", "List the narrow floating-point types", runTypes},
	{"demo", "Broadcast-add two arrays on the simulated device", runDemo},
	{"bench", "Run concurrent dispatches and report throughput", runBench},
	{"inspect", "List the tensors of a SafeTensors file", runInspect},
	{"convert", "Cast the float tensors of a SafeTensors file to a narrow type", runConvert},
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one command line and returns the process exit code. Deferred
// work such as flushing the logger finishes before main exits.
func run(argv []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("lowbit", flag.ContinueOnError)
	fs.SetOutput(stderr)
	verbose := fs.Bool("v", false, "Log dispatches and device calls to stderr")
	fs.Usage = func() { usage(stderr) }
	if err := fs.Parse(argv); err != nil {
		return 2
	}

	if *verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		defer func() { _ = logger.Sync() }()
		npu.SetLogger(logger)
		defer npu.SetLogger(nil)
	}

	if fs.NArg() == 0 {
		usage(stderr)
		return 2
	}
	name, args := fs.Arg(0), fs.Args()[1:]
	for _, c := range commands {
		if c.name == name {
			if err := c.run(stdout, args); err != nil {
				fmt.Fprintf(stderr, "%s\n", render(errorStyle, "Error: "+err.Error()))
				return 1
			}
			return 0
		}
	}
	fmt.Fprintf(stderr, "unknown command %q\n\n", name)
	usage(stderr)
	return 2
}

func usage(out io.Writer) {
	fmt.Fprintf(out, "lowbit %s - narrow floating-point arrays and device kernels\n\n", version)
	fmt.Fprintln(out, "Usage: lowbit [-v] <command> [flags]")
	fmt.Fprintln(out, "\nCommands:")
	for _, c := range commands {
		fmt.Fprintf(out, "  %-10s %s\n", c.name, c.usage)
	}
}

func runVersion(out io.Writer, _ []string) error {
	fmt.Fprintf(out, "lowbit %s\n", version)
	return nil
}
