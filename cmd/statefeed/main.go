package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"statefeed/internal/cli"
	"statefeed/internal/global"
	"statefeed/internal/logctx"
)

func main() {
	cliOpts := cli.DefineOptions()
	global.CmdOpts = cliOpts

	commandFlags := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	cli.SetGlobalArguments(commandFlags)

	commandFlags.Usage = func() {
		cli.PrintHelpMenu(commandFlags, cli.RootCLICommand, cliOpts)
	}
	if len(os.Args) < 2 {
		cli.PrintHelpMenu(commandFlags, cli.RootCLICommand, cliOpts)
		os.Exit(1)
	}
	commandFlags.Parse(os.Args[1:])

	// Retrieve command and args
	command := commandFlags.Arg(0)
	args := commandFlags.Args()
	if len(args) > 0 {
		args = args[1:]
	}

	// Setting global logging
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	logger := logctx.NewLogger("global", global.Verbosity, ctx.Done()) // New logger tied to global
	ctx = logctx.WithLogger(ctx, logger)                               // Add logger to global ctx
	logctx.StartWatcher(logger, os.Stderr)                             // Stdout is reserved for the port announcement

	// Process commands
	switch command {
	case "listen":
		cli.ListenMode(ctx, command, args)
	case "version":
		if len(args) > 0 && (args[0] == "--verbosity" || args[0] == "-v") {
			fmt.Printf("statefeed %s\n", global.ProgVersion)
			fmt.Printf("Built using %s(%s) for %s on %s\n", runtime.Version(), runtime.Compiler, runtime.GOOS, runtime.GOARCH)
		} else {
			fmt.Println(global.ProgVersion)
		}
	default:
		cli.PrintHelpMenu(commandFlags, cli.RootCLICommand, cliOpts)
		os.Exit(1)
	}

	// Finish up any log writes for global logger
	cancel()
	logger.Wake()
	logger.Wait()
}
