package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"statefeed/internal/delivery"
	"statefeed/internal/global"
	"statefeed/internal/lifecycle"
	"statefeed/internal/logctx"
	"statefeed/internal/receiver"
	"statefeed/internal/transport"
	"strings"
)

// Command line overrides for the listen command
type listenOptions struct {
	configPath string
	udpAddress string
	udpPort    int
	streamFD   int
	useTCP     bool
	mode       string
	recordPath string
	beatsAddr  string
	fields     string
	noMonitor  bool
}

func ListenMode(ctx context.Context, commandname string, args []string) {
	var opts listenOptions
	commandFlags := flag.NewFlagSet(commandname, flag.ExitOnError)
	SetGlobalArguments(commandFlags)
	SetCommon(commandFlags, &opts.configPath)
	commandFlags.StringVar(&opts.udpAddress, "u", "", "Receive datagrams on this local address")
	commandFlags.StringVar(&opts.udpAddress, "udp", "", "Receive datagrams on this local address")
	commandFlags.IntVar(&opts.udpPort, "p", -1, "UDP port to bind (0 lets the OS choose)")
	commandFlags.IntVar(&opts.udpPort, "port", -1, "UDP port to bind (0 lets the OS choose)")
	commandFlags.IntVar(&opts.streamFD, "fd", -1, "Read length-prefixed frames from an inherited stream descriptor")
	commandFlags.BoolVar(&opts.useTCP, "tcp", false, "Accept one loopback TCP client on an OS-assigned port")
	commandFlags.StringVar(&opts.mode, "m", "", "Delivery mode <live|buffered>")
	commandFlags.StringVar(&opts.mode, "mode", "", "Delivery mode <live|buffered>")
	commandFlags.StringVar(&opts.recordPath, "r", "", "Append buffered states to this JSON lines file")
	commandFlags.StringVar(&opts.recordPath, "record", "", "Append buffered states to this JSON lines file")
	commandFlags.StringVar(&opts.beatsAddr, "beats", "", "Forward buffered states to a lumberjack endpoint (host:port)")
	commandFlags.StringVar(&opts.fields, "f", "", "Comma separated document paths shown by the live monitor")
	commandFlags.StringVar(&opts.fields, "fields", "", "Comma separated document paths shown by the live monitor")
	commandFlags.BoolVar(&opts.noMonitor, "quiet", false, "Disable the live monitor")

	commandFlags.Usage = func() {
		PrintHelpMenu(commandFlags, commandname, global.CmdOpts)
	}
	commandFlags.Parse(args[0:])
	logctx.SetLogLevel(ctx, global.Verbosity)

	daemonConfig, err := opts.daemonConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Resolved tcp port is announced for the parent process
	daemonConfig.Transport.Announce = os.Stdout

	recvDaemon := receiver.NewDaemon(daemonConfig)
	err = recvDaemon.Start(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error starting listening daemon: %v\n", err)
		os.Exit(1)
	}

	signalCtx, stopSignals := context.WithCancel(ctx)
	defer stopSignals()
	go lifecycle.SignalHandler(signalCtx, recvDaemon)

	err = recvDaemon.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: listener stopped: %v\n", err)
		os.Exit(1)
	}
}

// Merges the config file (if any) with command line overrides
func (opts listenOptions) daemonConfig() (daemonConfig receiver.Config, err error) {
	jsonCfg, err := receiver.LoadConfig(opts.configPath)
	if err != nil {
		// Running without a config file is fine when none was asked for
		if opts.configPath != global.DefaultConfigPath || !errors.Is(err, fs.ErrNotExist) {
			return
		}
		jsonCfg = receiver.JSONConfig{}
		err = nil
	}

	daemonConfig, err = jsonCfg.NewDaemonConf()
	if err != nil {
		return
	}

	// Transport selection, at most one
	selected := 0
	if opts.udpAddress != "" || opts.udpPort >= 0 {
		selected++
		daemonConfig.Transport.Type = transport.KindUDP
		if opts.udpAddress != "" {
			daemonConfig.Transport.Address = opts.udpAddress
		}
		if opts.udpPort >= 0 {
			daemonConfig.Transport.Port = opts.udpPort
		}
	}
	if opts.streamFD >= 0 {
		selected++
		daemonConfig.Transport.Type = transport.KindFD
		daemonConfig.Transport.FD = opts.streamFD
	}
	if opts.useTCP {
		selected++
		daemonConfig.Transport.Type = transport.KindTCP
	}
	if selected > 1 {
		err = fmt.Errorf("only one of --udp/--port, --fd, or --tcp may be given")
		return
	}

	if opts.mode != "" {
		daemonConfig.Mode = delivery.Mode(strings.ToLower(opts.mode))
		if daemonConfig.Mode != delivery.Live && daemonConfig.Mode != delivery.Buffered {
			err = fmt.Errorf("unknown delivery mode %q", opts.mode)
			return
		}
	}
	if opts.recordPath != "" {
		daemonConfig.RecordFilePath = opts.recordPath
	}
	if opts.beatsAddr != "" {
		daemonConfig.BeatsEndpoint = opts.beatsAddr
	}
	if opts.fields != "" {
		daemonConfig.MonitorFields = splitList(opts.fields)
	}
	if opts.noMonitor {
		daemonConfig.MonitorEnabled = false
	}
	return
}
