package cli

import "statefeed/internal/global"

func DefineOptions() (cmdOpts *global.CommandSet) {
	// Root level
	root := &global.CommandSet{
		Description:     "Telemetry State Feed (statefeed)",
		FullDescription: "  Receives JSON state documents from a local producer and hands them to a consumer",
		CommandName:     RootCLICommand,
		ChildCommands:   make(map[string]*global.CommandSet),
	}

	// Receiving
	root.ChildCommands["listen"] = &global.CommandSet{
		CommandName:     "listen",
		UsageOption:     "[options]",
		Description:     "Receive State Documents",
		FullDescription: "Binds one transport (udp, inherited stream descriptor, or loopback tcp), decodes every message, and delivers it live or buffered",
		ChildCommands:   nil,
	}

	// Version Info
	root.ChildCommands["version"] = &global.CommandSet{
		CommandName:     "version",
		Description:     "Show Version Information",
		FullDescription: "Display meta information about program",
	}

	cmdOpts = root
	return
}
