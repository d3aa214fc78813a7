package cli

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"statefeed/internal/global"
	"strings"
)

const (
	RootCLICommand  string = "root"
	helpMenuTrailer string = `
Configuration is read from the file given by --config; command line options override it.
With --tcp the resolved port is printed to stdout as "TCP_PORT:<port>".
`
)

// Full standardized help menu (wraps option printer as well)
func PrintHelpMenu(fs *flag.FlagSet, command string, rootCmd *global.CommandSet) {
	printHelpMenu(os.Stdout, fs, command, rootCmd)
}

func printHelpMenu(out io.Writer, fs *flag.FlagSet, command string, rootCmd *global.CommandSet) {
	const indent = "  "

	curCmdSet := rootCmd
	if command != "" && command != RootCLICommand {
		cmd, ok := rootCmd.ChildCommands[command]
		if !ok {
			fmt.Fprintf(out, "Unknown command: %s\n", command)
			return
		}
		curCmdSet = cmd
	}

	// Usage line
	usageParts := []string{os.Args[0]}
	if curCmdSet != rootCmd {
		usageParts = append(usageParts, curCmdSet.CommandName)
	} else if len(rootCmd.ChildCommands) > 0 {
		usageParts = append(usageParts, "[subcommand]")
	}
	if curCmdSet.UsageOption != "" {
		usageParts = append(usageParts, curCmdSet.UsageOption)
	}
	fmt.Fprintf(out, "Usage: %s\n\n", strings.Join(usageParts, " "))

	// Description
	if curCmdSet == rootCmd {
		fmt.Fprintln(out, curCmdSet.Description)
		fmt.Fprintln(out, curCmdSet.FullDescription)
		fmt.Fprintln(out)
	} else if curCmdSet.FullDescription != "" {
		fmt.Fprintf(out, "%sDescription:\n%s%s%s\n\n", indent, indent, indent, curCmdSet.FullDescription)
	}

	// Subcommands
	if len(curCmdSet.ChildCommands) > 0 {
		names := make([]string, 0, len(curCmdSet.ChildCommands))
		width := 0
		for name := range curCmdSet.ChildCommands {
			names = append(names, name)
			width = max(width, len(name))
		}
		sort.Strings(names)

		fmt.Fprintf(out, "%sSubcommands:\n", indent)
		for _, name := range names {
			fmt.Fprintf(out, "%s%s%-*s - %s\n", indent, indent, width+2, name, curCmdSet.ChildCommands[name].Description)
		}
		fmt.Fprintln(out)
	}

	printFlagOptions(out, fs, indent)

	// Top-level trailer
	if curCmdSet == rootCmd {
		fmt.Fprint(out, helpMenuTrailer)
	}
}

// Option grouped under every flag name sharing its usage text (e.g. "-c, --config")
type flagOption struct {
	names      []string
	usage      string
	defaultVal string
}

// Prints options with short and long aliases on one line
func printFlagOptions(out io.Writer, fs *flag.FlagSet, indent string) {
	byUsage := make(map[string]*flagOption)
	var options []*flagOption

	fs.VisitAll(func(arg *flag.Flag) {
		name := "--" + arg.Name
		if len(arg.Name) == 1 {
			name = "-" + arg.Name
		}

		option, seen := byUsage[arg.Usage]
		if !seen {
			option = &flagOption{usage: arg.Usage, defaultVal: arg.DefValue}
			byUsage[arg.Usage] = option
			options = append(options, option)
		}
		option.names = append(option.names, name)
	})

	// Short aliases first, then alphabetical by first name
	for _, option := range options {
		sort.Slice(option.names, func(a, b int) bool { return len(option.names[a]) < len(option.names[b]) })
	}
	sort.Slice(options, func(a, b int) bool {
		return strings.TrimLeft(options[a].names[0], "-") < strings.TrimLeft(options[b].names[0], "-")
	})

	// Long-only options line up with the long half of short/long pairs
	const shortColumn = "-x, "
	labels := make([]string, len(options))
	width := 0
	for i, option := range options {
		label := strings.Join(option.names, ", ")
		if !strings.HasPrefix(label, "--") {
			labels[i] = label
		} else {
			labels[i] = strings.Repeat(" ", len(shortColumn)) + label
		}
		width = max(width, len(labels[i]))
	}

	fmt.Fprintf(out, "%sOptions:\n", indent)
	for i, option := range options {
		desc := option.usage
		// Skip printing any "empty" defaults
		if option.defaultVal != "" && option.defaultVal != "false" && option.defaultVal != "0" && option.defaultVal != "-1" {
			desc += fmt.Sprintf(" [default: %s]", option.defaultVal)
		}
		fmt.Fprintf(out, "%s%-*s  %s\n", indent, width, labels[i], desc)
	}
}
