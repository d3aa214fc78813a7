package cli

import (
	"flag"
	"statefeed/internal/global"
	"strings"
)

func SetGlobalArguments(fs *flag.FlagSet) {
	fs.IntVar(&global.Verbosity, "v", 1, "Increase detailed progress messages (Higher is more verbose) <0...5>")
	fs.IntVar(&global.Verbosity, "verbosity", 1, "Increase detailed progress messages (Higher is more verbose) <0...5>")
}

func SetCommon(fs *flag.FlagSet, configPath *string) {
	fs.StringVar(configPath, "c", global.DefaultConfigPath, "Path to the JSON configuration file (comments allowed)")
	fs.StringVar(configPath, "config", global.DefaultConfigPath, "Path to the JSON configuration file (comments allowed)")
}

// Splits a comma separated option, dropping blank entries
func splitList(raw string) (items []string) {
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return
}
