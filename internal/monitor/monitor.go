// Periodically prints selected fields of the most recent live state
package monitor

import (
	"context"
	"fmt"
	"io"
	"os"
	"statefeed/internal/delivery"
	"statefeed/internal/global"
	"statefeed/internal/logctx"
	"strings"
	"time"

	"github.com/tidwall/pretty"
	"golang.org/x/term"
)

const (
	clearLine   = "\r\033[K"
	clearScreen = "\033[H\033[2J"
	missing     = "<missing>"
)

type Instance struct {
	Namespace []string
	Slot      *delivery.LiveSlot
	Fields    []string // gjson paths, empty prints the whole document
	Refresh   time.Duration
	out       io.Writer
	terminal  int // Descriptor of out when it is a terminal, otherwise -1
	lastSeen  time.Time
}

// Creates a monitor writing to out
func New(namespace []string, slot *delivery.LiveSlot, fields []string, refresh time.Duration, out io.Writer) (new *Instance) {
	if refresh <= 0 {
		refresh = global.DefaultRefreshInterval
	}
	new = &Instance{
		Namespace: append(append([]string(nil), namespace...), global.NSMonitor),
		Slot:      slot,
		Fields:    fields,
		Refresh:   refresh,
		out:       out,
		terminal:  -1,
	}
	if file, ok := out.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		new.terminal = int(file.Fd())
	}
	return
}

// Renders on every refresh tick until ctx is cancelled
func (instance *Instance) Run(ctx context.Context) {
	ctx = logctx.AppendCtxTag(ctx, global.NSMonitor)

	ticker := time.NewTicker(instance.Refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if instance.terminal >= 0 && len(instance.Fields) > 0 {
				fmt.Fprintln(instance.out)
			}
			return
		case <-ticker.C:
			_, err := instance.Render()
			if err != nil {
				logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog, "%v\n", err)
			}
		}
	}
}

// Prints the current state if it changed since the last render
func (instance *Instance) Render() (rendered bool, err error) {
	state, ok := instance.Slot.Latest()
	if !ok || state.ReceivedAt.Equal(instance.lastSeen) {
		return
	}
	instance.lastSeen = state.ReceivedAt

	var text string
	switch {
	case len(instance.Fields) == 0 && instance.terminal >= 0:
		text = clearScreen + string(pretty.Color(state.Document.Pretty(), nil))
	case len(instance.Fields) == 0:
		text = string(state.Document.Compact()) + "\n"
	case instance.terminal >= 0:
		text = clearLine + instance.fitWidth(FormatFields(state, instance.Fields))
	default:
		text = FormatFields(state, instance.Fields) + "\n"
	}

	_, err = io.WriteString(instance.out, text)
	if err != nil {
		err = fmt.Errorf("failed writing monitor output: %w", err)
		return
	}
	rendered = true
	return
}

// One line with the interval followed by each requested field
func FormatFields(state delivery.State, fields []string) (line string) {
	parts := make([]string, 0, len(fields)+1)
	parts = append(parts, "interval="+state.Interval.Round(time.Microsecond).String())
	for _, path := range fields {
		field := state.Document.Get(path)
		value := missing
		if field.Exists() {
			value = field.Raw()
		}
		parts = append(parts, path+"="+value)
	}
	line = strings.Join(parts, " ")
	return
}

// Truncates a status line to the terminal width
func (instance *Instance) fitWidth(line string) (fitted string) {
	fitted = line
	width, _, err := term.GetSize(instance.terminal)
	if err != nil || width <= 0 {
		return
	}
	runes := []rune(line)
	if len(runes) > width {
		fitted = string(runes[:width])
	}
	return
}
