package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"eitype/internal/config"
	"eitype/internal/script"
	"eitype/internal/typer"
)

// stringList collects a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// counter is a boolean flag that adds step to n each time it appears,
// so -v -v and -vv both mean 2.
type counter struct {
	n    *int
	step int
}

func (c counter) String() string {
	if c.n == nil {
		return "0"
	}
	return strconv.Itoa(*c.n)
}

func (c counter) IsBoolFlag() bool { return true }

func (c counter) Set(v string) error {
	on, err := strconv.ParseBool(v)
	if err != nil {
		return err
	}
	if on {
		*c.n += c.step
	}
	return nil
}

// layoutIndexFlag distinguishes "unset" from index 0.
type layoutIndexFlag struct {
	idx *uint32
}

func (f *layoutIndexFlag) String() string {
	if f.idx == nil {
		return ""
	}
	return strconv.FormatUint(uint64(*f.idx), 10)
}

func (f *layoutIndexFlag) Set(v string) error {
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return fmt.Errorf("invalid layout index %q", v)
	}
	idx := uint32(n)
	f.idx = &idx
	return nil
}

// cliOptions is the parsed command line.
type cliOptions struct {
	configPath   string
	scriptPath   string
	delayMS      int
	keys         stringList
	holds        stringList
	presses      stringList
	portal       bool
	socket       string
	layout       string
	variant      string
	model        string
	options      string
	layoutIndex  layoutIndexFlag
	verbose      int
	restoreToken string
	wait         time.Duration
	texts        []string

	// set records which flags appeared, by canonical name.
	set map[string]bool
}

// aliases maps short flag names to their long form.
var aliases = map[string]string{
	"d": "delay",
	"k": "key",
	"M": "mod",
	"P": "press-mod",
	"p": "portal",
	"s": "socket",
	"l": "layout",
}

func newFlagSet(opts *cliOptions) *flag.FlagSet {
	fs := flag.NewFlagSet("eitype", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}

	fs.StringVar(&opts.configPath, "config", "", "path to config file")
	fs.StringVar(&opts.scriptPath, "script", "", "run actions from a JSON or YAML script")

	for _, name := range []string{"d", "delay"} {
		fs.IntVar(&opts.delayMS, name, 0, "delay between key events in milliseconds")
	}
	for _, name := range []string{"k", "key"} {
		fs.Var(&opts.keys, name, "press a special key (repeatable)")
	}
	for _, name := range []string{"M", "mod"} {
		fs.Var(&opts.holds, name, "hold a modifier for the whole run (repeatable)")
	}
	for _, name := range []string{"P", "press-mod"} {
		fs.Var(&opts.presses, name, "press and release a modifier (repeatable)")
	}
	for _, name := range []string{"p", "portal"} {
		fs.BoolVar(&opts.portal, name, false, "connect through the RemoteDesktop portal")
	}
	for _, name := range []string{"s", "socket"} {
		fs.StringVar(&opts.socket, name, "", "EIS socket path (default $LIBEI_SOCKET)")
	}
	for _, name := range []string{"l", "layout"} {
		fs.StringVar(&opts.layout, name, "", "XKB layout, e.g. us, de")
	}
	fs.StringVar(&opts.variant, "variant", "", "XKB variant, e.g. dvorak")
	fs.StringVar(&opts.model, "model", "", "XKB model, e.g. pc105")
	fs.StringVar(&opts.options, "options", "", "XKB options, e.g. ctrl:nocaps")
	fs.Var(&opts.layoutIndex, "layout-index", "active layout index (default auto-detect)")
	fs.StringVar(&opts.restoreToken, "restore-token", "", "portal restore token")
	fs.DurationVar(&opts.wait, "wait", 0, "wait this long for the EIS socket to appear")

	fs.Var(counter{n: &opts.verbose, step: 1}, "v", "verbose output (repeatable)")
	fs.Var(counter{n: &opts.verbose, step: 2}, "vv", "same as -v -v")
	fs.Var(counter{n: &opts.verbose, step: 3}, "vvv", "same as -v -v -v")
	fs.Var(counter{n: &opts.verbose, step: 1}, "verbose", "same as -v")

	return fs
}

// parseArgs parses args. Flags and text may be interleaved; everything
// after "--" is text.
func parseArgs(args []string) (*cliOptions, error) {
	opts := &cliOptions{set: make(map[string]bool)}
	fs := newFlagSet(opts)

	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		if len(rest) == 0 {
			break
		}
		consumed := len(args) - len(rest)
		if consumed > 0 && args[consumed-1] == "--" {
			opts.texts = append(opts.texts, rest...)
			break
		}
		opts.texts = append(opts.texts, rest[0])
		args = rest[1:]
	}

	fs.Visit(func(f *flag.Flag) {
		name := f.Name
		if long, ok := aliases[name]; ok {
			name = long
		}
		opts.set[name] = true
	})

	if opts.portal && opts.socket != "" {
		return nil, errors.New("-portal and -socket are mutually exclusive")
	}
	if opts.delayMS < 0 {
		return nil, errors.New("-delay cannot be negative")
	}
	return opts, nil
}

// apply overrides cfg with the flags that were given on the command line.
func (o *cliOptions) apply(cfg *config.Config) {
	if o.set["layout"] {
		cfg.Layout = o.layout
	}
	if o.set["variant"] {
		cfg.Variant = o.variant
	}
	if o.set["model"] {
		cfg.Model = o.model
	}
	if o.set["options"] {
		cfg.Options = o.options
	}
	if o.layoutIndex.idx != nil {
		idx := *o.layoutIndex.idx
		cfg.LayoutIndex = &idx
	}
	if o.set["delay"] {
		cfg.DelayMS = o.delayMS
	}
	if o.set["portal"] {
		cfg.Connection.Portal = o.portal
		if o.portal {
			cfg.Connection.Socket = ""
		}
	}
	if o.set["socket"] {
		cfg.Connection.Socket = o.socket
		cfg.Connection.Portal = false
	}
	if o.set["restore-token"] {
		cfg.Connection.RestoreToken = o.restoreToken
	}
	if o.set["wait"] {
		cfg.Connection.WaitMS = int(o.wait / time.Millisecond)
	}
}

// buildActions assembles the action list in execution order: held
// modifiers, texts, script actions, keys, then pressed modifiers. A text
// of "-" reads stdin; with no actions at all, piped stdin is typed.
func (o *cliOptions) buildActions(sc *script.Script, stdin io.Reader, stdinIsTerminal bool) ([]typer.Action, error) {
	var actions []typer.Action

	for _, m := range o.holds {
		actions = append(actions, typer.ModifierHold(m))
	}

	var stdinText *string
	readStdin := func() (string, error) {
		if stdinText != nil {
			return *stdinText, nil
		}
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		s := string(data)
		stdinText = &s
		return s, nil
	}

	for _, text := range o.texts {
		if text == "-" {
			s, err := readStdin()
			if err != nil {
				return nil, err
			}
			text = s
		}
		actions = append(actions, typer.Type(text))
	}

	if sc != nil {
		actions = append(actions, sc.Actions...)
	}
	for _, k := range o.keys {
		actions = append(actions, typer.Key(k))
	}
	for _, m := range o.presses {
		actions = append(actions, typer.ModifierPress(m))
	}

	if len(actions) == 0 && !stdinIsTerminal && stdin != nil {
		s, err := readStdin()
		if err != nil {
			return nil, err
		}
		if s != "" {
			actions = append(actions, typer.Type(s))
		}
	}

	if len(actions) == 0 {
		return nil, errors.New("nothing to type: no text, keys, modifiers or script given")
	}
	return actions, nil
}

// delay resolves the inter-event delay: -delay, then the script's
// delay_ms, then the configuration.
func (o *cliOptions) delay(cfg *config.Config, sc *script.Script) time.Duration {
	if !o.set["delay"] && sc != nil && sc.HasDelay {
		return sc.Delay
	}
	return cfg.Delay()
}

const usageText = `eitype - type text through Emulated Input (EI) on Wayland

Usage: eitype [options] [TEXT...]

Text "-" reads from stdin; with no actions, piped stdin is typed.

Options:
  -d, -delay <ms>         Delay between key events in milliseconds
  -k, -key <key>          Press a special key, e.g. return, tab (repeatable)
  -M, -mod <mod>          Hold a modifier while typing, e.g. ctrl (repeatable)
  -P, -press-mod <mod>    Press and release a modifier (repeatable)
  -p, -portal             Connect through the XDG RemoteDesktop portal
  -s, -socket <path>      EIS socket path (default $LIBEI_SOCKET)
  -l, -layout <layout>    XKB layout, e.g. us, de, fr
  -variant <variant>      XKB variant, e.g. dvorak, nodeadkeys
  -model <model>          XKB model, e.g. pc105
  -options <options>      XKB options, e.g. ctrl:nocaps
  -layout-index <n>       Active layout index (default auto-detect)
  -restore-token <token>  Portal restore token
  -wait <duration>        Wait for the EIS socket to appear, e.g. 2s
  -script <path>          Run actions from a JSON or YAML script
  -config <path>          Config file (default $XDG_CONFIG_HOME/eitype/config.toml)
  -v, -vv, -vvv           Increase verbosity`
