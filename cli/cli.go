package cli

import (
	"github.com/spf13/pflag"

	"github.com/sokinpui/patchdir/internal/config"
	"github.com/sokinpui/patchdir/model"
)

// Mode selects what a run does.
type Mode string

const (
	ModeMake   Mode = "make"
	ModeApply  Mode = "apply"
	ModeStatus Mode = "status"
)

// Config holds all the command-line values of one run.
type Config struct {
	Mode       Mode
	Root       string
	ConfigFile string
	Applier    string
	Fuzz       int
	Context    int
	Exclude    []string
	Verbose    bool
	NoColor    bool

	// changed records the flags given explicitly, so only those override
	// the configuration file.
	changed map[string]bool
}

// BindFlags defines the flags shared by every mode on fs.
func BindFlags(fs *pflag.FlagSet, cfg *Config) {
	def := config.Default()
	fs.StringVarP(&cfg.ConfigFile, "config", "c", "", "Configuration file (default <root>/"+config.FileName+").")
	fs.StringVar(&cfg.Applier, "applier", def.Applier, "Hunk applier: 'native' or 'gnu' (runs patch(1)).")
	fs.IntVar(&cfg.Fuzz, "fuzz", def.Fuzz, "Maximum number of context lines ignored when placing a hunk.")
	fs.IntVarP(&cfg.Context, "context", "U", def.Context, "Number of context lines in generated patches.")
	fs.StringArrayVarP(&cfg.Exclude, "exclude", "x", nil, "Skip paths matching this glob (repeatable, supports **).")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Print debug diagnostics.")
	fs.BoolVar(&cfg.NoColor, "no-color", false, "Disable colored output.")
}

// MarkChanged records which flags of fs were set on the command line.
func (c *Config) MarkChanged(fs *pflag.FlagSet) {
	fs.Visit(func(f *pflag.Flag) {
		c.SetChanged(f.Name)
	})
}

// SetChanged marks names as given explicitly.
func (c *Config) SetChanged(names ...string) {
	if c.changed == nil {
		c.changed = make(map[string]bool)
	}
	for _, name := range names {
		c.changed[name] = true
	}
}

// Changed reports whether the named flag was given explicitly.
func (c *Config) Changed(name string) bool {
	return c.changed[name]
}

// Override copies the explicitly given flags over fc.
func (c *Config) Override(fc *config.Config) {
	if c.Changed("applier") {
		fc.Applier = c.Applier
	}
	if c.Changed("fuzz") {
		fc.Fuzz = c.Fuzz
	}
	if c.Changed("context") {
		fc.Context = c.Context
	}
	if c.Changed("exclude") {
		fc.Exclude = append(fc.Exclude, c.Exclude...)
	}
}

// LegacyMode resolves the single-letter mode flags of the root command.
func LegacyMode(makeFlag, applyFlag bool) (Mode, error) {
	switch {
	case makeFlag && applyFlag:
		return "", model.Usagef("-m and -a are mutually exclusive")
	case makeFlag:
		return ModeMake, nil
	case applyFlag:
		return ModeApply, nil
	default:
		return "", model.Usagef("a mode is required: use 'make', 'apply' or 'status' (or -m / -a)")
	}
}
