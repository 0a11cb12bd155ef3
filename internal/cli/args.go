package cli

import (
	"fmt"
	"time"

	"github.com/yiblet/cliphist/internal/config"
	"github.com/yiblet/cliphist/internal/content"
)

// Args represents the top-level command structure
type Args struct {
	ConfigFile *string `arg:"--config-file" help:"Configuration file (default: ~/.config/cliphist/config.yaml)"`
	DataDir    *string `arg:"--data-dir" help:"Directory for local backends (overrides config)"`
	Backend    *string `arg:"--backend" help:"Persistence backend: sqlite, file, bolt, s3 or memory (overrides config)"`
	Verbose    bool    `arg:"-v,--verbose" help:"Log at debug level"`

	Watch    *WatchCmd    `arg:"subcommand:watch" help:"Record clipboard changes until interrupted"`
	List     *ListCmd     `arg:"subcommand:list" help:"List clipboard history"`
	Favorite *FavoriteCmd `arg:"subcommand:favorite" help:"Toggle the favorite flag of an entry"`
	Delete   *DeleteCmd   `arg:"subcommand:delete" help:"Delete an entry"`
	Clear    *ClearCmd    `arg:"subcommand:clear" help:"Clear clipboard history"`
	Copy     *CopyCmd     `arg:"subcommand:copy" help:"Copy an entry back to the clipboard"`
	Config   *ConfigCmd   `arg:"subcommand:config" help:"Manage configuration"`
}

// WatchCmd represents the 'cliphist watch' command
type WatchCmd struct {
	For *time.Duration `arg:"--for" help:"Stop after this long (default: until interrupted)"`
}

// ListCmd represents the 'cliphist list' command
type ListCmd struct {
	Search     *string  `arg:"-s,--search" help:"Case-insensitive substring"`
	Types      []string `arg:"-t,--type,separate" help:"Only these kinds (Text, Image, Html, Rtf, Files, FileContent)"`
	Mime       []string `arg:"--mime,separate" help:"Only these mime types"`
	Since      *string  `arg:"--since" help:"Only entries at or after this time (RFC3339 or YYYY-MM-DD)"`
	Until      *string  `arg:"--until" help:"Only entries at or before this time (RFC3339 or YYYY-MM-DD)"`
	MinSize    *int64   `arg:"--min-size" help:"Minimum payload size in bytes"`
	MaxSize    *int64   `arg:"--max-size" help:"Maximum payload size in bytes"`
	Favorites  bool     `arg:"-f,--favorites" help:"Only favorites"`
	Compressed bool     `arg:"--compressed" help:"Only compressed file content"`
	Limit      int      `arg:"-n,--limit" help:"Show at most this many entries (0 = all)"`
	JSON       bool     `arg:"--json" help:"Print entries as JSON"`
}

// FavoriteCmd represents the 'cliphist favorite' command
type FavoriteCmd struct {
	ID string `arg:"positional,required" help:"Entry ID or unique prefix"`
}

// DeleteCmd represents the 'cliphist delete' command
type DeleteCmd struct {
	ID string `arg:"positional,required" help:"Entry ID or unique prefix"`
}

// ClearCmd represents the 'cliphist clear' command
type ClearCmd struct {
	Force bool `arg:"-f,--force" help:"Skip confirmation prompt"`
}

// CopyCmd represents the 'cliphist copy' command
type CopyCmd struct {
	ID string `arg:"positional,required" help:"Entry ID or unique prefix"`
}

// ConfigCmd represents the 'cliphist config' command
type ConfigCmd struct {
	Get  *ConfigGetCmd  `arg:"subcommand:get" help:"Get a configuration value"`
	Set  *ConfigSetCmd  `arg:"subcommand:set" help:"Set a configuration value"`
	List *ConfigListCmd `arg:"subcommand:list" help:"List all configuration values"`
}

// ConfigGetCmd represents the 'cliphist config get' command
type ConfigGetCmd struct {
	Key string `arg:"positional,required" help:"Configuration key"`
}

// ConfigSetCmd represents the 'cliphist config set' command
type ConfigSetCmd struct {
	Key   string `arg:"positional,required" help:"Configuration key"`
	Value string `arg:"positional,required" help:"Configuration value"`
}

// ConfigListCmd represents the 'cliphist config list' command
type ConfigListCmd struct{}

// Description returns the program description
func (Args) Description() string {
	return "cliphist - clipboard history with filtering and persistent storage"
}

// Version returns the program version
func (Args) Version() string {
	return "cliphist 0.1.0"
}

// Epilogue returns additional help text
func (Args) Epilogue() string {
	return `Examples:
  cliphist watch                        # Record clipboard changes until Ctrl-C
  cliphist watch --for 1m               # Record for one minute
  cliphist list                         # Show history, newest first
  cliphist list -s todo -t Text         # Text entries containing "todo"
  cliphist list --favorites --json      # Favorites as JSON
  cliphist copy 0192f3                  # Copy an entry back by ID prefix
  cliphist config set backend bolt      # Switch persistence backend`
}

// Validate performs validation on the parsed arguments
func (args *Args) Validate() error {
	if args.Backend != nil {
		if err := validateBackend(*args.Backend); err != nil {
			return err
		}
	}
	switch {
	case args.Watch != nil:
		return args.Watch.Validate()
	case args.List != nil:
		return args.List.Validate()
	case args.Favorite != nil:
		return validateID(args.Favorite.ID)
	case args.Delete != nil:
		return validateID(args.Delete.ID)
	case args.Copy != nil:
		return validateID(args.Copy.ID)
	case args.Config != nil:
		return args.Config.Validate()
	}
	return nil
}

// Validate validates watch command arguments
func (w *WatchCmd) Validate() error {
	if w.For != nil && *w.For <= 0 {
		return fmt.Errorf("--for must be positive")
	}
	return nil
}

// Validate validates list command arguments
func (l *ListCmd) Validate() error {
	for _, name := range l.Types {
		if _, ok := content.ParseKind(name); !ok {
			return fmt.Errorf("unknown type %q", name)
		}
	}
	since, err := parseTime(l.Since, false)
	if err != nil {
		return fmt.Errorf("invalid --since: %w", err)
	}
	until, err := parseTime(l.Until, true)
	if err != nil {
		return fmt.Errorf("invalid --until: %w", err)
	}
	if since != nil && until != nil && since.After(*until) {
		return fmt.Errorf("--since must not be after --until")
	}
	if l.MinSize != nil && *l.MinSize < 0 {
		return fmt.Errorf("--min-size must be non-negative")
	}
	if l.MinSize != nil && l.MaxSize != nil && *l.MinSize > *l.MaxSize {
		return fmt.Errorf("--min-size must not exceed --max-size")
	}
	if l.Limit < 0 {
		return fmt.Errorf("--limit must be non-negative")
	}
	return nil
}

// Validate validates config command arguments
func (c *ConfigCmd) Validate() error {
	count := 0
	if c.Get != nil {
		count++
	}
	if c.Set != nil {
		count++
	}
	if c.List != nil {
		count++
	}

	if count == 0 {
		return fmt.Errorf("config command requires a subcommand: get, set, or list")
	}
	if count > 1 {
		return fmt.Errorf("config command accepts only one subcommand")
	}

	switch {
	case c.Get != nil:
		return validateConfigKey(c.Get.Key)
	case c.Set != nil:
		return validateConfigKey(c.Set.Key)
	}
	return nil
}

func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("entry ID must not be empty")
	}
	return nil
}

func validateConfigKey(key string) error {
	for _, k := range config.Keys() {
		if k == key {
			return nil
		}
	}
	return fmt.Errorf("unknown configuration key: %s", key)
}

func validateBackend(name string) error {
	switch name {
	case config.BackendSQLite, config.BackendFile, config.BackendBolt, config.BackendS3, config.BackendMemory:
		return nil
	}
	return fmt.Errorf("unknown backend %q", name)
}

// parseTime accepts RFC3339 timestamps and plain dates. With endOfDay, a
// plain date means the last instant of that day.
func parseTime(s *string, endOfDay bool) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05"} {
		if t, err := time.ParseInLocation(layout, *s, time.Local); err == nil {
			return &t, nil
		}
	}
	t, err := time.ParseInLocation("2006-01-02", *s, time.Local)
	if err != nil {
		return nil, fmt.Errorf("unrecognized time %q", *s)
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return &t, nil
}
