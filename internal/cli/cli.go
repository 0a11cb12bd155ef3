package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/yiblet/cliphist/internal/clipboard"
	"github.com/yiblet/cliphist/internal/clipboard/sysboard"
	"github.com/yiblet/cliphist/internal/config"
	"github.com/yiblet/cliphist/internal/content"
	"github.com/yiblet/cliphist/internal/engine"
	"github.com/yiblet/cliphist/internal/filter"
	"github.com/yiblet/cliphist/internal/persist"
)

// stopTimeout bounds how long watch waits for the native service to stop.
const stopTimeout = 5 * time.Second

// Option configures a CLI.
type Option func(*CLI)

// WithService replaces the system clipboard.
func WithService(svc clipboard.Service) Option {
	return func(c *CLI) {
		c.board = svc
	}
}

// WithStore replaces the configured persistence backend.
func WithStore(store persist.Store) Option {
	return func(c *CLI) {
		c.store = store
	}
}

// WithOutput redirects command output.
func WithOutput(w io.Writer) Option {
	return func(c *CLI) {
		c.out = w
	}
}

// WithInput replaces stdin for confirmation prompts.
func WithInput(r io.Reader) Option {
	return func(c *CLI) {
		c.in = r
	}
}

// CLI handles the command-line interface
type CLI struct {
	configManager *config.ConfigManager
	config        *config.Config
	log           *slog.Logger

	board  clipboard.Service
	store  persist.Store
	engine *engine.Engine

	outMu sync.Mutex
	out   io.Writer
	in    io.Reader
}

// New creates a new CLI instance
func New() (*CLI, error) {
	return NewWithArgs(nil)
}

// NewWithArgs creates a new CLI instance honoring the global flags in args.
// Flags take precedence over the configuration file.
func NewWithArgs(args *Args, opts ...Option) (*CLI, error) {
	var cm *config.ConfigManager
	if args != nil && args.ConfigFile != nil {
		cm = config.NewConfigManagerWithPath(*args.ConfigFile)
	} else {
		var err error
		cm, err = config.NewConfigManager()
		if err != nil {
			return nil, err
		}
	}

	cfg, err := cm.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	level := cfg.SlogLevel()
	if args != nil {
		if args.DataDir != nil {
			cfg.DataDir = *args.DataDir
		}
		if args.Backend != nil {
			cfg.Backend = *args.Backend
		}
		if args.Verbose {
			level = slog.LevelDebug
		}
	}

	c := &CLI{
		configManager: cm,
		config:        cfg,
		log:           slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})),
		out:           os.Stdout,
		in:            os.Stdin,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Execute runs the CLI command based on parsed arguments
func (c *CLI) Execute(ctx context.Context, args *Args) error {
	if err := args.Validate(); err != nil {
		return err
	}

	if args.Config != nil {
		return c.executeConfig(args.Config)
	}

	eng, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer c.Close(ctx)

	switch {
	case args.Watch != nil:
		return c.executeWatch(ctx, eng, args.Watch)
	case args.List != nil:
		return c.executeList(eng, args.List)
	case args.Favorite != nil:
		return c.executeFavorite(eng, args.Favorite)
	case args.Delete != nil:
		return c.executeDelete(eng, args.Delete)
	case args.Clear != nil:
		return c.executeClear(ctx, eng, args.Clear)
	case args.Copy != nil:
		return c.executeCopy(ctx, eng, args.Copy)
	default:
		return c.executeList(eng, &ListCmd{})
	}
}

// Close releases the engine and its backend.
func (c *CLI) Close(ctx context.Context) error {
	if c.engine == nil {
		return nil
	}
	eng := c.engine
	c.engine = nil
	return eng.Close(ctx)
}

// open builds the engine on first use.
func (c *CLI) open(ctx context.Context) (*engine.Engine, error) {
	if c.engine != nil {
		return c.engine, nil
	}

	store := c.store
	if store == nil {
		var err error
		store, err = openStore(ctx, c.config)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s backend: %w", c.config.Backend, err)
		}
	}
	board := c.board
	if board == nil {
		board = sysboard.New(sysboard.WithLogger(c.log))
	}

	c.engine = engine.New(ctx, board, store,
		engine.WithCapacity(c.config.HistoryLimit),
		engine.WithDebounce(c.config.Debounce()),
		engine.WithLogger(c.log),
		engine.WithOnRecord(c.printCaptured),
	)
	c.log.Debug("engine ready", "backend", c.config.Backend, "entries", len(c.engine.History()))
	return c.engine, nil
}

// executeWatch handles the 'cliphist watch' command
func (c *CLI) executeWatch(ctx context.Context, eng *engine.Engine, cmd *WatchCmd) error {
	if cmd.For != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *cmd.For)
		defer cancel()
	}

	if err := eng.StartMonitoring(ctx); err != nil {
		return fmt.Errorf("failed to start monitoring: %w", err)
	}
	c.printf("Watching clipboard (%d entries in history). Press Ctrl-C to stop.\n", len(eng.History()))

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	eng.StopMonitoring(stopCtx)

	if d := eng.CurrentError(); d != nil {
		c.printf("%s\n", errorStyle.Render("Warning: "+d.Error()))
	}
	c.printf("Stopped. %d entries in history.\n", len(eng.History()))
	return nil
}

// executeList handles the 'cliphist list' command
func (c *CLI) executeList(eng *engine.Engine, cmd *ListCmd) error {
	records := filter.Apply(eng.History(), cmd.spec())
	if cmd.Limit > 0 && len(records) > cmd.Limit {
		records = records[:cmd.Limit]
	}

	if cmd.JSON {
		entries := make([]listEntry, len(records))
		for i, r := range records {
			entries[i] = newListEntry(r)
		}
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(entries); err != nil {
			return fmt.Errorf("failed to encode entries: %w", err)
		}
		return nil
	}

	if len(records) == 0 {
		if len(eng.History()) == 0 {
			c.printf("History is empty!\n\nTo start recording:\n  cliphist watch\n")
		} else {
			c.printf("No entries match.\n")
		}
		return nil
	}
	for _, r := range records {
		c.printf("%s\n", renderRecord(r))
	}
	return nil
}

// spec builds the filter selected by the list flags.
func (l *ListCmd) spec() filter.Spec {
	p := filter.Patch{Search: l.Search}
	if len(l.Types) > 0 {
		for _, name := range l.Types {
			if k, ok := content.ParseKind(name); ok {
				p.Types = append(p.Types, k)
			}
		}
	}
	if len(l.Mime) > 0 {
		p.MimeTypes = l.Mime
	}
	since, _ := parseTime(l.Since, false)
	until, _ := parseTime(l.Until, true)
	if since != nil || until != nil {
		p.DateRange = &filter.DateRange{Start: since, End: until}
	}
	if l.MinSize != nil || l.MaxSize != nil {
		p.SizeRange = &filter.SizeRange{Min: l.MinSize, Max: l.MaxSize}
	}
	p.OnlyFavorites = &l.Favorites
	p.OnlyCompressed = &l.Compressed
	return filter.Merge(filter.Default(), p)
}

// executeFavorite handles the 'cliphist favorite' command
func (c *CLI) executeFavorite(eng *engine.Engine, cmd *FavoriteCmd) error {
	r, err := resolveID(eng, cmd.ID)
	if err != nil {
		return err
	}
	eng.ToggleFavorite(r.ID)
	if err := savedOrError(eng); err != nil {
		return err
	}

	if updated, ok := eng.Get(r.ID); ok && updated.Favorite {
		c.printf("Marked as favorite: %s\n", content.Summary(updated))
	} else {
		c.printf("Removed from favorites: %s\n", content.Summary(r))
	}
	return nil
}

// executeDelete handles the 'cliphist delete' command
func (c *CLI) executeDelete(eng *engine.Engine, cmd *DeleteCmd) error {
	r, err := resolveID(eng, cmd.ID)
	if err != nil {
		return err
	}
	eng.DeleteItem(r.ID)
	if err := savedOrError(eng); err != nil {
		return err
	}
	c.printf("Deleted: %s\n", content.Summary(r))
	return nil
}

// executeClear handles the 'cliphist clear' command
func (c *CLI) executeClear(ctx context.Context, eng *engine.Engine, cmd *ClearCmd) error {
	count := len(eng.History())
	if count == 0 {
		c.printf("History is already empty.\n")
		return nil
	}

	if !cmd.Force {
		c.printf("This will delete %d item(s) from history. Continue? [y/N]: ", count)
		var response string
		fmt.Fscanln(c.in, &response)
		response = strings.ToLower(strings.TrimSpace(response))
		if response != "y" && response != "yes" {
			c.printf("Cancelled.\n")
			return nil
		}
	}

	if err := eng.ClearHistory(ctx); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	if err := savedOrError(eng); err != nil {
		return err
	}
	c.printf("Cleared %d item(s) from history.\n", count)
	return nil
}

// executeCopy handles the 'cliphist copy' command
func (c *CLI) executeCopy(ctx context.Context, eng *engine.Engine, cmd *CopyCmd) error {
	r, err := resolveID(eng, cmd.ID)
	if err != nil {
		return err
	}
	if err := eng.CopyToClipboard(ctx, r); err != nil {
		return fmt.Errorf("failed to write to clipboard: %w", err)
	}
	c.printf("Copied to clipboard: %s\n", content.Summary(r))
	return nil
}

// executeConfig handles the 'cliphist config' command
func (c *CLI) executeConfig(cmd *ConfigCmd) error {
	switch {
	case cmd.Get != nil:
		value, err := c.configManager.Get(cmd.Get.Key)
		if err != nil {
			return fmt.Errorf("failed to get config value: %w", err)
		}
		c.printf("%s\n", value)
		return nil
	case cmd.Set != nil:
		if err := c.configManager.Update(cmd.Set.Key, cmd.Set.Value); err != nil {
			return fmt.Errorf("failed to set config value: %w", err)
		}
		c.printf("Set %s = %s\n", cmd.Set.Key, cmd.Set.Value)
		return nil
	case cmd.List != nil:
		values, err := c.configManager.List()
		if err != nil {
			return fmt.Errorf("failed to list config values: %w", err)
		}
		c.printf("Current configuration (%s):\n", c.configManager.GetConfigPath())
		for _, key := range config.Keys() {
			c.printf("  %s = %s\n", keyStyle.Render(key), values[key])
		}
		return nil
	default:
		return fmt.Errorf("no config subcommand specified")
	}
}

// resolveID finds the record with the given ID or unique ID prefix.
func resolveID(eng *engine.Engine, id string) (content.Record, error) {
	if r, ok := eng.Get(id); ok {
		return r, nil
	}

	var matches []content.Record
	for _, r := range eng.History() {
		if strings.HasPrefix(r.ID, id) {
			matches = append(matches, r)
		}
	}
	switch len(matches) {
	case 0:
		return content.Record{}, fmt.Errorf("no entry with ID %s", id)
	case 1:
		return matches[0], nil
	default:
		return content.Record{}, fmt.Errorf("ID prefix %s matches %d entries", id, len(matches))
	}
}

// savedOrError returns the error left behind by a failed save.
func savedOrError(eng *engine.Engine) error {
	if d := eng.CurrentError(); d != nil {
		return d
	}
	return nil
}

// printCaptured reports a newly captured record while watching.
func (c *CLI) printCaptured(r content.Record) {
	c.printf("%s %s\n", capturedStyle.Render("+"), renderRecord(r))
}

func (c *CLI) printf(format string, a ...any) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	fmt.Fprintf(c.out, format, a...)
}
