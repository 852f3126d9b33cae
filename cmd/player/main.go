// Package main provides the player entry point.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/aurisono/tonearm/internal/app/engine"
	"github.com/aurisono/tonearm/internal/app/prefs"
	"github.com/aurisono/tonearm/internal/app/queue"
	"github.com/aurisono/tonearm/internal/app/report"
	"github.com/aurisono/tonearm/internal/app/sink"
	"github.com/aurisono/tonearm/internal/domain/item"
	"github.com/aurisono/tonearm/internal/infra/backend"
	"github.com/aurisono/tonearm/internal/infra/beepsink"
	"github.com/aurisono/tonearm/internal/infra/catalog"
	"github.com/aurisono/tonearm/internal/infra/config"
	"github.com/aurisono/tonearm/internal/infra/logger"
)

var (
	app        = kingpin.New("tonearm", "tonearm streaming player")
	configPath = app.Flag("config", "Path to config file").Default("config/player.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stderr)").String()
)

func init() {
	app.Command("start", "Start the interactive player (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	loggerConfig := logger.Config{Level: "info", Output: "stderr"}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Player error: %v", err)
		os.Exit(1)
	}
}

// run executes the main player logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	client, err := backend.New(backend.Config{
		BaseURL: cfg.Backend.BaseURL,
		Token:   cfg.Backend.Token,
	})
	if err != nil {
		return fmt.Errorf("failed to create backend client: %w", err)
	}
	// Activity reporting only runs with an authenticated caller context.
	var activity report.ActivitySink
	if client.Authenticated() {
		activity = client
	} else {
		zlog.Warn().Msg("No backend token configured, activity reporting disabled")
	}

	out, err := newSink(cfg)
	if err != nil {
		return fmt.Errorf("failed to create audio sink: %w", err)
	}

	qm := queue.NewManager(client)
	reporter := report.New(activity, report.Config{
		StreamTickThreshold: cfg.StreamTickThreshold(),
		HistoryCooldown:     cfg.HistoryCooldown(),
	})
	syncer := prefs.NewSyncer(client, cfg.PrefsDebounce())

	eng := engine.New(out, qm, reporter, syncer, engine.Config{
		MetadataTimeout:     cfg.MetadataTimeout(),
		RestartThresholdSec: float64(cfg.Playback.RestartThresholdSec),
	})
	defer eng.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eng.Start(ctx)

	adapter := &catalog.Adapter{MissingStatusPlayable: !cfg.Playback.MissingStatusHidden}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	lineCh := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lineCh <- scanner.Text()
		}
		close(lineCh)
	}()

	repl := &console{engine: eng, queue: qm, adapter: adapter}
	fmt.Println(`tonearm ready. Type "help" for commands.`)

	for {
		select {
		case <-sigCh:
			zlog.Info().Msg("Received shutdown signal...")
			return nil
		case line, ok := <-lineCh:
			if !ok {
				return nil
			}
			if quit := repl.dispatch(ctx, line); quit {
				return nil
			}
		}
	}
}

// newSink builds the configured audio output.
func newSink(cfg *config.Config) (sink.Sink, error) {
	switch cfg.Sink.Type {
	case "null":
		return sink.NewNull(), nil
	default:
		sinkCfg, err := beepsink.ParseConfig(cfg.Sink.Settings)
		if err != nil {
			return nil, err
		}
		return beepsink.New(sinkCfg)
	}
}

// console dispatches interactive commands against the engine.
type console struct {
	engine  *engine.Engine
	queue   *queue.Manager
	adapter *catalog.Adapter

	library []item.Item // Items from the last loaded catalog file
}

// dispatch handles one input line. It returns true when the player should
// exit.
func (c *console) dispatch(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "quit", "exit":
		return true
	case "help":
		printHelp()
	case "load":
		c.load(args)
	case "play":
		c.engine.Play()
	case "pause":
		c.engine.Pause()
	case "p":
		c.engine.TogglePlay()
	case "next", "n":
		c.engine.SkipNext()
	case "prev":
		c.engine.SkipPrevious()
	case "stop":
		c.engine.Stop()
	case "seek":
		if sec, ok := floatArg(args); ok {
			c.engine.Seek(sec)
		}
	case "vol":
		if v, ok := floatArg(args); ok {
			c.engine.SetVolume(v)
		}
	case "mode":
		c.setMode(args)
	case "autoplay":
		c.setAutoplay(args)
	case "addnext":
		c.enqueue(args, true)
	case "addend":
		c.enqueue(args, false)
	case "sync":
		c.queue.SyncServerQueue(ctx)
		fmt.Println("server queue synced")
	case "status":
		c.printStatus()
	case "queue":
		c.printQueue()
	default:
		fmt.Printf("unknown command %q, try \"help\"\n", cmd)
	}
	return false
}

// load reads a catalog JSON file and replaces the base queue with it.
// Usage: load <songs|episodes> <file> [startIndex]
func (c *console) load(args []string) {
	if len(args) < 2 {
		fmt.Println("usage: load <songs|episodes> <file> [startIndex]")
		return
	}
	data, err := os.ReadFile(args[1])
	if err != nil {
		fmt.Printf("cannot read %s: %v\n", args[1], err)
		return
	}

	var items []item.Item
	switch args[0] {
	case "songs":
		items, err = c.adapter.SongsFromJSON(data)
	case "episodes":
		items, err = c.adapter.EpisodesFromJSON(data)
	default:
		fmt.Println("usage: load <songs|episodes> <file> [startIndex]")
		return
	}
	if err != nil {
		fmt.Printf("cannot parse %s: %v\n", args[1], err)
		return
	}

	start := 0
	if len(args) > 2 {
		start, _ = strconv.Atoi(args[2])
	}

	c.library = items
	c.engine.SetContextualQueue(items, start)
	fmt.Printf("loaded %d items\n", len(items))
}

// enqueue pushes a library item into the up-next queue by its index.
func (c *console) enqueue(args []string, front bool) {
	if len(args) == 0 {
		fmt.Println("usage: addnext|addend <libraryIndex>")
		return
	}
	idx, err := strconv.Atoi(args[0])
	if err != nil || idx < 0 || idx >= len(c.library) {
		fmt.Printf("no library item at index %s\n", args[0])
		return
	}
	it := c.library[idx]
	if front {
		c.engine.EnqueueNext(&it)
	} else {
		c.engine.EnqueueEnd(&it)
	}
	fmt.Printf("queued: %s\n", it.Title)
}

func (c *console) setMode(args []string) {
	if len(args) == 0 {
		fmt.Println("usage: mode <normal|shuffle|repeat>")
		return
	}
	m := queue.Mode(args[0])
	if !m.Valid() {
		fmt.Printf("unknown mode %q\n", args[0])
		return
	}
	c.engine.SetMode(m)
}

func (c *console) setAutoplay(args []string) {
	if len(args) == 0 {
		fmt.Println("usage: autoplay <on|off>")
		return
	}
	c.engine.SetAutoplay(args[0] == "on")
}

func (c *console) printStatus() {
	snap := c.engine.Snapshot()
	if snap.Current == nil {
		fmt.Printf("[%s] nothing loaded\n", snap.State)
		return
	}
	if !snap.State.IsActive() {
		// Still loading; the clock means nothing yet.
		fmt.Printf("[%s] %s - %s\n", snap.State, snap.Current.Creator, snap.Current.Title)
		return
	}
	fmt.Printf("[%s] %s - %s (%s / %s) vol=%.0f%% mode=%s autoplay=%v\n",
		snap.State, snap.Current.Creator, snap.Current.Title,
		fmtClock(snap.PositionSec), fmtClock(snap.DurationSec),
		snap.Volume*100, snap.Mode, snap.Autoplay)
}

func (c *console) printQueue() {
	upcoming := c.queue.Upcoming()
	if len(upcoming) == 0 {
		fmt.Println("queue is empty")
		return
	}
	for i, entry := range upcoming {
		fmt.Printf("  %s: %s - %s (%s)\n", humanize.Ordinal(i+1),
			entry.Item.Creator, entry.Item.Title, fmtClock(entry.Item.DurationSec))
	}
}

// fmtClock renders seconds as m:ss. Unknown durations render as a dash.
func fmtClock(sec float64) string {
	if sec <= 0 {
		return "-:--"
	}
	total := int(sec)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func floatArg(args []string) (float64, bool) {
	if len(args) == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		fmt.Printf("not a number: %s\n", args[0])
		return 0, false
	}
	return v, true
}

func printHelp() {
	fmt.Print(`commands:
  load <songs|episodes> <file> [start]  replace the listening context
  play | pause | p | stop               transport control (p toggles)
  next | prev                           skip forward / backward
  seek <sec>                            seek within the current item
  vol <0.0-1.0>                         set volume
  mode <normal|shuffle|repeat>          set playback mode
  autoplay <on|off>                     continue after each item ends
  addnext <i> | addend <i>              queue a library item up next
  sync                                  refresh the server queue
  status | queue                        show playback state / upcoming
  quit                                  exit
`)
}
