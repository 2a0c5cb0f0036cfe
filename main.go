package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/metcalfc/lectern/internal/config"
	"github.com/metcalfc/lectern/internal/reader"
	"github.com/metcalfc/lectern/internal/speech"
	"github.com/metcalfc/lectern/internal/state"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Version info (injected via ldflags)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	wpm := flag.Int("w", 0, "Reading speed in words per minute (default from LECTERN_READING_WPM)")
	wordsPerPage := flag.Int("p", 0, "Words per page (default from LECTERN_WORDS_PER_PAGE)")
	restart := flag.Bool("restart", false, "Ignore the saved position and start at the first page")
	speak := flag.Bool("speak", false, "Start reading aloud immediately")
	showVersion := flag.Bool("v", false, "Show version information")
	showVersionLong := flag.Bool("version", false, "Show version information")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Lectern - Terminal E-book Reader\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  lectern [options] file\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nFormats:\n")
		for _, f := range reader.SupportedFormats() {
			fmt.Fprintf(os.Stderr, "  %s\n", f)
		}
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  lectern book.epub              Open where you left off\n")
		fmt.Fprintf(os.Stderr, "  lectern -restart paper.pdf     Open at the first page\n")
		fmt.Fprintf(os.Stderr, "  lectern -speak notes.md        Read aloud from the saved position\n")
		fmt.Fprintf(os.Stderr, "\nControls:\n")
		fmt.Fprintf(os.Stderr, "  ←/→      Previous/next page\n")
		fmt.Fprintf(os.Stderr, "  g/G      First/last page\n")
		fmt.Fprintf(os.Stderr, "  /        Search\n")
		fmt.Fprintf(os.Stderr, "  t        Table of contents\n")
		fmt.Fprintf(os.Stderr, "  b/B      Add bookmark/list bookmarks\n")
	fmt.Fprintf(os.Stderr, "  m/M      Highlight sentence or page/list highlights\n")
		fmt.Fprintf(os.Stderr, "  s        Read aloud (start/stop), [/] previous/next sentence\n")
		fmt.Fprintf(os.Stderr, "  r        Speed read the current page\n")
		fmt.Fprintf(os.Stderr, "  Q        Quit\n")
		fmt.Fprintf(os.Stderr, "\nSettings are read from LECTERN_* environment variables and .env.\n")
	}
	flag.Parse()

	if *showVersion || *showVersionLong {
		fmt.Printf("lectern %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Error: No book provided.")
		fmt.Fprintln(os.Stderr, "Try: lectern -h")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Invalid configuration:\n%v\n", err)
		os.Exit(1)
	}
	if *wpm > 0 {
		cfg.ReadingWPM = *wpm
	}
	if *wordsPerPage > 0 {
		cfg.WordsPerPage = *wordsPerPage
	}

	if err := run(flag.Arg(0), cfg, *restart, *speak); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(path string, cfg config.Config, restart, speakNow bool) error {
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rd, err := reader.Open(path, nil, reader.Options{
		WordsPerPage:   cfg.WordsPerPage,
		ExtractTimeout: cfg.ExtractTimeout,
		Logger:         log,
	})
	if err != nil {
		if errors.Is(err, reader.ErrFormatUnsupported) {
			return fmt.Errorf("%w\nsupported: %s", err, strings.Join(reader.SupportedFormats(), ", "))
		}
		return err
	}
	defer rd.Close()

	doc, err := rd.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to open '%s': %w", path, err)
	}

	store, hash := openState(cfg, path, log)
	if store != nil {
		defer store.Close()
		if restart {
			if err := store.SetPosition(hash, reader.AtPage(1)); err != nil {
				log.Warn("failed to reset position", zap.Error(err))
			}
		} else {
			restorePosition(ctx, rd, store, hash, log)
		}
	}

	driver, err := newDriver(cfg)
	if err != nil {
		return err
	}
	player := speech.NewPlayer(driver, speech.Options{
		Voice:  speech.Voice{Rate: cfg.SpeechRate, Pitch: cfg.SpeechPitch, Volume: cfg.SpeechVolume},
		Logger: log,
	})

	m := newModel(ctx, rd, doc, player, cfg.ReadingWPM).withLogger(log)
	if store != nil {
		m = m.withStore(store, hash)
	}

	var cmds []tea.Cmd
	if speakNow {
		cmds = append(cmds, m.speak())
	}
	p := tea.NewProgram(startModel{model: m, cmds: cmds}, tea.WithAltScreen(), tea.WithContext(ctx))

	_, err = p.Run()
	player.Stop()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

// startModel runs extra commands alongside the model's own Init.
type startModel struct {
	model
	cmds []tea.Cmd
}

func (s startModel) Init() tea.Cmd {
	return tea.Batch(append(s.cmds, s.model.Init())...)
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.LogFile == "" {
		return zap.NewNop(), nil
	}
	lvl, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.OutputPaths = []string{cfg.LogFile}
	zc.ErrorOutputPaths = []string{cfg.LogFile}
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zc.Build()
}

func newDriver(cfg config.Config) (speech.Driver, error) {
	if cfg.SpeechCommand == "" {
		return speech.NewTimedDriver(), nil
	}
	d, err := speech.NewCommandDriver(cfg.SpeechCommand)
	if err != nil {
		return nil, fmt.Errorf("LECTERN_SPEECH_COMMAND: %w", err)
	}
	return d, nil
}

// openState opens the position store. Reading works without it, so
// failures are logged and reported as a nil store.
func openState(cfg config.Config, path string, log *zap.Logger) (*state.Store, string) {
	hash, err := state.ComputeHash(path)
	if err != nil {
		log.Warn("failed to identify book", zap.String("path", path), zap.Error(err))
		return nil, ""
	}
	store, err := state.Open(cfg.StateDir, log)
	if err != nil {
		log.Warn("failed to open state store", zap.Error(err))
		return nil, ""
	}
	return store, hash
}

func restorePosition(ctx context.Context, rd reader.Reader, store *state.Store, hash string, log *zap.Logger) {
	saved, ok, err := store.GetPosition(hash)
	if err != nil {
		log.Warn("failed to read saved position", zap.Error(err))
		return
	}
	if !ok {
		return
	}
	if err := rd.NavigateToPosition(ctx, saved.Position); err != nil {
		log.Info("saved position no longer valid", zap.Stringer("position", saved.Position), zap.Error(err))
		return
	}
	log.Debug("restored position", zap.Stringer("position", saved.Position), zap.Time("saved", saved.UpdatedAt))
}
