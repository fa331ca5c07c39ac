// Command petridish drives the pattern-learning engine over a file. It is
// a thin driver: all learning happens in package engine, this file only
// wires flags, a config file, a file source, and periodic progress
// logging around it.
package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/tompula86/petridish/cost"
	"github.com/tompula86/petridish/engine"
	"github.com/tompula86/petridish/persist"
	"github.com/tompula86/petridish/scheduler"
)

// cliConfig mirrors the engine's CLI/env options, plus the input and
// config-file paths needed to drive the command itself.
type cliConfig struct {
	Input              string
	ConfigPath         string
	Mode               string
	PatternCapacity    int
	FeedRate           int
	PairThreshold      int
	MaxCycles          int
	BrainPath          string
	BoredomThreshold   float64
	CuriosityThreshold float64
	WindowFraction     float64
	MemoryLimit        int
}

func defaultCLIConfig() cliConfig {
	hc := engine.DefaultHostConfig()
	return cliConfig{
		Mode:               "hierarchical",
		PatternCapacity:    1 << 16,
		FeedRate:           hc.FeedRate,
		PairThreshold:      2,
		MaxCycles:          0, // 0 means unbounded, host stops on Done()
		BrainPath:          "",
		BoredomThreshold:   hc.BoredomThreshold,
		CuriosityThreshold: hc.CuriosityThreshold,
		WindowFraction:     1.0,
		MemoryLimit:        0,
	}
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cli, explicitlySet, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, "petridish:", err)
		return 2
	}

	fileCfg, err := loadFileConfig(cli.ConfigPath)
	if err != nil {
		fmt.Fprintln(stderr, "petridish:", err)
		return 2
	}
	fileCfg.merge(&cli, explicitlySet)

	if cli.Input == "" {
		fmt.Fprintln(stderr, "petridish: an input file is required (--input)")
		return 2
	}

	logger := log.New(stdout, "", log.LstdFlags)
	var driveErr error
	switch cli.Mode {
	case "hierarchical":
		driveErr = drive(cli, logger)
	case "codec":
		driveErr = driveCodec(cli, logger)
	default:
		fmt.Fprintf(stderr, "petridish: unknown --mode %q (want hierarchical or codec)\n", cli.Mode)
		return 2
	}
	if driveErr != nil {
		fmt.Fprintln(stderr, "petridish:", driveErr)
		return 1
	}
	return 0
}

func parseFlags(args []string, stderr io.Writer) (cliConfig, map[string]bool, error) {
	cli := defaultCLIConfig()

	fs := flag.NewFlagSet("petridish", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&cli.Input, "input", "", "path to the input file to learn from")
	fs.StringVar(&cli.ConfigPath, "config", "", "optional petridish.hujson config file")
	fs.StringVar(&cli.Mode, "mode", cli.Mode, "engine mode to run: hierarchical or codec")
	fs.IntVar(&cli.PatternCapacity, "pattern-capacity", cli.PatternCapacity, "max composite patterns the bank will hold")
	fs.IntVar(&cli.FeedRate, "feed-rate", cli.FeedRate, "initial bytes requested per host-loop step")
	fs.IntVar(&cli.PairThreshold, "pair-threshold", cli.PairThreshold, "minimum adjacency count before a pair is promoted")
	fs.IntVar(&cli.MaxCycles, "max-cycles", cli.MaxCycles, "stop after this many cycles (0 = run to stagnation)")
	fs.StringVar(&cli.BrainPath, "brain-path", cli.BrainPath, "snapshot file to load from and save to (empty disables persistence)")
	fs.Float64Var(&cli.BoredomThreshold, "boredom-threshold", cli.BoredomThreshold, "familiarity above which the host speeds up")
	fs.Float64Var(&cli.CuriosityThreshold, "curiosity-threshold", cli.CuriosityThreshold, "familiarity below which the host slows down")
	fs.Float64Var(&cli.WindowFraction, "window-fraction", cli.WindowFraction, "codec focus window size as a fraction of feed rate")
	fs.IntVar(&cli.MemoryLimit, "memory-limit", cli.MemoryLimit, "codec raw buffer cap in bytes (0 = unbounded)")

	if err := fs.Parse(args); err != nil {
		return cliConfig{}, nil, err
	}

	explicitlySet := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicitlySet[f.Name] = true })

	return cli, explicitlySet, nil
}

// drive runs the adaptive host loop over cli.Input to stagnation (or
// MaxCycles, if set), logging progress and persisting the learned bank to
// BrainPath on exit.
func drive(cli cliConfig, logger *log.Logger) error {
	econfig := engine.DefaultConfig()
	econfig.BankCapacity = cli.PatternCapacity
	econfig.PairThreshold = cli.PairThreshold

	var initial []byte
	hengine, err := engine.NewHierarchicalEngine(initial, econfig)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	var bookmark persist.Bookmark
	if cli.BrainPath != "" {
		if snap, err := persist.Load(cli.BrainPath); err == nil {
			if err := hengine.Bank().Restore(snap.Patterns, snap.NextID); err != nil {
				return fmt.Errorf("restoring brain %s: %w", cli.BrainPath, err)
			}
			bookmark = snap.Bookmark
			logger.Printf("restored brain from %s (%d composites, resuming at file offset %d)",
				cli.BrainPath, len(snap.Patterns), bookmark.FilePos)
		} else if !errors.Is(err, os.ErrNotExist) {
			logger.Printf("could not load brain from %s, continuing with a fresh one: %v", cli.BrainPath, err)
		}
	}

	hostCfg := engine.DefaultHostConfig()
	hostCfg.FeedRate = cli.FeedRate
	hostCfg.BoredomThreshold = cli.BoredomThreshold
	hostCfg.CuriosityThreshold = cli.CuriosityThreshold
	host, err := engine.NewHost(hengine, hostCfg)
	if err != nil {
		return fmt.Errorf("creating host: %w", err)
	}

	f, err := os.Open(cli.Input) //nolint:gosec // path is an explicit user-supplied flag
	if err != nil {
		return fmt.Errorf("opening input %s: %w", cli.Input, err)
	}
	defer f.Close()
	if bookmark.FilePos > 0 {
		if _, err := f.Seek(int64(bookmark.FilePos), io.SeekStart); err != nil {
			return fmt.Errorf("seeking to bookmark: %w", err)
		}
	}

	cycles := 0
	for !host.Done() {
		result, err := host.Step(f)
		if err != nil {
			return fmt.Errorf("cycle %d: %w", cycles, err)
		}
		cycles++
		if cycles%200 == 0 {
			logger.Printf("cycle=%d familiarity=%.2f band=%s composites=%d feed_rate=%d collapsed=%v",
				cycles, host.Familiarity(), host.Band(), hengine.Bank().CompositeCount(), host.FeedRate(), result.Collapsed)
		}
		if cli.MaxCycles > 0 && cycles >= cli.MaxCycles {
			break
		}
	}

	pos, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("reading final file position: %w", err)
	}
	logger.Printf("done after %d cycles: %d composites, familiarity=%.2f, ratio=%.2f",
		cycles, hengine.Bank().CompositeCount(), host.Familiarity(),
		cost.CompressionRatio(hengine.Stream().Len(), int(pos)))

	if cli.BrainPath == "" {
		return nil
	}
	records, nextID := hengine.Bank().Export()
	snap := persist.Snapshot{
		NextID:     nextID,
		Patterns:   records,
		Dictionary: map[uint16][]byte{},
		Bookmark:   persist.Bookmark{FilePos: uint64(pos), TotalFed: bookmark.TotalFed + (uint64(pos) - bookmark.FilePos)},
	}
	if err := persist.Save(cli.BrainPath, snap); err != nil {
		return fmt.Errorf("saving brain to %s: %w", cli.BrainPath, err)
	}
	logger.Printf("saved brain to %s", cli.BrainPath)
	return nil
}

// driveCodec runs the scheduler-driven codec engine over cli.Input,
// feeding at the engine's adaptive rate until the file and the focus
// window are both exhausted, then reports the final encoded size and
// persists the bank plus dictionary to BrainPath.
func driveCodec(cli cliConfig, logger *log.Logger) error {
	econfig := engine.DefaultConfig()
	econfig.BankCapacity = cli.PatternCapacity
	econfig.MemoryLimit = cli.MemoryLimit

	winSize := int(float64(cli.FeedRate) * cli.WindowFraction)
	if winSize < 1 {
		winSize = 1
	}
	econfig.WindowSize = winSize
	if econfig.WindowMaxSize < winSize {
		econfig.WindowMaxSize = winSize
	}

	cengine, err := engine.NewCodecEngine(nil, econfig, scheduler.NewDefaultRand(time.Now().UnixNano()))
	if err != nil {
		return fmt.Errorf("creating codec engine: %w", err)
	}

	f, err := os.Open(cli.Input) //nolint:gosec // path is an explicit user-supplied flag
	if err != nil {
		return fmt.Errorf("opening input %s: %w", cli.Input, err)
	}
	defer f.Close()

	var (
		cycles   int
		totalFed uint64
		eof      bool
		refused  bool
	)
	for {
		if !eof {
			refused = false
			buf := make([]byte, cengine.FeedRate())
			n, rerr := f.Read(buf)
			if n > 0 {
				if ferr := cengine.Feed(buf[:n]); ferr != nil {
					if !errors.Is(ferr, engine.ErrMemoryLimitExceeded) {
						return fmt.Errorf("cycle %d: %w", cycles, ferr)
					}
					// Over the memory limit: push the unread bytes back and
					// let AdaptFeedRate shrink the next request.
					refused = true
					if _, serr := f.Seek(int64(-n), io.SeekCurrent); serr != nil {
						return fmt.Errorf("cycle %d: rewinding refused feed: %w", cycles, serr)
					}
				} else {
					totalFed += uint64(n)
				}
			}
			switch {
			case errors.Is(rerr, io.EOF):
				eof = true
			case rerr != nil:
				return fmt.Errorf("cycle %d: read: %w", cycles, rerr)
			}
		}

		result, err := cengine.Cycle()
		if err != nil {
			return fmt.Errorf("cycle %d: %w", cycles, err)
		}
		cycles++
		cengine.AdaptFeedRate(cengine.FreeFraction())

		if cycles%200 == 0 {
			logger.Printf("cycle=%d action=%s gain=%.0f pending=%d dict_words=%d patterns=%d feed_rate=%d",
				cycles, result.Action, result.Gain, cengine.Pending(),
				cengine.Dictionary().Len(), cengine.Bank().CompositeCount(), cengine.FeedRate())
		}
		if cli.MaxCycles > 0 && cycles >= cli.MaxCycles {
			break
		}
		if eof && cengine.Pending() == 0 {
			break
		}
		if refused && cengine.Pending() == 0 && cengine.FeedRate() == 1 {
			// Buffer pinned at the memory limit with nothing left to encode
			// and not even a single byte admissible: stop rather than spin.
			logger.Printf("memory limit %d reached after %d bytes, stopping", cli.MemoryLimit, totalFed)
			break
		}
	}

	if err := cengine.Finalize(); err != nil {
		return fmt.Errorf("finalizing: %w", err)
	}
	final := cengine.Cost()
	logger.Printf("done after %d cycles: %d bytes in, %d bytes encoded (%d model + %d residual), %d dictionary words, %d patterns",
		cycles, totalFed, final.TotalBytes(), final.ModelBytes, final.ResidualBytes,
		cengine.Dictionary().Len(), cengine.Bank().CompositeCount())

	if cli.BrainPath == "" {
		return nil
	}

	records, nextID := cengine.Bank().Export()
	words := make(map[uint16][]byte)
	for id, w := range cengine.Dictionary().Words() {
		words[id] = append([]byte(nil), w...)
	}
	snap := persist.Snapshot{
		NextID:     nextID,
		Patterns:   records,
		Dictionary: words,
		NextWordID: cengine.Dictionary().NextID(),
		Bookmark:   persist.Bookmark{FilePos: totalFed, TotalFed: totalFed},
	}
	if err := persist.Save(cli.BrainPath, snap); err != nil {
		return fmt.Errorf("saving brain to %s: %w", cli.BrainPath, err)
	}
	logger.Printf("saved brain to %s", cli.BrainPath)
	return nil
}
