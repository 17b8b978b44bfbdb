package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/aidventure/packlist/internal/cli"
	"github.com/aidventure/packlist/internal/config"
	"github.com/aidventure/packlist/internal/kv"
	"github.com/aidventure/packlist/internal/logging"
	"github.com/aidventure/packlist/internal/state"
	"github.com/aidventure/packlist/internal/storage"
	"github.com/aidventure/packlist/internal/ui"
)

func main() {
	// Root flags (apply to every subcommand)
	group := flag.Bool("group", false, "show items grouped by category")
	configPath := flag.String("config", "", "path to config file")
	theme := flag.String("theme", "", "theme override: classic, neon, mono")
	noColor := flag.Bool("no-color", false, "disable colored output")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *theme != "" {
		cfg.Theme = *theme
	}
	ui.SetColorForcing(false, *noColor)
	ui.SetTheme(cfg.Theme)

	log, err := logging.New(cfg.DataDir, cfg.Debug)
	if err != nil {
		// A broken log file shouldn't take the CLI down.
		log = zap.NewNop()
	}
	defer log.Sync()

	var mediumOpts []kv.Option
	if cfg.QuotaBytes > 0 {
		mediumOpts = append(mediumOpts, kv.WithQuota(cfg.QuotaBytes))
	}
	medium, err := kv.NewFile(cfg.DataDir, mediumOpts...)
	if err != nil {
		ui.Fail(err.Error())
		os.Exit(1)
	}
	defer medium.Close()

	store := storage.New(medium, log)
	defer store.Close()
	mgr := state.New(store, log)

	// Hand the remaining args to the CLI runner.
	args := flag.Args()
	if len(args) == 0 {
		cli.PrintHelp()
		os.Exit(2)
	}

	code := cli.Run(args, &cli.App{Manager: mgr, Log: log}, cli.Options{Group: *group})
	if code != 0 {
		fmt.Fprintln(os.Stderr)
	}
	os.Exit(code)
}
