package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"go.uber.org/zap"

	"github.com/justyntemme/solstice/internal/app"
	"github.com/justyntemme/solstice/internal/config"
	"github.com/justyntemme/solstice/internal/events"
	"github.com/justyntemme/solstice/internal/logging"
	"github.com/justyntemme/solstice/internal/store"
)

type env struct {
	ctx     context.Context
	svc     *app.Service
	cfg     config.Config
	cfgPath string
	json    bool
}

type command struct {
	usage string
	run   func(e *env, args []string) error
}

var commands = map[string]command{
	"ls":           {"ls [dir]", runList},
	"search":       {"search [-kind k] <root> <query>", runSearch},
	"find":         {"find [filters] <root> [query]", runFind},
	"size":         {"size <dir>", runSize},
	"stats":        {"stats <dir>", runStats},
	"props":        {"props <path>", runProps},
	"cat":          {"cat <file>", runCat},
	"thumb":        {"thumb -o out.jpg <image>", runThumb},
	"cp":           {"cp <src>... <dir>", runCopy},
	"mv":           {"mv <src>... <dir>", runMove},
	"rename":       {"rename <path> <new-name>", runRename},
	"mkdir":        {"mkdir <parent> <name>", runMkdir},
	"touch":        {"touch <parent> <name>", runTouch},
	"rm":           {"rm <path>...", runRemove},
	"batch-rename": {"batch-rename -strategy <json> [-apply] <path>...", runBatchRename},
	"drives":       {"drives", runDrives},
	"special":      {"special", runSpecial},
	"tags":         {"tags [tag]", runTags},
	"tag":          {"tag <path> <tag>", runTag},
	"untag":        {"untag <path> <tag>", runUntag},
	"trash":        {"trash list|empty|rm <path>...", runTrash},
	"config":       {"config init|path", runConfig},
	"serve":        {"serve [-metrics-addr addr] [-watch dir]", runServe},
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: solstice [-config path] [-debug] [-json] [-no-store] <command> [args]\n\ncommands:\n")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %s\n", commands[name].usage)
	}
}

func main() {
	os.Exit(run())
}

func run() int {
	cfgPath := flag.String("config", config.ConfigPath(), "Path to config.json")
	debugFlag := flag.Bool("debug", false, "Enable verbose debug logging")
	jsonOut := flag.Bool("json", false, "Print results as JSON")
	noStore := flag.Bool("no-store", false, "Run without the tag database")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		return 2
	}
	cmd, ok := commands[flag.Arg(0)]
	if !ok {
		fmt.Fprintf(os.Stderr, "solstice: unknown command %q\n", flag.Arg(0))
		usage()
		return 2
	}

	mgr := config.NewManagerAt(*cfgPath)
	if err := mgr.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "solstice: %v\n", err)
		return 1
	}
	cfg := mgr.Get()

	logCfg := logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, OutputPath: cfg.Logging.OutputPath}
	if *debugFlag {
		logCfg.Level = "debug"
		logCfg.Format = "console"
	}
	if err := logging.Init(logCfg); err != nil {
		fmt.Fprintf(os.Stderr, "solstice: logging: %v\n", err)
		return 1
	}
	defer logging.Sync()
	if err := mgr.ParseError(); err != nil {
		logging.Warn("config ignored, using defaults", zap.String("path", *cfgPath), zap.Error(err))
	}

	deps := app.Deps{Events: events.NewBroadcaster()}
	if !*noStore && cfg.Store.Path != "" {
		db, err := store.Open(cfg.Store.Path, deps.Events)
		if err != nil {
			logging.Warn("tag store unavailable", zap.String("path", cfg.Store.Path), zap.Error(err))
		} else {
			deps.Store = db
		}
	}
	svc := app.New(cfg, deps)
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e := &env{ctx: ctx, svc: svc, cfg: cfg, cfgPath: *cfgPath, json: *jsonOut}
	if err := cmd.run(e, flag.Args()[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "usage: solstice %s\n", cmd.usage)
			return 2
		}
		fmt.Fprintf(os.Stderr, "solstice: %v\n", err)
		return 1
	}
	return 0
}
