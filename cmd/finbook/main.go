package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"path"

	"github.com/google/subcommands"

	"finbook.org/internal/obs"
)

func main() {
	obs.Init()
	if addr := os.Getenv("FINBOOK_METRICS_ADDR"); addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", obs.Handler())
			if err := http.ListenAndServe(addr, mux); err != nil {
				obs.Error("metrics listener failed", map[string]any{"addr": addr, "error": err.Error()})
			}
		}()
	}

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))

	commander.Register(commander.HelpCommand(), "")
	commander.Register(&importCmd{}, "")
	commander.Register(&exportCmd{}, "")
	commander.Register(&addCmd{}, "")
	commander.Register(&recalcCmd{}, "")
	commander.Register(&tagsCmd{}, "")
	commander.Register(&registerCmd{}, "")
	commander.Register(&tokenCmd{}, "")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
