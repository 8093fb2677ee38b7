// Command chessplay-uci runs the chess engine's search core behind a UCI
// text-protocol front end: stdin/stdout is the only external interface,
// and everything the engine needs lives in process memory for the
// lifetime of the run.
package main

import (
	"context"
	"flag"
	"os"
	"runtime/pprof"

	"github.com/hailam/chessplay/internal/engine"
	"github.com/hailam/chessplay/internal/uci"
	"github.com/seekerror/logw"
)

const defaultHashMB = 64

var cpuprofile = flag.String("cpuprofile", "", "write cpu profile to file")

func main() {
	flag.Parse()
	ctx := context.Background()

	profilePath := *cpuprofile
	if profilePath == "" {
		profilePath = os.Getenv("CPUPROFILE")
	}
	if profilePath != "" {
		f, err := os.Create(profilePath)
		if err != nil {
			logw.Exitf(ctx, "could not create CPU profile: %v", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			logw.Exitf(ctx, "could not start CPU profile: %v", err)
		}
		defer pprof.StopCPUProfile()
		logw.Infof(ctx, "CPU profiling enabled, writing to %s", profilePath)
	}

	pool := engine.NewEngine(ctx, defaultHashMB)

	protocol := uci.New(ctx, pool)
	protocol.Run()
}
