/*
 * ssdcore - Demo entry point.
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Command ssdsim wires the scheduler, DFTL, and hotness measurer into a
// runnable batch experiment. The CLI itself, and the workload generator's
// exact traffic pattern, are both out of scope of the simulator core; this
// is one concrete wiring, not the only one.
package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/flashsim/ssdcore/config"
	"github.com/flashsim/ssdcore/deviceio"
	"github.com/flashsim/ssdcore/event"
	"github.com/flashsim/ssdcore/ftl"
	"github.com/flashsim/ssdcore/hotness"
	"github.com/flashsim/ssdcore/logging"
	"github.com/flashsim/ssdcore/manager"
	"github.com/flashsim/ssdcore/scheduler"
)

func main() {
	optConfig := flag.String("config", "", "Configuration file (TOML); built-in defaults if omitted")
	optLogFile := flag.String("log", "", "Log file")
	optWrites := flag.Int64("writes", 1000, "Number of experiment writes to run before stopping")
	optDebug := flag.Bool("debug", false, "Mirror debug-level log records to stderr")
	flag.Parse()

	var file *os.File
	if *optLogFile != "" {
		f, err := os.Create(*optLogFile)
		if err != nil {
			slog.Error("ssdsim: cannot create log file", "path", *optLogFile, "error", err)
			os.Exit(1)
		}
		file = f
	}
	logger := slog.New(logging.NewHandler(file, &slog.HandlerOptions{Level: slog.LevelInfo}, *optDebug))
	slog.SetDefault(logger)
	logger.Info("ssdsim started")

	cfg := config.Default()
	if *optConfig != "" {
		loaded, err := config.Load(*optConfig)
		if err != nil {
			logger.Error(err.Error())
			os.Exit(1)
		}
		cfg = loaded
	}

	// osys is referenced by the completion closure before it exists: the
	// device needs a callback at construction, and the scheduler needs
	// the device at construction, so one side has to close over a
	// variable instead of a value.
	var osys *scheduler.OperatingSystem
	ssd := deviceio.New(cfg, func(e *event.Event) { osys.RegisterEventCompletion(e) })
	osys = scheduler.New(cfg, ssd, logger)

	blocks := manager.New(cfg)
	translation := ftl.New(cfg, ssd, blocks)
	ssd.SetFTL(translation)

	hot := hotness.New(cfg)
	workload := newSequentialWorkload(cfg, hot, uint64(cfg.TotalPages()))
	osys.SetThreads([]scheduler.Thread{workload})
	osys.SetNumWritesToStopAfter(*optWrites)

	osys.Run()

	logger.Info("ssdsim finished",
		"experiment_runtime", osys.GetExperimentRuntime(),
		"ftl_writes", translation.Stats.NumFTLWrite,
		"ftl_reads", translation.Stats.NumFTLRead,
		"cache_hits", translation.Stats.NumCacheHits,
	)
}
