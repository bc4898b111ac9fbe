// Copyright (c) 2024, The OTNS Authors.
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are met:
// 1. Redistributions of source code must retain the above copyright
//    notice, this list of conditions and the following disclaimer.
// 2. Redistributions in binary form must reproduce the above copyright
//    notice, this list of conditions and the following disclaimer in the
//    documentation and/or other materials provided with the distribution.
// 3. Neither the name of the copyright holder nor the
//    names of its contributors may be used to endorse or promote products
//    derived from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE
// ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE
// LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR
// CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF
// SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN
// CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE)
// ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE
// POSSIBILITY OF SUCH DAMAGE.

// Package macsim_main runs a scenario script against a simulated MAC and radio.
package macsim_main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mitchellh/go-wordwrap"
	"github.com/pkg/errors"

	"github.com/openthread/ot-macsim/logger"
	"github.com/openthread/ot-macsim/metrics"
	"github.com/openthread/ot-macsim/progctx"
	"github.com/openthread/ot-macsim/scenario"
	"github.com/openthread/ot-macsim/simulation"
)

type MainArgs struct {
	ConfigFile  string
	ScriptFile  string
	SaveConfig  string
	LogLevel    string
	LogFile     string
	OutputDir   string
	Pcap        string
	Seed        int64
	Realtime    bool
	Kpi         bool
	Echo        bool
	// MetricsAddr enables the Prometheus and status endpoint, e.g. "localhost:9464".
	MetricsAddr string
}

func parseArgs(argv []string, output io.Writer) (*MainArgs, *flag.FlagSet, error) {
	args := &MainArgs{}
	fs := flag.NewFlagSet("ot-macsim", flag.ContinueOnError)
	fs.SetOutput(output)

	fs.StringVar(&args.ConfigFile, "config", "", "load the simulation config from a YAML or TOML file")
	fs.StringVar(&args.ScriptFile, "script", "-", "scenario script to run, '-' reads commands from stdin")
	fs.StringVar(&args.SaveConfig, "save-config", "", "save the final config, including the PIB, to this YAML or TOML file")
	fs.StringVar(&args.LogLevel, "log", "warn", "set logging level: trace, debug, info, note, warn, error, off.")
	fs.StringVar(&args.LogFile, "log-file", "", "also write the log to this file, rotated by size")
	fs.StringVar(&args.OutputDir, "output", "", "directory for pcap and KPI files")
	fs.StringVar(&args.Pcap, "pcap", "", "pcap capture of the radio: off, wpan or wpan-tap")
	fs.Int64Var(&args.Seed, "seed", 0, "seed of the backoff random generator, 0 picks one")
	fs.BoolVar(&args.Realtime, "realtime", false, "run the components concurrently against wall time")
	fs.BoolVar(&args.Kpi, "kpi", false, "collect KPIs from the start and save them on exit")
	fs.BoolVar(&args.Echo, "echo", false, "echo each script command before its output")
	fs.StringVar(&args.MetricsAddr, "metrics-addr", "", "serve /metrics, /health and /report on this address")

	if err := fs.Parse(argv); err != nil {
		return nil, nil, err
	}
	if fs.NArg() > 0 {
		return nil, nil, errors.Errorf("unexpected arguments: %v", fs.Args())
	}
	return args, fs, nil
}

// createConfig loads the config file, if any, and applies the flags that were given explicitly.
func createConfig(args *MainArgs, fs *flag.FlagSet) (*simulation.Config, error) {
	cfg := simulation.DefaultConfig()
	if args.ConfigFile != "" {
		var err error
		if cfg, err = simulation.LoadConfigFile(args.ConfigFile); err != nil {
			return nil, err
		}
	}

	explicit := map[string]bool{}
	fs.Visit(func(f *flag.Flag) {
		explicit[f.Name] = true
	})
	if explicit["log"] || args.ConfigFile == "" {
		cfg.LogLevel = args.LogLevel
	}
	if explicit["output"] {
		cfg.OutputDir = args.OutputDir
	}
	if explicit["pcap"] {
		cfg.Pcap = args.Pcap
	}
	if explicit["seed"] {
		cfg.Seed = args.Seed
	}
	if explicit["realtime"] {
		cfg.Realtime = args.Realtime
	}
	if explicit["kpi"] {
		cfg.Kpi = args.Kpi
	}
	return cfg, cfg.Validate()
}

// Main runs one simulation. It returns an error if the simulation could not be set up or a
// script command failed.
func Main(ctx *progctx.ProgCtx, argv []string, stdin io.Reader, stdout io.Writer) error {
	args, fs, err := parseArgs(argv, stdout)
	if err != nil {
		return err
	}
	cfg, err := createConfig(args, fs)
	if err != nil {
		return err
	}

	if args.LogFile != "" {
		if err = logger.SetLogFile(args.LogFile); err != nil {
			return err
		}
		defer logger.CloseLogFile()
	}
	handleSignals(ctx)

	sim, err := simulation.NewSimulation(ctx, cfg)
	if err != nil {
		ctx.Cancel(err)
		ctx.Wait()
		return err
	}
	defer sim.Stop()

	if args.MetricsAddr != "" {
		ctx.Go("metrics", metrics.NewServer(args.MetricsAddr, sim).Run)
	}

	input := stdin
	if args.ScriptFile != "-" {
		f, err := os.Open(args.ScriptFile)
		if err != nil {
			return err
		}
		defer f.Close()
		input = f
	}

	rt := scenario.NewRunner(ctx, sim)
	failed, err := rt.RunScript(input, stdout, args.Echo)
	if err != nil && !rt.Exited() {
		return errors.Wrapf(err, "running %s", args.ScriptFile)
	}

	if args.SaveConfig != "" {
		if err = sim.SaveConfig(args.SaveConfig); err != nil {
			return err
		}
	}
	_, _ = fmt.Fprint(stdout, wordwrap.WrapString(summary(sim.Report(), failed), scenario.TermWidth()))

	if failed > 0 {
		return errors.Errorf("%d commands failed", failed)
	}
	return nil
}

func summary(r simulation.Report, failed int) string {
	return fmt.Sprintf("simulated %s: %d frames sent, %d confirms (%d successful), %d no-acks, "+
		"%d busy channel assessments, %d frames received, %d indications dropped, %d commands failed.\n",
		r.Now, r.Radio.FramesTx, r.Mac.Confirms, r.Mac.Successes, r.Mac.NoAcks,
		r.Mac.CcaBusy, r.Radio.FramesRx, r.Mac.IndicationsDropped, failed)
}

func handleSignals(ctx *progctx.ProgCtx) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGINT, syscall.SIGHUP)
	signal.Ignore(syscall.SIGALRM)

	ctx.Go("handleSignals", func(done context.Context) error {
		defer logger.Debugf("handleSignals exit.")
		defer signal.Stop(c)

		for {
			select {
			case sig := <-c:
				logger.Infof("signal received: %v", sig)
				ctx.Cancel(sig)
			case <-done.Done():
				return nil
			}
		}
	})
}
