//
// (C) Copyright 2024-2026 Kestrel OS Project.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package main

import (
	"bufio"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"runtime/debug"
	"strings"

	"github.com/desertbit/columnize"
	shlex "github.com/desertbit/go-shlex"
	"github.com/desertbit/grumble"
	flags "github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kestrel-os/kestrel/src/storage/build"
	"github.com/kestrel-os/kestrel/src/storage/fault"
	"github.com/kestrel-os/kestrel/src/storage/lib/dma"
	"github.com/kestrel-os/kestrel/src/storage/logging"
	"github.com/kestrel-os/kestrel/src/storage/nvme"
	"github.com/kestrel-os/kestrel/src/storage/nvme/sim"
)

func exitWithError(log logging.Logger, err error) {
	cmdName := path.Base(os.Args[0])
	log.Errorf("%s: %v", cmdName, err)
	if fault.HasResolution(err) {
		log.Errorf("%s: %s", cmdName, fault.ShowResolutionFor(err))
	}
	os.Exit(1)
}

type cliOptions struct {
	Debug         bool   `long:"debug" description:"enable debug output"`
	ConfigPath    string `long:"config" short:"o" description:"Path to a YAML file describing the simulated controller."`
	CmdFile       string `long:"cmd_file" short:"f" description:"Path to a file containing a sequence of nvmeadm commands to execute."`
	TelemetryPort int    `long:"telemetry-port" description:"Enable Prometheus endpoint on the given port."`
	Version       bool   `short:"v" long:"version" description:"Show version"`
	Args          struct {
		RunCmd     string   `positional-arg-name:"nvmeadm_command"`
		RunCmdArgs []string `positional-arg-name:"nvmeadm_command_args"`
	} `positional-args:"yes"`
}

const helpCommandsHeader = `
Available commands:

`

func runFileCmds(log logging.Logger, app *grumble.App, fileName string) error {
	file, err := os.Open(fileName)
	if err != nil {
		return errors.Wrapf(err, "Error opening file %q", fileName)
	}
	defer func() {
		if err := file.Close(); err != nil {
			log.Errorf("Error closing %q: %s\n", fileName, err)
		}
	}()

	log.Debugf("Running commands in %q\n", fileName)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lineStr := scanner.Text()
		lineCmd, err := shlex.Split(lineStr, true)
		if err != nil {
			return errors.Wrapf(err, "Failed running command %q", lineStr)
		}
		if len(lineCmd) == 0 || strings.HasPrefix(lineCmd[0], "#") {
			continue
		}
		log.Debugf("Running Command %q\n", lineStr)
		if err := runCmdStr(app, lineCmd[0], lineCmd[1:]...); err != nil {
			return errors.Wrapf(err, "Failed running command %q", lineStr)
		}
	}

	return nil
}

func printCommands(app *grumble.App, log *logging.LeveledLogger) {
	var output []string
	for _, c := range app.Commands().All() {
		if c.Name == "quit" {
			continue
		}
		row := c.Name + columnize.DefaultConfig().Delim + c.Help
		output = append(output, row)
	}
	log.Info(helpCommandsHeader + columnize.SimpleFormat(output) + "\n\n")
}

func printHelp(generalMsg string, log *logging.LeveledLogger) int {
	// ctx is not needed since this instance of the app only lists
	// its commands.
	app := createGrumbleApp(nil)

	log.Info(generalMsg + "\n")
	printCommands(app, log)
	return 0
}

func serveTelemetry(log logging.Logger, driver *nvme.Driver, port int) error {
	reg := prometheus.NewRegistry()
	if err := driver.EnableMetrics(reg); err != nil {
		return errors.Wrap(err, "registering driver metrics")
	}

	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		addr := fmt.Sprintf("localhost:%d", port)
		log.Debugf("telemetry endpoint on %s", addr)
		if err := http.ListenAndServe(addr, nil); err != nil {
			log.Errorf("telemetry endpoint: %s", err)
		}
	}()
	return nil
}

func parseOpts(args []string, opts *cliOptions, log *logging.LeveledLogger) error {
	p := flags.NewParser(opts, flags.HelpFlag|flags.IgnoreUnknown)
	p.Name = "nvmeadm"
	p.Usage = "[OPTIONS]"
	p.ShortDescription = "storage driver admin tool"
	p.LongDescription = `nvmeadm drives the storage stack against a simulated controller. It
offers both a command line and interactive shell mode. If neither a
single command nor the '-f' option is provided, the tool runs in
interactive mode. Controller geometry comes from the YAML file given
with '-o'; without it a single-namespace default is used.
`

	// Set the traceback level such that a crash results in
	// a coredump (when ulimit -c is set appropriately).
	debug.SetTraceback("crash")

	if _, err := p.ParseArgs(args); err != nil {
		if fe, ok := errors.Cause(err).(*flags.Error); ok && fe.Type == flags.ErrHelp {
			os.Exit(printHelp(fe.Error(), log))
		}

		return err
	}

	if opts.Version {
		log.Info(build.String(build.AdminToolName))
		return nil
	}

	if opts.Debug {
		log.WithLogLevel(logging.LogLevelDebug)
		log.Debug("debug output enabled")
	}

	if opts.Args.RunCmd != "" && opts.CmdFile != "" {
		return errors.New("Cannot use both command file and a command string")
	}

	cfg := defaultConfig()
	if opts.ConfigPath != "" {
		var err error
		if cfg, err = loadConfig(opts.ConfigPath); err != nil {
			return err
		}
	}

	provider := dma.NewMmapProvider(log)
	backend := sim.NewBackend(log, cfg.Controller, provider)
	driver, err := nvme.NewDriver(log, sim.NewDevice(), backend, provider, cfg.QueuePairs)
	if err != nil {
		return errors.Wrap(err, "Error initializing the driver")
	}
	defer func() {
		if err := driver.Close(); err != nil {
			log.Errorf("Error closing driver: %s\n", err)
		}
	}()

	if opts.TelemetryPort != 0 {
		if err := serveTelemetry(log, driver, opts.TelemetryPort); err != nil {
			return err
		}
	}

	ctx := &admContext{log: log, driver: driver}
	app := createGrumbleApp(ctx)

	if opts.Args.RunCmd != "" || opts.CmdFile != "" {
		// Non-interactive mode
		if opts.Args.RunCmd != "" {
			err = runCmdStr(app, opts.Args.RunCmd, opts.Args.RunCmdArgs...)
			if err != nil {
				log.Errorf("Error running command %q %s\n", opts.Args.RunCmd, err)
			}
		} else {
			err = runFileCmds(log, app, opts.CmdFile)
			if err != nil {
				log.Errorf("Error running command file: %s\n", err)
			}
		}
		return err
	}

	// Interactive mode
	// Print the version upon entry
	log.Info(build.String(build.AdminToolName))
	// app.Run() uses the os.Args so need to clear them before running
	os.Args = []string{}
	return app.Run()
}

func main() {
	var opts cliOptions
	log := logging.NewCommandLineLogger()

	if err := parseOpts(os.Args[1:], &opts, log); err != nil {
		exitWithError(log, err)
	}
}

func createGrumbleApp(ctx *admContext) *grumble.App {
	homedir, err := os.UserHomeDir()
	if err != nil {
		homedir = "/tmp"
	}
	var app = grumble.New(&grumble.Config{
		Name:        "nvmeadm",
		Flags:       nil,
		HistoryFile: filepath.Join(homedir, ".nvmeadm_history"),
		NoColor:     false,
		Prompt:      "nvmeadm:  ",
	})

	addAppCommands(app, ctx)

	// Add the quit command. grumble also includes a builtin exit command
	app.AddCommand(&grumble.Command{
		Name:      "quit",
		Aliases:   []string{"q"},
		Help:      "exit the shell",
		LongHelp:  "",
		HelpGroup: "",
		Run: func(c *grumble.Context) error {
			c.Stop()
			return nil
		},
		Completer: nil,
	})
	return app
}

// Run the command through the grumble app without entering the shell.
func runCmdStr(app *grumble.App, cmd string, args ...string) error {
	return app.RunCommand(append([]string{cmd}, args...))
}
