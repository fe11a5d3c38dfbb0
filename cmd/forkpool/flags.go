// Forkpool - Pre-fork HTTP Worker Pool Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/forkpool

package main

import (
	"io"

	"github.com/spf13/pflag"
)

// cliOptions holds the parsed command line.
type cliOptions struct {
	configPath string

	// overrides maps koanf keys to values for flags set explicitly on the
	// command line. They win over defaults, config file and environment.
	overrides map[string]interface{}
}

func parseFlags(args []string, output io.Writer) (cliOptions, error) {
	fs := pflag.NewFlagSet("forkpool", pflag.ContinueOnError)
	fs.SetOutput(output)
	fs.SortFlags = false

	configPath := fs.StringP("config", "c", "", "path to a YAML config file")
	workers := fs.IntP("workers", "w", 0, "number of worker processes (0 = one per CPU)")
	port := fs.IntP("port", "p", 5000, "port the workers serve on")
	delay := fs.Duration("delay", 0, "artificial response delay of each request")
	listenMode := fs.String("listen-mode", "inherit", "how workers share the port: inherit or reuseport")
	logLevel := fs.String("log-level", "info", "log level: trace, debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, err
	}

	overrides := map[string]interface{}{}
	set := func(flag, key string, val interface{}) {
		if fs.Changed(flag) {
			overrides[key] = val
		}
	}
	set("workers", "pool.size", *workers)
	set("port", "server.port", *port)
	set("delay", "workload.delay", *delay)
	set("listen-mode", "server.listen_mode", *listenMode)
	set("log-level", "logging.level", *logLevel)

	return cliOptions{configPath: *configPath, overrides: overrides}, nil
}
