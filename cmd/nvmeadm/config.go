//
// (C) Copyright 2024-2026 Kestrel OS Project.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package main

import (
	"io/ioutil"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"

	"github.com/kestrel-os/kestrel/src/storage/nvme"
	"github.com/kestrel-os/kestrel/src/storage/nvme/sim"
)

// config describes the simulated controller nvmeadm drives.
type config struct {
	Controller *sim.Config `yaml:"controller"`
	QueuePairs int         `yaml:"queue_pairs"`
}

func defaultConfig() *config {
	return &config{
		Controller: sim.DefaultConfig(),
		QueuePairs: nvme.DefaultQueuePairCapacity,
	}
}

// loadConfig reads a config from the given YAML file, filling any
// omitted sections with defaults.
func loadConfig(path string) (*config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config file %q", path)
	}

	cfg := defaultConfig()
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing config file %q", path)
	}

	if cfg.Controller == nil {
		cfg.Controller = sim.DefaultConfig()
	}
	if cfg.QueuePairs <= 0 {
		return nil, errors.Errorf("config file %q: queue_pairs must be positive", path)
	}
	if err := cfg.Controller.Validate(); err != nil {
		return nil, errors.Wrapf(err, "config file %q", path)
	}

	return cfg, nil
}
