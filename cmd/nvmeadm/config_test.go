//
// (C) Copyright 2024-2026 Kestrel OS Project.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package main

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"

	"github.com/kestrel-os/kestrel/src/storage/common/test"
)

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()

	dir, err := ioutil.TempDir("", "nvmeadm_config")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	path := filepath.Join(dir, "nvmeadm.yml")
	if err := ioutil.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNvmeadm_LoadConfig(t *testing.T) {
	for name, tc := range map[string]struct {
		content    string
		expErr     error
		expNsCount int
		expQPs     int
	}{
		"full config": {
			content: `
controller:
  namespaces:
    - block_count: 4096
      block_size: 512
    - block_count: 1024
      block_size: 4096
  max_transfer_size: 131072
  max_queue_entries: 256
queue_pairs: 4
`,
			expNsCount: 2,
			expQPs:     4,
		},
		"controller defaulted": {
			content:    "queue_pairs: 3\n",
			expNsCount: 1,
			expQPs:     3,
		},
		"bad yaml": {
			content: "controller: [",
			expErr:  errors.New("parsing config file"),
		},
		"unknown field": {
			content: "surprise: true\n",
			expErr:  errors.New("parsing config file"),
		},
		"bad queue pairs": {
			content: "queue_pairs: -1\n",
			expErr:  errors.New("queue_pairs must be positive"),
		},
		"bad geometry": {
			content: `
controller:
  namespaces:
    - block_count: 0
      block_size: 512
  max_transfer_size: 131072
  max_queue_entries: 256
queue_pairs: 2
`,
			expErr: errors.New("zero geometry"),
		},
	} {
		t.Run(name, func(t *testing.T) {
			path := writeTestConfig(t, tc.content)

			cfg, gotErr := loadConfig(path)
			test.CmpErr(t, tc.expErr, gotErr)
			if tc.expErr != nil {
				return
			}

			test.AssertEqual(t, tc.expNsCount, len(cfg.Controller.Namespaces),
				"unexpected namespace count")
			test.AssertEqual(t, tc.expQPs, cfg.QueuePairs, "unexpected queue pair capacity")
		})
	}
}

func TestNvmeadm_LoadConfigMissingFile(t *testing.T) {
	_, err := loadConfig("/nonexistent/nvmeadm.yml")
	test.CmpErr(t, errors.New("reading config file"), err)
}
