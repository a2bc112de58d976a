// Copyright 2026 The Railwire Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package bcm283x

import (
	"bufio"
	"errors"
	"log"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/railwire/dcc"
)

// Present reports whether the running kernel identifies its CPU as a
// Broadcom bcm283x (Raspberry Pi 1 through 3): /proc/cpuinfo's Hardware
// field starts with "BCM", the same signal the teacher's own Present()
// checks via host/distro.CPUInfo(). This module has no distro package of
// its own, so it reads /proc/cpuinfo directly and uses a runtime GOARCH
// check in place of the teacher's per-arch build-tagged isArm constant.
func Present() bool {
	if runtime.GOARCH != "arm" && runtime.GOARCH != "arm64" {
		return false
	}
	f, err := os.Open("/proc/cpuinfo")
	if err != nil {
		return false
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		parts := strings.SplitN(scanner.Text(), ":", 2)
		if len(parts) != 2 {
			continue
		}
		if strings.TrimSpace(parts[0]) == "Hardware" {
			return strings.HasPrefix(strings.TrimSpace(parts[1]), "BCM")
		}
	}
	return false
}

// hostDriver registers bcm283x's presence check and register-window setup
// as a dcc.Driver, so a program can bring every host dependency up through
// one dcc.Init() call instead of calling bcm283x.New directly.
type hostDriver struct {
	mu         sync.Mutex
	peripheral *Peripheral
}

func (h *hostDriver) String() string          { return "bcm283x" }
func (h *hostDriver) Prerequisites() []string { return nil }

func (h *hostDriver) Init() (bool, error) {
	if !Present() {
		return false, errors.New("bcm283x: CPU not detected")
	}
	p, err := New(log.Default())
	if err != nil {
		return true, err
	}
	h.mu.Lock()
	h.peripheral = p
	h.mu.Unlock()
	return true, nil
}

var host = &hostDriver{}

// Acquire returns the Peripheral this package's dcc.Driver constructed
// during dcc.Init. Call it only after dcc.Init has returned; it errors if
// Init hasn't run yet, or bcm283x was skipped or failed on this host.
func Acquire() (*Peripheral, error) {
	host.mu.Lock()
	defer host.mu.Unlock()
	if host.peripheral == nil {
		return nil, errors.New("bcm283x: not initialized; call dcc.Init first")
	}
	return host.peripheral, nil
}

func init() {
	dcc.MustRegister(host)
}

var _ dcc.Driver = host
