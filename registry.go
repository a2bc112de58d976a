// Copyright 2026 The Railwire Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package dcc is a registry of drivers, the same role the teacher's root
// periph package plays for periph.io/x/periph: host/bcm283x registers
// itself here in its package init(), and a caller (cmd/dccd, or any
// embedding program) calls dcc.Init() once at startup to bring every
// registered driver up in dependency order before handing the resulting
// driver.Peripheral to a driver.Driver.
package dcc

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Driver is a host-level dependency that must be brought up before a
// driver.Peripheral can be constructed — e.g. confirming the running CPU
// is actually a bcm283x before host/bcm283x.New tries to map its
// registers.
type Driver interface {
	// String is the driver's unique name, as shown to the user.
	String() string
	// Prerequisites lists driver names that must load successfully before
	// this one is attempted.
	Prerequisites() []string
	// Init initializes the driver. On success it returns true, nil. When
	// the driver is irrelevant on this host it returns false, with an
	// error explaining why it was skipped. On failure it returns true
	// with an error explaining what went wrong.
	Init() (bool, error)
}

// DriverFailure pairs a driver with why it didn't load.
type DriverFailure struct {
	D   Driver
	Err error
}

func (d DriverFailure) String() string { return fmt.Sprintf("%s: %v", d.D, d.Err) }

// State is the result of Init: every driver that loaded, was skipped, or
// failed, each list sorted by driver name.
type State struct {
	Loaded  []Driver
	Skipped []DriverFailure
	Failed  []DriverFailure
}

var (
	mu         sync.Mutex
	allDrivers []Driver
	byName     = map[string]Driver{}
	state      *State
)

// Register registers d to be initialized by Init. d.String() must be
// unique among registered drivers. Calling Register after Init has
// already run is an error.
func Register(d Driver) error {
	mu.Lock()
	defer mu.Unlock()
	if state != nil {
		return errors.New("dcc: can't call Register() after Init()")
	}
	n := d.String()
	if _, ok := byName[n]; ok {
		return fmt.Errorf("dcc: driver with same name %q was already registered", n)
	}
	byName[n] = d
	allDrivers = append(allDrivers, d)
	return nil
}

// MustRegister calls Register and panics on failure — the function to
// call from a driver package's init().
func MustRegister(d Driver) {
	if err := Register(d); err != nil {
		panic(err)
	}
}

// Init brings up every registered driver, staged so a driver only starts
// once all of its Prerequisites have finished, and drivers within a stage
// run concurrently. It is safe to call more than once; later calls return
// the state computed by the first.
func Init() (*State, error) {
	mu.Lock()
	defer mu.Unlock()
	if state != nil {
		return state, nil
	}
	s := &State{}
	cLoaded := make(chan Driver)
	cSkipped := make(chan DriverFailure)
	cFailed := make(chan DriverFailure)

	var collect sync.WaitGroup
	collect.Add(3)
	go func() {
		defer collect.Done()
		for d := range cLoaded {
			s.Loaded = append(s.Loaded, d)
		}
	}()
	go func() {
		defer collect.Done()
		for f := range cSkipped {
			s.Skipped = append(s.Skipped, f)
		}
	}()
	go func() {
		defer collect.Done()
		for f := range cFailed {
			s.Failed = append(s.Failed, f)
		}
	}()

	stages, err := explodeStages(allDrivers)
	if err != nil {
		return s, err
	}
	for _, stage := range stages {
		loadStage(stage, cLoaded, cSkipped, cFailed)
	}
	close(cLoaded)
	close(cSkipped)
	close(cFailed)
	collect.Wait()

	sort.Sort(byDriverName(s.Loaded))
	sort.Sort(byFailureName(s.Skipped))
	sort.Sort(byFailureName(s.Failed))
	state = s
	return state, nil
}

// explodeStages groups drvs into dependency-ordered stages: every driver
// in stage N has had all of its Prerequisites satisfied by stages 0..N-1.
func explodeStages(drvs []Driver) ([][]Driver, error) {
	remaining := map[string]map[string]struct{}{}
	for _, d := range drvs {
		remaining[d.String()] = map[string]struct{}{}
	}
	for _, d := range drvs {
		name := d.String()
		for _, dep := range d.Prerequisites() {
			if _, ok := byName[dep]; !ok {
				return nil, fmt.Errorf("dcc: %q depends on unregistered driver %q", name, dep)
			}
			remaining[name][dep] = struct{}{}
		}
	}

	var stages [][]Driver
	for len(remaining) != 0 {
		var ready []string
		var stage []Driver
		for name, deps := range remaining {
			if len(deps) == 0 {
				ready = append(ready, name)
				stage = append(stage, byName[name])
			}
		}
		if len(ready) == 0 {
			return nil, fmt.Errorf("dcc: cyclic driver dependency among %v", remaining)
		}
		stages = append(stages, stage)
		for _, name := range ready {
			delete(remaining, name)
		}
		for _, deps := range remaining {
			for _, name := range ready {
				delete(deps, name)
			}
		}
	}
	return stages, nil
}

// loadStage runs every driver in drvs concurrently and blocks until all
// have reported in.
func loadStage(drvs []Driver, cLoaded chan<- Driver, cSkipped, cFailed chan<- DriverFailure) {
	var wg sync.WaitGroup
	wg.Add(len(drvs))
	for _, d := range drvs {
		d := d
		go func() {
			defer wg.Done()
			ok, err := d.Init()
			switch {
			case !ok:
				cSkipped <- DriverFailure{D: d, Err: err}
			case err == nil:
				cLoaded <- d
			default:
				cFailed <- DriverFailure{D: d, Err: err}
			}
		}()
	}
	wg.Wait()
}

type byDriverName []Driver

func (b byDriverName) Len() int           { return len(b) }
func (b byDriverName) Less(i, j int) bool { return b[i].String() < b[j].String() }
func (b byDriverName) Swap(i, j int)      { b[i], b[j] = b[j], b[i] }

type byFailureName []DriverFailure

func (b byFailureName) Len() int           { return len(b) }
func (b byFailureName) Less(i, j int) bool { return b[i].D.String() < b[j].D.String() }
func (b byFailureName) Swap(i, j int)      { b[i], b[j] = b[j], b[i] }
