// Copyright 2026 The Railwire Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Command dccd drives a single DCC-pin, RailCom-cutout-aware PWM/DMA
// transmitter on a Raspberry Pi: it brings up host/bcm283x, builds one
// operations-mode packet for a locomotive address at a given 128-step
// speed, and keeps it enqueued until interrupted. It is a runnable example,
// not part of the library contract, in the same single-file/stdlib-flag
// style as the teacher's cmd/led and cmd/gpio-write.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/railwire/dcc"
	"github.com/railwire/dcc/bitstream"
	"github.com/railwire/dcc/driver"
	"github.com/railwire/dcc/host/bcm283x"
	"github.com/railwire/dcc/packet"
)

func mainImpl() error {
	dccPin := flag.Uint("dcc-pin", 18, "GPIO pin carrying the DCC signal (PWM0 alternate function)")
	railComPin := flag.Uint("railcom-pin", 17, "GPIO pin driven low during the RailCom cutout")
	debugPin := flag.Uint("debug-pin", 19, "GPIO pin strobed around each transmitted packet")
	dmaChannel := flag.Uint("dma-channel", 5, "DMA channel to drive the PWM FIFO")
	pulseWidthUs := flag.Float64("pulse-width-us", 14.5, "duration of one DCC physical bit cell, in microseconds")
	address := flag.Int("address", 3, "locomotive address to address (primary, 1-127)")
	speed := flag.Uint("speed", 0, "128-step speed (0-126, or 127 for emergency stop)")
	reverse := flag.Bool("reverse", false, "run in reverse instead of forward")
	verbose := flag.Bool("v", false, "verbose mode")
	flag.Parse()
	if flag.NArg() != 0 {
		return errors.New("unexpected argument")
	}

	if !*verbose {
		log.SetOutput(ioutil.Discard)
	}
	log.SetFlags(log.Lmicroseconds)

	bs, err := buildBitstream(*address, uint8(*speed), *reverse, *pulseWidthUs)
	if err != nil {
		return err
	}

	state, err := dcc.Init()
	if err != nil {
		return err
	}
	for _, f := range state.Failed {
		log.Printf("dccd: driver %s failed: %v", f.D, f.Err)
	}
	peripheral, err := bcm283x.Acquire()
	if err != nil {
		return err
	}

	cfg := driver.DefaultConfig()
	cfg.DCCPin = *dccPin
	cfg.RailComPin = *railComPin
	cfg.DebugPin = *debugPin
	cfg.DMAChannel = *dmaChannel
	cfg.PulseWidthUs = *pulseWidthUs
	cfg.Logger = log.Default()

	d := driver.New(peripheral, cfg)
	if err := d.Start(); err != nil {
		return err
	}
	defer d.Shutdown()

	if err := d.Enqueue(bs); err != nil {
		return err
	}
	log.Printf("dccd: transmitting to address %d at speed %d", *address, *speed)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	log.Printf("dccd: shutting down")
	return nil
}

// buildBitstream encodes a single 128-step speed packet, repeated forever:
// a preamble, the packet itself with its RailCom cutout, then a breakpoint
// so a later Enqueue call can splice in a replacement without a gap.
func buildBitstream(address int, speed uint8, reverse bool, pulseWidthUs float64) (*bitstream.Bitstream, error) {
	addr, err := packet.Primary(address)
	if err != nil {
		return nil, fmt.Errorf("dccd: %w", err)
	}
	direction := packet.Forward
	if reverse {
		direction = packet.Reverse
	}
	var instr packet.Instruction
	if speed == 127 {
		instr, err = packet.EmergencyStop(direction, packet.Step128)
	} else {
		instr, err = packet.Speed128Step(speed, direction)
	}
	if err != nil {
		return nil, fmt.Errorf("dccd: %w", err)
	}
	pkt := packet.New(addr, instr)

	bs, err := bitstream.New(32, pulseWidthUs)
	if err != nil {
		return nil, fmt.Errorf("dccd: %w", err)
	}
	bs.AppendLoopStart()
	if err := bs.AppendOperationsModePacket(pkt, 16, true); err != nil {
		return nil, fmt.Errorf("dccd: %w", err)
	}
	bs.AppendBreakpoint()
	return bs, nil
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "dccd: %s.\n", err)
		os.Exit(1)
	}
}
