// Copyright 2026 The Railwire Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package bcm283x

import (
	"fmt"
	"log"
	"sync"

	"github.com/railwire/dcc/host/pmem"
)

// Peripheral is a concrete driver.Peripheral against a real BCM2835/2836/
// 2837: register windows for GPIO, PWM and the Clock Manager are mapped
// once at New; DMA channel windows are mapped lazily, since the channel
// number is only known once StartDMA names it.
type Peripheral struct {
	physBase uint32

	gpio  pmem.Mem
	pwm   pmem.Mem
	clock pmem.Mem

	mu      sync.Mutex
	dmaChans map[uint]pmem.Mem

	logger *log.Logger
}

// New maps the GPIO, PWM and Clock Manager register windows. It must run
// as root (or with CAP_SYS_RAWIO) since it opens /dev/mem.
func New(logger *log.Logger) (*Peripheral, error) {
	if logger == nil {
		logger = log.Default()
	}
	base := physicalPeripheralBase()

	gpio, err := pmem.MapRegisters(base+gpioOffset, 4096)
	if err != nil {
		return nil, fmt.Errorf("bcm283x: mapping GPIO: %w", err)
	}
	pwm, err := pmem.MapRegisters(base+pwmOffset, 4096)
	if err != nil {
		gpio.Close()
		return nil, fmt.Errorf("bcm283x: mapping PWM: %w", err)
	}
	clock, err := pmem.MapRegisters(base+clockOffset, 4096)
	if err != nil {
		gpio.Close()
		pwm.Close()
		return nil, fmt.Errorf("bcm283x: mapping Clock Manager: %w", err)
	}

	logger.Printf("bcm283x: peripheral base %#x", base)
	return &Peripheral{
		physBase: base,
		gpio:     gpio,
		pwm:      pwm,
		clock:    clock,
		dmaChans: make(map[uint]pmem.Mem),
		logger:   logger,
	}, nil
}

// Addresses returns the PWM FIFO, PWM range, and GPIO output-set register
// bus addresses qbitstream.Layout needs.
func (p *Peripheral) Addresses() (pwmFIFO, pwmRange, gpioSet uint32) {
	return busAddress(pwmOffset, pwmFIF1Reg), busAddress(pwmOffset, pwmRNG1Reg), busAddress(gpioOffset, gpioSet0)
}

func gpioFunctionSelectIndex(pin uint) (word int, shift uint) {
	return int(pin / 10), (pin % 10) * 3
}

func (p *Peripheral) setFunction(pin uint, f gpioFunction) {
	word, shift := gpioFunctionSelectIndex(pin)
	reg := gpioFunctionSelect0/4 + word
	words := p.gpio.Words()
	words[reg] = (words[reg] &^ (7 << shift)) | (uint32(f) << shift)
}

// ConfigurePins switches dccPin to the PWM0 alternate function (ALT5 on
// every pin bcm283x can route PWM0 through) and railComPin/debugPin to
// plain digital outputs, driven low.
func (p *Peripheral) ConfigurePins(dccPin, railComPin, debugPin uint) error {
	p.setFunction(dccPin, gpioFunctionAlt5)
	p.setFunction(railComPin, gpioFunctionOutput)
	p.setFunction(debugPin, gpioFunctionOutput)

	bank, mask := pinBank(railComPin)
	p.gpio.Words()[gpioClear0/4+bank] = mask
	bank, mask = pinBank(debugPin)
	p.gpio.Words()[gpioClear0/4+bank] = mask
	return nil
}

func pinBank(pin uint) (bank int, mask uint32) {
	return int(pin / 32), uint32(1) << (pin % 32)
}

// waitClockNotBusy polls CM_PWMCTL's BUSY bit for a bounded number of
// iterations after killing the clock generator. The BCM2835 datasheet
// gives no worst-case settle time; bounding the wait turns a wedged clock
// generator into a (stale-divisor) misconfiguration instead of a hang.
func waitClockNotBusy(clockWords []uint32) {
	for i := 0; i < 1000; i++ {
		if clockWords[cmPWMCtlReg/4]&uint32(clockBusy) == 0 {
			return
		}
	}
}

// ConfigureClock sets the PWM clock generator's divisor so a PWM range
// tick lasts pulseWidthUs microseconds, sourcing from the 19.2MHz onboard
// oscillator (clockSrcOscillator). The divisor is 12.12 fixed point;
// non-integer microsecond widths lose precision beyond 1/4096 of a tick,
// which is well inside DCC's timing tolerance.
func (p *Peripheral) ConfigureClock(pulseWidthUs float64) error {
	if pulseWidthUs <= 0 {
		return fmt.Errorf("bcm283x: pulse width must be > 0, got %v", pulseWidthUs)
	}
	divisor := pulseWidthUs * oscillatorHz / 1e6
	divi := uint32(divisor)
	if clockDiv(divi) > clockDivIntegerMax {
		return fmt.Errorf("bcm283x: pulse width %vus needs a divisor of %d, exceeds the 12-bit integer field", pulseWidthUs, divi)
	}
	divf := uint32((divisor - float64(divi)) * 4096)

	words := p.clock.Words()
	// Kill the clock generator before reprogramming it (page 107: must
	// not change while busy).
	words[cmPWMCtlReg/4] = uint32(cmPasswd | clockKill)
	waitClockNotBusy(words)
	words[cmPWMDivReg/4] = uint32(cmPasswd) | (divi << clockDivIntegerShift) | divf
	words[cmPWMCtlReg/4] = uint32(cmPasswd|clockEnable) | uint32(clockSrcOscillator)
	return nil
}

// EnablePWM starts PWM channel 1 consuming FIFO words via DREQ in
// serializer mode: each FIFO word is shifted out msb-first, one bit per
// clock tick, over as many bits as the range register holds.
func (p *Peripheral) EnablePWM() error {
	words := p.pwm.Words()
	words[pwmDMACReg/4] = uint32(pwmDMACEnab | (defaultPWMDMACThreshold << 8) | defaultPWMDMACThreshold)
	words[pwmCtlReg/4] = uint32(pwmUSEF1 | pwmMODE1 | pwmPWEN1)
	return nil
}

// DisablePWM stops channel 1.
func (p *Peripheral) DisablePWM() error {
	p.pwm.Words()[pwmCtlReg/4] = 0
	return nil
}

// AllocateUncached delegates to pmem.Alloc.
func (p *Peripheral) AllocateUncached(wordCount int) (pmem.Mem, error) {
	return pmem.Alloc(wordCount)
}

func (p *Peripheral) dmaChannel(channel uint) (pmem.Mem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if m, ok := p.dmaChans[channel]; ok {
		return m, nil
	}
	m, err := pmem.MapRegisters(p.physBase+dmaOffset+uint32(channel)*dmaChannelStride, 256)
	if err != nil {
		return nil, fmt.Errorf("bcm283x: mapping DMA channel %d: %w", channel, err)
	}
	p.dmaChans[channel] = m
	return m, nil
}

// StartDMA resets the named channel and points it at the control block
// living at controlBlockBusAddress.
func (p *Peripheral) StartDMA(channel uint, controlBlockBusAddress uint32) error {
	m, err := p.dmaChannel(channel)
	if err != nil {
		return err
	}
	words := m.Words()
	words[dmaCSReg/4] = uint32(dmaReset)
	words[dmaConblkADReg/4] = controlBlockBusAddress
	words[dmaCSReg/4] = uint32(dmaActive)
	p.logger.Printf("bcm283x: DMA channel %d started at %#x", channel, controlBlockBusAddress)
	return nil
}

// StopDMA aborts the named channel.
func (p *Peripheral) StopDMA(channel uint) error {
	m, err := p.dmaChannel(channel)
	if err != nil {
		return err
	}
	m.Words()[dmaCSReg/4] = uint32(dmaAbort)
	return nil
}

// Close unmaps every register window this Peripheral holds.
func (p *Peripheral) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, m := range p.dmaChans {
		record(m.Close())
	}
	record(p.gpio.Close())
	record(p.pwm.Close())
	record(p.clock.Close())
	return firstErr
}
