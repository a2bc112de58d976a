// Copyright 2026 The Railwire Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package bcm283x

// gpioFunction selects one of a pin's 8 possible functions (page 92).
// Carried over from the teacher's host/bcm283x/bcm283x.go function type.
type gpioFunction uint32

const (
	gpioFunctionInput gpioFunction = 0
	gpioFunctionOutput gpioFunction = 1
	gpioFunctionAlt0  gpioFunction = 4
	gpioFunctionAlt1  gpioFunction = 5
	gpioFunctionAlt2  gpioFunction = 6
	gpioFunctionAlt3  gpioFunction = 7
	gpioFunctionAlt4  gpioFunction = 3
	gpioFunctionAlt5  gpioFunction = 2
)

// pwmControl bits (PWM_CTL, page 141-142). Only channel 1 is used, since
// the DCC signal is the only PWM output this module drives.
type pwmControl uint32

const (
	pwmMSEN1 pwmControl = 1 << 7 // use M/S transmission instead of the PWM algorithm
	pwmCLRF1 pwmControl = 1 << 6 // clear the FIFO (single-shot)
	pwmUSEF1 pwmControl = 1 << 5 // use the FIFO for transmission
	pwmPOLA1 pwmControl = 1 << 4
	pwmSBIT1 pwmControl = 1 << 3
	pwmRPTL1 pwmControl = 1 << 2 // repeat last FIFO word when empty
	pwmMODE1 pwmControl = 1 << 1
	pwmPWEN1 pwmControl = 1 << 0 // enable channel 1
)

// pwmDMAC bits (PWM_DMAC, page 145): DREQ/PANIC thresholds that pace the
// DMA engine off the PWM FIFO.
type pwmDMAC uint32

const (
	pwmDMACEnab      pwmDMAC = 1 << 31
	pwmDMACPanicMask pwmDMAC = 0xff << 8
	pwmDMACDreqMask  pwmDMAC = 0xff
)

// defaultPWMDMACThreshold is the PANIC/DREQ level the teacher's pwm.go
// documents as the hardware default (7), used whenever the FIFO pacing
// thresholds aren't otherwise tuned.
const defaultPWMDMACThreshold = 7

// clockCtl bits (CM_PWMCTL, page 107). Every write must OR in cmPasswd.
type clockCtl uint32

const (
	cmPasswd        clockCtl = 0x5a << 24
	clockBusy       clockCtl = 1 << 7
	clockKill       clockCtl = 1 << 5
	clockEnable     clockCtl = 1 << 4
	clockSrcMask    clockCtl = 0xf
	clockSrcOscillator clockCtl = 1 // 19.2MHz crystal
)

// clockDiv bits (CM_PWMDIV, page 108): a 12.12 fixed-point divisor.
type clockDiv uint32

const (
	clockDivIntegerShift = 12
	clockDivIntegerMax   clockDiv = (1 << 12) - 1
)

// oscillatorHz is the bcm283x's PWM clock source frequency when fed from
// the onboard crystal oscillator (clockSrcOscillator).
const oscillatorHz = 19200000

// dmaTransferInfo/dmaStatus bit layouts live in qbitstream.TransferInfo
// already (it mirrors the same BCM2835 DMA descriptor); host/bcm283x only
// needs the channel control register's own bits, not the per-descriptor
// ones.
type dmaChannelControl uint32

const (
	dmaReset  dmaChannelControl = 1 << 31
	dmaAbort  dmaChannelControl = 1 << 30
	dmaActive dmaChannelControl = 1 << 0
)

// Register offsets within a single DMA channel's register block (page
// 42-46): CS, CONBLK_AD, then the live-descriptor shadow registers.
const (
	dmaCSReg       = 0x00
	dmaConblkADReg = 0x04
)
