// Copyright 2026 The Railwire Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package bcm283x adapts the teacher's host/bcm283x register layouts
// (GPIO function-select, PWM control/range/data/DMA-config, Clock Manager
// control/divisor, DMA channel/control-block/status — all BCM2835/2836/
// 2837 hardware facts, carried over bit-for-bit) into a concrete
// driver.Peripheral: the "something on the other side of the abstract
// Peripheral interface" a complete repository needs.
package bcm283x

import (
	"io/ioutil"
	"os"
	"path"
	"strconv"
	"strings"
)

// Peripheral register block byte offsets from the SoC's peripheral
// physical base, per the BCM2835 ARM Peripherals datasheet.
const (
	gpioOffset  = 0x200000
	pwmOffset   = 0x20c000
	clockOffset = 0x101000
	dmaOffset   = 0x007000

	dmaChannelStride = 0x100
)

// Register offsets within the PWM block (page 141-145).
const (
	pwmCtlReg  = 0x00
	pwmStaReg  = 0x04
	pwmDMACReg = 0x08
	pwmRNG1Reg = 0x10
	pwmDAT1Reg = 0x14
	pwmFIF1Reg = 0x18
)

// Register offsets within the Clock Manager block relevant to the PWM
// clock generator (page 105-108; CM_PWMCTL/CM_PWMDIV).
const (
	cmPWMCtlReg = 0xa0
	cmPWMDivReg = 0xa4
)

// Register offsets within the GPIO block (page 90-91).
const (
	gpioFunctionSelect0 = 0x00
	gpioSet0            = 0x1c
	gpioClear0           = 0x28
)

// busPeripheralBase is the fixed bus-address alias of the peripheral
// block the DMA engine uses to reach registers, regardless of which
// physical address the ARM core sees it at (dma.go's "software accessing
// RAM using the DMA engines must use bus addresses" note, generalized:
// peripherals additionally always sit at this fixed 0x7Ennnnnn alias on
// every bcm283x variant).
const busPeripheralBase = 0x7e000000

// busAddress turns a peripheral register's offset from the peripheral
// block's start into the bus address a DMA control block's
// DestinationAddress/SourceAddress must hold to reach it.
func busAddress(blockOffset, regOffset uint32) uint32 {
	return busPeripheralBase + blockOffset + regOffset
}

// physicalPeripheralBase queries the virtual filesystem for the SoC's
// peripheral physical base address, the same way the teacher's
// getBaseAddress does for the GPIO block specifically; we derive the
// shared peripheral base by subtracting the GPIO block's own offset.
// Defaults to 0x3F000000 (BCM2836/2837) if it can't be determined.
func physicalPeripheralBase() uint32 {
	items, _ := ioutil.ReadDir("/sys/bus/platform/drivers/pinctrl-bcm2835/")
	for _, item := range items {
		if item.Mode()&os.ModeSymlink == 0 {
			continue
		}
		parts := strings.SplitN(path.Base(item.Name()), ".", 2)
		if len(parts) != 2 {
			continue
		}
		base, err := strconv.ParseUint(parts[0], 16, 64)
		if err != nil {
			continue
		}
		return uint32(base) - gpioOffset
	}
	return 0x3f000000
}
