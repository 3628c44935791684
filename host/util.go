// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package host

import (
	"fmt"
	"strconv"
	"strings"
)

func codeString(b []byte) string {
	switch len(b) {
	case 1:
		return fmt.Sprintf("%02X", b[0])
	case 2:
		return fmt.Sprintf("%02X %02X", b[0], b[1])
	case 3:
		return fmt.Sprintf("%02X %02X %02X", b[0], b[1], b[2])
	default:
		return ""
	}
}

func stringToBool(s string) (bool, error) {
	s = strings.ToLower(s)
	switch s {
	case "0", "false", "off":
		return false, nil
	case "1", "true", "on":
		return true, nil
	default:
		return false, fmt.Errorf("invalid bool value '%s'", s)
	}
}

// parseNumber converts a number to an unsigned value no larger than 'max'.
// Numbers prefixed with '$' or "0x" are hexadecimal, and numbers prefixed
// with '%' are binary. Unprefixed numbers are hexadecimal in hex mode and
// decimal otherwise.
func parseNumber(s string, hexMode bool, max uint64) (uint64, error) {
	base := 10
	if hexMode {
		base = 16
	}

	digits := strings.ToLower(s)
	switch {
	case strings.HasPrefix(digits, "$"):
		digits, base = digits[1:], 16
	case strings.HasPrefix(digits, "0x"):
		digits, base = digits[2:], 16
	case strings.HasPrefix(digits, "%"):
		digits, base = digits[1:], 2
	}

	v, err := strconv.ParseUint(digits, base, 64)
	if err != nil || v > max {
		return 0, fmt.Errorf("invalid value '%s'", s)
	}
	return v, nil
}

var hexString = "0123456789ABCDEF"

func addrToBuf(addr uint16, b []byte) {
	b[0] = hexString[(addr>>12)&0xf]
	b[1] = hexString[(addr>>8)&0xf]
	b[2] = hexString[(addr>>4)&0xf]
	b[3] = hexString[addr&0xf]
}

func byteToBuf(v byte, b []byte) {
	b[0] = hexString[(v>>4)&0xf]
	b[1] = hexString[v&0xf]
}

func toPrintableChar(v byte) byte {
	switch {
	case v >= 32 && v < 127:
		return v
	case v >= 160 && v < 255:
		return v - 128
	default:
		return '.'
	}
}

