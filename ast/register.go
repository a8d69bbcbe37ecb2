package ast

import (
	"strings"
)

// Register is one of the 32 RV32 integer registers, 0-31.
type Register uint8

const (
	RegZero Register = 0
	RegRA   Register = 1
	RegSP   Register = 2
	RegGP   Register = 3
	RegTP   Register = 4
)

var abiNames = map[string]Register{
	"zero": RegZero,
	"ra":   RegRA,
	"sp":   RegSP,
	"gp":   RegGP,
	"tp":   RegTP,
	"t0":   5, "t1": 6, "t2": 7,
	"s0": 8, "fp": 8, "s1": 9,
	"a0": 10, "a1": 11, "a2": 12, "a3": 13, "a4": 14, "a5": 15, "a6": 16, "a7": 17,
	"s2": 18, "s3": 19, "s4": 20, "s5": 21, "s6": 22, "s7": 23, "s8": 24, "s9": 25, "s10": 26, "s11": 27,
	"t3": 28, "t4": 29, "t5": 30, "t6": 31,
}

// ParseRegister accepts both numeric (x0-x31) and ABI spellings.
func ParseRegister(name string) (Register, bool) {
	lower := strings.ToLower(strings.TrimSpace(name))
	if reg, ok := abiNames[lower]; ok {
		return reg, true
	}
	if strings.HasPrefix(lower, "x") && len(lower) > 1 {
		n := 0
		for _, c := range lower[1:] {
			if c < '0' || c > '9' {
				return 0, false
			}
			n = n*10 + int(c-'0')
		}
		if n > 31 {
			return 0, false
		}
		return Register(n), true
	}
	return 0, false
}

func (r Register) String() string {
	return "x" + itoa(int(r))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [4]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
