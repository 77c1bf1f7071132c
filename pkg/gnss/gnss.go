// Package gnss contains common constants and type definitions.
package gnss

import "strings"

// System is a satellite system.
type System int

// Available satellite systems.
const (
	SysGPS System = iota + 1
	SysGLO
	SysGAL
	SysQZSS
	SysBDS
	SysIRNSS
	SysSBAS
	SysMIXED
)

func (sys System) String() string {
	return [...]string{"", "GPS", "GLO", "GAL", "QZSS", "BDS", "IRNSS", "SBAS", "MIXED"}[sys]
}

// Abbr returns the systems' one-character abbreviation used in RINEX.
func (sys System) Abbr() string {
	return [...]string{"", "G", "R", "E", "J", "C", "I", "S", "M"}[sys]
}

var sysPerAbbr = map[string]System{
	"G": SysGPS,
	"R": SysGLO,
	"E": SysGAL,
	"J": SysQZSS,
	"C": SysBDS,
	"I": SysIRNSS,
	"S": SysSBAS,
	"M": SysMIXED,
	// A blank system identifier means GPS in RINEX-2 observation files.
	" ": SysGPS,
}

// ParseSystem returns the satellite system for the RINEX abbreviation abbr.
func ParseSystem(abbr string) (System, bool) {
	sys, ok := sysPerAbbr[abbr]
	return sys, ok
}

// Systems specifies a list of satellite systems.
type Systems []System

// String returns the contained systems in sitelog manner GPS+GLO+...
func (syss Systems) String() string {
	str := make([]string, 0, len(syss))
	for _, sys := range syss {
		str = append(str, sys.String())
	}
	return strings.Join(str, "+")
}
