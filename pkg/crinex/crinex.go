// Package crinex implements the Hatanaka Compact RINEX format for GNSS
// observation data. It provides a Decoder that expands a Compact RINEX
// stream into plain RINEX observation epochs, and an Encoder that
// compresses observation epochs into a Compact RINEX stream.
//
// The format stores each epoch as textual and numerical differences to
// the previous epoch. The epoch record line is kept as a character wise
// diff, whereas observations, the receiver clock offset and the optional
// pico-second record are kept as integer differences of a configurable
// order. Supported format versions are 1.0 for RINEX2 files and 3.0/3.1
// for RINEX3 and newer files.
package crinex

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/gnsskit/gocrinex/pkg/rinex"
)

// Version is the Compact RINEX format version.
type Version int

const (
	// V1 is Compact RINEX 1.0, used for RINEX2 observation files.
	V1 Version = iota + 1

	// V3 is Compact RINEX 3.0, used for RINEX3 observation files.
	V3

	// V31 is Compact RINEX 3.1, used for RINEX4 observation files.
	// It adds the optional pico-second record to the clock line.
	V31
)

func (v Version) String() string {
	switch v {
	case V1:
		return "1.0"
	case V3:
		return "3.0"
	case V31:
		return "3.1"
	}
	return fmt.Sprintf("crinex version: %d", int(v))
}

// versionFromString returns the Version for a version string from a
// "CRINEX VERS / TYPE" header record.
func versionFromString(s string) (Version, error) {
	switch s {
	case "1.0":
		return V1, nil
	case "3.0":
		return V3, nil
	case "3.1":
		return V31, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedVersion, s)
}

// versionForRINEX returns the Compact RINEX version for a RINEX format version.
func versionForRINEX(rnxVers float32) Version {
	switch {
	case rnxVers >= 4:
		return V31
	case rnxVers >= 3:
		return V3
	default:
		return V1
	}
}

// errors
var (
	// ErrNoCrinexHeader is returned if a stream does not begin with a
	// "CRINEX VERS / TYPE" record.
	ErrNoCrinexHeader = errors.New("crinex: no CRINEX header")

	// ErrUnsupportedVersion is returned for Compact RINEX versions other than 1.0, 3.0 and 3.1.
	ErrUnsupportedVersion = errors.New("crinex: unsupported format version")

	// ErrInvalidEpoch is returned for epoch records that violate the format,
	// e.g. a missing initialization after a special event. Errors of this
	// kind are not recoverable unless the Decoder runs in Recover mode.
	ErrInvalidEpoch = errors.New("crinex: invalid epoch record")
)

const (
	crxMagic = "COMPACT RINEX FORMAT"

	labelVersType = "CRINEX VERS   / TYPE"
	labelProgDate = "CRINEX PROG / DATE"
)

// layout describes the version dependent columns of the epoch record.
type layout struct {
	initPrefix byte // first char of an initializing epoch record
	timePos    int  // first column of the epoch time
	timeLen    int
	flagPos    int // column of the epoch flag
	numSatPos  int // first column of the 3 char number of satellites
	satLstPos  int // first column of the satellite list
}

var layouts = map[Version]layout{
	V1:  {initPrefix: '&', timePos: 1, timeLen: 25, flagPos: 28, numSatPos: 29, satLstPos: 32},
	V3:  {initPrefix: '>', timePos: 2, timeLen: 27, flagPos: 31, numSatPos: 32, satLstPos: 41},
	V31: {initPrefix: '>', timePos: 2, timeLen: 27, flagPos: 31, numSatPos: 32, satLstPos: 41},
}

// units of the integer representation in the compressed stream
const (
	obsUnit   = 1e-3  // observations are stored with 3 decimals
	clkUnit   = 1e-12 // receiver clock offset for crinex >= 3.0
	clkUnitV1 = 1e-9  // receiver clock offset for crinex 1.0
)

func (v Version) clockUnit() float64 {
	if v == V1 {
		return clkUnitV1
	}
	return clkUnit
}

// Config holds the options for an Encoder.
type Config struct {
	// MaxOrder is the maximum differencing order for observation and
	// clock data. The reference tools use 3.
	MaxOrder int `validate:"required,gte=1,lte=9"`

	// Pgm and RunBy go into the "CRINEX PROG / DATE" record.
	Pgm   string `validate:"max=20"`
	RunBy string `validate:"max=20"`
}

// DefaultConfig returns the Config used by NewEncoder if none is given.
func DefaultConfig() Config {
	return Config{MaxOrder: 3, Pgm: "gocrinex"}
}

var valid = validator.New()

func (cfg *Config) validate() error {
	if err := valid.Struct(cfg); err != nil {
		return fmt.Errorf("crinex: invalid config: %w", err)
	}
	return nil
}

// ErrTruncated reexports rinex.ErrTruncated for convenience. A Compact
// RINEX stream that ends within an epoch is truncated, a stream that ends
// right before an epoch record is complete.
var ErrTruncated = rinex.ErrTruncated
