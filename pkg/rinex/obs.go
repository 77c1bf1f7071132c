package rinex

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gnsskit/gocrinex/pkg/gnss"
)

// The RINEX observation code that specifies frequency, signal and tracking mode like "L1C".
type ObsCode string

// Coord defines a XYZ coordinate.
type Coord struct {
	X, Y, Z float64
}

// CoordNEU defines a North-, East-, Up-coordinate or eccentrity
type CoordNEU struct {
	N, E, Up float64
}

// Obs specifies a RINEX observation.
type Obs struct {
	Val float64 // The observation itself.
	LLI int8    // LLI is the loss of lock indicator.
	SNR int8    // SNR is the signal-to-noise ratio.
}

// PRN specifies a GNSS satellite.
type PRN struct {
	Sys gnss.System // The satellite system.
	Num int8        // The satellite number.
}

// ParsePRN returns a new PRN for the string prn that is e.g. G12.
func ParsePRN(prn string) (PRN, error) {
	if len(prn) < 3 {
		return PRN{}, fmt.Errorf("invalid satellite: %q", prn)
	}
	sys, ok := gnss.ParseSystem(prn[:1])
	if !ok {
		return PRN{}, fmt.Errorf("invalid satellite system: %q", prn)
	}
	snum, err := strconv.Atoi(strings.TrimSpace(prn[1:3]))
	if err != nil {
		return PRN{}, fmt.Errorf("parse sat num: %q: %v", prn, err)
	}
	if snum < 1 {
		return PRN{}, fmt.Errorf("check satellite number '%v%d'", sys, snum)
	}
	return PRN{Sys: sys, Num: int8(snum)}, nil
}

// String is a PRN Stringer.
func (prn PRN) String() string {
	return fmt.Sprintf("%s%02d", prn.Sys.Abbr(), prn.Num)
}

// SatObs contains all observations for a satellite per epoch.
// Observation types without data for this epoch are not contained in Obss.
type SatObs struct {
	Prn  PRN             // The satellite number or PRN.
	Obss map[ObsCode]Obs // A map of observations with the obs-code as key. L1C: Obs{Val:0, LLI:0, SNR:0}, L2C: Obs{Val:...},...
}

// Epoch contains a RINEX obs data epoch.
type Epoch struct {
	Time    time.Time // The epoch time.
	Flag    int8      // The epoch flag 0:OK, 1:power failure between previous and current epoch, >1 : Special event.
	NumSat  uint8     // The number of satellites per epoch.
	ObsList []SatObs  // The list of observations per epoch.

	// ClockOffset is the receiver clock offset in seconds, an optional record.
	// It is nil if the record is not present.
	ClockOffset *float64

	// PicoSecs is the pico-second part of the epoch time, an optional record
	// introduced with RINEX 4.02. It is nil if the record is not present.
	PicoSecs *int

	// EventLines holds the verbatim special records of an event epoch
	// (Flag >= 2), including the epoch line itself. ObsList is empty then.
	EventLines []string
}

// IsEvent returns true for special event epochs (epoch flag >= 2) whose
// records are passed through verbatim in EventLines.
func (epo *Epoch) IsEvent() bool {
	return epo.Flag >= 2
}

// A ObsHeader provides the RINEX Observation Header information.
type ObsHeader struct {
	RINEXVersion float32 // RINEX Format version
	RINEXType    string  // RINEX File type. O for Obs
	// The header satellite system. Note that system is "Mixed" if more than one.
	SatSystem gnss.System

	Pgm   string    // name of program creating this file
	RunBy string    // name of agency creating this file
	Date  time.Time // Date and time of file creation.

	Comments []string // * comment lines

	MarkerName   string // The name of the antenna marker, usually the 9-character station ID.
	MarkerNumber string // The IERS DOMES number assigned to the station marker is expected.
	MarkerType   string // Type of the marker. See RINEX specification.

	Observer, Agency string

	ReceiverNumber, ReceiverType, ReceiverVersion string
	AntennaNumber, AntennaType                    string

	Position     Coord    // Geocentric approximate marker position [m]
	AntennaDelta CoordNEU // North,East,Up deltas in [m]

	ObsTypes map[gnss.System][]ObsCode // List of all observation types per GNSS.

	SignalStrengthUnit string
	Interval           float64 // Observation interval in seconds
	TimeOfFirstObs     time.Time
	TimeOfLastObs      time.Time
	LeapSeconds        int // The current number of leap seconds
	NSatellites        int // Number of satellites, for which observations are stored in the file

	Labels []string // all Header Labels found.
}

// decodeObs decodes an observation field of a GNSS obs file.
// The second return value is false if the field is blank, i.e. the
// observation is missing for this epoch.
func decodeObs(s string, flag int8) (obs Obs, ok bool, err error) {
	if strings.TrimSpace(s) == "" {
		return obs, false, nil
	}

	// Value
	oEnd := 14
	if len(s) < oEnd {
		oEnd = len(s)
	}
	valStr := strings.TrimSpace(s[:oEnd])
	if valStr != "" {
		obs.Val, err = strconv.ParseFloat(valStr, 64)
		if err != nil {
			return obs, false, fmt.Errorf("parse obs: %q: %v", s, err)
		}
	}

	// LLI
	lli := 0
	if len(s) > 14 && s[14:15] != " " {
		lli, err = strconv.Atoi(s[14:15])
		if err != nil {
			return obs, false, fmt.Errorf("parse LLI: %q: %v", s, err)
		}
	}
	// flag power failure
	if flag == 1 {
		lli |= 1
	}
	obs.LLI = int8(lli)

	// SNR
	if len(s) > 15 && s[15:16] != " " {
		snr, err := strconv.Atoi(s[15:16])
		if err != nil {
			return obs, false, fmt.Errorf("parse SNR: %q: %v", s, err)
		}
		obs.SNR = int8(snr)
	}
	return obs, true, nil
}

// Convert strings to Obscodes.
func convStringsToObscodes(strs []string) []ObsCode {
	obscodes := make([]ObsCode, 0, len(strs))
	for _, str := range strs {
		obscodes = append(obscodes, ObsCode(str))
	}
	return obscodes
}
