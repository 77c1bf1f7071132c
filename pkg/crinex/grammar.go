package crinex

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gnsskit/gocrinex/pkg/rinex"
)

// epochRecord is the parsed form of a reconstructed epoch record.
type epochRecord struct {
	time   time.Time
	flag   int8
	numSat int
	sats   []string // raw 3 char satellite entries, e.g. "G01"
}

// parseEpochRecord parses the reconstructed epoch record buf.
// The satellite entries are returned unvalidated.
func parseEpochRecord(buf []byte, v Version) (rec epochRecord, err error) {
	lay := layouts[v]

	if len(buf) < lay.numSatPos+3 {
		return rec, fmt.Errorf("%w: record too short: %q", ErrInvalidEpoch, string(buf))
	}

	timeStr := string(buf[lay.timePos : lay.timePos+lay.timeLen])
	if v == V1 {
		rec.time, err = rinex.ParseEpochTimev2(timeStr)
	} else {
		rec.time, err = rinex.ParseEpochTime(timeStr)
	}
	if err != nil {
		return rec, fmt.Errorf("%w: parse epoch time %q: %v", ErrInvalidEpoch, timeStr, err)
	}

	switch c := buf[lay.flagPos]; {
	case c == ' ':
		rec.flag = 0
	case c >= '0' && c <= '9':
		rec.flag = int8(c - '0')
	default:
		return rec, fmt.Errorf("%w: invalid epoch flag %q", ErrInvalidEpoch, string(c))
	}

	numSatStr := strings.TrimSpace(string(buf[lay.numSatPos : lay.numSatPos+3]))
	rec.numSat, err = strconv.Atoi(numSatStr)
	if err != nil {
		return rec, fmt.Errorf("%w: parse number of satellites %q: %v", ErrInvalidEpoch, numSatStr, err)
	}

	if rec.numSat > 0 && len(buf) < lay.satLstPos+3*rec.numSat {
		return rec, fmt.Errorf("%w: satellite list too short for %d satellites", ErrInvalidEpoch, rec.numSat)
	}
	rec.sats = make([]string, 0, rec.numSat)
	for i := 0; i < rec.numSat; i++ {
		off := lay.satLstPos + 3*i
		rec.sats = append(rec.sats, string(buf[off:off+3]))
	}

	return rec, nil
}

// buildEpochRecord renders the full epoch record for epo, including the
// initialization prefix and the satellite list.
func buildEpochRecord(v Version, epo *rinex.Epoch) string {
	var sats strings.Builder
	for _, satObs := range epo.ObsList {
		sats.WriteString(satObs.Prn.String())
	}

	if v == V1 {
		return fmt.Sprintf("&%s  %d%3d%s", rinex.FormatEpochTimev2(epo.Time), epo.Flag, len(epo.ObsList), sats.String())
	}
	return fmt.Sprintf("> %s  %d%3d      %s", rinex.FormatEpochTime(epo.Time), epo.Flag, len(epo.ObsList), sats.String())
}

// parseNumSkip returns the number of special records following an event
// epoch record, taken from the number of satellites columns.
func parseNumSkip(line string, v Version) (int, error) {
	lay := layouts[v]
	if len(line) < lay.numSatPos+3 {
		return 0, fmt.Errorf("%w: event record too short: %q", ErrInvalidEpoch, line)
	}
	n, err := strconv.Atoi(strings.TrimSpace(line[lay.numSatPos : lay.numSatPos+3]))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: parse number of special records %q", ErrInvalidEpoch, line[lay.numSatPos:lay.numSatPos+3])
	}
	return n, nil
}
