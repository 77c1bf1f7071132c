package crinex

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gnsskit/gocrinex/pkg/rinex"
)

// Decoder reads and decompresses a Compact RINEX observation stream.
// The header is read implicitly on NewDecoder, the epochs are read with
// NextEpoch like this:
//
//	dec, err := crinex.NewDecoder(r)
//	if err != nil { ... }
//	for dec.NextEpoch() {
//	    epo := dec.Epoch()
//	    // do something with epo
//	}
//	if err := dec.Err(); err != nil { ... }
//
// Recoverable problems like unparsable data fields do not stop the
// decoding but are collected in Warnings.
type Decoder struct {
	// Header is the RINEX header embedded in the Compact RINEX stream.
	Header rinex.ObsHeader

	// Version is the Compact RINEX format version of the stream.
	Version Version

	// Prog and Date are taken from the "CRINEX PROG / DATE" record.
	Prog, Date string

	// Warnings collects recoverable problems encountered while decoding.
	Warnings WarningList

	// Recover enables resynchronization: if an epoch record violates the
	// format, the decoder skips forward to the next initializing epoch
	// record instead of failing. Corrupt epochs are lost and reported as
	// warnings. Recovery is not possible for version 1.0 streams, as the
	// initialization prefix '&' is not distinctive enough.
	Recover bool

	sc        *bufio.Scanner
	lineNum   int
	err       error
	epo       *rinex.Epoch
	rawHeader []string
	pending   *string // line pushed back during resynchronization

	epochRec     textDiff
	clk          numDiff
	clkArc       bool
	picoSec      textDiff
	data         map[rinex.PRN]*satState
	needInitNext bool // an initializing epoch record is required after an event
}

// satState holds the differencing state for all observations of one satellite.
type satState struct {
	num    []numDiff
	hasArc []bool
	lli    []charDiff
	ss     []charDiff
}

func newSatState(n int) *satState {
	st := &satState{
		num:    make([]numDiff, n),
		hasArc: make([]bool, n),
		lli:    make([]charDiff, n),
		ss:     make([]charDiff, n),
	}
	for i := 0; i < n; i++ {
		st.lli[i] = newCharDiff()
		st.ss[i] = newCharDiff()
	}
	return st
}

// NewDecoder creates a new decoder for r and reads the Compact RINEX
// header records as well as the embedded RINEX header.
func NewDecoder(r io.Reader) (*Decoder, error) {
	d := &Decoder{
		sc:   bufio.NewScanner(r),
		data: map[rinex.PRN]*satState{},
	}
	d.sc.Buffer(make([]byte, 0, 4096), 1024*1024)

	if err := d.readHeader(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Decoder) readHeader() error {
	line, ok := d.readLine()
	if !ok {
		return fmt.Errorf("%w: empty stream", ErrNoCrinexHeader)
	}
	if len(line) < 40 || !strings.Contains(line, crxMagic) {
		return fmt.Errorf("%w: got %q", ErrNoCrinexHeader, line)
	}
	vers, err := versionFromString(strings.TrimSpace(line[:20]))
	if err != nil {
		return err
	}
	d.Version = vers

	line, ok = d.readLine()
	if !ok {
		return fmt.Errorf("%w: missing %q record", ErrNoCrinexHeader, labelProgDate)
	}
	if len(line) >= 60 {
		d.Prog = strings.TrimSpace(line[:20])
		d.Date = strings.TrimSpace(line[40:60])
	}

	// the plain RINEX header follows verbatim
	for {
		line, ok = d.readLine()
		if !ok {
			return fmt.Errorf("%w: within embedded RINEX header", ErrTruncated)
		}
		d.rawHeader = append(d.rawHeader, line)
		if strings.Contains(line, "END OF HEADER") {
			break
		}
	}

	hdrDec, err := rinex.NewObsDecoder(strings.NewReader(strings.Join(d.rawHeader, "\n") + "\n"))
	if err != nil {
		return fmt.Errorf("crinex: parse embedded RINEX header: %w", err)
	}
	d.Header = hdrDec.Header
	return nil
}

// RawHeader returns the embedded RINEX header lines verbatim,
// including the "END OF HEADER" record.
func (d *Decoder) RawHeader() []string { return d.rawHeader }

// Err returns the first error that occurred while decoding.
// A clean end of the stream is not an error.
func (d *Decoder) Err() error {
	return d.err
}

// Epoch returns the most recent epoch read by a call to NextEpoch.
func (d *Decoder) Epoch() *rinex.Epoch { return d.epo }

func (d *Decoder) setErr(err error) {
	d.err = errors.Join(d.err, err)
}

// readLine reads the next line. It returns false on EOF or read errors,
// read errors are stored in d.err.
func (d *Decoder) readLine() (string, bool) {
	if d.pending != nil {
		line := *d.pending
		d.pending = nil
		return line, true
	}
	if ok := d.sc.Scan(); !ok {
		if err := d.sc.Err(); err != nil {
			d.setErr(err)
		}
		return "", false
	}
	d.lineNum++
	return d.sc.Text(), true
}

// NextEpoch reads the next epoch from the stream. It returns false on
// the end of the stream or on an error, to be checked with Err.
func (d *Decoder) NextEpoch() bool {
	if d.err != nil {
		return false
	}
	for {
		if d.scanEpoch() {
			return true
		}
		if d.err == nil {
			return false // clean end of stream
		}
		if d.Recover && d.Version != V1 && errors.Is(d.err, ErrInvalidEpoch) {
			d.Warnings.Add(d.lineNum, fmt.Sprintf("skipped corrupt epoch: %v", d.err))
			d.err = nil
			if !d.skipToInit() {
				return false
			}
			continue
		}
		return false
	}
}

// skipToInit scans forward to the next line starting with the
// initialization prefix and pushes it back for the next scanEpoch.
func (d *Decoder) skipToInit() bool {
	for {
		line, ok := d.readLine()
		if !ok {
			return false
		}
		if strings.HasPrefix(line, ">") {
			d.pending = &line
			d.needInitNext = false
			return true
		}
	}
}

// scanEpoch reads one epoch, i.e. the epoch record, the clock line and
// one data line per satellite. It returns false on EOF or error.
func (d *Decoder) scanEpoch() bool {
	lay := layouts[d.Version]

	line, ok := d.readLine()
	if !ok {
		return false
	}
	epochLineNum := d.lineNum

	if len(line) > 0 && line[0] == lay.initPrefix {
		if len(line) <= lay.flagPos {
			d.setErr(fmt.Errorf("%w: line %d: record too short: %q", ErrInvalidEpoch, d.lineNum, line))
			return false
		}
		if c := line[lay.flagPos]; c > '1' && c != ' ' {
			return d.scanEvent(line)
		}
		d.epochRec.reset(line)
		d.data = map[rinex.PRN]*satState{}
		d.needInitNext = false
	} else {
		if d.needInitNext {
			d.setErr(fmt.Errorf("%w: line %d: not initialized after a special event", ErrInvalidEpoch, d.lineNum))
			return false
		}
		d.epochRec.decode(line)
	}

	rec, err := parseEpochRecord(d.epochRec.buf, d.Version)
	if err != nil {
		d.setErr(fmt.Errorf("line %d: %w", epochLineNum, err))
		return false
	}
	if rec.flag > 1 {
		// events must come as initializing records
		d.setErr(fmt.Errorf("%w: line %d: event epoch without initialization", ErrInvalidEpoch, epochLineNum))
		return false
	}

	epo := &rinex.Epoch{Time: rec.time, Flag: rec.flag}

	if !d.scanClock(epo) {
		return false
	}

	for _, satStr := range rec.sats {
		prn, err := rinex.ParsePRN(satStr)
		if err != nil {
			d.Warnings.Add(epochLineNum, fmt.Sprintf("ignored invalid satellite %q", satStr))
			continue
		}

		line, ok := d.readLine()
		if !ok {
			d.setErr(fmt.Errorf("%w: line %d: data for satellite %s", ErrTruncated, d.lineNum, prn))
			return false
		}

		codes, ok := d.obsCodes(prn)
		if !ok {
			d.Warnings.Add(d.lineNum, fmt.Sprintf("no observation types for satellite system %q", prn.Sys.Abbr()))
			continue
		}

		st, ok := d.data[prn]
		if !ok {
			st = newSatState(len(codes))
			d.data[prn] = st
		}

		epo.ObsList = append(epo.ObsList, d.decodeSatLine(line, prn, codes, st))
	}
	epo.NumSat = uint8(len(epo.ObsList))

	d.epo = epo
	return true
}

// scanClock reads the clock line and sets the clock offset and the
// pico-second record of epo.
func (d *Decoder) scanClock(epo *rinex.Epoch) bool {
	line, ok := d.readLine()
	if !ok {
		d.setErr(fmt.Errorf("%w: line %d: clock record", ErrTruncated, d.lineNum))
		return false
	}

	vals := strings.SplitN(line, " ", 2)
	if vals[0] != "" {
		init, order, v, err := parseNumField(vals[0])
		switch {
		case err != nil:
			d.Warnings.Add(d.lineNum, fmt.Sprintf("clock offset: %v", err))
		case init:
			d.clk.initArc(order, v)
			d.clkArc = true
			clk := float64(v) * d.Version.clockUnit()
			epo.ClockOffset = &clk
		case !d.clkArc:
			d.Warnings.Add(d.lineNum, "clock offset without initialization")
			d.clk.initArc(1, v)
			d.clkArc = true
			clk := float64(v) * d.Version.clockUnit()
			epo.ClockOffset = &clk
		default:
			clk := float64(d.clk.apply(v)) * d.Version.clockUnit()
			epo.ClockOffset = &clk
		}
	}

	if d.Version == V31 {
		if len(vals) == 2 {
			d.picoSec.decode(vals[1])
		}
		if s := strings.TrimSpace(string(d.picoSec.buf)); s != "" {
			ps, err := strconv.Atoi(s)
			if err != nil {
				d.Warnings.Add(d.lineNum, fmt.Sprintf("pico-second record %q", s))
			} else {
				epo.PicoSecs = &ps
			}
		}
	}
	return true
}

// decodeSatLine decodes the data line of one satellite: the space
// separated differenced observations followed by the character wise
// differenced LLI and signal strength flags.
func (d *Decoder) decodeSatLine(line string, prn rinex.PRN, codes []rinex.ObsCode, st *satState) rinex.SatObs {
	satObs := rinex.SatObs{Prn: prn, Obss: map[rinex.ObsCode]rinex.Obs{}}

	vals := strings.SplitN(line, " ", len(codes)+1)

	for j, code := range codes {
		if j >= len(vals) || vals[j] == "" {
			// missing observation, the arc state is untouched
			continue
		}

		init, order, v, err := parseNumField(vals[j])
		switch {
		case err != nil:
			d.Warnings.Add(d.lineNum, fmt.Sprintf("sat %s obs %s: %v", prn, code, err))
			continue
		case init:
			st.num[j].initArc(order, v)
			st.hasArc[j] = true
			if d.Version == V1 {
				st.lli[j] = newCharDiff()
				st.ss[j] = newCharDiff()
			}
		case !st.hasArc[j]:
			// a bare value without initialization is taken literally and
			// starts a fresh first order arc
			d.Warnings.Add(d.lineNum, fmt.Sprintf("sat %s obs %s: data without initialization", prn, code))
			st.num[j].initArc(1, v)
			st.hasArc[j] = true
		default:
			v = st.num[j].apply(v)
		}
		satObs.Obss[code] = rinex.Obs{Val: float64(v) * obsUnit}
	}

	// the flag characters, two per observation type
	if len(vals) == len(codes)+1 {
		b := []byte(vals[len(codes)])
		for len(b) < 2*len(codes) {
			b = append(b, ' ')
		}
		for j := range codes {
			st.lli[j].decode(b[2*j])
			st.ss[j].decode(b[2*j+1])
		}
	}
	for j, code := range codes {
		if obs, ok := satObs.Obss[code]; ok {
			obs.LLI = charToFlag(st.lli[j].c)
			obs.SNR = charToFlag(st.ss[j].c)
			satObs.Obss[code] = obs
		}
	}

	return satObs
}

// scanEvent reads a special event epoch: the epoch record announces the
// number of following records, which are passed through verbatim.
func (d *Decoder) scanEvent(line string) bool {
	lay := layouts[d.Version]

	numSkip, err := parseNumSkip(line, d.Version)
	if err != nil {
		d.setErr(fmt.Errorf("line %d: %w", d.lineNum, err))
		return false
	}

	epoLine := line
	if d.Version == V1 {
		epoLine = " " + line[1:]
	}
	epo := &rinex.Epoch{
		Flag:       int8(line[lay.flagPos] - '0'),
		NumSat:     uint8(numSkip),
		EventLines: []string{epoLine},
	}
	if t, err := parseEventTime(line, d.Version); err == nil {
		epo.Time = t
	}

	for i := 0; i < numSkip; i++ {
		rec, ok := d.readLine()
		if !ok {
			d.setErr(fmt.Errorf("%w: line %d: within event records", ErrTruncated, d.lineNum))
			return false
		}
		epo.EventLines = append(epo.EventLines, rec)
	}

	// the differencing state is stale now, the next epoch record must initialize
	d.needInitNext = true

	d.epo = epo
	return true
}

// parseEventTime parses the epoch time of an event record. The time may
// be blank, e.g. for header information events.
func parseEventTime(line string, v Version) (t time.Time, err error) {
	lay := layouts[v]
	if len(line) < lay.timePos+lay.timeLen {
		return t, fmt.Errorf("no epoch time")
	}
	s := line[lay.timePos : lay.timePos+lay.timeLen]
	if strings.TrimSpace(s) == "" {
		return t, fmt.Errorf("no epoch time")
	}
	if v == V1 {
		return rinex.ParseEpochTimev2(s)
	}
	return rinex.ParseEpochTime(s)
}

// obsCodes returns the observation types for the system of prn.
func (d *Decoder) obsCodes(prn rinex.PRN) ([]rinex.ObsCode, bool) {
	sys := prn.Sys
	if d.Version == V1 {
		sys = d.Header.SatSystem
	}
	codes, ok := d.Header.ObsTypes[sys]
	return codes, ok && len(codes) > 0
}

// charToFlag converts an LLI or signal strength character to its numeric value.
func charToFlag(c byte) int8 {
	if c >= '0' && c <= '9' {
		return int8(c - '0')
	}
	return 0
}
