package crinex

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gnsskit/gocrinex/pkg/rinex"
)

// Encoder compresses RINEX observation epochs into a Compact RINEX stream.
//
//	enc, err := crinex.NewEncoder(w, hdr, crinex.DefaultConfig())
//	if err != nil { ... }
//	if err := enc.WriteHeader(); err != nil { ... }
//	for _, epo := range epochs {
//	    if err := enc.WriteEpoch(epo); err != nil { ... }
//	}
//	if err := enc.Flush(); err != nil { ... }
//
// The format version is derived from the RINEX version of the header.
type Encoder struct {
	// Header is the RINEX header to embed in the stream.
	Header rinex.ObsHeader

	// Version is the Compact RINEX format version being written.
	Version Version

	// RawHeader optionally holds the verbatim RINEX header lines to
	// embed, including the "END OF HEADER" record. If nil, the header
	// is rendered from Header. Use this to preserve unknown header
	// records when converting existing files.
	RawHeader []string

	cfg Config
	w   *bufio.Writer
	err error

	needInit bool
	epochRec textDiff
	clk      numDiff
	clkArc   bool
	picoSec  textDiff
	data     map[rinex.PRN]*satState
}

// NewEncoder creates an encoder that writes a Compact RINEX stream to w.
// WriteHeader must be called before the first epoch is written.
func NewEncoder(w io.Writer, hdr rinex.ObsHeader, cfg Config) (*Encoder, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if hdr.RINEXVersion == 0 {
		return nil, fmt.Errorf("crinex: unknown RINEX version")
	}
	return &Encoder{
		Header:   hdr,
		Version:  versionForRINEX(hdr.RINEXVersion),
		cfg:      cfg,
		w:        bufio.NewWriter(w),
		needInit: true,
		data:     map[rinex.PRN]*satState{},
	}, nil
}

// Flush writes any buffered data to the underlying writer.
func (e *Encoder) Flush() error {
	if e.err != nil {
		return e.err
	}
	return e.w.Flush()
}

func (e *Encoder) writeln(line string) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintln(e.w, line)
}

// WriteHeader writes the Compact RINEX header records followed by the
// embedded RINEX header.
func (e *Encoder) WriteHeader() error {
	e.writeln(fmt.Sprintf("%-20s%-40s%s", e.Version, crxMagic, labelVersType))
	date := time.Now().UTC().Format("02-Jan-06 15:04")
	e.writeln(fmt.Sprintf("%-20.20s%-20.20s%-20.20s%s", e.cfg.Pgm, e.cfg.RunBy, date, labelProgDate))

	if e.RawHeader != nil {
		for _, line := range e.RawHeader {
			e.writeln(line)
		}
		return e.err
	}

	wr := rinex.NewObsWriter(e.w, e.Header)
	if err := wr.WriteHeader(); err != nil {
		e.err = err
		return e.err
	}
	if err := wr.Flush(); err != nil {
		e.err = err
	}
	return e.err
}

// Reset forces a full initialization at the next epoch: the epoch record
// is written in full and all differencing arcs start over.
func (e *Encoder) Reset() { e.needInit = true }

// ResetArc forces a fresh differencing arc for one observation of one
// satellite at the next epoch, e.g. after a detected cycle slip.
func (e *Encoder) ResetArc(prn rinex.PRN, code rinex.ObsCode) {
	st, ok := e.data[prn]
	if !ok {
		return
	}
	for j, c := range e.obsCodes(prn) {
		if c == code && j < len(st.hasArc) {
			st.hasArc[j] = false
		}
	}
}

// WriteEpoch compresses and writes one observation epoch. Special event
// epochs (flag >= 2) are passed through verbatim from their EventLines
// and force a full initialization at the following epoch.
func (e *Encoder) WriteEpoch(epo *rinex.Epoch) error {
	if e.err != nil {
		return e.err
	}
	if epo.IsEvent() {
		return e.writeEvent(epo)
	}

	rec := buildEpochRecord(e.Version, epo)
	if e.needInit {
		e.writeln(rec)
		e.epochRec.reset(rec)
		e.data = map[rinex.PRN]*satState{}
		e.clkArc = false
		e.needInit = false
	} else {
		e.writeln(e.epochRec.encode(rec))
	}

	e.writeClock(epo)

	for i := range epo.ObsList {
		e.writeSatLine(&epo.ObsList[i])
	}
	return e.err
}

func (e *Encoder) writeEvent(epo *rinex.Epoch) error {
	lay := layouts[e.Version]

	var line string
	rest := epo.EventLines
	if len(rest) > 0 {
		line, rest = rest[0], rest[1:]
	}
	if line == "" {
		// synthesize a minimal event record with a blank epoch time
		line = fmt.Sprintf("%*s%d%3d", lay.flagPos, "", epo.Flag, len(rest))
	}
	line = string(lay.initPrefix) + line[1:]
	e.writeln(strings.TrimRight(line, " "))

	for _, rec := range rest {
		e.writeln(rec)
	}

	e.needInit = true
	return e.err
}

// writeClock writes the clock line holding the differenced receiver
// clock offset and, for version 3.1, the pico-second record.
func (e *Encoder) writeClock(epo *rinex.Epoch) {
	var line string

	if epo.ClockOffset != nil {
		v := int64(math.Round(*epo.ClockOffset / e.Version.clockUnit()))
		if !e.clkArc {
			e.clk.initArc(e.cfg.MaxOrder, v)
			e.clkArc = true
			line = fmt.Sprintf("%d&%d", e.cfg.MaxOrder, v)
		} else {
			line = strconv.FormatInt(e.clk.encode(v), 10)
		}
	}

	if e.Version == V31 {
		next := ""
		if epo.PicoSecs != nil {
			next = fmt.Sprintf("%5d", *epo.PicoSecs)
		}
		if diff := e.picoSec.encode(next); diff != "" {
			line += " " + diff
		}
	}

	e.writeln(line)
}

// writeSatLine writes the data line of one satellite: the space
// separated differenced observations followed by the flag diff chunk.
func (e *Encoder) writeSatLine(satObs *rinex.SatObs) {
	codes := e.obsCodes(satObs.Prn)
	if len(codes) == 0 {
		e.err = fmt.Errorf("crinex: no observation types for satellite system %q", satObs.Prn.Sys.Abbr())
		return
	}

	st, ok := e.data[satObs.Prn]
	if !ok {
		st = newSatState(len(codes))
		e.data[satObs.Prn] = st
	}

	fields := make([]string, len(codes))
	flags := make([]byte, 2*len(codes))

	for j, code := range codes {
		obs, ok := satObs.Obss[code]
		if !ok {
			// missing observation: empty field, flags untouched
			st.hasArc[j] = false
			flags[2*j] = ' '
			flags[2*j+1] = ' '
			continue
		}

		v := int64(math.Round(obs.Val / obsUnit))
		if !st.hasArc[j] {
			st.num[j].initArc(e.cfg.MaxOrder, v)
			st.hasArc[j] = true
			fields[j] = fmt.Sprintf("%d&%d", e.cfg.MaxOrder, v)
			if e.Version == V1 {
				st.lli[j] = newCharDiff()
				st.ss[j] = newCharDiff()
			}
		} else {
			fields[j] = strconv.FormatInt(st.num[j].encode(v), 10)
		}

		flags[2*j] = st.lli[j].encode(flagToChar(obs.LLI))
		flags[2*j+1] = st.ss[j].encode(flagToChar(obs.SNR))
	}

	line := strings.Join(fields, " ") + " " + string(flags)
	e.writeln(strings.TrimRight(line, " "))
}

// obsCodes returns the observation types for the system of prn.
func (e *Encoder) obsCodes(prn rinex.PRN) []rinex.ObsCode {
	sys := prn.Sys
	if e.Version == V1 {
		sys = e.Header.SatSystem
	}
	return e.Header.ObsTypes[sys]
}

// flagToChar converts a numeric LLI or signal strength value to its
// character on the wire. Zero is written blank.
func flagToChar(f int8) byte {
	if f == 0 {
		return ' '
	}
	return '0' + byte(f)
}
