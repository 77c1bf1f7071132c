package rinex

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gnsskit/gocrinex/pkg/gnss"
)

// ObsWriter writes RINEX observation headers and epochs in the plain,
// uncompressed text form. It is the counterpart of ObsDecoder.
type ObsWriter struct {
	Header ObsHeader
	w      *bufio.Writer
	err    error
}

// NewObsWriter returns a writer for RINEX observation data with the given header.
// WriteHeader must be called before the first epoch is written.
func NewObsWriter(w io.Writer, hdr ObsHeader) *ObsWriter {
	return &ObsWriter{Header: hdr, w: bufio.NewWriter(w)}
}

// Flush writes any buffered data to the underlying writer.
func (wr *ObsWriter) Flush() error {
	if wr.err != nil {
		return wr.err
	}
	return wr.w.Flush()
}

func (wr *ObsWriter) writeln(body, label string) {
	if wr.err != nil {
		return
	}
	_, wr.err = fmt.Fprintf(wr.w, "%-60.60s%s\n", body, label)
}

// WriteHeader writes the RINEX observation header.
func (wr *ObsWriter) WriteHeader() error {
	hdr := &wr.Header
	if hdr.RINEXVersion == 0 {
		return fmt.Errorf("rinex: write header: unknown RINEX version")
	}

	sysAbbr := hdr.SatSystem.Abbr()
	wr.writeln(fmt.Sprintf("%9.2f%11s%-20s%-20s", hdr.RINEXVersion, "", "OBSERVATION DATA", sysAbbr), "RINEX VERSION / TYPE")

	date := hdr.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}
	wr.writeln(fmt.Sprintf("%-20.20s%-20.20s%-20.20s", hdr.Pgm, hdr.RunBy, date.Format("20060102 150405 UTC")), "PGM / RUN BY / DATE")

	for _, c := range hdr.Comments {
		wr.writeln(c, "COMMENT")
	}

	if hdr.MarkerName != "" {
		wr.writeln(hdr.MarkerName, "MARKER NAME")
	}
	if hdr.MarkerNumber != "" {
		wr.writeln(hdr.MarkerNumber, "MARKER NUMBER")
	}
	if hdr.MarkerType != "" {
		wr.writeln(fmt.Sprintf("%20s%-40s", "", hdr.MarkerType), "MARKER TYPE")
	}
	if hdr.Observer != "" || hdr.Agency != "" {
		wr.writeln(fmt.Sprintf("%-20.20s%-40.40s", hdr.Observer, hdr.Agency), "OBSERVER / AGENCY")
	}
	if hdr.ReceiverType != "" {
		wr.writeln(fmt.Sprintf("%-20.20s%-20.20s%-20.20s", hdr.ReceiverNumber, hdr.ReceiverType, hdr.ReceiverVersion), "REC # / TYPE / VERS")
	}
	if hdr.AntennaType != "" {
		wr.writeln(fmt.Sprintf("%-20.20s%-20.20s", hdr.AntennaNumber, hdr.AntennaType), "ANT # / TYPE")
	}
	if hdr.Position != (Coord{}) {
		wr.writeln(fmt.Sprintf("%14.4f%14.4f%14.4f", hdr.Position.X, hdr.Position.Y, hdr.Position.Z), "APPROX POSITION XYZ")
	}
	wr.writeln(fmt.Sprintf("%14.4f%14.4f%14.4f", hdr.AntennaDelta.Up, hdr.AntennaDelta.E, hdr.AntennaDelta.N), "ANTENNA: DELTA H/E/N")

	if hdr.RINEXVersion >= 3 {
		for _, sys := range orderedSystems(hdr.ObsTypes) {
			codes := hdr.ObsTypes[sys]
			body := fmt.Sprintf("%1s  %3d", sys.Abbr(), len(codes))
			for i, code := range codes {
				if i > 0 && i%13 == 0 {
					wr.writeln(body, "SYS / # / OBS TYPES")
					body = fmt.Sprintf("%6s", "")
				}
				body += fmt.Sprintf(" %3s", code)
			}
			wr.writeln(body, "SYS / # / OBS TYPES")
		}
	} else {
		codes := hdr.ObsTypes[hdr.SatSystem]
		body := fmt.Sprintf("%6d", len(codes))
		for i, code := range codes {
			if i > 0 && i%9 == 0 {
				wr.writeln(body, "# / TYPES OF OBSERV")
				body = fmt.Sprintf("%6s", "")
			}
			body += fmt.Sprintf("%6s", code)
		}
		wr.writeln(body, "# / TYPES OF OBSERV")
	}

	if hdr.SignalStrengthUnit != "" {
		wr.writeln(fmt.Sprintf("%-20.20s", hdr.SignalStrengthUnit), "SIGNAL STRENGTH UNIT")
	}
	if hdr.Interval != 0 {
		wr.writeln(fmt.Sprintf("%10.3f", hdr.Interval), "INTERVAL")
	}
	if !hdr.TimeOfFirstObs.IsZero() {
		wr.writeln(formatHeaderTime(hdr.TimeOfFirstObs), "TIME OF FIRST OBS")
	}
	if !hdr.TimeOfLastObs.IsZero() {
		wr.writeln(formatHeaderTime(hdr.TimeOfLastObs), "TIME OF LAST OBS")
	}
	if hdr.LeapSeconds != 0 {
		wr.writeln(fmt.Sprintf("%6d", hdr.LeapSeconds), "LEAP SECONDS")
	}
	if hdr.NSatellites != 0 {
		wr.writeln(fmt.Sprintf("%6d", hdr.NSatellites), "# OF SATELLITES")
	}
	wr.writeln("", "END OF HEADER")

	return wr.err
}

// WriteEpoch writes one observation epoch. Special event epochs (flag >= 2)
// are written verbatim from their EventLines.
func (wr *ObsWriter) WriteEpoch(epo *Epoch) error {
	if wr.err != nil {
		return wr.err
	}
	if epo.IsEvent() {
		for _, line := range epo.EventLines {
			fmt.Fprintln(wr.w, line)
		}
		return wr.err
	}
	if wr.Header.RINEXVersion < 3 {
		return wr.writeEpochv2(epo)
	}
	return wr.writeEpochv3(epo)
}

func (wr *ObsWriter) writeEpochv3(epo *Epoch) error {
	line := fmt.Sprintf("> %s  %d%3d", FormatEpochTime(epo.Time), epo.Flag, len(epo.ObsList))

	switch {
	case epo.ClockOffset != nil && epo.PicoSecs != nil:
		line = fmt.Sprintf("%-35.35s      %15.12f %5d", line, *epo.ClockOffset, *epo.PicoSecs)
	case epo.ClockOffset != nil:
		line = fmt.Sprintf("%-35.35s      %15.12f", line, *epo.ClockOffset)
	case epo.PicoSecs != nil:
		line = fmt.Sprintf("%-35.35s%22s%5d", line, "", *epo.PicoSecs)
	}
	fmt.Fprintln(wr.w, line)

	for _, satObs := range epo.ObsList {
		var sb strings.Builder
		sb.WriteString(satObs.Prn.String())
		for _, code := range wr.Header.ObsTypes[satObs.Prn.Sys] {
			if obs, ok := satObs.Obss[code]; ok {
				sb.WriteString(formatObs(obs))
			} else {
				sb.WriteString(strings.Repeat(" ", 16))
			}
		}
		fmt.Fprintln(wr.w, strings.TrimRight(sb.String(), " "))
	}
	return wr.err
}

func (wr *ObsWriter) writeEpochv2(epo *Epoch) error {
	numSat := len(epo.ObsList)

	// The first line carries up to 12 satellites and the clock offset at
	// cols 69-80, further satellites follow on continuation lines.
	line := fmt.Sprintf(" %s  %d%3d", FormatEpochTimev2(epo.Time), epo.Flag, numSat)
	for i := 0; i < numSat && i < 12; i++ {
		line += epo.ObsList[i].Prn.String()
	}
	if epo.ClockOffset != nil {
		line = fmt.Sprintf("%-68.68s%12.9f", line, *epo.ClockOffset)
	}
	fmt.Fprintln(wr.w, strings.TrimRight(line, " "))

	for i := 12; i < numSat; i += 12 {
		line = strings.Repeat(" ", 32)
		for j := i; j < numSat && j < i+12; j++ {
			line += epo.ObsList[j].Prn.String()
		}
		fmt.Fprintln(wr.w, strings.TrimRight(line, " "))
	}

	obsTypes := wr.Header.ObsTypes[wr.Header.SatSystem]
	for _, satObs := range epo.ObsList {
		var sb strings.Builder
		for i, code := range obsTypes {
			if obs, ok := satObs.Obss[code]; ok {
				sb.WriteString(formatObs(obs))
			} else {
				sb.WriteString(strings.Repeat(" ", 16))
			}
			if i == len(obsTypes)-1 || (i+1)%5 == 0 {
				fmt.Fprintln(wr.w, strings.TrimRight(sb.String(), " "))
				sb.Reset()
			}
		}
	}
	return wr.err
}

// formatObs renders one observation in the fixed 16-column form:
// F14.3 value, LLI and signal strength chars. A zero flag is written blank.
func formatObs(obs Obs) string {
	return fmt.Sprintf("%14.3f%c%c", obs.Val, flagChar(obs.LLI), flagChar(obs.SNR))
}

func flagChar(i int8) byte {
	if i == 0 {
		return ' '
	}
	return '0' + byte(i)
}

// FormatEpochTime renders the 27 char epoch time of RINEX3 epoch lines.
func FormatEpochTime(t time.Time) string {
	sec := float64(t.Second()) + float64(t.Nanosecond())/1e9
	return fmt.Sprintf("%4d %02d %02d %02d %02d %10.7f", t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), sec)
}

// FormatEpochTimev2 renders the 25 char epoch time of RINEX2 epoch lines.
func FormatEpochTimev2(t time.Time) string {
	sec := float64(t.Second()) + float64(t.Nanosecond())/1e9
	return fmt.Sprintf("%02d %2d %2d %2d %2d %10.7f", t.Year()%100, int(t.Month()), t.Day(), t.Hour(), t.Minute(), sec)
}

// formatHeaderTime renders the "TIME OF FIRST OBS" body.
func formatHeaderTime(t time.Time) string {
	sec := float64(t.Second()) + float64(t.Nanosecond())/1e9
	return fmt.Sprintf("%6d%6d%6d%6d%6d%13.7f%5s%3s", t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), sec, "", "GPS")
}

// orderedSystems returns the map keys in stable System order.
func orderedSystems(obsTypes map[gnss.System][]ObsCode) []gnss.System {
	syss := make([]gnss.System, 0, len(obsTypes))
	for sys := gnss.SysGPS; sys <= gnss.SysMIXED; sys++ {
		if _, ok := obsTypes[sys]; ok {
			syss = append(syss, sys)
		}
	}
	return syss
}
