// Package rinex provides reading and writing of RINEX observation files.
// Decompression and compression of Hatanaka compressed (Compact RINEX)
// observation streams is provided by the crinex package.
package rinex

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// epochTimeFormat is the time format for the epoch-time in RINEX3 files.
	epochTimeFormat string = "2006  1  2 15  4  5.0000000"

	// epochTimeFormatv2 is the time format for the epoch-time in RINEX2 files.
	epochTimeFormatv2 string = "06  1  2 15  4  5.0000000"
)

// errors
var (
	// ErrNoHeader is returned when reading RINEX data that does not begin with a RINEX Header.
	ErrNoHeader = errors.New("RINEX: no header")

	// ErrTruncated is returned when the stream ends within an epoch record,
	// as opposed to a clean end-of-stream on an epoch boundary.
	ErrTruncated = errors.New("RINEX: unexpected end of stream within epoch")
)

var (
	// Rnx2FileNamePattern is the regex for RINEX2 filenames.
	Rnx2FileNamePattern = regexp.MustCompile(`(([a-z0-9]{4})(\d{3})([a-x0])(\d{2})?\.(\d{2})([domnglqfph]))\.?([a-zA-Z0-9]+)?`)

	// Rnx3FileNamePattern is the regex for RINEX3 filenames.
	Rnx3FileNamePattern = regexp.MustCompile(`((([A-Z0-9]{4})(\d)(\d)([A-Z]{3})_([RSU])_((\d{4})(\d{3})(\d{2})(\d{2}))_(\d{2}[A-Z])_?(\d{2}[CZSMHDU])?_([GREJCSM][MNO]))\.(rnx|crx))\.?([a-zA-Z0-9]+)?`)
)

// ParseEpochTime parses the epoch time of a RINEX3 epoch record.
func ParseEpochTime(s string) (time.Time, error) {
	return time.Parse(epochTimeFormat, s)
}

// ParseEpochTimev2 parses the epoch time of a RINEX2 epoch record with its two digit year.
func ParseEpochTimev2(s string) (time.Time, error) {
	return time.Parse(epochTimeFormatv2, s)
}

// IsHatanakaCompressed returns true if the file given by filename is Hatanaka
// compressed. This is checked by the filenames' extension.
func IsHatanakaCompressed(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == ".crx" || strings.HasSuffix(ext, "d") { // .21d
		return true
	}
	return false
}

// Crx2rnxFilename returns the decompressed filename for a Hatanaka compressed
// RINEX filename, following the usual conventions: .crx -> .rnx and .NNd -> .NNo.
func Crx2rnxFilename(crxFilename string) (string, error) {
	dir, crxFil := filepath.Split(crxFilename)

	rnxFil := ""
	if Rnx2FileNamePattern.MatchString(crxFil) {
		typ := "o"
		if strings.HasSuffix(crxFil, "D") {
			typ = "O"
		}
		rnxFil = Rnx2FileNamePattern.ReplaceAllString(crxFil, "${2}${3}${4}${5}.${6}"+typ)
	} else if Rnx3FileNamePattern.MatchString(crxFil) {
		rnxFil = Rnx3FileNamePattern.ReplaceAllString(crxFil, "${2}.rnx")
	} else {
		return "", fmt.Errorf("crx2rnx: file has no standard RINEX extension: %s", crxFil)
	}

	if rnxFil == "" || rnxFil == crxFil {
		return "", fmt.Errorf("crx2rnx: could not build uncompressed filename for %s", crxFil)
	}
	return filepath.Join(dir, rnxFil), nil
}

// Rnx2crxFilename returns the Hatanaka compressed filename for a plain RINEX
// observation filename: .rnx -> .crx and .NNo -> .NNd.
func Rnx2crxFilename(rnxFilename string) (string, error) {
	dir, rnxFil := filepath.Split(rnxFilename)

	crxFil := ""
	if Rnx2FileNamePattern.MatchString(rnxFil) {
		typ := "d"
		if strings.HasSuffix(rnxFil, "O") {
			typ = "D"
		}
		crxFil = Rnx2FileNamePattern.ReplaceAllString(rnxFil, "${2}${3}${4}${5}.${6}"+typ)
	} else if Rnx3FileNamePattern.MatchString(rnxFil) {
		crxFil = Rnx3FileNamePattern.ReplaceAllString(rnxFil, "${2}.crx")
	} else {
		return "", fmt.Errorf("rnx2crx: file has no standard RINEX extension: %s", rnxFil)
	}

	if crxFil == "" || crxFil == rnxFil {
		return "", fmt.Errorf("rnx2crx: could not build compressed filename for %s", rnxFil)
	}
	return filepath.Join(dir, crxFil), nil
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// parseHeaderDate parses the creation date from the "PGM / RUN BY / DATE"
// header record. Several formats are in the wild.
func parseHeaderDate(date string) (time.Time, error) {
	format := "20060102 150405"
	if strings.Contains(date, "-") {
		format = "02-Jan-06 15:04"
	} else if strings.HasSuffix(date, "UTC") || strings.HasSuffix(date, "LCL") {
		format = "20060102 150405 MST"
		date = strings.Replace(date, "LCL", "UTC", 1)
	}
	return time.Parse(format, date)
}
