package rinex

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnsskit/gocrinex/pkg/gnss"
)

func TestObsDecoder_readHeader(t *testing.T) {
	const header = `
     3.03           OBSERVATION DATA    M                   RINEX VERSION / TYPE
sbf2rin-12.3.1                          20181106 200225 UTC PGM / RUN BY / DATE
BRUX                                                        MARKER NAME
13101M010                                                   MARKER NUMBER
GEODETIC                                                    MARKER TYPE
ROB                 ROB                                     OBSERVER / AGENCY
3001376             SEPT POLARX4TR      2.9.6               REC # / TYPE / VERS
00464               JAVRINGANT_DM   NONE                    ANT # / TYPE
  4027881.8478   306998.2610  4919498.6554                  APPROX POSITION XYZ
        0.4689        0.0000        0.0010                  ANTENNA: DELTA H/E/N
G   14 C1C L1C S1C C1W S1W C2W L2W S2W C2L L2L S2L C5Q L5Q  SYS / # / OBS TYPES
       S5Q                                                  SYS / # / OBS TYPES
E   12 C1C L1C S1C C5Q L5Q S5Q C7Q L7Q S7Q C8Q L8Q S8Q      SYS / # / OBS TYPES
R   12 C1C L1C S1C C2P L2P S2P C2C L2C S2C C3Q L3Q S3Q      SYS / # / OBS TYPES
C    6 C2I L2I S2I C7I L7I S7I                              SYS / # / OBS TYPES
SEPTENTRIO RECEIVERS OUTPUT ALIGNED CARRIER PHASES.         COMMENT
NO FURTHER PHASE SHIFT APPLIED IN THE RINEX ENCODER.        COMMENT
    30.000                                                  INTERVAL
  2018    11     6    19     0    0.0000000     GPS         TIME OF FIRST OBS
  2018    11     6    19    59   30.0000000     GPS         TIME OF LAST OBS
    43                                                      # OF SATELLITES
DBHZ                                                        SIGNAL STRENGTH UNIT
                                                            END OF HEADER
> 2018 11 06 19 00  0.0000000  0 31`

	assert := assert.New(t)
	dec, err := NewObsDecoder(strings.NewReader(header))
	assert.NoError(err)
	assert.NotNil(dec)

	assert.Equal("O", dec.Header.RINEXType, "RINEX Type")
	assert.Equal(gnss.SysMIXED, dec.Header.SatSystem, "Satellite System")
	assert.Equal("BRUX", dec.Header.MarkerName, "Markername")
	assert.Equal("13101M010", dec.Header.MarkerNumber, "Markernumber")
	assert.Equal("3001376", dec.Header.ReceiverNumber, "ReceiverNumber")
	assert.Equal("SEPT POLARX4TR", dec.Header.ReceiverType, "ReceiverType")
	assert.Equal("2.9.6", dec.Header.ReceiverVersion, "ReceiverVersion")
	assert.Equal("DBHZ", dec.Header.SignalStrengthUnit, "Signal Strength Unit")
	assert.Equal(time.Date(2018, 11, 6, 19, 0, 0, 0, time.UTC), dec.Header.TimeOfFirstObs, "TimeOfFirstObs")
	assert.Equal(time.Date(2018, 11, 6, 19, 59, 30, 0, time.UTC), dec.Header.TimeOfLastObs, "TimeOfLastObs")
	assert.Equal(30.000, dec.Header.Interval, "sampling interval")
	assert.Equal(43, dec.Header.NSatellites, "number of satellites")
	assert.Len(dec.Header.ObsTypes, 4, "number of GNSS")
	assert.Equal(14, len(dec.Header.ObsTypes[gnss.SysGPS]), "number of GPS obs types")
	assert.Equal(ObsCode("S5Q"), dec.Header.ObsTypes[gnss.SysGPS][13], "continued obs types line")
}

func TestObsDecoder_NextEpoch(t *testing.T) {
	const data = `     3.03           OBSERVATION DATA    M                   RINEX VERSION / TYPE
test                test                20181106 200225 UTC PGM / RUN BY / DATE
G    2 C1C L1C                                              SYS / # / OBS TYPES
R    1 C1C                                                  SYS / # / OBS TYPES
                                                            END OF HEADER
> 2018 11 06 19 00  0.0000000  0  2
G03  20000000.500 7 110000000.250
R04  19999999.000
>                              4  1
ANTENNA MOVED                                               COMMENT
> 2018 11 06 19 00 30.0000000  0  1
G03  20000001.125 7
`

	assert := assert.New(t)
	dec, err := NewObsDecoder(strings.NewReader(data))
	require.NoError(t, err)

	var epochs []*Epoch
	for dec.NextEpoch() {
		epochs = append(epochs, dec.Epoch())
	}
	require.NoError(t, dec.Err())
	require.Len(t, epochs, 3)

	epo := epochs[0]
	assert.Equal(time.Date(2018, 11, 6, 19, 0, 0, 0, time.UTC), epo.Time)
	assert.Equal(int8(0), epo.Flag)
	assert.Equal(uint8(2), epo.NumSat)
	assert.Nil(epo.ClockOffset)
	require.Len(t, epo.ObsList, 2)

	g03 := epo.ObsList[0]
	assert.Equal(PRN{Sys: gnss.SysGPS, Num: 3}, g03.Prn)
	assert.Equal(Obs{Val: 20000000.5, SNR: 7}, g03.Obss["C1C"])
	assert.Equal(Obs{Val: 110000000.25}, g03.Obss["L1C"])

	r04 := epo.ObsList[1]
	assert.Equal(Obs{Val: 19999999.0}, r04.Obss["C1C"])

	assert.True(epochs[1].IsEvent())
	assert.Equal(int8(4), epochs[1].Flag)
	require.Len(t, epochs[1].EventLines, 2)
	assert.Contains(epochs[1].EventLines[1], "ANTENNA MOVED")

	assert.Equal(uint8(1), epochs[2].NumSat)
	assert.Equal(Obs{Val: 20000001.125, SNR: 7}, epochs[2].ObsList[0].Obss["C1C"])
}

func TestObsDecoder_truncated(t *testing.T) {
	const data = `     3.03           OBSERVATION DATA    M                   RINEX VERSION / TYPE
G    2 C1C L1C                                              SYS / # / OBS TYPES
                                                            END OF HEADER
> 2018 11 06 19 00  0.0000000  0  2
G03  20000000.500 7 110000000.250
`

	dec, err := NewObsDecoder(strings.NewReader(data))
	require.NoError(t, err)
	assert.False(t, dec.NextEpoch())
	assert.ErrorIs(t, dec.Err(), ErrTruncated)
}

func TestParsePRN(t *testing.T) {
	assert := assert.New(t)

	prn, err := ParsePRN("G12")
	assert.NoError(err)
	assert.Equal(PRN{Sys: gnss.SysGPS, Num: 12}, prn)
	assert.Equal("G12", prn.String())

	prn, err = ParsePRN("R 4")
	assert.NoError(err)
	assert.Equal(PRN{Sys: gnss.SysGLO, Num: 4}, prn)
	assert.Equal("R04", prn.String())

	// RINEX2 writes GPS satellites with a blank system char
	prn, err = ParsePRN(" 31")
	assert.NoError(err)
	assert.Equal(PRN{Sys: gnss.SysGPS, Num: 31}, prn)

	_, err = ParsePRN("X01")
	assert.Error(err)

	_, err = ParsePRN("G00")
	assert.Error(err)
}

func TestDecodeObs(t *testing.T) {
	assert := assert.New(t)

	obs, ok, err := decodeObs("  20000000.500 7", 0)
	assert.NoError(err)
	assert.True(ok)
	assert.Equal(Obs{Val: 20000000.5, LLI: 0, SNR: 7}, obs)

	obs, ok, err = decodeObs(" 110000000.25017", 0)
	assert.NoError(err)
	assert.True(ok)
	assert.Equal(Obs{Val: 110000000.25, LLI: 1, SNR: 7}, obs)

	// power failure epoch flag sets the LLI bit
	obs, _, err = decodeObs("  20000000.500  ", 1)
	assert.NoError(err)
	assert.Equal(int8(1), obs.LLI)

	_, ok, err = decodeObs("                ", 0)
	assert.NoError(err)
	assert.False(ok, "blank field is a missing observation")

	_, _, err = decodeObs("       abc.def  ", 0)
	assert.Error(err)
}

func TestCrx2rnxFilename(t *testing.T) {
	assert := assert.New(t)

	fn, err := Crx2rnxFilename("BRUX00BEL_R_20183101900_01H_30S_MO.crx")
	assert.NoError(err)
	assert.Equal("BRUX00BEL_R_20183101900_01H_30S_MO.rnx", fn)

	fn, err = Crx2rnxFilename("abmf255u.19d")
	assert.NoError(err)
	assert.Equal("abmf255u.19o", fn)

	_, err = Crx2rnxFilename("foo.txt")
	assert.Error(err)
}

func TestRnx2crxFilename(t *testing.T) {
	assert := assert.New(t)

	fn, err := Rnx2crxFilename("BRUX00BEL_R_20183101900_01H_30S_MO.rnx")
	assert.NoError(err)
	assert.Equal("BRUX00BEL_R_20183101900_01H_30S_MO.crx", fn)

	fn, err = Rnx2crxFilename("abmf255u.19o")
	assert.NoError(err)
	assert.Equal("abmf255u.19d", fn)

	_, err = Rnx2crxFilename("foo.txt")
	assert.Error(err)
}

func TestIsHatanakaCompressed(t *testing.T) {
	assert := assert.New(t)
	assert.True(IsHatanakaCompressed("BRUX00BEL_R_20183101900_01H_30S_MO.crx"))
	assert.True(IsHatanakaCompressed("abmf255u.19d"))
	assert.False(IsHatanakaCompressed("BRUX00BEL_R_20183101900_01H_30S_MO.rnx"))
	assert.False(IsHatanakaCompressed("abmf255u.19o"))
}
