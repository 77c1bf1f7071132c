package gnss

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSystem(t *testing.T) {
	assert := assert.New(t)

	sys := SysGAL
	assert.Equal("GAL", sys.String())
	assert.Equal("E", sys.Abbr())

	sys, ok := ParseSystem("R")
	assert.True(ok)
	assert.Equal(SysGLO, sys)

	// blank means GPS in RINEX-2 observation records
	sys, ok = ParseSystem(" ")
	assert.True(ok)
	assert.Equal(SysGPS, sys)

	_, ok = ParseSystem("X")
	assert.False(ok)
}

func TestSystems(t *testing.T) {
	syss := Systems{SysGPS, SysGLO, SysGAL}
	assert.Equal(t, "GPS+GLO+GAL", syss.String())
}
