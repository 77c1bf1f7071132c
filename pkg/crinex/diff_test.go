package crinex

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// The classical order 3 example: a pseudorange growing quadratically.
// During ramp up the stream carries the successive differences, in the
// steady state only the third order difference remains.
func TestNumDiffEncode(t *testing.T) {
	assert := assert.New(t)

	values := []int64{20000000000, 20000000003, 20000000009, 20000000018, 20000000030}

	var d numDiff
	d.initArc(3, values[0])

	var diffs []int64
	for _, v := range values[1:] {
		diffs = append(diffs, d.encode(v))
	}
	assert.Equal([]int64{3, 3, 0, 0}, diffs)
}

func TestNumDiffRoundTrip(t *testing.T) {
	values := []int64{512345678901, 512345679904, 512345681910, 512345683917, 512345685925, 512345687934, 512345689942}

	for order := 1; order <= 5; order++ {
		t.Run(fmt.Sprintf("order-%d", order), func(t *testing.T) {
			var enc, dec numDiff
			enc.initArc(order, values[0])
			dec.initArc(order, values[0])

			for _, v := range values[1:] {
				x := enc.encode(v)
				assert.Equal(t, v, dec.apply(x))
			}
		})
	}
}

func TestNumDiffRoundTripNegative(t *testing.T) {
	assert := assert.New(t)

	values := []int64{-1500000, -1499970, -1500080, 0, 42, -7}

	var enc, dec numDiff
	enc.initArc(3, values[0])
	dec.initArc(3, values[0])
	for _, v := range values[1:] {
		assert.Equal(v, dec.apply(enc.encode(v)))
	}
}

func TestParseNumField(t *testing.T) {
	assert := assert.New(t)

	init, order, v, err := parseNumField("3&20000000000")
	assert.NoError(err)
	assert.True(init)
	assert.Equal(3, order)
	assert.Equal(int64(20000000000), v)

	init, _, v, err = parseNumField("-42")
	assert.NoError(err)
	assert.False(init)
	assert.Equal(int64(-42), v)

	_, _, _, err = parseNumField("x&1")
	assert.Error(err)

	_, _, _, err = parseNumField("1.5")
	assert.Error(err)
}

func TestTextDiffDecode(t *testing.T) {
	assert := assert.New(t)

	var td textDiff
	td.reset("> 2023 01 01 00 00  0.0000000  0  2      G01G02")

	// only the seconds change
	td.decode("                   3")
	assert.Equal("> 2023 01 01 00 00 30.0000000  0  2      G01G02", string(td.buf))

	// '&' clears a char to space
	td.decode("                  1&")
	assert.Equal("> 2023 01 01 00 001 0.0000000  0  2      G01G02", string(td.buf))
}

func TestTextDiffEncode(t *testing.T) {
	assert := assert.New(t)

	var td textDiff
	td.reset("abc de")

	assert.Equal("", td.encode("abc de"), "equal strings give an empty diff")
	assert.Equal("  x", td.encode("abx de"))
	assert.Equal("    &&", td.encode("abx"), "a shrinking tail is cleared with '&'")
	assert.Equal("     f", td.encode("abx  f"), "growing past the stored end")
}

func TestTextDiffRoundTrip(t *testing.T) {
	assert := assert.New(t)

	texts := []string{
		"> 2023 01 01 00 00  0.0000000  0  2      G01G02",
		"> 2023 01 01 00 00 30.0000000  0  2      G01G02",
		"> 2023 01 01 00 01  0.0000000  0  3      G01G02R11",
		"> 2023 01 01 00 01 30.0000000  0  1      G07",
	}

	var enc, dec textDiff
	enc.reset(texts[0])
	dec.reset(texts[0])
	for _, s := range texts[1:] {
		dec.decode(enc.encode(s))

		// the decoded text may carry trailing spaces from a longer predecessor
		assert.Equal(s, string(dec.buf[:len(s)]))
		for _, c := range dec.buf[len(s):] {
			assert.Equal(byte(' '), c)
		}
	}
}

func TestCharDiff(t *testing.T) {
	assert := assert.New(t)

	enc, dec := newCharDiff(), newCharDiff()

	flags := []byte{' ', '1', '1', '7', ' ', ' ', '2'}
	for _, f := range flags {
		assert.Equal(f, dec.decode(enc.encode(f)))
	}
}
