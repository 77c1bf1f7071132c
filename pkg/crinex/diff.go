package crinex

import (
	"fmt"
	"strconv"
)

// numDiff holds the differencing state for one numeric stream, i.e. one
// observation of one satellite, or the receiver clock offset.
//
// ref is the latest reconstructed value, diffs the chain of differenced
// values up to the order given at arc initialization.
//
// The update algorithm follows the Hatanaka scheme. With order 3 the
// stream carries v1, d2, dd3, ddd4, ddd5, ... where d, dd, ddd denote
// the successive difference orders. After epoch 4 the state holds
// ref = v4 and diffs = [d2, dd3, ddd4]. The incoming ddd5 is appended,
// the chain collapsed back to length 3 and summed up pairwise until a
// single first order difference d5 remains, which yields v5 = v4 + d5.
type numDiff struct {
	order int
	ref   int64
	diffs []int64
}

// initArc resets the stream to a fresh arc with the given order and start value.
func (d *numDiff) initArc(order int, v int64) {
	d.order = order
	d.ref = v
	d.diffs = d.diffs[:0]
}

// apply feeds the next differenced value x and returns the reconstructed value.
func (d *numDiff) apply(x int64) int64 {
	d.diffs = append(d.diffs, x)

	if len(d.diffs) > d.order {
		for i := d.order; i > 1; i-- {
			d.diffs[i-1] += d.diffs[i-2]
		}
		d.diffs = d.diffs[1:]
	}

	dv := make([]int64, len(d.diffs))
	copy(dv, d.diffs)
	for len(dv) > 1 {
		dv = integ(dv)
	}
	d.ref += dv[0]

	return d.ref
}

// predict returns the value apply(0) would reconstruct, without changing
// the state. Since the reconstruction is linear with coefficient one in
// the incoming difference, apply(v-predict()) restores exactly v.
func (d *numDiff) predict() int64 {
	n := len(d.diffs) + 1
	dv := make([]int64, 0, n)
	dv = append(dv, d.diffs...)
	dv = append(dv, 0)

	if n > d.order {
		for i := d.order; i > 1; i-- {
			dv[i-1] += dv[i-2]
		}
		dv = dv[1:]
	}
	for len(dv) > 1 {
		dv = integ(dv)
	}
	return d.ref + dv[0]
}

// encode returns the differenced value to store for v and advances the state.
func (d *numDiff) encode(v int64) int64 {
	x := v - d.predict()
	d.apply(x)
	return x
}

// integ sums up neighbouring elements, reducing the difference order by one.
func integ(d []int64) []int64 {
	m := len(d)
	a := make([]int64, m-1)
	for i := m - 1; i > 0; i-- {
		a[i-1] = d[i] + d[i-1]
	}
	return a
}

// parseNumField parses one numeric field of a data or clock line.
// An initialization field has the form "N&value" with the differencing
// order N, a plain field holds the next differenced value.
func parseNumField(s string) (init bool, order int, v int64, err error) {
	if len(s) > 2 && s[1] == '&' {
		order = int(s[0] - '0')
		if order < 1 || order > 9 {
			return false, 0, 0, fmt.Errorf("invalid differencing order in field %q", s)
		}
		v, err = strconv.ParseInt(s[2:], 10, 64)
		if err != nil {
			return false, 0, 0, fmt.Errorf("invalid initialization field %q", s)
		}
		return true, order, v, nil
	}

	v, err = strconv.ParseInt(s, 10, 64)
	if err != nil {
		return false, 0, 0, fmt.Errorf("invalid data field %q", s)
	}
	return false, 0, v, nil
}

// textDiff holds the running text for one character wise differenced
// record, i.e. the epoch record or the pico-second record.
type textDiff struct {
	buf []byte
}

// reset replaces the text with s, starting a fresh record.
func (t *textDiff) reset(s string) {
	t.buf = append(t.buf[:0], s...)
}

// decode applies a diff string: a space keeps the stored character, '&'
// clears it to a space and any other character overwrites it. The stored
// text grows as needed, new positions start out as spaces.
func (t *textDiff) decode(s string) {
	for len(t.buf) < len(s) {
		t.buf = append(t.buf, ' ')
	}
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ':
		case '&':
			t.buf[i] = ' '
		default:
			t.buf[i] = s[i]
		}
	}
}

// encode returns the diff string that turns the stored text into s and
// updates the stored text. Positions beyond the end of s that still hold
// non-space characters are cleared with '&'. Trailing spaces of the diff
// are trimmed, they mean "no change" on the decoding side.
func (t *textDiff) encode(s string) string {
	n := len(s)
	if len(t.buf) > n {
		n = len(t.buf)
	}

	diff := make([]byte, n)
	for i := 0; i < n; i++ {
		var prev, next byte = ' ', ' '
		if i < len(t.buf) {
			prev = t.buf[i]
		}
		if i < len(s) {
			next = s[i]
		}

		switch {
		case next == prev:
			diff[i] = ' '
		case next == ' ':
			diff[i] = '&'
		default:
			diff[i] = next
		}
	}

	t.reset(s)

	for n > 0 && diff[n-1] == ' ' {
		n--
	}
	return string(diff[:n])
}

// charDiff is the single character variant of textDiff used for the
// LLI and signal strength flags of one observation.
type charDiff struct {
	c byte
}

func newCharDiff() charDiff { return charDiff{c: ' '} }

// decode applies one diff character and returns the current flag.
func (c *charDiff) decode(d byte) byte {
	switch d {
	case ' ':
	case '&':
		c.c = ' '
	default:
		c.c = d
	}
	return c.c
}

// encode returns the diff character that turns the stored flag into next.
func (c *charDiff) encode(next byte) byte {
	prev := c.c
	c.c = next
	switch {
	case next == prev:
		return ' '
	case next == ' ':
		return '&'
	default:
		return next
	}
}
