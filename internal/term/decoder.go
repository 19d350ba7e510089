package term

import "unicode/utf8"

// DefaultMaxRunBytes bounds how many bytes a single malformed UTF-8 run may
// buffer before it is dropped.
const DefaultMaxRunBytes = utf8.UTFMax

// Decoder turns the byte stream read from the pty master into runes, one
// byte at a time. Malformed runs are dropped without surfacing an error and
// decoding resumes with the next byte.
type Decoder struct {
	buf       [8]byte
	n         int
	want      int
	maxRun    int
	discarded int
}

func NewDecoder(maxRun int) *Decoder {
	if maxRun <= 0 || maxRun > 8 {
		maxRun = DefaultMaxRunBytes
	}
	return &Decoder{maxRun: maxRun}
}

// Feed consumes one byte. It reports a rune once a complete, valid
// character has been assembled.
func (d *Decoder) Feed(b byte) (rune, bool) {
	if d.n == 0 {
		if b < utf8.RuneSelf {
			return rune(b), true
		}
		d.want = 1 + leadingContinuations(b)
		if d.want > d.maxRun {
			d.drop(1)
			return 0, false
		}
	}

	d.buf[d.n] = b
	d.n++
	if d.n < d.want {
		return 0, false
	}

	r, size := utf8.DecodeRune(d.buf[:d.n])
	if r == utf8.RuneError && size <= 1 {
		d.drop(d.n)
		return 0, false
	}
	d.reset()
	return r, true
}

// Pending reports the number of bytes buffered for an incomplete character.
func (d *Decoder) Pending() int { return d.n }

// Discarded reports how many bytes were dropped as malformed so far.
func (d *Decoder) Discarded() int { return d.discarded }

func (d *Decoder) drop(n int) {
	d.discarded += n
	d.reset()
}

func (d *Decoder) reset() {
	d.n = 0
	d.want = 0
}

// leadingContinuations counts the 1-bits following the mandatory leading 1
// of a multi-byte lead byte, which is the number of continuation bytes it
// announces. A stray continuation byte (10xxxxxx) announces none.
func leadingContinuations(b byte) int {
	count := 0
	for mask := byte(0x40); mask != 0 && b&mask != 0; mask >>= 1 {
		count++
	}
	return count
}
