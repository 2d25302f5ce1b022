package receipt

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

const (
	esc = 0x1B
	gs  = 0x1D
	lf  = 0x0A
)

const (
	alignLeft   = 0
	alignCenter = 1
)

// document accumulates an ESC/POS byte stream and a plain-text preview of
// the same receipt.
type document struct {
	buf     bytes.Buffer
	preview []string
	width   int
}

func newDocument(width int) *document {
	if width <= 0 {
		width = 48
	}
	d := &document{width: width}
	d.buf.Write([]byte{esc, '@'})
	return d
}

func (d *document) align(a byte) *document {
	d.buf.Write([]byte{esc, 'a', a})
	return d
}

func (d *document) bold(on bool) *document {
	var flag byte
	if on {
		flag = 1
	}
	d.buf.Write([]byte{esc, 'E', flag})
	return d
}

func (d *document) line(s string) *document {
	d.buf.WriteString(s)
	d.buf.WriteByte(lf)
	d.preview = append(d.preview, s)
	return d
}

func (d *document) separator(ch string) *document {
	return d.line(strings.Repeat(ch, d.width))
}

// pair prints key on the left and value flush right.
func (d *document) pair(key, value string) *document {
	gap := d.width - utf8.RuneCountInString(key) - utf8.RuneCountInString(value)
	if gap < 1 {
		gap = 1
	}
	return d.line(key + strings.Repeat(" ", gap) + value)
}

func (d *document) cut() *document {
	d.buf.Write([]byte{lf, lf, lf})
	d.buf.Write([]byte{gs, 'V', 'A', 0x10})
	return d
}

func (d *document) bytes() []byte {
	return d.buf.Bytes()
}

func (d *document) text() string {
	return strings.Join(d.preview, "\n")
}
