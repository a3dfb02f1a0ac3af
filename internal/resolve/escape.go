package resolve

import (
	"bytes"
	"strings"
)

const hexDigits = "0123456789abcdef"

// Escape renders b on a single printable line. Printable ASCII is kept,
// backslash, tab, newline and carriage return get their usual escapes and
// every other byte becomes \xNN.
//
// The output is what a repr of the bytes would print between its quotes:
// a single quote is escaped unless b holds single quotes but no double
// quotes. Search front ends parse the \xNN form back, so keep it stable.
func Escape(b []byte) string {
	quote := byte('\'')
	if bytes.IndexByte(b, '\'') >= 0 && bytes.IndexByte(b, '"') < 0 {
		quote = '"'
	}

	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		switch {
		case c == quote || c == '\\':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		case c == '\t':
			sb.WriteString(`\t`)
		case c == '\n':
			sb.WriteString(`\n`)
		case c == '\r':
			sb.WriteString(`\r`)
		case c < 0x20 || c >= 0x7f:
			sb.WriteString(`\x`)
			sb.WriteByte(hexDigits[c>>4])
			sb.WriteByte(hexDigits[c&0x0f])
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// Quote is Escape wrapped in the quote character a repr would choose.
func Quote(b []byte) string {
	q := "'"
	if bytes.IndexByte(b, '\'') >= 0 && bytes.IndexByte(b, '"') < 0 {
		q = `"`
	}
	return q + Escape(b) + q
}
