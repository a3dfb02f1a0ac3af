package render

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/usestring/aptrace/internal/resolve"
)

const dumpSeparator = "--------------------------------------------"

// dumpRenderer prints a header line per packet followed by the payload.
type dumpRenderer struct {
	format Format
	loc    *time.Location
	w      *bufio.Writer
}

func newDump(f Format, opts Options, sink io.Writer) *dumpRenderer {
	return &dumpRenderer{format: f, loc: opts.Location, w: bufio.NewWriter(sink)}
}

func (d *dumpRenderer) Begin(info StreamInfo) error {
	_, err := fmt.Fprintf(d.w, "Time:  %s\n", info.Header.Time().In(d.loc).Format(time.ANSIC))
	return err
}

func (d *dumpRenderer) Emit(e Emission) error {
	fmt.Fprintf(d.w, "%s  -->  %s (%d bytes)\n", e.Src, e.Dst, len(e.Payload))

	switch d.format {
	case FormatHex:
		d.w.WriteString(spacedHex(e.Payload))
	case FormatRepr:
		d.w.WriteString(resolve.Quote(e.Payload))
	default:
		d.w.Write(e.Payload)
	}
	d.w.WriteByte('\n')

	_, err := d.w.WriteString(dumpSeparator + "\n")
	return err
}

func (d *dumpRenderer) End() error {
	return d.w.Flush()
}

// spacedHex renders b as lowercase hex pairs separated by single spaces.
func spacedHex(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	enc := hex.EncodeToString(b)
	out := make([]byte, 0, len(enc)+len(b)-1)
	for i := 0; i < len(enc); i += 2 {
		if i > 0 {
			out = append(out, ' ')
		}
		out = append(out, enc[i], enc[i+1])
	}
	return string(out)
}
