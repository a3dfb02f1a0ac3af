package render

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// defaultSnaplen is used when the source capture does not report one.
const defaultSnaplen = 262144

type frameSource interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// pcapRenderer copies the frames a connection was reassembled from out of
// the original capture. Frames are numbered from 1 in read order.
type pcapRenderer struct {
	path string
	w    io.Writer
}

func (p *pcapRenderer) headerOnly() {}

func (p *pcapRenderer) Begin(info StreamInfo) error {
	pending := roaring.BitmapOf(info.Header.FrameIDs...)
	if pending.IsEmpty() {
		return errors.New("connection lists no frames")
	}

	f, err := os.Open(p.path)
	if err != nil {
		return fmt.Errorf("opening capture: %w", err)
	}
	defer f.Close()

	src, snaplen, err := openFrameSource(f)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(p.w)
	pw := pcapgo.NewWriter(bw)
	if err := pw.WriteFileHeader(snaplen, src.LinkType()); err != nil {
		return fmt.Errorf("writing capture header: %w", err)
	}

	var frame uint32
	for !pending.IsEmpty() {
		data, ci, err := src.ReadPacketData()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading frame %d: %w", frame+1, err)
		}
		frame++
		if !pending.Contains(frame) {
			continue
		}
		if err := pw.WritePacket(ci, data); err != nil {
			return fmt.Errorf("writing frame %d: %w", frame, err)
		}
		pending.Remove(frame)
	}
	if !pending.IsEmpty() {
		return fmt.Errorf("capture has %d frames, missing %d of the requested ones (first %d)",
			frame, pending.GetCardinality(), pending.Minimum())
	}
	return bw.Flush()
}

func (p *pcapRenderer) Emit(Emission) error { return nil }

func (p *pcapRenderer) End() error { return nil }

// openFrameSource reads f as classic pcap, falling back to pcapng.
func openFrameSource(f *os.File) (frameSource, uint32, error) {
	r, err := pcapgo.NewReader(f)
	if err == nil {
		snaplen := r.Snaplen()
		if snaplen == 0 {
			snaplen = defaultSnaplen
		}
		return r, snaplen, nil
	}

	if _, serr := f.Seek(0, io.SeekStart); serr != nil {
		return nil, 0, fmt.Errorf("rewinding capture: %w", serr)
	}
	ng, ngErr := pcapgo.NewNgReader(f, pcapgo.DefaultNgReaderOptions)
	if ngErr != nil {
		return nil, 0, fmt.Errorf("capture is neither pcap (%v) nor pcapng (%v)", err, ngErr)
	}
	return ng, defaultSnaplen, nil
}
