// Package aplog reads and writes ".ap" capture logs.
//
// A capture log is a flat sequence of connection records followed by a
// footer. Each record holds one TCP conversation: a fixed header, the list
// of frame numbers the conversation was reassembled from in the original
// capture, and the ordered payload chunks of both peers.
//
// # Layout
//
// All integers are little endian.
//
//	record:
//	  u32 packet_count
//	  [4]byte client_ip, [4]byte server_ip   (network order)
//	  u16 client_port, u16 server_port
//	  u32 timestamp                           (epoch seconds)
//	  u32 frame_count, u32 frame_ids[frame_count]
//	  packet_count * { u8 direction, u32 length, payload[length] }
//
//	footer:
//	  u32 record_lengths[n]
//	  u32 n
//
// The footer is read backward from the end of the file. Offsets handed to
// this package are absolute file offsets, which is the same as offsets into
// the concatenation of all records since the first record starts at zero.
//
// # Reading
//
//	r, err := aplog.Open("dump.ap")
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//
//	conn, err := r.ConnectionAt(4096)
//	if errors.Is(err, aplog.ErrRange) {
//	    // offset is past the last record
//	}
//
// Records are parsed sequentially; there is no random access inside a
// record. Use [Reader.Packets] to stream a record one packet at a time.
package aplog
