package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// maxFrameSize bounds a single frame. Requests and responses here are tiny;
// anything near this limit is a corrupt or hostile peer.
const maxFrameSize = 1 << 24

// writeFrame writes one length-prefixed CBOR record.
func writeFrame(w io.Writer, record any) error {
	payload, err := cborEncMode.Marshal(record)
	if err != nil {
		return fmt.Errorf("wire: marshal frame: %w", err)
	}
	if len(payload) > maxFrameSize {
		return fmt.Errorf("wire: frame too large (%d bytes)", len(payload))
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("wire: write frame header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("wire: write frame payload: %w", err)
	}
	return nil
}

// readFrame reads one length-prefixed CBOR record into out.
func readFrame(r io.Reader, out any) error {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return err
		}
		return fmt.Errorf("wire: read frame header: %w", err)
	}
	size := binary.BigEndian.Uint32(header[:])
	if size > maxFrameSize {
		return fmt.Errorf("wire: frame too large (%d bytes)", size)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return fmt.Errorf("wire: read frame payload: %w", err)
	}
	if err := cbor.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("wire: unmarshal frame: %w", err)
	}
	return nil
}
