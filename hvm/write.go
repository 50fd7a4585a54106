package hvm

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

var zstdEncoder, _ = zstd.NewWriter(nil)

// WritePacked writes m and the opaque model payload as a packed (.hvmx)
// container.
func WritePacked(w io.Writer, m *Manifest, payload []byte) error {
	if err := m.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	compressed := zstdEncoder.EncodeAll(data, nil)

	if _, err := w.Write([]byte(magic)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(containerVersion)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(compressed))); err != nil {
		return err
	}
	if _, err := w.Write(compressed); err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}

// WriteLegacy writes m and the payload in the legacy (.hvm) safetensors-
// style layout.
func WriteLegacy(w io.Writer, m *Manifest, payload []byte) error {
	if err := m.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}

	header, err := json.Marshal(map[string]any{
		"__metadata__": map[string]string{"hvm_manifest": string(data)},
	})
	if err != nil {
		return fmt.Errorf("encoding tensor header: %w", err)
	}

	if err := binary.Write(w, binary.LittleEndian, uint64(len(header))); err != nil {
		return err
	}
	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}
