package hvm

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

const (
	magic            = "HVMX"
	containerVersion = 1

	// Declared manifest or header blocks above this are rejected outright.
	maxHeaderSize = 100 << 20
)

var zstdDecoder, _ = zstd.NewReader(nil)

// ReadFile parses the package at path.
func ReadFile(path string) (*Manifest, Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	return Read(f)
}

// Read parses a model package from r. The packed container is tried first;
// on failure the legacy layout is tried from the start of the stream. The
// returned Format records which layout succeeded, which later selects the
// extension when the package is written back to disk.
func Read(r io.ReadSeeker) (*Manifest, Format, error) {
	m, perr := ReadPacked(r)
	if perr == nil {
		return m, FormatPacked, nil
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, 0, err
	}

	m, lerr := ReadLegacy(r)
	if lerr == nil {
		return m, FormatLegacy, nil
	}

	return nil, 0, &FormatError{Reason: "not a recognized model package", Err: errors.Join(perr, lerr)}
}

// ReadPacked parses the packed (.hvmx) container layout.
func ReadPacked(r io.Reader) (*Manifest, error) {
	var hdr struct {
		Magic   [4]byte
		Version uint32
		Length  uint64
	}
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, &FormatError{Reason: "short packed header", Err: err}
	}
	if string(hdr.Magic[:]) != magic {
		return nil, &FormatError{Reason: fmt.Sprintf("bad magic %q", hdr.Magic)}
	}
	if hdr.Version != containerVersion {
		return nil, &FormatError{Reason: fmt.Sprintf("unsupported container version %d", hdr.Version)}
	}
	if hdr.Length == 0 || hdr.Length > maxHeaderSize {
		return nil, &FormatError{Reason: fmt.Sprintf("implausible manifest block size %d", hdr.Length)}
	}

	compressed := make([]byte, hdr.Length)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return nil, &FormatError{Reason: "truncated manifest block", Err: err}
	}

	data, err := zstdDecoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, &FormatError{Reason: "manifest block is not valid zstd", Err: err}
	}

	return decodeManifest(data)
}

// ReadLegacy parses the legacy (.hvm) safetensors-style layout.
func ReadLegacy(r io.Reader) (*Manifest, error) {
	var length uint64
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return nil, &FormatError{Reason: "short tensor header", Err: err}
	}
	if length == 0 || length > maxHeaderSize {
		return nil, &FormatError{Reason: fmt.Sprintf("implausible tensor header size %d", length)}
	}

	header := make([]byte, length)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, &FormatError{Reason: "truncated tensor header", Err: err}
	}

	var hdr struct {
		Metadata map[string]string `json:"__metadata__"`
	}
	if err := json.Unmarshal(header, &hdr); err != nil {
		return nil, &FormatError{Reason: "tensor header is not valid JSON", Err: err}
	}

	raw, ok := hdr.Metadata["hvm_manifest"]
	if !ok {
		return nil, &FormatError{Reason: "tensor header carries no hvm_manifest metadata"}
	}

	return decodeManifest([]byte(raw))
}

func decodeManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &FormatError{Reason: "manifest is not valid JSON", Err: err}
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}
