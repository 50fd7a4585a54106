package hvm

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func sampleManifest() *Manifest {
	return &Manifest{
		ManifestVersion: "1.0",
		Name:            "Tsukuyomi",
		UUID:            "3f1c4e5a-9d27-4b86-a0b2-6c51e84dd0f3",
		Version:         "1.0.0",
		Architecture:    "Style-Bert-VITS2",
		License:         "CC BY-NC 4.0",
		Speakers: []Speaker{{
			UUID:               "a9f8f22d-5d27-4d0e-a3d2-0a6a4c4c8f91",
			Name:               "Tsukuyomi-chan",
			SupportedLanguages: []string{"ja"},
			Icon:               "data:image/png;base64,aGliaWtp",
			Styles: []Style{
				{LocalID: 0, Name: "Normal"},
				{LocalID: 3, Name: "Joy", VoiceSamples: []VoiceSample{
					{Audio: "data:audio/wav;base64,UklGRg==", Transcript: "こんにちは"},
				}},
			},
		}},
	}
}

var payload = []byte("not real model weights")

func TestRoundTripPacked(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePacked(&buf, sampleManifest(), payload); err != nil {
		t.Fatal(err)
	}

	m, format, err := Read(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if format != FormatPacked {
		t.Errorf("format = %v, want packed", format)
	}
	if diff := cmp.Diff(sampleManifest(), m); diff != "" {
		t.Errorf("manifest mismatch (-want +got):\n%s", diff)
	}
}

func TestRoundTripLegacy(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteLegacy(&buf, sampleManifest(), payload); err != nil {
		t.Fatal(err)
	}

	m, format, err := Read(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if format != FormatLegacy {
		t.Errorf("format = %v, want legacy", format)
	}
	if diff := cmp.Diff(sampleManifest(), m); diff != "" {
		t.Errorf("manifest mismatch (-want +got):\n%s", diff)
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.hvmx")

	var buf bytes.Buffer
	if err := WritePacked(&buf, sampleManifest(), payload); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	m, format, err := ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if format != FormatPacked {
		t.Errorf("format = %v, want packed", format)
	}
	if m.Name != "Tsukuyomi" {
		t.Errorf("name = %q", m.Name)
	}
}

func TestFormatExt(t *testing.T) {
	if got := FormatPacked.Ext(); got != "hvmx" {
		t.Errorf("packed ext = %q", got)
	}
	if got := FormatLegacy.Ext(); got != "hvm" {
		t.Errorf("legacy ext = %q", got)
	}
}

func TestReadRejects(t *testing.T) {
	legacyTooBig := make([]byte, 8)
	binary.LittleEndian.PutUint64(legacyTooBig, maxHeaderSize+1)

	cases := map[string][]byte{
		"empty":                  {},
		"garbage":                []byte("this is not a model package, not even close"),
		"bad magic":              append([]byte("NOPE"), make([]byte, 12)...),
		"legacy oversized header": legacyTooBig,
	}

	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := Read(bytes.NewReader(data))
			var fe *FormatError
			if !errors.As(err, &fe) {
				t.Fatalf("expected FormatError, got %v", err)
			}
		})
	}
}

func TestReadPackedRejects(t *testing.T) {
	valid := func() []byte {
		var buf bytes.Buffer
		if err := WritePacked(&buf, sampleManifest(), payload); err != nil {
			t.Fatal(err)
		}
		return buf.Bytes()
	}

	t.Run("wrong container version", func(t *testing.T) {
		data := valid()
		binary.LittleEndian.PutUint32(data[4:], 99)
		_, err := ReadPacked(bytes.NewReader(data))
		var fe *FormatError
		if !errors.As(err, &fe) || !strings.Contains(fe.Reason, "container version") {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("truncated manifest block", func(t *testing.T) {
		data := valid()[:20]
		_, err := ReadPacked(bytes.NewReader(data))
		var fe *FormatError
		if !errors.As(err, &fe) {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("manifest block not zstd", func(t *testing.T) {
		var buf bytes.Buffer
		buf.WriteString(magic)
		binary.Write(&buf, binary.LittleEndian, uint32(containerVersion))
		binary.Write(&buf, binary.LittleEndian, uint64(4))
		buf.WriteString("{}{}")
		_, err := ReadPacked(bytes.NewReader(buf.Bytes()))
		var fe *FormatError
		if !errors.As(err, &fe) {
			t.Fatalf("got %v", err)
		}
	})
}

func TestReadLegacyRejects(t *testing.T) {
	t.Run("header not json", func(t *testing.T) {
		var buf bytes.Buffer
		binary.Write(&buf, binary.LittleEndian, uint64(3))
		buf.WriteString("???")
		_, err := ReadLegacy(bytes.NewReader(buf.Bytes()))
		var fe *FormatError
		if !errors.As(err, &fe) {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("missing manifest metadata", func(t *testing.T) {
		header := []byte(`{"__metadata__":{"other":"x"}}`)
		var buf bytes.Buffer
		binary.Write(&buf, binary.LittleEndian, uint64(len(header)))
		buf.Write(header)
		_, err := ReadLegacy(bytes.NewReader(buf.Bytes()))
		var fe *FormatError
		if !errors.As(err, &fe) || !strings.Contains(fe.Reason, "hvm_manifest") {
			t.Fatalf("got %v", err)
		}
	})
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Manifest)
		reason string
	}{
		{"manifest version not major.minor", func(m *Manifest) { m.ManifestVersion = "1" }, "manifest_version"},
		{"manifest version three parts", func(m *Manifest) { m.ManifestVersion = "1.0.0" }, "manifest_version"},
		{"manifest version junk", func(m *Manifest) { m.ManifestVersion = "banana" }, "manifest_version"},
		{"missing name", func(m *Manifest) { m.Name = "" }, "name"},
		{"bad model uuid", func(m *Manifest) { m.UUID = "not-a-uuid" }, "uuid"},
		{"bad semver", func(m *Manifest) { m.Version = "one point oh" }, "semantic"},
		{"missing architecture", func(m *Manifest) { m.Architecture = "" }, "architecture"},
		{"no speakers", func(m *Manifest) { m.Speakers = nil }, "speakers"},
		{"bad speaker uuid", func(m *Manifest) { m.Speakers[0].UUID = "xyz" }, "speaker uuid"},
		{"speaker without name", func(m *Manifest) { m.Speakers[0].Name = "" }, "name"},
		{"speaker icon not data url", func(m *Manifest) { m.Speakers[0].Icon = "http://example.com/icon.png" }, "icon"},
		{"no styles", func(m *Manifest) { m.Speakers[0].Styles = nil }, "styles"},
		{"local id too large", func(m *Manifest) { m.Speakers[0].Styles[0].LocalID = 32 }, "out of range"},
		{"local id negative", func(m *Manifest) { m.Speakers[0].Styles[0].LocalID = -1 }, "out of range"},
		{"duplicate local id", func(m *Manifest) { m.Speakers[0].Styles[1].LocalID = 0 }, "reuses"},
		{"style without name", func(m *Manifest) { m.Speakers[0].Styles[0].Name = "" }, "no name"},
		{"style icon not data url", func(m *Manifest) { m.Speakers[0].Styles[0].Icon = "icon.png" }, "icon"},
		{"sample audio not data url", func(m *Manifest) { m.Speakers[0].Styles[1].VoiceSamples[0].Audio = "x.wav" }, "voice sample"},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			m := sampleManifest()
			tt.mutate(m)

			err := m.Validate()
			var fe *FormatError
			if !errors.As(err, &fe) {
				t.Fatalf("expected FormatError, got %v", err)
			}
			if !strings.Contains(fe.Reason, tt.reason) {
				t.Errorf("reason %q does not mention %q", fe.Reason, tt.reason)
			}
		})
	}
}

func TestValidateCanonicalizesUUIDs(t *testing.T) {
	m := sampleManifest()
	m.UUID = strings.ToUpper(m.UUID)
	m.Speakers[0].UUID = strings.ToUpper(m.Speakers[0].UUID)

	if err := m.Validate(); err != nil {
		t.Fatal(err)
	}
	if m.UUID != "3f1c4e5a-9d27-4b86-a0b2-6c51e84dd0f3" {
		t.Errorf("model uuid not canonicalized: %q", m.UUID)
	}
	if m.Speakers[0].UUID != "a9f8f22d-5d27-4d0e-a3d2-0a6a4c4c8f91" {
		t.Errorf("speaker uuid not canonicalized: %q", m.Speakers[0].UUID)
	}
}

func TestSupportsLanguage(t *testing.T) {
	s := Speaker{SupportedLanguages: []string{"ja-JP", "en"}}
	if !s.SupportsLanguage("ja-jp") {
		t.Error("expected case-insensitive match for ja-jp")
	}
	if !s.SupportsLanguage("en") {
		t.Error("expected match for en")
	}
	if s.SupportsLanguage("ja") {
		t.Error("ja should not match ja-JP exactly")
	}
}

func TestDataURLPayload(t *testing.T) {
	cases := []struct {
		in      string
		payload string
		ok      bool
	}{
		{"data:image/png;base64,aGliaWtp", "aGliaWtp", true},
		{"data:audio/wav;base64,UklGRg==", "UklGRg==", true},
		{"data:;base64,aGliaWtp", "aGliaWtp", true},
		{"data:image/png;base64,", "", false},
		{"data:image/png,plain", "", false},
		{"http://example.com/x.png", "", false},
		{"", "", false},
	}

	for _, tt := range cases {
		payload, ok := DataURLPayload(tt.in)
		if payload != tt.payload || ok != tt.ok {
			t.Errorf("DataURLPayload(%q) = (%q, %v), want (%q, %v)", tt.in, payload, ok, tt.payload, tt.ok)
		}
	}
}
