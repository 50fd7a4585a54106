// Package hvm reads and writes HVM model packages, the distributable files
// bundling a speech-synthesis model with its manifest.
//
// Two layouts exist. The packed container (.hvmx) opens with the magic
// "HVMX", a little-endian uint32 container version and uint64 block length,
// followed by the zstd-compressed manifest JSON and the opaque model
// payload. The legacy layout (.hvm) is a safetensors-style file: a
// little-endian uint64 header length, a JSON header whose "__metadata__"
// object carries the manifest JSON under the key "hvm_manifest", then the
// tensor payload. Readers only ever consume the manifest region, never the
// payload.
package hvm

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/mod/semver"

	"github.com/hibiki-voice/hibiki/types/styleid"
)

// Format identifies which package layout a reader recognized.
type Format int

const (
	FormatPacked Format = iota
	FormatLegacy
)

// Ext returns the canonical file extension, without the dot.
func (f Format) Ext() string {
	if f == FormatLegacy {
		return "hvm"
	}
	return "hvmx"
}

func (f Format) String() string {
	if f == FormatLegacy {
		return "legacy"
	}
	return "packed"
}

// FormatError reports a package that could not be parsed, or whose manifest
// failed validation. It is input-caused and never fatal to the process.
type FormatError struct {
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid model package: %s: %v", e.Reason, e.Err)
	}
	return "invalid model package: " + e.Reason
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// Manifest is the parsed metadata of one model package. Immutable once
// returned by a reader.
type Manifest struct {
	ManifestVersion string    `json:"manifest_version"`
	Name            string    `json:"name"`
	UUID            string    `json:"uuid"`
	Version         string    `json:"version"`
	Architecture    string    `json:"model_architecture"`
	License         string    `json:"license,omitempty"`
	Speakers        []Speaker `json:"speakers"`
}

// Speaker is one voice in a package.
type Speaker struct {
	UUID               string   `json:"uuid"`
	Name               string   `json:"name"`
	SupportedLanguages []string `json:"supported_languages"`
	Icon               string   `json:"icon"`
	Styles             []Style  `json:"styles"`
}

// SupportsLanguage reports whether the speaker declares the language tag,
// compared case-insensitively.
func (s Speaker) SupportsLanguage(tag string) bool {
	for _, l := range s.SupportedLanguages {
		if strings.EqualFold(l, tag) {
			return true
		}
	}
	return false
}

// Style is one selectable rendering variant of a speaker. LocalID is unique
// within the speaker and bounded by styleid.MaxLocal.
type Style struct {
	LocalID      int           `json:"local_id"`
	Name         string        `json:"name"`
	Icon         string        `json:"icon,omitempty"`
	VoiceSamples []VoiceSample `json:"voice_samples,omitempty"`
}

// VoiceSample pairs a rendered audio clip with its transcript. Audio is a
// base64 data URL.
type VoiceSample struct {
	Audio      string `json:"audio"`
	Transcript string `json:"transcript"`
}

// Validate checks the structural rules every reader enforces and
// canonicalizes identity fields (UUIDs come out lowercase canonical).
func (m *Manifest) Validate() error {
	if _, _, err := parseManifestVersion(m.ManifestVersion); err != nil {
		return &FormatError{Reason: fmt.Sprintf("malformed manifest_version %q", m.ManifestVersion), Err: err}
	}
	if m.Name == "" {
		return &FormatError{Reason: "missing model name"}
	}

	u, err := uuid.Parse(m.UUID)
	if err != nil {
		return &FormatError{Reason: fmt.Sprintf("malformed model uuid %q", m.UUID), Err: err}
	}
	m.UUID = u.String()

	if !semver.IsValid("v" + m.Version) {
		return &FormatError{Reason: fmt.Sprintf("model version %q is not a semantic version", m.Version)}
	}
	if m.Architecture == "" {
		return &FormatError{Reason: "missing model architecture"}
	}
	if len(m.Speakers) == 0 {
		return &FormatError{Reason: "package declares no speakers"}
	}

	for i := range m.Speakers {
		if err := m.Speakers[i].validate(); err != nil {
			return err
		}
	}

	return nil
}

// MajorMinor returns the numeric components of ManifestVersion. Only valid
// after Validate has succeeded.
func (m *Manifest) MajorMinor() (major, minor int) {
	major, minor, _ = parseManifestVersion(m.ManifestVersion)
	return major, minor
}

func parseManifestVersion(s string) (major, minor int, err error) {
	if _, err := fmt.Sscanf(s, "%d.%d", &major, &minor); err != nil {
		return 0, 0, err
	}
	if fmt.Sprintf("%d.%d", major, minor) != s {
		return 0, 0, fmt.Errorf("expected major.minor, got %q", s)
	}
	if major < 0 || minor < 0 {
		return 0, 0, fmt.Errorf("negative component in %q", s)
	}
	return major, minor, nil
}

func (s *Speaker) validate() error {
	u, err := uuid.Parse(s.UUID)
	if err != nil {
		return &FormatError{Reason: fmt.Sprintf("malformed speaker uuid %q", s.UUID), Err: err}
	}
	s.UUID = u.String()

	if s.Name == "" {
		return &FormatError{Reason: fmt.Sprintf("speaker %s has no name", s.UUID)}
	}
	if _, ok := DataURLPayload(s.Icon); !ok {
		return &FormatError{Reason: fmt.Sprintf("speaker %s icon is not a base64 data URL", s.UUID)}
	}
	if len(s.Styles) == 0 {
		return &FormatError{Reason: fmt.Sprintf("speaker %s declares no styles", s.UUID)}
	}

	seen := make(map[int]bool, len(s.Styles))
	for _, style := range s.Styles {
		if style.LocalID < 0 || style.LocalID > styleid.MaxLocal {
			return &FormatError{Reason: fmt.Sprintf("speaker %s style %q local_id %d out of range", s.UUID, style.Name, style.LocalID)}
		}
		if seen[style.LocalID] {
			return &FormatError{Reason: fmt.Sprintf("speaker %s reuses local_id %d", s.UUID, style.LocalID)}
		}
		seen[style.LocalID] = true

		if style.Name == "" {
			return &FormatError{Reason: fmt.Sprintf("speaker %s style %d has no name", s.UUID, style.LocalID)}
		}
		if style.Icon != "" {
			if _, ok := DataURLPayload(style.Icon); !ok {
				return &FormatError{Reason: fmt.Sprintf("speaker %s style %d icon is not a base64 data URL", s.UUID, style.LocalID)}
			}
		}
		for _, sample := range style.VoiceSamples {
			if _, ok := DataURLPayload(sample.Audio); !ok {
				return &FormatError{Reason: fmt.Sprintf("speaker %s style %d has a voice sample without base64 audio", s.UUID, style.LocalID)}
			}
		}
	}

	return nil
}

// DataURLPayload extracts the base64 payload from a data URL
// ("data:<mediatype>;base64,<payload>"). ok is false when s is not a
// base64 data URL.
func DataURLPayload(s string) (payload string, ok bool) {
	rest, found := strings.CutPrefix(s, "data:")
	if !found {
		return "", false
	}
	_, payload, found = strings.Cut(rest, ";base64,")
	if !found || payload == "" {
		return "", false
	}
	return payload, true
}
