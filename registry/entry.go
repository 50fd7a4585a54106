package registry

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hibiki-voice/hibiki/api"
	"github.com/hibiki-voice/hibiki/hvm"
	"github.com/hibiki-voice/hibiki/types/styleid"
)

// Entry is one installed model package. The scan builds entries immutably
// except for two pieces of mutable state: the load flag reported by the
// synthesis runtime and the latest-version fields maintained by update
// checks.
type Entry struct {
	Path       string
	Size       int64
	ModifiedAt time.Time
	Format     hvm.Format
	Manifest   *hvm.Manifest

	// Speakers holds the API projection of the manifest speakers, filtered
	// to those usable for Japanese synthesis and annotated with global
	// style IDs.
	Speakers []api.Speaker

	infos map[string]api.SpeakerInfo

	loaded atomic.Bool

	mu              sync.Mutex
	latestVersion   string
	updateAvailable bool
}

func newEntry(path string, size int64, modified time.Time, format hvm.Format, m *hvm.Manifest) (*Entry, error) {
	e := &Entry{
		Path:       path,
		Size:       size,
		ModifiedAt: modified,
		Format:     format,
		Manifest:   m,
		infos:      make(map[string]api.SpeakerInfo),
	}
	e.latestVersion = m.Version

	for _, sp := range m.Speakers {
		if !sp.SupportsLanguage("ja") && !sp.SupportsLanguage("ja-JP") {
			slog.Warn("skipping speaker without Japanese support", "model", m.UUID, "speaker", sp.UUID, "name", sp.Name, "languages", sp.SupportedLanguages)
			continue
		}

		speaker := api.Speaker{
			UUID:    sp.UUID,
			Name:    sp.Name,
			Version: m.Version,
		}

		info := api.SpeakerInfo{
			Policy:   m.License,
			Portrait: sp.Icon,
		}

		for _, st := range sp.Styles {
			id, err := styleid.Encode(sp.UUID, st.LocalID)
			if err != nil {
				return nil, err
			}

			speaker.Styles = append(speaker.Styles, api.SpeakerStyle{
				ID:   id,
				Name: st.Name,
				Type: "talk",
			})

			icon := st.Icon
			if icon == "" {
				icon = sp.Icon
			}

			styleInfo := api.StyleInfo{ID: id, Icon: icon}
			for _, sample := range st.VoiceSamples {
				styleInfo.VoiceSamples = append(styleInfo.VoiceSamples, sample.Audio)
				styleInfo.Transcripts = append(styleInfo.Transcripts, sample.Transcript)
			}
			info.StyleInfos = append(info.StyleInfos, styleInfo)
		}

		e.Speakers = append(e.Speakers, speaker)
		e.infos[sp.UUID] = info
	}

	return e, nil
}

// SpeakerInfo returns the extended metadata for one of the entry's
// speakers.
func (e *Entry) SpeakerInfo(speakerID string) (api.SpeakerInfo, bool) {
	info, ok := e.infos[speakerID]
	return info, ok
}

func (e *Entry) Loaded() bool {
	return e.loaded.Load()
}

func (e *Entry) SetLoaded(loaded bool) {
	e.loaded.Store(loaded)
}

// LatestVersion reports the newest version the catalog is known to serve.
// Until an update check succeeds it equals the installed version.
func (e *Entry) LatestVersion() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.latestVersion
}

func (e *Entry) UpdateAvailable() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.updateAvailable
}

func (e *Entry) setLatest(version string, available bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.latestVersion = version
	e.updateAvailable = available
}

func (e *Entry) Response() api.ModelResponse {
	return api.ModelResponse{
		UUID:            e.Manifest.UUID,
		Name:            e.Manifest.Name,
		Version:         e.Manifest.Version,
		Architecture:    e.Manifest.Architecture,
		ManifestVersion: e.Manifest.ManifestVersion,
		License:         e.Manifest.License,
		Path:            e.Path,
		Size:            e.Size,
		Format:          e.Format.String(),
		ModifiedAt:      e.ModifiedAt,
		Loaded:          e.Loaded(),
		LatestVersion:   e.LatestVersion(),
		UpdateAvailable: e.UpdateAvailable(),
		Speakers:        e.Speakers,
	}
}

func (e *Entry) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("model", e.Manifest.UUID),
		slog.String("name", e.Manifest.Name),
		slog.String("version", e.Manifest.Version),
		slog.String("path", e.Path),
	)
}
