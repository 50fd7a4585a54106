package api

import (
	"fmt"
	"time"

	"github.com/hibiki-voice/hibiki/types/styleid"
)

// StatusError is a non-2xx response from the hibiki server.
type StatusError struct {
	StatusCode   int
	Status       string
	ErrorMessage string `json:"error"`
}

func (e StatusError) Error() string {
	switch {
	case e.Status != "" && e.ErrorMessage != "":
		return fmt.Sprintf("%s: %s", e.Status, e.ErrorMessage)
	case e.Status != "":
		return e.Status
	case e.ErrorMessage != "":
		return e.ErrorMessage
	default:
		return "something went wrong, please see the hibiki server logs for details"
	}
}

// ModelResponse describes one installed model package.
type ModelResponse struct {
	UUID            string    `json:"uuid"`
	Name            string    `json:"name"`
	Version         string    `json:"version"`
	Architecture    string    `json:"architecture"`
	ManifestVersion string    `json:"manifest_version"`
	License         string    `json:"license,omitempty"`
	Path            string    `json:"path"`
	Size            int64     `json:"size"`
	Format          string    `json:"format"`
	ModifiedAt      time.Time `json:"modified_at"`
	Loaded          bool      `json:"loaded"`
	LatestVersion   string    `json:"latest_version"`
	UpdateAvailable bool      `json:"update_available"`
	Speakers        []Speaker `json:"speakers"`
}

// ListResponse is the response to GET /api/models.
type ListResponse struct {
	Models []ModelResponse `json:"models"`
}

// Speaker is one voice of an installed model, with its externally
// addressable styles.
type Speaker struct {
	UUID    string         `json:"uuid"`
	Name    string         `json:"name"`
	Version string         `json:"version"`
	Styles  []SpeakerStyle `json:"styles"`
}

// SpeakerStyle is one selectable style, addressed by its global id.
type SpeakerStyle struct {
	ID   styleid.ID `json:"id"`
	Name string     `json:"name"`
	Type string     `json:"type"`
}

// SpeakerInfo carries the display extras for one speaker: usage policy,
// portrait and per-style assets. Binary fields are base64.
type SpeakerInfo struct {
	Policy     string      `json:"policy"`
	Portrait   string      `json:"portrait"`
	StyleInfos []StyleInfo `json:"style_infos"`
}

// StyleInfo carries the display assets of one style.
type StyleInfo struct {
	ID           styleid.ID `json:"id"`
	Icon         string     `json:"icon,omitempty"`
	VoiceSamples []string   `json:"voice_samples,omitempty"`
	Transcripts  []string   `json:"transcripts,omitempty"`
}

// StyleResponse resolves a global style id back to its speaker and style.
type StyleResponse struct {
	ID      styleid.ID   `json:"id"`
	Model   string       `json:"model"`
	Speaker Speaker      `json:"speaker"`
	Style   SpeakerStyle `json:"style"`
}

// PullRequest asks the server to download and install a package from a URL,
// either a direct link or a hub model page.
type PullRequest struct {
	URL string `json:"url"`
}

// LoadStateRequest marks a model as loaded into, or evicted from, the
// synthesis runtime.
type LoadStateRequest struct {
	Loaded bool `json:"loaded"`
}
