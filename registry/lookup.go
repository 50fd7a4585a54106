package registry

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/hibiki-voice/hibiki/api"
	"github.com/hibiki-voice/hibiki/types/styleid"
)

// Get returns the entry for a model UUID.
func (r *Registry) Get(ctx context.Context, id string) (*Entry, error) {
	entries := r.Entries(ctx, false, false)
	if entry, ok := entries.Get(id); ok {
		return entry, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrModelNotFound, id)
}

// Speakers returns every speaker across all installed models, sorted by
// name.
func (r *Registry) Speakers(ctx context.Context) []api.Speaker {
	var speakers []api.Speaker
	entries := r.Entries(ctx, false, false)
	for pair := entries.Oldest(); pair != nil; pair = pair.Next() {
		speakers = append(speakers, pair.Value.Speakers...)
	}

	slices.SortStableFunc(speakers, func(a, b api.Speaker) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return speakers
}

// SpeakerInfo returns the extended metadata for a speaker UUID, searching
// all installed models.
func (r *Registry) SpeakerInfo(ctx context.Context, id string) (api.SpeakerInfo, error) {
	entries := r.Entries(ctx, false, false)
	for pair := entries.Oldest(); pair != nil; pair = pair.Next() {
		if info, ok := pair.Value.SpeakerInfo(id); ok {
			return info, nil
		}
	}
	return api.SpeakerInfo{}, fmt.Errorf("%w: %s", ErrSpeakerNotFound, id)
}

// StyleRef locates a style by its global ID together with the model and
// speaker it belongs to.
type StyleRef struct {
	Entry   *Entry
	Speaker api.Speaker
	Style   api.SpeakerStyle
}

// Style resolves a global style ID to the installed model, speaker, and
// style that produced it.
func (r *Registry) Style(ctx context.Context, id styleid.ID) (*StyleRef, error) {
	entries := r.Entries(ctx, false, false)
	for pair := entries.Oldest(); pair != nil; pair = pair.Next() {
		for _, speaker := range pair.Value.Speakers {
			for _, style := range speaker.Styles {
				if style.ID == id {
					return &StyleRef{Entry: pair.Value, Speaker: speaker, Style: style}, nil
				}
			}
		}
	}
	return nil, fmt.Errorf("%w: %d", ErrStyleNotFound, id)
}

// SetLoaded records whether the synthesis runtime currently holds the
// model in memory. Unknown UUIDs are ignored: the runtime may report state
// for a model removed since the last scan.
func (r *Registry) SetLoaded(id string, loaded bool) {
	cached := r.cache.Load()
	if cached == nil {
		return
	}
	if entry, ok := cached.Get(id); ok {
		entry.SetLoaded(loaded)
	}
}
