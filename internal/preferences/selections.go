package preferences

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/saltyorg/autoplay/internal/database"
	"github.com/saltyorg/autoplay/internal/media"
	"github.com/saltyorg/autoplay/internal/resolver"
)

// Store is the persistence for remembered selections.
type Store interface {
	UpsertRememberedSelection(sel *database.RememberedSelection) error
	GetRememberedSelection(userID, seriesID string) (*database.RememberedSelection, error)
	PruneRememberedSelections(before time.Time) (int64, error)
	Optimize() error
}

// Selections remembers the last audio and subtitle choice per user and
// series so the next episode starts with the same tracks.
type Selections struct {
	store Store

	mu    sync.RWMutex
	cache map[string]*database.RememberedSelection
}

// NewSelections returns a selection memory backed by store.
func NewSelections(store Store) *Selections {
	return &Selections{
		store: store,
		cache: make(map[string]*database.RememberedSelection),
	}
}

func selectionKey(userID, seriesID string) string {
	return userID + ":" + seriesID
}

// Previous returns what userID last played in the series of item, or nil
// for movies and series without history.
func (s *Selections) Previous(userID string, item media.Item) (*resolver.PreviousSelection, error) {
	if !item.IsEpisode() || userID == "" {
		return nil, nil
	}

	key := selectionKey(userID, item.SeriesID)
	s.mu.RLock()
	rec, ok := s.cache[key]
	s.mu.RUnlock()

	if !ok {
		var err error
		rec, err = s.store.GetRememberedSelection(userID, item.SeriesID)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.cache[key] = rec
		s.mu.Unlock()
	}
	if rec == nil {
		return nil, nil
	}

	return &resolver.PreviousSelection{
		AudioIndex:    rec.AudioIndex,
		SubtitleIndex: rec.SubtitleIndex,
		Audio:         rec.Audio,
		Subtitle:      rec.Subtitle,
	}, nil
}

// Remember stores sel as the latest choice of userID in the series of item.
// Stream descriptors are kept so the choice survives index shifts between
// episodes. Movies are not remembered.
func (s *Selections) Remember(userID string, item media.Item, sel media.PlaySelection) error {
	if !item.IsEpisode() || userID == "" {
		return nil
	}

	src := sourceFor(item, sel.MediaSourceID)
	if src == nil {
		return fmt.Errorf("item %s has no media source", item.ID)
	}

	rec := &database.RememberedSelection{
		UserID:    userID,
		SeriesID:  item.SeriesID,
		UpdatedAt: time.Now().UTC(),
	}
	if sel.AudioIndex != nil {
		idx := *sel.AudioIndex
		rec.AudioIndex = &idx
		if st, ok := src.Stream(media.KindAudio, idx); ok {
			rec.Audio = &st
		}
	}
	sub := sel.SubtitleIndex
	rec.SubtitleIndex = &sub
	if sub != media.NoSubtitle {
		if st, ok := src.Stream(media.KindSubtitle, sub); ok {
			rec.Subtitle = &st
		}
	}

	if err := s.store.UpsertRememberedSelection(rec); err != nil {
		return err
	}

	s.mu.Lock()
	s.cache[selectionKey(userID, item.SeriesID)] = rec
	s.mu.Unlock()

	log.Debug().
		Str("user", userID).
		Str("series", item.SeriesID).
		Int("subtitle", sub).
		Msg("Remembered track selection")
	return nil
}

// Forget drops cached entries so the next lookup reads the store.
func (s *Selections) Forget() {
	s.mu.Lock()
	clear(s.cache)
	s.mu.Unlock()
}

func sourceFor(item media.Item, id string) *media.Source {
	if id != "" {
		if src, ok := item.Source(id); ok {
			return src
		}
	}
	if len(item.Sources) == 0 {
		return nil
	}
	return &item.Sources[0]
}
