// Package offline plays downloaded items from local disk. Offline streams
// carry no play session on the server and are never reported.
package offline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/saltyorg/autoplay/internal/database"
	"github.com/saltyorg/autoplay/internal/media"
	"github.com/saltyorg/autoplay/internal/negotiation"
)

// ErrAssetNotFound means no local copy of the item is registered.
var ErrAssetNotFound = errors.New("offline asset not found")

// Store is the persistence the provider needs.
type Store interface {
	UpsertOfflineAsset(asset *database.OfflineAsset) error
	GetOfflineAsset(itemID string) (*database.OfflineAsset, error)
	ListOfflineAssets() ([]*database.OfflineAsset, error)
	DeleteOfflineAsset(itemID string) (bool, error)
}

// Provider maps item ids to local files and their cached media source.
type Provider struct {
	store Store
}

// NewProvider returns a provider over store.
func NewProvider(store Store) *Provider {
	return &Provider{store: store}
}

// Add registers path as the local copy of item. The first media source of
// the item describes the file; it must exist on disk.
func (p *Provider) Add(item media.Item, path string) (*database.OfflineAsset, error) {
	if len(item.Sources) == 0 {
		return nil, fmt.Errorf("item %s has no media source", item.ID)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("offline file: %w", err)
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("offline file %s is a directory", abs)
	}

	src := item.Sources[0]
	src.Path = abs
	// The local file is played as is
	src.TranscodingURL = ""
	src.SupportsDirectPlay = true
	src.Streams = localStreams(src.Streams, abs)

	asset := &database.OfflineAsset{
		ItemID: item.ID,
		Name:   item.Name,
		Path:   abs,
		Source: src,
	}
	if err := p.store.UpsertOfflineAsset(asset); err != nil {
		return nil, err
	}

	log.Info().Str("item", item.ID).Str("path", abs).Msg("Registered offline asset")
	return asset, nil
}

// localStreams points external subtitles at sidecar files next to path and
// drops the ones with no local copy, so offline playback never fetches from
// the server.
func localStreams(streams []media.Stream, path string) []media.Stream {
	out := make([]media.Stream, 0, len(streams))
	for _, st := range streams {
		if !st.IsExternal() {
			out = append(out, st)
			continue
		}

		sidecar, ok := findSidecar(path, st)
		if !ok {
			log.Debug().Int("index", st.Index).Str("path", path).Msg("No local copy of external subtitle, dropping it")
			continue
		}
		info := *st.Subtitle
		info.DeliveryURL = sidecar
		st.Subtitle = &info
		out = append(out, st)
	}
	return out
}

// findSidecar looks for <name>.<lang>.<ext> then <name>.<ext> beside path.
func findSidecar(path string, st media.Stream) (string, bool) {
	ext := subtitleExt(st.Codec)
	if ext == "" {
		return "", false
	}
	stem := strings.TrimSuffix(path, filepath.Ext(path))

	var candidates []string
	if st.Language != "" {
		candidates = append(candidates, stem+"."+st.Language+"."+ext)
	}
	candidates = append(candidates, stem+"."+ext)

	for _, c := range candidates {
		if fi, err := os.Stat(c); err == nil && !fi.IsDir() {
			return c, true
		}
	}
	return "", false
}

func subtitleExt(codec string) string {
	switch c := strings.ToLower(codec); c {
	case "subrip":
		return "srt"
	case "webvtt":
		return "vtt"
	default:
		return c
	}
}

// Get returns the asset for itemID.
func (p *Provider) Get(itemID string) (*database.OfflineAsset, error) {
	asset, err := p.store.GetOfflineAsset(itemID)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		return nil, fmt.Errorf("%s: %w", itemID, ErrAssetNotFound)
	}
	return asset, nil
}

// Item returns a playable item built from the cached media source.
func (p *Provider) Item(itemID string) (media.Item, error) {
	asset, err := p.Get(itemID)
	if err != nil {
		return media.Item{}, err
	}
	return media.Item{
		ID:      asset.ItemID,
		Name:    asset.Name,
		Sources: []media.Source{asset.Source},
	}, nil
}

// List returns all registered assets.
func (p *Provider) List() ([]*database.OfflineAsset, error) {
	return p.store.ListOfflineAssets()
}

// Remove forgets the asset for itemID. The file itself is left alone.
func (p *Provider) Remove(itemID string) error {
	removed, err := p.store.DeleteOfflineAsset(itemID)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("%s: %w", itemID, ErrAssetNotFound)
	}
	return nil
}

// Negotiator yields local-file streams without network I/O.
type Negotiator struct {
	provider *Provider
}

var _ negotiation.Negotiator = (*Negotiator)(nil)

// NewNegotiator returns a negotiator backed by provider.
func NewNegotiator(provider *Provider) *Negotiator {
	return &Negotiator{provider: provider}
}

// Negotiate returns a direct-play stream of the local file. Every embedded
// track is available to the player, so the requested selection is kept.
func (n *Negotiator) Negotiate(ctx context.Context, req negotiation.Request) (*media.PlaybackStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	asset, err := n.provider.Get(req.Item.ID)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(asset.Path); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", req.Item.ID, ErrAssetNotFound, err)
	}

	stream := &media.PlaybackStream{
		ItemID:        asset.ItemID,
		Source:        asset.Source,
		PlaySessionID: "offline-" + uuid.NewString(),
		URL:           asset.Path,
		PlayMethod:    media.PlayMethodDirectPlay,
		AudioIndex:    req.Selection.AudioIndex,
		SubtitleIndex: req.Selection.SubtitleIndex,
		StartTicks:    req.StartTicks,
		Offline:       true,
	}

	log.Debug().
		Str("item", stream.ItemID).
		Str("path", stream.URL).
		Str("start", stream.StartTicks.String()).
		Msg("Offline stream ready")

	return stream, nil
}
