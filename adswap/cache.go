package adswap

import (
	"fmt"
	"time"

	"github.com/karlseguin/ccache"

	"adsift/atypes"
)

type cachedManifest struct {
	PlaylistText string
	Requested    atypes.Resolution
	Picked       atypes.VariantMeta
	FetchedAt    time.Time
}

type ManifestCache struct {
	config SwapConfig
	cache  *ccache.Cache
}

func NewManifestCache(config SwapConfig) *ManifestCache {
	return &ManifestCache{
		config: config,
		cache:  ccache.New(ccache.Configure().MaxSize(config.MaxCacheSize).Buckets(64)),
	}
}

func composeStreamKey(channelName, playerType string) string {
	return fmt.Sprintf("%s/%s", channelName, playerType)
}

func (mc *ManifestCache) Get(channelName, playerType string, requested atypes.Resolution) (string, atypes.VariantMeta, bool) {
	value := mc.cache.Get(composeStreamKey(channelName, playerType))
	if value == nil || value.Expired() {
		return "", atypes.VariantMeta{}, false
	}
	cached := value.Value().(*cachedManifest)
	if cached.Requested != requested {
		return "", atypes.VariantMeta{}, false
	}
	return cached.PlaylistText, cached.Picked, true
}

func (mc *ManifestCache) Set(channelName, playerType string, requested atypes.Resolution, picked atypes.VariantMeta, playlistText string) {
	mc.cache.Set(composeStreamKey(channelName, playerType), &cachedManifest{
		PlaylistText: playlistText,
		Requested:    requested,
		Picked:       picked,
		FetchedAt:    time.Now(),
	}, mc.config.CacheTtl.Duration)
}

func (mc *ManifestCache) Age(channelName, playerType string) (time.Duration, bool) {
	value := mc.cache.Get(composeStreamKey(channelName, playerType))
	if value == nil || value.Expired() {
		return 0, false
	}
	return time.Since(value.Value().(*cachedManifest).FetchedAt), true
}

// Peek reports the picked rendition and record age regardless of the
// requested resolution, for diagnostics.
func (mc *ManifestCache) Peek(channelName, playerType string) (atypes.VariantMeta, time.Duration, bool) {
	value := mc.cache.Get(composeStreamKey(channelName, playerType))
	if value == nil || value.Expired() {
		return atypes.VariantMeta{}, 0, false
	}
	cached := value.Value().(*cachedManifest)
	return cached.Picked, time.Since(cached.FetchedAt), true
}
