package atypes

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"
)

type Resolution struct {
	Width  int
	Height int
}

func ParseResolution(s string) (Resolution, error) {
	r := Resolution{}
	n, err := fmt.Sscanf(s, "%dx%d", &r.Width, &r.Height)
	if n != 2 || err != nil {
		return Resolution{}, errors.Errorf("bad resolution %+v", s)
	}
	return r, nil
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

func (r Resolution) IsZero() bool {
	return r.Width == 0 && r.Height == 0
}

type VariantMeta struct {
	Url        string
	Resolution Resolution
	FrameRate  float64
	Bandwidth  int64
	Quality    string
}

func (vm VariantMeta) QualityLabel() string {
	if vm.Quality != "" {
		return vm.Quality
	}
	if vm.Resolution.IsZero() {
		return ""
	}
	if vm.FrameRate > 30 {
		return fmt.Sprintf("%dp%d", vm.Resolution.Height, int(math.Round(vm.FrameRate)))
	}
	return fmt.Sprintf("%dp", vm.Resolution.Height)
}

type WatchInfo struct {
	Quality    string
	Resolution Resolution
	StartedAt  time.Time
}

type StreamInfo struct {
	ChannelName string

	m                   sync.RWMutex
	variantUrls         map[string]VariantMeta
	variantQualities    map[string]VariantMeta
	requestedAdSegments map[string]bool
}

func NewStreamInfo(channelName string) *StreamInfo {
	return &StreamInfo{
		ChannelName:         channelName,
		variantUrls:         make(map[string]VariantMeta),
		variantQualities:    make(map[string]VariantMeta),
		requestedAdSegments: make(map[string]bool),
	}
}

func (si *StreamInfo) SetVariants(metas []VariantMeta) {
	si.m.Lock()
	defer si.m.Unlock()
	si.variantUrls = make(map[string]VariantMeta, len(metas))
	si.variantQualities = make(map[string]VariantMeta, len(metas))
	for _, meta := range metas {
		si.variantUrls[meta.Url] = meta
		if meta.Quality != "" {
			si.variantQualities[meta.Quality] = meta
		}
	}
}

func (si *StreamInfo) MetaForUrl(url string) (VariantMeta, bool) {
	si.m.RLock()
	defer si.m.RUnlock()
	meta, ok := si.variantUrls[url]
	return meta, ok
}

func (si *StreamInfo) MetaForQuality(quality string) (VariantMeta, bool) {
	si.m.RLock()
	defer si.m.RUnlock()
	meta, ok := si.variantQualities[quality]
	return meta, ok
}

func (si *StreamInfo) Variants() []VariantMeta {
	si.m.RLock()
	defer si.m.RUnlock()
	result := make([]VariantMeta, 0, len(si.variantUrls))
	for _, meta := range si.variantUrls {
		result = append(result, meta)
	}
	return result
}

func (si *StreamInfo) MarkAdSegment(segment string) bool {
	si.m.Lock()
	defer si.m.Unlock()
	if si.requestedAdSegments[segment] {
		return false
	}
	si.requestedAdSegments[segment] = true
	return true
}
