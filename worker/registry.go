package worker

import (
	"sync"

	"adsift/atypes"
)

// streamRegistry maps watched channels to their rendition tables and api
// handles. Media urls are keyed back to the owning channel so the capture
// transport can attribute a playlist fetch without parsing the url.
type streamRegistry struct {
	m        sync.RWMutex
	streams  map[string]*atypes.StreamInfo
	handles  map[string]atypes.Channel
	urlOwner map[string]string
}

func newStreamRegistry() *streamRegistry {
	return &streamRegistry{
		streams:  make(map[string]*atypes.StreamInfo),
		handles:  make(map[string]atypes.Channel),
		urlOwner: make(map[string]string),
	}
}

func (sr *streamRegistry) capture(channelName string, metas []atypes.VariantMeta) (*atypes.StreamInfo, bool) {
	sr.m.Lock()
	defer sr.m.Unlock()

	stream, found := sr.streams[channelName]
	if !found {
		stream = atypes.NewStreamInfo(channelName)
		sr.streams[channelName] = stream
	}
	stream.SetVariants(metas)

	for fetchUrl, owner := range sr.urlOwner {
		if owner == channelName {
			delete(sr.urlOwner, fetchUrl)
		}
	}
	for _, meta := range metas {
		sr.urlOwner[meta.Url] = channelName
	}

	return stream, !found
}

func (sr *streamRegistry) setHandle(channelName string, handle atypes.Channel) {
	sr.m.Lock()
	defer sr.m.Unlock()
	sr.handles[channelName] = handle
}

func (sr *streamRegistry) lookup(channelName string) (*atypes.StreamInfo, atypes.Channel, bool) {
	sr.m.RLock()
	defer sr.m.RUnlock()
	stream, found := sr.streams[channelName]
	return stream, sr.handles[channelName], found
}

func (sr *streamRegistry) ownerOf(fetchUrl string) (*atypes.StreamInfo, atypes.Channel, bool) {
	sr.m.RLock()
	defer sr.m.RUnlock()
	channelName, found := sr.urlOwner[fetchUrl]
	if !found {
		return nil, nil, false
	}
	return sr.streams[channelName], sr.handles[channelName], true
}

func (sr *streamRegistry) disconnectAll() {
	sr.m.Lock()
	defer sr.m.Unlock()
	for channelName, handle := range sr.handles {
		if handle != nil {
			handle.Disconnect()
		}
		delete(sr.handles, channelName)
	}
}
