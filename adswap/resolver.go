package adswap

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"adsift/atypes"
	"adsift/playlist"
)

type streamState int

const (
	CLEAN streamState = iota
	AD_ACTIVE
)

type streamEntry struct {
	m             sync.Mutex
	state         streamState
	substituted   bool
	forcedQuality bool
	declaredPods  map[string]bool
}

type Resolver struct {
	m       sync.Mutex
	config  SwapConfig
	cache   *ManifestCache
	fetcher *Fetcher
	tasks   *TaskQueue
	session *atypes.Session
	streams map[string]*streamEntry

	Notify      func(message atypes.Message)
	DeclarePods func(channelName string, pods []playlist.PodInfo)
}

func NewResolver(config SwapConfig, session *atypes.Session, fetcher *Fetcher) *Resolver {
	return &Resolver{
		config:  config,
		cache:   NewManifestCache(config),
		fetcher: fetcher,
		tasks:   NewTaskQueue(config.TaskQueueSize),
		session: session,
		streams: make(map[string]*streamEntry),
	}
}

func (r *Resolver) Close() {
	r.tasks.Close()
}

func (r *Resolver) Enqueue(name string, task func()) bool {
	return r.tasks.Enqueue(name, task)
}

func (r *Resolver) Cache() *ManifestCache {
	return r.cache
}

// Snapshot reports the suppression state for one stream key, for diagnostics.
func (r *Resolver) Snapshot(channelName, playerType string) (adActive bool, substituted bool) {
	r.m.Lock()
	entry := r.streams[composeStreamKey(channelName, playerType)]
	r.m.Unlock()
	if entry == nil {
		return false, false
	}
	entry.m.Lock()
	defer entry.m.Unlock()
	return entry.state == AD_ACTIVE, entry.substituted
}

// Process inspects one media playlist cycle and returns the text to serve.
// Substitution is best effort: every failure path returns the original text.
func (r *Resolver) Process(stream *atypes.StreamInfo, playerType string, meta atypes.VariantMeta, playlistText string) string {
	if r.session.IsSquadStream() {
		return playlistText
	}

	entry := r.streamEntry(composeStreamKey(stream.ChannelName, playerType))
	entry.m.Lock()
	defer entry.m.Unlock()

	if !playlist.HasAdSignifier(playlistText, r.config.AdSignifier) {
		r.leaveAdState(stream.ChannelName, entry)
		return playlistText
	}

	if entry.state == CLEAN {
		entry.state = AD_ACTIVE
		logrus.WithField("channel", stream.ChannelName).Infof("ad pod started, player type %s", playerType)
		r.notify(atypes.Message{Key: atypes.SHOW_AD_BLOCK_BANNER})
		atypes.Stat(false, "ad_break", "started", playerType)
	}
	r.session.SetShowingAd(true)

	r.declareSideEffects(stream, entry, playlistText)

	substitute, picked, err := r.resolveSubstitute(stream.ChannelName, playerType, meta)
	if err != nil {
		logrus.WithField("channel", stream.ChannelName).Debugf("substitution failed, serving original %+v", err)
		atypes.Stat(true, "ad_swap", "failed", playerType)
		return playlistText
	}

	if !entry.forcedQuality && !picked.Resolution.IsZero() && picked.Resolution != meta.Resolution {
		entry.forcedQuality = true
		r.notify(atypes.Message{Key: atypes.FORCE_CHANGE_QUALITY, Value: picked.QualityLabel()})
	}
	entry.substituted = true
	atypes.Stat(false, "ad_swap", "served", playerType)

	return substitute
}

func (r *Resolver) streamEntry(key string) *streamEntry {
	r.m.Lock()
	defer r.m.Unlock()
	entry := r.streams[key]
	if entry == nil {
		entry = &streamEntry{declaredPods: make(map[string]bool)}
		r.streams[key] = entry
	}
	return entry
}

func (r *Resolver) leaveAdState(channelName string, entry *streamEntry) {
	if entry.state != AD_ACTIVE {
		return
	}
	logrus.WithField("channel", channelName).Infof("ad pod finished")
	r.notify(atypes.Message{Key: atypes.HIDE_AD_BLOCK_BANNER})
	r.notify(atypes.Message{Key: atypes.FORCE_CHANGE_QUALITY})
	if entry.substituted {
		r.notify(atypes.Message{Key: atypes.PAUSE_RESUME_PLAYER})
	}
	entry.state = CLEAN
	entry.substituted = false
	entry.forcedQuality = false
	entry.declaredPods = make(map[string]bool)
	r.session.SetShowingAd(false)
	atypes.Stat(false, "ad_break", "finished", "")
}

func (r *Resolver) declareSideEffects(stream *atypes.StreamInfo, entry *streamEntry, playlistText string) {
	pods := playlist.ScanAdPods(playlistText, r.config.AdSignifier)
	if len(pods) == 0 {
		return
	}

	if !playlist.HasMidrollMarker(playlistText, r.config.MidrollSignifier) {
		r.requestAdSegment(stream, pods)
	}

	fresh := make([]playlist.PodInfo, 0, len(pods))
	for _, pod := range pods {
		id := pod.Attrs.String("ID")
		if id == "" && len(pod.Segments) != 0 {
			id = pod.Segments[0]
		}
		if id == "" || entry.declaredPods[id] {
			continue
		}
		entry.declaredPods[id] = true
		fresh = append(fresh, pod)
	}
	if len(fresh) != 0 && r.DeclarePods != nil {
		r.DeclarePods(stream.ChannelName, fresh)
	}
}

// requestAdSegment enqueues at most one accounting fetch per cycle, for the
// first segment not already marked on the stream.
func (r *Resolver) requestAdSegment(stream *atypes.StreamInfo, pods []playlist.PodInfo) {
	for _, pod := range pods {
		for _, segment := range pod.Segments {
			if !stream.MarkAdSegment(segment) {
				continue
			}
			segmentUrl := segment
			r.tasks.Enqueue("ad_segment", func() {
				err := r.fetcher.Consume(segmentUrl)
				atypes.Stat(err != nil, "ad_segment", "consume", "")
				if err != nil {
					logrus.Debugf("ad segment consume failed %+v", err)
				}
			})
			return
		}
	}
}

func (r *Resolver) resolveSubstitute(channelName, playerType string, meta atypes.VariantMeta) (string, atypes.VariantMeta, error) {
	if text, picked, ok := r.cache.Get(channelName, playerType, meta.Resolution); ok {
		if age, known := r.cache.Age(channelName, playerType); known {
			logrus.WithField("channel", channelName).Debugf("reusing substitute fetched %s ago", age)
		}
		return text, picked, nil
	}

	for _, strategy := range r.config.Strategies {
		text, picked, err := r.fetcher.Fetch(strategy, channelName, meta)
		if err != nil {
			logrus.WithField("channel", channelName).Debugf("strategy %s failed %+v", strategy, err)
			atypes.Stat(true, "ad_swap_strategy", strategy, "")
			continue
		}
		if playlist.HasAdSignifier(text, r.config.AdSignifier) {
			logrus.WithField("channel", channelName).Debugf("strategy %s returned stitched text", strategy)
			atypes.Stat(true, "ad_swap_strategy", strategy, "stitched")
			continue
		}
		atypes.Stat(false, "ad_swap_strategy", strategy, "")
		r.cache.Set(channelName, playerType, meta.Resolution, picked, text)
		return text, picked, nil
	}
	return "", atypes.VariantMeta{}, errors.Errorf("no substitute for %s", channelName)
}

func (r *Resolver) notify(message atypes.Message) {
	if r.Notify == nil {
		return
	}
	r.Notify(message)
}
