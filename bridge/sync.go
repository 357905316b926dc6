package bridge

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"adsift/atypes"
)

const (
	BUFFERING_THRESHOLD   = 15 * time.Second
	LOW_LATENCY_THRESHOLD = 5 * time.Second
)

// Synchronizer applies worker control messages to the local player. Without
// a player control it keeps tracking banner state and skips everything else.
type Synchronizer struct {
	m          sync.Mutex
	control    atypes.PlayerControl
	lowLatency bool

	showingBanner  bool
	qualityForced  bool
	restoreQuality string
}

func NewSynchronizer(control atypes.PlayerControl) *Synchronizer {
	return &Synchronizer{control: control}
}

func (s *Synchronizer) SetLowLatency(lowLatency bool) {
	s.m.Lock()
	defer s.m.Unlock()
	s.lowLatency = lowLatency
}

func (s *Synchronizer) ShowingBanner() bool {
	s.m.Lock()
	defer s.m.Unlock()

	return s.showingBanner
}

func (s *Synchronizer) HandleMessage(message atypes.Message) {
	switch message.Key {
	case atypes.SHOW_AD_BLOCK_BANNER:
		s.setBanner(true)
	case atypes.HIDE_AD_BLOCK_BANNER:
		s.setBanner(false)
	case atypes.FORCE_CHANGE_QUALITY:
		s.forceQuality(message.Value)
	case atypes.PAUSE_RESUME_PLAYER:
		s.pauseResume()
	default:
		logrus.Debugf("synchronizer ignoring %s", message.Key)
	}
}

func (s *Synchronizer) setBanner(showing bool) {
	s.m.Lock()
	defer s.m.Unlock()
	s.showingBanner = showing
}

func (s *Synchronizer) forceQuality(label string) {
	s.m.Lock()
	defer s.m.Unlock()
	if s.control == nil {
		return
	}

	if label == "" {
		if !s.qualityForced {
			return
		}
		if s.restoreQuality != "" {
			if err := s.control.SetQuality(s.restoreQuality); err != nil {
				logrus.Debugf("cannot restore quality %+v", err)
			}
		}
		if err := s.control.SetAutoQuality(true); err != nil {
			logrus.Debugf("cannot re-enable auto quality %+v", err)
		}
		s.qualityForced = false
		s.restoreQuality = ""

		return
	}

	if !s.qualityForced {
		current, err := s.control.GetQuality()
		if err != nil {
			logrus.Debugf("cannot read current quality %+v", err)
		} else {
			s.restoreQuality = current
		}
		s.qualityForced = true
	}
	if err := s.control.SetQuality(label); err != nil {
		logrus.Debugf("cannot force quality %s %+v", label, err)
	}
}

func (s *Synchronizer) pauseResume() {
	s.m.Lock()
	defer s.m.Unlock()
	s.pauseResumeLocked()
}

func (s *Synchronizer) pauseResumeLocked() {
	if s.control == nil {
		return
	}
	if err := s.control.Pause(); err != nil {
		logrus.Debugf("cannot pause player %+v", err)

		return
	}
	if err := s.control.Play(); err != nil {
		logrus.Debugf("cannot resume player %+v", err)
	}
}

// CorrectBuffering nudges the player with a pause/resume when it fell too
// far behind the live edge, e.g. after a tab refocus or a bridge reconnect.
func (s *Synchronizer) CorrectBuffering() {
	s.m.Lock()
	defer s.m.Unlock()
	if s.control == nil {
		return
	}

	latency, err := s.control.GetLiveLatency()
	if err != nil {
		logrus.Debugf("cannot read live latency %+v", err)

		return
	}

	threshold := BUFFERING_THRESHOLD
	if s.lowLatency {
		threshold = LOW_LATENCY_THRESHOLD
	}
	if latency <= threshold {
		return
	}

	logrus.Infof("live latency %s over threshold, nudging player", latency)
	atypes.Stat(false, "player_sync", "buffering_corrected", atypes.TimeToStat(latency))
	s.pauseResumeLocked()
}
