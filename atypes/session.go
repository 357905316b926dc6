package atypes

import (
	"strconv"
	"sync"
)

type Session struct {
	m             sync.RWMutex
	clientId      string
	clientVersion string
	clientSession string
	deviceId      string
	integrity     string
	authorization string
	squadStream   bool
	showingAd     bool
}

func NewSession(clientId string) *Session {
	return &Session{clientId: clientId}
}

func (s *Session) ClientId() string {
	s.m.RLock()
	defer s.m.RUnlock()
	return s.clientId
}

func (s *Session) ClientVersion() string {
	s.m.RLock()
	defer s.m.RUnlock()
	return s.clientVersion
}

func (s *Session) ClientSession() string {
	s.m.RLock()
	defer s.m.RUnlock()
	return s.clientSession
}

func (s *Session) DeviceId() string {
	s.m.RLock()
	defer s.m.RUnlock()
	return s.deviceId
}

func (s *Session) Integrity() string {
	s.m.RLock()
	defer s.m.RUnlock()
	return s.integrity
}

func (s *Session) Authorization() string {
	s.m.RLock()
	defer s.m.RUnlock()
	return s.authorization
}

func (s *Session) IsSquadStream() bool {
	s.m.RLock()
	defer s.m.RUnlock()
	return s.squadStream
}

func (s *Session) ShowingAd() bool {
	s.m.RLock()
	defer s.m.RUnlock()
	return s.showingAd
}

func (s *Session) SetDeviceId(deviceId string) {
	s.m.Lock()
	defer s.m.Unlock()
	s.deviceId = deviceId
}

func (s *Session) SetShowingAd(showing bool) {
	s.m.Lock()
	defer s.m.Unlock()
	s.showingAd = showing
}

func (s *Session) ApplyMessage(msg Message) bool {
	s.m.Lock()
	defer s.m.Unlock()
	switch msg.Key {
	case UPDATE_IS_SQUAD_STREAM:
		squad, _ := strconv.ParseBool(msg.Value)
		s.squadStream = squad
	case UPDATE_CLIENT_VERSION:
		s.clientVersion = msg.Value
	case UPDATE_CLIENT_SESSION:
		s.clientSession = msg.Value
	case UPDATE_CLIENT_ID:
		s.clientId = msg.Value
	case UPDATE_DEVICE_ID:
		if s.deviceId == "" {
			s.deviceId = msg.Value
		}
	case UPDATE_CLIENT_INTEGRITY_HEADER:
		s.integrity = msg.Value
	case UPDATE_AUTHORIZATION_HEADER:
		s.authorization = msg.Value
	default:
		return false
	}
	return true
}
