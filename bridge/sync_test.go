package bridge

import (
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"adsift/atypes"
)

type fakeControl struct {
	m       sync.Mutex
	quality string
	latency time.Duration
	calls   []string
}

func (fc *fakeControl) record(call string) {
	fc.m.Lock()
	defer fc.m.Unlock()
	fc.calls = append(fc.calls, call)
}

func (fc *fakeControl) sequence() []string {
	fc.m.Lock()
	defer fc.m.Unlock()

	return append([]string(nil), fc.calls...)
}

func (fc *fakeControl) reset() {
	fc.m.Lock()
	defer fc.m.Unlock()
	fc.calls = nil
}

func (fc *fakeControl) currentQuality() string {
	fc.m.Lock()
	defer fc.m.Unlock()

	return fc.quality
}

func (fc *fakeControl) Pause() error {
	fc.record("pause")

	return nil
}

func (fc *fakeControl) Play() error {
	fc.record("play")

	return nil
}

func (fc *fakeControl) GetQuality() (string, error) {
	fc.record("get")
	fc.m.Lock()
	defer fc.m.Unlock()

	return fc.quality, nil
}

func (fc *fakeControl) SetQuality(quality string) error {
	fc.record("set:" + quality)
	fc.m.Lock()
	defer fc.m.Unlock()
	fc.quality = quality

	return nil
}

func (fc *fakeControl) SetAutoQuality(enabled bool) error {
	fc.record(fmt.Sprintf("auto:%v", enabled))

	return nil
}

func (fc *fakeControl) GetLiveLatency() (time.Duration, error) {
	fc.record("latency")
	fc.m.Lock()
	defer fc.m.Unlock()

	return fc.latency, nil
}

func TestSynchronizerBannerState(t *testing.T) {
	s := NewSynchronizer(nil)
	if s.ShowingBanner() {
		t.Fatalf("banner should start hidden")
	}

	s.HandleMessage(atypes.Message{Key: atypes.SHOW_AD_BLOCK_BANNER})
	if !s.ShowingBanner() {
		t.Fatalf("banner should be showing")
	}

	s.HandleMessage(atypes.Message{Key: atypes.HIDE_AD_BLOCK_BANNER})
	if s.ShowingBanner() {
		t.Fatalf("banner should be hidden again")
	}
}

func TestSynchronizerForceAndRestore(t *testing.T) {
	control := &fakeControl{quality: "1080p60"}
	s := NewSynchronizer(control)

	s.HandleMessage(atypes.Message{Key: atypes.FORCE_CHANGE_QUALITY, Value: "720p30"})
	s.HandleMessage(atypes.Message{Key: atypes.FORCE_CHANGE_QUALITY, Value: "480p"})
	s.HandleMessage(atypes.Message{Key: atypes.FORCE_CHANGE_QUALITY, Value: ""})

	expected := []string{"get", "set:720p30", "set:480p", "set:1080p60", "auto:true"}
	if !reflect.DeepEqual(control.sequence(), expected) {
		t.Fatalf("unexpected call sequence %v", control.sequence())
	}
}

func TestSynchronizerRestoreWithoutForce(t *testing.T) {
	control := &fakeControl{quality: "1080p60"}
	s := NewSynchronizer(control)

	s.HandleMessage(atypes.Message{Key: atypes.FORCE_CHANGE_QUALITY, Value: ""})
	if len(control.sequence()) != 0 {
		t.Fatalf("restore without a forced quality should be a no-op, got %v", control.sequence())
	}
}

func TestSynchronizerPauseResume(t *testing.T) {
	control := &fakeControl{}
	s := NewSynchronizer(control)

	s.HandleMessage(atypes.Message{Key: atypes.PAUSE_RESUME_PLAYER})

	expected := []string{"pause", "play"}
	if !reflect.DeepEqual(control.sequence(), expected) {
		t.Fatalf("unexpected call sequence %v", control.sequence())
	}
}

func TestSynchronizerNilControlSkipsSilently(t *testing.T) {
	s := NewSynchronizer(nil)

	s.HandleMessage(atypes.Message{Key: atypes.FORCE_CHANGE_QUALITY, Value: "720p30"})
	s.HandleMessage(atypes.Message{Key: atypes.PAUSE_RESUME_PLAYER})
	s.HandleMessage(atypes.Message{Key: atypes.SHOW_AD_BLOCK_BANNER})
	s.CorrectBuffering()

	if !s.ShowingBanner() {
		t.Fatalf("banner state should be tracked even without a control")
	}
}

func TestSynchronizerBufferingCorrection(t *testing.T) {
	control := &fakeControl{latency: 20 * time.Second}
	s := NewSynchronizer(control)

	s.CorrectBuffering()
	expected := []string{"latency", "pause", "play"}
	if !reflect.DeepEqual(control.sequence(), expected) {
		t.Fatalf("unexpected call sequence %v", control.sequence())
	}

	control.reset()
	control.latency = 10 * time.Second
	s.CorrectBuffering()
	if !reflect.DeepEqual(control.sequence(), []string{"latency"}) {
		t.Fatalf("latency under threshold should not nudge, got %v", control.sequence())
	}

	s.SetLowLatency(true)
	control.reset()
	s.CorrectBuffering()
	expected = []string{"latency", "pause", "play"}
	if !reflect.DeepEqual(control.sequence(), expected) {
		t.Fatalf("low latency threshold should trip at 10s, got %v", control.sequence())
	}

	control.reset()
	control.latency = 3 * time.Second
	s.CorrectBuffering()
	if !reflect.DeepEqual(control.sequence(), []string{"latency"}) {
		t.Fatalf("3s is within the low latency threshold, got %v", control.sequence())
	}
}
