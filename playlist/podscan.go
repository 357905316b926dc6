package playlist

import (
	"strings"
)

const ROLL_TYPE_MIDROLL = "MIDROLL"

type podScanState int

const (
	OUTSIDE_POD podScanState = iota
	INSIDE_POD
)

type PodInfo struct {
	Attrs    Attributes
	Segments []string
}

func (p *PodInfo) RollType() string {
	return p.Attrs.String("X-TV-TWITCH-AD-ROLL-TYPE")
}

func (p *PodInfo) IsMidroll() bool {
	return p.RollType() == ROLL_TYPE_MIDROLL
}

type podScanner struct {
	state     podScanState
	signifier string
	current   *PodInfo
	pods      []PodInfo
}

func (ps *podScanner) consumeEntry(entry Entry) {
	switch ps.state {
	case OUTSIDE_POD:
		if entry.Kind == TAG && strings.Contains(entry.Raw, ps.signifier) {
			ps.current = &PodInfo{Attrs: entry.Attrs}
			ps.state = INSIDE_POD
		}
	case INSIDE_POD:
		switch {
		case entry.Kind == URI:
			ps.current.Segments = append(ps.current.Segments, entry.Raw)
		case entry.Name == "EXT-X-DATERANGE" && !strings.Contains(entry.Raw, ps.signifier):
			ps.flush()
		}
	}
}

func (ps *podScanner) flush() {
	if ps.current == nil {
		return
	}
	ps.pods = append(ps.pods, *ps.current)
	ps.current = nil
	ps.state = OUTSIDE_POD
}

// ScanAdPods collects stitched ad ranges and the segment URIs they cover.
// A pod opens at the first tag carrying the signifier and closes at the
// next date-range tag without it.
func ScanAdPods(text, signifier string) []PodInfo {
	if signifier == "" {
		return nil
	}
	scanner := &podScanner{signifier: signifier}
	for _, entry := range Parse(text) {
		scanner.consumeEntry(entry)
	}
	scanner.flush()
	return scanner.pods
}
