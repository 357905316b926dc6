package playlist

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"adsift/atypes"
)

type EntryKind int

const (
	TAG EntryKind = iota
	URI
)

type Entry struct {
	Kind  EntryKind
	Name  string
	Attrs Attributes
	Raw   string
}

type Attributes map[string]interface{}

func (a Attributes) String(key string) string {
	if v, ok := a[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Int converts quoted numbers too, date-range attributes always quote them.
func (a Attributes) Int(key string) int64 {
	switch v := a[key].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	case string:
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return 0
}

func (a Attributes) Float(key string) float64 {
	switch v := a[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return 0
}

func Parse(text string) []Entry {
	text = strings.Replace(text, "\r\n", "\n", -1)
	lines := strings.Split(text, "\n")
	entries := make([]Entry, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			name := line[1:]
			var attrs Attributes
			if colon := strings.IndexByte(name, ':'); colon >= 0 {
				attrs = ParseAttributes(name[colon+1:])
				name = name[:colon]
			}
			entries = append(entries, Entry{Kind: TAG, Name: name, Attrs: attrs, Raw: line})
		} else {
			entries = append(entries, Entry{Kind: URI, Raw: line})
		}
	}
	return entries
}

func ParseAttributes(list string) Attributes {
	attrs := make(Attributes)
	for _, pair := range splitAttributeList(list) {
		eq := strings.IndexByte(pair, '=')
		if eq < 0 {
			continue
		}
		key := strings.TrimSpace(pair[:eq])
		if key == "" {
			continue
		}
		attrs[key] = parseAttributeValue(strings.TrimSpace(pair[eq+1:]))
	}
	return attrs
}

// commas inside quoted values do not split pairs
func splitAttributeList(list string) []string {
	parts := make([]string, 0, 8)
	start := 0
	quoted := false
	for i := 0; i < len(list); i++ {
		switch list[i] {
		case '"':
			quoted = !quoted
		case ',':
			if !quoted {
				parts = append(parts, list[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, list[start:])
}

func parseAttributeValue(value string) interface{} {
	if len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"' {
		return value[1 : len(value)-1]
	}
	if i, err := strconv.ParseInt(value, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return value
}

func ExtractVariants(text string) []atypes.VariantMeta {
	result := make([]atypes.VariantMeta, 0, 8)
	var streamInf Attributes
	for _, entry := range Parse(text) {
		if entry.Kind == TAG {
			if entry.Name == "EXT-X-STREAM-INF" {
				streamInf = entry.Attrs
			} else {
				streamInf = nil
			}
			continue
		}
		if streamInf == nil {
			continue
		}
		meta := atypes.VariantMeta{
			Url:       entry.Raw,
			FrameRate: streamInf.Float("FRAME-RATE"),
			Bandwidth: streamInf.Int("BANDWIDTH"),
			Quality:   streamInf.String("VIDEO"),
		}
		if s := streamInf.String("RESOLUTION"); s != "" {
			meta.Resolution, _ = atypes.ParseResolution(s)
		}
		result = append(result, meta)
		streamInf = nil
	}
	return result
}

// ParseQualityHeight reads the leading digits of a quality label,
// "480p" and "720p60" give 480 and 720.
func ParseQualityHeight(quality string) (int, error) {
	i := 0
	for i < len(quality) && quality[i] >= '0' && quality[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, errors.Errorf("no height in quality %q", quality)
	}
	return strconv.Atoi(quality[:i])
}

func HasAdSignifier(text, signifier string) bool {
	return signifier != "" && strings.Contains(text, signifier)
}

func HasMidrollMarker(text, marker string) bool {
	return marker != "" && strings.Contains(text, marker)
}
