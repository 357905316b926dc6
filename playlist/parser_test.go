package playlist

import (
	"reflect"
	"testing"

	"adsift/atypes"
)

const masterPlaylist = `#EXTM3U
#EXT-X-TWITCH-INFO:NODE="video-edge.fra02",MANIFEST-NODE="video-weaver.fra02"
#EXT-X-MEDIA:TYPE=VIDEO,GROUP-ID="chunked",NAME="1080p60",AUTOSELECT=YES,DEFAULT=YES
#EXT-X-STREAM-INF:BANDWIDTH=6000000,RESOLUTION=1920x1080,CODECS="avc1.64002A,mp4a.40.2",VIDEO="chunked",FRAME-RATE=60.0
https://usher.example.tv/v1/playlist/chunked.m3u8
#EXT-X-MEDIA:TYPE=VIDEO,GROUP-ID="720p30",NAME="720p",AUTOSELECT=YES,DEFAULT=YES
#EXT-X-STREAM-INF:BANDWIDTH=2373000,RESOLUTION=1280x720,CODECS="avc1.4D401F,mp4a.40.2",VIDEO="720p30",FRAME-RATE=30.0
https://usher.example.tv/v1/playlist/720p30.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=230000,RESOLUTION=284x160,CODECS="avc1.4D400C,mp4a.40.2",VIDEO="160p30",FRAME-RATE=30.0
https://usher.example.tv/v1/playlist/160p30.m3u8
`

func TestParseAttributesTyping(t *testing.T) {
	attrs := ParseAttributes("BANDWIDTH=140000,RESOLUTION=284x160,FRAME-RATE=30.0")
	expected := Attributes{
		"BANDWIDTH":  int64(140000),
		"RESOLUTION": "284x160",
		"FRAME-RATE": float64(30),
	}
	if !reflect.DeepEqual(attrs, expected) {
		t.Fatalf("unexpected attributes: %+v", attrs)
	}
}

func TestParseAttributesQuotedComma(t *testing.T) {
	attrs := ParseAttributes(`CODECS="avc1.4D401F,mp4a.40.2",VIDEO="720p30"`)
	if attrs.String("CODECS") != "avc1.4D401F,mp4a.40.2" {
		t.Fatalf("quoted comma split the pair: %+v", attrs)
	}
	if attrs.String("VIDEO") != "720p30" {
		t.Fatalf("quotes not stripped: %+v", attrs)
	}
}

func TestParseLineEndings(t *testing.T) {
	unix := Parse("#EXTM3U\n#EXT-X-VERSION:3\nsegment.ts\n")
	windows := Parse("#EXTM3U\r\n#EXT-X-VERSION:3\r\nsegment.ts\r\n")
	if !reflect.DeepEqual(unix, windows) {
		t.Fatalf("crlf parse diverged: %+v vs %+v", unix, windows)
	}
	if len(unix) != 3 || unix[2].Kind != URI || unix[2].Raw != "segment.ts" {
		t.Fatalf("unexpected entries: %+v", unix)
	}
}

func TestParseMalformedNeverFails(t *testing.T) {
	entries := Parse("not a playlist at all\njust text\n\n==\n")
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %+v", entries)
	}
	for _, entry := range entries {
		if entry.Kind != URI {
			t.Fatalf("garbage line classified as tag: %+v", entry)
		}
	}
}

func TestExtractVariants(t *testing.T) {
	variants := ExtractVariants(masterPlaylist)
	if len(variants) != 3 {
		t.Fatalf("expected 3 variants, got %d", len(variants))
	}
	expected := atypes.VariantMeta{
		Url:        "https://usher.example.tv/v1/playlist/720p30.m3u8",
		Resolution: atypes.Resolution{Width: 1280, Height: 720},
		FrameRate:  30,
		Bandwidth:  2373000,
		Quality:    "720p30",
	}
	if !reflect.DeepEqual(variants[1], expected) {
		t.Fatalf("unexpected variant: %+v", variants[1])
	}
	if variants[0].Quality != "chunked" || variants[0].FrameRate != 60 {
		t.Fatalf("unexpected first variant: %+v", variants[0])
	}
}

func TestExtractVariantsIgnoresDetachedUris(t *testing.T) {
	variants := ExtractVariants("#EXTM3U\nhttps://usher.example.tv/nowhere.m3u8\n")
	if len(variants) != 0 {
		t.Fatalf("uri without stream-inf extracted: %+v", variants)
	}
}

func TestParseQualityHeight(t *testing.T) {
	cases := map[string]int{"480p": 480, "720p60": 720, "1080": 1080}
	for quality, expected := range cases {
		height, err := ParseQualityHeight(quality)
		if err != nil || height != expected {
			t.Fatalf("%s: got %d, %v", quality, height, err)
		}
	}
	if _, err := ParseQualityHeight("auto"); err == nil {
		t.Fatal("non-numeric quality parsed")
	}
}

func TestHasAdSignifier(t *testing.T) {
	if !HasAdSignifier(`#EXT-X-DATERANGE:CLASS="twitch-stitched-ad"`, "stitched") {
		t.Fatal("signifier not detected")
	}
	if HasAdSignifier(masterPlaylist, "stitched") {
		t.Fatal("false positive on clean playlist")
	}
	if HasAdSignifier("anything", "") {
		t.Fatal("empty signifier must never match")
	}
}

func TestHasMidrollMarker(t *testing.T) {
	if !HasMidrollMarker(`X-TV-TWITCH-AD-ROLL-TYPE="MIDROLL"`, `"MIDROLL"`) {
		t.Fatal("midroll marker not detected")
	}
	if HasMidrollMarker(`X-TV-TWITCH-AD-ROLL-TYPE="PREROLL"`, `"MIDROLL"`) {
		t.Fatal("false positive on preroll")
	}
}
