package hls_relay

import (
	"html/template"
	"io"
)

const statusTemplate = `<!DOCTYPE html>
<html>
<head><title>{{.Channel}} status</title></head>
<body>
<h1>{{.Channel}}</h1>
<table>
<tr><td>Player type</td><td>{{.PlayerType}}</td></tr>
<tr><td>Ad break active</td><td>{{.AdActive}}</td></tr>
<tr><td>Serving substitute</td><td>{{.Substituted}}</td></tr>
<tr><td>Substitute quality</td><td>{{.SubstituteQuality}}</td></tr>
<tr><td>Cached manifest age</td><td>{{.CacheAge}}</td></tr>
</table>
</body>
</html>
`

type StatusPage struct {
	Channel           string
	PlayerType        string
	AdActive          bool
	Substituted       bool
	SubstituteQuality string
	CacheAge          string
}

func NewStatusPage(channel string) StatusPage {
	return StatusPage{Channel: channel}
}

func (p *StatusPage) ComposeStatusPage(writer io.Writer) error {
	t, err := template.New("SuppressionStatus").Parse(statusTemplate)
	if err != nil {
		return err
	}

	return t.Execute(writer, p)
}
