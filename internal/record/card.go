package record

import (
	"bytes"
	"fmt"
	"html/template"
)

// Card is the styled result artifact posted to the shared log.
type Card struct {
	Title string
	Text  string
	Image string
	// Dice is shown above the text ("Hope: 7", "Fear: 7").
	Dice []Face
	// Details is the breakdown table shown below the text.
	Details []Detail
	Footer  string
}

// Face is one labelled die.
type Face struct {
	Label  string
	Colour string
}

// Detail is one row of the breakdown.
type Detail struct {
	Label  string
	Value  string
	Accent bool
	Total  bool
}

const (
	ColourGold   = "#FFD700"
	ColourOrchid = "#da70d6"
	cardBorder   = "#C9A060"
)

var cardTemplate = template.Must(template.New("card").Parse(`<div class="chat-card" style="border: 2px solid {{.Border}}; border-radius: 8px; overflow: hidden;">
<header class="card-header" style="background: #191919; padding: 8px; border-bottom: 2px solid {{.Border}};">
<h3 style="margin: 0; color: {{.Border}}; text-align: center; text-transform: uppercase; letter-spacing: 1px;">{{.Title}}</h3>
</header>
<div class="card-content" style="{{if .Image}}background-image: url('{{.Image}}'); background-size: cover; {{end}}padding: 20px; min-height: 150px; text-align: center; position: relative;">
<div style="position: absolute; inset: 0; background: rgba(0, 0, 0, 0.6);"></div>
<span style="color: #ffffff; font-weight: bold; position: relative;">
{{- if .Dice}}
<div class="dice" style="display: flex; justify-content: center; gap: 15px; margin-bottom: 10px;">
{{- range .Dice}}<span style="color: {{.Colour}};">{{.Label}}</span>{{end -}}
</div>
{{- end}}
{{.Text}}
{{- if .Details}}
<div class="details" style="margin-top: 15px; padding-top: 10px; border-top: 1px solid rgba(255,255,255,0.2);">
{{- range .Details}}
<div style="display: flex; justify-content: space-between;{{if .Accent}} color: #FFD700;{{end}}{{if .Total}} font-weight: bold;{{end}}"><span>{{.Label}}:</span><span>{{.Value}}</span></div>
{{- end}}
{{- if $.Footer}}
<div class="footer" style="text-align: center; font-size: 0.8em; color: #888; margin-top: 8px;">{{$.Footer}}</div>
{{- end}}
</div>
{{- end}}
</span>
</div>
</div>`))

// HTML renders the card. All text is escaped.
func (c Card) HTML() (string, error) {
	var buf bytes.Buffer
	data := struct {
		Card
		Border string
	}{Card: c, Border: cardBorder}
	if err := cardTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render card: %w", err)
	}
	return buf.String(), nil
}
