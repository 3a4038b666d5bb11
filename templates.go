package main

import (
	"bytes"
	"html/template"

	"github.com/yuin/goldmark"
	"go.uber.org/zap"
)

var pageFuncs = template.FuncMap{
	"markdown": renderMarkdown,
}

var (
	dashboardTemplate = template.Must(template.New("dashboard").Funcs(pageFuncs).Parse(dashboardPage))
	motoTemplate      = template.Must(template.New("moto").Funcs(pageFuncs).Parse(motoPage))
)

// renderMarkdown converts initiative highlight text to HTML. Raw HTML in the
// source is not passed through.
func renderMarkdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(src), &buf); err != nil {
		zap.L().Warn("markdown render failed", zap.Error(err))
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(buf.String())
}

const pageStyle = `
body { font-family: sans-serif; margin: 0 auto; max-width: 1100px; padding: 1em; }
nav a { margin-right: .6em; }
nav a.active { font-weight: bold; }
.layout { display: flex; gap: 2em; align-items: flex-start; }
.map { flex: 2; }
.map img, .map svg { width: 100%; height: auto; }
.highlight { flex: 1; }
.warning { background: #fff3cd; border: 1px solid #e0c36a; padding: .6em; }
.error { background: #f8d7da; border: 1px solid #d9534f; padding: .6em; }
table { border-collapse: collapse; font-size: 12px; }
td, th { border: 1px solid #ccc; padding: 4px; vertical-align: top; }
`

const dashboardPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>` + pageStyle + `</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p>{{.Headline}}</p>
<nav>
{{- range .Initiatives}}
<a href="/?initiative={{.Code}}"{{if eq .Code $.Selected.Code}} class="active"{{end}}>{{.Name}}</a>
{{- end}}
<a href="/moto">Moto status map</a>
</nav>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
{{with .Warning}}<div class="warning">
<strong>{{len .MissingKeys}} state(s) have no data for this initiative and are shown in grey:</strong>
<ul>{{range .MissingKeys}}<li>{{.ID}} {{.Name}}</li>{{end}}</ul>
</div>{{end}}
<div class="layout">
<div class="map">{{with .Map}}{{.}}
<p><a href="/map/{{$.Selected.Code}}.png">PNG</a></p>{{end}}</div>
<div class="highlight">{{markdown .Selected.Description}}</div>
</div>
</body>
</html>
`

const motoPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>` + pageStyle + `</style>
</head>
<body>
<h1>{{.Title}}</h1>
{{markdown .Intro}}
<p><a href="/">Back to initiatives</a> · <a href="/moto.geojson">GeoJSON</a> (centre {{.CenterLat}}, {{.CenterLon}})</p>
<div class="layout">
<div class="map"><img src="/moto.svg" alt="Moto regulatory status map"></div>
</div>
<table>
<tr><th>State</th><th>AMAM</th><th>Status</th><th>Legal Basis</th><th>Reference</th><th>Content</th></tr>
{{range .Statuses}}<tr title="{{.Key.Name}}">
<td><span style="color: {{.Swatch}}">&#9632;</span> {{.Key.Name}}</td><td>{{.AMAM}}</td><td>{{.Status}}</td><td>{{.LegalBasis}}</td><td>{{.Reference}}</td><td>{{.Content}}</td>
</tr>{{end}}
</table>
<h4>Legal context note</h4>
{{markdown .LegalNote}}
<p><a href="{{.StatementURL}}">Read AMAM's statement here</a></p>
</body>
</html>
`
