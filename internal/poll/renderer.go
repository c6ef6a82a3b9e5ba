package poll

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
)

//go:embed templates/*.html
var templates embed.FS

var resultTmpl *template.Template
var titleTmpl *template.Template

func init() {
	var err error
	resultTmpl, err = template.New("result.html").
		Funcs(template.FuncMap{"starBoost": func() float64 { return StarBoost }}).
		ParseFS(templates, "templates/result.html")
	if err != nil {
		panic(err)
	}
	titleTmpl, err = template.ParseFS(templates, "templates/title.html")
	if err != nil {
		panic(err)
	}
}

// RenderResult renders the winner announcement as Telegram HTML.
func RenderResult(result Result) (string, error) {
	var buf bytes.Buffer
	if err := resultTmpl.Execute(&buf, result); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// RenderTitle renders the poll question for the given plan.
func RenderTitle(p Plan) (string, error) {
	var buf bytes.Buffer
	if err := titleTmpl.Execute(&buf, p); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}
