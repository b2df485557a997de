package page

import (
	"context"
	"embed"
	"html/template"
	"io"

	"github.com/a-h/templ"

	"github.com/conneroisu/widgetsync/internal/widget"
)

//go:embed templates/dashboard.html
var templateFS embed.FS

var dashboard = template.Must(template.ParseFS(templateFS, "templates/dashboard.html"))

const stylesheet = `body{font-family:sans-serif;margin:0}
.dashboard{display:grid;grid-template-columns:18rem 1fr;min-height:100vh}
.controls{padding:1rem;background:#f4f4f4}
.visuals{padding:1rem}
.widget{margin-bottom:1rem}
.messages{list-style:none;padding:0}
.message-error{color:#a00}.message-success{color:#070}.message-warning{color:#a60}`

type dashboardData struct {
	Title    string
	Style    template.CSS
	Controls []template.HTML
	Visuals  []template.HTML
	Messages []Message
}

// Render returns the whole dashboard: controls in the sidebar, visuals in
// the main column and the feedback feed underneath.
func (p *Page) Render() templ.Component {
	widgets := p.Widgets()
	messages := p.Messages()

	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		data := dashboardData{Title: p.title, Style: template.CSS(stylesheet), Messages: messages}
		for _, wd := range widgets {
			frag, err := widget.HTML(ctx, wd.Render())
			if err != nil {
				return err
			}
			if wd.Kind().Control() {
				data.Controls = append(data.Controls, frag)
			} else {
				data.Visuals = append(data.Visuals, frag)
			}
		}
		return dashboard.Execute(w, data)
	})
}
