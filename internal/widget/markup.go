package widget

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/a-h/templ"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("widgets").Funcs(template.FuncMap{
	"num": formatNumber,
	"has": selected,
}).ParseFS(templateFS, "templates/*.html"))

// view renders the named widget template with data.
func view(name string, data any) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		return templates.ExecuteTemplate(w, name, data)
	})
}

// failed is a component that only reports err.
func failed(err error) templ.Component {
	return templ.ComponentFunc(func(context.Context, io.Writer) error { return err })
}

// frame is the markup every widget is wrapped in.
type frame struct {
	ID      string
	Kind    Kind
	Caption string
	Body    template.HTML
}

// HTML renders c to a string usable inside another template.
func HTML(ctx context.Context, c templ.Component) (template.HTML, error) {
	var buf bytes.Buffer
	if err := c.Render(ctx, &buf); err != nil {
		return "", err
	}
	// Components are produced by the widget templates, which escape their input.
	return template.HTML(buf.String()), nil
}

func formatNumber(f float64) string {
	return fmt.Sprint(number(f))
}
