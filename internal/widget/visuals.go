package widget

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"

	"github.com/a-h/templ"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/conneroisu/widgetsync/internal/channel"
)

func asList(v any) ([]any, error) {
	switch l := v.(type) {
	case nil:
		return nil, nil
	case []any:
		return l, nil
	}
	return nil, invalid("expected a list, got %T", v)
}

func asMap(v any) (map[string]any, error) {
	switch m := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return m, nil
	}
	return nil, invalid("expected a mapping, got %T", v)
}

// Table

// Column describes one table column. DataIndex selects the row field.
type Column struct {
	Title     string `json:"title"`
	DataIndex string `json:"dataIndex"`
}

type TableState struct {
	Data     []map[string]any `json:"data"`
	Columns  []Column         `json:"columns"`
	Selected []int64          `json:"selected"`
}

func parseColumns(v any) ([]Column, error) {
	list, err := asList(v)
	if err != nil {
		if ss, ok := v.([]string); ok {
			list = make([]any, len(ss))
			for i, s := range ss {
				list[i] = s
			}
		} else {
			return nil, err
		}
	}

	cols := make([]Column, 0, len(list))
	for _, e := range list {
		switch c := e.(type) {
		case string:
			cols = append(cols, Column{Title: c, DataIndex: c})
		case map[string]any:
			col := Column{}
			col.Title, _ = c["title"].(string)
			col.DataIndex, _ = c["dataIndex"].(string)
			if col.DataIndex == "" {
				col.DataIndex, _ = c["key"].(string)
			}
			if col.DataIndex == "" {
				col.DataIndex = col.Title
			}
			if col.Title == "" {
				col.Title = col.DataIndex
			}
			cols = append(cols, col)
		default:
			return nil, invalid("unsupported column %T", e)
		}
	}
	return cols, nil
}

func parseRows(v any) ([]map[string]any, error) {
	if rows, ok := v.([]map[string]any); ok {
		return rows, nil
	}
	list, err := asList(v)
	if err != nil {
		return nil, err
	}
	rows := make([]map[string]any, 0, len(list))
	for _, e := range list {
		row, ok := e.(map[string]any)
		if !ok {
			return nil, invalid("table row must be a mapping, got %T", e)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

type tableRow struct {
	Index    int
	Selected bool
	Cells    []string
}

func tableView(s TableState) any {
	rows := make([]tableRow, len(s.Data))
	for i, row := range s.Data {
		rows[i] = tableRow{Index: i, Cells: make([]string, len(s.Columns))}
		for j, c := range s.Columns {
			if v, ok := row[c.DataIndex]; ok && v != nil {
				rows[i].Cells[j] = fmt.Sprint(v)
			}
		}
	}
	for _, sel := range s.Selected {
		if sel >= 0 && int(sel) < len(rows) {
			rows[sel].Selected = true
		}
	}
	return struct {
		Columns []Column
		Rows    []tableRow
	}{s.Columns, rows}
}

func newTable(spec Spec, deps Deps) (Widget, error) {
	cols, err := parseColumns(spec.Props["columns"])
	if err != nil {
		return nil, withWidget(propErr("columns", err), spec.ID)
	}
	rows, err := parseRows(spec.Props["data"])
	if err != nil {
		return nil, withWidget(propErr("data", err), spec.ID)
	}

	// "#data" carries either the rows or a [rows, columns] pair.
	setData := func(s TableState, v any) (TableState, error) {
		rowsArg, colsArg := v, any(nil)
		if pair, ok := v.([]any); ok && len(pair) == 2 {
			if _, nested := pair[0].([]any); nested {
				rowsArg, colsArg = pair[0], pair[1]
			}
		}
		rows, err := parseRows(rowsArg)
		if err != nil {
			return s, err
		}
		if colsArg != nil {
			cols, err := parseColumns(colsArg)
			if err != nil {
				return s, err
			}
			s.Columns = cols
		}
		s.Data = rows
		s.Selected = nil
		return s, nil
	}
	value := func(s TableState) any { return append([]int64{}, s.Selected...) }

	return NewAdapter(spec, deps, TableState{Data: rows, Columns: cols}, Behavior[TableState]{
		Value:   value,
		Primary: "select",
		Actions: map[string]Action[TableState]{
			"select": func(s TableState, v any) (TableState, any, error) {
				idx, err := asInts(v)
				if err != nil {
					return s, nil, err
				}
				for _, i := range idx {
					if i < 0 || int(i) >= len(s.Data) {
						return s, nil, invalid("row %d out of range", i)
					}
				}
				s.Selected = idx
				return s, value(s), nil
			},
		},
		Setters: map[string]Reducer[TableState]{
			"data": setData,
			"columns": func(s TableState, v any) (TableState, error) {
				cols, err := parseColumns(v)
				s.Columns = cols
				return s, err
			},
		},
		Queries: getter(value),
		Render: func(id string, s TableState) templ.Component {
			return view("table", tableView(s))
		},
	}), nil
}

// Plot

type PlotState struct {
	Data      []any          `json:"data"`
	Layout    map[string]any `json:"layout"`
	Config    map[string]any `json:"config"`
	Selection any            `json:"selection"`
	Click     any            `json:"click"`
	Hover     any            `json:"hover"`
	Relayout  map[string]any `json:"relayout"`
}

func newPlot(spec Spec, deps Deps) (Widget, error) {
	data, err := asList(spec.Props["data"])
	if err != nil {
		return nil, withWidget(propErr("data", err), spec.ID)
	}
	layout, err := asMap(spec.Props["layout"])
	if err != nil {
		return nil, withWidget(propErr("layout", err), spec.ID)
	}
	config, err := asMap(spec.Props["config"])
	if err != nil {
		return nil, withWidget(propErr("config", err), spec.ID)
	}

	record := func(field func(*PlotState, any)) Action[PlotState] {
		return func(s PlotState, v any) (PlotState, any, error) {
			field(&s, v)
			return s, v, nil
		}
	}
	setMap := func(field func(*PlotState) *map[string]any) Reducer[PlotState] {
		return func(s PlotState, v any) (PlotState, error) {
			m, err := asMap(v)
			if err != nil {
				return s, err
			}
			*field(&s) = m
			return s, nil
		}
	}
	selection := func(s PlotState) any { return s.Selection }

	return NewAdapter(spec, deps, PlotState{Data: data, Layout: layout, Config: config}, Behavior[PlotState]{
		Value:   selection,
		Primary: "select",
		Actions: map[string]Action[PlotState]{
			"select":            record(func(s *PlotState, v any) { s.Selection = v }),
			channel.SuffixClick: record(func(s *PlotState, v any) { s.Click = v }),
			"hover":             record(func(s *PlotState, v any) { s.Hover = v }),
			"relayout": func(s PlotState, v any) (PlotState, any, error) {
				m, err := asMap(v)
				if err != nil {
					return s, nil, err
				}
				s.Relayout = m
				return s, m, nil
			},
		},
		Setters: map[string]Reducer[PlotState]{
			"all": func(s PlotState, v any) (PlotState, error) {
				m, err := asMap(v)
				if err != nil {
					return s, err
				}
				if s.Data, err = asList(m["data"]); err != nil {
					return s, err
				}
				if s.Layout, err = asMap(m["layout"]); err != nil {
					return s, err
				}
				s.Config, err = asMap(m["config"])
				return s, err
			},
			"data": func(s PlotState, v any) (PlotState, error) {
				data, err := asList(v)
				s.Data = data
				return s, err
			},
			"layout": setMap(func(s *PlotState) *map[string]any { return &s.Layout }),
			"config": setMap(func(s *PlotState) *map[string]any { return &s.Config }),
		},
		Queries: map[string]func(PlotState) any{
			channel.SuffixGet: selection,
			"get_select":      selection,
			"get_click":       func(s PlotState) any { return s.Click },
			"get_hover":       func(s PlotState) any { return s.Hover },
			"get_layout":      func(s PlotState) any { return s.Relayout },
		},
		Render: func(id string, s PlotState) templ.Component {
			figure, err := json.Marshal(map[string]any{"data": s.Data, "layout": s.Layout, "config": s.Config})
			if err != nil {
				return failed(err)
			}
			return view("plot", struct {
				ID, Figure string
				Traces     int
			}{id, string(figure), len(s.Data)})
		},
	}), nil
}

// Progress

// Progress statuses.
const (
	StatusActive    = "active"
	StatusSuccess   = "success"
	StatusException = "exception"
)

type ProgressState struct {
	Percent float64 `json:"percent"`
	Visible bool    `json:"visible"`
	Status  string  `json:"status"`
}

func newProgress(spec Spec, deps Deps) (Widget, error) {
	r := &propReader{p: spec.Props}
	percent := r.float("percent", 0)
	visible := r.boolean("visible", false)
	if err := r.done(spec.ID); err != nil {
		return nil, err
	}

	status := func(st string) Reducer[ProgressState] {
		return func(s ProgressState, _ any) (ProgressState, error) {
			s.Status = st
			return s, nil
		}
	}
	value := func(s ProgressState) any {
		return map[string]any{"percent": number(s.Percent), "visible": s.Visible, "status": s.Status}
	}

	return NewAdapter(spec, deps, ProgressState{Percent: clamp(percent, 0, 100), Visible: visible, Status: StatusActive},
		Behavior[ProgressState]{
			Value: value,
			Setters: map[string]Reducer[ProgressState]{
				"percent": func(s ProgressState, v any) (ProgressState, error) {
					f, err := asFloat(v)
					s.Percent = clamp(f, 0, 100)
					return s, err
				},
				"inc": func(s ProgressState, v any) (ProgressState, error) {
					f, err := asFloat(v)
					s.Percent = clamp(s.Percent+f, 0, 100)
					return s, err
				},
				"visible": func(s ProgressState, v any) (ProgressState, error) {
					b, err := asBool(v)
					s.Visible = b
					return s, err
				},
				"active":  status(StatusActive),
				"success": status(StatusSuccess),
				"error":   status(StatusException),
			},
			Queries: getter(value),
			Render: func(id string, s ProgressState) templ.Component {
				return view("progress", s)
			},
		}), nil
}

// Markdown

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

type MarkdownState struct {
	Text string `json:"text"`
}

func newMarkdown(spec Spec, deps Deps) (Widget, error) {
	r := &propReader{p: spec.Props}
	text := r.str("text", "")
	if err := r.done(spec.ID); err != nil {
		return nil, err
	}

	value := func(s MarkdownState) any { return s.Text }

	return NewAdapter(spec, deps, MarkdownState{Text: text}, Behavior[MarkdownState]{
		Value: value,
		Setters: map[string]Reducer[MarkdownState]{
			"text": func(s MarkdownState, v any) (MarkdownState, error) {
				str, err := asString(v)
				s.Text = str
				return s, err
			},
		},
		Queries: getter(value),
		Render: func(id string, s MarkdownState) templ.Component {
			var buf bytes.Buffer
			if err := md.Convert([]byte(s.Text), &buf); err != nil {
				return failed(err)
			}
			// goldmark escapes raw HTML in the source.
			return view("markdown", struct{ HTML template.HTML }{template.HTML(buf.String())})
		},
	}), nil
}

// Text

type TextState struct {
	Text  string `json:"text"`
	Level int    `json:"level"`
}

func newText(spec Spec, deps Deps) (Widget, error) {
	r := &propReader{p: spec.Props}
	text := r.str("text", "")
	level := r.float("level", 1)
	if err := r.done(spec.ID); err != nil {
		return nil, err
	}
	if level < 1 || level > 6 || level != float64(int(level)) {
		return nil, withWidget(invalid("heading level must be 1-6, got %v", level), spec.ID)
	}

	value := func(s TextState) any { return s.Text }

	return NewAdapter(spec, deps, TextState{Text: text, Level: int(level)}, Behavior[TextState]{
		Value: value,
		Setters: map[string]Reducer[TextState]{
			"text": func(s TextState, v any) (TextState, error) {
				str, err := asString(v)
				s.Text = str
				return s, err
			},
		},
		Queries: getter(value),
		Render: func(id string, s TextState) templ.Component {
			return view("text", s)
		},
	}), nil
}

// SVG

type SVGState struct {
	Image string `json:"image"`
}

func newSVG(spec Spec, deps Deps) (Widget, error) {
	r := &propReader{p: spec.Props}
	image := r.str("image", "")
	preserve := r.boolean("preserve_aspect_ratio", true)
	if err := r.done(spec.ID); err != nil {
		return nil, err
	}

	value := func(s SVGState) any { return s.Image }

	return NewAdapter(spec, deps, SVGState{Image: image}, Behavior[SVGState]{
		Value: value,
		Setters: map[string]Reducer[SVGState]{
			"image": func(s SVGState, v any) (SVGState, error) {
				str, err := asString(v)
				if err != nil {
					return s, err
				}
				if !preserve {
					if i := strings.Index(str, " "); i >= 0 {
						str = str[:i] + ` preserveAspectRatio="none"` + str[i:]
					}
				}
				s.Image = str
				return s, nil
			},
		},
		Queries: getter(value),
		Render: func(id string, s SVGState) templ.Component {
			var src template.URL
			if s.Image != "" {
				src = template.URL("data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(s.Image)))
			}
			return view("svg", struct {
				ID  string
				Src template.URL
			}{id, src})
		},
	}), nil
}

// Div

type DivState struct {
	Text string `json:"text"`
}

func newDiv(spec Spec, deps Deps) (Widget, error) {
	r := &propReader{p: spec.Props}
	text := r.str("text", "")
	if err := r.done(spec.ID); err != nil {
		return nil, err
	}

	value := func(s DivState) any { return s.Text }

	return NewAdapter(spec, deps, DivState{Text: text}, Behavior[DivState]{
		Value: value,
		Setters: map[string]Reducer[DivState]{
			"text": func(s DivState, v any) (DivState, error) {
				str, err := asString(v)
				s.Text = str
				return s, err
			},
		},
		Queries: getter(value),
		Render: func(_ string, s DivState) templ.Component {
			return view("div", s)
		},
	}), nil
}

// Link

// LinkState is an in-page link. To is a path such as "/reports".
type LinkState struct {
	To    string `json:"to"`
	Label string `json:"label"`
}

func newLink(spec Spec, deps Deps) (Widget, error) {
	r := &propReader{p: spec.Props}
	to := r.str("link", "/")
	label := r.str("label", spec.Caption)
	if err := r.done(spec.ID); err != nil {
		return nil, err
	}
	if label == "" {
		label = to
	}

	value := func(s LinkState) any { return s.To }

	return NewAdapter(spec, deps, LinkState{To: to, Label: label}, Behavior[LinkState]{
		Value: value,
		Setters: map[string]Reducer[LinkState]{
			"link": func(s LinkState, v any) (LinkState, error) {
				str, err := asString(v)
				if err != nil {
					return s, err
				}
				if str == "" {
					return s, invalid("link target is empty")
				}
				s.To = str
				return s, nil
			},
		},
		Queries: getter(value),
		Render: func(_ string, s LinkState) templ.Component {
			return view("link", s)
		},
	}), nil
}
