package widget

import (
	"encoding/base64"
	"fmt"

	"github.com/a-h/templ"

	"github.com/conneroisu/widgetsync/internal/channel"
)

// propReader reads several props and keeps the first error.
type propReader struct {
	p   Props
	err error
}

func (r *propReader) float(key string, def float64) float64 {
	if r.err != nil {
		return def
	}
	f, err := r.p.Float(key, def)
	r.err = err
	return f
}

func (r *propReader) str(key, def string) string {
	if r.err != nil {
		return def
	}
	s, err := r.p.String(key, def)
	r.err = err
	return s
}

func (r *propReader) boolean(key string, def bool) bool {
	if r.err != nil {
		return def
	}
	b, err := r.p.Bool(key, def)
	r.err = err
	return b
}

func (r *propReader) strings(key string) []string {
	if r.err != nil {
		return nil
	}
	ss, err := r.p.Strings(key)
	r.err = err
	return ss
}

func (r *propReader) floats(key string) []float64 {
	if r.err != nil {
		return nil
	}
	fs, err := r.p.Floats(key)
	r.err = err
	return fs
}

func (r *propReader) options(key string) []Option {
	if r.err != nil {
		return nil
	}
	opts, err := parseOptions(r.p[key])
	if err != nil {
		r.err = propErr(key, err)
	}
	return opts
}

func (r *propReader) done(id string) error {
	if r.err == nil {
		return nil
	}
	return withWidget(r.err, id)
}

func getter[S any](value func(S) any) map[string]func(S) any {
	return map[string]func(S) any{channel.SuffixGet: value}
}

// Button

func newButton(spec Spec, deps Deps) (Widget, error) {
	r := &propReader{p: spec.Props}
	label := r.str("label", spec.Caption)
	if err := r.done(spec.ID); err != nil {
		return nil, err
	}

	click := func(s struct{}, _ any) (struct{}, any, error) { return s, nil, nil }

	return NewAdapter(spec, deps, struct{}{}, Behavior[struct{}]{
		Stateless: true,
		Primary:   channel.SuffixClick,
		Actions:   map[string]Action[struct{}]{channel.SuffixClick: click},
		Render: func(id string, _ struct{}) templ.Component {
			return view("button", struct{ ID, Label, Event string }{
				id, label, channel.EventName(id, channel.SuffixClick),
			})
		},
	}), nil
}

// Slider

type SliderState struct {
	Value float64 `json:"value"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Step  float64 `json:"step"`
}

func newSlider(spec Spec, deps Deps) (Widget, error) {
	r := &propReader{p: spec.Props}
	lo := r.float("min", 0)
	hi := r.float("max", 100)
	step := r.float("step", 1)
	start := r.float("value", lo)
	if err := r.done(spec.ID); err != nil {
		return nil, err
	}
	if hi < lo {
		return nil, withWidget(invalid("slider max %v is below min %v", hi, lo), spec.ID)
	}

	move := func(s SliderState, v any) (SliderState, any, error) {
		f, err := asFloat(v)
		if err != nil {
			return s, nil, err
		}
		s.Value = clamp(f, s.Min, s.Max)
		return s, number(s.Value), nil
	}
	bound := func(apply func(*SliderState, float64)) Reducer[SliderState] {
		return func(s SliderState, v any) (SliderState, error) {
			f, err := asFloat(v)
			if err != nil {
				return s, err
			}
			apply(&s, f)
			s.Value = clamp(s.Value, s.Min, s.Max)
			return s, nil
		}
	}
	value := func(s SliderState) any { return number(s.Value) }

	return NewAdapter(spec, deps, SliderState{Value: clamp(start, lo, hi), Min: lo, Max: hi, Step: step},
		Behavior[SliderState]{
			Value:   value,
			Primary: channel.SuffixChange,
			Actions: map[string]Action[SliderState]{
				channel.SuffixChange: move,
				"after_change":       move,
			},
			Setters: map[string]Reducer[SliderState]{
				"value": bound(func(s *SliderState, f float64) { s.Value = f }),
				"inc":   bound(func(s *SliderState, f float64) { s.Value += f }),
				"min":   bound(func(s *SliderState, f float64) { s.Min = f }),
				"max":   bound(func(s *SliderState, f float64) { s.Max = f }),
			},
			Queries: getter(value),
			Render: func(id string, s SliderState) templ.Component {
				return view("slider", struct {
					ID string
					SliderState
				}{id, s})
			},
		}), nil
}

// Range slider

type RangeSliderState struct {
	Start []float64 `json:"start"`
	Min   float64   `json:"min"`
	Max   float64   `json:"max"`
	Step  float64   `json:"step"`
}

func newRangeSlider(spec Spec, deps Deps) (Widget, error) {
	r := &propReader{p: spec.Props}
	lo := r.float("min", 0)
	hi := r.float("max", 100)
	step := r.float("step", 1)
	start := r.floats("start")
	if err := r.done(spec.ID); err != nil {
		return nil, err
	}
	if len(start) == 0 {
		start = []float64{lo, hi}
	}

	handles := func(s RangeSliderState, v any) (RangeSliderState, error) {
		fs, err := asFloats(v)
		if err != nil {
			return s, err
		}
		for i := range fs {
			fs[i] = clamp(fs[i], s.Min, s.Max)
		}
		s.Start = fs
		return s, nil
	}
	value := func(s RangeSliderState) any { return numbers(s.Start) }

	return NewAdapter(spec, deps, RangeSliderState{Start: start, Min: lo, Max: hi, Step: step},
		Behavior[RangeSliderState]{
			Value:   value,
			Primary: channel.SuffixChange,
			Actions: map[string]Action[RangeSliderState]{
				channel.SuffixChange: func(s RangeSliderState, v any) (RangeSliderState, any, error) {
					next, err := handles(s, v)
					return next, numbers(next.Start), err
				},
			},
			Setters: map[string]Reducer[RangeSliderState]{"start": handles},
			Queries: getter(value),
			Render: func(id string, s RangeSliderState) templ.Component {
				return view("range_slider", struct {
					ID string
					RangeSliderState
				}{id, s})
			},
		}), nil
}

// Number

type NumberState struct {
	Value float64 `json:"value"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

func newNumber(spec Spec, deps Deps) (Widget, error) {
	r := &propReader{p: spec.Props}
	lo := r.float("min", -1e9)
	hi := r.float("max", 1e9)
	start := r.float("value", 0)
	if err := r.done(spec.ID); err != nil {
		return nil, err
	}

	set := func(s NumberState, v any) (NumberState, error) {
		f, err := asFloat(v)
		if err != nil {
			return s, err
		}
		s.Value = clamp(f, s.Min, s.Max)
		return s, nil
	}
	value := func(s NumberState) any { return number(s.Value) }

	return NewAdapter(spec, deps, NumberState{Value: clamp(start, lo, hi), Min: lo, Max: hi},
		Behavior[NumberState]{
			Value:   value,
			Primary: channel.SuffixChange,
			Actions: map[string]Action[NumberState]{
				channel.SuffixChange: func(s NumberState, v any) (NumberState, any, error) {
					next, err := set(s, v)
					return next, number(next.Value), err
				},
			},
			Setters: map[string]Reducer[NumberState]{"value": set},
			Queries: getter(value),
			Render: func(id string, s NumberState) templ.Component {
				return view("number", struct {
					ID string
					NumberState
				}{id, s})
			},
		}), nil
}

// Textbox

type TextboxState struct {
	Value string `json:"value"`
}

func newTextbox(spec Spec, deps Deps) (Widget, error) {
	r := &propReader{p: spec.Props}
	start := r.str("value", "")
	placeholder := r.str("placeholder", "")
	inputType := r.str("type", "text")
	if err := r.done(spec.ID); err != nil {
		return nil, err
	}

	set := func(s TextboxState, v any) (TextboxState, error) {
		str, err := asString(v)
		s.Value = str
		return s, err
	}
	typed := func(s TextboxState, v any) (TextboxState, any, error) {
		next, err := set(s, v)
		return next, next.Value, err
	}
	value := func(s TextboxState) any { return s.Value }

	return NewAdapter(spec, deps, TextboxState{Value: start}, Behavior[TextboxState]{
		Value:   value,
		Primary: channel.SuffixChange,
		Actions: map[string]Action[TextboxState]{
			channel.SuffixChange: typed,
			"enter":              typed,
		},
		Setters: map[string]Reducer[TextboxState]{"text": set},
		Queries: getter(value),
		Render: func(id string, s TextboxState) templ.Component {
			return view("textbox", struct {
				ID, Type, Placeholder string
				TextboxState
			}{id, inputType, placeholder, s})
		},
	}), nil
}

// Option is one selectable entry of a dropdown or checkbox group.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// parseOptions accepts a list whose entries are strings or
// {value, label} mappings.
func parseOptions(v any) ([]Option, error) {
	switch list := v.(type) {
	case nil:
		return []Option{}, nil
	case []Option:
		return append([]Option{}, list...), nil
	case []string:
		out := make([]Option, len(list))
		for i, s := range list {
			out[i] = Option{Value: s, Label: s}
		}
		return out, nil
	case []any:
		out := make([]Option, 0, len(list))
		for _, e := range list {
			switch o := e.(type) {
			case string:
				out = append(out, Option{Value: o, Label: o})
			case map[string]any:
				opt := Option{Value: fmt.Sprint(o["value"])}
				if o["value"] == nil {
					return nil, invalid("option without value")
				}
				opt.Label = opt.Value
				if label, ok := o["label"].(string); ok {
					opt.Label = label
				}
				out = append(out, opt)
			default:
				return nil, invalid("unsupported option %T", e)
			}
		}
		return out, nil
	}
	return nil, invalid("expected a list of options, got %T", v)
}

func selected(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

// Dropdown

type DropdownState struct {
	Value   []string `json:"value"`
	Options []Option `json:"options"`
	Multi   bool     `json:"multi"`
}

func newDropdown(spec Spec, deps Deps) (Widget, error) {
	r := &propReader{p: spec.Props}
	opts := r.options("options")
	multi := r.boolean("multi", false)
	start := r.strings("value")
	if err := r.done(spec.ID); err != nil {
		return nil, err
	}

	choose := func(s DropdownState, v any) (DropdownState, error) {
		values, err := asStrings(v)
		if err != nil {
			return s, err
		}
		if !s.Multi && len(values) > 1 {
			return s, invalid("single-select dropdown got %d values", len(values))
		}
		s.Value = values
		return s, nil
	}
	value := func(s DropdownState) any {
		if s.Multi {
			return cloneStrings(s.Value)
		}
		if len(s.Value) == 0 {
			return nil
		}
		return s.Value[0]
	}

	return NewAdapter(spec, deps, DropdownState{Value: start, Options: opts, Multi: multi},
		Behavior[DropdownState]{
			Value:   value,
			Primary: channel.SuffixChange,
			Actions: map[string]Action[DropdownState]{
				channel.SuffixChange: func(s DropdownState, v any) (DropdownState, any, error) {
					next, err := choose(s, v)
					return next, value(next), err
				},
			},
			Setters: map[string]Reducer[DropdownState]{
				channel.SuffixChoose: choose,
				// New options invalidate the current selection.
				channel.SuffixOptions: func(s DropdownState, v any) (DropdownState, error) {
					opts, err := parseOptions(v)
					if err != nil {
						return s, err
					}
					s.Options = opts
					s.Value = nil
					return s, nil
				},
			},
			Queries: getter(value),
			Render: func(id string, s DropdownState) templ.Component {
				return view("dropdown", struct {
					ID string
					DropdownState
				}{id, s})
			},
		}), nil
}

// Checkbox

type CheckboxState struct {
	Value   []string `json:"value"`
	Options []Option `json:"options"`
}

func newCheckbox(spec Spec, deps Deps) (Widget, error) {
	r := &propReader{p: spec.Props}
	opts := r.options("options")
	start := r.strings("value")
	if err := r.done(spec.ID); err != nil {
		return nil, err
	}

	choose := func(s CheckboxState, v any) (CheckboxState, error) {
		values, err := asStrings(v)
		s.Value = values
		return s, err
	}
	value := func(s CheckboxState) any { return cloneStrings(s.Value) }

	return NewAdapter(spec, deps, CheckboxState{Value: start, Options: opts}, Behavior[CheckboxState]{
		Value:   value,
		Primary: channel.SuffixChange,
		Actions: map[string]Action[CheckboxState]{
			channel.SuffixChange: func(s CheckboxState, v any) (CheckboxState, any, error) {
				next, err := choose(s, v)
				return next, value(next), err
			},
		},
		Setters: map[string]Reducer[CheckboxState]{
			channel.SuffixChoose: choose,
			channel.SuffixOptions: func(s CheckboxState, v any) (CheckboxState, error) {
				opts, err := parseOptions(v)
				if err != nil {
					return s, err
				}
				s.Options = opts
				s.Value = nil
				return s, nil
			},
		},
		Queries: getter(value),
		Render: func(id string, s CheckboxState) templ.Component {
			return view("checkbox", struct {
				ID string
				CheckboxState
			}{id, s})
		},
	}), nil
}

// Switch

type SwitchState struct {
	Checked bool `json:"checked"`
}

func newSwitch(spec Spec, deps Deps) (Widget, error) {
	r := &propReader{p: spec.Props}
	start := r.boolean("checked", false)
	if err := r.done(spec.ID); err != nil {
		return nil, err
	}

	check := func(s SwitchState, v any) (SwitchState, error) {
		b, err := asBool(v)
		s.Checked = b
		return s, err
	}
	value := func(s SwitchState) any { return s.Checked }

	return NewAdapter(spec, deps, SwitchState{Checked: start}, Behavior[SwitchState]{
		Value:   value,
		Primary: "switch",
		Actions: map[string]Action[SwitchState]{
			"switch": func(s SwitchState, v any) (SwitchState, any, error) {
				next, err := check(s, v)
				return next, next.Checked, err
			},
		},
		Setters: map[string]Reducer[SwitchState]{"check": check},
		Queries: getter(value),
		Render: func(id string, s SwitchState) templ.Component {
			return view("switch", struct {
				ID string
				SwitchState
			}{id, s})
		},
	}), nil
}

// Date

// Date picker modes.
const (
	DateModeDate  = "date"
	DateModeMonth = "month"
	DateModeRange = "range"
)

type DateState struct {
	Mode  string   `json:"mode"`
	Value []string `json:"value"`
}

func newDate(spec Spec, deps Deps) (Widget, error) {
	r := &propReader{p: spec.Props}
	mode := r.str("mode", DateModeDate)
	start := r.strings("value")
	if err := r.done(spec.ID); err != nil {
		return nil, err
	}

	layout := "2006-01-02"
	switch mode {
	case DateModeDate, DateModeRange:
	case DateModeMonth:
		layout = "2006-01"
	default:
		return nil, withWidget(invalid("unknown date mode %q", mode), spec.ID)
	}

	choose := func(s DateState, v any) (DateState, error) {
		dates, err := asDates(v, layout)
		if err != nil {
			return s, err
		}
		if s.Mode == DateModeRange && len(dates) != 0 && len(dates) != 2 {
			return s, invalid("date range needs two dates, got %d", len(dates))
		}
		if s.Mode != DateModeRange && len(dates) > 1 {
			return s, invalid("%s picker got %d dates", s.Mode, len(dates))
		}
		s.Value = dates
		return s, nil
	}
	value := func(s DateState) any {
		if s.Mode == DateModeRange {
			return cloneStrings(s.Value)
		}
		if len(s.Value) == 0 {
			return nil
		}
		return s.Value[0]
	}

	return NewAdapter(spec, deps, DateState{Mode: mode, Value: start}, Behavior[DateState]{
		Value:   value,
		Primary: channel.SuffixChange,
		Actions: map[string]Action[DateState]{
			channel.SuffixChange: func(s DateState, v any) (DateState, any, error) {
				next, err := choose(s, v)
				return next, value(next), err
			},
		},
		Setters: map[string]Reducer[DateState]{channel.SuffixChoose: choose},
		Queries: getter(value),
		Render: func(id string, s DateState) templ.Component {
			inputType := "date"
			if s.Mode == DateModeMonth {
				inputType = "month"
			}
			values := make([]string, 1)
			if s.Mode == DateModeRange {
				values = make([]string, 2)
			}
			copy(values, s.Value)
			return view("date", struct {
				ID, Type string
				Values   []string
			}{id, inputType, values})
		},
	}), nil
}

// Upload

// File is one uploaded file as emitted on "#upload".
type File struct {
	Name string `msgpack:"name" json:"name"`
	Data []byte `msgpack:"data" json:"data"`
}

// asFiles accepts File values or their JSON form, {name, data} mappings
// whose data is base64 text.
func asFiles(v any) ([]File, error) {
	switch f := v.(type) {
	case File:
		return []File{f}, nil
	case []File:
		return f, nil
	case map[string]any:
		file, err := fileFromMap(f)
		if err != nil {
			return nil, err
		}
		return []File{file}, nil
	case []any:
		out := make([]File, 0, len(f))
		for _, e := range f {
			m, ok := e.(map[string]any)
			if !ok {
				return nil, invalid("expected an uploaded file, got %T", e)
			}
			file, err := fileFromMap(m)
			if err != nil {
				return nil, err
			}
			out = append(out, file)
		}
		return out, nil
	}
	return nil, invalid("expected uploaded files, got %T", v)
}

func fileFromMap(m map[string]any) (File, error) {
	name, ok := m["name"].(string)
	if !ok || name == "" {
		return File{}, invalid("uploaded file needs a name")
	}
	switch data := m["data"].(type) {
	case []byte:
		return File{Name: name, Data: data}, nil
	case string:
		b, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return File{}, invalid("file %s: data is not base64: %v", name, err)
		}
		return File{Name: name, Data: b}, nil
	case nil:
		return File{Name: name}, nil
	default:
		return File{}, invalid("file %s: unsupported data %T", name, data)
	}
}

func newUpload(spec Spec, deps Deps) (Widget, error) {
	r := &propReader{p: spec.Props}
	multiple := r.boolean("multiple", false)
	if err := r.done(spec.ID); err != nil {
		return nil, err
	}

	upload := func(s struct{}, v any) (struct{}, any, error) {
		files, err := asFiles(v)
		if err != nil {
			return s, nil, err
		}
		switch {
		case len(files) == 0:
			return s, nil, invalid("no files uploaded")
		case multiple:
			return s, files, nil
		case len(files) > 1:
			return s, nil, invalid("upload takes one file, got %d", len(files))
		}
		return s, files[0], nil
	}

	return NewAdapter(spec, deps, struct{}{}, Behavior[struct{}]{
		Stateless: true,
		Primary:   "upload",
		Actions:   map[string]Action[struct{}]{"upload": upload},
		Render: func(id string, _ struct{}) templ.Component {
			return view("upload", struct {
				ID       string
				Multiple bool
			}{id, multiple})
		},
	}), nil
}
