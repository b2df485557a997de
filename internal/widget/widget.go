// Package widget implements the widget adapters: per-widget state bound to
// a cache entry, a sync channel and an HTML rendering.
//
// Every kind shares one generic Adapter. A kind only supplies its state
// type, its defaults and a behavior table describing which suffixes it
// emits, which it accepts and how each one changes the state.
package widget

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/a-h/templ"
	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/conneroisu/widgetsync/internal/channel"
	"github.com/conneroisu/widgetsync/internal/errors"
	"github.com/conneroisu/widgetsync/internal/logging"
	"github.com/conneroisu/widgetsync/internal/store"
)

// ErrReadOnly is returned when a display-only widget receives a local change.
var ErrReadOnly = errors.NewValidationError(errors.ErrCodeReadOnly, "widget is display-only")

// Kind names a widget family.
type Kind string

const (
	KindButton      Kind = "button"
	KindSlider      Kind = "slider"
	KindRangeSlider Kind = "range_slider"
	KindNumber      Kind = "number"
	KindTextbox     Kind = "textbox"
	KindDropdown    Kind = "dropdown"
	KindCheckbox    Kind = "checkbox"
	KindSwitch      Kind = "switch"
	KindDate        Kind = "date"
	KindUpload      Kind = "upload"
	KindTable       Kind = "table"
	KindPlot        Kind = "plot"
	KindProgress    Kind = "progress"
	KindMarkdown    Kind = "markdown"
	KindText        Kind = "text"
	KindSVG         Kind = "svg"
	KindDiv         Kind = "div"
	KindLink        Kind = "link"
)

var titler = cases.Title(language.English)

// Title is the human readable name of the kind, e.g. "Range Slider".
func (k Kind) Title() string {
	return titler.String(strings.ReplaceAll(string(k), "_", " "))
}

// Control reports whether the kind takes user input. Controls are laid out
// in the sidebar, everything else in the main column.
func (k Kind) Control() bool {
	switch k {
	case KindButton, KindSlider, KindRangeSlider, KindNumber, KindTextbox,
		KindDropdown, KindCheckbox, KindSwitch, KindDate, KindUpload:
		return true
	}
	return false
}

// Widget is one control or visual bound to a unique id on a page.
type Widget interface {
	ID() string
	Kind() Kind
	Caption() string

	// Initialize loads state from the cache, falling back to defaults.
	Initialize(ctx context.Context) error
	// OnLocalChange applies a UI interaction and emits "<id>#<primary>".
	OnLocalChange(ctx context.Context, v any) error
	// Interact is OnLocalChange for a specific outbound suffix, such as a
	// slider's "after_change" or a textbox's "enter".
	Interact(ctx context.Context, suffix string, v any) error
	// OnRemoteEvent applies an inbound "<id>#<suffix>" event.
	OnRemoteEvent(ctx context.Context, suffix string, payload []byte, ack channel.AckFunc) error

	Value() any
	State() any
	// Suffixes lists the inbound suffixes the widget handles.
	Suffixes() []string
	// Emits lists the outbound suffixes the widget produces.
	Emits() []string

	Bind(d *channel.Dispatcher)
	Render() templ.Component
}

// Spec declares a widget.
type Spec struct {
	ID      string `json:"id" yaml:"id"`
	Kind    Kind   `json:"kind" yaml:"kind"`
	Caption string `json:"caption,omitempty" yaml:"caption,omitempty"`
	Props   Props  `json:"props,omitempty" yaml:"props,omitempty"`
}

// Deps are the capabilities injected into every widget.
type Deps struct {
	Store   store.Store
	Emitter channel.Emitter
	Logger  logging.Logger
	// OnUpdate is called after every committed state change.
	OnUpdate func(Widget)
}

func (d Deps) withDefaults() Deps {
	if d.Store == nil {
		d.Store = store.NewMemoryStore()
	}
	if d.Emitter == nil {
		d.Emitter = channel.Discard
	}
	if d.Logger == nil {
		d.Logger = logging.NewNop()
	}
	return d
}

// Constructor builds a widget of one kind from its spec.
type Constructor func(spec Spec, deps Deps) (Widget, error)

var (
	registryMu   sync.RWMutex
	constructors = map[Kind]Constructor{
		KindButton:      newButton,
		KindSlider:      newSlider,
		KindRangeSlider: newRangeSlider,
		KindNumber:      newNumber,
		KindTextbox:     newTextbox,
		KindDropdown:    newDropdown,
		KindCheckbox:    newCheckbox,
		KindSwitch:      newSwitch,
		KindDate:        newDate,
		KindUpload:      newUpload,
		KindTable:       newTable,
		KindPlot:        newPlot,
		KindProgress:    newProgress,
		KindMarkdown:    newMarkdown,
		KindText:        newText,
		KindSVG:         newSVG,
		KindDiv:         newDiv,
		KindLink:        newLink,
	}
)

// Register adds or replaces the constructor for a kind.
func Register(kind Kind, c Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()

	constructors[kind] = c
}

// Known reports whether kind has a constructor.
func Known(kind Kind) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()

	_, ok := constructors[kind]
	return ok
}

// Kinds lists every registered kind in sorted order.
func Kinds() []Kind {
	registryMu.RLock()
	defer registryMu.RUnlock()

	kinds := make([]Kind, 0, len(constructors))
	for k := range constructors {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// New builds a widget from its spec. A spec without an id gets a random one.
func New(spec Spec, deps Deps) (Widget, error) {
	registryMu.RLock()
	c, ok := constructors[spec.Kind]
	registryMu.RUnlock()

	if !ok {
		return nil, errors.NewValidationError(errors.ErrCodeUnknownKind,
			"unknown widget kind "+string(spec.Kind)).WithWidget(spec.ID)
	}

	if spec.ID == "" {
		spec.ID = uuid.NewString()
	}
	if err := channel.ValidateID(spec.ID); err != nil {
		return nil, err
	}
	if spec.ID == channel.PagerID {
		return nil, errors.NewValidationError(errors.ErrCodeBadEventName,
			"widget id "+channel.PagerID+" is reserved for pager events").WithWidget(spec.ID)
	}
	if spec.Props == nil {
		spec.Props = Props{}
	}

	return c(spec, deps.withDefaults())
}
