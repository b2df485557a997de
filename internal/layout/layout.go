// Package layout loads declarative page descriptions from YAML.
//
//	title: Random walk
//	widgets:
//	  - id: steps
//	    kind: slider
//	    caption: Steps
//	    props: {min: 10, max: 1000, value: 100}
//	  - id: chart
//	    kind: plot
package layout

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/conneroisu/widgetsync/internal/channel"
	"github.com/conneroisu/widgetsync/internal/errors"
	"github.com/conneroisu/widgetsync/internal/widget"
)

// Layout is one page description.
type Layout struct {
	Title   string        `yaml:"title" json:"title"`
	Widgets []widget.Spec `yaml:"widgets" json:"widgets"`
}

// Load reads and validates the layout at path.
func Load(path string) (*Layout, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, configErr(fmt.Sprintf("reading layout %s", path), err)
	}
	return Parse(data)
}

// Parse decodes and validates a layout document. Unknown fields are
// rejected.
func Parse(data []byte) (*Layout, error) {
	var l Layout
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&l); err != nil && err != io.EOF {
		return nil, configErr("malformed layout", err)
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return &l, nil
}

// Validate checks every widget has a usable, unique id and a known kind.
func (l *Layout) Validate() error {
	seen := make(map[string]int, len(l.Widgets))
	var errs []error

	for i, spec := range l.Widgets {
		if err := channel.ValidateID(spec.ID); err != nil {
			errs = append(errs, layoutErr(i, spec, err.Error()))
			continue
		}
		if spec.ID == channel.PagerID {
			errs = append(errs, layoutErr(i, spec, "id is reserved for pager events"))
			continue
		}
		if !widget.Known(spec.Kind) {
			errs = append(errs, layoutErr(i, spec, fmt.Sprintf("unknown kind %q", spec.Kind)))
		}
		if prev, dup := seen[spec.ID]; dup {
			errs = append(errs, layoutErr(i, spec, fmt.Sprintf("duplicate id, first used by widget %d", prev)))
			continue
		}
		seen[spec.ID] = i
	}

	return errors.Join(errs...)
}

// IDs returns the widget ids in declaration order.
func (l *Layout) IDs() []string {
	ids := make([]string, len(l.Widgets))
	for i, spec := range l.Widgets {
		ids[i] = spec.ID
	}
	return ids
}

// Diff compares two layouts by widget id. A widget whose kind, caption
// or props changed is reported in both removed and added so the host
// rebuilds it.
func Diff(old, next *Layout) (added []widget.Spec, removed []string) {
	before := make(map[string]widget.Spec, len(old.Widgets))
	for _, spec := range old.Widgets {
		before[spec.ID] = spec
	}
	after := make(map[string]bool, len(next.Widgets))

	for _, spec := range next.Widgets {
		after[spec.ID] = true
		prev, ok := before[spec.ID]
		switch {
		case !ok:
			added = append(added, spec)
		case !sameSpec(prev, spec):
			removed = append(removed, spec.ID)
			added = append(added, spec)
		}
	}
	for _, spec := range old.Widgets {
		if !after[spec.ID] {
			removed = append(removed, spec.ID)
		}
	}
	return added, removed
}

func sameSpec(a, b widget.Spec) bool {
	if a.Kind != b.Kind || a.Caption != b.Caption {
		return false
	}
	ab, err1 := yaml.Marshal(a.Props)
	bb, err2 := yaml.Marshal(b.Props)
	return err1 == nil && err2 == nil && bytes.Equal(ab, bb)
}

func layoutErr(i int, spec widget.Spec, msg string) error {
	return errors.NewValidationError(errors.ErrCodeLayoutInvalid,
		fmt.Sprintf("widget %d: %s", i, msg)).WithWidget(spec.ID)
}

func configErr(msg string, cause error) error {
	e := errors.NewConfigError(errors.ErrCodeLayoutInvalid, msg)
	e.Cause = cause
	return e
}
