// Package decoration renders protocol decorations into a hosted code view
// and undoes them on disposal.
package decoration

import (
	"sync"

	"github.com/opencxp/cxp-client-go/internal/errors"
)

// Attachment is content appended after a decorated line.
//
// Wire format (inside a decoration):
//
//	{"contentText": "3 references", "color": "#999", "linkURL": "https://..."}
type Attachment struct {
	Text            string `json:"contentText"`
	Color           string `json:"color,omitempty"`
	BackgroundColor string `json:"backgroundColor,omitempty"`
	LinkURL         string `json:"linkURL,omitempty"`
}

// Decoration styles one line of a document. Line is 0-based; the hosted
// view's visible numbering starts at 1.
//
// Wire format:
//
//	{"line": 7, "backgroundColor": "#ff0", "after": {...}}
type Decoration struct {
	Line            int         `json:"line"`
	BackgroundColor string      `json:"backgroundColor,omitempty"`
	After           *Attachment `json:"after,omitempty"`
}

// Cell is one decorable line cell in the hosted view.
type Cell interface {
	// Background returns the cell's current background color.
	Background() string

	// SetBackground replaces the cell's background color.
	SetBackground(color string)

	// AppendAfter injects an attachment at the end of the cell and returns
	// a function that removes exactly that attachment.
	AppendAfter(a Attachment) (remove func())
}

// Host is the hosted code view decorations render into. CellsForLine looks
// cells up by their visible, 1-based line number.
type Host interface {
	CellsForLine(line int) []Cell
}

// Applied is a rendered decoration that can be undone.
type Applied struct {
	cell              Cell
	prevBackground    string
	restoreBackground bool
	removeAfter       func()
	disposeOnce       sync.Once
}

// Apply renders d into host.
//
// The target is the single cell whose visible line number equals d.Line+1.
// Zero or multiple matching cells fail with AmbiguousTargetError before any
// mutation happens. The background change and the after-attachment are
// independent effects; Dispose undoes whichever were applied.
func Apply(host Host, d Decoration) (*Applied, error) {
	cells := host.CellsForLine(d.Line + 1)
	if len(cells) != 1 {
		return nil, &errors.AmbiguousTargetError{Line: d.Line, Matches: len(cells)}
	}

	cell := cells[0]
	applied := &Applied{cell: cell}

	if d.BackgroundColor != "" {
		applied.prevBackground = cell.Background()
		applied.restoreBackground = true
		cell.SetBackground(d.BackgroundColor)
	}

	if d.After != nil {
		applied.removeAfter = cell.AppendAfter(*d.After)
	}

	return applied, nil
}

// Dispose restores the cell's prior background and removes the injected
// attachment. Second and later calls are no-ops.
func (a *Applied) Dispose() {
	a.disposeOnce.Do(func() {
		if a.restoreBackground {
			a.cell.SetBackground(a.prevBackground)
		}

		if a.removeAfter != nil {
			a.removeAfter()
		}
	})
}
