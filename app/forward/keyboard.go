package forward

import e "baleforward/pkg/entities"

// TranslateKeyboard maps a source inline-button grid onto the destination
// grid, keeping row and column order and passing labels and URLs through
// verbatim. Buttons without a URL (callback buttons and the like) have no
// Bale equivalent and are dropped, as are rows left empty by that. A grid
// with no usable rows translates to nil: no keyboard attached, never an
// empty-grid send.
func TranslateKeyboard(grid e.ButtonGrid) e.ButtonGrid {
	if len(grid) == 0 {
		return nil
	}

	out := make(e.ButtonGrid, 0, len(grid))
	for _, row := range grid {
		outRow := make([]e.Button, 0, len(row))
		for _, btn := range row {
			if btn.Label == "" || btn.URL == "" {
				continue
			}
			outRow = append(outRow, btn)
		}
		if len(outRow) > 0 {
			out = append(out, outRow)
		}
	}

	if len(out) == 0 {
		return nil
	}
	return out
}
