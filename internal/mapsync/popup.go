package mapsync

import (
	"fmt"
	"html"

	"github.com/sells-group/poi-cli/internal/feature"
)

// PopupHTML renders the info popup for a selected feature.
func PopupHTML(f feature.Feature) string {
	c := f.Coordinates()
	return fmt.Sprintf(
		`<div class="poi-popup"><h3>%s</h3><p><strong>Category:</strong> %s</p><p><strong>Coordinates:</strong> %.6f, %.6f</p></div>`,
		html.EscapeString(f.Name()),
		html.EscapeString(f.Category()),
		c.Lat(), c.Lon(),
	)
}
