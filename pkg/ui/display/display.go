// Package display turns engine results into a neutral table model that the
// text and terminal renderers both draw from.
package display

// Row is one table line. Action, when set, names the installer action or
// diff kind so renderers can color the first cell.
type Row struct {
	Action string
	Cells  []string
}

// Section is a titled table
type Section struct {
	Title   string
	Headers []string
	Rows    []Row

	// Empty is printed instead of the table when there are no rows
	Empty string
}

// View is everything a renderer prints for one result
type View struct {
	Title    string
	Subtitle string
	DryRun   bool
	Sections []Section
	Footer   []string
}
