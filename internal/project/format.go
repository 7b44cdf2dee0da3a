package project

// Format is an output frame geometry.
type Format struct {
	Width  int
	Height int
}

var (
	// Landscape is the standard long-form frame.
	Landscape = Format{Width: 1920, Height: 1080}
	// Portrait is the shorts frame.
	Portrait = Format{Width: 1080, Height: 1920}
)

// FormatFor returns the frame geometry for the given orientation.
func FormatFor(shorts bool) Format {
	if shorts {
		return Portrait
	}
	return Landscape
}

// IsPortrait reports whether the format is taller than wide.
func (f Format) IsPortrait() bool {
	return f.Height > f.Width
}
