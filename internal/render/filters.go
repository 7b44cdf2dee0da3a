package render

import (
	"fmt"
	"path/filepath"
	"strings"

	"loom/internal/project"
)

// visualChain builds the normalization filter applied to every scene's
// video track: constant frame rate, re-stamped timestamps, aspect-fill
// scale, then center crop to the target frame. The fps/setpts pair runs
// again after the crop so variable-rate sources land on a clean timeline.
func visualChain(fps int, format project.Format) string {
	return fmt.Sprintf(
		"fps=%d,setpts=N/(%d*TB),"+
			"scale=%d:%d:force_original_aspect_ratio=increase,"+
			"crop=%d:%d:(ow-iw)/2:(oh-ih)/2,"+
			"fps=%d,setpts=N/(%d*TB)",
		fps, fps, format.Width, format.Height, format.Width, format.Height, fps, fps)
}

// captionStyle is the fixed burn-in style: small semi-transparent white
// text with a soft black outline, bottom-centered above a fixed margin.
const captionStyle = "Fontname=Arial,FontSize=14," +
	"PrimaryColour=&H80FFFFFF,OutlineColour=&H80000000," +
	"BorderStyle=1,Outline=1,Shadow=0," +
	"Alignment=2,MarginV=20"

// captionFilter builds the subtitles video filter for a caption file.
func captionFilter(vttPath string) string {
	return fmt.Sprintf("subtitles='%s':force_style='%s'", escapeFilterPath(vttPath), captionStyle)
}

// escapeFilterPath escapes a path for embedding in a single-quoted filter
// argument. Backslashes, colons, and quotes all terminate or alter filter
// parsing if left raw.
func escapeFilterPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	replacer := strings.NewReplacer(
		`\`, `\\`,
		`:`, `\:`,
		`'`, `\'`,
	)
	return replacer.Replace(path)
}
