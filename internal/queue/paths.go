package queue

import "fmt"

// unitDirName builds the on-disk directory name for a chapter unit,
// e.g. "ch03_goliath-falls".
func unitDirName(index int, slug string) string {
	return fmt.Sprintf("ch%02d_%s", index, slug)
}
