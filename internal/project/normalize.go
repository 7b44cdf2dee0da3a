package project

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"loom/internal/fileutil"
	"loom/internal/logging"
)

// Patterns that recover a scene number from arbitrary upload names, in
// priority order. The first pattern covers batch-download names like
// "P01_scene_1_1080p", the second plain "Scene 1" variants, the third
// bare numeric names like "001.mp4".
var sceneNamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)P\d+[_\s-]*scene[_\s-]*(\d+)`),
	regexp.MustCompile(`(?i)scene[_\s-]*(\d+)`),
	regexp.MustCompile(`^(\d{1,3})(\D|$)`),
}

var canonicalSceneName = regexp.MustCompile(`(?i)^scene_(\d{3})\.(mp4|mov|avi|mkv|webm)$`)

var videoExtensions = map[string]struct{}{
	".mp4": {}, ".mov": {}, ".avi": {}, ".mkv": {}, ".webm": {},
}

// NormalizeSceneFiles scans a scenes directory for video files under
// arbitrary upload names and copies each to its canonical
// scene_<id:03d>.mp4 name. Existing canonical files are never overwritten;
// sources are copied, not moved, so originals stay intact. Returns the
// number of files normalized.
func NormalizeSceneFiles(scenesDir string, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	entries, err := os.ReadDir(scenesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	found := map[int]string{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if _, ok := videoExtensions[ext]; !ok {
			continue
		}

		if m := canonicalSceneName.FindStringSubmatch(name); m != nil {
			num, _ := strconv.Atoi(m[1])
			found[num] = filepath.Join(scenesDir, name)
			continue
		}

		base := strings.TrimSuffix(name, filepath.Ext(name))
		for _, pattern := range sceneNamePatterns {
			m := pattern.FindStringSubmatch(base)
			if m == nil {
				continue
			}
			num, convErr := strconv.Atoi(m[1])
			if convErr != nil {
				break
			}
			if _, taken := found[num]; !taken {
				found[num] = filepath.Join(scenesDir, name)
			}
			break
		}
	}

	nums := make([]int, 0, len(found))
	for num := range found {
		nums = append(nums, num)
	}
	sort.Ints(nums)

	normalized := 0
	for _, num := range nums {
		src := found[num]
		dst := filepath.Join(scenesDir, fmt.Sprintf("scene_%03d.mp4", num))
		if src == dst {
			continue
		}
		if _, statErr := os.Stat(dst); statErr == nil {
			continue
		}
		if err := fileutil.CopyFile(src, dst); err != nil {
			return normalized, err
		}
		logger.Info("normalized scene file",
			logging.String("from", filepath.Base(src)),
			logging.String("to", filepath.Base(dst)))
		normalized++
	}
	return normalized, nil
}
