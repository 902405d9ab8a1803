package manifest

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultPattern names manifests e1.json, e2.json, ...
const DefaultPattern = "e%d.json"

// Discover probes dir for fmt.Sprintf(pattern, i) with i = 1, 2, ... and returns
// the paths found before the first missing index. Files past a gap are not read.
// A missing dir yields no sources.
func Discover(dir, pattern string) []string {
	if pattern == "" {
		pattern = DefaultPattern
	}

	var sources []string
	for i := 1; ; i++ {
		path := filepath.Join(dir, fmt.Sprintf(pattern, i))
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			break
		}
		sources = append(sources, path)
	}
	return sources
}
