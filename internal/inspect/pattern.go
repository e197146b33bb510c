package inspect

import (
	"fmt"
	"path"
	"sort"
)

// matchNames filters names by a shell glob pattern and returns them
// sorted. An invalid pattern is an error.
func matchNames(names []string, pattern string) ([]string, error) {
	var matched []string
	for _, name := range names {
		ok, err := path.Match(pattern, name)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		if ok {
			matched = append(matched, name)
		}
	}
	sort.Strings(matched)
	return matched, nil
}
