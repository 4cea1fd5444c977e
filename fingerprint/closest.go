package fingerprint

import "github.com/antzucaro/matchr"

// Closest returns the element of urls with the smallest edit distance to url,
// the first one on ties. It returns "" if urls is empty.
func Closest(url string, urls []string) string {
	var (
		best string
		dist = -1
	)
	for _, u := range urls {
		if d := matchr.Levenshtein(url, u); dist < 0 || d < dist {
			best, dist = u, d
		}
	}
	return best
}
