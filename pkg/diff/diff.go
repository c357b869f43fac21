// Package diff splits a unified diff into per-file sections keyed by the
// post-change path.
package diff

import "strings"

const marker = "diff --git "

// Split breaks a unified diff into per-file chunks. Keys are the path after
// the last " b/" on the header line; chunks keep their header line intact.
// Input that contains no file markers yields an empty map.
func Split(text string) map[string]string {
	files := make(map[string]string)
	if text == "" {
		return files
	}

	lines := strings.Split(text, "\n")
	var key string
	var chunk []string

	flush := func() {
		if key != "" {
			files[key] = strings.Join(chunk, "\n")
		}
		chunk = nil
	}

	for _, line := range lines {
		if strings.HasPrefix(line, marker) {
			flush()
			key = pathFromHeader(line)
		}
		if key != "" {
			chunk = append(chunk, line)
		}
	}
	flush()
	return files
}

// Lookup returns the chunk for path, trying the exact path first and then a
// basename match so callers holding either form find their file.
func Lookup(files map[string]string, path string) (string, bool) {
	if chunk, ok := files[path]; ok {
		return chunk, true
	}
	base := path
	if i := strings.LastIndex(path, "/"); i >= 0 {
		base = path[i+1:]
	}
	for p, chunk := range files {
		if p == base || strings.HasSuffix(p, "/"+base) {
			return chunk, true
		}
	}
	return "", false
}

// pathFromHeader extracts the post-image path from a "diff --git a/x b/y"
// header. Paths containing " b/" resolve to the last occurrence, matching
// how git writes the header.
func pathFromHeader(line string) string {
	rest := strings.TrimPrefix(line, marker)
	if i := strings.LastIndex(rest, " b/"); i >= 0 {
		return rest[i+len(" b/"):]
	}
	return ""
}
