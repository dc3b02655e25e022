// Package assets decides the stored filenames of uploaded workflow assets.
package assets

import (
	"context"
	"fmt"
	"path"
	"sort"
)

// ExistsFunc reports whether a file exists at a repository path.
type ExistsFunc func(ctx context.Context, path string) (bool, error)

// Resolution is the outcome of resolving one template's asset uploads.
type Resolution struct {
	// Mapping maps every proposed filename to its stored filename.
	Mapping map[string]string
	// Warnings describes lookup failures and name collisions.
	Warnings []string
}

// Renamed reports whether any proposed name was changed.
func (r Resolution) Renamed() bool {
	for orig, actual := range r.Mapping {
		if orig != actual {
			return true
		}
	}
	return false
}

// Actual returns the stored name for orig, or orig itself when unmapped.
func (r Resolution) Actual(orig string) string {
	if a, ok := r.Mapping[orig]; ok {
		return a
	}
	return orig
}

// Resolve maps each proposed filename to the name it will be stored under in
// dir. Names the template already owns are kept. Other names are looked up in
// order: an absent path keeps the name, an existing path or a failed lookup
// yields "<templateName>_<name>".
func Resolve(ctx context.Context, templateName, dir string, proposed []string, owned map[string]bool, exists ExistsFunc) Resolution {
	res := Resolution{Mapping: make(map[string]string, len(proposed))}
	for _, orig := range proposed {
		if _, done := res.Mapping[orig]; done {
			continue
		}
		if owned[orig] {
			res.Mapping[orig] = orig
			continue
		}
		found, err := exists(ctx, path.Join(dir, orig))
		switch {
		case err != nil:
			res.Warnings = append(res.Warnings, fmt.Sprintf("lookup of %s failed, storing as %s: %v", orig, Prefixed(templateName, orig), err))
			res.Mapping[orig] = Prefixed(templateName, orig)
		case found:
			res.Mapping[orig] = Prefixed(templateName, orig)
		default:
			res.Mapping[orig] = orig
		}
	}
	res.Warnings = append(res.Warnings, collisions(res.Mapping)...)
	return res
}

// Prefixed returns the collision-avoiding name for filename.
func Prefixed(templateName, filename string) string {
	return templateName + "_" + filename
}

// OldName returns the stored name of a previously uploaded file the caller
// wants removed: the name itself when the template owns it, otherwise the
// prefixed form it would have been stored under.
func OldName(templateName, filename string, owned map[string]bool) string {
	if owned[filename] {
		return filename
	}
	return Prefixed(templateName, filename)
}

// collisions lists stored names claimed by more than one proposed file.
// They are reported, not resolved.
func collisions(mapping map[string]string) []string {
	claims := make(map[string][]string)
	for orig, actual := range mapping {
		claims[actual] = append(claims[actual], orig)
	}
	var out []string
	for actual, origs := range claims {
		if len(origs) < 2 {
			continue
		}
		sort.Strings(origs)
		out = append(out, fmt.Sprintf("stored name %s is claimed by %v", actual, origs))
	}
	sort.Strings(out)
	return out
}
