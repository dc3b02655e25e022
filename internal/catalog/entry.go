package catalog

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/starford/raido/internal/jsondoc"
)

// VariantNone removes the thumbnail variant from an entry.
const VariantNone = "none"

// DefaultMediaSubtype is used when no thumbnail names a file extension.
const DefaultMediaSubtype = "webp"

var (
	nameRe = regexp.MustCompile(`^[a-zA-Z0-9_\-]+$`)
	extRe  = regexp.MustCompile(`\.([a-zA-Z0-9]+)$`)
)

// ValidName reports whether name is usable as a template name.
func ValidName(name string) bool { return nameRe.MatchString(name) }

// SubtypeFromFilename returns the extension of filename, or the default
// subtype when it has none.
func SubtypeFromFilename(filename string) string {
	if m := extRe.FindStringSubmatch(filename); m != nil {
		return m[1]
	}
	return DefaultMediaSubtype
}

// Metadata is a requested change to a template entry. Empty strings and nil
// values leave the entry untouched.
type Metadata struct {
	Title               string          `json:"title"`
	Description         string          `json:"description"`
	Category            string          `json:"category"`
	MediaType           string          `json:"mediaType"`
	MediaSubtype        string          `json:"mediaSubtype"`
	ThumbnailVariant    string          `json:"thumbnailVariant"`
	Tags                []string        `json:"tags"`
	Models              []string        `json:"models"`
	RequiresCustomNodes []string        `json:"requiresCustomNodes"`
	TutorialURL         string          `json:"tutorialUrl"`
	ComfyUIVersion      string          `json:"comfyuiVersion"`
	Date                string          `json:"date"`
	OpenSource          *bool           `json:"openSource"`
	Size                *json.Number    `json:"size"`
	VRAM                *json.Number    `json:"vram"`
	Usage               *json.Number    `json:"usage"`
	SearchRank          *json.Number    `json:"searchRank"`
	IO                  json.RawMessage `json:"io"`
	Logos               json.RawMessage `json:"logos"`
}

// NewEntry builds the entry for a newly created template.
func NewEntry(name string, m Metadata) (*jsondoc.Object, error) {
	e := jsondoc.NewObject()
	e.Set("name", name)
	e.Set("title", m.Title)
	e.Set("description", m.Description)
	mediaType := m.MediaType
	if mediaType == "" {
		mediaType = "image"
	}
	e.Set("mediaType", mediaType)
	subtype := m.MediaSubtype
	if subtype == "" {
		subtype = DefaultMediaSubtype
	}
	e.Set("mediaSubtype", subtype)
	if m.ThumbnailVariant != "" && m.ThumbnailVariant != VariantNone {
		e.Set("thumbnailVariant", m.ThumbnailVariant)
	}
	if len(m.Tags) > 0 {
		e.Set("tags", jsondoc.Strings(m.Tags))
	}
	if len(m.Models) > 0 {
		e.Set("models", jsondoc.Strings(m.Models))
	}
	if len(m.RequiresCustomNodes) > 0 {
		e.Set("requiresCustomNodes", jsondoc.Strings(m.RequiresCustomNodes))
	}
	setString(e, "tutorialUrl", m.TutorialURL)
	setString(e, "comfyuiVersion", m.ComfyUIVersion)
	setString(e, "date", m.Date)
	if m.OpenSource != nil {
		e.Set("openSource", *m.OpenSource)
	}
	setNumber(e, "size", m.Size)
	setNumber(e, "vram", m.VRAM)
	setNumber(e, "usage", m.Usage)
	setNumber(e, "searchRank", m.SearchRank)
	if err := setRaw(e, "io", m.IO); err != nil {
		return nil, err
	}
	if err := setRaw(e, "logos", m.Logos); err != nil {
		return nil, err
	}
	return e, nil
}

// Apply merges m into a copy of entry and returns it. Category moves are the
// caller's concern.
func Apply(entry *jsondoc.Object, m Metadata) (*jsondoc.Object, error) {
	e := jsondoc.CloneObject(entry)
	setString(e, "title", m.Title)
	setString(e, "description", m.Description)
	setString(e, "mediaType", m.MediaType)
	setString(e, "mediaSubtype", m.MediaSubtype)
	switch m.ThumbnailVariant {
	case "":
	case VariantNone:
		e.Delete("thumbnailVariant")
	default:
		e.Set("thumbnailVariant", m.ThumbnailVariant)
	}
	if m.Tags != nil {
		e.Set("tags", jsondoc.Strings(m.Tags))
	}
	if m.Models != nil {
		e.Set("models", jsondoc.Strings(m.Models))
	}
	if m.RequiresCustomNodes != nil {
		if len(m.RequiresCustomNodes) == 0 {
			e.Delete("requiresCustomNodes")
		} else {
			e.Set("requiresCustomNodes", jsondoc.Strings(m.RequiresCustomNodes))
		}
	}
	setString(e, "tutorialUrl", m.TutorialURL)
	setString(e, "comfyuiVersion", m.ComfyUIVersion)
	setString(e, "date", m.Date)
	if m.OpenSource != nil {
		e.Set("openSource", *m.OpenSource)
	}
	setNumber(e, "size", m.Size)
	setNumber(e, "vram", m.VRAM)
	setNumber(e, "usage", m.Usage)
	setNumber(e, "searchRank", m.SearchRank)
	if err := setRaw(e, "io", m.IO); err != nil {
		return nil, err
	}
	if err := setRaw(e, "logos", m.Logos); err != nil {
		return nil, err
	}
	return e, nil
}

// RequiredThumbnails returns how many thumbnail images a variant displays.
func RequiredThumbnails(variant string) int {
	switch variant {
	case "compareSlider", "hoverDissolve":
		return 2
	}
	return 1
}

// Variant returns the thumbnail variant of entry, VariantNone when unset.
func Variant(entry *jsondoc.Object) string {
	if v := jsondoc.String(entry, "thumbnailVariant"); v != "" {
		return v
	}
	return VariantNone
}

// Tags returns the tags of entry.
func Tags(entry *jsondoc.Object) []string {
	arr, _ := jsondoc.Array(entry, "tags")
	return jsondoc.StringSlice(arr)
}

func setString(e *jsondoc.Object, key, v string) {
	if v != "" {
		e.Set(key, v)
	}
}

func setNumber(e *jsondoc.Object, key string, n *json.Number) {
	if n != nil {
		e.Set(key, *n)
	}
}

func setRaw(e *jsondoc.Object, key string, raw json.RawMessage) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	v, err := jsondoc.Parse(raw)
	if err != nil {
		return fmt.Errorf("catalog: %s: %w", key, err)
	}
	e.Set(key, v)
	return nil
}
