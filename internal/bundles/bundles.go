// Package bundles maintains the bundle membership map: bundle name to the
// template names it ships.
package bundles

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/raido/internal/jsondoc"
)

// Path is the repository path of the bundle membership map.
const Path = "bundles.json"

// Rule maps one category title to a bundle.
type Rule struct {
	Category string `yaml:"category" json:"category"`
	Bundle   string `yaml:"bundle" json:"bundle"`
}

// Rules is the category to bundle mapping table.
type Rules struct {
	Default string `yaml:"default" json:"default"`
	Rules   []Rule `yaml:"rules" json:"rules"`
}

// Validate validates the rules.
func (r *Rules) Validate() error {
	if err := validation.ValidateStruct(r,
		validation.Field(&r.Default, validation.Required),
	); err != nil {
		return err
	}
	for i := range r.Rules {
		rule := &r.Rules[i]
		if err := validation.ValidateStruct(rule,
			validation.Field(&rule.Category, validation.Required),
			validation.Field(&rule.Bundle, validation.Required),
		); err != nil {
			return fmt.Errorf("rules[%d]: %w", i, err)
		}
	}
	return nil
}

// BundleFor returns the bundle a category maps to.
func (r *Rules) BundleFor(category string) string {
	for _, rule := range r.Rules {
		if rule.Category == category {
			return rule.Bundle
		}
	}
	return r.Default
}

// Assign places template in the bundle its category maps to and removes it
// from every other bundle. data may be empty when the map does not exist yet.
// The rendered map and whether it changed are returned.
func Assign(data []byte, rules *Rules, template, category string) ([]byte, bool, error) {
	doc := jsondoc.NewObject()
	if len(data) > 0 {
		parsed, err := jsondoc.ParseObject(data)
		if err != nil {
			return nil, false, fmt.Errorf("bundles: %w", err)
		}
		doc = parsed
	}
	target := rules.BundleFor(category)
	changed := false

	for p := doc.Oldest(); p != nil; p = p.Next() {
		if p.Key == target {
			continue
		}
		names, ok := p.Value.([]any)
		if !ok {
			continue
		}
		kept := names[:0:0]
		for _, n := range names {
			if n != template {
				kept = append(kept, n)
			}
		}
		if len(kept) != len(names) {
			p.Value = kept
			changed = true
		}
	}

	names, _ := jsondoc.Array(doc, target)
	present := false
	for _, n := range names {
		if n == template {
			present = true
			break
		}
	}
	if !present {
		doc.Set(target, append(names, template))
		changed = true
	}
	return append(jsondoc.MarshalIndent(doc), '\n'), changed, nil
}
