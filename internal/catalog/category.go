package catalog

import (
	"fmt"
	"strings"
)

// Category is immutable reference data used to tag records. Records are
// not constrained to known categories; unknown tags resolve to Unsorted.
type Category struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
	Icon string `yaml:"icon" json:"icon"`
}

var UnsortedCategory = Category{ID: Unsorted, Name: "Unsorted", Icon: "📦"}

func DefaultCategories() []Category {
	return []Category{
		{ID: "film", Name: "Films", Icon: "🎬"},
		{ID: "series", Name: "Series", Icon: "📺"},
		{ID: "short", Name: "Short films", Icon: "🎞️"},
		{ID: "other", Name: "Other", Icon: "📁"},
	}
}

type Categories struct {
	list []Category
	byID map[string]Category
}

// NewCategories validates the categories provided. IDs must be non-empty,
// unique (case-insensitively) and must not collide with Unsorted.
func NewCategories(list []Category) (*Categories, error) {
	if len(list) == 0 {
		list = DefaultCategories()
	}

	categories := &Categories{list: make([]Category, 0, len(list)), byID: make(map[string]Category, len(list))}
	for _, cat := range list {
		id := strings.ToLower(strings.TrimSpace(cat.ID))
		if id == "" {
			return nil, fmt.Errorf("category %q has no id", cat.Name)
		}
		if id == Unsorted {
			return nil, fmt.Errorf("category id %q is reserved", Unsorted)
		}
		if _, ok := categories.byID[id]; ok {
			return nil, fmt.Errorf("duplicate category id %q", id)
		}

		cat.ID = id
		categories.list = append(categories.list, cat)
		categories.byID[id] = cat
	}

	return categories, nil
}

func (c *Categories) All() []Category {
	out := make([]Category, len(c.list))
	copy(out, c.list)
	return out
}

// Has returns true if the ID is a known, real category.
func (c *Categories) Has(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// Resolve returns the category for the ID, or the Unsorted category
// if the ID is not known.
func (c *Categories) Resolve(id string) Category {
	if cat, ok := c.byID[id]; ok {
		return cat
	}

	return UnsortedCategory
}
