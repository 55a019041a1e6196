package models

// Category is a node of the catalog tree. Path holds the materialized chain of
// category ids from the root down to this category.
type Category struct {
	ID   string   `json:"id" db:"id"`
	Name string   `json:"name" db:"name"`
	Path []string `json:"path" db:"mpath"`
}

type Product struct {
	ID          string     `json:"id" db:"id"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description,omitempty" db:"description"`
	Categories  []Category `json:"categories,omitempty"`
}

// Hierarchy concatenates the paths of every category in iteration order.
// Duplicates are kept.
func (p *Product) Hierarchy() []string {
	var hierarchy []string
	for _, category := range p.Categories {
		hierarchy = append(hierarchy, category.Path...)
	}
	return hierarchy
}

type ProductFilter struct {
	IDs []string `json:"ids,omitempty"`
}
