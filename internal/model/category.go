package model

import "strings"

// Category is a fixed attendee classification that capacity is tracked per.
// The set is configuration, not user-extensible.
type Category string

const (
	CategoryVIP       Category = "vip"
	CategoryPartner   Category = "partner"
	CategoryExhibitor Category = "exhibitor"
	CategoryMedia     Category = "media"
)

// Categories lists every capacity category in a stable order.
func Categories() []Category {
	return []Category{CategoryVIP, CategoryPartner, CategoryExhibitor, CategoryMedia}
}

// ParseCategory normalizes a category string.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if c.IsValid() {
		return c, true
	}
	return "", false
}

// IsValid reports whether c is one of the known categories.
func (c Category) IsValid() bool {
	switch c {
	case CategoryVIP, CategoryPartner, CategoryExhibitor, CategoryMedia:
		return true
	}
	return false
}
