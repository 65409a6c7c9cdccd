package model

import "strings"

// Category is the closed set of visual variants an event can use.
// Mapping a variant to colors is up to the renderer.
type Category int

const (
	CategoryDefault Category = iota
	CategoryPrimary
	CategorySuccess
	CategoryWarning
	CategoryDanger
	CategoryMuted
)

var categoryNames = [...]string{
	CategoryDefault: "default",
	CategoryPrimary: "primary",
	CategorySuccess: "success",
	CategoryWarning: "warning",
	CategoryDanger:  "danger",
	CategoryMuted:   "muted",
}

// Categories lists every variant in declaration order.
func Categories() []Category {
	out := make([]Category, len(categoryNames))
	for i := range categoryNames {
		out[i] = Category(i)
	}
	return out
}

func (c Category) Valid() bool {
	return c >= 0 && int(c) < len(categoryNames)
}

func (c Category) String() string {
	if !c.Valid() {
		return "default"
	}
	return categoryNames[c]
}

// legacyPalette maps the free-form color keys older records carry.
var legacyPalette = map[string]Category{
	"blue":   CategoryPrimary,
	"indigo": CategoryPrimary,
	"purple": CategoryPrimary,
	"green":  CategorySuccess,
	"teal":   CategorySuccess,
	"yellow": CategoryWarning,
	"orange": CategoryWarning,
	"amber":  CategoryWarning,
	"red":    CategoryDanger,
	"pink":   CategoryDanger,
	"gray":   CategoryMuted,
	"grey":   CategoryMuted,
	"slate":  CategoryMuted,
}

// ParseCategory resolves a variant name or a legacy palette key.
// Unknown values fall back to CategoryDefault with ok=false.
func ParseCategory(s string) (Category, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	for i, name := range categoryNames {
		if name == key {
			return Category(i), true
		}
	}
	if c, ok := legacyPalette[key]; ok {
		return c, true
	}
	return CategoryDefault, false
}

// MarshalText implements encoding.TextMarshaler.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler; unknown names decode
// to CategoryDefault rather than failing the whole record.
func (c *Category) UnmarshalText(b []byte) error {
	*c, _ = ParseCategory(string(b))
	return nil
}
