package model

import (
	"encoding/json"
	"math/bits"
	"strings"
)

// Category classifies a location. Unknown values fold to Other.
type Category int

const (
	FoodAndDrink Category = iota
	CultureAndArt
	Entertainment
	NatureAndScenery
	TravelAndTourism
	Shopping
	Accommodation
	Other

	numCategories = int(Other) + 1
)

var categoryNames = [numCategories]string{
	"Food & Drink",
	"Culture & Art",
	"Entertainment",
	"Nature & Scenery",
	"Travel & Tourism",
	"Shopping",
	"Accommodation",
	"Other",
}

// constant-style names used by older documents
var categoryKeys = [numCategories]string{
	"FOOD_AND_DRINK",
	"CULTURE_AND_ART",
	"ENTERTAINMENT",
	"NATURE_AND_SCENERY",
	"TRAVEL_AND_TOURISM",
	"SHOPPING",
	"ACCOMMODATION",
	"OTHER",
}

// String returns the display name of the category.
func (c Category) String() string {
	if c < 0 || int(c) >= numCategories {
		return categoryNames[Other]
	}
	return categoryNames[c]
}

// ParseCategory accepts a display name ("Food & Drink"), a constant name
// ("FOOD_AND_DRINK") or a short slug ("food-and-drink"), case-insensitively.
// Anything else is Other.
func ParseCategory(s string) Category {
	s = strings.TrimSpace(s)
	slug := strings.NewReplacer("-", "_", " ", "_", "&", "AND").Replace(strings.ToUpper(s))
	slug = strings.ReplaceAll(slug, "__", "_")
	for i := range numCategories {
		if strings.EqualFold(s, categoryNames[i]) || slug == categoryKeys[i] {
			return Category(i)
		}
	}
	return Other
}

// AllCategories returns every category in declaration order.
func AllCategories() []Category {
	out := make([]Category, numCategories)
	for i := range out {
		out[i] = Category(i)
	}
	return out
}

func (c Category) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Category) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// numeric or otherwise unexpected encodings fold to Other
		*c = Other
		return nil
	}
	*c = ParseCategory(s)
	return nil
}

// CategorySet is a set of categories. The zero value is empty.
type CategorySet uint16

// AllCategorySet returns the set containing every category.
func AllCategorySet() CategorySet {
	return CategorySet(1<<numCategories - 1)
}

// NewCategorySet builds a set from the given categories.
func NewCategorySet(cs ...Category) CategorySet {
	var s CategorySet
	for _, c := range cs {
		s = s.With(c)
	}
	return s
}

// With returns the set with c added.
func (s CategorySet) With(c Category) CategorySet {
	if c < 0 || int(c) >= numCategories {
		c = Other
	}
	return s | 1<<uint(c)
}

// Has reports whether c is in the set.
func (s CategorySet) Has(c Category) bool {
	if c < 0 || int(c) >= numCategories {
		c = Other
	}
	return s&(1<<uint(c)) != 0
}

// IsAll reports whether every category is selected.
func (s CategorySet) IsAll() bool {
	return s&AllCategorySet() == AllCategorySet()
}

// Len returns the number of categories in the set.
func (s CategorySet) Len() int {
	return bits.OnesCount16(uint16(s & AllCategorySet()))
}

// Categories lists the members in declaration order.
func (s CategorySet) Categories() []Category {
	var out []Category
	for _, c := range AllCategories() {
		if s.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

func (s CategorySet) String() string {
	names := make([]string, 0, s.Len())
	for _, c := range s.Categories() {
		names = append(names, c.String())
	}
	return strings.Join(names, ", ")
}
