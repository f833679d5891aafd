package model

import (
	"fmt"
	"sort"
	"strings"
)

// Category is a detectable object class exposed to clients.
type Category string

const (
	CategoryCar        Category = "car"
	CategoryTruck      Category = "truck"
	CategoryBicycle    Category = "bicycle"
	CategoryMotorcycle Category = "motorcycle"
)

// DefaultCategory is used when a request does not name one.
const DefaultCategory = CategoryTruck

var knownCategories = map[Category]struct{}{
	CategoryCar:        {},
	CategoryTruck:      {},
	CategoryBicycle:    {},
	CategoryMotorcycle: {},
}

// ParseCategory validates a client-supplied label. Matching is exact.
func ParseCategory(label string) (Category, error) {
	c := Category(label)
	if _, ok := knownCategories[c]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedCategory, label)
	}
	return c, nil
}

// Categories returns the known set in alphabetical order.
func Categories() []Category {
	out := make([]Category, 0, len(knownCategories))
	for c := range knownCategories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// CategoryNames is Categories as plain strings.
func CategoryNames() []string {
	cats := Categories()
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = string(c)
	}
	return names
}

func (c Category) String() string {
	return string(c)
}

// ListString renders the known set for error and help messages.
func ListString() string {
	return strings.Join(CategoryNames(), ", ")
}
