package bybit

import "fmt"

// Category is the product family a request targets.
type Category string

const (
	CategoryLinear  Category = "linear"
	CategoryInverse Category = "inverse"
	CategorySpot    Category = "spot"
	CategoryOption  Category = "option"
)

// StatusTrading marks an instrument open for trading.
const StatusTrading = "Trading"

var validCategories = map[Category]struct{}{
	CategoryLinear:  {},
	CategoryInverse: {},
	CategorySpot:    {},
	CategoryOption:  {},
}

// IsValid checks if the Category is a valid predefined category
func (c Category) IsValid() bool {
	_, ok := validCategories[c]
	return ok
}

// ParseCategory parses a string into a valid Category
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.IsValid() {
		return "", fmt.Errorf("invalid category: %s", s)
	}
	return c, nil
}
