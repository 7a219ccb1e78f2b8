// Package grocery guesses a shelf category for a grocery item from its name.
package grocery

import "strings"

// Other is the category for items nothing matched.
const Other = "Other"

type aisle struct {
	category string
	// keywords are matched as substrings of the lowercased item name, so
	// "chicken" also catches "chicken thighs". More specific phrases come
	// first within and across aisles.
	keywords []string
}

// aisles is checked in order; the first keyword hit wins. Frozen and
// beverages come before produce and dairy so "frozen peas" and "almond milk"
// land where a shopper would look for them.
var aisles = []aisle{
	{"Frozen", []string{"frozen", "ice cream", "popsicle", "ice pop", "waffles", "tater tot"}},
	{"Beverages", []string{"almond milk", "oat milk", "soy milk", "sparkling water", "water", "juice",
		"soda", "coffee", "tea", "lemonade", "kombucha", "beer", "wine"}},
	{"Household", []string{"paper towel", "toilet paper", "trash bag", "garbage bag", "dish soap",
		"laundry", "detergent", "cleaner", "sponge", "foil", "plastic wrap", "ziplock", "battery", "batteries",
		"light bulb", "napkin"}},
	{"Personal Care", []string{"body wash", "shampoo", "conditioner", "toothpaste", "toothbrush",
		"deodorant", "lotion", "sunscreen", "razor", "tissue", "band-aid", "soap"}},
	{"Snacks", []string{"fruit snack", "chip", "cracker", "cookie", "popcorn", "pretzel", "candy",
		"chocolate", "granola bar", "snack"}},
	{"Bakery", []string{"bread", "bagel", "bun", "roll", "muffin", "croissant", "tortilla", "pita", "cake"}},
	{"Meat & Seafood", []string{"chicken", "beef", "pork", "turkey", "bacon", "sausage", "ham", "steak",
		"salmon", "tuna", "shrimp", "fish", "ground"}},
	{"Dairy", []string{"milk", "cheese", "yogurt", "butter", "cream", "egg", "sour cream"}},
	{"Produce", []string{"apple", "banana", "orange", "lemon", "lime", "avocado", "tomato", "potato",
		"onion", "garlic", "lettuce", "spinach", "kale", "broccoli", "carrot", "celery", "cucumber",
		"pepper", "mushroom", "corn", "berr", "grape", "melon", "peach", "pear", "fruit", "salad"}},
	{"Pantry", []string{"rice", "pasta", "noodle", "flour", "sugar", "salt", "oil", "vinegar", "sauce",
		"bean", "soup", "cereal", "oat", "peanut butter", "jam", "honey", "spice", "canned"}},
}

// Categorize returns the category for itemName, or Other when nothing
// matches. Matching is case-insensitive.
func Categorize(itemName string) string {
	name := strings.ToLower(strings.TrimSpace(itemName))
	if name == "" {
		return Other
	}
	for _, a := range aisles {
		for _, kw := range a.keywords {
			if strings.Contains(name, kw) {
				return a.category
			}
		}
	}
	return Other
}
