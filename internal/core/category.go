package core

import "strings"

// Category is one of the fixed spending categories.
type Category string

const (
	Alimentacao Category = "alimentacao"
	Transporte  Category = "transporte"
	Lazer       Category = "lazer"
	Contas      Category = "contas"
	Outros      Category = "outros"
)

type categoryInfo struct {
	label string
	icon  string
	color string
}

var categories = map[Category]categoryInfo{
	Alimentacao: {label: "Alimentação", icon: "🍔", color: "hsl(25, 95%, 53%)"},
	Transporte:  {label: "Transporte", icon: "🚗", color: "hsl(217, 91%, 60%)"},
	Lazer:       {label: "Lazer", icon: "🎮", color: "hsl(280, 87%, 65%)"},
	Contas:      {label: "Contas", icon: "📄", color: "hsl(142, 76%, 36%)"},
	Outros:      {label: "Outros", icon: "📦", color: "hsl(0, 0%, 45%)"},
}

// AllCategories returns the taxonomy in display order.
func AllCategories() []Category {
	return []Category{Alimentacao, Transporte, Lazer, Contas, Outros}
}

// ParseCategory maps user input to a Category, ignoring case and spaces.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", NewValidationError("category", ErrInvalidCategory)
	}
	return c, nil
}

func (c Category) Valid() bool {
	_, ok := categories[c]
	return ok
}

func (c Category) Label() string { return categories[c].label }

func (c Category) Icon() string { return categories[c].icon }

func (c Category) Color() string { return categories[c].color }

// CardColors is the palette offered when creating a credit card.
var CardColors = []string{
	"#10b981", // emerald
	"#3b82f6", // blue
	"#8b5cf6", // violet
	"#f59e0b", // amber
	"#ef4444", // red
	"#ec4899", // pink
}

// IncomeSources are the suggested income labels; free text is also allowed.
var IncomeSources = []string{"salario", "freelance", "investimento", "presente", "outros"}
