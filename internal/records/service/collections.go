package service

// collection describes what a stored document must carry and what it is
// given when the client leaves it out.
type collection struct {
	required []string
	defaults map[string]any
}

var collections = map[string]collection{
	"contacts": {
		required: []string{"name"},
		defaults: map[string]any{"status": "New"},
	},
	"opportunities": {
		required: []string{"title"},
		defaults: map[string]any{"stage": "Lead", "amount": 0},
	},
	"products": {
		required: []string{"name"},
		defaults: map[string]any{"price": 0},
	},
	"documents": {
		required: []string{"name"},
	},
	"users": {
		required: []string{"email"},
		defaults: map[string]any{"role": "member"},
	},
}

// Collections lists the names the records service can host.
func Collections() []string {
	return []string{"contacts", "opportunities", "products", "documents", "users"}
}
