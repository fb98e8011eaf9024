// internal/discovery/roles.go
package discovery

// implicitRoleSelectors maps an ARIA role to the native elements that carry
// it implicitly. Pages that never set role attributes are still searchable
// through this table.
var implicitRoleSelectors = map[string][]string{
	"button": {
		"button",
		`input[type="button"]`,
		`input[type="submit"]`,
	},
	"textbox": {
		`input[type="text"]`,
		`input[type="email"]`,
		"textarea",
	},
	"link": {
		"a[href]",
	},
	"checkbox": {
		`input[type="checkbox"]`,
	},
	"radio": {
		`input[type="radio"]`,
	},
}
