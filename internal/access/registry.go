// Package access owns the module registry and the access resolver. It is the
// single authority on which functional modules a role may use; no other
// component re-implements role checks.
package access

import "quota-service/internal/model"

// Module is a functional area of the console that can be switched per role.
// AwardType, when set, adds a second gate: the module is visible only to
// accounts holding at least one award record of that type, independent of the
// module-setting mechanism.
type Module struct {
	Name      string `json:"name"`
	Label     string `json:"label"`
	AwardType string `json:"award_type,omitempty"`
}

// RequiresAward reports whether the module carries the additive award gate.
func (m Module) RequiresAward() bool {
	return m.AwardType != ""
}

var modules = []Module{
	{Name: "dashboard", Label: "Dashboard"},
	{Name: "accounts", Label: "User Accounts"},
	{Name: "attendees", Label: "Attendee Registrations"},
	{Name: "slot_requests", Label: "Slot Requests"},
	{Name: "partnership_types", Label: "Partnership Types"},
	{Name: "module_settings", Label: "Module Settings"},
	{Name: "email_templates", Label: "Email Templates"},
	{Name: "exports", Label: "Exports"},
	{Name: "trophy", Label: "Recognition Award", AwardType: "trophy"},
}

// defaultModules is the static per-role default list consulted when no
// explicit module setting exists. Admin gets everything; the other roles get
// curated subsets.
var defaultModules = map[model.Role][]string{
	model.RoleAdmin: {
		"dashboard", "accounts", "attendees", "slot_requests",
		"partnership_types", "module_settings", "email_templates",
		"exports", "trophy",
	},
	model.RoleSuperUser: {
		"dashboard", "accounts", "attendees", "slot_requests",
		"partnership_types", "exports",
	},
	model.RoleUser: {
		"dashboard", "attendees", "slot_requests", "trophy",
	},
}

// Modules returns the full registry in declaration order.
func Modules() []Module {
	out := make([]Module, len(modules))
	copy(out, modules)
	return out
}

// Lookup finds a module by name.
func Lookup(name string) (Module, bool) {
	for _, m := range modules {
		if m.Name == name {
			return m, true
		}
	}
	return Module{}, false
}

// DefaultModules returns the default module names for a role.
func DefaultModules(role model.Role) []string {
	defaults := defaultModules[role]
	out := make([]string, len(defaults))
	copy(out, defaults)
	return out
}

func inDefaults(role model.Role, module string) bool {
	for _, name := range defaultModules[role] {
		if name == module {
			return true
		}
	}
	return false
}
