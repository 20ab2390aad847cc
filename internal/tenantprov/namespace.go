package tenantprov

import "strings"

// groupSpec is one browse group: its display name and the database name
// prefix that selects its members.
type groupSpec struct {
	Name   string
	Prefix string
}

// groupsFor resolves the browse groups for an account: the personal
// namespace first (u_<user>__*, shown as "My Data"), then tenant groups in
// membership order. Read-only variants ("<group>ro") grant access to the
// same namespace as their base group, so they collapse onto it.
func groupsFor(user string, groups []string) []groupSpec {
	var specs []groupSpec
	if user != "" {
		specs = append(specs, groupSpec{Name: "My Data", Prefix: "u_" + user + "__"})
	}
	seen := make(map[string]bool)
	for _, group := range groups {
		base := strings.TrimSuffix(group, "ro")
		if base == "" {
			base = group
		}
		if seen[base] {
			continue
		}
		seen[base] = true
		specs = append(specs, groupSpec{Name: base, Prefix: base + "_"})
	}
	return specs
}
