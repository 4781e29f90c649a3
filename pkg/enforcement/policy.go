// Package enforcement decides, per project and per ref, whether updates are checked against
// the global ref database.
//
// Projects are assigned one of three policies through configured project sets:
//
//	storeNoRefs      -> EXCLUDE          no ref of the project is checked
//	storeMutableRefs -> INCLUDE_MUTABLE  only mutable refs are checked
//	storeAllRefs     -> INCLUDE          every ref is checked
//
// A set may contain the wildcard "*". An exact project name always wins over a wildcard.
// Projects not listed anywhere default to INCLUDE_MUTABLE.
package enforcement

import "strings"

// Policy is the enforcement level applied to a project or a ref
type Policy uint8

// Enforcement policies, from the most relaxed to the strictest
const (
	Exclude Policy = iota
	IncludeMutable
	Include
)

// DefaultPolicy applies to projects which are not configured
const DefaultPolicy = IncludeMutable

func (p Policy) String() string {
	switch p {
	case Exclude:
		return "EXCLUDE"
	case IncludeMutable:
		return "INCLUDE_MUTABLE"
	case Include:
		return "INCLUDE"
	default:
		return "UNKNOWN"
	}
}

// ParsePolicy reads a policy name. Unknown names fall back to DefaultPolicy.
func ParsePolicy(name string) Policy {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "EXCLUDE":
		return Exclude
	case "INCLUDE_MUTABLE":
		return IncludeMutable
	case "INCLUDE":
		return Include
	default:
		return DefaultPolicy
	}
}
