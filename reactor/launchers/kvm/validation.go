package kvm

import "regexp"

var workerNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_-]*$`)

// IsValidDomainName reports whether a worker name is usable as a libvirt
// domain name: starts with a letter/underscore, contains only
// [a-zA-Z0-9_-], and is at most 64 characters.
func IsValidDomainName(name string) bool {
	return workerNamePattern.MatchString(name) && len(name) <= 64
}
