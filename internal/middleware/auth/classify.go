package auth

import "strings"

type Class int

const (
	Public Class = iota
	Protected
)

func (c Class) String() string {
	if c == Public {
		return "public"
	}
	return "protected"
}

var publicPrefixes = []string{"/auth/", "/static/", "/assets/", "/health/"}

// Classify decides whether a request path may pass without a credential.
func Classify(path string) Class {
	if path == "/" || path == "/auth" {
		return Public
	}
	for _, p := range publicPrefixes {
		if strings.HasPrefix(path, p) {
			return Public
		}
	}
	return Protected
}
