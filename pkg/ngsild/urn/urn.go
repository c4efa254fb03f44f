// Package urn handles identifiers in the NGSI-LD namespace and allows the
// rest of the library to work with unprefixed strings.
package urn

import "strings"

const Prefix string = "urn:ngsi-ld:"

// IsPrefixed checks whether the given string starts with the NGSI-LD prefix.
func IsPrefixed(value string) bool {
	return strings.HasPrefix(value, Prefix)
}

// Add prefixes a string with the URN scheme and namespace identifier,
// unless it is already prefixed.
func Add(value string) string {
	if value == "" || IsPrefixed(value) {
		return value
	}

	return Prefix + value
}

// Strip removes the URN scheme and namespace identifier, if present.
func Strip(value string) string {
	return strings.TrimPrefix(value, Prefix)
}

// FullyQualified builds an entity identifier from a type and a local id,
// following the urn:ngsi-ld:<Type>:<remainder> naming convention. A local
// id already qualified with the type is accepted as is.
func FullyQualified(entityType, id string) string {
	bare := Strip(id)
	if !strings.HasPrefix(bare, entityType+":") {
		bare = entityType + ":" + bare
	}

	return Add(bare)
}

// InferType extracts the entity type from an identifier following the
// naming convention. Returns false when the identifier has no type segment.
func InferType(id string) (string, bool) {
	nss := Strip(id)

	idx := strings.Index(nss, ":")
	if idx <= 0 {
		return "", false
	}

	return nss[:idx], true
}
