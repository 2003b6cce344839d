// Package ident converts full image hashes to the short identifiers shown to
// users and resolves user-typed prefixes back to full hashes.
//
// A full hash is the 16-hex-char digest of a 64-bit content hash. Showing all
// 16 characters in chat is unwieldy, so users only ever see the first 6,
// upper-cased. The prefix is not unique by construction; resolution against
// the known-hash population can therefore come back empty or ambiguous, and
// both outcomes are ordinary control flow for the command layer, not faults.
package ident

import (
	"context"
	"fmt"
	"strings"
)

// ShortIDLength is the number of hash characters exposed to users.
const ShortIDLength = 6

// HashIndex enumerates known full hashes by prefix. Implemented by the idiom
// store.
type HashIndex interface {
	HashesByPrefix(ctx context.Context, prefix string) ([]string, error)
}

// NotFoundError reports a prefix matching no known hash. Scope names the
// conversation the lookup came from so replies can be routed.
type NotFoundError struct {
	Prefix string
	Scope  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no hash with prefix %q (scope %s)", e.Prefix, e.Scope)
}

// ConflictError reports a prefix shared by more than one known hash. Hashes
// carries every match so the caller can offer a disambiguation choice.
type ConflictError struct {
	Prefix string
	Scope  string
	Hashes []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("prefix %q matches %d hashes (scope %s)", e.Prefix, len(e.Hashes), e.Scope)
}

// Shorten derives the user-facing short identifier from a full hash.
func Shorten(fullHash string) string {
	if len(fullHash) > ShortIDLength {
		fullHash = fullHash[:ShortIDLength]
	}
	return strings.ToUpper(fullHash)
}

// Extend resolves a short identifier (or any prefix) back to the unique full
// hash it denotes. The lookup is case-insensitive; stored hashes are lowercase
// hex.
func Extend(ctx context.Context, index HashIndex, prefix, scope string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(prefix))
	hashes, err := index.HashesByPrefix(ctx, normalized)
	if err != nil {
		return "", fmt.Errorf("hash prefix lookup: %w", err)
	}
	switch len(hashes) {
	case 0:
		return "", &NotFoundError{Prefix: prefix, Scope: scope}
	case 1:
		return hashes[0], nil
	default:
		return "", &ConflictError{Prefix: prefix, Scope: scope, Hashes: hashes}
	}
}
