// Package argparse turns the free-form text of a chat command into structured
// buckets: tags, comments, catalogue IDs and catalogue names that failed to
// resolve.
//
// Chat text is typed by humans and is noisy by nature, so the tokenizer never
// fails: anything that does not parse as a field assignment degrades to a
// plain tag.
package argparse

import (
	"strings"

	"github.com/ellyeware/idiombot/internal/domain"
)

// Resolver maps a human-entered catalogue name to its canonical ID.
type Resolver interface {
	ResolveAlias(name string) (string, bool)
}

// Options controls parse behavior per command.
type Options struct {
	// DefaultCatalogue, when non-empty, is resolved and injected if the user
	// named no catalogue at all. Upload commands set it; search commands must
	// leave it empty so no implicit filter sneaks into the query.
	DefaultCatalogue string
}

// Parsed is the immutable result of one tokenization. Each bucket has set
// semantics; insertion order is preserved for stable output.
type Parsed struct {
	Tags                 []string
	Comments             []string
	Catalogues           []string
	UnresolvedCatalogues []string
}

type field int

const (
	fieldNone field = iota
	fieldTag
	fieldComment
	fieldCatalogue
)

// Prefix spellings are case-sensitive and matched exactly against the text
// left of the "=".
var fieldSpellings = map[string]field{
	"cat":        fieldCatalogue,
	"cats":       fieldCatalogue,
	"category":   fieldCatalogue,
	"categories": fieldCatalogue,
	"tag":        fieldTag,
	"tags":       fieldTag,
	"com":        fieldComment,
	"comment":    fieldComment,
	"comments":   fieldComment,
}

func fieldFor(name string) field {
	if f, ok := fieldSpellings[name]; ok {
		return f
	}
	return fieldNone
}

var fullwidth = strings.NewReplacer(
	"＃", "#",
	"＝", "=",
	"，", ",",
)

// Tokenize normalizes one text block and splits it into tokens. Fullwidth
// punctuation is folded first so that "， " collapses like ", " does.
func Tokenize(text string) []string {
	text = fullwidth.Replace(text)
	text = strings.ReplaceAll(text, ", ", ",")
	return strings.Fields(text)
}

// Parse tokenizes every text segment of a message; image segments belong to
// the upload orchestrator and are skipped here.
func Parse(segments []domain.Segment, resolver Resolver, opts Options) Parsed {
	var tokens []string
	for _, seg := range segments {
		switch s := seg.(type) {
		case domain.TextSegment:
			tokens = append(tokens, Tokenize(s.Text)...)
		case domain.ImageSegment:
			// not ours
		}
	}
	return ParseTokens(tokens, resolver, opts)
}

// ParseTokens runs the token state machine and resolves catalogue names.
func ParseTokens(tokens []string, resolver Resolver, opts Options) Parsed {
	p := &parser{tokens: tokens}
	p.run()

	out := Parsed{
		Tags:     p.tags.items,
		Comments: p.comments.items,
	}

	catalogues := newBucket()
	unresolved := newBucket()
	for _, name := range p.catalogues.items {
		if id, ok := resolveAlias(resolver, name); ok {
			catalogues.add(id)
		} else {
			unresolved.add(name)
		}
	}
	if len(catalogues.items) == 0 && opts.DefaultCatalogue != "" {
		if id, ok := resolveAlias(resolver, opts.DefaultCatalogue); ok {
			catalogues.add(id)
		}
	}
	out.Catalogues = catalogues.items
	out.UnresolvedCatalogues = unresolved.items
	return out
}

func resolveAlias(r Resolver, name string) (string, bool) {
	if r == nil {
		return "", false
	}
	return r.ResolveAlias(name)
}

// state of the token cursor. A field spelling with no attached "=" needs up to
// two tokens of lookahead before it is either confirmed as an assignment or
// dismissed as an ordinary tag.
type state int

const (
	stateScanning state = iota
	stateAwaitingEquals
	stateAwaitingValue
)

type parser struct {
	tokens []string
	pos    int

	tags       *bucket
	comments   *bucket
	catalogues *bucket
}

func (p *parser) run() {
	p.tags = newBucket()
	p.comments = newBucket()
	p.catalogues = newBucket()

	st := stateScanning
	var pendingHead string

	for p.pos < len(p.tokens) {
		switch st {
		case stateScanning:
			tok := p.tokens[p.pos]
			p.pos++
			if p.consumeAssignment(tok) {
				continue
			}
			if fieldFor(tok) != fieldNone {
				pendingHead = tok
				st = stateAwaitingEquals
				continue
			}
			p.bareTag(tok)

		case stateAwaitingEquals:
			next := p.tokens[p.pos]
			switch {
			case next == "=":
				p.pos++
				st = stateAwaitingValue
			case strings.HasPrefix(next, "="):
				// glued form: ["cat", "=value"]
				p.pos++
				p.consumeAssignment(pendingHead + next)
				st = stateScanning
			default:
				// spurious prefix; the next token is left for the scanner
				p.bareTag(pendingHead)
				st = stateScanning
			}

		case stateAwaitingValue:
			value := p.tokens[p.pos]
			p.pos++
			p.consumeAssignment(pendingHead + "=" + value)
			st = stateScanning
		}
	}

	// input ended mid-lookahead; whatever was pending degrades to tags
	switch st {
	case stateAwaitingEquals:
		p.bareTag(pendingHead)
	case stateAwaitingValue:
		p.bareTag(pendingHead)
		p.bareTag("=")
	}
}

// consumeAssignment handles any token containing "=". It reports false when
// the token has no "=" at all, leaving lookahead to the state machine.
func (p *parser) consumeAssignment(tok string) bool {
	idx := strings.IndexByte(tok, '=')
	if idx < 0 {
		return false
	}
	f := fieldFor(tok[:idx])
	if f == fieldNone {
		// "=" present but the left side is no field; user text, not syntax
		p.bareTag(tok)
		return true
	}
	payload := tok[idx+1:]
	if payload == "" {
		// Legacy quirk kept on purpose: "cat=" with nothing after does not
		// clear the catalogue, the whole original token becomes the value.
		p.addValue(f, tok)
		return true
	}
	for _, part := range strings.Split(payload, ",") {
		if part != "" {
			p.addValue(f, part)
		}
	}
	return true
}

func (p *parser) addValue(f field, value string) {
	switch f {
	case fieldTag:
		p.tags.add(stripHash(value))
	case fieldComment:
		p.comments.add(value)
	case fieldCatalogue:
		p.catalogues.add(value)
	}
}

func (p *parser) bareTag(tok string) {
	if tag := stripHash(tok); tag != "" {
		p.tags.add(tag)
	}
}

// stripHash removes one cosmetic leading "#".
func stripHash(s string) string {
	return strings.TrimPrefix(s, "#")
}

// bucket is a string set that remembers insertion order.
type bucket struct {
	seen  map[string]struct{}
	items []string
}

func newBucket() *bucket {
	return &bucket{seen: make(map[string]struct{})}
}

func (b *bucket) add(v string) {
	if _, dup := b.seen[v]; dup {
		return
	}
	b.seen[v] = struct{}{}
	b.items = append(b.items, v)
}
