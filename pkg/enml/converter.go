// Package enml implements the ENML/ENEX markup converter: HTML-to-ENML
// and ENML-to-HTML transforms driven by an explicit state machine,
// DTD-style validation and fixup, ENEX import/export, and plain-text
// extraction (§4.8).
package enml

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// ConversionState names where the converter's XML walk currently sits.
// The source drives an equivalent state by hand with a cluster of
// boolean flags on a streaming reader/writer pair; splitting it into
// explicit states keyed by event kind removes that flag juggling
// (§9).
type ConversionState int

const (
	// Outside is before the root element has been seen.
	Outside ConversionState = iota
	// InsideNote is the ordinary content walk, within en-note/body.
	InsideNote
	// InsideEnMedia is inside an en-media (or translated img/object)
	// element; its children are never emitted, only its attributes.
	InsideEnMedia
	// InsideEnCrypt is inside an en-crypt element.
	InsideEnCrypt
	// InsideDecrypted is inside an en-decrypted element produced by a
	// decrypted-text cache hit.
	InsideDecrypted
	// SkippingWithContents drops an entire subtree, tracking nesting
	// depth so sibling start/end events at the same depth don't
	// prematurely resume normal processing.
	SkippingWithContents
	// SkippingPreservingContents drops a wrapper element but keeps
	// walking its children as if the wrapper weren't there.
	SkippingPreservingContents
	// CapturingDecryptedText is inside a div[en-tag="en-decrypted"]:
	// its character data is accumulated as edited plaintext rather
	// than written to the output, then re-encrypted into an en-crypt
	// element on the matching EndElement.
	CapturingDecryptedText
)

// HTMLCleaner turns arbitrary, possibly malformed HTML into
// well-formed XHTML the converter's XML walk can consume. It is an
// external collaborator: no library in this module's dependency set
// performs this transform, so callers supply their own (a headless
// browser, tidy binary, or hand-rolled balancer).
type HTMLCleaner interface {
	Clean(html string) (xhtml string, err error)
}

// DecryptedTextCache mirrors the IDecryptedTextCache collaborator: it
// remembers a plaintext the user is actively editing alongside the
// ciphertext it was decrypted from, and re-encrypts on request when
// the plaintext changes (§9, boundary scenario "Decrypted-text
// modification").
type DecryptedTextCache interface {
	// Find returns the cached plaintext for ciphertext, if any.
	Find(cipherText string) (plainText string, ok bool)
	// AddDecryptedText records a plaintext obtained by decrypting
	// cipherText with the given cipher/key-length/hint.
	AddDecryptedText(cipherText, plainText, cipher string, keyLength int, hint string)
	// ModifyDecryptedText re-encrypts newPlainText under the same
	// cipher/key as cipherText and returns the new ciphertext.
	ModifyDecryptedText(cipherText, newPlainText string) (newCipherText string, err error)
}

// SkipRule lets a caller extend the forbidden-tag set at conversion
// time without changing the package-level tables.
type SkipRule struct {
	// Tag is the element name the rule matches.
	Tag string
	// PreserveContents, when true, drops only the wrapper element and
	// keeps walking its children (SkippingPreservingContents);
	// otherwise the whole subtree is dropped.
	PreserveContents bool
}

// Converter implements the HTML<->ENML and ENML<->HTML transforms.
// It holds no per-call mutable state; a single instance is safe to
// reuse across goroutines.
type Converter struct {
	cleaner HTMLCleaner
	cache   DecryptedTextCache
}

// New builds a Converter. cleaner may be nil if callers only ever
// pass already-well-formed XHTML to ToENML; cache may be nil if the
// caller never round-trips en-crypt/en-decrypted content.
func New(cleaner HTMLCleaner, cache DecryptedTextCache) *Converter {
	return &Converter{cleaner: cleaner, cache: cache}
}

// skipSet merges the package-level forbidden-tag table with any
// caller-supplied rules, indexed by tag name.
func (c *Converter) skipSet(rules []SkipRule) map[string]SkipRule {
	set := make(map[string]SkipRule, len(forbiddenXHTMLTags)+len(rules))
	for tag, forbidden := range forbiddenXHTMLTags {
		if forbidden {
			set[tag] = SkipRule{Tag: tag, PreserveContents: false}
		}
	}
	for _, r := range rules {
		set[r.Tag] = r
	}
	return set
}

// frame holds the skip-tracking state for one nesting level of the
// XML walk; ToENML keeps them on an explicit stack slice, pushing one
// per StartElement and popping it on the matching EndElement.
type frame struct {
	state ConversionState
	depth int // used by the two Skipping* states
	// tagName and selfClosed only matter for states that emit a
	// closing tag (InsideNote/InsideEnMedia/InsideEnCrypt/
	// InsideDecrypted); selfClosed frames already wrote their own
	// self-closing markup and emit nothing more on EndElement.
	tagName    string
	selfClosed bool
	// cipherText, cryptAttrs and captured back a CapturingDecryptedText
	// frame: cipherText is the original ciphertext this plaintext was
	// decrypted from, cryptAttrs are the hint/cipher/length attributes
	// to carry onto the re-encrypted en-crypt element, and captured
	// accumulates the edited plaintext as character data arrives.
	cipherText string
	cryptAttrs []xml.Attr
	captured   string
}

func newDecoder(xhtml string) *xml.Decoder {
	d := xml.NewDecoder(strings.NewReader(xhtml))
	d.Strict = false
	d.AutoClose = xml.HTMLAutoClose
	d.Entity = xml.HTMLEntity
	return d
}

func quoteAttr(v string) string {
	v = strings.ReplaceAll(v, "&", "&amp;")
	v = strings.ReplaceAll(v, "\"", "&quot;")
	v = strings.ReplaceAll(v, "<", "&lt;")
	v = strings.ReplaceAll(v, ">", "&gt;")
	return v
}

func escapeText(s string) string {
	var b strings.Builder
	if err := xml.EscapeText(&b, []byte(s)); err != nil {
		return s
	}
	return b.String()
}

func attrVal(attrs []xml.Attr, name string) (string, bool) {
	for _, a := range attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func fmtAttrs(attrs []xml.Attr) string {
	var b strings.Builder
	for _, a := range attrs {
		fmt.Fprintf(&b, ` %s="%s"`, a.Name.Local, quoteAttr(a.Value))
	}
	return b.String()
}
