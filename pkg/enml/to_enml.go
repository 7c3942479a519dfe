package enml

import (
	"bytes"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// dataURLHashAndMime decodes a "data:<mime>;base64,<payload>" src
// attribute and returns the MD5 hash (hex) en-media's hash attribute
// expects, plus the mime type. Non-data URLs (an ordinary img src
// pointing at a remote resource rather than an embedded attachment)
// yield an empty hash.
func dataURLHashAndMime(src string) (hash, mime string) {
	if !strings.HasPrefix(src, "data:") {
		return "", ""
	}
	rest := strings.TrimPrefix(src, "data:")
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", ""
	}
	mime, _, _ = strings.Cut(meta, ";")
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", mime
	}
	sum := md5.Sum(decoded)
	return hex.EncodeToString(sum[:]), mime
}

// ToENML converts a note's HTML body (already run through an
// HTMLCleaner, or already well-formed XHTML) into ENML (§4.8.1).
// rules extends the forbidden-tag table for this call only.
func (c *Converter) ToENML(html string, rules []SkipRule) (string, error) {
	xhtml := html
	if c.cleaner != nil {
		cleaned, err := c.cleaner.Clean(html)
		if err != nil {
			return "", fmt.Errorf("clean html: %w", err)
		}
		xhtml = cleaned
	}

	dec := newDecoder(xhtml)
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="no"?>` + "\n")
	buf.WriteString(`<!DOCTYPE en-note SYSTEM "http://xml.evernote.com/pub/enml2.dtd">` + "\n")

	skip := c.skipSet(rules)
	var stack []frame
	depth := 0
	wroteRoot := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse html: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			depth++

			if len(stack) > 0 {
				top := stack[len(stack)-1]
				if top.state == SkippingWithContents {
					stack = append(stack, frame{state: SkippingWithContents, depth: depth})
					continue
				}
			}

			callerRule, hasCallerRule := skip[name]

			switch {
			case name == "body":
				if wroteRoot {
					stack = append(stack, frame{state: SkippingPreservingContents, depth: depth})
					continue
				}
				buf.WriteString("<en-note>")
				wroteRoot = true
				stack = append(stack, frame{state: InsideNote, depth: depth, tagName: "en-note"})

			case name == "html" || name == "form":
				stack = append(stack, frame{state: SkippingPreservingContents, depth: depth})

			case name == "head" || name == "title":
				stack = append(stack, frame{state: SkippingWithContents, depth: depth})

			case isForbidden(name) && name != "object":
				stack = append(stack, frame{state: SkippingWithContents, depth: depth})

			case hasCallerRule && name != "object":
				if callerRule.PreserveContents {
					stack = append(stack, frame{state: SkippingPreservingContents, depth: depth})
				} else {
					stack = append(stack, frame{state: SkippingWithContents, depth: depth})
				}

			case name == "div" && hasEnTag(t.Attr, "en-decrypted"):
				cipherText, _ := attrVal(t.Attr, "data-en-crypt-cipher-text")
				cryptAttrs := make([]xml.Attr, 0, 3)
				for _, a := range t.Attr {
					switch a.Name.Local {
					case "hint", "cipher", "length":
						cryptAttrs = append(cryptAttrs, a)
					}
				}
				stack = append(stack, frame{state: CapturingDecryptedText, depth: depth, cipherText: cipherText, cryptAttrs: cryptAttrs})

			case name == "img" && hasEnTag(t.Attr, "en-todo"):
				buf.WriteString(translateToEnTodo(t.Attr))
				stack = append(stack, frame{depth: depth, selfClosed: true})

			case (name == "img" || name == "object") && hasEnTag(t.Attr, "en-crypt"):
				buf.WriteString(translateToEnCrypt(t.Attr))
				stack = append(stack, frame{depth: depth, selfClosed: true})

			case (name == "img" || name == "object") && hasEnTag(t.Attr, "en-media"):
				buf.WriteString(translateToEnMedia(t.Attr))
				stack = append(stack, frame{state: InsideEnMedia, depth: depth, selfClosed: true})

			case isAllowed(name):
				buf.WriteString("<" + name + filteredAttrs(t.Attr) + ">")
				stack = append(stack, frame{state: InsideNote, depth: depth, tagName: name})

			case isEvernoteSpecific(name):
				buf.WriteString("<" + name + filteredAttrs(t.Attr) + ">")
				st := InsideNote
				if name == TagEnCrypt {
					st = InsideEnCrypt
				} else if name == TagEnDecrypted {
					st = InsideDecrypted
				} else if name == TagEnMedia {
					st = InsideEnMedia
				}
				stack = append(stack, frame{state: st, depth: depth, tagName: name})

			default:
				// Unknown, non-Evernote, non-allowed tag: drop the
				// wrapper but keep its children.
				stack = append(stack, frame{state: SkippingPreservingContents, depth: depth})
			}

		case xml.EndElement:
			if len(stack) == 0 {
				depth--
				continue
			}
			top := stack[len(stack)-1]
			if top.depth == depth {
				stack = stack[:len(stack)-1]
				if !top.selfClosed {
					switch top.state {
					case InsideNote, InsideEnMedia, InsideEnCrypt, InsideDecrypted:
						buf.WriteString("</" + top.tagName + ">")
					case CapturingDecryptedText:
						enCrypt, err := c.emitDecryptedAsEnCrypt(top)
						if err != nil {
							return "", err
						}
						buf.WriteString(enCrypt)
					}
				}
			}
			depth--

		case xml.CharData:
			if len(stack) == 0 || stack[len(stack)-1].state == SkippingWithContents {
				break
			}
			top := stack[len(stack)-1]
			switch {
			case top.selfClosed, top.state == InsideEnMedia:
				break // no text content for self-closing translations or en-media
			case top.state == CapturingDecryptedText:
				stack[len(stack)-1].captured += string(t)
			default:
				buf.WriteString(escapeText(string(t)))
			}

		case xml.Comment, xml.ProcInst, xml.Directive:
			// dropped
		}
	}

	if !wroteRoot {
		return "", fmt.Errorf("no body element found in html")
	}

	return validateAndFixup(buf.String())
}

// hasEnTag reports whether attrs carries en-tag="want", the attribute
// HTML placeholders use to mark which Evernote-specific element they
// stand in for (§4.8.1 step 4).
func hasEnTag(attrs []xml.Attr, want string) bool {
	v, ok := attrVal(attrs, "en-tag")
	return ok && v == want
}

// translateToEnTodo renders an en-todo checkbox <img> as <en-todo/>,
// reading its checked state from the checkbox_yes.png/checkbox_no.png
// src Evernote's own HTML rendering uses.
func translateToEnTodo(attrs []xml.Attr) string {
	checked := "false"
	if src, ok := attrVal(attrs, "src"); ok && strings.Contains(src, "checkbox_yes") {
		checked = "true"
	}
	return fmt.Sprintf(`<en-todo checked="%s"/>`, checked)
}

// translateToEnCrypt renders an en-crypt placeholder <img>/<object>
// back into <en-crypt>, carrying the ciphertext body plus the
// hint/cipher/length attributes back as en-crypt attributes.
func translateToEnCrypt(attrs []xml.Attr) string {
	cipherText, _ := attrVal(attrs, "data-en-crypt-cipher-text")
	kept := make([]xml.Attr, 0, 3)
	for _, a := range attrs {
		switch a.Name.Local {
		case "hint", "cipher", "length":
			kept = append(kept, a)
		}
	}
	return fmt.Sprintf("<en-crypt%s>%s</en-crypt>", fmtAttrs(kept), escapeText(cipherText))
}

// emitDecryptedAsEnCrypt re-encrypts a CapturingDecryptedText frame's
// accumulated plaintext and renders the result as <en-crypt>, so an
// edit made to the decrypted text shown in place of an en-crypt
// element round-trips back into ciphertext (§9, "Decrypted-text
// modification").
func (c *Converter) emitDecryptedAsEnCrypt(f frame) (string, error) {
	if c.cache == nil {
		return "", fmt.Errorf("decrypted text edited but no DecryptedTextCache configured")
	}
	newCipherText, err := c.cache.ModifyDecryptedText(f.cipherText, f.captured)
	if err != nil {
		return "", fmt.Errorf("re-encrypt decrypted text: %w", err)
	}
	return fmt.Sprintf("<en-crypt%s>%s</en-crypt>", fmtAttrs(f.cryptAttrs), escapeText(newCipherText)), nil
}

// translateToEnMedia renders an <img>/<object> element as en-media,
// keeping only the attributes en-media understands plus hash/type
// derived from the source's data: URL or mime hint. When the src is not
// a data: URL, the data-resource-hash attribute ToHTML writes supplies
// the hash.
func translateToEnMedia(attrs []xml.Attr) string {
	var hash, mime string
	if src, ok := attrVal(attrs, "src"); ok {
		hash, mime = dataURLHashAndMime(src)
	}
	if h, ok := attrVal(attrs, "data-resource-hash"); ok && hash == "" {
		hash = h
	}
	if t, ok := attrVal(attrs, "data-resource-mime"); ok {
		mime = t
	}
	kept := make([]xml.Attr, 0, 4)
	for _, a := range attrs {
		switch a.Name.Local {
		case "width", "height", "alt":
			kept = append(kept, a)
		}
	}
	out := "<en-media"
	if hash != "" {
		out += fmt.Sprintf(` hash="%s"`, hash)
	}
	if mime != "" {
		out += fmt.Sprintf(` type="%s"`, mime)
	}
	out += fmtAttrs(kept)
	out += "/>"
	return out
}

// filteredAttrs renders attrs with forbidden attributes, event
// handlers and the en-hyperlink-id bookkeeping attribute stripped
// (§4.8.1).
func filteredAttrs(attrs []xml.Attr) string {
	kept := attrs[:0:0]
	for _, a := range attrs {
		if isForbiddenAttribute(a.Name.Local) || a.Name.Local == attrHyperlinkID {
			continue
		}
		kept = append(kept, a)
	}
	return fmtAttrs(kept)
}
