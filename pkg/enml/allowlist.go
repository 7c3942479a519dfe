package enml

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// attributeAllowlist gives, per element, the set of attributes
// enml2.dtd permits. validateAndFixup strips anything outside it
// rather than parsing a validator's diagnostic text to discover
// forbidden attributes on the fly — the source does the latter and
// notes it as fragile (§9, Open Question 1). "*" is a pseudo-entry
// whose set applies to every element (core/i18n attributes the DTD
// grants everywhere).
var attributeAllowlist = map[string]map[string]bool{
	"*": set("lang", "xml:lang", "dir", "style", "title"),

	TagEnNote: set(),
	"a":       set("href", "name", "rel"),
	"img":     set("src", "width", "height", "alt", "longdesc"),
	"font":    set("face", "size", "color"),
	"table":   set("border", "cellpadding", "cellspacing", "width", "summary"),
	"td":      set("colspan", "rowspan", "width", "height", "align", "valign"),
	"th":      set("colspan", "rowspan", "width", "height", "align", "valign"),
	"col":     set("span", "width"),
	"hr":      set("width", "size", "noshade"),
	"ol":      set("start", "type"),
	"ul":      set("type"),

	TagEnMedia:     set("hash", "type", "width", "height", "alt"),
	TagEnTodo:      set("checked"),
	TagEnCrypt:     set("hint", "cipher", "length"),
	TagEnDecrypted: set("hint", "cipher", "length"),
}

func set(items ...string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, it := range items {
		m[it] = true
	}
	return m
}

func allowedAttr(elem, attr string) bool {
	if wild := attributeAllowlist["*"]; wild[attr] {
		return true
	}
	perElem, ok := attributeAllowlist[elem]
	return ok && perElem[attr]
}

// validateAndFixup strips any attribute not present in
// attributeAllowlist for its element, then re-serializes. It is
// idempotent — run twice on its own output, the second pass is a
// no-op — and never errors on a well-formed document; a parse
// failure on the (already-generated) ENML is surfaced with the
// offending fragment for debugging.
func validateAndFixup(enmlDoc string) (string, error) {
	dec := newDecoder(enmlDoc)
	var out strings.Builder

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("validate enml: %w (input: %.200s)", err, enmlDoc)
		}

		switch t := tok.(type) {
		case xml.ProcInst:
			if t.Target == "xml" {
				fmt.Fprintf(&out, "<?xml %s?>\n", string(t.Inst))
			}
		case xml.Directive:
			out.WriteString("<!" + string(t) + ">\n")
		case xml.StartElement:
			kept := t.Attr[:0:0]
			for _, a := range t.Attr {
				if allowedAttr(t.Name.Local, a.Name.Local) {
					kept = append(kept, a)
				}
			}
			out.WriteString("<" + t.Name.Local + fmtAttrs(kept) + ">")
		case xml.EndElement:
			out.WriteString("</" + t.Name.Local + ">")
		case xml.CharData:
			out.WriteString(escapeText(string(t)))
		case xml.Comment:
			out.WriteString("<!--" + string(t) + "-->")
		}
	}

	return out.String(), nil
}
