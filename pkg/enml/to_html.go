package enml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
)

// selfClosing lists the XHTML elements ENML's ENML-to-HTML output
// renders as self-closing tags even when empty; everything else gets
// an explicit open/close pair (§4.8.2, "empty-element non-self-closing
// form handling except <br>").
var selfClosing = map[string]bool{
	"br": true, "img": true, "hr": true, "area": true, "col": true,
}

// ToHTML converts ENML content back into HTML for display or editing
// (§4.8.2). hyperlinkSeq, if non-nil, is called once per <a> element
// encountered and its return value is stamped onto the element as
// en-hyperlink-id, letting the caller correlate clicks back to source
// positions; pass nil to skip that bookkeeping.
func (c *Converter) ToHTML(enml string, hyperlinkSeq func() int) (string, error) {
	dec := newDecoder(enml)
	var buf bytes.Buffer

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse enml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			switch name {
			case TagEnNote:
				buf.WriteString("<body" + filteredAttrs(t.Attr) + ">")

			case TagEnMedia:
				if err := c.writeEnMedia(&buf, t.Attr); err != nil {
					return "", err
				}
				if err := skipElement(dec); err != nil {
					return "", err
				}

			case TagEnCrypt:
				if err := c.writeEnCrypt(&buf, dec, t.Attr); err != nil {
					return "", err
				}

			case TagEnTodo:
				c.writeEnTodo(&buf, t.Attr)
				if err := skipElement(dec); err != nil {
					return "", err
				}

			case "a":
				attrs := t.Attr
				if hyperlinkSeq != nil {
					attrs = append(append([]xml.Attr{}, attrs...), xml.Attr{
						Name:  xml.Name{Local: attrHyperlinkID},
						Value: fmt.Sprintf("%d", hyperlinkSeq()),
					})
				}
				buf.WriteString("<a" + fmtAttrs(attrs) + ">")

			default:
				if selfClosing[name] {
					buf.WriteString("<" + name + fmtAttrs(t.Attr) + " />")
					if err := skipElement(dec); err != nil {
						return "", err
					}
				} else {
					buf.WriteString("<" + name + fmtAttrs(t.Attr) + ">")
				}
			}

		case xml.EndElement:
			if t.Name.Local == TagEnNote {
				buf.WriteString("</body>")
				continue
			}
			if selfClosing[t.Name.Local] {
				continue
			}
			buf.WriteString("</" + t.Name.Local + ">")

		case xml.CharData:
			buf.WriteString(escapeText(string(t)))

		case xml.Comment, xml.ProcInst, xml.Directive:
			// dropped
		}
	}

	return buf.String(), nil
}

// skipElement consumes tokens up to and including the matching
// EndElement for the StartElement just read, discarding them. Used
// for ENML elements (en-media, en-todo) that carry no renderable
// children of their own.
func skipElement(dec *xml.Decoder) error {
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		switch tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		}
	}
	return nil
}

// writeEnMedia renders en-media as an <img> tagged with a class the
// host application can style/hook, carrying the resource hash as a
// data attribute for later lookup.
func (c *Converter) writeEnMedia(buf *bytes.Buffer, attrs []xml.Attr) error {
	hash, _ := attrVal(attrs, "hash")
	mime, _ := attrVal(attrs, "type")
	class := "en-media-image"
	if mime != "" && len(mime) > 6 && mime[:6] != "image/" {
		class = "en-media-object"
	}
	mimeAttr := ""
	if mime != "" {
		mimeAttr = fmt.Sprintf(` data-resource-mime="%s"`, quoteAttr(mime))
	}
	fmt.Fprintf(buf, `<img class="%s" en-tag="en-media" data-resource-hash="%s"%s%s />`, class, hash, mimeAttr, fmtAttrs(filterOut(attrs, "hash", "type")))
	return nil
}

// writeEnCrypt renders en-crypt as an <img> placeholder unless the
// decrypted-text cache already holds a plaintext for this ciphertext,
// in which case it renders a div[en-decrypted] wrapping the plaintext
// instead, matching the "decrypted inline" editing affordance (§9).
func (c *Converter) writeEnCrypt(buf *bytes.Buffer, dec *xml.Decoder, attrs []xml.Attr) error {
	cipherText, err := readCharData(dec)
	if err != nil {
		return err
	}

	if c.cache != nil {
		if plain, ok := c.cache.Find(cipherText); ok {
			fmt.Fprintf(buf, `<div en-tag="en-decrypted" data-en-crypt-cipher-text="%s"%s>%s</div>`,
				quoteAttr(cipherText), fmtAttrs(filterOut(attrs)), escapeText(plain))
			return nil
		}
	}

	fmt.Fprintf(buf, `<img class="en-crypt-image" en-tag="en-crypt" data-en-crypt-cipher-text="%s"%s />`,
		quoteAttr(cipherText), fmtAttrs(filterOut(attrs)))
	return nil
}

// writeEnTodo renders en-todo as an <img> pointing at a checked/
// unchecked checkbox asset, matching the teacher-independent ENML
// editing convention of representing checkboxes as images.
func (c *Converter) writeEnTodo(buf *bytes.Buffer, attrs []xml.Attr) {
	checked, _ := attrVal(attrs, "checked")
	src := "checkbox_no.png"
	if checked == "true" {
		src = "checkbox_yes.png"
	}
	fmt.Fprintf(buf, `<img class="en-todo-checkbox" en-tag="en-todo" src="%s"%s />`, src, fmtAttrs(filterOut(attrs, "checked")))
}

func filterOut(attrs []xml.Attr, drop ...string) []xml.Attr {
	dropSet := make(map[string]bool, len(drop))
	for _, d := range drop {
		dropSet[d] = true
	}
	kept := attrs[:0:0]
	for _, a := range attrs {
		if !dropSet[a.Name.Local] {
			kept = append(kept, a)
		}
	}
	return kept
}

func readCharData(dec *xml.Decoder) (string, error) {
	var text string
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.CharData:
			text += string(t)
		case xml.StartElement:
			depth++
		case xml.EndElement:
			if depth == 0 {
				return text, nil
			}
			depth--
		}
	}
}
