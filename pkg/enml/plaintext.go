package enml

import (
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ConflictTitleSuffix is appended to a note's title when
// ResourcesProcessor splits off a conflicting copy (§4.5); title-cased
// so it reads naturally regardless of the source title's casing.
var ConflictTitleSuffix = " (" + cases.Title(language.English).String("conflicting") + ")"

// ToPlainText strips all markup from ENML content, dropping the text
// of en-media/en-crypt subtrees entirely since neither carries
// human-readable prose (an image and a ciphertext blob respectively).
// Quantified invariant 6 holds: every text node outside those two
// subtrees survives (§4.8.5).
func ToPlainText(enmlDoc string) (string, error) {
	dec := newDecoder(enmlDoc)
	var out strings.Builder
	skipDepth := 0 // >0 while inside an en-media/en-crypt subtree

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
			if skipDepth > 0 {
				skipDepth++
				continue
			}
			if t.Name.Local == TagEnMedia || t.Name.Local == TagEnCrypt {
				skipDepth = 1
			}
		case xml.EndElement:
			if skipDepth > 0 {
				skipDepth--
			}
		case xml.CharData:
			if skipDepth == 0 {
				out.Write(t)
			}
		}
	}

	return out.String(), nil
}

var wordSplit = regexp.MustCompile(`\W+`)

var foldCase = cases.Fold()

// ToWordList splits plain text on runs of non-word characters,
// dropping empty parts, for building a note's search index (§4.8.5).
// Words are case-folded so the index matches regardless of how the
// note capitalized them.
func ToWordList(plainText string) []string {
	parts := wordSplit.Split(plainText, -1)
	words := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			words = append(words, foldCase.String(p))
		}
	}
	return words
}
