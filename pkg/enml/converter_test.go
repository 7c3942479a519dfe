package enml

import (
	"strings"
	"testing"
)

func TestToENMLStripsForbiddenTagsAndAttributes(t *testing.T) {
	html := `<html><head><title>x</title></head><body onclick="evil()" class="c"><p id="p1">hello</p><script>evil()</script></body></html>`

	conv := New(nil, nil)
	got, err := conv.ToENML(html, nil)
	if err != nil {
		t.Fatalf("ToENML: %v", err)
	}

	if !strings.Contains(got, "<en-note>") || !strings.Contains(got, "</en-note>") {
		t.Errorf("ToENML() = %q, want an en-note root", got)
	}
	if strings.Contains(got, "script") {
		t.Errorf("ToENML() = %q, want no script content", got)
	}
	if strings.Contains(got, "onclick") || strings.Contains(got, `id="p1"`) {
		t.Errorf("ToENML() = %q, want forbidden attributes stripped", got)
	}
	if !strings.Contains(got, "hello") {
		t.Errorf("ToENML() = %q, want the paragraph text preserved", got)
	}
}

func TestToHTMLRendersEnMediaAsImg(t *testing.T) {
	doc := `<?xml version="1.0"?><en-note>see <en-media hash="deadbeef" type="image/png"/></en-note>`

	conv := New(nil, nil)
	got, err := conv.ToHTML(doc, nil)
	if err != nil {
		t.Fatalf("ToHTML: %v", err)
	}

	if !strings.Contains(got, "<body>") {
		t.Errorf("ToHTML() = %q, want a body root", got)
	}
	if !strings.Contains(got, `data-resource-hash="deadbeef"`) {
		t.Errorf("ToHTML() = %q, want the resource hash carried through", got)
	}
}

func TestToHTMLAssignsHyperlinkSequence(t *testing.T) {
	doc := `<?xml version="1.0"?><en-note><a href="http://a">a</a><a href="http://b">b</a></en-note>`

	conv := New(nil, nil)
	next := 0
	seq := func() int { next++; return next }

	got, err := conv.ToHTML(doc, seq)
	if err != nil {
		t.Fatalf("ToHTML: %v", err)
	}

	if strings.Count(got, attrHyperlinkID) != 2 {
		t.Errorf("ToHTML() = %q, want two en-hyperlink-id attributes", got)
	}
}

type stubCache struct {
	plain map[string]string
}

func (c *stubCache) Find(cipherText string) (string, bool) {
	p, ok := c.plain[cipherText]
	return p, ok
}
func (c *stubCache) AddDecryptedText(cipherText, plainText, cipher string, keyLength int, hint string) {
	c.plain[cipherText] = plainText
}
func (c *stubCache) ModifyDecryptedText(cipherText, newPlainText string) (string, error) {
	return cipherText + "-modified", nil
}

func TestToHTMLRendersDecryptedTextWhenCached(t *testing.T) {
	doc := `<?xml version="1.0"?><en-note><en-crypt hint="h">ciphertext</en-crypt></en-note>`
	cache := &stubCache{plain: map[string]string{"ciphertext": "the secret"}}

	conv := New(nil, cache)
	got, err := conv.ToHTML(doc, nil)
	if err != nil {
		t.Fatalf("ToHTML: %v", err)
	}

	if !strings.Contains(got, "en-decrypted") || !strings.Contains(got, "the secret") {
		t.Errorf("ToHTML() = %q, want the cached plaintext rendered inline", got)
	}
}

func TestToENMLIgnoresPlainImgWithoutEnTag(t *testing.T) {
	html := `<html><body><p>see <img src="http://example.com/a.png"/></p></body></html>`

	conv := New(nil, nil)
	got, err := conv.ToENML(html, nil)
	if err != nil {
		t.Fatalf("ToENML: %v", err)
	}

	if strings.Contains(got, "en-media") {
		t.Errorf("ToENML() = %q, want a bare img left untranslated", got)
	}
}

func TestToENMLTranslatesEnTodoByCheckedState(t *testing.T) {
	html := `<html><body><img en-tag="en-todo" src="checkbox_yes.png"/><img en-tag="en-todo" src="checkbox_no.png"/></body></html>`

	conv := New(nil, nil)
	got, err := conv.ToENML(html, nil)
	if err != nil {
		t.Fatalf("ToENML: %v", err)
	}

	if !strings.Contains(got, `<en-todo checked="true"></en-todo>`) || !strings.Contains(got, `<en-todo checked="false"></en-todo>`) {
		t.Errorf("ToENML() = %q, want both checked states translated", got)
	}
}

func TestToENMLTranslatesEnCryptPlaceholder(t *testing.T) {
	html := `<html><body><img en-tag="en-crypt" data-en-crypt-cipher-text="ciphertext" hint="h"/></body></html>`

	conv := New(nil, nil)
	got, err := conv.ToENML(html, nil)
	if err != nil {
		t.Fatalf("ToENML: %v", err)
	}

	if !strings.Contains(got, `<en-crypt hint="h">ciphertext</en-crypt>`) {
		t.Errorf("ToENML() = %q, want the en-crypt placeholder round-tripped", got)
	}
}

func TestToENMLReencryptsEditedDecryptedText(t *testing.T) {
	html := `<html><body><div en-tag="en-decrypted" data-en-crypt-cipher-text="ciphertext" hint="h">edited secret</div></body></html>`
	cache := &stubCache{plain: map[string]string{"ciphertext": "the secret"}}

	conv := New(nil, cache)
	got, err := conv.ToENML(html, nil)
	if err != nil {
		t.Fatalf("ToENML: %v", err)
	}

	if !strings.Contains(got, `<en-crypt hint="h">ciphertext-modified</en-crypt>`) {
		t.Errorf("ToENML() = %q, want the edited text re-encrypted via the cache", got)
	}
}

func TestToENMLDecryptedTextWithoutCacheErrors(t *testing.T) {
	html := `<html><body><div en-tag="en-decrypted" data-en-crypt-cipher-text="ciphertext">edited</div></body></html>`

	conv := New(nil, nil)
	if _, err := conv.ToENML(html, nil); err == nil {
		t.Error("ToENML() error = nil, want an error with no DecryptedTextCache configured")
	}
}

func TestEnCryptRoundTripsThroughHTMLAndBack(t *testing.T) {
	doc := `<?xml version="1.0"?><en-note><en-crypt hint="h">ciphertext</en-crypt></en-note>`
	conv := New(nil, nil)

	html, err := conv.ToHTML(doc, nil)
	if err != nil {
		t.Fatalf("ToHTML: %v", err)
	}
	if !strings.Contains(html, `en-tag="en-crypt"`) {
		t.Fatalf("ToHTML() = %q, want an en-tag=\"en-crypt\" placeholder", html)
	}

	back, err := conv.ToENML(`<html><body>`+html+`</body></html>`, nil)
	if err != nil {
		t.Fatalf("ToENML: %v", err)
	}
	if !strings.Contains(back, `<en-crypt hint="h">ciphertext</en-crypt>`) {
		t.Errorf("ToENML() = %q, want the en-crypt content round-tripped", back)
	}
}
