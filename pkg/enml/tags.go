package enml

// Evernote-specific element names recognized alongside the XHTML
// subset ENML permits (§4.8).
const (
	TagEnNote       = "en-note"
	TagEnMedia      = "en-media"
	TagEnCrypt      = "en-crypt"
	TagEnTodo       = "en-todo"
	TagEnDecrypted  = "en-decrypted"
	attrHyperlinkID = "en-hyperlink-id"
)

// forbiddenXHTMLTags never survive an HTML-to-ENML conversion; their
// entire subtree is dropped except for <object>, which the source
// special-cases because it can carry an em-bedded en-media reference.
var forbiddenXHTMLTags = map[string]bool{
	"applet":   true,
	"base":     true,
	"basefont": true,
	"bgsound":  true,
	"body":     true,
	"button":   true,
	"embed":    true,
	"fieldset": true,
	"form":     true,
	"frame":    true,
	"frameset": true,
	"head":     true,
	"html":     true,
	"iframe":   true,
	"ilayer":   true,
	"input":    true,
	"isindex":  true,
	"label":    true,
	"layer":    true,
	"legend":   true,
	"link":     true,
	"marquee":  true,
	"meta":     true,
	"noframes": true,
	"noscript": true,
	"object":   false, // special-cased: translated, not dropped
	"optgroup": true,
	"option":   true,
	"param":    true,
	"plaintext": true,
	"script":   true,
	"select":   true,
	"style":    true,
	"textarea": true,
	"title":    true,
	"xml":      true,
}

// allowedXHTMLTags is the XHTML subset ENML permits unchanged.
var allowedXHTMLTags = map[string]bool{
	"a": true, "abbr": true, "acronym": true, "address": true,
	"area": true, "b": true, "bdo": true, "big": true,
	"blockquote": true, "br": true, "caption": true, "center": true,
	"cite": true, "code": true, "col": true, "colgroup": true,
	"dd": true, "del": true, "dfn": true, "div": true, "dl": true,
	"dt": true, "em": true, "font": true, "h1": true, "h2": true,
	"h3": true, "h4": true, "h5": true, "h6": true, "hr": true,
	"i": true, "img": true, "ins": true, "kbd": true, "li": true,
	"map": true, "ol": true, "p": true, "pre": true, "q": true,
	"s": true, "samp": true, "small": true, "span": true,
	"strike": true, "strong": true, "sub": true, "sup": true,
	"table": true, "tbody": true, "td": true, "tfoot": true,
	"th": true, "thead": true, "tr": true, "tt": true,
	"u": true, "ul": true, "var": true,
}

// evernoteSpecificXHTMLTags are tags ENML defines itself, outside the
// plain XHTML subset.
var evernoteSpecificXHTMLTags = map[string]bool{
	TagEnNote:      true,
	TagEnMedia:     true,
	TagEnCrypt:     true,
	TagEnTodo:      true,
	TagEnDecrypted: true,
}

// isForbidden reports whether name's subtree is dropped outright
// during HTML-to-ENML conversion. <object> is carved out: it is
// translated (possibly into en-media), never blanket-dropped.
func isForbidden(name string) bool {
	forbidden, known := forbiddenXHTMLTags[name]
	return known && forbidden
}

func isAllowed(name string) bool {
	return allowedXHTMLTags[name]
}

func isEvernoteSpecific(name string) bool {
	return evernoteSpecificXHTMLTags[name]
}

// forbiddenAttributes are stripped from every element regardless of
// element-specific allowlisting (§4.8.1); "on*" event handler
// attributes are stripped by a separate prefix check.
var forbiddenAttributes = map[string]bool{
	"id":           true,
	"class":        true,
	"onclick":      true,
	"ondblclick":   true,
	"accesskey":    true,
	"data":         true,
	"dynsrc":       true,
	"tabindex":     true,
}

func isForbiddenAttribute(name string) bool {
	if forbiddenAttributes[name] {
		return true
	}
	if len(name) > 2 && name[0] == 'o' && name[1] == 'n' {
		return true
	}
	return false
}
