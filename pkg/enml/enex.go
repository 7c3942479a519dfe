package enml

import (
	"bytes"
	"crypto/md5"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/mattsolo1/notewire/pkg/model"
)

// maxResourceBytes rejects an ENEX resource body larger than 25 MiB,
// matching the source's hard-coded import ceiling (§9, boundary
// scenario "ENEX 25 MiB reject").
const maxResourceBytes = 25 * 1024 * 1024

// enexTimeLayout is the ENEX wire timestamp format: yyyyMMdd'T'HHmmss'Z'.
const enexTimeLayout = "20060102T150405Z"

// ExportENEX renders notes as an ENEX document. resolveTagName maps a
// tag guid or local-id to its display name; notes whose tags can't be
// resolved simply omit that <tag> element.
func ExportENEX(notes []*model.Note, resolveTagName func(ref string) (string, bool), application, appVersion string, exportDate time.Time) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.WriteString(`<!DOCTYPE en-export SYSTEM "http://xml.evernote.com/pub/evernote-export3.dtd">` + "\n")
	fmt.Fprintf(&buf, `<en-export export-date=%q application=%q version=%q>`+"\n",
		exportDate.UTC().Format(enexTimeLayout), application, appVersion)

	for _, n := range notes {
		if err := writeENEXNote(&buf, n, resolveTagName); err != nil {
			return "", fmt.Errorf("export note %q: %w", n.Title, err)
		}
	}

	buf.WriteString("</en-export>\n")
	return buf.String(), nil
}

func writeENEXNote(buf *bytes.Buffer, n *model.Note, resolveTagName func(string) (string, bool)) error {
	content, err := validateExportedContent(n.Content)
	if err != nil {
		return fmt.Errorf("validate content: %w", err)
	}

	buf.WriteString("<note>\n")
	fmt.Fprintf(buf, "<title>%s</title>\n", escapeText(n.Title))
	fmt.Fprintf(buf, "<content><![CDATA[%s]]></content>\n", content)

	if n.UpdateSequenceNum > 0 {
		// USN carries no wall-clock meaning; created/updated times, if
		// the caller wants them exported, belong on NoteAttributes or
		// a future field — omitted here since model.Note has no
		// created/updated timestamp field of its own.
	}

	for _, ref := range append(append([]string{}, n.TagGuids...), n.TagLocalIDs...) {
		if name, ok := resolveTagName(ref); ok {
			fmt.Fprintf(buf, "<tag>%s</tag>\n", escapeText(name))
		}
	}

	writeNoteAttributes(buf, n.Attributes)

	for _, r := range n.Resources {
		if err := writeENEXResource(buf, r); err != nil {
			return err
		}
	}

	buf.WriteString("</note>\n")
	return nil
}

func writeNoteAttributes(buf *bytes.Buffer, a model.NoteAttributes) {
	empty := a.Latitude == nil && a.Longitude == nil && a.Altitude == nil &&
		a.Source == "" && a.SourceURL == "" && a.ReminderOrder == nil &&
		a.ReminderTime == nil && a.ReminderDoneTime == nil &&
		a.ConflictSourceNoteGuid == "" && len(a.ApplicationData) == 0
	if empty {
		return
	}
	buf.WriteString("<note-attributes>\n")
	writeOptFloat(buf, "latitude", a.Latitude)
	writeOptFloat(buf, "longitude", a.Longitude)
	writeOptFloat(buf, "altitude", a.Altitude)
	writeOptString(buf, "source", a.Source)
	writeOptString(buf, "source-url", a.SourceURL)
	writeOptInt64(buf, "reminder-order", a.ReminderOrder)
	writeOptInt64(buf, "reminder-time", a.ReminderTime)
	writeOptInt64(buf, "reminder-done-time", a.ReminderDoneTime)
	buf.WriteString("</note-attributes>\n")
}

func writeOptFloat(buf *bytes.Buffer, tag string, v *float64) {
	if v == nil {
		return
	}
	fmt.Fprintf(buf, "<%s>%s</%s>\n", tag, strconv.FormatFloat(*v, 'f', -1, 64), tag)
}

func writeOptInt64(buf *bytes.Buffer, tag string, v *int64) {
	if v == nil {
		return
	}
	fmt.Fprintf(buf, "<%s>%d</%s>\n", tag, *v, tag)
}

func writeOptString(buf *bytes.Buffer, tag, v string) {
	if v == "" {
		return
	}
	fmt.Fprintf(buf, "<%s>%s</%s>\n", tag, escapeText(v), tag)
}

// validateExportedContent re-runs a note's ENML content through the
// same allowlist/fixup pass ToENML applies, the practical stand-in
// for validating against enml2.dtd this package uses throughout
// (§4.8.4). It catches content that was hand-constructed or imported
// from elsewhere without ever going through ToENML.
func validateExportedContent(content string) (string, error) {
	fixed, err := validateAndFixup(content)
	if err != nil {
		return "", err
	}
	return fixed, nil
}

// validateRecognitionXML checks that a resource's recognition data is
// well-formed XML, the practical stand-in for validating against
// recoIndex.dtd this package uses since no DTD validator exists in
// this module's dependency set (§4.8.3).
func validateRecognitionXML(data []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		_, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("malformed recognition xml: %w", err)
		}
	}
}

func writeENEXResource(buf *bytes.Buffer, r *model.Resource) error {
	if len(r.Data) > maxResourceBytes {
		return fmt.Errorf("resource body %d bytes is larger than 25 Mb", len(r.Data))
	}
	buf.WriteString("<resource>\n")
	fmt.Fprintf(buf, "<data encoding=\"base64\">%s</data>\n", base64.StdEncoding.EncodeToString(r.Data))
	fmt.Fprintf(buf, "<mime>%s</mime>\n", escapeText(r.Mime))
	if r.Width > 0 {
		fmt.Fprintf(buf, "<width>%d</width>\n", r.Width)
	}
	if r.Height > 0 {
		fmt.Fprintf(buf, "<height>%d</height>\n", r.Height)
	}
	if len(r.RecognitionData) > 0 {
		if err := validateRecognitionXML(r.RecognitionData); err != nil {
			return fmt.Errorf("validate recognition data: %w", err)
		}
		fmt.Fprintf(buf, "<recognition><![CDATA[%s]]></recognition>\n", r.RecognitionData)
	}
	if len(r.AlternateData) > 0 {
		fmt.Fprintf(buf, "<alternate-data encoding=\"base64\">%s</alternate-data>\n", base64.StdEncoding.EncodeToString(r.AlternateData))
	}
	writeResourceAttributes(buf, r.Attributes)
	buf.WriteString("</resource>\n")
	return nil
}

func writeResourceAttributes(buf *bytes.Buffer, a model.ResourceAttributes) {
	empty := a.SourceURL == "" && a.Timestamp == nil && a.Latitude == nil &&
		a.Longitude == nil && a.Altitude == nil && a.FileName == "" && !a.Attachment
	if empty {
		return
	}
	buf.WriteString("<resource-attributes>\n")
	writeOptString(buf, "source-url", a.SourceURL)
	writeOptInt64(buf, "timestamp", a.Timestamp)
	writeOptFloat(buf, "latitude", a.Latitude)
	writeOptFloat(buf, "longitude", a.Longitude)
	writeOptFloat(buf, "altitude", a.Altitude)
	writeOptString(buf, "file-name", a.FileName)
	if a.Attachment {
		buf.WriteString("<attachment>true</attachment>\n")
	}
	buf.WriteString("</resource-attributes>\n")
}

// ImportENEX streams an ENEX document and returns the notes it
// contains, each assigned a fresh local-id. Resource bodies are
// base64-decoded and hashed with MD5 as they're read (§4.8.4,
// quantified invariant 7).
func ImportENEX(data []byte) ([]*model.Note, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false

	var notes []*model.Note
	var cur *model.Note
	var curRes *model.Resource
	var textBuf strings.Builder
	var path []string

	flush := func() string {
		s := textBuf.String()
		textBuf.Reset()
		return s
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse enex: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			path = append(path, t.Name.Local)
			switch t.Name.Local {
			case "note":
				cur = &model.Note{LocalID: model.NewLocalID(), Active: true}
			case "resource":
				if cur != nil {
					curRes = &model.Resource{LocalID: model.NewLocalID()}
				}
			}
			textBuf.Reset()

		case xml.CharData:
			textBuf.Write(t)

		case xml.EndElement:
			text := flush()
			elem := t.Name.Local
			if len(path) > 0 {
				path = path[:len(path)-1]
			}

			switch {
			case elem == "note":
				if cur != nil {
					notes = append(notes, cur)
					cur = nil
				}
			case elem == "resource":
				if cur != nil && curRes != nil {
					if curRes.Size > maxResourceBytes {
						return nil, fmt.Errorf("resource body %d bytes is larger than 25 Mb", curRes.Size)
					}
					curRes.NoteLocalID = cur.LocalID
					cur.Resources = append(cur.Resources, curRes)
					curRes = nil
				}
			case cur == nil:
				// outside any note; ignore

			case curRes != nil:
				assignResourceField(curRes, elem, text)

			default:
				assignNoteField(cur, elem, text)
			}
		}
	}

	return notes, nil
}

func assignNoteField(n *model.Note, elem, text string) {
	switch elem {
	case "title":
		n.Title = text
	case "content":
		n.Content = text
	case "tag":
		n.TagLocalIDs = append(n.TagLocalIDs, text)
	}
}

func assignResourceField(r *model.Resource, elem, text string) {
	switch elem {
	case "data":
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(text))
		if err != nil {
			return
		}
		r.Data = decoded
		r.Size = len(decoded)
		r.BodyHash = md5.Sum(decoded)
	case "mime":
		r.Mime = text
	case "width":
		if v, err := strconv.Atoi(text); err == nil {
			r.Width = int16(v)
		}
	case "height":
		if v, err := strconv.Atoi(text); err == nil {
			r.Height = int16(v)
		}
	case "recognition":
		r.RecognitionData = []byte(text)
	case "alternate-data":
		if decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(text)); err == nil {
			r.AlternateData = decoded
		}
	case "file-name":
		r.Attributes.FileName = text
	case "source-url":
		r.Attributes.SourceURL = text
	case "attachment":
		r.Attributes.Attachment = text == "true"
	}
}
