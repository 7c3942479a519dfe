package enml

import (
	"bytes"
	"crypto/md5"
	"testing"
	"time"

	"github.com/mattsolo1/notewire/pkg/model"
)

func TestEnexRoundTripPreservesResourceBody(t *testing.T) {
	body := []byte("fake png bytes")
	note := &model.Note{
		LocalID: model.NewLocalID(),
		Title:   "Trip report",
		Content: `<?xml version="1.0"?><en-note>hello</en-note>`,
		Resources: []*model.Resource{
			{LocalID: model.NewLocalID(), Data: body, Mime: "image/png"},
		},
	}

	doc, err := ExportENEX([]*model.Note{note}, func(string) (string, bool) { return "", false }, "notewire", "1.0", time.Now())
	if err != nil {
		t.Fatalf("ExportENEX: %v", err)
	}

	imported, err := ImportENEX([]byte(doc))
	if err != nil {
		t.Fatalf("ImportENEX: %v", err)
	}
	if len(imported) != 1 {
		t.Fatalf("got %d notes, want 1", len(imported))
	}
	if len(imported[0].Resources) != 1 {
		t.Fatalf("got %d resources, want 1", len(imported[0].Resources))
	}

	got := imported[0].Resources[0]
	if !bytes.Equal(got.Data, body) {
		t.Errorf("resource body = %q, want %q", got.Data, body)
	}
	wantHash := md5.Sum(body)
	if got.BodyHash != wantHash {
		t.Errorf("resource body hash = %x, want %x", got.BodyHash, wantHash)
	}
}

func TestExportENEXRejectsMalformedContent(t *testing.T) {
	note := &model.Note{
		LocalID: model.NewLocalID(),
		Title:   "Broken",
		Content: `<?xml version="1.0"?><en-note>hello</en-note` /* missing closing > */,
	}

	_, err := ExportENEX([]*model.Note{note}, func(string) (string, bool) { return "", false }, "notewire", "1.0", time.Now())
	if err == nil {
		t.Fatal("expected an error for malformed note content")
	}
}

func TestExportENEXRejectsMalformedRecognitionData(t *testing.T) {
	note := &model.Note{
		LocalID: model.NewLocalID(),
		Title:   "Broken resource",
		Content: `<?xml version="1.0"?><en-note>hello</en-note>`,
		Resources: []*model.Resource{
			{LocalID: model.NewLocalID(), Data: []byte("x"), Mime: "image/png", RecognitionData: []byte("<recoIndex><item")},
		},
	}

	_, err := ExportENEX([]*model.Note{note}, func(string) (string, bool) { return "", false }, "notewire", "1.0", time.Now())
	if err == nil {
		t.Fatal("expected an error for malformed recognition data")
	}
}

func TestExportENEXRejectsOversizedResource(t *testing.T) {
	note := &model.Note{
		LocalID:   model.NewLocalID(),
		Title:     "Too big",
		Resources: []*model.Resource{{Data: make([]byte, maxResourceBytes+1)}},
	}

	_, err := ExportENEX([]*model.Note{note}, func(string) (string, bool) { return "", false }, "notewire", "1.0", time.Now())
	if err == nil {
		t.Fatal("expected an error for an oversized resource")
	}
	if got := err.Error(); !bytes.Contains([]byte(got), []byte("larger than 25 Mb")) {
		t.Errorf("error = %q, want it to mention \"larger than 25 Mb\"", got)
	}
}
