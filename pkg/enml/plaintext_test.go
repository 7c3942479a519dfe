package enml

import (
	"reflect"
	"testing"
)

func TestToPlainTextDropsMediaAndCrypt(t *testing.T) {
	doc := `<?xml version="1.0"?><en-note>Hello <en-media hash="abc" type="image/png"/> world` +
		`<en-crypt hint="h">secretcipher</en-crypt> tail</en-note>`

	got, err := ToPlainText(doc)
	if err != nil {
		t.Fatalf("ToPlainText: %v", err)
	}

	want := "Hello  world tail"
	if got != want {
		t.Errorf("ToPlainText() = %q, want %q", got, want)
	}
}

func TestToWordListDropsEmptyPartsAndFoldsCase(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"simple", "Hello, World!", []string{"hello", "world"}},
		{"punctuation runs", "a...b--c", []string{"a", "b", "c"}},
		{"empty", "   ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToWordList(tt.in)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ToWordList(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
