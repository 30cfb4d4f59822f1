package util

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestWriteJSON(t *testing.T) {
	type report struct {
		Sid  string   `json:"sid"`
		Subs []uint32 `json:"subs"`
	}
	path := filepath.Join(t.TempDir(), "report.json")
	in := []report{
		{Sid: "S-1-5-32-544", Subs: []uint32{32, 544}},
		{Sid: "S-1-1-0", Subs: []uint32{0}},
	}
	if err := WriteJSON(path, in); err != nil {
		t.Fatalf("WriteJSON() failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), "\t") {
		t.Error("output is not indented")
	}
	var out []report
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("written file is not valid JSON: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("written reports = %+v, want %+v", out, in)
	}
}

func TestHexify(t *testing.T) {
	if got := Hexify("abc\x01"); got != "abc\\x1" {
		t.Errorf("Hexify() = %v", got)
	}
}
