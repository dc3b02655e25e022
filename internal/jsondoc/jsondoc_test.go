package jsondoc

import (
	"encoding/json"
	"strings"
	"testing"
)

const sampleIndex = `[{"moduleName":"default","title":"Image","type":"image","templates":[{"name":"a","title":"A","tags":["x","y"],"size":1.50,"thumbnailVariant":null},{"name":"b","title":"B <&>","mediaType":"image"}]}]`

func TestParse_PreservesOrderAndNumbers(t *testing.T) {
	v, err := Parse([]byte(`{"z":1,"a":2.50,"m":{"y":true,"b":null}}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	obj := v.(*Object)
	if got := strings.Join(Keys(obj), ","); got != "z,a,m" {
		t.Errorf("keys = %q, want z,a,m", got)
	}
	a, _ := obj.Get("a")
	if a != json.Number("2.50") {
		t.Errorf("a = %v, want raw 2.50", a)
	}
	m, ok := Child(obj, "m")
	if !ok {
		t.Fatal("m is not an object")
	}
	if got := strings.Join(Keys(m), ","); got != "y,b" {
		t.Errorf("nested keys = %q, want y,b", got)
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse([]byte(`{"a":`)); err == nil {
		t.Fatal("expected error for truncated json")
	}
	if _, err := ParseObject([]byte(`[1,2]`)); err == nil {
		t.Fatal("expected error for non-object top level")
	}
}

func TestCompact_NoHTMLEscape(t *testing.T) {
	v, _ := Parse([]byte(`{"t":"a <b> & \"c\"\n"}`))
	got := string(Compact(v))
	want := `{"t":"a <b> & \"c\"\n"}`
	if got != want {
		t.Errorf("Compact = %s, want %s", got, want)
	}
}

func TestMarshalIndent(t *testing.T) {
	v, _ := Parse([]byte(`{"a":[],"b":{"c":1},"d":{}}`))
	got := string(MarshalIndent(v))
	want := "{\n  \"a\": [],\n  \"b\": {\n    \"c\": 1\n  },\n  \"d\": {}\n}"
	if got != want {
		t.Errorf("MarshalIndent =\n%s\nwant\n%s", got, want)
	}
}

func TestFormat_TemplateIndex(t *testing.T) {
	v, err := Parse([]byte(sampleIndex))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := `[
  {
    "moduleName": "default",
    "title": "Image",
    "type": "image",
    "templates": [
      {
        "name": "a",
        "title": "A",
        "tags": ["x","y"],
        "size": 1.50,
        "thumbnailVariant": null
      },
      {
        "name": "b",
        "title": "B <&>",
        "mediaType": "image"
      }
    ]
  }
]`
	if got := Format(v); got != want {
		t.Errorf("Format =\n%s\nwant\n%s", got, want)
	}
}

func TestFormat_LongPrimitiveArray(t *testing.T) {
	v, _ := Parse([]byte(`{"list":["aaaaaaaaaa","bbbbbbbbbb","cccccccccc","dddddddddd","eeeeeeeeee"],"nested":{"x":[1]}}`))
	want := `{
  "list": [
    "aaaaaaaaaa",
    "bbbbbbbbbb",
    "cccccccccc",
    "dddddddddd",
    "eeeeeeeeee"
  ],
  "nested": {
    "x": [1]
  }
}`
	if got := Format(v); got != want {
		t.Errorf("Format =\n%s\nwant\n%s", got, want)
	}
}

func TestFormat_SimpleObjectKeepsArraysInline(t *testing.T) {
	// A simple object keeps even long primitive arrays on one line.
	v, _ := Parse([]byte(`{"tags":["aaaaaaaaaa","bbbbbbbbbb","cccccccccc","dddddddddd","eeeeeeeeee"]}`))
	want := "{\n  \"tags\": [\"aaaaaaaaaa\",\"bbbbbbbbbb\",\"cccccccccc\",\"dddddddddd\",\"eeeeeeeeee\"]\n}"
	if got := Format(v); got != want {
		t.Errorf("Format =\n%s\nwant\n%s", got, want)
	}
}

func TestFormat_RoundTrip(t *testing.T) {
	docs := []string{
		sampleIndex,
		`{"a":[{"b":[{"c":1}]},[],{}],"d":"é\u0001","e":[true,false,null]}`,
		`[]`,
		`"plain"`,
	}
	for _, doc := range docs {
		v, err := Parse([]byte(doc))
		if err != nil {
			t.Fatalf("Parse(%s): %v", doc, err)
		}
		back, err := Parse([]byte(Format(v)))
		if err != nil {
			t.Fatalf("Parse(Format(%s)): %v", doc, err)
		}
		if !Equal(v, back) {
			t.Errorf("round trip changed %s into %s", doc, Format(back))
		}
	}
}

func TestFormat_Deterministic(t *testing.T) {
	v, _ := Parse([]byte(sampleIndex))
	if Format(v) != Format(Clone(v)) {
		t.Error("Format differs between a document and its clone")
	}
}

func TestEqual_KeyOrderMatters(t *testing.T) {
	a, _ := Parse([]byte(`{"a":1,"b":2}`))
	b, _ := Parse([]byte(`{"b":2,"a":1}`))
	if Equal(a, b) {
		t.Error("Equal ignored key order")
	}
	if !Equal(a, Clone(a)) {
		t.Error("clone should be equal")
	}
}
