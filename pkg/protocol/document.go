package protocol

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

// Typed view over one decoded state document.
// The raw text is kept so fields can be read by path without walking the generic tree.
type Document struct {
	raw  []byte
	tree any
}

// Single value selected from a document by path
type Field struct {
	result gjson.Result
}

// Kind of the document root
func (doc Document) Kind() (kind Kind) {
	switch doc.tree.(type) {
	case bool:
		kind = KindBool
	case float64:
		kind = KindNumber
	case string:
		kind = KindString
	case []any:
		kind = KindArray
	case map[string]any:
		kind = KindObject
	default:
		kind = KindNull
	}
	return
}

// Original payload text
func (doc Document) Raw() (raw []byte) {
	raw = doc.raw
	return
}

// Generic tree (map[string]any, []any, float64, string, bool or nil)
func (doc Document) Value() (value any) {
	value = doc.tree
	return
}

// Root as an object, ok is false for any other kind
func (doc Document) Object() (object map[string]any, ok bool) {
	object, ok = doc.tree.(map[string]any)
	return
}

// Selects a value using dotted path syntax (e.g. "cars.0.position.x", "players.#")
func (doc Document) Get(path string) (field Field) {
	field.result = gjson.GetBytes(doc.raw, path)
	return
}

// Indented copy of the document text
func (doc Document) Pretty() (text []byte) {
	if len(doc.raw) == 0 {
		text = []byte("null")
		return
	}
	text = pretty.Pretty(doc.raw)
	return
}

// Single line copy of the document text
func (doc Document) Compact() (text []byte) {
	if len(doc.raw) == 0 {
		text = []byte("null")
		return
	}
	text = pretty.Ugly(doc.raw)
	return
}

func (field Field) Exists() bool   { return field.result.Exists() }
func (field Field) String() string { return field.result.String() }
func (field Field) Float() float64 { return field.result.Float() }
func (field Field) Int() int64     { return field.result.Int() }
func (field Field) Bool() bool     { return field.result.Bool() }
func (field Field) Raw() string    { return field.result.Raw }

func (field Field) Kind() (kind Kind) {
	switch field.result.Type {
	case gjson.True, gjson.False:
		kind = KindBool
	case gjson.Number:
		kind = KindNumber
	case gjson.String:
		kind = KindString
	case gjson.JSON:
		if field.result.IsArray() {
			kind = KindArray
		} else {
			kind = KindObject
		}
	default:
		kind = KindNull
	}
	return
}
