package rete

import "strings"

// Binding maps variable names (with their leading "$") to ground values.
type Binding map[string]string

// clone returns a shallow copy of b; a nil receiver yields an empty map.
func (b Binding) clone() Binding {
	out := make(Binding, len(b)+1)
	for k, v := range b {
		out[k] = v
	}
	return out
}

// IsVariable reports whether a field designates a variable.
// Variables carry a leading "$"; everything else is a ground symbol.
func IsVariable(s string) bool {
	return strings.HasPrefix(s, "$")
}

// wmeField identifies one slot of a working-memory triple.
type wmeField int

const (
	fieldID wmeField = iota
	fieldAttr
	fieldValue
)

// factKey is the structural identity of a WME.
type factKey struct {
	id, attr, value string
}

// WME is a working memory element: an immutable ground triple.
//
// A WME carries back-references to the alpha memories that admitted it, the
// tokens that include it, and the negative-join-results that reference it.
// The back-references exist solely so retraction can clean up in time
// proportional to the WME's incident edges.
type WME struct {
	// ID, Attr, Value are the ground fields of the triple.
	ID    string
	Attr  string
	Value string

	// alphaMems are the alpha memories currently holding this WME.
	alphaMems []*alphaMemory

	// tokens are the tokens whose wme field is this WME.
	tokens []*Token

	// negJoinResults are the negative-join-results referencing this WME.
	negJoinResults []*negativeJoinResult
}

// newWME constructs a WME. Field validation happens at the engine boundary.
func newWME(id, attr, value string) *WME {
	return &WME{ID: id, Attr: attr, Value: value}
}

// field returns the requested slot of the triple.
func (w *WME) field(f wmeField) string {
	switch f {
	case fieldID:
		return w.ID
	case fieldAttr:
		return w.Attr
	default:
		return w.Value
	}
}

// key returns the structural identity of the triple.
func (w *WME) key() factKey {
	return factKey{w.ID, w.Attr, w.Value}
}

// Equal reports structural equality on the triple.
func (w *WME) Equal(o *WME) bool {
	return o != nil && w.ID == o.ID && w.Attr == o.Attr && w.Value == o.Value
}

// String renders the triple in the conventional "(id ^attr value)" form.
func (w *WME) String() string {
	return "(" + w.ID + " ^" + w.Attr + " " + w.Value + ")"
}

// negativeJoinResult records that wme currently blocks owner inside a
// negative node. It is registered on both sides for O(1) severing when
// either the token or the WME goes away.
type negativeJoinResult struct {
	owner *Token
	wme   *WME
}

func removeWMEFrom(list *[]*WME, w *WME) {
	for i, x := range *list {
		if x == w {
			*list = append((*list)[:i], (*list)[i+1:]...)
			return
		}
	}
}

func removeTokenFrom(list *[]*Token, t *Token) {
	for i, x := range *list {
		if x == t {
			*list = append((*list)[:i], (*list)[i+1:]...)
			return
		}
	}
}

func removeJoinResultFrom(list *[]*negativeJoinResult, jr *negativeJoinResult) {
	for i, x := range *list {
		if x == jr {
			*list = append((*list)[:i], (*list)[i+1:]...)
			return
		}
	}
}
