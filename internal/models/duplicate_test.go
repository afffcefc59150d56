package models

import "testing"

func TestOrderedPair(t *testing.T) {
	a, b := OrderedPair("doc-2", "doc-1")
	if a != "doc-1" || b != "doc-2" {
		t.Errorf("OrderedPair(doc-2, doc-1) = (%s, %s), want (doc-1, doc-2)", a, b)
	}
	a, b = OrderedPair("doc-1", "doc-2")
	if a != "doc-1" || b != "doc-2" {
		t.Errorf("OrderedPair(doc-1, doc-2) = (%s, %s), want (doc-1, doc-2)", a, b)
	}
}
