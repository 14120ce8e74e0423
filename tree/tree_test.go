package tree

import (
	"bytes"
	"math"
	"strings"
	"testing"
)

const (
	smallDiff = 1e-9

	tree1 = "((a:1,b:2):3,c:1):0;"
	// BEAST style tree with annotations and a root branch length.
	tree2 = "[&R] ((1[&rate=0.5]:1.5,2[&rate=1.0,height_95%_HPD={0.1,2.3}]:1.0)[&rate=0.7]:0.5,3:2.0):7.0;"
	tree3 = "(('taxon (one)':1,'it''s':1):1,c:2);"
	tree4 = "a;"
)

func TestParseSimple(tst *testing.T) {
	t, err := ParseNewick(bytes.NewBufferString(tree1))
	if err != nil {
		tst.Fatal("Error parsing tree", err)
	}
	tst.Log("Got tree:", t)

	if t.NNodes() != 5 {
		tst.Error("Expected 5 nodes, got", t.NNodes())
	}
	if t.NLeaves() != 3 {
		tst.Error("Expected 3 leaves, got", t.NLeaves())
	}
	if t.NInternal() != 2 {
		tst.Error("Expected 2 internal nodes, got", t.NInternal())
	}
	if t.String() != "((a:1.000000,b:2.000000):3.000000,c:1.000000):0.000000;" {
		tst.Error("Wrong tree string, got:", t)
	}
	names := ""
	for node := range t.Terminals() {
		names += node.Name
		if node.LeafId != len(names)-1 {
			tst.Error("Wrong leaf id for", node.Name, ":", node.LeafId)
		}
	}
	if names != "abc" {
		tst.Error("Wrong terminal order:", names)
	}
}

func TestDepths(tst *testing.T) {
	t, err := ParseNewick(bytes.NewBufferString(tree1))
	if err != nil {
		tst.Fatal("Error parsing tree", err)
	}
	depths := t.Depths()
	exp := map[string]float64{"a": 4, "b": 5, "c": 1}
	for node := range t.Terminals() {
		if math.Abs(depths[node.Id]-exp[node.Name]) > smallDiff {
			tst.Errorf("Depth of %s: expected %v, got %v", node.Name, exp[node.Name], depths[node.Id])
		}
	}
	if depths[t.Id] != 0 {
		tst.Error("Root depth should be zero, got", depths[t.Id])
	}
	if math.Abs(t.Height()-5) > smallDiff {
		tst.Error("Expected height 5, got", t.Height())
	}
}

func TestParseBEAST(tst *testing.T) {
	t, err := ParseNewick(bytes.NewBufferString(tree2))
	if err != nil {
		tst.Fatal("Error parsing tree", err)
	}
	tst.Log("Got tree:", t)
	if t.NLeaves() != 3 {
		tst.Error("Expected 3 leaves, got", t.NLeaves())
	}
	// root branch length is ignored
	if math.Abs(t.Height()-2.0) > smallDiff {
		tst.Error("Expected height 2, got", t.Height())
	}
	var internal int
	for range t.NonTerminals() {
		internal++
	}
	if internal != 2 {
		tst.Error("Expected 2 internal nodes, got", internal)
	}
}

func TestParseQuoted(tst *testing.T) {
	t, err := ParseNewick(bytes.NewBufferString(tree3))
	if err != nil {
		tst.Fatal("Error parsing tree", err)
	}
	var names []string
	for node := range t.Terminals() {
		names = append(names, node.Name)
	}
	if strings.Join(names, "|") != "taxon (one)|it's|c" {
		tst.Error("Wrong names:", names)
	}
}

func TestSingleTip(tst *testing.T) {
	t, err := ParseNewick(bytes.NewBufferString(tree4))
	if err != nil {
		tst.Fatal("Error parsing tree", err)
	}
	if t.NInternal() != 0 {
		tst.Error("Expected no internal nodes, got", t.NInternal())
	}
	if t.Height() != 0 {
		tst.Error("Expected zero height, got", t.Height())
	}
}

func TestParseErrors(tst *testing.T) {
	for _, s := range []string{
		"((a:1,b:2):3,c:1;",
		"(a:1,b:2)):3;",
		"a,b;",
		"(a:x,b:1);",
		"(a[&rate=1:1,b:1);",
	} {
		_, err := ParseNewick(bytes.NewBufferString(s))
		if err == nil {
			tst.Error("Expected error parsing", s)
		}
		tst.Log(s, ":", err)
	}
}
