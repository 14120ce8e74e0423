// Package tree implements a rooted phylogenetic tree and a Newick
// parser which understands the annotated trees written by BEAST.
package tree

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Mode is the parser state for the next non-special token.
type Mode int

const (
	NORMAL Mode = iota
	LENGTH
)

// maxToken is the longest token (label or comment) the parser accepts.
const maxToken = 16 * 1024 * 1024

type Tree struct {
	*Node
	nNodes int
	depths []float64
}

func (tree *Tree) NNodes() int {
	if tree.nNodes == 0 {
		tree.nNodes = tree.NSubNodes()
	}
	return tree.nNodes
}

func (tree *Tree) Terminals() <-chan *Node {
	return tree.Walker(func(n *Node) bool {
		return n.IsTerminal()
	})
}

func (tree *Tree) NonTerminals() <-chan *Node {
	return tree.Walker(func(node *Node) bool {
		return !node.IsTerminal()
	})
}

func (tree *Tree) NLeaves() (i int) {
	for range tree.Terminals() {
		i++
	}
	return
}

// NInternal returns the number of internal (non-terminal) nodes,
// the root included.
func (tree *Tree) NInternal() int {
	return tree.NNodes() - tree.NLeaves()
}

func (tree *Tree) Walker(filter func(*Node) bool) <-chan *Node {
	ch := make(chan *Node, tree.NNodes())
	tree.Walk(ch, filter)
	close(ch)
	return ch
}

// Depths returns the distance from the root to every node, indexed
// by node id. The root branch length is not part of the depth, so
// the root depth is always zero.
func (tree *Tree) Depths() []float64 {
	if tree.depths == nil {
		tree.depths = make([]float64, tree.NNodes())
		tree.Node.fillDepths(tree.depths, 0)
	}
	return tree.depths
}

// Height is the maximum root-to-tip distance.
func (tree *Tree) Height() (h float64) {
	depths := tree.Depths()
	for node := range tree.Terminals() {
		if depths[node.Id] > h {
			h = depths[node.Id]
		}
	}
	return
}

type Node struct {
	Name         string
	BranchLength float64
	Parent       *Node
	childNodes   []*Node
	Id           int
	LeafId       int
}

func NewNode(parent *Node, nodeId int) (node *Node) {
	node = &Node{Parent: parent, Id: nodeId}
	return
}

func (node *Node) AddChild(subNode *Node) {
	subNode.Parent = node
	node.childNodes = append(node.childNodes, subNode)
}

func (node *Node) fillDepths(depths []float64, depth float64) {
	depths[node.Id] = depth
	for _, child := range node.childNodes {
		child.fillDepths(depths, depth+child.BranchLength)
	}
}

func (node *Node) String() (s string) {
	if node.IsTerminal() {
		return fmt.Sprintf("%s:%0.6f", node.Name, node.BranchLength)
	}
	s += "("
	for i, child := range node.childNodes {
		s += child.String()
		if i != len(node.childNodes)-1 {
			s += ","
		}
	}
	s += fmt.Sprintf("):%0.6f", node.BranchLength)
	if node.IsRoot() {
		s += ";"
	}
	return s
}

func (node *Node) Walk(ch chan *Node, filter func(*Node) bool) {
	if filter == nil || filter(node) {
		ch <- node
	}
	for _, node := range node.childNodes {
		node.Walk(ch, filter)
	}
}

func (node *Node) NSubNodes() (size int) {
	for _, node := range node.childNodes {
		size += node.NSubNodes()
	}
	return size + 1
}

func (node *Node) IsRoot() bool {
	return node.Parent == nil
}

func (node *Node) IsTerminal() bool {
	return len(node.childNodes) == 0
}

func IsSpecial(c rune) bool {
	switch c {
	case '(', ')', ':', ';', ',', '[', '\'':
		return true
	}
	return false
}

// enclosed scans data for the closing rune of a comment ([...]) or
// a quoted label ('...', with '' as an escaped quote). It returns the
// length of the enclosed token or -1 if the closing rune has not been
// seen yet.
func enclosed(data []byte, open rune) int {
	closing := byte(']')
	if open == '\'' {
		closing = '\''
	}
	for i := 1; i < len(data); i++ {
		if data[i] != closing {
			continue
		}
		if open == '\'' && i+1 < len(data) && data[i+1] == '\'' {
			i++
			continue
		}
		if open == '\'' && i+1 == len(data) {
			// can't tell '' from the end of label yet
			return -1
		}
		return i + 1
	}
	return -1
}

// NewickSplit is a bufio.SplitFunc returning Newick tokens. Special
// characters are returned as one-rune tokens, comments and quoted
// labels are returned whole.
func NewickSplit(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := 0
	// Skip leading spaces; and return 1-char tokens.
	for width := 0; start < len(data); start += width {
		var r rune
		r, width = utf8.DecodeRune(data[start:])
		if r == '[' || r == '\'' {
			n := enclosed(data[start:], r)
			if n < 0 {
				if atEOF {
					if r == '\'' && data[len(data)-1] == '\'' && len(data)-start > 1 {
						return len(data), data[start:], nil
					}
					return 0, nil, fmt.Errorf("unterminated %q in newick", r)
				}
				return start, nil, nil
			}
			return start + n, data[start : start+n], nil
		}
		if IsSpecial(r) {
			return start + width, data[start : start+width], nil
		}
		if !unicode.IsSpace(r) {
			break
		}
	}
	if atEOF && len(data) == start {
		return len(data), nil, nil
	}

	// Scan until space or special character.
	for width, i := 0, start; i < len(data); i += width {
		var r rune
		r, width = utf8.DecodeRune(data[i:])
		if unicode.IsSpace(r) || IsSpecial(r) {
			return i, data[start:i], nil
		}
	}
	// If we're at EOF, we have a final, non-empty, non-terminated word. Return it.
	if atEOF && len(data) > start {
		return len(data), data[start:], nil
	}
	// Request more data.
	return start, nil, nil
}

// unquote removes the quotes around a label.
func unquote(text string) string {
	text = text[1 : len(text)-1]
	return strings.Replace(text, "''", "'", -1)
}

func ParseNewick(rd io.Reader) (tree *Tree, err error) {
	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 0, 64*1024), maxToken)

	scanner.Split(NewickSplit)

	nodeId := 0
	leafId := 0

	node := NewNode(nil, nodeId)
	tree = &Tree{Node: node}
	nodeId++

	mode := NORMAL

scan:
	for scanner.Scan() {
		text := scanner.Text()
		if text[0] == '[' {
			// BEAST annotations, e.g. [&R] or [&rate=0.1]
			continue
		}
		switch text {
		case "(":
			subNode := NewNode(nil, nodeId)
			nodeId++
			node.AddChild(subNode)
			node = subNode

		case ",":
			if node.Parent == nil {
				return nil, errors.New("top level comma mismatch")
			}
			subNode := NewNode(nil, nodeId)
			nodeId++

			node.Parent.AddChild(subNode)
			node = subNode

		case ")":
			if node.Parent == nil {
				return nil, errors.New("brackets mismatch")
			}
			node = node.Parent
		case ":":
			mode = LENGTH
		case ";":
			if node.Parent != nil {
				return nil, errors.New("brackets mismatch")
			}
			break scan
		default:
			switch mode {
			case LENGTH:
				l, err := strconv.ParseFloat(text, 64)
				if err != nil {
					return nil, fmt.Errorf("wrong branch length %q: %v", text, err)
				}
				node.BranchLength = l
				mode = NORMAL
			default:
				if text[0] == '\'' {
					text = unquote(text)
				}
				node.Name = text
			}
		}
	}
	if err = scanner.Err(); err != nil {
		return nil, err
	}
	if node.Parent != nil {
		return nil, errors.New("brackets mismatch")
	}

	// Leaf ids follow the order of leaves in the newick string.
	for n := range tree.Terminals() {
		n.LeafId = leafId
		leafId++
	}

	return
}
