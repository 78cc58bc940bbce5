// Package suggest implements the autosuggest trie: a node-per-character
// prefix tree over the index vocabulary, with completions ordered by corpus
// frequency. The trie is built once after indexing and is read-only at query
// time.
package suggest

import "sort"

type node struct {
	children map[rune]*node
	terminal bool
	freq     int
}

func newNode() *node {
	return &node{children: make(map[rune]*node)}
}

// Trie is a frequency-weighted prefix tree.
type Trie struct {
	root *node
	size int
}

// New creates an empty Trie.
func New() *Trie {
	return &Trie{root: newNode()}
}

// FromVocabulary builds a Trie containing every term of the vocabulary with
// its corpus frequency as suggestion weight.
func FromVocabulary(vocab map[string]int) *Trie {
	t := New()
	for term, freq := range vocab {
		t.Insert(term, freq)
	}
	return t
}

// Insert adds term with the given frequency weight. Inserting the same term
// again is a no-op apart from keeping the larger weight.
func (t *Trie) Insert(term string, freq int) {
	if term == "" {
		return
	}
	n := t.root
	for _, ch := range term {
		child, ok := n.children[ch]
		if !ok {
			child = newNode()
			n.children[ch] = child
		}
		n = child
	}
	if !n.terminal {
		n.terminal = true
		t.size++
	}
	if freq > n.freq {
		n.freq = freq
	}
}

// Len returns the number of distinct terms in the trie.
func (t *Trie) Len() int {
	return t.size
}

// Contains reports whether term is a complete entry in the trie.
func (t *Trie) Contains(term string) bool {
	n := t.walk(term)
	return n != nil && n.terminal
}

// Suggestion is one autosuggest candidate.
type Suggestion struct {
	Term string `json:"term"`
	Freq int    `json:"freq"`
}

// Suggest returns up to limit completions of prefix, most frequent first,
// ties broken lexicographically for determinism. An empty prefix returns
// nothing rather than dumping the vocabulary.
func (t *Trie) Suggest(prefix string, limit int) []Suggestion {
	if prefix == "" || limit <= 0 {
		return nil
	}
	n := t.walk(prefix)
	if n == nil {
		return nil
	}
	var out []Suggestion
	collect(n, prefix, &out)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Freq != out[j].Freq {
			return out[i].Freq > out[j].Freq
		}
		return out[i].Term < out[j].Term
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (t *Trie) walk(s string) *node {
	n := t.root
	for _, ch := range s {
		child, ok := n.children[ch]
		if !ok {
			return nil
		}
		n = child
	}
	return n
}

func collect(n *node, prefix string, out *[]Suggestion) {
	if n.terminal {
		*out = append(*out, Suggestion{Term: prefix, Freq: n.freq})
	}
	for ch, child := range n.children {
		collect(child, prefix+string(ch), out)
	}
}
