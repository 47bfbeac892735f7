package tree

import (
	"fmt"
	"io"
	"strings"

	"github.com/aarsakian/MFTRecover/logger"
	"github.com/aarsakian/MFTRecover/recovery"
)

// RootEntry is the MFT record of the volume root directory.
const RootEntry = 5

// OrphanDir prefixes the path of candidates whose parent chain breaks.
const OrphanDir = "$Orphan"

// a directory that is deleted and reused gets its sequence bumped once
const maxSeqDrift = 1

type Node struct {
	candidate *recovery.Candidate
	parent    *Node
	children  []*Node
}

// Tree links candidates to the parent named by their preferred filename.
type Tree struct {
	root    *Node
	nodes   map[uint64]*Node
	orphans []*Node
}

func (t *Tree) Build(candidates recovery.Candidates) {
	t.nodes = make(map[uint64]*Node, len(candidates))
	t.root, t.orphans = nil, nil
	for idx := range candidates {
		t.nodes[candidates[idx].Index] = &Node{candidate: &candidates[idx]}
	}
	for idx := range candidates {
		t.AddCandidate(&candidates[idx])
	}
	logger.MFTRecoverlogger.Info(fmt.Sprintf("tree of %d nodes, %d orphans", len(t.nodes), len(t.orphans)))
}

func (t *Tree) AddCandidate(candidate *recovery.Candidate) {
	node, ok := t.nodes[candidate.Index]
	if !ok {
		node = &Node{candidate: candidate}
		t.nodes[candidate.Index] = node
	}
	if candidate.Index == RootEntry {
		t.root = node
		return
	}

	parent := t.parentOf(candidate)
	if parent == nil {
		t.orphans = append(t.orphans, node)
		return
	}
	node.parent = parent
	parent.children = append(parent.children, node)
}

func (t *Tree) parentOf(candidate *recovery.Candidate) *Node {
	preferred := candidate.Preferred()
	if preferred == nil || preferred.ParentRef == candidate.Index {
		return nil
	}
	parent, ok := t.nodes[preferred.ParentRef]
	if !ok {
		return nil
	}
	if drift := parent.candidate.Seq - preferred.ParentSeq; drift > maxSeqDrift {
		return nil
	}
	return parent
}

// ResolvePaths fills PreferredParentName and Path of every candidate.
func (t *Tree) ResolvePaths() {
	for _, node := range t.nodes {
		candidate := node.candidate
		if node.parent != nil {
			candidate.PreferredParentName = node.parent.candidate.PreferredName
		}
		candidate.Path = node.path()
	}
}

func (n *Node) path() string {
	var parts []string
	seen := make(map[*Node]bool)
	current := n
	for current != nil && current.candidate.Index != RootEntry {
		if seen[current] {
			return OrphanDir + "/" + n.candidate.PreferredName
		}
		seen[current] = true
		parts = append(parts, current.candidate.PreferredName)
		if current.parent == nil {
			parts = append(parts, OrphanDir)
			break
		}
		current = current.parent
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	if len(parts) > 0 && parts[0] == OrphanDir {
		return strings.Join(parts, "/")
	}
	return "/" + strings.Join(parts, "/")
}

func (t Tree) Orphans() []*recovery.Candidate {
	orphans := make([]*recovery.Candidate, 0, len(t.orphans))
	for _, node := range t.orphans {
		orphans = append(orphans, node.candidate)
	}
	return orphans
}

func (t Tree) Show(out io.Writer) {
	if t.root == nil {
		return
	}
	t.root.Show(out, 0)
}

func (n Node) Show(out io.Writer, depth int) {
	name := n.candidate.PreferredName
	if n.candidate.Index == RootEntry {
		name = "/"
	}
	fmt.Fprintf(out, "%s%s\n", strings.Repeat("  ", depth), name)
	for _, child := range n.children {
		child.Show(out, depth+1)
	}
}
