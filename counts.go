package dependr

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// ErrMissingColumns is matched by errors.Is when a view needs columns the
// rows do not carry.
var ErrMissingColumns = errors.New("required columns are missing")

// MissingColumnsError lists the columns a view needed and the ones that were
// available instead.
type MissingColumnsError struct {
	Missing   []string
	Available []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("the following required columns are missing: %s (available columns: %s)",
		strings.Join(e.Missing, ", "), strings.Join(e.Available, ", "))
}

// Is makes errors.Is(err, ErrMissingColumns) hold.
func (e *MissingColumnsError) Is(target error) bool {
	return target == ErrMissingColumns
}

// Count is one value of a column and how many rows carry it.
type Count struct {
	Value string
	Count int
}

// TopN counts the values of column across rows and returns the n most
// frequent, ties broken by value. n <= 0 returns every value. Rows without
// the column are skipped.
func TopN(rows []Row, column string, n int) []Count {
	freq := map[string]int{}
	for i := range rows {
		if v, ok := rows[i].Column(column); ok {
			freq[v]++
		}
	}
	counts := make([]Count, 0, len(freq))
	for _, v := range sortedKeys(freq) {
		counts = append(counts, Count{Value: v, Count: freq[v]})
	}
	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].Count > counts[j].Count
	})
	if n > 0 && len(counts) > n {
		counts = counts[:n]
	}
	return counts
}

// Tree is a labelled hierarchy of counts. A node's Value is the sum of its
// children's values.
type Tree struct {
	Label    string
	Value    int
	Children []*Tree
}

// Leaves returns the number of childless nodes under t.
func (t *Tree) Leaves() int {
	if len(t.Children) == 0 {
		return 1
	}
	n := 0
	for _, c := range t.Children {
		n += c.Leaves()
	}
	return n
}

// Walk visits t and its descendants depth first, passing each node's parent
// labels.
func (t *Tree) Walk(fn func(node *Tree, path []string)) {
	t.walk(nil, fn)
}

func (t *Tree) walk(path []string, fn func(*Tree, []string)) {
	fn(t, path)
	childPath := append(append([]string{}, path...), t.Label)
	for _, c := range t.Children {
		c.walk(childPath, fn)
	}
}

type treeBuilder struct {
	root  *Tree
	index map[*Tree]map[string]*Tree
}

func newTreeBuilder(label string) *treeBuilder {
	root := &Tree{Label: label}
	return &treeBuilder{root: root, index: map[*Tree]map[string]*Tree{}}
}

// add adds n along path, creating nodes as needed.
func (b *treeBuilder) add(n int, path ...string) {
	node := b.root
	node.Value += n
	for _, label := range path {
		kids, ok := b.index[node]
		if !ok {
			kids = map[string]*Tree{}
			b.index[node] = kids
		}
		child, ok := kids[label]
		if !ok {
			child = &Tree{Label: label}
			kids[label] = child
			node.Children = append(node.Children, child)
		}
		child.Value += n
		node = child
	}
}

// build sorts every level by descending value, then label.
func (b *treeBuilder) build() *Tree {
	b.root.Walk(func(node *Tree, _ []string) {
		sort.SliceStable(node.Children, func(i, j int) bool {
			if node.Children[i].Value != node.Children[j].Value {
				return node.Children[i].Value > node.Children[j].Value
			}
			return node.Children[i].Label < node.Children[j].Label
		})
	})
	return b.root
}

// ProtocolPorts groups rows by protocol, then port.
func ProtocolPorts(rows []Row, title string) *Tree {
	b := newTreeBuilder(title)
	for i := range rows {
		proto, _ := rows[i].Column("proto")
		port, _ := rows[i].Column("port")
		b.add(1, proto, port)
	}
	return b.build()
}

// AppEnvTree groups rows by <prefix>_env, then <prefix>_app, then the
// "app | env" tuple. Rows lacking either label are skipped. When no row
// carries one of the columns a *MissingColumnsError is returned.
func AppEnvTree(rows []Row, prefix, title string) (*Tree, error) {
	appCol, envCol := prefix+"_app", prefix+"_env"
	available := Columns(rows)
	var missing []string
	for _, col := range []string{appCol, envCol} {
		if !containsString(available, col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Missing: missing, Available: available}
	}

	b := newTreeBuilder(title)
	for i := range rows {
		app, okApp := rows[i].Column(appCol)
		env, okEnv := rows[i].Column(envCol)
		if !okApp || !okEnv {
			continue
		}
		b.add(1, env, app, app+" | "+env)
	}
	return b.build(), nil
}
