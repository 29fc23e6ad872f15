package basic

import "strings"

const maxDirDepth = 16

// Dir is the arena of every entry on a mounted volume. Entries refer to
// their parent and children by arena index; -1 is the root.
type Dir struct {
	items []Item
	root  []int
	cur   int
}

func newDir() *Dir {
	return &Dir{cur: -1}
}

func (d *Dir) add(it Item, parent int) int {
	idx := len(d.items)
	b := it.Base()
	b.index = idx
	b.parent = parent
	d.items = append(d.items, it)
	if parent < 0 {
		d.root = append(d.root, idx)
	} else {
		pb := d.items[parent].Base()
		pb.children = append(pb.children, idx)
	}
	return idx
}

func (d *Dir) Len() int {
	return len(d.items)
}

func (d *Dir) Item(idx int) Item {
	if idx < 0 || idx >= len(d.items) {
		return nil
	}
	return d.items[idx]
}

// Children lists the arena indices under parent.
func (d *Dir) Children(parent int) []int {
	if parent < 0 {
		return d.root
	}
	if it := d.Item(parent); it != nil {
		return it.Base().children
	}
	return nil
}

func (d *Dir) Current() int {
	return d.cur
}

// CurrentItem is nil at the root.
func (d *Dir) CurrentItem() Item {
	return d.Item(d.cur)
}

func (d *Dir) Parent(idx int) Item {
	it := d.Item(idx)
	if it == nil {
		return nil
	}
	return d.Item(it.Base().parent)
}

// Path walks up to the root joining names with slashes.
func (d *Dir) Path(idx int, name func(Item) string) string {
	var parts []string
	for i := 0; idx >= 0 && i <= maxDirDepth; i++ {
		it := d.Item(idx)
		if it == nil {
			break
		}
		parts = append([]string{name(it)}, parts...)
		idx = it.Base().parent
	}
	return "/" + strings.Join(parts, "/")
}

// Walk visits every item below parent depth first.
func (d *Dir) Walk(parent int, fn func(it Item, depth int) bool) {
	d.walk(parent, 0, fn)
}

func (d *Dir) walk(parent, depth int, fn func(Item, int) bool) bool {
	if depth > maxDirDepth {
		return true
	}
	for _, idx := range d.Children(parent) {
		it := d.items[idx]
		if !fn(it, depth) {
			return false
		}
		if len(it.Base().children) > 0 {
			if !d.walk(idx, depth+1, fn) {
				return false
			}
		}
	}
	return true
}
