package basic

import "fmt"

const InvalidGroupNumber = -1

// GroupItem is a run of sectors on one track and side belonging to a group.
type GroupItem struct {
	Group       int
	Next        int
	Track       int
	Side        int
	SectorStart int
	SectorEnd   int
	DivIndex    int
	DivCount    int
	User        int
}

func (g GroupItem) Sectors() int {
	return g.SectorEnd - g.SectorStart + 1
}

func (g GroupItem) String() string {
	return fmt.Sprintf("group %d -> %d: T%d H%d S%d-%d", g.Group, g.Next, g.Track, g.Side, g.SectorStart, g.SectorEnd)
}

// GroupChain is the ordered run list of one file.
type GroupChain struct {
	Items        []GroupItem
	Extras       []int
	Count        int
	Size         int
	SizePerGroup int
	Remain       int
}

// Add appends the runs of one group.
func (c *GroupChain) Add(items ...GroupItem) {
	if len(items) == 0 {
		return
	}
	c.Items = append(c.Items, items...)
	c.Count++
}

func (c *GroupChain) AddExtra(g int) {
	c.Extras = append(c.Extras, g)
}

// Groups lists the distinct data groups in chain order.
func (c *GroupChain) Groups() []int {
	var out []int
	last := InvalidGroupNumber
	seen := make(map[int]bool)
	for _, it := range c.Items {
		if it.Group == last || seen[it.Group] {
			continue
		}
		seen[it.Group] = true
		out = append(out, it.Group)
		last = it.Group
	}
	return out
}

// AllGroups lists data and overhead groups.
func (c *GroupChain) AllGroups() []int {
	out := c.Groups()
	return append(out, c.Extras...)
}

func (c *GroupChain) Last() (GroupItem, bool) {
	if len(c.Items) == 0 {
		return GroupItem{}, false
	}
	return c.Items[len(c.Items)-1], true
}

// Recalc fixes Remain from Size.
func (c *GroupChain) Recalc() {
	if c.Count == 0 || c.SizePerGroup == 0 {
		c.Remain = 0
		return
	}
	c.Remain = c.Size - (c.Count-1)*c.SizePerGroup
	if c.Remain < 0 {
		c.Remain = 0
	}
}

func (c *GroupChain) Clear() {
	*c = GroupChain{SizePerGroup: c.SizePerGroup}
}
