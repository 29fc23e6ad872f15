package basic

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/paleotronic/diskbasic/disk"
)

// Param holds the constants of one disk format. Positions are linear
// sector positions counted over the sides the format uses.
type Param struct {
	Name        string
	Kind        string
	Description string

	Tracks          int
	TracksMax       int
	Sides           int
	SectorsPerTrack int
	SectorSize      int
	SectorBase      int
	Zones           []disk.Zone
	SectorSkew      []int
	ReverseSide     bool

	SectorsPerGroup int
	GroupsPerSector int
	ManagedTrack    int
	SkippedTrack    int
	DataStartPos    int
	FirstGroup      int

	FatStartPos    int
	FatEndPos      int
	FatOffset      int
	FatCopies      int
	SectorsPerFat  int
	FatEndGroup    int
	ReservedGroups []int

	GroupFinalCode  int
	GroupSystemCode int
	GroupUnusedCode int
	FinalSectorBase int

	DirStartPos      int
	DirEndPos        int
	DirEntrySize     int
	DirTerminateCode int
	DirSpaceCode     byte

	FillCodeFormat byte
	FillCodeFat    byte
	FillCodeDir    byte
	DeleteCode     byte

	BigEndian    bool
	DataInverted bool
	MediaID      int
	TextEOFCode  int
	Charset      string
	Extra        map[string]int
}

// Clone returns a deep copy so per volume adjustments never reach the
// registry.
func (p *Param) Clone() Param {
	c := *p
	c.Zones = append([]disk.Zone(nil), p.Zones...)
	c.SectorSkew = append([]int(nil), p.SectorSkew...)
	c.ReservedGroups = append([]int(nil), p.ReservedGroups...)
	c.Extra = make(map[string]int, len(p.Extra))
	for k, v := range p.Extra {
		c.Extra[k] = v
	}
	return c
}

// X returns a format specific constant.
func (p *Param) X(key string, def int) int {
	if v, ok := p.Extra[key]; ok {
		return v
	}
	return def
}

func (p *Param) SetX(key string, v int) {
	if p.Extra == nil {
		p.Extra = make(map[string]int)
	}
	p.Extra[key] = v
}

// Geometry is the physical layout a blank image for p needs.
func (p *Param) Geometry() disk.Geometry {
	return disk.Geometry{
		Tracks:          p.Tracks,
		Sides:           p.Sides,
		SectorsPerTrack: p.SectorsPerTrack,
		SectorSize:      p.SectorSize,
		FirstSector:     p.SectorBase,
		Zones:           append([]disk.Zone(nil), p.Zones...),
	}
}

// GroupSize is the number of raw bytes one group covers.
func (p *Param) GroupSize() int {
	if p.GroupsPerSector > 1 {
		return p.SectorSize / p.GroupsPerSector
	}
	return p.SectorSize * p.SectorsPerGroup
}

func (p *Param) SectorsOnTrack(track int) int {
	for _, z := range p.Zones {
		if track >= z.FirstTrack && track <= z.LastTrack {
			return z.Sectors
		}
	}
	return p.SectorsPerTrack
}

func (p *Param) IsReservedGroup(g int) bool {
	for _, r := range p.ReservedGroups {
		if r == g {
			return true
		}
	}
	return false
}

func (p *Param) Validate() error {
	switch {
	case p.Name == "":
		return fmt.Errorf("%w: missing name", ErrInvalidParam)
	case p.Kind == "":
		return fmt.Errorf("%w: %s has no kind", ErrInvalidParam, p.Name)
	case p.Tracks <= 0 || p.Sides <= 0 || p.SectorsPerTrack <= 0:
		return fmt.Errorf("%w: %s has no geometry", ErrInvalidParam, p.Name)
	case p.SectorSize < 128:
		return fmt.Errorf("%w: %s sector size %d", ErrInvalidParam, p.Name, p.SectorSize)
	case p.SectorsPerGroup <= 0 && p.GroupsPerSector <= 1:
		return fmt.Errorf("%w: %s has no group size", ErrInvalidParam, p.Name)
	case len(p.SectorSkew) > 0 && len(p.SectorSkew) != p.SectorsPerTrack:
		return fmt.Errorf("%w: %s skew map length", ErrInvalidParam, p.Name)
	}
	if _, ok := typeConstructors[p.Kind]; !ok {
		return fmt.Errorf("%w: %s kind %q", ErrInvalidParam, p.Name, p.Kind)
	}
	return nil
}

// Registry holds the known format parameters. It is filled once at start up
// and read only afterwards.
type Registry struct {
	mu     sync.RWMutex
	params []*Param
	byName map[string]*Param
}

func NewEmptyRegistry() *Registry {
	return &Registry{byName: make(map[string]*Param)}
}

// NewRegistry returns a registry holding every built in format.
func NewRegistry() *Registry {
	r := NewEmptyRegistry()
	for _, p := range builtinParams() {
		if err := r.Register(p); err != nil {
			panic(err)
		}
	}
	return r
}

func (r *Registry) Register(p Param) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.ToLower(p.Name)
	if _, exists := r.byName[key]; exists {
		return fmt.Errorf("%w: duplicate format %s", ErrInvalidParam, p.Name)
	}
	c := p.Clone()
	r.params = append(r.params, &c)
	r.byName[key] = &c
	return nil
}

func (r *Registry) Lookup(name string) (*Param, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byName[strings.ToLower(name)]
	if !ok {
		return nil, errName(ErrUnsupported, name)
	}
	return p, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.params))
	for _, p := range r.params {
		out = append(out, p.Name)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) All() []*Param {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Param(nil), r.params...)
}

// Matches reports whether the geometry of store fits p. A side of 0 or 1
// selects one side of a double sided image for a single sided format.
func (p *Param) Matches(store SectorStore, side int) bool {

	if store.SectorSize() != p.SectorSize {
		return false
	}
	if store.SectorsOnTrack(0, 0) != p.SectorsOnTrack(0) && store.SectorsOnTrack(1, 0) != p.SectorsOnTrack(1) {
		return false
	}

	max := p.TracksMax
	if max == 0 {
		max = p.Tracks + 2
	}
	if store.Tracks() < p.Tracks || store.Tracks() > max {
		return false
	}

	if side >= 0 {
		return p.Sides == 1 && side < store.Sides()
	}
	return store.Sides() == p.Sides
}

// Candidates lists the formats whose geometry fits the store, in
// registration order.
func (r *Registry) Candidates(store SectorStore, side int) []*Param {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Param
	for _, p := range r.params {
		if p.Matches(store, side) {
			out = append(out, p)
		}
	}
	return out
}
