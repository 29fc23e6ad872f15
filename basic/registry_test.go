package basic

import (
	"errors"
	"testing"
)

func TestBuiltinParams(t *testing.T) {

	reg := NewRegistry()
	names := reg.Names()
	if len(names) == 0 {
		t.Fatal("no builtin formats")
	}
	kinds := make(map[string]bool)
	for _, p := range reg.All() {
		if err := p.Validate(); err != nil {
			t.Errorf("%s: Validate() error = %v", p.Name, err)
		}
		if p.FatEndGroup < p.FirstGroup {
			t.Errorf("%s: FatEndGroup %d below FirstGroup %d", p.Name, p.FatEndGroup, p.FirstGroup)
		}
		kinds[p.Kind] = true
	}
	for k := range typeConstructors {
		if !kinds[k] {
			t.Errorf("kind %s has no parameter set", k)
		}
	}
}

func TestRegistry(t *testing.T) {

	reg := NewRegistry()
	p, err := reg.Lookup("FBASIC_2D")
	if err != nil {
		t.Fatalf("Lookup() is case sensitive: %v", err)
	}
	if _, err := reg.Lookup("nonesuch"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Lookup(nonesuch) error = %v, want ErrUnsupported", err)
	}
	if err := reg.Register(p.Clone()); !errors.Is(err, ErrInvalidParam) {
		t.Errorf("Register() duplicate error = %v, want ErrInvalidParam", err)
	}

	c := p.Clone()
	c.Name = "fbasic_custom"
	c.SetX("SearchTrack", 3)
	if err := reg.Register(c); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	got, _ := reg.Lookup("fbasic_custom")
	if got.X("SearchTrack", 1) != 3 {
		t.Errorf("custom SearchTrack = %d", got.X("SearchTrack", 1))
	}
	if p.X("SearchTrack", 1) != 1 {
		t.Errorf("Clone() shares Extra with the original")
	}
}

func TestValidate(t *testing.T) {

	base, _ := NewRegistry().Lookup("fbasic_2d")
	tests := []struct {
		name   string
		mutate func(p *Param)
	}{
		{name: "no name", mutate: func(p *Param) { p.Name = "" }},
		{name: "unknown kind", mutate: func(p *Param) { p.Kind = "zx" }},
		{name: "small sectors", mutate: func(p *Param) { p.SectorSize = 64 }},
		{name: "no groups", mutate: func(p *Param) { p.SectorsPerGroup = 0 }},
		{name: "short skew", mutate: func(p *Param) { p.SectorSkew = []int{0, 1} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base.Clone()
			tt.mutate(&p)
			if err := p.Validate(); err == nil {
				t.Errorf("Validate() accepted %s", tt.name)
			}
		})
	}
}

func TestCandidates(t *testing.T) {

	reg := NewRegistry()
	tests := []struct {
		format string
		side   int
		want   []string
	}{
		{format: "appledos33", side: -1, want: []string{"appledos33", "prodos_140k"}},
		{format: "c1541", side: -1, want: []string{"c1541"}},
		{format: "fbasic_2d", side: -1, want: []string{"fbasic_2d"}},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			p, _ := reg.Lookup(tt.format)
			d := blankDisk(t, p)
			got := make(map[string]bool)
			for _, c := range reg.Candidates(d, tt.side) {
				got[c.Name] = true
			}
			for _, w := range tt.want {
				if !got[w] {
					t.Errorf("Candidates() lacks %s: %v", w, got)
				}
			}
		})
	}

	p, _ := reg.Lookup("fbasic_2d")
	d := blankDisk(t, p)
	if p.Matches(d, 0) {
		t.Errorf("double sided format matched a single side")
	}
}
