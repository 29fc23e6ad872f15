package basic

// fat8Type keeps one byte per group, holding either the next group of the
// chain, a final code carrying the sectors used in the last group, or one of
// the unused and system codes. hi, when set, supplies the upper byte of
// 16 bit entries from a second table.
type fat8Type struct {
	*TypeBase
	hi    *Fat
	order []int
}

func newFat8Type(b *TypeBase) *fat8Type {
	return &fat8Type{TypeBase: b}
}

func (t *fat8Type) GetGroupNumber(group int) int {
	if t.fat == nil {
		return -1
	}
	v := t.fat.Get(group)
	if t.hi != nil && v >= 0 {
		v |= t.hi.Get(group) << 8
	}
	return v
}

func (t *fat8Type) SetGroupNumber(group, value int) {
	if t.fat == nil {
		return
	}
	t.fat.Set(group, value&0xff)
	if t.hi != nil {
		t.hi.Set(group, (value>>8)&0xff)
	}
}

func (t *fat8Type) IsUsedGroupNumber(group int) bool {
	v := t.GetGroupNumber(group)
	return v >= 0 && v != t.param.GroupUnusedCode
}

func (t *fat8Type) GetNextGroupNumber(group int, sectorPos int) int {
	p := &t.param
	v := t.GetGroupNumber(group)
	if v < p.FirstGroup || v > p.FatEndGroup || t.IsFinalCode(v) {
		return InvalidGroupNumber
	}
	return v
}

func (t *fat8Type) FinalCode(sectors int) int {
	return t.param.GroupFinalCode + sectors - 1 + t.param.FinalSectorBase
}

func (t *fat8Type) IsFinalCode(v int) bool {
	n := v - t.param.GroupFinalCode - t.param.FinalSectorBase
	return n >= 0 && n < t.param.SectorsPerGroup
}

func (t *fat8Type) SectorsInFinal(v int) int {
	n := v - t.param.GroupFinalCode - t.param.FinalSectorBase + 1
	if n < 1 {
		n = 1
	}
	if n > t.param.SectorsPerGroup {
		n = t.param.SectorsPerGroup
	}
	return n
}

func (t *fat8Type) GetEmptyGroupNumber() int {
	if t.order != nil {
		return firstFreeInOrder(t, t.order)
	}
	return firstFreeFrom(t, t.param.FirstGroup)
}

func (t *fat8Type) GetNextEmptyGroupNumber(curr int) int {
	if t.order != nil {
		return firstFreeInOrder(t, t.order)
	}
	return firstFreeFrom(t, curr+1)
}

// CheckFat scores the table: every entry must be a code or a pointer to
// another group no other entry points to, reserved groups should hold the
// system code and mirrored copies should agree.
func (t *fat8Type) CheckFat(isFormatting bool) float64 {

	if isFormatting {
		return 1.0
	}
	p := &t.param
	if t.fat == nil || t.fat.Size() <= p.FatEndGroup {
		return -1.0
	}

	bad := 0
	n := p.FatEndGroup - p.FirstGroup + 1
	target := make([]bool, p.FatEndGroup+1)
	for g := p.FirstGroup; g <= p.FatEndGroup; g++ {
		v := t.GetGroupNumber(g)
		switch {
		case v == p.GroupUnusedCode, v == p.GroupSystemCode, t.IsFinalCode(v):
		case v >= p.FirstGroup && v <= p.FatEndGroup && v != g && !target[v]:
			target[v] = true
		default:
			bad++
		}
	}
	score := 1.0 - 2.0*float64(bad)/float64(n)
	if score < 0 {
		t.report.Errorf("%s: %d of %d allocation entries are invalid", p.Name, bad, n)
		return -1.0
	}

	if len(p.ReservedGroups) > 0 {
		miss := 0
		for _, g := range p.ReservedGroups {
			if t.GetGroupNumber(g) != p.GroupSystemCode {
				miss++
			}
		}
		if miss > 0 {
			t.report.Warnf("%s: %d reserved groups are not marked", p.Name, miss)
			score *= 1 - 0.5*float64(miss)/float64(len(p.ReservedGroups))
		}
	}

	if t.fat.Copies() > 1 {
		match, total := t.fat.MatchCopies(0, p.FatEndGroup+1)
		if total > 0 && match < total {
			t.report.Warnf("%s: allocation table copies differ", p.Name)
			score = (score + float64(match)/float64(total)) / 2
		}
	}
	return score
}
