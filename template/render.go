package template

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/RinkuLib/RinkuLib/handler"
)

// Role classifies an entry on the parameter-binding plan.
type Role uint8

const (
	// RoleStandard records the name of an ordinary @Var left in the text;
	// the driver supplies and converts the value.
	RoleStandard Role = iota
	// RoleSpread is a value bound by a special handler expansion.
	RoleSpread
)

// Binding is one entry of the parameter-binding plan, in the order the
// parameters appear in the final text.
type Binding struct {
	Name  string
	Value any
	Role  Role
}

// renderScratch carries the per-render buffers. Pooled so the hot path does
// not allocate a text builder per call.
type renderScratch struct {
	sb     strings.Builder
	active []bool
	emit   []bool
	scopeA []bool
	lastIn []int
}

var renderPool = sync.Pool{
	New: func() any { return &renderScratch{} },
}

func (rs *renderScratch) reset(nsegs, nscopes, srcLen int) {
	rs.sb.Reset()
	rs.sb.Grow(srcLen)
	rs.active = grow(rs.active, nsegs)
	rs.emit = grow(rs.emit, nsegs)
	rs.scopeA = grow(rs.scopeA, nscopes)
	if cap(rs.lastIn) < nscopes {
		rs.lastIn = make([]int, nscopes)
	}
	rs.lastIn = rs.lastIn[:nscopes]
	for i := range rs.lastIn {
		rs.lastIn[i] = -1
	}
}

func grow(b []bool, n int) []bool {
	if cap(b) < n {
		return make([]bool, n)
	}
	b = b[:n]
	for i := range b {
		b[i] = false
	}
	return b
}

// Render walks the segment list once to decide retention, applies excess
// cleanup per scope, and emits the final SQL with the binding plan.
func (b *Builder) Render() (string, []Binding, error) {
	bp := b.bp
	rs := renderPool.Get().(*renderScratch)
	defer renderPool.Put(rs)
	rs.reset(len(bp.segs), len(bp.scopes), len(bp.src))
	b.warnings = b.warnings[:0]

	if err := b.computeActivity(rs); err != nil {
		return "", nil, err
	}
	if err := b.applyCleanup(rs); err != nil {
		return "", nil, err
	}
	return b.emitText(rs)
}

// computeActivity evaluates each segment's condition and its parent chain,
// and validates handler placements of retained segments.
func (b *Builder) computeActivity(rs *renderScratch) error {
	bp := b.bp
	for i := range bp.segs {
		seg := &bp.segs[i]
		ok := seg.Parent < 0 || rs.active[seg.Parent]
		if ok && !seg.Cond.Empty() {
			ok = seg.Cond.Eval(b.active)
		}
		if ok && !seg.Head {
			var err error
			ok, err = b.checkPlacements(rs, seg)
			if err != nil {
				return err
			}
		}
		if !ok {
			b.dropEmptyChain(rs, seg)
		}
		rs.active[i] = ok
	}
	return nil
}

// checkPlacements enforces handler contracts on a retained segment: required
// handler values must exist, special handlers must get non-empty
// enumerables. An optional spread with an empty collection deactivates the
// segment instead of failing.
func (b *Builder) checkPlacements(rs *renderScratch, seg *Segment) (bool, error) {
	for _, pl := range seg.Placements {
		if pl.Letter == 0 {
			continue
		}
		val, has := b.value(pl.Key)
		if !has {
			if pl.Optional {
				continue
			}
			return false, renderErr(KindHandlerMissingValue, pl.Name,
				"handler %q requires a value", string(pl.Letter))
		}
		if sp := b.bp.handlers.Special(pl.Letter); sp != nil {
			items, isEnum := handler.Enumerate(val)
			if !isEnum {
				return false, renderErr(KindHandlerType, pl.Name,
					"handler %q requires an enumerable, got %T", string(pl.Letter), val)
			}
			if len(items) == 0 {
				if pl.Optional {
					return false, nil
				}
				return false, renderErr(KindHandlerEmpty, pl.Name,
					"handler %q given an empty collection", string(pl.Letter))
			}
		}
	}
	return true, nil
}

// dropEmptyChain deactivates the enclosing predicate of a value-list paren
// whose only content went absent, so constructs like `Col IN ()` never
// render.
func (b *Builder) dropEmptyChain(rs *renderScratch, seg *Segment) {
	j := seg.EmptyParent
	for j >= 0 && rs.active[j] {
		rs.active[j] = false
		j = b.bp.segs[j].EmptyParent
	}
}

// applyCleanup decides head retention per scope, verifies projections still
// have columns, and records WHEN/THEN pairing warnings.
func (b *Builder) applyCleanup(rs *renderScratch) error {
	bp := b.bp

	for i := range bp.segs {
		seg := &bp.segs[i]
		if rs.active[i] && !seg.Head {
			rs.scopeA[seg.Scope] = true
		}
	}

	for i := range bp.segs {
		seg := &bp.segs[i]
		rs.emit[i] = rs.active[i]
		if seg.Head && rs.active[i] && seg.Strippable && !rs.scopeA[seg.OwnedScope] {
			rs.emit[i] = false
		}
	}

	for pi := range bp.projections {
		proj := &bp.projections[pi]
		headActive := false
		colActive := false
		for i := range bp.segs {
			seg := &bp.segs[i]
			if seg.Head && seg.OwnedScope == proj.Scope && rs.active[i] {
				headActive = true
			}
			if seg.ProjColumn && seg.Scope == proj.Scope && rs.active[i] {
				colActive = true
			}
		}
		if headActive && !colActive {
			return renderErr(KindEmptyProjection, "", "no column of the dynamic projection is active")
		}
	}

	// A THEN whose WHEN was pruned is an authoring error: warn and emit it
	// verbatim, no implicit repair.
	whenEmitted := map[int]bool{}
	for i := range bp.segs {
		seg := &bp.segs[i]
		switch seg.caseKind {
		case caseWhen:
			whenEmitted[seg.Parent] = rs.emit[i]
		case caseThen:
			if rs.emit[i] && !whenEmitted[seg.Parent] {
				b.warnings = append(b.warnings,
					fmt.Sprintf("THEN at offset %d emitted without its WHEN", seg.Start))
			}
		}
	}

	for i := range bp.segs {
		if rs.emit[i] && !bp.segs[i].Head {
			rs.lastIn[bp.segs[i].Scope] = i
		}
	}
	return nil
}

// emitText writes retained segments in template order, splicing rewrites and
// handler output and collecting the binding plan.
func (b *Builder) emitText(rs *renderScratch) (string, []Binding, error) {
	bp := b.bp
	binds := make([]Binding, 0, 8)
	gap := false

	for i := range bp.segs {
		seg := &bp.segs[i]
		if !rs.emit[i] {
			gap = true
			continue
		}
		trimLead := false
		if gap && rs.sb.Len() > 0 {
			last := rs.sb.String()[rs.sb.Len()-1]
			first := b.peekFirstByte(seg)
			switch {
			case first == 0:
			case isWsByte(last) && isWsByte(first):
				// A dropped neighbor left whitespace on both sides of
				// the seam; keep a single space.
				trimLead = true
			case !glueLeft(last) && !glueRight(first):
				rs.sb.WriteByte(' ')
			}
		}
		before := rs.sb.Len()
		strip := rs.lastIn[seg.Scope] == i
		if err := b.emitSegment(rs, seg, strip, trimLead, &binds); err != nil {
			return "", nil, err
		}
		if rs.sb.Len() > before {
			gap = false
		}
	}
	return strings.TrimSpace(rs.sb.String()), binds, nil
}

func isWsByte(c byte) bool { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }

func glueLeft(c byte) bool { return isWsByte(c) || c == '(' }

func glueRight(c byte) bool { return isWsByte(c) || c == ')' || c == ',' }

// peekFirstByte predicts the first byte a segment will emit, skipping empty
// rewrites. Placements count as opaque non-space output.
func (b *Builder) peekFirstByte(seg *Segment) byte {
	pos := seg.Start
	ri, pi := 0, 0
	for {
		nr, np := math.MaxInt, math.MaxInt
		if ri < len(seg.Rewrites) {
			nr = seg.Rewrites[ri].Start
		}
		if pi < len(seg.Placements) {
			np = seg.Placements[pi].Start
		}
		next := nr
		if np < nr {
			next = np
		}
		if pos < next && pos < seg.End {
			return b.bp.src[pos]
		}
		if next == math.MaxInt || next >= seg.End {
			break
		}
		if nr <= np {
			if seg.Rewrites[ri].Text != "" {
				return seg.Rewrites[ri].Text[0]
			}
			if seg.Rewrites[ri].End > pos {
				pos = seg.Rewrites[ri].End
			}
			ri++
		} else {
			return 'x'
		}
	}
	if seg.TrailEnd > seg.TrailStart {
		return b.bp.src[seg.TrailStart]
	}
	return 0
}

func (b *Builder) emitSegment(rs *renderScratch, seg *Segment, strip, trimLead bool, binds *[]Binding) error {
	bp := b.bp
	pos := seg.Start
	ri, pi := 0, 0
	if trimLead {
		stop := seg.End
		if len(seg.Rewrites) > 0 && seg.Rewrites[0].Start < stop {
			stop = seg.Rewrites[0].Start
		}
		if len(seg.Placements) > 0 && seg.Placements[0].Start < stop {
			stop = seg.Placements[0].Start
		}
		for pos < stop && isWsByte(bp.src[pos]) {
			pos++
		}
	}
	for {
		nr, np := math.MaxInt, math.MaxInt
		if ri < len(seg.Rewrites) {
			nr = seg.Rewrites[ri].Start
		}
		if pi < len(seg.Placements) {
			np = seg.Placements[pi].Start
		}
		if nr == math.MaxInt && np == math.MaxInt {
			break
		}
		if nr <= np {
			rw := &seg.Rewrites[ri]
			if s := rw.Start; s > pos {
				rs.sb.WriteString(bp.src[pos:s])
			}
			rs.sb.WriteString(rw.Text)
			if rw.End > pos {
				pos = rw.End
			}
			ri++
		} else {
			pl := &seg.Placements[pi]
			if pl.Start > pos {
				rs.sb.WriteString(bp.src[pos:pl.Start])
			}
			if err := b.emitPlacement(rs, pl, binds); err != nil {
				return err
			}
			pos = pl.End
			pi++
		}
	}
	if pos < seg.End {
		rs.sb.WriteString(bp.src[pos:seg.End])
	}
	if seg.TrailEnd > seg.TrailStart && !strip {
		rs.sb.WriteString(bp.src[seg.TrailStart:seg.TrailEnd])
	}
	return nil
}

func (b *Builder) emitPlacement(rs *renderScratch, pl *Placement, binds *[]Binding) error {
	bp := b.bp
	if pl.Letter == 0 {
		rs.sb.WriteByte(bp.prefix)
		rs.sb.WriteString(pl.Name)
		*binds = append(*binds, Binding{Name: pl.Name, Role: RoleStandard})
		return nil
	}

	val, has := b.value(pl.Key)
	if !has {
		// Optional handler variable on a segment retained by other
		// conditions: nothing to splice.
		return nil
	}

	if sp := bp.handlers.Special(pl.Letter); sp != nil {
		txt, hb, err := sp.Expand(bp.prefix, pl.Name, val)
		if err != nil {
			return &RenderError{Kind: KindHandlerType, Key: pl.Name, Msg: err.Error(), Err: err}
		}
		rs.sb.WriteString(txt)
		for _, x := range hb {
			*binds = append(*binds, Binding{Name: x.Name, Value: x.Value, Role: RoleSpread})
		}
		return nil
	}

	base := bp.handlers.Base(pl.Letter)
	txt, err := base.EmitText(pl.Name, val)
	if err != nil {
		return &RenderError{Kind: KindHandlerType, Key: pl.Name, Msg: err.Error(), Err: err}
	}
	rs.sb.WriteString(txt)
	return nil
}
