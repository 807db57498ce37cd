package template

import (
	"strings"

	"github.com/RinkuLib/RinkuLib/handler"
	"github.com/RinkuLib/RinkuLib/token"
)

// strippableClauses lose their lead keyword when no segment of the clause
// stays active.
var strippableClauses = map[string]bool{
	"WHERE": true, "HAVING": true, "SET": true, "ON": true,
	"GROUP BY": true, "ORDER BY": true, "OFFSET": true,
}

// subqueryIntroWords classify a following paren as a sub-query paren.
var subqueryIntroWords = map[string]bool{"IN": true, "EXISTS": true, "ANY": true, "ALL": true}

// subqueryIntroSections introduce a sub-query or value list.
var subqueryIntroSections = map[string]bool{"SELECT": true, "FROM": true, "WITH": true, "VALUES": true}

type promoState struct {
	expr        CondExpr
	start       int // includes the whitespace run before the marker
	markerStart int
}

type compiler struct {
	src    string
	prefix byte
	toks   []token.Token
	hs     handler.Snapshot

	reg    *Registry
	segs   []Segment
	scopes []scopeInfo
	projs  []Projection
	match  []int
	promo  *promoState
}

func newCompiler(src string, prefix byte, toks []token.Token, hs handler.Snapshot) *compiler {
	return &compiler{src: src, prefix: prefix, toks: toks, hs: hs, reg: newRegistry()}
}

func (c *compiler) compile() (*Blueprint, error) {
	if err := c.matchParens(); err != nil {
		return nil, err
	}
	if err := c.prescanVariables(); err != nil {
		return nil, err
	}
	if err := c.parseRegion(0, len(c.toks), regionEnv{parent: -1}); err != nil {
		return nil, err
	}

	remap := c.reg.finalize()
	for i := range c.segs {
		c.segs[i].Cond.remap(remap)
		for j := range c.segs[i].Placements {
			c.segs[i].Placements[j].Key = remap[c.segs[i].Placements[j].Key]
		}
	}
	for i := range c.projs {
		for j := range c.projs[i].Columns {
			c.projs[i].Columns[j] = remap[c.projs[i].Columns[j]]
		}
		for j := range c.projs[i].Groups {
			for k := range c.projs[i].Groups[j] {
				c.projs[i].Groups[j][k] = remap[c.projs[i].Groups[j][k]]
			}
		}
	}

	if err := c.checkSelectLists(); err != nil {
		return nil, err
	}

	return &Blueprint{
		src:         c.src,
		prefix:      c.prefix,
		reg:         c.reg,
		segs:        c.segs,
		scopes:      c.scopes,
		projections: c.projs,
		handlers:    c.hs,
	}, nil
}

func (c *compiler) matchParens() error {
	c.match = make([]int, len(c.toks))
	var stack []int
	for i, t := range c.toks {
		switch t.Kind {
		case token.ParenOpen:
			stack = append(stack, i)
		case token.ParenClose:
			if len(stack) == 0 {
				return compileErr(KindSyntax, t.Start, "unbalanced )")
			}
			c.match[stack[len(stack)-1]] = i
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) > 0 {
		return compileErr(KindSyntax, c.toks[stack[len(stack)-1]].Start, "unbalanced (")
	}
	return nil
}

// prescanVariables registers every variable before segment construction so
// marker atoms and projection keys can resolve against them regardless of
// where they appear.
func (c *compiler) prescanVariables() error {
	for _, t := range c.toks {
		if t.Kind != token.Variable {
			continue
		}
		bank := BankVariable
		if t.Handler != 0 {
			switch {
			case c.hs.Special(t.Handler) != nil:
				bank = BankSpecial
			case c.hs.Base(t.Handler) != nil:
				bank = BankBase
			default:
				return compileErr(KindUnknownHandlerLetter, t.Start,
					"no handler registered for letter %q", string(t.Handler))
			}
		}
		c.reg.getOrAdd(t.Name, bank)
	}
	return nil
}

type regionEnv struct {
	parent     int  // enclosing segment index, or -1
	grow       *int // segment whose condition receives ?@ atoms (functional-paren growth)
	caseRegion bool
}

type itemsEnv struct {
	scope      int
	parent     int
	grow       *int
	insert     bool
	clause     string
	projection int
	caseRegion bool
}

func (c *compiler) newScope(clause string) int {
	c.scopes = append(c.scopes, scopeInfo{clause: clause, projection: -1})
	return len(c.scopes) - 1
}

// parseRegion processes a balanced token range: a sequence of clauses
// introduced by section keywords, each holding items.
func (c *compiler) parseRegion(lo, hi int, env regionEnv) error {
	scope := c.newScope("")
	head := -1
	insert := false

	i := lo
	for i < hi {
		t := &c.toks[i]
		switch {
		case t.Kind == token.Section && t.Canon != "CASE":
			if t.Canon == "INSERT" {
				insert = true
			}
			scope = c.newScope(t.Canon)
			head = c.addHead(i, env, scope, token.Section)
			i++
		case t.Kind == token.DynamicSelect:
			scope = c.newScope("SELECT")
			c.scopes[scope].projection = len(c.projs)
			c.projs = append(c.projs, Projection{Scope: scope})
			head = c.addHead(i, env, scope, token.DynamicSelect)
			i++
		default:
			parent := env.parent
			if head >= 0 {
				parent = head
			}
			var err error
			i, err = c.parseItems(i, hi, itemsEnv{
				scope:      scope,
				parent:     parent,
				grow:       env.grow,
				insert:     insert,
				clause:     c.scopes[scope].clause,
				projection: c.scopes[scope].projection,
				caseRegion: env.caseRegion,
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// addHead creates a clause-head segment for the section token at i,
// consuming any pending clause-conditional marker.
func (c *compiler) addHead(i int, env regionEnv, scope int, kind token.Kind) int {
	t := &c.toks[i]
	// The head owns the whitespace before its keyword, so a stripped
	// clause takes its leading gap with it.
	seg := Segment{
		Start:       c.wsBack(t.Start),
		End:         t.End,
		Cond:        CondExpr{},
		Parent:      env.parent,
		Scope:       scope,
		Head:        true,
		Strippable:  strippableClauses[t.Canon],
		OwnedScope:  scope,
		EmptyParent: -1,
	}
	if env.caseRegion {
		seg.Strippable = false
		switch t.Canon {
		case "WHEN":
			seg.caseKind = caseWhen
		case "THEN":
			seg.caseKind = caseThen
		}
	}
	if kind == token.DynamicSelect {
		seg.Rewrites = append(seg.Rewrites, Rewrite{Start: t.Start, End: t.End, Text: "SELECT"})
	}
	if c.promo != nil {
		seg.Start = c.promo.start
		seg.Cond = c.promo.expr
		seg.Rewrites = append([]Rewrite{{Start: c.promo.markerStart, End: t.Start, Text: ""}}, seg.Rewrites...)
		c.promo = nil
	}
	c.segs = append(c.segs, seg)
	return len(c.segs) - 1
}

// parseItems scans one clause's items until the next section keyword at this
// level (returning its index) or the end of the range.
func (c *compiler) parseItems(lo, hi int, env itemsEnv) (int, error) {
	anchor := c.toks[lo].Start
	var cond CondExpr
	var rewrites []Rewrite
	var placements []Placement
	owner := -1
	lastWord := ""
	var colKeys []int

	resetItem := func(nextAnchor int) {
		anchor = nextAnchor
		cond = CondExpr{}
		rewrites = nil
		placements = nil
		owner = -1
		lastWord = ""
		colKeys = nil
	}

	pushColKey := func() {
		if lastWord != "" {
			colKeys = append(colKeys, c.reg.getOrAdd(lastWord, BankSelect))
			lastWord = ""
		}
	}

	// addAtom routes an optional-variable trigger: growth target first
	// (functional-paren growth), then the split item owner, then the local
	// condition.
	addAtom := func(key int) {
		switch {
		case env.grow != nil:
			c.segs[*env.grow].Cond.and(key)
		case owner >= 0:
			c.segs[owner].Cond.and(key)
		default:
			cond.and(key)
		}
	}

	// addExpr attaches a marker expression to the segment it lands in;
	// markers never grow.
	addExpr := func(e CondExpr) {
		if owner >= 0 {
			c.segs[owner].Cond.concat(e, OpAnd)
		} else {
			cond.concat(e, OpAnd)
		}
	}

	flush := func(endByte, trailS, trailE int, asColumn bool) {
		hasTrail := trailE > trailS
		if owner >= 0 {
			if endByte > anchor || hasTrail || len(placements) > 0 || len(rewrites) > 0 {
				c.segs = append(c.segs, Segment{
					Start: anchor, End: endByte,
					TrailStart: trailS, TrailEnd: trailE,
					Parent: owner, Scope: env.scope, EmptyParent: -1,
					Rewrites: rewrites, Placements: placements,
				})
			}
			return
		}
		if endByte <= anchor && !hasTrail && cond.Empty() && len(placements) == 0 && len(rewrites) == 0 {
			return
		}
		seg := Segment{
			Start: anchor, End: endByte,
			TrailStart: trailS, TrailEnd: trailE,
			Cond: cond, Parent: env.parent, Scope: env.scope, EmptyParent: -1,
			Rewrites: rewrites, Placements: placements,
		}
		if env.projection >= 0 && asColumn {
			pushColKey()
			if len(colKeys) > 0 {
				var colCond CondExpr
				for _, k := range colKeys {
					colCond.or(k)
				}
				colCond.concat(cond, OpAnd)
				seg.Cond = colCond
				seg.ProjColumn = true
				p := &c.projs[env.projection]
				p.Columns = append(p.Columns, colKeys...)
				p.Groups = append(p.Groups, colKeys)
			}
		}
		c.segs = append(c.segs, seg)
	}

	// flushPart1 closes the current part at endByte when a paren or CASE
	// splits the item, keeping the condition on the first part.
	flushPart1 := func(endByte int) int {
		if owner < 0 {
			c.segs = append(c.segs, Segment{
				Start: anchor, End: endByte,
				Cond: cond, Parent: env.parent, Scope: env.scope, EmptyParent: -1,
				Rewrites: rewrites, Placements: placements,
			})
			owner = len(c.segs) - 1
		} else {
			c.segs = append(c.segs, Segment{
				Start: anchor, End: endByte,
				Parent: owner, Scope: env.scope, EmptyParent: -1,
				Rewrites: rewrites, Placements: placements,
			})
		}
		cond = CondExpr{}
		rewrites = nil
		placements = nil
		return owner
	}

	i := lo
	for i < hi {
		t := &c.toks[i]
		switch t.Kind {
		case token.Ws:
			i++

		case token.Text, token.String, token.Op:
			i++

		case token.Word:
			lastWord = t.Text
			i++

		case token.Logical:
			if t.Canon == "NOT" {
				i++
				continue
			}
			flush(t.Start, t.Start, t.End, true)
			i++
			resetItem(t.End)

		case token.Separator:
			flush(t.Start, t.Start, t.End, true)
			i++
			resetItem(t.End)

		case token.ContextJoin:
			rewrites = append(rewrites, c.joinRewrite(t))
			if env.projection >= 0 {
				pushColKey()
			}
			i++

		case token.Boundary:
			flush(t.Start, 0, 0, false)
			i++
			resetItem(t.End)

		case token.DynamicSelect:
			flush(c.wsBack(t.Start), 0, 0, true)
			return i, nil

		case token.Section:
			if t.Canon == "CASE" && env.projection >= 0 {
				// A CASE inside a projection column is inlined so the
				// column stays one segment for key extraction.
				endIdx, err := c.findCaseEnd(i+1, hi)
				if err != nil {
					return 0, err
				}
				if err := c.collectInline(i+1, endIdx, &cond, &placements, &rewrites, owner); err != nil {
					return 0, err
				}
				i = endIdx + 1
				continue
			}
			if t.Canon == "CASE" {
				ownerIdx := flushPart1(t.End)
				endIdx, err := c.findCaseEnd(i+1, hi)
				if err != nil {
					return 0, err
				}
				if err := c.parseRegion(i+1, endIdx, regionEnv{parent: ownerIdx, caseRegion: true}); err != nil {
					return 0, err
				}
				anchor = c.toks[endIdx].Start
				i = endIdx + 1
				continue
			}
			flush(c.wsBack(t.Start), 0, 0, true)
			return i, nil

		case token.Comment:
			if j := c.nextNonWs(i + 1); j < hi {
				k := c.toks[j].Kind
				if (k == token.Section && c.toks[j].Canon != "CASE" && c.toks[j].Canon != "END") || k == token.DynamicSelect {
					expr, err := parseCondBody(t.Body, t.Start, c.prefix, c.reg)
					if err != nil {
						return 0, err
					}
					flush(c.wsBack(t.Start), 0, 0, true)
					c.promo = &promoState{expr: expr, start: c.wsBack(t.Start), markerStart: t.Start}
					return j, nil
				}
			}
			expr, err := parseCondBody(t.Body, t.Start, c.prefix, c.reg)
			if err != nil {
				return 0, err
			}
			addExpr(expr)
			rewrites = append(rewrites, c.markerRewrite(t.Start, t.End))
			i++

		case token.LiteralHint:
			rewrites = append(rewrites, Rewrite{Start: t.Start, End: t.End, Text: t.Body})
			i++

		case token.Variable:
			key, ok := c.reg.lookup(t.Name)
			if !ok {
				key = c.reg.getOrAdd(t.Name, BankVariable)
			}
			placements = append(placements, Placement{
				Key: key, Name: t.Name, Letter: t.Handler,
				Optional: t.Optional, Start: t.Start, End: t.End,
			})
			if t.Optional {
				addAtom(key)
			}
			i++

		case token.ParenOpen:
			closeIdx := c.match[i]
			if env.projection >= 0 {
				if err := c.collectInline(i+1, closeIdx, &cond, &placements, &rewrites, owner); err != nil {
					return 0, err
				}
				i = closeIdx + 1
				continue
			}
			local := c.classifyParen(i, env)
			ownerIdx := flushPart1(t.End)
			interiorStart := len(c.segs)
			inner := regionEnv{parent: ownerIdx}
			if !local {
				if env.grow != nil {
					inner.grow = env.grow
				} else {
					g := ownerIdx
					inner.grow = &g
				}
			}
			if err := c.parseRegion(i+1, closeIdx, inner); err != nil {
				return 0, err
			}
			if local {
				c.linkEmptyParent(interiorStart, ownerIdx)
			}
			anchor = c.toks[closeIdx].Start
			i = closeIdx + 1

		case token.ParenClose:
			return 0, compileErr(KindSyntax, t.Start, "unbalanced )")

		default:
			i++
		}
	}

	end := len(c.src)
	if hi < len(c.toks) {
		end = c.toks[hi].Start
	}
	flush(end, 0, 0, true)
	return hi, nil
}

// collectInline gathers triggers and placements from a paren interior
// without splitting the enclosing item. Used in projection column items,
// where a column must stay a single segment for key extraction.
func (c *compiler) collectInline(lo, hi int, cond *CondExpr, placements *[]Placement, rewrites *[]Rewrite, owner int) error {
	addTo := func(f func(e *CondExpr)) {
		if owner >= 0 {
			f(&c.segs[owner].Cond)
		} else {
			f(cond)
		}
	}
	for i := lo; i < hi; i++ {
		t := &c.toks[i]
		switch t.Kind {
		case token.Variable:
			key, ok := c.reg.lookup(t.Name)
			if !ok {
				key = c.reg.getOrAdd(t.Name, BankVariable)
			}
			*placements = append(*placements, Placement{
				Key: key, Name: t.Name, Letter: t.Handler,
				Optional: t.Optional, Start: t.Start, End: t.End,
			})
			if t.Optional {
				addTo(func(e *CondExpr) { e.and(key) })
			}
		case token.Comment:
			expr, err := parseCondBody(t.Body, t.Start, c.prefix, c.reg)
			if err != nil {
				return err
			}
			addTo(func(e *CondExpr) { e.concat(expr, OpAnd) })
			*rewrites = append(*rewrites, c.markerRewrite(t.Start, t.End))
		case token.LiteralHint:
			*rewrites = append(*rewrites, Rewrite{Start: t.Start, End: t.End, Text: t.Body})
		case token.ContextJoin:
			*rewrites = append(*rewrites, c.joinRewrite(t))
		}
	}
	return nil
}

// classifyParen reports whether the paren at i bounds footprints (sub-query
// or INSERT list paren) rather than growing through them.
func (c *compiler) classifyParen(i int, env itemsEnv) bool {
	if env.insert && (env.clause == "INTO" || env.clause == "VALUES") {
		return true
	}
	if p := c.prevNonWs(i - 1); p >= 0 {
		pt := &c.toks[p]
		switch pt.Kind {
		case token.Word:
			if subqueryIntroWords[pt.Canon] {
				return true
			}
		case token.Op:
			if strings.ContainsAny(pt.Text, "=<>!") {
				return true
			}
		case token.Section:
			if subqueryIntroSections[pt.Canon] {
				return true
			}
		case token.DynamicSelect:
			return true
		}
	}
	if n := c.nextNonWs(i + 1); n < len(c.toks) {
		nt := &c.toks[n]
		if nt.Kind == token.DynamicSelect || (nt.Kind == token.Section && nt.Canon == "SELECT") {
			return true
		}
	}
	return false
}

// linkEmptyParent ties a lone spread segment inside a value-list paren to
// its enclosing predicate, so dropping the spread drops the predicate.
func (c *compiler) linkEmptyParent(interiorStart, ownerIdx int) {
	if len(c.segs) != interiorStart+1 {
		return
	}
	s := &c.segs[interiorStart]
	if s.Head || len(s.Placements) != 1 {
		return
	}
	pl := s.Placements[0]
	if pl.Optional && pl.Letter != 0 && c.hs.Special(pl.Letter) != nil {
		s.EmptyParent = ownerIdx
	}
}

func (c *compiler) findCaseEnd(lo, hi int) (int, error) {
	depth := 1
	for i := lo; i < hi; i++ {
		t := &c.toks[i]
		if t.Kind != token.Section {
			continue
		}
		switch t.Canon {
		case "CASE":
			depth++
		case "END":
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	off := len(c.src)
	if lo > 0 {
		off = c.toks[lo-1].Start
	}
	return 0, compileErr(KindSyntax, off, "CASE without matching END")
}

func (c *compiler) nextNonWs(i int) int {
	for i < len(c.toks) && c.toks[i].Kind == token.Ws {
		i++
	}
	return i
}

func (c *compiler) prevNonWs(i int) int {
	for i >= 0 && c.toks[i].Kind == token.Ws {
		i--
	}
	return i
}

// markerRewrite erases a marker together with the whitespace on one side:
// the following run when there is one, the preceding run otherwise, so
// removal never leaves a double space or a space before a closing paren.
func (c *compiler) markerRewrite(start, end int) Rewrite {
	if we := c.wsEnd(end); we > end {
		return Rewrite{Start: start, End: we, Text: ""}
	}
	return Rewrite{Start: c.wsBack(start), End: end, Text: ""}
}

// joinRewrite drops the '&' of a context join. Comma joins also absorb the
// whitespace before them, keeping "a &, b" from rendering as "a , b".
func (c *compiler) joinRewrite(t *token.Token) Rewrite {
	start := t.Start
	if t.Canon == "," {
		start = c.wsBack(start)
	}
	return Rewrite{Start: start, End: t.End, Text: t.Canon}
}

func (c *compiler) wsBack(start int) int {
	for start > 0 {
		switch c.src[start-1] {
		case ' ', '\t', '\n', '\r':
			start--
		default:
			return start
		}
	}
	return start
}

// wsEnd extends end through any whitespace directly after it, so removed
// markers do not leave double spaces behind.
func (c *compiler) wsEnd(end int) int {
	for end < len(c.src) {
		switch c.src[end] {
		case ' ', '\t', '\n', '\r':
			end++
		default:
			return end
		}
	}
	return end
}

// checkSelectLists rejects static select lists that could render empty.
// Dynamic projections defer the decision to render time.
func (c *compiler) checkSelectLists() error {
	for s, info := range c.scopes {
		if info.clause != "SELECT" || info.projection >= 0 {
			continue
		}
		items, conditional := 0, 0
		for i := range c.segs {
			seg := &c.segs[i]
			if seg.Scope != s || seg.Head {
				continue
			}
			if seg.Parent >= 0 && !c.segs[seg.Parent].Head {
				continue // continuation part of a split item
			}
			items++
			if !seg.Cond.Empty() {
				conditional++
			}
		}
		if items > 0 && items == conditional {
			return compileErr(KindSyntax, 0,
				"every column of a static select list is conditional; the list could render empty")
		}
	}
	return nil
}
