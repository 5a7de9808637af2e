package il

import (
	"slices"

	clierrors "github.com/brickbot/clifile/errors"
	"github.com/brickbot/clifile/metadata"
	"github.com/brickbot/clifile/signature"
)

// Cursor walks the instructions of a method body in address order.
//
// With TrackStack enabled the cursor simulates the evaluation stack one
// instruction behind: after Next positions on instruction i, Stack holds
// the state produced by instructions 0..i-1.
type Cursor struct {
	img  *metadata.Image
	code []byte

	inst    Instruction
	started bool
	done    bool
	next    int
	err     error

	labels  []Target
	tracked bool
	label   bool

	scopes []Scope

	handlers map[int]handlerEntry
	st       *stackState
}

type handlerEntry struct {
	kind  ClauseKind
	class metadata.Token
}

// NewCursor returns a cursor over code. img resolves the tokens of call
// instructions during stack tracking and may be nil otherwise.
func NewCursor(img *metadata.Image, code []byte) *Cursor {
	return &Cursor{img: img, code: code}
}

// Next advances to the next instruction. It returns false at the end of the
// code or on error; see Err. When it reports the end, a tracked stack
// includes the effect of the last instruction.
func (c *Cursor) Next() bool {
	if c.err != nil || c.done {
		return false
	}
	if c.st != nil && c.started {
		if err := c.st.apply(c, c.inst); err != nil {
			c.err = err
			return false
		}
	}
	if c.next >= len(c.code) {
		c.done = true
		return false
	}

	inst, err := Decode(c.code, c.next)
	if err != nil {
		c.err = err
		return false
	}
	c.inst = inst
	c.started = true
	c.next = inst.Next()
	if c.tracked {
		c.label = c.IsLabel(Target(inst.Offset))
	}
	if c.st != nil {
		c.st.enter(c, inst.Offset)
	}
	return true
}

// Err returns the error that stopped Next, if any.
func (c *Cursor) Err() error { return c.err }

// Instr returns the current instruction.
func (c *Cursor) Instr() Instruction { return c.inst }

// Offset returns the offset of the current instruction.
func (c *Cursor) Offset() Target { return Target(c.inst.Offset) }

// Code returns the IL the cursor walks.
func (c *Cursor) Code() []byte { return c.code }

// Reset moves the cursor before the first instruction. Stack tracking, if
// enabled, restarts from an empty stack.
func (c *Cursor) Reset() {
	c.inst = Instruction{}
	c.started = false
	c.done = false
	c.next = 0
	c.err = nil
	c.label = false
	if c.st != nil {
		c.st.reset()
	}
}

// TrackTargets collects every branch and switch target in one pass and
// resets the cursor. Afterwards Label reports whether the current
// instruction is a jump target.
func (c *Cursor) TrackTargets() error {
	if c.tracked {
		return nil
	}
	var labels []Target
	for off := 0; off < len(c.code); {
		inst, err := Decode(c.code, off)
		if err != nil {
			return err
		}
		switch inst.Operand.Kind {
		case OperandShortBrTarget, OperandBrTarget:
			labels = append(labels, inst.Operand.Target)
		case OperandSwitch:
			labels = append(labels, inst.Operand.Targets...)
		}
		off = inst.Next()
	}
	slices.Sort(labels)
	c.labels = slices.Compact(labels)
	c.tracked = true
	c.Reset()
	return nil
}

// Targets returns the sorted jump targets found by TrackTargets.
func (c *Cursor) Targets() []Target { return slices.Clone(c.labels) }

// IsLabel reports whether off is a jump target. TrackTargets must have run.
func (c *Cursor) IsLabel(off Target) bool {
	_, found := slices.BinarySearch(c.labels, off)
	return found
}

// Label reports whether the current instruction is a jump target.
func (c *Cursor) Label() (Target, bool) {
	return Target(c.inst.Offset), c.label
}

// GoTo positions the cursor on the instruction at t. With stack tracking
// the stack is rebuilt by replaying from the nearest statement start.
func (c *Cursor) GoTo(t Target) error {
	if int(t) < 0 || int(t) >= len(c.code) {
		return clierrors.InvalidInput(clierrors.PhaseIL, "%s is outside the code", t)
	}
	if c.st == nil {
		return c.decodeAt(int(t))
	}

	switch {
	case c.started && int(t) >= c.st.lastStatement && int(t) <= c.inst.Offset:
		if err := c.rewind(c.st.lastStatement); err != nil {
			return err
		}
	case !c.started || int(t) < c.st.lastStatement:
		c.Reset()
		if !c.Next() {
			return c.stopped(t)
		}
	}
	for c.inst.Offset < int(t) {
		if !c.Next() {
			return c.stopped(t)
		}
	}
	if c.inst.Offset != int(t) {
		return clierrors.InvalidInput(clierrors.PhaseIL, "%s is not an instruction boundary", t)
	}
	return nil
}

func (c *Cursor) stopped(t Target) error {
	if c.err != nil {
		return c.err
	}
	return clierrors.InvalidInput(clierrors.PhaseIL, "%s was not reached", t)
}

// decodeAt positions the cursor on the instruction at off without stack
// simulation.
func (c *Cursor) decodeAt(off int) error {
	inst, err := Decode(c.code, off)
	if err != nil {
		return err
	}
	c.inst = inst
	c.started = true
	c.done = false
	c.next = inst.Next()
	c.err = nil
	if c.tracked {
		c.label = c.IsLabel(Target(off))
	}
	return nil
}

// rewind positions the cursor on the instruction at off with an empty
// stack. off must be a point where the simulated stack was empty.
func (c *Cursor) rewind(off int) error {
	c.next = off
	c.started = false
	c.done = false
	c.err = nil
	c.st.slots = c.st.slots[:0]
	c.st.dead = false
	if !c.Next() {
		return c.stopped(Target(off))
	}
	return nil
}

// Scope is the approximate live range of a local: the first and last
// instruction that loads, stores or takes the address of it.
type Scope struct {
	Begin Target
	End   Target
	Used  bool
}

// LocalScope approximates the scope of each of n locals. The cursor
// position is not affected.
func (c *Cursor) LocalScope(n int) ([]Scope, error) {
	if c.scopes != nil && len(c.scopes) == n {
		return c.scopes, nil
	}
	scopes := make([]Scope, n)
	for off := 0; off < len(c.code); {
		inst, err := Decode(c.code, off)
		if err != nil {
			return nil, err
		}
		off = inst.Next()

		norm := Normalize(inst)
		switch norm.Op {
		case Ldloc, Stloc, Ldloca:
		default:
			continue
		}
		idx := int(norm.Operand.Int)
		if idx >= n {
			return nil, clierrors.Format(clierrors.PhaseIL, int64(inst.Offset), "local %d out of range (%d locals)", idx, n)
		}
		s := &scopes[idx]
		if !s.Used {
			s.Begin, s.Used = Target(inst.Offset), true
		}
		s.End = Target(inst.Offset)
	}
	c.scopes = scopes
	return scopes, nil
}

// State is an opaque cursor position returned by SaveState.
type State struct {
	offset        int
	started       bool
	tracked       bool
	lastStatement int
}

// SaveState records the current position.
func (c *Cursor) SaveState() State {
	s := State{offset: c.inst.Offset, started: c.started}
	if c.st != nil {
		s.tracked = true
		s.lastStatement = c.st.lastStatement
	}
	return s
}

// RestoreState returns to a position recorded by SaveState. A tracked
// stack is rebuilt by replaying from the statement start.
func (c *Cursor) RestoreState(s State) error {
	if !s.started {
		c.Reset()
		return nil
	}
	if !s.tracked || c.st == nil {
		return c.decodeAt(s.offset)
	}
	if err := c.rewind(s.lastStatement); err != nil {
		return err
	}
	for c.inst.Offset < s.offset {
		if !c.Next() {
			return c.stopped(Target(s.offset))
		}
	}
	return nil
}

// Resolved is an instruction operand looked up in the image. Only the
// fields matching the operand are set.
type Resolved struct {
	Kind   OperandKind
	Token  metadata.Token
	String string
	Name   string
	Method *signature.MethodSig
	Field  signature.Type
	Type   signature.Type
}

// Resolve looks up the token operand of the current instruction.
func (c *Cursor) Resolve(img *metadata.Image) (Resolved, error) {
	o := c.inst.Operand
	r := Resolved{Kind: o.Kind, Token: o.Token}
	if !o.Kind.IsToken() {
		return r, clierrors.InvalidInput(clierrors.PhaseIL, "%s has no token operand", c.inst.Op)
	}

	var err error
	switch o.Kind {
	case OperandString:
		if o.Token.Table() != metadata.TableUserString {
			return r, clierrors.Format(clierrors.PhaseIL, int64(c.inst.Offset), "ldstr operand %s is not a user string", o.Token)
		}
		r.String, err = img.UserStrings().Get(o.Token.Row())
	case OperandSig:
		r.Method, err = signature.ForStandAlone(img, o.Token)
	case OperandMethod:
		err = resolveMethod(img, &r)
	case OperandField:
		err = resolveField(img, &r)
	case OperandType:
		r.Type, err = TypeOf(img, o.Token)
	case OperandTok:
		switch {
		case img.IsMethodToken(o.Token):
			err = resolveMethod(img, &r)
		case img.IsFieldToken(o.Token):
			err = resolveField(img, &r)
		default:
			r.Type, err = TypeOf(img, o.Token)
		}
	}
	return r, err
}

func resolveMethod(img *metadata.Image, r *Resolved) error {
	var err error
	if r.Method, err = signature.ForMethod(img, r.Token); err != nil {
		return err
	}
	r.Name, err = img.FullMemberName(r.Token)
	return err
}

func resolveField(img *metadata.Image, r *Resolved) error {
	var err error
	if r.Field, err = signature.ForField(img, r.Token); err != nil {
		return err
	}
	r.Name, err = img.FullMemberName(r.Token)
	return err
}

// TypeOf returns the type named by a TypeDef, TypeRef or TypeSpec token.
func TypeOf(img *metadata.Image, tok metadata.Token) (signature.Type, error) {
	switch tok.Table() {
	case metadata.TableTypeDef, metadata.TableTypeRef:
		return signature.Compound{Token: tok, ValueType: img.IsValueType(tok)}, nil
	case metadata.TableTypeSpec:
		return signature.TypeSpecOf(img, tok)
	}
	return nil, clierrors.InvalidInput(clierrors.PhaseIL, "%s is not a type token", tok)
}
