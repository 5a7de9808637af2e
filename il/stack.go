package il

import (
	"fmt"
	"iter"

	"go.uber.org/zap"

	clierrors "github.com/brickbot/clifile/errors"
	"github.com/brickbot/clifile/metadata"
	"github.com/brickbot/clifile/signature"
)

// Category is the verification type of an evaluation stack slot.
type Category uint8

const (
	None Category = iota
	Int32
	Int64
	NativeInt
	Float
	ObjectRef
	ManagedRef
)

var categoryNames = [...]string{"none", "int32", "int64", "native int", "float", "object", "managed ref"}

func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return fmt.Sprintf("Category(%d)", c)
}

// StackSlot is one simulated stack entry. Source is the instruction that
// pushed it. Type is nil when the producer carries no type information.
type StackSlot struct {
	Category Category
	Type     signature.Type
	Source   Target
}

func (s StackSlot) String() string {
	if s.Type == nil {
		return fmt.Sprintf("%s@%s", s.Category, s.Source)
	}
	return fmt.Sprintf("%s(%s)@%s", s.Category, s.Type, s.Source)
}

// CategoryOf maps a signature type to its stack category. Value types map
// to None.
func CategoryOf(t signature.Type) Category {
	switch v := signature.Underlying(t).(type) {
	case signature.Primitive:
		switch v.Type {
		case metadata.ElementBoolean, metadata.ElementChar,
			metadata.ElementI1, metadata.ElementU1, metadata.ElementI2, metadata.ElementU2,
			metadata.ElementI4, metadata.ElementU4:
			return Int32
		case metadata.ElementI8, metadata.ElementU8:
			return Int64
		case metadata.ElementI, metadata.ElementU:
			return NativeInt
		case metadata.ElementR4, metadata.ElementR8:
			return Float
		case metadata.ElementString, metadata.ElementObject:
			return ObjectRef
		}
	case signature.Compound:
		if !v.ValueType {
			return ObjectRef
		}
	case signature.SzArray, signature.Array:
		return ObjectRef
	case signature.ByRef:
		return ManagedRef
	case signature.Pointer, signature.FnPtr:
		return NativeInt
	}
	return None
}

func slotOf(t signature.Type, at Target) StackSlot {
	return StackSlot{Category: CategoryOf(t), Type: t, Source: at}
}

func prim(et metadata.ElementType) signature.Type { return signature.Primitive{Type: et} }

// stackState is the simulated evaluation stack of a tracking cursor.
type stackState struct {
	args   []signature.Type
	locals []signature.Type
	slots  []StackSlot

	// snapshots holds the stack recorded at forward branch targets.
	snapshots map[int][]StackSlot
	dead      bool

	lastStatement int

	// Effect of the last applied instruction, used by CallLoadArguments.
	popped, pushed int
	reshaped       bool
}

func (s *stackState) reset() {
	s.slots = s.slots[:0]
	clear(s.snapshots)
	s.dead = false
	s.lastStatement = 0
	s.popped, s.pushed, s.reshaped = 0, 0, false
}

// TrackStack enables stack simulation and resets the cursor. args includes
// the receiver of instance methods; see ArgumentTypes. maxStack only sizes
// the initial allocation.
func (c *Cursor) TrackStack(args, locals []signature.Type, maxStack int) error {
	if maxStack < 0 {
		return clierrors.InvalidInput(clierrors.PhaseStack, "negative max stack %d", maxStack)
	}
	c.st = &stackState{
		args:      args,
		locals:    locals,
		slots:     make([]StackSlot, 0, maxStack),
		snapshots: make(map[int][]StackSlot),
	}
	c.Reset()
	return nil
}

// SetHandlers registers exception handlers. On entry to a catch or filter
// block the stack holds the exception object; finally and fault blocks
// start empty.
func (c *Cursor) SetHandlers(clauses []EHClause) {
	c.handlers = make(map[int]handlerEntry, len(clauses))
	for _, cl := range clauses {
		c.handlers[cl.HandlerOffset] = handlerEntry{kind: cl.Kind, class: cl.ClassToken}
		if cl.Kind == ClauseFilter {
			c.handlers[cl.FilterOffset] = handlerEntry{kind: cl.Kind}
		}
	}
}

// ArgumentTypes returns the argument types of a MethodDef, with the
// receiver first for instance methods. Value-type receivers are passed by
// reference.
func ArgumentTypes(img *metadata.Image, methodTok metadata.Token) ([]signature.Type, error) {
	if methodTok.Table() != metadata.TableMethodDef {
		return nil, clierrors.InvalidInput(clierrors.PhaseStack, "%s is not a method definition", methodTok)
	}
	sig, err := signature.ForMethod(img, methodTok)
	if err != nil {
		return nil, err
	}
	params, err := sig.ParamTypes()
	if err != nil {
		return nil, err
	}
	if !sig.HasThis || sig.ExplicitThis {
		return params, nil
	}

	owner, err := img.DeclaringType(methodTok)
	if err != nil {
		return nil, err
	}
	var recv signature.Type = signature.Compound{Token: owner}
	if img.IsValueType(owner) {
		recv = signature.ByRef{Elem: signature.Compound{Token: owner, ValueType: true}}
	}
	return append([]signature.Type{recv}, params...), nil
}

func (c *Cursor) requireStack() error {
	if c.st == nil {
		return clierrors.InvalidInput(clierrors.PhaseStack, "stack tracking is not enabled")
	}
	return nil
}

// BeginStatement reports whether the current instruction starts a
// statement: the stack is empty before it executes.
func (c *Cursor) BeginStatement() (bool, error) {
	if err := c.requireStack(); err != nil {
		return false, err
	}
	return len(c.st.slots) == 0, nil
}

// Stack returns a copy of the simulated stack, top last.
func (c *Cursor) Stack() []StackSlot {
	if c.st == nil {
		return nil
	}
	out := make([]StackSlot, len(c.st.slots))
	copy(out, c.st.slots)
	return out
}

// IsCall reports whether the current instruction is call, calli or
// callvirt.
func (c *Cursor) IsCall() bool { return c.inst.Op.IsCall() }

// Statements resets the cursor and yields the offset of every instruction
// that starts a statement.
func (c *Cursor) Statements() iter.Seq2[Target, error] {
	return func(yield func(Target, error) bool) {
		if err := c.requireStack(); err != nil {
			yield(0, err)
			return
		}
		c.Reset()
		for c.Next() {
			if len(c.st.slots) == 0 && !yield(c.Offset(), nil) {
				return
			}
		}
		if c.err != nil {
			yield(c.Offset(), c.err)
		}
	}
}

// BackToStatement returns to the first instruction of the current
// statement, replaying the stack from empty.
func (c *Cursor) BackToStatement() error {
	if err := c.requireStack(); err != nil {
		return err
	}
	if !c.started {
		return nil
	}
	return c.rewind(c.st.lastStatement)
}

// CallLoadArguments returns, for the call instruction under the cursor, the
// offset of the first instruction of each argument expression, receiver
// first. It replays the current statement to find them and restores the
// cursor afterwards.
func (c *Cursor) CallLoadArguments() ([]Target, error) {
	if err := c.requireStack(); err != nil {
		return nil, err
	}
	if !c.IsCall() {
		return nil, clierrors.InvalidInput(clierrors.PhaseStack, "%s at %s is not a call", c.inst.Op, c.Offset())
	}
	n, extra, err := c.callPops(c.inst)
	if err != nil {
		return nil, err
	}
	if len(c.st.slots) < n+extra {
		return nil, clierrors.StackShape(int64(c.inst.Offset), "%s needs %d values, stack has %d", c.inst.Op, n+extra, len(c.st.slots))
	}

	saved := c.SaveState()
	call := c.inst.Offset
	if err := c.rewind(c.st.lastStatement); err != nil {
		return nil, err
	}

	origins := c.sources()
	for c.inst.Offset < call {
		prev := Target(c.inst.Offset)
		if !c.Next() {
			return nil, c.stopped(Target(call))
		}
		if c.st.reshaped {
			origins = c.sources()
			continue
		}
		start := prev
		if p := c.st.popped; p > 0 {
			start = origins[len(origins)-p]
			origins = origins[:len(origins)-p]
		}
		for range c.st.pushed {
			origins = append(origins, start)
		}
	}

	top := len(origins) - extra
	out := make([]Target, n)
	copy(out, origins[top-n:top])
	if err := c.RestoreState(saved); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Cursor) sources() []Target {
	out := make([]Target, len(c.st.slots))
	for i, s := range c.st.slots {
		out[i] = s.Source
	}
	return out
}

// callPops returns the number of argument values a call-family instruction
// consumes, receiver included, and the number of extra values above them
// (the function pointer of calli).
func (c *Cursor) callPops(inst Instruction) (args, extra int, err error) {
	sig, err := c.calleeSignature(inst)
	if err != nil {
		return 0, 0, err
	}
	switch inst.Op {
	case Calli:
		return sig.ArgCount(), 1, nil
	case Callvirt:
		if !sig.HasThis {
			return sig.ParamCount + 1, 0, nil
		}
	case Newobj:
		return sig.ParamCount, 0, nil
	}
	return sig.ArgCount(), 0, nil
}

func (c *Cursor) calleeSignature(inst Instruction) (*signature.MethodSig, error) {
	if c.img == nil {
		return nil, clierrors.InvalidInput(clierrors.PhaseStack, "resolving %s at %s needs an image", inst.Op, Target(inst.Offset))
	}
	if inst.Op == Calli {
		return signature.ForStandAlone(c.img, inst.Operand.Token)
	}
	return signature.ForMethod(c.img, inst.Operand.Token)
}

// enter prepares the stack for the instruction at off: handler entry,
// restoring after an unconditional transfer, and statement bookkeeping.
func (s *stackState) enter(c *Cursor, off int) {
	s.reshaped = false
	if h, ok := c.handlers[off]; ok {
		s.slots = s.slots[:0]
		if h.kind == ClauseCatch || h.kind == ClauseFilter {
			var t signature.Type
			if h.kind == ClauseCatch && c.img != nil && !h.class.IsNil() {
				t, _ = TypeOf(c.img, h.class)
			}
			s.slots = append(s.slots, StackSlot{Category: ObjectRef, Type: t, Source: Target(off)})
		}
		s.reshaped = true
		metadata.Logger().Debug("stack reset at handler entry",
			zap.Int("offset", off), zap.Stringer("kind", h.kind))
	} else if s.dead {
		snap, ok := s.snapshots[off]
		s.slots = append(s.slots[:0], snap...)
		s.reshaped = true
		if ok {
			metadata.Logger().Debug("stack restored from branch snapshot",
				zap.Int("offset", off), zap.Int("depth", len(snap)))
		}
	} else if snap, ok := s.snapshots[off]; ok && len(snap) != len(s.slots) {
		metadata.Logger().Debug("stack depth differs at join point",
			zap.Int("offset", off), zap.Int("fallthrough", len(s.slots)), zap.Int("branch", len(snap)))
	}
	s.dead = false
	if len(s.slots) == 0 {
		s.lastStatement = off
	}
}

func (s *stackState) underflow(at Target, op Opcode, n int) error {
	return clierrors.StackShape(int64(at), "%s needs %d values, stack has %d", op, n, len(s.slots))
}

func (s *stackState) pop(at Target, op Opcode, n int) ([]StackSlot, error) {
	if len(s.slots) < n {
		return nil, s.underflow(at, op, n)
	}
	top := len(s.slots) - n
	out := make([]StackSlot, n)
	copy(out, s.slots[top:])
	s.slots = s.slots[:top]
	s.popped += n
	return out, nil
}

func (s *stackState) push(slots ...StackSlot) {
	s.slots = append(s.slots, slots...)
	s.pushed += len(slots)
}

func (s *stackState) snapshot(target Target, from int) {
	if int(target) <= from {
		return
	}
	if _, ok := s.snapshots[int(target)]; ok {
		return
	}
	s.snapshots[int(target)] = append([]StackSlot(nil), s.slots...)
}

// apply runs the stack effect of inst.
func (s *stackState) apply(c *Cursor, inst Instruction) error {
	s.popped, s.pushed = 0, 0
	at := Target(inst.Offset)
	n := Normalize(inst)

	if err := s.effect(c, n, at); err != nil {
		return err
	}

	switch inst.Op.Flow() {
	case FlowCondBranch:
		if inst.Op == Switch {
			for _, t := range inst.Operand.Targets {
				s.snapshot(t, inst.Offset)
			}
		} else {
			s.snapshot(inst.Operand.Target, inst.Offset)
		}
	case FlowBranch:
		s.snapshot(inst.Operand.Target, inst.Offset)
		s.dead = true
	case FlowReturn, FlowThrow:
		s.dead = true
	}
	if inst.Op == Jmp {
		s.dead = true
	}
	return nil
}

func (s *stackState) effect(c *Cursor, in Instruction, at Target) error {
	op := in.Op
	info, _ := op.Info()

	switch op {
	case Nop, Break, Ckfinite, Unaligned, Volatile, Tail, Constrained, No, Readonly,
		Br, Rethrow:
		return nil

	case Ldarg, Ldarga:
		t, err := s.variable(at, s.args, in.Operand.Int, "argument")
		if err != nil {
			return err
		}
		if op == Ldarga {
			s.push(StackSlot{Category: ManagedRef, Type: byRef(t), Source: at})
		} else {
			s.push(slotOf(t, at))
		}
		return nil

	case Ldloc, Ldloca:
		t, err := s.variable(at, s.locals, in.Operand.Int, "local")
		if err != nil {
			return err
		}
		if op == Ldloca {
			s.push(StackSlot{Category: ManagedRef, Type: byRef(t), Source: at})
		} else {
			s.push(slotOf(t, at))
		}
		return nil

	case Starg, Stloc:
		_, err := s.pop(at, op, 1)
		return err

	case Ldnull:
		s.push(StackSlot{Category: ObjectRef, Source: at})
	case LdcI4:
		s.push(slotOf(prim(metadata.ElementI4), at))
	case LdcI8:
		s.push(slotOf(prim(metadata.ElementI8), at))
	case LdcR4:
		s.push(slotOf(prim(metadata.ElementR4), at))
	case LdcR8:
		s.push(slotOf(prim(metadata.ElementR8), at))
	case Ldstr:
		s.push(slotOf(prim(metadata.ElementString), at))

	case Dup:
		v, err := s.pop(at, op, 1)
		if err != nil {
			return err
		}
		cp := v[0]
		cp.Source = at
		s.push(v[0], cp)

	case Jmp:
		if len(s.slots) != 0 {
			return clierrors.StackShape(int64(at), "jmp with %d values on the stack", len(s.slots))
		}

	case Call, Callvirt, Calli, Newobj:
		return s.call(c, in, at)

	case Ret:
		if len(s.slots) > 1 {
			return clierrors.StackShape(int64(at), "ret with %d values on the stack", len(s.slots))
		}
		_, err := s.pop(at, op, len(s.slots))
		return err

	case Leave, Endfinally:
		s.popped += len(s.slots)
		s.slots = s.slots[:0]

	case Endfilter:
		if len(s.slots) != 1 {
			return clierrors.StackShape(int64(at), "endfilter with %d values on the stack", len(s.slots))
		}
		_, err := s.pop(at, op, 1)
		return err

	case Beq, Bge, Bgt, Ble, Blt, BneUn, BgeUn, BgtUn, BleUn, BltUn, Ceq, Cgt, CgtUn, Clt, CltUn:
		v, err := s.pop(at, op, 2)
		if err != nil {
			return err
		}
		if !canCompare(v[0].Category, v[1].Category) {
			return clierrors.StackShape(int64(at), "%s cannot compare %s with %s", op, v[0].Category, v[1].Category)
		}
		if info.Pushes == 1 {
			s.push(slotOf(prim(metadata.ElementI4), at))
		}

	case Add, Sub, Mul, Div, Rem, AddOvf, AddOvfUn, SubOvf, SubOvfUn, MulOvf, MulOvfUn,
		DivUn, RemUn, And, Or, Xor:
		return s.binary(op, at)

	case Shl, Shr, ShrUn:
		v, err := s.pop(at, op, 2)
		if err != nil {
			return err
		}
		if !isInteger(v[0].Category) || (v[1].Category != Int32 && v[1].Category != NativeInt) {
			return clierrors.StackShape(int64(at), "%s cannot shift %s by %s", op, v[0].Category, v[1].Category)
		}
		s.push(StackSlot{Category: v[0].Category, Type: v[0].Type, Source: at})

	case Neg, Not:
		v, err := s.pop(at, op, 1)
		if err != nil {
			return err
		}
		if !isInteger(v[0].Category) && !(op == Neg && v[0].Category == Float) {
			return clierrors.StackShape(int64(at), "%s of %s", op, v[0].Category)
		}
		s.push(StackSlot{Category: v[0].Category, Type: v[0].Type, Source: at})

	case ConvI1, ConvI2, ConvI4, ConvU1, ConvU2, ConvU4,
		ConvOvfI1, ConvOvfI2, ConvOvfI4, ConvOvfU1, ConvOvfU2, ConvOvfU4,
		ConvOvfI1Un, ConvOvfI2Un, ConvOvfI4Un, ConvOvfU1Un, ConvOvfU2Un, ConvOvfU4Un:
		return s.convert(op, at, metadata.ElementI4)
	case ConvI8, ConvU8, ConvOvfI8, ConvOvfU8, ConvOvfI8Un, ConvOvfU8Un:
		return s.convert(op, at, metadata.ElementI8)
	case ConvI, ConvU, ConvOvfI, ConvOvfU, ConvOvfIUn, ConvOvfUUn:
		return s.convert(op, at, metadata.ElementI)
	case ConvR4:
		return s.convert(op, at, metadata.ElementR4)
	case ConvR8, ConvRUn:
		return s.convert(op, at, metadata.ElementR8)

	case LdindI1, LdindU1, LdindI2, LdindU2, LdindI4, LdindU4:
		return s.load(op, at, 1, slotOf(prim(metadata.ElementI4), at))
	case LdindI8:
		return s.load(op, at, 1, slotOf(prim(metadata.ElementI8), at))
	case LdindI:
		return s.load(op, at, 1, slotOf(prim(metadata.ElementI), at))
	case LdindR4:
		return s.load(op, at, 1, slotOf(prim(metadata.ElementR4), at))
	case LdindR8:
		return s.load(op, at, 1, slotOf(prim(metadata.ElementR8), at))
	case LdindRef:
		v, err := s.pop(at, op, 1)
		if err != nil {
			return err
		}
		var t signature.Type
		if r, ok := signature.Underlying(v[0].Type).(signature.ByRef); ok {
			t = r.Elem
		}
		s.push(StackSlot{Category: ObjectRef, Type: t, Source: at})

	case LdelemI1, LdelemU1, LdelemI2, LdelemU2, LdelemI4, LdelemU4:
		return s.load(op, at, 2, slotOf(prim(metadata.ElementI4), at))
	case LdelemI8:
		return s.load(op, at, 2, slotOf(prim(metadata.ElementI8), at))
	case LdelemI:
		return s.load(op, at, 2, slotOf(prim(metadata.ElementI), at))
	case LdelemR4:
		return s.load(op, at, 2, slotOf(prim(metadata.ElementR4), at))
	case LdelemR8:
		return s.load(op, at, 2, slotOf(prim(metadata.ElementR8), at))
	case LdelemRef:
		v, err := s.pop(at, op, 2)
		if err != nil {
			return err
		}
		var t signature.Type
		if a, ok := signature.Underlying(v[0].Type).(signature.SzArray); ok {
			t = a.Elem
		}
		s.push(StackSlot{Category: ObjectRef, Type: t, Source: at})
	case Ldlen:
		return s.load(op, at, 1, slotOf(prim(metadata.ElementU), at))

	case Ldfld, Ldsfld, Ldflda, Ldsflda:
		pops := 0
		if op == Ldfld || op == Ldflda {
			pops = 1
		}
		if _, err := s.pop(at, op, pops); err != nil {
			return err
		}
		t, err := c.fieldType(in.Operand.Token)
		if err != nil {
			return err
		}
		if op == Ldflda || op == Ldsflda {
			s.push(StackSlot{Category: ManagedRef, Type: byRef(t), Source: at})
		} else {
			s.push(s.typed(t, at))
		}

	case Ldobj, UnboxAny, Ldelem:
		if _, err := s.pop(at, op, info.Pops); err != nil {
			return err
		}
		t, err := c.tokenType(in.Operand.Token)
		if err != nil {
			return err
		}
		s.push(s.typed(t, at))

	case Box, Castclass, Isinst:
		if _, err := s.pop(at, op, 1); err != nil {
			return err
		}
		t, err := c.tokenType(in.Operand.Token)
		if err != nil {
			return err
		}
		s.push(StackSlot{Category: ObjectRef, Type: t, Source: at})

	case Newarr:
		v, err := s.pop(at, op, 1)
		if err != nil {
			return err
		}
		if v[0].Category != Int32 && v[0].Category != NativeInt {
			return clierrors.StackShape(int64(at), "newarr length is %s", v[0].Category)
		}
		t, err := c.tokenType(in.Operand.Token)
		if err != nil {
			return err
		}
		var arr signature.Type
		if t != nil {
			arr = signature.SzArray{Elem: t}
		}
		s.push(StackSlot{Category: ObjectRef, Type: arr, Source: at})

	case Unbox, Ldelema, Refanyval:
		if _, err := s.pop(at, op, info.Pops); err != nil {
			return err
		}
		t, err := c.tokenType(in.Operand.Token)
		if err != nil {
			return err
		}
		s.push(StackSlot{Category: ManagedRef, Type: byRef(t), Source: at})

	case Mkrefany:
		return s.load(op, at, 1, StackSlot{Category: None, Type: prim(metadata.ElementTypedByRef), Source: at})
	case Refanytype:
		return s.load(op, at, 1, StackSlot{Category: None, Source: at})
	case Ldtoken, Arglist:
		s.push(StackSlot{Category: None, Source: at})
	case Sizeof:
		s.push(slotOf(prim(metadata.ElementU4), at))
	case Localloc:
		return s.load(op, at, 1, slotOf(prim(metadata.ElementU), at))

	case Ldftn, Ldvirtftn:
		if _, err := s.pop(at, op, info.Pops); err != nil {
			return err
		}
		var t signature.Type
		if c.img != nil {
			if sig, err := signature.ForMethod(c.img, in.Operand.Token); err == nil {
				t = signature.FnPtr{Sig: sig}
			}
		}
		s.push(StackSlot{Category: NativeInt, Type: t, Source: at})

	default:
		// Everything left only consumes values: stores, branches on one
		// value, switch, throw, pop and the block operations.
		if info.Pops < 0 || info.Pushes != 0 {
			return clierrors.Unsupported(clierrors.PhaseStack, int64(at), "stack effect of %s", op)
		}
		_, err := s.pop(at, op, info.Pops)
		return err
	}
	return nil
}

func (s *stackState) variable(at Target, vars []signature.Type, idx int64, what string) (signature.Type, error) {
	if idx < 0 || idx >= int64(len(vars)) {
		return nil, clierrors.StackShape(int64(at), "%s %d out of range (%d declared)", what, idx, len(vars))
	}
	return vars[idx], nil
}

func (s *stackState) load(op Opcode, at Target, pops int, result StackSlot) error {
	if _, err := s.pop(at, op, pops); err != nil {
		return err
	}
	s.push(result)
	return nil
}

func (s *stackState) typed(t signature.Type, at Target) StackSlot {
	if t == nil {
		return StackSlot{Category: None, Source: at}
	}
	return slotOf(t, at)
}

func (s *stackState) convert(op Opcode, at Target, to metadata.ElementType) error {
	v, err := s.pop(at, op, 1)
	if err != nil {
		return err
	}
	if v[0].Category == None {
		return clierrors.StackShape(int64(at), "%s of a value type", op)
	}
	s.push(slotOf(prim(to), at))
	return nil
}

func (s *stackState) call(c *Cursor, in Instruction, at Target) error {
	sig, err := c.calleeSignature(in)
	if err != nil {
		return err
	}
	n, extra, err := c.callPops(in)
	if err != nil {
		return err
	}
	if _, err := s.pop(at, in.Op, n+extra); err != nil {
		return err
	}

	if in.Op == Newobj {
		t, err := c.declaringType(in.Operand.Token)
		if err != nil {
			return err
		}
		slot := s.typed(t, at)
		if t == nil {
			slot.Category = ObjectRef
		}
		s.push(slot)
		return nil
	}
	if !sig.ReturnsVoid() {
		s.push(slotOf(sig.Return, at))
	}
	return nil
}

// binary applies the operand promotion of the arithmetic and bitwise
// opcodes.
func (s *stackState) binary(op Opcode, at Target) error {
	v, err := s.pop(at, op, 2)
	if err != nil {
		return err
	}
	a, b := v[0], v[1]

	var allowFloat, allowRef bool
	switch op {
	case Add, Sub:
		allowFloat, allowRef = true, true
	case Mul, Div, Rem:
		allowFloat = true
	case AddOvfUn, SubOvfUn:
		allowRef = true
	}

	res := StackSlot{Source: at}
	switch {
	case isNativeOr32(a.Category) && isNativeOr32(b.Category):
		res.Category = Int32
		if a.Category == NativeInt || b.Category == NativeInt {
			res.Category = NativeInt
		}
	case a.Category == Int64 && b.Category == Int64:
		res.Category = Int64
	case a.Category == Float && b.Category == Float && allowFloat:
		res.Category = Float
	case allowRef && a.Category == ManagedRef && isNativeOr32(b.Category):
		res.Category, res.Type = ManagedRef, a.Type
	case allowRef && isNativeOr32(a.Category) && b.Category == ManagedRef && (op == Add || op == AddOvfUn):
		res.Category, res.Type = ManagedRef, b.Type
	case allowRef && a.Category == ManagedRef && b.Category == ManagedRef && (op == Sub || op == SubOvfUn):
		res.Category = NativeInt
	default:
		return clierrors.StackShape(int64(at), "%s cannot combine %s and %s", op, a.Category, b.Category)
	}
	if res.Type == nil {
		res.Type = categoryType(res.Category)
	}
	s.push(res)
	return nil
}

func categoryType(c Category) signature.Type {
	switch c {
	case Int32:
		return prim(metadata.ElementI4)
	case Int64:
		return prim(metadata.ElementI8)
	case NativeInt:
		return prim(metadata.ElementI)
	case Float:
		return prim(metadata.ElementR8)
	}
	return nil
}

func isNativeOr32(c Category) bool { return c == Int32 || c == NativeInt }

func isInteger(c Category) bool { return c == Int32 || c == Int64 || c == NativeInt }

func canCompare(a, b Category) bool {
	switch {
	case isNativeOr32(a) && isNativeOr32(b):
		return true
	case a == b:
		return a != None
	case a == ManagedRef && b == NativeInt, a == NativeInt && b == ManagedRef:
		return true
	}
	return false
}

func byRef(t signature.Type) signature.Type {
	if t == nil {
		return nil
	}
	return signature.ByRef{Elem: t}
}

// fieldType resolves a field token; without an image the type is unknown.
func (c *Cursor) fieldType(tok metadata.Token) (signature.Type, error) {
	if c.img == nil {
		return nil, nil
	}
	return signature.ForField(c.img, tok)
}

func (c *Cursor) tokenType(tok metadata.Token) (signature.Type, error) {
	if c.img == nil {
		return nil, nil
	}
	return TypeOf(c.img, tok)
}

// declaringType returns the type a constructor token belongs to.
func (c *Cursor) declaringType(tok metadata.Token) (signature.Type, error) {
	if c.img == nil {
		return nil, nil
	}
	switch tok.Table() {
	case metadata.TableMethodDef:
		owner, err := c.img.DeclaringType(tok)
		if err != nil || owner.IsNil() {
			return nil, err
		}
		return TypeOf(c.img, owner)
	case metadata.TableMemberRef:
		refs := c.img.MemberRefs()
		if err := refs.Goto(tok.Row()); err != nil {
			return nil, err
		}
		parent, err := refs.Class()
		if err != nil {
			return nil, err
		}
		switch parent.Table() {
		case metadata.TableTypeDef, metadata.TableTypeRef, metadata.TableTypeSpec:
			return TypeOf(c.img, parent)
		}
	}
	return nil, nil
}
