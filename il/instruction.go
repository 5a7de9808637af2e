package il

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	clierrors "github.com/brickbot/clifile/errors"
	"github.com/brickbot/clifile/internal/stream"
	"github.com/brickbot/clifile/metadata"
)

// Target is an absolute offset into a method's IL stream.
type Target int

func (t Target) String() string { return fmt.Sprintf("IL_%04X", int(t)) }

// Operand is the decoded inline operand of an instruction. Kind selects
// which of the other fields is meaningful.
type Operand struct {
	Kind    OperandKind
	Int     int64          // ShortI, I, I8, ShortVar, Var
	Float   float64        // ShortR, R
	Token   metadata.Token // Field, Method, Sig, String, Tok, Type
	Target  Target         // ShortBrTarget, BrTarget
	Targets []Target       // Switch
}

// Instruction is one decoded IL instruction.
type Instruction struct {
	Offset  int
	Op      Opcode
	Size    int
	Operand Operand
}

// Next returns the offset of the instruction that follows i.
func (i Instruction) Next() int { return i.Offset + i.Size }

func (i Instruction) String() string {
	var b strings.Builder
	b.WriteString(Target(i.Offset).String())
	b.WriteString(": ")
	b.WriteString(i.Op.String())
	if s := i.Operand.String(); s != "" {
		b.WriteByte(' ')
		b.WriteString(s)
	}
	return b.String()
}

func (o Operand) String() string {
	switch o.Kind {
	case OperandNone:
		return ""
	case OperandShortI, OperandI, OperandI8, OperandShortVar, OperandVar:
		return strconv.FormatInt(o.Int, 10)
	case OperandShortR, OperandR:
		return strconv.FormatFloat(o.Float, 'g', -1, 64)
	case OperandShortBrTarget, OperandBrTarget:
		return o.Target.String()
	case OperandSwitch:
		parts := make([]string, len(o.Targets))
		for i, t := range o.Targets {
			parts[i] = t.String()
		}
		return "(" + strings.Join(parts, ", ") + ")"
	}
	return o.Token.String()
}

// Decode decodes the instruction starting at offset in code. Branch and
// switch targets are made absolute.
func Decode(code []byte, offset int) (Instruction, error) {
	r := stream.NewReader(code)
	if err := r.SetOffset(offset); err != nil || offset >= len(code) {
		return Instruction{}, clierrors.Bounds(clierrors.PhaseIL, int64(offset), "instruction offset past end of code")
	}

	b, _ := r.ReadU8()
	op := Opcode(b)
	if b == prefix {
		second, err := r.ReadU8()
		if err != nil {
			return Instruction{}, clierrors.Bounds(clierrors.PhaseIL, int64(offset), "truncated two-byte opcode")
		}
		op = Opcode(prefix)<<8 | Opcode(second)
	}
	info, ok := op.Info()
	if !ok {
		return Instruction{}, clierrors.Format(clierrors.PhaseIL, int64(offset), "unassigned opcode %s", op)
	}

	inst := Instruction{Offset: offset, Op: op}
	operand, err := readOperand(r, info.Operand)
	if err != nil {
		if errors.Is(err, stream.ErrUnexpectedEOF) {
			return Instruction{}, clierrors.Wrap(clierrors.PhaseIL, clierrors.KindOutOfBounds, int64(offset), err,
				"truncated %s operand of %s", info.Operand, info.Name)
		}
		return Instruction{}, err
	}
	inst.Size = r.Offset() - offset
	inst.Operand = operand

	next := Target(inst.Next())
	switch info.Operand {
	case OperandShortBrTarget, OperandBrTarget:
		inst.Operand.Target += next
	case OperandSwitch:
		for i := range inst.Operand.Targets {
			inst.Operand.Targets[i] += next
		}
	}
	return inst, nil
}

func readOperand(r *stream.Reader, kind OperandKind) (Operand, error) {
	o := Operand{Kind: kind}
	switch kind {
	case OperandNone:
	case OperandShortI:
		v, err := r.ReadI8()
		if err != nil {
			return o, err
		}
		o.Int = int64(v)
	case OperandShortVar:
		v, err := r.ReadU8()
		if err != nil {
			return o, err
		}
		o.Int = int64(v)
	case OperandVar:
		v, err := r.ReadU16()
		if err != nil {
			return o, err
		}
		o.Int = int64(v)
	case OperandI:
		v, err := r.ReadI32()
		if err != nil {
			return o, err
		}
		o.Int = int64(v)
	case OperandI8:
		v, err := r.ReadI64()
		if err != nil {
			return o, err
		}
		o.Int = v
	case OperandShortR:
		v, err := r.ReadFloat32()
		if err != nil {
			return o, err
		}
		o.Float = float64(v)
	case OperandR:
		v, err := r.ReadFloat64()
		if err != nil {
			return o, err
		}
		o.Float = v
	case OperandShortBrTarget:
		v, err := r.ReadI8()
		if err != nil {
			return o, err
		}
		o.Target = Target(v)
	case OperandBrTarget:
		v, err := r.ReadI32()
		if err != nil {
			return o, err
		}
		o.Target = Target(v)
	case OperandField, OperandMethod, OperandSig, OperandString, OperandTok, OperandType:
		v, err := r.ReadU32()
		if err != nil {
			return o, err
		}
		o.Token = metadata.Token(v)
	case OperandSwitch:
		at := r.Offset()
		n, err := r.ReadU32()
		if err != nil {
			return o, err
		}
		if uint64(n)*4 > uint64(r.Remaining()) {
			return o, clierrors.Bounds(clierrors.PhaseIL, int64(at), "switch with %d targets exceeds the code", n)
		}
		o.Targets = make([]Target, n)
		for i := range o.Targets {
			v, _ := r.ReadI32()
			o.Targets[i] = Target(v)
		}
	case OperandPhi:
		return o, clierrors.Unsupported(clierrors.PhaseIL, int64(r.Offset()), "phi operands")
	}
	return o, nil
}

var shortForms = map[Opcode]Opcode{
	LdargS: Ldarg, LdargaS: Ldarga, StargS: Starg,
	LdlocS: Ldloc, LdlocaS: Ldloca, StlocS: Stloc,
	LdcI4S: LdcI4,
	BrS:    Br, BrfalseS: Brfalse, BrtrueS: Brtrue,
	BeqS:   Beq, BgeS: Bge, BgtS: Bgt, BleS: Ble, BltS: Blt,
	BneUnS: BneUn, BgeUnS: BgeUn, BgtUnS: BgtUn, BleUnS: BleUn, BltUnS: BltUn,
	LeaveS: Leave,
}

// Normalize rewrites macro and short forms to their long equivalents so
// that analyses see one opcode per operation: ldc.i4.N and ldc.i4.s become
// ldc.i4, ldarg.N/ldloc.N/stloc.N and the .s variable forms take their
// index as an operand, and short branches become long branches. Offset and
// Size still describe the encoded instruction. Unsigned branch variants
// keep their own opcodes.
func Normalize(i Instruction) Instruction {
	switch {
	case i.Op >= LdcI4M1 && i.Op <= LdcI48:
		i.Operand = Operand{Kind: OperandI, Int: int64(i.Op) - int64(LdcI40)}
		i.Op = LdcI4
		return i
	case i.Op >= Ldarg0 && i.Op <= Ldarg3:
		i.Operand = Operand{Kind: OperandVar, Int: int64(i.Op - Ldarg0)}
		i.Op = Ldarg
		return i
	case i.Op >= Ldloc0 && i.Op <= Ldloc3:
		i.Operand = Operand{Kind: OperandVar, Int: int64(i.Op - Ldloc0)}
		i.Op = Ldloc
		return i
	case i.Op >= Stloc0 && i.Op <= Stloc3:
		i.Operand = Operand{Kind: OperandVar, Int: int64(i.Op - Stloc0)}
		i.Op = Stloc
		return i
	}

	long, ok := shortForms[i.Op]
	if !ok {
		return i
	}
	i.Op = long
	i.Operand.Kind = long.OperandKind()
	return i
}
