package il

import "fmt"

// Opcode identifies an IL instruction. One-byte opcodes are their own
// value; two-byte opcodes are 0xFE00 | second byte.
type Opcode uint16

// prefix introduces the two-byte opcodes.
const prefix = 0xFE

const (
	Nop       Opcode = 0x00
	Break     Opcode = 0x01
	Ldarg0    Opcode = 0x02
	Ldarg1    Opcode = 0x03
	Ldarg2    Opcode = 0x04
	Ldarg3    Opcode = 0x05
	Ldloc0    Opcode = 0x06
	Ldloc1    Opcode = 0x07
	Ldloc2    Opcode = 0x08
	Ldloc3    Opcode = 0x09
	Stloc0    Opcode = 0x0A
	Stloc1    Opcode = 0x0B
	Stloc2    Opcode = 0x0C
	Stloc3    Opcode = 0x0D
	LdargS    Opcode = 0x0E
	LdargaS   Opcode = 0x0F
	StargS    Opcode = 0x10
	LdlocS    Opcode = 0x11
	LdlocaS   Opcode = 0x12
	StlocS    Opcode = 0x13
	Ldnull    Opcode = 0x14
	LdcI4M1   Opcode = 0x15
	LdcI40    Opcode = 0x16
	LdcI41    Opcode = 0x17
	LdcI42    Opcode = 0x18
	LdcI43    Opcode = 0x19
	LdcI44    Opcode = 0x1A
	LdcI45    Opcode = 0x1B
	LdcI46    Opcode = 0x1C
	LdcI47    Opcode = 0x1D
	LdcI48    Opcode = 0x1E
	LdcI4S    Opcode = 0x1F
	LdcI4     Opcode = 0x20
	LdcI8     Opcode = 0x21
	LdcR4     Opcode = 0x22
	LdcR8     Opcode = 0x23
	Dup       Opcode = 0x25
	Pop       Opcode = 0x26
	Jmp       Opcode = 0x27
	Call      Opcode = 0x28
	Calli     Opcode = 0x29
	Ret       Opcode = 0x2A
	BrS       Opcode = 0x2B
	BrfalseS  Opcode = 0x2C
	BrtrueS   Opcode = 0x2D
	BeqS      Opcode = 0x2E
	BgeS      Opcode = 0x2F
	BgtS      Opcode = 0x30
	BleS      Opcode = 0x31
	BltS      Opcode = 0x32
	BneUnS    Opcode = 0x33
	BgeUnS    Opcode = 0x34
	BgtUnS    Opcode = 0x35
	BleUnS    Opcode = 0x36
	BltUnS    Opcode = 0x37
	Br        Opcode = 0x38
	Brfalse   Opcode = 0x39
	Brtrue    Opcode = 0x3A
	Beq       Opcode = 0x3B
	Bge       Opcode = 0x3C
	Bgt       Opcode = 0x3D
	Ble       Opcode = 0x3E
	Blt       Opcode = 0x3F
	BneUn     Opcode = 0x40
	BgeUn     Opcode = 0x41
	BgtUn     Opcode = 0x42
	BleUn     Opcode = 0x43
	BltUn     Opcode = 0x44
	Switch    Opcode = 0x45
	LdindI1   Opcode = 0x46
	LdindU1   Opcode = 0x47
	LdindI2   Opcode = 0x48
	LdindU2   Opcode = 0x49
	LdindI4   Opcode = 0x4A
	LdindU4   Opcode = 0x4B
	LdindI8   Opcode = 0x4C
	LdindI    Opcode = 0x4D
	LdindR4   Opcode = 0x4E
	LdindR8   Opcode = 0x4F
	LdindRef  Opcode = 0x50
	StindRef  Opcode = 0x51
	StindI1   Opcode = 0x52
	StindI2   Opcode = 0x53
	StindI4   Opcode = 0x54
	StindI8   Opcode = 0x55
	StindR4   Opcode = 0x56
	StindR8   Opcode = 0x57
	Add       Opcode = 0x58
	Sub       Opcode = 0x59
	Mul       Opcode = 0x5A
	Div       Opcode = 0x5B
	DivUn     Opcode = 0x5C
	Rem       Opcode = 0x5D
	RemUn     Opcode = 0x5E
	And       Opcode = 0x5F
	Or        Opcode = 0x60
	Xor       Opcode = 0x61
	Shl       Opcode = 0x62
	Shr       Opcode = 0x63
	ShrUn     Opcode = 0x64
	Neg       Opcode = 0x65
	Not       Opcode = 0x66
	ConvI1    Opcode = 0x67
	ConvI2    Opcode = 0x68
	ConvI4    Opcode = 0x69
	ConvI8    Opcode = 0x6A
	ConvR4    Opcode = 0x6B
	ConvR8    Opcode = 0x6C
	ConvU4    Opcode = 0x6D
	ConvU8    Opcode = 0x6E
	Callvirt  Opcode = 0x6F
	Cpobj     Opcode = 0x70
	Ldobj     Opcode = 0x71
	Ldstr     Opcode = 0x72
	Newobj    Opcode = 0x73
	Castclass Opcode = 0x74
	Isinst    Opcode = 0x75
	ConvRUn   Opcode = 0x76
	Unbox     Opcode = 0x79
	Throw     Opcode = 0x7A
	Ldfld     Opcode = 0x7B
	Ldflda    Opcode = 0x7C
	Stfld     Opcode = 0x7D
	Ldsfld    Opcode = 0x7E
	Ldsflda   Opcode = 0x7F
	Stsfld    Opcode = 0x80
	Stobj     Opcode = 0x81

	ConvOvfI1Un Opcode = 0x82
	ConvOvfI2Un Opcode = 0x83
	ConvOvfI4Un Opcode = 0x84
	ConvOvfI8Un Opcode = 0x85
	ConvOvfU1Un Opcode = 0x86
	ConvOvfU2Un Opcode = 0x87
	ConvOvfU4Un Opcode = 0x88
	ConvOvfU8Un Opcode = 0x89
	ConvOvfIUn  Opcode = 0x8A
	ConvOvfUUn  Opcode = 0x8B

	Box        Opcode = 0x8C
	Newarr     Opcode = 0x8D
	Ldlen      Opcode = 0x8E
	Ldelema    Opcode = 0x8F
	LdelemI1   Opcode = 0x90
	LdelemU1   Opcode = 0x91
	LdelemI2   Opcode = 0x92
	LdelemU2   Opcode = 0x93
	LdelemI4   Opcode = 0x94
	LdelemU4   Opcode = 0x95
	LdelemI8   Opcode = 0x96
	LdelemI    Opcode = 0x97
	LdelemR4   Opcode = 0x98
	LdelemR8   Opcode = 0x99
	LdelemRef  Opcode = 0x9A
	StelemI    Opcode = 0x9B
	StelemI1   Opcode = 0x9C
	StelemI2   Opcode = 0x9D
	StelemI4   Opcode = 0x9E
	StelemI8   Opcode = 0x9F
	StelemR4   Opcode = 0xA0
	StelemR8   Opcode = 0xA1
	StelemRef  Opcode = 0xA2
	Ldelem     Opcode = 0xA3
	Stelem     Opcode = 0xA4
	UnboxAny   Opcode = 0xA5
	ConvOvfI1  Opcode = 0xB3
	ConvOvfU1  Opcode = 0xB4
	ConvOvfI2  Opcode = 0xB5
	ConvOvfU2  Opcode = 0xB6
	ConvOvfI4  Opcode = 0xB7
	ConvOvfU4  Opcode = 0xB8
	ConvOvfI8  Opcode = 0xB9
	ConvOvfU8  Opcode = 0xBA
	Refanyval  Opcode = 0xC2
	Ckfinite   Opcode = 0xC3
	Mkrefany   Opcode = 0xC6
	Ldtoken    Opcode = 0xD0
	ConvU2     Opcode = 0xD1
	ConvU1     Opcode = 0xD2
	ConvI      Opcode = 0xD3
	ConvOvfI   Opcode = 0xD4
	ConvOvfU   Opcode = 0xD5
	AddOvf     Opcode = 0xD6
	AddOvfUn   Opcode = 0xD7
	MulOvf     Opcode = 0xD8
	MulOvfUn   Opcode = 0xD9
	SubOvf     Opcode = 0xDA
	SubOvfUn   Opcode = 0xDB
	Endfinally Opcode = 0xDC
	Leave      Opcode = 0xDD
	LeaveS     Opcode = 0xDE
	StindI     Opcode = 0xDF
	ConvU      Opcode = 0xE0

	Arglist     Opcode = 0xFE00
	Ceq         Opcode = 0xFE01
	Cgt         Opcode = 0xFE02
	CgtUn       Opcode = 0xFE03
	Clt         Opcode = 0xFE04
	CltUn       Opcode = 0xFE05
	Ldftn       Opcode = 0xFE06
	Ldvirtftn   Opcode = 0xFE07
	Ldarg       Opcode = 0xFE09
	Ldarga      Opcode = 0xFE0A
	Starg       Opcode = 0xFE0B
	Ldloc       Opcode = 0xFE0C
	Ldloca      Opcode = 0xFE0D
	Stloc       Opcode = 0xFE0E
	Localloc    Opcode = 0xFE0F
	Endfilter   Opcode = 0xFE11
	Unaligned   Opcode = 0xFE12
	Volatile    Opcode = 0xFE13
	Tail        Opcode = 0xFE14
	Initobj     Opcode = 0xFE15
	Constrained Opcode = 0xFE16
	Cpblk       Opcode = 0xFE17
	Initblk     Opcode = 0xFE18
	No          Opcode = 0xFE19
	Rethrow     Opcode = 0xFE1A
	Sizeof      Opcode = 0xFE1C
	Refanytype  Opcode = 0xFE1D
	Readonly    Opcode = 0xFE1E
)

// OperandKind describes the inline operand following an opcode.
type OperandKind uint8

const (
	OperandNone OperandKind = iota
	OperandShortBrTarget
	OperandShortI
	OperandShortVar
	OperandVar
	OperandI
	OperandBrTarget
	OperandField
	OperandMethod
	OperandSig
	OperandString
	OperandTok
	OperandType
	OperandI8
	OperandR
	OperandShortR
	OperandSwitch
	OperandPhi
)

var operandNames = [...]string{
	"None", "ShortBrTarget", "ShortI", "ShortVar", "Var", "I", "BrTarget",
	"Field", "Method", "Sig", "String", "Tok", "Type", "I8", "R", "ShortR",
	"Switch", "Phi",
}

func (k OperandKind) String() string {
	if int(k) < len(operandNames) {
		return operandNames[k]
	}
	return fmt.Sprintf("OperandKind(%d)", k)
}

// Size returns the encoded size of the operand. For switch it is the size
// of the count; the targets follow.
func (k OperandKind) Size() int {
	switch k {
	case OperandShortBrTarget, OperandShortI, OperandShortVar:
		return 1
	case OperandVar:
		return 2
	case OperandI, OperandBrTarget, OperandField, OperandMethod, OperandSig,
		OperandString, OperandTok, OperandType, OperandShortR, OperandSwitch:
		return 4
	case OperandI8, OperandR:
		return 8
	}
	return 0
}

// IsToken reports whether the operand is a metadata token.
func (k OperandKind) IsToken() bool {
	switch k {
	case OperandField, OperandMethod, OperandSig, OperandString, OperandTok, OperandType:
		return true
	}
	return false
}

// Flow is the control-flow class of an opcode.
type Flow uint8

const (
	FlowNext Flow = iota
	FlowBreak
	FlowCall
	FlowReturn
	FlowBranch
	FlowCondBranch
	FlowThrow
	FlowMeta
)

var flowNames = [...]string{"next", "break", "call", "return", "branch", "cond_branch", "throw", "meta"}

func (f Flow) String() string {
	if int(f) < len(flowNames) {
		return flowNames[f]
	}
	return fmt.Sprintf("Flow(%d)", f)
}

// VarPop marks opcodes whose pop count depends on a signature or on the
// enclosing method.
const VarPop = -1

// OpInfo is the static description of an opcode.
type OpInfo struct {
	Name    string
	Operand OperandKind
	Pops    int // 0..3 or VarPop
	Pushes  int // 0..2; call-family pushes are decided by the signature
	Flow    Flow
}

func op(name string, k OperandKind, pops, pushes int, f Flow) OpInfo {
	return OpInfo{Name: name, Operand: k, Pops: pops, Pushes: pushes, Flow: f}
}

var primary = [256]OpInfo{
	Nop:       op("nop", OperandNone, 0, 0, FlowNext),
	Break:     op("break", OperandNone, 0, 0, FlowBreak),
	Ldarg0:    op("ldarg.0", OperandNone, 0, 1, FlowNext),
	Ldarg1:    op("ldarg.1", OperandNone, 0, 1, FlowNext),
	Ldarg2:    op("ldarg.2", OperandNone, 0, 1, FlowNext),
	Ldarg3:    op("ldarg.3", OperandNone, 0, 1, FlowNext),
	Ldloc0:    op("ldloc.0", OperandNone, 0, 1, FlowNext),
	Ldloc1:    op("ldloc.1", OperandNone, 0, 1, FlowNext),
	Ldloc2:    op("ldloc.2", OperandNone, 0, 1, FlowNext),
	Ldloc3:    op("ldloc.3", OperandNone, 0, 1, FlowNext),
	Stloc0:    op("stloc.0", OperandNone, 1, 0, FlowNext),
	Stloc1:    op("stloc.1", OperandNone, 1, 0, FlowNext),
	Stloc2:    op("stloc.2", OperandNone, 1, 0, FlowNext),
	Stloc3:    op("stloc.3", OperandNone, 1, 0, FlowNext),
	LdargS:    op("ldarg.s", OperandShortVar, 0, 1, FlowNext),
	LdargaS:   op("ldarga.s", OperandShortVar, 0, 1, FlowNext),
	StargS:    op("starg.s", OperandShortVar, 1, 0, FlowNext),
	LdlocS:    op("ldloc.s", OperandShortVar, 0, 1, FlowNext),
	LdlocaS:   op("ldloca.s", OperandShortVar, 0, 1, FlowNext),
	StlocS:    op("stloc.s", OperandShortVar, 1, 0, FlowNext),
	Ldnull:    op("ldnull", OperandNone, 0, 1, FlowNext),
	LdcI4M1:   op("ldc.i4.m1", OperandNone, 0, 1, FlowNext),
	LdcI40:    op("ldc.i4.0", OperandNone, 0, 1, FlowNext),
	LdcI41:    op("ldc.i4.1", OperandNone, 0, 1, FlowNext),
	LdcI42:    op("ldc.i4.2", OperandNone, 0, 1, FlowNext),
	LdcI43:    op("ldc.i4.3", OperandNone, 0, 1, FlowNext),
	LdcI44:    op("ldc.i4.4", OperandNone, 0, 1, FlowNext),
	LdcI45:    op("ldc.i4.5", OperandNone, 0, 1, FlowNext),
	LdcI46:    op("ldc.i4.6", OperandNone, 0, 1, FlowNext),
	LdcI47:    op("ldc.i4.7", OperandNone, 0, 1, FlowNext),
	LdcI48:    op("ldc.i4.8", OperandNone, 0, 1, FlowNext),
	LdcI4S:    op("ldc.i4.s", OperandShortI, 0, 1, FlowNext),
	LdcI4:     op("ldc.i4", OperandI, 0, 1, FlowNext),
	LdcI8:     op("ldc.i8", OperandI8, 0, 1, FlowNext),
	LdcR4:     op("ldc.r4", OperandShortR, 0, 1, FlowNext),
	LdcR8:     op("ldc.r8", OperandR, 0, 1, FlowNext),
	Dup:       op("dup", OperandNone, 1, 2, FlowNext),
	Pop:       op("pop", OperandNone, 1, 0, FlowNext),
	Jmp:       op("jmp", OperandMethod, 0, 0, FlowCall),
	Call:      op("call", OperandMethod, VarPop, 1, FlowCall),
	Calli:     op("calli", OperandSig, VarPop, 1, FlowCall),
	Ret:       op("ret", OperandNone, VarPop, 0, FlowReturn),
	BrS:       op("br.s", OperandShortBrTarget, 0, 0, FlowBranch),
	BrfalseS:  op("brfalse.s", OperandShortBrTarget, 1, 0, FlowCondBranch),
	BrtrueS:   op("brtrue.s", OperandShortBrTarget, 1, 0, FlowCondBranch),
	BeqS:      op("beq.s", OperandShortBrTarget, 2, 0, FlowCondBranch),
	BgeS:      op("bge.s", OperandShortBrTarget, 2, 0, FlowCondBranch),
	BgtS:      op("bgt.s", OperandShortBrTarget, 2, 0, FlowCondBranch),
	BleS:      op("ble.s", OperandShortBrTarget, 2, 0, FlowCondBranch),
	BltS:      op("blt.s", OperandShortBrTarget, 2, 0, FlowCondBranch),
	BneUnS:    op("bne.un.s", OperandShortBrTarget, 2, 0, FlowCondBranch),
	BgeUnS:    op("bge.un.s", OperandShortBrTarget, 2, 0, FlowCondBranch),
	BgtUnS:    op("bgt.un.s", OperandShortBrTarget, 2, 0, FlowCondBranch),
	BleUnS:    op("ble.un.s", OperandShortBrTarget, 2, 0, FlowCondBranch),
	BltUnS:    op("blt.un.s", OperandShortBrTarget, 2, 0, FlowCondBranch),
	Br:        op("br", OperandBrTarget, 0, 0, FlowBranch),
	Brfalse:   op("brfalse", OperandBrTarget, 1, 0, FlowCondBranch),
	Brtrue:    op("brtrue", OperandBrTarget, 1, 0, FlowCondBranch),
	Beq:       op("beq", OperandBrTarget, 2, 0, FlowCondBranch),
	Bge:       op("bge", OperandBrTarget, 2, 0, FlowCondBranch),
	Bgt:       op("bgt", OperandBrTarget, 2, 0, FlowCondBranch),
	Ble:       op("ble", OperandBrTarget, 2, 0, FlowCondBranch),
	Blt:       op("blt", OperandBrTarget, 2, 0, FlowCondBranch),
	BneUn:     op("bne.un", OperandBrTarget, 2, 0, FlowCondBranch),
	BgeUn:     op("bge.un", OperandBrTarget, 2, 0, FlowCondBranch),
	BgtUn:     op("bgt.un", OperandBrTarget, 2, 0, FlowCondBranch),
	BleUn:     op("ble.un", OperandBrTarget, 2, 0, FlowCondBranch),
	BltUn:     op("blt.un", OperandBrTarget, 2, 0, FlowCondBranch),
	Switch:    op("switch", OperandSwitch, 1, 0, FlowCondBranch),
	LdindI1:   op("ldind.i1", OperandNone, 1, 1, FlowNext),
	LdindU1:   op("ldind.u1", OperandNone, 1, 1, FlowNext),
	LdindI2:   op("ldind.i2", OperandNone, 1, 1, FlowNext),
	LdindU2:   op("ldind.u2", OperandNone, 1, 1, FlowNext),
	LdindI4:   op("ldind.i4", OperandNone, 1, 1, FlowNext),
	LdindU4:   op("ldind.u4", OperandNone, 1, 1, FlowNext),
	LdindI8:   op("ldind.i8", OperandNone, 1, 1, FlowNext),
	LdindI:    op("ldind.i", OperandNone, 1, 1, FlowNext),
	LdindR4:   op("ldind.r4", OperandNone, 1, 1, FlowNext),
	LdindR8:   op("ldind.r8", OperandNone, 1, 1, FlowNext),
	LdindRef:  op("ldind.ref", OperandNone, 1, 1, FlowNext),
	StindRef:  op("stind.ref", OperandNone, 2, 0, FlowNext),
	StindI1:   op("stind.i1", OperandNone, 2, 0, FlowNext),
	StindI2:   op("stind.i2", OperandNone, 2, 0, FlowNext),
	StindI4:   op("stind.i4", OperandNone, 2, 0, FlowNext),
	StindI8:   op("stind.i8", OperandNone, 2, 0, FlowNext),
	StindR4:   op("stind.r4", OperandNone, 2, 0, FlowNext),
	StindR8:   op("stind.r8", OperandNone, 2, 0, FlowNext),
	Add:       op("add", OperandNone, 2, 1, FlowNext),
	Sub:       op("sub", OperandNone, 2, 1, FlowNext),
	Mul:       op("mul", OperandNone, 2, 1, FlowNext),
	Div:       op("div", OperandNone, 2, 1, FlowNext),
	DivUn:     op("div.un", OperandNone, 2, 1, FlowNext),
	Rem:       op("rem", OperandNone, 2, 1, FlowNext),
	RemUn:     op("rem.un", OperandNone, 2, 1, FlowNext),
	And:       op("and", OperandNone, 2, 1, FlowNext),
	Or:        op("or", OperandNone, 2, 1, FlowNext),
	Xor:       op("xor", OperandNone, 2, 1, FlowNext),
	Shl:       op("shl", OperandNone, 2, 1, FlowNext),
	Shr:       op("shr", OperandNone, 2, 1, FlowNext),
	ShrUn:     op("shr.un", OperandNone, 2, 1, FlowNext),
	Neg:       op("neg", OperandNone, 1, 1, FlowNext),
	Not:       op("not", OperandNone, 1, 1, FlowNext),
	ConvI1:    op("conv.i1", OperandNone, 1, 1, FlowNext),
	ConvI2:    op("conv.i2", OperandNone, 1, 1, FlowNext),
	ConvI4:    op("conv.i4", OperandNone, 1, 1, FlowNext),
	ConvI8:    op("conv.i8", OperandNone, 1, 1, FlowNext),
	ConvR4:    op("conv.r4", OperandNone, 1, 1, FlowNext),
	ConvR8:    op("conv.r8", OperandNone, 1, 1, FlowNext),
	ConvU4:    op("conv.u4", OperandNone, 1, 1, FlowNext),
	ConvU8:    op("conv.u8", OperandNone, 1, 1, FlowNext),
	Callvirt:  op("callvirt", OperandMethod, VarPop, 1, FlowCall),
	Cpobj:     op("cpobj", OperandType, 2, 0, FlowNext),
	Ldobj:     op("ldobj", OperandType, 1, 1, FlowNext),
	Ldstr:     op("ldstr", OperandString, 0, 1, FlowNext),
	Newobj:    op("newobj", OperandMethod, VarPop, 1, FlowCall),
	Castclass: op("castclass", OperandType, 1, 1, FlowNext),
	Isinst:    op("isinst", OperandType, 1, 1, FlowNext),
	ConvRUn:   op("conv.r.un", OperandNone, 1, 1, FlowNext),
	Unbox:     op("unbox", OperandType, 1, 1, FlowNext),
	Throw:     op("throw", OperandNone, 1, 0, FlowThrow),
	Ldfld:     op("ldfld", OperandField, 1, 1, FlowNext),
	Ldflda:    op("ldflda", OperandField, 1, 1, FlowNext),
	Stfld:     op("stfld", OperandField, 2, 0, FlowNext),
	Ldsfld:    op("ldsfld", OperandField, 0, 1, FlowNext),
	Ldsflda:   op("ldsflda", OperandField, 0, 1, FlowNext),
	Stsfld:    op("stsfld", OperandField, 1, 0, FlowNext),
	Stobj:     op("stobj", OperandType, 2, 0, FlowNext),

	ConvOvfI1Un: op("conv.ovf.i1.un", OperandNone, 1, 1, FlowNext),
	ConvOvfI2Un: op("conv.ovf.i2.un", OperandNone, 1, 1, FlowNext),
	ConvOvfI4Un: op("conv.ovf.i4.un", OperandNone, 1, 1, FlowNext),
	ConvOvfI8Un: op("conv.ovf.i8.un", OperandNone, 1, 1, FlowNext),
	ConvOvfU1Un: op("conv.ovf.u1.un", OperandNone, 1, 1, FlowNext),
	ConvOvfU2Un: op("conv.ovf.u2.un", OperandNone, 1, 1, FlowNext),
	ConvOvfU4Un: op("conv.ovf.u4.un", OperandNone, 1, 1, FlowNext),
	ConvOvfU8Un: op("conv.ovf.u8.un", OperandNone, 1, 1, FlowNext),
	ConvOvfIUn:  op("conv.ovf.i.un", OperandNone, 1, 1, FlowNext),
	ConvOvfUUn:  op("conv.ovf.u.un", OperandNone, 1, 1, FlowNext),

	Box:        op("box", OperandType, 1, 1, FlowNext),
	Newarr:     op("newarr", OperandType, 1, 1, FlowNext),
	Ldlen:      op("ldlen", OperandNone, 1, 1, FlowNext),
	Ldelema:    op("ldelema", OperandType, 2, 1, FlowNext),
	LdelemI1:   op("ldelem.i1", OperandNone, 2, 1, FlowNext),
	LdelemU1:   op("ldelem.u1", OperandNone, 2, 1, FlowNext),
	LdelemI2:   op("ldelem.i2", OperandNone, 2, 1, FlowNext),
	LdelemU2:   op("ldelem.u2", OperandNone, 2, 1, FlowNext),
	LdelemI4:   op("ldelem.i4", OperandNone, 2, 1, FlowNext),
	LdelemU4:   op("ldelem.u4", OperandNone, 2, 1, FlowNext),
	LdelemI8:   op("ldelem.i8", OperandNone, 2, 1, FlowNext),
	LdelemI:    op("ldelem.i", OperandNone, 2, 1, FlowNext),
	LdelemR4:   op("ldelem.r4", OperandNone, 2, 1, FlowNext),
	LdelemR8:   op("ldelem.r8", OperandNone, 2, 1, FlowNext),
	LdelemRef:  op("ldelem.ref", OperandNone, 2, 1, FlowNext),
	StelemI:    op("stelem.i", OperandNone, 3, 0, FlowNext),
	StelemI1:   op("stelem.i1", OperandNone, 3, 0, FlowNext),
	StelemI2:   op("stelem.i2", OperandNone, 3, 0, FlowNext),
	StelemI4:   op("stelem.i4", OperandNone, 3, 0, FlowNext),
	StelemI8:   op("stelem.i8", OperandNone, 3, 0, FlowNext),
	StelemR4:   op("stelem.r4", OperandNone, 3, 0, FlowNext),
	StelemR8:   op("stelem.r8", OperandNone, 3, 0, FlowNext),
	StelemRef:  op("stelem.ref", OperandNone, 3, 0, FlowNext),
	Ldelem:     op("ldelem", OperandType, 2, 1, FlowNext),
	Stelem:     op("stelem", OperandType, 3, 0, FlowNext),
	UnboxAny:   op("unbox.any", OperandType, 1, 1, FlowNext),
	ConvOvfI1:  op("conv.ovf.i1", OperandNone, 1, 1, FlowNext),
	ConvOvfU1:  op("conv.ovf.u1", OperandNone, 1, 1, FlowNext),
	ConvOvfI2:  op("conv.ovf.i2", OperandNone, 1, 1, FlowNext),
	ConvOvfU2:  op("conv.ovf.u2", OperandNone, 1, 1, FlowNext),
	ConvOvfI4:  op("conv.ovf.i4", OperandNone, 1, 1, FlowNext),
	ConvOvfU4:  op("conv.ovf.u4", OperandNone, 1, 1, FlowNext),
	ConvOvfI8:  op("conv.ovf.i8", OperandNone, 1, 1, FlowNext),
	ConvOvfU8:  op("conv.ovf.u8", OperandNone, 1, 1, FlowNext),
	Refanyval:  op("refanyval", OperandType, 1, 1, FlowNext),
	Ckfinite:   op("ckfinite", OperandNone, 1, 1, FlowNext),
	Mkrefany:   op("mkrefany", OperandType, 1, 1, FlowNext),
	Ldtoken:    op("ldtoken", OperandTok, 0, 1, FlowNext),
	ConvU2:     op("conv.u2", OperandNone, 1, 1, FlowNext),
	ConvU1:     op("conv.u1", OperandNone, 1, 1, FlowNext),
	ConvI:      op("conv.i", OperandNone, 1, 1, FlowNext),
	ConvOvfI:   op("conv.ovf.i", OperandNone, 1, 1, FlowNext),
	ConvOvfU:   op("conv.ovf.u", OperandNone, 1, 1, FlowNext),
	AddOvf:     op("add.ovf", OperandNone, 2, 1, FlowNext),
	AddOvfUn:   op("add.ovf.un", OperandNone, 2, 1, FlowNext),
	MulOvf:     op("mul.ovf", OperandNone, 2, 1, FlowNext),
	MulOvfUn:   op("mul.ovf.un", OperandNone, 2, 1, FlowNext),
	SubOvf:     op("sub.ovf", OperandNone, 2, 1, FlowNext),
	SubOvfUn:   op("sub.ovf.un", OperandNone, 2, 1, FlowNext),
	Endfinally: op("endfinally", OperandNone, 0, 0, FlowReturn),
	Leave:      op("leave", OperandBrTarget, 0, 0, FlowBranch),
	LeaveS:     op("leave.s", OperandShortBrTarget, 0, 0, FlowBranch),
	StindI:     op("stind.i", OperandNone, 2, 0, FlowNext),
	ConvU:      op("conv.u", OperandNone, 1, 1, FlowNext),
}

// secondary is indexed by the byte following the 0xFE prefix.
var secondary = [0x1F]OpInfo{
	Arglist & 0xFF:     op("arglist", OperandNone, 0, 1, FlowNext),
	Ceq & 0xFF:         op("ceq", OperandNone, 2, 1, FlowNext),
	Cgt & 0xFF:         op("cgt", OperandNone, 2, 1, FlowNext),
	CgtUn & 0xFF:       op("cgt.un", OperandNone, 2, 1, FlowNext),
	Clt & 0xFF:         op("clt", OperandNone, 2, 1, FlowNext),
	CltUn & 0xFF:       op("clt.un", OperandNone, 2, 1, FlowNext),
	Ldftn & 0xFF:       op("ldftn", OperandMethod, 0, 1, FlowNext),
	Ldvirtftn & 0xFF:   op("ldvirtftn", OperandMethod, 1, 1, FlowNext),
	Ldarg & 0xFF:       op("ldarg", OperandVar, 0, 1, FlowNext),
	Ldarga & 0xFF:      op("ldarga", OperandVar, 0, 1, FlowNext),
	Starg & 0xFF:       op("starg", OperandVar, 1, 0, FlowNext),
	Ldloc & 0xFF:       op("ldloc", OperandVar, 0, 1, FlowNext),
	Ldloca & 0xFF:      op("ldloca", OperandVar, 0, 1, FlowNext),
	Stloc & 0xFF:       op("stloc", OperandVar, 1, 0, FlowNext),
	Localloc & 0xFF:    op("localloc", OperandNone, 1, 1, FlowNext),
	Endfilter & 0xFF:   op("endfilter", OperandNone, 1, 0, FlowReturn),
	Unaligned & 0xFF:   op("unaligned.", OperandShortI, 0, 0, FlowMeta),
	Volatile & 0xFF:    op("volatile.", OperandNone, 0, 0, FlowMeta),
	Tail & 0xFF:        op("tail.", OperandNone, 0, 0, FlowMeta),
	Initobj & 0xFF:     op("initobj", OperandType, 1, 0, FlowNext),
	Constrained & 0xFF: op("constrained.", OperandType, 0, 0, FlowMeta),
	Cpblk & 0xFF:       op("cpblk", OperandNone, 3, 0, FlowNext),
	Initblk & 0xFF:     op("initblk", OperandNone, 3, 0, FlowNext),
	No & 0xFF:          op("no.", OperandShortI, 0, 0, FlowMeta),
	Rethrow & 0xFF:     op("rethrow", OperandNone, 0, 0, FlowThrow),
	Sizeof & 0xFF:      op("sizeof", OperandType, 0, 1, FlowNext),
	Refanytype & 0xFF:  op("refanytype", OperandNone, 1, 1, FlowNext),
	Readonly & 0xFF:    op("readonly.", OperandNone, 0, 0, FlowMeta),
}

// Info returns the static description of op. ok is false for unassigned
// encodings.
func (op Opcode) Info() (info OpInfo, ok bool) {
	if op>>8 == prefix {
		if int(op&0xFF) < len(secondary) {
			info = secondary[op&0xFF]
		}
	} else if op <= 0xFF {
		info = primary[op]
	}
	return info, info.Name != ""
}

// Size returns the encoded size of the opcode itself: 1 or 2 bytes.
func (op Opcode) Size() int {
	if op>>8 == prefix {
		return 2
	}
	return 1
}

func (op Opcode) String() string {
	if info, ok := op.Info(); ok {
		return info.Name
	}
	if op.Size() == 2 {
		return fmt.Sprintf("unknown.fe.%02x", uint8(op))
	}
	return fmt.Sprintf("unknown.%02x", uint16(op))
}

// OperandKind returns the inline operand kind of op.
func (op Opcode) OperandKind() OperandKind {
	info, _ := op.Info()
	return info.Operand
}

// Flow returns the control-flow class of op.
func (op Opcode) Flow() Flow {
	info, _ := op.Info()
	return info.Flow
}

// IsBranch reports whether op transfers control to inline targets.
func (op Opcode) IsBranch() bool {
	switch op.OperandKind() {
	case OperandShortBrTarget, OperandBrTarget, OperandSwitch:
		return true
	}
	return false
}

// IsCall reports whether op is call, calli or callvirt.
func (op Opcode) IsCall() bool {
	return op == Call || op == Calli || op == Callvirt
}

// Opcodes returns every assigned opcode in encoding order.
func Opcodes() []Opcode {
	var out []Opcode
	for i := range primary {
		if primary[i].Name != "" {
			out = append(out, Opcode(i))
		}
	}
	for i := range secondary {
		if secondary[i].Name != "" {
			out = append(out, Opcode(prefix<<8|i))
		}
	}
	return out
}
