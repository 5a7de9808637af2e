package signature

import (
	"errors"

	clierrors "github.com/brickbot/clifile/errors"
	"github.com/brickbot/clifile/internal/stream"
	"github.com/brickbot/clifile/metadata"
)

// maxDepth bounds recursion through nested element types.
const maxDepth = 64

// Decoder reads the element-type grammar from one signature blob.
type Decoder struct {
	r     *stream.Reader
	depth int
}

// NewDecoder returns a Decoder positioned at the start of blob.
func NewDecoder(blob []byte) *Decoder {
	return &Decoder{r: stream.NewReader(blob)}
}

// Offset returns the current position within the blob.
func (d *Decoder) Offset() int { return d.r.Offset() }

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int { return d.r.Remaining() }

// ReadType decodes one type. VOID is rejected; it is only valid as a
// return type or pointee.
func (d *Decoder) ReadType() (Type, error) {
	return d.readType(false)
}

func (d *Decoder) fail(err error, at int, what string) error {
	if errors.Is(err, stream.ErrBadCompressed) {
		return clierrors.Wrap(clierrors.PhaseSignature, clierrors.KindFormat, int64(at), err, "invalid compressed %s", what)
	}
	return clierrors.Wrap(clierrors.PhaseSignature, clierrors.KindOutOfBounds, int64(at), err, "%s truncated", what)
}

func (d *Decoder) readByte(what string) (byte, error) {
	at := d.r.Offset()
	b, err := d.r.ReadU8()
	if err != nil {
		return 0, d.fail(err, at, what)
	}
	return b, nil
}

func (d *Decoder) peekByte(what string) (byte, error) {
	b, err := d.r.PeekU8()
	if err != nil {
		return 0, d.fail(err, d.r.Offset(), what)
	}
	return b, nil
}

func (d *Decoder) readCompressed(what string) (uint32, error) {
	at := d.r.Offset()
	v, err := d.r.ReadCompressedUint()
	if err != nil {
		return 0, d.fail(err, at, what)
	}
	return v, nil
}

func (d *Decoder) readSigned(what string) (int32, error) {
	at := d.r.Offset()
	v, n, err := DecodeCompressedSigned(d.r.RemainingData())
	if err != nil {
		var e *clierrors.Error
		if errors.As(err, &e) {
			e.Offset = int64(at)
		}
		return 0, err
	}
	_ = d.r.Skip(n)
	return v, nil
}

func (d *Decoder) readToken() (metadata.Token, error) {
	at := d.r.Offset()
	tok, n, err := DecodeTypeDefOrRef(d.r.RemainingData())
	if err != nil {
		var e *clierrors.Error
		if errors.As(err, &e) {
			e.Offset = int64(at)
		}
		return 0, err
	}
	_ = d.r.Skip(n)
	return tok, nil
}

func (d *Decoder) readType(allowVoid bool) (Type, error) {
	if d.depth >= maxDepth {
		return nil, clierrors.Format(clierrors.PhaseSignature, int64(d.r.Offset()), "type nesting exceeds %d levels", maxDepth)
	}
	d.depth++
	defer func() { d.depth-- }()

	at := d.r.Offset()
	tag, err := d.readByte("element type")
	if err != nil {
		return nil, err
	}
	et := metadata.ElementType(tag)

	switch et {
	case metadata.ElementVoid:
		if !allowVoid {
			return nil, clierrors.Format(clierrors.PhaseSignature, int64(at), "void is not valid here")
		}
		return Primitive{Type: et}, nil

	case metadata.ElementBoolean, metadata.ElementChar,
		metadata.ElementI1, metadata.ElementU1, metadata.ElementI2, metadata.ElementU2,
		metadata.ElementI4, metadata.ElementU4, metadata.ElementI8, metadata.ElementU8,
		metadata.ElementR4, metadata.ElementR8, metadata.ElementI, metadata.ElementU,
		metadata.ElementString, metadata.ElementObject, metadata.ElementTypedByRef:
		return Primitive{Type: et}, nil

	case metadata.ElementClass, metadata.ElementValueType:
		tok, err := d.readToken()
		if err != nil {
			return nil, err
		}
		return Compound{Token: tok, ValueType: et == metadata.ElementValueType}, nil

	case metadata.ElementGenericInst:
		return d.readGenericInst()

	case metadata.ElementPtr:
		elem, err := d.readType(true)
		if err != nil {
			return nil, err
		}
		return Pointer{Elem: elem}, nil

	case metadata.ElementByRef:
		elem, err := d.readType(false)
		if err != nil {
			return nil, err
		}
		return ByRef{Elem: elem}, nil

	case metadata.ElementSzArray:
		elem, err := d.readType(false)
		if err != nil {
			return nil, err
		}
		return SzArray{Elem: elem}, nil

	case metadata.ElementPinned:
		elem, err := d.readType(false)
		if err != nil {
			return nil, err
		}
		return Pinned{Elem: elem}, nil

	case metadata.ElementCModReqd, metadata.ElementCModOpt:
		tok, err := d.readToken()
		if err != nil {
			return nil, err
		}
		elem, err := d.readType(allowVoid)
		if err != nil {
			return nil, err
		}
		return CustomMod{Required: et == metadata.ElementCModReqd, Token: tok, Elem: elem}, nil

	case metadata.ElementArray:
		return d.readArray()

	case metadata.ElementFnPtr:
		sig, err := d.readMethodSig(SigMemberRef, true)
		if err != nil {
			return nil, err
		}
		return FnPtr{Sig: sig}, nil

	case metadata.ElementVar, metadata.ElementMVar:
		idx, err := d.readCompressed("generic parameter index")
		if err != nil {
			return nil, err
		}
		if et == metadata.ElementVar {
			return Var{Index: idx}, nil
		}
		return MVar{Index: idx}, nil
	}

	return nil, clierrors.Format(clierrors.PhaseSignature, int64(at), "invalid element type 0x%02x", tag)
}

func (d *Decoder) readGenericInst() (Type, error) {
	at := d.r.Offset()
	flag, err := d.readByte("generic instance")
	if err != nil {
		return nil, err
	}
	et := metadata.ElementType(flag)
	if et != metadata.ElementClass && et != metadata.ElementValueType {
		return nil, clierrors.Format(clierrors.PhaseSignature, int64(at), "generic instance of element type 0x%02x", flag)
	}

	tok, err := d.readToken()
	if err != nil {
		return nil, err
	}
	n, err := d.readCompressed("generic argument count")
	if err != nil {
		return nil, err
	}
	if int(n) > d.r.Remaining() {
		return nil, clierrors.Bounds(clierrors.PhaseSignature, int64(d.r.Offset()), "%d generic arguments exceed the blob", n)
	}

	args := make([]Type, n)
	for i := range args {
		if args[i], err = d.readType(false); err != nil {
			return nil, err
		}
	}
	return Compound{Token: tok, ValueType: et == metadata.ElementValueType, Args: args}, nil
}

func (d *Decoder) readArray() (Type, error) {
	elem, err := d.readType(false)
	if err != nil {
		return nil, err
	}
	rank, err := d.readCompressed("array rank")
	if err != nil {
		return nil, err
	}

	numSizes, err := d.readCompressed("array size count")
	if err != nil {
		return nil, err
	}
	if int(numSizes) > d.r.Remaining() {
		return nil, clierrors.Bounds(clierrors.PhaseSignature, int64(d.r.Offset()), "%d array sizes exceed the blob", numSizes)
	}
	sizes := make([]uint32, numSizes)
	for i := range sizes {
		if sizes[i], err = d.readCompressed("array size"); err != nil {
			return nil, err
		}
	}

	numLower, err := d.readCompressed("array bound count")
	if err != nil {
		return nil, err
	}
	if int(numLower) > d.r.Remaining() {
		return nil, clierrors.Bounds(clierrors.PhaseSignature, int64(d.r.Offset()), "%d array bounds exceed the blob", numLower)
	}
	lower := make([]int32, numLower)
	for i := range lower {
		if lower[i], err = d.readSigned("array lower bound"); err != nil {
			return nil, err
		}
	}

	return Array{Elem: elem, Rank: rank, Sizes: sizes, LowerBounds: lower}, nil
}
