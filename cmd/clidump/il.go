package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/brickbot/clifile/il"
	"github.com/brickbot/clifile/metadata"
	"github.com/brickbot/clifile/signature"
)

var (
	ilNormalize  bool
	ilStatements bool
	ilStack      bool
)

var ilCmd = &cobra.Command{
	Use:   "il <assembly> <method>",
	Short: "Disassemble a method body",
	Long: `Disassemble the IL of a method. The method is given either as a
MethodDef token (0x06000001) or as Namespace.Type::Name. When a name is
overloaded the first definition is used.

--statements marks the instructions at which the evaluation stack is
empty. --stack shows the simulated stack on entry to every instruction
and the argument loads of every call.`,
	Args: cobra.ExactArgs(2),
	RunE: runIL,
}

func init() {
	ilCmd.Flags().BoolVar(&ilNormalize, "normalize", false, "print short and macro forms as their long form")
	ilCmd.Flags().BoolVar(&ilStatements, "statements", false, "mark statement boundaries")
	ilCmd.Flags().BoolVar(&ilStack, "stack", false, "show the simulated evaluation stack")
}

func runIL(cmd *cobra.Command, args []string) error {
	img, err := openImage(args[0])
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("normalize") {
		ilNormalize = cfg.IL.Normalize
	}
	if !cmd.Flags().Changed("statements") {
		ilStatements = cfg.IL.Statements
	}

	tok, err := findMethod(img, args[1])
	if err != nil {
		return err
	}
	body, err := il.ReadBody(img, tok.Row())
	if err != nil {
		return err
	}

	name, _ := img.FullMemberName(tok)
	printHeader(formatMethod(img, tok, name))
	printField("Token", tok)
	printField("RVA", fmt.Sprintf("0x%08X", body.RVA))
	printField("Header", map[bool]string{true: "fat", false: "tiny"}[body.Fat])
	printField("Code Size", len(body.Code()))
	printField("Max Stack", body.MaxStack)

	locals, err := body.Locals()
	if err != nil {
		return err
	}
	if len(locals) > 0 {
		parts := make([]string, len(locals))
		for i, t := range locals {
			parts[i] = fmt.Sprintf("[%d] %s", i, signature.TypeString(img, t))
		}
		printField("Locals", strings.Join(parts, ", "))
	}
	fmt.Fprintln(output)

	c := body.Instructions()
	tracking := ilStack || ilStatements
	if tracking {
		argTypes, err := il.ArgumentTypes(img, tok)
		if err != nil {
			return err
		}
		if err := c.TrackStack(argTypes, locals, body.MaxStack); err != nil {
			return err
		}
	}

	for c.Next() {
		inst := c.Instr()
		if tracking {
			begin, err := c.BeginStatement()
			if err != nil {
				return err
			}
			if ilStatements && begin && inst.Offset > 0 {
				fmt.Fprintln(output)
			}
			if ilStack {
				fmt.Fprintf(output, "%s\n", render(dimStyle, "      "+formatStack(c.Stack())))
			}
		}
		if ilNormalize {
			inst = il.Normalize(inst)
		}
		fmt.Fprintf(output, "  %s: %-14s %s\n", render(tokenStyle, il.Target(inst.Offset).String()), inst.Op, formatOperand(img, c, inst))

		if ilStack && c.IsCall() {
			starts, err := c.CallLoadArguments()
			if err != nil {
				return err
			}
			if len(starts) > 0 {
				labels := make([]string, len(starts))
				for i, t := range starts {
					labels[i] = t.String()
				}
				fmt.Fprintf(output, "%s\n", render(dimStyle, "      args from "+strings.Join(labels, ", ")))
			}
		}
	}
	if err := c.Err(); err != nil {
		return err
	}

	if clauses := body.Clauses(); len(clauses) > 0 {
		fmt.Fprintln(output)
		printHeader("Exception Handlers")
		for _, cl := range clauses {
			fmt.Fprintf(output, "  try %s-%s %-8s %s-%s%s\n",
				il.Target(cl.TryOffset), il.Target(cl.TryOffset+cl.TryLength),
				cl.Kind,
				il.Target(cl.HandlerOffset), il.Target(cl.HandlerOffset+cl.HandlerLength),
				clauseDetail(img, cl))
		}
	}
	return nil
}

func clauseDetail(img *metadata.Image, cl il.EHClause) string {
	switch cl.Kind {
	case il.ClauseCatch:
		if name, err := img.TypeName(cl.ClassToken); err == nil {
			return " " + name
		}
		return " " + cl.ClassToken.String()
	case il.ClauseFilter:
		return " filter " + il.Target(cl.FilterOffset).String()
	}
	return ""
}

func formatOperand(img *metadata.Image, c *il.Cursor, inst il.Instruction) string {
	if !inst.Operand.Kind.IsToken() {
		return inst.Operand.String()
	}
	r, err := c.Resolve(img)
	if err != nil {
		logger.Debug("operand not resolved", zap.Stringer("token", inst.Operand.Token), zap.Error(err))
		return inst.Operand.String()
	}
	switch {
	case r.Kind == il.OperandString:
		return strconv.Quote(r.String)
	case r.Method != nil && r.Name != "":
		return signature.FormatMethod(r.Method, signature.ImageNamer(img), r.Name)
	case r.Method != nil:
		return signature.MethodString(img, r.Method)
	case r.Field != nil:
		return signature.TypeString(img, r.Field) + " " + r.Name
	case r.Type != nil:
		return signature.TypeString(img, r.Type)
	}
	return inst.Operand.String()
}

func formatStack(slots []il.StackSlot) string {
	if len(slots) == 0 {
		return "[]"
	}
	parts := make([]string, len(slots))
	for i, s := range slots {
		parts[i] = s.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// findMethod resolves a MethodDef token or a Type::Method selector.
func findMethod(img *metadata.Image, sel string) (metadata.Token, error) {
	if tok, ok := parseToken(sel); ok {
		if tok.Table() != metadata.TableMethodDef {
			return 0, fmt.Errorf("%s is not a method definition", tok)
		}
		return tok, nil
	}

	typeName, method, ok := strings.Cut(sel, "::")
	if !ok {
		return 0, fmt.Errorf("invalid method %q: want a token or Type::Method", sel)
	}
	typ, err := img.FindType(typeName)
	if err != nil {
		return 0, err
	}
	if typ.IsNil() {
		return 0, fmt.Errorf("type %s not found", typeName)
	}
	methods, err := img.MethodRange(typ.Row())
	if err != nil {
		return 0, err
	}
	for tok := range methods.Tokens() {
		if name, err := img.MemberName(tok); err == nil && name == method {
			return tok, nil
		}
	}
	return 0, fmt.Errorf("method %s not found in %s", method, typeName)
}

// parseToken parses a hexadecimal token such as 0x06000001.
func parseToken(s string) (metadata.Token, bool) {
	hex, ok := strings.CutPrefix(strings.ToLower(s), "0x")
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, false
	}
	return metadata.Token(v), true
}
