package dsl

import (
	"strconv"
	"strings"
)

// ClockVars is the set of live transport values an Expr's bt/br/tmp/sn/sd
// base tokens may resolve against.
type ClockVars struct {
	BeatMs    float64 // bt
	BarMs     float64 // br
	Tempo     float64 // tmp
	Numerator float64 // sn
	Denom     float64 // sd
}

// exprOp is one (*|/) positive step applied left-to-right after the base.
type exprOp struct {
	mul     bool
	operand float64
}

// Expr implements the duration/tempo expression grammar:
// baseValue ( (*|/) positive )*, where baseValue is one of bt, br, tmp,
// sn, sd, or a literal positive number.
type Expr struct {
	base    string // "bt", "br", "tmp", "sn", "sd", or "" for a literal
	literal float64
	ops     []exprOp
}

// ConstExpr builds an Expr that is just a literal number.
func ConstExpr(v float64) Expr { return Expr{literal: v} }

// Eval resolves the expression against live clock values; bt and br are
// always evaluated. A fit-mode block never evaluates an explicit duration
// as fit: any .d() duration switches the block to beat mode (see the
// planner's effectiveMode), where the evaluated value is used.
func (e Expr) Eval(cv ClockVars) float64 {
	var v float64
	switch e.base {
	case "bt":
		v = cv.BeatMs
	case "br":
		v = cv.BarMs
	case "tmp":
		v = cv.Tempo
	case "sn":
		v = cv.Numerator
	case "sd":
		v = cv.Denom
	default:
		v = e.literal
	}
	for _, op := range e.ops {
		if op.mul {
			v *= op.operand
		} else if op.operand != 0 {
			v /= op.operand
		}
	}
	return v
}

// UsesBarTokens reports whether the expression references bt or br,
// which spec §4.3 forbids inside fit-mode duration literals.
func (e Expr) UsesBarTokens() bool {
	return e.base == "bt" || e.base == "br"
}

// ParseExpr parses a baseValue ( (*|/) positive )* expression. Returns
// ok=false if the string does not start with a recognizable base token.
func ParseExpr(s string) (Expr, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Expr{}, false
	}

	parts := splitExprOperators(s)
	if len(parts) == 0 {
		return Expr{}, false
	}

	e := Expr{}
	base := strings.TrimSpace(parts[0])
	switch base {
	case "bt", "br", "tmp", "sn", "sd":
		e.base = base
	default:
		f, err := strconv.ParseFloat(base, 64)
		if err != nil {
			return Expr{}, false
		}
		e.literal = f
	}

	for i := 1; i+1 < len(parts); i += 2 {
		op := strings.TrimSpace(parts[i])
		operandStr := strings.TrimSpace(parts[i+1])
		operand, err := strconv.ParseFloat(operandStr, 64)
		if err != nil || operand <= 0 {
			continue
		}
		e.ops = append(e.ops, exprOp{mul: op == "*", operand: operand})
	}

	return e, true
}

// splitExprOperators splits "bt*2/4" into ["bt", "*", "2", "/", "4"].
func splitExprOperators(s string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '*' || s[i] == '/' {
			parts = append(parts, s[start:i], string(s[i]))
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}
