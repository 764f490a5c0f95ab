// Copyright 2024 SpotHero
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ksql

import (
	"fmt"
	"strings"

	"github.com/spothero/ksqlstream/expr"
)

// binaryOperatorText is the authoritative operator table from spec §4.3.1.
var binaryOperatorText = map[expr.BinaryOp]string{
	expr.Add: "+", expr.Sub: "-", expr.Mul: "*", expr.Div: "/", expr.Mod: "%",
	expr.Eq: "=", expr.Neq: "<>", expr.Gt: ">", expr.Gte: ">=", expr.Lt: "<", expr.Lte: "<=",
	expr.And: "AND", expr.Or: "OR",
}

// renderColumn formats a Member node's column text. keepPrefix controls
// whether the lambda parameter name (the path's first element) is retained
// as a qualifier, which ConditionBuilder needs in join mode but not in
// where/select mode (spec §4.3.2).
func renderColumn(m expr.Member, keepPrefix bool) (string, error) {
	if len(m.Path) < 2 {
		return "", &TranslationError{Reason: "member access must have at least a parameter and a property name"}
	}
	col := strings.Join(m.Path[1:], ".")
	if keepPrefix {
		return m.Path[0] + "." + col, nil
	}
	return col, nil
}

// renderConst formats a literal per spec §4.3.2/§4.3.1: single-quoted
// strings, lower-cased booleans, NULL for nil, and default formatting
// otherwise.
func renderConst(c expr.Const) string {
	switch v := c.Value.(type) {
	case nil:
		return "NULL"
	case bool:
		if v {
			return "true"
		}
		return "false"
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	default:
		return fmt.Sprintf("%v", v)
	}
}

// renderExpr renders a general scalar expression: member access, literals,
// arithmetic/comparison binaries, string methods, and transparent casts.
// keepPrefix is threaded through to renderColumn for join-mode rendering.
func renderExpr(n expr.Node, keepPrefix bool) (string, error) {
	switch v := n.(type) {
	case expr.Member:
		return renderColumn(v, keepPrefix)
	case expr.Const:
		return renderConst(v), nil
	case expr.Convert:
		return renderExpr(v.Operand, keepPrefix)
	case expr.Binary:
		return renderBinary(v, keepPrefix)
	case expr.Unary:
		return renderUnary(v, keepPrefix)
	case expr.Call:
		return renderCall(v, keepPrefix)
	default:
		return "", &TranslationError{Reason: fmt.Sprintf("cannot render expression node of type %T in this position", n)}
	}
}

func renderBinary(b expr.Binary, keepPrefix bool) (string, error) {
	opText, ok := binaryOperatorText[b.Op]
	if !ok {
		return "", &TranslationError{Reason: fmt.Sprintf("unsupported binary operator %q", b.Op)}
	}
	left, err := renderExpr(b.Left, keepPrefix)
	if err != nil {
		return "", err
	}
	right, err := renderExpr(b.Right, keepPrefix)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("(%s %s %s)", left, opText, right), nil
}

func renderUnary(u expr.Unary, keepPrefix bool) (string, error) {
	if u.Op != expr.Not {
		return "", &TranslationError{Reason: fmt.Sprintf("unsupported unary operator %q", u.Op)}
	}
	operand, err := renderExpr(u.Operand, keepPrefix)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("NOT (%s)", operand), nil
}

// stringMethodTranslations maps the recognized string methods of spec
// §4.3.1 to their KSQL function form. Substring and ToString need
// special-cased argument handling below.
var stringMethodTranslations = map[string]string{
	"ToLower": "LCASE",
	"ToUpper": "UCASE",
}

func renderCall(c expr.Call, keepPrefix bool) (string, error) {
	receiver := ""
	if c.Receiver != nil {
		r, err := renderExpr(c.Receiver, keepPrefix)
		if err != nil {
			return "", err
		}
		receiver = r
	}
	switch c.Method {
	case "ToString":
		return fmt.Sprintf("CAST(%s AS VARCHAR)", receiver), nil
	case "Substring":
		args := make([]string, 0, len(c.Args)+1)
		args = append(args, receiver)
		for _, a := range c.Args {
			rendered, err := renderExpr(a, keepPrefix)
			if err != nil {
				return "", err
			}
			args = append(args, rendered)
		}
		return fmt.Sprintf("SUBSTRING(%s)", strings.Join(args, ", ")), nil
	}
	if fn, ok := stringMethodTranslations[c.Method]; ok {
		return fmt.Sprintf("%s(%s)", fn, receiver), nil
	}
	// Best-effort fallback: any other method name becomes UPPER_METHOD_NAME(args...)
	args := make([]string, 0, len(c.Args))
	if receiver != "" {
		args = append(args, receiver)
	}
	for _, a := range c.Args {
		rendered, err := renderExpr(a, keepPrefix)
		if err != nil {
			return "", err
		}
		args = append(args, rendered)
	}
	return fmt.Sprintf("%s(%s)", strings.ToUpper(toSnakeUpper(c.Method)), strings.Join(args, ", ")), nil
}

// toSnakeUpper best-effort-uppercases a method name for the fallback
// "UPPER_METHOD_NAME(args)" form described in spec §4.3.1.
func toSnakeUpper(method string) string {
	return strings.ToUpper(method)
}
