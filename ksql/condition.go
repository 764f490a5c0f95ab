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

// ConditionMode selects whether ConditionBuilder emits a standalone WHERE
// clause or a bare boolean expression suitable for a JOIN ON clause.
type ConditionMode int

const (
	// ModeWhere prefixes the rendered expression with "WHERE " and strips
	// lambda-parameter qualifiers from bare member access (spec §4.3.2).
	ModeWhere ConditionMode = iota
	// ModeJoin renders a bare boolean expression with parameter qualifiers
	// retained on every member access, for use as a JOIN ON clause.
	ModeJoin
)

// ConditionBuilder walks a predicate lambda body and emits WHERE/HAVING
// text or a bare JOIN ON expression, per spec §4.3.2. Builders are stateless:
// all state needed to render a single call is passed as arguments.
func ConditionBuilder(body expr.Node, mode ConditionMode) (string, error) {
	keepPrefix := mode == ModeJoin
	rendered, err := renderCondition(body, keepPrefix)
	if err != nil {
		return "", err
	}
	if mode == ModeWhere {
		return "WHERE " + rendered, nil
	}
	return rendered, nil
}

// renderCondition is the boolean-aware entry point used by both
// ConditionBuilder (WHERE/JOIN ON) and HavingBuilder (HAVING).
func renderCondition(n expr.Node, keepPrefix bool) (string, error) {
	switch v := n.(type) {
	case expr.Member:
		col, err := renderColumn(stripNullableValueAccessor(v), keepPrefix)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s = true)", col), nil
	case expr.Unary:
		if v.Op == expr.Not {
			if m, ok := unwrapMember(v.Operand); ok {
				col, err := renderColumn(stripNullableValueAccessor(m), keepPrefix)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("(%s = false)", col), nil
			}
			rendered, err := renderCondition(v.Operand, keepPrefix)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("NOT (%s)", rendered), nil
		}
		return "", &TranslationError{Reason: fmt.Sprintf("unsupported unary operator %q in condition", v.Op)}
	case expr.Binary:
		if v.Op == expr.Equals {
			return renderCompositeKeyEquality(v)
		}
		if v.Op == expr.Eq || v.Op == expr.Neq {
			// Double-normalization: `x.Flag == true` / `x.Flag == false` collapse
			// to the same single parenthesized form as the bare-member case.
			if m, ok := unwrapMember(v.Left); ok && ok2(v.Right) {
				if b, ok := v.Right.(expr.Const).Value.(bool); ok {
					return normalizedBoolEquality(m, b, v.Op, keepPrefix)
				}
			}
			if m, ok := unwrapMember(v.Right); ok && ok2(v.Left) {
				if b, ok := v.Left.(expr.Const).Value.(bool); ok {
					return normalizedBoolEquality(m, b, v.Op, keepPrefix)
				}
			}
		}
		if v.Op == expr.And || v.Op == expr.Or {
			left, err := renderCondition(v.Left, keepPrefix)
			if err != nil {
				return "", err
			}
			right, err := renderCondition(v.Right, keepPrefix)
			if err != nil {
				return "", err
			}
			opText := binaryOperatorText[v.Op]
			return fmt.Sprintf("(%s %s %s)", left, opText, right), nil
		}
		return renderBinary(v, keepPrefix)
	case expr.Convert:
		return renderCondition(v.Operand, keepPrefix)
	default:
		return "", &TranslationError{Reason: fmt.Sprintf("unsupported condition node of type %T", n)}
	}
}

// ok2 reports whether n is an expr.Const; checked before the type assertion
// on the same node above so that non-Const nodes never reach it.
func ok2(n expr.Node) bool {
	_, ok := n.(expr.Const)
	return ok
}

func normalizedBoolEquality(m expr.Member, wantTrue bool, op expr.BinaryOp, keepPrefix bool) (string, error) {
	if op == expr.Neq {
		wantTrue = !wantTrue
	}
	col, err := renderColumn(stripNullableValueAccessor(m), keepPrefix)
	if err != nil {
		return "", err
	}
	val := "false"
	if wantTrue {
		val = "true"
	}
	return fmt.Sprintf("(%s = %s)", col, val), nil
}

func unwrapMember(n expr.Node) (expr.Member, bool) {
	switch v := n.(type) {
	case expr.Member:
		return v, true
	case expr.Convert:
		return unwrapMember(v.Operand)
	default:
		return expr.Member{}, false
	}
}

// stripNullableValueAccessor trims a trailing ".Value" path segment, which
// the source language's nullable-bool unwrap (`x.Flag.Value`) uses purely
// as unwrapping syntax rather than as a real column name (spec §4.3.2).
func stripNullableValueAccessor(m expr.Member) expr.Member {
	if len(m.Path) >= 3 && m.Path[len(m.Path)-1] == "Value" {
		return expr.Member{Path: m.Path[:len(m.Path)-1]}
	}
	return m
}

// renderCompositeKeyEquality handles `new{a.X,a.Y} equals new{b.X,b.Y}`,
// producing `(a.X = b.X AND a.Y = b.Y)`. Arity must match and be non-zero;
// both sides are rendered with parameter qualifiers regardless of mode,
// since composite-key joins only make sense between two distinct aliases.
func renderCompositeKeyEquality(b expr.Binary) (string, error) {
	left, ok := b.Left.(expr.New)
	if !ok {
		return "", &TranslationError{Reason: "composite-key equality requires anonymous-constructor operands"}
	}
	right, ok := b.Right.(expr.New)
	if !ok {
		return "", &TranslationError{Reason: "composite-key equality requires anonymous-constructor operands"}
	}
	if len(left.Fields) == 0 || len(right.Fields) == 0 {
		return "", &TranslationError{Reason: "composite-key equality requires at least one member on each side"}
	}
	if len(left.Fields) != len(right.Fields) {
		return "", &TranslationError{Reason: fmt.Sprintf(
			"composite-key equality arity mismatch: %d vs %d", len(left.Fields), len(right.Fields))}
	}
	parts := make([]string, 0, len(left.Fields))
	for i := range left.Fields {
		lm, ok := left.Fields[i].Value.(expr.Member)
		if !ok {
			return "", &TranslationError{Reason: "composite-key equality fields must be member accesses"}
		}
		rm, ok := right.Fields[i].Value.(expr.Member)
		if !ok {
			return "", &TranslationError{Reason: "composite-key equality fields must be member accesses"}
		}
		lCol, err := renderColumn(lm, true)
		if err != nil {
			return "", err
		}
		rCol, err := renderColumn(rm, true)
		if err != nil {
			return "", err
		}
		parts = append(parts, fmt.Sprintf("%s = %s", lCol, rCol))
	}
	return "(" + strings.Join(parts, " AND ") + ")", nil
}

// HavingBuilder renders a post-aggregation predicate. It shares
// renderCondition's boolean normalization and composite-key handling but
// always prefixes with "HAVING ", and its member references resolve
// against aggregate aliases rather than raw columns (the caller is
// responsible for ensuring the lambda body references the aliased names
// introduced by AggregateBuilder).
func HavingBuilder(body expr.Node) (string, error) {
	rendered, err := renderCondition(body, false)
	if err != nil {
		return "", err
	}
	return "HAVING " + rendered, nil
}
