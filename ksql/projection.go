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

// ProjectionBuilder renders a Select lambda body into the comma-separated
// column list that follows SELECT, per spec §4.3.1. A bare parameter (the
// identity projection `o => o`) renders as "*"; a bare member access
// renders as a single column; an anonymous-constructor body renders each
// field as "expr[, AS alias]", omitting the AS clause when the member's own
// name already matches the alias.
func ProjectionBuilder(body expr.Node) (string, error) {
	return renderProjectionBody(body, false)
}

// JoinProjectionBuilder renders a join's result-selector body the same way
// as ProjectionBuilder but keeps each member's lambda-parameter qualifier,
// since a join's SELECT list draws columns from two distinct aliases and
// must disambiguate them (spec §4.3.4).
func JoinProjectionBuilder(body expr.Node) (string, error) {
	return renderProjectionBody(body, true)
}

func renderProjectionBody(body expr.Node, keepPrefix bool) (string, error) {
	switch v := body.(type) {
	case expr.Param:
		return "*", nil
	case expr.New:
		return renderProjectionFields(v.Fields, keepPrefix)
	default:
		col, err := renderProjectionExpr(body, keepPrefix)
		if err != nil {
			return "", err
		}
		return col, nil
	}
}

// renderProjectionFields renders the fields of an anonymous-constructor
// projection body. AggregateBuilder does not call it; it renders its own
// GroupKey/aggregate-call fields with the same aliasing rule.
func renderProjectionFields(fields []expr.NewField, keepPrefix bool) (string, error) {
	if len(fields) == 0 {
		return "", &TranslationError{Reason: "projection must select at least one column"}
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		rendered, err := renderProjectionExpr(f.Value, keepPrefix)
		if err != nil {
			return "", err
		}
		if f.Alias != "" && !memberNameMatches(f.Value, f.Alias) {
			rendered = fmt.Sprintf("%s AS %s", rendered, f.Alias)
		}
		parts = append(parts, rendered)
	}
	return strings.Join(parts, ", "), nil
}

// memberNameMatches reports whether a field's value is a bare member access
// whose final path segment already equals alias, letting renderProjectionFields
// omit a redundant "AS alias".
func memberNameMatches(n expr.Node, alias string) bool {
	m, ok := n.(expr.Member)
	if !ok {
		return false
	}
	if len(m.Path) == 0 {
		return false
	}
	return m.Path[len(m.Path)-1] == alias
}

// renderProjectionExpr renders a single projected value: a column, a
// transparently-cast column, a literal, a string-method call, or an
// arithmetic/comparison expression. Casts are always descended through
// transparently.
func renderProjectionExpr(n expr.Node, keepPrefix bool) (string, error) {
	switch v := n.(type) {
	case expr.Member:
		return renderColumn(v, keepPrefix)
	case expr.Convert:
		return renderProjectionExpr(v.Operand, keepPrefix)
	case expr.Const:
		return renderConst(v), nil
	case expr.Call:
		return renderCall(v, keepPrefix)
	case expr.Binary:
		return renderBinary(v, keepPrefix)
	case expr.Unary:
		return renderUnary(v, keepPrefix)
	default:
		return "", &TranslationError{Reason: fmt.Sprintf("unsupported projection node of type %T", n)}
	}
}
