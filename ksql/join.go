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

	"github.com/spothero/ksqlstream/expr"
)

// JoinClause is the rendered text for a single join step: the ON condition
// and the result projection, assembled separately because the translator
// places them in different positions of the finished query (the ON clause
// follows JOIN ... ON, the projection becomes the query's SELECT list).
type JoinClause struct {
	On         string
	Projection string
}

// JoinBuilder renders the canonical 5-argument join form: outer stream,
// inner stream, an outer key selector, an inner key selector, and a result
// selector. Both key selectors must agree in shape — either both bare
// member access (a simple equi-join) or both anonymous constructors of
// equal arity (a composite-key equi-join) — per spec §4.3.4. The join's two
// lambda parameter names become the ON clause's and projection's table
// qualifiers.
func JoinBuilder(spec *JoinSpec) (JoinClause, error) {
	if len(spec.OuterKeySelector.Params) != 1 || len(spec.InnerKeySelector.Params) != 1 {
		return JoinClause{}, &TranslationError{Reason: "join key selectors must each take exactly one parameter"}
	}
	spec.OuterAlias = spec.OuterKeySelector.Params[0]
	spec.InnerAlias = spec.InnerKeySelector.Params[0]

	cond, err := joinCondition(spec.OuterKeySelector.Body, spec.InnerKeySelector.Body)
	if err != nil {
		return JoinClause{}, err
	}
	on, err := ConditionBuilder(cond, ModeJoin)
	if err != nil {
		return JoinClause{}, err
	}

	if len(spec.ResultSelector.Params) != 2 {
		return JoinClause{}, &TranslationError{Reason: "join result selector must take exactly two parameters"}
	}
	projection, err := JoinProjectionBuilder(spec.ResultSelector.Body)
	if err != nil {
		return JoinClause{}, err
	}

	return JoinClause{On: on, Projection: projection}, nil
}

// joinCondition builds the equality node that ConditionBuilder renders for
// the ON clause, desugaring a composite key pair into an Equals node and a
// simple key pair into a plain Eq node.
func joinCondition(outerKey, innerKey expr.Node) (expr.Node, error) {
	outerNew, outerIsNew := outerKey.(expr.New)
	innerNew, innerIsNew := innerKey.(expr.New)
	if outerIsNew != innerIsNew {
		return nil, &TranslationError{Reason: "join key selectors must both be simple members or both be composite keys"}
	}
	if outerIsNew {
		if len(outerNew.Fields) != len(innerNew.Fields) {
			return nil, &TranslationError{Reason: fmt.Sprintf(
				"join composite key arity mismatch: %d vs %d", len(outerNew.Fields), len(innerNew.Fields))}
		}
		return expr.Binary{Op: expr.Equals, Left: outerNew, Right: innerNew}, nil
	}
	if _, ok := outerKey.(expr.Member); !ok {
		return nil, &TranslationError{Reason: "join key selector body must be a member access or an anonymous constructor"}
	}
	if _, ok := innerKey.(expr.Member); !ok {
		return nil, &TranslationError{Reason: "join key selector body must be a member access or an anonymous constructor"}
	}
	return expr.Binary{Op: expr.Eq, Left: outerKey, Right: innerKey}, nil
}
