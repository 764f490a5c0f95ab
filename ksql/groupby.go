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

// GroupByBuilder renders a GroupBy lambda body into the column list that
// follows GROUP BY. A bare member renders as a single grouping column; an
// anonymous-constructor body renders each field's column, comma-separated,
// ignoring any alias (GROUP BY columns are never aliased). Casts are
// descended through transparently, same as ProjectionBuilder.
func GroupByBuilder(body expr.Node) (string, error) {
	cols, err := GroupByColumns(body)
	if err != nil {
		return "", err
	}
	return "GROUP BY " + strings.Join(cols, ", "), nil
}

// GroupByColumns returns the column names a GroupBy body selects, in
// declaration order, without the "GROUP BY" keyword. The translator keeps
// this list around so a later g.Key reference in AggregateBuilder can
// resolve to the actual grouping column(s) instead of a placeholder.
func GroupByColumns(body expr.Node) ([]string, error) {
	switch v := body.(type) {
	case expr.New:
		if len(v.Fields) == 0 {
			return nil, &TranslationError{Reason: "GROUP BY must reference at least one column"}
		}
		cols := make([]string, 0, len(v.Fields))
		for _, f := range v.Fields {
			col, err := groupByColumn(f.Value)
			if err != nil {
				return nil, err
			}
			cols = append(cols, col)
		}
		return cols, nil
	default:
		col, err := groupByColumn(body)
		if err != nil {
			return nil, err
		}
		return []string{col}, nil
	}
}

func groupByColumn(n expr.Node) (string, error) {
	switch v := n.(type) {
	case expr.Member:
		return renderColumn(v, false)
	case expr.Convert:
		return groupByColumn(v.Operand)
	default:
		return "", &TranslationError{Reason: fmt.Sprintf("GROUP BY field must be a column reference, got %T", n)}
	}
}
