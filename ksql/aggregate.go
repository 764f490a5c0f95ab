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

// aggregateFunctionText maps the recognized post-GroupBy aggregate method
// names to their KSQL function form, per spec §4.3.1.
var aggregateFunctionText = map[string]string{
	"Sum":             "SUM",
	"Average":         "AVG",
	"Min":             "MIN",
	"Max":             "MAX",
	"Count":           "COUNT",
	"LatestByOffset":  "LATEST_BY_OFFSET",
	"EarliestByOffset": "EARLIEST_BY_OFFSET",
	"CollectList":     "COLLECT_LIST",
	"CollectSet":      "COLLECT_SET",
}

// AggregateBuilder renders a post-GroupBy Select lambda body, whose
// receiver is the grouping accumulator: bare `g.Key` projects the grouping
// column, and aggregate method calls such as `g.Sum(x => x.Amount)` or
// `g.Count()` project an aggregate function call. Field aliasing follows
// the same rules as ProjectionBuilder. groupKeyColumns is the column list
// the preceding GroupBy selected, in order, used to resolve any `g.Key`
// reference in body; it is empty for a bare aggregate with no GroupBy.
func AggregateBuilder(body expr.Node, groupKeyColumns []string) (string, error) {
	switch v := body.(type) {
	case expr.GroupKey:
		return "", &TranslationError{Reason: "a bare g.Key projection needs an alias; wrap it in an anonymous constructor"}
	case expr.New:
		if len(v.Fields) == 0 {
			return "", &TranslationError{Reason: "aggregate projection must select at least one column"}
		}
		parts := make([]string, 0, len(v.Fields))
		for _, f := range v.Fields {
			rendered, err := renderAggregateField(f.Value, groupKeyColumns)
			if err != nil {
				return "", err
			}
			if f.Alias != "" && !aggregateFieldNameMatches(f.Value, groupKeyColumns, f.Alias) {
				rendered = fmt.Sprintf("%s AS %s", rendered, f.Alias)
			}
			parts = append(parts, rendered)
		}
		return strings.Join(parts, ", "), nil
	default:
		rendered, err := renderAggregateField(body, groupKeyColumns)
		if err != nil {
			return "", err
		}
		return rendered, nil
	}
}

// aggregateFieldNameMatches mirrors ProjectionBuilder's memberNameMatches
// but also covers GroupKey, whose rendered text is the single grouping
// column name rather than a Member path: `CustomerId = g.Key` must omit the
// redundant "AS CustomerId" the same way a bare `a.CustomerId` field does.
func aggregateFieldNameMatches(n expr.Node, groupKeyColumns []string, alias string) bool {
	if _, ok := n.(expr.GroupKey); ok {
		return len(groupKeyColumns) == 1 && groupKeyColumns[0] == alias
	}
	return memberNameMatches(n, alias)
}

func renderAggregateField(n expr.Node, groupKeyColumns []string) (string, error) {
	switch v := n.(type) {
	case expr.GroupKey:
		if len(groupKeyColumns) == 0 {
			return "", &TranslationError{Reason: "g.Key has no preceding GroupBy to resolve against"}
		}
		return strings.Join(groupKeyColumns, ", "), nil
	case expr.Call:
		return renderAggregateCall(v)
	case expr.Member:
		return renderColumn(v, false)
	case expr.Convert:
		return renderAggregateField(v.Operand, groupKeyColumns)
	default:
		return "", &TranslationError{Reason: fmt.Sprintf("unsupported aggregate projection node of type %T", n)}
	}
}

func renderAggregateCall(c expr.Call) (string, error) {
	fn, ok := aggregateFunctionText[c.Method]
	if !ok {
		return "", &UnsupportedOperationError{Operation: "aggregate function " + c.Method}
	}
	if c.Method == "Count" {
		if len(c.Args) == 0 {
			return "COUNT(*)", nil
		}
		field, err := aggregateArgColumn(c.Args[0])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("COUNT(%s)", field), nil
	}
	if len(c.Args) != 1 {
		return "", &TranslationError{Reason: fmt.Sprintf("aggregate function %s requires exactly one argument", c.Method)}
	}
	field, err := aggregateArgColumn(c.Args[0])
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s(%s)", fn, field), nil
}

// aggregateArgColumn unwraps a lambda argument (e.g. `x => x.Amount`) down
// to the column it selects, rendering without a parameter qualifier.
func aggregateArgColumn(n expr.Node) (string, error) {
	if l, ok := n.(expr.Lambda); ok {
		return renderProjectionExpr(l.Body, false)
	}
	return renderProjectionExpr(n, false)
}
