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
)

// TranslateOptions carries the information the translator cannot recover
// from the Step chain alone: whether the finished query is a push query
// (subscribe, EMIT CHANGES/FINAL) or a pull query (to_list, a point-in-time
// snapshot with no EMIT clause), and the window to attach to a grouped
// aggregate, if any.
type TranslateOptions struct {
	Push   bool
	Window *WindowSpec
}

// Translate walks a Step chain root-to-leaf and assembles KSQL query text,
// per spec §4.4's dispatch table and assembly order: SELECT, FROM, JOIN,
// WHERE, GROUP BY, WINDOW, HAVING, LIMIT, EMIT.
func Translate(root *Step, opts TranslateOptions) (string, error) {
	steps := root.chain()
	if len(steps) == 0 || steps[0].Kind != StepSource {
		return "", &TranslationError{Reason: "query chain must begin with a Source step"}
	}
	source := steps[0]

	var (
		projection      = "*"
		whereConds      []string
		groupByClause   string
		groupKeyColumns []string
		havingClause    string
		limit           int
		hasGroupBy      bool
		joinClause      *JoinClause
		joinInner       *Step
	)

	for _, step := range steps[1:] {
		switch step.Kind {
		case StepWhere:
			cond, err := renderCondition(step.Lambda.Body, false)
			if err != nil {
				return "", err
			}
			whereConds = append(whereConds, cond)
		case StepSelect:
			var rendered string
			var err error
			if hasGroupBy {
				rendered, err = AggregateBuilder(step.Lambda.Body, groupKeyColumns)
			} else {
				rendered, err = ProjectionBuilder(step.Lambda.Body)
			}
			if err != nil {
				return "", err
			}
			projection = rendered
		case StepGroupBy:
			cols, err := GroupByColumns(step.Lambda.Body)
			if err != nil {
				return "", err
			}
			groupKeyColumns = cols
			groupByClause = "GROUP BY " + strings.Join(cols, ", ")
			hasGroupBy = true
		case StepAggregate:
			rendered, err := AggregateBuilder(step.Lambda.Body, groupKeyColumns)
			if err != nil {
				return "", err
			}
			projection = rendered
		case StepHaving:
			if !hasGroupBy {
				return "", &TranslationError{Reason: "Having requires a preceding GroupBy"}
			}
			rendered, err := HavingBuilder(step.Lambda.Body)
			if err != nil {
				return "", err
			}
			havingClause = rendered
		case StepTake:
			if step.Count <= 0 {
				return "", &TranslationError{Reason: "Take requires a positive count"}
			}
			limit = step.Count
		case StepJoin:
			jc, err := JoinBuilder(step.Join)
			if err != nil {
				return "", err
			}
			joinClause = &jc
			joinInner = step.Join.Inner
			projection = jc.Projection
		case StepSkip, StepOrderBy, StepDistinct, StepSetOp:
			return "", &UnsupportedOperationError{Operation: step.Name}
		default:
			return "", &TranslationError{Reason: fmt.Sprintf("unrecognized step kind %d", step.Kind)}
		}
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(projection)
	b.WriteString(" FROM ")
	b.WriteString(source.Topic)

	if joinClause != nil && joinInner != nil {
		b.WriteString(" JOIN ")
		b.WriteString(joinInner.Topic)
		b.WriteString(" ON ")
		b.WriteString(joinClause.On)
	}

	if len(whereConds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(whereConds, " AND "))
	}

	if hasGroupBy {
		b.WriteString(" ")
		b.WriteString(groupByClause)
	}

	if opts.Window != nil {
		if !hasGroupBy {
			return "", &TranslationError{Reason: "a WINDOW clause requires a preceding GroupBy"}
		}
		windowText, err := WindowBuilder(*opts.Window)
		if err != nil {
			return "", err
		}
		b.WriteString(" ")
		b.WriteString(windowText)
	}

	if havingClause != "" {
		b.WriteString(" ")
		b.WriteString(havingClause)
	}

	if limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", limit)
	}

	if opts.Push {
		if opts.Window != nil {
			b.WriteString(" ")
			b.WriteString(EmitClause(*opts.Window))
		} else {
			b.WriteString(" EMIT CHANGES")
		}
	}

	return b.String(), nil
}
