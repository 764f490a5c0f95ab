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

import "github.com/spothero/ksqlstream/expr"

// StepKind identifies a single link in the query expression chain that
// streaming.EntitySet composition operators build up. Translate walks this
// chain from its root (the Source step) to its leaf, applying each step's
// clause to the accumulating KSQL text, mirroring the "visits children
// before applying the node" dispatch rule of the translator.
type StepKind int

// Recognized step kinds. OrderBy, Distinct, and SetOp steps are accepted
// into the chain (so that EntitySet.OrderBy can exist as an API surface at
// all) but Translate always rejects them.
const (
	StepSource StepKind = iota
	StepWhere
	StepSelect
	StepGroupBy
	StepTake
	StepSkip
	StepJoin
	StepAggregate // a bare aggregate call outside of GroupBy, e.g. Orders.Count()
	StepHaving
	StepOrderBy
	StepDistinct
	StepSetOp
)

// JoinSpec captures the canonical 5-argument join form recognized by
// JoinBuilder: an inner source joined against the step chain this JoinSpec
// is attached to, with key selectors for each side and a result projection.
type JoinSpec struct {
	Inner             *Step
	OuterKeySelector  expr.Lambda
	InnerKeySelector  expr.Lambda
	ResultSelector    expr.Lambda
	InnerAlias        string
	OuterAlias        string
}

// Step is one link in the expression chain built by query composition
// operators (Where, Select, GroupBy, Take, Skip, Join, OrderBy, Distinct,
// set operations). Exactly one of the optional fields is populated,
// matching Kind.
type Step struct {
	Kind   StepKind
	Source *Step // nil only when Kind == StepSource

	Lambda *expr.Lambda // Where, Select, GroupBy predicate/projection/key
	Count  int          // Take, Skip
	Join   *JoinSpec    // StepJoin

	// Name is the surface-level method name that produced this step, used
	// verbatim in UnsupportedOperationError messages (e.g. "OrderByDescending",
	// "Union").
	Name string

	Topic string // only set on the Source step
}

// Source creates the root step of a query chain, bound to a topic name.
func Source(topic string) *Step {
	return &Step{Kind: StepSource, Topic: topic}
}

// Where appends a predicate step.
func (s *Step) Where(l expr.Lambda) *Step {
	return &Step{Kind: StepWhere, Source: s, Lambda: &l, Name: "Where"}
}

// Select appends a projection step.
func (s *Step) Select(l expr.Lambda) *Step {
	return &Step{Kind: StepSelect, Source: s, Lambda: &l, Name: "Select"}
}

// GroupBy appends a grouping step.
func (s *Step) GroupBy(l expr.Lambda) *Step {
	return &Step{Kind: StepGroupBy, Source: s, Lambda: &l, Name: "GroupBy"}
}

// Having appends a post-aggregation predicate step. Valid only after a
// GroupBy step earlier in the chain; Translate enforces that ordering.
func (s *Step) Having(l expr.Lambda) *Step {
	return &Step{Kind: StepHaving, Source: s, Lambda: &l, Name: "Having"}
}

// Take appends a LIMIT step.
func (s *Step) Take(n int) *Step {
	return &Step{Kind: StepTake, Source: s, Count: n, Name: "Take"}
}

// Skip appends a skip step. ksqlDB has no native OFFSET for streaming
// queries; Skip is accepted into the chain (so composition code need not
// special-case it) but Translate rejects it the same way it rejects
// OrderBy, matching the non-goal list's spirit of "nothing beyond the
// enumerated operations."
func (s *Step) Skip(n int) *Step {
	return &Step{Kind: StepSkip, Source: s, Count: n, Name: "Skip"}
}

// JoinWith appends a join step using the canonical 5-argument join form.
func (s *Step) JoinWith(inner *Step, outerKey, innerKey, result expr.Lambda) *Step {
	return &Step{
		Kind: StepJoin,
		Source: s,
		Join: &JoinSpec{
			Inner:            inner,
			OuterKeySelector: outerKey,
			InnerKeySelector: innerKey,
			ResultSelector:   result,
		},
		Name: "Join",
	}
}

// Unsupported appends a step that always fails translation; used by
// OrderBy/OrderByDescending/ThenBy/ThenByDescending/Distinct/Union/
// Intersect/Except so that those operators exist on EntitySet purely to
// raise ErrUnsupported at Translate time, per spec.
func (s *Step) Unsupported(kind StepKind, name string) *Step {
	return &Step{Kind: kind, Source: s, Name: name}
}

// chain returns the steps from Source to leaf in application order.
func (s *Step) chain() []*Step {
	var steps []*Step
	for cur := s; cur != nil; cur = cur.Source {
		steps = append([]*Step{cur}, steps...)
	}
	return steps
}

// HasAggregation reports whether any step in the chain rooted at s performs
// grouping or aggregation (StepGroupBy or StepAggregate). Per the
// GroupBy-dominates resolution of spec §9's open question, a caller that
// finds this true must always translate and run the chain as a push query,
// regardless of whether it asked for a point-in-time snapshot or a live
// subscription: ksqlDB materializes an aggregate as a continuously updated
// table, not a one-shot result set.
func HasAggregation(s *Step) bool {
	for cur := s; cur != nil; cur = cur.Source {
		if cur.Kind == StepGroupBy || cur.Kind == StepAggregate {
			return true
		}
	}
	return false
}
