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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spothero/ksqlstream/expr"
)

func TestStepChainOrdersSourceToLeaf(t *testing.T) {
	root := Source("orders")
	leaf := root.
		Where(expr.Lambda{Params: []string{"o"}, Body: expr.Member{Path: []string{"o", "Active"}}}).
		Take(10)

	chain := leaf.chain()
	assert.Len(t, chain, 3)
	assert.Equal(t, StepSource, chain[0].Kind)
	assert.Equal(t, StepWhere, chain[1].Kind)
	assert.Equal(t, StepTake, chain[2].Kind)
}

func TestStepBuildersPreserveSourceImmutably(t *testing.T) {
	root := Source("orders")
	branchA := root.Take(5)
	branchB := root.Take(10)

	assert.Equal(t, root, branchA.Source)
	assert.Equal(t, root, branchB.Source)
	assert.NotEqual(t, branchA, branchB)
}

func TestStepJoinWithCapturesSpec(t *testing.T) {
	outer := Source("orders")
	inner := Source("customers")
	outerKey := expr.Lambda{Params: []string{"o"}, Body: expr.Member{Path: []string{"o", "CustomerId"}}}
	innerKey := expr.Lambda{Params: []string{"c"}, Body: expr.Member{Path: []string{"c", "Id"}}}
	result := expr.Lambda{Params: []string{"o", "c"}, Body: expr.Param{Name: "o"}}

	joined := outer.JoinWith(inner, outerKey, innerKey, result)
	assert.Equal(t, StepJoin, joined.Kind)
	assert.Equal(t, inner, joined.Join.Inner)
	assert.Equal(t, "Join", joined.Name)
}

func TestStepUnsupportedCarriesName(t *testing.T) {
	root := Source("orders")
	step := root.Unsupported(StepDistinct, "Distinct")
	assert.Equal(t, StepDistinct, step.Kind)
	assert.Equal(t, "Distinct", step.Name)
}

func TestHasAggregationFalseForPlainChain(t *testing.T) {
	step := Source("orders").Where(expr.Lambda{
		Params: []string{"o"}, Body: expr.Member{Path: []string{"o", "Active"}},
	}).Take(10)
	assert.False(t, HasAggregation(step))
}

func TestHasAggregationTrueAfterGroupBy(t *testing.T) {
	step := Source("orders").GroupBy(expr.Lambda{
		Params: []string{"o"}, Body: expr.Member{Path: []string{"o", "Region"}},
	})
	assert.True(t, HasAggregation(step))
}

func TestHasAggregationTrueForBareAggregate(t *testing.T) {
	step := Source("orders").Unsupported(StepAggregate, "Count")
	assert.True(t, HasAggregation(step))
}

func TestHasAggregationSurvivesDownstreamSteps(t *testing.T) {
	step := Source("orders").
		GroupBy(expr.Lambda{Params: []string{"o"}, Body: expr.Member{Path: []string{"o", "Region"}}}).
		Take(5)
	assert.True(t, HasAggregation(step))
}
