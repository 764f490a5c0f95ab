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
	"github.com/stretchr/testify/require"

	"github.com/spothero/ksqlstream/expr"
)

func TestAggregateBuilderKeyAndSum(t *testing.T) {
	body := expr.New{Fields: []expr.NewField{
		{Alias: "Region", Value: expr.GroupKey{}},
		{Alias: "Total", Value: expr.Call{
			Method:   "Sum",
			Receiver: expr.Param{Name: "g"},
			Args:     []expr.Node{expr.Lambda{Params: []string{"x"}, Body: expr.Member{Path: []string{"x", "Amount"}}}},
		}},
	}}
	text, err := AggregateBuilder(body, []string{"Region"})
	require.NoError(t, err)
	assert.Equal(t, "Region, SUM(Amount) AS Total", text)
}

func TestAggregateBuilderKeyAliasDiffersFromColumn(t *testing.T) {
	body := expr.New{Fields: []expr.NewField{
		{Alias: "Customer", Value: expr.GroupKey{}},
	}}
	text, err := AggregateBuilder(body, []string{"CustomerId"})
	require.NoError(t, err)
	assert.Equal(t, "CustomerId AS Customer", text)
}

func TestAggregateBuilderGroupKeyWithoutGroupByErrors(t *testing.T) {
	body := expr.New{Fields: []expr.NewField{{Alias: "Region", Value: expr.GroupKey{}}}}
	_, err := AggregateBuilder(body, nil)
	assert.Error(t, err)
}

func TestAggregateBuilderBareGroupKeyRequiresAlias(t *testing.T) {
	_, err := AggregateBuilder(expr.GroupKey{}, []string{"Region"})
	assert.Error(t, err)
}

func TestAggregateBuilderRejectsEmptyConstructor(t *testing.T) {
	_, err := AggregateBuilder(expr.New{}, []string{"Region"})
	assert.Error(t, err)
}

func TestAggregateBuilderCountWithoutArgs(t *testing.T) {
	body := expr.Call{Method: "Count", Receiver: expr.Param{Name: "g"}}
	text, err := AggregateBuilder(body, []string{"Region"})
	require.NoError(t, err)
	assert.Equal(t, "COUNT(*)", text)
}

func TestAggregateBuilderCountWithColumn(t *testing.T) {
	body := expr.Call{
		Method:   "Count",
		Receiver: expr.Param{Name: "g"},
		Args:     []expr.Node{expr.Lambda{Params: []string{"x"}, Body: expr.Member{Path: []string{"x", "Id"}}}},
	}
	text, err := AggregateBuilder(body, []string{"Region"})
	require.NoError(t, err)
	assert.Equal(t, "COUNT(Id)", text)
}

func TestAggregateBuilderUnknownFunction(t *testing.T) {
	body := expr.Call{Method: "StdDev", Receiver: expr.Param{Name: "g"}}
	_, err := AggregateBuilder(body, []string{"Region"})
	assert.Error(t, err)
}

func TestAggregateBuilderRejectsWrongArity(t *testing.T) {
	body := expr.Call{
		Method:   "Max",
		Receiver: expr.Param{Name: "g"},
		Args: []expr.Node{
			expr.Lambda{Params: []string{"x"}, Body: expr.Member{Path: []string{"x", "Amount"}}},
			expr.Const{Value: 1},
		},
	}
	_, err := AggregateBuilder(body, []string{"Region"})
	assert.Error(t, err)
}
