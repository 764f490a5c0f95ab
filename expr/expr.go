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

// Package expr defines the expression-tree AST that the ksql package walks
// to emit KSQL text. It replaces the reflection-driven expression trees of
// the original source with an explicit sum type of node kinds so that clause
// builders can pattern-match instead of reflecting.
package expr

// BinaryOp identifies a binary operator recognized by the translator.
type BinaryOp string

// Supported binary operators. Anything outside this set is Unsupported.
const (
	Add  BinaryOp = "+"
	Sub  BinaryOp = "-"
	Mul  BinaryOp = "*"
	Div  BinaryOp = "/"
	Mod  BinaryOp = "%"
	Eq   BinaryOp = "="
	Neq  BinaryOp = "<>"
	Gt   BinaryOp = ">"
	Gte  BinaryOp = ">="
	Lt   BinaryOp = "<"
	Lte  BinaryOp = "<="
	And  BinaryOp = "AND"
	Or   BinaryOp = "OR"
	Equals BinaryOp = "EQUALS" // composite-key join equality, desugars to AND-of-Eq
)

// UnaryOp identifies a unary operator recognized by the translator.
type UnaryOp string

// Not is the only unary operator the language needs.
const Not UnaryOp = "NOT"

// Node is the sealed interface implemented by every AST node kind.
type Node interface {
	isNode()
}

// Param is a bare lambda parameter reference, e.g. `o` in `o => ...`. When it
// appears as a projection body on its own it means "select all columns".
type Param struct {
	Name string
}

// Member is a (possibly nested) property access rooted at a lambda
// parameter, e.g. `o.Customer.Id` becomes Path: ["o", "Customer", "Id"].
type Member struct {
	Path []string
}

// Const is a literal value: string, bool, number, or nil.
type Const struct {
	Value interface{}
}

// Binary is a binary operation node, e.g. `o.Amount > 1000`.
type Binary struct {
	Op    BinaryOp
	Left  Node
	Right Node
}

// Unary is a unary operation node, e.g. `!o.IsActive`.
type Unary struct {
	Op      UnaryOp
	Operand Node
}

// NewField is a single field inside an anonymous-constructor node.
type NewField struct {
	Alias string
	Value Node
}

// New is an anonymous-constructor node, e.g. `new { a.X, a.Y }` or
// `new { CustomerId = g.Key, Total = g.Sum(x => x.Amount) }`.
type New struct {
	Fields []NewField
}

// Call is a method-call node. Receiver is nil for free functions (none exist
// in this language); for member-style calls like `x.ToLower()` or
// `g.Sum(x => x.Amount)`, Receiver holds the receiver sub-expression and Args
// holds the call arguments (which may themselves be Lambda nodes).
type Call struct {
	Method   string
	Receiver Node
	Args     []Node
}

// Convert is a cast/convert node. The translator treats casts as transparent
// except when ProjectionBuilder needs to know the target is a string (for
// `entity => object`-style projections where a CAST AS VARCHAR is implied by
// a ToString call, not by Convert itself).
type Convert struct {
	Operand Node
}

// Lambda records a lambda's parameter names and body so that Call arguments
// such as key selectors and result selectors can be inspected by clause
// builders without re-deriving parameter names from context.
type Lambda struct {
	Params []string
	Body   Node
}

// GroupKey represents `g.Key` access within a post-GroupBy projection.
type GroupKey struct{}

func (Param) isNode()    {}
func (Member) isNode()   {}
func (Const) isNode()    {}
func (Binary) isNode()   {}
func (Unary) isNode()    {}
func (New) isNode()      {}
func (Call) isNode()     {}
func (Convert) isNode()  {}
func (Lambda) isNode()   {}
func (GroupKey) isNode() {}
