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

package streaming

import (
	"context"
	"fmt"
	"reflect"

	"github.com/spothero/ksqlstream/entity"
	"github.com/spothero/ksqlstream/expr"
	"github.com/spothero/ksqlstream/kafkatransport"
	"github.com/spothero/ksqlstream/ksql"
)

// EntitySet is a typed handle onto one entity's backing topic: a producer
// for writes, a lazily-built query chain for reads, and (for ForEachAsync)
// a raw topic consumer. Composition operators (Where, Take, Skip, GroupBy,
// Having, OrderBy, Distinct) return a new EntitySet wrapping an extended
// ksql.Step chain, the same copy-on-write shape Step itself uses, so a
// base EntitySet can be composed from many times over without the
// branches interfering with each other.
type EntitySet[T any] struct {
	streamCtx  *Context
	descriptor *entity.Descriptor
	step       *ksql.Step

	producer *kafkatransport.Producer
	consumer *kafkatransport.Consumer
}

// NewEntitySet builds an EntitySet[T] rooted at T's backing topic. T must
// already be registered via entity.ModelBuilder.Build.
func NewEntitySet[T any](streamCtx *Context) (*EntitySet[T], error) {
	descriptor, err := descriptorFor[T]()
	if err != nil {
		return nil, err
	}

	var zeroType T
	producer, err := kafkatransport.NewProducer(streamCtx.Kafka, reflect.TypeOf(zeroType), streamCtx.Coordinator, streamCtx.Cache, streamCtx.Logger)
	if err != nil {
		return nil, fmt.Errorf("streaming: building producer for %s: %w", descriptor.Name, err)
	}

	return &EntitySet[T]{
		streamCtx:  streamCtx,
		descriptor: descriptor,
		step:       ksql.Source(descriptor.Topic),
		producer:   producer,
	}, nil
}

func (es *EntitySet[T]) derive(step *ksql.Step) *EntitySet[T] {
	return &EntitySet[T]{
		streamCtx:  es.streamCtx,
		descriptor: es.descriptor,
		step:       step,
		producer:   es.producer,
		consumer:   es.consumer,
	}
}

// Where appends a predicate step.
func (es *EntitySet[T]) Where(l expr.Lambda) *EntitySet[T] { return es.derive(es.step.Where(l)) }

// GroupBy appends a grouping step.
func (es *EntitySet[T]) GroupBy(l expr.Lambda) *EntitySet[T] { return es.derive(es.step.GroupBy(l)) }

// Having appends a post-aggregation predicate step, valid only after GroupBy.
func (es *EntitySet[T]) Having(l expr.Lambda) *EntitySet[T] { return es.derive(es.step.Having(l)) }

// Take appends a LIMIT step.
func (es *EntitySet[T]) Take(n int) *EntitySet[T] { return es.derive(es.step.Take(n)) }

// Skip appends a skip step. ksqlDB streams have no OFFSET; Translate
// always rejects this step, matching the spec's non-goal list.
func (es *EntitySet[T]) Skip(n int) *EntitySet[T] { return es.derive(es.step.Skip(n)) }

// OrderBy appends a step that always fails translation: ksqlDB push/pull
// queries over a stream have no stable row order to sort. The method
// exists so LINQ-shaped caller code compiles and fails with a precise
// UnsupportedOperationError instead of silently returning unsorted rows.
func (es *EntitySet[T]) OrderBy(l expr.Lambda) *EntitySet[T] {
	return es.derive(es.step.Unsupported(ksql.StepOrderBy, "OrderBy"))
}

// OrderByDescending is OrderBy's descending counterpart; equally unsupported.
func (es *EntitySet[T]) OrderByDescending(l expr.Lambda) *EntitySet[T] {
	return es.derive(es.step.Unsupported(ksql.StepOrderBy, "OrderByDescending"))
}

// Distinct appends a step that always fails translation: ksqlDB has no
// stream-level DISTINCT.
func (es *EntitySet[T]) Distinct() *EntitySet[T] {
	return es.derive(es.step.Unsupported(ksql.StepDistinct, "Distinct"))
}

// Select projects an EntitySet[T] into an EntitySet[R]. It is a
// package-level function rather than a method because Go forbids a method
// from introducing a type parameter the receiver does not already bind.
func Select[T, R any](es *EntitySet[T], l expr.Lambda) (*EntitySet[R], error) {
	descriptor, err := descriptorFor[R]()
	if err != nil {
		return nil, err
	}
	return &EntitySet[R]{
		streamCtx:  es.streamCtx,
		descriptor: descriptor,
		step:       es.step.Select(l),
	}, nil
}

// Key computes the entity key value.Produce would derive for value: a bare
// scalar for a single key property, a composite map for more than one, or
// the whole value when the entity declares no key property at all.
func (es *EntitySet[T]) Key(value T) (interface{}, error) {
	rv, err := indirect(es.descriptor, value)
	if err != nil {
		return nil, err
	}
	return extractKey(es.descriptor, rv)
}

// AddOne validates and publishes a single value to the entity's topic.
func (es *EntitySet[T]) AddOne(ctx context.Context, value T) error {
	if err := es.streamCtx.Validator.Validate(es.descriptor, value); err != nil {
		return err
	}
	return es.producer.Produce(ctx, value)
}

// AddMany validates and publishes each value in order, stopping at (and
// reporting) the first failure rather than partially succeeding silently.
func (es *EntitySet[T]) AddMany(ctx context.Context, values []T) error {
	native := make([]interface{}, len(values))
	for i, v := range values {
		if err := es.streamCtx.Validator.Validate(es.descriptor, v); err != nil {
			return fmt.Errorf("streaming: item %d of %d failed validation: %w", i, len(values), err)
		}
		native[i] = v
	}
	return es.producer.ProduceMany(ctx, native)
}

// ToList runs the query chain as a ksqlDB pull query (a point-in-time
// snapshot, no EMIT clause) and decodes every row into T. If the chain
// contains a GroupBy or aggregate step, GroupBy dominates: ksqlDB only
// materializes an aggregate as a continuously updated table, so the
// translated statement always carries EMIT CHANGES regardless of this
// method's pull-query intent.
func (es *EntitySet[T]) ToList(ctx context.Context) ([]T, error) {
	text, err := ksql.Translate(es.step, ksql.TranslateOptions{Push: ksql.HasAggregation(es.step)})
	if err != nil {
		return nil, err
	}
	rows, err := es.streamCtx.KSQL.Query(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("streaming: querying %s: %w", es.descriptor.Name, err)
	}
	values := make([]T, len(rows))
	for i, row := range rows {
		v, err := decodeRow[T](es.descriptor, row)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

// ListResult is delivered on the channel ToListAsync returns: exactly one
// of Values or Err is populated.
type ListResult[T any] struct {
	Values []T
	Err    error
}

// ToListAsync runs ToList on a background goroutine and delivers its
// outcome on a single-element buffered channel, so a caller need not block
// the calling goroutine waiting on ksqlDB's pull-query round trip.
func (es *EntitySet[T]) ToListAsync(ctx context.Context) <-chan ListResult[T] {
	out := make(chan ListResult[T], 1)
	go func() {
		values, err := es.ToList(ctx)
		out <- ListResult[T]{Values: values, Err: err}
		close(out)
	}()
	return out
}

// ForEachAsync dispatches handler once per message consumed directly from
// the entity's backing topic (no ksqlDB query involved), the raw-feed
// counterpart to Subscribe. It is only meaningful on a bare EntitySet (no
// composition operators applied): Where/Select/GroupBy belong to ksqlDB
// query execution, not direct topic consumption.
func (es *EntitySet[T]) ForEachAsync(ctx context.Context, handler func(context.Context, T) error) error {
	if es.consumer == nil {
		var zeroType T
		consumer, err := kafkatransport.NewConsumer(es.streamCtx.Kafka, reflect.TypeOf(zeroType), es.streamCtx.Coordinator, es.streamCtx.Cache, es.streamCtx.Logger)
		if err != nil {
			return fmt.Errorf("streaming: building consumer for %s: %w", es.descriptor.Name, err)
		}
		es.consumer = consumer
	}
	return es.consumer.ForEach(ctx, func(ctx context.Context, value interface{}) error {
		native, ok := value.(map[string]interface{})
		if !ok {
			return fmt.Errorf("streaming: decoded value of type %T is not an Avro record for entity %s", value, es.descriptor.Name)
		}
		typed, err := structFromNative[T](es.descriptor, native)
		if err != nil {
			return err
		}
		return handler(ctx, typed)
	})
}

// Subscribe runs the query chain as a ksqlDB push query (EMIT CHANGES) and
// invokes handler once per row as ksqlDB streams it, until ctx is
// cancelled or the server closes the connection. Unlike ForEachAsync, the
// rows Subscribe delivers have already passed through the chain's
// Where/Select/GroupBy clauses server-side.
func (es *EntitySet[T]) Subscribe(ctx context.Context, handler func(context.Context, T) error) error {
	text, err := ksql.Translate(es.step, ksql.TranslateOptions{Push: true})
	if err != nil {
		return err
	}
	return es.streamCtx.KSQL.QueryStream(ctx, text, func(row ksql.QueryRow) error {
		value, err := decodeRow[T](es.descriptor, row)
		if err != nil {
			return err
		}
		return handler(ctx, value)
	})
}

// ToKSQL renders the query chain's text for inspection/debugging. It never
// fails: if the chain cannot translate as a push query it falls back to a
// pull rendering, and if neither translates it returns the translation
// error's message as plain text rather than propagating an error, since
// callers use this purely to look at a query, not to run one.
func (es *EntitySet[T]) ToKSQL() string {
	if text, err := ksql.Translate(es.step, ksql.TranslateOptions{Push: true}); err == nil {
		return text
	}
	text, err := ksql.Translate(es.step, ksql.TranslateOptions{Push: false})
	if err != nil {
		return fmt.Sprintf("-- unrenderable query: %s", err)
	}
	return text
}

// Close releases the producer and, if ForEachAsync was ever called, the
// raw topic consumer.
func (es *EntitySet[T]) Close() error {
	var firstErr error
	if es.producer != nil {
		if err := es.producer.Close(); err != nil {
			firstErr = err
		}
	}
	if es.consumer != nil {
		if err := es.consumer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
