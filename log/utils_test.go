// Copyright 2023 SpotHero
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

package log

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// makeLoggerObservable replaces the global logger with an observable core
// so tests can assert on emitted log entries.
func makeLoggerObservable(level zapcore.Level) *observer.ObservedLogs {
	core, recordedLogs := observer.New(level)
	logger = zap.New(core)
	return recordedLogs
}

// verifyLogContext verifies that the zap logger is set on the given context
func verifyLogContext(t *testing.T, ctx context.Context) {
	_, ok := ctx.Value(logKey).(*zap.Logger)
	assert.True(t, ok)
}
