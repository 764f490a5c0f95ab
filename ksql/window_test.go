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
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowBuilderTumbling(t *testing.T) {
	text, err := WindowBuilder(WindowSpec{Kind: Tumbling, Size: 5 * time.Minute})
	require.NoError(t, err)
	assert.Equal(t, "WINDOW TUMBLING (SIZE 5 MINUTES)", text)
}

func TestWindowBuilderTumblingRequiresSize(t *testing.T) {
	_, err := WindowBuilder(WindowSpec{Kind: Tumbling})
	assert.Error(t, err)
}

func TestWindowBuilderTumblingWithRetentionAndGrace(t *testing.T) {
	text, err := WindowBuilder(WindowSpec{
		Kind:        Tumbling,
		Size:        1 * time.Hour,
		Retention:   24 * time.Hour,
		GracePeriod: 10 * time.Minute,
	})
	require.NoError(t, err)
	assert.Equal(t, "WINDOW TUMBLING (SIZE 1 HOURS, RETENTION 1 DAYS, GRACE PERIOD 10 MINUTES)", text)
}

func TestWindowBuilderHopping(t *testing.T) {
	text, err := WindowBuilder(WindowSpec{Kind: Hopping, Size: 10 * time.Minute, AdvanceBy: 5 * time.Minute})
	require.NoError(t, err)
	assert.Equal(t, "WINDOW HOPPING (SIZE 10 MINUTES, ADVANCE BY 5 MINUTES)", text)
}

func TestWindowBuilderHoppingRequiresSizeAndAdvance(t *testing.T) {
	_, err := WindowBuilder(WindowSpec{Kind: Hopping, Size: time.Minute})
	assert.Error(t, err)
}

func TestWindowBuilderSession(t *testing.T) {
	text, err := WindowBuilder(WindowSpec{Kind: Session, Gap: 30 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, "WINDOW SESSION (30 SECONDS)", text)
}

func TestWindowBuilderSessionRequiresPositiveGap(t *testing.T) {
	_, err := WindowBuilder(WindowSpec{Kind: Session})
	assert.Error(t, err)
}

func TestWindowBuilderSessionRejectsRetentionGraceAndEmitFinal(t *testing.T) {
	_, err := WindowBuilder(WindowSpec{Kind: Session, Gap: time.Minute, Retention: time.Hour})
	assert.Error(t, err)

	_, err = WindowBuilder(WindowSpec{Kind: Session, Gap: time.Minute, EmitFinal: true})
	assert.Error(t, err)
}

func TestWindowBuilderUnknownKind(t *testing.T) {
	_, err := WindowBuilder(WindowSpec{Kind: WindowKind(99)})
	assert.Error(t, err)
}

func TestEmitClause(t *testing.T) {
	assert.Equal(t, "EMIT CHANGES", EmitClause(WindowSpec{}))
	assert.Equal(t, "EMIT FINAL", EmitClause(WindowSpec{EmitFinal: true}))
}

func TestFormatDurationPicksLargestWholeUnit(t *testing.T) {
	assert.Equal(t, "2 DAYS", formatDuration(48*time.Hour))
	assert.Equal(t, "3 HOURS", formatDuration(3*time.Hour))
	assert.Equal(t, "15 MINUTES", formatDuration(15*time.Minute))
	assert.Equal(t, "45 SECONDS", formatDuration(45*time.Second))
}
