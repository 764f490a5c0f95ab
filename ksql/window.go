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
	"time"
)

// WindowKind selects which of the three ksqlDB windowed-aggregation forms
// a WindowSpec describes.
type WindowKind int

const (
	Tumbling WindowKind = iota
	Hopping
	Session
)

// WindowSpec describes a WINDOW clause attached to a grouped aggregate
// query, per spec §4.3.3. Retention and GracePeriod are optional (zero
// means "unset"); EmitFinal selects EMIT FINAL over EMIT CHANGES on the
// finished query's trailing EMIT clause.
type WindowSpec struct {
	Kind        WindowKind
	Size        time.Duration // Tumbling, Hopping
	AdvanceBy   time.Duration // Hopping only
	Gap         time.Duration // Session only
	Retention   time.Duration
	GracePeriod time.Duration
	EmitFinal   bool
}

// WindowBuilder renders the WINDOW clause text. SESSION windows reject
// RETENTION, GRACE PERIOD, and EMIT FINAL: ksqlDB session boundaries are
// data-dependent, so a caller asking for a session window plus one of those
// modifiers has asked for something the query cannot express.
func WindowBuilder(w WindowSpec) (string, error) {
	switch w.Kind {
	case Tumbling:
		if w.Size <= 0 {
			return "", &TranslationError{Reason: "TUMBLING window requires a positive SIZE"}
		}
		parts := []string{fmt.Sprintf("SIZE %s", formatDuration(w.Size))}
		parts = append(parts, retentionAndGraceParts(w)...)
		return fmt.Sprintf("WINDOW TUMBLING (%s)", strings.Join(parts, ", ")), nil
	case Hopping:
		if w.Size <= 0 || w.AdvanceBy <= 0 {
			return "", &TranslationError{Reason: "HOPPING window requires a positive SIZE and ADVANCE BY"}
		}
		parts := []string{
			fmt.Sprintf("SIZE %s", formatDuration(w.Size)),
			fmt.Sprintf("ADVANCE BY %s", formatDuration(w.AdvanceBy)),
		}
		parts = append(parts, retentionAndGraceParts(w)...)
		return fmt.Sprintf("WINDOW HOPPING (%s)", strings.Join(parts, ", ")), nil
	case Session:
		if w.Gap <= 0 {
			return "", &TranslationError{Reason: "SESSION window requires a positive gap"}
		}
		if w.Retention > 0 || w.GracePeriod > 0 || w.EmitFinal {
			return "", &UnsupportedOperationError{Operation: "RETENTION/GRACE PERIOD/EMIT FINAL on a SESSION window"}
		}
		return fmt.Sprintf("WINDOW SESSION (%s)", formatDuration(w.Gap)), nil
	default:
		return "", &TranslationError{Reason: fmt.Sprintf("unknown window kind %d", w.Kind)}
	}
}

func retentionAndGraceParts(w WindowSpec) []string {
	var parts []string
	if w.Retention > 0 {
		parts = append(parts, fmt.Sprintf("RETENTION %s", formatDuration(w.Retention)))
	}
	if w.GracePeriod > 0 {
		parts = append(parts, fmt.Sprintf("GRACE PERIOD %s", formatDuration(w.GracePeriod)))
	}
	return parts
}

// EmitClause renders the trailing EMIT clause for a windowed aggregate;
// non-windowed push queries always use EMIT CHANGES, produced directly by
// the translator rather than through this helper.
func EmitClause(w WindowSpec) string {
	if w.EmitFinal {
		return "EMIT FINAL"
	}
	return "EMIT CHANGES"
}

// formatDuration coarsens a duration to the largest whole unit that divides
// it evenly, matching ksqlDB's DAYS/HOURS/MINUTES/SECONDS vocabulary.
func formatDuration(d time.Duration) string {
	switch {
	case d%(24*time.Hour) == 0:
		return fmt.Sprintf("%d DAYS", int64(d/(24*time.Hour)))
	case d%time.Hour == 0:
		return fmt.Sprintf("%d HOURS", int64(d/time.Hour))
	case d%time.Minute == 0:
		return fmt.Sprintf("%d MINUTES", int64(d/time.Minute))
	default:
		return fmt.Sprintf("%d SECONDS", int64(d/time.Second))
	}
}
