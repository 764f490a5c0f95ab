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

package registry

import "fmt"

// StatusError wraps a non-2xx Schema Registry HTTP response.
type StatusError struct {
	StatusCode int
	ErrorCode  int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("registry: request failed with status %d (error_code %d): %s", e.StatusCode, e.ErrorCode, e.Message)
}

// Retryable reports whether the error represents a transient condition
// worth retrying: 5xx responses and, notably, 409 (conflicting schema
// registration under optimistic concurrency). 4xx client errors other than
// 409 are not retryable: they indicate a malformed or incompatible schema
// that will fail identically on every attempt.
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 409
}
