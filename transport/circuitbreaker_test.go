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

package transport

import (
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/afex/hystrix-go/hystrix"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spothero/ksqlstream/transport/mock"
)

func TestNewDefaultCircuitBreakerRoundTripper(t *testing.T) {
	tests := []struct {
		name         string
		roundTripper http.RoundTripper
		expectPanic  bool
	}{
		{"no round tripper leads to a panic", nil, true},
		{
			"the default round tripper is correctly created",
			&mock.RoundTripper{ResponseStatusCodes: []int{http.StatusOK}, CreateErr: false},
			false,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if test.expectPanic {
				assert.Panics(t, func() { _ = NewDefaultCircuitBreakerRoundTripper(test.roundTripper) })
				return
			}
			cbrt := NewDefaultCircuitBreakerRoundTripper(test.roundTripper)
			assert.Equal(t, test.roundTripper, cbrt.RoundTripper)
			assert.Equal(t, make(map[string]hystrix.CommandConfig), cbrt.hostConfiguration)
			assert.Equal(t, make(map[string]bool), cbrt.registeredHostsSet)
			assert.Equal(t, hystrix.CommandConfig{
				Timeout:                int((30 * time.Second).Milliseconds()),
				MaxConcurrentRequests:  int(math.MaxInt32),
				RequestVolumeThreshold: hystrix.DefaultVolumeThreshold,
				SleepWindow:            hystrix.DefaultSleepWindow,
				ErrorPercentThreshold:  hystrix.DefaultErrorPercentThreshold,
			}, cbrt.defaultConfig)
		})
	}
}

func TestWithHostConfiguration(t *testing.T) {
	cbrt := &CircuitBreakerRoundTripper{configMutex: sync.RWMutex{}}
	result := cbrt.WithHostConfiguration(map[string]hystrix.CommandConfig{"host": {}})
	assert.Equal(t, map[string]hystrix.CommandConfig{"host": {}}, result.hostConfiguration)
}

func TestWithDefaultTimeout(t *testing.T) {
	cbrt := NewDefaultCircuitBreakerRoundTripper(http.DefaultTransport)
	result := cbrt.WithDefaultTimeout(5 * time.Second)
	assert.Equal(t, 5000, result.defaultConfig.Timeout)
}

func TestCircuitBreakerRoundTrip(t *testing.T) {
	tests := []struct {
		name                string
		roundTripper        http.RoundTripper
		expectedStatusCodes []int
		hystrixConfig       map[string]hystrix.CommandConfig
		numRequests         int
		expectErr           []bool
		expectPanic         bool
	}{
		{
			"no round tripper results in a panic",
			nil,
			[]int{http.StatusOK},
			map[string]hystrix.CommandConfig{},
			1,
			[]bool{false},
			true,
		},
		{
			"round tripper with no error invokes correctly",
			&mock.RoundTripper{ResponseStatusCodes: []int{http.StatusOK}, CreateErr: false},
			[]int{http.StatusOK},
			map[string]hystrix.CommandConfig{},
			1,
			[]bool{false},
			false,
		},
		{
			"round tripper opens the circuit breaker when enough errors are encountered",
			&mock.RoundTripper{
				ResponseStatusCodes: []int{http.StatusInternalServerError, http.StatusInternalServerError},
				CreateErr:           false,
			},
			[]int{http.StatusInternalServerError, http.StatusInternalServerError},
			map[string]hystrix.CommandConfig{
				"": {Timeout: 1, MaxConcurrentRequests: 1, RequestVolumeThreshold: 1, SleepWindow: 1, ErrorPercentThreshold: 1},
			},
			2,
			[]bool{false, true},
			false,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cbrt := CircuitBreakerRoundTripper{
				RoundTripper:       test.roundTripper,
				registeredHostsSet: make(map[string]bool),
				defaultConfig: hystrix.CommandConfig{
					Timeout: 1, MaxConcurrentRequests: 1, RequestVolumeThreshold: 1, SleepWindow: 1, ErrorPercentThreshold: 1,
				},
				hostConfiguration: test.hystrixConfig,
			}
			if test.expectPanic {
				assert.Panics(t, func() { _, _ = cbrt.RoundTrip(httptest.NewRequest("GET", "/path", nil)) })
				return
			}
			for i := 0; i < test.numRequests; i++ {
				mockReq := httptest.NewRequest("GET", "/path", nil)
				resp, err := cbrt.RoundTrip(mockReq)
				if test.expectErr[i] {
					assert.Error(t, err)
					continue
				}
				assert.NoError(t, err)
				require.NotNil(t, resp)
				assert.Equal(t, test.expectedStatusCodes[i], resp.StatusCode)
			}
		})
	}
}
