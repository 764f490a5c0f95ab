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

// Package registry implements an HTTP client for the Confluent Schema
// Registry, following spothero-tools/kafka's SchemaRegistryClient
// convention of a sync.Map-backed read cache in front of an immutable
// remote store.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/opentracing/opentracing-go"
	"go.uber.org/zap"

	"github.com/spothero/ksqlstream/log"
)

const contentType = "application/vnd.schemaregistry.v1+json"

// Client is an HTTP client for the Confluent Schema Registry. Schemas
// registered under a given ID are immutable, so lookups by ID are cached
// indefinitely; lookups by subject/version are not, since a subject's
// latest version and version list can both change.
type Client struct {
	http    *http.Client
	baseURL string
	byID    sync.Map // uint32 -> string (schema JSON)
}

// NewClient builds a Client around the given HTTP client, which is
// expected to already carry the standard retry/metrics round-tripper
// chain (see Config.NewClient).
func NewClient(httpClient *http.Client, baseURL string) *Client {
	return &Client{http: httpClient, baseURL: baseURL}
}

type schemaResponse struct {
	Schema string `json:"schema"`
}

type registerResponse struct {
	ID int `json:"id"`
}

// SchemaVersion describes a single registered subject/version/schema/id tuple.
type SchemaVersion struct {
	Subject string `json:"subject"`
	Version int    `json:"version"`
	Schema  string `json:"schema"`
	ID      int    `json:"id"`
}

type compatibilityResponse struct {
	IsCompatible bool `json:"is_compatible"`
}

type errorResponse struct {
	ErrorCode int    `json:"error_code"`
	Message   string `json:"message"`
}

// GetByID retrieves the Avro schema JSON registered under id. Results are
// cached forever since registry entries are append-only.
func (c *Client) GetByID(ctx context.Context, id uint32) (string, error) {
	if cached, ok := c.byID.Load(id); ok {
		return cached.(string), nil
	}
	var resp schemaResponse
	if err := c.do(ctx, "GET", fmt.Sprintf("/schemas/ids/%d", id), nil, &resp); err != nil {
		return "", err
	}
	c.byID.Store(id, resp.Schema)
	return resp.Schema, nil
}

// Register registers schema under subject, returning the assigned schema
// ID. Registering an identical schema a second time returns the original ID.
func (c *Client) Register(ctx context.Context, subject, schemaJSON string) (int, error) {
	var resp registerResponse
	body := schemaResponse{Schema: schemaJSON}
	if err := c.do(ctx, "POST", fmt.Sprintf("/subjects/%s/versions", subject), body, &resp); err != nil {
		return 0, err
	}
	return resp.ID, nil
}

// GetLatest retrieves the latest registered version of subject.
func (c *Client) GetLatest(ctx context.Context, subject string) (SchemaVersion, error) {
	return c.getVersion(ctx, subject, "latest")
}

// GetVersion retrieves a specific version of subject.
func (c *Client) GetVersion(ctx context.Context, subject string, version int) (SchemaVersion, error) {
	return c.getVersion(ctx, subject, fmt.Sprintf("%d", version))
}

func (c *Client) getVersion(ctx context.Context, subject, version string) (SchemaVersion, error) {
	var resp SchemaVersion
	err := c.do(ctx, "GET", fmt.Sprintf("/subjects/%s/versions/%s", subject, version), nil, &resp)
	return resp, err
}

// ListVersions lists the registered version numbers for subject.
func (c *Client) ListVersions(ctx context.Context, subject string) ([]int, error) {
	var versions []int
	err := c.do(ctx, "GET", fmt.Sprintf("/subjects/%s/versions", subject), nil, &versions)
	return versions, err
}

// ListSubjects lists every subject known to the registry.
func (c *Client) ListSubjects(ctx context.Context) ([]string, error) {
	var subjects []string
	err := c.do(ctx, "GET", "/subjects", nil, &subjects)
	return subjects, err
}

// CheckCompatibility reports whether schemaJSON is compatible with the
// latest registered version of subject under the subject's configured
// compatibility level.
func (c *Client) CheckCompatibility(ctx context.Context, subject, schemaJSON string) (bool, error) {
	var resp compatibilityResponse
	body := schemaResponse{Schema: schemaJSON}
	err := c.do(ctx, "POST", fmt.Sprintf("/compatibility/subjects/%s/versions/latest", subject), body, &resp)
	return resp.IsCompatible, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "registry."+method+"."+path)
	defer span.Finish()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode schema registry request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build schema registry request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", contentType)

	log.Get(ctx).Debug("schema registry request", zap.String("method", method), zap.String("path", path))
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("schema registry request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return &StatusError{StatusCode: resp.StatusCode, ErrorCode: errResp.ErrorCode, Message: errResp.Message}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode schema registry response: %w", err)
	}
	return nil
}
