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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/spothero/ksqlstream/log"
)

const (
	ksqlContentType = "application/vnd.ksql.v1+json"
	statementsPath  = "/ksql"
	queryPath       = "/query"
)

// RESTClient issues statements and pull/push queries against a ksqlDB
// server's REST API. It is deliberately thin: EntitySet composes the query
// text with Translate and hands the finished string to Query or Statement.
type RESTClient struct {
	HTTP    *http.Client
	BaseURL string
}

// NewRESTClient builds a RESTClient around the given HTTP client, which is
// expected to already carry the retry/circuit-breaker/metrics round tripper
// chain assembled by the transport package.
func NewRESTClient(httpClient *http.Client, baseURL string) *RESTClient {
	return &RESTClient{HTTP: httpClient, BaseURL: baseURL}
}

// StatementPayload is the JSON body for POST /ksql: CREATE/DROP/INSERT and
// any other statement that is not a SELECT.
type StatementPayload struct {
	KSQL                  string            `json:"ksql"`
	StreamsProperties     map[string]string `json:"streamsProperties,omitempty"`
	CommandSequenceNumber int64             `json:"commandSequenceNumber,omitempty"`
}

// QueryPayload is the JSON body for POST /query: a pull or push SELECT.
type QueryPayload struct {
	KSQL              string            `json:"ksql"`
	StreamsProperties map[string]string `json:"streamsProperties,omitempty"`
}

// CommandStatus reports the outcome of a single statement within a
// StatementPayload's KSQL, mirroring ksqlDB's /ksql response shape.
type CommandStatus struct {
	Statement     string `json:"statementText"`
	CommandStatus struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"commandStatus"`
}

// StatementError is returned when ksqlDB rejects a statement or query,
// carrying the server's error code and message.
type StatementError struct {
	ErrorCode int    `json:"error_code"`
	Message   string `json:"message"`
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("ksql: server rejected statement (code %d): %s", e.ErrorCode, e.Message)
}

// Statement executes a non-SELECT statement (CREATE, DROP, INSERT INTO ...
// VALUES) and returns the per-statement command statuses.
func (c *RESTClient) Statement(ctx context.Context, ksql string) ([]CommandStatus, error) {
	var statuses []CommandStatus
	if err := c.post(ctx, statementsPath, StatementPayload{KSQL: ksql}, &statuses); err != nil {
		return nil, xerrors.Errorf("ksql: executing statement: %w", err)
	}
	return statuses, nil
}

// QueryRow is a single row of a pull or push query result.
type QueryRow struct {
	Columns []interface{} `json:"columns"`
}

// Query runs a pull or push SELECT and returns its rows. Push queries
// (EMIT CHANGES/FINAL) stream newline-delimited JSON; this call buffers the
// whole response, so streaming.EntitySet.Subscribe uses QueryStream instead
// for long-lived subscriptions.
func (c *RESTClient) Query(ctx context.Context, ksql string) ([]QueryRow, error) {
	body, err := c.do(ctx, queryPath, QueryPayload{KSQL: ksql})
	if err != nil {
		return nil, xerrors.Errorf("ksql: running query: %w", err)
	}
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, xerrors.Errorf("ksql: reading query response: %w", err)
	}

	var statementErr StatementError
	if err := json.Unmarshal(raw, &statementErr); err == nil && statementErr.ErrorCode != 0 {
		return nil, &statementErr
	}

	var envelopes []struct {
		Row          *QueryRow `json:"row"`
		ErrorMessage string    `json:"errorMessage,omitempty"`
		FinalMessage string    `json:"finalMessage,omitempty"`
	}
	if err := json.Unmarshal(raw, &envelopes); err != nil {
		return nil, xerrors.Errorf("ksql: decoding query response: %w", err)
	}

	rows := make([]QueryRow, 0, len(envelopes))
	for _, e := range envelopes {
		if e.ErrorMessage != "" {
			return rows, &StatementError{Message: e.ErrorMessage}
		}
		if e.Row != nil {
			rows = append(rows, *e.Row)
		}
	}
	return rows, nil
}

// QueryStream opens a push query and invokes onRow for each row as it
// arrives, returning when the server closes the connection or ctx is
// cancelled. It is the transport streaming.EntitySet.Subscribe rides on.
func (c *RESTClient) QueryStream(ctx context.Context, ksql string, onRow func(QueryRow) error) error {
	body, err := c.do(ctx, queryPath, QueryPayload{KSQL: ksql})
	if err != nil {
		return xerrors.Errorf("ksql: opening query stream: %w", err)
	}
	defer body.Close()

	decoder := json.NewDecoder(body)
	// The response is a JSON array streamed one element at a time; consume
	// the opening bracket, then decode element by element.
	if _, err := decoder.Token(); err != nil {
		return xerrors.Errorf("ksql: reading stream header: %w", err)
	}
	for decoder.More() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		var envelope struct {
			Row          *QueryRow `json:"row"`
			ErrorMessage string    `json:"errorMessage,omitempty"`
			FinalMessage string    `json:"finalMessage,omitempty"`
		}
		if err := decoder.Decode(&envelope); err != nil {
			return xerrors.Errorf("ksql: decoding stream row: %w", err)
		}
		if envelope.ErrorMessage != "" {
			return &StatementError{Message: envelope.ErrorMessage}
		}
		if envelope.FinalMessage != "" {
			log.Get(ctx).Debug("ksql push query finished", zap.String("message", envelope.FinalMessage))
			return nil
		}
		if envelope.Row == nil {
			continue
		}
		if err := onRow(*envelope.Row); err != nil {
			return err
		}
	}
	return nil
}

func (c *RESTClient) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	body, err := c.do(ctx, path, payload)
	if err != nil {
		return err
	}
	defer body.Close()
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(body).Decode(out); err != nil {
		return xerrors.Errorf("ksql: decoding response: %w", err)
	}
	return nil
}

func (c *RESTClient) do(ctx context.Context, path string, payload interface{}) (io.ReadCloser, error) {
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		return nil, xerrors.Errorf("ksql: encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, buf)
	if err != nil {
		return nil, xerrors.Errorf("ksql: building request: %w", err)
	}
	req.Header.Set("Content-Type", ksqlContentType)
	req.Header.Set("Accept", ksqlContentType)

	log.Get(ctx).Debug("sending ksqlDB request", zap.String("path", path))
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, xerrors.Errorf("ksql: sending request: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		var statementErr StatementError
		raw, _ := io.ReadAll(resp.Body)
		if jsonErr := json.Unmarshal(raw, &statementErr); jsonErr == nil && statementErr.Message != "" {
			return nil, &statementErr
		}
		return nil, xerrors.Errorf("ksql: server returned status %d", resp.StatusCode)
	}
	return resp.Body, nil
}
