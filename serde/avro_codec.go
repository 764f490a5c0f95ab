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

package serde

import (
	"encoding/binary"
	"fmt"

	"github.com/linkedin/goavro/v2"
)

const magicByte = 0x0

// AvroCodec adapts a goavro.Codec to this package's Codec interface,
// prefixing and stripping the 5-byte Confluent wire format header (magic
// byte + big-endian schema ID) the same way
// spothero-tools/kafka.SchemaRegistryClient.DecodeKafkaAvroMessage parses
// it on the read side.
type AvroCodec struct {
	codec    *goavro.Codec
	schemaID uint32
}

// NewAvroCodec builds an AvroCodec from Avro schema JSON and the Schema
// Registry ID it was registered under.
func NewAvroCodec(schemaJSON string, schemaID uint32) (*AvroCodec, error) {
	codec, err := goavro.NewCodec(schemaJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to build avro codec: %w", err)
	}
	return &AvroCodec{codec: codec, schemaID: schemaID}, nil
}

// Serialize encodes native as Confluent-wire-format Avro binary.
func (a *AvroCodec) Serialize(native interface{}) ([]byte, error) {
	header := make([]byte, 5)
	header[0] = magicByte
	binary.BigEndian.PutUint32(header[1:], a.schemaID)
	encoded, err := a.codec.BinaryFromNative(header, native)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize avro value: %w", err)
	}
	return encoded, nil
}

// Deserialize decodes Confluent-wire-format Avro binary into a native Go value.
func (a *AvroCodec) Deserialize(data []byte) (interface{}, error) {
	if len(data) < 5 {
		return nil, fmt.Errorf("avro message too short to contain schema registry header")
	}
	native, _, err := a.codec.NativeFromBinary(data[5:])
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize avro value: %w", err)
	}
	return native, nil
}
