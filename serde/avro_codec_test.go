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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvroCodecRoundTrip(t *testing.T) {
	schema := `{"type":"record","name":"Order","fields":[{"name":"id","type":"string"}]}`
	codec, err := NewAvroCodec(schema, 42)
	require.NoError(t, err)

	encoded, err := codec.Serialize(map[string]interface{}{"id": "abc"})
	require.NoError(t, err)
	assert.Equal(t, byte(0x0), encoded[0], "wire format must start with the magic byte")

	decoded, err := codec.Deserialize(encoded)
	require.NoError(t, err)
	native, ok := decoded.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "abc", native["id"])
}

func TestAvroCodecRejectsShortMessages(t *testing.T) {
	schema := `"string"`
	codec, err := NewAvroCodec(schema, 1)
	require.NoError(t, err)
	_, err = codec.Deserialize([]byte{0x0, 0x1})
	require.Error(t, err)
}
