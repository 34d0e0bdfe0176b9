// Copyright 2026 recsys Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package encoding

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func TestWriteString(t *testing.T) {
	a := "abc"
	buf := bytes.NewBuffer(nil)
	err := WriteString(buf, a)
	assert.NoError(t, err)
	var b string
	b, err = ReadString(buf)
	assert.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestWriteGob(t *testing.T) {
	a := map[string]int{"n_factors": 64}
	buf := bytes.NewBuffer(nil)
	err := WriteGob(buf, a)
	assert.NoError(t, err)
	var b map[string]int
	err = ReadGob(buf, &b)
	assert.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestWriteSlices(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	assert.NoError(t, WriteFloat32s(buf, []float32{1.5, -2, 3}))
	assert.NoError(t, WriteInt32s(buf, []int32{7, 8}))
	assert.NoError(t, WriteFloat32s(buf, nil))
	floats, err := ReadFloat32s(buf)
	assert.NoError(t, err)
	assert.Equal(t, []float32{1.5, -2, 3}, floats)
	ints, err := ReadInt32s(buf)
	assert.NoError(t, err)
	assert.Equal(t, []int32{7, 8}, ints)
	floats, err = ReadFloat32s(buf)
	assert.NoError(t, err)
	assert.Empty(t, floats)
}

func TestReadTruncated(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	assert.NoError(t, WriteString(buf, "abcdef"))
	truncated := bytes.NewReader(buf.Bytes()[:6])
	_, err := ReadString(truncated)
	assert.Error(t, err)

	buf.Reset()
	assert.NoError(t, binary.Write(buf, binary.LittleEndian, int32(-1)))
	_, err = ReadFloat32s(buf)
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestFormatFloat32(t *testing.T) {
	assert.Equal(t, "1.5", FormatFloat32(1.5))
}
