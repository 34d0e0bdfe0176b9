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

package blob

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/juju/errors"
	"github.com/projecthub/recsys/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPOSIX(t *testing.T) {
	ctx := context.Background()
	client := NewPOSIX(filepath.Join(t.TempDir(), "blob"))

	// list an empty store
	names, err := client.List(ctx)
	assert.NoError(t, err)
	assert.Empty(t, names)

	// write a temp file
	w, done, err := client.Create(ctx, "test")
	require.NoError(t, err)
	_, err = w.Write([]byte("hello world"))
	assert.NoError(t, err)
	assert.NoError(t, w.Close())
	assert.NoError(t, <-done)

	// read the file
	r, err := client.Open(ctx, "test")
	require.NoError(t, err)
	content, err := io.ReadAll(r)
	assert.NoError(t, err)
	assert.Equal(t, "hello world", string(content))
	assert.NoError(t, r.Close())

	// nested names
	err = Save(ctx, client, "models/twin_tower.bin", func(w io.Writer) error {
		_, err := w.Write([]byte("payload"))
		return err
	})
	assert.NoError(t, err)
	names, err = client.List(ctx)
	assert.NoError(t, err)
	assert.Equal(t, []string{"models/twin_tower.bin", "test"}, names)

	// remove the file
	assert.NoError(t, client.Remove(ctx, "test"))
	_, err = client.Open(ctx, "test")
	assert.True(t, errors.Is(err, errors.NotFound))
	assert.True(t, errors.Is(client.Remove(ctx, "test"), errors.NotFound))
}

func TestSaveLoad(t *testing.T) {
	ctx := context.Background()
	store, err := Open(config.BlobConfig{Type: config.BlobPOSIX, Dir: t.TempDir()})
	require.NoError(t, err)

	err = Save(ctx, store, "model", func(w io.Writer) error {
		_, err := w.Write(bytes.Repeat([]byte{1, 2, 3}, 100000))
		return err
	})
	require.NoError(t, err)
	var size int
	err = Load(ctx, store, "model", func(r io.Reader) error {
		data, err := io.ReadAll(r)
		size = len(data)
		return err
	})
	assert.NoError(t, err)
	assert.Equal(t, 300000, size)

	// a failed encoder leaves the previous object untouched
	err = Save(ctx, store, "model", func(w io.Writer) error {
		_, _ = w.Write([]byte{9})
		return errors.New("encode failed")
	})
	assert.Error(t, err)
	err = Load(ctx, store, "model", func(r io.Reader) error {
		data, err := io.ReadAll(r)
		size = len(data)
		return err
	})
	assert.NoError(t, err)
	assert.Equal(t, 300000, size)

	err = Load(ctx, store, "missing", func(r io.Reader) error { return nil })
	assert.True(t, errors.Is(err, errors.NotFound))
}

func TestOpen(t *testing.T) {
	_, err := Open(config.BlobConfig{Type: "ftp"})
	assert.True(t, errors.Is(err, errors.NotSupported))
	_, err = Open(config.BlobConfig{Type: config.BlobAzure})
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestPrefix(t *testing.T) {
	assert.Equal(t, "models/a.bin", joinPrefix("/models/", "a.bin"))
	assert.Equal(t, "a.bin", joinPrefix("", "a.bin"))
	assert.Equal(t, "models/", joinPrefix("models", ""))
	assert.Equal(t, "a.bin", trimPrefix("models", "models/a.bin"))
	assert.Equal(t, "a.bin", trimPrefix("", "a.bin"))
}
