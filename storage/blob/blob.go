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
	"context"
	"io"
	"strings"

	"github.com/juju/errors"
	"github.com/projecthub/recsys/common/log"
	"github.com/projecthub/recsys/config"
	"go.uber.org/zap"
)

// Store keeps named binary objects such as model payloads.
type Store interface {
	// Open an object for reading. A missing object is reported as errors.NotFound.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Create an object for writing. The returned channel yields the result of the upload once the
	// writer has been closed.
	Create(ctx context.Context, name string) (io.WriteCloser, <-chan error, error)
	// List names of objects under the prefix of the store.
	List(ctx context.Context) ([]string, error)
	// Remove an object.
	Remove(ctx context.Context, name string) error
}

// Open a store by configuration.
func Open(cfg config.BlobConfig) (Store, error) {
	switch cfg.Type {
	case config.BlobPOSIX:
		return NewPOSIX(cfg.Dir), nil
	case config.BlobS3:
		return NewS3(cfg.S3)
	case config.BlobGCS:
		return NewGCS(cfg.GCS)
	case config.BlobAzure:
		return NewAzureBlob(cfg.Azure)
	}
	return nil, errors.NotSupportedf("blob store %q", cfg.Type)
}

// Save writes an object through the encoder and waits for the upload to finish.
func Save(ctx context.Context, store Store, name string, encode func(w io.Writer) error) error {
	w, done, err := store.Create(ctx, name)
	if err != nil {
		return errors.Trace(err)
	}
	if err = encode(w); err != nil {
		abort(w, err)
		<-done
		return errors.Trace(err)
	}
	if err = w.Close(); err != nil {
		<-done
		return errors.Trace(err)
	}
	return errors.Trace(<-done)
}

// Load reads an object through the decoder.
func Load(ctx context.Context, store Store, name string, decode func(r io.Reader) error) error {
	r, err := store.Open(ctx, name)
	if err != nil {
		return errors.Trace(err)
	}
	defer r.Close()
	return errors.Trace(decode(r))
}

// abort closes a writer without committing the object when the writer supports it.
func abort(w io.WriteCloser, err error) {
	if aborter, ok := w.(interface{ CloseWithError(error) error }); ok {
		_ = aborter.CloseWithError(err)
	} else {
		_ = w.Close()
	}
}

// upload streams bytes written to the returned writer into the consumer.
func upload(name string, consume func(r io.Reader) error) (io.WriteCloser, <-chan error) {
	pr, pw := io.Pipe()
	done := make(chan error, 1)
	go func() {
		defer close(done)
		err := consume(pr)
		// unblock the writer if the consumer stopped early
		_ = pr.CloseWithError(err)
		if err != nil {
			log.Logger().Error("failed to upload blob", zap.String("name", name), zap.Error(err))
		}
		done <- err
	}()
	return pw, done
}

// joinPrefix joins an object name to a store prefix using slashes.
func joinPrefix(prefix, name string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// trimPrefix is the inverse of joinPrefix.
func trimPrefix(prefix, key string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return key
	}
	return strings.TrimPrefix(strings.TrimPrefix(key, prefix), "/")
}
