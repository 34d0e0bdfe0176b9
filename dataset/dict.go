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

package dataset

import (
	"io"

	"github.com/juju/errors"
	"github.com/projecthub/recsys/common/encoding"
)

// FreqDict maps external int64 ids (projects) to contiguous int32 indices in insertion
// order and counts how often each id has been seen.
type FreqDict struct {
	si  map[int64]int32
	is  []int64
	cnt []int32
}

func NewFreqDict() (d *FreqDict) {
	d = &FreqDict{map[int64]int32{}, []int64{}, []int32{}}
	return
}

func (d *FreqDict) Count() int32 {
	return int32(len(d.is))
}

// Id returns the index of s, adding it when absent, and increments its frequency.
func (d *FreqDict) Id(s int64) (y int32) {
	if y, ok := d.si[s]; ok {
		d.cnt[y]++
		return y
	}

	y = int32(len(d.is))
	d.si[s] = y
	d.is = append(d.is, s)
	d.cnt = append(d.cnt, 1)
	return
}

// NotCount returns the index of s, adding it when absent, without touching frequencies.
func (d *FreqDict) NotCount(s int64) (y int32) {
	if y, ok := d.si[s]; ok {
		return y
	}

	y = int32(len(d.is))
	d.si[s] = y
	d.is = append(d.is, s)
	d.cnt = append(d.cnt, 0)
	return
}

// Index looks up the index of s without adding it.
func (d *FreqDict) Index(s int64) (int32, bool) {
	y, ok := d.si[s]
	return y, ok
}

// Key returns the external id of an index.
func (d *FreqDict) Key(id int32) (s int64, ok bool) {
	if id < 0 || int(id) >= len(d.is) {
		return 0, false
	}
	return d.is[id], true
}

func (d *FreqDict) Freq(id int32) int32 {
	if id < 0 || int(id) >= len(d.cnt) {
		return 0
	}
	return d.cnt[id]
}

// Marshal writes keys in index order. Frequencies are not persisted.
func (d *FreqDict) Marshal(w io.Writer) error {
	return encoding.WriteGob(w, d.is)
}

func (d *FreqDict) Unmarshal(r io.Reader) error {
	var keys []int64
	if err := encoding.ReadGob(r, &keys); err != nil {
		return errors.Trace(err)
	}
	*d = *NewFreqDict()
	for _, key := range keys {
		if _, exist := d.si[key]; exist {
			return errors.NotValidf("duplicate key %d", key)
		}
		d.NotCount(key)
	}
	return nil
}
