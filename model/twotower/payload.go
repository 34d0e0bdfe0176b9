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

package twotower

import (
	"io"

	"github.com/juju/errors"
	"github.com/projecthub/recsys/common/encoding"
	"github.com/projecthub/recsys/dataset"
)

const payloadVersion = "twin-tower/v1"

// Payload is everything needed to serve recommendations: the trained model and the mapping
// between project ids and item indices.
type Payload struct {
	Model     *TwinTower
	ItemIndex *dataset.FreqDict
}

// ItemIds converts item indices to project ids.
func (p *Payload) ItemIds(indices []int32) ([]int64, error) {
	ids := make([]int64, len(indices))
	for i, index := range indices {
		id, ok := p.ItemIndex.Key(index)
		if !ok {
			return nil, errors.NotFoundf("item index %d", index)
		}
		ids[i] = id
	}
	return ids, nil
}

// ItemIndices converts project ids to item indices. Unknown projects are dropped.
func (p *Payload) ItemIndices(ids []int64) []int32 {
	indices := make([]int32, 0, len(ids))
	for _, id := range ids {
		if index, ok := p.ItemIndex.Index(id); ok {
			indices = append(indices, index)
		}
	}
	return indices
}

func MarshalPayload(w io.Writer, payload *Payload) error {
	if payload.Model == nil || payload.ItemIndex == nil {
		return errors.NotValidf("incomplete payload")
	}
	if int(payload.ItemIndex.Count()) != payload.Model.CountItems() {
		return errors.NotValidf("payload with %d indexed items for %d model items",
			payload.ItemIndex.Count(), payload.Model.CountItems())
	}
	if err := encoding.WriteString(w, payloadVersion); err != nil {
		return errors.Trace(err)
	}
	if err := payload.ItemIndex.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(payload.Model.Marshal(w))
}

func UnmarshalPayload(r io.Reader) (*Payload, error) {
	version, err := encoding.ReadString(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if version != payloadVersion {
		return nil, errors.NotSupportedf("payload version %q", version)
	}
	payload := &Payload{
		Model:     new(TwinTower),
		ItemIndex: dataset.NewFreqDict(),
	}
	if err = payload.ItemIndex.Unmarshal(r); err != nil {
		return nil, errors.Trace(err)
	}
	if err = payload.Model.Unmarshal(r); err != nil {
		return nil, errors.Trace(err)
	}
	if int(payload.ItemIndex.Count()) != payload.Model.CountItems() {
		return nil, errors.NotValidf("payload with %d indexed items for %d model items",
			payload.ItemIndex.Count(), payload.Model.CountItems())
	}
	return payload, nil
}
