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
	"github.com/projecthub/recsys/base"
	"github.com/projecthub/recsys/common/floats"
	"github.com/projecthub/recsys/common/nn"
	"github.com/projecthub/recsys/dataset"
)

// ItemTower maps item features to vectors:
//
//	item = e_id + MLP([mean(e_tag for tag in tags), e_lang])
//
// The mean of an empty tag list is the zero vector.
type ItemTower struct {
	IdEmbedding   *nn.Embedding
	TagEmbedding  *nn.Embedding
	LangEmbedding *nn.Embedding
	FeatureMLP    *nn.MLP
}

// ItemCache holds what ItemTower.Update needs from one forward pass.
type ItemCache struct {
	items dataset.ItemBatch
	mlp   *nn.Cache
}

func NewItemTower(rng base.RandomGenerator, numItems, embDim, numTags, tagDim, langDim int, hidden []int) *ItemTower {
	sizes := append([]int{tagDim + langDim}, hidden...)
	sizes = append(sizes, embDim)
	return &ItemTower{
		IdEmbedding:   nn.NewEmbedding(rng, numItems, embDim),
		TagEmbedding:  nn.NewEmbedding(rng, numTags, tagDim),
		LangEmbedding: nn.NewEmbedding(rng, dataset.NumLanguages, langDim),
		FeatureMLP:    nn.NewMLP(rng, sizes...),
	}
}

// Dim returns the dimension of item vectors.
func (t *ItemTower) Dim() int {
	return t.IdEmbedding.Dim()
}

func (t *ItemTower) Parameters() []*nn.Tensor {
	var params []*nn.Tensor
	params = append(params, t.IdEmbedding.Parameters()...)
	params = append(params, t.TagEmbedding.Parameters()...)
	params = append(params, t.LangEmbedding.Parameters()...)
	params = append(params, t.FeatureMLP.Parameters()...)
	return params
}

// poolTags averages tag embeddings of every item.
func (t *ItemTower) poolTags(tagLists [][]int32) (*nn.Tensor, error) {
	pooled := nn.Zeros(len(tagLists), t.TagEmbedding.Dim())
	for i, tags := range tagLists {
		if len(tags) == 0 {
			continue
		}
		embeddings, err := t.TagEmbedding.Lookup(tags)
		if err != nil {
			return nil, errors.Annotatef(err, "tags of item %d", i)
		}
		floats.MulConstTo(nn.SumRows(embeddings).Data(), 1/float32(len(tags)), pooled.Row(i))
	}
	return pooled, nil
}

// Forward computes vectors of a batch of items.
func (t *ItemTower) Forward(items dataset.ItemBatch) (*nn.Tensor, *ItemCache, error) {
	if err := items.Validate(); err != nil {
		return nil, nil, errors.Trace(err)
	}
	ids, err := t.IdEmbedding.Lookup(items.Ids)
	if err != nil {
		return nil, nil, errors.Annotate(err, "item ids")
	}
	tags, err := t.poolTags(items.Tags)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	langs, err := t.LangEmbedding.Lookup(items.Langs)
	if err != nil {
		return nil, nil, errors.Annotate(err, "language ids")
	}
	output, mlpCache, err := t.FeatureMLP.Forward(nn.Concat(tags, langs))
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	floats.Add(output.Data(), ids.Data())
	return output, &ItemCache{items: items, mlp: mlpCache}, nil
}

// Predict computes vectors of items without keeping a cache.
func (t *ItemTower) Predict(items dataset.ItemBatch) (*nn.Tensor, error) {
	output, _, err := t.Forward(items)
	return output, err
}

// Update applies the loss gradient of item vectors to every parameter used by the
// forward pass recorded in cache. The gradient of a pooled tag vector is split evenly
// between the listed tags, so repeated tags receive it once per occurrence.
func (t *ItemTower) Update(cache *ItemCache, grad *nn.Tensor, lr float32) error {
	if cache == nil {
		return errors.NotValidf("nil item cache")
	}
	items := cache.items
	if grad.Rows() != items.Len() || grad.Cols() != t.Dim() {
		return errors.NotValidf("gradient of shape %v for %d items of dim %d", grad.Shape(), items.Len(), t.Dim())
	}
	featureGrad, err := t.FeatureMLP.Backward(cache.mlp, grad, lr)
	if err != nil {
		return errors.Trace(err)
	}
	if err = t.IdEmbedding.AccumulateUpdate(items.Ids, grad, lr); err != nil {
		return errors.Trace(err)
	}
	tagGrad, langGrad := nn.Split(featureGrad, t.TagEmbedding.Dim())
	if err = t.LangEmbedding.AccumulateUpdate(items.Langs, langGrad, lr); err != nil {
		return errors.Trace(err)
	}
	var (
		tagIds   []int32
		tagGrads []float32
	)
	for i, tags := range items.Tags {
		if len(tags) == 0 {
			continue
		}
		unit := make([]float32, t.TagEmbedding.Dim())
		floats.MulConstTo(tagGrad.Row(i), 1/float32(len(tags)), unit)
		for _, tag := range tags {
			tagIds = append(tagIds, tag)
			tagGrads = append(tagGrads, unit...)
		}
	}
	if len(tagIds) == 0 {
		return nil
	}
	return errors.Trace(t.TagEmbedding.AccumulateUpdate(tagIds, nn.NewTensor(tagGrads, len(tagIds), t.TagEmbedding.Dim()), lr))
}

func (t *ItemTower) Marshal(w io.Writer) error {
	for _, embedding := range []*nn.Embedding{t.IdEmbedding, t.TagEmbedding, t.LangEmbedding} {
		if err := embedding.Marshal(w); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(t.FeatureMLP.Marshal(w))
}

func (t *ItemTower) Unmarshal(r io.Reader) error {
	t.IdEmbedding, t.TagEmbedding, t.LangEmbedding = &nn.Embedding{}, &nn.Embedding{}, &nn.Embedding{}
	for _, embedding := range []*nn.Embedding{t.IdEmbedding, t.TagEmbedding, t.LangEmbedding} {
		if err := embedding.Unmarshal(r); err != nil {
			return errors.Trace(err)
		}
	}
	t.FeatureMLP = &nn.MLP{}
	if err := t.FeatureMLP.Unmarshal(r); err != nil {
		return errors.Trace(err)
	}
	if t.FeatureMLP.InputDim() != t.TagEmbedding.Dim()+t.LangEmbedding.Dim() || t.FeatureMLP.OutputDim() != t.IdEmbedding.Dim() {
		return errors.NotValidf("item feature network %d -> %d", t.FeatureMLP.InputDim(), t.FeatureMLP.OutputDim())
	}
	return nil
}
