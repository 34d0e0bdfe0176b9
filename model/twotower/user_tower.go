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
)

// UserTower maps a user and the history of the user to a vector:
//
//	user = MLP([e_user, mean(items[i] for i in history)])
//
// where items is the precomputed item matrix. The mean of an empty history is the zero vector.
type UserTower struct {
	IdEmbedding *nn.Embedding
	MLP         *nn.MLP
}

// UserCache holds what UserTower.Update needs from one forward pass.
type UserCache struct {
	userIds []int32
	mlp     *nn.Cache
}

func NewUserTower(rng base.RandomGenerator, numUsers, embDim int, hidden []int) *UserTower {
	sizes := append([]int{2 * embDim}, hidden...)
	sizes = append(sizes, embDim)
	return &UserTower{
		IdEmbedding: nn.NewEmbedding(rng, numUsers, embDim),
		MLP:         nn.NewMLP(rng, sizes...),
	}
}

// Dim returns the dimension of user vectors.
func (t *UserTower) Dim() int {
	return t.IdEmbedding.Dim()
}

func (t *UserTower) Parameters() []*nn.Tensor {
	return append(t.IdEmbedding.Parameters(), t.MLP.Parameters()...)
}

// poolHistories averages rows of the item matrix over every history.
func (t *UserTower) poolHistories(histories [][]int32, itemMatrix *nn.Tensor) (*nn.Tensor, error) {
	pooled := nn.Zeros(len(histories), t.Dim())
	numItems := itemMatrix.Rows()
	for i, history := range histories {
		if len(history) == 0 {
			continue
		}
		row := pooled.Row(i)
		for _, itemId := range history {
			if itemId < 0 || int(itemId) >= numItems {
				return nil, errors.NotValidf("history item %d out of [0, %d)", itemId, numItems)
			}
			floats.Add(row, itemMatrix.Row(int(itemId)))
		}
		floats.MulConst(row, 1/float32(len(history)))
	}
	return pooled, nil
}

// Forward computes vectors of a batch of users. Histories are looked up in itemMatrix,
// which must have one row per item and the dimension of the tower.
func (t *UserTower) Forward(userIds []int32, histories [][]int32, itemMatrix *nn.Tensor) (*nn.Tensor, *UserCache, error) {
	if len(histories) != len(userIds) {
		return nil, nil, errors.NotValidf("%d histories for %d users", len(histories), len(userIds))
	}
	if itemMatrix == nil {
		return nil, nil, errors.NotAssignedf("item matrix")
	}
	if itemMatrix.Cols() != t.Dim() {
		return nil, nil, errors.NotValidf("item matrix of shape %v for user dim %d", itemMatrix.Shape(), t.Dim())
	}
	users, err := t.IdEmbedding.Lookup(userIds)
	if err != nil {
		return nil, nil, errors.Annotate(err, "user ids")
	}
	history, err := t.poolHistories(histories, itemMatrix)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	output, mlpCache, err := t.MLP.Forward(nn.Concat(users, history))
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	return output, &UserCache{userIds: userIds, mlp: mlpCache}, nil
}

// Update applies the loss gradient of user vectors to the network and the user
// embeddings. The gradient of the pooled history is dropped: the item matrix is a
// constant input of the user tower.
func (t *UserTower) Update(cache *UserCache, grad *nn.Tensor, lr float32) error {
	if cache == nil {
		return errors.NotValidf("nil user cache")
	}
	inputGrad, err := t.MLP.Backward(cache.mlp, grad, lr)
	if err != nil {
		return errors.Trace(err)
	}
	userGrad, _ := nn.Split(inputGrad, t.Dim())
	return errors.Trace(t.IdEmbedding.AccumulateUpdate(cache.userIds, userGrad, lr))
}

func (t *UserTower) Marshal(w io.Writer) error {
	if err := t.IdEmbedding.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(t.MLP.Marshal(w))
}

func (t *UserTower) Unmarshal(r io.Reader) error {
	t.IdEmbedding = &nn.Embedding{}
	if err := t.IdEmbedding.Unmarshal(r); err != nil {
		return errors.Trace(err)
	}
	t.MLP = &nn.MLP{}
	if err := t.MLP.Unmarshal(r); err != nil {
		return errors.Trace(err)
	}
	if t.MLP.InputDim() != 2*t.Dim() || t.MLP.OutputDim() != t.Dim() {
		return errors.NotValidf("user network %d -> %d for dim %d", t.MLP.InputDim(), t.MLP.OutputDim(), t.Dim())
	}
	return nil
}
