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
	"context"
	"fmt"
	"io"
	"time"

	"github.com/bits-and-blooms/bitset"
	"github.com/juju/errors"
	"github.com/projecthub/recsys/common/encoding"
	"github.com/projecthub/recsys/common/floats"
	"github.com/projecthub/recsys/common/log"
	"github.com/projecthub/recsys/common/nn"
	"github.com/projecthub/recsys/common/parallel"
	"github.com/projecthub/recsys/common/progress"
	"github.com/projecthub/recsys/dataset"
	"github.com/projecthub/recsys/model"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Score is the result of fitting.
type Score struct {
	// Losses are the average BPR losses of epochs.
	Losses []float32
}

// Loss returns the average loss of the last epoch.
func (s Score) Loss() float32 {
	if len(s.Losses) == 0 {
		return 0
	}
	return s.Losses[len(s.Losses)-1]
}

type FitConfig struct {
	Jobs    int
	Verbose int
	// RefreshEvery recomputes the item matrix every n epochs. The matrix is always
	// recomputed after the last epoch.
	RefreshEvery int
	// OnEpoch is called after every epoch with the epoch number starting from 1.
	OnEpoch func(epoch int, loss float32)
}

func NewFitConfig() *FitConfig {
	return &FitConfig{
		Jobs:    1,
		Verbose: 1,
	}
}

func (config *FitConfig) SetVerbose(verbose int) *FitConfig {
	config.Verbose = verbose
	return config
}

func (config *FitConfig) SetJobs(jobs int) *FitConfig {
	config.Jobs = jobs
	return config
}

func (config *FitConfig) SetRefreshEvery(epochs int) *FitConfig {
	config.RefreshEvery = epochs
	return config
}

func (config *FitConfig) LoadDefaultIfNil() *FitConfig {
	if config == nil {
		return NewFitConfig()
	}
	return config
}

// TwinTower scores items for users by the cosine similarity between the outputs of a user
// tower and an item tower, trained with the BPR loss:
//
//	score(u, i) = <normalize(user(u, history(u))), normalize(item(i))>
//
// Item vectors are precomputed into the item matrix, which also feeds the history of users.
type TwinTower struct {
	model.BaseModel
	UserTower  *UserTower
	ItemTower  *ItemTower
	ItemMatrix *nn.Tensor
	// UserTrained marks users seen in training.
	UserTrained *bitset.BitSet
	items       []dataset.ItemRecord
	jobs        int
	// Hyper parameters
	nFactors     int
	hiddenLayers []int
	tagDim       int
	langDim      int
	lr           float32
	nEpochs      int
	batchSize    int
}

var _ model.Model = (*TwinTower)(nil)

// NewTwinTower creates a twin tower model for numUsers users, numItems items and numTags tags.
func NewTwinTower(params model.Params, numUsers, numItems, numTags int) *TwinTower {
	m := new(TwinTower)
	m.SetParams(params)
	rng := m.GetRandomGenerator()
	m.UserTower = NewUserTower(rng, numUsers, m.nFactors, m.hiddenLayers)
	m.ItemTower = NewItemTower(rng, numItems, m.nFactors, numTags, m.tagDim, m.langDim, m.hiddenLayers)
	m.UserTrained = bitset.New(uint(numUsers))
	return m
}

// SetParams sets hyper-parameters. Towers are not rebuilt.
func (m *TwinTower) SetParams(params model.Params) {
	m.BaseModel.SetParams(params)
	m.nFactors = m.Params.GetInt(model.NFactors, 64)
	m.hiddenLayers = m.Params.GetIntSlice(model.HiddenLayers, []int{64})
	m.tagDim = m.Params.GetInt(model.TagDim, 16)
	m.langDim = m.Params.GetInt(model.LangDim, 16)
	m.lr = m.Params.GetFloat32(model.Lr, 0.01)
	m.nEpochs = m.Params.GetInt(model.NEpochs, 10)
	m.batchSize = m.Params.GetInt(model.BatchSize, 32)
	m.jobs = 1
}

// SetJobs sets the number of goroutines used to score items.
func (m *TwinTower) SetJobs(jobs int) {
	m.jobs = max(jobs, 1)
}

func (m *TwinTower) GetBatchSize() int {
	return m.batchSize
}

func (m *TwinTower) CountUsers() int {
	return m.UserTower.IdEmbedding.Count()
}

func (m *TwinTower) CountItems() int {
	return m.ItemTower.IdEmbedding.Count()
}

// IsUserTrained reports whether a user appeared in any training batch.
func (m *TwinTower) IsUserTrained(userId int32) bool {
	return userId >= 0 && m.UserTrained.Test(uint(userId))
}

// Items returns the item records the item matrix was computed from.
func (m *TwinTower) Items() []dataset.ItemRecord {
	return m.items
}

// PrecomputeItemMatrix runs the item tower over all items and replaces the item matrix with
// the normalized vectors. Record i must describe item i.
func (m *TwinTower) PrecomputeItemMatrix(items []dataset.ItemRecord) error {
	for i, item := range items {
		if int(item.ItemId) != i {
			return errors.NotValidf("item record %d with item id %d", i, item.ItemId)
		}
	}
	vectors, err := m.ItemTower.Predict(dataset.NewItemBatch(items))
	if err != nil {
		return errors.Trace(err)
	}
	m.ItemMatrix = nn.L2Normalize(vectors)
	m.items = items
	return nil
}

// Recommend returns the topK items with the largest scores for a user in descending order
// of score. The history holds indices of items the user interacted with.
func (m *TwinTower) Recommend(userId int32, history []int32, topK int) ([]int32, []float32, error) {
	if m.ItemMatrix == nil {
		return nil, nil, errors.NotAssignedf("item matrix")
	}
	output, _, err := m.UserTower.Forward([]int32{userId}, [][]int32{history}, m.ItemMatrix)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	user := nn.L2NormalizeVector(output.Row(0))
	scores := make([]float32, m.ItemMatrix.Rows())
	chunks := parallel.Split(lo.Range(len(scores)), m.jobs)
	err = parallel.For(context.Background(), len(chunks), m.jobs, func(j int) {
		for _, i := range chunks[j] {
			scores[i] = floats.Dot(user, m.ItemMatrix.Row(i))
		}
	})
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	indices, err := nn.TopKIndices(scores, topK)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	items := make([]int32, len(indices))
	itemScores := make([]float32, len(indices))
	for i, index := range indices {
		items[i] = int32(index)
		itemScores[i] = scores[index]
	}
	return items, itemScores, nil
}

// TrainBatch runs one BPR step on a batch and returns the loss. All forward passes and
// shape checks run before any parameter changes, so a failed step leaves the model as it was.
func (m *TwinTower) TrainBatch(batch *dataset.Batch, lr float32) (float32, error) {
	if err := batch.Validate(); err != nil {
		return 0, errors.Trace(err)
	}
	if m.ItemMatrix == nil {
		return 0, errors.NotAssignedf("item matrix")
	}
	users, userCache, err := m.UserTower.Forward(batch.UserIds, batch.Histories, m.ItemMatrix)
	if err != nil {
		return 0, errors.Trace(err)
	}
	positives, positiveCache, err := m.ItemTower.Forward(batch.Positives)
	if err != nil {
		return 0, errors.Annotate(err, "positives")
	}
	negatives, negativeCache, err := m.ItemTower.Forward(batch.Negatives)
	if err != nil {
		return 0, errors.Annotate(err, "negatives")
	}
	dim := users.Cols()
	if positives.Cols() != dim || negatives.Cols() != dim {
		return 0, errors.NotValidf("item vectors of dim %d and %d for user vectors of dim %d",
			positives.Cols(), negatives.Cols(), dim)
	}
	users = nn.L2Normalize(users)
	positives = nn.L2Normalize(positives)
	negatives = nn.L2Normalize(negatives)

	n := batch.Len()
	diff := make([]float32, n)
	for i := 0; i < n; i++ {
		diff[i] = floats.Dot(users.Row(i), positives.Row(i)) - floats.Dot(users.Row(i), negatives.Row(i))
	}
	loss, gradDiff := nn.BPRLoss(diff, nil)

	// d(diff)/d(user) = pos - neg, d(diff)/d(pos) = user, d(diff)/d(neg) = -user
	gradUsers := nn.Zeros(n, dim)
	gradPositives := nn.Zeros(n, dim)
	gradNegatives := nn.Zeros(n, dim)
	for i := 0; i < n; i++ {
		floats.SubTo(positives.Row(i), negatives.Row(i), gradUsers.Row(i))
		floats.MulConst(gradUsers.Row(i), gradDiff[i])
		floats.MulConstTo(users.Row(i), gradDiff[i], gradPositives.Row(i))
		floats.MulConstTo(users.Row(i), -gradDiff[i], gradNegatives.Row(i))
	}
	if err = m.UserTower.Update(userCache, gradUsers, lr); err != nil {
		return 0, errors.Trace(err)
	}
	if err = m.ItemTower.Update(positiveCache, gradPositives, lr); err != nil {
		return 0, errors.Annotate(err, "positives")
	}
	if err = m.ItemTower.Update(negativeCache, gradNegatives, lr); err != nil {
		return 0, errors.Annotate(err, "negatives")
	}
	for _, userId := range batch.UserIds {
		m.UserTrained.Set(uint(userId))
	}
	return loss, nil
}

// Fit trains the model on batches for the configured number of epochs. The item matrix must be
// precomputed before fitting and is recomputed after the last epoch.
func (m *TwinTower) Fit(ctx context.Context, batches []*dataset.Batch, config *FitConfig) (Score, error) {
	config = config.LoadDefaultIfNil()
	if m.ItemMatrix == nil {
		return Score{}, errors.NotAssignedf("item matrix")
	}
	m.SetJobs(config.Jobs)
	log.Logger().Info("fit twin tower",
		zap.Int("n_batches", len(batches)),
		zap.Int("n_users", m.CountUsers()),
		zap.Int("n_items", m.CountItems()),
		zap.Any("params", m.GetParams()),
		zap.Int("refresh_every", config.RefreshEvery))
	_, span := progress.Start(ctx, "TwinTower.Fit", m.nEpochs)
	defer span.End()
	var score Score
	for epoch := 1; epoch <= m.nEpochs; epoch++ {
		fitStart := time.Now()
		var totalLoss float32
		for _, batch := range batches {
			if err := ctx.Err(); err != nil {
				span.Fail(err)
				return score, errors.Trace(err)
			}
			loss, err := m.TrainBatch(batch, m.lr)
			if err != nil {
				span.Fail(err)
				return score, errors.Trace(err)
			}
			totalLoss += loss
		}
		var avgLoss float32
		if len(batches) > 0 {
			avgLoss = totalLoss / float32(len(batches))
		}
		score.Losses = append(score.Losses, avgLoss)
		if config.RefreshEvery > 0 && epoch%config.RefreshEvery == 0 && epoch < m.nEpochs {
			if err := m.PrecomputeItemMatrix(m.items); err != nil {
				span.Fail(err)
				return score, errors.Trace(err)
			}
		}
		fitTime := time.Since(fitStart)
		if config.Verbose > 0 && (epoch%config.Verbose == 0 || epoch == m.nEpochs) {
			log.Logger().Info(fmt.Sprintf("fit twin tower %v/%v", epoch, m.nEpochs),
				zap.String("fit_time", fitTime.String()),
				zap.Float32("loss", avgLoss))
		} else {
			log.Logger().Debug(fmt.Sprintf("fit twin tower %v/%v", epoch, m.nEpochs),
				zap.String("fit_time", fitTime.String()),
				zap.Float32("loss", avgLoss))
		}
		span.Add(1)
		if config.OnEpoch != nil {
			config.OnEpoch(epoch, avgLoss)
		}
	}
	if err := m.PrecomputeItemMatrix(m.items); err != nil {
		span.Fail(err)
		return score, errors.Trace(err)
	}
	return score, nil
}

// Marshal model into byte stream.
func (m *TwinTower) Marshal(w io.Writer) error {
	// write params
	if err := encoding.WriteGob(w, m.Params); err != nil {
		return errors.Trace(err)
	}
	// write towers
	if err := m.UserTower.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	if err := m.ItemTower.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	// write item records and the item matrix
	if err := encoding.WriteGob(w, m.items); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteGob(w, m.ItemMatrix != nil); err != nil {
		return errors.Trace(err)
	}
	if m.ItemMatrix != nil {
		if err := m.ItemMatrix.Marshal(w); err != nil {
			return errors.Trace(err)
		}
	}
	// write trained users
	if _, err := m.UserTrained.WriteTo(w); err != nil {
		return errors.Trace(err)
	}
	return nil
}

// Unmarshal model from byte stream.
func (m *TwinTower) Unmarshal(r io.Reader) error {
	// read params
	var params model.Params
	if err := encoding.ReadGob(r, &params); err != nil {
		return errors.Trace(err)
	}
	m.SetParams(params)
	// read towers
	m.UserTower = &UserTower{}
	if err := m.UserTower.Unmarshal(r); err != nil {
		return errors.Trace(err)
	}
	m.ItemTower = &ItemTower{}
	if err := m.ItemTower.Unmarshal(r); err != nil {
		return errors.Trace(err)
	}
	if m.UserTower.Dim() != m.ItemTower.Dim() {
		return errors.NotValidf("user dim %d and item dim %d", m.UserTower.Dim(), m.ItemTower.Dim())
	}
	// read item records and the item matrix
	m.items = nil
	if err := encoding.ReadGob(r, &m.items); err != nil {
		return errors.Trace(err)
	}
	var hasMatrix bool
	if err := encoding.ReadGob(r, &hasMatrix); err != nil {
		return errors.Trace(err)
	}
	m.ItemMatrix = nil
	if hasMatrix {
		matrix := &nn.Tensor{}
		if err := matrix.Unmarshal(r); err != nil {
			return errors.Trace(err)
		}
		if matrix.Rows() != m.CountItems() || matrix.Cols() != m.ItemTower.Dim() {
			return errors.NotValidf("item matrix of shape %v", matrix.Shape())
		}
		m.ItemMatrix = matrix
	}
	// read trained users
	m.UserTrained = &bitset.BitSet{}
	if _, err := m.UserTrained.ReadFrom(r); err != nil {
		return errors.Trace(err)
	}
	return nil
}
