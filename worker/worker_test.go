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

package worker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/projecthub/recsys/config"
	"github.com/projecthub/recsys/storage"
	"github.com/projecthub/recsys/storage/blob"
	"github.com/projecthub/recsys/storage/data"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

type WorkerTestSuite struct {
	suite.Suite
	config   *config.Config
	database data.Database
	store    blob.Store
	worker   *Worker
}

func (suite *WorkerTestSuite) SetupTest() {
	ctx := context.Background()
	dir := suite.T().TempDir()
	var err error
	suite.database, err = data.Open(storage.SQLitePrefix+filepath.Join(dir, "recsys.db"), "")
	suite.Require().NoError(err)
	suite.Require().NoError(suite.database.Init())
	suite.store = blob.NewPOSIX(filepath.Join(dir, "models"))

	suite.config = config.GetDefaultConfig()
	suite.config.Model.NFactors = 8
	suite.config.Model.HiddenLayers = []int{8}
	suite.config.Model.TagDim = 4
	suite.config.Model.LangDim = 4
	suite.config.Model.NEpochs = 5
	suite.config.Model.BatchSize = 2
	suite.config.Recommend.TopK = 3
	suite.config.Recommend.Jobs = 2
	suite.config.Recommend.ModelName = "twin_tower.bin"
	suite.worker = NewWorker(suite.config, suite.database, suite.store)

	suite.Require().NoError(suite.database.BatchInsertProjects(ctx, []data.Project{
		{Id: 10, Lang: "py", TagIds: data.TagIds{0, 1}},
		{Id: 20, Lang: "rs", TagIds: data.TagIds{1}},
		{Id: 30, Lang: "go", TagIds: data.TagIds{2}},
		{Id: 40, Lang: "java"},
	}))
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	suite.Require().NoError(suite.database.BatchInsertInteractions(ctx, []data.Interaction{
		{UserId: 0, ProjectId: 10, Type: "view", CreatedAt: now},
		{UserId: 0, ProjectId: 20, Type: "like", CreatedAt: now.Add(time.Minute)},
		{UserId: 1, ProjectId: 30, Type: "view", CreatedAt: now.Add(2 * time.Minute)},
		{UserId: 2, ProjectId: 40, Type: "like", CreatedAt: now.Add(3 * time.Minute)},
		{UserId: 2, ProjectId: 10, Type: "fork", CreatedAt: now.Add(4 * time.Minute)},
		{UserId: 2, ProjectId: 99, Type: "view", CreatedAt: now.Add(5 * time.Minute)},
	}))
}

func (suite *WorkerTestSuite) TearDownTest() {
	suite.NoError(suite.database.Close())
}

func (suite *WorkerTestSuite) TestTrain() {
	ctx := context.Background()
	var epochs []int
	score, err := suite.worker.Train(ctx, func(epoch int, _ float32) {
		epochs = append(epochs, epoch)
	})
	suite.Require().NoError(err)
	suite.Len(score.Losses, 5)
	suite.Equal([]int{1, 2, 3, 4, 5}, epochs)

	names, err := suite.store.List(ctx)
	suite.NoError(err)
	suite.Equal([]string{"twin_tower.bin"}, names)

	// another worker reads the payload from the blob store
	payload, err := NewWorker(suite.config, suite.database, suite.store).loadPayload(ctx)
	suite.Require().NoError(err)
	suite.Equal(4, payload.Model.CountItems())
	suite.Equal(3, payload.Model.CountUsers())
	suite.Equal(int32(4), payload.ItemIndex.Count())

	progress := suite.worker.Tracer().List()
	suite.Require().Len(progress, 1)
	suite.Equal("Train", progress[0].Name)
}

func (suite *WorkerTestSuite) TestTrainWithoutFeedback() {
	suite.config.Recommend.FeedbackTypes = []string{"star"}
	_, err := suite.worker.Train(context.Background(), nil)
	suite.True(errors.Is(err, errors.NotFound))

	_, err = NewWorker(suite.config, nil, suite.store).Train(context.Background(), nil)
	suite.True(errors.Is(err, errors.NotAssigned))
}

func (suite *WorkerTestSuite) TestRecommend() {
	ctx := context.Background()
	// no model yet
	_, err := suite.worker.Recommend(ctx, 0, true)
	suite.True(errors.Is(err, errors.NotFound))

	_, err = suite.worker.Train(ctx, nil)
	suite.Require().NoError(err)
	recs, err := suite.worker.Recommend(ctx, 2, false)
	suite.Require().NoError(err)
	suite.Len(recs, 3)
	for i, rec := range recs {
		suite.Equal(int32(2), rec.UserId)
		suite.Equal(int32(1), rec.CategoryId)
		suite.Contains([]int64{10, 20, 30, 40}, rec.ProjectId)
		if i > 0 {
			suite.GreaterOrEqual(recs[i-1].Score, rec.Score)
		}
	}
	suite.Len(lo.Uniq(lo.Map(recs, func(rec data.Recommendation, _ int) int64 { return rec.ProjectId })), 3)
	stored, err := suite.database.GetRecommendations(ctx, 2, 1)
	suite.NoError(err)
	suite.Equal(projectIds(recs), projectIds(stored))

	// fresh recommendations are kept
	lastTime, err := suite.database.GetLastRecommendTime(ctx, 2, 1)
	suite.NoError(err)
	fresh, err := suite.worker.Recommend(ctx, 2, false)
	suite.NoError(err)
	suite.Equal(projectIds(recs), projectIds(fresh))
	unchanged, err := suite.database.GetLastRecommendTime(ctx, 2, 1)
	suite.NoError(err)
	suite.True(lastTime.Equal(unchanged))

	// forced recommendations replace old rows
	forced, err := suite.worker.Recommend(ctx, 2, true)
	suite.NoError(err)
	suite.Equal(projectIds(recs), projectIds(forced))
	stored, err = suite.database.GetRecommendations(ctx, 2, 1)
	suite.NoError(err)
	suite.Len(stored, 3)

	// unknown user
	_, err = suite.worker.Recommend(ctx, 7, true)
	suite.True(errors.Is(err, errors.NotFound))
}

func (suite *WorkerTestSuite) TestRecommendTopK() {
	ctx := context.Background()
	suite.config.Recommend.TopK = 10
	_, err := suite.worker.Train(ctx, nil)
	suite.Require().NoError(err)
	recs, err := suite.worker.Recommend(ctx, 0, true)
	suite.NoError(err)
	suite.Len(recs, 4)
}

func (suite *WorkerTestSuite) TestRecommendFreshInOtherCategory() {
	ctx := context.Background()
	_, err := suite.worker.Train(ctx, nil)
	suite.Require().NoError(err)
	suite.Require().NoError(suite.database.ReplaceRecommendations(ctx, 0, 2, []data.Recommendation{
		{UserId: 0, ProjectId: 30, CategoryId: 2, Score: 1},
	}))

	// fresh rows of category 2 do not hold back category 1
	recs, err := suite.worker.Recommend(ctx, 0, false)
	suite.Require().NoError(err)
	suite.Len(recs, 3)
	for _, rec := range recs {
		suite.Equal(int32(1), rec.CategoryId)
	}
	stored, err := suite.database.GetRecommendations(ctx, 0, 1)
	suite.NoError(err)
	suite.Len(stored, 3)
	other, err := suite.database.GetRecommendations(ctx, 0, 2)
	suite.NoError(err)
	suite.Equal([]int64{30}, projectIds(other))
}

func (suite *WorkerTestSuite) TestRecommendAll() {
	ctx := context.Background()
	_, err := suite.worker.Train(ctx, nil)
	suite.Require().NoError(err)
	n, err := suite.worker.RecommendAll(ctx, false)
	suite.NoError(err)
	suite.Equal(3, n)
	for userId := int32(0); userId < 3; userId++ {
		recs, err := suite.database.GetRecommendations(ctx, userId, 1)
		suite.NoError(err)
		suite.Len(recs, 3)
	}
}

func (suite *WorkerTestSuite) TestEvaluate() {
	ctx := context.Background()
	var nEpochs int
	evaluation, err := suite.worker.Evaluate(ctx, func(int, float32) {
		nEpochs++
	})
	suite.Require().NoError(err)
	suite.Equal(5, nEpochs)
	suite.Len(evaluation.Score.Losses, 5)
	// only user 0 has two interactions of the configured types
	suite.Equal(1, evaluation.NUsers)
	suite.Contains([]float32{0, 1}, evaluation.HR)
	suite.GreaterOrEqual(evaluation.NDCG, float32(0))
	suite.LessOrEqual(evaluation.NDCG, float32(1))
	suite.LessOrEqual(evaluation.Precision, float32(1)/3+1e-6)

	// evaluation does not write a model
	names, err := suite.store.List(ctx)
	suite.NoError(err)
	suite.Empty(names)

	// every project ranked
	suite.config.Recommend.TopK = 4
	evaluation, err = suite.worker.Evaluate(ctx, nil)
	suite.Require().NoError(err)
	suite.Equal(float32(1), evaluation.HR)
}

func projectIds(recs []data.Recommendation) []int64 {
	return lo.Map(recs, func(rec data.Recommendation, _ int) int64 {
		return rec.ProjectId
	})
}

func TestWorker(t *testing.T) {
	suite.Run(t, new(WorkerTestSuite))
}
