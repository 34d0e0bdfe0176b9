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
	"io"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/juju/errors"
	"github.com/projecthub/recsys/base"
	"github.com/projecthub/recsys/common/log"
	"github.com/projecthub/recsys/common/parallel"
	"github.com/projecthub/recsys/common/progress"
	"github.com/projecthub/recsys/config"
	"github.com/projecthub/recsys/dataset"
	"github.com/projecthub/recsys/model/twotower"
	"github.com/projecthub/recsys/storage/blob"
	"github.com/projecthub/recsys/storage/data"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// payloadTTL bounds how long a loaded payload is served before it is read again from
// the blob store.
const payloadTTL = 10 * time.Minute

// Worker runs training and recommendation jobs against a database and a blob store.
type Worker struct {
	config   *config.Config
	database data.Database
	store    blob.Store
	tracer   *progress.Tracer
	limiter  parallel.RateLimiter

	payloadMutex sync.Mutex
	payloads     *ttlcache.Cache[string, *twotower.Payload]
}

func NewWorker(cfg *config.Config, database data.Database, store blob.Store) *Worker {
	return &Worker{
		config:   cfg,
		database: database,
		store:    store,
		tracer:   progress.NewTracer("worker"),
		limiter:  parallel.NewRateLimiter(cfg.Recommend.WriteRate),
		payloads: ttlcache.New[string, *twotower.Payload](
			ttlcache.WithTTL[string, *twotower.Payload](payloadTTL),
			ttlcache.WithDisableTouchOnHit[string, *twotower.Payload](),
		),
	}
}

// Tracer reports progress of running jobs.
func (w *Worker) Tracer() *progress.Tracer {
	return w.tracer
}

// Train fits a twin tower model on the feedback in the database and writes the payload
// to the blob store. onEpoch is called after every epoch if not nil.
func (w *Worker) Train(ctx context.Context, onEpoch func(epoch int, loss float32)) (twotower.Score, error) {
	if w.database == nil {
		return twotower.Score{}, errors.Trace(data.ErrNoDatabase)
	}
	ctx, span := w.tracer.Start(ctx, "Train", 3)
	defer span.End()

	// load dataset
	startTime := time.Now()
	ds, err := w.loadDataset(ctx)
	if err != nil {
		span.Fail(err)
		return twotower.Score{}, errors.Trace(err)
	}
	TrainStepSecondsVec.WithLabelValues("load_dataset").Set(time.Since(startTime).Seconds())
	span.Add(1)

	// fit model
	startTime = time.Now()
	m, score, err := w.fit(ctx, ds, onEpoch)
	if err != nil {
		span.Fail(err)
		return score, errors.Trace(err)
	}
	TrainStepSecondsVec.WithLabelValues("fit").Set(time.Since(startTime).Seconds())
	span.Add(1)

	// save payload
	startTime = time.Now()
	payload := &twotower.Payload{Model: m, ItemIndex: ds.GetItemIndex()}
	if err = blob.Save(ctx, w.store, w.config.Recommend.ModelName, func(writer io.Writer) error {
		return twotower.MarshalPayload(writer, payload)
	}); err != nil {
		span.Fail(err)
		return score, errors.Trace(err)
	}
	w.payloads.Set(w.config.Recommend.ModelName, payload, ttlcache.DefaultTTL)
	TrainStepSecondsVec.WithLabelValues("save").Set(time.Since(startTime).Seconds())
	span.Add(1)
	log.Logger().Info("complete training twin tower",
		zap.String("model_name", w.config.Recommend.ModelName),
		zap.Int("n_users", ds.CountUsers()),
		zap.Int("n_items", ds.CountItems()),
		zap.Float32("loss", score.Loss()))
	return score, nil
}

// loadDataset loads feedback of the configured types and checks that there is something
// to train on.
func (w *Worker) loadDataset(ctx context.Context) (*dataset.Dataset, error) {
	ds, err := dataset.LoadFromDatabase(ctx, w.database, w.config.Recommend.FeedbackTypes)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if ds.CountItems() == 0 {
		return nil, errors.NotFoundf("projects")
	}
	if ds.CountFeedback() == 0 {
		return nil, errors.NotFoundf("interactions of types %v", w.config.Recommend.FeedbackTypes)
	}
	return ds, nil
}

// fit builds a twin tower model for a dataset and trains it.
func (w *Worker) fit(ctx context.Context, ds *dataset.Dataset, onEpoch func(epoch int, loss float32)) (*twotower.TwinTower, twotower.Score, error) {
	m := twotower.NewTwinTower(w.config.Model.GetParams(), ds.CountUsers(), ds.CountItems(), ds.CountTags())
	if err := m.PrecomputeItemMatrix(ds.GetItems()); err != nil {
		return nil, twotower.Score{}, errors.Trace(err)
	}
	rng := base.NewRandomGenerator(w.config.Model.RandomState)
	batches, err := ds.Batches(rng, m.GetBatchSize())
	if err != nil {
		return nil, twotower.Score{}, errors.Trace(err)
	}
	fitConfig := twotower.NewFitConfig().
		SetJobs(w.config.Recommend.Jobs).
		SetRefreshEvery(w.config.Model.RefreshEvery)
	epochStart := time.Now()
	fitConfig.OnEpoch = func(epoch int, loss float32) {
		TrainEpochLoss.Set(float64(loss))
		TrainEpochSeconds.Observe(time.Since(epochStart).Seconds())
		TrainBatchesTotal.Add(float64(len(batches)))
		epochStart = time.Now()
		if onEpoch != nil {
			onEpoch(epoch, loss)
		}
	}
	score, err := m.Fit(ctx, batches, fitConfig)
	if err != nil {
		return nil, score, errors.Trace(err)
	}
	return m, score, nil
}

// Evaluation is the result of a leave-one-out evaluation.
type Evaluation struct {
	Score     twotower.Score
	NUsers    int
	HR        float32
	NDCG      float32
	Precision float32
}

// Evaluate holds out the last interaction of every user with at least two interactions,
// trains a model on the rest and measures how well held-out projects are ranked in the
// top-k. Nothing is written to the blob store.
func (w *Worker) Evaluate(ctx context.Context, onEpoch func(epoch int, loss float32)) (Evaluation, error) {
	if w.database == nil {
		return Evaluation{}, errors.Trace(data.ErrNoDatabase)
	}
	ctx, span := w.tracer.Start(ctx, "Evaluate", 2)
	defer span.End()
	ds, err := w.loadDataset(ctx)
	if err != nil {
		span.Fail(err)
		return Evaluation{}, errors.Trace(err)
	}
	trainSet, testSet := ds.SplitLeaveOneOut()
	if len(testSet) == 0 {
		err = errors.NotFoundf("users with at least two interactions")
		span.Fail(err)
		return Evaluation{}, err
	}
	m, score, err := w.fit(ctx, trainSet, onEpoch)
	if err != nil {
		span.Fail(err)
		return Evaluation{}, errors.Trace(err)
	}
	span.Add(1)
	scores, err := twotower.Evaluate(m, trainSet, testSet, w.config.Recommend.TopK, w.config.Recommend.Jobs,
		twotower.HR, twotower.NDCG, twotower.Precision)
	if err != nil {
		span.Fail(err)
		return Evaluation{}, errors.Trace(err)
	}
	span.Add(1)
	evaluation := Evaluation{
		Score:     score,
		NUsers:    len(testSet),
		HR:        scores[0],
		NDCG:      scores[1],
		Precision: scores[2],
	}
	log.Logger().Info("complete evaluating twin tower",
		zap.Int("n_test_users", evaluation.NUsers),
		zap.Int("top_k", w.config.Recommend.TopK),
		zap.Float32("hr", evaluation.HR),
		zap.Float32("ndcg", evaluation.NDCG),
		zap.Float32("precision", evaluation.Precision))
	return evaluation, nil
}

// loadPayload returns the cached payload or reads it from the blob store.
func (w *Worker) loadPayload(ctx context.Context) (*twotower.Payload, error) {
	name := w.config.Recommend.ModelName
	if item := w.payloads.Get(name); item != nil {
		return item.Value(), nil
	}
	w.payloadMutex.Lock()
	defer w.payloadMutex.Unlock()
	if item := w.payloads.Get(name); item != nil {
		return item.Value(), nil
	}
	var payload *twotower.Payload
	if err := blob.Load(ctx, w.store, name, func(r io.Reader) error {
		var err error
		payload, err = twotower.UnmarshalPayload(r)
		return err
	}); err != nil {
		return nil, errors.Trace(err)
	}
	payload.Model.SetJobs(w.config.Recommend.Jobs)
	w.payloads.Set(name, payload, ttlcache.DefaultTTL)
	log.Logger().Info("load twin tower payload",
		zap.String("model_name", name),
		zap.Int("n_users", payload.Model.CountUsers()),
		zap.Int("n_items", payload.Model.CountItems()))
	return payload, nil
}

// Recommend generates recommendations for a user and replaces the user's rows in the
// configured category. Recommendations younger than the refresh period are returned as
// they are unless force is set.
func (w *Worker) Recommend(ctx context.Context, userId int32, force bool) ([]data.Recommendation, error) {
	if w.database == nil {
		return nil, errors.Trace(data.ErrNoDatabase)
	}
	categoryId := w.config.Recommend.CategoryId
	if !force {
		lastTime, err := w.database.GetLastRecommendTime(ctx, userId, categoryId)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if !lastTime.IsZero() && time.Since(lastTime) < w.config.Recommend.RefreshPeriod {
			RecommendTotalVec.WithLabelValues("fresh").Inc()
			recs, err := w.database.GetRecommendations(ctx, userId, categoryId)
			return recs, errors.Trace(err)
		}
	}

	startTime := time.Now()
	payload, err := w.loadPayload(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if userId < 0 || int(userId) >= payload.Model.CountUsers() {
		RecommendTotalVec.WithLabelValues("unknown").Inc()
		return nil, errors.NotFoundf("user %d", userId)
	}
	// history of all feedback types, unknown projects dropped
	projectIds, err := w.database.GetUserHistory(ctx, userId)
	if err != nil {
		return nil, errors.Trace(err)
	}
	history := payload.ItemIndices(projectIds)
	topK := min(w.config.Recommend.TopK, payload.Model.CountItems())
	indices, scores, err := payload.Model.Recommend(userId, history, topK)
	if err != nil {
		return nil, errors.Trace(err)
	}
	ids, err := payload.ItemIds(indices)
	if err != nil {
		return nil, errors.Trace(err)
	}
	recs := make([]data.Recommendation, len(ids))
	for i := range ids {
		recs[i] = data.Recommendation{
			UserId:     userId,
			ProjectId:  ids[i],
			CategoryId: categoryId,
			Score:      scores[i],
		}
	}
	w.limiter.Take(1)
	if err = w.database.ReplaceRecommendations(ctx, userId, categoryId, recs); err != nil {
		return nil, errors.Trace(err)
	}
	RecommendSeconds.Observe(time.Since(startTime).Seconds())
	RecommendTotalVec.WithLabelValues("updated").Inc()
	RecommendationsWrittenTotal.Add(float64(len(recs)))
	log.Logger().Debug("update recommendations",
		zap.Int32("user_id", userId),
		zap.Int("n_history", len(history)),
		zap.Int("n_recommend", len(recs)))
	return recs, nil
}

// RecommendAll refreshes recommendations for every user seen in training and returns the
// number of users processed.
func (w *Worker) RecommendAll(ctx context.Context, force bool) (int, error) {
	payload, err := w.loadPayload(ctx)
	if err != nil {
		return 0, errors.Trace(err)
	}
	var users []int32
	for userId := 0; userId < payload.Model.CountUsers(); userId++ {
		if payload.Model.IsUserTrained(int32(userId)) {
			users = append(users, int32(userId))
		}
	}
	ctx, span := w.tracer.Start(ctx, "RecommendAll", len(users))
	defer span.End()
	startTime := time.Now()
	nRecommend := atomic.NewInt64(0)
	err = parallel.Parallel(ctx, len(users), w.config.Recommend.Jobs, func(_, jobId int) error {
		recs, err := w.Recommend(ctx, users[jobId], force)
		if err != nil {
			return errors.Annotatef(err, "user %d", users[jobId])
		}
		nRecommend.Add(int64(len(recs)))
		span.Add(1)
		return nil
	})
	if err != nil {
		span.Fail(err)
		return 0, errors.Trace(err)
	}
	log.Logger().Info("complete recommending all users",
		zap.Int("n_users", len(users)),
		zap.Int64("n_recommend", nRecommend.Load()),
		zap.Duration("used_time", time.Since(startTime)))
	return len(users), nil
}
