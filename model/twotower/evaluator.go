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

	"github.com/chewxy/math32"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
	"github.com/projecthub/recsys/common/parallel"
	"github.com/projecthub/recsys/dataset"
	"github.com/samber/lo"
)

/* Evaluate Item Ranking */

// Metric is used by evaluators in personalized ranking tasks.
type Metric func(targetSet mapset.Set[int32], rankList []int32) float32

// Evaluate ranks all items for every user in testSet given the training history of the user and
// returns the average of every metric. Users unknown to the model are skipped.
func Evaluate(m *TwinTower, trainSet *dataset.Dataset, testSet map[int32]int32, topK, nJobs int, scorers ...Metric) ([]float32, error) {
	nJobs = max(nJobs, 1)
	topK = min(topK, m.CountItems())
	partSum := make([][]float32, nJobs)
	partCount := make([]float32, nJobs)
	for i := 0; i < nJobs; i++ {
		partSum[i] = make([]float32, len(scorers))
	}
	users := lo.Filter(lo.Keys(testSet), func(userId int32, _ int) bool {
		return int(userId) < m.CountUsers()
	})
	err := parallel.Parallel(context.Background(), len(users), nJobs, func(workerId, jobId int) error {
		userId := users[jobId]
		rankList, _, err := m.Recommend(userId, trainSet.GetUserHistory(userId), topK)
		if err != nil {
			return errors.Trace(err)
		}
		targetSet := mapset.NewThreadUnsafeSet(testSet[userId])
		partCount[workerId]++
		for i, metric := range scorers {
			partSum[workerId][i] += metric(targetSet, rankList)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	sum := make([]float32, len(scorers))
	var count float32
	for i := 0; i < nJobs; i++ {
		for j := range partSum[i] {
			sum[j] += partSum[i][j]
		}
		count += partCount[i]
	}
	if count == 0 {
		return sum, nil
	}
	for j := range sum {
		sum[j] /= count
	}
	return sum, nil
}

// NDCG means Normalized Discounted Cumulative Gain.
func NDCG(targetSet mapset.Set[int32], rankList []int32) float32 {
	// IDCG = \sum^{|REL|}_{i=1} \frac {1} {\log_2(i+1)}
	idcg := float32(0)
	for i := 0; i < targetSet.Cardinality() && i < len(rankList); i++ {
		idcg += 1.0 / math32.Log2(float32(i)+2.0)
	}
	if idcg == 0 {
		return 0
	}
	// DCG = \sum^{N}_{i=1} \frac {2^{rel_i}-1} {\log_2(i+1)}
	dcg := float32(0)
	for i, itemId := range rankList {
		if targetSet.Contains(itemId) {
			dcg += 1.0 / math32.Log2(float32(i)+2.0)
		}
	}
	return dcg / idcg
}

// Precision is the fraction of relevant items among the recommended items.
func Precision(targetSet mapset.Set[int32], rankList []int32) float32 {
	if len(rankList) == 0 {
		return 0
	}
	hit := float32(0)
	for _, itemId := range rankList {
		if targetSet.Contains(itemId) {
			hit++
		}
	}
	return hit / float32(len(rankList))
}

// HR means Hit Ratio.
func HR(targetSet mapset.Set[int32], rankList []int32) float32 {
	for _, itemId := range rankList {
		if targetSet.Contains(itemId) {
			return 1
		}
	}
	return 0
}
