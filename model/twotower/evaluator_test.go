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
	"testing"

	"github.com/chewxy/math32"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/projecthub/recsys/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	items := newTestItems()
	m := NewTwinTower(newTestParams(), 2, 4, 4)
	require.NoError(t, m.PrecomputeItemMatrix(items))
	d := dataset.NewDataset()
	for _, item := range items {
		_, err := d.AddItem(int64(item.ItemId), item.TagIds, dataset.LanguageList[max(item.LanguageId-1, 0)])
		require.NoError(t, err)
	}
	for _, projectId := range []int64{0, 2} {
		_, err := d.AddInteraction(0, projectId)
		require.NoError(t, err)
	}
	// every item is in a full ranking
	scores, err := Evaluate(m, d, map[int32]int32{0: itemB, 1: itemC, 7: itemA}, 10, 2, HR, NDCG)
	require.NoError(t, err)
	assert.Equal(t, float32(1), scores[0])
	assert.Greater(t, scores[1], float32(0))
	assert.LessOrEqual(t, scores[1], float32(1))

	scores, err = Evaluate(m, d, map[int32]int32{}, 10, 1, HR)
	require.NoError(t, err)
	assert.Equal(t, []float32{0}, scores)
}

func TestMetrics(t *testing.T) {
	targetSet := mapset.NewSet[int32](1, 3)
	assert.Equal(t, float32(1), HR(targetSet, []int32{0, 1}))
	assert.Equal(t, float32(0), HR(targetSet, []int32{0, 2}))
	assert.Equal(t, float32(0.5), Precision(targetSet, []int32{0, 1}))
	assert.Equal(t, float32(0), Precision(targetSet, nil))
	assert.InDelta(t, 1, NDCG(targetSet, []int32{1, 3, 0}), 1e-6)
	assert.InDelta(t, 1/math32.Log2(3)/(1+1/math32.Log2(3)), NDCG(targetSet, []int32{0, 1}), 1e-6)
	assert.Equal(t, float32(0), NDCG(targetSet, nil))
}
