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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	LabelStep   = "step"
	LabelStatus = "status"
)

var (
	TrainEpochLoss = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "recsys",
		Subsystem: "worker",
		Name:      "train_epoch_loss",
	})
	TrainEpochSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "recsys",
		Subsystem: "worker",
		Name:      "train_epoch_seconds",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 16),
	})
	TrainBatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "recsys",
		Subsystem: "worker",
		Name:      "train_batches_total",
	})
	TrainStepSecondsVec = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "recsys",
		Subsystem: "worker",
		Name:      "train_step_seconds",
	}, []string{LabelStep})
	RecommendSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "recsys",
		Subsystem: "worker",
		Name:      "recommend_seconds",
		Buckets:   prometheus.DefBuckets,
	})
	RecommendTotalVec = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "recsys",
		Subsystem: "worker",
		Name:      "recommend_total",
	}, []string{LabelStatus})
	RecommendationsWrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "recsys",
		Subsystem: "worker",
		Name:      "recommendations_written_total",
	})
)
