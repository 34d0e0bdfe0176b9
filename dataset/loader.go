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
	"context"
	"time"

	"github.com/juju/errors"
	"github.com/projecthub/recsys/common/log"
	"github.com/projecthub/recsys/common/progress"
	"github.com/projecthub/recsys/storage/data"
	"go.uber.org/zap"
)

// LoadFromDatabase loads projects and interactions of the given feedback types. Projects
// are indexed in the order they are returned by the database.
func LoadFromDatabase(ctx context.Context, database data.Database, feedbackTypes []string) (*Dataset, error) {
	if database == nil {
		return nil, errors.Trace(data.ErrNoDatabase)
	}
	ctx, span := progress.Start(ctx, "LoadDataset", 2)
	defer span.End()
	start := time.Now()
	d := NewDataset()

	// STEP 1: pull projects
	projects, err := database.GetProjects(ctx)
	if err != nil {
		span.Fail(err)
		return nil, errors.Trace(err)
	}
	for _, project := range projects {
		if _, err = d.AddItem(project.Id, project.TagIds, project.Lang); err != nil {
			span.Fail(err)
			return nil, errors.Trace(err)
		}
	}
	span.Add(1)

	// STEP 2: pull interactions
	interactions, err := database.GetInteractions(ctx, feedbackTypes...)
	if err != nil {
		span.Fail(err)
		return nil, errors.Trace(err)
	}
	var dropped int
	for _, interaction := range interactions {
		ok, err := d.AddInteraction(interaction.UserId, interaction.ProjectId)
		if err != nil {
			span.Fail(err)
			return nil, errors.Trace(err)
		}
		if !ok {
			dropped++
		}
	}
	span.Add(1)

	log.Logger().Info("load dataset complete",
		zap.Int("n_items", d.CountItems()),
		zap.Int("n_users", d.CountUsers()),
		zap.Int("n_tags", d.CountTags()),
		zap.Int("n_feedback", d.CountFeedback()),
		zap.Int("n_dropped", dropped),
		zap.Strings("feedback_types", feedbackTypes),
		zap.Duration("used_time", time.Since(start)))
	return d, nil
}
