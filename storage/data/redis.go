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

package data

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"time"

	"github.com/juju/errors"
	"github.com/projecthub/recsys/storage"
	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
)

// Redis stores projects in a hash, interactions in a list and recommendations of every
// user in a hash keyed by category. Reads scan whole collections, so it suits small
// deployments and tests.
type Redis struct {
	storage.TablePrefix
	client *redis.Client
}

// Init does nothing.
func (r *Redis) Init() error {
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Ping() error {
	return r.client.Ping(context.Background()).Err()
}

func (r *Redis) recsKey(userId int32) string {
	return r.RecsTable() + "/" + strconv.Itoa(int(userId))
}

func (r *Redis) BatchInsertProjects(ctx context.Context, projects []Project) error {
	if len(projects) == 0 {
		return nil
	}
	values := make([]any, 0, len(projects)*2)
	for _, project := range projects {
		data, err := json.Marshal(project)
		if err != nil {
			return errors.Trace(err)
		}
		values = append(values, strconv.FormatInt(project.Id, 10), data)
	}
	return errors.Trace(r.client.HSet(ctx, r.ProjectsTable(), values...).Err())
}

func (r *Redis) GetProjects(ctx context.Context) ([]Project, error) {
	values, err := r.client.HGetAll(ctx, r.ProjectsTable()).Result()
	if err != nil {
		return nil, errors.Trace(err)
	}
	projects := make([]Project, 0, len(values))
	for _, value := range values {
		var project Project
		if err = json.Unmarshal([]byte(value), &project); err != nil {
			return nil, errors.Trace(err)
		}
		if project.TagIds == nil {
			project.TagIds = TagIds{}
		}
		projects = append(projects, project)
	}
	sort.Slice(projects, func(i, j int) bool {
		return projects[i].Id < projects[j].Id
	})
	return projects, nil
}

func (r *Redis) BatchInsertInteractions(ctx context.Context, interactions []Interaction) error {
	if len(interactions) == 0 {
		return nil
	}
	values := make([]any, len(interactions))
	for i, interaction := range interactions {
		data, err := json.Marshal(interaction)
		if err != nil {
			return errors.Trace(err)
		}
		values[i] = data
	}
	return errors.Trace(r.client.RPush(ctx, r.InteractionsTable(), values...).Err())
}

func (r *Redis) GetInteractions(ctx context.Context, types ...string) ([]Interaction, error) {
	values, err := r.client.LRange(ctx, r.InteractionsTable(), 0, -1).Result()
	if err != nil {
		return nil, errors.Trace(err)
	}
	interactions := make([]Interaction, 0, len(values))
	for _, value := range values {
		var interaction Interaction
		if err = json.Unmarshal([]byte(value), &interaction); err != nil {
			return nil, errors.Trace(err)
		}
		if len(types) == 0 || lo.Contains(types, interaction.Type) {
			interactions = append(interactions, interaction)
		}
	}
	sort.SliceStable(interactions, func(i, j int) bool {
		return interactions[i].CreatedAt.Before(interactions[j].CreatedAt)
	})
	return interactions, nil
}

func (r *Redis) GetUserHistory(ctx context.Context, userId int32, types ...string) ([]int64, error) {
	interactions, err := r.GetInteractions(ctx, types...)
	if err != nil {
		return nil, errors.Trace(err)
	}
	var history []int64
	for _, interaction := range interactions {
		if interaction.UserId == userId {
			history = append(history, interaction.ProjectId)
		}
	}
	return history, nil
}

func (r *Redis) ReplaceRecommendations(ctx context.Context, userId, categoryId int32, recs []Recommendation) error {
	if err := fillRecommendations(userId, categoryId, recs); err != nil {
		return errors.Trace(err)
	}
	field := strconv.Itoa(int(categoryId))
	if len(recs) == 0 {
		return errors.Trace(r.client.HDel(ctx, r.recsKey(userId), field).Err())
	}
	data, err := json.Marshal(recs)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(r.client.HSet(ctx, r.recsKey(userId), field, data).Err())
}

func (r *Redis) GetLastRecommendTime(ctx context.Context, userId, categoryId int32) (time.Time, error) {
	recs, err := r.GetRecommendations(ctx, userId, categoryId)
	if err != nil {
		return time.Time{}, errors.Trace(err)
	}
	var last time.Time
	for _, rec := range recs {
		if rec.CreatedAt.After(last) {
			last = rec.CreatedAt
		}
	}
	return last, nil
}

func (r *Redis) GetRecommendations(ctx context.Context, userId, categoryId int32) ([]Recommendation, error) {
	value, err := r.client.HGet(ctx, r.recsKey(userId), strconv.Itoa(int(categoryId))).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	} else if err != nil {
		return nil, errors.Trace(err)
	}
	var recs []Recommendation
	if err = json.Unmarshal([]byte(value), &recs); err != nil {
		return nil, errors.Trace(err)
	}
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Score > recs[j].Score
	})
	return recs, nil
}
