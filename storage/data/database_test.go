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
	"path/filepath"
	"testing"
	"time"

	"github.com/projecthub/recsys/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type baseTestSuite struct {
	suite.Suite
	Database
}

type SQLiteTestSuite struct {
	baseTestSuite
}

func (suite *SQLiteTestSuite) SetupTest() {
	var err error
	path := filepath.Join(suite.T().TempDir(), "recsys.db")
	suite.Database, err = Open(storage.SQLitePrefix+path, "recsys_")
	suite.NoError(err)
	suite.NoError(suite.Database.Init())
}

func (suite *SQLiteTestSuite) TearDownTest() {
	suite.NoError(suite.Database.Close())
}

func (suite *baseTestSuite) TestProjects() {
	ctx := context.Background()
	suite.NoError(suite.Ping())
	err := suite.BatchInsertProjects(ctx, []Project{
		{Id: 3, Lang: "go", TagIds: TagIds{1, 2}},
		{Id: 1, Lang: "py", TagIds: TagIds{}},
		{Id: 2, Lang: "rs"},
	})
	suite.NoError(err)
	// upsert
	err = suite.BatchInsertProjects(ctx, []Project{{Id: 3, Lang: "java", TagIds: TagIds{5}}})
	suite.NoError(err)
	suite.NoError(suite.BatchInsertProjects(ctx, nil))

	projects, err := suite.GetProjects(ctx)
	suite.NoError(err)
	suite.Equal([]Project{
		{Id: 1, Lang: "py", TagIds: TagIds{}},
		{Id: 2, Lang: "rs", TagIds: TagIds{}},
		{Id: 3, Lang: "java", TagIds: TagIds{5}},
	}, projects)
}

func (suite *baseTestSuite) TestInteractions() {
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	err := suite.BatchInsertInteractions(ctx, []Interaction{
		{UserId: 1, ProjectId: 10, Type: "view", CreatedAt: base.Add(time.Minute)},
		{UserId: 1, ProjectId: 11, Type: "like", CreatedAt: base.Add(2 * time.Minute)},
		{UserId: 1, ProjectId: 12, Type: "fork", CreatedAt: base},
		{UserId: 2, ProjectId: 10, Type: "like", CreatedAt: base.Add(3 * time.Minute)},
	})
	suite.NoError(err)

	interactions, err := suite.GetInteractions(ctx, "view", "like")
	suite.NoError(err)
	suite.Len(interactions, 3)
	suite.Equal(int64(10), interactions[0].ProjectId)
	suite.Equal("view", interactions[0].Type)
	interactions, err = suite.GetInteractions(ctx)
	suite.NoError(err)
	suite.Len(interactions, 4)

	history, err := suite.GetUserHistory(ctx, 1)
	suite.NoError(err)
	suite.Equal([]int64{12, 10, 11}, history)
	history, err = suite.GetUserHistory(ctx, 1, "like")
	suite.NoError(err)
	suite.Equal([]int64{11}, history)
	history, err = suite.GetUserHistory(ctx, 3)
	suite.NoError(err)
	suite.Empty(history)
}

func (suite *baseTestSuite) TestRecommendations() {
	ctx := context.Background()
	last, err := suite.GetLastRecommendTime(ctx, 1, 1)
	suite.NoError(err)
	suite.True(last.IsZero())

	err = suite.ReplaceRecommendations(ctx, 1, 1, []Recommendation{
		{UserId: 1, ProjectId: 10, CategoryId: 1, Score: 0.5},
		{UserId: 1, ProjectId: 11, CategoryId: 1, Score: 0.9},
	})
	suite.NoError(err)
	err = suite.ReplaceRecommendations(ctx, 1, 2, []Recommendation{
		{UserId: 1, ProjectId: 12, CategoryId: 2, Score: 0.1},
	})
	suite.NoError(err)
	recs, err := suite.GetRecommendations(ctx, 1, 1)
	suite.NoError(err)
	suite.Len(recs, 2)
	suite.Equal(int64(11), recs[0].ProjectId)
	suite.InDelta(0.9, recs[0].Score, 1e-6)
	suite.Equal(int64(10), recs[1].ProjectId)
	last, err = suite.GetLastRecommendTime(ctx, 1, 1)
	suite.NoError(err)
	suite.WithinDuration(time.Now(), last, time.Minute)
	// the time is scoped to a category
	last, err = suite.GetLastRecommendTime(ctx, 1, 3)
	suite.NoError(err)
	suite.True(last.IsZero())

	// replace keeps other categories
	err = suite.ReplaceRecommendations(ctx, 1, 1, []Recommendation{
		{UserId: 1, ProjectId: 13, CategoryId: 1, Score: 0.3},
	})
	suite.NoError(err)
	recs, err = suite.GetRecommendations(ctx, 1, 1)
	suite.NoError(err)
	suite.Len(recs, 1)
	suite.Equal(int64(13), recs[0].ProjectId)
	recs, err = suite.GetRecommendations(ctx, 1, 2)
	suite.NoError(err)
	suite.Len(recs, 1)

	// mismatched rows are rejected
	err = suite.ReplaceRecommendations(ctx, 1, 1, []Recommendation{{UserId: 2, ProjectId: 13, CategoryId: 1}})
	suite.Error(err)
}

func TestSQLite(t *testing.T) {
	suite.Run(t, new(SQLiteTestSuite))
}

func TestTagIds(t *testing.T) {
	var tags TagIds
	assert.NoError(t, tags.Scan("[1,2,3]"))
	assert.Equal(t, TagIds{1, 2, 3}, tags)
	assert.NoError(t, tags.Scan([]byte("{4,5}")))
	assert.Equal(t, TagIds{4, 5}, tags)
	assert.NoError(t, tags.Scan(nil))
	assert.Nil(t, tags)
	assert.Error(t, tags.Scan(42))

	value, err := TagIds{1, 2}.Value()
	assert.NoError(t, err)
	assert.Equal(t, "[1,2]", value)
	value, err = TagIds(nil).Value()
	assert.NoError(t, err)
	assert.Equal(t, "[]", value)
}

func TestOpenUnknown(t *testing.T) {
	_, err := Open("unknown://", "")
	assert.Error(t, err)
}
