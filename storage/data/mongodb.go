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
	"time"

	"github.com/juju/errors"
	"github.com/projecthub/recsys/storage"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDB is the data storage based on MongoDB.
type MongoDB struct {
	storage.TablePrefix
	client *mongo.Client
	dbName string
}

// Init creates indices in MongoDB. Collections are created with their first index.
func (db *MongoDB) Init() error {
	ctx := context.Background()
	d := db.client.Database(db.dbName)
	_, err := d.Collection(db.InteractionsTable()).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: 1}},
	})
	if err != nil {
		return errors.Trace(err)
	}
	_, err = d.Collection(db.RecsTable()).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "category_id", Value: 1}},
	})
	return errors.Trace(err)
}

// Close connection to MongoDB.
func (db *MongoDB) Close() error {
	return db.client.Disconnect(context.Background())
}

func (db *MongoDB) Ping() error {
	return db.client.Ping(context.Background(), nil)
}

func (db *MongoDB) collection(name string) *mongo.Collection {
	return db.client.Database(db.dbName).Collection(name)
}

// BatchInsertProjects inserts projects. Existing projects are replaced.
func (db *MongoDB) BatchInsertProjects(ctx context.Context, projects []Project) error {
	if len(projects) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(projects))
	for _, project := range projects {
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": project.Id}).
			SetReplacement(project).
			SetUpsert(true))
	}
	_, err := db.collection(db.ProjectsTable()).BulkWrite(ctx, models)
	return errors.Trace(err)
}

func (db *MongoDB) GetProjects(ctx context.Context) ([]Project, error) {
	cur, err := db.collection(db.ProjectsTable()).Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, errors.Trace(err)
	}
	var projects []Project
	if err = cur.All(ctx, &projects); err != nil {
		return nil, errors.Trace(err)
	}
	for i := range projects {
		if projects[i].TagIds == nil {
			projects[i].TagIds = TagIds{}
		}
	}
	return projects, nil
}

func (db *MongoDB) BatchInsertInteractions(ctx context.Context, interactions []Interaction) error {
	if len(interactions) == 0 {
		return nil
	}
	docs := lo.Map(interactions, func(interaction Interaction, _ int) any {
		return interaction
	})
	_, err := db.collection(db.InteractionsTable()).InsertMany(ctx, docs)
	return errors.Trace(err)
}

func (db *MongoDB) findInteractions(ctx context.Context, filter bson.M, types []string) ([]Interaction, error) {
	if len(types) > 0 {
		filter["type"] = bson.M{"$in": types}
	}
	cur, err := db.collection(db.InteractionsTable()).Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, errors.Trace(err)
	}
	var interactions []Interaction
	if err = cur.All(ctx, &interactions); err != nil {
		return nil, errors.Trace(err)
	}
	return interactions, nil
}

func (db *MongoDB) GetInteractions(ctx context.Context, types ...string) ([]Interaction, error) {
	return db.findInteractions(ctx, bson.M{}, types)
}

func (db *MongoDB) GetUserHistory(ctx context.Context, userId int32, types ...string) ([]int64, error) {
	interactions, err := db.findInteractions(ctx, bson.M{"user_id": userId}, types)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return lo.Map(interactions, func(interaction Interaction, _ int) int64 {
		return interaction.ProjectId
	}), nil
}

// ReplaceRecommendations deletes old rows before inserting new rows. Readers may observe
// an empty category in between.
func (db *MongoDB) ReplaceRecommendations(ctx context.Context, userId, categoryId int32, recs []Recommendation) error {
	if err := fillRecommendations(userId, categoryId, recs); err != nil {
		return errors.Trace(err)
	}
	c := db.collection(db.RecsTable())
	if _, err := c.DeleteMany(ctx, bson.M{"user_id": userId, "category_id": categoryId}); err != nil {
		return errors.Trace(err)
	}
	if len(recs) == 0 {
		return nil
	}
	docs := lo.Map(recs, func(rec Recommendation, _ int) any {
		return rec
	})
	_, err := c.InsertMany(ctx, docs)
	return errors.Trace(err)
}

func (db *MongoDB) GetLastRecommendTime(ctx context.Context, userId, categoryId int32) (time.Time, error) {
	var rec Recommendation
	err := db.collection(db.RecsTable()).FindOne(ctx, bson.M{"user_id": userId, "category_id": categoryId},
		options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return time.Time{}, nil
	} else if err != nil {
		return time.Time{}, errors.Trace(err)
	}
	return rec.CreatedAt, nil
}

func (db *MongoDB) GetRecommendations(ctx context.Context, userId, categoryId int32) ([]Recommendation, error) {
	cur, err := db.collection(db.RecsTable()).Find(ctx, bson.M{"user_id": userId, "category_id": categoryId},
		options.Find().SetSort(bson.D{{Key: "score", Value: -1}}))
	if err != nil {
		return nil, errors.Trace(err)
	}
	var recs []Recommendation
	if err = cur.All(ctx, &recs); err != nil {
		return nil, errors.Trace(err)
	}
	return recs, nil
}
