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
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/juju/errors"
	"github.com/projecthub/recsys/storage"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	_ "modernc.org/sqlite"
)

type SQLDriver int

const (
	MySQL SQLDriver = iota
	Postgres
	SQLite
)

// SQLDatabase stores projects, interactions and recommendations in a SQL database.
type SQLDatabase struct {
	storage.TablePrefix
	gormDB *gorm.DB
	client *sql.DB
	driver SQLDriver
}

// Init creates tables and indices.
func (d *SQLDatabase) Init() error {
	db := d.gormDB
	if d.driver == MySQL {
		db = db.Set("gorm:table_options", "ENGINE=InnoDB")
	}
	if err := db.Table(d.ProjectsTable()).AutoMigrate(&Project{}); err != nil {
		return errors.Trace(err)
	}
	if err := db.Table(d.InteractionsTable()).AutoMigrate(&Interaction{}); err != nil {
		return errors.Trace(err)
	}
	if err := db.Table(d.RecsTable()).AutoMigrate(&Recommendation{}); err != nil {
		return errors.Trace(err)
	}
	return nil
}

func (d *SQLDatabase) Close() error {
	return d.client.Close()
}

func (d *SQLDatabase) Ping() error {
	return d.client.Ping()
}

// BatchInsertProjects inserts projects. Existing projects are updated.
func (d *SQLDatabase) BatchInsertProjects(ctx context.Context, projects []Project) error {
	if len(projects) == 0 {
		return nil
	}
	err := d.gormDB.WithContext(ctx).Table(d.ProjectsTable()).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"lang", "tag_ids"}),
	}).Create(&projects).Error
	return errors.Trace(err)
}

// GetProjects returns all projects ordered by id.
func (d *SQLDatabase) GetProjects(ctx context.Context) ([]Project, error) {
	var projects []Project
	err := d.gormDB.WithContext(ctx).Table(d.ProjectsTable()).Order("id").Find(&projects).Error
	if err != nil {
		return nil, errors.Trace(err)
	}
	return projects, nil
}

func (d *SQLDatabase) BatchInsertInteractions(ctx context.Context, interactions []Interaction) error {
	if len(interactions) == 0 {
		return nil
	}
	return errors.Trace(d.gormDB.WithContext(ctx).Table(d.InteractionsTable()).Create(&interactions).Error)
}

func (d *SQLDatabase) GetInteractions(ctx context.Context, types ...string) ([]Interaction, error) {
	tx := d.gormDB.WithContext(ctx).Table(d.InteractionsTable())
	if len(types) > 0 {
		tx = tx.Where("type IN ?", types)
	}
	var interactions []Interaction
	if err := tx.Order("created_at").Find(&interactions).Error; err != nil {
		return nil, errors.Trace(err)
	}
	return interactions, nil
}

func (d *SQLDatabase) GetUserHistory(ctx context.Context, userId int32, types ...string) ([]int64, error) {
	tx := d.gormDB.WithContext(ctx).Table(d.InteractionsTable()).Where("user_id = ?", userId)
	if len(types) > 0 {
		tx = tx.Where("type IN ?", types)
	}
	var projectIds []int64
	if err := tx.Order("created_at").Pluck("project_id", &projectIds).Error; err != nil {
		return nil, errors.Trace(err)
	}
	return projectIds, nil
}

func (d *SQLDatabase) ReplaceRecommendations(ctx context.Context, userId, categoryId int32, recs []Recommendation) error {
	if err := fillRecommendations(userId, categoryId, recs); err != nil {
		return errors.Trace(err)
	}
	return d.gormDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Table(d.RecsTable()).
			Where("user_id = ? AND category_id = ?", userId, categoryId).
			Delete(&Recommendation{}).Error; err != nil {
			return errors.Trace(err)
		}
		if len(recs) == 0 {
			return nil
		}
		return errors.Trace(tx.Table(d.RecsTable()).Create(&recs).Error)
	})
}

func (d *SQLDatabase) GetLastRecommendTime(ctx context.Context, userId, categoryId int32) (time.Time, error) {
	var recs []Recommendation
	err := d.gormDB.WithContext(ctx).Table(d.RecsTable()).
		Where("user_id = ? AND category_id = ?", userId, categoryId).
		Order("created_at DESC").
		Limit(1).
		Find(&recs).Error
	if err != nil {
		return time.Time{}, errors.Trace(err)
	}
	if len(recs) == 0 {
		return time.Time{}, nil
	}
	return recs[0].CreatedAt, nil
}

// GetRecommendations returns recommendations of a user in a category by descending score.
func (d *SQLDatabase) GetRecommendations(ctx context.Context, userId, categoryId int32) ([]Recommendation, error) {
	var recs []Recommendation
	err := d.gormDB.WithContext(ctx).Table(d.RecsTable()).
		Where("user_id = ? AND category_id = ?", userId, categoryId).
		Order("score DESC").
		Find(&recs).Error
	if err != nil {
		return nil, errors.Trace(err)
	}
	return recs, nil
}
