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
	"database/sql/driver"
	"encoding/json"
	"strings"
	"time"

	"github.com/XSAM/otelsql"
	"github.com/juju/errors"
	"github.com/lib/pq"
	"github.com/projecthub/recsys/common/log"
	"github.com/projecthub/recsys/storage"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
	semconv "go.opentelemetry.io/otel/semconv/v1.12.0"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"moul.io/zapgorm2"
)

var (
	ErrProjectNotExist = errors.NotFoundf("project")
	ErrNoDatabase      = errors.NotAssignedf("database")
)

// TagIds is a list of tag ids. It is stored as a JSON array and also accepts
// PostgreSQL integer array literals when scanned.
type TagIds []int32

func (t TagIds) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]int32(t))
	if err != nil {
		return nil, errors.Trace(err)
	}
	return string(b), nil
}

func (t *TagIds) Scan(src any) error {
	var text string
	switch src := src.(type) {
	case nil:
		*t = nil
		return nil
	case []byte:
		text = string(src)
	case string:
		text = src
	default:
		return errors.NotValidf("tag ids of type %T", src)
	}
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "{") {
		var array pq.Int32Array
		if err := array.Scan(text); err != nil {
			return errors.Trace(err)
		}
		*t = TagIds(array)
		return nil
	}
	var ids []int32
	if err := json.Unmarshal([]byte(text), &ids); err != nil {
		return errors.Trace(err)
	}
	*t = ids
	return nil
}

// Project is a recommendable item.
type Project struct {
	Id     int64  `gorm:"column:id;primaryKey;autoIncrement:false" bson:"_id" json:"id"`
	Lang   string `gorm:"column:lang;type:varchar(16)" bson:"lang" json:"lang"`
	TagIds TagIds `gorm:"column:tag_ids;type:text" bson:"tag_ids" json:"tag_ids"`
}

// Interaction is a feedback event of a user on a project, such as view or like.
type Interaction struct {
	UserId    int32     `gorm:"column:user_id;index" bson:"user_id" json:"user_id"`
	ProjectId int64     `gorm:"column:project_id" bson:"project_id" json:"project_id"`
	Type      string    `gorm:"column:type;type:varchar(32)" bson:"type" json:"type"`
	CreatedAt time.Time `gorm:"column:created_at" bson:"created_at" json:"created_at"`
}

// Recommendation is a recommended project for a user in a recommendation category.
type Recommendation struct {
	UserId     int32     `gorm:"column:user_id;index" bson:"user_id" json:"user_id"`
	ProjectId  int64     `gorm:"column:project_id" bson:"project_id" json:"project_id"`
	CategoryId int32     `gorm:"column:category_id" bson:"category_id" json:"category_id"`
	Score      float32   `gorm:"column:score" bson:"score" json:"score"`
	CreatedAt  time.Time `gorm:"column:created_at" bson:"created_at" json:"created_at"`
}

// fillRecommendations checks that recommendations belong to a user and a category and
// stamps them with the current time.
func fillRecommendations(userId, categoryId int32, recs []Recommendation) error {
	now := time.Now().UTC()
	for i := range recs {
		if recs[i].UserId != userId || recs[i].CategoryId != categoryId {
			return errors.NotValidf("recommendation for user %d in category %d", recs[i].UserId, recs[i].CategoryId)
		}
		if recs[i].CreatedAt.IsZero() {
			recs[i].CreatedAt = now
		}
	}
	return nil
}

type Database interface {
	Close() error
	Ping() error
	Init() error
	BatchInsertProjects(ctx context.Context, projects []Project) error
	GetProjects(ctx context.Context) ([]Project, error)
	BatchInsertInteractions(ctx context.Context, interactions []Interaction) error
	// GetInteractions returns interactions of the given types. No types means all types.
	GetInteractions(ctx context.Context, types ...string) ([]Interaction, error)
	// GetUserHistory returns the projects a user interacted with in time order.
	GetUserHistory(ctx context.Context, userId int32, types ...string) ([]int64, error)
	// ReplaceRecommendations replaces all recommendations of a user in a category.
	ReplaceRecommendations(ctx context.Context, userId, categoryId int32, recs []Recommendation) error
	// GetLastRecommendTime returns the creation time of the newest recommendation of a
	// user in a category, or the zero time when there is none.
	GetLastRecommendTime(ctx context.Context, userId, categoryId int32) (time.Time, error)
	GetRecommendations(ctx context.Context, userId, categoryId int32) ([]Recommendation, error)
}

// Open a connection to a database.
func Open(path, tablePrefix string) (Database, error) {
	var err error
	if strings.HasPrefix(path, storage.MySQLPrefix) {
		name := path[len(storage.MySQLPrefix):]
		// append parameters
		if name, err = storage.AppendMySQLParams(name, map[string]string{
			"sql_mode":  "'ONLY_FULL_GROUP_BY,STRICT_TRANS_TABLES,ERROR_FOR_DIVISION_BY_ZERO,NO_ENGINE_SUBSTITUTION'",
			"parseTime": "true",
		}); err != nil {
			return nil, errors.Trace(err)
		}
		// connect to database
		database := new(SQLDatabase)
		database.driver = MySQL
		database.TablePrefix = storage.TablePrefix(tablePrefix)
		if database.client, err = otelsql.Open("mysql", name,
			otelsql.WithAttributes(semconv.DBSystemMySQL),
			otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}),
		); err != nil {
			return nil, errors.Trace(err)
		}
		database.gormDB, err = gorm.Open(mysql.New(mysql.Config{Conn: database.client}), storage.NewGORMConfig(tablePrefix))
		if err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	} else if strings.HasPrefix(path, storage.PostgresPrefix) || strings.HasPrefix(path, storage.PostgreSQLPrefix) {
		database := new(SQLDatabase)
		database.driver = Postgres
		database.TablePrefix = storage.TablePrefix(tablePrefix)
		if database.client, err = otelsql.Open("postgres", path,
			otelsql.WithAttributes(semconv.DBSystemPostgreSQL),
			otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}),
		); err != nil {
			return nil, errors.Trace(err)
		}
		database.gormDB, err = gorm.Open(postgres.New(postgres.Config{Conn: database.client}), storage.NewGORMConfig(tablePrefix))
		if err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	} else if strings.HasPrefix(path, storage.SQLitePrefix) {
		// append parameters
		if path, err = storage.AppendURLParams(path, []lo.Tuple2[string, string]{
			{"_pragma", "busy_timeout(10000)"},
			{"_pragma", "journal_mode(wal)"},
		}); err != nil {
			return nil, errors.Trace(err)
		}
		// connect to database
		name := path[len(storage.SQLitePrefix):]
		database := new(SQLDatabase)
		database.driver = SQLite
		database.TablePrefix = storage.TablePrefix(tablePrefix)
		if database.client, err = otelsql.Open("sqlite", name,
			otelsql.WithAttributes(semconv.DBSystemSqlite),
			otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}),
		); err != nil {
			return nil, errors.Trace(err)
		}
		gormConfig := storage.NewGORMConfig(tablePrefix)
		gormConfig.Logger = &zapgorm2.Logger{
			ZapLogger:                 log.Logger(),
			LogLevel:                  logger.Warn,
			SlowThreshold:             10 * time.Second,
			SkipCallerLookup:          false,
			IgnoreRecordNotFoundError: false,
		}
		database.gormDB, err = gorm.Open(sqlite.Dialector{Conn: database.client}, gormConfig)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	} else if strings.HasPrefix(path, storage.MongoPrefix) || strings.HasPrefix(path, storage.MongoSrvPrefix) {
		// connect to database
		database := new(MongoDB)
		opts := options.Client()
		opts.Monitor = otelmongo.NewMonitor()
		opts.ApplyURI(path)
		if database.client, err = mongo.Connect(context.Background(), opts); err != nil {
			return nil, errors.Trace(err)
		}
		// parse DSN and extract database name
		if cs, err := connstring.ParseAndValidate(path); err != nil {
			return nil, errors.Trace(err)
		} else {
			database.dbName = cs.Database
			database.TablePrefix = storage.TablePrefix(tablePrefix)
		}
		return database, nil
	} else if strings.HasPrefix(path, storage.RedisPrefix) || strings.HasPrefix(path, storage.RedissPrefix) {
		opt, err := redis.ParseURL(path)
		if err != nil {
			return nil, errors.Trace(err)
		}
		database := new(Redis)
		database.client = redis.NewClient(opt)
		database.TablePrefix = storage.TablePrefix(tablePrefix)
		if err = redisotel.InstrumentTracing(database.client, redisotel.WithAttributes(semconv.DBSystemRedis)); err != nil {
			log.Logger().Error("failed to add tracing for redis", zap.Error(err))
			return nil, errors.Trace(err)
		}
		return database, nil
	}
	return nil, errors.Errorf("Unknown database: %s", path)
}
