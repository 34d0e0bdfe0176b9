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

package config

import (
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/juju/errors"
	"github.com/projecthub/recsys/model"
	"github.com/spf13/viper"
)

const (
	BlobPOSIX = "posix"
	BlobS3    = "s3"
	BlobGCS   = "gcs"
	BlobAzure = "azure"
)

// Config is the configuration for the recommender.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Blob      BlobConfig      `mapstructure:"blob"`
	Model     ModelConfig     `mapstructure:"model"`
	Recommend RecommendConfig `mapstructure:"recommend"`
}

// DatabaseConfig is the configuration for the data store.
type DatabaseConfig struct {
	DataStore   string `mapstructure:"data_store" validate:"required,data_store"`
	TablePrefix string `mapstructure:"table_prefix"`
}

// BlobConfig is the configuration for model persistence.
type BlobConfig struct {
	Type  string          `mapstructure:"type" validate:"oneof=posix s3 gcs azure"`
	Dir   string          `mapstructure:"dir" validate:"required_if=Type posix"`
	S3    S3Config        `mapstructure:"s3"`
	GCS   GCSConfig       `mapstructure:"gcs"`
	Azure AzureBlobConfig `mapstructure:"azure"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

type GCSConfig struct {
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

type AzureBlobConfig struct {
	AccountName      string `mapstructure:"account_name"`
	AccountKey       string `mapstructure:"account_key"`
	Endpoint         string `mapstructure:"endpoint"`
	ConnectionString string `mapstructure:"connection_string"`
	Container        string `mapstructure:"container"`
	Prefix           string `mapstructure:"prefix"`
}

// ModelConfig holds hyper-parameters of the twin tower model.
type ModelConfig struct {
	NFactors     int     `mapstructure:"n_factors" validate:"gt=0"`
	HiddenLayers []int   `mapstructure:"hidden_layers" validate:"dive,gt=0"`
	TagDim       int     `mapstructure:"tag_dim" validate:"gt=0"`
	LangDim      int     `mapstructure:"lang_dim" validate:"gt=0"`
	Lr           float32 `mapstructure:"lr" validate:"gt=0"`
	NEpochs      int     `mapstructure:"n_epochs" validate:"gt=0"`
	BatchSize    int     `mapstructure:"batch_size" validate:"gt=0"`
	RandomState  int64   `mapstructure:"random_state"`
	// RefreshEvery recomputes the item matrix every n epochs, 0 means only after fitting.
	RefreshEvery int `mapstructure:"refresh_every" validate:"gte=0"`
}

// GetParams converts the model section into hyper-parameters.
func (c *ModelConfig) GetParams() model.Params {
	return model.Params{
		model.NFactors:     c.NFactors,
		model.HiddenLayers: c.HiddenLayers,
		model.TagDim:       c.TagDim,
		model.LangDim:      c.LangDim,
		model.Lr:           c.Lr,
		model.NEpochs:      c.NEpochs,
		model.BatchSize:    c.BatchSize,
		model.RandomState:  c.RandomState,
	}
}

// RecommendConfig is the configuration for generating recommendations.
type RecommendConfig struct {
	TopK          int           `mapstructure:"top_k" validate:"gt=0"`
	CategoryId    int32         `mapstructure:"category_id"`
	RefreshPeriod time.Duration `mapstructure:"refresh_period" validate:"gte=0"`
	FeedbackTypes []string      `mapstructure:"feedback_types" validate:"min=1,dive,required"`
	ModelName     string        `mapstructure:"model_name" validate:"required"`
	Jobs          int           `mapstructure:"jobs" validate:"gt=0"`
	// WriteRate limits recommendation writes per second, 0 means unlimited.
	WriteRate int `mapstructure:"write_rate" validate:"gte=0"`
}

// GetDefaultConfig returns the default configuration.
func GetDefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DataStore: "sqlite://recsys.db",
		},
		Blob: BlobConfig{
			Type: BlobPOSIX,
			Dir:  "models",
		},
		Model: ModelConfig{
			NFactors:     64,
			HiddenLayers: []int{64},
			TagDim:       16,
			LangDim:      16,
			Lr:           0.01,
			NEpochs:      10,
			BatchSize:    32,
		},
		Recommend: RecommendConfig{
			TopK:          10,
			CategoryId:    1,
			RefreshPeriod: 6 * time.Hour,
			FeedbackTypes: []string{"view", "like"},
			ModelName:     "twin_tower.bin",
			Jobs:          1,
		},
	}
}

func setDefault() {
	defaultConfig := GetDefaultConfig()
	// [database]
	viper.SetDefault("database.data_store", defaultConfig.Database.DataStore)
	viper.SetDefault("database.table_prefix", defaultConfig.Database.TablePrefix)
	// [blob]
	viper.SetDefault("blob.type", defaultConfig.Blob.Type)
	viper.SetDefault("blob.dir", defaultConfig.Blob.Dir)
	viper.SetDefault("blob.s3.use_ssl", defaultConfig.Blob.S3.UseSSL)
	// [model]
	viper.SetDefault("model.n_factors", defaultConfig.Model.NFactors)
	viper.SetDefault("model.hidden_layers", defaultConfig.Model.HiddenLayers)
	viper.SetDefault("model.tag_dim", defaultConfig.Model.TagDim)
	viper.SetDefault("model.lang_dim", defaultConfig.Model.LangDim)
	viper.SetDefault("model.lr", defaultConfig.Model.Lr)
	viper.SetDefault("model.n_epochs", defaultConfig.Model.NEpochs)
	viper.SetDefault("model.batch_size", defaultConfig.Model.BatchSize)
	viper.SetDefault("model.random_state", defaultConfig.Model.RandomState)
	viper.SetDefault("model.refresh_every", defaultConfig.Model.RefreshEvery)
	// [recommend]
	viper.SetDefault("recommend.top_k", defaultConfig.Recommend.TopK)
	viper.SetDefault("recommend.category_id", defaultConfig.Recommend.CategoryId)
	viper.SetDefault("recommend.refresh_period", defaultConfig.Recommend.RefreshPeriod)
	viper.SetDefault("recommend.feedback_types", defaultConfig.Recommend.FeedbackTypes)
	viper.SetDefault("recommend.model_name", defaultConfig.Recommend.ModelName)
	viper.SetDefault("recommend.jobs", defaultConfig.Recommend.Jobs)
	viper.SetDefault("recommend.write_rate", defaultConfig.Recommend.WriteRate)
}

type configBinding struct {
	key string
	env string
}

var bindings = []configBinding{
	{"database.data_store", "RECSYS_DATA_STORE"},
	{"database.table_prefix", "RECSYS_TABLE_PREFIX"},
	{"blob.type", "RECSYS_BLOB_TYPE"},
	{"blob.dir", "RECSYS_BLOB_DIR"},
	{"blob.s3.endpoint", "S3_ENDPOINT"},
	{"blob.s3.access_key_id", "S3_ACCESS_KEY_ID"},
	{"blob.s3.secret_access_key", "S3_SECRET_ACCESS_KEY"},
	{"blob.s3.bucket", "RECSYS_S3_BUCKET"},
	{"blob.gcs.credentials_file", "GCS_CREDENTIALS_FILE"},
	{"blob.gcs.bucket", "RECSYS_GCS_BUCKET"},
	{"blob.azure.account_name", "AZURE_STORAGE_ACCOUNT"},
	{"blob.azure.account_key", "AZURE_STORAGE_KEY"},
	{"blob.azure.connection_string", "AZURE_STORAGE_CONNECTION_STRING"},
	{"blob.azure.container", "RECSYS_AZURE_CONTAINER"},
	{"model.n_epochs", "RECSYS_N_EPOCHS"},
	{"model.random_state", "RECSYS_RANDOM_STATE"},
	{"recommend.top_k", "RECSYS_TOP_K"},
	{"recommend.jobs", "RECSYS_RECOMMEND_JOBS"},
}

// decodeHook converts durations and comma separated lists coming from the environment.
func decodeHook() viper.DecoderConfigOption {
	return viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
}

// LoadConfig loads configuration from a TOML file. Environment variables override file values.
func LoadConfig(path string) (*Config, error) {
	setDefault()
	for _, binding := range bindings {
		if err := viper.BindEnv(binding.key, binding.env); err != nil {
			return nil, errors.Trace(err)
		}
	}
	if path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return nil, errors.Annotatef(err, "failed to read config %s", path)
		}
	}
	var conf Config
	if err := viper.Unmarshal(&conf, decodeHook()); err != nil {
		return nil, errors.Trace(err)
	}
	conf.Recommend.FeedbackTypes = normalizeList(conf.Recommend.FeedbackTypes)
	if err := conf.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &conf, nil
}

func normalizeList(values []string) []string {
	normalized := make([]string, 0, len(values))
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			normalized = append(normalized, value)
		}
	}
	return normalized
}
