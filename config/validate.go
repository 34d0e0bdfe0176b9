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
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/juju/errors"
	"github.com/projecthub/recsys/storage"
	"github.com/samber/lo"
)

var dataStorePrefixes = []string{
	storage.MySQLPrefix,
	storage.MongoPrefix,
	storage.MongoSrvPrefix,
	storage.PostgresPrefix,
	storage.PostgreSQLPrefix,
	storage.SQLitePrefix,
	storage.RedisPrefix,
	storage.RedissPrefix,
}

func newValidator() (*validator.Validate, ut.Translator, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	// report fields by their names in the config file
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("mapstructure"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	english := en.New()
	trans, _ := ut.New(english, english).GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, nil, errors.Trace(err)
	}
	if err := validate.RegisterValidation("data_store", func(fl validator.FieldLevel) bool {
		return lo.SomeBy(dataStorePrefixes, func(prefix string) bool {
			return strings.HasPrefix(fl.Field().String(), prefix)
		})
	}); err != nil {
		return nil, nil, errors.Trace(err)
	}
	if err := validate.RegisterTranslation("data_store", trans, func(ut ut.Translator) error {
		return ut.Add("data_store", "{0} must start with one of "+strings.Join(dataStorePrefixes, ", "), true)
	}, func(ut ut.Translator, fe validator.FieldError) string {
		t, _ := ut.T("data_store", fe.Field())
		return t
	}); err != nil {
		return nil, nil, errors.Trace(err)
	}
	return validate, trans, nil
}

// Validate checks the configuration and reports every invalid field at once.
func (config *Config) Validate() error {
	validate, trans, err := newValidator()
	if err != nil {
		return errors.Trace(err)
	}
	var messages []string
	if err = validate.Struct(config); err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			return errors.Trace(err)
		}
		for _, fieldError := range validationErrors {
			messages = append(messages, fmt.Sprintf("%s: %s", fieldError.Namespace(), fieldError.Translate(trans)))
		}
	}
	switch config.Blob.Type {
	case BlobS3:
		if config.Blob.S3.Bucket == "" {
			messages = append(messages, "Config.blob.s3.bucket: bucket is required for s3")
		}
	case BlobGCS:
		if config.Blob.GCS.Bucket == "" {
			messages = append(messages, "Config.blob.gcs.bucket: bucket is required for gcs")
		}
	case BlobAzure:
		if config.Blob.Azure.Container == "" {
			messages = append(messages, "Config.blob.azure.container: container is required for azure")
		}
	}
	if len(messages) > 0 {
		return errors.NewNotValid(nil, strings.Join(messages, "; "))
	}
	return nil
}
