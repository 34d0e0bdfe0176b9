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

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/juju/errors"
	"github.com/projecthub/recsys/common/log"
	"github.com/projecthub/recsys/config"
	"github.com/projecthub/recsys/storage/blob"
	"github.com/projecthub/recsys/storage/data"
	"github.com/projecthub/recsys/worker"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const pingMaxTries = 5

var rootCommand = &cobra.Command{
	Use:   "recsys",
	Short: "Twin tower recommender for projects.",
	// errors are printed once by main
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		debug, _ := cmd.Flags().GetBool("debug")
		log.SetLogger(cmd.Flags(), debug)
	},
}

func init() {
	log.AddFlags(rootCommand.PersistentFlags())
	rootCommand.PersistentFlags().Bool("debug", false, "use debug log mode")
	rootCommand.PersistentFlags().StringP("config", "c", "", "configuration file path")
	rootCommand.AddCommand(trainCommand, recommendCommand, evaluateCommand, importCommand)
}

// newWorker loads the configuration and connects the worker to its database and blob store.
func newWorker(cmd *cobra.Command) (*worker.Worker, *config.Config, func(), error) {
	configPath, _ := cmd.Flags().GetString("config")
	log.Logger().Info("load config", zap.String("config", configPath))
	conf, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, nil, errors.Annotate(err, "failed to load config")
	}
	database, err := openDatabase(cmd.Context(), conf)
	if err != nil {
		return nil, nil, nil, errors.Trace(err)
	}
	store, err := blob.Open(conf.Blob)
	if err != nil {
		_ = database.Close()
		return nil, nil, nil, errors.Annotate(err, "failed to open blob store")
	}
	closeFunc := func() {
		if err := database.Close(); err != nil {
			log.Logger().Error("failed to close database", zap.Error(err))
		}
	}
	return worker.NewWorker(conf, database, store), conf, closeFunc, nil
}

// openDatabase connects to the data store, retrying the first ping with exponential backoff,
// and creates missing tables.
func openDatabase(ctx context.Context, conf *config.Config) (data.Database, error) {
	database, err := data.Open(conf.Database.DataStore, conf.Database.TablePrefix)
	if err != nil {
		return nil, errors.Annotatef(err, "failed to connect database %s", log.RedactDBURL(conf.Database.DataStore))
	}
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, database.Ping()
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(pingMaxTries),
		backoff.WithNotify(func(err error, d time.Duration) {
			log.Logger().Warn("failed to ping database, retrying",
				zap.Duration("after", d), zap.Error(err))
		}))
	if err != nil {
		_ = database.Close()
		return nil, errors.Annotatef(err, "failed to ping database %s", log.RedactDBURL(conf.Database.DataStore))
	}
	if err = database.Init(); err != nil {
		_ = database.Close()
		return nil, errors.Annotate(err, "failed to init database")
	}
	return database, nil
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
