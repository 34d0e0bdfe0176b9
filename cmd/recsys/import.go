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
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/juju/errors"
	"github.com/projecthub/recsys/common/log"
	"github.com/projecthub/recsys/config"
	"github.com/projecthub/recsys/storage/data"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const importBatchSize = 1000

var importCommand = &cobra.Command{
	Use:   "import",
	Short: "Import projects or interactions from CSV files.",
}

var importProjectsCommand = &cobra.Command{
	Use:   "projects <csv-file>",
	Short: "Import projects from a CSV file with columns id, lang, tags.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sep, _ := cmd.Flags().GetString("sep")
		tagSep, _ := cmd.Flags().GetString("tag-sep")
		header, _ := cmd.Flags().GetBool("header")
		return importFile(cmd, args[0], func(ctx context.Context, database data.Database, r io.Reader) (int, error) {
			projects, err := readProjects(r, sep, tagSep, header)
			if err != nil {
				return 0, errors.Trace(err)
			}
			return len(projects), insertInBatches(ctx, projects, database.BatchInsertProjects)
		})
	},
}

var importInteractionsCommand = &cobra.Command{
	Use:   "interactions <csv-file>",
	Short: "Import interactions from a CSV file with columns user_id, project_id, type, timestamp.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sep, _ := cmd.Flags().GetString("sep")
		header, _ := cmd.Flags().GetBool("header")
		return importFile(cmd, args[0], func(ctx context.Context, database data.Database, r io.Reader) (int, error) {
			interactions, err := readInteractions(r, sep, header)
			if err != nil {
				return 0, errors.Trace(err)
			}
			return len(interactions), insertInBatches(ctx, interactions, database.BatchInsertInteractions)
		})
	},
}

func init() {
	for _, cmd := range []*cobra.Command{importProjectsCommand, importInteractionsCommand} {
		cmd.Flags().String("sep", ",", "field separator")
		cmd.Flags().Bool("header", false, "skip the first line")
	}
	importProjectsCommand.Flags().String("tag-sep", "|", "tag separator")
	importCommand.AddCommand(importProjectsCommand, importInteractionsCommand)
}

func importFile(cmd *cobra.Command, path string, load func(context.Context, data.Database, io.Reader) (int, error)) error {
	configPath, _ := cmd.Flags().GetString("config")
	conf, err := config.LoadConfig(configPath)
	if err != nil {
		return errors.Annotate(err, "failed to load config")
	}
	database, err := openDatabase(cmd.Context(), conf)
	if err != nil {
		return errors.Trace(err)
	}
	defer database.Close()

	file, err := os.Open(path)
	if err != nil {
		return errors.Trace(err)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return errors.Trace(err)
	}
	bar := progressbar.NewOptions64(info.Size(),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("importing "+path),
		progressbar.OptionShowBytes(true),
		progressbar.OptionClearOnFinish())
	reader := progressbar.NewReader(file, bar)
	start := time.Now()
	n, err := load(cmd.Context(), database, &reader)
	_ = bar.Finish()
	if err != nil {
		return errors.Annotatef(err, "failed to import %s", path)
	}
	log.Logger().Info("import data successfully",
		zap.String("file", path),
		zap.Int("n_rows", n),
		zap.Duration("used_time", time.Since(start)))
	return nil
}

func insertInBatches[T any](ctx context.Context, rows []T, insert func(context.Context, []T) error) error {
	for begin := 0; begin < len(rows); begin += importBatchSize {
		end := min(begin+importBatchSize, len(rows))
		if err := insert(ctx, rows[begin:end]); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

func newCSVReader(r io.Reader, sep string, header bool) (*csv.Reader, error) {
	if len(sep) != 1 {
		return nil, errors.NotValidf("separator %q", sep)
	}
	reader := csv.NewReader(r)
	reader.Comma = rune(sep[0])
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	if header {
		if _, err := reader.Read(); err != nil && err != io.EOF {
			return nil, errors.Trace(err)
		}
	}
	return reader, nil
}

// readProjects parses lines of "id,lang,tags". Language and tags are optional.
func readProjects(r io.Reader, sep, tagSep string, header bool) ([]data.Project, error) {
	reader, err := newCSVReader(r, sep, header)
	if err != nil {
		return nil, errors.Trace(err)
	}
	var projects []data.Project
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, errors.Trace(err)
		}
		line, _ := reader.FieldPos(0)
		id, err := strconv.ParseInt(record[0], 10, 64)
		if err != nil {
			return nil, errors.NotValidf("project id %q at line %d", record[0], line)
		}
		project := data.Project{Id: id}
		if len(record) > 1 {
			project.Lang = strings.TrimSpace(record[1])
		}
		if len(record) > 2 && record[2] != "" {
			for _, tag := range strings.Split(record[2], tagSep) {
				tagId, err := strconv.ParseInt(strings.TrimSpace(tag), 10, 32)
				if err != nil || tagId < 0 {
					return nil, errors.NotValidf("tag %q at line %d", tag, line)
				}
				project.TagIds = append(project.TagIds, int32(tagId))
			}
		}
		projects = append(projects, project)
	}
	return projects, nil
}

// readInteractions parses lines of "user_id,project_id,type,timestamp". The type defaults
// to view and the timestamp, in any format dateparse understands, to now.
func readInteractions(r io.Reader, sep string, header bool) ([]data.Interaction, error) {
	reader, err := newCSVReader(r, sep, header)
	if err != nil {
		return nil, errors.Trace(err)
	}
	now := time.Now().UTC()
	var interactions []data.Interaction
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, errors.Trace(err)
		}
		line, _ := reader.FieldPos(0)
		if len(record) < 2 {
			return nil, errors.NotValidf("expect at least 2 fields at line %d, get %d", line, len(record))
		}
		userId, err := strconv.ParseInt(record[0], 10, 32)
		if err != nil || userId < 0 {
			return nil, errors.NotValidf("user id %q at line %d", record[0], line)
		}
		projectId, err := strconv.ParseInt(record[1], 10, 64)
		if err != nil {
			return nil, errors.NotValidf("project id %q at line %d", record[1], line)
		}
		interaction := data.Interaction{
			UserId:    int32(userId),
			ProjectId: projectId,
			Type:      "view",
			CreatedAt: now,
		}
		if len(record) > 2 && record[2] != "" {
			interaction.Type = record[2]
		}
		if len(record) > 3 && record[3] != "" {
			interaction.CreatedAt, err = dateparse.ParseAny(record[3])
			if err != nil {
				return nil, errors.Annotatef(err, "timestamp at line %d", line)
			}
		}
		interactions = append(interactions, interaction)
	}
	return interactions, nil
}
