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
	"os"
	"strconv"

	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/projecthub/recsys/common/encoding"
	"github.com/spf13/cobra"
)

var recommendCommand = &cobra.Command{
	Use:   "recommend <user-id>",
	Short: "Update recommendations of a user.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userId, err := strconv.ParseInt(args[0], 10, 32)
		if err != nil {
			return errors.NotValidf("user id %q", args[0])
		}
		w, conf, closeFunc, err := newWorker(cmd)
		if err != nil {
			return err
		}
		defer closeFunc()
		if topK, _ := cmd.Flags().GetInt("top-k"); topK > 0 {
			conf.Recommend.TopK = topK
		}
		force, _ := cmd.Flags().GetBool("force")
		recs, err := w.Recommend(cmd.Context(), int32(userId), force)
		if err != nil {
			return err
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.Header("#", "Project", "Score")
		for i, rec := range recs {
			if err = table.Append([]string{
				strconv.Itoa(i + 1),
				strconv.FormatInt(rec.ProjectId, 10),
				encoding.FormatFloat32(rec.Score),
			}); err != nil {
				return errors.Trace(err)
			}
		}
		return errors.Trace(table.Render())
	},
}

func init() {
	recommendCommand.Flags().IntP("top-k", "n", 0, "override the number of recommendations")
	recommendCommand.Flags().BoolP("force", "f", false, "ignore the refresh period")
}
