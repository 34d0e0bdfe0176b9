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
	"fmt"
	"os"
	"os/signal"

	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/projecthub/recsys/common/encoding"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var evaluateCommand = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate the twin tower model by holding out the last interaction of every user.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w, conf, closeFunc, err := newWorker(cmd)
		if err != nil {
			return err
		}
		defer closeFunc()
		if topK, _ := cmd.Flags().GetInt("top-k"); topK > 0 {
			conf.Recommend.TopK = topK
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		bar := progressbar.NewOptions(conf.Model.NEpochs,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("evaluating"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish())
		evaluation, err := w.Evaluate(ctx, func(int, float32) {
			_ = bar.Add(1)
		})
		_ = bar.Finish()
		if err != nil {
			return err
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Users", fmt.Sprintf("HR@%d", conf.Recommend.TopK),
			fmt.Sprintf("NDCG@%d", conf.Recommend.TopK), fmt.Sprintf("Precision@%d", conf.Recommend.TopK), "Loss")
		if err = table.Append([]string{
			fmt.Sprint(evaluation.NUsers),
			encoding.FormatFloat32(evaluation.HR),
			encoding.FormatFloat32(evaluation.NDCG),
			encoding.FormatFloat32(evaluation.Precision),
			encoding.FormatFloat32(evaluation.Score.Loss()),
		}); err != nil {
			return errors.Trace(err)
		}
		return errors.Trace(table.Render())
	},
}

func init() {
	evaluateCommand.Flags().IntP("top-k", "n", 0, "override the number of recommendations")
}
