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

	"github.com/projecthub/recsys/common/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var trainCommand = &cobra.Command{
	Use:   "train",
	Short: "Train the twin tower model and save it to the blob store.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w, conf, closeFunc, err := newWorker(cmd)
		if err != nil {
			return err
		}
		defer closeFunc()
		if nEpochs, _ := cmd.Flags().GetInt("n-epochs"); nEpochs > 0 {
			conf.Model.NEpochs = nEpochs
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		bar := progressbar.NewOptions(conf.Model.NEpochs,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("training"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionClearOnFinish())
		score, err := w.Train(ctx, func(epoch int, loss float32) {
			bar.Describe(fmt.Sprintf("training (loss %.4f)", loss))
			_ = bar.Add(1)
		})
		_ = bar.Finish()
		if err != nil {
			return err
		}
		log.Logger().Info("train twin tower successfully",
			zap.String("model_name", conf.Recommend.ModelName),
			zap.Float32("loss", score.Loss()))
		if all, _ := cmd.Flags().GetBool("recommend-all"); all {
			n, err := w.RecommendAll(ctx, true)
			if err != nil {
				return err
			}
			log.Logger().Info("update recommendations successfully", zap.Int("n_users", n))
		}
		return nil
	},
}

func init() {
	trainCommand.Flags().Int("n-epochs", 0, "override the number of epochs")
	trainCommand.Flags().Bool("recommend-all", false, "refresh recommendations of all users after training")
}
