/*
Copyright 2024 Finsight Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/finsighthq/finsight"
)

func detectCommands(f *finsightInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect",
		Short: "run detection passes over an owner's transactions",
	}

	cmd.AddCommand(detectTransfersCommand(f))
	cmd.AddCommand(detectRecurringCommand(f))
	cmd.AddCommand(detectSubscriptionsCommand(f))

	return cmd
}

func detectTransfersCommand(f *finsightInstance) *cobra.Command {
	var ownerID int64

	cmd := &cobra.Command{
		Use:   "transfers",
		Short: "find likely internal transfer pairs",
		Run: func(cmd *cobra.Command, args []string) {
			candidates, err := f.engine.DetectTransfers(context.Background(), ownerID)
			if err != nil {
				logrus.Error(err)
				return
			}
			printJSON(candidates)
		},
	}
	cmd.Flags().Int64Var(&ownerID, "owner", 0, "owner id")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}

func detectRecurringCommand(f *finsightInstance) *cobra.Command {
	var ownerID int64
	var opts finsight.RecurringDetectionOptions

	cmd := &cobra.Command{
		Use:   "recurring",
		Short: "detect recurring payment patterns and update the catalog",
		Run: func(cmd *cobra.Command, args []string) {
			patterns, err := f.engine.DetectRecurringPatterns(context.Background(), ownerID, opts)
			if err != nil {
				logrus.Error(err)
				return
			}
			printJSON(patterns)
		},
	}
	cmd.Flags().Int64Var(&ownerID, "owner", 0, "owner id")
	cmd.Flags().IntVar(&opts.MinOccurrences, "min-occurrences", 0, "minimum occurrences per pattern (default from config)")
	cmd.Flags().Float64Var(&opts.MaxAmountVariance, "max-amount-variance", 0, "maximum amount CV percentage (default from config)")
	cmd.Flags().IntVar(&opts.LookbackMonths, "lookback", 0, "months of history to scan (default from config)")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}

func detectSubscriptionsCommand(f *finsightInstance) *cobra.Command {
	var ownerID int64

	cmd := &cobra.Command{
		Use:   "subscriptions",
		Short: "detect subscription candidates ranked by confidence",
		Run: func(cmd *cobra.Command, args []string) {
			candidates, err := f.engine.DetectSubscriptions(context.Background(), ownerID)
			if err != nil {
				logrus.Error(err)
				return
			}
			printJSON(candidates)
		},
	}
	cmd.Flags().Int64Var(&ownerID, "owner", 0, "owner id")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}
