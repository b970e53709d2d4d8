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

func anomalyCommands(f *finsightInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "anomalies",
		Short: "detect and manage transaction anomalies",
	}

	cmd.AddCommand(anomalyDetectCommand(f))
	cmd.AddCommand(anomalyListCommand(f))
	cmd.AddCommand(anomalyDismissCommand(f))
	cmd.AddCommand(anomalyFraudCommand(f))
	cmd.AddCommand(anomalyStatsCommand(f))

	return cmd
}

func anomalyDetectCommand(f *finsightInstance) *cobra.Command {
	var ownerID int64
	var opts finsight.AnomalyDetectionOptions

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "scan the recent window for anomalies",
		Run: func(cmd *cobra.Command, args []string) {
			anomalies, err := f.engine.DetectAnomalies(context.Background(), ownerID, opts)
			if err != nil {
				logrus.Error(err)
				return
			}
			printJSON(anomalies)
		},
	}
	cmd.Flags().Int64Var(&ownerID, "owner", 0, "owner id")
	cmd.Flags().IntVar(&opts.Days, "days", 0, "detection window in days (default from config)")
	cmd.Flags().IntVar(&opts.BaselineMonths, "baseline", 0, "months of baseline history, 0 for all-time")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}

func anomalyListCommand(f *finsightInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "list recorded anomalies, newest first",
		Run: func(cmd *cobra.Command, args []string) {
			anomalies, err := f.engine.GetAnomalies(context.Background())
			if err != nil {
				logrus.Error(err)
				return
			}
			printJSON(anomalies)
		},
	}
	return cmd
}

func anomalyDismissCommand(f *finsightInstance) *cobra.Command {
	var anomalyID string

	cmd := &cobra.Command{
		Use:   "dismiss",
		Short: "mark an anomaly reviewed and harmless",
		Run: func(cmd *cobra.Command, args []string) {
			if err := f.engine.DismissAnomaly(context.Background(), anomalyID); err != nil {
				logrus.Error(err)
				return
			}
			logrus.Infof("anomaly %s dismissed", anomalyID)
		},
	}
	cmd.Flags().StringVar(&anomalyID, "id", "", "anomaly id")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func anomalyFraudCommand(f *finsightInstance) *cobra.Command {
	var anomalyID string

	cmd := &cobra.Command{
		Use:   "confirm-fraud",
		Short: "mark an anomaly as confirmed fraud",
		Run: func(cmd *cobra.Command, args []string) {
			if err := f.engine.ConfirmFraud(context.Background(), anomalyID); err != nil {
				logrus.Error(err)
				return
			}
			logrus.Infof("anomaly %s confirmed as fraud", anomalyID)
		},
	}
	cmd.Flags().StringVar(&anomalyID, "id", "", "anomaly id")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func anomalyStatsCommand(f *finsightInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "summarize anomaly counts by state, type and severity",
		Run: func(cmd *cobra.Command, args []string) {
			stats, err := f.engine.GetAnomalyStats(context.Background())
			if err != nil {
				logrus.Error(err)
				return
			}
			printJSON(stats)
		},
	}
	return cmd
}
