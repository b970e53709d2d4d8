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
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func ledgerCommands(f *finsightInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "manage account ledgers and running balances",
	}

	cmd.AddCommand(recalculateCommand(f))
	cmd.AddCommand(verifyCommand(f))
	cmd.AddCommand(openingBalanceCommand(f))
	cmd.AddCommand(summaryCommand(f))

	return cmd
}

func recalculateCommand(f *finsightInstance) *cobra.Command {
	var accountID int64
	var from string

	cmd := &cobra.Command{
		Use:   "recalculate",
		Short: "recompute running balances for an account",
		Run: func(cmd *cobra.Command, args []string) {
			var startDate *time.Time
			if from != "" {
				parsed, err := time.Parse("2006-01-02", from)
				if err != nil {
					logrus.Errorf("invalid --from date: %v", err)
					return
				}
				startDate = &parsed
			}

			result, err := f.engine.CalculateRunningBalances(context.Background(), accountID, startDate)
			if err != nil {
				logrus.Error(err)
				return
			}
			printJSON(result)
		},
	}
	cmd.Flags().Int64Var(&accountID, "account", 0, "account id")
	cmd.Flags().StringVar(&from, "from", "", "recalculate only from this date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

func verifyCommand(f *finsightInstance) *cobra.Command {
	var accountID int64

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "verify stored balances against an independent recomputation",
		Run: func(cmd *cobra.Command, args []string) {
			result, err := f.engine.VerifyBalanceAccuracy(context.Background(), accountID)
			if err != nil {
				logrus.Error(err)
				return
			}
			printJSON(result)
		},
	}
	cmd.Flags().Int64Var(&accountID, "account", 0, "account id")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

func openingBalanceCommand(f *finsightInstance) *cobra.Command {
	var accountID int64
	var amount float64

	cmd := &cobra.Command{
		Use:   "opening-balance",
		Short: "set an account's opening balance and recalculate",
		Run: func(cmd *cobra.Command, args []string) {
			result, err := f.engine.UpdateOpeningBalance(context.Background(), accountID, amount)
			if err != nil {
				logrus.Error(err)
				return
			}
			printJSON(result)
		},
	}
	cmd.Flags().Int64Var(&accountID, "account", 0, "account id")
	cmd.Flags().Float64Var(&amount, "amount", 0, "new opening balance")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

func summaryCommand(f *finsightInstance) *cobra.Command {
	var accountID int64
	var month string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "show income, expenses and net for an account",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			if month != "" {
				result, err := f.engine.GetMonthlyAccountSummary(ctx, accountID, month)
				if err != nil {
					logrus.Error(err)
					return
				}
				printJSON(result)
				return
			}
			result, err := f.engine.GetAccountSummary(ctx, accountID)
			if err != nil {
				logrus.Error(err)
				return
			}
			printJSON(result)
		},
	}
	cmd.Flags().Int64Var(&accountID, "account", 0, "account id")
	cmd.Flags().StringVar(&month, "month", "", "restrict to one month (YYYY-MM)")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		logrus.Error(err)
		return
	}
	fmt.Println(string(data))
}
