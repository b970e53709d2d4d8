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
	"fmt"
	"log"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/finsighthq/finsight"
	"github.com/finsighthq/finsight/config"
	"github.com/finsighthq/finsight/database"
)

// Finsight represents the CLI application, encapsulating the root Cobra command.
type Finsight struct {
	cmd *cobra.Command
}

// finsightInstance holds the engine instance and its configuration, shared
// by every subcommand after preRun.
type finsightInstance struct {
	engine *finsight.Finsight
	cnf    *config.Configuration
}

func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads configuration and wires the engine before any command runs.
func preRun(app *finsightInstance, configFile *string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig(*configFile)
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		engine, err := setupFinsight(cnf)
		if err != nil {
			log.Fatal(err)
		}

		app.engine = engine
		app.cnf = cnf
		return nil
	}
}

// setupFinsight connects the configured store and builds the engine on it.
func setupFinsight(cfg *config.Configuration) (*finsight.Finsight, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	engine, err := finsight.NewFinsight(db)
	if err != nil {
		return nil, fmt.Errorf("error creating finsight: %v", err)
	}
	return engine, nil
}

// NewCLI assembles the root command and its subcommands.
func NewCLI() *Finsight {
	var configFile string
	f := &finsightInstance{}

	var rootCmd = &cobra.Command{
		Use:   "finsight",
		Short: "Transaction intelligence engine",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./finsight.json", "Configuration file for finsight")
	rootCmd.PersistentPreRunE = preRun(f, &configFile)

	rootCmd.AddCommand(ledgerCommands(f))
	rootCmd.AddCommand(detectCommands(f))
	rootCmd.AddCommand(anomalyCommands(f))
	rootCmd.AddCommand(migrateCommands(f))
	rootCmd.AddCommand(configCommands())

	return &Finsight{cmd: rootCmd}
}

func (w Finsight) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
