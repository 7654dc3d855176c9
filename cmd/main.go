/*
Copyright 2025 Rifa Labs Authors.

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

	"github.com/rifalabs/rifa"
	"github.com/rifalabs/rifa/config"
	"github.com/rifalabs/rifa/database"
	"github.com/rifalabs/rifa/internal/notification"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Rifa represents the CLI application, encapsulating the root Cobra command.
type Rifa struct {
	cmd *cobra.Command
}

// rifaInstance holds the runtime Rifa instance and its configuration, shared
// across subcommands.
type rifaInstance struct {
	rifa *rifa.Rifa
	cnf  *config.Configuration
}

// recoverPanic handles any panics during program execution and logs the error.
func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration and initializes the Rifa instance before any
// command runs.
func preRun(app *rifaInstance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig("rifa.json")
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		newRifa, err := setupRifa(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.rifa = newRifa
		app.cnf = cnf

		return nil
	}
}

// setupRifa creates a Rifa instance backed by the configured data source.
func setupRifa(cfg *config.Configuration) (*rifa.Rifa, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	newRifa, err := rifa.NewRifa(db)
	if err != nil {
		return nil, fmt.Errorf("error creating rifa: %v", err)
	}
	return newRifa, nil
}

// NewCLI creates the command-line interface for the Rifa application.
func NewCLI() *Rifa {
	var configFile string
	b := &rifaInstance{}

	var rootCmd = &cobra.Command{
		Use:   "rifa",
		Short: "Slot reservation and raffle pool server",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./rifa.json", "Configuration file for rifa")

	rootCmd.PersistentPreRunE = preRun(b)

	rootCmd.AddCommand(serverCommands(b))
	rootCmd.AddCommand(workerCommands(b))
	rootCmd.AddCommand(migrateCommands(b))
	rootCmd.AddCommand(sweepCommands(b))
	rootCmd.AddCommand(configCommands())

	return &Rifa{cmd: rootCmd}
}

// executeCLI runs the root command, handling any errors that occur during execution.
func (w Rifa) executeCLI() {
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
