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
	"log"

	"github.com/spf13/cobra"
)

// sweepCommands defines the "sweep" command, which releases expired slot
// leases once and exits. Useful when the workers are down.
func sweepCommands(b *rifaInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "release expired slot leases",
		Run: func(cmd *cobra.Command, args []string) {
			released, err := b.rifa.SweepExpired(cmd.Context())
			if err != nil {
				log.Fatalf("Error sweeping leases: %v", err)
			}
			log.Printf("Sweep complete, released %d slot(s)", released)
		},
	}
	return cmd
}
