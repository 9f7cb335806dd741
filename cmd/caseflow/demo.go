package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/caseflow/caseflow"
	"github.com/caseflow/caseflow/adapters/memstore"
)

func buildDemoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Walk a claim instance through the full happy path",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			engine := caseflow.New(caseflow.ClaimWorkflow(), memstore.New())

			instanceID, s, err := engine.Start(ctx, "C1", "user_a")
			if err != nil {
				return err
			}
			printState("start", s)

			steps := []struct {
				actor string
				opt   caseflow.ResumeOption
			}{
				{"user_b", caseflow.WithUserInput("yes")},
				{"user_c", caseflow.WithUserInput("Claim for disputed withdrawal.")},
				{"user_d", caseflow.WithUserInput("hold")},
				{"user_e", caseflow.WithControlAction("resume")},
				{"user_f", caseflow.WithUserInput("yes")},
			}

			for _, step := range steps {
				s, err = engine.Resume(ctx, instanceID, step.actor, step.opt)
				if err != nil {
					return err
				}
				printState("resume by "+step.actor, s)
			}

			events, err := engine.History(ctx, instanceID)
			if err != nil {
				return err
			}

			fmt.Println("audit trail:")
			for _, e := range events {
				fmt.Printf("  %v %v node=%v status=%v actor=%v\n",
					e.Timestamp.Format("15:04:05"), e.Kind, e.Node, e.Status, e.Actor)
			}

			return nil
		},
	}
}

func printState(label string, s *caseflow.ProcessState) {
	fmt.Printf("%-20v status=%-12v node=%-22v prompt=%q result=%q\n",
		label, s.Status, s.LastNode, s.Prompt, s.Result)
}
