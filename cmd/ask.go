package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"rag-agent/internal/domain"
	"rag-agent/internal/usecase"
)

func newAskCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question and stream the answer to stdout",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			out := cmd.OutOrStdout()
			question := strings.Join(args, " ")
			printed := ""
			for ev := range a.answers.Answer(ctx, question, &domain.Conversation{}) {
				switch ev.Kind {
				case usecase.EventPartial:
					fmt.Fprint(out, strings.TrimPrefix(ev.PartialAnswer, printed))
					printed = ev.PartialAnswer
				case usecase.EventError:
					fmt.Fprintln(out)
					return ev.Err
				case usecase.EventComplete:
					fmt.Fprintln(out)
				}
			}
			return nil
		},
	}
}
