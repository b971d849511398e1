package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/synthdata/internal/scheduler"
)

func newTriggerCmd(a *app) *cobra.Command {
	var (
		conf map[string]string
		wait bool
	)
	cmd := &cobra.Command{
		Use:   "trigger <dag-id>",
		Short: "Start a run on the external scheduler",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.cfg.UseAirflow() {
				return fmt.Errorf("AIRFLOW_API_URL is not set")
			}
			s := scheduler.NewAirflow(a.cfg.AirflowURL, a.cfg.AirflowUser, a.cfg.AirflowPass)
			payload := make(map[string]any, len(conf))
			for k, v := range conf {
				payload[k] = v
			}

			ctx := cmd.Context()
			dag := args[0]
			runID, err := s.Trigger(ctx, dag, payload)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, runID)
			if !wait {
				return nil
			}

			opts := scheduler.WatchOptions{Interval: a.cfg.PollInterval, Timeout: a.cfg.RunTimeout}
			_, err = scheduler.Await(ctx, s, dag, runID, opts, func(u scheduler.Update) {
				fmt.Fprintf(out, "%s  %s\n", u.At.Format("15:04:05"), strings.ToUpper(string(u.State)))
			})
			return err
		},
	}
	cmd.Flags().StringToStringVar(&conf, "conf", nil, "Run conf entry as key=value")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Poll until the run finishes")
	return cmd
}
