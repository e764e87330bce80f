package commands

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/voiceid/internal/app"
	"github.com/MrWong99/voiceid/pkg/capture"
)

var (
	confidence float64
	explain    bool
	confirmed  bool
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <speaker> <transcript>",
	Short: "Store a reference sample for a speaker",
	Long: `Store the transcript as the speaker's reference sample, replacing any
previous one. Samples below the quality floor (default 0.3) are rejected.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			res := capture.Result{Utterance: capture.Utterance{
				Transcript: args[1],
				Confidence: confidence,
				At:         time.Now(),
			}}
			out, err := a.HandleCapture(ctx, app.ModeEnroll, args[0], res)
			if out.Feedback != "" {
				printf(cmd, "%s\n", out.Feedback)
			}
			return err
		})
	},
}

var identifyCmd = &cobra.Command{
	Use:   "identify <transcript>",
	Short: "Identify the speaker of an utterance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			u := capture.Utterance{Transcript: args[0], Confidence: confidence, At: time.Now()}
			out, err := a.HandleCapture(ctx, app.ModeIdentify, "", capture.Result{Utterance: u})
			if err != nil {
				return err
			}
			printf(cmd, "%s\n", out.Feedback)
			if out.Result.Identified {
				printf(cmd, "speaker: %s (score %.3f)\n", out.Result.SpeakerID, out.Result.Score)
			} else {
				printf(cmd, "speaker: unknown\n")
			}

			if explain {
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "SPEAKER\tTEXT\tCONFIDENCE\tRECENCY\tSCORE")
				for _, b := range a.Explain(u) {
					fmt.Fprintf(tw, "%s\t%.3f\t%.3f\t%.3f\t%.3f\n",
						b.SpeakerID, b.TextSimilarity, b.AvgConfidence, b.TimeScore, b.Score)
				}
				_ = tw.Flush()
				printf(cmd, "threshold: > %.3f, quality floor: %.3f\n",
					a.Matcher().DecisionThreshold(), a.Matcher().QualityFloor())
			}
			return nil
		})
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(_ context.Context, a *app.App) error {
			profiles := a.Profiles()
			if len(profiles) == 0 {
				printf(cmd, "no voice profiles enrolled\n")
				return nil
			}
			roster := a.Roster()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SPEAKER\tNAME\tTRANSCRIPT\tCONFIDENCE\tENROLLED")
			for _, p := range profiles {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%s\n",
					p.SpeakerID, roster.DisplayName(p.SpeakerID), p.Transcript, p.Confidence,
					p.EnrolledAt.Local().Format(time.DateTime))
			}
			return tw.Flush()
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show enrolment statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(_ context.Context, a *app.App) error {
			st := a.Stats()
			printf(cmd, "trained: %d/%d\n", st.Trained, st.Total)
			printf(cmd, "ready:   %t\n", st.Ready)
			if last := a.LastIdentified(); last != "" {
				printf(cmd, "last identified: %s\n", a.Roster().DisplayName(last))
			}
			return nil
		})
	},
}

var forgetCmd = &cobra.Command{
	Use:   "forget <speaker>",
	Short: "Remove one speaker's profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := a.Forget(ctx, args[0]); err != nil {
				return err
			}
			printf(cmd, "removed %s\n", args[0])
			return nil
		})
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove all voice data",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !confirmed {
			return errors.New("reset deletes every voice profile; pass --yes to confirm")
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := a.Reset(ctx); err != nil {
				return err
			}
			printf(cmd, "all voice data removed\n")
			return nil
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{enrollCmd, identifyCmd} {
		c.Flags().Float64Var(&confidence, "confidence", 1, "recogniser confidence of the utterance, in [0, 1]")
	}
	identifyCmd.Flags().BoolVar(&explain, "explain", false, "print the score breakdown of every profile")
	resetCmd.Flags().BoolVarP(&confirmed, "yes", "y", false, "confirm deletion")
}
