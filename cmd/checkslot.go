package cmd

import (
	"errors"
	"fmt"
	"time"

	"tablebook-backend/config"
	"tablebook-backend/reservation"

	"github.com/spf13/cobra"
)

// ErrSlotRejected makes check-slot exit non-zero when the time is not bookable.
var ErrSlotRejected = errors.New("slot rejected")

func newCheckSlotCmd() *cobra.Command {
	var (
		openTime, closeTime string
		at, now, zone       string
		legacyOvernight     bool
	)

	cmd := &cobra.Command{
		Use:   "check-slot",
		Short: "Check a booking time against opening hours without a database",
		Example: `  tablebook check-slot --open 18:00 --close 02:00 --at 2025-01-11T01:00:00Z
  tablebook check-slot --open 12:00 --close 23:00 --tz Europe/Paris --at 2025-01-10T19:30:00+01:00`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := config.ReservationPolicy()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("legacy-overnight") {
				policy.ShiftPostMidnight = !legacyOvernight
			}

			loc, err := time.LoadLocation(zone)
			if err != nil {
				return fmt.Errorf("invalid --tz %q: %w", zone, err)
			}
			requested, err := time.Parse(time.RFC3339, at)
			if err != nil {
				return fmt.Errorf("invalid --at: %w", err)
			}
			current := time.Now()
			if now != "" {
				if current, err = time.Parse(time.RFC3339, now); err != nil {
					return fmt.Errorf("invalid --now: %w", err)
				}
			}

			local := requested.In(loc)
			outcome := reservation.NewValidator(policy).Validate(reservation.Request{
				Requested: local,
				Now:       current,
				Hours:     reservation.Hours{OpenTime: openTime, CloseTime: closeTime},
			})

			fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n", local.Format("2006-01-02 15:04 MST"), loc, outcome)
			if !outcome.Valid() {
				return ErrSlotRejected
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&openTime, "open", "", "opening time, HH:MM")
	cmd.Flags().StringVar(&closeTime, "close", "", "closing time, HH:MM; earlier than --open means past midnight")
	cmd.Flags().StringVar(&at, "at", "", "requested booking time, RFC 3339")
	cmd.Flags().StringVar(&now, "now", "", "current time, RFC 3339 (default: system time)")
	cmd.Flags().StringVar(&zone, "tz", "UTC", "restaurant IANA time zone")
	cmd.Flags().BoolVar(&legacyOvernight, "legacy-overnight", false, "report post-midnight times as before opening")
	_ = cmd.MarkFlagRequired("open")
	_ = cmd.MarkFlagRequired("close")
	_ = cmd.MarkFlagRequired("at")

	return cmd
}
