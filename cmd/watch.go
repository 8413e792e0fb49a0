package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"import_panel/internal/panel"

	"github.com/spf13/cobra"
)

func watchCmd() *cobra.Command {
	var (
		importConfigID string
		jobID          string
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow an import config's running job in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			client := newClient(cfg, log)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			p, err := panel.Mount(ctx, panel.Options{
				ImportConfigID: importConfigID,
				Dial:           channelDialer(cfg, client, log),
				FlushInterval:  cfg.Panel.FlushInterval,
				LogCap:         cfg.Panel.LogCap,
				ScrollEpsilon:  cfg.Panel.ScrollEpsilon,
				Viewport:       panel.FollowViewport{},
				Log:            log,
			})
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()

			return follow(ctx, p, jobID, os.Stdout)
		},
	}
	cmd.Flags().StringVar(&importConfigID, "config", "", "Import config id")
	cmd.Flags().StringVar(&jobID, "job", "", "Job to follow (default: newest running job)")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

// follow prints panel updates until ctx ends or the panel closes. With no
// selection it picks want, or else the newest running job.
func follow(ctx context.Context, p *panel.Panel, want string, out io.Writer) error {
	updates, snap, cancel, err := p.Watch(0)
	if err != nil {
		return err
	}
	defer cancel()

	r := &renderer{out: out}
	r.state(snap)
	if snap.State == panel.StateDisconnected && snap.Error != "" {
		return fmt.Errorf("event channel unavailable: %s", snap.Error)
	}
	trySelect(p, snap, want)

	for {
		select {
		case <-ctx.Done():
			return nil
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			r.update(u)
			if u.Type == panel.UpdateState && u.State != nil {
				trySelect(p, *u.State, want)
			}
		}
	}
}

func trySelect(p *panel.Panel, s panel.Snapshot, want string) {
	if s.SelectedJob != nil || s.State == panel.StateDisconnected || len(s.RunningJobs) == 0 {
		return
	}
	target := s.RunningJobs[0].ID
	if want != "" {
		target = ""
		for _, j := range s.RunningJobs {
			if j.ID == want {
				target = want
			}
		}
		if target == "" {
			return
		}
	}
	// Select from a goroutine: this runs while the update channel is read.
	go func() { _ = p.Select(target) }()
}

// renderer writes panel updates as plain lines.
type renderer struct {
	out       io.Writer
	selected  string
	lastState string
	percent   int
}

func (r *renderer) state(s panel.Snapshot) {
	if s.State != r.lastState {
		r.lastState = s.State
		fmt.Fprintf(r.out, "-- %s\n", s.State)
	}
	sel := ""
	if s.SelectedJob != nil {
		sel = s.SelectedJob.ID
	}
	if sel != r.selected {
		if sel == "" {
			fmt.Fprintf(r.out, "-- job %s stopped\n", r.selected)
		} else {
			fmt.Fprintf(r.out, "-- following job %s (started %s by %s)\n", sel, s.SelectedJob.RunAt.Format(time.RFC3339), s.SelectedJob.RunBy)
		}
		r.selected = sel
	}
}

func (r *renderer) update(u panel.Update) {
	switch u.Type {
	case panel.UpdateState:
		if u.State != nil {
			r.state(*u.State)
		}
	case panel.UpdateProgress:
		r.progress(u)
	case panel.UpdateLogs:
		if u.Dropped > 0 {
			fmt.Fprintf(r.out, "-- %d older lines dropped\n", u.Dropped)
		}
		r.lines(u)
	case panel.UpdateRecord:
		r.records(u)
	case panel.UpdateReset:
		r.progress(u)
		r.lines(u)
		r.records(u)
	}
}

func (r *renderer) progress(u panel.Update) {
	if u.Progress == nil || u.Progress.Total <= 0 {
		return
	}
	pct := u.Progress.Percent()
	if pct == r.percent {
		return
	}
	r.percent = pct
	fmt.Fprintf(r.out, "[%3d%%] %d/%d\n", pct, u.Progress.Current, u.Progress.Total)
}

func (r *renderer) lines(u panel.Update) {
	for _, l := range u.Logs {
		ts := ""
		if !l.Timestamp.IsZero() {
			ts = l.Timestamp.Format("15:04:05") + " "
		}
		fmt.Fprintf(r.out, "%s%-7s %s\n", ts, strings.ToUpper(l.Level), l.Message)
	}
}

func (r *renderer) records(u panel.Update) {
	for _, rec := range u.Records {
		title := rec.Data.Title
		if title == "" {
			title = rec.Data.Name
		}
		fmt.Fprintf(r.out, "  %-8s %s %s\n", rec.Type, rec.Data.ID, title)
		for _, d := range rec.Data.Duplications {
			fmt.Fprintf(r.out, "           duplicate of %s (%s)\n", d.ID, d.Reason)
		}
	}
}
