package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/presencelink/presencelink/internal/logging"
	"github.com/presencelink/presencelink/internal/rpc"
)

// dialRPC is replaced in tests.
var dialRPC = rpc.Dial

// activityFlags holds the 'set' flags that describe the activity.
type activityFlags struct {
	activityType string
	details      string
	state        string
	url          string

	largeImage string
	largeText  string
	smallImage string
	smallText  string

	start   string
	end     string
	elapsed bool

	partyID   string
	partySize string

	buttons []string
}

func (f *activityFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.activityType, "type", "game", "Activity type: game, streaming, listening, watching, custom, competing")
	flags.StringVar(&f.details, "details", "", "First line of the presence")
	flags.StringVar(&f.state, "state", "", "Second line of the presence")
	flags.StringVar(&f.url, "url", "", "Stream URL (required for --type streaming)")
	flags.StringVar(&f.largeImage, "large-image", "", "Large image asset key or URL")
	flags.StringVar(&f.largeText, "large-text", "", "Large image hover text")
	flags.StringVar(&f.smallImage, "small-image", "", "Small image asset key or URL")
	flags.StringVar(&f.smallText, "small-text", "", "Small image hover text")
	flags.StringVar(&f.start, "start", "", "Start time: now, RFC3339, unix seconds, or a duration offset like -10m")
	flags.StringVar(&f.end, "end", "", "End time: RFC3339, unix seconds, or a duration offset like 30m")
	flags.BoolVar(&f.elapsed, "elapsed", false, "Show time elapsed since now (same as --start now)")
	flags.StringVar(&f.partyID, "party-id", "", "Party id")
	flags.StringVar(&f.partySize, "party-size", "", "Party size as current/max, e.g. 2/5")
	flags.StringArrayVar(&f.buttons, "button", nil, "Button as label=url (repeatable, at most 2)")
}

// build turns the flags into an activity. Times are relative to now.
func (f *activityFlags) build(now time.Time) (*rpc.Activity, error) {
	typ, err := rpc.ParseActivityType(f.activityType)
	if err != nil {
		return nil, err
	}

	if f.elapsed && f.start != "" {
		return nil, errors.New("--elapsed and --start are mutually exclusive")
	}
	start, err := parseTimeFlag(f.start, now)
	if err != nil {
		return nil, fmt.Errorf("invalid --start: %w", err)
	}
	if f.elapsed {
		start = now
	}
	end, err := parseTimeFlag(f.end, now)
	if err != nil {
		return nil, fmt.Errorf("invalid --end: %w", err)
	}

	opts := []rpc.ActivityOption{
		rpc.WithType(typ),
		rpc.WithDetails(f.details),
		rpc.WithState(f.state),
		rpc.WithURL(f.url),
		rpc.WithTimestamps(start, end),
	}
	if f.largeImage != "" || f.largeText != "" {
		opts = append(opts, rpc.WithLargeImage(f.largeImage, f.largeText))
	}
	if f.smallImage != "" || f.smallText != "" {
		opts = append(opts, rpc.WithSmallImage(f.smallImage, f.smallText))
	}
	if f.partyID != "" || f.partySize != "" {
		current, max, err := parsePartySize(f.partySize)
		if err != nil {
			return nil, err
		}
		opts = append(opts, rpc.WithParty(f.partyID, current, max))
	}
	for _, b := range f.buttons {
		label, url, err := parseButton(b)
		if err != nil {
			return nil, err
		}
		opts = append(opts, rpc.WithButton(label, url))
	}

	a := rpc.NewActivity(opts...)
	a.CreatedAt = now.UnixMilli()
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// parseTimeFlag accepts "", "now", unix seconds, a signed duration offset
// from now, or RFC3339. The empty string yields the zero time.
func parseTimeFlag(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return time.Time{}, nil
	case strings.EqualFold(s, "now"):
		return now, nil
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		if secs <= 0 {
			return time.Time{}, fmt.Errorf("unix time must be positive, got %d", secs)
		}
		return time.Unix(secs, 0), nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return now.Add(d), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is not now, a duration, unix seconds or RFC3339", s)
	}
	return t, nil
}

// parsePartySize parses "current/max". The empty string means no size.
func parsePartySize(s string) (current, max int, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, 0, nil
	}
	cur, m, ok := strings.Cut(s, "/")
	if !ok {
		return 0, 0, fmt.Errorf("invalid --party-size %q: expected current/max", s)
	}
	current, err = strconv.Atoi(strings.TrimSpace(cur))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid --party-size %q: %w", s, err)
	}
	max, err = strconv.Atoi(strings.TrimSpace(m))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid --party-size %q: %w", s, err)
	}
	if max <= 0 {
		return 0, 0, fmt.Errorf("invalid --party-size %q: max must be positive", s)
	}
	return current, max, nil
}

// parseButton parses "label=url". Only the first '=' separates, so urls
// with query strings survive.
func parseButton(s string) (label, url string, err error) {
	label, url, ok := strings.Cut(s, "=")
	label = strings.TrimSpace(label)
	url = strings.TrimSpace(url)
	if !ok || label == "" || url == "" {
		return "", "", fmt.Errorf("invalid --button %q: expected label=url", s)
	}
	return label, url, nil
}

// clientOptions builds rpc options from configuration and an optional
// --app-id override.
func clientOptions(appID string, log *logging.Logger) (rpc.Options, error) {
	cfg, err := loadConfig()
	if err != nil {
		return rpc.Options{}, err
	}
	if appID != "" {
		cfg.Client.ApplicationID = strings.TrimSpace(appID)
	}
	if err := cfg.RequireApplicationID(); err != nil {
		return rpc.Options{}, fmt.Errorf("%w (set it in presence.conf, PRESENCELINK_APP_ID or --app-id)", err)
	}
	return rpc.Options{
		ClientID:         cfg.Client.ApplicationID,
		HandshakeTimeout: cfg.HandshakeTimeout(),
		PollInterval:     cfg.ReadPollInterval(),
		Logger:           log,
	}, nil
}

// newSetCmd creates the 'set' command.
func newSetCmd() *cobra.Command {
	var (
		af        activityFlags
		appID     string
		dryRun    bool
		reconnect time.Duration
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set the rich presence and hold it until interrupted",
		Long: `Connect to the Discord client, send the activity described by the flags
and keep the connection open. Discord clears the presence when the
connection closes, so 'set' runs until Ctrl+C.

With --reconnect, a lost connection is retried after the given delay and
the activity is sent again.

Examples:
  presencelink set --details "Editing main.go" --state "presencelink" --elapsed
  presencelink set --type listening --details "Song" --end 3m30s
  presencelink set --party-id lobby --party-size 2/5 --button "Join=https://example.com/join"
  presencelink set --details "Preview" --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			log := GetLogger()

			activity, err := af.build(time.Now())
			if err != nil {
				return err
			}

			if dryRun {
				data, err := rpc.MarshalActivity(activity)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			opts, err := clientOptions(appID, log)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			for {
				err := holdPresence(ctx, opts, activity, out)
				if ctx.Err() != nil {
					return nil
				}
				if reconnect <= 0 {
					return err
				}
				log.Warn().Err(err).Dur("retry_in", reconnect).Msg("Connection lost, reconnecting")
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(reconnect):
				}
			}
		},
	}

	af.register(cmd)
	cmd.Flags().StringVar(&appID, "app-id", "", "Discord application id (overrides config)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the activity JSON instead of sending it")
	cmd.Flags().DurationVar(&reconnect, "reconnect", 0, "Reconnect after this delay when the connection is lost (0 = exit)")

	return cmd
}

// holdPresence runs one connect, set, wait cycle. It returns when the
// connection ends or ctx is done.
func holdPresence(ctx context.Context, opts rpc.Options, activity *rpc.Activity, out io.Writer) error {
	client, err := dialRPC(ctx, opts)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.SetActivity(ctx, activity); err != nil {
		return err
	}

	who := "unknown user"
	if u := client.User(); u != nil {
		who = u.Username
	}
	fmt.Fprintf(out, "Presence set for %s via %s (Ctrl+C to clear)\n", who, client.Endpoint())

	return client.Wait(ctx)
}

// newClearCmd creates the 'clear' command.
func newClearCmd() *cobra.Command {
	var appID string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear the rich presence",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := clientOptions(appID, GetLogger())
			if err != nil {
				return err
			}

			client, err := dialRPC(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.ClearActivity(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Presence cleared")
			return nil
		},
	}

	cmd.Flags().StringVar(&appID, "app-id", "", "Discord application id (overrides config)")

	return cmd
}
