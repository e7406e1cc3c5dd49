package rpc

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ActivityType is the kind of activity shown in the profile.
type ActivityType int

const (
	ActivityGame ActivityType = iota
	ActivityStreaming
	ActivityListening
	ActivityWatching
	ActivityCustom
	ActivityCompeting
)

var activityTypeNames = map[ActivityType]string{
	ActivityGame:      "game",
	ActivityStreaming: "streaming",
	ActivityListening: "listening",
	ActivityWatching:  "watching",
	ActivityCustom:    "custom",
	ActivityCompeting: "competing",
}

func (t ActivityType) String() string {
	if name, ok := activityTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ActivityType(%d)", int(t))
}

// ParseActivityType accepts the lower-case names returned by String.
func ParseActivityType(s string) (ActivityType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, name := range activityTypeNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidActivityType, s)
}

// MaxButtons is the number of buttons the Discord client renders.
const MaxButtons = 2

// Activity validation errors
var (
	ErrInvalidActivityType = errors.New("invalid activity type")
	ErrMissingStreamURL    = errors.New("streaming activity requires a url")
	ErrMissingCustomStatus = errors.New("custom activity requires an emoji or state")
	ErrTooManyButtons      = errors.New("activity supports at most 2 buttons")
	ErrInvalidButton       = errors.New("button requires a label and url")
	ErrInvalidPartySize    = errors.New("party size must be [current, max] with 0 <= current <= max")
	ErrInvalidTimestamps   = errors.New("activity end time is before its start time")
)

// Activity is the rich presence payload of SET_ACTIVITY.
type Activity struct {
	Type          ActivityType `json:"type"`
	URL           string       `json:"url,omitempty"`
	CreatedAt     int64        `json:"created_at,omitempty"` // unix millis
	Timestamps    *Timestamps  `json:"timestamps,omitempty"`
	ApplicationID int64        `json:"application_id,omitempty"`
	Details       string       `json:"details,omitempty"`
	State         string       `json:"state,omitempty"`
	Emoji         *Emoji       `json:"emoji,omitempty"`
	Party         *Party       `json:"party,omitempty"`
	Assets        *Assets      `json:"assets,omitempty"`
	Secrets       *Secrets     `json:"secrets,omitempty"`
	Instance      *bool        `json:"instance,omitempty"`
	Flags         *uint32      `json:"flags,omitempty"`
	Buttons       []Button     `json:"buttons,omitempty"`
}

// Timestamps are unix millis for the start and end of the activity.
type Timestamps struct {
	Start int64 `json:"start,omitempty"`
	End   int64 `json:"end,omitempty"`
}

type Emoji struct {
	Name     string `json:"name"`
	ID       int64  `json:"id,omitempty"`
	Animated bool   `json:"animated,omitempty"`
}

// Party describes the player's party. Size is [current, max] when set.
type Party struct {
	ID   string `json:"id,omitempty"`
	Size []int  `json:"size,omitempty"`
}

// Assets are image keys (or URLs) and their hover texts.
type Assets struct {
	LargeImage string `json:"large_image,omitempty"`
	LargeText  string `json:"large_text,omitempty"`
	SmallImage string `json:"small_image,omitempty"`
	SmallText  string `json:"small_text,omitempty"`
}

// Secrets for joining and spectating.
type Secrets struct {
	Join     string `json:"join,omitempty"`
	Spectate string `json:"spectate,omitempty"`
	Match    string `json:"match,omitempty"`
}

type Button struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// ActivityOption configures an Activity built by NewActivity.
type ActivityOption func(*Activity)

// NewActivity returns a game activity stamped with the current time and
// modified by opts.
func NewActivity(opts ...ActivityOption) *Activity {
	a := &Activity{
		Type:      ActivityGame,
		CreatedAt: time.Now().UnixMilli(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func WithType(t ActivityType) ActivityOption {
	return func(a *Activity) { a.Type = t }
}

// WithURL sets the stream url, used by streaming activities.
func WithURL(url string) ActivityOption {
	return func(a *Activity) { a.URL = url }
}

func WithDetails(details string) ActivityOption {
	return func(a *Activity) { a.Details = details }
}

func WithState(state string) ActivityOption {
	return func(a *Activity) { a.State = state }
}

func WithApplicationID(id int64) ActivityOption {
	return func(a *Activity) { a.ApplicationID = id }
}

// WithTimestamps sets start and end. A zero time leaves that side unset.
func WithTimestamps(start, end time.Time) ActivityOption {
	return func(a *Activity) {
		ts := &Timestamps{}
		if !start.IsZero() {
			ts.Start = start.UnixMilli()
		}
		if !end.IsZero() {
			ts.End = end.UnixMilli()
		}
		if ts.Start == 0 && ts.End == 0 {
			a.Timestamps = nil
			return
		}
		a.Timestamps = ts
	}
}

func WithEmoji(name string, id int64, animated bool) ActivityOption {
	return func(a *Activity) { a.Emoji = &Emoji{Name: name, ID: id, Animated: animated} }
}

// WithParty sets the party id and its [current, max] size. A max of zero
// leaves the size unset.
func WithParty(id string, current, max int) ActivityOption {
	return func(a *Activity) {
		p := &Party{ID: id}
		if max > 0 {
			p.Size = []int{current, max}
		}
		a.Party = p
	}
}

func WithLargeImage(key, text string) ActivityOption {
	return func(a *Activity) {
		if a.Assets == nil {
			a.Assets = &Assets{}
		}
		a.Assets.LargeImage = key
		a.Assets.LargeText = text
	}
}

func WithSmallImage(key, text string) ActivityOption {
	return func(a *Activity) {
		if a.Assets == nil {
			a.Assets = &Assets{}
		}
		a.Assets.SmallImage = key
		a.Assets.SmallText = text
	}
}

func WithSecrets(s Secrets) ActivityOption {
	return func(a *Activity) { a.Secrets = &s }
}

func WithInstance(instance bool) ActivityOption {
	return func(a *Activity) { a.Instance = &instance }
}

func WithFlags(flags uint32) ActivityOption {
	return func(a *Activity) { a.Flags = &flags }
}

// WithButton appends a button. Validate rejects more than MaxButtons.
func WithButton(label, url string) ActivityOption {
	return func(a *Activity) { a.Buttons = append(a.Buttons, Button{Label: label, URL: url}) }
}

// Validate checks the constraints the Discord client enforces.
func (a *Activity) Validate() error {
	if _, ok := activityTypeNames[a.Type]; !ok {
		return fmt.Errorf("%w: %d", ErrInvalidActivityType, int(a.Type))
	}

	switch a.Type {
	case ActivityStreaming:
		if strings.TrimSpace(a.URL) == "" {
			return ErrMissingStreamURL
		}
	case ActivityCustom:
		if a.Emoji == nil && strings.TrimSpace(a.State) == "" {
			return ErrMissingCustomStatus
		}
	}

	if len(a.Buttons) > MaxButtons {
		return ErrTooManyButtons
	}
	for _, b := range a.Buttons {
		if strings.TrimSpace(b.Label) == "" || strings.TrimSpace(b.URL) == "" {
			return ErrInvalidButton
		}
	}

	if a.Party != nil && a.Party.Size != nil {
		s := a.Party.Size
		if len(s) != 2 || s[0] < 0 || s[0] > s[1] {
			return ErrInvalidPartySize
		}
	}

	if ts := a.Timestamps; ts != nil && ts.Start != 0 && ts.End != 0 && ts.End < ts.Start {
		return ErrInvalidTimestamps
	}

	return nil
}
