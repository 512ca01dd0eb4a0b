package task

import "github.com/rs/zerolog/log"

type Status int

const (
	Queued Status = iota
	Initializing
	Started
	Downloading
	Completed
	Cancelled
	Failed
)

// tokens are the exact strings the dashboard expects on the wire.
var tokens = map[Status]string{
	Queued:       "排队中",
	Initializing: "初始化",
	Started:      "开始下载",
	Downloading:  "下载中",
	Completed:    "已完成",
	Cancelled:    "已取消",
	Failed:       "失败",
}

func (s Status) String() string {
	if t, ok := tokens[s]; ok {
		return t
	}
	return "unknown"
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	for st, t := range tokens {
		if t == string(text) {
			*s = st
			return nil
		}
	}
	return ErrUnknownStatus
}

// Terminal reports whether no further transitions can leave s.
func (s Status) Terminal() bool {
	return s == Completed || s == Cancelled || s == Failed
}

// Active reports whether the task still counts as in flight.
func (s Status) Active() bool {
	return s == Queued || s == Initializing || s == Started || s == Downloading
}

var terminal = []Status{Completed, Cancelled, Failed}

// stateTransitionMap allows forward skips but never moves backwards.
// Repeating Started or Downloading is how repeated progress lines land.
var stateTransitionMap = map[Status][]Status{
	Queued:       append([]Status{Initializing, Started, Downloading}, terminal...),
	Initializing: append([]Status{Initializing, Started, Downloading}, terminal...),
	Started:      append([]Status{Started, Downloading}, terminal...),
	Downloading:  append([]Status{Downloading}, terminal...),
	Completed:    {},
	Cancelled:    {},
	Failed:       {},
}

func Contains(states []Status, state Status) bool {
	for _, s := range states {
		if s == state {
			return true
		}
	}
	return false
}

func ValidStateTransition(src Status, dst Status) bool {
	ok := Contains(stateTransitionMap[src], dst)
	if !ok {
		log.Trace().Str("module", "task").Msgf("rejected transition from %s to %s", src, dst)
	}
	return ok
}
