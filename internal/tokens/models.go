package tokens

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrUnsupportedKind  = errors.New("unsupported token kind")
	ErrUnsupportedState = errors.New("unsupported token state")
)

// Kind is the closed set of authenticator kinds the backend can provision.
type Kind string

const (
	KindGrIDsure            Kind = "GrIDsure"
	KindRADIUS              Kind = "RADIUS"
	KindOATH                Kind = "OATH"
	KindSMS                 Kind = "SMS"
	KindEmail               Kind = "Email"
	KindPassword            Kind = "Password"
	KindKT                  Kind = "KT"
	KindRB                  Kind = "RB"
	KindGOLD                Kind = "GOLD"
	KindEToken              Kind = "eToken"
	KindMobilePASS          Kind = "MobilePASS"
	KindGoogleAuthenticator Kind = "GoogleAuthenticator"
)

// wireOptions maps a kind to the backend TokenOption label it is provisioned
// and reported as.
var wireOptions = map[Kind]string{
	KindGrIDsure:            "Custom",
	KindRADIUS:              "Custom",
	KindOATH:                "OATH",
	KindSMS:                 "SMS",
	KindEmail:               "SMS",
	KindPassword:            "Password",
	KindKT:                  "KT",
	KindRB:                  "RB",
	KindGOLD:                "GOLD",
	KindEToken:              "eToken",
	KindMobilePASS:          "MobilePASS",
	KindGoogleAuthenticator: "GoogleAuthenticator",
}

var kinds = []Kind{
	KindGrIDsure, KindRADIUS, KindOATH, KindSMS, KindEmail, KindPassword,
	KindKT, KindRB, KindGOLD, KindEToken, KindMobilePASS, KindGoogleAuthenticator,
}

func Kinds() []Kind {
	out := make([]Kind, len(kinds))
	copy(out, kinds)
	return out
}

// ParseKind matches s against the known kinds ignoring case.
func ParseKind(s string) (Kind, error) {
	s = strings.TrimSpace(s)
	for _, k := range kinds {
		if strings.EqualFold(string(k), s) {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedKind, s)
}

// WireOption returns the TokenOption label for k.
func (k Kind) WireOption() (string, error) {
	opt, ok := wireOptions[k]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedKind, string(k))
	}
	return opt, nil
}

func (k Kind) String() string {
	return string(k)
}

type State string

const (
	StateActive    State = "Active"
	StateLocked    State = "Locked"
	StateSuspended State = "Suspended"
)

func ParseState(s string) (State, error) {
	s = strings.TrimSpace(s)
	for _, st := range []State{StateActive, StateLocked, StateSuspended} {
		if strings.EqualFold(string(st), s) {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedState, s)
}

type Token struct {
	Serial              string
	Kind                string
	State               string
	StateID             int
	StateSetDate        *time.Time
	Owner               string
	Organization        string
	Container           string
	HardwareInitialized bool
	Assignable          bool
}

// Filter narrows a listing. Zero fields match everything.
type Filter struct {
	Kind  string
	State string
}

func (f Filter) Match(t *Token) bool {
	if f.Kind != "" && !strings.EqualFold(f.Kind, t.Kind) {
		return false
	}
	if f.State != "" && !strings.EqualFold(f.State, t.State) {
		return false
	}
	return true
}
