package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/mod/semver"
)

type Kind string

const (
	KindSnapshot Kind = "snapshot"
	KindIntent   Kind = "intent"
	KindStart    Kind = "start"
	KindReady    Kind = "ready"
)

var Kinds = []Kind{KindSnapshot, KindIntent, KindStart, KindReady}

const (
	ProtocolVersion    = "v1.1.0"
	MinProtocolVersion = "v1.0.0"
)

var (
	ErrVersion      = errors.New("unsupported protocol version")
	ErrWrongRace    = errors.New("message for another race")
	ErrWrongKind    = errors.New("unexpected message kind")
	ErrNoSnapshot   = errors.New("no snapshot available")
	ErrNotAllowed   = errors.New("sender not allowed")
	ErrNotSupported = errors.New("not supported")
)

// Envelope wraps every message on the race channel.
type Envelope struct {
	ID      uuid.UUID       `json:"id"`
	Kind    Kind            `json:"kind"`
	RaceID  string          `json:"raceId"`
	Sender  string          `json:"sender"`
	Version string          `json:"version"`
	Sent    time.Time       `json:"sent"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Ready is sent by a player that wants to start.
type Ready struct {
	PlayerID string `json:"playerId"`
}

// CheckVersion reports whether a peer speaking version can be understood.
func CheckVersion(version string) bool {
	if !strings.HasPrefix(version, "v") {
		version = "v" + version
	}
	return semver.IsValid(version) && semver.Compare(version, MinProtocolVersion) >= 0
}

func encode(kind Kind, raceID, sender string, payload any) ([]byte, error) {
	env := Envelope{
		ID:      uuid.New(),
		Kind:    kind,
		RaceID:  raceID,
		Sender:  sender,
		Version: ProtocolVersion,
		Sent:    time.Now().UTC(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", kind, err)
		}
		env.Payload = data
	}
	return json.Marshal(env)
}

// decode parses data and checks the envelope header. The payload is left untouched.
func decode(data []byte, kind Kind, raceID string) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return env, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Kind != kind {
		return env, fmt.Errorf("%w: %s", ErrWrongKind, env.Kind)
	}
	if env.RaceID != raceID {
		return env, fmt.Errorf("%w: %s", ErrWrongRace, env.RaceID)
	}
	if !CheckVersion(env.Version) {
		return env, fmt.Errorf("%w: %q", ErrVersion, env.Version)
	}
	return env, nil
}
