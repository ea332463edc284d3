package game

import (
	"crypto/subtle"
	"regexp"

	petname "github.com/dustinkirkland/golang-petname"
	"github.com/pkg/errors"

	"github.com/ObambaCaree/petridish/internal/world"
)

// MaxNameLength bounds display names.
const MaxNameLength = 25

var (
	ErrInvalidName   = errors.New("invalid username")
	ErrNameTaken     = errors.New("username already in use")
	ErrAlreadyJoined = errors.New("already joined")
)

var validName = regexp.MustCompile(`^\w*$`)

// ResolveName validates a requested display name against the live roster.
// Empty names are replaced with a generated one.
func ResolveName(w *world.World, requested string) (string, error) {
	if len(requested) > MaxNameLength || !validName.MatchString(requested) {
		return "", errors.Wrapf(ErrInvalidName, "%q", requested)
	}
	name := requested
	if name == "" {
		name = generateName(w)
	}
	if _, taken := w.PlayerByName(name); taken {
		return "", errors.Wrapf(ErrNameTaken, "%q", name)
	}
	return name, nil
}

func generateName(w *world.World) string {
	for attempt := 0; attempt < 8; attempt++ {
		name := petname.Generate(2, "_")
		if len(name) > MaxNameLength {
			name = name[:MaxNameLength]
		}
		if _, taken := w.PlayerByName(name); !taken {
			return name
		}
	}
	return petname.Generate(3, "_")
}

// Authenticate compares an admin password in constant time. An empty
// configured password never authenticates.
func Authenticate(cfg world.Config, password string) bool {
	if cfg.AdminPass == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cfg.AdminPass), []byte(password)) == 1
}
