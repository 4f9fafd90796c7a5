package outq

import "github.com/pkg/errors"

// Error values of this package; NewOutQueue's collaborator validation
// returns ErrNilCollaborator. Grounded on
// PatrickLi2021-IP-TCP's socket layer, which reaches for pkg/errors instead
// of the bare standard library errors package throughout its send path.
var (
	ErrNilCollaborator = errors.New("outq: a required collaborator was nil")
	ErrNilFrame        = errors.New("outq: frame must not be nil")
)

func wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}
