package engine

import "go.uber.org/multierr"

// joinErr appends next onto err without discarding either, the way
// viamrobotics-rdk's pi board Close() combines GPIO/interrupt-handler
// teardown failures instead of returning only the first.
func joinErr(err, next error) error {
	return multierr.Append(err, next)
}
