package crate

import (
	"github.com/sirupsen/logrus"

	"github.com/jmelville/sealcrate/seal"
)

// Option configures a Crate.
type Option func(*Crate)

// WithCodec sets the encryption codec used to seal and open the crate's
// encrypted section.
func WithCodec(codec seal.Codec) Option {
	return func(c *Crate) {
		c.codec = codec
	}
}

// WithLogger sets the logger used for diagnostics, most notably the reason
// an encrypted block was discarded on load. The default logger writes
// warnings to stderr.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *Crate) {
		if logger != nil {
			c.log = logger
		}
	}
}

// WithDefaultRecipients sets the crate-level recipient set used by sensitive
// entities that do not declare their own.
func WithDefaultRecipients(set *RecipientSet) Option {
	return func(c *Crate) {
		c.defaults = set
	}
}
