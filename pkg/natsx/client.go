package natsx

import (
	"os"

	"github.com/nats-io/nats.go"
)

// EnvURL is the environment variable consulted for the server address.
const EnvURL = "NATS_URL"

// URL returns the NATS server address from NATS_URL, or nats.DefaultURL when unset.
func URL() string {
	if u := os.Getenv(EnvURL); u != "" {
		return u
	}
	return nats.DefaultURL
}

// NewClient connects to the server returned by URL. Without options the
// connection is named "parley" and uses compression.
func NewClient(opts ...nats.Option) (*nats.Conn, error) {
	if len(opts) == 0 {
		opts = append(opts, nats.Name("parley"), nats.Compression(true))
	}
	return nats.Connect(URL(), opts...)
}
