package edges

import (
	"crypto/rand"
	"math/big"
	"time"
)

// EdgeServer is an on-premise appliance that ingests camera streams and
// talks to the cloud over signed requests.
type EdgeServer struct {
	ID             int64
	OrganizationID int64
	LicenseID      *int64
	Name           string
	EdgeID         string
	EdgeKey        string
	EdgeSecret     string
	Location       string
	Hostname       string
	Online         bool
	LastSeenAt     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

const keyAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewEdgeKey mints the public identifier used in signed request headers.
func NewEdgeKey() string {
	return "edge_" + randomToken(32)
}

// NewEdgeSecret mints the shared HMAC secret. It is returned to the
// caller exactly once, at registration.
func NewEdgeSecret() string {
	return randomToken(64)
}

func randomToken(n int) string {
	out := make([]byte, n)
	max := big.NewInt(int64(len(keyAlphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the platform's entropy
			// source is broken; nothing sensible to fall back to.
			panic(err)
		}
		out[i] = keyAlphabet[idx.Int64()]
	}
	return string(out)
}
