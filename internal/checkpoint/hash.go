package checkpoint

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/zeebo/xxh3"
)

// NewRunID returns a short random run identifier.
func NewRunID() string {
	return uuid.New().String()[:8]
}

// ConfigHash fingerprints a configuration so that a resumed run can warn
// when the configuration changed since the run started.
func ConfigHash(cfg any) string {
	data, err := json.Marshal(cfg)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%016x", xxh3.Hash(data))
}
