package idempotency

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
)

// HashBody computes a collision-resistant hash over the canonicalized
// request payload. JSON bodies are re-marshalled so that whitespace and key
// ordering differences do not produce false conflicts; non-JSON bodies are
// hashed as-is.
func HashBody(body []byte) string {
	if len(body) == 0 {
		return fmt.Sprintf("%x", sha256.Sum256(nil))
	}

	var decoded any
	if err := json.Unmarshal(body, &decoded); err == nil {
		// encoding/json writes map keys in sorted order, which gives a
		// canonical form for any JSON payload.
		if canonical, err := json.Marshal(decoded); err == nil {
			return fmt.Sprintf("%x", sha256.Sum256(canonical))
		}
	}

	return fmt.Sprintf("%x", sha256.Sum256(body))
}

// RecordKey derives the cache key for a (client, idempotency key) pair.
func RecordKey(clientID, requestID string) string {
	sum := sha256.Sum256([]byte(clientID + "\x00" + requestID))
	return fmt.Sprintf("%x", sum)
}
