package tracking

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DedupeWindow is the time bucket applied when no idempotency token is
// supplied: two tokenless submissions of the same payload inside one bucket
// collapse to a single stored event.
const DedupeWindow = 5 * time.Minute

// FingerprintInput are the stable fields the dedupe key is derived from
type FingerprintInput struct {
	WorkspaceID      uuid.UUID
	Source           EventSource
	Name             string
	IdempotencyToken string
	Properties       map[string]interface{}
	EventTime        time.Time
}

// Fingerprint computes the deterministic dedupe key for an event submission.
// The function is pure: no I/O, no clock reads, identical input always
// yields the same key. When the caller supplies an idempotency token the key
// covers only workspace, source, name and token; otherwise it hashes the
// canonicalized property bag plus the event time bucketed to DedupeWindow.
func Fingerprint(in FingerprintInput) string {
	h := sha256.New()
	h.Write([]byte(in.WorkspaceID.String()))
	h.Write([]byte{0})
	h.Write([]byte(in.Source))
	h.Write([]byte{0})
	h.Write([]byte(in.Name))
	h.Write([]byte{0})

	if in.IdempotencyToken != "" {
		h.Write([]byte("tok:"))
		h.Write([]byte(in.IdempotencyToken))
	} else {
		h.Write([]byte(canonicalize(in.Properties)))
		h.Write([]byte{0})
		bucket := in.EventTime.Unix() / int64(DedupeWindow/time.Second)
		h.Write([]byte(strconv.FormatInt(bucket, 10)))
	}

	return hex.EncodeToString(h.Sum(nil))
}

// canonicalize renders a property bag in a stable textual form: keys sorted,
// nested maps and slices handled recursively, scalars via strconv.
func canonicalize(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(k)
			b.WriteByte(':')
			b.WriteString(canonicalize(val[k]))
		}
		b.WriteByte('}')
		return b.String()
	case []interface{}:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = canonicalize(item)
		}
		return "[" + strings.Join(parts, ",") + "]"
	case string:
		return strconv.Quote(val)
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return fmt.Sprintf("%v", val)
	}
}
