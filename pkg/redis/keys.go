package redis

import "strings"

// Keyspace prefixes every key this service writes.
type Keyspace string

const DefaultKeyspace Keyspace = "sf"

// key joins the non-empty parts under the keyspace with ':'.
func (k Keyspace) key(kind string, parts ...string) string {
	var b strings.Builder
	b.WriteString(string(k))
	b.WriteByte(':')
	b.WriteString(kind)
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			b.WriteByte(':')
			b.WriteString(p)
		}
	}
	return b.String()
}

func (k Keyspace) Idempotency(scope, id string) string { return k.key("idempotency", scope, id) }
func (k Keyspace) RateLimit(scope string) string       { return k.key("rate_limit", scope) }
func (k Keyspace) Lock(name string) string             { return k.key("lock", name) }
