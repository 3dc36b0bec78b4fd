package redis

import "time"

// Keyspace for one session key. Collections are hashes so a write replaces a
// single member; every write is followed by a PUBLISH on the matching channel.
type keyspace struct {
	session string
	teams   string
	answers string
}

func newKeyspace(sessionKey string) keyspace {
	prefix := "quiz:" + sessionKey + ":"
	return keyspace{
		session: prefix + "session",
		teams:   prefix + "teams",
		answers: prefix + "answers",
	}
}

func changedChannel(key string) string {
	return key + ":changed"
}

// Options shared by the Redis stores.
type Options struct {
	// KeyTTL expires idle session data. Every write refreshes it; zero keeps keys forever.
	KeyTTL time.Duration
}
