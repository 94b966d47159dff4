package utils

import (
	"slices"

	"github.com/nats-io/nats.go"
)

// StreamConfigEqual reports whether the stream config reported by the server
// (current) already matches the one we want to apply (desired). Subject order
// is ignored. A zero Duplicates window on desired means "server default" and
// is not compared.
func StreamConfigEqual(current, desired nats.StreamConfig) bool {
	isCfgSame := current.Name == desired.Name &&
		current.Retention == desired.Retention &&
		current.MaxMsgs == desired.MaxMsgs &&
		current.MaxAge == desired.MaxAge &&
		current.Storage == desired.Storage

	if desired.Duplicates != 0 && current.Duplicates != desired.Duplicates {
		return false
	}

	return isCfgSame && sameSubjectSet(current.Subjects, desired.Subjects)
}

// ConsumerConfigEqual reports whether a consumer can be kept as is. It covers
// the settings that route messages (filter subjects, queue group) as well as
// delivery limits. DeliverSubject is generated per process and never compared.
func ConsumerConfigEqual(current, desired nats.ConsumerConfig) bool {
	if desired.AckWait != 0 && current.AckWait != desired.AckWait {
		return false
	}
	return current.Durable == desired.Durable &&
		current.AckPolicy == desired.AckPolicy &&
		sameSubjectSet(filterSubjects(current), filterSubjects(desired)) &&
		current.DeliverGroup == desired.DeliverGroup &&
		current.MaxDeliver == desired.MaxDeliver
}

// filterSubjects folds FilterSubject into FilterSubjects. The server reports
// a single-entry FilterSubjects list as FilterSubject.
func filterSubjects(c nats.ConsumerConfig) []string {
	if c.FilterSubject == "" {
		return c.FilterSubjects
	}
	return append(slices.Clone(c.FilterSubjects), c.FilterSubject)
}

func sameSubjectSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	sa, sb := slices.Clone(a), slices.Clone(b)
	slices.Sort(sa)
	slices.Sort(sb)
	return slices.Equal(sa, sb)
}
