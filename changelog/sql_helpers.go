package changelog

import (
	"time"

	"github.com/lib/pq"
)

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

func pqStringArray(ids []string) interface{} {
	return pq.Array(ids)
}
