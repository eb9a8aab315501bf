package userstore

import "github.com/lib/pq"

func idArray(ids []string) interface{} {
	return pq.Array(ids)
}
