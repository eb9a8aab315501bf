// Package redisconn constructs the shared Redis client, following the exact
// REDIS_ADDR / REDIS_HOST+REDIS_PORT / hardcoded-default cascade the teacher
// uses in go-server/redis/connection.go.
package redisconn

import (
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
)

func Connect() (*redis.Client, error) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		host := os.Getenv("REDIS_HOST")
		port := os.Getenv("REDIS_PORT")
		if host != "" && port != "" {
			addr = fmt.Sprintf("%s:%s", host, port)
		} else {
			addr = "localhost:6379"
		}
	}

	password := os.Getenv("REDIS_PASSWORD")

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	return client, nil
}
