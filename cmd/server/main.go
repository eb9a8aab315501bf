package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Ghost-hands/CollaborativeEditingSystemGoogleDOCS-sub000/changelog"
	"github.com/Ghost-hands/CollaborativeEditingSystemGoogleDOCS-sub000/config"
	"github.com/Ghost-hands/CollaborativeEditingSystemGoogleDOCS-sub000/contribution"
	"github.com/Ghost-hands/CollaborativeEditingSystemGoogleDOCS-sub000/docstore"
	"github.com/Ghost-hands/CollaborativeEditingSystemGoogleDOCS-sub000/redisconn"
	"github.com/Ghost-hands/CollaborativeEditingSystemGoogleDOCS-sub000/room"
	"github.com/Ghost-hands/CollaborativeEditingSystemGoogleDOCS-sub000/session"
	"github.com/Ghost-hands/CollaborativeEditingSystemGoogleDOCS-sub000/snapshot"
	"github.com/Ghost-hands/CollaborativeEditingSystemGoogleDOCS-sub000/userstore"
	"github.com/Ghost-hands/CollaborativeEditingSystemGoogleDOCS-sub000/version"
	"github.com/Ghost-hands/CollaborativeEditingSystemGoogleDOCS-sub000/wsapi"
)

func main() {
	cfg := config.Load()

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL:", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal("Failed to ping PostgreSQL:", err)
	}
	log.Println("Connected to PostgreSQL")

	redisClient, err := redisconn.Connect()
	if err != nil {
		log.Fatal("Failed to build Redis client:", err)
	}
	ctx := context.Background()
	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	log.Println("Connected to Redis")

	docs := docstore.NewPostgresStore(db)
	changes := changelog.NewPostgresStore(db)
	users := userstore.NewPostgresStore(db)
	contributions := contribution.NewPostgresStore(db)

	var archiver version.Archiver
	if cfg.S3Enabled {
		a, err := snapshot.NewArchiver(cfg.S3Region, cfg.S3Bucket)
		if err != nil {
			log.Printf("S3 archiver disabled, failed to initialize: %v", err)
		} else {
			archiver = a
			log.Println("Version archival to S3 enabled")
		}
	}
	versions := version.NewStore(db, docs, changes, contributions, archiver)
	versionAPI := wsapi.NewVersionAPI(versions)

	sessions := session.NewManager(docs, changes, redisClient, cfg.SessionIdleTimeout)
	sessions.SetRecentBufferCap(cfg.RecentBufferCap)
	rooms := room.NewManager(docs)
	hub := wsapi.NewHub(rooms, sessions, changes, users, redisClient)

	// Post-construction wiring breaks what would otherwise be import
	// cycles: docstore needs a callback into session, and session needs
	// callbacks into the wsapi hub, without importing them.
	docs.SetSessionEvictor(sessions.Evict)
	sessions.SetBroadcaster(hub)
	sessions.SetMembershipChecker(hub)

	go hub.Run()
	hub.StartRedisSubscriber(ctx)
	sessions.StartIdleSweep(cfg.SessionIdleTimeout / 4)

	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		wsapi.ServeWS(hub, w, r)
	})
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("db unreachable"))
			return
		}
		w.Write([]byte("ok"))
	})
	http.HandleFunc("/api/versions", versionAPI.HandleList)
	http.HandleFunc("/api/versions/create", versionAPI.HandleCreate)
	http.HandleFunc("/api/versions/revert", versionAPI.HandleRevert)
	http.HandleFunc("/api/versions/diff", versionAPI.HandleDiff)
	http.Handle("/metrics", promhttp.Handler())

	log.Printf("Server starting on %s", cfg.ListenAddr)
	log.Fatal(http.ListenAndServe(cfg.ListenAddr, nil))
}
