package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/bytedance/sonic"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"zedis/internal/config"
	"zedis/internal/keytree"
	"zedis/internal/logger"
	"zedis/internal/session"
	"zedis/internal/store"
)

// demoStore seeds an in-memory store so the session can be driven without a
// running server.
func demoStore() *store.MemoryStore {
	st := store.NewMemoryStore()
	st.SetString("user:1:name", "alice")
	st.SetString("user:1:email", "alice@example.com")
	st.SetString("user:2:name", "bob")
	st.SetHash("user:1:profile", map[string]string{
		"city":  "bangkok",
		"phone": "123-456",
		"plan":  "pro",
	})
	st.SetList("queue:jobs", "resize", "transcode", "notify")
	st.SetSet("tags:active", "go", "redis", "cache")
	st.SetSortedSet("leaderboard", map[string]float64{
		"alice": 420,
		"bob":   250,
	})
	return st
}

// waitEvent drains the subscription until kind arrives, printing any
// notifications seen along the way.
func waitEvent(events <-chan session.Event, kind session.EventKind) error {
	deadline := time.After(10 * time.Second)
	for {
		select {
		case e, ok := <-events:
			if !ok {
				return fmt.Errorf("event stream closed before %s", kind)
			}
			if e.Kind == session.EventNotification && e.Notification != nil {
				fmt.Printf("[%s] %s: %s\n", e.Notification.Severity, e.Notification.Title, e.Notification.Message)
			}
			if e.Kind == kind {
				return nil
			}
		case <-deadline:
			return fmt.Errorf("timed out waiting for %s", kind)
		}
	}
}

func printJSON(label string, v any) {
	out, err := sonic.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Error().Err(err).Str("label", label).Msg("failed to marshal output")
		return
	}
	fmt.Printf("%s:\n%s\n", label, out)
}

func run() error {
	// Load environment variables from .env file; absence is fine.
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("loaded environment from .env")
	}

	configPath := os.Getenv("ZEDIS_CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	if err := logger.Init(cfg.Log); err != nil {
		return fmt.Errorf("error initializing logger: %w", err)
	}

	ctx := context.Background()

	serverID := "demo"
	var st store.Store
	if len(cfg.Servers) > 0 {
		mgr := store.NewManager(cfg.ServerURLs())
		defer mgr.Close()

		serverID = cfg.Servers[0].ID
		st, err = mgr.Get(ctx, serverID)
		if err != nil {
			return fmt.Errorf("error connecting to server %q: %w", serverID, err)
		}
	} else {
		log.Info().Msg("no servers configured, using seeded in-memory store")
		st = demoStore()
	}

	s := session.New(ctx, serverID, st, session.Options{
		ScanCount:          cfg.Scan.Count,
		HashPageSize:       cfg.Scan.HashPageSize,
		HashFilterPageSize: cfg.Scan.HashFilterPageSize,
	})
	defer s.Close()

	events := s.Subscribe()

	s.Refresh()
	if err := waitEvent(events, session.EventKeysLoaded); err != nil {
		return err
	}
	tree := s.Tree()
	fmt.Printf("server %s: %d keys, %d tree leaves\n", s.ServerID(), s.KeyCount(), keytree.CountLeaves(tree))
	printJSON("key tree", tree)

	s.SelectKey("user:1:profile")
	if err := waitEvent(events, session.EventValueUpdated); err != nil {
		return err
	}
	printJSON("user:1:profile", s.Value())

	s.SetQueryMode(session.QueryModePrefix)
	if err := waitEvent(events, session.EventKeysLoaded); err != nil {
		return err
	}
	s.Filter("user")
	if err := waitEvent(events, session.EventKeysLoaded); err != nil {
		return err
	}
	fmt.Printf("prefix \"user\": %d keys\n", s.KeyCount())

	return nil
}

func main() {
	if err := run(); err != nil {
		log.Error().Err(err).Msg("session run failed")
		os.Exit(1)
	}
}
