package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/paulmach/orb"

	"geotiles/internal/api"
	"geotiles/internal/geo"
	redisclient "geotiles/internal/redis"
	"geotiles/internal/ws"
)

func main() {
	// Load configuration from environment
	config := api.Config{
		EnableTurnstile:   getEnvBool("ENABLE_TURNSTILE", false),
		TurnstileSecret:   getEnv("TURNSTILE_SECRET", ""),
		TurnstileHostname: getEnv("TURNSTILE_HOSTNAME", ""),
		SpeedMaxKmh:       getEnvFloat("SPEED_MAX_KMH", 150.0),
		MarkerCooldownMs:  getEnvInt("MARKER_COOLDOWN_MS", 5000),
		RateLimit:         getEnvInt("RATE_LIMIT", 120),
		RateWindow:        time.Duration(getEnvInt("RATE_WINDOW_S", 60)) * time.Second,
		WSWriteBuffer:     getEnvInt("WS_WRITE_BUFFER", 65536),
		TrustProxyHeaders: getEnvBool("TRUST_PROXY_HEADERS", false),
	}

	bindAddr := getEnv("BIND_ADDR", ":8080")
	redisURL := getEnv("REDIS_URL", "redis://localhost:6379")
	tileSize := getEnvInt("TILE_SIZE", geo.DefaultTileSize)
	if tileSize <= 0 {
		log.Fatalf("TILE_SIZE must be positive, got %d", tileSize)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to Redis
	rdb, err := redisclient.NewClient(redisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()

	log.Println("Connected to Redis")

	// Create WebSocket hub
	hub := ws.NewHub()
	go hub.Run(ctx)

	log.Println("WebSocket hub started")

	proj := geo.NewMercator(uint(tileSize))

	mask, err := loadMask(proj, getEnv("GEOFENCE_BBOX", ""), uint(getEnvInt("GEOFENCE_LEVEL", 12)))
	if err != nil {
		log.Fatalf("Invalid GEOFENCE_BBOX: %v", err)
	}
	if mask != nil {
		b := mask.Bounds()
		log.Printf("Geofence at level %d: tiles %d,%d to %d,%d", mask.Level(), b.MinX, b.MinY, b.MaxX, b.MaxY)
	}

	handler := api.NewHandler(rdb, hub, proj, config, mask)

	// Limiter state is only useful for a few minutes
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				handler.Prune(10 * time.Minute)
			}
		}
	}()

	server := &http.Server{
		Addr:              bindAddr,
		Handler:           corsMiddleware(handler.Routes()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown: %v", err)
		}
	}()

	// Start server
	log.Printf("Starting server on %s (tile size %d)", bindAddr, tileSize)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed: %v", err)
	}
	log.Println("Server stopped")
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Allow requests from any origin in development
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		// Handle preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loadMask parses "south,west,north,east" into a geofence. An empty string
// disables the geofence.
func loadMask(proj geo.Projection, bbox string, level uint) (*geo.Mask, error) {
	if bbox == "" {
		return nil, nil
	}

	parts := strings.Split(bbox, ",")
	if len(parts) != 4 {
		return nil, errors.New("expected south,west,north,east")
	}

	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		v[i] = f
	}

	// Corners may be given in either order
	corners := orb.MultiPoint{{v[1], v[0]}, {v[3], v[2]}}
	bounds := geo.BoundsFromOrb(corners.Bound())
	level = min(level, geo.MaxLevelOfDetail)

	log.Printf("Geofence %v at level %d", bounds.Bound(), level)
	return geo.NewMaskFromGeoBounds(proj, bounds, level), nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
