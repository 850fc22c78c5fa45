package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"

	"geotiles/internal/geo"
	"geotiles/internal/rate"
	redisclient "geotiles/internal/redis"
	"geotiles/internal/turnstile"
	"geotiles/internal/ws"
)

const maxLabelLen = 64

// MarkerStore persists markers. *redisclient.Client implements it.
type MarkerStore interface {
	AddMarker(ctx context.Context, label string, position geo.GeoPoint) (redisclient.Marker, error)
	GetMarker(ctx context.Context, id string) (redisclient.Marker, error)
	MarkersInTile(ctx context.Context, proj geo.Projection, tile geo.TileIndex, level uint) ([]redisclient.Marker, error)
	SetCooldown(ctx context.Context, ip string, duration time.Duration) error
	CheckCooldown(ctx context.Context, ip string) (bool, error)
	Ping(ctx context.Context) error
}

// Verifier checks human verification tokens. *turnstile.Client implements it.
type Verifier interface {
	Verify(ctx context.Context, token, remoteIP string) (*turnstile.Response, error)
}

// MarkerRequest represents a marker submission
type MarkerRequest struct {
	Lat            float64 `json:"lat"`
	Lon            float64 `json:"lon"`
	Label          string  `json:"label"`
	TurnstileToken string  `json:"turnstileToken"`
}

// MarkerResponse represents a marker submission result
type MarkerResponse struct {
	Ok  bool   `json:"ok"`
	ID  string `json:"id"`
	Seq uint64 `json:"seq"`
	Ts  int64  `json:"ts"`
}

// MarkerView is a stored marker placed on the raster of the requested level
type MarkerView struct {
	ID    string  `json:"id"`
	Label string  `json:"label"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	PX    float64 `json:"px"`
	PY    float64 `json:"py"`
}

// Config holds the server configuration
type Config struct {
	EnableTurnstile   bool
	TurnstileSecret   string
	TurnstileHostname string
	SpeedMaxKmh       float64
	MarkerCooldownMs  int
	RateLimit         int
	RateWindow        time.Duration
	WSWriteBuffer     int
	// TrustProxyHeaders takes the client address from CF-Connecting-IP or
	// X-Forwarded-For. Only enable it behind a proxy that overwrites them.
	TrustProxyHeaders bool
}

// Handler handles HTTP requests
type Handler struct {
	store        MarkerStore
	hub          *ws.Hub
	proj         geo.Projection
	config       Config
	verifier     Verifier
	speedLimiter *rate.SpeedLimiter
	rateLimiter  *rate.RateLimiter
	mask         *geo.Mask
	upgrader     websocket.Upgrader
}

// NewHandler creates a new API handler. mask may be nil to accept markers
// anywhere.
func NewHandler(store MarkerStore, hub *ws.Hub, proj geo.Projection, config Config, mask *geo.Mask) *Handler {
	h := &Handler{
		store:        store,
		hub:          hub,
		proj:         proj,
		config:       config,
		mask:         mask,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for now
			},
			WriteBufferSize: config.WSWriteBuffer,
		},
	}

	if config.SpeedMaxKmh > 0 {
		h.speedLimiter = rate.NewSpeedLimiter(config.SpeedMaxKmh)
	}

	if config.RateLimit > 0 {
		h.rateLimiter = rate.NewRateLimiter(config.RateLimit, config.RateWindow)
	}

	if config.EnableTurnstile {
		h.verifier = turnstile.NewClient(config.TurnstileSecret, config.TurnstileHostname)
	}

	return h
}

// Routes returns a mux serving every endpoint
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /project", h.limited(h.GetProject))
	mux.HandleFunc("GET /unproject", h.limited(h.GetUnproject))
	mux.HandleFunc("GET /resolution", h.limited(h.GetResolution))
	mux.HandleFunc("GET /viewport", h.limited(h.GetViewport))
	mux.HandleFunc("GET /tile/quadkey", h.limited(h.GetQuadKey))
	mux.HandleFunc("GET /markers", h.limited(h.GetMarkers))
	mux.HandleFunc("GET /markers/{id}", h.limited(h.GetMarker))
	mux.HandleFunc("POST /markers", h.PostMarker)
	mux.HandleFunc("GET /sub", h.HandleWebSocket)
	mux.HandleFunc("GET /healthz", h.Healthz)
	return mux
}

// Prune drops limiter state older than maxAge
func (h *Handler) Prune(maxAge time.Duration) {
	if h.rateLimiter != nil {
		h.rateLimiter.Prune()
	}
	if h.speedLimiter != nil {
		h.speedLimiter.Forget(maxAge)
	}
}

func (h *Handler) limited(next http.HandlerFunc) http.HandlerFunc {
	if h.rateLimiter == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.rateLimiter.Allow(getIP(r, h.config.TrustProxyHeaders)) {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

// PostMarker handles POST /markers
func (h *Handler) PostMarker(w http.ResponseWriter, r *http.Request) {
	var req MarkerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	req.Label = strings.TrimSpace(req.Label)
	if req.Label == "" || utf8.RuneCountInString(req.Label) > maxLabelLen || !utf8.ValidString(req.Label) {
		http.Error(w, "invalid label", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	ip := getIP(r, h.config.TrustProxyHeaders)

	// Verify Turnstile if enabled
	if h.verifier != nil {
		if req.TurnstileToken == "" {
			http.Error(w, "turnstile", http.StatusUnauthorized)
			return
		}

		resp, err := h.verifier.Verify(ctx, req.TurnstileToken, ip)
		if err != nil || !resp.Success {
			http.Error(w, "turnstile", http.StatusUnauthorized)
			return
		}
	}

	cooldown := time.Duration(h.config.MarkerCooldownMs) * time.Millisecond
	if cooldown > 0 {
		active, err := h.store.CheckCooldown(ctx, ip)
		if err != nil {
			log.Printf("api: cooldown check for %s: %v", ip, err)
			http.Error(w, "redis", http.StatusInternalServerError)
			return
		}
		if active {
			http.Error(w, "cooldown", http.StatusTooManyRequests)
			return
		}
	}

	if h.mask != nil && !h.mask.Allows(h.proj, req.Lat, req.Lon) {
		http.Error(w, "outside mask", http.StatusForbidden)
		return
	}

	if h.speedLimiter != nil && !h.speedLimiter.CheckSpeed(ip, geo.GeoPoint{Latitude: req.Lat, Longitude: req.Lon}) {
		http.Error(w, "speed limit exceeded", http.StatusForbidden)
		return
	}

	marker, err := h.store.AddMarker(ctx, req.Label, geo.GeoPoint{Latitude: req.Lat, Longitude: req.Lon})
	if err != nil {
		log.Printf("api: add marker: %v", err)
		http.Error(w, "redis", http.StatusInternalServerError)
		return
	}

	if cooldown > 0 {
		if err := h.store.SetCooldown(ctx, ip, cooldown); err != nil {
			log.Printf("api: set cooldown for %s: %v", ip, err)
		}
	}

	h.publish(marker)

	writeJSON(w, MarkerResponse{
		Ok:  true,
		ID:  marker.ID,
		Seq: marker.Seq,
		Ts:  marker.Ts,
	})
}

// publish announces a marker to the room of the tile holding it at every level
func (h *Handler) publish(m redisclient.Marker) {
	for level := uint(0); level <= geo.MaxLevelOfDetail; level++ {
		pixel := h.proj.LatLongToPixelXY(m.Latitude, m.Longitude, level)
		tile := h.proj.PixelXYToTileXYAtLevel(pixel, level)
		x, y := int64(tile.X), int64(tile.Y)
		if !h.hub.HasRoom(level, x, y) {
			continue
		}

		h.hub.Publish(level, x, y, ws.MarkerEvent{
			ID:     m.ID,
			Label:  m.Label,
			Lat:    m.Latitude,
			Lon:    m.Longitude,
			PixelX: pixel.X,
			PixelY: pixel.Y,
			Seq:    m.Seq,
			Ts:     m.Ts,
		})
	}
}

// GetMarkers handles GET /markers?level=&x=&y=
func (h *Handler) GetMarkers(w http.ResponseWriter, r *http.Request) {
	level, tile, ok := tileParams(w, r)
	if !ok {
		return
	}

	markers, err := h.store.MarkersInTile(r.Context(), h.proj, tile, level)
	if err != nil {
		log.Printf("api: markers in %d/%v/%v: %v", level, tile.X, tile.Y, err)
		http.Error(w, "redis", http.StatusInternalServerError)
		return
	}

	views := make([]MarkerView, 0, len(markers))
	for _, m := range markers {
		pixel := h.proj.LatLongToPixelXY(m.Latitude, m.Longitude, level)
		views = append(views, MarkerView{
			ID:    m.ID,
			Label: m.Label,
			Lat:   m.Latitude,
			Lon:   m.Longitude,
			PX:    pixel.X,
			PY:    pixel.Y,
		})
	}

	w.Header().Set("Cache-Control", "public, max-age=2, stale-while-revalidate=8")
	writeJSON(w, views)
}

// GetMarker handles GET /markers/{id}
func (h *Handler) GetMarker(w http.ResponseWriter, r *http.Request) {
	m, err := h.store.GetMarker(r.Context(), r.PathValue("id"))
	if errors.Is(err, redisclient.ErrMarkerNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("api: get marker: %v", err)
		http.Error(w, "redis", http.StatusInternalServerError)
		return
	}

	writeJSON(w, m)
}

// HandleWebSocket handles WebSocket connections for /sub?level=&x=&y=
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	level, tile, ok := tileParams(w, r)
	if !ok {
		return
	}

	// Upgrade connection
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	conn := h.hub.RegisterConn(ws, level, int64(tile.X), int64(tile.Y))

	go conn.WritePump()
	go conn.ReadPump()
}

// Healthz handles GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		http.Error(w, "Redis unhealthy", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: encode response: %v", err)
	}
}

// getIP returns the client address. Proxy headers are client-controlled
// unless a trusted proxy sets them, so they are ignored without trustProxy.
func getIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		// Check for Cloudflare headers
		if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
			return ip
		}

		// X-Forwarded-For may hold a chain; the client is first
		if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
			first, _, _ := strings.Cut(ip, ",")
			return strings.TrimSpace(first)
		}
	}

	// Fall back to RemoteAddr without the port
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
