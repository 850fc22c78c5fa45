package api

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"geotiles/internal/geo"
	"geotiles/internal/viewport"
)

const (
	defaultDpi = 96

	// Viewports larger than this are clamped so a request cannot ask for an
	// unbounded tile list.
	maxViewportPixels = 8192
)

// ProjectResponse is the pixel, tile and quadkey holding a position
type ProjectResponse struct {
	Pixel   geo.PixelPoint `json:"pixel"`
	Tile    geo.TileIndex  `json:"tile"`
	QuadKey string         `json:"quadkey"`
	Level   uint           `json:"level"`
}

// ResolutionResponse describes the raster at a latitude and level
type ResolutionResponse struct {
	GroundResolution float64 `json:"groundResolution"`
	MapScale         float64 `json:"mapScale"`
	MapSize          uint64  `json:"mapSize"`
}

// ViewportResponse lists the tiles covering a viewport, after any pan or zoom
type ViewportResponse struct {
	Center geo.GeoPoint          `json:"center"`
	Level  uint                  `json:"level"`
	Tiles  []viewport.Placement `json:"tiles"`
}

// QuadKeyResponse is a decoded quadkey
type QuadKeyResponse struct {
	X     int64 `json:"x"`
	Y     int64 `json:"y"`
	Level uint  `json:"level"`
}

// GetProject handles GET /project?lat=&lon=&level=
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	lat, err := queryFloat(r, "lat")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	lon, err := queryFloat(r, "lon")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	level, err := queryLevel(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	pixel := h.proj.LatLongToPixelXY(lat, lon, level)
	tile := h.proj.PixelXYToTileXYAtLevel(pixel, level)

	writeJSON(w, ProjectResponse{
		Pixel:   pixel,
		Tile:    tile,
		QuadKey: geo.TileXYToQuadKey(tile, level),
		Level:   level,
	})
}

// GetUnproject handles GET /unproject?x=&y=&level=
func (h *Handler) GetUnproject(w http.ResponseWriter, r *http.Request) {
	x, err := queryFloat(r, "x")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	y, err := queryFloat(r, "y")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	level, err := queryLevel(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Keep the pixel on the map so the inverse stays finite
	edge := float64(h.proj.MapSize(level))
	pixel := geo.PixelPoint{X: min(max(x, 0), edge), Y: min(max(y, 0), edge)}

	writeJSON(w, h.proj.PixelXYToLatLong(pixel, level))
}

// GetResolution handles GET /resolution?lat=&level=&dpi=
func (h *Handler) GetResolution(w http.ResponseWriter, r *http.Request) {
	lat, err := queryFloat(r, "lat")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	level, err := queryLevel(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	dpi := int64(defaultDpi)
	if r.URL.Query().Has("dpi") {
		dpi, err = queryInt(r, "dpi")
		if err != nil || dpi <= 0 {
			http.Error(w, "invalid dpi parameter", http.StatusBadRequest)
			return
		}
	}

	writeJSON(w, ResolutionResponse{
		GroundResolution: h.proj.GroundResolution(lat, level),
		MapScale:         h.proj.MapScale(lat, level, int(dpi)),
		MapSize:          h.proj.MapSize(level),
	})
}

// GetViewport handles GET /viewport?lat=&lon=&level=&w=&h=
// Optional dx=&dy= pans by screen pixels, then zoom=[&sx=&sy=] changes level
// keeping the position under screen point sx,sy (default the centre) fixed.
func (h *Handler) GetViewport(w http.ResponseWriter, r *http.Request) {
	lat, err := queryFloat(r, "lat")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	lon, err := queryFloat(r, "lon")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	level, err := queryLevel(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	width, err := queryInt(r, "w")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	height, err := queryInt(r, "h")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	vp := viewport.Viewport{
		Center: geo.GeoPoint{Latitude: lat, Longitude: lon},
		Level:  level,
		Width:  int(min(width, maxViewportPixels)),
		Height: int(min(height, maxViewportPixels)),
	}

	q := r.URL.Query()
	if q.Has("dx") || q.Has("dy") {
		dx, err := queryFloat(r, "dx")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		dy, err := queryFloat(r, "dy")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		vp = viewport.Pan(h.proj, vp, dx, dy)
	}

	if q.Has("zoom") {
		zoom, err := queryInt(r, "zoom")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		sx, sy := float64(vp.Width)/2, float64(vp.Height)/2
		if q.Has("sx") || q.Has("sy") {
			if sx, err = queryFloat(r, "sx"); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if sy, err = queryFloat(r, "sy"); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}
		vp = viewport.ZoomAround(h.proj, vp, sx, sy, uint(max(zoom, 0)))
	}

	tiles := viewport.VisibleTiles(h.proj, vp)
	if tiles == nil {
		tiles = []viewport.Placement{}
	}

	writeJSON(w, ViewportResponse{Center: vp.Center, Level: vp.Level, Tiles: tiles})
}

// GetQuadKey handles GET /tile/quadkey?qk=
func (h *Handler) GetQuadKey(w http.ResponseWriter, r *http.Request) {
	tile, level, err := geo.QuadKeyToTileXY(r.URL.Query().Get("qk"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, QuadKeyResponse{
		X:     int64(tile.X),
		Y:     int64(tile.Y),
		Level: level,
	})
}

var errMissing = errors.New("missing parameter")

func queryFloat(r *http.Request, name string) (float64, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, fmt.Errorf("%w: %s", errMissing, name)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid %s parameter", name)
	}
	return f, nil
}

func queryInt(r *http.Request, name string) (int64, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, fmt.Errorf("%w: %s", errMissing, name)
	}
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s parameter", name)
	}
	return i, nil
}

// queryLevel reads the level parameter clamped into [0, MaxLevelOfDetail]
func queryLevel(r *http.Request) (uint, error) {
	level, err := queryInt(r, "level")
	if err != nil {
		return 0, err
	}
	return uint(min(max(level, 0), geo.MaxLevelOfDetail)), nil
}

// tileParams reads level, x and y, clamping the tile onto the map. It writes
// a 400 and returns false when a parameter is malformed.
func tileParams(w http.ResponseWriter, r *http.Request) (uint, geo.TileIndex, bool) {
	level, err := queryLevel(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return 0, geo.TileIndex{}, false
	}
	x, err := queryInt(r, "x")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return 0, geo.TileIndex{}, false
	}
	y, err := queryInt(r, "y")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return 0, geo.TileIndex{}, false
	}

	last := int64(1)<<level - 1
	return level, geo.TileIndex{
		X: float64(min(max(x, 0), last)),
		Y: float64(min(max(y, 0), last)),
	}, true
}
