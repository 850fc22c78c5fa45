package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"

	"geotiles/internal/geo"
)

const (
	keySeq  = "markers:seq"
	keyGeo  = "markers:geo"
	keyData = "markers:data"
)

// ErrMarkerNotFound is returned by GetMarker for an unknown id
var ErrMarkerNotFound = errors.New("marker not found")

// Below this level a tile spans too much of the globe for a box search, so
// the whole marker set is scanned instead
const scanBelowLevel = 3

const addMarkerScript = `
-- KEYS[1]=k_seq, KEYS[2]=k_geo, KEYS[3]=k_data
-- ARGV[1]=lon, ARGV[2]=lat, ARGV[3]=label, ARGV[4]=nowTs

-- coordinates are spliced in as sent so no precision is lost
local now = tonumber(ARGV[4])

local seq = redis.call('INCR', KEYS[1])
local id = tostring(seq)

redis.call('GEOADD', KEYS[2], ARGV[1], ARGV[2], id)
redis.call('HSET', KEYS[3], id,
  '{"id":"' .. id .. '","label":' .. cjson.encode(ARGV[3]) ..
  ',"lat":' .. ARGV[2] .. ',"lon":' .. ARGV[1] ..
  ',"seq":' .. id .. ',"ts":' .. ARGV[4] .. '}')

return { seq, now }
`

// Marker is a labelled GPS position
type Marker struct {
	ID        string  `json:"id"`
	Label     string  `json:"label"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	Seq       uint64  `json:"seq"`
	Ts        int64   `json:"ts"`
}

// Position returns the marker's position
func (m Marker) Position() geo.GeoPoint {
	return geo.GeoPoint{Latitude: m.Latitude, Longitude: m.Longitude}
}

// Client wraps a Redis client with marker-specific methods
type Client struct {
	client          *redis.Client
	addMarkerScript *redis.Script
}

// NewClient creates a new Redis client
func NewClient(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	// Test connection
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return newClient(client), nil
}

func newClient(client *redis.Client) *Client {
	return &Client{
		client:          client,
		addMarkerScript: redis.NewScript(addMarkerScript),
	}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.client.Close()
}

// AddMarker stores a marker and returns its id, sequence number and timestamp.
// The position is clamped to the mercator domain, which is also the range
// Redis accepts for GEOADD.
func (c *Client) AddMarker(ctx context.Context, label string, position geo.GeoPoint) (Marker, error) {
	lat := min(max(position.Latitude, geo.MinLatitude), geo.MaxLatitude)
	lon := min(max(position.Longitude, geo.MinLongitude), geo.MaxLongitude)

	result, err := c.addMarkerScript.Run(ctx, c.client,
		[]string{keySeq, keyGeo, keyData}, lon, lat, label, time.Now().Unix()).Result()
	if err != nil {
		return Marker{}, fmt.Errorf("add marker: %w", err)
	}

	arr, ok := result.([]interface{})
	if !ok || len(arr) != 2 {
		return Marker{}, fmt.Errorf("add marker: unexpected script result %v", result)
	}
	seq := uint64(arr[0].(int64))

	return Marker{
		ID:        fmt.Sprintf("%d", seq),
		Label:     label,
		Latitude:  lat,
		Longitude: lon,
		Seq:       seq,
		Ts:        arr[1].(int64),
	}, nil
}

// GetMarker loads a single marker. Returns ErrMarkerNotFound if it does not
// exist.
func (c *Client) GetMarker(ctx context.Context, id string) (Marker, error) {
	raw, err := c.client.HGet(ctx, keyData, id).Result()
	if errors.Is(err, redis.Nil) {
		return Marker{}, fmt.Errorf("%w: %s", ErrMarkerNotFound, id)
	}
	if err != nil {
		return Marker{}, err
	}

	var m Marker
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return Marker{}, fmt.Errorf("decode marker %s: %w", id, err)
	}
	return m, nil
}

// MarkersInTile returns the markers whose position projects into tile at
// level, ordered by sequence number
func (c *Client) MarkersInTile(ctx context.Context, proj geo.Projection, tile geo.TileIndex, level uint) ([]Marker, error) {
	var candidates []Marker
	var err error
	if level < scanBelowLevel {
		candidates, err = c.allMarkers(ctx)
	} else {
		candidates, err = c.markersInBox(ctx, geo.TileBounds(proj, tile, level))
	}
	if err != nil {
		return nil, err
	}

	markers := make([]Marker, 0, len(candidates))
	for _, m := range candidates {
		pixel := proj.LatLongToPixelXY(m.Latitude, m.Longitude, level)
		if proj.PixelXYToTileXYAtLevel(pixel, level) == tile {
			markers = append(markers, m)
		}
	}
	sortBySeq(markers)
	return markers, nil
}

// markersInBox runs a GEOSEARCH over a box that covers b. The box is sized
// at the latitude in b closest to the equator, where b is widest.
func (c *Client) markersInBox(ctx context.Context, b geo.GeoBounds) ([]Marker, error) {
	center := b.Center()
	widest := min(max(0, b.SouthWest.Latitude), b.NorthEast.Latitude)

	width := geo.Distance(
		geo.GeoPoint{Latitude: widest, Longitude: b.SouthWest.Longitude},
		geo.GeoPoint{Latitude: widest, Longitude: b.NorthEast.Longitude},
	)
	height := geo.Distance(
		geo.GeoPoint{Latitude: b.SouthWest.Latitude, Longitude: center.Longitude},
		geo.GeoPoint{Latitude: b.NorthEast.Latitude, Longitude: center.Longitude},
	)

	locations, err := c.client.GeoSearchLocation(ctx, keyGeo, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude: center.Longitude,
			Latitude:  center.Latitude,
			BoxWidth:  width*1.1 + 1,
			BoxHeight: height*1.1 + 1,
			BoxUnit:   "m",
		},
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("search markers: %w", err)
	}
	if len(locations) == 0 {
		return nil, nil
	}

	ids := make([]string, len(locations))
	for i, loc := range locations {
		ids[i] = loc.Name
	}
	return c.loadMarkers(ctx, ids)
}

func (c *Client) loadMarkers(ctx context.Context, ids []string) ([]Marker, error) {
	values, err := c.client.HMGet(ctx, keyData, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("load markers: %w", err)
	}

	markers := make([]Marker, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue // Removed between search and load
		}
		var m Marker
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, fmt.Errorf("decode marker %s: %w", ids[i], err)
		}
		markers = append(markers, m)
	}
	return markers, nil
}

func (c *Client) allMarkers(ctx context.Context) ([]Marker, error) {
	all, err := c.client.HGetAll(ctx, keyData).Result()
	if err != nil {
		return nil, fmt.Errorf("scan markers: %w", err)
	}

	markers := make([]Marker, 0, len(all))
	for id, raw := range all {
		var m Marker
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, fmt.Errorf("decode marker %s: %w", id, err)
		}
		markers = append(markers, m)
	}
	return markers, nil
}

// MarkerCount returns the number of stored markers
func (c *Client) MarkerCount(ctx context.Context) (int64, error) {
	return c.client.HLen(ctx, keyData).Result()
}

// SetCooldown sets a cooldown for an IP address
func (c *Client) SetCooldown(ctx context.Context, ip string, duration time.Duration) error {
	key := fmt.Sprintf("cool:%s", ip)
	return c.client.Set(ctx, key, time.Now().Unix(), duration).Err()
}

// CheckCooldown checks if an IP address is in cooldown
func (c *Client) CheckCooldown(ctx context.Context, ip string) (bool, error) {
	key := fmt.Sprintf("cool:%s", ip)
	exists, err := c.client.Exists(ctx, key).Result()
	return exists > 0, err
}

// FlushDB flushes the database (for testing only)
func (c *Client) FlushDB(ctx context.Context) error {
	return c.client.FlushDB(ctx).Err()
}

// Ping checks the Redis connection
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func sortBySeq(markers []Marker) {
	sort.Slice(markers, func(i, j int) bool { return markers[i].Seq < markers[j].Seq })
}
