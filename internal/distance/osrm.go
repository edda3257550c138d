package distance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"trip-planner/internal/database"
	"trip-planner/internal/models"
)

// DistanceResult contains the result of a distance calculation
type DistanceResult struct {
	DistanceMeters float64
	DurationSecs   float64
}

// MatrixProvider returns the pairwise road table of a named node set
type MatrixProvider interface {
	Matrix(ctx context.Context, nodes map[string]models.Coordinates) (models.Matrix, error)
}

// ErrDistanceCalculationFailed is returned when the OSRM table API fails
type ErrDistanceCalculationFailed struct {
	Reason string
}

func (e *ErrDistanceCalculationFailed) Error() string {
	return fmt.Sprintf("distance calculation failed: %s", e.Reason)
}

// OSRMCalculator fetches distance tables from an OSRM server, backed by a persistent pair cache
type OSRMCalculator struct {
	baseURL    string
	httpClient *http.Client
	cache      database.DistanceCacheRepository
}

type osrmTableResponse struct {
	Code      string      `json:"code"`
	Distances [][]float64 `json:"distances"`
	Durations [][]float64 `json:"durations"`
}

// NewOSRMCalculator creates a new OSRM distance calculator with caching
func NewOSRMCalculator(baseURL string, cache database.DistanceCacheRepository) *OSRMCalculator {
	return &OSRMCalculator{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache: cache,
	}
}

// Matrix resolves the named nodes to a name-keyed table. Nodes sharing a
// location are queried once.
func (c *OSRMCalculator) Matrix(ctx context.Context, nodes map[string]models.Coordinates) (models.Matrix, error) {
	names := make([]string, 0, len(nodes))
	for name := range nodes {
		names = append(names, name)
	}
	sort.Strings(names)

	var points []models.Coordinates
	pointIdx := make(map[string]int, len(names))
	byLocation := make(map[models.Coordinates]int)
	for _, name := range names {
		loc := nodes[name]
		key := models.Coordinates{Lat: models.RoundCoordinate(loc.Lat), Lng: models.RoundCoordinate(loc.Lng)}
		idx, ok := byLocation[key]
		if !ok {
			idx = len(points)
			byLocation[key] = idx
			points = append(points, loc)
		}
		pointIdx[name] = idx
	}

	table, err := c.GetDistanceMatrix(ctx, points)
	if err != nil {
		return nil, err
	}

	out := make(models.Matrix, len(names))
	for _, from := range names {
		row := make(map[string]models.MatrixEntry, len(names))
		for _, to := range names {
			r := table[pointIdx[from]][pointIdx[to]]
			row[to] = models.MatrixEntry{Distance: r.DistanceMeters, Duration: r.DurationSecs}
		}
		out[from] = row
	}
	return out, nil
}

// maxOSRMCoordinates is the maximum number of coordinates OSRM public API accepts
const maxOSRMCoordinates = 80

// GetDistanceMatrix returns the full pairwise table for points, querying OSRM only for uncached pairs
func (c *OSRMCalculator) GetDistanceMatrix(ctx context.Context, points []models.Coordinates) ([][]DistanceResult, error) {
	n := len(points)
	if n == 0 {
		return [][]DistanceResult{}, nil
	}

	matrix := make([][]DistanceResult, n)
	for i := range matrix {
		matrix[i] = make([]DistanceResult, n)
	}

	missing := 0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}

			cached, err := c.cache.Get(ctx, points[i], points[j])
			if err != nil {
				return nil, err
			}
			if cached != nil {
				matrix[i][j] = DistanceResult{
					DistanceMeters: cached.DistanceMeters,
					DurationSecs:   cached.DurationSecs,
				}
			} else {
				missing++
			}
		}
	}

	if missing == 0 {
		log.Debugf("[OSRM] Distance matrix all cached: points=%d", n)
		return matrix, nil
	}

	log.Infof("[OSRM] Distance matrix request: points=%d cached=%d missing=%d", n, n*(n-1)-missing, missing)

	if n <= maxOSRMCoordinates {
		return c.fetchDistanceMatrixSingle(ctx, points, matrix)
	}

	log.Infof("[OSRM] Using batched requests: points=%d batches=%d", n, (n+maxOSRMCoordinates-1)/maxOSRMCoordinates)
	return c.fetchDistanceMatrixBatched(ctx, points, matrix)
}

// fetchDistanceMatrixSingle fetches distance matrix in a single OSRM request
func (c *OSRMCalculator) fetchDistanceMatrixSingle(ctx context.Context, points []models.Coordinates, matrix [][]DistanceResult) ([][]DistanceResult, error) {
	n := len(points)
	queryURL := fmt.Sprintf("%s/table/v1/driving/%s?annotations=distance,duration", c.baseURL, joinCoords(points))

	osrmResp, err := c.fetchTable(ctx, queryURL)
	if err != nil {
		log.WithField("points", n).Errorf("[ERROR] OSRM table request failed: %v", err)
		return nil, err
	}

	var cacheEntries []models.DistanceCacheEntry
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			matrix[i][j] = DistanceResult{
				DistanceMeters: osrmResp.Distances[i][j],
				DurationSecs:   osrmResp.Durations[i][j],
			}
			if osrmResp.Distances[i][j] > 0 {
				cacheEntries = append(cacheEntries, models.DistanceCacheEntry{
					Origin:         points[i],
					Destination:    points[j],
					DistanceMeters: osrmResp.Distances[i][j],
					DurationSecs:   osrmResp.Durations[i][j],
				})
			}
		}
	}

	if len(cacheEntries) > 0 {
		if err := c.cache.SetBatch(ctx, cacheEntries); err != nil {
			return nil, err
		}
	}

	return matrix, nil
}

// fetchDistanceMatrixBatched fetches distance matrix using multiple batched OSRM requests
func (c *OSRMCalculator) fetchDistanceMatrixBatched(ctx context.Context, points []models.Coordinates, matrix [][]DistanceResult) ([][]DistanceResult, error) {
	n := len(points)

	var batches [][]int
	for i := 0; i < n; i += maxOSRMCoordinates {
		end := i + maxOSRMCoordinates
		if end > n {
			end = n
		}
		batch := make([]int, end-i)
		for j := i; j < end; j++ {
			batch[j-i] = j
		}
		batches = append(batches, batch)
	}

	var allCacheEntries []models.DistanceCacheEntry
	requestCount := 0

	for bi, batchI := range batches {
		for bj, batchJ := range batches {
			// Local point list: sources first, then destinations not already present
			globalToLocal := make(map[int]int)
			var batchPoints []models.Coordinates
			for _, idx := range append(append([]int{}, batchI...), batchJ...) {
				if _, ok := globalToLocal[idx]; ok {
					continue
				}
				globalToLocal[idx] = len(batchPoints)
				batchPoints = append(batchPoints, points[idx])
			}

			var sources, destinations []string
			for _, idx := range batchI {
				sources = append(sources, fmt.Sprintf("%d", globalToLocal[idx]))
			}
			for _, idx := range batchJ {
				destinations = append(destinations, fmt.Sprintf("%d", globalToLocal[idx]))
			}

			queryURL := fmt.Sprintf("%s/table/v1/driving/%s?annotations=distance,duration&sources=%s&destinations=%s",
				c.baseURL, joinCoords(batchPoints), strings.Join(sources, ";"), strings.Join(destinations, ";"))

			osrmResp, err := c.fetchTable(ctx, queryURL)
			if err != nil {
				return nil, err
			}
			requestCount++

			for si, srcIdx := range batchI {
				for di, dstIdx := range batchJ {
					if srcIdx == dstIdx {
						continue
					}
					dist := osrmResp.Distances[si][di]
					dur := osrmResp.Durations[si][di]
					matrix[srcIdx][dstIdx] = DistanceResult{DistanceMeters: dist, DurationSecs: dur}
					if dist > 0 {
						allCacheEntries = append(allCacheEntries, models.DistanceCacheEntry{
							Origin:         points[srcIdx],
							Destination:    points[dstIdx],
							DistanceMeters: dist,
							DurationSecs:   dur,
						})
					}
				}
			}

			// Rate limit between batch requests
			if bi < len(batches)-1 || bj < len(batches)-1 {
				time.Sleep(100 * time.Millisecond)
			}
		}
	}

	log.Infof("[OSRM] Batched requests complete: requests=%d entries=%d", requestCount, len(allCacheEntries))

	if len(allCacheEntries) > 0 {
		if err := c.cache.SetBatch(ctx, allCacheEntries); err != nil {
			return nil, err
		}
	}

	return matrix, nil
}

func (c *OSRMCalculator) fetchTable(ctx context.Context, queryURL string) (*osrmTableResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		return nil, &ErrDistanceCalculationFailed{Reason: err.Error()}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ErrDistanceCalculationFailed{Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &ErrDistanceCalculationFailed{
			Reason: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(body)),
		}
	}

	var osrmResp osrmTableResponse
	if err := json.NewDecoder(resp.Body).Decode(&osrmResp); err != nil {
		return nil, &ErrDistanceCalculationFailed{Reason: err.Error()}
	}

	if osrmResp.Code != "Ok" {
		return nil, &ErrDistanceCalculationFailed{Reason: fmt.Sprintf("OSRM error: %s", osrmResp.Code)}
	}

	return &osrmResp, nil
}

func joinCoords(points []models.Coordinates) string {
	coords := make([]string, len(points))
	for i, p := range points {
		coords[i] = fmt.Sprintf("%.6f,%.6f", p.Lng, p.Lat)
	}
	return strings.Join(coords, ";")
}
