package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/benvon/smart-autotrader/internal/models"
	"github.com/lib/pq"
)

// DefaultSearchLimit caps the vehicles returned by one search
const DefaultSearchLimit = 20

// VehicleRepository searches the vehicle catalog
type VehicleRepository struct {
	db    *DB
	limit int
}

// NewVehicleRepository creates a new vehicle repository
func NewVehicleRepository(db *DB, limit int) *VehicleRepository {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	return &VehicleRepository{db: db, limit: limit}
}

// SearchVehicles returns catalog vehicles matching criteria and none of the
// excluded values, cheapest first
func (r *VehicleRepository) SearchVehicles(ctx context.Context, criteria models.Criteria, excluded models.Rejections) ([]models.VehicleRef, error) {
	query, args := buildVehicleQuery(criteria, excluded, r.limit)

	var vehicles []models.VehicleRef
	if err := r.db.SelectContext(ctx, &vehicles, query, args...); err != nil {
		return nil, fmt.Errorf("failed to search vehicles: %w", err)
	}
	return vehicles, nil
}

// vehicleQuery accumulates WHERE conditions with numbered placeholders
type vehicleQuery struct {
	where []string
	args  []any
}

func (q *vehicleQuery) add(cond string, arg any) {
	q.args = append(q.args, arg)
	q.where = append(q.where, fmt.Sprintf(cond, len(q.args)))
}

func buildVehicleQuery(c models.Criteria, excluded models.Rejections, limit int) (string, []any) {
	q := &vehicleQuery{where: []string{"1=1"}}

	if c.MinPrice != nil {
		q.add("price >= $%d", *c.MinPrice)
	}
	if c.MaxPrice != nil {
		q.add("price <= $%d", *c.MaxPrice)
	}
	if c.MinYear != nil {
		q.add("year >= $%d", *c.MinYear)
	}
	if c.MaxYear != nil {
		q.add("year <= $%d", *c.MaxYear)
	}
	if c.MaxMileage != nil {
		q.add("mileage <= $%d", *c.MaxMileage)
	}
	if c.Transmission != nil {
		q.add("transmission = $%d", string(*c.Transmission))
	}
	if c.MinEngineSize != nil {
		q.add("engine_size >= $%d", *c.MinEngineSize)
	}
	if c.MaxEngineSize != nil {
		q.add("engine_size <= $%d", *c.MaxEngineSize)
	}
	if c.MinHorsepower != nil {
		q.add("horsepower >= $%d", *c.MinHorsepower)
	}
	if c.MaxHorsepower != nil {
		q.add("horsepower <= $%d", *c.MaxHorsepower)
	}
	if len(c.Makes) > 0 {
		q.add("lower(make) = ANY($%d)", pq.Array(lowered(c.Makes)))
	}
	if len(c.VehicleTypes) > 0 {
		q.add("vehicle_type = ANY($%d)", pq.Array(toStrings(c.VehicleTypes)))
	}
	if len(c.FuelTypes) > 0 {
		q.add("fuel_type = ANY($%d)", pq.Array(toStrings(c.FuelTypes)))
	}
	if len(c.Features) > 0 {
		q.add("features ?& $%d", pq.Array(c.Features))
	}

	if len(excluded.Makes) > 0 {
		q.add("lower(make) <> ALL($%d)", pq.Array(lowered(excluded.Makes)))
	}
	if len(excluded.VehicleTypes) > 0 {
		q.add("vehicle_type <> ALL($%d)", pq.Array(toStrings(excluded.VehicleTypes)))
	}
	if len(excluded.FuelTypes) > 0 {
		q.add("fuel_type <> ALL($%d)", pq.Array(toStrings(excluded.FuelTypes)))
	}
	if len(excluded.Features) > 0 {
		q.add("NOT (features ?| $%d)", pq.Array(excluded.Features))
	}
	if excluded.Transmission != nil && c.Transmission == nil {
		q.add("transmission <> $%d", string(*excluded.Transmission))
	}

	q.args = append(q.args, limit)
	query := fmt.Sprintf(`
		SELECT id, make, model, year, price, mileage, fuel_type, transmission, vehicle_type, engine_size, horsepower
		FROM vehicles
		WHERE %s
		ORDER BY price ASC, id ASC
		LIMIT $%d
	`, strings.Join(q.where, " AND "), len(q.args))
	return query, q.args
}

func lowered(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(v)
	}
	return out
}

func toStrings[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}
