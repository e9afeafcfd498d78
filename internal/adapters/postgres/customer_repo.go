package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/fieldgeo/internal/core/domain"
)

// CustomerRepo implements ports.CustomerRepository over the CRM's customers
// and interactions tables. It only reads.
type CustomerRepo struct {
	db *DB
}

// NewCustomerRepo creates a new CustomerRepo.
func NewCustomerRepo(db *DB) *CustomerRepo {
	return &CustomerRepo{db: db}
}

const customerColumns = `id, name, COALESCE(company, ''), lat, lng, COALESCE(stage, 'New'), created_at`

// ListCustomers returns every customer ordered by id.
func (r *CustomerRepo) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query customers: %w", err)
	}
	return collectCustomers(rows)
}

// GetByIDs returns the customers among ids that exist.
func (r *CustomerRepo) GetByIDs(ctx context.Context, ids []int64) ([]domain.Customer, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.Pool.Query(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("query customers by id: %w", err)
	}
	return collectCustomers(rows)
}

func collectCustomers(rows pgx.Rows) ([]domain.Customer, error) {
	defer rows.Close()

	var customers []domain.Customer
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Company, &c.Lat, &c.Lng, &c.Stage, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		c.CreatedAt = c.CreatedAt.UTC()
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

// ListInteractions returns all interactions, or those of one customer.
func (r *CustomerRepo) ListInteractions(ctx context.Context, customerID *int64) ([]domain.Interaction, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if customerID != nil {
		rows, err = r.db.Pool.Query(ctx, `
			SELECT id, customer_id, timestamp FROM interactions
			WHERE customer_id = $1 ORDER BY timestamp DESC
		`, *customerID)
	} else {
		rows, err = r.db.Pool.Query(ctx, `SELECT id, customer_id, timestamp FROM interactions`)
	}
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer rows.Close()

	var interactions []domain.Interaction
	for rows.Next() {
		var i domain.Interaction
		if err := rows.Scan(&i.ID, &i.CustomerID, &i.Timestamp); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		i.Timestamp = i.Timestamp.UTC()
		interactions = append(interactions, i)
	}
	return interactions, rows.Err()
}
