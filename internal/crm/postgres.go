package crm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresStore implements Store over the CRM's relational schema.
type PostgresStore struct {
	db *sql.DB
}

// PostgresConfig holds connection settings for the CRM database.
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`

	MaxConnections int `mapstructure:"max-connections"`
	MaxIdle        int `mapstructure:"max-idle"`
}

// DSN returns the PostgreSQL connection string.
func (c PostgresConfig) DSN() string {
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, sslmode,
	)
}

// NewPostgresStore opens a connection pool against the CRM database.
func NewPostgresStore(cfg PostgresConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
	}
	if cfg.MaxIdle > 0 {
		db.SetMaxIdleConns(cfg.MaxIdle)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreWithDB wraps an existing connection, used by tests.
func NewPostgresStoreWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Ping verifies the connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying pool.
func (s *PostgresStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

const clientColumns = `id, name, intent, budget_min, budget_max,
	bedrooms_min, bedrooms_max, property_type, preferred_locations,
	desired_amenities, communication_notes`

func (s *PostgresStore) Client(ctx context.Context, orgID, id string) (*Client, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE organization_id = $1 AND id = $2`,
		orgID, id,
	)

	client, err := scanClient(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("client %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("query client %s: %w", id, err)
	}

	comments, err := s.clientComments(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	client.Comments = comments

	return client, nil
}

func (s *PostgresStore) ClientsByOrganization(ctx context.Context, orgID string) ([]*Client, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE organization_id = $1 ORDER BY id`,
		orgID,
	)
	if err != nil {
		return nil, fmt.Errorf("query clients: %w", err)
	}
	defer rows.Close()

	var clients []*Client
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		clients = append(clients, client)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clients: %w", err)
	}

	for _, client := range clients {
		comments, err := s.clientComments(ctx, orgID, client.ID)
		if err != nil {
			return nil, err
		}
		client.Comments = comments
	}

	return clients, nil
}

func (s *PostgresStore) clientComments(ctx context.Context, orgID, clientID string) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT body, created_at FROM client_comments
		 WHERE organization_id = $1 AND client_id = $2
		 ORDER BY created_at DESC`,
		orgID, clientID,
	)
	if err != nil {
		return nil, fmt.Errorf("query comments for client %s: %w", clientID, err)
	}
	defer rows.Close()

	var comments []Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.Body, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}

	return comments, rows.Err()
}

const propertyColumns = `id, type, transaction_type, price, city, district,
	bedrooms, bathrooms, size_sqm, amenities, condition, description`

func (s *PostgresStore) Property(ctx context.Context, orgID, id string) (*Property, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+propertyColumns+` FROM properties WHERE organization_id = $1 AND id = $2`,
		orgID, id,
	)

	property, err := scanProperty(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("property %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("query property %s: %w", id, err)
	}

	return property, nil
}

func (s *PostgresStore) PropertiesByOrganization(ctx context.Context, orgID string) ([]*Property, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+propertyColumns+` FROM properties WHERE organization_id = $1 ORDER BY id`,
		orgID,
	)
	if err != nil {
		return nil, fmt.Errorf("query properties: %w", err)
	}
	defer rows.Close()

	var properties []*Property
	for rows.Next() {
		property, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("scan property: %w", err)
		}
		properties = append(properties, property)
	}

	return properties, rows.Err()
}

func (s *PostgresStore) OrganizationAPIKey(ctx context.Context, orgID string) (string, error) {
	var key sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT llm_api_key FROM organizations WHERE id = $1`,
		orgID,
	).Scan(&key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("organization %s: %w", orgID, ErrNotFound)
		}
		return "", fmt.Errorf("query organization key: %w", err)
	}

	return key.String, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanClient(row scanner) (*Client, error) {
	var (
		client                   Client
		intent, propertyType     sql.NullString
		notes                    sql.NullString
		budgetMin, budgetMax     sql.NullFloat64
		bedroomsMin, bedroomsMax sql.NullInt64
		locations, amenities     pq.StringArray
	)

	err := row.Scan(
		&client.ID, &client.Name, &intent, &budgetMin, &budgetMax,
		&bedroomsMin, &bedroomsMax, &propertyType, &locations,
		&amenities, &notes,
	)
	if err != nil {
		return nil, err
	}

	client.Intent = intent.String
	client.PropertyType = propertyType.String
	client.Notes = notes.String
	client.BudgetMin = nullFloat(budgetMin)
	client.BudgetMax = nullFloat(budgetMax)
	client.BedroomsMin = nullInt(bedroomsMin)
	client.BedroomsMax = nullInt(bedroomsMax)
	client.Locations = locations
	client.Amenities = amenities

	return &client, nil
}

func scanProperty(row scanner) (*Property, error) {
	var (
		property            Property
		transaction         sql.NullString
		city, district      sql.NullString
		condition, desc     sql.NullString
		price, size         sql.NullFloat64
		bedrooms, bathrooms sql.NullInt64
		amenities           pq.StringArray
	)

	err := row.Scan(
		&property.ID, &property.Type, &transaction, &price, &city,
		&district, &bedrooms, &bathrooms, &size, &amenities,
		&condition, &desc,
	)
	if err != nil {
		return nil, err
	}

	property.TransactionType = transaction.String
	property.City = city.String
	property.District = district.String
	property.Condition = condition.String
	property.Description = desc.String
	property.Price = nullFloat(price)
	property.SizeSQM = nullFloat(size)
	property.Bedrooms = nullInt(bedrooms)
	property.Bathrooms = nullInt(bathrooms)
	property.Amenities = amenities

	return &property, nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
