package rbac

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Service resolves capability grants from the backing store.
type Service struct {
	pool *pgxpool.Pool
}

// NewService constructs a Service backed by the provided pool.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// EffectiveCapabilities returns deduplicated capability names for a user.
func (s *Service) EffectiveCapabilities(ctx context.Context, userID int64) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT c.name
		FROM user_roles ur
		JOIN role_capabilities rc ON rc.role_id = ur.role_id
		JOIN capabilities c ON c.id = rc.capability_id
		WHERE ur.user_id = $1
		ORDER BY c.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var caps []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		caps = append(caps, name)
	}
	return caps, rows.Err()
}

// HasCapability reports whether the user holds the named capability.
func (s *Service) HasCapability(ctx context.Context, userID int64, capability string) (bool, error) {
	capability = strings.TrimSpace(strings.ToLower(capability))
	if capability == "" {
		return false, nil
	}
	var granted bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM user_roles ur
			JOIN role_capabilities rc ON rc.role_id = ur.role_id
			JOIN capabilities c ON c.id = rc.capability_id
			WHERE ur.user_id = $1 AND LOWER(c.name) = $2
		)`, userID, capability).Scan(&granted)
	if err != nil {
		return false, err
	}
	return granted, nil
}

// EnsureCapability upserts a capability ensuring description is stored.
func (s *Service) EnsureCapability(ctx context.Context, name, description string) (Capability, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Capability{}, errors.New("rbac: capability name required")
	}
	var capa Capability
	err := s.pool.QueryRow(ctx, `
		INSERT INTO capabilities (name, description)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description
		RETURNING id, name, description`, name, strings.TrimSpace(description)).
		Scan(&capa.ID, &capa.Name, &capa.Description)
	if err != nil {
		return Capability{}, err
	}
	return capa, nil
}

// AssignRole assigns a role to the given user.
func (s *Service) AssignRole(ctx context.Context, userID, roleID int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, userID, roleID)
	return err
}
