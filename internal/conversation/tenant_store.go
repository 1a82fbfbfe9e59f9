package conversation

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// PostgresTenantStore loads tenant profiles from the property management
// tables.
type PostgresTenantStore struct {
	db *sql.DB
}

func NewPostgresTenantStore(db *sql.DB) *PostgresTenantStore {
	return &PostgresTenantStore{db: db}
}

func (s *PostgresTenantStore) GetProfile(ctx context.Context, tenantID string) (*TenantProfile, error) {
	profile := &TenantProfile{ID: tenantID}

	err := s.db.QueryRowContext(ctx, `
		SELECT name, business_hours_start, business_hours_end, request_items
		FROM tenants WHERE id = $1`, tenantID).
		Scan(&profile.Name, &profile.BusinessHoursStart, &profile.BusinessHoursEnd, pq.Array(&profile.RequestItems))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("conversation: unknown tenant %s", tenantID)
	}
	if err != nil {
		return nil, fmt.Errorf("conversation: load tenant: %w", err)
	}

	if profile.Services, err = s.loadServices(ctx, tenantID); err != nil {
		return nil, err
	}
	if profile.MenuItems, err = s.loadMenuItems(ctx, tenantID); err != nil {
		return nil, err
	}
	if profile.ConfigSources, err = s.loadConfigSources(ctx, tenantID); err != nil {
		return nil, err
	}
	return profile, nil
}

func (s *PostgresTenantStore) loadServices(ctx context.Context, tenantID string) ([]Service, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, category, COALESCE(description, ''), COALESCE(price, 0), available
		FROM tenant_services WHERE tenant_id = $1 ORDER BY name`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("conversation: load services: %w", err)
	}
	defer rows.Close()

	var services []Service
	for rows.Next() {
		var svc Service
		if err := rows.Scan(&svc.Name, &svc.Category, &svc.Description, &svc.Price, &svc.Available); err != nil {
			return nil, fmt.Errorf("conversation: scan service: %w", err)
		}
		services = append(services, svc)
	}
	return services, rows.Err()
}

func (s *PostgresTenantStore) loadMenuItems(ctx context.Context, tenantID string) ([]MenuItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, category, COALESCE(price, 0), available
		FROM tenant_menu_items WHERE tenant_id = $1 ORDER BY name`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("conversation: load menu items: %w", err)
	}
	defer rows.Close()

	var items []MenuItem
	for rows.Next() {
		var item MenuItem
		if err := rows.Scan(&item.Name, &item.Category, &item.Price, &item.Available); err != nil {
			return nil, fmt.Errorf("conversation: scan menu item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *PostgresTenantStore) loadConfigSources(ctx context.Context, tenantID string) ([]ConfigSource, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT type, content, priority
		FROM tenant_config_sources WHERE tenant_id = $1 ORDER BY priority DESC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("conversation: load config sources: %w", err)
	}
	defer rows.Close()

	var sources []ConfigSource
	for rows.Next() {
		var src ConfigSource
		if err := rows.Scan(&src.Type, &src.Content, &src.Priority); err != nil {
			return nil, fmt.Errorf("conversation: scan config source: %w", err)
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}
