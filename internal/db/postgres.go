package db

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/bullionworks/checkout/config"
	_ "github.com/bullionworks/checkout/internal/db/migrations"
	"github.com/bullionworks/checkout/models"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

type Manager struct {
	Db *sql.DB
}

func NewManager(cfg *config.Config) (*Manager, error) {
	db, err := sql.Open("pgx", cfg.DatabaseURI)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	manager := &Manager{
		Db: db,
	}

	if err = goose.Up(db, "./internal/db/migrations"); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	return manager, nil
}

// PutOrder stores the order and its lines in one transaction so a
// provisioned order is never visible without its items.
func (m *Manager) PutOrder(order models.Order) error {
	tx, err := m.Db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
        INSERT INTO orders (uuid, order_number, customer_uuid, total, fulfillment, status)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, order.UUID, order.OrderNumber, order.CustomerID, order.Total, order.Fulfillment, order.Status)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for _, line := range order.Lines {
		_, err = tx.Exec(`
            INSERT INTO order_lines (order_uuid, sku, description, metal, weight_oz, quantity, unit_price, extended_price)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        `, order.UUID, line.SKU, line.Description, line.Metal, line.WeightOunces, line.Quantity, line.UnitPrice, line.ExtendedPrice)
		if err != nil {
			return fmt.Errorf("failed to insert order line: %w", err)
		}
	}

	return tx.Commit()
}

// UpdateOrderStatus only moves orders out of PENDING. An order already in
// a terminal status is left untouched, which keeps repeated settlement
// confirmations harmless.
func (m *Manager) UpdateOrderStatus(orderUUID string, status models.OrderStatus) error {
	_, err := m.Db.Exec(`
        UPDATE orders SET status = $2 WHERE uuid = $1 AND status = 'PENDING'
    `, orderUUID, status)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	return nil
}

func (m *Manager) GetOrderByID(orderUUID string) (*models.Order, error) {
	var order models.Order

	err := m.Db.QueryRow(`
		SELECT uuid, order_number, customer_uuid, total, fulfillment, status, created_at
		FROM orders
		WHERE uuid = $1
	`, orderUUID).Scan(&order.UUID, &order.OrderNumber, &order.CustomerID, &order.Total, &order.Fulfillment, &order.Status, &order.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	return &order, nil
}

func (m *Manager) GetOrdersList(customerID string) ([]*models.Order, error) {
	rows, err := m.Db.Query(`
		SELECT uuid, order_number, total, fulfillment, status, created_at
		FROM orders
		WHERE customer_uuid = $1
		ORDER BY created_at DESC
	`, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get orders list: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order := models.Order{CustomerID: customerID}
		err = rows.Scan(&order.UUID, &order.OrderNumber, &order.Total, &order.Fulfillment, &order.Status, &order.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, &order)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read orders list: %w", err)
	}

	return orders, nil
}

func (m *Manager) Close() error {
	return m.Db.Close()
}
