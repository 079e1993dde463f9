package db

import (
	"github.com/bullionworks/checkout/models"
)

type Database interface {
	PutOrder(order models.Order) error
	UpdateOrderStatus(orderUUID string, status models.OrderStatus) error
	GetOrderByID(orderUUID string) (*models.Order, error)
	GetOrdersList(customerID string) ([]*models.Order, error)

	Close() error
}
