package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"

	"stockhub/internal/protocol"
)

// LineItem is one product and quantity of a new order.
type LineItem struct {
	ProductID uint
	Quantity  int
}

// CreateOrder records a pending order. Orders reach the shop from outside the
// protocol, this is their entry point.
func (s *Store) CreateOrder(ctx context.Context, items []LineItem) (*Order, error) {
	if len(items) == 0 {
		return nil, errors.New("an order needs at least one line")
	}
	order := &Order{Status: OrderPending}
	for _, it := range items {
		if it.Quantity < 1 {
			return nil, fmt.Errorf("invalid quantity %d for product %d", it.Quantity, it.ProductID)
		}
		order.Lines = append(order.Lines, OrderLine{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, it := range items {
			var count int64
			if err := tx.Model(&Product{}).Where("id = ?", it.ProductID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return fmt.Errorf("product %d: %w", it.ProductID, errProductNotFound)
			}
		}
		return tx.Create(order).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	s.logger.Info("order_created", "order_id", order.ID, "lines", len(order.Lines))
	return order, nil
}

// ValidateOrder expects <id>. Stock is taken for every line in one
// transaction, so either all lines are served or none.
func (s *Store) ValidateOrder(ctx context.Context, msg *protocol.Message) *protocol.Message {
	id, err := parseID("id", msg.Option(0))
	if err != nil {
		return s.fail("validate_order", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order Order
		if err := tx.Preload("Lines").First(&order, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errOrderNotFound
			}
			return err
		}
		if order.Status == OrderValidated {
			return rejectf("order already validated")
		}
		for _, line := range order.Lines {
			res := tx.Model(&Product{}).
				Where("id = ? AND quantity >= ?", line.ProductID, line.Quantity).
				Update("quantity", gorm.Expr("quantity - ?", line.Quantity))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return rejectf("insufficient stock for product %d", line.ProductID)
			}
		}
		return tx.Model(&order).Update("status", OrderValidated).Error
	})
	if err != nil {
		return s.fail("validate_order", err)
	}

	s.logger.Info("order_validated", "order_id", id)
	return protocol.NewSuccess()
}

// DeleteOrder expects <id> and removes the order with its lines.
func (s *Store) DeleteOrder(ctx context.Context, msg *protocol.Message) *protocol.Message {
	id, err := parseID("id", msg.Option(0))
	if err != nil {
		return s.fail("delete_order", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", id).Delete(&OrderLine{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&Order{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errOrderNotFound
		}
		return nil
	})
	if err != nil {
		return s.fail("delete_order", err)
	}

	s.logger.Info("order_deleted", "order_id", id)
	return protocol.NewSuccess()
}

// GetOrderList answers SUCCESS<n> then <id;status;created_at;line count> per order.
func (s *Store) GetOrderList(ctx context.Context, msg *protocol.Message) *protocol.Message {
	var orders []Order
	if err := s.db.WithContext(ctx).Preload("Lines").Order("id").Find(&orders).Error; err != nil {
		return s.fail("get_order_list", err)
	}

	reply := protocol.NewSuccess(strconv.Itoa(len(orders)))
	for _, o := range orders {
		err := reply.AppendFields(
			strconv.FormatUint(uint64(o.ID), 10),
			o.Status,
			o.CreatedAt.UTC().Format(time.RFC3339),
			strconv.Itoa(len(o.Lines)),
		)
		if err != nil {
			return s.fail("get_order_list", err)
		}
	}
	return reply
}

// GetSpecificOrder expects <id> and answers
// SUCCESS<id><status><created_at><n> then <product id;name;quantity> per line.
func (s *Store) GetSpecificOrder(ctx context.Context, msg *protocol.Message) *protocol.Message {
	id, err := parseID("id", msg.Option(0))
	if err != nil {
		return s.fail("get_specific_order", err)
	}

	var o Order
	err = s.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Lines.Product").
		First(&o, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.fail("get_specific_order", errOrderNotFound)
		}
		return s.fail("get_specific_order", err)
	}

	reply := protocol.NewSuccess(
		strconv.FormatUint(uint64(o.ID), 10),
		o.Status,
		o.CreatedAt.UTC().Format(time.RFC3339),
		strconv.Itoa(len(o.Lines)),
	)
	for _, line := range o.Lines {
		err := reply.AppendFields(
			strconv.FormatUint(uint64(line.ProductID), 10),
			line.Product.Name,
			strconv.Itoa(line.Quantity),
		)
		if err != nil {
			return s.fail("get_specific_order", err)
		}
	}
	return reply
}
