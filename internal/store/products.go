package store

import (
	"context"
	"errors"
	"strconv"

	"gorm.io/gorm"

	"stockhub/internal/protocol"
)

// AddProduct expects <name><price><quantity> and answers SUCCESS<id>.
func (s *Store) AddProduct(ctx context.Context, msg *protocol.Message) *protocol.Message {
	name := msg.Option(0)
	if err := validName(name); err != nil {
		return s.fail("add_product", err)
	}
	price, err := parsePrice("price", msg.Option(1))
	if err != nil {
		return s.fail("add_product", err)
	}
	qty, err := parseQuantity("quantity", msg.Option(2), 0)
	if err != nil {
		return s.fail("add_product", err)
	}

	product := Product{Name: name, Price: price, Quantity: qty}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Product{}).Where("name = ?", name).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return rejectf("a product with this name already exists")
		}
		if err := tx.Create(&product).Error; err != nil {
			if isUniqueViolation(err) {
				return rejectf("a product with this name already exists")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return s.fail("add_product", err)
	}

	s.logger.Info("product_added", "product_id", product.ID, "name", name)
	return protocol.NewSuccess(strconv.FormatUint(uint64(product.ID), 10))
}

// AddProductQuantity expects <id><amount> and answers SUCCESS<new quantity>.
func (s *Store) AddProductQuantity(ctx context.Context, msg *protocol.Message) *protocol.Message {
	return s.adjustQuantity(ctx, "add_product_quantity", msg, 1)
}

// RemoveProductQuantity expects <id><amount>; stock never goes below zero.
func (s *Store) RemoveProductQuantity(ctx context.Context, msg *protocol.Message) *protocol.Message {
	return s.adjustQuantity(ctx, "remove_product_quantity", msg, -1)
}

func (s *Store) adjustQuantity(ctx context.Context, op string, msg *protocol.Message, sign int) *protocol.Message {
	id, err := parseID("id", msg.Option(0))
	if err != nil {
		return s.fail(op, err)
	}
	amount, err := parseQuantity("quantity", msg.Option(1), 1)
	if err != nil {
		return s.fail(op, err)
	}

	var product Product
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&product, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errProductNotFound
			}
			return err
		}
		q := tx.Model(&Product{}).Where("id = ?", id)
		if sign < 0 {
			q = q.Where("quantity >= ?", amount)
		}
		res := q.Update("quantity", gorm.Expr("quantity + ?", sign*amount))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return rejectf("quantity cannot go below zero")
		}
		return tx.First(&product, id).Error
	})
	if err != nil {
		return s.fail(op, err)
	}

	s.logger.Info("product_quantity_changed",
		"product_id", id,
		"delta", sign*amount,
		"quantity", product.Quantity,
	)
	return protocol.NewSuccess(strconv.Itoa(product.Quantity))
}

// RemoveProduct expects <id>. A product still listed in an order is kept.
func (s *Store) RemoveProduct(ctx context.Context, msg *protocol.Message) *protocol.Message {
	id, err := parseID("id", msg.Option(0))
	if err != nil {
		return s.fail("remove_product", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var refs int64
		if err := tx.Model(&OrderLine{}).Where("product_id = ?", id).Count(&refs).Error; err != nil {
			return err
		}
		if refs > 0 {
			return rejectf("product is referenced by an order")
		}
		res := tx.Delete(&Product{}, id)
		if res.Error != nil {
			if isForeignKeyViolation(res.Error) {
				return rejectf("product is referenced by an order")
			}
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errProductNotFound
		}
		return nil
	})
	if err != nil {
		return s.fail("remove_product", err)
	}

	s.logger.Info("product_removed", "product_id", id)
	return protocol.NewSuccess()
}

// GetProductList answers SUCCESS<n> then <id;name;price;quantity;promo> per product.
func (s *Store) GetProductList(ctx context.Context, msg *protocol.Message) *protocol.Message {
	var products []Product
	if err := s.db.WithContext(ctx).Order("id").Find(&products).Error; err != nil {
		return s.fail("get_product_list", err)
	}

	reply := protocol.NewSuccess(strconv.Itoa(len(products)))
	for _, p := range products {
		err := reply.AppendFields(
			strconv.FormatUint(uint64(p.ID), 10),
			p.Name,
			formatPrice(p.Price),
			strconv.Itoa(p.Quantity),
			formatPromo(p.PromoPrice),
		)
		if err != nil {
			return s.fail("get_product_list", err)
		}
	}
	return reply
}

// GetSpecificProduct expects <id> and answers SUCCESS<id><name;price;quantity><promo>.
func (s *Store) GetSpecificProduct(ctx context.Context, msg *protocol.Message) *protocol.Message {
	id, err := parseID("id", msg.Option(0))
	if err != nil {
		return s.fail("get_specific_product", err)
	}

	var p Product
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.fail("get_specific_product", errProductNotFound)
		}
		return s.fail("get_specific_product", err)
	}

	reply := protocol.NewSuccess(strconv.FormatUint(uint64(p.ID), 10))
	if err := reply.AppendProduct(p.Name, formatPrice(p.Price), strconv.Itoa(p.Quantity)); err != nil {
		return s.fail("get_specific_product", err)
	}
	reply.AppendOption(formatPromo(p.PromoPrice))
	return reply
}

// ApplyPromotion expects <id><promo price>, which must stay below the price.
func (s *Store) ApplyPromotion(ctx context.Context, msg *protocol.Message) *protocol.Message {
	id, err := parseID("id", msg.Option(0))
	if err != nil {
		return s.fail("apply_promotion", err)
	}
	promo, err := parsePrice("promotion price", msg.Option(1))
	if err != nil {
		return s.fail("apply_promotion", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p Product
		if err := tx.First(&p, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errProductNotFound
			}
			return err
		}
		if promo >= p.Price {
			return rejectf("promotion price must be lower than the product price")
		}
		return tx.Model(&p).Update("promo_price", promo).Error
	})
	if err != nil {
		return s.fail("apply_promotion", err)
	}

	s.logger.Info("promotion_applied", "product_id", id, "promo_price", promo)
	return protocol.NewSuccess()
}

// RemovePromotion expects <id>.
func (s *Store) RemovePromotion(ctx context.Context, msg *protocol.Message) *protocol.Message {
	id, err := parseID("id", msg.Option(0))
	if err != nil {
		return s.fail("remove_promotion", err)
	}

	res := s.db.WithContext(ctx).Model(&Product{}).Where("id = ?", id).Update("promo_price", nil)
	if res.Error != nil {
		return s.fail("remove_promotion", res.Error)
	}
	if res.RowsAffected == 0 {
		return s.fail("remove_promotion", errProductNotFound)
	}

	s.logger.Info("promotion_removed", "product_id", id)
	return protocol.NewSuccess()
}
