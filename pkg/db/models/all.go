package models

// All lists every persisted model, in dependency order. Used to auto-migrate
// sqlite databases in dev mode and tests; Postgres uses goose migrations.
func All() []any {
	return []any{
		&Category{},
		&Brand{},
		&Attribute{},
		&Product{},
		&ProductVariant{},
		&Cart{},
		&Address{},
		&Coupon{},
		&UserCoupon{},
		&Order{},
		&OrderItem{},
		&UserRank{},
		&SpinHistory{},
		&Review{},
		&Comment{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
