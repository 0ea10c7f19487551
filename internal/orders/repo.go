package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-pos-checkout/internal/money"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repo is the Postgres ledger. Amounts travel as numeric text both ways so no
// value ever passes through float64.
type Repo struct {
	DB *pgxpool.Pool
	// LockTimeout bounds row-lock waits inside a transaction; zero keeps the server default.
	LockTimeout time.Duration
}

func (r *Repo) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return Classify("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if r.LockTimeout > 0 {
		ms := fmt.Sprintf("%dms", r.LockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, `SELECT set_config('lock_timeout', $1, true)`, ms); err != nil {
			return Classify("set lock_timeout", err)
		}
	}

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err // rollback via defer
	}
	if err := tx.Commit(ctx); err != nil {
		return Classify("commit", err)
	}
	return nil
}

type pgTx struct{ tx pgx.Tx }

const productColumns = `id, name, price::text, is_inventory_managed, stock_quantity, is_active, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var (
		p     Product
		price string
	)
	if err := row.Scan(&p.ID, &p.Name, &price, &p.Managed, &p.Stock, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Product{}, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return Product{}, fmt.Errorf("product %d price %q: %w", p.ID, price, err)
	}
	// harga katalog wajib dua desimal
	if err := money.CheckAmount(d); err != nil {
		return Product{}, fmt.Errorf("product %d price %s: %w", p.ID, price, err)
	}
	p.Price = d
	return p, nil
}

func (t *pgTx) LockProducts(ctx context.Context, ids []int64) (map[int64]Product, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+productColumns+`
		FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return nil, Classify("lock products", err)
	}
	defer rows.Close()

	out := make(map[int64]Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, Classify("scan product", err)
		}
		out[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, Classify("lock products", err)
	}
	return out, nil
}

func (t *pgTx) DecrementStock(ctx context.Context, productID int64, qty int) (int, bool, error) {
	var stock int
	err := t.tx.QueryRow(ctx, `
		UPDATE products SET stock_quantity = stock_quantity - $2, updated_at = now()
		WHERE id = $1 AND stock_quantity >= $2
		RETURNING stock_quantity`, productID, qty).Scan(&stock)
	if err == nil {
		return stock, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, false, Classify("decrement stock", err)
	}

	// kondisi gagal: baca sisa stok untuk pesan error
	if err := t.tx.QueryRow(ctx, `SELECT stock_quantity FROM products WHERE id=$1`, productID).Scan(&stock); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, ProductNotFound(productID)
		}
		return 0, false, Classify("read stock", err)
	}
	return stock, false, nil
}

func (t *pgTx) IncrementStock(ctx context.Context, productID int64, qty int) error {
	ct, err := t.tx.Exec(ctx, `
		UPDATE products SET stock_quantity = stock_quantity + $2, updated_at = now()
		WHERE id = $1`, productID, qty)
	if err != nil {
		return Classify("increment stock", err)
	}
	if ct.RowsAffected() != 1 {
		return ProductNotFound(productID)
	}
	return nil
}

func (t *pgTx) InsertOrder(ctx context.Context, o *Order) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO orders(user_id, transaction_code, subtotal_amount, tax_amount, total_amount,
		                   payment_method, amount_received, change_amount, status)
		VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6, $7::numeric, $8::numeric, $9)
		RETURNING id, created_at`,
		o.CashierID, o.TransactionCode, o.Subtotal.String(), o.Tax.String(), o.Total.String(),
		string(o.PaymentMethod), o.AmountReceived.String(), o.Change.String(), string(o.Status),
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, TransactionCodeConstraint) {
			return DuplicateCode(o.TransactionCode, err)
		}
		return Classify("insert order", err)
	}
	return nil
}

func (t *pgTx) InsertItems(ctx context.Context, orderID int64, items []OrderItem) error {
	b := &pgx.Batch{}
	for _, it := range items {
		b.Queue(`
			INSERT INTO order_items(order_id, product_id, product_name_snapshot, price_snapshot, quantity, subtotal)
			VALUES ($1, $2, $3, $4::numeric, $5, $6::numeric)`,
			orderID, it.ProductID, it.Name, it.Price.String(), it.Qty, it.Subtotal.String())
	}
	br := t.tx.SendBatch(ctx, b)
	for range items {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return Classify("insert order items", err)
		}
	}
	if err := br.Close(); err != nil {
		return Classify("insert order items", err)
	}
	return nil
}

const orderColumns = `id, user_id, transaction_code, subtotal_amount::text, tax_amount::text, total_amount::text,
	payment_method, amount_received::text, change_amount::text, status, created_at, voided_by, voided_at`

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o                                         Order
		subtotal, tax, total, received, change, m string
		status                                    string
	)
	if err := row.Scan(&o.ID, &o.CashierID, &o.TransactionCode, &subtotal, &tax, &total,
		&m, &received, &change, &status, &o.CreatedAt, &o.VoidedBy, &o.VoidedAt); err != nil {
		return Order{}, err
	}
	o.PaymentMethod = PaymentMethod(m)
	o.Status = Status(status)

	var err error
	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&o.Subtotal, subtotal}, {&o.Tax, tax}, {&o.Total, total},
		{&o.AmountReceived, received}, {&o.Change, change},
	} {
		if *f.dst, err = decimal.NewFromString(f.src); err != nil {
			return Order{}, fmt.Errorf("order %d amount %q: %w", o.ID, f.src, err)
		}
	}
	return o, nil
}

func (t *pgTx) LockOrder(ctx context.Context, orderID int64) (Order, error) {
	o, err := scanOrder(t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1 FOR UPDATE`, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, OrderNotFound(orderID)
		}
		return Order{}, Classify("lock order", err)
	}
	return o, nil
}

// RestockLines reads the managed flag from the live products row, not from the sale.
func (t *pgTx) RestockLines(ctx context.Context, orderID int64) ([]RestockLine, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT oi.product_id, oi.quantity, p.is_inventory_managed
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1
		ORDER BY oi.product_id
		FOR UPDATE OF p`, orderID)
	if err != nil {
		return nil, Classify("read order items", err)
	}
	defer rows.Close()

	var out []RestockLine
	for rows.Next() {
		var l RestockLine
		if err := rows.Scan(&l.ProductID, &l.Qty, &l.Managed); err != nil {
			return nil, Classify("scan order item", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, Classify("read order items", err)
	}
	return out, nil
}

func (t *pgTx) MarkCancelled(ctx context.Context, orderID, voidedBy int64, at time.Time) error {
	ct, err := t.tx.Exec(ctx, `
		UPDATE orders SET status=$2, voided_by=$3, voided_at=$4
		WHERE id=$1 AND status=$5`,
		orderID, string(StatusCancelled), voidedBy, at, string(StatusPaid))
	if err != nil {
		return Classify("cancel order", err)
	}
	if ct.RowsAffected() != 1 {
		return AlreadyCancelled(orderID)
	}
	return nil
}

func (r *Repo) ListActiveProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+productColumns+` FROM products WHERE is_active ORDER BY name`)
	if err != nil {
		return nil, Classify("list products", err)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, Classify("scan product", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, Classify("list products", err)
	}
	return out, nil
}

func (r *Repo) GetOrder(ctx context.Context, orderID int64) (Order, []OrderItem, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, nil, OrderNotFound(orderID)
		}
		return Order{}, nil, Classify("get order", err)
	}

	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, product_id, product_name_snapshot, price_snapshot::text, quantity, subtotal::text
		FROM order_items WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return Order{}, nil, Classify("get order items", err)
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var (
			it              OrderItem
			price, subtotal string
		)
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Name, &price, &it.Qty, &subtotal); err != nil {
			return Order{}, nil, Classify("scan order item", err)
		}
		if it.Price, err = decimal.NewFromString(price); err != nil {
			return Order{}, nil, Classify("parse price snapshot", err)
		}
		if it.Subtotal, err = decimal.NewFromString(subtotal); err != nil {
			return Order{}, nil, Classify("parse subtotal", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return Order{}, nil, Classify("get order items", err)
	}
	return o, items, nil
}
