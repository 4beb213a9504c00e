package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/VishnuMK2006/invent-consolt/internal/config"
	"github.com/VishnuMK2006/invent-consolt/internal/domain"
	"github.com/VishnuMK2006/invent-consolt/internal/store"
)

type Store struct {
	db *sql.DB
}

// Open connects and pings without wrapping the handle, so migrations can run
// before the store is built.
func Open(ctx context.Context, cfg config.DBConfig) (*sql.DB, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("database url is required")
	}
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(positiveOr(cfg.MaxIdleConns, 8))
	db.SetMaxOpenConns(positiveOr(cfg.MaxOpenConns, 30))
	lifetime := cfg.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = 30 * time.Minute
	}
	db.SetConnMaxLifetime(lifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func New(ctx context.Context, cfg config.DBConfig) (*Store, error) {
	db, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewFromDB(db), nil
}

// NewFromDB wraps an already opened pool, such as one shared with migrations.
func NewFromDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const productColumns = `id, name, barcode, description, category, price, quantity, min_quantity, reorder_level, COALESCE(vendor_id, ''), COALESCE(image_url, ''), created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Barcode, &p.Description, &p.Category, &p.Price,
		&p.Quantity, &p.MinQuantity, &p.ReorderLevel, &p.VendorID, &p.ImageURL,
		&p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

func (s *Store) queryProducts(ctx context.Context, query string, args ...any) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.queryProducts(ctx, `
		SELECT `+productColumns+`
		FROM products
		ORDER BY created_at DESC, barcode
	`)
}

func (s *Store) ListLowStockProducts(ctx context.Context) ([]domain.Product, error) {
	return s.queryProducts(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE quantity <= min_quantity
		ORDER BY quantity, name
	`)
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.Barcode == "" || product.Quantity < 0 {
		return nil, store.ErrInvalidInput
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO products (
			id, name, barcode, description, category, price, quantity,
			min_quantity, reorder_level, vendor_id, image_url, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,now(),now())
		RETURNING created_at, updated_at
	`, product.ID, product.Name, product.Barcode, product.Description, product.Category, product.Price,
		product.Quantity, product.MinQuantity, product.ReorderLevel, nullIfEmpty(product.VendorID), nullIfEmpty(product.ImageURL),
	).Scan(&product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("product %s: %w", product.Barcode, store.ErrDuplicate)
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return s.findProduct(ctx, "id", id)
}

func (s *Store) FindProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error) {
	return s.findProduct(ctx, "barcode", barcode)
}

func (s *Store) findProduct(ctx context.Context, column string, value string) (*domain.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE `+column+` = $1
	`, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) FindProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	products, err := s.queryProducts(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		result[p.ID] = p
	}
	return result, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.Quantity < 0 {
		return nil, store.ErrInvalidInput
	}

	updated, err := scanProduct(s.db.QueryRowContext(ctx, `
		UPDATE products
		SET name = $2, description = $3, category = $4, price = $5, quantity = $6,
			min_quantity = $7, reorder_level = $8, vendor_id = $9, image_url = $10, updated_at = now()
		WHERE id = $1
		RETURNING `+productColumns,
		product.ID, product.Name, product.Description, product.Category, product.Price, product.Quantity,
		product.MinQuantity, product.ReorderLevel, nullIfEmpty(product.VendorID), nullIfEmpty(product.ImageURL),
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &updated, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (s *Store) DecrementStock(ctx context.Context, productID string, qty int) error {
	if qty < 1 {
		return store.ErrInvalidInput
	}
	return decrement(ctx, s.db, productID, qty)
}

type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// decrement is a single conditional UPDATE; when it matches nothing the row is
// re-read only to report why.
func decrement(ctx context.Context, q execQuerier, productID string, qty int) error {
	res, err := q.ExecContext(ctx, `
		UPDATE products
		SET quantity = quantity - $1, updated_at = now()
		WHERE id = $2 AND quantity >= $1
	`, qty, productID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 1 {
		return nil
	}

	var name string
	var available int
	err = q.QueryRowContext(ctx, `SELECT name, quantity FROM products WHERE id = $1`, productID).Scan(&name, &available)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	}
	return &store.StockError{ProductID: productID, ProductName: name, Requested: qty, Available: available}
}

func (s *Store) IncreaseStock(ctx context.Context, productID string, qty int) error {
	if qty < 1 {
		return store.ErrInvalidInput
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET quantity = quantity + $1, updated_at = now()
		WHERE id = $2
	`, qty, productID)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (s *Store) CreateBuyer(ctx context.Context, buyer domain.Buyer) (*domain.Buyer, error) {
	if buyer.ID == "" || buyer.Name == "" {
		return nil, store.ErrInvalidInput
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO buyers (id, name, phone, email, address, created_at)
		VALUES ($1,$2,$3,$4,$5,now())
		RETURNING created_at
	`, buyer.ID, buyer.Name, buyer.Phone, nullIfEmpty(buyer.Email), nullIfEmpty(buyer.Address)).Scan(&buyer.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("buyer %s: %w", buyer.ID, store.ErrDuplicate)
		}
		return nil, err
	}
	created := buyer
	return &created, nil
}

const buyerColumns = `id, name, phone, COALESCE(email, ''), COALESCE(address, ''), created_at`

func scanBuyer(row rowScanner) (domain.Buyer, error) {
	var b domain.Buyer
	err := row.Scan(&b.ID, &b.Name, &b.Phone, &b.Email, &b.Address, &b.CreatedAt)
	return b, err
}

func (s *Store) GetBuyer(ctx context.Context, id string) (*domain.Buyer, error) {
	b, err := scanBuyer(s.db.QueryRowContext(ctx, `SELECT `+buyerColumns+` FROM buyers WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (s *Store) FindBuyersByIDs(ctx context.Context, ids []string) (map[string]domain.Buyer, error) {
	result := make(map[string]domain.Buyer, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	buyers, err := s.queryBuyers(ctx, `SELECT `+buyerColumns+` FROM buyers WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	for _, b := range buyers {
		result[b.ID] = b
	}
	return result, nil
}

func (s *Store) ListBuyers(ctx context.Context) ([]domain.Buyer, error) {
	return s.queryBuyers(ctx, `SELECT `+buyerColumns+` FROM buyers ORDER BY name`)
}

func (s *Store) queryBuyers(ctx context.Context, query string, args ...any) ([]domain.Buyer, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	buyers := make([]domain.Buyer, 0, 32)
	for rows.Next() {
		b, err := scanBuyer(rows)
		if err != nil {
			return nil, err
		}
		buyers = append(buyers, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return buyers, nil
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.ID == "" || sale.BuyerID == "" || len(sale.Items) == 0 {
		return nil, store.ErrInvalidInput
	}
	for _, line := range sale.Items {
		if line.Quantity < 1 || line.ProductID == "" {
			return nil, store.ErrInvalidInput
		}
	}
	if sale.Status == "" {
		sale.Status = domain.SaleStatusCompleted
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	err = pgTx.QueryRowContext(ctx, `
		INSERT INTO sales (
			id, buyer_id, subtotal, discount_percent, discount_amount, tax_percent, tax_amount,
			shipping_amount, other_amount, total_amount, comments, status, sale_date, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,COALESCE($13, now()),now())
		RETURNING sale_date, created_at
	`, sale.ID, sale.BuyerID, sale.Subtotal, sale.DiscountPercent, sale.DiscountAmount, sale.TaxPercent, sale.TaxAmount,
		sale.ShippingAmount, sale.OtherAmount, sale.TotalAmount, sale.Comments, sale.Status, nullTime(sale.SaleDate),
	).Scan(&sale.SaleDate, &sale.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("sale %s: %w", sale.ID, store.ErrDuplicate)
		}
		return nil, err
	}

	// Rows are locked in product id order so concurrent sales of the same
	// products cannot deadlock each other.
	for _, i := range lockOrder(sale.Items) {
		line := sale.Items[i]
		if err := decrement(ctx, pgTx, line.ProductID, line.Quantity); err != nil {
			if errors.Is(err, store.ErrInsufficientStock) || errors.Is(err, store.ErrNotFound) || isLockConflict(err) {
				return nil, fmt.Errorf("%w: product %s: %v", store.ErrStockConflict, line.ProductID, err)
			}
			return nil, err
		}
	}

	for i, line := range sale.Items {
		if _, err := pgTx.ExecContext(ctx, `
			INSERT INTO sale_items (sale_id, line_no, product_id, quantity, unit_price, line_total, barcode)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, sale.ID, i+1, line.ProductID, line.Quantity, line.UnitPrice, line.LineTotal, line.Barcode); err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		if isLockConflict(err) {
			return nil, fmt.Errorf("%w: sale %s: %v", store.ErrStockConflict, sale.ID, err)
		}
		return nil, err
	}

	created := sale
	created.Items = append([]domain.SaleLine(nil), sale.Items...)
	return &created, nil
}

func (s *Store) CountSales(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM sales`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

const saleColumns = `id, buyer_id, subtotal, discount_percent, discount_amount, tax_percent, tax_amount, shipping_amount, other_amount, total_amount, comments, status, sale_date, created_at`

func scanSale(row rowScanner) (domain.Sale, error) {
	var sale domain.Sale
	err := row.Scan(
		&sale.ID, &sale.BuyerID, &sale.Subtotal, &sale.DiscountPercent, &sale.DiscountAmount,
		&sale.TaxPercent, &sale.TaxAmount, &sale.ShippingAmount, &sale.OtherAmount, &sale.TotalAmount,
		&sale.Comments, &sale.Status, &sale.SaleDate, &sale.CreatedAt,
	)
	return sale, err
}

func (s *Store) FindSaleByID(ctx context.Context, id string) (*domain.Sale, error) {
	sale, err := scanSale(s.db.QueryRowContext(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	lines, err := s.loadSaleLines(ctx, []string{sale.ID})
	if err != nil {
		return nil, err
	}
	sale.Items = lines[sale.ID]
	return &sale, nil
}

func (s *Store) ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	clauses := make([]string, 0, 2)
	args := make([]any, 0, 3)
	if filter.From != nil {
		args = append(args, *filter.From)
		clauses = append(clauses, fmt.Sprintf("sale_date >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		clauses = append(clauses, fmt.Sprintf("sale_date < $%d", len(args)))
	}

	query := `SELECT ` + saleColumns + ` FROM sales`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY sale_date DESC, created_at DESC, id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 64)
	ids := make([]string, 0, 64)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
		ids = append(ids, sale.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	lines, err := s.loadSaleLines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range sales {
		sales[i].Items = lines[sales[i].ID]
	}
	return sales, nil
}

func (s *Store) loadSaleLines(ctx context.Context, saleIDs []string) (map[string][]domain.SaleLine, error) {
	result := make(map[string][]domain.SaleLine, len(saleIDs))
	if len(saleIDs) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sale_id, product_id, quantity, unit_price, line_total, barcode
		FROM sale_items
		WHERE sale_id = ANY($1)
		ORDER BY sale_id, line_no
	`, saleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var saleID string
		var line domain.SaleLine
		if err := rows.Scan(&saleID, &line.ProductID, &line.Quantity, &line.UnitPrice, &line.LineTotal, &line.Barcode); err != nil {
			return nil, err
		}
		result[saleID] = append(result[saleID], line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) IncrementAndGet(ctx context.Context, name string) (int64, error) {
	if name == "" {
		return 0, store.ErrInvalidInput
	}

	var seq int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO id_counters (name, seq, updated_at)
		VALUES ($1, 1, now())
		ON CONFLICT (name)
		DO UPDATE SET seq = id_counters.seq + 1, updated_at = now()
		RETURNING seq
	`, name).Scan(&seq)
	if err != nil {
		return 0, err
	}
	return seq, nil
}

func expectAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// isLockConflict reports deadlocks (40P01) and serialization failures (40001).
func isLockConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40P01" || pgErr.Code == "40001"
	}
	return false
}

// lockOrder returns line indexes sorted by product id.
func lockOrder(lines []domain.SaleLine) []int {
	order := make([]int, len(lines))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return strings.Compare(lines[a].ProductID, lines[b].ProductID)
	})
	return order
}

func positiveOr(v int, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullTime(val time.Time) any {
	if val.IsZero() {
		return nil
	}
	return val
}
