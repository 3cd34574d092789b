package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"agromart/marketplace-service/apperr"
	"agromart/marketplace-service/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type kindTable struct {
	table    string
	quantity string
	class    string
	resource string
}

var kindTables = map[models.ItemKind]kindTable{
	models.KindProduct:      {table: "products", quantity: "stock", class: "category", resource: "product"},
	models.KindWasteProduct: {table: "waste_products", quantity: "quantity", class: "type", resource: "waste product"},
}

func tableFor(kind models.ItemKind) (kindTable, error) {
	t, ok := kindTables[kind]
	if !ok {
		return kindTable{}, apperr.Invalid("kind", "unknown item kind %q", kind)
	}
	return t, nil
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (s *Store) Get(ctx context.Context, kind models.ItemKind, id string) (*models.CatalogItem, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	if !validID(id) {
		return nil, &apperr.NotFoundError{Resource: t.resource, ID: id}
	}

	item := models.CatalogItem{Kind: kind}
	query := fmt.Sprintf("SELECT id, name, %s, price, %s, unit, seller_id, image FROM %s WHERE id = $1",
		t.class, t.quantity, t.table)
	err = s.q(ctx).QueryRowContext(ctx, query, id).Scan(
		&item.ID, &item.Name, &item.Classification, &item.Price, &item.Available, &item.Unit, &item.SellerID, &item.Image,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &apperr.NotFoundError{Resource: t.resource, ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", t.resource, err)
	}
	return &item, nil
}

// DecrementStock is a single conditional UPDATE, so concurrent buyers can
// never drive stock below zero.
func (s *Store) DecrementStock(ctx context.Context, kind models.ItemKind, id string, amount int) error {
	t, err := tableFor(kind)
	if err != nil {
		return err
	}
	if !validID(id) {
		return &apperr.NotFoundError{Resource: t.resource, ID: id}
	}

	query := fmt.Sprintf(
		"UPDATE %[1]s SET %[2]s = %[2]s - $1::integer, sales_count = sales_count + $1::integer, updated_at = NOW() WHERE id = $2 AND %[2]s >= $1::integer",
		t.table, t.quantity)
	res, err := s.q(ctx).ExecContext(ctx, query, amount, id)
	if err != nil {
		return fmt.Errorf("decrement %s stock: %w", t.resource, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("decrement %s stock: %w", t.resource, err)
	}
	if n == 1 {
		return nil
	}

	var available decimal.Decimal
	err = s.q(ctx).QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", t.quantity, t.table), id,
	).Scan(&available)
	if errors.Is(err, sql.ErrNoRows) {
		return &apperr.NotFoundError{Resource: t.resource, ID: id}
	}
	if err != nil {
		return fmt.Errorf("check %s stock: %w", t.resource, err)
	}
	return &apperr.InsufficientStockError{ItemID: id, Requested: amount, Available: available}
}

func (s *Store) IncrementStock(ctx context.Context, kind models.ItemKind, id string, amount int) (bool, error) {
	t, err := tableFor(kind)
	if err != nil {
		return false, err
	}
	if !validID(id) {
		return false, &apperr.NotFoundError{Resource: t.resource, ID: id}
	}

	query := fmt.Sprintf(`UPDATE %[1]s t SET %[2]s = t.%[2]s + $1::integer, sales_count = GREATEST(t.sales_count - $1::integer, 0), updated_at = NOW()
		FROM (SELECT id, sales_count FROM %[1]s WHERE id = $2 FOR UPDATE) prev
		WHERE t.id = prev.id
		RETURNING prev.sales_count`, t.table, t.quantity)
	var prevSales int
	err = s.q(ctx).QueryRowContext(ctx, query, amount, id).Scan(&prevSales)
	if errors.Is(err, sql.ErrNoRows) {
		return false, &apperr.NotFoundError{Resource: t.resource, ID: id}
	}
	if err != nil {
		return false, fmt.Errorf("increment %s stock: %w", t.resource, err)
	}
	return prevSales < amount, nil
}

const productColumns = "id, name, description, category, price, stock, unit, seller_id, sales_count, image, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*models.Product, error) {
	var p models.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.Price, &p.Stock, &p.Unit,
		&p.SellerID, &p.SalesCount, &p.Image, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func listClause(filter models.CatalogFilter, classColumn string) (string, []any) {
	where := " WHERE 1=1"
	var args []any
	if filter.SellerID != "" {
		args = append(args, filter.SellerID)
		where += " AND seller_id = $" + strconv.Itoa(len(args))
	}
	if filter.Classification != "" {
		args = append(args, filter.Classification)
		where += " AND " + classColumn + " = $" + strconv.Itoa(len(args))
	}
	limit := filter.Limit
	if limit < 1 || limit > 100 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)
	where += " ORDER BY created_at DESC LIMIT $" + strconv.Itoa(len(args)-1) + " OFFSET $" + strconv.Itoa(len(args))
	return where, args
}

func (s *Store) ListProducts(ctx context.Context, filter models.CatalogFilter) ([]models.Product, error) {
	clause, args := listClause(filter, "category")
	rows, err := s.q(ctx).QueryContext(ctx, "SELECT "+productColumns+" FROM products"+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (s *Store) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	if !validID(id) {
		return nil, &apperr.NotFoundError{Resource: "product", ID: id}
	}
	p, err := scanProduct(s.q(ctx).QueryRowContext(ctx, "SELECT "+productColumns+" FROM products WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &apperr.NotFoundError{Resource: "product", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	err := s.q(ctx).QueryRowContext(ctx,
		`INSERT INTO products (id, name, description, category, price, stock, unit, seller_id, image)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING created_at, updated_at`,
		p.ID, p.Name, p.Description, p.Category, p.Price, p.Stock, p.Unit, p.SellerID, p.Image,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

func (s *Store) SetProductStock(ctx context.Context, id string, stock int) (*models.Product, error) {
	if !validID(id) {
		return nil, &apperr.NotFoundError{Resource: "product", ID: id}
	}
	p, err := scanProduct(s.q(ctx).QueryRowContext(ctx,
		"UPDATE products SET stock = $1, updated_at = NOW() WHERE id = $2 RETURNING "+productColumns, stock, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &apperr.NotFoundError{Resource: "product", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("update product stock: %w", err)
	}
	return p, nil
}

const wasteColumns = "id, name, description, type, quantity, unit, price, location, seller_id, possible_uses, nutrient_content, sales_count, image, created_at, updated_at"

func scanWaste(row rowScanner) (*models.WasteProduct, error) {
	var (
		w         models.WasteProduct
		nutrients []byte
	)
	err := row.Scan(&w.ID, &w.Name, &w.Description, &w.Type, &w.Quantity, &w.Unit, &w.Price, &w.Location,
		&w.SellerID, pq.Array(&w.PossibleUses), &nutrients, &w.SalesCount, &w.Image, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(nutrients) > 0 {
		if err := json.Unmarshal(nutrients, &w.NutrientContent); err != nil {
			return nil, fmt.Errorf("decode nutrient content: %w", err)
		}
	}
	return &w, nil
}

func (s *Store) ListWasteProducts(ctx context.Context, filter models.CatalogFilter) ([]models.WasteProduct, error) {
	clause, args := listClause(filter, "type")
	rows, err := s.q(ctx).QueryContext(ctx, "SELECT "+wasteColumns+" FROM waste_products"+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("list waste products: %w", err)
	}
	defer rows.Close()

	list := []models.WasteProduct{}
	for rows.Next() {
		w, err := scanWaste(rows)
		if err != nil {
			return nil, fmt.Errorf("scan waste product: %w", err)
		}
		list = append(list, *w)
	}
	return list, rows.Err()
}

func (s *Store) GetWasteProduct(ctx context.Context, id string) (*models.WasteProduct, error) {
	if !validID(id) {
		return nil, &apperr.NotFoundError{Resource: "waste product", ID: id}
	}
	w, err := scanWaste(s.q(ctx).QueryRowContext(ctx, "SELECT "+wasteColumns+" FROM waste_products WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &apperr.NotFoundError{Resource: "waste product", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get waste product: %w", err)
	}
	return w, nil
}

func (s *Store) CreateWasteProduct(ctx context.Context, w *models.WasteProduct) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	nutrients, err := json.Marshal(w.NutrientContent)
	if err != nil {
		return fmt.Errorf("encode nutrient content: %w", err)
	}
	if w.NutrientContent == nil {
		nutrients = []byte("{}")
	}
	uses := w.PossibleUses
	if uses == nil {
		uses = []string{}
	}
	err = s.q(ctx).QueryRowContext(ctx,
		`INSERT INTO waste_products (id, name, description, type, quantity, unit, price, location, seller_id, possible_uses, nutrient_content, image)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING created_at, updated_at`,
		w.ID, w.Name, w.Description, w.Type, w.Quantity, w.Unit, w.Price, w.Location, w.SellerID,
		pq.Array(uses), nutrients, w.Image,
	).Scan(&w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create waste product: %w", err)
	}
	return nil
}

func (s *Store) SetWasteQuantity(ctx context.Context, id string, quantity decimal.Decimal) (*models.WasteProduct, error) {
	if !validID(id) {
		return nil, &apperr.NotFoundError{Resource: "waste product", ID: id}
	}
	w, err := scanWaste(s.q(ctx).QueryRowContext(ctx,
		"UPDATE waste_products SET quantity = $1, updated_at = NOW() WHERE id = $2 RETURNING "+wasteColumns, quantity, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &apperr.NotFoundError{Resource: "waste product", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("update waste quantity: %w", err)
	}
	return w, nil
}
