package postgres

import (
	"context"
	"maps"
	"slices"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/catalog-browser/internal/domain/product"
)

const (
	listProductsSQL = `SELECT id, name, code, release_date, description, price, star_rating, image_url, attributes
		FROM products ORDER BY id`

	upsertProductSQL = `INSERT INTO products (id, name, code, release_date, description, price, star_rating, image_url, attributes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			code = EXCLUDED.code,
			release_date = EXCLUDED.release_date,
			description = EXCLUDED.description,
			price = EXCLUDED.price,
			star_rating = EXCLUDED.star_rating,
			image_url = EXCLUDED.image_url,
			attributes = EXCLUDED.attributes,
			updated_at = now()`
)

// ProductStore reads and writes the products table.
type ProductStore struct {
	pool *pgxpool.Pool
}

// NewProductStore returns a ProductStore that uses pool.
func NewProductStore(pool *pgxpool.Pool) *ProductStore {
	return &ProductStore{pool: pool}
}

// List returns every product ordered by id.
func (s *ProductStore) List(ctx context.Context) ([]product.Product, error) {
	rows, err := s.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, errors.Wrap(err, "scan products")
	}
	return products, nil
}

// Upsert inserts or replaces products in a single batch.
func (s *ProductStore) Upsert(ctx context.Context, products []product.Product) error {
	batch := &pgx.Batch{}
	for _, p := range products {
		batch.Queue(upsertProductSQL,
			p.ID, p.Name, p.Code, p.ReleaseDate, p.Description,
			p.Price, p.StarRating, p.ImageURL, encodeAttributes(p.Extra),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	for _, p := range products {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return errors.Wrapf(err, "upsert product %d", p.ID)
		}
	}
	if err := br.Close(); err != nil {
		return errors.Wrap(err, "close batch")
	}
	return nil
}

// Ping checks database connectivity.
func (s *ProductStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p     product.Product
		price decimal.Decimal
		attrs []byte
	)
	if err := row.Scan(
		&p.ID, &p.Name, &p.Code, &p.ReleaseDate, &p.Description,
		&price, &p.StarRating, &p.ImageURL, &attrs,
	); err != nil {
		return p, err
	}
	p.Price = price

	extra, err := decodeAttributes(attrs)
	if err != nil {
		return p, errors.Wrapf(err, "product %d attributes", p.ID)
	}
	p.Extra = extra
	return p, nil
}

// encodeAttributes renders extra attributes as a JSON object for the
// attributes column.
func encodeAttributes(extra map[string]jx.Raw) []byte {
	var e jx.Encoder
	e.ObjStart()
	for _, k := range slices.Sorted(maps.Keys(extra)) {
		e.FieldStart(k)
		e.Raw(extra[k])
	}
	e.ObjEnd()
	return e.Bytes()
}

func decodeAttributes(data []byte) (map[string]jx.Raw, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var extra map[string]jx.Raw
	if err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		raw, err := d.Raw()
		if err != nil {
			return err
		}
		if extra == nil {
			extra = make(map[string]jx.Raw)
		}
		extra[key] = slices.Clone(raw)
		return nil
	}); err != nil {
		return nil, err
	}
	return extra, nil
}
