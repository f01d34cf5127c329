package product

import (
	"maps"
	"slices"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// Feed field names.
const (
	fieldID          = "productId"
	fieldName        = "productName"
	fieldCode        = "productCode"
	fieldReleaseDate = "releaseDate"
	fieldDescription = "description"
	fieldPrice       = "price"
	fieldStarRating  = "starRating"
	fieldImageURL    = "imageUrl"
)

// DecodeList decodes a JSON array of products, preserving order.
func DecodeList(data []byte) ([]Product, error) {
	d := jx.DecodeBytes(data)
	out := make([]Product, 0)
	if err := d.Arr(func(d *jx.Decoder) error {
		var p Product
		if err := p.Decode(d); err != nil {
			return errors.Wrapf(err, "product #%d", len(out))
		}
		out = append(out, p)
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "decode products")
	}
	return out, nil
}

// EncodeList writes products as a JSON array.
func EncodeList(e *jx.Encoder, products []Product) {
	e.ArrStart()
	for _, p := range products {
		p.Encode(e)
	}
	e.ArrEnd()
}

// Decode reads a single product object. A missing or non-positive
// productId is rejected.
func (p *Product) Decode(d *jx.Decoder) error {
	seenID := false
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case fieldID:
			p.ID, err = d.Int64()
			seenID = true
		case fieldName:
			p.Name, err = optStr(d)
		case fieldCode:
			p.Code, err = optStr(d)
		case fieldReleaseDate:
			p.ReleaseDate, err = optStr(d)
		case fieldDescription:
			p.Description, err = optStr(d)
		case fieldImageURL:
			p.ImageURL, err = optStr(d)
		case fieldPrice:
			p.Price, err = decodePrice(d)
		case fieldStarRating:
			if d.Next() == jx.Null {
				return d.Null()
			}
			p.StarRating, err = d.Float64()
		default:
			var raw jx.Raw
			if raw, err = d.Raw(); err != nil {
				break
			}
			if p.Extra == nil {
				p.Extra = make(map[string]jx.Raw)
			}
			p.Extra[key] = append(jx.Raw(nil), raw...)
		}
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	}); err != nil {
		return err
	}

	switch {
	case !seenID:
		return errors.Errorf("%s is required", fieldID)
	case p.ID < 1:
		return errors.Errorf("%s must be positive, got %d", fieldID, p.ID)
	}
	return nil
}

// Encode writes the product as a JSON object. Extra attributes are written
// after the known ones, in key order.
func (p Product) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart(fieldID)
	e.Int64(p.ID)
	e.FieldStart(fieldName)
	e.Str(p.Name)
	e.FieldStart(fieldCode)
	e.Str(p.Code)
	e.FieldStart(fieldReleaseDate)
	e.Str(p.ReleaseDate)
	e.FieldStart(fieldDescription)
	e.Str(p.Description)
	e.FieldStart(fieldPrice)
	e.Raw([]byte(p.Price.String()))
	e.FieldStart(fieldStarRating)
	e.Float64(p.StarRating)
	e.FieldStart(fieldImageURL)
	e.Str(p.ImageURL)
	for _, k := range slices.Sorted(maps.Keys(p.Extra)) {
		e.FieldStart(k)
		e.Raw(p.Extra[k])
	}
	e.ObjEnd()
}

func optStr(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}

func decodePrice(d *jx.Decoder) (decimal.Decimal, error) {
	if d.Next() == jx.Null {
		return decimal.Zero, d.Null()
	}
	n, err := d.Num()
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(n.String())
}
