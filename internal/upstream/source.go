package upstream

import (
	"io"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/product"
)

// Source describes one upstream catalog and how its payload maps onto
// product.Product.
type Source interface {
	Tag() product.Source
	URL() string
	Decode(r io.Reader) ([]product.Product, error)
}

const decodeBufSize = 16 << 10

// DummyJSON is a source shaped like
// {"products":[{id,title,price,thumbnail,images[],category,rating,stock}]}.
type DummyJSON struct {
	Endpoint string
}

var _ Source = DummyJSON{}

func (DummyJSON) Tag() product.Source { return product.SourceDummyJSON }

func (s DummyJSON) URL() string { return s.Endpoint }

// Decode maps each record, using images[0] when thumbnail is empty and
// stock as the rating count.
func (s DummyJSON) Decode(r io.Reader) ([]product.Product, error) {
	d := jx.Decode(r, decodeBufSize)

	var (
		out   []product.Product
		found bool
	)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "products" {
			return d.Skip()
		}
		found = true
		out = []product.Product{}
		return d.Arr(func(d *jx.Decoder) error {
			p, err := s.decodeProduct(d)
			if err != nil {
				return errors.Wrapf(err, "product #%d", len(out))
			}
			out = append(out, p)
			return nil
		})
	}); err != nil {
		return nil, errors.Wrap(err, "decode dummyjson payload")
	}
	if !found {
		return nil, errors.New("decode dummyjson payload: missing products")
	}
	return out, nil
}

func (s DummyJSON) decodeProduct(d *jx.Decoder) (product.Product, error) {
	var (
		p         = product.Product{Source: s.Tag()}
		localID   string
		thumbnail string
		firstImg  string
	)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			localID, err = decodeString(d)
		case "title":
			p.Title, err = decodeString(d)
		case "price":
			p.Price, err = decodeDecimal(d)
		case "thumbnail":
			thumbnail, err = decodeString(d)
		case "images":
			firstImg, err = decodeFirstString(d)
		case "category":
			p.Category, err = decodeString(d)
		case "rating":
			p.Rating.Rate, err = decodeFloat(d)
		case "stock":
			p.Rating.Count, err = decodeCount(d)
		default:
			err = d.Skip()
		}
		return errors.Wrap(err, key)
	})
	if err != nil {
		return product.Product{}, err
	}

	p.Image = thumbnail
	if p.Image == "" {
		p.Image = firstImg
	}
	return finish(p, "dummy", localID)
}

// FakeStore is a source shaped like
// [{id,title,price,image,category,rating:{rate,count}}].
type FakeStore struct {
	Endpoint string
}

var _ Source = FakeStore{}

func (FakeStore) Tag() product.Source { return product.SourceFakeStore }

func (s FakeStore) URL() string { return s.Endpoint }

// Decode maps each record, passing image and rating through.
func (s FakeStore) Decode(r io.Reader) ([]product.Product, error) {
	d := jx.Decode(r, decodeBufSize)
	if d.Next() != jx.Array {
		return nil, errors.Errorf("decode fakestore payload: expected array, got %s", d.Next())
	}

	out := []product.Product{}
	if err := d.Arr(func(d *jx.Decoder) error {
		p, err := s.decodeProduct(d)
		if err != nil {
			return errors.Wrapf(err, "product #%d", len(out))
		}
		out = append(out, p)
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "decode fakestore payload")
	}
	return out, nil
}

func (s FakeStore) decodeProduct(d *jx.Decoder) (product.Product, error) {
	var (
		p       = product.Product{Source: s.Tag()}
		localID string
	)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			localID, err = decodeString(d)
		case "title":
			p.Title, err = decodeString(d)
		case "price":
			p.Price, err = decodeDecimal(d)
		case "image":
			p.Image, err = decodeString(d)
		case "category":
			p.Category, err = decodeString(d)
		case "rating":
			p.Rating, err = decodeRating(d)
		default:
			err = d.Skip()
		}
		return errors.Wrap(err, key)
	})
	if err != nil {
		return product.Product{}, err
	}
	return finish(p, "fake", localID)
}

func decodeRating(d *jx.Decoder) (product.Rating, error) {
	var r product.Rating
	if d.Next() == jx.Null {
		return r, d.Null()
	}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "rate":
			r.Rate, err = decodeFloat(d)
		case "count":
			r.Count, err = decodeCount(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return r, err
}

func finish(p product.Product, prefix, localID string) (product.Product, error) {
	if localID == "" {
		return product.Product{}, errors.New("missing id")
	}
	if p.Price.LessThan(decimal.Zero) {
		return product.Product{}, errors.Errorf("negative price %s", p.Price)
	}
	p.ID = product.ID(prefix, localID)
	return p, nil
}
