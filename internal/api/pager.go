package api

import (
	"context"
	"net/url"
	"strconv"

	"github.com/cockroachdb/errors"
)

// MaxPageSize is the hard per-call item cap of the offset/limit dialect.
const MaxPageSize = 100

// Pager walks list endpoints across the provider's two pagination dialects.
type Pager struct {
	d *Dispatcher
}

// NewPager creates a pager on top of the dispatcher.
func NewPager(d *Dispatcher) *Pager {
	return &Pager{d: d}
}

// FetchPaged walks an offset/limit endpoint. Requests for more than
// MaxPageSize items are split into sequential calls advancing the offset by
// MaxPageSize until the limit is satisfied or the server runs out of data.
// Every item is tagged with its global position, the requested offset and
// the server-reported total.
func (p *Pager) FetchPaged(ctx context.Context, path string, params url.Values, offset, limit int) ([]Item, error) {
	if limit <= 0 {
		limit = MaxPageSize
	}

	var items []Item
	remaining := limit
	cur := offset

	for remaining > 0 {
		chunk := remaining
		if chunk > MaxPageSize {
			chunk = MaxPageSize
		}

		req := cloneValues(params)
		req.Set("limit", strconv.Itoa(chunk))
		// Some endpoints reject an explicit zero offset; omit it.
		if cur > 0 {
			req.Set("offset", strconv.Itoa(cur))
		}

		resp, err := p.d.Request(ctx, "GET", path, RequestOptions{Params: req})
		if err != nil {
			return nil, err
		}

		env, err := parseEnvelope(resp.Body)
		if err != nil {
			return nil, err
		}

		if !env.hasItems {
			// Single wrapped resource, not a list.
			raw, typ := unwrapItem(env.single)
			return []Item{{
				Raw:                raw,
				Type:               typ,
				ItemPosition:       0,
				Offset:             offset,
				TotalNumberOfItems: 1,
			}}, nil
		}

		for i, m := range env.Items {
			raw, typ := unwrapItem(m)
			items = append(items, Item{
				Raw:                raw,
				Type:               typ,
				ItemPosition:       cur + i,
				Offset:             offset,
				TotalNumberOfItems: env.TotalNumberOfItems,
			})
		}

		got := len(env.Items)
		remaining -= got
		cur += got

		// A short page signals the end of data.
		if got < chunk {
			break
		}
		if env.TotalNumberOfItems > 0 && cur >= env.TotalNumberOfItems {
			break
		}
	}

	return items, nil
}

// FetchCursor walks a cursor endpoint, accumulating every page until the
// server stops returning a cursor. Positions are renumbered over the full
// accumulated set because cursor responses carry no stable global index.
func (p *Pager) FetchCursor(ctx context.Context, path string, params url.Values) ([]Item, error) {
	var items []Item
	cursor := ""

	for {
		req := cloneValues(params)
		if cursor != "" {
			req.Set("cursor", cursor)
		}

		resp, err := p.d.Request(ctx, "GET", path, RequestOptions{Params: req, V2: true})
		if err != nil {
			return nil, err
		}

		env, err := parseEnvelope(resp.Body)
		if err != nil {
			return nil, err
		}
		if !env.hasItems {
			return nil, errors.Newf("cursor endpoint %s returned no item list", path)
		}

		for _, m := range env.Items {
			raw, typ := unwrapItem(m)
			items = append(items, Item{Raw: raw, Type: typ})
		}

		if env.Cursor == "" {
			break
		}
		cursor = env.Cursor
	}

	for i := range items {
		items[i].ItemPosition = i
		items[i].TotalNumberOfItems = len(items)
	}
	return items, nil
}

// FetchSingle fetches one wrapped resource.
func (p *Pager) FetchSingle(ctx context.Context, path string, params url.Values) (*Item, error) {
	resp, err := p.d.Request(ctx, "GET", path, RequestOptions{Params: params})
	if err != nil {
		return nil, err
	}

	env, err := parseEnvelope(resp.Body)
	if err != nil {
		return nil, err
	}
	if env.hasItems {
		// Endpoint unexpectedly returned a list; take the first element.
		if len(env.Items) == 0 {
			return nil, errors.Newf("endpoint %s returned an empty list", path)
		}
		raw, typ := unwrapItem(env.Items[0])
		return &Item{Raw: raw, Type: typ, TotalNumberOfItems: env.TotalNumberOfItems}, nil
	}

	raw, typ := unwrapItem(env.single)
	return &Item{Raw: raw, Type: typ, TotalNumberOfItems: 1}, nil
}

func cloneValues(v url.Values) url.Values {
	out := url.Values{}
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}
