package services

import (
	"math"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/vsinha/stocktransfer/pkg/domain/entities"
)

// CurrencyPlaces is the number of decimal places monetary values are rounded to
const CurrencyPlaces int32 = 2

var hundred = decimal.NewFromInt(100)

// Resolver picks the applicable tax for a unit price
type Resolver interface {
	Resolve(unitPrice decimal.Decimal, table *entities.TaxBracketTable, inJurisdiction bool) (entities.TaxResult, error)
}

// ResolverFunc adapts a plain function to the Resolver interface
type ResolverFunc func(unitPrice decimal.Decimal, table *entities.TaxBracketTable, inJurisdiction bool) (entities.TaxResult, error)

// Resolve calls f
func (f ResolverFunc) Resolve(unitPrice decimal.Decimal, table *entities.TaxBracketTable, inJurisdiction bool) (entities.TaxResult, error) {
	return f(unitPrice, table, inJurisdiction)
}

// TaxResolver resolves GST percentages from slab tables. It is stateless and
// safe for concurrent use.
type TaxResolver struct{}

// NewTaxResolver creates a new slab tax resolver
func NewTaxResolver() *TaxResolver {
	return &TaxResolver{}
}

var _ Resolver = (*TaxResolver)(nil)

// Resolve returns the percentage, per-unit amount and bracket for unitPrice.
//
// Cross-jurisdiction transfers are zero-rated against the first bracket. A
// flat-rate table always applies its purchase rate. Otherwise slabs are
// scanned in order against their boundary expressed exclusive of sales tax,
// and the last bracket is the fallback. A negative price yields a zero amount
// but still reports the resolved bracket.
func (r *TaxResolver) Resolve(unitPrice decimal.Decimal, table *entities.TaxBracketTable, inJurisdiction bool) (entities.TaxResult, error) {
	if table == nil || len(table.Brackets) == 0 {
		return entities.TaxResult{}, entities.ErrUnknownBracketTable
	}

	if !inJurisdiction {
		return entities.TaxResult{
			Percentage: decimal.Zero,
			Amount:     decimal.Zero,
			BracketID:  table.Brackets[0].BracketID,
		}, nil
	}

	price := unitPrice
	if price.IsNegative() {
		price = decimal.Zero
	}

	bracket := r.selectBracket(price, table)
	return entities.TaxResult{
		Percentage: bracket.PurchaseTaxPercent,
		Amount:     TaxAmount(price, bracket.PurchaseTaxPercent),
		BracketID:  bracket.BracketID,
	}, nil
}

// ResolveFloat resolves tax for a float price as entered in a form cell.
// NaN and infinite prices are treated like a zero price.
func (r *TaxResolver) ResolveFloat(unitPrice float64, table *entities.TaxBracketTable, inJurisdiction bool) (entities.TaxResult, error) {
	if math.IsNaN(unitPrice) || math.IsInf(unitPrice, 0) {
		return r.Resolve(decimal.Zero, table, inJurisdiction)
	}
	return r.Resolve(decimal.NewFromFloat(unitPrice), table, inJurisdiction)
}

func (r *TaxResolver) selectBracket(price decimal.Decimal, table *entities.TaxBracketTable) entities.TaxBracket {
	if table.IsFlatRate() {
		return table.Brackets[0]
	}
	for _, b := range table.Brackets {
		if b.IsOpenEnded() {
			continue
		}
		if price.LessThanOrEqual(AdjustedBoundary(b)) {
			return b
		}
	}
	return table.Brackets[len(table.Brackets)-1]
}

// AdjustedBoundary converts a sales-tax-inclusive slab end into the pre-tax
// purchase price boundary, rounded to currency precision.
func AdjustedBoundary(b entities.TaxBracket) decimal.Decimal {
	if b.SlabEndInclusive == nil {
		return decimal.Zero
	}
	divisor := decimal.NewFromInt(1).Add(b.SalesTaxPercent.Div(hundred))
	return b.SlabEndInclusive.Div(divisor).Round(CurrencyPlaces)
}

// TaxAmount returns price * percent / 100 rounded to currency precision
func TaxAmount(price, percent decimal.Decimal) decimal.Decimal {
	if price.IsNegative() {
		return decimal.Zero
	}
	return price.Mul(percent).Div(hundred).Round(CurrencyPlaces)
}

type taxCacheKey struct {
	price          string
	tableID        string
	inJurisdiction bool
}

// CachedTaxResolver memoizes results by price, table id and jurisdiction.
// Tables without an id are never cached.
type CachedTaxResolver struct {
	inner Resolver
	mutex sync.Mutex
	cache map[taxCacheKey]entities.TaxResult
}

// NewCachedTaxResolver wraps inner with a memoizing cache
func NewCachedTaxResolver(inner Resolver) *CachedTaxResolver {
	if inner == nil {
		inner = NewTaxResolver()
	}
	return &CachedTaxResolver{
		inner: inner,
		cache: make(map[taxCacheKey]entities.TaxResult),
	}
}

var _ Resolver = (*CachedTaxResolver)(nil)

// Resolve returns a cached result or delegates to the wrapped resolver
func (c *CachedTaxResolver) Resolve(unitPrice decimal.Decimal, table *entities.TaxBracketTable, inJurisdiction bool) (entities.TaxResult, error) {
	if table == nil || table.ID == "" {
		return c.inner.Resolve(unitPrice, table, inJurisdiction)
	}

	key := taxCacheKey{price: unitPrice.String(), tableID: table.ID, inJurisdiction: inJurisdiction}

	c.mutex.Lock()
	result, ok := c.cache[key]
	c.mutex.Unlock()
	if ok {
		return result, nil
	}

	result, err := c.inner.Resolve(unitPrice, table, inJurisdiction)
	if err != nil {
		return result, err
	}

	c.mutex.Lock()
	c.cache[key] = result
	c.mutex.Unlock()
	return result, nil
}

// Reset drops every memoized result. Call it whenever tables may have been
// replaced under an id already seen.
func (c *CachedTaxResolver) Reset() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	clear(c.cache)
}

// Size returns the number of memoized results
func (c *CachedTaxResolver) Size() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.cache)
}
