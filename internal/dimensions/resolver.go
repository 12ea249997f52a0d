package dimensions

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/wliao/retaildw/internal/contracts"
	"github.com/wliao/retaildw/pkg/logger"
)

// ResolutionError marks a row-level failure to derive a dimension key.
// The affected row is excluded from the fact set and counted; it is not a
// batch-level fault.
type ResolutionError struct {
	Dim    contracts.Dimension
	Key    string
	Reason string
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %s key %q: %s", e.Dim, e.Key, e.Reason)
}

// Resolver owns surrogate-key assignment for all four dimensions. No other
// component may mint a surrogate. Resolution is idempotent: a natural key
// seen in any prior run maps to the same surrogate forever.
//
// Allocation is serialized by a single mutex so concurrent partitions can
// never assign two surrogates to one unseen natural key; the store's
// upsert-on-natural-key uniqueness is the cross-process backstop.
type Resolver struct {
	store  contracts.DimensionStore
	logger *logger.Logger

	mu    sync.Mutex
	cache map[contracts.Dimension]map[string]int64
	dates map[string]*contracts.TimeAttributes
}

// NewResolver creates a new Resolver backed by the given store.
func NewResolver(store contracts.DimensionStore, log *logger.Logger) *Resolver {
	return &Resolver{
		store:  store,
		logger: log.WithField("stage", contracts.StageResolve.String()),
		cache: map[contracts.Dimension]map[string]int64{
			contracts.DimProduct:  {},
			contracts.DimCustomer: {},
			contracts.DimTime:     {},
			contracts.DimCountry:  {},
		},
		dates: make(map[string]*contracts.TimeAttributes),
	}
}

// ResolveCountry returns the surrogate for a country name.
func (r *Resolver) ResolveCountry(ctx context.Context, name string) (int64, error) {
	if name == "" {
		return 0, &ResolutionError{Dim: contracts.DimCountry, Key: name, Reason: "empty country name"}
	}
	return r.resolve(ctx, contracts.DimCountry, name, contracts.DimensionAttributes{})
}

// ResolveProduct returns the surrogate for a stock code. The description of
// the first sighting is kept; later descriptions do not overwrite it.
func (r *Resolver) ResolveProduct(ctx context.Context, stockCode, description string) (int64, error) {
	if stockCode == "" {
		return 0, &ResolutionError{Dim: contracts.DimProduct, Key: stockCode, Reason: "empty stock code"}
	}
	return r.resolve(ctx, contracts.DimProduct, stockCode, contracts.DimensionAttributes{Description: description})
}

// ResolveCustomer returns the surrogate for a customer id. The country
// surrogate is resolved first: dim_customer carries a country foreign key,
// so customer resolution depends on country resolution.
func (r *Resolver) ResolveCustomer(ctx context.Context, customerID int64, country string) (int64, error) {
	if customerID <= 0 {
		return 0, &ResolutionError{
			Dim:    contracts.DimCustomer,
			Key:    strconv.FormatInt(customerID, 10),
			Reason: "invalid customer id",
		}
	}

	countryKey, err := r.ResolveCountry(ctx, country)
	if err != nil {
		return 0, err
	}

	key := strconv.FormatInt(customerID, 10)
	return r.resolve(ctx, contracts.DimCustomer, key, contracts.DimensionAttributes{CountryKey: countryKey})
}

// ResolveTime returns the surrogate for a calendar date. Calendar
// attributes are derived once per distinct date, not per transaction.
func (r *Resolver) ResolveTime(ctx context.Context, ts time.Time) (int64, error) {
	if ts.IsZero() {
		return 0, &ResolutionError{Dim: contracts.DimTime, Key: "", Reason: "zero invoice date"}
	}

	key := ts.Format(contracts.TimeNaturalKey)

	r.mu.Lock()
	attrs, ok := r.dates[key]
	if !ok {
		derived := DeriveTimeAttributes(ts)
		r.dates[key] = &derived
		attrs = &derived
	}
	r.mu.Unlock()

	return r.resolve(ctx, contracts.DimTime, key, contracts.DimensionAttributes{Time: attrs})
}

// resolve is the idempotent lookup-or-allocate shared by all dimensions.
// The lock spans the store round-trip: allocation must be single-writer.
func (r *Resolver) resolve(ctx context.Context, dim contracts.Dimension, key string, attrs contracts.DimensionAttributes) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if surrogate, ok := r.cache[dim][key]; ok {
		return surrogate, nil
	}

	surrogate, found, err := r.store.Lookup(ctx, dim, key)
	if err != nil {
		return 0, fmt.Errorf("lookup %s key %q: %w", dim, key, err)
	}
	if found {
		r.cache[dim][key] = surrogate
		return surrogate, nil
	}

	surrogate, err = r.store.Insert(ctx, dim, key, attrs)
	if err != nil {
		return 0, fmt.Errorf("insert %s key %q: %w", dim, key, err)
	}

	r.cache[dim][key] = surrogate

	r.logger.WithFields(map[string]interface{}{
		"dimension": dim.String(),
		"key":       key,
		"surrogate": surrogate,
	}).Debug("Allocated dimension surrogate")

	return surrogate, nil
}
