package model

// CatalogEntry maps a product to its token credit and, for subscription
// products, the tier it activates.
type CatalogEntry struct {
	TokenCredit int64
	Tier        SubscriptionTier // empty for one-off token packs
}

// HasTier reports whether the entry activates a subscription tier.
func (e CatalogEntry) HasTier() bool { return e.Tier != "" }

// Catalog is the immutable product table loaded at process start.
// Lookup of an unknown product yields a zero-credit entry, never an error.
type Catalog struct {
	entries map[string]CatalogEntry
}

func NewCatalog(entries map[string]CatalogEntry) *Catalog {
	cp := make(map[string]CatalogEntry, len(entries))
	for id, e := range entries {
		cp[id] = e
	}
	return &Catalog{entries: cp}
}

// DefaultCatalog returns the built-in product table: one-off token packs
// plus monthly subscription tiers with their immediate token allowance.
func DefaultCatalog() *Catalog {
	return NewCatalog(map[string]CatalogEntry{
		"SMALL":    {TokenCredit: 10},
		"MEDIUM":   {TokenCredit: 30},
		"LARGE":    {TokenCredit: 100},
		"EXPLORER": {TokenCredit: 15, Tier: TierExplorer},
		"INSIGHT":  {TokenCredit: 60, Tier: TierInsight},
		"PRIME":    {TokenCredit: 30, Tier: TierPrime},
	})
}

// Lookup resolves a product to its entry. Unknown products resolve to the
// zero entry so a stray completion event credits nothing instead of failing.
func (c *Catalog) Lookup(productID string) CatalogEntry {
	if c == nil {
		return CatalogEntry{}
	}
	return c.entries[productID]
}

// Contains reports whether the product is part of the catalog.
func (c *Catalog) Contains(productID string) bool {
	if c == nil {
		return false
	}
	_, ok := c.entries[productID]
	return ok
}
